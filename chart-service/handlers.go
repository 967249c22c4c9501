package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

const maxRequestBody = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type extractRequest struct {
	InitialResponse string `json:"initialResponse"`
}

type ChartHandler struct {
	cfg       Config
	generator Generator
	renderer  *ChartRenderer
	store     ChartStore
	log       *slog.Logger
	started   time.Time
}

// NewChartHandler wires the extraction pipeline. renderer and store are only
// used in image mode and may be nil otherwise.
func NewChartHandler(cfg Config, generator Generator, renderer *ChartRenderer, store ChartStore, log *slog.Logger) *ChartHandler {
	return &ChartHandler{
		cfg:       cfg,
		generator: generator,
		renderer:  renderer,
		store:     store,
		log:       log,
		started:   time.Now(),
	}
}

func (h *ChartHandler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(h.recoverPanics, h.logRequests)

	r.HandleFunc("/api/extract_chart_data", h.ExtractChartData).Methods(http.MethodPost)
	if h.store != nil {
		r.HandleFunc("/static/{filename}", h.GetChart).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	return r
}

func (h *ChartHandler) ExtractChartData(w http.ResponseWriter, r *http.Request) {
	var request extractRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if strings.TrimSpace(request.InitialResponse) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing initialResponse"})
		return
	}

	envelope, err := h.generator.GenerateContent(r.Context(), buildPrompt(request.InitialResponse))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	text, err := ExtractText(envelope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := ParseChartData(text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.cfg.Mode != ModeImage {
		writeJSON(w, http.StatusOK, data.Object())
		return
	}

	if len(data.Labels) != len(data.Values) {
		h.log.Warn("labels and values differ in length, plotting paired entries only",
			"labels", len(data.Labels), "values", len(data.Values))
	}

	image, err := h.renderer.Render(data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	name := newChartName()
	if err := h.store.Save(r.Context(), name, image); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"imageUrl": h.cfg.ChartURL(name),
	})
}

func (h *ChartHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	file, err := h.store.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, ErrChartNotFound) {
			http.Error(w, "Chart not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to open chart", "name", name, "error", err)
		http.Error(w, "Failed to get chart", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	if _, err := io.Copy(w, file); err != nil {
		h.log.Warn("failed to stream chart", "name", name, "error", err)
	}
}

func (h *ChartHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"mode":   string(h.cfg.Mode),
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// writeError maps pipeline failures onto the response taxonomy.
func (h *ChartHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var upstreamErr *UpstreamError
	var envelopeErr *EnvelopeError

	switch {
	case errors.As(err, &upstreamErr):
		h.log.Error("generation API request failed",
			"op", upstreamErr.Op, "status", upstreamErr.StatusCode, "error", upstreamErr.Err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Request error",
			Details: upstreamErr.Detail(),
		})
	case errors.As(err, &envelopeErr):
		h.log.Warn("unexpected generation API envelope", "reason", envelopeErr.Reason)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Invalid response format from Gemini API",
			Details: string(envelopeErr.Raw),
		})
	case errors.Is(err, ErrInvalidJSON):
		h.log.Warn("generated text is not JSON", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Invalid JSON returned by Gemini API",
			Details: err.Error(),
		})
	case errors.Is(err, ErrInvalidShape):
		h.log.Warn("generated JSON has the wrong shape", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Invalid response format from Gemini API, labels or values missing",
		})
	default:
		h.log.Error("chart extraction failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
