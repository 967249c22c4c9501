package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrInvalidEnvelope means the upstream reply did not have the
	// candidates/content/parts/text structure.
	ErrInvalidEnvelope = errors.New("invalid response format from generation API")
	// ErrInvalidJSON means the generated text is not JSON.
	ErrInvalidJSON = errors.New("generated text is not valid JSON")
	// ErrInvalidShape means the generated JSON lacks list-valued labels/values.
	ErrInvalidShape = errors.New("labels or values missing")
)

// EnvelopeError carries the raw upstream body so it can be echoed back for diagnosis.
type EnvelopeError struct {
	Reason string
	Raw    []byte
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidEnvelope, e.Reason)
}

func (e *EnvelopeError) Unwrap() error {
	return ErrInvalidEnvelope
}

// ChartData is the validated model output. Labels and Values hold whatever
// element types the model produced; only their list-ness is guaranteed.
type ChartData struct {
	Labels []any `json:"labels"`
	Values []any `json:"values"`

	raw map[string]any
}

// Object returns the parsed JSON object exactly as the model produced it.
func (c *ChartData) Object() map[string]any {
	return c.raw
}

// ExtractText walks candidates[0].content.parts[0].text, checking presence and
// type at every level.
func ExtractText(envelope []byte) (string, error) {
	fail := func(reason string) (string, error) {
		return "", &EnvelopeError{Reason: reason, Raw: envelope}
	}

	var root any
	if err := json.Unmarshal(envelope, &root); err != nil {
		return fail("body is not JSON")
	}
	top, ok := root.(map[string]any)
	if !ok || len(top) == 0 {
		return fail("body is not a JSON object")
	}

	candidates, ok := top["candidates"].([]any)
	if !ok || len(candidates) == 0 {
		return fail("candidates missing or empty")
	}
	candidate, ok := candidates[0].(map[string]any)
	if !ok {
		return fail("candidates[0] is not an object")
	}
	content, ok := candidate["content"].(map[string]any)
	if !ok || len(content) == 0 {
		return fail("candidates[0].content missing")
	}
	parts, ok := content["parts"].([]any)
	if !ok || len(parts) == 0 {
		return fail("candidates[0].content.parts missing or empty")
	}
	part, ok := parts[0].(map[string]any)
	if !ok {
		return fail("candidates[0].content.parts[0] is not an object")
	}
	text, ok := part["text"].(string)
	if !ok {
		return fail("candidates[0].content.parts[0].text is not a string")
	}

	return text, nil
}

// ParseChartData decodes the generated text and checks it carries list-valued
// labels and values.
func ParseChartData(text string) (*ChartData, error) {
	dec := json.NewDecoder(strings.NewReader(stripCodeFence(text)))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after top-level value", ErrInvalidJSON)
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, ErrInvalidShape
	}
	labels, ok := obj["labels"].([]any)
	if !ok {
		return nil, ErrInvalidShape
	}
	values, ok := obj["values"].([]any)
	if !ok {
		return nil, ErrInvalidShape
	}

	return &ChartData{Labels: labels, Values: values, raw: obj}, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence, which models add
// despite being asked for bare JSON.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if i := strings.IndexAny(s, "{[\n"); i > 0 && s[i] == '\n' {
		s = s[i+1:]
	} else if i > 0 {
		// one-line fence with a language tag: ```json {...}```
		s = s[i:]
	}
	return strings.TrimSpace(s)
}
