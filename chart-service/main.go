package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	addrFlag string
	modeFlag string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	rootCmd := &cobra.Command{
		Use:          "chart-service",
		Short:        "Extract chart data from free text through the Gemini API",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logger)
		},
	}
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (default :$PORT)")
	serveCmd.Flags().StringVar(&modeFlag, "mode", "", "Response mode: data or image (default $CHART_MODE)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply the chart retention policy once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sweep(cmd.Context(), logger)
		},
	}

	rootCmd.AddCommand(serveCmd, sweepCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("chart-service failed", "error", err)
		os.Exit(1)
	}
}

func loadServeConfig() (Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return Config{}, err
	}
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}
	if modeFlag != "" {
		cfg.Mode = ResponseMode(modeFlag)
	}
	return cfg, cfg.Validate()
}

func newStore(ctx context.Context, cfg Config) (ChartStore, error) {
	if cfg.S3Bucket != "" {
		return NewS3StoreFromEnv(ctx, cfg.S3Bucket, cfg.S3Prefix)
	}
	return NewDiskStore(cfg.StaticDir)
}

func newGenerator(ctx context.Context, cfg Config) (Generator, error) {
	if cfg.UpstreamClient == ClientSDK {
		return NewSDKGenerator(ctx, cfg, nil)
	}
	return NewHTTPGenerator(cfg, nil), nil
}

func serve(ctx context.Context, logger *slog.Logger) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	var (
		renderer *ChartRenderer
		store    ChartStore
	)
	if cfg.Mode == ModeImage {
		if renderer, err = NewChartRenderer(); err != nil {
			return err
		}
		if store, err = newStore(ctx, cfg); err != nil {
			return err
		}
		go NewJanitor(store, cfg, logger).Run(ctx)
	}

	handler := NewChartHandler(cfg, generator, renderer, store, logger)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Chart Service is running", "addr", cfg.Addr, "mode", cfg.Mode, "upstream", cfg.UpstreamClient)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func sweep(ctx context.Context, logger *slog.Logger) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateRetention(); err != nil {
		return err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	removed, err := NewJanitor(store, cfg, logger).Sweep(ctx)
	logger.Info("chart sweep finished", "removed", removed)
	return err
}
