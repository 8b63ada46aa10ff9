package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rpattn/tradeflow/internal/app"
	"github.com/rpattn/tradeflow/internal/auth"
	"github.com/rpattn/tradeflow/internal/config"
	"github.com/rpattn/tradeflow/internal/ingestion"
	"github.com/rpattn/tradeflow/internal/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	rt, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	handler := ingestion.NewHTTPHandler(rt.Service, rt.Files, ingestion.WithMaxUploadBytes(cfg.Server.MaxUploadBytes))
	imports := middleware.LoggingMiddleware(logger)(auth.Middleware(handler))

	mux := http.NewServeMux()
	mux.Handle("/imports", corsHandler.Handler(imports))
	mux.Handle("/imports/", corsHandler.Handler(imports))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting import server", "addr", cfg.Server.Addr, "database", cfg.Database.Driver, "storage", cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
	case runErr = <-serveErr:
	}
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", "error", err)
	}
	if err := rt.Close(shutdownCtx); err != nil {
		logger.Error("import workers did not drain", "error", err)
	}

	logger.Info("server exited")
	return runErr
}
