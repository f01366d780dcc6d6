package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/ozone/internal/config"
	mw "github.com/darkden-lab/ozone/internal/middleware"
	"github.com/darkden-lab/ozone/internal/setup"
)

// installerHandler serves the setup endpoints and answers 503 for
// everything else, matched or not.
func installerHandler(service *setup.Service, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(mw.AccessLog(logger))
	setup.NewHandlers(service).RegisterRoutes(r)
	return setup.GuardMiddleware(service)(r)
}

// runInstaller serves the first-run installer until a configuration has
// been written, then stops it and returns the loaded configuration.
func runInstaller(ctx context.Context, path string, reason error, logger *slog.Logger) (*config.Config, error) {
	port := 8080
	if defaults, err := config.LoadDefaults(); err == nil {
		port = defaults.Server.Port
	}

	service := setup.NewService(path, reason, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           installerHandler(service, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("installer listening", "addr", srv.Addr, "config", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("installer shutdown failed", "error", err)
		}
	}

	select {
	case cfg := <-service.Configured():
		stop()
		logger.Info("setup completed, starting gateway")
		return cfg, nil
	case err := <-errCh:
		return nil, fmt.Errorf("installer: %w", err)
	case <-ctx.Done():
		stop()
		return nil, ctx.Err()
	}
}
