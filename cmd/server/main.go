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

	"github.com/darkden-lab/ozone/internal/config"
	"github.com/darkden-lab/ozone/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := logging.Setup("info")

	// Configuration, or the installer when there is none.
	path := config.Path()
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("configuration unavailable, starting installer", "path", path, "error", err)
		cfg, err = runInstaller(ctx, path, err, logger)
		if err != nil {
			return err
		}
	}
	logger = logging.Setup(cfg.Server.LogLevel)

	g, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer g.Close()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        g.gate,
		ReadTimeout:    15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
	// Unbounded plugin calls get an unbounded write.
	if cfg.Plugins.Timeout > 0 {
		srv.WriteTimeout = cfg.Plugins.Timeout + 15*time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "tls", cfg.Server.UseTLS)
		var err error
		if cfg.Server.UseTLS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if _, err := g.Boot(ctx); err != nil {
		shutdown(srv, logger)
		return err
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	shutdown(srv, logger)
	logger.Info("server stopped")
	return nil
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}
