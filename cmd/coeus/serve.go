package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alejandrodnm/coeus/config"
	"github.com/alejandrodnm/coeus/internal/adapters/httpapi"
	"github.com/alejandrodnm/coeus/internal/observability"
)

const shutdownGrace = 10 * time.Second

// runServer sirve el API HTTP hasta que ctx se cancela.
func runServer(ctx context.Context, cfg *config.Config, a httpapi.Analyzer, m *observability.Metrics) error {
	srv := httpapi.New(httpapi.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, a, m)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
