package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/socialx/agent/internal/config"
)

func TestStartAndShutdown(t *testing.T) {
	cfg := config.ServerConfig{
		Port:            "0",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, logger, http.NewServeMux())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Give the listener a moment to bind before shutting it down.
	time.Sleep(50 * time.Millisecond)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean exit after graceful shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after shutdown")
	}
}

func TestStartReportsBindFailure(t *testing.T) {
	cfg := config.ServerConfig{Port: "not-a-port", ShutdownTimeout: time.Second}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, logger, http.NewServeMux())

	if err := srv.Start(); err == nil {
		t.Error("expected error for unbindable address")
	}
}
