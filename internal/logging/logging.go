// Package logging builds the process-wide structured logger the agent
// threads through every component, from the scheduler down to the
// platform client.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/socialx/agent/internal/config"
)

// New returns a logger writing to stdout at the configured level. JSON is
// the production format; text is easier to scan when running the agent
// locally against a test account.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	handler, err := buildHandler(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}

	return slog.New(handler), nil
}

func buildHandler(cfg config.LoggingConfig, w io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	case "text":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
}
