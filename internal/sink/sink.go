// Package sink abstracts the display hardware behind a uniform "apply a
// color setting, restore on exit" capability.
package sink

import (
	"fmt"
	"log/slog"

	"github.com/mkarjala/duskd/internal/color"
)

// Sink applies color settings to a display. Implementations are tried in
// registration order until one starts.
type Sink interface {
	Name() string

	// Start establishes the connection to the display. A sink that cannot
	// run in the current environment returns an error and is skipped.
	Start() error

	// SetOption applies a backend-specific option before Start.
	SetOption(key, value string) error

	// Set applies a color setting to every output.
	Set(s color.Setting) error

	// Restore puts the display back to the state captured at Start.
	Restore() error

	Close() error
}

// TryStart starts the first sink that succeeds and returns it. Failures of
// earlier sinks are logged and skipped.
func TryStart(logger *slog.Logger, sinks ...Sink) (Sink, error) {
	var lastErr error
	for _, s := range sinks {
		if err := s.Start(); err != nil {
			logger.Warn("Color sink unavailable", "sink", s.Name(), "error", err)
			lastErr = err
			continue
		}
		logger.Info("Color sink started", "sink", s.Name())
		return s, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no color sinks configured")
	}
	return nil, fmt.Errorf("failed to start any color sink: %w", lastErr)
}
