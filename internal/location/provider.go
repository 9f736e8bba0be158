// Package location supplies the coordinates used to compute solar elevation.
// Providers push updates; the daemon consumes whichever provider starts
// first.
package location

import (
	"context"
	"fmt"
	"log/slog"
)

// Location is a geographic position in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are within range.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

func (l Location) String() string {
	return fmt.Sprintf("%.2f, %.2f", l.Latitude, l.Longitude)
}

// UpdateFunc receives location updates from a provider. Implementations must
// be safe to call from the provider's own goroutine.
type UpdateFunc func(Location)

// Provider is a source of location updates. Start delivers the initial fix
// (possibly asynchronously) and any later changes through update, until ctx
// is cancelled.
type Provider interface {
	Name() string
	Start(ctx context.Context, update UpdateFunc) error
}

// TryStart starts the first provider that succeeds and returns it. Failures
// of earlier providers are logged and skipped.
func TryStart(ctx context.Context, logger *slog.Logger, update UpdateFunc, providers ...Provider) (Provider, error) {
	var lastErr error
	for _, p := range providers {
		if err := p.Start(ctx, update); err != nil {
			logger.Warn("Location provider unavailable", "provider", p.Name(), "error", err)
			lastErr = err
			continue
		}
		logger.Info("Location provider started", "provider", p.Name())
		return p, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no location providers configured")
	}
	return nil, fmt.Errorf("failed to start any location provider: %w", lastErr)
}
