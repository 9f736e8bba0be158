package location

import (
	"context"
	"fmt"
)

// ManualProvider reports a fixed location once and never updates it.
type ManualProvider struct {
	Location Location
}

// NewManualProvider returns a provider pinned to the given coordinates.
func NewManualProvider(latitude, longitude float64) *ManualProvider {
	return &ManualProvider{Location: Location{Latitude: latitude, Longitude: longitude}}
}

func (p *ManualProvider) Name() string { return "manual" }

// Start validates the coordinates and delivers the single fix.
func (p *ManualProvider) Start(ctx context.Context, update UpdateFunc) error {
	if !p.Location.Valid() {
		return fmt.Errorf("invalid manual location: %s", p.Location)
	}
	update(p.Location)
	return nil
}
