// Package geo supplies optional coordinates for alerts and embeds GPS
// metadata into stored photos.
package geo

import (
	"context"
	"errors"
)

// ErrNoPosition is returned when no position is available.
var ErrNoPosition = errors.New("no position available")

// Position is a WGS84 coordinate pair in decimal degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are inside their legal ranges.
func (p Position) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// Provider supplies the current position of the capture device. Coordinates
// supplied explicitly with a request take precedence over the provider;
// the two are merged at alert-creation time.
type Provider interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// FixedProvider always reports one configured position. Used for kiosk
// installations where the capture point does not move.
type FixedProvider struct {
	pos Position
}

// NewFixedProvider creates a provider pinned to the given position.
func NewFixedProvider(lat, lon float64) *FixedProvider {
	return &FixedProvider{pos: Position{Latitude: lat, Longitude: lon}}
}

// CurrentPosition returns the configured position.
func (p *FixedProvider) CurrentPosition(ctx context.Context) (Position, error) {
	if !p.pos.Valid() {
		return Position{}, ErrNoPosition
	}
	return p.pos, nil
}

// NoProvider reports no position. The default when geolocation capture is
// not configured.
type NoProvider struct{}

// CurrentPosition always fails with ErrNoPosition.
func (NoProvider) CurrentPosition(ctx context.Context) (Position, error) {
	return Position{}, ErrNoPosition
}
