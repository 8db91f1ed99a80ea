package geocode

import (
	"context"
	"strings"

	"github.com/example/trip-sync/internal/models"
)

// Placemark is the decoded result of a reverse-geocode lookup.
type Placemark struct {
	Name        string
	Street      string
	SubStreet   string
	SubLocality string
}

// Address assembles the display address, skipping absent parts.
func (p Placemark) Address() string {
	parts := make([]string, 0, 3)
	if p.Street != "" {
		parts = append(parts, p.Street)
	}
	if p.SubStreet != "" {
		parts = append(parts, p.SubStreet)
	}
	if p.SubLocality != "" {
		parts = append(parts, p.SubLocality)
	}
	return strings.Join(parts, ", ")
}

// ReverseGeocoder resolves a coordinate to a placemark. Failures surface
// to the caller untouched; no retry happens here.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, c models.Coord) (Placemark, error)
}

// Static is the fallback when no geocoding endpoint is configured. Every
// coordinate resolves to a generic current-location placemark.
type Static struct{}

func (Static) Reverse(ctx context.Context, c models.Coord) (Placemark, error) {
	return Placemark{Name: "Current Location"}, nil
}
