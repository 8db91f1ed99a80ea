package pricing

import (
	"math"

	"github.com/example/trip-sync/internal/models"
)

// RideClass is one selectable pricing tier. The catalog is static and
// loaded once; nothing mutates it after startup.
type RideClass struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	BaseFare     float64 `json:"base_fare"`
	PerMeterRate float64 `json:"per_meter_rate"`
	ImageAsset   string  `json:"image_asset"`
}

var catalog = []RideClass{
	{Name: "standard", Description: "Standard", BaseFare: 5, PerMeterRate: 0.0015, ImageAsset: "ride-standard"},
	{Name: "xl", Description: "XL Van", BaseFare: 8, PerMeterRate: 0.0024, ImageAsset: "ride-xl"},
	{Name: "premium", Description: "Premium", BaseFare: 12, PerMeterRate: 0.0032, ImageAsset: "ride-premium"},
}

// Classes returns the catalog in display order.
func Classes() []RideClass {
	out := make([]RideClass, len(catalog))
	copy(out, catalog)
	return out
}

// ClassByName looks up a catalog entry; ok is false for unknown names.
func ClassByName(name string) (RideClass, bool) {
	for _, c := range catalog {
		if c.Name == name {
			return c, true
		}
	}
	return RideClass{}, false
}

// Price computes the fare for a ride class over a straight-line trip
// distance. It is pure and deterministic. A missing class or a
// non-positive distance yields the zero sentinel, never an error; callers
// must treat zero as "inputs absent", not as a free ride.
func Price(class string, distanceMeters float64) float64 {
	c, ok := ClassByName(class)
	if !ok || distanceMeters <= 0 {
		return 0
	}
	return c.BaseFare + c.PerMeterRate*distanceMeters
}

// Quote prices a ride between two coordinates at request time.
func Quote(class string, from, to models.Coord) float64 {
	return Price(class, Haversine(from, to))
}

// Haversine distance in meters.
func Haversine(a, b models.Coord) float64 {
	const R = 6371000.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}
