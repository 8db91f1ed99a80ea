package route

import (
	"context"
	"time"

	"github.com/example/trip-sync/internal/models"
	"github.com/example/trip-sync/internal/pricing"
)

// Estimator is the interface consumed by the synchronizer to compute a
// route between two coordinates. No retry happens at this layer; a
// failure surfaces to the caller, which decides whether to try again.
type Estimator interface {
	Estimate(ctx context.Context, from, to models.Coord) (models.RouteEstimate, error)
}

// Fallback estimates a straight-line route at a fixed speed. It backs the
// OSRM client when no routing server is configured and keeps estimates
// available when one is unreachable.
type Fallback struct {
	SpeedMps float64
}

func (f *Fallback) Estimate(ctx context.Context, from, to models.Coord) (models.RouteEstimate, error) {
	speed := f.SpeedMps
	if speed <= 0 {
		speed = 8.0 // ~28.8 km/h default city speed
	}
	d := pricing.Haversine(from, to)
	return models.RouteEstimate{
		Geometry:       []models.Coord{from, to},
		DistanceMeters: d,
		Duration:       time.Duration(d / speed * float64(time.Second)),
	}, nil
}

// Times derives the display pickup/drop-off pair from an estimate. Both
// are recomputed on every estimate and never persisted.
type Times struct {
	Pickup  string
	Dropoff string
}

func DisplayTimes(est models.RouteEstimate, now time.Time) Times {
	const layout = "03:04 PM"
	return Times{
		Pickup:  now.Format(layout),
		Dropoff: now.Add(est.Duration).Format(layout),
	}
}

// TravelMinutes reduces an estimate's duration to the whole minutes stored
// on TripRecord.TravelTimeToPassenger.
func TravelMinutes(est models.RouteEstimate) int {
	return int(est.Duration / time.Minute)
}
