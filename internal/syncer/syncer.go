// Package syncer keeps each role's local view of the shared trip record
// in step with the backing store. Nothing here locks the record itself;
// the actor-gated transition table plus the store's commit order is the
// concurrency control between the two parties.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/trip-sync/internal/geo"
	"github.com/example/trip-sync/internal/geocode"
	"github.com/example/trip-sync/internal/models"
	"github.com/example/trip-sync/internal/observability"
	"github.com/example/trip-sync/internal/pricing"
	"github.com/example/trip-sync/internal/route"
	"github.com/example/trip-sync/internal/store"
	"github.com/example/trip-sync/internal/trip"
)

var (
	// ErrNoDriverAvailable means the eligible-driver pool was empty at
	// request time.
	ErrNoDriverAvailable = errors.New("no driver available")
	// ErrNoDropoff means the passenger has not selected a destination.
	ErrNoDropoff = errors.New("no drop-off selected")
)

// Synchronizer wires the trip store, driver pool, pricing and routing
// into the operations both clients use.
type Synchronizer struct {
	store     store.TripStore
	pool      geo.Pool
	estimator route.Estimator
	geocoder  geocode.ReverseGeocoder
	logger    *slog.Logger
	poolLimit int
}

func New(ts store.TripStore, pool geo.Pool, est route.Estimator, gc geocode.ReverseGeocoder, logger *slog.Logger, poolLimit int) *Synchronizer {
	if poolLimit <= 0 {
		poolLimit = 8
	}
	return &Synchronizer{store: ts, pool: pool, estimator: est, geocoder: gc, logger: logger, poolLimit: poolLimit}
}

// ObserveAsPassenger streams the passenger's view of their trip records.
// The channel closes when ctx ends; a deleted trip shows up as the
// absence of further updates, never as an explicit empty event.
func (s *Synchronizer) ObserveAsPassenger(ctx context.Context, passengerID string) (<-chan models.TripRecord, error) {
	ch, err := s.store.Subscribe(ctx, store.Filter{PassengerID: passengerID})
	if err != nil {
		return nil, err
	}
	out := make(chan models.TripRecord)
	go func() {
		defer close(out)
		for ev := range ch {
			if ev.Trip == nil {
				continue
			}
			observability.ObserverEvents.WithLabelValues(string(models.RolePassenger)).Inc()
			select {
			case out <- *ev.Trip:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ObserveAsDriver streams the driver's view. On the first sighting of
// each trip state it estimates the route from the driver's position to
// the pickup point and folds distance and travel minutes into the
// delivered record. The fold is local only; it is never written back,
// the accept transition persists those fields separately.
func (s *Synchronizer) ObserveAsDriver(ctx context.Context, driverID string) (<-chan models.TripRecord, error) {
	ch, err := s.store.Subscribe(ctx, store.Filter{DriverID: driverID})
	if err != nil {
		return nil, err
	}
	out := make(chan models.TripRecord)
	go func() {
		defer close(out)
		// state last seen per trip; only this goroutine touches it
		seen := map[string]models.TripState{}
		for ev := range ch {
			if ev.Trip == nil {
				delete(seen, ev.TripID)
				continue
			}
			observability.ObserverEvents.WithLabelValues(string(models.RoleDriver)).Inc()
			rec := *ev.Trip
			if seen[rec.ID] != rec.State {
				if est, err := s.estimator.Estimate(ctx, rec.DriverLocation, rec.PickupLocation); err == nil {
					observability.RouteEstimates.WithLabelValues("ok").Inc()
					rec.DistanceToPassenger = est.DistanceMeters
					rec.TravelTimeToPassenger = route.TravelMinutes(est)
					seen[rec.ID] = rec.State
				} else {
					// left unmarked so the next change retries the estimate
					observability.RouteEstimates.WithLabelValues("error").Inc()
					s.logger.Warn("route to pickup failed", "trip_id", rec.ID, "error", err)
				}
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RequestTrip creates a trip in the requested state and returns its id.
// The driver is the first entry of the cached eligible set, a documented
// policy rather than a nearest-assignment algorithm. Trip cost is
// computed here, once, from the passenger's position and the drop-off.
func (s *Synchronizer) RequestTrip(ctx context.Context, passenger models.User, dropoff models.Location, class string) (string, error) {
	if dropoff.Title == "" {
		return "", ErrNoDropoff
	}
	drivers := s.pool.Snapshot(passenger.Loc, s.poolLimit)
	if len(drivers) == 0 {
		observability.NoDriverTotal.Inc()
		return "", ErrNoDriverAvailable
	}
	driver := drivers[0]

	mark, err := s.geocoder.Reverse(ctx, passenger.Loc)
	if err != nil {
		return "", fmt.Errorf("pickup lookup: %w", err)
	}

	rec := &models.TripRecord{
		PassengerID:           passenger.ID,
		DriverID:              driver.ID,
		PassengerName:         passenger.Name,
		DriverName:            driver.Name,
		PassengerLocation:     passenger.Loc,
		DriverLocation:        driver.Loc,
		PickupLocationName:    mark.Name,
		PickupLocationAddress: mark.Address(),
		PickupLocation:        passenger.Loc,
		DropoffLocationName:   dropoff.Title,
		DropoffLocation:       dropoff.Coord,
		TripCost:              pricing.Quote(class, passenger.Loc, dropoff.Coord),
		State:                 models.StateRequested,
	}
	id, err := s.store.Create(ctx, rec)
	if err != nil {
		return "", err
	}
	observability.TripsRequested.Inc()
	s.logger.Info("trip requested", "trip_id", id, "passenger_id", passenger.ID, "driver_id", driver.ID)
	return id, nil
}

// UpdateState applies one actor-gated transition. Accepting additionally
// persists travel time and distance to the passenger in the same write;
// when the route estimate fails the state still lands alone, a degraded
// but accepted outcome.
func (s *Synchronizer) UpdateState(ctx context.Context, tripID string, event trip.Event, actor models.Role) error {
	rec, err := s.store.Get(ctx, tripID)
	if err != nil {
		return err
	}
	applied, err := trip.Apply(*rec, event, actor)
	if err != nil {
		observability.Transitions.WithLabelValues(string(event), "invalid").Inc()
		return err
	}

	fields := store.Fields{State: &applied.State}
	if applied.State == models.StateAccepted {
		if est, eerr := s.estimator.Estimate(ctx, rec.DriverLocation, rec.PickupLocation); eerr == nil {
			mins := route.TravelMinutes(est)
			fields.TravelTimeToPassenger = &mins
			fields.DistanceToPassenger = &est.DistanceMeters
		} else {
			s.logger.Warn("accept without travel time", "trip_id", tripID, "error", eerr)
		}
	}
	if err := s.store.Update(ctx, tripID, fields); err != nil {
		observability.Transitions.WithLabelValues(string(event), "error").Inc()
		return err
	}
	observability.Transitions.WithLabelValues(string(event), "ok").Inc()
	s.logger.Info("trip transition", "trip_id", tripID, "event", string(event), "actor", string(actor), "state", string(applied.State))
	return nil
}

// DeleteTrip removes the record. Idempotent: deleting a trip that is
// already gone succeeds, so the two parties' asymmetric cleanup cannot
// trip over each other.
func (s *Synchronizer) DeleteTrip(ctx context.Context, tripID string) error {
	return s.store.Delete(ctx, tripID)
}
