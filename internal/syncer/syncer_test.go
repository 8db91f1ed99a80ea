package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/trip-sync/internal/geo"
	"github.com/example/trip-sync/internal/geocode"
	"github.com/example/trip-sync/internal/models"
	"github.com/example/trip-sync/internal/pricing"
	"github.com/example/trip-sync/internal/store"
	"github.com/example/trip-sync/internal/trip"
)

type fakeEstimator struct {
	est      models.RouteEstimate
	err      error
	failures int // transient errors returned before est
	hits     int
}

func (f *fakeEstimator) Estimate(ctx context.Context, from, to models.Coord) (models.RouteEstimate, error) {
	f.hits++
	if f.failures > 0 {
		f.failures--
		return models.RouteEstimate{}, errors.New("routing failure: down")
	}
	return f.est, f.err
}

type fakeGeocoder struct {
	mark geocode.Placemark
	err  error
}

func (f *fakeGeocoder) Reverse(ctx context.Context, c models.Coord) (geocode.Placemark, error) {
	return f.mark, f.err
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newFixture(t *testing.T) (*Synchronizer, *store.MemoryStore, *geo.Index, *fakeEstimator) {
	t.Helper()
	ms := store.NewMemoryStore()
	pool := geo.NewIndex()
	est := &fakeEstimator{est: models.RouteEstimate{DistanceMeters: 1500, Duration: 6 * time.Minute}}
	gc := &fakeGeocoder{mark: geocode.Placemark{Name: "Suzzallo Library", Street: "University Way"}}
	s := New(ms, pool, est, gc, discardLogger(), 8)
	return s, ms, pool, est
}

var (
	passenger = models.User{ID: "p1", Name: "Ada", Role: models.RolePassenger, Loc: models.Coord{Lat: 47.66, Lon: -122.31}}
	driver    = models.User{ID: "d1", Name: "Lin", Role: models.RoleDriver, Online: true, Loc: models.Coord{Lat: 47.65, Lon: -122.30}}
	dropoff   = models.Location{Title: "Pike Place", Coord: models.Coord{Lat: 47.62, Lon: -122.35}}
)

func recv(t *testing.T, ch <-chan models.TripRecord) models.TripRecord {
	t.Helper()
	select {
	case rec, ok := <-ch:
		if !ok {
			t.Fatal("stream closed")
		}
		return rec
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trip record")
	}
	return models.TripRecord{}
}

// Scenario: passenger requests, driver's subscription sees exactly one
// added record in the requested state.
func TestRequestTripDeliversToDriver(t *testing.T) {
	s, _, pool, _ := newFixture(t)
	pool.Upsert(driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := s.ObserveAsDriver(ctx, driver.ID)
	if err != nil {
		t.Fatal(err)
	}

	id, err := s.RequestTrip(context.Background(), passenger, dropoff, "standard")
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty trip id")
	}

	rec := recv(t, stream)
	if rec.ID != id || rec.State != models.StateRequested {
		t.Fatalf("unexpected record: %+v", rec)
	}
	select {
	case extra := <-stream:
		t.Fatalf("second delivery for one create: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

// Round-trip: a record written by RequestTrip reads back through the
// passenger's subscription with the same parties, drop-off and a cost
// equal to the pricing quote over the straight-line trip distance.
func TestRequestTripRoundTrip(t *testing.T) {
	s, _, pool, _ := newFixture(t)
	pool.Upsert(driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, _ := s.ObserveAsPassenger(ctx, passenger.ID)

	if _, err := s.RequestTrip(context.Background(), passenger, dropoff, "standard"); err != nil {
		t.Fatal(err)
	}

	rec := recv(t, stream)
	if rec.PassengerID != "p1" || rec.DriverID != "d1" {
		t.Fatalf("party mismatch: %+v", rec)
	}
	if rec.DropoffLocation != dropoff.Coord {
		t.Fatalf("dropoff mismatch: %+v", rec.DropoffLocation)
	}
	want := pricing.Price("standard", pricing.Haversine(passenger.Loc, dropoff.Coord))
	if rec.TripCost != want {
		t.Fatalf("cost=%f want=%f", rec.TripCost, want)
	}
	if rec.PickupLocationName != "Suzzallo Library" {
		t.Fatalf("pickup name %q", rec.PickupLocationName)
	}
	if rec.DistanceToPassenger != 0 || rec.TravelTimeToPassenger != 0 {
		t.Fatalf("dynamic fields must be zero at creation: %+v", rec)
	}
}

func TestRequestTripTakesFirstDriver(t *testing.T) {
	s, _, pool, _ := newFixture(t)
	// nearest first in the snapshot ordering
	far := models.User{ID: "d-far", Name: "Far", Online: true, Loc: models.Coord{Lat: 48.5, Lon: -121.5}}
	pool.Upsert(far)
	pool.Upsert(driver)

	id, err := s.RequestTrip(context.Background(), passenger, dropoff, "standard")
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := s.store.Get(context.Background(), id)
	if rec.DriverID != driver.ID {
		t.Fatalf("expected first driver %s, got %s", driver.ID, rec.DriverID)
	}
}

func TestRequestTripNoDriver(t *testing.T) {
	s, _, _, _ := newFixture(t)
	if _, err := s.RequestTrip(context.Background(), passenger, dropoff, "standard"); !errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}
}

func TestRequestTripNoDropoff(t *testing.T) {
	s, _, pool, _ := newFixture(t)
	pool.Upsert(driver)
	if _, err := s.RequestTrip(context.Background(), passenger, models.Location{}, "standard"); !errors.Is(err, ErrNoDropoff) {
		t.Fatalf("expected ErrNoDropoff, got %v", err)
	}
}

func TestRequestTripGeocodeFailure(t *testing.T) {
	ms := store.NewMemoryStore()
	pool := geo.NewIndex()
	pool.Upsert(driver)
	gc := &fakeGeocoder{err: errors.New("geocode failure: no result")}
	s := New(ms, pool, &fakeEstimator{}, gc, discardLogger(), 8)

	if _, err := s.RequestTrip(context.Background(), passenger, dropoff, "standard"); err == nil {
		t.Fatal("expected geocode failure to surface")
	}
}

// Scenario: driver accepts; the passenger's subscription eventually sees
// accepted with a non-zero travel time, and the driver's local estimate
// fills the same fields independently.
func TestAcceptPropagatesTravelTime(t *testing.T) {
	s, _, pool, est := newFixture(t)
	pool.Upsert(driver)

	id, err := s.RequestTrip(context.Background(), passenger, dropoff, "standard")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pStream, _ := s.ObserveAsPassenger(ctx, passenger.ID)
	dStream, _ := s.ObserveAsDriver(ctx, driver.ID)
	recv(t, pStream) // replayed requested
	first := recv(t, dStream)
	if first.TravelTimeToPassenger != 6 {
		t.Fatalf("driver-side fold missing: %+v", first)
	}

	if err := s.UpdateState(context.Background(), id, trip.EventAccept, models.RoleDriver); err != nil {
		t.Fatal(err)
	}

	got := recv(t, pStream)
	if got.State != models.StateAccepted {
		t.Fatalf("state=%s", got.State)
	}
	if got.TravelTimeToPassenger == 0 || got.DistanceToPassenger == 0 {
		t.Fatalf("accept side effect missing: %+v", got)
	}
	if est.hits == 0 {
		t.Fatal("estimator never consulted")
	}
}

// Scenario: passenger cancels while requested; a later driver accept on
// the same id is an invalid transition and the state stays cancelled.
func TestCancelThenAcceptInvalid(t *testing.T) {
	s, ms, pool, _ := newFixture(t)
	pool.Upsert(driver)
	id, _ := s.RequestTrip(context.Background(), passenger, dropoff, "standard")

	if err := s.UpdateState(context.Background(), id, trip.EventCancel, models.RolePassenger); err != nil {
		t.Fatal(err)
	}
	err := s.UpdateState(context.Background(), id, trip.EventAccept, models.RoleDriver)
	if !errors.Is(err, trip.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	rec, _ := ms.Get(context.Background(), id)
	if rec.State != models.StatePassengerCancelled {
		t.Fatalf("state corrupted to %s", rec.State)
	}
}

// Scenario: near-simultaneous conflicting writes converge on whichever
// the store committed last; both observers settle on the same state.
func TestConflictingWritesConverge(t *testing.T) {
	s, ms, pool, _ := newFixture(t)
	pool.Upsert(driver)
	id, _ := s.RequestTrip(context.Background(), passenger, dropoff, "standard")

	// both reads see requested, both writes go through; last write wins
	accepted := models.StateAccepted
	cancelled := models.StatePassengerCancelled
	if err := ms.Update(context.Background(), id, store.Fields{State: &accepted}); err != nil {
		t.Fatal(err)
	}
	if err := ms.Update(context.Background(), id, store.Fields{State: &cancelled}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pStream, _ := s.ObserveAsPassenger(ctx, passenger.ID)
	dStream, _ := s.ObserveAsDriver(ctx, driver.ID)
	pFinal := recv(t, pStream)
	dFinal := recv(t, dStream)
	if pFinal.State != cancelled || dFinal.State != cancelled {
		t.Fatalf("views diverge: passenger=%s driver=%s", pFinal.State, dFinal.State)
	}
}

func TestUpdateStateNotFound(t *testing.T) {
	s, _, _, _ := newFixture(t)
	err := s.UpdateState(context.Background(), "gone", trip.EventAccept, models.RoleDriver)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTripIdempotent(t *testing.T) {
	s, _, pool, _ := newFixture(t)
	pool.Upsert(driver)
	id, _ := s.RequestTrip(context.Background(), passenger, dropoff, "standard")
	if err := s.DeleteTrip(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTrip(context.Background(), id); err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
}

// A failed pickup estimate must not be remembered as computed: the next
// change for the same trip state retries and folds the route in.
func TestDriverFoldRetriesAfterEstimateFailure(t *testing.T) {
	ms := store.NewMemoryStore()
	pool := geo.NewIndex()
	pool.Upsert(driver)
	est := &fakeEstimator{est: models.RouteEstimate{DistanceMeters: 1500, Duration: 6 * time.Minute}, failures: 1}
	s := New(ms, pool, est, &fakeGeocoder{mark: geocode.Placemark{Name: "x"}}, discardLogger(), 8)

	id, err := s.RequestTrip(context.Background(), passenger, dropoff, "standard")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := s.ObserveAsDriver(ctx, driver.ID)
	if err != nil {
		t.Fatal(err)
	}
	first := recv(t, stream)
	if first.TravelTimeToPassenger != 0 || first.DistanceToPassenger != 0 {
		t.Fatalf("fold should be absent while routing is down: %+v", first)
	}

	// a write that leaves the state untouched still prompts a retry
	requested := models.StateRequested
	if err := ms.Update(context.Background(), id, store.Fields{State: &requested}); err != nil {
		t.Fatal(err)
	}
	second := recv(t, stream)
	if second.TravelTimeToPassenger != 6 || second.DistanceToPassenger != 1500 {
		t.Fatalf("fold missing after retry: %+v", second)
	}
}

// A degraded accept still lands the state when routing is down.
func TestAcceptDegradedWithoutRoute(t *testing.T) {
	ms := store.NewMemoryStore()
	pool := geo.NewIndex()
	pool.Upsert(driver)
	est := &fakeEstimator{err: errors.New("routing failure: down")}
	s := New(ms, pool, est, &fakeGeocoder{mark: geocode.Placemark{Name: "x"}}, discardLogger(), 8)

	id, _ := s.RequestTrip(context.Background(), passenger, dropoff, "standard")
	if err := s.UpdateState(context.Background(), id, trip.EventAccept, models.RoleDriver); err != nil {
		t.Fatal(err)
	}
	rec, _ := ms.Get(context.Background(), id)
	if rec.State != models.StateAccepted {
		t.Fatalf("state=%s", rec.State)
	}
	if rec.TravelTimeToPassenger != 0 {
		t.Fatalf("travel time should be absent in degraded accept: %+v", rec)
	}
}

func TestObserverClosesOnCancel(t *testing.T) {
	s, _, _, _ := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	stream, _ := s.ObserveAsPassenger(ctx, passenger.ID)
	cancel()
	select {
	case _, ok := <-stream:
		if ok {
			t.Fatal("unexpected record after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("stream never closed")
	}
}
