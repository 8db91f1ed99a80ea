// Package store defines the change-stream trip store the two actors share.
// Implementations must deliver change events to each subscription in the
// order the store committed them; no ordering holds across subscriptions.
package store

import (
	"context"
	"errors"

	"github.com/example/trip-sync/internal/models"
)

// ErrNotFound signals an operation against a trip id no longer present.
// Callers treat it as already-resolved, not fatal.
var ErrNotFound = errors.New("trip not found")

// Filter selects the subset of trip records a subscription observes.
// Exactly one of the two ids should be set.
type Filter struct {
	PassengerID string
	DriverID    string
}

// Matches reports whether a record falls inside the filter.
func (f Filter) Matches(t *models.TripRecord) bool {
	if f.PassengerID != "" {
		return t.PassengerID == f.PassengerID
	}
	if f.DriverID != "" {
		return t.DriverID == f.DriverID
	}
	return false
}

// Fields is a partial update. Nil members are left untouched, so a state
// change and its accept-time side effect land in one write.
type Fields struct {
	State                 *models.TripState
	TravelTimeToPassenger *int
	DistanceToPassenger   *float64
}

// TripStore is the narrow contract over the backing store.
type TripStore interface {
	// Create persists a new record, assigning the id when empty, and
	// returns the assigned id.
	Create(ctx context.Context, t *models.TripRecord) (string, error)
	Get(ctx context.Context, id string) (*models.TripRecord, error)
	// Update applies a partial field write. ErrNotFound when id is gone.
	Update(ctx context.Context, id string, f Fields) error
	// Delete is idempotent; deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// Subscribe returns an ordered change feed for records matching the
	// filter. Records already present are replayed as added events. The
	// channel closes when ctx ends, with no trailing empty notification.
	Subscribe(ctx context.Context, f Filter) (<-chan models.ChangeEvent, error)
}
