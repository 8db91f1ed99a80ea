package trip

import (
	"errors"
	"fmt"

	"github.com/example/trip-sync/internal/models"
)

// Event is a requested lifecycle change on a trip.
type Event string

const (
	EventAccept Event = "accept"
	EventReject Event = "reject"
	EventCancel Event = "cancel"
)

// ErrInvalidTransition signals an event not permitted for the record's
// current state or the acting role. The record is left untouched.
var ErrInvalidTransition = errors.New("invalid trip transition")

type transition struct {
	from  models.TripState
	event Event
	actor models.Role
}

// Every allowed (state, event, actor) triple and its target state.
// Creation into requested happens through the store, not through Apply.
var transitions = map[transition]models.TripState{
	{models.StateRequested, EventAccept, models.RoleDriver}:    models.StateAccepted,
	{models.StateRequested, EventReject, models.RoleDriver}:    models.StateRejected,
	{models.StateRequested, EventCancel, models.RoleDriver}:    models.StateDriverCancelled,
	{models.StateAccepted, EventCancel, models.RoleDriver}:     models.StateDriverCancelled,
	{models.StateRequested, EventCancel, models.RolePassenger}: models.StatePassengerCancelled,
	{models.StateAccepted, EventCancel, models.RolePassenger}:  models.StatePassengerCancelled,
}

// Next resolves the target state for (from, event, actor) without applying
// anything. ErrInvalidTransition for triples outside the table.
func Next(from models.TripState, event Event, actor models.Role) (models.TripState, error) {
	to, ok := transitions[transition{from, event, actor}]
	if !ok {
		return from, fmt.Errorf("%w: %s -> %s by %s", ErrInvalidTransition, from, event, actor)
	}
	return to, nil
}

// Apply validates the transition and returns a copy of rec in the target
// state. On ErrInvalidTransition the returned record equals the input.
func Apply(rec models.TripRecord, event Event, actor models.Role) (models.TripRecord, error) {
	to, err := Next(rec.State, event, actor)
	if err != nil {
		return rec, err
	}
	rec.State = to
	return rec, nil
}
