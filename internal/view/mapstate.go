// Package view models the map display state machine layered on top of
// the trip lifecycle. Reducers here are pure so the display logic is
// testable without any rendering surface.
package view

import "github.com/example/trip-sync/internal/models"

// MapViewState is the display state of the home map.
type MapViewState string

const (
	NoInput                  MapViewState = "noInput"
	SearchingForLocation     MapViewState = "searchingForLocation"
	LocationSelected         MapViewState = "locationSelected"
	PolylineAdded            MapViewState = "polylineAdded"
	TripRequested            MapViewState = "tripRequested"
	TripAccepted             MapViewState = "tripAccepted"
	TripCancelledByPassenger MapViewState = "tripCancelledByPassenger"
	TripCancelledByDriver    MapViewState = "tripCancelledByDriver"
)

// LocalEvent is a user interaction with no external contract.
type LocalEvent string

const (
	EventActivateSearch LocalEvent = "activateSearch"
	EventSelectLocation LocalEvent = "selectLocation"
	EventPolylineAdded  LocalEvent = "polylineAdded"
	EventReset          LocalEvent = "reset"
)

// Next advances the display state for a local interaction. Unknown
// combinations leave the state where it is.
func Next(current MapViewState, ev LocalEvent) MapViewState {
	switch ev {
	case EventReset:
		return NoInput
	case EventActivateSearch:
		if current == NoInput {
			return SearchingForLocation
		}
	case EventSelectLocation:
		if current == SearchingForLocation || current == NoInput {
			return LocationSelected
		}
	case EventPolylineAdded:
		if current == LocationSelected {
			return PolylineAdded
		}
	}
	return current
}

// FromTrip folds an observed trip state into the display state. Terminal
// trip states always win: a cancellation display state is reachable from
// any non-terminal display state, for either role. The rejected state has
// no dedicated screen; it displays as the driver-side cancellation.
func FromTrip(current MapViewState, state models.TripState) MapViewState {
	switch state {
	case models.StatePassengerCancelled:
		return TripCancelledByPassenger
	case models.StateDriverCancelled, models.StateRejected:
		return TripCancelledByDriver
	case models.StateRequested:
		return TripRequested
	case models.StateAccepted:
		return TripAccepted
	}
	return current
}

// Variant is the UI surface shown for a display state and role. It is
// the role-aware dispatch the map container keys its panels off.
type Variant string

const (
	VariantNone          Variant = "none"
	VariantRideRequest   Variant = "rideRequest"
	VariantTripLoading   Variant = "tripLoading"
	VariantAcceptTrip    Variant = "acceptTrip"
	VariantTripAccepted  Variant = "tripAccepted"
	VariantPickup        Variant = "pickupPassenger"
	VariantTripCancelled Variant = "tripCancelled"
)

func VariantFor(state MapViewState, role models.Role) Variant {
	switch state {
	case LocationSelected, PolylineAdded:
		return VariantRideRequest
	case TripRequested:
		if role == models.RolePassenger {
			return VariantTripLoading
		}
		return VariantAcceptTrip
	case TripAccepted:
		if role == models.RolePassenger {
			return VariantTripAccepted
		}
		return VariantPickup
	case TripCancelledByPassenger, TripCancelledByDriver:
		return VariantTripCancelled
	}
	return VariantNone
}

// CancelledMessage is the role-specific text shown on the cancellation
// screen.
func CancelledMessage(role models.Role, state models.TripState) string {
	if role == models.RolePassenger {
		switch state {
		case models.StateDriverCancelled, models.StateRejected:
			return "Your driver cancelled the trip"
		case models.StatePassengerCancelled:
			return "Your trip has been cancelled"
		}
		return ""
	}
	switch state {
	case models.StateDriverCancelled:
		return "Your trip has been cancelled"
	case models.StatePassengerCancelled:
		return "Trip has been cancelled by the passenger"
	}
	return ""
}
