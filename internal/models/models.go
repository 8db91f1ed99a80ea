package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Role identifies which side of a trip negotiation an actor is on.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

type User struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Role    Role      `json:"role"`
	Loc     Coord     `json:"loc"`
	Online  bool      `json:"online"`
	Updated time.Time `json:"updated"`
}

// TripState is the lifecycle state of a trip negotiation.
type TripState string

const (
	StateRequested          TripState = "requested"
	StateAccepted           TripState = "accepted"
	StateRejected           TripState = "rejected"
	StateDriverCancelled    TripState = "driverCancelled"
	StatePassengerCancelled TripState = "passengerCancelled"
)

// Terminal reports whether no further transition is defined from s.
func (s TripState) Terminal() bool {
	switch s {
	case StateRejected, StateDriverCancelled, StatePassengerCancelled:
		return true
	}
	return false
}

// TripRecord is the shared entity both parties observe and mutate.
// ID and the two party uids never change after creation; TripCost is
// written exactly once at request time. DistanceToPassenger and
// TravelTimeToPassenger stay zero until the driver accepts.
type TripRecord struct {
	ID                    string    `json:"id"`
	PassengerID           string    `json:"passenger_id"`
	DriverID              string    `json:"driver_id"`
	PassengerName         string    `json:"passenger_name"`
	DriverName            string    `json:"driver_name"`
	PassengerLocation     Coord     `json:"passenger_location"`
	DriverLocation        Coord     `json:"driver_location"`
	PickupLocationName    string    `json:"pickup_location_name"`
	PickupLocationAddress string    `json:"pickup_location_address"`
	PickupLocation        Coord     `json:"pickup_location"`
	DropoffLocationName   string    `json:"dropoff_location_name"`
	DropoffLocation       Coord     `json:"dropoff_location"`
	TripCost              float64   `json:"trip_cost"`
	DistanceToPassenger   float64   `json:"distance_to_passenger"`
	TravelTimeToPassenger int       `json:"travel_time_to_passenger"`
	State                 TripState `json:"state"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Location is a named place selected by the passenger.
type Location struct {
	Title string `json:"title"`
	Coord Coord  `json:"coord"`
}

// RouteEstimate is the ephemeral output of one routing call. It is never
// persisted; callers reduce it into TripRecord's distance/time fields.
type RouteEstimate struct {
	Geometry       []Coord       `json:"geometry"`
	DistanceMeters float64       `json:"distance_meters"`
	Duration       time.Duration `json:"duration"`
}

// ChangeType mirrors the backing store's document change kinds.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeEvent is one entry in a subscription's ordered change feed.
// Trip is nil for removed changes.
type ChangeEvent struct {
	Type   ChangeType  `json:"type"`
	TripID string      `json:"trip_id"`
	Trip   *TripRecord `json:"trip,omitempty"`
}
