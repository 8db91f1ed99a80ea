package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/trip-sync/internal/geo"
	"github.com/example/trip-sync/internal/identity"
	"github.com/example/trip-sync/internal/ingest"
	"github.com/example/trip-sync/internal/models"
	"github.com/example/trip-sync/internal/observability"
	"github.com/example/trip-sync/internal/pricing"
	"github.com/example/trip-sync/internal/store"
	"github.com/example/trip-sync/internal/syncer"
	"github.com/example/trip-sync/internal/trip"
)

type Server struct {
	Sync     *syncer.Synchronizer
	Pool     geo.Pool
	Kafka    *ingest.KafkaProducer
	Identity identity.Provider

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(sy *syncer.Synchronizer, pool geo.Pool, kp *ingest.KafkaProducer, idp identity.Provider, logger *slog.Logger) *Server {
	s := &Server{Sync: sy, Pool: pool, Kafka: kp, Identity: idp, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/trips", s.handleRequestTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/state", s.handleUpdateState).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}", s.handleDeleteTrip).Methods("DELETE")
	s.mux.HandleFunc("/api/v1/ride-classes", s.handleRideClasses).Methods("GET")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/ws/trips", s.handleObserve)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type requestTripBody struct {
	Location  models.Coord    `json:"location"`
	Dropoff   models.Location `json:"dropoff"`
	RideClass string          `json:"ride_class"`
}

func (s *Server) handleRequestTrip(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Identity.CurrentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var body requestTripBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	passenger := models.User{ID: claims.UserID, Name: claims.Name, Role: models.RolePassenger, Loc: body.Location}
	id, err := s.Sync.RequestTrip(r.Context(), passenger, body.Dropoff, body.RideClass)
	switch {
	case errors.Is(err, syncer.ErrNoDropoff):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, syncer.ErrNoDriverAvailable):
		http.Error(w, "no drivers available", http.StatusServiceUnavailable)
		return
	case err != nil:
		// geocode failures surface here; the caller decides on retry
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"trip_id": id})
}

type updateStateBody struct {
	Event trip.Event `json:"event"`
}

func (s *Server) handleUpdateState(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Identity.CurrentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var body updateStateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tripID := mux.Vars(r)["trip_id"]
	err = s.Sync.UpdateState(r.Context(), tripID, body.Event, claims.Role)
	switch {
	case errors.Is(err, trip.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "trip not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Identity.CurrentUser(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := s.Sync.DeleteTrip(r.Context(), mux.Vars(r)["trip_id"]); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRideClasses(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pricing.Classes())
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.User
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d.Role = models.RoleDriver
	d.Online = true
	if s.Kafka != nil {
		_ = s.Kafka.PublishLocation(d)
	}
	s.Pool.Upsert(d)
	observability.DriversOnline.Inc()
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

// handleObserve streams the caller's role-scoped trip view over a
// websocket, one JSON record per change. Closing the socket cancels the
// subscription; no final empty frame is sent.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Identity.CurrentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var stream <-chan models.TripRecord
	if claims.Role == models.RoleDriver {
		stream, err = s.Sync.ObserveAsDriver(ctx, claims.UserID)
	} else {
		stream, err = s.Sync.ObserveAsPassenger(ctx, claims.UserID)
	}
	if err != nil {
		s.logger.Error("subscribe failed", "user_id", claims.UserID, "error", err)
		return
	}

	// reader pump exists only to notice the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for rec := range stream {
		if err := conn.WriteJSON(rec); err != nil {
			return
		}
	}
}
