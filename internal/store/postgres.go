package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/example/trip-sync/internal/models"
	"github.com/example/trip-sync/internal/observability"
)

const notifyChannel = "trip_changes"

// PostgresStore is the production TripStore. Rows live in the trips table
// and every mutation publishes its change event over NOTIFY inside the
// mutating transaction, so subscribers see events in commit order. State
// and the accept-time fields land in a single UPDATE.
type PostgresStore struct {
	db       *sql.DB
	listener *pq.Listener
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

func NewPostgresStore(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	l := pq.NewListener(dsn, 2*time.Second, time.Minute, nil)
	if err := l.Listen(notifyChannel); err != nil {
		_ = db.Close()
		return nil, err
	}
	p := &PostgresStore{db: db, listener: l, logger: logger, subs: make(map[int]*subscriber)}
	go p.pump()
	return p, nil
}

func (p *PostgresStore) Close() error {
	_ = p.listener.Close()
	return p.db.Close()
}

func (p *PostgresStore) Create(ctx context.Context, t *models.TripRecord) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO trips(
		id, passenger_id, driver_id, passenger_name, driver_name,
		passenger_lat, passenger_lon, driver_lat, driver_lon,
		pickup_name, pickup_address, pickup_lat, pickup_lon,
		dropoff_name, dropoff_lat, dropoff_lon,
		trip_cost, distance_to_passenger, travel_time_to_passenger,
		state, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		t.ID, t.PassengerID, t.DriverID, t.PassengerName, t.DriverName,
		t.PassengerLocation.Lat, t.PassengerLocation.Lon, t.DriverLocation.Lat, t.DriverLocation.Lon,
		t.PickupLocationName, t.PickupLocationAddress, t.PickupLocation.Lat, t.PickupLocation.Lon,
		t.DropoffLocationName, t.DropoffLocation.Lat, t.DropoffLocation.Lon,
		t.TripCost, t.DistanceToPassenger, t.TravelTimeToPassenger,
		t.State, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return "", err
	}
	if err := notify(ctx, tx, models.ChangeEvent{Type: models.ChangeAdded, TripID: t.ID, Trip: t}); err != nil {
		return "", err
	}
	return t.ID, tx.Commit()
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.TripRecord, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id=$1`, id)
	t, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *PostgresStore) Update(ctx context.Context, id string, f Fields) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// COALESCE keeps untouched fields; state + accept side effect are one write
	row := tx.QueryRowContext(ctx, `UPDATE trips SET
		state = COALESCE($2, state),
		travel_time_to_passenger = COALESCE($3, travel_time_to_passenger),
		distance_to_passenger = COALESCE($4, distance_to_passenger),
		updated_at = $5
		WHERE id = $1
		RETURNING `+tripColumns,
		id, nullState(f.State), nullInt(f.TravelTimeToPassenger), nullFloat(f.DistanceToPassenger), time.Now())
	t, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := notify(ctx, tx, models.ChangeEvent{Type: models.ChangeModified, TripID: id, Trip: t}); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `DELETE FROM trips WHERE id=$1 RETURNING `+tripColumns, id)
	t, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil // already gone, idempotent
	}
	if err != nil {
		return err
	}
	if err := notify(ctx, tx, models.ChangeEvent{Type: models.ChangeRemoved, TripID: id, Trip: t}); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Subscribe(ctx context.Context, f Filter) (<-chan models.ChangeEvent, error) {
	sub := &subscriber{filter: f, ch: make(chan models.ChangeEvent, subscriberBuffer)}

	// replay the current snapshot as added events before registering for
	// live delivery, so no routed NOTIFY can land ahead of the replay
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE passenger_id=$1 OR driver_id=$2 ORDER BY created_at`,
		f.PassengerID, f.DriverID)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			if t, err := scanTrip(rows); err == nil && f.Matches(t) {
				sendSnapshot(sub, t)
			}
		}
	}

	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = sub
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs, id)
		close(sub.ch)
		p.mu.Unlock()
	}()
	return sub.ch, nil
}

// sendSnapshot hands one replayed record to a new subscription. Nothing
// drains the channel until Subscribe returns, so the send must not
// block; a snapshot larger than the buffer is truncated and live
// changes catch the subscriber up.
func sendSnapshot(sub *subscriber, t *models.TripRecord) {
	select {
	case sub.ch <- models.ChangeEvent{Type: models.ChangeAdded, TripID: t.ID, Trip: t}:
	default:
	}
}

// pump feeds NOTIFY payloads into dispatch for the life of the listener.
func (p *PostgresStore) pump() {
	for n := range p.listener.Notify {
		if n == nil {
			// reconnect marker from pq; nothing to deliver
			continue
		}
		p.dispatch(n.Extra)
	}
}

// dispatch decodes one change payload and routes it to matching
// subscribers. A payload that does not decode is logged and dropped;
// the feed keeps running.
func (p *PostgresStore) dispatch(payload string) {
	var ev models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.TripID == "" {
		observability.DecodeFailures.Inc()
		p.logger.Error("change payload decode failed", "error", err)
		return
	}
	rec := ev.Trip
	if ev.Type == models.ChangeRemoved {
		ev.Trip = nil
	}
	p.mu.Lock()
	for _, s := range p.subs {
		if rec == nil || !s.filter.Matches(rec) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
	p.mu.Unlock()
}

func notify(ctx context.Context, tx *sql.Tx, ev models.ChangeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(b))
	return err
}

const tripColumns = `id, passenger_id, driver_id, passenger_name, driver_name,
	passenger_lat, passenger_lon, driver_lat, driver_lon,
	pickup_name, pickup_address, pickup_lat, pickup_lon,
	dropoff_name, dropoff_lat, dropoff_lon,
	trip_cost, distance_to_passenger, travel_time_to_passenger,
	state, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(r rowScanner) (*models.TripRecord, error) {
	var t models.TripRecord
	err := r.Scan(&t.ID, &t.PassengerID, &t.DriverID, &t.PassengerName, &t.DriverName,
		&t.PassengerLocation.Lat, &t.PassengerLocation.Lon, &t.DriverLocation.Lat, &t.DriverLocation.Lon,
		&t.PickupLocationName, &t.PickupLocationAddress, &t.PickupLocation.Lat, &t.PickupLocation.Lon,
		&t.DropoffLocationName, &t.DropoffLocation.Lat, &t.DropoffLocation.Lon,
		&t.TripCost, &t.DistanceToPassenger, &t.TravelTimeToPassenger,
		&t.State, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullState(s *models.TripState) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
