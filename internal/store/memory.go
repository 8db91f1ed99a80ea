package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/trip-sync/internal/models"
)

const subscriberBuffer = 64

// MemoryStore is an in-process TripStore for local runs and tests. Change
// events are fanned out in mutation order under the store lock; a
// subscriber that cannot keep up has events dropped rather than blocking
// writers.
type MemoryStore struct {
	mu    sync.Mutex
	trips map[string]models.TripRecord
	subs  map[int]*subscriber
	next  int
}

type subscriber struct {
	filter Filter
	ch     chan models.ChangeEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips: make(map[string]models.TripRecord),
		subs:  make(map[int]*subscriber),
	}
}

func (m *MemoryStore) Create(ctx context.Context, t *models.TripRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	m.trips[t.ID] = *t
	m.emit(models.ChangeEvent{Type: models.ChangeAdded, TripID: t.ID, Trip: copyOf(*t)})
	return t.ID, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.TripRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOf(t), nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, f Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return ErrNotFound
	}
	if f.State != nil {
		t.State = *f.State
	}
	if f.TravelTimeToPassenger != nil {
		t.TravelTimeToPassenger = *f.TravelTimeToPassenger
	}
	if f.DistanceToPassenger != nil {
		t.DistanceToPassenger = *f.DistanceToPassenger
	}
	t.UpdatedAt = time.Now()
	m.trips[id] = t
	m.emit(models.ChangeEvent{Type: models.ChangeModified, TripID: id, Trip: copyOf(t)})
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil
	}
	delete(m.trips, id)
	m.emit(models.ChangeEvent{Type: models.ChangeRemoved, TripID: id, Trip: copyOf(t)})
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, f Filter) (<-chan models.ChangeEvent, error) {
	m.mu.Lock()
	id := m.next
	m.next++
	sub := &subscriber{filter: f, ch: make(chan models.ChangeEvent, subscriberBuffer)}
	m.subs[id] = sub
	// replay existing matching records as added, in insertion-agnostic
	// map order; a fresh subscriber only needs the current snapshot
	for _, t := range m.trips {
		t := t
		if !f.Matches(&t) {
			continue
		}
		select {
		case sub.ch <- models.ChangeEvent{Type: models.ChangeAdded, TripID: t.ID, Trip: copyOf(t)}:
		default: // more current records than buffer; live changes follow anyway
		}
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		// closed under the lock so emit can never race a send
		m.mu.Lock()
		delete(m.subs, id)
		close(sub.ch)
		m.mu.Unlock()
	}()
	return sub.ch, nil
}

// emit fans the event out to matching subscribers. Caller holds m.mu.
// The filter is matched against the last known record, but removed
// changes are delivered without a record body.
func (m *MemoryStore) emit(ev models.ChangeEvent) {
	rec := ev.Trip
	if ev.Type == models.ChangeRemoved {
		ev.Trip = nil
	}
	for _, s := range m.subs {
		if rec == nil || !s.filter.Matches(rec) {
			continue
		}
		select {
		case s.ch <- ev:
		default: // slow subscriber, drop
		}
	}
}

func copyOf(t models.TripRecord) *models.TripRecord {
	c := t
	return &c
}
