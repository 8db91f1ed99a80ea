package geo

import (
	"sync"
	"time"

	"github.com/example/trip-sync/internal/models"
	"github.com/example/trip-sync/internal/pricing"
)

// Pool is the eligible-driver set consulted at request time. Snapshot is
// a point-in-time read; the synchronizer takes the first entry of the
// snapshot as the match (first-driver policy, not nearest-assignment).
type Pool interface {
	Upsert(d models.User)
	Snapshot(near models.Coord, limit int) []models.User
}

// Index is an in-memory Pool for local runs and tests.
type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.User
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.User)}
}

func (g *Index) Upsert(d models.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d.Updated = time.Now()
	g.drivers[d.ID] = d
}

// naive scan ordered by distance; in prod the Redis GEO pool serves this
func (g *Index) Snapshot(near models.Coord, limit int) []models.User {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		d    models.User
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for _, d := range g.drivers {
		if !d.Online {
			continue
		}
		arr = append(arr, pair{d, pricing.Haversine(near, d.Loc)})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].d)
	}
	return out
}
