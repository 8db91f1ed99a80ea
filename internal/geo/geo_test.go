package geo

import (
	"testing"

	"github.com/example/trip-sync/internal/models"
)

func TestSnapshotFiltersOffline(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.User{ID: "d1", Role: models.RoleDriver, Online: true, Loc: models.Coord{Lat: 47.65, Lon: -122.30}})
	idx.Upsert(models.User{ID: "d2", Role: models.RoleDriver, Online: false, Loc: models.Coord{Lat: 47.65, Lon: -122.30}})

	got := idx.Snapshot(models.Coord{Lat: 47.66, Lon: -122.31}, 8)
	if len(got) != 1 || got[0].ID != "d1" {
		t.Fatalf("expected only d1, got %+v", got)
	}
}

func TestSnapshotOrdersByDistance(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.User{ID: "far", Online: true, Loc: models.Coord{Lat: 48.0, Lon: -122.0}})
	idx.Upsert(models.User{ID: "near", Online: true, Loc: models.Coord{Lat: 47.661, Lon: -122.311}})

	got := idx.Snapshot(models.Coord{Lat: 47.66, Lon: -122.31}, 8)
	if len(got) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(got))
	}
	if got[0].ID != "near" {
		t.Fatalf("expected near first, got %s", got[0].ID)
	}
}

func TestSnapshotHonorsLimit(t *testing.T) {
	idx := NewIndex()
	for _, id := range []string{"a", "b", "c"} {
		idx.Upsert(models.User{ID: id, Online: true})
	}
	if got := idx.Snapshot(models.Coord{}, 2); len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
}
