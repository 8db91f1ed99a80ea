package pricing

import (
	"testing"

	"github.com/example/trip-sync/internal/models"
)

func TestPriceDeterministic(t *testing.T) {
	a := Price("standard", 4200)
	b := Price("standard", 4200)
	if a != b {
		t.Fatalf("same inputs gave %f and %f", a, b)
	}
	if a <= 0 {
		t.Fatalf("expected positive fare, got %f", a)
	}
}

func TestPriceZeroSentinel(t *testing.T) {
	if p := Price("standard", 0); p != 0 {
		t.Fatalf("zero distance: expected 0, got %f", p)
	}
	if p := Price("standard", -10); p != 0 {
		t.Fatalf("negative distance: expected 0, got %f", p)
	}
	if p := Price("no-such-class", 1000); p != 0 {
		t.Fatalf("unknown class: expected 0, got %f", p)
	}
}

func TestPriceScalesWithDistance(t *testing.T) {
	near := Price("standard", 1000)
	far := Price("standard", 10000)
	if far <= near {
		t.Fatalf("expected longer trip to cost more: near=%f far=%f", near, far)
	}
}

func TestQuoteMatchesPriceOverHaversine(t *testing.T) {
	from := models.Coord{Lat: 47.66, Lon: -122.31}
	to := models.Coord{Lat: 47.62, Lon: -122.35}
	want := Price("xl", Haversine(from, to))
	if got := Quote("xl", from, to); got != want {
		t.Fatalf("quote=%f want=%f", got, want)
	}
}

func TestHaversineZero(t *testing.T) {
	if d := Haversine(models.Coord{}, models.Coord{}); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestClassByName(t *testing.T) {
	if _, ok := ClassByName("premium"); !ok {
		t.Fatal("premium missing from catalog")
	}
	if _, ok := ClassByName("bogus"); ok {
		t.Fatal("unexpected catalog hit")
	}
}
