package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/trip-sync/internal/models"
)

// OSRMClient performs route lookups against an OSRM HTTP server.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
	Cache    *Cache // optional
}

func NewOSRMClient(endpoint string) *OSRMClient {
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// Estimate queries OSRM /route between points and returns the route
// geometry, distance in meters and duration.
func (o *OSRMClient) Estimate(ctx context.Context, from, to models.Coord) (models.RouteEstimate, error) {
	if o.Cache != nil {
		if v, ok := o.Cache.Get(from, to); ok {
			return v, nil
		}
	}
	// OSRM route query: /route/v1/driving/{lon1},{lat1};{lon2},{lat2}
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		o.Endpoint, from.Lon, from.Lat, to.Lon, to.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.RouteEstimate{}, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return models.RouteEstimate{}, fmt.Errorf("routing failure: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		Routes []struct {
			Duration float64 `json:"duration"`
			Distance float64 `json:"distance"`
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.RouteEstimate{}, fmt.Errorf("routing failure: %w", err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return models.RouteEstimate{}, fmt.Errorf("routing failure: osrm no route: %v", out.Code)
	}
	r := out.Routes[0]
	geom := make([]models.Coord, 0, len(r.Geometry.Coordinates))
	for _, p := range r.Geometry.Coordinates {
		if len(p) < 2 {
			continue
		}
		// GeoJSON order is lon,lat
		geom = append(geom, models.Coord{Lat: p[1], Lon: p[0]})
	}
	est := models.RouteEstimate{
		Geometry:       geom,
		DistanceMeters: r.Distance,
		Duration:       time.Duration(r.Duration * float64(time.Second)),
	}
	if o.Cache != nil {
		o.Cache.Set(from, to, est)
	}
	return est, nil
}
