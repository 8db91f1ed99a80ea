package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/trip-sync/internal/models"
)

// NominatimClient reverse-geocodes against a Nominatim-compatible HTTP
// endpoint.
type NominatimClient struct {
	Endpoint string
	Client   *http.Client
}

func NewNominatimClient(endpoint string) *NominatimClient {
	return &NominatimClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

func (n *NominatimClient) Reverse(ctx context.Context, c models.Coord) (Placemark, error) {
	url := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%.6f&lon=%.6f", n.Endpoint, c.Lat, c.Lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Placemark{}, err
	}
	resp, err := n.Client.Do(req)
	if err != nil {
		return Placemark{}, fmt.Errorf("geocode failure: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Placemark{}, fmt.Errorf("geocode failure: status %d", resp.StatusCode)
	}
	var out struct {
		Name    string `json:"name"`
		Address struct {
			Road        string `json:"road"`
			HouseNumber string `json:"house_number"`
			Suburb      string `json:"suburb"`
		} `json:"address"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Placemark{}, fmt.Errorf("geocode failure: %w", err)
	}
	if out.Error != "" {
		return Placemark{}, fmt.Errorf("geocode failure: %s", out.Error)
	}
	name := out.Name
	if name == "" {
		name = "Current Location"
	}
	return Placemark{
		Name:        name,
		Street:      out.Address.Road,
		SubStreet:   out.Address.HouseNumber,
		SubLocality: out.Address.Suburb,
	}, nil
}
