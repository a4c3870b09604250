// Package geocode resolves coordinates to a human-readable address.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

var ErrNotFound = errors.New("no address found for coordinates")

type Address struct {
	DisplayName string `json:"displayName"`
	Road        string `json:"road,omitempty"`
	Suburb      string `json:"suburb,omitempty"`
	Ward        string `json:"ward,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
}

type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (*Address, error)
}

// Client queries a Nominatim-compatible /reverse endpoint.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *utils.Logger
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		Road          string `json:"road"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		CityDistrict  string `json:"city_district"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		State         string `json:"state"`
		Postcode      string `json:"postcode"`
	} `json:"address"`
}

func NewClient(baseURL, userAgent string, logger *utils.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Geocoder error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var nr nominatimResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if nr.Error != "" || nr.DisplayName == "" {
		return nil, ErrNotFound
	}

	return &Address{
		DisplayName: nr.DisplayName,
		Road:        nr.Address.Road,
		Suburb:      firstNonEmpty(nr.Address.Suburb, nr.Address.Neighbourhood),
		Ward:        nr.Address.CityDistrict,
		City:        firstNonEmpty(nr.Address.City, nr.Address.Town, nr.Address.Village),
		State:       nr.Address.State,
		Postcode:    nr.Address.Postcode,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
