// Package nominatim names coordinates through the OpenStreetMap Nominatim
// reverse geocoding API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"salon-discovery/internal/domain"
	"salon-discovery/internal/observability"
)

const userAgent = "salon-discovery/1.0"

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeEmpty   = "empty"

	resultHit  = "hit"
	resultMiss = "miss"
)

// Client implements domain.CityResolver. Lookups never fail: any provider
// error degrades to domain.UnknownCity so discovery can continue with an
// unresolved label.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *lru.Cache[string, string]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a reverse geocoding client with a bounded result cache.
func NewClient(baseURL string, timeout time.Duration, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// CityFor returns the city containing c, or domain.UnknownCity when the
// provider cannot name one. Unresolved lookups are not cached so a later
// attempt can retry the provider.
func (c *Client) CityFor(ctx context.Context, coord domain.Coordinate) string {
	key := fmt.Sprintf("%.4f,%.4f", coord.Latitude, coord.Longitude)
	if city, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(resultHit).Inc()
		return city
	}
	c.metrics.GeocodeCache.WithLabelValues(resultMiss).Inc()

	city, err := c.reverse(ctx, coord)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(outcomeError).Inc()
		c.logger.Warn("reverse geocode failed", "lat", coord.Latitude, "lon", coord.Longitude, "error", err)
		return domain.UnknownCity
	}
	if city == "" {
		c.metrics.GeocodeRequests.WithLabelValues(outcomeEmpty).Inc()
		return domain.UnknownCity
	}

	c.metrics.GeocodeRequests.WithLabelValues(outcomeSuccess).Inc()
	c.cache.Add(key, city)
	return city
}

func (c *Client) reverse(ctx context.Context, coord domain.Coordinate) (string, error) {
	params := url.Values{
		"format": {"jsonv2"},
		"lat":    {fmt.Sprintf("%f", coord.Latitude)},
		"lon":    {fmt.Sprintf("%f", coord.Longitude)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	// Nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim API error: status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return cityFrom(body), nil
}

// cityFrom picks the most specific settlement name the provider returned.
func cityFrom(r reverseResponse) string {
	switch {
	case r.Address.City != "":
		return r.Address.City
	case r.Address.Town != "":
		return r.Address.Town
	case r.Address.Village != "":
		return r.Address.Village
	default:
		return ""
	}
}

type reverseResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
	} `json:"address"`
}
