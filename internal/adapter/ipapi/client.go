// Package ipapi resolves client positions through the ip-api.com lookup
// service.
//
// The provider resolves at a single precision, so FixRequest.HighAccuracy
// is accepted without changing behavior. Every failure is mapped onto one
// of the domain's location sentinels: quota and permission rejections
// become ErrLocationDenied, deadline expiry becomes ErrLocationTimeout,
// and everything else, including lookups of private address ranges,
// becomes ErrLocationUnavailable.
package ipapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"salon-discovery/internal/domain"
	"salon-discovery/internal/observability"
)

const lookupFields = "status,message,lat,lon,city,country"

const (
	outcomeSuccess     = "success"
	outcomeDenied      = "denied"
	outcomeTimeout     = "timeout"
	outcomeUnavailable = "unavailable"
)

// Client implements domain.Locator using the ip-api.com JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a position lookup client. Request deadlines come from
// FixRequest.Timeout rather than the HTTP client.
func NewClient(baseURL string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		metrics:    metrics,
		logger:     logger,
	}
}

// Locate resolves the position of req.IP. An empty IP resolves the address
// the provider sees the request from.
func (c *Client) Locate(ctx context.Context, req domain.FixRequest) (domain.Fix, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	u := fmt.Sprintf("%s/json/%s?fields=%s", c.baseURL, url.PathEscape(req.IP), lookupFields)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Fix{}, c.fail(domain.ErrLocationUnavailable, fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return domain.Fix{}, c.fail(domain.ErrLocationTimeout, err)
		}
		return domain.Fix{}, c.fail(domain.ErrLocationUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return domain.Fix{}, c.fail(domain.ErrLocationDenied, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return domain.Fix{}, c.fail(domain.ErrLocationUnavailable, fmt.Errorf("status %d", resp.StatusCode))
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Fix{}, c.fail(domain.ErrLocationUnavailable, fmt.Errorf("decode response: %w", err))
	}

	// The provider reports errors inside a 200 response.
	if body.Status != "success" {
		return domain.Fix{}, c.fail(domain.ErrLocationUnavailable, fmt.Errorf("lookup %s: %s", body.Status, body.Message))
	}

	coord := domain.Coordinate{Latitude: body.Lat, Longitude: body.Lon}
	if !coord.Valid() {
		return domain.Fix{}, c.fail(domain.ErrLocationUnavailable, errors.New("coordinates out of range"))
	}

	c.metrics.LocateRequests.WithLabelValues(outcomeSuccess).Inc()
	return domain.Fix{
		Coordinate: coord,
		City:       body.City,
		Country:    body.Country,
		ObtainedAt: clock.Now(),
	}, nil
}

func (c *Client) fail(sentinel, cause error) error {
	c.metrics.LocateRequests.WithLabelValues(outcomeFor(sentinel)).Inc()
	c.logger.Debug("position lookup failed", "error", cause)
	return fmt.Errorf("%w: %v", sentinel, cause)
}

func outcomeFor(sentinel error) string {
	switch sentinel {
	case domain.ErrLocationDenied:
		return outcomeDenied
	case domain.ErrLocationTimeout:
		return outcomeTimeout
	default:
		return outcomeUnavailable
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// ip-api.com response shape for the requested field set.
type lookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}
