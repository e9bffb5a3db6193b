package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"salon-discovery/internal/domain"
	"salon-discovery/internal/observability"
)

// Operation labels for metrics.
const (
	opAll    = "all"
	opNearby = "nearby"
	opByCity = "by_city"
	opDetail = "detail"

	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Client implements domain.Directory against the salon catalog HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a directory client. A zero timeout leaves the client
// without its own deadline; callers bound requests through the context.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// ListAll fetches the complete salon catalog.
func (c *Client) ListAll(ctx context.Context) ([]domain.Salon, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/salons/all", nil)
	if err != nil {
		return nil, &domain.RemoteError{Message: fmt.Sprintf("create request: %v", err)}
	}

	var body listResponse
	if err := c.do(req, opAll, &body); err != nil {
		return nil, err
	}
	return toSalons(body.Salons), nil
}

// ListNear fetches salons within radiusKm of at. Returned entries carry a
// distance computed by the catalog service.
func (c *Client) ListNear(ctx context.Context, at domain.Coordinate, radiusKm float64) ([]domain.Salon, error) {
	payload, err := json.Marshal(nearbyRequest{
		Latitude:  at.Latitude,
		Longitude: at.Longitude,
		Radius:    radiusKm,
	})
	if err != nil {
		return nil, &domain.RemoteError{Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/salons/nearby", bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.RemoteError{Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	var body listResponse
	if err := c.do(req, opNearby, &body); err != nil {
		return nil, err
	}
	return toSalons(body.Salons), nil
}

// ListByCity fetches salons in a city. Country narrows the match when the
// same city name exists in several countries; empty means any.
func (c *Client) ListByCity(ctx context.Context, city, country string) ([]domain.Salon, error) {
	params := url.Values{"city": {city}}
	if country != "" {
		params.Set("country", country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/salons/by_city?"+params.Encode(), nil)
	if err != nil {
		return nil, &domain.RemoteError{Message: fmt.Sprintf("create request: %v", err)}
	}

	var body listResponse
	if err := c.do(req, opByCity, &body); err != nil {
		return nil, err
	}
	return toSalons(body.Salons), nil
}

// GetSalon fetches a single salon with its barber roster.
func (c *Client) GetSalon(ctx context.Context, id int) (domain.Salon, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/salons/%d", c.baseURL, id), nil)
	if err != nil {
		return domain.Salon{}, &domain.RemoteError{Message: fmt.Sprintf("create request: %v", err)}
	}

	var body detailResponse
	if err := c.do(req, opDetail, &body); err != nil {
		return domain.Salon{}, err
	}
	return toSalon(body.Salon), nil
}

// do executes the request and decodes a 2xx body into out. Every failure
// mode comes back as a *domain.RemoteError.
func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.DirectoryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.DirectoryRequests.WithLabelValues(op, outcomeError).Inc()
		c.logger.Debug("directory request failed", "op", op, "error", err)
		return &domain.RemoteError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		c.metrics.DirectoryRequests.WithLabelValues(op, outcomeError).Inc()
		c.logger.Debug("directory request rejected", "op", op, "status", resp.StatusCode)
		return &domain.RemoteError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.DirectoryRequests.WithLabelValues(op, outcomeError).Inc()
		return &domain.RemoteError{Message: fmt.Sprintf("decode response: %v", err)}
	}

	c.metrics.DirectoryRequests.WithLabelValues(op, outcomeSuccess).Inc()
	return nil
}

// errorMessage extracts the catalog's error envelope, falling back to the
// HTTP status text for non-JSON bodies.
func errorMessage(statusCode int, body []byte) string {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return "unexpected response"
}

// Catalog API wire types.

type listResponse struct {
	Salons       []salonPayload `json:"salons"`
	TotalCount   int            `json:"total_count"`
	SearchRadius float64        `json:"search_radius"`
}

type detailResponse struct {
	Salon salonPayload `json:"salon"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type nearbyRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius"`
}

type salonPayload struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	Country     string          `json:"country"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email"`
	Description string          `json:"description"`
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`
	Distance    *float64        `json:"distance"`
	Barbers     []barberPayload `json:"barbers"`
}

type barberPayload struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

func toSalons(payloads []salonPayload) []domain.Salon {
	salons := make([]domain.Salon, 0, len(payloads))
	for _, p := range payloads {
		salons = append(salons, toSalon(p))
	}
	return salons
}

func toSalon(p salonPayload) domain.Salon {
	s := domain.Salon{
		ID:          p.ID,
		Name:        p.Name,
		Address:     p.Address,
		City:        p.City,
		Country:     p.Country,
		Phone:       p.Phone,
		Email:       p.Email,
		Description: p.Description,
		DistanceKm:  p.Distance,
	}
	// Entries without a geocoded position keep a nil coordinate.
	if p.Latitude != nil && p.Longitude != nil {
		s.Coordinate = &domain.Coordinate{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}
	for _, b := range p.Barbers {
		s.Barbers = append(s.Barbers, domain.Barber{ID: b.ID, Name: b.Name, Specialty: b.Specialty})
	}
	return s
}
