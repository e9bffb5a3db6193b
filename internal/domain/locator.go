package domain

import (
	"context"
	"time"
)

// Defaults applied by NewFixRequest. Callers override per request.
const (
	DefaultLocateTimeout     = 10 * time.Second
	DefaultLocateMaxCacheAge = 5 * time.Minute
)

// FixRequest carries the parameters for a single position lookup.
//
// HighAccuracy is advisory: providers that resolve at a single precision
// accept it without changing behavior. A zero Timeout means the provider's
// own deadline applies; a zero MaxCacheAge disables cached fixes.
type FixRequest struct {
	IP           string
	HighAccuracy bool
	Timeout      time.Duration
	MaxCacheAge  time.Duration
}

// NewFixRequest returns a request for ip with high accuracy requested and
// the default timeout and cache-age bounds.
func NewFixRequest(ip string) FixRequest {
	return FixRequest{
		IP:           ip,
		HighAccuracy: true,
		Timeout:      DefaultLocateTimeout,
		MaxCacheAge:  DefaultLocateMaxCacheAge,
	}
}

// Fix is a resolved position. City and Country are best-effort labels from
// the provider and may be empty. ObtainedAt drives cache-age checks.
type Fix struct {
	Coordinate Coordinate
	City       string
	Country    string
	ObtainedAt time.Time
}

// Locator resolves a caller's position. Failures are one of the
// ErrLocation* sentinels, possibly wrapped with provider detail.
type Locator interface {
	Locate(ctx context.Context, req FixRequest) (Fix, error)
}

// UnknownCity is the label used when reverse geocoding fails or is
// disabled. It is a sentinel value, not an error: discovery continues
// with the unresolved label.
const UnknownCity = "Unknown"

// CityResolver names the city containing a coordinate. Implementations
// never fail; they return UnknownCity instead.
type CityResolver interface {
	CityFor(ctx context.Context, c Coordinate) string
}
