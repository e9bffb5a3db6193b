package domain

import (
	"context"
	"time"
)

// RouteKind names the screen a selection resolves to.
type RouteKind string

const (
	RouteBooking RouteKind = "booking"
	RouteDetail  RouteKind = "salon_detail"
)

// Route is the outcome of selecting a salon: either straight to booking
// with a pre-chosen style, or to the salon detail page.
type Route struct {
	Kind    RouteKind `json:"kind"`
	SalonID int       `json:"salon_id"`
	StyleID string    `json:"style_id,omitempty"`
}

// HandoffStore is the ephemeral key-value channel through which an
// upstream browsing surface parks a style choice for a salon. Get reports
// whether a value was present; a missing key is not an error. Remove is
// called exactly once after a successful booking-route read, making the
// handoff one-shot.
type HandoffStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Remove(ctx context.Context, key string) error
}

// Selection records a routed salon choice for downstream consumers.
type Selection struct {
	SessionID  string    `json:"session_id"`
	SalonID    int       `json:"salon_id"`
	StyleID    string    `json:"style_id,omitempty"`
	Route      RouteKind `json:"route"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SelectionPublisher emits selections to interested consumers. Publishing
// is best-effort; a failed publish never fails the selection itself.
type SelectionPublisher interface {
	PublishSelection(ctx context.Context, sel Selection) error
}
