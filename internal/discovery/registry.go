package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"salon-discovery/internal/domain"
	"salon-discovery/internal/observability"
	"salon-discovery/internal/ranking"
)

const sweepInterval = time.Minute

// Deps carries everything a session needs. Locator, Resolver and
// Publisher may be nil; the corresponding behavior is skipped.
type Deps struct {
	Directory   domain.Directory
	Locator     domain.Locator
	Resolver    domain.CityResolver
	Store       domain.HandoffStore
	Publisher   domain.SelectionPublisher
	Ranker      *ranking.Engine
	RadiusKm    float64
	FixDefaults domain.FixRequest
	MaxIdle     time.Duration
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	Clock       clockwork.Clock
}

// Registry owns the live sessions. Sessions are keyed by a generated
// UUID and evicted after sitting idle longer than MaxIdle.
type Registry struct {
	deps    Deps
	baseCtx context.Context

	mu       sync.RWMutex
	sessions map[string]*Session

	ready atomic.Bool
}

// NewRegistry builds a registry whose session flows run on parent.
// Cancelling parent stops all in-flight loads.
func NewRegistry(parent context.Context, deps Deps) *Registry {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Registry{
		deps:     deps,
		baseCtx:  parent,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session and activates it.
func (r *Registry) Create(clientIP string, at *domain.Coordinate) *Session {
	s := newSession(uuid.NewString(), r.deps, r.baseCtx, r.markReady)

	r.mu.Lock()
	r.sessions[s.id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.deps.Metrics.SessionsCreated.Inc()
	r.deps.Metrics.SessionsActive.Set(float64(count))
	r.deps.Logger.Info("session created", "session_id", s.id, "client_ip", clientIP, "explicit_coords", at != nil)

	s.Activate(clientIP, at)
	return s
}

// Get returns the session for id, if it is still registered.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops the session for id. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if ok {
		r.deps.Metrics.SessionsActive.Set(float64(count))
		r.deps.Logger.Info("session removed", "session_id", id)
	}
	return ok
}

// Sweep evicts idle sessions on a fixed cadence until ctx is cancelled.
func (r *Registry) Sweep(ctx context.Context) {
	ticker := r.deps.Clock.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.evictIdle()
		}
	}
}

func (r *Registry) evictIdle() {
	now := r.deps.Clock.Now()

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleFor(now) > r.deps.MaxIdle {
			delete(r.sessions, id)
			r.deps.Metrics.SessionsEvicted.Inc()
			r.deps.Logger.Info("session evicted", "session_id", id)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	r.deps.Metrics.SessionsActive.Set(float64(count))
}

// Warm fetches the catalog once so readiness can pass before the first
// session arrives. Failure is non-fatal; sessions retry on activation.
func (r *Registry) Warm(ctx context.Context) {
	salons, err := r.deps.Directory.ListAll(ctx)
	if err != nil {
		r.deps.Logger.Warn("catalog warmup failed", "error", err)
		return
	}
	r.markReady()
	r.deps.Logger.Info("catalog warmup complete", "salons", len(salons))
}

// CheckReadiness reports whether the directory has answered at least one
// catalog query since startup.
func (r *Registry) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no successful directory load yet")
	}
	return nil
}

func (r *Registry) markReady() {
	r.ready.Store(true)
}
