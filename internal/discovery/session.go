// Package discovery keeps the per-client browsing state for the salon
// finder: which directory query produced the visible list, how it is
// filtered and sorted, and what degraded along the way.
//
// All session mutation flows through a single reducer. The loading flows
// run as goroutines and report back through typed events carrying the
// generation they were launched under; events from a superseded
// generation are discarded, so a reactivation can never be overwritten
// by a stale result.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"salon-discovery/internal/domain"
	"salon-discovery/internal/observability"
	"salon-discovery/internal/ranking"
)

// Source identifies which directory query produced the working set.
// Sources are ranked: a lower-priority result never replaces a
// higher-priority one, whatever order the loads complete in.
type Source string

const (
	SourceNone   Source = "none"
	SourceAll    Source = "all"
	SourceNearby Source = "nearby"
	SourceCity   Source = "city"
)

func (s Source) rank() int {
	switch s {
	case SourceAll:
		return 1
	case SourceNearby:
		return 2
	case SourceCity:
		return 3
	default:
		return 0
	}
}

// LoadPhase tracks the catalog branch of an activation. A failed load
// still ends in LoadReady; the failure is recorded as an error kind.
type LoadPhase string

const (
	LoadIdle   LoadPhase = "idle"
	LoadingAll LoadPhase = "loading_all"
	LoadReady  LoadPhase = "ready"
)

// LocatePhase tracks the position branch of an activation. The branch
// ends in LocateReady once the nearby load resolves either way, or in
// LocateFailed when no position could be obtained.
type LocatePhase string

const (
	LocateIdle    LocatePhase = "idle"
	LocatingUser  LocatePhase = "locating"
	LoadingNearby LocatePhase = "loading_nearby"
	LocateFailed  LocatePhase = "failed"
	LocateReady   LocatePhase = "ready"
)

// Reducer events. Each carries the generation its flow was launched under.

type event interface {
	generation() uint64
}

type gen struct {
	g uint64
}

func (e gen) generation() uint64 { return e.g }

type allLoaded struct {
	gen
	salons []domain.Salon
}

type allFailed struct {
	gen
	err error
}

type located struct {
	gen
	fix  domain.Fix
	city string
}

type locateFailed struct {
	gen
	err error
}

type nearbyLoaded struct {
	gen
	salons []domain.Salon
}

type nearbyFailed struct {
	gen
	err error
}

type cityLoaded struct {
	gen
	city   string
	salons []domain.Salon
}

type cityFailed struct {
	gen
	city string
	err  error
}

// Session is the discovery state for one client. Sessions are created and
// owned by a Registry and discarded on removal; nothing is persisted.
type Session struct {
	id string

	directory   domain.Directory
	locator     domain.Locator            // nil disables position lookups
	resolver    domain.CityResolver       // nil disables reverse geocoding
	store       domain.HandoffStore
	publisher   domain.SelectionPublisher // nil disables publication
	ranker      *ranking.Engine
	radiusKm    float64
	fixDefaults domain.FixRequest
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	catalogOK   func()

	// baseCtx bounds the loading flows. They deliberately outlive the
	// HTTP request that started them and stop only on shutdown.
	baseCtx context.Context

	mu         sync.Mutex
	generation uint64
	workingSet []domain.Salon
	source     Source
	query      string
	sortKey    domain.SortKey
	loadPhase  LoadPhase
	locPhase   LocatePhase
	location   *domain.Fix
	city       string
	lastError  domain.ErrorKind
	clientIP   string
	activateAt *domain.Coordinate
	lastAccess time.Time
}

func newSession(id string, deps Deps, baseCtx context.Context, catalogOK func()) *Session {
	return &Session{
		id:          id,
		directory:   deps.Directory,
		locator:     deps.Locator,
		resolver:    deps.Resolver,
		store:       deps.Store,
		publisher:   deps.Publisher,
		ranker:      deps.Ranker,
		radiusKm:    deps.RadiusKm,
		fixDefaults: deps.FixDefaults,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		catalogOK:   catalogOK,
		baseCtx:     baseCtx,
		source:      SourceNone,
		sortKey:     domain.SortByDistance,
		loadPhase:   LoadIdle,
		locPhase:    LocateIdle,
		lastAccess:  deps.Clock.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Activate starts a fresh discovery round: the generation is bumped, prior
// results are dropped, and the catalog and position branches are launched.
// An explicit coordinate skips the position lookup and loads nearby salons
// directly. Query and sort key are presentation state and survive
// reactivation.
func (s *Session) Activate(clientIP string, at *domain.Coordinate) {
	s.mu.Lock()
	s.generation++
	g := s.generation
	s.clientIP = clientIP
	s.activateAt = cloneCoordinate(at)
	s.workingSet = nil
	s.source = SourceNone
	s.loadPhase = LoadingAll
	s.locPhase = LocateIdle
	s.location = nil
	s.city = ""
	s.lastError = domain.KindNone
	s.lastAccess = s.clock.Now()

	startLocate := at != nil || s.locator != nil
	if startLocate {
		s.locPhase = LocatingUser
	}
	s.mu.Unlock()

	go s.loadAllFlow(s.baseCtx, g)
	if startLocate {
		go s.locateFlow(s.baseCtx, g, clientIP, at)
	}
}

// Reload re-runs the activation flow with the parameters the session was
// last activated with.
func (s *Session) Reload() {
	s.mu.Lock()
	ip, at := s.clientIP, s.activateAt
	s.mu.Unlock()
	s.Activate(ip, at)
}

// SetQuery updates the text filter. The visible list is recomputed on the
// next Snapshot.
func (s *Session) SetQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	s.lastAccess = s.clock.Now()
}

// SetSortKey updates the ordering applied to the visible list.
func (s *Session) SetSortKey(key domain.SortKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortKey = key
	s.lastAccess = s.clock.Now()
}

// FilterByCity bumps the generation and replaces the working set with the
// directory's city listing once it arrives. Activation phases are left
// alone; they describe the activation that already ran.
func (s *Session) FilterByCity(city, country string) {
	s.mu.Lock()
	s.generation++
	g := s.generation
	s.lastAccess = s.clock.Now()
	s.mu.Unlock()

	go s.cityFlow(s.baseCtx, g, city, country)
}

// Select routes a salon choice. A style parked for this session and salon
// in the handoff store yields a booking route and consumes the handoff;
// otherwise the client is routed to the salon detail page. Store errors
// degrade to the detail route. The routed selection is published
// best-effort; a publish failure never fails the selection.
func (s *Session) Select(ctx context.Context, salonID int) domain.Route {
	s.touch()

	route := domain.Route{Kind: domain.RouteDetail, SalonID: salonID}

	key := fmt.Sprintf("%s:%d:style", s.id, salonID)
	styleID, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("handoff lookup failed", "session_id", s.id, "salon_id", salonID, "error", err)
	}
	if ok {
		route = domain.Route{Kind: domain.RouteBooking, SalonID: salonID, StyleID: styleID}
		// Consume the handoff so a revisit routes to the detail page.
		if err := s.store.Remove(ctx, key); err != nil {
			s.logger.Warn("handoff remove failed", "session_id", s.id, "salon_id", salonID, "error", err)
		}
	}

	s.publish(ctx, route)
	return route
}

func (s *Session) publish(ctx context.Context, route domain.Route) {
	if s.publisher == nil {
		return
	}
	sel := domain.Selection{
		SessionID:  s.id,
		SalonID:    route.SalonID,
		StyleID:    route.StyleID,
		Route:      route.Kind,
		OccurredAt: s.clock.Now(),
	}
	if err := s.publisher.PublishSelection(ctx, sel); err != nil {
		s.logger.Warn("selection publish failed", "session_id", s.id, "salon_id", route.SalonID, "error", err)
	}
}

// Snapshot holds a point-in-time copy of the session for presentation.
// Salons is the ranked visible list; Total counts the working set before
// the query filter.
type Snapshot struct {
	SessionID   string
	Generation  uint64
	Salons      []domain.Salon
	Total       int
	Query       string
	SortKey     domain.SortKey
	Source      Source
	LoadPhase   LoadPhase
	LocatePhase LocatePhase
	Location    *domain.Fix
	City        string
	LastError   domain.ErrorKind
}

// Snapshot copies the session state and ranks the visible list. The copy
// is deep: callers can hold or mutate it freely.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	set := copySalons(s.workingSet)
	snap := Snapshot{
		SessionID:   s.id,
		Generation:  s.generation,
		Total:       len(s.workingSet),
		Query:       s.query,
		SortKey:     s.sortKey,
		Source:      s.source,
		LoadPhase:   s.loadPhase,
		LocatePhase: s.locPhase,
		Location:    cloneFix(s.location),
		City:        s.city,
		LastError:   s.lastError,
	}
	query, key := s.query, s.sortKey
	s.lastAccess = s.clock.Now()
	s.mu.Unlock()

	// Ranking runs on the copy, outside the lock.
	start := time.Now()
	snap.Salons = s.ranker.Compute(set, query, key)
	s.metrics.RankDuration.Observe(time.Since(start).Seconds())

	return snap
}

// Loading flows. Each runs in its own goroutine on the session's base
// context and reports through the reducer.

func (s *Session) loadAllFlow(ctx context.Context, g uint64) {
	salons, err := s.directory.ListAll(ctx)
	if err != nil {
		s.apply(allFailed{gen: gen{g}, err: err})
		return
	}
	s.apply(allLoaded{gen: gen{g}, salons: salons})
}

func (s *Session) locateFlow(ctx context.Context, g uint64, clientIP string, at *domain.Coordinate) {
	var fix domain.Fix
	if at != nil {
		fix = domain.Fix{Coordinate: *at, ObtainedAt: s.clock.Now()}
	} else {
		req := s.fixDefaults
		req.IP = clientIP
		resolved, err := s.locator.Locate(ctx, req)
		if err != nil {
			s.apply(locateFailed{gen: gen{g}, err: err})
			return
		}
		fix = resolved
	}

	city := s.resolveCity(ctx, fix)
	s.apply(located{gen: gen{g}, fix: fix, city: city})

	if s.stale(g) {
		return
	}

	salons, err := s.directory.ListNear(ctx, fix.Coordinate, s.radiusKm)
	if err != nil {
		s.apply(nearbyFailed{gen: gen{g}, err: err})
		return
	}
	s.apply(nearbyLoaded{gen: gen{g}, salons: salons})
}

func (s *Session) cityFlow(ctx context.Context, g uint64, city, country string) {
	salons, err := s.directory.ListByCity(ctx, city, country)
	if err != nil {
		s.apply(cityFailed{gen: gen{g}, city: city, err: err})
		return
	}
	s.apply(cityLoaded{gen: gen{g}, city: city, salons: salons})
}

// resolveCity names the fix's city, preferring the label the position
// provider supplied over a reverse geocode round trip.
func (s *Session) resolveCity(ctx context.Context, fix domain.Fix) string {
	if fix.City != "" {
		return fix.City
	}
	if s.resolver == nil {
		return domain.UnknownCity
	}
	return s.resolver.CityFor(ctx, fix.Coordinate)
}

// apply is the single mutation point for session state. Events from a
// superseded generation are dropped here.
func (s *Session) apply(e event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.generation() != s.generation {
		return
	}

	switch ev := e.(type) {
	case allLoaded:
		s.loadPhase = LoadReady
		s.adoptWorkingSet(SourceAll, ev.salons)
		s.markCatalogOK()
	case allFailed:
		// The session stays usable with an empty set; the client sees
		// the recorded kind and may reload.
		s.loadPhase = LoadReady
		s.lastError = domain.KindDirectoryUnavailable
		s.metrics.Fallbacks.WithLabelValues("directory").Inc()
		s.logger.Warn("catalog load failed", "session_id", s.id, "error", ev.err)
	case located:
		s.locPhase = LoadingNearby
		fix := ev.fix
		s.location = &fix
		s.city = ev.city
	case locateFailed:
		s.locPhase = LocateFailed
		s.lastError = domain.KindForLocationError(ev.err)
		s.metrics.Fallbacks.WithLabelValues("locate").Inc()
		s.logger.Warn("position lookup failed, continuing without location", "session_id", s.id, "error", ev.err)
	case nearbyLoaded:
		s.locPhase = LocateReady
		s.adoptWorkingSet(SourceNearby, ev.salons)
		s.markCatalogOK()
	case nearbyFailed:
		s.locPhase = LocateReady
		s.lastError = domain.KindNearbyUnavailable
		s.metrics.Fallbacks.WithLabelValues("nearby").Inc()
		s.logger.Warn("nearby load failed, serving the unqualified set", "session_id", s.id, "error", ev.err)
	case cityLoaded:
		s.adoptWorkingSet(SourceCity, ev.salons)
		s.city = ev.city
		s.lastError = domain.KindNone
		s.markCatalogOK()
	case cityFailed:
		s.lastError = domain.KindDirectoryUnavailable
		s.metrics.Fallbacks.WithLabelValues("city").Inc()
		s.logger.Warn("city load failed", "session_id", s.id, "city", ev.city, "error", ev.err)
	}
}

// adoptWorkingSet replaces the working set unless a higher-priority source
// already filled it. Duplicate IDs are dropped, first occurrence wins.
func (s *Session) adoptWorkingSet(src Source, salons []domain.Salon) {
	if src.rank() < s.source.rank() {
		return
	}
	s.source = src
	s.workingSet = uniqueByID(salons)
}

func (s *Session) markCatalogOK() {
	if s.catalogOK != nil {
		s.catalogOK()
	}
}

func (s *Session) stale(g uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return g != s.generation
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccess = s.clock.Now()
	s.mu.Unlock()
}

func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess)
}

func uniqueByID(salons []domain.Salon) []domain.Salon {
	seen := make(map[int]struct{}, len(salons))
	out := make([]domain.Salon, 0, len(salons))
	for _, s := range salons {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

func copySalons(set []domain.Salon) []domain.Salon {
	out := make([]domain.Salon, len(set))
	for i, s := range set {
		out[i] = cloneSalon(s)
	}
	return out
}

func cloneSalon(s domain.Salon) domain.Salon {
	c := s
	if s.Coordinate != nil {
		v := *s.Coordinate
		c.Coordinate = &v
	}
	if s.DistanceKm != nil {
		v := *s.DistanceKm
		c.DistanceKm = &v
	}
	if s.Barbers != nil {
		c.Barbers = slices.Clone(s.Barbers)
	}
	return c
}

func cloneCoordinate(c *domain.Coordinate) *domain.Coordinate {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

func cloneFix(f *domain.Fix) *domain.Fix {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
