package discovery_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-discovery/internal/discovery"
	"salon-discovery/internal/domain"
	"salon-discovery/internal/observability"
	"salon-discovery/internal/ranking"
)

const testClientIP = "203.0.113.9"

var helsinkiFix = domain.Fix{
	Coordinate: domain.Coordinate{Latitude: 60.1699, Longitude: 24.9384},
	City:       "Helsinki",
	Country:    "Finland",
}

// --- mocks ---

// waitGate blocks until the gate yields or ctx is cancelled. A nil gate
// never blocks. Tests use gates to pin down completion order.
func waitGate(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gate:
		return nil
	}
}

type fakeDirectory struct {
	mu sync.Mutex

	all      []domain.Salon
	allErr   error
	allGate  chan struct{}
	allCalls int

	nearby       []domain.Salon
	nearbyErr    error
	nearbyGate   chan struct{}
	nearbyCalls  int
	nearbyAt     domain.Coordinate
	nearbyRadius float64

	city        []domain.Salon
	cityErr     error
	cityCalls   int
	lastCity    string
	lastCountry string
}

func (f *fakeDirectory) ListAll(ctx context.Context) ([]domain.Salon, error) {
	if err := waitGate(ctx, f.allGate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allCalls++
	if f.allErr != nil {
		return nil, f.allErr
	}
	return slices.Clone(f.all), nil
}

func (f *fakeDirectory) ListNear(ctx context.Context, at domain.Coordinate, radiusKm float64) ([]domain.Salon, error) {
	if err := waitGate(ctx, f.nearbyGate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nearbyCalls++
	f.nearbyAt = at
	f.nearbyRadius = radiusKm
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}
	return slices.Clone(f.nearby), nil
}

func (f *fakeDirectory) ListByCity(_ context.Context, city, country string) ([]domain.Salon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cityCalls++
	f.lastCity = city
	f.lastCountry = country
	if f.cityErr != nil {
		return nil, f.cityErr
	}
	return slices.Clone(f.city), nil
}

func (f *fakeDirectory) GetSalon(_ context.Context, id int) (domain.Salon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.all {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Salon{}, &domain.RemoteError{StatusCode: 404, Message: "not found"}
}

func (f *fakeDirectory) calls() (all, nearby, city int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allCalls, f.nearbyCalls, f.cityCalls
}

func (f *fakeDirectory) setAllErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allErr = err
}

type fakeLocator struct {
	mu      sync.Mutex
	fix     domain.Fix
	err     error
	calls   int
	lastReq domain.FixRequest
}

func (f *fakeLocator) Locate(_ context.Context, req domain.FixRequest) (domain.Fix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return domain.Fix{}, f.err
	}
	return f.fix, nil
}

func (f *fakeLocator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResolver struct {
	mu    sync.Mutex
	city  string
	calls int
}

func (f *fakeResolver) CityFor(_ context.Context, _ domain.Coordinate) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.city == "" {
		return domain.UnknownCity
	}
	return f.city
}

type fakeStore struct {
	mu        sync.Mutex
	entries   map[string]string
	getErr    error
	removeErr error
	removed   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.entries, key)
	f.removed = append(f.removed, key)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []domain.Selection
	err       error
}

func (f *fakePublisher) PublishSelection(_ context.Context, sel domain.Selection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, sel)
	return nil
}

func (f *fakePublisher) last() (domain.Selection, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return domain.Selection{}, false
	}
	return f.published[len(f.published)-1], true
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeSalon(id int, name, city string, distanceKm *float64) domain.Salon {
	s := domain.Salon{
		ID:         id,
		Name:       name,
		Address:    fmt.Sprintf("Main Street %d", id),
		City:       city,
		Country:    "Finland",
		DistanceKm: distanceKm,
	}
	if distanceKm != nil {
		s.Coordinate = &domain.Coordinate{Latitude: 60.1, Longitude: 24.9}
	}
	return s
}

func km(v float64) *float64 {
	return &v
}

func makeDeps(dir *fakeDirectory, loc *fakeLocator, res *fakeResolver, store *fakeStore, pub *fakePublisher) discovery.Deps {
	deps := discovery.Deps{
		Directory:   dir,
		Store:       store,
		Ranker:      ranking.New("en"),
		RadiusKm:    50,
		FixDefaults: domain.NewFixRequest(""),
		MaxIdle:     30 * time.Minute,
		Logger:      discardLogger(),
		Metrics:     observability.NewMetricsForTesting(),
		Clock:       clockwork.NewRealClock(),
	}
	// Assign through the concrete pointers so an absent fake leaves the
	// interface nil rather than wrapping a nil pointer.
	if loc != nil {
		deps.Locator = loc
	}
	if res != nil {
		deps.Resolver = res
	}
	if pub != nil {
		deps.Publisher = pub
	}
	return deps
}

func newRegistry(t *testing.T, deps discovery.Deps) *discovery.Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return discovery.NewRegistry(ctx, deps)
}

func awaitSnapshot(t *testing.T, s *discovery.Session, cond func(discovery.Snapshot) bool) discovery.Snapshot {
	t.Helper()
	var snap discovery.Snapshot
	require.Eventually(t, func() bool {
		snap = s.Snapshot()
		return cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func salonIDs(set []domain.Salon) []int {
	ids := make([]int, 0, len(set))
	for _, s := range set {
		ids = append(ids, s.ID)
	}
	return ids
}

// --- tests ---

func TestSession_ActivateLoadsCatalog(t *testing.T) {
	dir := &fakeDirectory{all: []domain.Salon{
		makeSalon(1, "Barber Shop", "Helsinki", nil),
		makeSalon(2, "Fade Factory", "Espoo", nil),
	}}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LoadPhase == discovery.LoadReady
	})
	assert.Equal(t, discovery.SourceAll, snap.Source)
	assert.Equal(t, []int{1, 2}, salonIDs(snap.Salons))
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, discovery.LocateIdle, snap.LocatePhase)
	assert.Equal(t, domain.KindNone, snap.LastError)
}

func TestSession_NearbyReplacesCatalogWhenItArrivesLater(t *testing.T) {
	nearbyGate := make(chan struct{})
	dir := &fakeDirectory{
		all:        []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", nil), makeSalon(2, "Fade Factory", "Espoo", nil)},
		nearby:     []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", km(1.2))},
		nearbyGate: nearbyGate,
	}
	loc := &fakeLocator{fix: helsinkiFix}
	reg := newRegistry(t, makeDeps(dir, loc, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Source == discovery.SourceAll && snap.LocatePhase == discovery.LoadingNearby
	})
	assert.Equal(t, 2, snap.Total)

	close(nearbyGate)

	snap = awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Source == discovery.SourceNearby
	})
	assert.Equal(t, []int{1}, salonIDs(snap.Salons))
	assert.Equal(t, discovery.LocateReady, snap.LocatePhase)
	assert.Equal(t, "Helsinki", snap.City)
	require.NotNil(t, snap.Location)
	assert.InDelta(t, 60.1699, snap.Location.Coordinate.Latitude, 0.0001)
}

func TestSession_LateCatalogDoesNotReplaceNearby(t *testing.T) {
	allGate := make(chan struct{})
	dir := &fakeDirectory{
		all:     []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", nil), makeSalon(2, "Fade Factory", "Espoo", nil)},
		allGate: allGate,
		nearby:  []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", km(1.2))},
	}
	loc := &fakeLocator{fix: helsinkiFix}
	reg := newRegistry(t, makeDeps(dir, loc, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Source == discovery.SourceNearby
	})
	assert.Equal(t, []int{1}, salonIDs(snap.Salons))

	close(allGate)

	snap = awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LoadPhase == discovery.LoadReady
	})
	assert.Equal(t, discovery.SourceNearby, snap.Source)
	assert.Equal(t, []int{1}, salonIDs(snap.Salons))
}

func TestSession_NearbyFailureFallsBackToCatalog(t *testing.T) {
	dir := &fakeDirectory{
		all:       []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", nil), makeSalon(2, "Fade Factory", "Espoo", nil)},
		nearbyErr: &domain.RemoteError{StatusCode: 503, Message: "overloaded"},
	}
	loc := &fakeLocator{fix: helsinkiFix}
	reg := newRegistry(t, makeDeps(dir, loc, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LoadPhase == discovery.LoadReady && snap.LocatePhase == discovery.LocateReady
	})
	assert.Equal(t, discovery.SourceAll, snap.Source)
	assert.Equal(t, []int{1, 2}, salonIDs(snap.Salons))
	assert.Equal(t, domain.KindNearbyUnavailable, snap.LastError)
	require.NotNil(t, snap.Location)
}

func TestSession_LocateFailureContinuesWithoutLocation(t *testing.T) {
	dir := &fakeDirectory{all: []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", nil)}}
	loc := &fakeLocator{err: fmt.Errorf("%w: quota exceeded", domain.ErrLocationDenied)}
	reg := newRegistry(t, makeDeps(dir, loc, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LoadPhase == discovery.LoadReady && snap.LocatePhase == discovery.LocateFailed
	})
	assert.Equal(t, discovery.SourceAll, snap.Source)
	assert.Equal(t, domain.KindLocationDenied, snap.LastError)
	assert.Nil(t, snap.Location)

	_, nearbyCalls, _ := dir.calls()
	assert.Zero(t, nearbyCalls)
}

func TestSession_CatalogFailureLeavesSessionUsable(t *testing.T) {
	dir := &fakeDirectory{allErr: &domain.RemoteError{Message: "connection refused"}}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LoadPhase == discovery.LoadReady
	})
	assert.Empty(t, snap.Salons)
	assert.Zero(t, snap.Total)
	assert.Equal(t, discovery.SourceNone, snap.Source)
	assert.Equal(t, domain.KindDirectoryUnavailable, snap.LastError)
}

func TestSession_EmptyCatalogIsNotAnError(t *testing.T) {
	dir := &fakeDirectory{all: []domain.Salon{}}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LoadPhase == discovery.LoadReady
	})
	assert.Empty(t, snap.Salons)
	assert.Zero(t, snap.Total)
	assert.Equal(t, domain.KindNone, snap.LastError)
}

func TestSession_ExplicitCoordinatesSkipPositionLookup(t *testing.T) {
	dir := &fakeDirectory{
		all:    []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", nil)},
		nearby: []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", km(0.4))},
	}
	loc := &fakeLocator{fix: helsinkiFix}
	res := &fakeResolver{city: "Helsinki"}
	reg := newRegistry(t, makeDeps(dir, loc, res, newFakeStore(), nil))

	at := &domain.Coordinate{Latitude: 60.2, Longitude: 24.8}
	s := reg.Create(testClientIP, at)

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Source == discovery.SourceNearby
	})
	assert.Zero(t, loc.callCount())
	assert.Equal(t, "Helsinki", snap.City)

	dir.mu.Lock()
	gotAt, gotRadius := dir.nearbyAt, dir.nearbyRadius
	dir.mu.Unlock()
	assert.InDelta(t, 60.2, gotAt.Latitude, 0.0001)
	assert.InDelta(t, 24.8, gotAt.Longitude, 0.0001)
	assert.InDelta(t, 50, gotRadius, 0.0001)
}

func TestSession_PositionRequestCarriesClientIP(t *testing.T) {
	dir := &fakeDirectory{nearby: []domain.Salon{}}
	loc := &fakeLocator{fix: helsinkiFix}
	reg := newRegistry(t, makeDeps(dir, loc, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)

	awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LocatePhase == discovery.LocateReady
	})

	loc.mu.Lock()
	req := loc.lastReq
	loc.mu.Unlock()
	assert.Equal(t, testClientIP, req.IP)
	assert.True(t, req.HighAccuracy)
	assert.Equal(t, domain.DefaultLocateTimeout, req.Timeout)
}

func TestSession_DuplicateDirectoryEntriesDropped(t *testing.T) {
	dir := &fakeDirectory{all: []domain.Salon{
		makeSalon(1, "Barber Shop", "Helsinki", nil),
		makeSalon(2, "Fade Factory", "Espoo", nil),
		makeSalon(1, "Barber Shop Duplicate", "Helsinki", nil),
		makeSalon(3, "Clipper Club", "Vantaa", nil),
	}}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LoadPhase == discovery.LoadReady
	})
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, []int{1, 2, 3}, salonIDs(snap.Salons))
	assert.Equal(t, "Barber Shop", snap.Salons[0].Name)
}

func TestSession_FilterByCityReplacesWorkingSet(t *testing.T) {
	dir := &fakeDirectory{
		all:    []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", nil), makeSalon(2, "Fade Factory", "Espoo", nil)},
		nearby: []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", km(1.2))},
		city:   []domain.Salon{makeSalon(9, "Tampere Trims", "Tampere", nil)},
	}
	loc := &fakeLocator{fix: helsinkiFix}
	reg := newRegistry(t, makeDeps(dir, loc, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)
	awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Source == discovery.SourceNearby
	})

	s.FilterByCity("Tampere", "Finland")

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Source == discovery.SourceCity
	})
	assert.Equal(t, []int{9}, salonIDs(snap.Salons))
	assert.Equal(t, "Tampere", snap.City)
	assert.Equal(t, domain.KindNone, snap.LastError)

	dir.mu.Lock()
	city, country := dir.lastCity, dir.lastCountry
	dir.mu.Unlock()
	assert.Equal(t, "Tampere", city)
	assert.Equal(t, "Finland", country)
}

func TestSession_FilterByCityFailureKeepsWorkingSet(t *testing.T) {
	dir := &fakeDirectory{
		all:     []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", nil)},
		cityErr: &domain.RemoteError{StatusCode: 500, Message: "boom"},
	}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)
	awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Source == discovery.SourceAll
	})

	s.FilterByCity("Tampere", "")

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LastError == domain.KindDirectoryUnavailable
	})
	assert.Equal(t, discovery.SourceAll, snap.Source)
	assert.Equal(t, []int{1}, salonIDs(snap.Salons))
}

func TestSession_StaleResultsAreDiscarded(t *testing.T) {
	allGate := make(chan struct{})
	dir := &fakeDirectory{
		all:     []domain.Salon{makeSalon(1, "Barber Shop", "Helsinki", nil), makeSalon(2, "Fade Factory", "Espoo", nil)},
		allGate: allGate,
		city:    []domain.Salon{makeSalon(9, "Tampere Trims", "Tampere", nil)},
	}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), nil))

	// The catalog load parks on the gate while the city filter bumps the
	// generation past it.
	s := reg.Create(testClientIP, nil)
	s.FilterByCity("Tampere", "")

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Source == discovery.SourceCity
	})
	assert.Equal(t, uint64(2), snap.Generation)

	close(allGate)
	require.Eventually(t, func() bool {
		all, _, _ := dir.calls()
		return all == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Never(t, func() bool {
		return s.Snapshot().Source != discovery.SourceCity
	}, 200*time.Millisecond, 10*time.Millisecond)

	snap = s.Snapshot()
	assert.Equal(t, []int{9}, salonIDs(snap.Salons))
	assert.Equal(t, discovery.LoadingAll, snap.LoadPhase)
}

func TestSession_ReloadBumpsGenerationAndKeepsView(t *testing.T) {
	dir := &fakeDirectory{all: []domain.Salon{
		makeSalon(1, "Barber Shop", "Helsinki", nil),
		makeSalon(2, "Fade Factory", "Espoo", nil),
	}}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)
	awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LoadPhase == discovery.LoadReady
	})

	s.SetQuery("bar")
	s.SetSortKey(domain.SortByName)
	s.Reload()

	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Generation == 2 && snap.LoadPhase == discovery.LoadReady
	})
	assert.Equal(t, "bar", snap.Query)
	assert.Equal(t, domain.SortByName, snap.SortKey)
	assert.Equal(t, []int{1}, salonIDs(snap.Salons))
	assert.Equal(t, 2, snap.Total)

	all, _, _ := dir.calls()
	assert.Equal(t, 2, all)
}

func TestSession_SnapshotFiltersAndSorts(t *testing.T) {
	dir := &fakeDirectory{all: []domain.Salon{
		makeSalon(1, "Shear Genius", "Helsinki", km(9.8)),
		makeSalon(2, "Barber Shop", "Helsinki", km(4.2)),
		makeSalon(3, "Fade Factory", "Espoo", nil),
		makeSalon(4, "Barbican Cuts", "Vantaa", km(1.1)),
	}}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)
	awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.LoadPhase == discovery.LoadReady
	})

	s.SetQuery("bar")
	snap := s.Snapshot()
	if diff := cmp.Diff([]int{4, 2}, salonIDs(snap.Salons)); diff != "" {
		t.Fatalf("ranked ids mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, snap.Total)

	s.SetQuery("")
	s.SetSortKey(domain.SortByName)
	snap = s.Snapshot()
	if diff := cmp.Diff([]int{2, 4, 3, 1}, salonIDs(snap.Salons)); diff != "" {
		t.Fatalf("ranked ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_SnapshotIsDeepCopy(t *testing.T) {
	dir := &fakeDirectory{nearby: []domain.Salon{
		func() domain.Salon {
			s := makeSalon(1, "Barber Shop", "Helsinki", km(1.2))
			s.Barbers = []domain.Barber{{ID: 10, Name: "Maija"}}
			return s
		}(),
	}}
	loc := &fakeLocator{fix: helsinkiFix}
	reg := newRegistry(t, makeDeps(dir, loc, nil, newFakeStore(), nil))

	s := reg.Create(testClientIP, nil)
	snap := awaitSnapshot(t, s, func(snap discovery.Snapshot) bool {
		return snap.Source == discovery.SourceNearby
	})

	snap.Salons[0].Name = "Mutated"
	*snap.Salons[0].DistanceKm = 999
	snap.Salons[0].Barbers[0].Name = "Mutated"
	snap.Location.City = "Mutated"

	fresh := s.Snapshot()
	assert.Equal(t, "Barber Shop", fresh.Salons[0].Name)
	assert.InDelta(t, 1.2, *fresh.Salons[0].DistanceKm, 0.0001)
	assert.Equal(t, "Maija", fresh.Salons[0].Barbers[0].Name)
	assert.Equal(t, "Helsinki", fresh.Location.City)
}

func TestSession_SelectRoutesToBookingOnParkedStyle(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	dir := &fakeDirectory{all: []domain.Salon{makeSalon(7, "Barber Shop", "Helsinki", nil)}}
	reg := newRegistry(t, makeDeps(dir, nil, nil, store, pub))

	s := reg.Create(testClientIP, nil)
	key := s.ID() + ":7:style"
	store.mu.Lock()
	store.entries[key] = "style-3"
	store.mu.Unlock()

	route := s.Select(context.Background(), 7)

	assert.Equal(t, domain.RouteBooking, route.Kind)
	assert.Equal(t, 7, route.SalonID)
	assert.Equal(t, "style-3", route.StyleID)

	store.mu.Lock()
	_, still := store.entries[key]
	removed := slices.Clone(store.removed)
	store.mu.Unlock()
	assert.False(t, still)
	assert.Equal(t, []string{key}, removed)

	sel, ok := pub.last()
	require.True(t, ok)
	assert.Equal(t, s.ID(), sel.SessionID)
	assert.Equal(t, 7, sel.SalonID)
	assert.Equal(t, "style-3", sel.StyleID)
	assert.Equal(t, domain.RouteBooking, sel.Route)
	assert.False(t, sel.OccurredAt.IsZero())
}

func TestSession_SelectRoutesToDetailWithoutHandoff(t *testing.T) {
	pub := &fakePublisher{}
	dir := &fakeDirectory{all: []domain.Salon{makeSalon(7, "Barber Shop", "Helsinki", nil)}}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), pub))

	s := reg.Create(testClientIP, nil)
	route := s.Select(context.Background(), 7)

	assert.Equal(t, domain.RouteDetail, route.Kind)
	assert.Equal(t, 7, route.SalonID)
	assert.Empty(t, route.StyleID)

	sel, ok := pub.last()
	require.True(t, ok)
	assert.Equal(t, domain.RouteDetail, sel.Route)
	assert.Empty(t, sel.StyleID)
}

func TestSession_SelectDegradesToDetailOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.getErr = fmt.Errorf("connection reset")
	dir := &fakeDirectory{}
	reg := newRegistry(t, makeDeps(dir, nil, nil, store, nil))

	s := reg.Create(testClientIP, nil)
	route := s.Select(context.Background(), 7)

	assert.Equal(t, domain.RouteDetail, route.Kind)
	assert.Empty(t, route.StyleID)
}

func TestSession_SelectKeepsBookingWhenRemoveFails(t *testing.T) {
	store := newFakeStore()
	dir := &fakeDirectory{}
	reg := newRegistry(t, makeDeps(dir, nil, nil, store, nil))

	s := reg.Create(testClientIP, nil)
	store.mu.Lock()
	store.entries[s.ID()+":7:style"] = "style-3"
	store.removeErr = fmt.Errorf("connection reset")
	store.mu.Unlock()

	route := s.Select(context.Background(), 7)

	assert.Equal(t, domain.RouteBooking, route.Kind)
	assert.Equal(t, "style-3", route.StyleID)
}

func TestSession_SelectSurvivesPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: fmt.Errorf("broker down")}
	dir := &fakeDirectory{}
	reg := newRegistry(t, makeDeps(dir, nil, nil, newFakeStore(), pub))

	s := reg.Create(testClientIP, nil)
	route := s.Select(context.Background(), 7)

	assert.Equal(t, domain.RouteDetail, route.Kind)
}
