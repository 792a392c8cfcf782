package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/cyanwatch/internal/backend"
	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/events"
	"github.com/tphakala/cyanwatch/internal/location"
	"github.com/tphakala/cyanwatch/internal/syncengine"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	mu      sync.Mutex
	records map[location.DataType][]backend.LocationRecord
	listErr error
	onList  func(location.DataType)
	added   []location.Location
	edited  []location.Location
	deleted []location.Key
}

func (b *fakeBackend) ListLocations(_ context.Context, t location.DataType) ([]backend.LocationRecord, error) {
	b.mu.Lock()
	onList, err, recs := b.onList, b.listErr, b.records[t]
	b.mu.Unlock()
	if onList != nil {
		onList(t)
	}
	return recs, err
}

func (b *fakeBackend) AddLocation(_ context.Context, loc location.Location) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.added = append(b.added, loc)
	return nil
}

func (b *fakeBackend) EditLocation(_ context.Context, loc location.Location) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edited = append(b.edited, loc)
	return nil
}

func (b *fakeBackend) DeleteLocation(_ context.Context, id int, t location.DataType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, location.Key{ID: id, Type: t})
	return nil
}

type gatedFetcher struct {
	mu    sync.Mutex
	gate  chan struct{}
	calls int
}

func (f *gatedFetcher) Fetch(ctx context.Context, _ location.Location) (*location.Response, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &location.Response{
		MetaInfo: location.MetaInfo{LocationName: "Lake Okeechobee"},
		Outputs:  []location.DataPoint{{ImageDate: "2024-06-08", CellConcentration: 42}},
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) TryPublish(ev events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *recordingPublisher) count(kind events.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Kind() == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	store   *Store
	engine  *syncengine.Engine
	backend *fakeBackend
	fetcher *gatedFetcher
	pub     *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: &fakeBackend{records: map[location.DataType][]backend.LocationRecord{}},
		fetcher: &gatedFetcher{},
		pub:     &recordingPublisher{},
	}
	var err error
	f.engine, err = syncengine.New(syncengine.Config{Fetcher: f.fetcher, Publisher: f.pub})
	require.NoError(t, err)
	f.store, err = New(Config{Backend: f.backend, Syncer: f.engine, Publisher: f.pub, DataType: location.Weekly})
	require.NoError(t, err)
	t.Cleanup(func() { f.settle(t) })
	return f
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Wait(ctx))
	f.store.Wait()
}

func TestCreateAssignsMaxPlusOne(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	a := f.store.Create(ctx, CreateParams{Name: "A", Latitude: 10.5, Longitude: -20.25})
	b := f.store.Create(ctx, CreateParams{Name: "B"})
	assert.Equal(t, 0, a.ID)
	assert.Equal(t, 1, b.ID)
	assert.Equal(t, location.Weekly, a.Type)
	assert.False(t, a.Marked)
	assert.False(t, a.Compare)
	assert.NotNil(t, a.Notes)
	assert.Equal(t, "N", a.LatDMS.Dir)
	assert.Equal(t, "W", a.LonDMS.Dir)
	assert.Equal(t, 20, a.LonDMS.Deg)
	assert.Equal(t, 15, a.LonDMS.Min)

	f.store.Delete(ctx, a)
	c := f.store.Create(ctx, CreateParams{Name: "C"})
	assert.Equal(t, 2, c.ID)

	f.settle(t)
	f.backend.mu.Lock()
	assert.Len(t, f.backend.added, 3)
	f.backend.mu.Unlock()
}

func TestCreateStartsEnrichment(t *testing.T) {
	f := newFixture(t)

	loc := f.store.Create(t.Context(), CreateParams{Name: "Update this", Latitude: 27, Longitude: -80.8})
	f.settle(t)

	got, ok := f.store.Get(loc.Key())
	require.True(t, ok)
	assert.Equal(t, 42, got.CellConcentration)
	assert.Equal(t, location.ChangeDateNA, got.ChangeDate)
	assert.Equal(t, "Lake Okeechobee -- 1", got.Name)

	// provider rename is persisted
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	require.Len(t, f.backend.edited, 1)
	assert.Equal(t, "Lake Okeechobee -- 1", f.backend.edited[0].Name)
}

func TestUpdateRenamesByID(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	loc := f.store.Create(ctx, CreateParams{Name: "Pond"})
	f.settle(t)

	f.store.Update(ctx, "Big Pond", loc)
	f.store.Update(ctx, "Nowhere", location.Location{ID: 99, Type: location.Weekly})
	f.settle(t)

	got, _ := f.store.Get(loc.Key())
	assert.Equal(t, "Big Pond", got.Name)
	assert.Len(t, f.store.Locations(), 1)

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	require.Len(t, f.backend.edited, 1)
	assert.Equal(t, "Big Pond", f.backend.edited[0].Name)
}

func TestDeleteIsIdempotentAndLeavesCompare(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	loc := f.store.Create(ctx, CreateParams{Name: "Pond"})
	f.store.AddToCompare(ctx, loc)
	require.Len(t, f.store.CompareLocations(), 1)

	f.store.Delete(ctx, loc)
	f.store.Delete(ctx, loc)
	f.settle(t)

	assert.Empty(t, f.store.Locations())
	assert.Empty(t, f.store.CompareLocations())
	assert.Equal(t, 1, f.pub.count(events.KindLocationRemoved))

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	assert.Equal(t, []location.Key{loc.Key()}, f.backend.deleted)
}

func TestCompareMembership(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	a := f.store.Create(ctx, CreateParams{Name: "A"})
	b := f.store.Create(ctx, CreateParams{Name: "B"})
	f.settle(t)
	before := f.pub.count(events.KindCompareChanged)

	f.store.AddToCompare(ctx, b)
	f.store.AddToCompare(ctx, a)
	// already a member, by identity
	b.Name = "different"
	f.store.AddToCompare(ctx, b)

	compare := f.store.CompareLocations()
	require.Len(t, compare, 2)
	assert.Equal(t, "B", compare[0].Name)
	assert.True(t, compare[0].Compare)
	assert.Equal(t, before+2, f.pub.count(events.KindCompareChanged))

	f.store.RemoveFromCompare(ctx, b)
	f.store.RemoveFromCompare(ctx, b)
	compare = f.store.CompareLocations()
	require.Len(t, compare, 1)
	assert.Equal(t, "A", compare[0].Name)
	got, _ := f.store.Get(b.Key())
	assert.False(t, got.Compare)
	assert.Equal(t, before+3, f.pub.count(events.KindCompareChanged))
}

func TestLoadBuildsCollectionAndSyncs(t *testing.T) {
	f := newFixture(t)
	f.backend.records[location.Weekly] = []backend.LocationRecord{
		{ID: 4, Name: "Marked", Latitude: 41.8675, Longitude: -87.6167, Marked: true, Compare: true, Notes: []string{"n"}},
		{ID: 7, Name: "Other", Latitude: -33.5, Longitude: 151.25},
	}

	require.NoError(t, f.store.Load(t.Context()))
	f.settle(t)

	locs := f.store.Locations()
	require.Len(t, locs, 2)
	assert.Equal(t, location.Weekly, locs[0].Type)
	assert.Equal(t, 41, locs[0].LatDMS.Deg)
	assert.Equal(t, "S", locs[1].LatDMS.Dir)
	assert.Equal(t, []string{"n"}, locs[0].Notes)
	assert.Equal(t, 42, locs[0].CellConcentration)
	assert.Equal(t, 42, locs[1].CellConcentration)

	compare := f.store.CompareLocations()
	require.Len(t, compare, 1)
	assert.Equal(t, 4, compare[0].ID)
	assert.Equal(t, 2, f.fetcher.calls)
}

func TestSetDataTypeClearsEverythingBeforeReload(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.backend.records[location.Weekly] = []backend.LocationRecord{{ID: 1, Name: "W", Compare: true}}
	f.backend.records[location.Daily] = []backend.LocationRecord{{ID: 1, Name: "D"}}

	require.NoError(t, f.store.Load(ctx))
	f.settle(t)
	weeklyKey := location.Key{ID: 1, Type: location.Weekly}
	_, cached := f.engine.Response(weeklyKey)
	require.True(t, cached)

	var sawLocations, sawCompare int
	var sawCache bool
	f.backend.onList = func(location.DataType) {
		sawLocations = len(f.store.Locations())
		sawCompare = len(f.store.CompareLocations())
		_, sawCache = f.engine.Response(weeklyKey)
	}

	require.NoError(t, f.store.SetDataType(ctx, location.Daily))
	f.settle(t)

	assert.Zero(t, sawLocations)
	assert.Zero(t, sawCompare)
	assert.False(t, sawCache)
	assert.Equal(t, 1, f.pub.count(events.KindLocationsReset))

	locs := f.store.Locations()
	require.Len(t, locs, 1)
	assert.Equal(t, "D", locs[0].Name)
	assert.Equal(t, location.Daily, locs[0].Type)
	assert.Empty(t, f.store.CompareLocations())

	// same type is a no-op
	f.backend.onList = nil
	calls := f.fetcher.calls
	require.NoError(t, f.store.SetDataType(ctx, location.Daily))
	assert.Equal(t, calls, f.fetcher.calls)
	assert.Equal(t, 1, f.pub.count(events.KindLocationsReset))
}

func TestDeleteWhileFetchInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.fetcher.gate = make(chan struct{})

	loc := f.store.Create(ctx, CreateParams{Name: "Short lived"})
	require.Equal(t, 1, f.engine.Pending())

	f.store.Delete(ctx, loc)
	close(f.fetcher.gate)
	f.settle(t)

	assert.Equal(t, 0, f.engine.Pending())
	assert.Empty(t, f.store.Locations())
	_, cached := f.engine.Response(loc.Key())
	assert.False(t, cached)
}

func TestLoadUnauthorizedIsSilent(t *testing.T) {
	f := newFixture(t)
	f.backend.listErr = errors.New(backend.ErrUnauthorized).
		Category(errors.CategoryAuthorization).
		Build()

	require.NoError(t, f.store.Load(t.Context()))
	assert.Empty(t, f.store.Locations())
}

func TestMarkAndNotes(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	loc := f.store.Create(ctx, CreateParams{Name: "Pond"})

	f.store.SetMarked(ctx, loc, true)
	f.store.SetMarked(ctx, loc, true)
	f.store.AddNote(ctx, loc, "algae visible")
	f.settle(t)

	got, _ := f.store.Get(loc.Key())
	assert.True(t, got.Marked)
	assert.Equal(t, []string{"algae visible"}, got.Notes)

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	assert.Len(t, f.backend.edited, 2)
}

func TestLoadTwiceKeepsEnrichment(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.backend.records[location.Weekly] = []backend.LocationRecord{
		{ID: 3, Name: "Reservoir", Latitude: 27, Longitude: -80.8, Compare: true},
	}
	key := location.Key{ID: 3, Type: location.Weekly}

	require.NoError(t, f.store.Load(ctx))
	f.settle(t)
	first, ok := f.store.Get(key)
	require.True(t, ok)
	require.Equal(t, 42, first.CellConcentration)

	require.NoError(t, f.store.Load(ctx))
	f.settle(t)

	got, ok := f.store.Get(key)
	require.True(t, ok)
	assert.Equal(t, 42, got.CellConcentration)
	assert.Equal(t, first.DataDate, got.DataDate)
	assert.Equal(t, first.ChangeDate, got.ChangeDate)
	assert.Equal(t, "Reservoir", got.Name)

	compare := f.store.CompareLocations()
	require.Len(t, compare, 1)
	assert.Equal(t, 42, compare[0].CellConcentration)

	// served from the cache, not refetched
	f.fetcher.mu.Lock()
	defer f.fetcher.mu.Unlock()
	assert.Equal(t, 1, f.fetcher.calls)
}

func TestUpdateSameNameStillPersists(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	loc := f.store.Create(ctx, CreateParams{Name: "Pond"})
	f.settle(t)

	f.store.Update(ctx, "Pond", loc)
	f.settle(t)

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	require.Len(t, f.backend.edited, 1)
	assert.Equal(t, "Pond", f.backend.edited[0].Name)
}

func TestRecreatedIDIsEnrichedAgain(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	loc := f.store.Create(ctx, CreateParams{Name: "Pond"})
	f.settle(t)
	f.store.Delete(ctx, loc)
	f.settle(t)
	_, cached := f.engine.Response(loc.Key())
	require.False(t, cached)

	again := f.store.Create(ctx, CreateParams{Name: "Pond again"})
	require.Equal(t, loc.ID, again.ID)
	f.settle(t)

	got, ok := f.store.Get(again.Key())
	require.True(t, ok)
	assert.Equal(t, 42, got.CellConcentration)
	f.fetcher.mu.Lock()
	defer f.fetcher.mu.Unlock()
	assert.Equal(t, 2, f.fetcher.calls)
}
