// Package syncengine fans out enrichment fetches across the location
// collection, merges results back by (id, type), discards stale results and
// reports aggregate progress.
package syncengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/events"
	"github.com/tphakala/cyanwatch/internal/location"
	"github.com/tphakala/cyanwatch/internal/logger"
	"github.com/tphakala/cyanwatch/internal/observability/metrics"
)

// DefaultCacheTTL is how long an applied response keeps a location from
// being fetched again.
const DefaultCacheTTL = 6 * time.Hour

// Fetcher retrieves provider data for one location.
type Fetcher interface {
	Fetch(ctx context.Context, loc location.Location) (*location.Response, error)
}

// EnrichFunc derives the new state of a live location. names are all names
// currently in the collection. Returning false abandons the update.
type EnrichFunc func(current location.Location, names []string) (location.Location, bool)

// Collection is the live location collection results are merged into.
type Collection interface {
	// ApplyEnrichment looks up key and, if present, replaces the entity with
	// fn's result atomically. It reports false when key is absent or fn
	// abandoned the update.
	ApplyEnrichment(key location.Key, fn EnrichFunc) (location.Location, bool)
}

// Operation is one SyncAll call's share of the outstanding fetches.
type Operation struct {
	ID        uuid.UUID
	Total     int
	Issued    int
	Completed int
	Started   time.Time
}

// Pending returns the number of fetches not yet settled.
func (o Operation) Pending() int {
	return o.Total - o.Completed
}

// Config holds engine dependencies.
type Config struct {
	Fetcher   Fetcher
	Publisher events.Publisher
	Metrics   *metrics.SyncMetrics
	// Username stamps the owner of enriched locations
	Username func() string
	CacheTTL time.Duration
}

// Engine is safe for concurrent use.
type Engine struct {
	fetcher   Fetcher
	publisher events.Publisher
	metrics   *metrics.SyncMetrics
	username  func() string

	// locations with applied data, keyed by cacheKey
	cache *cache.Cache

	mu       sync.Mutex
	inFlight map[location.Key]uint64
	seq      uint64
	active   map[uuid.UUID]*Operation
	progress float64

	generation atomic.Uint64
	wg         sync.WaitGroup

	log logger.Logger
}

// New creates an engine. Fetcher is required.
func New(config Config) (*Engine, error) {
	if config.Fetcher == nil {
		return nil, errors.Newf("fetcher is required").
			Component("syncengine").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.Username == nil {
		config.Username = func() string { return "" }
	}

	return &Engine{
		fetcher:   config.Fetcher,
		publisher: config.Publisher,
		metrics:   config.Metrics,
		username:  config.Username,
		cache:     cache.New(config.CacheTTL, config.CacheTTL/2),
		inFlight:  make(map[location.Key]uint64),
		active:    make(map[uuid.UUID]*Operation),
		log:       GetLogger(),
	}, nil
}

func cacheKey(key location.Key) string {
	return fmt.Sprintf("%s/%d", key.Type, key.ID)
}

// issued is one fetch together with the marker that identifies it
type issued struct {
	loc location.Location
	seq uint64
}

// SyncAll issues one concurrent fetch for every location that has no cached
// data and no fetch outstanding. It returns the registered operation, or nil
// when nothing needed fetching. Every issued fetch settles exactly once.
func (e *Engine) SyncAll(ctx context.Context, coll Collection, locs []location.Location) *Operation {
	e.mu.Lock()
	gen := e.generation.Load()

	batch := make([]issued, 0, len(locs))
	for i := range locs {
		key := locs[i].Key()
		if _, cached := e.cache.Get(cacheKey(key)); cached {
			continue
		}
		if _, busy := e.inFlight[key]; busy {
			continue
		}
		e.seq++
		e.inFlight[key] = e.seq
		batch = append(batch, issued{loc: locs[i].Clone(), seq: e.seq})
	}

	if len(batch) == 0 {
		e.mu.Unlock()
		return nil
	}

	op := &Operation{
		ID:      uuid.New(),
		Total:   len(batch),
		Issued:  len(batch),
		Started: time.Now(),
	}
	e.active[op.ID] = op
	e.wg.Add(len(batch))
	pending, _ := e.aggregateLocked()
	snapshot := *op
	e.mu.Unlock()

	e.metrics.SetInFlight(pending)
	e.metrics.RecordOperation(metrics.OpSyncAll, metrics.StatusSuccess)
	e.log.Debug("sync started",
		logger.String("operation_id", op.ID.String()),
		logger.Int("issued", len(batch)),
		logger.Int("skipped", len(locs)-len(batch)))

	for _, item := range batch {
		go e.fetch(ctx, coll, op, gen, item)
	}

	return &snapshot
}

func (e *Engine) fetch(ctx context.Context, coll Collection, op *Operation, gen uint64, item issued) {
	defer e.wg.Done()

	start := time.Now()
	resp, err := e.fetcher.Fetch(ctx, item.loc)
	e.settle(coll, op, gen, item, resp, err, time.Since(start))
}

// settle applies or discards one result and advances progress.
func (e *Engine) settle(coll Collection, op *Operation, gen uint64, item issued, resp *location.Response, fetchErr error, elapsed time.Duration) {
	key := item.loc.Key()

	e.mu.Lock()
	if e.generation.Load() != gen {
		// Reset already dropped this operation
		e.mu.Unlock()
		e.metrics.RecordFetch(metrics.StatusStale, elapsed.Seconds())
		return
	}
	current := e.inFlight[key] == item.seq
	if current {
		delete(e.inFlight, key)
	}
	e.mu.Unlock()

	status := metrics.StatusSuccess
	switch {
	case fetchErr != nil:
		status = metrics.StatusError
		e.metrics.RecordError(metrics.OpFetch, errorType(fetchErr))
		e.log.Debug("enrichment fetch failed",
			logger.Int("location_id", key.ID),
			logger.String("type", key.Type.String()),
			logger.Error(fetchErr))
	case !current:
		status = metrics.StatusStale
	default:
		updated, ok := coll.ApplyEnrichment(key, func(live location.Location, names []string) (location.Location, bool) {
			// the cache write shares the collection lock with removal, so a
			// Forget that follows a removal always sees the entry
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.generation.Load() != gen {
				return live, false
			}
			e.cache.SetDefault(cacheKey(key), resp)
			return location.CreateEnriched(live, e.username(), resp, names), true
		})
		if !ok {
			status = metrics.StatusStale
			e.log.Debug("discarding result for removed location",
				logger.Int("location_id", key.ID),
				logger.String("type", key.Type.String()))
			break
		}
		e.publish(events.LocationChanged{Location: updated})
	}
	e.metrics.RecordFetch(status, elapsed.Seconds())

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation.Load() != gen {
		return
	}

	op.Completed++
	pending, total := e.aggregateLocked()
	e.metrics.SetInFlight(pending)

	if pending > 0 {
		e.progress = 100 * (1 - float64(pending)/float64(total))
		e.metrics.SetProgress(e.progress)
		e.publish(events.SyncProgress{
			OperationID: op.ID.String(),
			Percent:     e.progress,
			Pending:     pending,
			Total:       total,
		})
		return
	}

	e.publish(events.SyncProgress{OperationID: op.ID.String(), Percent: 100, Total: total})
	e.publish(events.SyncDone{})
	clear(e.active)
	e.progress = 0
	e.metrics.SetProgress(0)
	e.log.Debug("sync done", logger.Int("settled", total))
}

// aggregateLocked sums pending and total over all active operations so that
// overlapping SyncAll calls share one progress value.
func (e *Engine) aggregateLocked() (pending, total int) {
	for _, op := range e.active {
		pending += op.Pending()
		total += op.Total
	}
	return pending, total
}

func (e *Engine) publish(ev events.Event) {
	if e.publisher != nil {
		e.publisher.TryPublish(ev)
	}
}

func errorType(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return string(errors.CategoryGeneric)
}

// Forget drops cached data and any outstanding fetch marker for key, so a
// late result is discarded and a future SyncAll fetches it again.
func (e *Engine) Forget(key location.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Delete(cacheKey(key))
	delete(e.inFlight, key)
}

// Reset discards all cached data, in-flight markers and active operations.
// Results of fetches issued before Reset are discarded on arrival.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation.Add(1)
	e.cache.Flush()
	clear(e.inFlight)
	clear(e.active)
	e.progress = 0
	e.metrics.SetInFlight(0)
	e.metrics.SetProgress(0)
	e.log.Debug("sync state reset")
}

// Response returns the cached provider response for key.
func (e *Engine) Response(key location.Key) (*location.Response, bool) {
	v, ok := e.cache.Get(cacheKey(key))
	if !ok {
		return nil, false
	}
	resp, ok := v.(*location.Response)
	return resp, ok
}

// Restore re-applies the cached response for loc, if any, as if it had just
// been fetched. Locations rebuilt from stored records carry no sensor data,
// and SyncAll skips cached keys, so a reload must restore them here.
func (e *Engine) Restore(loc location.Location, names []string) (location.Location, bool) {
	resp, ok := e.Response(loc.Key())
	if !ok {
		return loc, false
	}
	return location.CreateEnriched(loc, e.username(), resp, names), true
}

// Progress returns the last published progress, 0 when idle.
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Pending returns the number of unsettled fetches across active operations.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending, _ := e.aggregateLocked()
	return pending
}

// Operations returns copies of the active operations.
func (e *Engine) Operations() []Operation {
	e.mu.Lock()
	defer e.mu.Unlock()
	ops := make([]Operation, 0, len(e.active))
	for _, op := range e.active {
		ops = append(ops, *op)
	}
	return ops
}

// Wait blocks until every issued fetch has settled or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("syncengine").
			Category(errors.CategoryCancellation).
			Context("pending", e.Pending()).
			Build()
	}
}

// GetLogger returns the sync engine module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("syncengine")
}
