// Package store owns the live location collection and its compare subset.
// All mutation goes through Store methods; callers receive copies.
package store

import (
	"context"
	"slices"
	"sync"

	"github.com/tphakala/cyanwatch/internal/backend"
	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/events"
	"github.com/tphakala/cyanwatch/internal/location"
	"github.com/tphakala/cyanwatch/internal/logger"
	"github.com/tphakala/cyanwatch/internal/syncengine"
)

// Backend persists user locations.
type Backend interface {
	ListLocations(ctx context.Context, dataType location.DataType) ([]backend.LocationRecord, error)
	AddLocation(ctx context.Context, loc location.Location) error
	EditLocation(ctx context.Context, loc location.Location) error
	DeleteLocation(ctx context.Context, id int, dataType location.DataType) error
}

// Syncer is the enrichment side the store delegates to.
type Syncer interface {
	SyncAll(ctx context.Context, coll syncengine.Collection, locs []location.Location) *syncengine.Operation
	Forget(key location.Key)
	Reset()
	Restore(loc location.Location, names []string) (location.Location, bool)
}

// Config holds store dependencies.
type Config struct {
	Backend   Backend
	Syncer    Syncer
	Publisher events.Publisher
	DataType  location.DataType
}

// CreateParams describes a new location.
type CreateParams struct {
	Name                 string
	Latitude             float64
	Longitude            float64
	CellConcentration    int
	MaxCellConcentration float64
	ConcentrationChange  *int
	DataDate             string
	Source               string
}

// Store is safe for concurrent use.
type Store struct {
	backend   Backend
	syncer    Syncer
	publisher events.Publisher

	mu          sync.RWMutex
	dataType    location.DataType
	locations   []location.Location
	compareKeys []location.Key

	// background persistence calls
	wg sync.WaitGroup

	log logger.Logger
}

// New creates an empty store for the given data type.
func New(config Config) (*Store, error) {
	if config.Backend == nil || config.Syncer == nil {
		return nil, errors.Newf("backend and syncer are required").
			Component("store").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.DataType == "" {
		config.DataType = location.Weekly
	}
	return &Store{
		backend:   config.Backend,
		syncer:    config.Syncer,
		publisher: config.Publisher,
		dataType:  config.DataType,
		log:       GetLogger(),
	}, nil
}

// DataType returns the current global series selection.
func (s *Store) DataType() location.DataType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataType
}

// Locations returns a snapshot of the live collection.
func (s *Store) Locations() []location.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.locations)
}

// CompareLocations returns a snapshot of the compare subset in insertion order.
func (s *Store) CompareLocations() []location.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compareSnapshotLocked()
}

// Get returns a copy of the location with key.
func (s *Store) Get(key location.Key) (location.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(key); i >= 0 {
		return s.locations[i].Clone(), true
	}
	return location.Location{}, false
}

// Create allocates the next id, appends the location, persists it in the
// background and starts its enrichment.
func (s *Store) Create(ctx context.Context, p CreateParams) location.Location {
	s.mu.Lock()
	id := 0
	for i := range s.locations {
		id = max(id, s.locations[i].ID+1)
	}
	loc := location.Location{
		ID:                   id,
		Type:                 s.dataType,
		Name:                 p.Name,
		CellConcentration:    p.CellConcentration,
		MaxCellConcentration: p.MaxCellConcentration,
		DataDate:             p.DataDate,
		Source:               p.Source,
		Notes:                []string{},
	}
	if p.ConcentrationChange != nil {
		v := *p.ConcentrationChange
		loc.ConcentrationChange = &v
	}
	loc.SetPosition(p.Latitude, p.Longitude)
	s.locations = append(s.locations, loc)
	s.mu.Unlock()

	s.publish(events.LocationChanged{Location: loc.Clone()})
	s.persist(ctx, "add", loc, s.backend.AddLocation)
	s.syncer.SyncAll(ctx, s, []location.Location{loc.Clone()})

	s.log.Debug("location created",
		logger.Int("location_id", loc.ID),
		logger.String("type", loc.Type.String()))

	return loc.Clone()
}

// Update renames the location with loc's id and persists it, even when the
// name is unchanged. No-op when absent.
func (s *Store) Update(ctx context.Context, name string, loc location.Location) {
	s.edit(ctx, loc.Key(), func(l *location.Location) bool {
		l.Name = name
		return true
	})
}

// SetMarked sets the marked flag.
func (s *Store) SetMarked(ctx context.Context, loc location.Location, marked bool) {
	s.edit(ctx, loc.Key(), func(l *location.Location) bool {
		if l.Marked == marked {
			return false
		}
		l.Marked = marked
		return true
	})
}

// AddNote appends a note.
func (s *Store) AddNote(ctx context.Context, loc location.Location, note string) {
	s.edit(ctx, loc.Key(), func(l *location.Location) bool {
		l.Notes = append(l.Notes, note)
		return true
	})
}

// edit applies fn to the live entity and persists the result when fn
// reports a change.
func (s *Store) edit(ctx context.Context, key location.Key, fn func(*location.Location) bool) {
	s.mu.Lock()
	i := s.indexLocked(key)
	if i < 0 || !fn(&s.locations[i]) {
		s.mu.Unlock()
		return
	}
	updated := s.locations[i].Clone()
	inCompare := slices.Contains(s.compareKeys, key)
	var compare []location.Location
	if inCompare {
		compare = s.compareSnapshotLocked()
	}
	s.mu.Unlock()

	s.publish(events.LocationChanged{Location: updated})
	if inCompare {
		s.publish(events.CompareChanged{Locations: compare})
	}
	s.persist(ctx, "edit", updated, s.backend.EditLocation)
}

// Delete removes the location from the collection and the compare subset.
// Deleting an absent location is a no-op.
func (s *Store) Delete(ctx context.Context, loc location.Location) {
	key := loc.Key()

	s.mu.Lock()
	i := s.indexLocked(key)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.locations = slices.Delete(s.locations, i, i+1)
	before := len(s.compareKeys)
	s.compareKeys = slices.DeleteFunc(s.compareKeys, func(k location.Key) bool { return k == key })
	compareChanged := len(s.compareKeys) != before
	compare := s.compareSnapshotLocked()
	s.mu.Unlock()

	s.syncer.Forget(key)
	s.publish(events.LocationRemoved{Key: key})
	if compareChanged {
		s.publish(events.CompareChanged{Locations: compare})
	}

	s.wg.Go(func() {
		err := s.backend.DeleteLocation(context.WithoutCancel(ctx), key.ID, key.Type)
		s.logPersistError("delete", key, err)
	})
}

// AddToCompare adds the location to the compare subset. No-op when already a
// member or absent.
func (s *Store) AddToCompare(ctx context.Context, loc location.Location) {
	s.setCompare(ctx, loc.Key(), true)
}

// RemoveFromCompare removes the location from the compare subset.
func (s *Store) RemoveFromCompare(ctx context.Context, loc location.Location) {
	s.setCompare(ctx, loc.Key(), false)
}

func (s *Store) setCompare(ctx context.Context, key location.Key, member bool) {
	s.mu.Lock()
	i := s.indexLocked(key)
	if i < 0 || slices.Contains(s.compareKeys, key) == member {
		s.mu.Unlock()
		return
	}
	if member {
		s.compareKeys = append(s.compareKeys, key)
	} else {
		s.compareKeys = slices.DeleteFunc(s.compareKeys, func(k location.Key) bool { return k == key })
	}
	s.locations[i].Compare = member
	updated := s.locations[i].Clone()
	compare := s.compareSnapshotLocked()
	s.mu.Unlock()

	s.publish(events.CompareChanged{Locations: compare})
	s.persist(ctx, "edit", updated, s.backend.EditLocation)
}

// SetDataType switches the global series. When it differs from the current
// one, all locations, the compare subset and all enrichment state are
// discarded before the collection is reloaded under the new type.
func (s *Store) SetDataType(ctx context.Context, dataType location.DataType) error {
	s.mu.Lock()
	if dataType == s.dataType {
		s.mu.Unlock()
		return nil
	}
	s.dataType = dataType
	s.locations = nil
	s.compareKeys = nil
	s.mu.Unlock()

	s.syncer.Reset()
	s.publish(events.LocationsReset{DataType: dataType})
	s.publish(events.CompareChanged{Locations: []location.Location{}})

	s.log.Info("data type changed, reloading", logger.String("type", dataType.String()))
	return s.Load(ctx)
}

// Load replaces the collection with the user's persisted locations for the
// current data type and starts enrichment. An unauthorized session leaves the
// collection untouched and is not an error.
func (s *Store) Load(ctx context.Context) error {
	dataType := s.DataType()

	records, err := s.backend.ListLocations(ctx, dataType)
	if err != nil {
		if errors.IsUnauthorized(err) {
			s.log.Warn("location load skipped, not authorized")
			return nil
		}
		return err
	}

	locs := make([]location.Location, 0, len(records))
	var compareKeys []location.Key
	for _, r := range records {
		loc := location.Location{
			ID:      r.ID,
			Type:    dataType,
			Name:    r.Name,
			Marked:  r.Marked,
			Compare: r.Compare,
			Notes:   slices.Clone(r.Notes),
		}
		if loc.Notes == nil {
			loc.Notes = []string{}
		}
		loc.SetPosition(r.Latitude, r.Longitude)
		locs = append(locs, loc)
		if loc.Compare {
			compareKeys = append(compareKeys, loc.Key())
		}
	}

	// cached keys are skipped by SyncAll, so their data is restored here
	names := make([]string, 0, len(locs))
	for i := range locs {
		names = append(names, locs[i].Name)
	}
	var renamed []location.Location
	for i := range locs {
		restored, ok := s.syncer.Restore(locs[i], names)
		if !ok {
			continue
		}
		if restored.Name != locs[i].Name {
			renamed = append(renamed, restored.Clone())
		}
		locs[i] = restored
	}

	s.mu.Lock()
	if s.dataType != dataType {
		// a newer SetDataType won
		s.mu.Unlock()
		return nil
	}
	s.locations = locs
	s.compareKeys = compareKeys
	snapshot := cloneAll(s.locations)
	compare := s.compareSnapshotLocked()
	s.mu.Unlock()

	for i := range snapshot {
		s.publish(events.LocationChanged{Location: snapshot[i].Clone()})
	}
	s.publish(events.CompareChanged{Locations: compare})
	for _, loc := range renamed {
		s.persist(ctx, "rename", loc, s.backend.EditLocation)
	}

	s.log.Info("locations loaded",
		logger.Int("count", len(snapshot)),
		logger.String("type", dataType.String()))

	s.syncer.SyncAll(ctx, s, snapshot)
	return nil
}

// ApplyEnrichment implements syncengine.Collection. Provider renames of
// placeholder names are persisted in the background.
func (s *Store) ApplyEnrichment(key location.Key, fn syncengine.EnrichFunc) (location.Location, bool) {
	s.mu.Lock()
	i := s.indexLocked(key)
	if i < 0 {
		s.mu.Unlock()
		return location.Location{}, false
	}
	names := make([]string, 0, len(s.locations))
	for j := range s.locations {
		names = append(names, s.locations[j].Name)
	}
	previous := s.locations[i].Name
	updated, ok := fn(s.locations[i].Clone(), names)
	if !ok {
		s.mu.Unlock()
		return location.Location{}, false
	}
	s.locations[i] = updated
	s.mu.Unlock()

	if updated.Name != previous {
		s.persist(context.Background(), "rename", updated, s.backend.EditLocation)
	}
	return updated.Clone(), true
}

// Wait blocks until background persistence calls have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) persist(ctx context.Context, op string, loc location.Location, call func(context.Context, location.Location) error) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Go(func() {
		s.logPersistError(op, loc.Key(), call(ctx, loc))
	})
}

func (s *Store) logPersistError(op string, key location.Key, err error) {
	if err == nil {
		return
	}
	log := s.log.Warn
	if errors.IsUnauthorized(err) {
		log = s.log.Debug
	}
	log("location persistence failed",
		logger.String("operation", op),
		logger.Int("location_id", key.ID),
		logger.String("type", key.Type.String()),
		logger.Error(err))
}

func (s *Store) publish(ev events.Event) {
	if s.publisher != nil {
		s.publisher.TryPublish(ev)
	}
}

func (s *Store) indexLocked(key location.Key) int {
	return slices.IndexFunc(s.locations, func(l location.Location) bool { return l.Key() == key })
}

func (s *Store) compareSnapshotLocked() []location.Location {
	out := make([]location.Location, 0, len(s.compareKeys))
	for _, k := range s.compareKeys {
		if i := s.indexLocked(k); i >= 0 {
			out = append(out, s.locations[i].Clone())
		}
	}
	return out
}

func cloneAll(locs []location.Location) []location.Location {
	out := make([]location.Location, len(locs))
	for i := range locs {
		out[i] = locs[i].Clone()
	}
	return out
}

// GetLogger returns the store module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("store")
}
