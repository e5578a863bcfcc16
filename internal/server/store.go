package server

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/watchgraph/internal/catalogue"
	"github.com/dshills/watchgraph/internal/compliance"
	"github.com/dshills/watchgraph/internal/dataset"
	"github.com/dshills/watchgraph/internal/notediff"
	"github.com/dshills/watchgraph/internal/schema"
	"github.com/dshills/watchgraph/internal/schema/validate"
)

// ErrNotFound is returned for unknown system or mapping ids.
var ErrNotFound = errors.New("not found")

// Store is an in-memory, mutex-guarded registry of systems and mappings.
type Store struct {
	mu       sync.RWMutex
	systems  map[string]schema.System
	order    []string // system ids in registration order
	mappings map[string]schema.Mapping
	bySystem map[string][]string // system id -> mapping ids
	changes  map[string][]notediff.Change

	now   func() time.Time
	newID func() string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		systems:  make(map[string]schema.System),
		mappings: make(map[string]schema.Mapping),
		bySystem: make(map[string][]string),
		changes:  make(map[string][]notediff.Change),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// CreateSystem validates s, assigns an id and timestamps, and attaches the
// catalogue requirements for its risk tier as not_started mappings.
func (st *Store) CreateSystem(s schema.System) (schema.System, []schema.Mapping, error) {
	if err := validate.System(s); err != nil {
		return schema.System{}, nil, err
	}
	cat, err := catalogue.Get(s.RiskCategory)
	if err != nil {
		return schema.System{}, nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	s.ID = st.newID()
	s.CreatedAt, s.UpdatedAt = now, now
	ms := cat.Assign(s.ID, now, st.newID)

	st.systems[s.ID] = s
	st.order = append(st.order, s.ID)
	for _, m := range ms {
		st.mappings[m.MappingID] = m
		st.bySystem[s.ID] = append(st.bySystem[s.ID], m.MappingID)
	}
	return s, ms, nil
}

// Seed loads a dataset. Ids are kept; every mapping must carry a valid
// status so the store never holds records the aggregator would reject.
// Nothing is stored unless the whole dataset is accepted.
func (st *Store) Seed(ds *dataset.Dataset) error {
	for _, m := range ds.Mappings {
		if err := validate.Mapping(m); err != nil {
			return fmt.Errorf("seed %s: %w", m.MappingID, err)
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	incoming := make(map[string]bool, len(ds.Systems))
	for _, s := range ds.Systems {
		if _, ok := st.systems[s.ID]; ok || incoming[s.ID] {
			return fmt.Errorf("seed: system %q already exists", s.ID)
		}
		incoming[s.ID] = true
	}
	seen := make(map[string]bool, len(ds.Mappings))
	for _, m := range ds.Mappings {
		if _, ok := st.mappings[m.MappingID]; ok || seen[m.MappingID] {
			return fmt.Errorf("seed: mapping %q already exists", m.MappingID)
		}
		seen[m.MappingID] = true
		if _, ok := st.systems[m.SystemID]; !ok && !incoming[m.SystemID] {
			return fmt.Errorf("seed: mapping %q references unknown system %q", m.MappingID, m.SystemID)
		}
	}

	for _, s := range ds.Systems {
		st.systems[s.ID] = s
		st.order = append(st.order, s.ID)
	}
	for _, m := range ds.Mappings {
		st.mappings[m.MappingID] = m
		st.bySystem[m.SystemID] = append(st.bySystem[m.SystemID], m.MappingID)
	}
	return nil
}

// Systems returns every system in registration order.
func (st *Store) Systems() []schema.System {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]schema.System, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.systems[id])
	}
	return out
}

// System returns one system.
func (st *Store) System(id string) (schema.System, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.systems[id]
	if !ok {
		return schema.System{}, fmt.Errorf("system %q: %w", id, ErrNotFound)
	}
	return s, nil
}

// Requirements returns a system's mappings in assignment order.
func (st *Store) Requirements(systemID string) ([]schema.Mapping, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if _, ok := st.systems[systemID]; !ok {
		return nil, fmt.Errorf("system %q: %w", systemID, ErrNotFound)
	}
	return st.mappingsOf(systemID), nil
}

// mappingsOf copies a system's mappings. Callers hold st.mu.
func (st *Store) mappingsOf(systemID string) []schema.Mapping {
	ids := st.bySystem[systemID]
	out := make([]schema.Mapping, 0, len(ids))
	for _, id := range ids {
		out = append(out, st.mappings[id])
	}
	return out
}

// ComputeMany computes snapshots for several systems from one consistent
// view of the store. Unknown ids are omitted from the result.
func (st *Store) ComputeMany(systemIDs []string) (map[string]schema.Snapshot, error) {
	st.mu.RLock()
	bySystem := make(map[string][]schema.Mapping, len(systemIDs))
	for _, id := range systemIDs {
		if _, ok := st.systems[id]; ok {
			bySystem[id] = st.mappingsOf(id)
		}
	}
	st.mu.RUnlock()
	return compliance.ComputeMany(bySystem)
}

// Snapshot computes a system's compliance from its current mappings.
func (st *Store) Snapshot(systemID string) (schema.Snapshot, error) {
	ms, err := st.Requirements(systemID)
	if err != nil {
		return schema.Snapshot{}, err
	}
	snap, err := compliance.ComputeSystem(ms)
	if err != nil {
		return schema.Snapshot{}, err
	}
	snap.SystemID = systemID
	return snap, nil
}

// Mapping returns one mapping.
func (st *Store) Mapping(id string) (schema.Mapping, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	m, ok := st.mappings[id]
	if !ok {
		return schema.Mapping{}, fmt.Errorf("mapping %q: %w", id, ErrNotFound)
	}
	return m, nil
}

// UpdateMapping applies a status update. Notes are replaced only when
// u.Notes is non-nil; a notes change is recorded and returned.
func (st *Store) UpdateMapping(id string, u schema.StatusUpdate) (schema.Mapping, *notediff.Change, error) {
	if err := validate.StatusUpdate(u); err != nil {
		return schema.Mapping{}, nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	m, ok := st.mappings[id]
	if !ok {
		return schema.Mapping{}, nil, fmt.Errorf("mapping %q: %w", id, ErrNotFound)
	}

	now := st.now()
	var change *notediff.Change
	if u.Notes != nil {
		change = notediff.NewChange(id, m.Notes, *u.Notes, now)
		m.Notes = *u.Notes
	}
	m.Status = u.Status
	m.UpdatedAt = now
	st.mappings[id] = m
	if change != nil {
		st.changes[id] = append(st.changes[id], *change)
	}
	return m, change, nil
}

// Changes returns the recorded notes changes for a mapping, oldest first.
func (st *Store) Changes(mappingID string) ([]notediff.Change, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if _, ok := st.mappings[mappingID]; !ok {
		return nil, fmt.Errorf("mapping %q: %w", mappingID, ErrNotFound)
	}
	return slices.Clone(st.changes[mappingID]), nil
}

// Stats summarises the whole store from one consistent view.
func (st *Store) Stats() (schema.DashboardStats, error) {
	st.mu.RLock()
	systems := make([]schema.System, 0, len(st.order))
	var all []schema.Mapping
	for _, id := range st.order {
		systems = append(systems, st.systems[id])
		all = append(all, st.mappingsOf(id)...)
	}
	st.mu.RUnlock()

	bySystem := compliance.GroupBySystem(all)
	for _, s := range systems {
		if _, ok := bySystem[s.ID]; !ok {
			bySystem[s.ID] = nil
		}
	}
	snaps, err := compliance.ComputeMany(bySystem)
	if err != nil {
		return schema.DashboardStats{}, err
	}

	stats := schema.DashboardStats{
		TotalSystems:    len(systems),
		SystemsByRisk:   make(map[schema.RiskCategory]int),
		StatusBreakdown: make(schema.StatusBreakdown),
	}
	for _, s := range schema.AllStatuses() {
		stats.StatusBreakdown[s] = 0
	}
	snapshots := make([]schema.Snapshot, 0, len(systems))
	for _, s := range systems {
		stats.SystemsByRisk[s.RiskCategory]++
		snap := snaps[s.ID]
		for status, n := range snap.StatusBreakdown {
			stats.StatusBreakdown[status] += n
		}
		snapshots = append(snapshots, snap)
	}
	stats.Portfolio = compliance.ComputePortfolio(len(systems), snapshots)
	return stats, nil
}
