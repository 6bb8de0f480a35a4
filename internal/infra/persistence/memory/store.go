// Package memory provides the volatile in-memory implementation of the
// storage contract. It is the last resort of the startup fallback chain and
// the reference backend for tests; the file backend also builds on it.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldops/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.Store         = (*Store)(nil)
	_ domain.ExtendedStore = (*Store)(nil)
)

type state struct {
	users      map[string]domain.User
	teams      map[string]domain.Team
	tasks      map[string]domain.Task
	features   map[string]domain.Feature
	boundaries map[string]domain.Boundary
	updates    map[string]domain.TaskUpdate
	evidence   map[string]domain.TaskEvidence
}

func newState() state {
	return state{
		users:      make(map[string]domain.User),
		teams:      make(map[string]domain.Team),
		tasks:      make(map[string]domain.Task),
		features:   make(map[string]domain.Feature),
		boundaries: make(map[string]domain.Boundary),
		updates:    make(map[string]domain.TaskUpdate),
		evidence:   make(map[string]domain.TaskEvidence),
	}
}

// Snapshot captures a point-in-time clone of the store state as sorted
// collections. It is the exchange format the file backend persists.
type Snapshot struct {
	Users      []domain.User         `json:"users"`
	Teams      []domain.Team         `json:"teams"`
	Tasks      []domain.Task         `json:"tasks"`
	Features   []domain.Feature      `json:"features"`
	Boundaries []domain.Boundary     `json:"boundaries"`
	Updates    []domain.TaskUpdate   `json:"taskUpdates"`
	Evidence   []domain.TaskEvidence `json:"taskEvidence"`
}

// Store is the volatile backend. All operations are value-copy in and out;
// no caller ever aliases internal state.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
	idFn  func() string
}

// NewStore constructs an empty volatile store.
func NewStore() *Store {
	return &Store{
		state: newState(),
		nowFn: func() time.Time { return time.Now().UTC() },
		idFn:  domain.NewID,
	}
}

// SetNowFunc overrides the clock; used by tests to pin timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// Driver identifies the backend.
func (s *Store) Driver() domain.Driver { return domain.DriverMemory }

// Close is a no-op for the volatile backend.
func (s *Store) Close(context.Context) error { return nil }

// newID produces an identifier unused within this store's key space,
// retrying on the (unlikely) collision.
func (s *Store) newID(exists func(string) bool) string {
	for {
		id := s.idFn()
		if !exists(id) {
			return id
		}
	}
}

func (s *Store) now() time.Time { return s.nowFn() }

// ExportState clones the current state for external persistence. Collections
// are sorted by id, which is creation order thanks to the time prefix.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromSnapshot(snap)
}

func snapshotFromState(st state) Snapshot {
	snap := Snapshot{
		Users:      make([]domain.User, 0, len(st.users)),
		Teams:      make([]domain.Team, 0, len(st.teams)),
		Tasks:      make([]domain.Task, 0, len(st.tasks)),
		Features:   make([]domain.Feature, 0, len(st.features)),
		Boundaries: make([]domain.Boundary, 0, len(st.boundaries)),
		Updates:    make([]domain.TaskUpdate, 0, len(st.updates)),
		Evidence:   make([]domain.TaskEvidence, 0, len(st.evidence)),
	}
	for _, u := range st.users {
		snap.Users = append(snap.Users, cloneUser(u))
	}
	for _, t := range st.teams {
		snap.Teams = append(snap.Teams, cloneTeam(t))
	}
	for _, t := range st.tasks {
		snap.Tasks = append(snap.Tasks, cloneTask(t))
	}
	for _, f := range st.features {
		snap.Features = append(snap.Features, cloneFeature(f))
	}
	for _, b := range st.boundaries {
		snap.Boundaries = append(snap.Boundaries, cloneBoundary(b))
	}
	for _, u := range st.updates {
		snap.Updates = append(snap.Updates, u)
	}
	for _, e := range st.evidence {
		snap.Evidence = append(snap.Evidence, e)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })
	sort.Slice(snap.Teams, func(i, j int) bool { return snap.Teams[i].ID < snap.Teams[j].ID })
	sort.Slice(snap.Tasks, func(i, j int) bool { return snap.Tasks[i].ID < snap.Tasks[j].ID })
	sort.Slice(snap.Features, func(i, j int) bool { return snap.Features[i].ID < snap.Features[j].ID })
	sort.Slice(snap.Boundaries, func(i, j int) bool { return snap.Boundaries[i].ID < snap.Boundaries[j].ID })
	sort.Slice(snap.Updates, func(i, j int) bool { return snap.Updates[i].ID < snap.Updates[j].ID })
	sort.Slice(snap.Evidence, func(i, j int) bool { return snap.Evidence[i].ID < snap.Evidence[j].ID })
	return snap
}

func stateFromSnapshot(snap Snapshot) state {
	st := newState()
	for _, u := range snap.Users {
		st.users[u.ID] = cloneUser(u)
	}
	for _, t := range snap.Teams {
		st.teams[t.ID] = cloneTeam(t)
	}
	for _, t := range snap.Tasks {
		st.tasks[t.ID] = cloneTask(t)
	}
	for _, f := range snap.Features {
		st.features[f.ID] = cloneFeature(f)
	}
	for _, b := range snap.Boundaries {
		st.boundaries[b.ID] = cloneBoundary(b)
	}
	for _, u := range snap.Updates {
		st.updates[u.ID] = u
	}
	for _, e := range snap.Evidence {
		st.evidence[e.ID] = e
	}
	return st
}

func strPtr(v string) *string { return &v }

func cloneStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneGeomPtr(g *domain.Geometry) *domain.Geometry {
	if g == nil {
		return nil
	}
	cp := g.Clone()
	return &cp
}

func cloneUser(u domain.User) domain.User {
	cp := u
	cp.TeamID = cloneStrPtr(u.TeamID)
	cp.CurrentLocation = cloneGeomPtr(u.CurrentLocation)
	return cp
}

func cloneTeam(t domain.Team) domain.Team {
	cp := t
	cp.ApprovedBy = cloneStrPtr(t.ApprovedBy)
	return cp
}

func cloneTask(t domain.Task) domain.Task {
	cp := t
	cp.AssignedTo = cloneStrPtr(t.AssignedTo)
	cp.Location = cloneGeomPtr(t.Location)
	cp.BoundaryID = cloneStrPtr(t.BoundaryID)
	cp.FeatureID = cloneStrPtr(t.FeatureID)
	return cp
}

func cloneFeature(f domain.Feature) domain.Feature {
	cp := f
	cp.Geometry = f.Geometry.Clone()
	cp.BoundaryID = cloneStrPtr(f.BoundaryID)
	return cp
}

func cloneBoundary(b domain.Boundary) domain.Boundary {
	cp := b
	cp.Geometry = b.Geometry.Clone()
	cp.AssignedTo = cloneStrPtr(b.AssignedTo)
	return cp
}
