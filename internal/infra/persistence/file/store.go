// Package file provides the durable file-snapshot backend. It embeds the
// in-memory store for all contract semantics and persists each entity
// collection as one JSON document, rewriting the touched documents in full
// after every successful mutation (whole-snapshot-per-write).
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fieldops/internal/infra/persistence/memory"
	"fieldops/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.Store         = (*Store)(nil)
	_ domain.ExtendedStore = (*Store)(nil)
)

type collection string

const (
	colUsers      collection = "users"
	colTeams      collection = "teams"
	colTasks      collection = "tasks"
	colFeatures   collection = "features"
	colBoundaries collection = "boundaries"
	colUpdates    collection = "taskUpdates"
	colEvidence   collection = "taskEvidence"
)

var collections = []collection{
	colUsers, colTeams, colTasks, colFeatures, colBoundaries, colUpdates, colEvidence,
}

// Store is the file-snapshot backend. A mutation runs against the embedded
// memory store first; the touched collection files are then rewritten
// atomically (temp file, then rename). If any write fails the pre-mutation
// state is restored and the operation fails with a PersistenceError, so the
// in-memory view never diverges from disk.
type Store struct {
	mem *memory.Store
	dir string
	mu  sync.Mutex // serializes mutate-then-persist cycles
}

// Open loads every collection file under dir (creating dir if needed) into a
// fresh store. Missing files are treated as empty collections.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "./fieldopsdata"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, &domain.ConnectionError{Backend: string(domain.DriverFile), Err: err}
	}
	s := &Store{mem: memory.NewStore(), dir: dir}
	snap, err := s.load()
	if err != nil {
		return nil, &domain.ConnectionError{Backend: string(domain.DriverFile), Err: err}
	}
	s.mem.ImportState(snap)
	return s, nil
}

// Driver identifies the backend.
func (s *Store) Driver() domain.Driver { return domain.DriverFile }

// Close is a no-op; every mutation is already flushed.
func (s *Store) Close(context.Context) error { return nil }

// Dir returns the data directory, for diagnostics and tests.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(c collection) string {
	return filepath.Join(s.dir, string(c)+".json")
}

func (s *Store) load() (memory.Snapshot, error) {
	var snap memory.Snapshot
	for _, c := range collections {
		raw, err := os.ReadFile(s.path(c))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return memory.Snapshot{}, fmt.Errorf("read %s: %w", c, err)
		}
		if err := decodeCollection(c, raw, &snap); err != nil {
			return memory.Snapshot{}, fmt.Errorf("decode %s: %w", c, err)
		}
	}
	return snap, nil
}

// persist rewrites the named collection documents from the current state.
func (s *Store) persist(snap memory.Snapshot, cols ...collection) error {
	for _, c := range cols {
		data, err := encodeCollection(c, snap)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c, err)
		}
		if err := writeAtomic(s.path(c), data); err != nil {
			return fmt.Errorf("write %s: %w", c, err)
		}
	}
	return nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// over the destination, so a crash mid-write leaves the previous snapshot
// intact.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Each collection document holds a single array field named after the
// collection, e.g. {"users": [...]}.
type (
	usersDoc      struct{ Users []domain.User `json:"users"` }
	teamsDoc      struct{ Teams []domain.Team `json:"teams"` }
	tasksDoc      struct{ Tasks []domain.Task `json:"tasks"` }
	featuresDoc   struct{ Features []domain.Feature `json:"features"` }
	boundariesDoc struct{ Boundaries []domain.Boundary `json:"boundaries"` }
	updatesDoc    struct{ Updates []domain.TaskUpdate `json:"taskUpdates"` }
	evidenceDoc   struct{ Evidence []domain.TaskEvidence `json:"taskEvidence"` }
)

func encodeCollection(c collection, snap memory.Snapshot) ([]byte, error) {
	var doc any
	switch c {
	case colUsers:
		doc = usersDoc{Users: snap.Users}
	case colTeams:
		doc = teamsDoc{Teams: snap.Teams}
	case colTasks:
		doc = tasksDoc{Tasks: snap.Tasks}
	case colFeatures:
		doc = featuresDoc{Features: snap.Features}
	case colBoundaries:
		doc = boundariesDoc{Boundaries: snap.Boundaries}
	case colUpdates:
		doc = updatesDoc{Updates: snap.Updates}
	case colEvidence:
		doc = evidenceDoc{Evidence: snap.Evidence}
	default:
		return nil, fmt.Errorf("unknown collection %s", c)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func decodeCollection(c collection, raw []byte, snap *memory.Snapshot) error {
	switch c {
	case colUsers:
		var doc usersDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		snap.Users = doc.Users
	case colTeams:
		var doc teamsDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		snap.Teams = doc.Teams
	case colTasks:
		var doc tasksDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		snap.Tasks = doc.Tasks
	case colFeatures:
		var doc featuresDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		snap.Features = doc.Features
	case colBoundaries:
		var doc boundariesDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		snap.Boundaries = doc.Boundaries
	case colUpdates:
		var doc updatesDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		snap.Updates = doc.Updates
	case colEvidence:
		var doc evidenceDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		snap.Evidence = doc.Evidence
	default:
		return fmt.Errorf("unknown collection %s", c)
	}
	return nil
}

// mutate runs fn against the embedded memory store and persists the touched
// collections, restoring the pre-mutation state when persistence fails.
func mutate[T any](s *Store, op string, cols []collection, fn func() (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.mem.ExportState()
	v, err := fn()
	if err != nil {
		return v, err
	}
	if perr := s.persist(s.mem.ExportState(), cols...); perr != nil {
		s.mem.ImportState(before)
		var zero T
		return zero, &domain.PersistenceError{Op: op, Err: perr}
	}
	return v, nil
}
