// Package memory provides an in-memory project snapshot store used for tests
// and ephemeral environments, plus the bucket codec shared by the SQL-backed
// stores.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"stageplan/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.SnapshotStore = (*Store)(nil)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("snapshot store closed")

// Store keeps project snapshots in a map keyed by project ID.
type Store struct {
	mu       sync.RWMutex
	projects map[string]domain.ProjectSnapshot
	closed   bool
}

// NewStore constructs an empty in-memory snapshot store.
func NewStore() *Store {
	return &Store{projects: make(map[string]domain.ProjectSnapshot)}
}

// Save stores a deep copy of snapshot, replacing any previous one.
func (s *Store) Save(ctx context.Context, snapshot domain.ProjectSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(snapshot.ID) == "" {
		return fmt.Errorf("save snapshot: empty project id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.projects[snapshot.ID] = CloneSnapshot(snapshot)
	return nil
}

// Load returns a deep copy of the stored snapshot.
func (s *Store) Load(ctx context.Context, projectID string) (domain.ProjectSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProjectSnapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ProjectSnapshot{}, ErrClosed
	}
	snap, ok := s.projects[projectID]
	if !ok {
		return domain.ProjectSnapshot{}, fmt.Errorf("load %q: %w", projectID, domain.ErrSnapshotNotFound)
	}
	return CloneSnapshot(snap), nil
}

// List returns every stored project ID in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(s.projects))
	for id := range s.projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a snapshot and reports whether one existed.
func (s *Store) Delete(ctx context.Context, projectID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if _, ok := s.projects[projectID]; !ok {
		return false, nil
	}
	delete(s.projects, projectID)
	return true, nil
}

// Close releases the store. Further calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.projects = nil
	return nil
}

// CloneSnapshot deep-copies a project snapshot.
func CloneSnapshot(in domain.ProjectSnapshot) domain.ProjectSnapshot {
	out := in
	if in.Entities != nil {
		out.Entities = make([]domain.EntitySnapshot, len(in.Entities))
		for i, e := range in.Entities {
			out.Entities[i] = cloneEntity(e)
		}
	}
	out.Cables = append([]domain.CableEdge(nil), in.Cables...)
	out.Circuits = append([]domain.CircuitEdge(nil), in.Circuits...)
	return out
}

func cloneEntity(in domain.EntitySnapshot) domain.EntitySnapshot {
	out := in
	if in.LastStage != nil {
		last := *in.LastStage
		out.LastStage = &last
	}
	out.FirstValue = domain.CloneValue(in.FirstValue)
	if in.Diffs != nil {
		out.Diffs = make(map[domain.StageNumber]domain.Diff, len(in.Diffs))
		for s, d := range in.Diffs {
			out.Diffs[s] = domain.CloneDiff(d)
		}
	}
	return out
}
