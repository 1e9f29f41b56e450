package core

import (
	"context"
	"errors"
	"fmt"

	"stageplan/internal/project"
	"stageplan/pkg/domain"
)

// ErrEmptyProjectID is returned when a snapshot is requested without a project id.
var ErrEmptyProjectID = errors.New("project id required")

// Snapshot captures the logical project state stamped with the engine clock.
func (e *Engine) Snapshot(projectID string) domain.ProjectSnapshot {
	snap := e.content.Export(projectID)
	snap.SavedAt = e.clock.Now()
	return snap
}

// Save persists the current project state under projectID.
func (e *Engine) Save(ctx context.Context, store domain.SnapshotStore, projectID string) error {
	if projectID == "" {
		return ErrEmptyProjectID
	}
	done := e.track("save")
	snap := e.Snapshot(projectID)
	if err := store.Save(ctx, snap); err != nil {
		done(false)
		e.logger.Error("save project failed", "project", projectID, "error", err)
		return fmt.Errorf("save project %s: %w", projectID, err)
	}
	e.logger.Info("project saved", "project", projectID, "entities", len(snap.Entities))
	done(true)
	return nil
}

// Restore builds an engine from a snapshot and materializes every stage on
// the given providers.
func Restore(snap domain.ProjectSnapshot, protos domain.PrototypeInfo, objects domain.ObjectProvider, wires domain.WireProvider, opts ...Option) (*Engine, error) {
	content, err := project.Import(snap, protos)
	if err != nil {
		return nil, err
	}
	e := NewEngine(content, protos, objects, wires, opts...)
	e.RebuildAll()
	e.logger.Info("project restored", "project", snap.ID, "entities", content.Len(), "stages", content.StageCount())
	return e, nil
}

// Load reads projectID from store and restores it.
func Load(ctx context.Context, store domain.SnapshotStore, projectID string, protos domain.PrototypeInfo, objects domain.ObjectProvider, wires domain.WireProvider, opts ...Option) (*Engine, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	snap, err := store.Load(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}
	return Restore(snap, protos, objects, wires, opts...)
}
