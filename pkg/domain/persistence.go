package domain

import (
	"context"
	"errors"
	"time"
)

// WireColor identifies a circuit wire color.
type WireColor string

// Circuit wire colors.
const (
	WireRed   WireColor = "red"
	WireGreen WireColor = "green"
)

// CircuitWire is one circuit connection seen from its owning entity.
type CircuitWire struct {
	FromConnector int       `json:"from_connector" yaml:"from_connector"`
	ToConnector   int       `json:"to_connector" yaml:"to_connector"`
	Color         WireColor `json:"color" yaml:"color"`
}

// Reverse returns the same wire seen from the other endpoint.
func (w CircuitWire) Reverse() CircuitWire {
	return CircuitWire{FromConnector: w.ToConnector, ToConnector: w.FromConnector, Color: w.Color}
}

// CableEdge is an undirected cable connection between two entities.
type CableEdge struct {
	A EntityID `json:"a"`
	B EntityID `json:"b"`
}

// CircuitEdge is a circuit connection between two entities.
type CircuitEdge struct {
	A    EntityID    `json:"a"`
	B    EntityID    `json:"b"`
	Wire CircuitWire `json:"wire"`
}

// EntitySnapshot is the persisted logical state of a staged entity.
type EntitySnapshot struct {
	ID              EntityID             `json:"id"`
	Position        Position             `json:"position"`
	Direction       Direction            `json:"direction"`
	FirstStage      StageNumber          `json:"first_stage"`
	LastStage       *StageNumber         `json:"last_stage,omitempty"`
	FirstValue      Value                `json:"first_value"`
	Diffs           map[StageNumber]Diff `json:"diffs,omitempty"`
	SettingsRemnant bool                 `json:"settings_remnant,omitempty"`
}

// ProjectSnapshot is the persisted logical state of a whole project.
type ProjectSnapshot struct {
	ID         string           `json:"id"`
	StageCount StageNumber      `json:"stage_count"`
	NextID     EntityID         `json:"next_id"`
	Entities   []EntitySnapshot `json:"entities"`
	Cables     []CableEdge      `json:"cables,omitempty"`
	Circuits   []CircuitEdge    `json:"circuits,omitempty"`
	SavedAt    time.Time        `json:"saved_at"`
}

// ErrSnapshotNotFound is returned when a requested project snapshot is absent.
var ErrSnapshotNotFound = errors.New("project snapshot not found")

// SnapshotStore is a minimal abstraction over durable project backends.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot ProjectSnapshot) error
	Load(ctx context.Context, projectID string) (ProjectSnapshot, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, projectID string) (bool, error)
	Close() error
}
