package domain

// EventKind enumerates the world events the engine consumes.
type EventKind string

// World event kinds. Dispatch handles every kind exhaustively.
const (
	EventEntityCreated         EventKind = "entity_created"
	EventEntityDeleted         EventKind = "entity_deleted"
	EventEntityPossiblyUpdated EventKind = "entity_possibly_updated"
	EventEntityRotated         EventKind = "entity_rotated"
	EventEntityUpgraded        EventKind = "entity_upgraded"
	EventWiresChanged          EventKind = "wires_changed"
	EventMoveToStage           EventKind = "move_to_stage"
	EventSetLastStage          EventKind = "set_last_stage"
	EventEntityMoved           EventKind = "entity_moved"
	EventForceDelete           EventKind = "force_delete"
	EventReviveSettingsRemnant EventKind = "revive_settings_remnant"
	EventResetProperty         EventKind = "reset_property"
	EventMovePropertyDown      EventKind = "move_property_down"
)

// WorldEvent is a physical-world change already resolved to a stage and, when
// known, to a logical entity. Entity may be zero, in which case the engine
// resolves it from Info.
//
// Fast replacement is explicit: the host reports EventEntityUpgraded with the
// new name instead of a delete/create pair, so detection never depends on
// event timing.
type WorldEvent struct {
	Kind      EventKind      `json:"kind" yaml:"kind"`
	Stage     StageNumber    `json:"stage" yaml:"stage"`
	Entity    EntityID       `json:"entity,omitempty" yaml:"entity,omitempty"`
	Info      EntityInfo     `json:"info" yaml:"info"`
	Handle    Handle         `json:"handle,omitempty" yaml:"handle,omitempty"`
	Previous  *Direction     `json:"previous_direction,omitempty" yaml:"previous_direction,omitempty"`
	LastStage *StageNumber   `json:"last_stage,omitempty" yaml:"last_stage,omitempty"`
	Position  *Position      `json:"position,omitempty" yaml:"position,omitempty"`
	Property  string         `json:"property,omitempty" yaml:"property,omitempty"`
	Links     []ObservedLink `json:"links,omitempty" yaml:"links,omitempty"`
}

// UndoKind identifies the reversible action an UndoRecord captures.
type UndoKind string

// Undo record kinds.
const (
	UndoMoveToStage   UndoKind = "move_to_stage"
	UndoSetLastStage  UndoKind = "set_last_stage"
	UndoDeleteEntity  UndoKind = "delete_entity"
	UndoCreateEntity  UndoKind = "create_entity"
	UndoMakeRemnant   UndoKind = "make_settings_remnant"
	UndoReviveRemnant UndoKind = "revive_settings_remnant"
)

// UndoRecord is the opaque state an external undo stack stores and hands
// back to the engine for replay.
type UndoRecord struct {
	Kind      UndoKind        `json:"kind"`
	Entity    EntityID        `json:"entity"`
	Stage     StageNumber     `json:"stage,omitempty"`
	LastStage *StageNumber    `json:"last_stage,omitempty"`
	Snapshot  *EntitySnapshot `json:"snapshot,omitempty"`
	Cables    []CableEdge     `json:"cables,omitempty"`
	Circuits  []CircuitEdge   `json:"circuits,omitempty"`
}
