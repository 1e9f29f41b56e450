// Package entity implements the staged entity: one logical entity spanning a
// stage range, stored as a first-stage value plus compacted per-stage diffs,
// together with its per-stage physical representation handles.
package entity

import (
	"fmt"
	"sort"

	"stageplan/pkg/domain"
)

// Representation is the physical stand-in of an entity on one stage.
type Representation struct {
	Handle domain.Handle
	// Preview marks a non-functional placeholder object.
	Preview bool
	// Failed marks a stage where a real placement was attempted and collided.
	Failed bool
}

// StageDiff pairs a stage with its property overrides.
type StageDiff struct {
	Stage domain.StageNumber
	Diff  domain.Diff
}

// Entity is a staged entity. Its ID is assigned by project content.
type Entity struct {
	id              domain.EntityID
	kind            domain.EntityKind
	position        domain.Position
	direction       domain.Direction
	firstStage      domain.StageNumber
	lastStage       *domain.StageNumber
	firstValue      domain.Value
	diffs           []StageDiff
	reps            map[domain.StageNumber]Representation
	settingsRemnant bool
}

// New constructs an unregistered entity first defined at firstStage.
func New(kind domain.EntityKind, value domain.Value, pos domain.Position, dir domain.Direction, firstStage domain.StageNumber) *Entity {
	assertf(firstStage >= 1, "first stage %d below 1", firstStage)
	if kind == "" {
		kind = domain.KindGeneric
	}
	return &Entity{
		kind:       kind,
		position:   pos,
		direction:  dir,
		firstStage: firstStage,
		firstValue: stripNil(domain.CloneValue(value)),
		reps:       make(map[domain.StageNumber]Representation),
	}
}

// FromSnapshot rebuilds an entity from its persisted state.
func FromSnapshot(kind domain.EntityKind, snap domain.EntitySnapshot) *Entity {
	e := New(kind, snap.FirstValue, snap.Position, snap.Direction, snap.FirstStage)
	e.id = snap.ID
	e.lastStage = copyStage(snap.LastStage)
	e.settingsRemnant = snap.SettingsRemnant
	for stage, diff := range snap.Diffs {
		if stage <= e.firstStage || len(diff) == 0 {
			continue
		}
		e.diffs = append(e.diffs, StageDiff{Stage: stage, Diff: domain.CloneDiff(diff)})
	}
	sort.Slice(e.diffs, func(i, j int) bool { return e.diffs[i].Stage < e.diffs[j].Stage })
	e.compact()
	return e
}

// Snapshot returns the persisted logical state.
func (e *Entity) Snapshot() domain.EntitySnapshot {
	snap := domain.EntitySnapshot{
		ID:              e.id,
		Position:        e.position,
		Direction:       e.direction,
		FirstStage:      e.firstStage,
		LastStage:       copyStage(e.lastStage),
		FirstValue:      domain.CloneValue(e.firstValue),
		SettingsRemnant: e.settingsRemnant,
	}
	if len(e.diffs) > 0 {
		snap.Diffs = make(map[domain.StageNumber]domain.Diff, len(e.diffs))
		for _, d := range e.diffs {
			snap.Diffs[d.Stage] = domain.CloneDiff(d.Diff)
		}
	}
	return snap
}

// Clone deep-copies the logical state. Representations are not copied.
func (e *Entity) Clone() *Entity {
	cp := FromSnapshot(e.kind, e.Snapshot())
	return cp
}

// ID returns the arena identifier, zero when unregistered.
func (e *Entity) ID() domain.EntityID { return e.id }

// SetID binds the arena identifier. Called by project content on registration.
func (e *Entity) SetID(id domain.EntityID) { e.id = id }

// Kind returns the entity variant.
func (e *Entity) Kind() domain.EntityKind { return e.kind }

// SetKind replaces the variant after a prototype table change.
func (e *Entity) SetKind(kind domain.EntityKind) { e.kind = kind }

// Position returns the shared position.
func (e *Entity) Position() domain.Position { return e.position }

// SetPosition changes the position. Project content keeps the grid in sync.
func (e *Entity) SetPosition(pos domain.Position) { e.position = pos }

// Direction returns the shared direction.
func (e *Entity) Direction() domain.Direction { return e.direction }

// SetDirection changes the direction on every stage.
func (e *Entity) SetDirection(dir domain.Direction) { e.direction = dir }

// FirstStage returns the first stage of the range.
func (e *Entity) FirstStage() domain.StageNumber { return e.firstStage }

// LastStage returns the last stage and whether the range is bounded.
func (e *Entity) LastStage() (domain.StageNumber, bool) {
	if e.lastStage == nil {
		return 0, false
	}
	return *e.lastStage, true
}

// LastStagePtr returns a copy of the last stage, nil when unbounded.
func (e *Entity) LastStagePtr() *domain.StageNumber { return copyStage(e.lastStage) }

// FirstValue returns a copy of the value at the first stage.
func (e *Entity) FirstValue() domain.Value { return domain.CloneValue(e.firstValue) }

// Name returns the name at the first stage.
func (e *Entity) Name() string { return e.firstValue.Name() }

// IsSettingsRemnant reports whether only the configuration is retained.
func (e *Entity) IsSettingsRemnant() bool { return e.settingsRemnant }

// SetSettingsRemnant toggles the settings-remnant state.
func (e *Entity) SetSettingsRemnant(v bool) { e.settingsRemnant = v }

// InRange reports whether stage lies within [firstStage, lastStage].
func (e *Entity) InRange(stage domain.StageNumber) bool {
	if stage < e.firstStage {
		return false
	}
	return e.lastStage == nil || stage <= *e.lastStage
}

// ValueAtStage returns the effective value at stage. Outside the range there is none.
func (e *Entity) ValueAtStage(stage domain.StageNumber) (domain.Value, bool) {
	if !e.InRange(stage) {
		return nil, false
	}
	return e.valueAt(stage), true
}

// valueAt merges every diff at or below stage. Callers guarantee stage >= firstStage.
func (e *Entity) valueAt(stage domain.StageNumber) domain.Value {
	v := domain.CloneValue(e.firstValue)
	for _, d := range e.diffs {
		if d.Stage > stage {
			break
		}
		domain.ApplyDiff(v, d.Diff)
	}
	return v
}

// NameAtStage returns the effective name. Below the range the first name is
// used, since previews show what the entity will become.
func (e *Entity) NameAtStage(stage domain.StageNumber) string {
	name := e.firstValue.Name()
	for _, d := range e.diffs {
		if d.Stage > stage {
			break
		}
		if n, ok := d.Diff[domain.PropName].(string); ok {
			name = n
		}
	}
	return name
}

// Diffs returns a copy of the stage diffs in increasing stage order.
func (e *Entity) Diffs() []StageDiff {
	out := make([]StageDiff, len(e.diffs))
	for i, d := range e.diffs {
		out[i] = StageDiff{Stage: d.Stage, Diff: domain.CloneDiff(d.Diff)}
	}
	return out
}

// DiffAt returns the diff stored at stage.
func (e *Entity) DiffAt(stage domain.StageNumber) (domain.Diff, bool) {
	i, ok := e.diffIndex(stage)
	if !ok {
		return nil, false
	}
	return domain.CloneDiff(e.diffs[i].Diff), true
}

// HasDiffs reports whether any stage overrides the first value.
func (e *Entity) HasDiffs() bool { return len(e.diffs) > 0 }

// HasNameDiff reports whether the entity is upgraded at some later stage.
func (e *Entity) HasNameDiff() bool {
	for _, d := range e.diffs {
		if _, ok := d.Diff[domain.PropName]; ok {
			return true
		}
	}
	return false
}

// NextDiffStage returns the first stage above stage that has a diff.
func (e *Entity) NextDiffStage(stage domain.StageNumber) (domain.StageNumber, bool) {
	for _, d := range e.diffs {
		if d.Stage > stage {
			return d.Stage, true
		}
	}
	return 0, false
}

// PrevDiffStage returns the last stage below stage that has a diff.
func (e *Entity) PrevDiffStage(stage domain.StageNumber) (domain.StageNumber, bool) {
	for i := len(e.diffs) - 1; i >= 0; i-- {
		if e.diffs[i].Stage < stage {
			return e.diffs[i].Stage, true
		}
	}
	return 0, false
}

func (e *Entity) String() string {
	last := "inf"
	if e.lastStage != nil {
		last = fmt.Sprint(*e.lastStage)
	}
	return fmt.Sprintf("%s#%d@%s[%d..%s]", e.Name(), e.id, e.position, e.firstStage, last)
}

func copyStage(s *domain.StageNumber) *domain.StageNumber {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func stripNil(v domain.Value) domain.Value {
	for k, p := range v {
		if p == nil {
			delete(v, k)
		}
	}
	return v
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("entity: "+format, args...))
	}
}
