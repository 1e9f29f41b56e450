// Package project owns the staged entities of one project together with the
// spatial grid and connection graph derived from them.
package project

import (
	"errors"
	"fmt"
	"sort"

	"stageplan/internal/entity"
	"stageplan/pkg/domain"
)

// ErrInvalidSnapshot wraps every rejection raised while importing a snapshot.
var ErrInvalidSnapshot = errors.New("invalid project snapshot")

// Content is the arena owner of every staged entity. The grid and graph only
// hold IDs and are never the source of truth.
type Content struct {
	entities   map[domain.EntityID]*entity.Entity
	grid       *SpatialGrid
	graph      *ConnectionGraph
	protos     domain.PrototypeInfo
	nextID     domain.EntityID
	stageCount domain.StageNumber
}

// NewContent returns empty content spanning stageCount stages.
func NewContent(stageCount domain.StageNumber, protos domain.PrototypeInfo) *Content {
	assertf(stageCount >= 1, "stage count %d below 1", stageCount)
	return &Content{
		entities:   make(map[domain.EntityID]*entity.Entity),
		grid:       NewSpatialGrid(),
		graph:      NewConnectionGraph(),
		protos:     protos,
		nextID:     1,
		stageCount: stageCount,
	}
}

// Prototypes returns the prototype table used for compatibility lookups.
func (c *Content) Prototypes() domain.PrototypeInfo { return c.protos }

// SetPrototypes swaps the prototype table and re-resolves every entity kind.
func (c *Content) SetPrototypes(protos domain.PrototypeInfo) {
	c.protos = protos
	for _, e := range c.entities {
		e.SetKind(protos.KindOf(e.Name()))
	}
}

// Graph exposes the connection graph.
func (c *Content) Graph() *ConnectionGraph { return c.graph }

// StageCount returns the number of stages in the project.
func (c *Content) StageCount() domain.StageNumber { return c.stageCount }

// Add registers e, allocating its ID. Adding a registered entity is a programmer error.
func (c *Content) Add(e *entity.Entity) domain.EntityID {
	assertf(e.ID() == 0 || c.entities[e.ID()] != e, "entity %s already registered", e)
	id := e.ID()
	if id == 0 {
		id = c.nextID
	}
	assertf(c.entities[id] == nil, "entity id %d already taken", id)
	if id >= c.nextID {
		c.nextID = id + 1
	}
	e.SetID(id)
	c.entities[id] = e
	c.grid.Add(id, e.Position())
	return id
}

// Remove unregisters e from the arena, the grid and the graph.
func (c *Content) Remove(e *entity.Entity) bool {
	cur, ok := c.entities[e.ID()]
	if !ok || cur != e {
		return false
	}
	delete(c.entities, e.ID())
	c.grid.Remove(e.ID(), e.Position())
	c.graph.RemoveAll(e.ID())
	return true
}

// Get returns the entity registered under id.
func (c *Content) Get(id domain.EntityID) (*entity.Entity, bool) {
	e, ok := c.entities[id]
	return e, ok
}

// Has reports whether e is registered.
func (c *Content) Has(e *entity.Entity) bool {
	cur, ok := c.entities[e.ID()]
	return ok && cur == e
}

// All returns every entity ordered by ID.
func (c *Content) All() []*entity.Entity {
	out := make([]*entity.Entity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered entities.
func (c *Content) Len() int { return len(c.entities) }

// EntitiesAt returns every entity positioned exactly at pos, ordered by ID.
func (c *Content) EntitiesAt(pos domain.Position) []*entity.Entity {
	var out []*entity.Entity
	for _, id := range c.grid.At(pos) {
		e := c.entities[id]
		if e.Position() == pos {
			out = append(out, e)
		}
	}
	return out
}

// FindCompatible looks for the entity a world object at info corresponds to.
// The name must be upgrade-compatible with the entity's name at stage and the
// direction must match unless the prototype ignores direction. prevDirection,
// when set, replaces info.Direction so rotation events find their entity.
// Entities whose range contains stage win over ones starting above it.
func (c *Content) FindCompatible(info domain.EntityInfo, prevDirection *domain.Direction, stage domain.StageNumber) *entity.Entity {
	dir := info.Direction
	if prevDirection != nil {
		dir = *prevDirection
	}
	return c.FindCompatibleByName(info.Name, info.Position, dir, stage)
}

// FindCompatibleByName is FindCompatible with explicit fields.
func (c *Content) FindCompatibleByName(name string, pos domain.Position, dir domain.Direction, stage domain.StageNumber) *entity.Entity {
	var best *entity.Entity
	for _, e := range c.EntitiesAt(pos) {
		if last, ok := e.LastStage(); ok && stage > last {
			continue
		}
		if !c.protos.Compatible(e.NameAtStage(stage), name) {
			continue
		}
		if !c.directionMatches(e, name, dir) {
			continue
		}
		if e.InRange(stage) {
			return e
		}
		if best == nil || e.FirstStage() < best.FirstStage() {
			best = e
		}
	}
	return best
}

// FindExact looks for an entity with exactly info's name at stage, ignoring
// the stage range.
func (c *Content) FindExact(info domain.EntityInfo, stage domain.StageNumber) *entity.Entity {
	for _, e := range c.EntitiesAt(info.Position) {
		if e.NameAtStage(stage) != info.Name {
			continue
		}
		if c.directionMatches(e, info.Name, info.Direction) {
			return e
		}
	}
	return nil
}

func (c *Content) directionMatches(e *entity.Entity, name string, dir domain.Direction) bool {
	if c.protos.IsDirectionAgnostic(name) || c.protos.IsDirectionAgnostic(e.Name()) {
		return true
	}
	return e.Direction() == dir
}

// ChangePosition relocates e. The move is rejected when the destination
// already holds an entity with the same or a compatible name.
func (c *Content) ChangePosition(e *entity.Entity, pos domain.Position) bool {
	assertf(c.Has(e), "entity %s not registered", e)
	if e.Position() == pos {
		return false
	}
	for _, other := range c.EntitiesAt(pos) {
		if other == e {
			continue
		}
		if c.protos.Compatible(other.Name(), e.Name()) {
			return false
		}
	}
	c.grid.Move(e.ID(), e.Position(), pos)
	e.SetPosition(pos)
	return true
}

// InsertStage adds a stage before stage, shifting every later stage up.
func (c *Content) InsertStage(stage domain.StageNumber) {
	assertf(stage >= 1 && stage <= c.stageCount+1, "insert stage %d outside 1..%d", stage, c.stageCount+1)
	for _, e := range c.entities {
		e.InsertStage(stage)
	}
	c.stageCount++
}

// DeleteStage removes stage, merging its contents into a neighbour.
func (c *Content) DeleteStage(stage domain.StageNumber) {
	assertf(c.stageCount > 1, "cannot delete the only stage")
	assertf(stage >= 1 && stage <= c.stageCount, "delete stage %d outside 1..%d", stage, c.stageCount)
	for _, e := range c.entities {
		e.DeleteStage(stage)
	}
	c.stageCount--
}

// Export captures the logical state of the project.
func (c *Content) Export(projectID string) domain.ProjectSnapshot {
	snap := domain.ProjectSnapshot{
		ID:         projectID,
		StageCount: c.stageCount,
		NextID:     c.nextID,
		Entities:   make([]domain.EntitySnapshot, 0, len(c.entities)),
	}
	for _, e := range c.All() {
		snap.Entities = append(snap.Entities, e.Snapshot())
	}
	snap.Cables, snap.Circuits = c.graph.Edges()
	return snap
}

// Import rebuilds content from a snapshot. Representations are not restored;
// callers rebuild them.
func Import(snap domain.ProjectSnapshot, protos domain.PrototypeInfo) (*Content, error) {
	if snap.StageCount < 1 {
		return nil, fmt.Errorf("%w: stage count %d", ErrInvalidSnapshot, snap.StageCount)
	}
	c := NewContent(snap.StageCount, protos)
	for _, es := range snap.Entities {
		if es.ID == 0 {
			return nil, fmt.Errorf("%w: entity without id", ErrInvalidSnapshot)
		}
		if _, dup := c.entities[es.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate entity id %d", ErrInvalidSnapshot, es.ID)
		}
		if es.FirstStage < 1 || (es.LastStage != nil && *es.LastStage < es.FirstStage) {
			return nil, fmt.Errorf("%w: entity %d has invalid range", ErrInvalidSnapshot, es.ID)
		}
		if es.FirstValue.Name() == "" {
			return nil, fmt.Errorf("%w: entity %d has no name", ErrInvalidSnapshot, es.ID)
		}
		c.Add(entity.FromSnapshot(protos.KindOf(es.FirstValue.Name()), es))
	}
	for _, edge := range snap.Cables {
		if err := c.requireEdge(edge.A, edge.B); err != nil {
			return nil, err
		}
		c.graph.AddCable(edge.A, edge.B)
	}
	for _, edge := range snap.Circuits {
		if err := c.requireEdge(edge.A, edge.B); err != nil {
			return nil, err
		}
		c.graph.AddCircuit(edge.A, edge.B, edge.Wire)
	}
	if snap.NextID > c.nextID {
		c.nextID = snap.NextID
	}
	return c, nil
}

func (c *Content) requireEdge(a, b domain.EntityID) error {
	if c.entities[a] == nil || c.entities[b] == nil {
		return fmt.Errorf("%w: edge %d-%d references unknown entity", ErrInvalidSnapshot, a, b)
	}
	return nil
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("project: "+format, args...))
	}
}
