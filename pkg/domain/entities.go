// Package domain defines the staged-entity value types, result codes, world
// events and collaborator contracts shared by the stageplan engine and its
// persistence layers.
package domain

import (
	"fmt"
	"math"
)

// StageNumber identifies an ordered build stage. Valid stages start at 1.
type StageNumber int

// EntityID is a stable arena identifier allocated by project content.
type EntityID uint64

// Handle is an opaque reference to a physical object issued by an ObjectProvider.
// The zero handle means no object.
type Handle uint64

// Position is a world position. Entities sharing a cell are distinguished by exact position.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Cell is an integer-quantized grid coordinate.
type Cell struct {
	X int
	Y int
}

// Cell quantizes the position onto the integer grid.
func (p Position) Cell() Cell {
	return Cell{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y))}
}

// Add offsets the position by n steps along d.
func (p Position) Add(d Direction, n int) Position {
	dx, dy := d.Vector()
	return Position{X: p.X + float64(dx*n), Y: p.Y + float64(dy*n)}
}

func (p Position) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Direction is a 16-way orientation. Cardinal directions are multiples of 4.
type Direction uint8

// Cardinal directions.
const (
	North Direction = 0
	East  Direction = 4
	South Direction = 8
	West  Direction = 12
)

// Opposite returns the direction rotated by 180 degrees.
func (d Direction) Opposite() Direction {
	return (d + 8) % 16
}

// Vector returns the unit grid step for cardinal directions and (0, 0) otherwise.
func (d Direction) Vector() (int, int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	default:
		return 0, 0
	}
}

// Axis reports whether two directions lie on the same line.
func (d Direction) Axis() Direction {
	return d % 8
}

// EntityKind discriminates the closed set of entity variants the engine treats differently.
type EntityKind string

// Entity variants resolved from prototype data.
const (
	KindGeneric      EntityKind = "generic"
	KindBelt         EntityKind = "belt"
	KindUnderground  EntityKind = "underground_belt"
	KindLoader       EntityKind = "loader"
	KindRollingStock EntityKind = "rolling_stock"
)

// UndergroundType is the input/output side of an underground belt or loader.
type UndergroundType string

// Underground sides stored under the "type" property.
const (
	UndergroundInput  UndergroundType = "input"
	UndergroundOutput UndergroundType = "output"
)

// Flip returns the complementary side.
func (t UndergroundType) Flip() UndergroundType {
	if t == UndergroundInput {
		return UndergroundOutput
	}
	return UndergroundInput
}

// EntityInfo describes a physical object as observed in the world at one stage.
type EntityInfo struct {
	Name      string    `json:"name" yaml:"name"`
	Position  Position  `json:"position" yaml:"position"`
	Direction Direction `json:"direction" yaml:"direction"`
	Value     Value     `json:"value,omitempty" yaml:"value,omitempty"`
}

// ObservedValue returns the info's value with the name property filled in.
func (i EntityInfo) ObservedValue() Value {
	v := CloneValue(i.Value)
	if v == nil {
		v = Value{}
	}
	v[PropName] = i.Name
	return v
}
