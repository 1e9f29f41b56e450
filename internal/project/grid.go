package project

import (
	"sort"

	"stageplan/pkg/domain"
)

// SpatialGrid buckets entity IDs by integer-quantized position.
type SpatialGrid struct {
	cells map[domain.Cell]map[domain.EntityID]struct{}
	count int
}

// NewSpatialGrid returns an empty grid.
func NewSpatialGrid() *SpatialGrid {
	return &SpatialGrid{cells: make(map[domain.Cell]map[domain.EntityID]struct{})}
}

// Add places id in the cell containing pos. It reports false for duplicates.
func (g *SpatialGrid) Add(id domain.EntityID, pos domain.Position) bool {
	cell := pos.Cell()
	bucket, ok := g.cells[cell]
	if !ok {
		bucket = make(map[domain.EntityID]struct{}, 1)
		g.cells[cell] = bucket
	}
	if _, exists := bucket[id]; exists {
		return false
	}
	bucket[id] = struct{}{}
	g.count++
	return true
}

// Remove deletes id from the cell containing pos.
func (g *SpatialGrid) Remove(id domain.EntityID, pos domain.Position) bool {
	cell := pos.Cell()
	bucket, ok := g.cells[cell]
	if !ok {
		return false
	}
	if _, exists := bucket[id]; !exists {
		return false
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(g.cells, cell)
	}
	g.count--
	return true
}

// Move relocates id between cells.
func (g *SpatialGrid) Move(id domain.EntityID, from, to domain.Position) {
	if from.Cell() == to.Cell() {
		return
	}
	g.Remove(id, from)
	g.Add(id, to)
}

// At returns the IDs in the cell containing pos, sorted.
func (g *SpatialGrid) At(pos domain.Position) []domain.EntityID {
	bucket := g.cells[pos.Cell()]
	out := make([]domain.EntityID, 0, len(bucket))
	for id := range bucket {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether id is indexed at pos.
func (g *SpatialGrid) Contains(id domain.EntityID, pos domain.Position) bool {
	_, ok := g.cells[pos.Cell()][id]
	return ok
}

// Len returns the number of indexed entries.
func (g *SpatialGrid) Len() int { return g.count }
