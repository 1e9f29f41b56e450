package project

import (
	"sort"

	"stageplan/pkg/domain"
)

// ConnectionGraph stores cable and circuit connections between entity IDs.
// Wires are stage-invariant; only their physical presence varies per stage.
type ConnectionGraph struct {
	cables   map[domain.EntityID]map[domain.EntityID]struct{}
	circuits map[domain.EntityID]map[domain.EntityID]map[domain.CircuitWire]struct{}
}

// NewConnectionGraph returns an empty graph.
func NewConnectionGraph() *ConnectionGraph {
	return &ConnectionGraph{
		cables:   make(map[domain.EntityID]map[domain.EntityID]struct{}),
		circuits: make(map[domain.EntityID]map[domain.EntityID]map[domain.CircuitWire]struct{}),
	}
}

// AddCable connects a and b. It reports false for self-loops and duplicates.
func (g *ConnectionGraph) AddCable(a, b domain.EntityID) bool {
	if a == b {
		return false
	}
	if _, ok := g.cables[a][b]; ok {
		return false
	}
	g.link(a, b)
	g.link(b, a)
	return true
}

func (g *ConnectionGraph) link(a, b domain.EntityID) {
	set, ok := g.cables[a]
	if !ok {
		set = make(map[domain.EntityID]struct{})
		g.cables[a] = set
	}
	set[b] = struct{}{}
}

// RemoveCable disconnects a and b.
func (g *ConnectionGraph) RemoveCable(a, b domain.EntityID) bool {
	if _, ok := g.cables[a][b]; !ok {
		return false
	}
	g.unlink(a, b)
	g.unlink(b, a)
	return true
}

func (g *ConnectionGraph) unlink(a, b domain.EntityID) {
	delete(g.cables[a], b)
	if len(g.cables[a]) == 0 {
		delete(g.cables, a)
	}
}

// Cables returns the cable neighbors of id, sorted.
func (g *ConnectionGraph) Cables(id domain.EntityID) []domain.EntityID {
	return sortedIDs(g.cables[id])
}

// HasCable reports whether a and b are cable neighbors.
func (g *ConnectionGraph) HasCable(a, b domain.EntityID) bool {
	_, ok := g.cables[a][b]
	return ok
}

// AddCircuit connects (a, wire.FromConnector) to (b, wire.ToConnector).
// Duplicate logical connections collapse into one edge.
func (g *ConnectionGraph) AddCircuit(a, b domain.EntityID, wire domain.CircuitWire) bool {
	if a == b && wire.FromConnector == wire.ToConnector {
		return false
	}
	if _, ok := g.circuits[a][b][wire]; ok {
		return false
	}
	g.addHalf(a, b, wire)
	g.addHalf(b, a, wire.Reverse())
	return true
}

func (g *ConnectionGraph) addHalf(a, b domain.EntityID, wire domain.CircuitWire) {
	byPeer, ok := g.circuits[a]
	if !ok {
		byPeer = make(map[domain.EntityID]map[domain.CircuitWire]struct{})
		g.circuits[a] = byPeer
	}
	wires, ok := byPeer[b]
	if !ok {
		wires = make(map[domain.CircuitWire]struct{})
		byPeer[b] = wires
	}
	wires[wire] = struct{}{}
}

// RemoveCircuit removes one circuit connection.
func (g *ConnectionGraph) RemoveCircuit(a, b domain.EntityID, wire domain.CircuitWire) bool {
	if _, ok := g.circuits[a][b][wire]; !ok {
		return false
	}
	g.removeHalf(a, b, wire)
	g.removeHalf(b, a, wire.Reverse())
	return true
}

func (g *ConnectionGraph) removeHalf(a, b domain.EntityID, wire domain.CircuitWire) {
	delete(g.circuits[a][b], wire)
	if len(g.circuits[a][b]) == 0 {
		delete(g.circuits[a], b)
	}
	if len(g.circuits[a]) == 0 {
		delete(g.circuits, a)
	}
}

// Circuits returns the circuit wires from id to peer, sorted.
func (g *ConnectionGraph) Circuits(id, peer domain.EntityID) []domain.CircuitWire {
	set := g.circuits[id][peer]
	out := make([]domain.CircuitWire, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sortWires(out)
	return out
}

// Neighbors returns every entity connected to id by any wire, sorted.
func (g *ConnectionGraph) Neighbors(id domain.EntityID) []domain.EntityID {
	set := make(map[domain.EntityID]struct{}, len(g.cables[id])+len(g.circuits[id]))
	for peer := range g.cables[id] {
		set[peer] = struct{}{}
	}
	for peer := range g.circuits[id] {
		set[peer] = struct{}{}
	}
	return sortedIDs(set)
}

// Links returns the desired physical links between id and peer.
func (g *ConnectionGraph) Links(id, peer domain.EntityID) domain.LinkSet {
	return domain.LinkSet{Cable: g.HasCable(id, peer), Circuits: g.Circuits(id, peer)}
}

// HasConnections reports whether id has any cable or circuit connection.
func (g *ConnectionGraph) HasConnections(id domain.EntityID) bool {
	return len(g.cables[id]) > 0 || len(g.circuits[id]) > 0
}

// HasCircuits reports whether id has any circuit connection.
func (g *ConnectionGraph) HasCircuits(id domain.EntityID) bool {
	return len(g.circuits[id]) > 0
}

// RemoveAll drops every edge touching id.
func (g *ConnectionGraph) RemoveAll(id domain.EntityID) {
	for peer := range g.cables[id] {
		g.unlink(peer, id)
	}
	delete(g.cables, id)
	for peer, wires := range g.circuits[id] {
		for w := range wires {
			g.removeHalf(peer, id, w.Reverse())
		}
	}
	delete(g.circuits, id)
}

// Edges returns every logical edge once, for persistence.
func (g *ConnectionGraph) Edges() ([]domain.CableEdge, []domain.CircuitEdge) {
	var cables []domain.CableEdge
	for a, peers := range g.cables {
		for b := range peers {
			if a < b {
				cables = append(cables, domain.CableEdge{A: a, B: b})
			}
		}
	}
	sort.Slice(cables, func(i, j int) bool {
		if cables[i].A != cables[j].A {
			return cables[i].A < cables[j].A
		}
		return cables[i].B < cables[j].B
	})
	var circuits []domain.CircuitEdge
	for a, peers := range g.circuits {
		for b, wires := range peers {
			for w := range wires {
				if a < b || (a == b && w.FromConnector < w.ToConnector) {
					circuits = append(circuits, domain.CircuitEdge{A: a, B: b, Wire: w})
				}
			}
		}
	}
	sort.Slice(circuits, func(i, j int) bool {
		x, y := circuits[i], circuits[j]
		if x.A != y.A {
			return x.A < y.A
		}
		if x.B != y.B {
			return x.B < y.B
		}
		return wireLess(x.Wire, y.Wire)
	})
	return cables, circuits
}

func sortedIDs(set map[domain.EntityID]struct{}) []domain.EntityID {
	out := make([]domain.EntityID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortWires(ws []domain.CircuitWire) {
	sort.Slice(ws, func(i, j int) bool { return wireLess(ws[i], ws[j]) })
}

func wireLess(a, b domain.CircuitWire) bool {
	if a.Color != b.Color {
		return a.Color < b.Color
	}
	if a.FromConnector != b.FromConnector {
		return a.FromConnector < b.FromConnector
	}
	return a.ToConnector < b.ToConnector
}
