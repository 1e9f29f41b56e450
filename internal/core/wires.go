package core

import (
	"sort"

	"stageplan/internal/entity"
	"stageplan/pkg/domain"
)

// TryUpdateWiresFromWorld folds the physical links observed on ent's object
// at stage into the connection graph, then re-applies the graph to every
// stage. Only peers with a live object on stage can be observed, so edges to
// other peers are left alone. New cables beyond the configured maximum are
// rejected and reported.
func (e *Engine) TryUpdateWiresFromWorld(ent *entity.Entity, stage domain.StageNumber, links []domain.ObservedLink) domain.WireUpdateResult {
	e.requireEntity(ent)
	e.requireStage(stage)
	rep, ok := ent.Representation(stage)
	if !ok || rep.Preview || rep.Handle == 0 {
		return domain.WireNoChange
	}
	done := e.track("update_wires")
	graph := e.content.Graph()
	id := ent.ID()

	cables := make(map[domain.EntityID]bool)
	circuits := make(map[domain.EntityID]map[domain.CircuitWire]bool)
	for _, l := range links {
		peer, ok := e.EntityFor(stage, l.Other)
		if !ok || peer == ent {
			continue
		}
		if l.Cable {
			cables[peer.ID()] = true
		}
		if l.Circuit != nil {
			if circuits[peer.ID()] == nil {
				circuits[peer.ID()] = make(map[domain.CircuitWire]bool)
			}
			circuits[peer.ID()][*l.Circuit] = true
		}
	}

	changed := false
	affected := make(map[domain.EntityID]struct{})
	for _, pid := range graph.Neighbors(id) {
		if !e.liveAt(pid, stage) {
			continue
		}
		if graph.HasCable(id, pid) && !cables[pid] {
			graph.RemoveCable(id, pid)
			changed = true
			affected[pid] = struct{}{}
		}
		for _, w := range graph.Circuits(id, pid) {
			if !circuits[pid][w] {
				graph.RemoveCircuit(id, pid, w)
				changed = true
				affected[pid] = struct{}{}
			}
		}
	}

	exceeded := false
	for _, pid := range sortedKeys(cables) {
		if graph.HasCable(id, pid) {
			continue
		}
		if len(graph.Cables(id)) >= e.maxCables || len(graph.Cables(pid)) >= e.maxCables {
			exceeded = true
			affected[pid] = struct{}{}
			continue
		}
		graph.AddCable(id, pid)
		changed = true
		affected[pid] = struct{}{}
	}
	for pid, ws := range circuits {
		for w := range ws {
			if graph.AddCircuit(id, pid, w) {
				changed = true
				affected[pid] = struct{}{}
			}
		}
	}

	if changed || exceeded {
		if e.syncWiresEverywhere(ent) == domain.WireMaxConnectionsExceeded {
			exceeded = true
		}
		for pid := range affected {
			if peer, ok := e.content.Get(pid); ok {
				e.syncWiresEverywhere(peer)
			}
		}
	}
	switch {
	case exceeded:
		done(false)
		e.logger.Warn("wire connection limit exceeded", "entity", id, "stage", stage)
		return domain.WireMaxConnectionsExceeded
	case changed:
		done(true)
		return domain.WireUpdated
	default:
		done(true)
		return domain.WireNoChange
	}
}

// SyncWires re-applies the logical connections of ent onto its object at stage.
func (e *Engine) SyncWires(ent *entity.Entity, stage domain.StageNumber) domain.WireUpdateResult {
	e.requireEntity(ent)
	e.requireStage(stage)
	return e.syncWiresAt(ent, stage)
}

func (e *Engine) syncWiresEverywhere(ent *entity.Entity) domain.WireUpdateResult {
	res := domain.WireNoChange
	for _, s := range ent.RepresentationStages() {
		switch e.syncWiresAt(ent, s) {
		case domain.WireMaxConnectionsExceeded:
			res = domain.WireMaxConnectionsExceeded
		case domain.WireUpdated:
			if res == domain.WireNoChange {
				res = domain.WireUpdated
			}
		}
	}
	return res
}

func (e *Engine) liveAt(id domain.EntityID, stage domain.StageNumber) bool {
	peer, ok := e.content.Get(id)
	if !ok {
		return false
	}
	r, ok := peer.Representation(stage)
	return ok && !r.Preview && r.Handle != 0
}

func sortedKeys(m map[domain.EntityID]bool) []domain.EntityID {
	out := make([]domain.EntityID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
