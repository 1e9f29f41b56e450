package core

import (
	"stageplan/internal/entity"
	"stageplan/pkg/domain"
)

// SyncRange regenerates the physical representation of ent on every stage in
// [start, end]. A start at or below the first stage extends down to stage 1
// so previews below the range are refreshed too. It reports whether any
// in-range stage switched between a real object and a failed placement.
func (e *Engine) SyncRange(ent *entity.Entity, start, end domain.StageNumber) bool {
	e.requireEntity(ent)
	if start <= ent.FirstStage() {
		start = 1
	}
	if n := e.content.StageCount(); end > n {
		end = n
	}
	flipped := false
	for s := start; s <= end; s++ {
		if e.syncStage(ent, s) {
			flipped = true
		}
	}
	return flipped
}

func (e *Engine) syncAll(ent *entity.Entity) bool {
	return e.SyncRange(ent, 1, e.content.StageCount())
}

func (e *Engine) syncFrom(ent *entity.Entity, stage domain.StageNumber) bool {
	return e.SyncRange(ent, stage, e.content.StageCount())
}

// syncStage materializes one stage and reports a failed-flag flip.
func (e *Engine) syncStage(ent *entity.Entity, stage domain.StageNumber) bool {
	old, had := ent.Representation(stage)
	if last, bounded := ent.LastStage(); bounded && stage > last {
		e.clearStage(ent, stage)
		return false
	}
	if stage < ent.FirstStage() || ent.IsSettingsRemnant() {
		e.placePreview(ent, stage, false)
		return false
	}

	value, _ := ent.ValueAtStage(stage)
	rep, placed := e.placeReal(ent, stage, value, old, had)
	if !placed {
		e.placePreview(ent, stage, true)
		return !(had && old.Failed)
	}
	e.objects.SetProtected(stage, rep.Handle, stage > ent.FirstStage())
	if !had || old.Preview || old.Handle != rep.Handle {
		e.syncWiresAt(ent, stage)
	}
	return had && old.Failed
}

// placeReal updates the existing real object in place or creates a new one.
func (e *Engine) placeReal(ent *entity.Entity, stage domain.StageNumber, value domain.Value, old entity.Representation, had bool) (entity.Representation, bool) {
	if had && !old.Preview && old.Handle != 0 {
		if h, ok := e.objects.UpdateObject(stage, old.Handle, value, ent.Direction()); ok {
			rep := entity.Representation{Handle: h}
			e.setRep(ent, stage, rep)
			return rep, true
		}
	}
	e.clearStage(ent, stage)
	h, ok := e.objects.CreateObject(stage, ent.Position(), ent.Direction(), value)
	if !ok {
		return entity.Representation{}, false
	}
	rep := entity.Representation{Handle: h}
	e.setRep(ent, stage, rep)
	return rep, true
}

// placePreview replaces whatever is on stage with a placeholder named after
// what the entity would be there.
func (e *Engine) placePreview(ent *entity.Entity, stage domain.StageNumber, failed bool) {
	e.clearStage(ent, stage)
	h := e.objects.CreatePreview(stage, ent.Position(), ent.Direction(), ent.NameAtStage(stage))
	e.setRep(ent, stage, entity.Representation{Handle: h, Preview: true, Failed: failed})
}

// adopt makes a host-placed object the representation of ent on stage.
func (e *Engine) adopt(ent *entity.Entity, stage domain.StageNumber, h domain.Handle) {
	if h == 0 {
		return
	}
	if old, ok := ent.Representation(stage); ok && old.Handle == h {
		e.setRep(ent, stage, entity.Representation{Handle: h})
		return
	}
	e.clearStage(ent, stage)
	e.setRep(ent, stage, entity.Representation{Handle: h})
}

// syncWiresAt makes the physical links of ent on stage match the graph for
// every neighbour that also has a live object there.
func (e *Engine) syncWiresAt(ent *entity.Entity, stage domain.StageNumber) domain.WireUpdateResult {
	rep, ok := ent.Representation(stage)
	if !ok || rep.Preview || rep.Handle == 0 {
		return domain.WireNoChange
	}
	graph := e.content.Graph()
	type pending struct {
		handle domain.Handle
		links  domain.LinkSet
	}
	var (
		keep  []domain.Handle
		peers []pending
	)
	for _, id := range graph.Neighbors(ent.ID()) {
		peer, ok := e.content.Get(id)
		if !ok {
			continue
		}
		pr, ok := peer.Representation(stage)
		if !ok || pr.Preview || pr.Handle == 0 {
			continue
		}
		keep = append(keep, pr.Handle)
		peers = append(peers, pending{handle: pr.Handle, links: graph.Links(ent.ID(), id)})
	}
	e.wires.PruneLinks(stage, rep.Handle, keep)
	exceeded := false
	for _, p := range peers {
		if e.wires.SyncLinks(stage, rep.Handle, p.handle, p.links) {
			exceeded = true
		}
	}
	if exceeded {
		return domain.WireMaxConnectionsExceeded
	}
	return domain.WireUpdated
}
