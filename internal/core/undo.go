package core

import (
	"stageplan/internal/entity"
	"stageplan/pkg/domain"
)

// Undo replays rec through the same entry points that produced it. It
// reports whether the record could still be applied.
func (e *Engine) Undo(rec *domain.UndoRecord) bool {
	if rec == nil {
		return false
	}
	done := e.track("undo")
	ok := e.undo(rec)
	done(ok)
	return ok
}

func (e *Engine) undo(rec *domain.UndoRecord) bool {
	if rec.Kind == domain.UndoDeleteEntity {
		return e.restoreDeleted(rec)
	}
	ent, ok := e.content.Get(rec.Entity)
	if !ok {
		return false
	}
	switch rec.Kind {
	case domain.UndoMoveToStage:
		res, _ := e.MoveToStage(ent, rec.Stage)
		return res == domain.StageMoveUpdated
	case domain.UndoSetLastStage:
		res, _ := e.SetLastStage(ent, rec.LastStage)
		return res == domain.StageMoveUpdated
	case domain.UndoCreateEntity:
		e.ForceDeleteEntity(ent)
		return true
	case domain.UndoMakeRemnant:
		return e.ReviveSettingsRemnant(ent, rec.Stage) == domain.StageMoveUpdated
	case domain.UndoReviveRemnant:
		if ent.IsSettingsRemnant() {
			return false
		}
		if last, bounded := ent.LastStage(); bounded && rec.Stage > last {
			return false
		}
		ent.SetSettingsRemnant(true)
		e.setFirstStage(ent, rec.Stage)
		e.syncAll(ent)
		return true
	default:
		e.assertf(false, "unknown undo kind %q", rec.Kind)
		return false
	}
}

func (e *Engine) restoreDeleted(rec *domain.UndoRecord) bool {
	if rec.Snapshot == nil {
		return false
	}
	if _, taken := e.content.Get(rec.Snapshot.ID); taken {
		return false
	}
	kind := e.Prototypes().KindOf(rec.Snapshot.FirstValue.Name())
	ent := entity.FromSnapshot(kind, *rec.Snapshot)
	e.content.Add(ent)
	graph := e.content.Graph()
	for _, c := range rec.Cables {
		if _, ok := e.content.Get(c.B); ok {
			graph.AddCable(c.A, c.B)
		}
	}
	for _, c := range rec.Circuits {
		if _, ok := e.content.Get(c.B); ok {
			graph.AddCircuit(c.A, c.B, c.Wire)
		}
	}
	e.syncAll(ent)
	return true
}
