package core

import (
	"stageplan/internal/entity"
	"stageplan/internal/policy"
	"stageplan/pkg/domain"
)

// MoveToStage moves ent's first stage. Policy checks run before any
// mutation; on success the whole range is re-synced.
func (e *Engine) MoveToStage(ent *entity.Entity, stage domain.StageNumber) (domain.StageMoveResult, *domain.UndoRecord) {
	e.requireEntity(ent)
	e.requireStage(stage)
	done := e.track("move_to_stage")
	if ent.IsSettingsRemnant() {
		done(true)
		return domain.StageMoveNoChange, nil
	}
	if res := policy.CheckFirstStageMove(e.content, ent, stage); res != domain.StageMoveUpdated {
		done(res == domain.StageMoveNoChange)
		if res != domain.StageMoveNoChange {
			e.logger.Info("stage move rejected", "entity", ent.ID(), "stage", stage, "result", res)
		}
		return res, nil
	}
	old := ent.FirstStage()
	e.setFirstStage(ent, stage)
	e.syncAll(ent)
	done(true)
	return domain.StageMoveUpdated, &domain.UndoRecord{Kind: domain.UndoMoveToStage, Entity: ent.ID(), Stage: old}
}

// setFirstStage moves the first stage, dragging the last stage along for
// rolling stock.
func (e *Engine) setFirstStage(ent *entity.Entity, stage domain.StageNumber) {
	if ent.Kind() != domain.KindRollingStock {
		ent.SetFirstStageUnchecked(stage)
		return
	}
	if stage > ent.FirstStage() {
		ent.SetLastStageUnchecked(&stage)
		ent.SetFirstStageUnchecked(stage)
		return
	}
	ent.SetFirstStageUnchecked(stage)
	ent.SetLastStageUnchecked(&stage)
}

// SetLastStage bounds ent's range at stage, or unbounds it when stage is nil.
// Shrinking destroys representations above the new last stage; growing
// materializes the newly included stages.
func (e *Engine) SetLastStage(ent *entity.Entity, stage *domain.StageNumber) (domain.StageMoveResult, *domain.UndoRecord) {
	e.requireEntity(ent)
	if stage != nil {
		e.requireStage(*stage)
	}
	done := e.track("set_last_stage")
	if res := policy.CheckLastStageMove(e.content, ent, stage); res != domain.StageMoveUpdated {
		done(res == domain.StageMoveNoChange)
		if res != domain.StageMoveNoChange {
			e.logger.Info("last stage move rejected", "entity", ent.ID(), "result", res)
		}
		return res, nil
	}
	old := ent.LastStagePtr()
	ent.SetLastStageUnchecked(stage)

	n := e.content.StageCount()
	low := n
	if old != nil && *old < low {
		low = *old
	}
	if stage != nil && *stage < low {
		low = *stage
	}
	e.SyncRange(ent, low+1, n)
	done(true)
	return domain.StageMoveUpdated, &domain.UndoRecord{Kind: domain.UndoSetLastStage, Entity: ent.ID(), LastStage: old}
}

// ReviveSettingsRemnant turns a remnant back into an active entity whose first
// stage is stage. Legality follows the first-stage move rules.
func (e *Engine) ReviveSettingsRemnant(ent *entity.Entity, stage domain.StageNumber) domain.StageMoveResult {
	e.requireEntity(ent)
	e.requireStage(stage)
	done := e.track("revive_settings_remnant")
	if !ent.IsSettingsRemnant() {
		done(true)
		return domain.StageMoveNoChange
	}
	if last, ok := ent.LastStage(); ok && stage > last {
		done(false)
		return domain.StageMoveCannotMovePastLastStage
	}
	if stage != ent.FirstStage() && policy.FirstStageMoveIntersects(e.content, ent, stage) {
		done(false)
		return domain.StageMoveIntersectsAnotherEntity
	}
	ent.SetSettingsRemnant(false)
	e.setFirstStage(ent, stage)
	e.syncAll(ent)
	done(true)
	return domain.StageMoveUpdated
}

// TryMoveEntity relocates ent after the player moved its first-stage object
// to pos. The host already moved the object on stage; every other stage is
// rebuilt at the new position.
func (e *Engine) TryMoveEntity(ent *entity.Entity, stage domain.StageNumber, pos domain.Position) domain.EntityMoveResult {
	e.requireEntity(ent)
	e.requireStage(stage)
	done := e.track("move_entity")
	if pos == ent.Position() {
		done(true)
		return domain.MoveNoChange
	}
	reject := func(res domain.EntityMoveResult) domain.EntityMoveResult {
		e.clearStage(ent, stage)
		e.SyncRange(ent, stage, stage)
		done(false)
		e.logger.Info("entity move rejected", "entity", ent.ID(), "stage", stage, "result", res)
		return res
	}
	if stage != ent.FirstStage() {
		return reject(domain.MoveNotFirstStage)
	}
	if ent.Kind() == domain.KindUnderground && policy.UndergroundPairAt(e.content, ent, stage, ent.NameAtStage(stage)) != nil {
		return reject(domain.MoveCannotMovePaired)
	}
	if !e.content.ChangePosition(ent, pos) {
		return reject(domain.MoveOverlapsAnotherEntity)
	}
	for _, s := range ent.RepresentationStages() {
		if s != stage {
			e.clearStage(ent, s)
		}
	}
	e.syncAll(ent)
	done(true)
	return domain.MoveMoved
}

// RefreshEntity re-materializes ent on stage.
func (e *Engine) RefreshEntity(ent *entity.Entity, stage domain.StageNumber) {
	e.requireEntity(ent)
	e.requireStage(stage)
	e.clearStage(ent, stage)
	e.SyncRange(ent, stage, stage)
}

// RebuildStage destroys and regenerates every representation on stage.
// Rolling stock is placed in a second pass, after the rails it depends on.
func (e *Engine) RebuildStage(stage domain.StageNumber) {
	e.requireStage(stage)
	done := e.track("rebuild_stage")
	all := e.content.All()
	for _, ent := range all {
		e.clearStage(ent, stage)
	}
	var deferred []*entity.Entity
	for _, ent := range all {
		if ent.Kind() == domain.KindRollingStock {
			deferred = append(deferred, ent)
			continue
		}
		e.syncStage(ent, stage)
	}
	for _, ent := range deferred {
		e.syncStage(ent, stage)
	}
	e.logger.Debug("rebuilt stage", "stage", stage, "entities", len(all), "deferred", len(deferred))
	done(true)
}

// RebuildAll rebuilds every stage.
func (e *Engine) RebuildAll() {
	for s := domain.StageNumber(1); s <= e.content.StageCount(); s++ {
		e.RebuildStage(s)
	}
}

// InsertStage inserts an empty stage before stage and materializes it.
func (e *Engine) InsertStage(stage domain.StageNumber) {
	e.assertf(stage >= 1 && stage <= e.content.StageCount()+1, "insert stage %d outside 1..%d", stage, e.content.StageCount()+1)
	e.content.InsertStage(stage)
	e.reindexHandles()
	e.RebuildStage(stage)
}

// DeleteStage removes stage. Its contents merge into the neighbouring stage
// and every entity is re-synced.
func (e *Engine) DeleteStage(stage domain.StageNumber) {
	e.requireStage(stage)
	e.assertf(e.content.StageCount() > 1, "cannot delete the only stage")
	for _, ent := range e.content.All() {
		e.clearStage(ent, stage)
	}
	e.content.DeleteStage(stage)
	e.reindexHandles()
	for _, ent := range e.content.All() {
		e.syncAll(ent)
	}
}

// SetPrototypes swaps the prototype table and rebuilds everything.
func (e *Engine) SetPrototypes(protos domain.PrototypeInfo) {
	e.content.SetPrototypes(protos)
	e.RebuildAll()
}
