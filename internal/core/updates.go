package core

import (
	"stageplan/internal/entity"
	"stageplan/internal/policy"
	"stageplan/pkg/domain"
)

// OnEntityCreated handles a physical object appearing at stage. It either
// registers a new entity, adopts the object into an existing one, moves an
// existing entity's first stage down, or revives a settings remnant.
func (e *Engine) OnEntityCreated(info domain.EntityInfo, stage domain.StageNumber, h domain.Handle) (domain.CreateResult, *domain.UndoRecord) {
	res, _, undo := e.create(info, stage, h)
	return res, undo
}

// create is OnEntityCreated that also reports what folding info into an
// adopting entity did. The update result is empty unless the object was
// adopted.
func (e *Engine) create(info domain.EntityInfo, stage domain.StageNumber, h domain.Handle) (domain.CreateResult, domain.EntityUpdateResult, *domain.UndoRecord) {
	e.requireStage(stage)
	done := e.track("entity_created")
	proto, ok := e.Prototypes().Lookup(info.Name)
	if !ok {
		done(false)
		e.logger.Info("ignoring object with unknown prototype", "name", info.Name, "stage", stage)
		return domain.CreateUnknownPrototype, "", nil
	}

	existing := e.content.FindCompatible(info, nil, stage)
	if existing == nil {
		ent := entity.New(proto.Kind, info.ObservedValue(), info.Position, info.Direction, stage)
		if proto.Kind == domain.KindRollingStock {
			ent.SetLastStageUnchecked(&stage)
		}
		e.content.Add(ent)
		e.adopt(ent, stage, h)
		e.syncAll(ent)
		done(true)
		return domain.CreateAdded, "", &domain.UndoRecord{Kind: domain.UndoCreateEntity, Entity: ent.ID()}
	}

	if existing.IsSettingsRemnant() {
		if h != 0 {
			e.objects.Destroy(stage, h)
		}
		old := existing.FirstStage()
		if res := e.ReviveSettingsRemnant(existing, stage); res != domain.StageMoveUpdated {
			done(false)
			return domain.CreateCannotRevive, "", nil
		}
		done(true)
		return domain.CreateRevived, "", &domain.UndoRecord{Kind: domain.UndoReviveRemnant, Entity: existing.ID(), Stage: old}
	}

	if stage >= existing.FirstStage() {
		e.adopt(existing, stage, h)
		update := e.TryUpdateFromWorld(existing, stage, info)
		if update == domain.UpdateNoChange {
			e.SyncRange(existing, stage, stage)
		}
		done(true)
		return domain.CreateAlreadyExists, update, nil
	}

	e.adopt(existing, stage, h)
	res, undo := e.MoveToStage(existing, stage)
	if res != domain.StageMoveUpdated {
		e.SyncRange(existing, stage, stage)
		done(false)
		e.logger.Info("placement below range rejected", "entity", existing.ID(), "stage", stage, "result", res)
		return domain.CreateCannotMoveDown, "", nil
	}
	done(true)
	return domain.CreateMovedDown, "", undo
}

// OnEntityDeleted handles the player removing ent's object at stage. Only
// the first stage deletes; the object is restored anywhere else.
func (e *Engine) OnEntityDeleted(ent *entity.Entity, stage domain.StageNumber) (domain.DeleteResult, *domain.UndoRecord) {
	e.requireEntity(ent)
	done := e.track("entity_deleted")
	e.forgetRep(ent, stage)
	if stage != ent.FirstStage() || ent.IsSettingsRemnant() {
		e.SyncRange(ent, stage, stage)
		if stage > ent.FirstStage() && ent.InRange(stage) && !ent.IsSettingsRemnant() {
			done(false)
			return domain.DeleteCannotDeleteAboveFirstStage, nil
		}
		done(true)
		return domain.DeleteNoChange, nil
	}
	if ent.HasDiffs() || e.content.Graph().HasConnections(ent.ID()) {
		ent.SetSettingsRemnant(true)
		e.syncAll(ent)
		done(true)
		return domain.DeleteMadeSettingsRemnant, &domain.UndoRecord{Kind: domain.UndoMakeRemnant, Entity: ent.ID(), Stage: ent.FirstStage()}
	}
	rec := e.deletionRecord(ent)
	e.removeEntity(ent)
	done(true)
	return domain.DeleteDeleted, rec
}

// ForceDeleteEntity removes ent and every representation regardless of its
// diffs or connections.
func (e *Engine) ForceDeleteEntity(ent *entity.Entity) *domain.UndoRecord {
	e.requireEntity(ent)
	done := e.track("force_delete")
	rec := e.deletionRecord(ent)
	e.removeEntity(ent)
	done(true)
	return rec
}

func (e *Engine) deletionRecord(ent *entity.Entity) *domain.UndoRecord {
	snap := ent.Snapshot()
	rec := &domain.UndoRecord{Kind: domain.UndoDeleteEntity, Entity: ent.ID(), Snapshot: &snap}
	graph := e.content.Graph()
	for _, peer := range graph.Cables(ent.ID()) {
		rec.Cables = append(rec.Cables, domain.CableEdge{A: ent.ID(), B: peer})
	}
	for _, peer := range graph.Neighbors(ent.ID()) {
		for _, w := range graph.Circuits(ent.ID(), peer) {
			rec.Circuits = append(rec.Circuits, domain.CircuitEdge{A: ent.ID(), B: peer, Wire: w})
		}
	}
	return rec
}

func (e *Engine) removeEntity(ent *entity.Entity) {
	peers := e.content.Graph().Neighbors(ent.ID())
	e.destroyAll(ent)
	e.content.Remove(ent)
	for _, id := range peers {
		if peer, ok := e.content.Get(id); ok {
			e.syncWiresEverywhere(peer)
		}
	}
}

// TryUpdateFromWorld folds the value observed on stage into ent. Direction
// and type changes route through rotation, name changes through upgrade.
func (e *Engine) TryUpdateFromWorld(ent *entity.Entity, stage domain.StageNumber, observed domain.EntityInfo) domain.EntityUpdateResult {
	e.requireEntity(ent)
	e.requireStage(stage)
	if !ent.InRange(stage) {
		e.SyncRange(ent, stage, stage)
		return domain.UpdateNoChange
	}
	done := e.track("update_from_world")
	changed := false

	if e.rotationRequested(ent, observed) {
		var res domain.EntityUpdateResult
		current := ent.NameAtStage(stage)
		switch {
		case ent.Kind() != domain.KindUnderground:
			res = e.rotate(ent, stage, observed.Direction)
		case observed.Name != current && policy.UpgradeCompatible(e.Prototypes(), current, observed.Name):
			res = e.upgradeUnderground(ent, stage, observed.Name, true)
		default:
			res = e.flipUnderground(ent, stage)
		}
		if res != domain.UpdateUpdated {
			done(false)
			return res
		}
		changed = true
	}
	if observed.Name != ent.NameAtStage(stage) {
		res := e.upgrade(ent, stage, observed.Name, nil)
		if res != domain.UpdateUpdated && res != domain.UpdateNoChange {
			done(false)
			return res
		}
		changed = changed || res == domain.UpdateUpdated
	}

	value := observed.ObservedValue()
	value[domain.PropName] = ent.NameAtStage(stage)
	if hasType(ent.Kind()) {
		value[domain.PropType] = string(ent.UndergroundType())
	}
	if ent.AdjustValueAtStage(stage, value) {
		changed = true
	}
	if !changed {
		done(true)
		return domain.UpdateNoChange
	}
	e.syncFrom(ent, stage)
	done(true)
	return domain.UpdateUpdated
}

func hasType(kind domain.EntityKind) bool {
	return kind == domain.KindUnderground || kind == domain.KindLoader
}

func (e *Engine) rotationRequested(ent *entity.Entity, observed domain.EntityInfo) bool {
	if e.Prototypes().IsDirectionAgnostic(ent.Name()) {
		return false
	}
	if observed.Direction != ent.Direction() {
		return true
	}
	if ent.Kind() == domain.KindUnderground {
		t := observed.Value.UndergroundType()
		return t != "" && t != ent.UndergroundType()
	}
	return false
}

// TryRotate applies a rotation observed at stage. Rotations are accepted at
// the first stage only (or a paired underground's first stage); elsewhere
// the stage is re-materialized with the old direction.
func (e *Engine) TryRotate(ent *entity.Entity, stage domain.StageNumber, dir domain.Direction) domain.EntityUpdateResult {
	e.requireEntity(ent)
	e.requireStage(stage)
	done := e.track("rotate")
	res := e.rotate(ent, stage, dir)
	done(res == domain.UpdateUpdated || res == domain.UpdateNoChange)
	return res
}

func (e *Engine) rotate(ent *entity.Entity, stage domain.StageNumber, dir domain.Direction) domain.EntityUpdateResult {
	if dir == ent.Direction() {
		return domain.UpdateNoChange
	}
	if ent.Kind() == domain.KindUnderground {
		return e.flipUnderground(ent, stage)
	}
	proto, _ := e.Prototypes().Lookup(ent.NameAtStage(stage))
	if !policy.CanRotateAt(ent, nil, stage) || !proto.SupportsDirection(dir) {
		e.SyncRange(ent, stage, stage)
		e.logger.Info("rotation rejected", "entity", ent.ID(), "stage", stage)
		return domain.UpdateCannotRotate
	}
	ent.SetDirection(dir)
	if ent.Kind() == domain.KindLoader {
		ent.SetUndergroundType(ent.UndergroundType().Flip())
	}
	e.syncAll(ent)
	return domain.UpdateUpdated
}

// checkFlip decides whether ent may be flipped at stage and returns the
// partner that flips with it.
func (e *Engine) checkFlip(ent *entity.Entity, stage domain.StageNumber) (*entity.Entity, domain.EntityUpdateResult) {
	pair, multiple := policy.FindUndergroundPair(e.content, ent, stage, ent.NameAtStage(stage))
	if multiple {
		return nil, domain.UpdateCannotFlipMultiPairUnderground
	}
	if !policy.CanRotateAt(ent, pair, stage) {
		return nil, domain.UpdateCannotRotate
	}
	return pair, domain.UpdateUpdated
}

func flipPair(ent, pair *entity.Entity) {
	ent.Flip()
	if pair != nil {
		pair.Flip()
	}
}

// flipUnderground reverses an underground belt and its partner together.
func (e *Engine) flipUnderground(ent *entity.Entity, stage domain.StageNumber) domain.EntityUpdateResult {
	pair, res := e.checkFlip(ent, stage)
	if res != domain.UpdateUpdated {
		e.SyncRange(ent, stage, stage)
		e.logger.Info("flip rejected", "entity", ent.ID(), "stage", stage, "result", res)
		return res
	}
	flipPair(ent, pair)
	e.syncAll(ent)
	if pair != nil {
		e.syncAll(pair)
	}
	return domain.UpdateUpdated
}

// TryApplyUpgrade upgrades ent to name at stage, optionally rotating it at
// the same time. Underground pairs are upgraded together or not at all.
func (e *Engine) TryApplyUpgrade(ent *entity.Entity, stage domain.StageNumber, name string, dir *domain.Direction) domain.EntityUpdateResult {
	e.requireEntity(ent)
	e.requireStage(stage)
	done := e.track("apply_upgrade")
	res := e.upgrade(ent, stage, name, dir)
	done(res == domain.UpdateUpdated || res == domain.UpdateNoChange)
	return res
}

func (e *Engine) upgrade(ent *entity.Entity, stage domain.StageNumber, name string, dir *domain.Direction) domain.EntityUpdateResult {
	if !ent.InRange(stage) {
		e.SyncRange(ent, stage, stage)
		return domain.UpdateNoChange
	}
	current := ent.NameAtStage(stage)
	rotating := dir != nil && *dir != ent.Direction() && !e.Prototypes().IsDirectionAgnostic(name)
	if name == current && !rotating {
		return domain.UpdateNoChange
	}
	if name != current && !policy.UpgradeCompatible(e.Prototypes(), current, name) {
		e.SyncRange(ent, stage, stage)
		e.logger.Info("upgrade to incompatible prototype ignored", "entity", ent.ID(), "from", current, "to", name)
		return domain.UpdateNoChange
	}

	if ent.Kind() == domain.KindUnderground {
		return e.upgradeUnderground(ent, stage, name, rotating)
	}
	if rotating {
		if res := e.rotate(ent, stage, *dir); res != domain.UpdateUpdated {
			return res
		}
	}
	ent.ApplyUpgradeAtStage(stage, name)
	e.syncFrom(ent, stage)
	return domain.UpdateUpdated
}

// upgradeUnderground upgrades ent and its partner to name, flipping both
// first when rotating. The upgrade is checked against the pairing the flip
// produces; a rejection leaves both members untouched.
func (e *Engine) upgradeUnderground(ent *entity.Entity, stage domain.StageNumber, name string, rotating bool) domain.EntityUpdateResult {
	var flipped *entity.Entity
	if rotating {
		var res domain.EntityUpdateResult
		if flipped, res = e.checkFlip(ent, stage); res != domain.UpdateUpdated {
			e.SyncRange(ent, stage, stage)
			e.logger.Info("flip rejected", "entity", ent.ID(), "stage", stage, "result", res)
			return res
		}
		flipPair(ent, flipped)
	}
	upgrading := name != ent.NameAtStage(stage)
	var pair *entity.Entity
	if upgrading {
		var res domain.EntityUpdateResult
		if pair, res = policy.CheckUndergroundUpgrade(e.content, ent, stage, name); res != domain.UpdateUpdated {
			if rotating {
				flipPair(ent, flipped)
			}
			e.SyncRange(ent, stage, stage)
			e.logger.Info("underground upgrade rejected", "entity", ent.ID(), "stage", stage, "result", res)
			return res
		}
		ent.ApplyUpgradeAtStage(stage, name)
		if pair != nil {
			pair.ApplyUpgradeAtStage(stage, name)
		}
	}
	if rotating {
		e.syncAll(ent)
		if flipped != nil {
			e.syncAll(flipped)
		}
		if pair != nil && pair != flipped {
			e.syncAll(pair)
		}
		return domain.UpdateUpdated
	}
	e.syncFrom(ent, stage)
	if pair != nil {
		e.syncFrom(pair, stage)
	}
	return domain.UpdateUpdated
}

// ResetProperty drops the override of key at stage.
func (e *Engine) ResetProperty(ent *entity.Entity, stage domain.StageNumber, key string) bool {
	e.requireEntity(ent)
	if !ent.ResetPropertyAtStage(stage, key) {
		return false
	}
	e.syncFrom(ent, stage)
	return true
}

// MovePropertyDown moves the override of key at stage to the previous stage
// holding a diff, or to the first stage.
func (e *Engine) MovePropertyDown(ent *entity.Entity, stage domain.StageNumber, key string) bool {
	e.requireEntity(ent)
	target, ok := ent.MovePropertyDown(stage, key)
	if !ok {
		return false
	}
	e.syncFrom(ent, target)
	return true
}

// ResetAllProperties drops every override at stage.
func (e *Engine) ResetAllProperties(ent *entity.Entity, stage domain.StageNumber) bool {
	e.requireEntity(ent)
	if !ent.ResetValueAtStage(stage) {
		return false
	}
	e.syncFrom(ent, stage)
	return true
}

// MoveAllPropertiesDown moves every override at stage down one diff level.
func (e *Engine) MoveAllPropertiesDown(ent *entity.Entity, stage domain.StageNumber) bool {
	e.requireEntity(ent)
	target, ok := ent.MoveValueDown(stage)
	if !ok {
		return false
	}
	e.syncFrom(ent, target)
	return true
}
