package core

import (
	"fmt"

	"stageplan/internal/entity"
	"stageplan/pkg/domain"
)

// Dispatch routes a world event to its entry point. Every event kind is
// handled here; non-success outcomes are forwarded to the notifier.
//
// Entity resolution prefers ev.Entity, then ev.Handle on ev.Stage, then a
// compatible entity at ev.Info's position. For EventMoveToStage and
// EventReviveSettingsRemnant, ev.Stage is the new first stage and the entity
// must be given by ID.
func (e *Engine) Dispatch(ev domain.WorldEvent) domain.Outcome {
	out := domain.Outcome{Event: ev.Kind}
	ent := e.resolve(ev)
	if ent != nil {
		out.Entity = ent.ID()
	}

	switch ev.Kind {
	case domain.EventEntityCreated:
		e.dispatchCreate(&out, ev)
		if created := e.content.FindExact(ev.Info, ev.Stage); created != nil {
			out.Entity = created.ID()
		}
	case domain.EventEntityDeleted:
		if ent == nil {
			out.Delete = domain.DeleteNoChange
			break
		}
		out.Delete, out.Undo = e.OnEntityDeleted(ent, ev.Stage)
	case domain.EventEntityPossiblyUpdated:
		if ent == nil {
			e.dispatchCreate(&out, ev)
			break
		}
		out.Update = e.TryUpdateFromWorld(ent, ev.Stage, ev.Info)
	case domain.EventEntityRotated:
		if ent == nil {
			out.Update = domain.UpdateNoChange
			break
		}
		out.Update = e.TryRotate(ent, ev.Stage, ev.Info.Direction)
	case domain.EventEntityUpgraded:
		if ent == nil {
			out.Update = domain.UpdateNoChange
			break
		}
		dir := ev.Info.Direction
		out.Update = e.TryApplyUpgrade(ent, ev.Stage, ev.Info.Name, &dir)
	case domain.EventWiresChanged:
		if ent == nil {
			out.Wire = domain.WireNoChange
			break
		}
		out.Wire = e.TryUpdateWiresFromWorld(ent, ev.Stage, ev.Links)
	case domain.EventMoveToStage:
		if ent == nil {
			out.Move = domain.StageMoveNoChange
			break
		}
		out.Move, out.Undo = e.MoveToStage(ent, ev.Stage)
	case domain.EventSetLastStage:
		if ent == nil {
			out.Move = domain.StageMoveNoChange
			break
		}
		out.Move, out.Undo = e.SetLastStage(ent, ev.LastStage)
	case domain.EventEntityMoved:
		if ent == nil || ev.Position == nil {
			out.Reloc = domain.MoveNoChange
			break
		}
		out.Reloc = e.TryMoveEntity(ent, ev.Stage, *ev.Position)
	case domain.EventForceDelete:
		if ent == nil {
			out.Delete = domain.DeleteNoChange
			break
		}
		out.Undo = e.ForceDeleteEntity(ent)
		out.Delete = domain.DeleteDeleted
	case domain.EventReviveSettingsRemnant:
		if ent == nil {
			out.Move = domain.StageMoveNoChange
			break
		}
		old := ent.FirstStage()
		out.Move = e.ReviveSettingsRemnant(ent, ev.Stage)
		if out.Move == domain.StageMoveUpdated {
			out.Undo = &domain.UndoRecord{Kind: domain.UndoReviveRemnant, Entity: ent.ID(), Stage: old}
		}
	case domain.EventResetProperty:
		out.Update = domain.UpdateNoChange
		if ent == nil {
			break
		}
		var changed bool
		if ev.Property == "" {
			changed = e.ResetAllProperties(ent, ev.Stage)
		} else {
			changed = e.ResetProperty(ent, ev.Stage, ev.Property)
		}
		if changed {
			out.Update = domain.UpdateUpdated
		}
	case domain.EventMovePropertyDown:
		out.Update = domain.UpdateNoChange
		if ent == nil {
			break
		}
		var changed bool
		if ev.Property == "" {
			changed = e.MoveAllPropertiesDown(ent, ev.Stage)
		} else {
			changed = e.MovePropertyDown(ent, ev.Stage, ev.Property)
		}
		if changed {
			out.Update = domain.UpdateUpdated
		}
	default:
		e.assertf(false, "unknown world event kind %q", ev.Kind)
	}

	e.notify(out, ev.Stage)
	return out
}

// dispatchCreate records a placement. When the object was adopted into an
// existing entity and folding it in was rejected, the rejection becomes the
// outcome's code so the notifier sees it.
func (e *Engine) dispatchCreate(out *domain.Outcome, ev domain.WorldEvent) {
	var update domain.EntityUpdateResult
	out.Create, update, out.Undo = e.create(ev.Info, ev.Stage, ev.Handle)
	if update != "" && update != domain.UpdateNoChange && update != domain.UpdateUpdated {
		out.Update = update
	}
}

func (e *Engine) resolve(ev domain.WorldEvent) *entity.Entity {
	if ev.Entity != 0 {
		ent, _ := e.content.Get(ev.Entity)
		return ent
	}
	if ev.Kind == domain.EventEntityCreated {
		return nil
	}
	if ev.Handle != 0 {
		if ent, ok := e.EntityFor(ev.Stage, ev.Handle); ok {
			return ent
		}
	}
	if ev.Info.Name == "" {
		return nil
	}
	return e.content.FindCompatible(ev.Info, ev.Previous, ev.Stage)
}

func (e *Engine) notify(out domain.Outcome, stage domain.StageNumber) {
	severity, report := notificationCode(out)
	if !report {
		return
	}
	e.notifier.Notify(domain.Notification{Code: out.Code(), Severity: severity, Entity: out.Entity, Stage: stage})
}

// notificationCode maps the result carried by out to the severity the
// notifier sees. Success codes are not reported. An outcome without a known
// result is a programmer error.
func notificationCode(out domain.Outcome) (domain.Severity, bool) {
	switch {
	case out.Update != "":
		return updateSeverity(out.Update)
	case out.Move != "":
		return stageMoveSeverity(out.Move)
	case out.Create != "":
		return createSeverity(out.Create)
	case out.Delete != "":
		return deleteSeverity(out.Delete)
	case out.Wire != "":
		return wireSeverity(out.Wire)
	case out.Reloc != "":
		return relocSeverity(out.Reloc)
	}
	panic(fmt.Sprintf("core: outcome for %q carries no result", out.Event))
}

func updateSeverity(r domain.EntityUpdateResult) (domain.Severity, bool) {
	switch r {
	case domain.UpdateNoChange, domain.UpdateUpdated:
		return "", false
	case domain.UpdateCannotRotate,
		domain.UpdateCannotFlipMultiPairUnderground,
		domain.UpdateCannotUpgradeMultiPairUnderground,
		domain.UpdateCannotCreatePairUpgrade,
		domain.UpdateCannotUpgradeChangedPair:
		return domain.SeverityBlock, true
	}
	panic(fmt.Sprintf("core: unknown entity update result %q", r))
}

func stageMoveSeverity(r domain.StageMoveResult) (domain.Severity, bool) {
	switch r {
	case domain.StageMoveUpdated, domain.StageMoveNoChange:
		return "", false
	case domain.StageMoveCannotMoveUpgradedUnderground,
		domain.StageMoveCannotMovePastLastStage,
		domain.StageMoveCannotMoveBeforeFirstStage,
		domain.StageMoveIntersectsAnotherEntity:
		return domain.SeverityBlock, true
	}
	panic(fmt.Sprintf("core: unknown stage move result %q", r))
}

func createSeverity(r domain.CreateResult) (domain.Severity, bool) {
	switch r {
	case domain.CreateAdded, domain.CreateAlreadyExists:
		return "", false
	case domain.CreateMovedDown, domain.CreateRevived:
		return domain.SeverityLog, true
	case domain.CreateUnknownPrototype:
		return domain.SeverityWarn, true
	case domain.CreateCannotMoveDown, domain.CreateCannotRevive:
		return domain.SeverityBlock, true
	}
	panic(fmt.Sprintf("core: unknown create result %q", r))
}

func deleteSeverity(r domain.DeleteResult) (domain.Severity, bool) {
	switch r {
	case domain.DeleteDeleted, domain.DeleteNoChange:
		return "", false
	case domain.DeleteMadeSettingsRemnant:
		return domain.SeverityLog, true
	case domain.DeleteCannotDeleteAboveFirstStage:
		return domain.SeverityBlock, true
	}
	panic(fmt.Sprintf("core: unknown delete result %q", r))
}

func wireSeverity(r domain.WireUpdateResult) (domain.Severity, bool) {
	switch r {
	case domain.WireNoChange, domain.WireUpdated:
		return "", false
	case domain.WireMaxConnectionsExceeded:
		return domain.SeverityWarn, true
	}
	panic(fmt.Sprintf("core: unknown wire result %q", r))
}

func relocSeverity(r domain.EntityMoveResult) (domain.Severity, bool) {
	switch r {
	case domain.MoveMoved, domain.MoveNoChange:
		return "", false
	case domain.MoveNotFirstStage, domain.MoveOverlapsAnotherEntity, domain.MoveCannotMovePaired:
		return domain.SeverityBlock, true
	}
	panic(fmt.Sprintf("core: unknown relocation result %q", r))
}
