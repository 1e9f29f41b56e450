package policy

import (
	"stageplan/internal/entity"
	"stageplan/internal/project"
	"stageplan/pkg/domain"
)

// StageMoveRule inspects a proposed first-stage move and returns a rejection,
// or the empty result when the move may proceed.
type StageMoveRule func(c *project.Content, e *entity.Entity, stage domain.StageNumber) domain.StageMoveResult

// firstStageRules run in order; the first non-empty result wins.
var firstStageRules = []StageMoveRule{
	func(_ *project.Content, e *entity.Entity, stage domain.StageNumber) domain.StageMoveResult {
		if stage == e.FirstStage() {
			return domain.StageMoveNoChange
		}
		return ""
	},
	func(_ *project.Content, e *entity.Entity, stage domain.StageNumber) domain.StageMoveResult {
		if last, ok := e.LastStage(); ok && stage > last && e.Kind() != domain.KindRollingStock {
			return domain.StageMoveCannotMovePastLastStage
		}
		return ""
	},
	func(_ *project.Content, e *entity.Entity, _ domain.StageNumber) domain.StageMoveResult {
		if e.Kind() == domain.KindUnderground && e.HasDiffs() {
			return domain.StageMoveCannotMoveUpgradedUnderground
		}
		return ""
	},
	func(c *project.Content, e *entity.Entity, stage domain.StageNumber) domain.StageMoveResult {
		if FirstStageMoveIntersects(c, e, stage) {
			return domain.StageMoveIntersectsAnotherEntity
		}
		return ""
	},
}

// CheckFirstStageMove evaluates moving e's first stage to stage. A stage
// below 1 is a programmer error and must be rejected by the caller.
func CheckFirstStageMove(c *project.Content, e *entity.Entity, stage domain.StageNumber) domain.StageMoveResult {
	for _, rule := range firstStageRules {
		if res := rule(c, e, stage); res != "" {
			return res
		}
	}
	return domain.StageMoveUpdated
}

// CheckLastStageMove evaluates bounding e's range at stage, or unbounding it
// when stage is nil.
func CheckLastStageMove(c *project.Content, e *entity.Entity, stage *domain.StageNumber) domain.StageMoveResult {
	old, bounded := e.LastStage()
	switch {
	case stage == nil && !bounded:
		return domain.StageMoveNoChange
	case stage != nil && bounded && *stage == old:
		return domain.StageMoveNoChange
	case stage != nil && *stage < e.FirstStage():
		return domain.StageMoveCannotMoveBeforeFirstStage
	case e.Kind() == domain.KindRollingStock:
		return domain.StageMoveNoChange
	}
	if bounded && (stage == nil || *stage > old) {
		if Overlaps(c, e, old+1, stage) {
			return domain.StageMoveIntersectsAnotherEntity
		}
	}
	return domain.StageMoveUpdated
}

// FirstStageMoveIntersects reports whether moving e's first stage to stage
// would newly occupy a stage already held by another entity at the same
// position. Moving down newly occupies [stage, first-1] and only collides
// with compatible entities; moving up is checked at the new lower edge
// against any entity.
func FirstStageMoveIntersects(c *project.Content, e *entity.Entity, stage domain.StageNumber) bool {
	if stage < e.FirstStage() {
		hi := e.FirstStage() - 1
		protos := c.Prototypes()
		return overlapping(c, e, stage, &hi, func(other *entity.Entity) bool {
			return protos.Compatible(other.NameAtStage(stage), e.NameAtStage(e.FirstStage()))
		})
	}
	return Overlaps(c, e, stage, &stage)
}

// Overlaps reports whether any other entity positioned exactly where e is has
// a range intersecting [lo, hi]. A nil hi is unbounded.
func Overlaps(c *project.Content, e *entity.Entity, lo domain.StageNumber, hi *domain.StageNumber) bool {
	return overlapping(c, e, lo, hi, nil)
}

func overlapping(c *project.Content, e *entity.Entity, lo domain.StageNumber, hi *domain.StageNumber, match func(*entity.Entity) bool) bool {
	for _, other := range c.EntitiesAt(e.Position()) {
		if other == e {
			continue
		}
		if hi != nil && other.FirstStage() > *hi {
			continue
		}
		if last, ok := other.LastStage(); ok && last < lo {
			continue
		}
		if match != nil && !match(other) {
			continue
		}
		return true
	}
	return false
}
