// Package policy holds the pure decision functions the reconciliation engine
// consults before mutating an entity: rotation and upgrade legality,
// underground belt pairing and stage-move overlap checks. Nothing in this
// package mutates state.
package policy

import (
	"stageplan/internal/entity"
	"stageplan/internal/project"
	"stageplan/pkg/domain"
)

// DefaultUndergroundDistance applies when a prototype does not declare a reach.
const DefaultUndergroundDistance = 5

// UndergroundReach returns the pairing distance for name.
func UndergroundReach(protos domain.PrototypeInfo, name string) int {
	proto, ok := protos.Lookup(name)
	if !ok || proto.MaxUndergroundDistance <= 0 {
		return DefaultUndergroundDistance
	}
	return proto.MaxUndergroundDistance
}

// pairSearch walks the belt axis from an underground member. Inputs search
// forward along their direction, outputs search backward. The first
// underground with the searched name and the same direction decides: a
// complementary type pairs, the same type blocks.
type pairSearch struct {
	content *project.Content
	member  *entity.Entity
	stage   domain.StageNumber
	name    string
	// assumed is treated as carrying name regardless of its own.
	assumed *entity.Entity
}

func (p pairSearch) find() *entity.Entity {
	if p.member.Kind() != domain.KindUnderground {
		return nil
	}
	step := p.member.Direction()
	if p.member.UndergroundType() == domain.UndergroundOutput {
		step = step.Opposite()
	}
	if dx, dy := step.Vector(); dx == 0 && dy == 0 {
		return nil
	}
	reach := UndergroundReach(p.content.Prototypes(), p.name)
	origin := p.member.Position()
	for i := 1; i <= reach; i++ {
		for _, cand := range p.content.EntitiesAt(origin.Add(step, i)) {
			if cand == p.member || cand.Kind() != domain.KindUnderground || !cand.InRange(p.stage) {
				continue
			}
			if cand.Direction() != p.member.Direction() {
				continue
			}
			name := cand.NameAtStage(p.stage)
			if cand == p.assumed {
				name = p.name
			}
			if name != p.name {
				continue
			}
			if cand.UndergroundType() == p.member.UndergroundType() {
				return nil
			}
			return cand
		}
	}
	return nil
}

// UndergroundPairAt returns the partner of member at stage when member
// carries name there.
func UndergroundPairAt(c *project.Content, member *entity.Entity, stage domain.StageNumber, name string) *entity.Entity {
	return pairSearch{content: c, member: member, stage: stage, name: name}.find()
}

// FindUndergroundPair returns member's partner at stage under name, and
// whether the member pairs with different partners at different stages of
// its range.
func FindUndergroundPair(c *project.Content, member *entity.Entity, stage domain.StageNumber, name string) (*entity.Entity, bool) {
	pair := UndergroundPairAt(c, member, stage, name)
	return pair, hasMultiplePairs(c, member)
}

func hasMultiplePairs(c *project.Content, member *entity.Entity) bool {
	if member.Kind() != domain.KindUnderground {
		return false
	}
	last := c.StageCount()
	if l, ok := member.LastStage(); ok && l < last {
		last = l
	}
	var seen *entity.Entity
	for s := member.FirstStage(); s <= last; s++ {
		p := UndergroundPairAt(c, member, s, member.NameAtStage(s))
		if p == nil {
			continue
		}
		if seen != nil && seen != p {
			return true
		}
		seen = p
	}
	return false
}

// FindLaterUndergroundPair returns an underground that would pair with
// member under name but only exists at stages above stage.
func FindLaterUndergroundPair(c *project.Content, member *entity.Entity, stage domain.StageNumber, name string) *entity.Entity {
	last := c.StageCount()
	if l, ok := member.LastStage(); ok && l < last {
		last = l
	}
	for s := stage + 1; s <= last; s++ {
		p := pairSearch{content: c, member: member, stage: s, name: name}.find()
		if p != nil && p.FirstStage() > stage {
			return p
		}
	}
	return nil
}

// UpgradeCompatible reports whether a can be upgraded into b.
func UpgradeCompatible(protos domain.PrototypeInfo, a, b string) bool {
	return protos.Compatible(a, b)
}

// CanRotateAt reports whether a rotation observed at stage may be accepted.
// Rotations are legal at the first stage, and for paired undergrounds also at
// the partner's first stage.
func CanRotateAt(e, pair *entity.Entity, stage domain.StageNumber) bool {
	if stage == e.FirstStage() {
		return true
	}
	return pair != nil && stage == pair.FirstStage()
}

// CheckUndergroundUpgrade decides whether member and its partner can both be
// upgraded to name at stage. On success it returns the partner to upgrade
// alongside member, which may be nil.
func CheckUndergroundUpgrade(c *project.Content, member *entity.Entity, stage domain.StageNumber, name string) (*entity.Entity, domain.EntityUpdateResult) {
	current := member.NameAtStage(stage)
	pair, multiple := FindUndergroundPair(c, member, stage, current)
	if multiple {
		return nil, domain.UpdateCannotUpgradeMultiPairUnderground
	}
	if pair == nil {
		if UndergroundPairAt(c, member, stage, name) != nil {
			return nil, domain.UpdateCannotCreatePairUpgrade
		}
		if FindLaterUndergroundPair(c, member, stage, name) != nil {
			return nil, domain.UpdateCannotCreatePairUpgrade
		}
		return nil, domain.UpdateUpdated
	}
	if !UpgradeCompatible(c.Prototypes(), pair.NameAtStage(stage), name) {
		return nil, domain.UpdateCannotUpgradeChangedPair
	}
	after := pairSearch{content: c, member: member, stage: stage, name: name, assumed: pair}.find()
	if after != pair {
		return nil, domain.UpdateCannotUpgradeChangedPair
	}
	return pair, domain.UpdateUpdated
}
