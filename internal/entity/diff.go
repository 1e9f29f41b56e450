package entity

import (
	"sort"

	"stageplan/pkg/domain"
)

func (e *Entity) diffIndex(stage domain.StageNumber) (int, bool) {
	i := sort.Search(len(e.diffs), func(i int) bool { return e.diffs[i].Stage >= stage })
	if i < len(e.diffs) && e.diffs[i].Stage == stage {
		return i, true
	}
	return i, false
}

func (e *Entity) setDiff(stage domain.StageNumber, diff domain.Diff) {
	i, ok := e.diffIndex(stage)
	switch {
	case len(diff) == 0 && ok:
		e.diffs = append(e.diffs[:i], e.diffs[i+1:]...)
	case len(diff) == 0:
	case ok:
		e.diffs[i].Diff = diff
	default:
		e.diffs = append(e.diffs, StageDiff{})
		copy(e.diffs[i+1:], e.diffs[i:])
		e.diffs[i] = StageDiff{Stage: stage, Diff: diff}
	}
}

// compact drops diffs outside the range and every diff key equal to the
// effective value just below it, then drops empty diffs.
func (e *Entity) compact() {
	prev := domain.CloneValue(e.firstValue)
	kept := e.diffs[:0]
	for _, d := range e.diffs {
		if d.Stage <= e.firstStage || (e.lastStage != nil && d.Stage > *e.lastStage) {
			continue
		}
		for k, v := range d.Diff {
			if propertyMatches(prev, k, v) {
				delete(d.Diff, k)
			}
		}
		if len(d.Diff) == 0 {
			continue
		}
		domain.ApplyDiff(prev, d.Diff)
		kept = append(kept, d)
	}
	for i := len(kept); i < len(e.diffs); i++ {
		e.diffs[i] = StageDiff{}
	}
	e.diffs = kept
}

func propertyMatches(v domain.Value, key string, override any) bool {
	current, ok := v[key]
	if override == nil {
		return !ok
	}
	return ok && domain.PropertiesEqual(current, override)
}

// AdjustValueAtStage makes value the effective value at stage. Changes carry
// upward until a later diff overrides the same property. It returns false
// when stage lies below the range or nothing changed.
func (e *Entity) AdjustValueAtStage(stage domain.StageNumber, value domain.Value) bool {
	if stage < e.firstStage || (e.lastStage != nil && stage > *e.lastStage) {
		return false
	}
	value = stripNil(domain.CloneValue(value))
	if stage == e.firstStage {
		if domain.ValuesEqual(e.firstValue, value) {
			return false
		}
		e.firstValue = value
		e.compact()
		return true
	}
	below := e.valueAt(stage - 1)
	next := domain.ComputeDiff(below, value)
	old, _ := e.DiffAt(stage)
	if domain.DiffsEqual(old, next) {
		return false
	}
	e.setDiff(stage, next)
	e.compact()
	return true
}

// ApplyUpgradeAtStage records a name change at stage.
func (e *Entity) ApplyUpgradeAtStage(stage domain.StageNumber, name string) bool {
	if !e.InRange(stage) {
		return false
	}
	v := e.valueAt(stage)
	v[domain.PropName] = name
	return e.AdjustValueAtStage(stage, v)
}

// SetPropertyAtStage sets one property at stage, recording it as a diff when
// stage is above the first stage.
func (e *Entity) SetPropertyAtStage(stage domain.StageNumber, key string, value any) bool {
	if !e.InRange(stage) {
		return false
	}
	v := e.valueAt(stage)
	if value == nil {
		delete(v, key)
	} else {
		v[key] = value
	}
	return e.AdjustValueAtStage(stage, v)
}

// ResetPropertyAtStage removes the override of key at stage so the value
// from below shows through again.
func (e *Entity) ResetPropertyAtStage(stage domain.StageNumber, key string) bool {
	i, ok := e.diffIndex(stage)
	if !ok {
		return false
	}
	if _, has := e.diffs[i].Diff[key]; !has {
		return false
	}
	delete(e.diffs[i].Diff, key)
	if len(e.diffs[i].Diff) == 0 {
		e.setDiff(stage, nil)
	}
	e.compact()
	return true
}

// ResetValueAtStage removes every override at stage.
func (e *Entity) ResetValueAtStage(stage domain.StageNumber) bool {
	if _, ok := e.diffIndex(stage); !ok {
		return false
	}
	e.setDiff(stage, nil)
	e.compact()
	return true
}

// MovePropertyDown moves the override of key at stage onto the previous
// stage with a diff, or onto the first stage. It returns the destination.
func (e *Entity) MovePropertyDown(stage domain.StageNumber, key string) (domain.StageNumber, bool) {
	i, ok := e.diffIndex(stage)
	if !ok {
		return 0, false
	}
	value, has := e.diffs[i].Diff[key]
	if !has {
		return 0, false
	}
	target := e.moveTarget(stage)
	delete(e.diffs[i].Diff, key)
	if len(e.diffs[i].Diff) == 0 {
		e.setDiff(stage, nil)
	}
	e.writeOverride(target, key, value)
	e.compact()
	return target, true
}

// MoveValueDown moves every override at stage onto the previous diff stage
// or the first stage.
func (e *Entity) MoveValueDown(stage domain.StageNumber) (domain.StageNumber, bool) {
	i, ok := e.diffIndex(stage)
	if !ok {
		return 0, false
	}
	diff := e.diffs[i].Diff
	target := e.moveTarget(stage)
	e.setDiff(stage, nil)
	for _, k := range diff.Keys() {
		e.writeOverride(target, k, diff[k])
	}
	e.compact()
	return target, true
}

func (e *Entity) moveTarget(stage domain.StageNumber) domain.StageNumber {
	if prev, ok := e.PrevDiffStage(stage); ok {
		return prev
	}
	return e.firstStage
}

func (e *Entity) writeOverride(stage domain.StageNumber, key string, value any) {
	if stage == e.firstStage {
		if value == nil {
			delete(e.firstValue, key)
		} else {
			e.firstValue[key] = value
		}
		return
	}
	i, ok := e.diffIndex(stage)
	if !ok {
		e.setDiff(stage, domain.Diff{key: value})
		return
	}
	e.diffs[i].Diff[key] = value
}

// SetFirstStageUnchecked moves the first stage. Moving up folds every diff at
// or below the new first stage into the first value. Legality is the caller's concern.
func (e *Entity) SetFirstStageUnchecked(stage domain.StageNumber) {
	assertf(stage >= 1, "first stage %d below 1", stage)
	if stage > e.firstStage {
		e.firstValue = e.valueAt(stage)
		kept := e.diffs[:0]
		for _, d := range e.diffs {
			if d.Stage > stage {
				kept = append(kept, d)
			}
		}
		e.diffs = kept
	}
	e.firstStage = stage
	e.compact()
}

// SetLastStageUnchecked bounds or unbounds the range. Diffs above the new
// last stage are dropped. Legality is the caller's concern.
func (e *Entity) SetLastStageUnchecked(stage *domain.StageNumber) {
	if stage != nil {
		assertf(*stage >= e.firstStage, "last stage %d below first stage %d", *stage, e.firstStage)
	}
	e.lastStage = copyStage(stage)
	e.compact()
}

// UndergroundType returns the stage-invariant input/output side.
func (e *Entity) UndergroundType() domain.UndergroundType {
	return e.firstValue.UndergroundType()
}

// SetUndergroundType stores the side on the first value; it never varies by stage.
func (e *Entity) SetUndergroundType(t domain.UndergroundType) {
	e.firstValue[domain.PropType] = string(t)
	for _, d := range e.diffs {
		delete(d.Diff, domain.PropType)
	}
	e.compact()
}

// Flip reverses the direction and swaps the input/output side.
func (e *Entity) Flip() {
	e.direction = e.direction.Opposite()
	e.SetUndergroundType(e.UndergroundType().Flip())
}

// InsertStage shifts every stage at or above stage up by one.
func (e *Entity) InsertStage(stage domain.StageNumber) {
	if e.firstStage >= stage {
		e.firstStage++
	}
	if e.lastStage != nil && *e.lastStage >= stage {
		*e.lastStage++
	}
	for i := range e.diffs {
		if e.diffs[i].Stage >= stage {
			e.diffs[i].Stage++
		}
	}
	reps := make(map[domain.StageNumber]Representation, len(e.reps))
	for s, r := range e.reps {
		if s >= stage {
			s++
		}
		reps[s] = r
	}
	e.reps = reps
}

// DeleteStage removes stage. Its contents merge with the stage below it, or
// with stage 2 when stage 1 is deleted; the merged stage shows the upper
// stage's value. The representation on the deleted stage must already be destroyed.
func (e *Entity) DeleteStage(stage domain.StageNumber) {
	assertf(stage >= 1, "delete stage %d below 1", stage)
	lower := stage - 1
	if stage == 1 {
		lower = 1
	}
	upper := lower + 1

	if i, ok := e.diffIndex(upper); ok {
		merged := e.diffs[i].Diff
		e.setDiff(upper, nil)
		if e.firstStage == lower {
			domain.ApplyDiff(e.firstValue, merged)
		} else if j, ok := e.diffIndex(lower); ok {
			for k, v := range merged {
				e.diffs[j].Diff[k] = v
			}
		} else {
			e.setDiff(lower, merged)
		}
	}
	if e.firstStage >= upper {
		e.firstStage--
	}
	if e.lastStage != nil && *e.lastStage >= upper {
		*e.lastStage--
	}
	for i := range e.diffs {
		if e.diffs[i].Stage >= upper {
			e.diffs[i].Stage--
		}
	}
	delete(e.reps, stage)
	reps := make(map[domain.StageNumber]Representation, len(e.reps))
	for s, r := range e.reps {
		if s > stage {
			s--
		}
		reps[s] = r
	}
	e.reps = reps
	e.compact()
}

// Representation returns the physical representation at stage.
func (e *Entity) Representation(stage domain.StageNumber) (Representation, bool) {
	r, ok := e.reps[stage]
	return r, ok
}

// SetRepresentation records the physical representation at stage.
func (e *Entity) SetRepresentation(stage domain.StageNumber, r Representation) {
	e.reps[stage] = r
}

// ClearRepresentation forgets the representation at stage.
func (e *Entity) ClearRepresentation(stage domain.StageNumber) {
	delete(e.reps, stage)
}

// RepresentationStages returns every stage holding a representation, sorted.
func (e *Entity) RepresentationStages() []domain.StageNumber {
	out := make([]domain.StageNumber, 0, len(e.reps))
	for s := range e.reps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasRealObject reports whether any stage holds a real, non-preview object.
func (e *Entity) HasRealObject() bool {
	for _, r := range e.reps {
		if !r.Preview && r.Handle != 0 {
			return true
		}
	}
	return false
}
