package sandbox

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"stageplan/internal/core"
	"stageplan/internal/entity"
	"stageplan/pkg/domain"
)

// Script is a scripted editing session: a prototype table plus the world
// events a player would produce, in order.
//
// Inside a script, wires_changed links name the other endpoint by entity id
// in the "other" field; the replayer translates it to that entity's handle.
type Script struct {
	Project    string             `yaml:"project"`
	Stages     domain.StageNumber `yaml:"stages"`
	Prototypes []domain.Prototype `yaml:"prototypes"`
	Steps      []Step             `yaml:"steps"`
}

// Step is one world event, or an undo of the most recent undoable step.
type Step struct {
	domain.WorldEvent `yaml:",inline"`
	Undo              bool `yaml:"undo,omitempty"`
}

// CodeStageOutOfRange marks a step that names a stage the project does not
// have. Such steps never reach the engine.
const CodeStageOutOfRange domain.ResultCode = "stage-out-of-range"

// ErrStageOutOfRange is returned by Replayer.Apply for events naming a stage
// outside the engine's project.
var ErrStageOutOfRange = errors.New("stage out of range")

// StepResult reports what the engine did with one step.
type StepResult struct {
	Index  int               `json:"index" yaml:"index"`
	Event  domain.EventKind  `json:"event,omitempty" yaml:"event,omitempty"`
	Entity domain.EntityID   `json:"entity,omitempty" yaml:"entity,omitempty"`
	Code   domain.ResultCode `json:"code,omitempty" yaml:"code,omitempty"`
	Undone bool              `json:"undone,omitempty" yaml:"undone,omitempty"`
}

// DecodeScript parses a YAML script.
func DecodeScript(r io.Reader) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Script{}, fmt.Errorf("decode script: %w", err)
	}
	if s.Stages < 1 {
		return Script{}, fmt.Errorf("script needs at least one stage, got %d", s.Stages)
	}
	for i, st := range s.Steps {
		if st.Undo {
			continue
		}
		if st.Kind == "" {
			return Script{}, fmt.Errorf("step %d: missing kind", i)
		}
		if err := checkStages(st.WorldEvent, s.Stages); err != nil {
			return Script{}, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return s, nil
}

// checkStages validates every stage ev names against a project of count
// stages.
func checkStages(ev domain.WorldEvent, count domain.StageNumber) error {
	if ev.Stage < 1 || ev.Stage > count {
		return fmt.Errorf("%w: stage %d outside 1..%d", ErrStageOutOfRange, ev.Stage, count)
	}
	if ev.LastStage != nil && (*ev.LastStage < 1 || *ev.LastStage > count) {
		return fmt.Errorf("%w: last stage %d outside 1..%d", ErrStageOutOfRange, *ev.LastStage, count)
	}
	return nil
}

// PrototypeInfo builds the script's prototype table.
func (s Script) PrototypeInfo() domain.PrototypeInfo {
	return domain.NewPrototypeInfo(s.Prototypes...)
}

// Replayer feeds steps through an engine, playing the host's part against a
// World.
type Replayer struct {
	engine *core.Engine
	world  *World
	undo   []*domain.UndoRecord
}

// NewReplayer binds an engine to the world it renders into.
func NewReplayer(engine *core.Engine, world *World) *Replayer {
	return &Replayer{engine: engine, world: world}
}

// Run applies every step in order.
func (r *Replayer) Run(steps []Step) []StepResult {
	out := make([]StepResult, 0, len(steps))
	for i, st := range steps {
		if st.Undo {
			out = append(out, StepResult{Index: i, Undone: r.undoLast()})
			continue
		}
		o, err := r.Apply(st.WorldEvent)
		if err != nil {
			out = append(out, StepResult{Index: i, Event: st.Kind, Entity: st.Entity, Code: CodeStageOutOfRange})
			continue
		}
		out = append(out, StepResult{Index: i, Event: o.Event, Entity: o.Entity, Code: o.Code()})
	}
	return out
}

// Apply performs the host side of ev against the world, then dispatches it.
// Events naming a stage the project lacks are refused before either.
func (r *Replayer) Apply(ev domain.WorldEvent) (domain.Outcome, error) {
	if err := checkStages(ev, r.engine.Content().StageCount()); err != nil {
		return domain.Outcome{Event: ev.Kind}, err
	}
	switch ev.Kind {
	case domain.EventEntityCreated:
		if ev.Handle == 0 {
			if h, ok := r.world.Place(ev.Stage, ev.Info); ok {
				ev.Handle = h
			}
		}
	case domain.EventEntityDeleted:
		if ent := r.target(ev); ent != nil {
			if rep, ok := ent.Representation(ev.Stage); ok && !rep.Preview {
				r.world.Destroy(ev.Stage, rep.Handle)
			}
		}
	case domain.EventWiresChanged:
		ev.Links = r.translateLinks(ev.Stage, ev.Links)
	}
	o := r.engine.Dispatch(ev)
	if o.Undo != nil {
		r.undo = append(r.undo, o.Undo)
	}
	return o, nil
}

func (r *Replayer) undoLast() bool {
	if len(r.undo) == 0 {
		return false
	}
	rec := r.undo[len(r.undo)-1]
	r.undo = r.undo[:len(r.undo)-1]
	return r.engine.Undo(rec)
}

func (r *Replayer) target(ev domain.WorldEvent) *entity.Entity {
	content := r.engine.Content()
	if ev.Entity != 0 {
		ent, _ := content.Get(ev.Entity)
		return ent
	}
	return content.FindCompatible(ev.Info, ev.Previous, ev.Stage)
}

func (r *Replayer) translateLinks(stage domain.StageNumber, links []domain.ObservedLink) []domain.ObservedLink {
	out := make([]domain.ObservedLink, 0, len(links))
	for _, l := range links {
		peer, ok := r.engine.Content().Get(domain.EntityID(l.Other))
		if !ok {
			continue
		}
		rep, ok := peer.Representation(stage)
		if !ok || rep.Preview {
			continue
		}
		l.Other = rep.Handle
		out = append(out, l)
	}
	return out
}
