package sandbox

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stageplan/internal/core"
	"stageplan/internal/project"
	"stageplan/pkg/domain"
)

const script = `project: demo
stages: 3
prototypes:
  - name: chest
    type: container
    fast_replace_group: container
    collision_box: {left_top: {x: -0.4, y: -0.4}, right_bottom: {x: 0.4, y: 0.4}}
  - name: pole
    type: electric-pole
    direction_agnostic: true
    collision_box: {left_top: {x: -0.4, y: -0.4}, right_bottom: {x: 0.4, y: 0.4}}
steps:
  - kind: entity_created
    stage: 1
    info: {name: chest, position: {x: 0.5, y: 0.5}, value: {bar: "2"}}
  - kind: entity_possibly_updated
    stage: 2
    info: {name: chest, position: {x: 0.5, y: 0.5}, value: {bar: "5"}}
  - kind: entity_created
    stage: 1
    info: {name: pole, position: {x: 3.5, y: 0.5}}
  - kind: entity_created
    stage: 2
    info: {name: pole, position: {x: 6.5, y: 0.5}}
  - kind: wires_changed
    stage: 2
    entity: 3
    links: [{other: 2, cable: true}]
  - kind: entity_deleted
    stage: 2
    entity: 3
  - undo: true
`

func runScript(t *testing.T) (*core.Engine, *World, []StepResult) {
	t.Helper()
	s, err := DecodeScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	protos := s.PrototypeInfo()
	world := New()
	engine := core.NewEngine(project.NewContent(s.Stages, protos), protos, world, world)
	return engine, world, NewReplayer(engine, world).Run(s.Steps)
}

func TestReplayScript(t *testing.T) {
	engine, world, results := runScript(t)
	want := []StepResult{
		{Index: 0, Event: domain.EventEntityCreated, Entity: 1, Code: domain.ResultCode(domain.CreateAdded)},
		{Index: 1, Event: domain.EventEntityPossiblyUpdated, Entity: 1, Code: domain.ResultCode(domain.UpdateUpdated)},
		{Index: 2, Event: domain.EventEntityCreated, Entity: 2, Code: domain.ResultCode(domain.CreateAdded)},
		{Index: 3, Event: domain.EventEntityCreated, Entity: 3, Code: domain.ResultCode(domain.CreateAdded)},
		{Index: 4, Event: domain.EventWiresChanged, Entity: 3, Code: domain.ResultCode(domain.WireUpdated)},
		{Index: 5, Event: domain.EventEntityDeleted, Entity: 3, Code: domain.ResultCode(domain.DeleteMadeSettingsRemnant)},
		{Index: 6, Undone: true},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Fatalf("results (-want +got):\n%s", diff)
	}

	content := engine.Content()
	if !content.Graph().HasCable(2, 3) {
		t.Fatalf("cable should survive the undone delete")
	}
	feeder, _ := content.Get(2)
	pole, _ := content.Get(3)
	if pole.IsSettingsRemnant() {
		t.Fatalf("undo should revive the remnant")
	}
	for _, s := range []domain.StageNumber{2, 3} {
		ra, _ := feeder.Representation(s)
		rb, _ := pole.Representation(s)
		if !world.Links(s, ra.Handle, rb.Handle).Cable {
			t.Fatalf("stage %d: physical cable missing", s)
		}
	}

	var stage3 []string
	for _, o := range world.Objects(3) {
		stage3 = append(stage3, o.Name)
		if !o.Protected {
			t.Fatalf("stage 3 objects sit above their first stage and must be protected: %+v", o)
		}
	}
	if diff := cmp.Diff([]string{"chest", "pole", "pole"}, stage3); diff != "" {
		t.Fatalf("stage 3 objects (-want +got):\n%s", diff)
	}
	chest, _ := content.Get(1)
	rep, _ := chest.Representation(3)
	o, _ := world.Object(rep.Handle)
	if o.Value["bar"] != "5" {
		t.Fatalf("stage 3 chest should inherit the stage 2 edit, got %v", o.Value)
	}
}

func TestDecodeScriptRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"no stages":     "project: x\nstages: 0\n",
		"missing kind":  "stages: 2\nsteps:\n  - stage: 1\n",
		"stage range":   "stages: 2\nsteps:\n  - kind: entity_created\n    stage: 3\n",
		"last stage":    "stages: 2\nsteps:\n  - kind: set_last_stage\n    stage: 1\n    entity: 1\n    last_stage: 3\n",
		"unknown field": "stages: 2\ncolour: red\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeScript(strings.NewReader(src)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestReplayRefusesStagesBeyondTheProject(t *testing.T) {
	s, err := DecodeScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	protos := s.PrototypeInfo()
	world := New()
	engine := core.NewEngine(project.NewContent(2, protos), protos, world, world)
	r := NewReplayer(engine, world)

	chest := domain.EntityInfo{Name: "chest", Position: domain.Position{X: 0.5, Y: 0.5}}
	if _, err := r.Apply(domain.WorldEvent{Kind: domain.EventEntityCreated, Stage: 3, Info: chest}); !errors.Is(err, ErrStageOutOfRange) {
		t.Fatalf("expected stage out of range, got %v", err)
	}
	if engine.Content().Len() != 0 || len(world.Objects(3)) != 0 {
		t.Fatalf("refused event must not touch the project or world")
	}

	last := domain.StageNumber(5)
	steps := []Step{
		{WorldEvent: domain.WorldEvent{Kind: domain.EventEntityCreated, Stage: 1, Info: chest}},
		{WorldEvent: domain.WorldEvent{Kind: domain.EventSetLastStage, Stage: 1, Entity: 1, LastStage: &last}},
		{WorldEvent: domain.WorldEvent{Kind: domain.EventEntityPossiblyUpdated, Stage: 3, Entity: 1, Info: chest}},
	}
	want := []StepResult{
		{Index: 0, Event: domain.EventEntityCreated, Entity: 1, Code: domain.ResultCode(domain.CreateAdded)},
		{Index: 1, Event: domain.EventSetLastStage, Entity: 1, Code: CodeStageOutOfRange},
		{Index: 2, Event: domain.EventEntityPossiblyUpdated, Entity: 1, Code: CodeStageOutOfRange},
	}
	if diff := cmp.Diff(want, r.Run(steps)); diff != "" {
		t.Fatalf("results (-want +got):\n%s", diff)
	}
	ent, _ := engine.Content().Get(1)
	if _, bounded := ent.LastStage(); bounded {
		t.Fatalf("refused set_last_stage must leave the range unbounded")
	}
}

func TestWorldCollisionAndCableLimit(t *testing.T) {
	w := New(WithMaxCables(1))
	pos := domain.Position{X: 1.5, Y: 1.5}
	a, ok := w.CreateObject(1, pos, domain.North, domain.Value{"name": "pole"})
	if !ok {
		t.Fatalf("first placement should succeed")
	}
	if _, ok := w.CreateObject(1, domain.Position{X: 1.9, Y: 1.1}, domain.North, domain.Value{"name": "pole"}); ok {
		t.Fatalf("same cell must collide")
	}
	if _, ok := w.CreateObject(2, pos, domain.North, domain.Value{"name": "pole"}); !ok {
		t.Fatalf("other stages are independent")
	}
	if h := w.CreatePreview(1, pos, domain.North, "pole"); h == 0 {
		t.Fatalf("previews never collide")
	}
	b, _ := w.CreateObject(1, domain.Position{X: 4.5, Y: 1.5}, domain.North, domain.Value{"name": "pole"})
	c, _ := w.CreateObject(1, domain.Position{X: 7.5, Y: 1.5}, domain.North, domain.Value{"name": "pole"})
	if exceeded := w.SyncLinks(1, a, b, domain.LinkSet{Cable: true}); exceeded {
		t.Fatalf("first cable within limit")
	}
	red := domain.CircuitWire{FromConnector: 1, ToConnector: 1, Color: domain.WireRed}
	if exceeded := w.SyncLinks(1, a, c, domain.LinkSet{Cable: true, Circuits: []domain.CircuitWire{red}}); !exceeded {
		t.Fatalf("second cable should exceed the limit")
	}
	if got := w.Links(1, c, a); got.Cable || len(got.Circuits) != 1 {
		t.Fatalf("circuit should be kept without the cable, got %+v", got)
	}
	w.PruneLinks(1, a, []domain.Handle{b})
	if w.LinkCount(1) != 1 {
		t.Fatalf("prune should drop the a-c link, have %d", w.LinkCount(1))
	}
	w.Destroy(1, b)
	if w.LinkCount(1) != 0 {
		t.Fatalf("destroy should drop links")
	}
	if _, ok := w.Object(b); ok {
		t.Fatalf("destroyed object still present")
	}
}
