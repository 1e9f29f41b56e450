package core

import (
	"sort"
	"testing"

	"stageplan/internal/entity"
	"stageplan/internal/project"
	"stageplan/pkg/domain"
)

type fakeObject struct {
	stage     domain.StageNumber
	pos       domain.Position
	dir       domain.Direction
	value     domain.Value
	name      string
	preview   bool
	protected bool
}

type linkKey struct {
	stage domain.StageNumber
	a, b  domain.Handle
}

// fakeWorld is an in-memory host. Real objects collide with other real
// objects on the same stage and position; previews never collide.
type fakeWorld struct {
	next     domain.Handle
	objects  map[domain.Handle]*fakeObject
	links    map[linkKey]domain.LinkSet
	blocked  map[domain.StageNumber]map[domain.Position]bool
	created  []string
	maxLinks int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		objects: make(map[domain.Handle]*fakeObject),
		links:   make(map[linkKey]domain.LinkSet),
		blocked: make(map[domain.StageNumber]map[domain.Position]bool),
	}
}

func (w *fakeWorld) alloc(o *fakeObject) domain.Handle {
	w.next++
	w.objects[w.next] = o
	return w.next
}

// place simulates the player building an object directly.
func (w *fakeWorld) place(stage domain.StageNumber, info domain.EntityInfo) domain.Handle {
	return w.alloc(&fakeObject{stage: stage, pos: info.Position, dir: info.Direction, value: info.ObservedValue(), name: info.Name})
}

func (w *fakeWorld) block(stage domain.StageNumber, pos domain.Position) {
	if w.blocked[stage] == nil {
		w.blocked[stage] = make(map[domain.Position]bool)
	}
	w.blocked[stage][pos] = true
}

func (w *fakeWorld) occupied(stage domain.StageNumber, pos domain.Position) bool {
	if w.blocked[stage][pos] {
		return true
	}
	for _, o := range w.objects {
		if o.stage == stage && o.pos == pos && !o.preview {
			return true
		}
	}
	return false
}

func (w *fakeWorld) CreateObject(stage domain.StageNumber, pos domain.Position, dir domain.Direction, value domain.Value) (domain.Handle, bool) {
	if w.occupied(stage, pos) {
		return 0, false
	}
	w.created = append(w.created, value.Name())
	return w.alloc(&fakeObject{stage: stage, pos: pos, dir: dir, value: domain.CloneValue(value), name: value.Name()}), true
}

func (w *fakeWorld) UpdateObject(stage domain.StageNumber, h domain.Handle, value domain.Value, dir domain.Direction) (domain.Handle, bool) {
	o, ok := w.objects[h]
	if !ok || o.preview {
		return 0, false
	}
	o.value = domain.CloneValue(value)
	o.name = value.Name()
	o.dir = dir
	return h, true
}

func (w *fakeWorld) CreatePreview(stage domain.StageNumber, pos domain.Position, dir domain.Direction, name string) domain.Handle {
	return w.alloc(&fakeObject{stage: stage, pos: pos, dir: dir, name: name, preview: true})
}

func (w *fakeWorld) SetProtected(stage domain.StageNumber, h domain.Handle, protected bool) {
	if o, ok := w.objects[h]; ok {
		o.protected = protected
	}
}

func (w *fakeWorld) Destroy(stage domain.StageNumber, h domain.Handle) {
	delete(w.objects, h)
	for k := range w.links {
		if k.a == h || k.b == h {
			delete(w.links, k)
		}
	}
}

func orderedKey(stage domain.StageNumber, a, b domain.Handle) linkKey {
	if b < a {
		a, b = b, a
	}
	return linkKey{stage: stage, a: a, b: b}
}

func (w *fakeWorld) SyncLinks(stage domain.StageNumber, a, b domain.Handle, want domain.LinkSet) bool {
	k := orderedKey(stage, a, b)
	if want.Empty() {
		delete(w.links, k)
		return false
	}
	if w.maxLinks > 0 && want.Cable {
		if w.cableCount(stage, a, k) >= w.maxLinks || w.cableCount(stage, b, k) >= w.maxLinks {
			return true
		}
	}
	w.links[k] = want
	return false
}

func (w *fakeWorld) cableCount(stage domain.StageNumber, h domain.Handle, except linkKey) int {
	n := 0
	for k, l := range w.links {
		if k != except && k.stage == stage && (k.a == h || k.b == h) && l.Cable {
			n++
		}
	}
	return n
}

func (w *fakeWorld) PruneLinks(stage domain.StageNumber, h domain.Handle, keep []domain.Handle) {
	kept := make(map[domain.Handle]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	for k := range w.links {
		if k.stage != stage {
			continue
		}
		if (k.a == h && !kept[k.b]) || (k.b == h && !kept[k.a]) {
			delete(w.links, k)
		}
	}
}

func (w *fakeWorld) hasCable(stage domain.StageNumber, a, b domain.Handle) bool {
	return w.links[orderedKey(stage, a, b)].Cable
}

// recorder collects notifications.
type recorder struct {
	got []domain.Notification
}

func (r *recorder) Notify(n domain.Notification) { r.got = append(r.got, n) }

func testProtos() domain.PrototypeInfo {
	box := domain.BoundingBox{LeftTop: domain.Position{X: -0.4, Y: -0.4}, RightBottom: domain.Position{X: 0.4, Y: 0.4}}
	return domain.NewPrototypeInfo(
		domain.Prototype{Name: "chest", Type: "container", CollisionBox: box, FastReplaceGroup: "container"},
		domain.Prototype{Name: "steel-chest", Type: "container", CollisionBox: box, FastReplaceGroup: "container"},
		domain.Prototype{Name: "lamp", Type: "lamp", CollisionBox: box},
		domain.Prototype{Name: "pole", Type: "electric-pole", CollisionBox: box, DirectionAgnostic: true},
		domain.Prototype{Name: "rail", Type: "rail", CollisionBox: box},
		domain.Prototype{Name: "wagon", Type: "cargo-wagon", Kind: domain.KindRollingStock, CollisionBox: box},
		domain.Prototype{Name: "ug", Type: "underground-belt", Kind: domain.KindUnderground, CollisionBox: box, FastReplaceGroup: "transport-belt", MaxUndergroundDistance: 5},
		domain.Prototype{Name: "fast-ug", Type: "underground-belt", Kind: domain.KindUnderground, CollisionBox: box, FastReplaceGroup: "transport-belt", MaxUndergroundDistance: 7},
		domain.Prototype{Name: "loader", Type: "loader", Kind: domain.KindLoader, CollisionBox: box},
	)
}

type harness struct {
	t      *testing.T
	world  *fakeWorld
	engine *Engine
	notes  *recorder
}

func newHarness(t *testing.T, stages domain.StageNumber, opts ...Option) *harness {
	t.Helper()
	world := newFakeWorld()
	notes := &recorder{}
	protos := testProtos()
	content := project.NewContent(stages, protos)
	opts = append([]Option{WithNotifier(notes)}, opts...)
	return &harness{t: t, world: world, engine: NewEngine(content, protos, world, world, opts...), notes: notes}
}

func at(x, y float64) domain.Position { return domain.Position{X: x, Y: y} }

func info(name string, pos domain.Position, dir domain.Direction, props domain.Value) domain.EntityInfo {
	return domain.EntityInfo{Name: name, Position: pos, Direction: dir, Value: props}
}

// build places an object on stage through the world and registers it.
func (h *harness) build(stage domain.StageNumber, i domain.EntityInfo) *entity.Entity {
	h.t.Helper()
	handle := h.world.place(stage, i)
	res, _ := h.engine.OnEntityCreated(i, stage, handle)
	if res != domain.CreateAdded {
		h.t.Fatalf("build %s at %d: got %s", i.Name, stage, res)
	}
	ent := h.engine.Content().FindExact(i, stage)
	if ent == nil {
		h.t.Fatalf("build %s at %d: entity not registered", i.Name, stage)
	}
	return ent
}

func (h *harness) object(ent *entity.Entity, stage domain.StageNumber) *fakeObject {
	h.t.Helper()
	rep, ok := ent.Representation(stage)
	if !ok {
		h.t.Fatalf("entity %d has no representation on stage %d", ent.ID(), stage)
	}
	o, ok := h.world.objects[rep.Handle]
	if !ok {
		h.t.Fatalf("entity %d stage %d: handle %d not in world", ent.ID(), stage, rep.Handle)
	}
	return o
}

func (h *harness) handle(ent *entity.Entity, stage domain.StageNumber) domain.Handle {
	h.t.Helper()
	rep, ok := ent.Representation(stage)
	if !ok {
		h.t.Fatalf("entity %d has no representation on stage %d", ent.ID(), stage)
	}
	return rep.Handle
}

// checkRange asserts previews below the first stage, real objects in range
// and nothing above the last stage.
func (h *harness) checkRange(ent *entity.Entity) {
	h.t.Helper()
	n := h.engine.Content().StageCount()
	for s := domain.StageNumber(1); s <= n; s++ {
		rep, ok := ent.Representation(s)
		switch {
		case !ent.InRange(s) && s > ent.FirstStage():
			if ok {
				h.t.Fatalf("entity %d: representation above last stage at %d", ent.ID(), s)
			}
		case s < ent.FirstStage() || ent.IsSettingsRemnant():
			if !ok || !rep.Preview {
				h.t.Fatalf("entity %d: want preview at stage %d, got %+v (present=%v)", ent.ID(), s, rep, ok)
			}
		default:
			if !ok || rep.Preview {
				h.t.Fatalf("entity %d: want real object at stage %d, got %+v (present=%v)", ent.ID(), s, rep, ok)
			}
			if o := h.world.objects[rep.Handle]; o == nil || o.protected != (s > ent.FirstStage()) {
				h.t.Fatalf("entity %d: stage %d protection mismatch", ent.ID(), s)
			}
		}
	}
}

func (h *harness) codes() []domain.ResultCode {
	out := make([]domain.ResultCode, 0, len(h.notes.got))
	for _, n := range h.notes.got {
		out = append(out, n.Code)
	}
	return out
}

func worldNames(w *fakeWorld, stage domain.StageNumber) []string {
	var out []string
	for _, o := range w.objects {
		if o.stage == stage && !o.preview {
			out = append(out, o.name)
		}
	}
	sort.Strings(out)
	return out
}
