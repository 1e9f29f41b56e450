// Package sandbox is a headless host world: an in-memory ObjectProvider and
// WireProvider used to replay event scripts and to inspect what the engine
// would build on every stage.
package sandbox

import (
	"sort"
	"sync"

	"stageplan/pkg/domain"
)

var (
	_ domain.ObjectProvider = (*World)(nil)
	_ domain.WireProvider   = (*World)(nil)
)

// Object is one physical object on a stage surface.
type Object struct {
	Handle    domain.Handle      `json:"handle" yaml:"handle"`
	Stage     domain.StageNumber `json:"stage" yaml:"stage"`
	Name      string             `json:"name" yaml:"name"`
	Position  domain.Position    `json:"position" yaml:"position"`
	Direction domain.Direction   `json:"direction" yaml:"direction"`
	Value     domain.Value       `json:"value,omitempty" yaml:"value,omitempty"`
	Preview   bool               `json:"preview,omitempty" yaml:"preview,omitempty"`
	Protected bool               `json:"protected,omitempty" yaml:"protected,omitempty"`
}

type linkKey struct {
	stage domain.StageNumber
	a, b  domain.Handle
}

func orderedKey(stage domain.StageNumber, a, b domain.Handle) linkKey {
	if b < a {
		a, b = b, a
	}
	return linkKey{stage: stage, a: a, b: b}
}

// Option configures a World.
type Option func(*World)

// WithMaxCables caps physical cable links per object. Zero means unlimited.
func WithMaxCables(n int) Option {
	return func(w *World) { w.maxCables = n }
}

// World is an in-memory stage surface set. Real objects occupy their tile
// cell; two real objects never share a cell on one stage. Previews never
// collide.
type World struct {
	mu        sync.Mutex
	next      domain.Handle
	objects   map[domain.Handle]*Object
	links     map[linkKey]domain.LinkSet
	maxCables int
}

// New returns an empty world.
func New(opts ...Option) *World {
	w := &World{objects: make(map[domain.Handle]*Object), links: make(map[linkKey]domain.LinkSet)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) alloc(o *Object) domain.Handle {
	w.next++
	o.Handle = w.next
	w.objects[w.next] = o
	return w.next
}

func (w *World) occupiedLocked(stage domain.StageNumber, pos domain.Position) bool {
	cell := pos.Cell()
	for _, o := range w.objects {
		if o.Stage == stage && !o.Preview && o.Position.Cell() == cell {
			return true
		}
	}
	return false
}

// Place simulates a player building info on stage. It fails when the cell
// is taken by a real object.
func (w *World) Place(stage domain.StageNumber, info domain.EntityInfo) (domain.Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.occupiedLocked(stage, info.Position) {
		return 0, false
	}
	v := info.ObservedValue()
	return w.alloc(&Object{Stage: stage, Name: info.Name, Position: info.Position, Direction: info.Direction, Value: v}), true
}

// CreateObject implements domain.ObjectProvider.
func (w *World) CreateObject(stage domain.StageNumber, pos domain.Position, dir domain.Direction, value domain.Value) (domain.Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.occupiedLocked(stage, pos) {
		return 0, false
	}
	return w.alloc(&Object{Stage: stage, Name: value.Name(), Position: pos, Direction: dir, Value: domain.CloneValue(value)}), true
}

// UpdateObject implements domain.ObjectProvider.
func (w *World) UpdateObject(_ domain.StageNumber, h domain.Handle, value domain.Value, dir domain.Direction) (domain.Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.objects[h]
	if !ok || o.Preview {
		return 0, false
	}
	o.Value = domain.CloneValue(value)
	o.Name = value.Name()
	o.Direction = dir
	return h, true
}

// CreatePreview implements domain.ObjectProvider.
func (w *World) CreatePreview(stage domain.StageNumber, pos domain.Position, dir domain.Direction, name string) domain.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alloc(&Object{Stage: stage, Name: name, Position: pos, Direction: dir, Preview: true})
}

// SetProtected implements domain.ObjectProvider.
func (w *World) SetProtected(_ domain.StageNumber, h domain.Handle, protected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		o.Protected = protected
	}
}

// Destroy implements domain.ObjectProvider.
func (w *World) Destroy(_ domain.StageNumber, h domain.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.objects, h)
	for k := range w.links {
		if k.a == h || k.b == h {
			delete(w.links, k)
		}
	}
}

// SyncLinks implements domain.WireProvider.
func (w *World) SyncLinks(stage domain.StageNumber, a, b domain.Handle, want domain.LinkSet) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := orderedKey(stage, a, b)
	if want.Empty() {
		delete(w.links, k)
		return false
	}
	if w.maxCables > 0 && want.Cable && !w.links[k].Cable {
		if w.cablesLocked(stage, a) >= w.maxCables || w.cablesLocked(stage, b) >= w.maxCables {
			want.Cable = false
			if want.Empty() {
				delete(w.links, k)
			} else {
				w.links[k] = want
			}
			return true
		}
	}
	w.links[k] = domain.LinkSet{Cable: want.Cable, Circuits: append([]domain.CircuitWire(nil), want.Circuits...)}
	return false
}

func (w *World) cablesLocked(stage domain.StageNumber, h domain.Handle) int {
	n := 0
	for k, l := range w.links {
		if k.stage == stage && l.Cable && (k.a == h || k.b == h) {
			n++
		}
	}
	return n
}

// PruneLinks implements domain.WireProvider.
func (w *World) PruneLinks(stage domain.StageNumber, h domain.Handle, keep []domain.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
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

// Object returns a copy of the object behind h.
func (w *World) Object(h domain.Handle) (Object, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.objects[h]
	if !ok {
		return Object{}, false
	}
	cp := *o
	cp.Value = domain.CloneValue(o.Value)
	return cp, true
}

// Objects lists the objects on stage ordered by position then handle.
func (w *World) Objects(stage domain.StageNumber) []Object {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Object
	for _, o := range w.objects {
		if o.Stage == stage {
			cp := *o
			cp.Value = domain.CloneValue(o.Value)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Position, out[j].Position
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}

// Links returns the physical links between a and b on stage.
func (w *World) Links(stage domain.StageNumber, a, b domain.Handle) domain.LinkSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.links[orderedKey(stage, a, b)]
}

// LinkCount counts linked object pairs on stage.
func (w *World) LinkCount(stage domain.StageNumber) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for k := range w.links {
		if k.stage == stage {
			n++
		}
	}
	return n
}
