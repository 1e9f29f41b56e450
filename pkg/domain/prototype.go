package domain

import "sort"

// BoundingBox is a prototype collision box relative to the entity position.
type BoundingBox struct {
	LeftTop     Position `json:"left_top" yaml:"left_top"`
	RightBottom Position `json:"right_bottom" yaml:"right_bottom"`
}

// Prototype describes the static properties of one placeable entity name.
type Prototype struct {
	Name             string      `json:"name" yaml:"name"`
	Type             string      `json:"type" yaml:"type"`
	Kind             EntityKind  `json:"kind" yaml:"kind"`
	FastReplaceGroup string      `json:"fast_replace_group,omitempty" yaml:"fast_replace_group,omitempty"`
	CollisionBox     BoundingBox `json:"collision_box" yaml:"collision_box"`
	// DirectionAgnostic prototypes ignore direction when matching world objects.
	DirectionAgnostic bool `json:"direction_agnostic,omitempty" yaml:"direction_agnostic,omitempty"`
	// Directions lists the supported directions. Empty means the four cardinals.
	Directions []Direction `json:"directions,omitempty" yaml:"directions,omitempty"`
	// MaxUndergroundDistance is the pairing reach of underground belts.
	MaxUndergroundDistance int `json:"max_underground_distance,omitempty" yaml:"max_underground_distance,omitempty"`
}

// SupportsDirection reports whether the prototype can face d.
func (p Prototype) SupportsDirection(d Direction) bool {
	if len(p.Directions) == 0 {
		return d%4 == 0
	}
	for _, allowed := range p.Directions {
		if allowed == d {
			return true
		}
	}
	return false
}

// PrototypeInfo is the immutable prototype table handed to the engine at
// start-up and replaced wholesale on configuration changes.
type PrototypeInfo struct {
	byName map[string]Prototype
}

// NewPrototypeInfo builds an immutable prototype table. Later duplicates win.
func NewPrototypeInfo(protos ...Prototype) PrototypeInfo {
	byName := make(map[string]Prototype, len(protos))
	for _, p := range protos {
		if p.Kind == "" {
			p.Kind = KindGeneric
		}
		p.Directions = append([]Direction(nil), p.Directions...)
		byName[p.Name] = p
	}
	return PrototypeInfo{byName: byName}
}

// Lookup returns the prototype registered under name.
func (p PrototypeInfo) Lookup(name string) (Prototype, bool) {
	proto, ok := p.byName[name]
	return proto, ok
}

// KindOf returns the variant for name, defaulting to KindGeneric for unknown names.
func (p PrototypeInfo) KindOf(name string) EntityKind {
	if proto, ok := p.byName[name]; ok {
		return proto.Kind
	}
	return KindGeneric
}

// IsDirectionAgnostic reports whether direction should be ignored for name.
func (p PrototypeInfo) IsDirectionAgnostic(name string) bool {
	proto, ok := p.byName[name]
	return ok && proto.DirectionAgnostic
}

// Compatible reports whether a can be upgraded or fast-replaced into b: the
// names are identical or share base type, collision box and fast-replace group.
func (p PrototypeInfo) Compatible(a, b string) bool {
	if a == b {
		return true
	}
	pa, ok := p.byName[a]
	if !ok {
		return false
	}
	pb, ok := p.byName[b]
	if !ok {
		return false
	}
	return pa.FastReplaceGroup != "" &&
		pa.FastReplaceGroup == pb.FastReplaceGroup &&
		pa.Type == pb.Type &&
		pa.CollisionBox == pb.CollisionBox
}

// Names returns every registered prototype name in sorted order.
func (p PrototypeInfo) Names() []string {
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered prototypes.
func (p PrototypeInfo) Len() int { return len(p.byName) }
