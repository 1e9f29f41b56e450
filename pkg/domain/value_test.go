package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComputeAndApplyDiff(t *testing.T) {
	below := Value{"name": "chest", "bar": 4, "filters": []any{"iron"}, "gone": true}
	above := Value{"name": "chest", "bar": 4.0, "filters": []any{"copper"}, "new": "x"}

	diff := ComputeDiff(below, above)
	want := Diff{"filters": []any{"copper"}, "new": "x", "gone": nil}
	if diff2 := cmp.Diff(want, diff); diff2 != "" {
		t.Fatalf("diff (-want +got):\n%s", diff2)
	}

	got := CloneValue(below)
	ApplyDiff(got, diff)
	if !ValuesEqual(got, above) {
		t.Fatalf("apply mismatch: %v vs %v", got, above)
	}
	if ComputeDiff(above, above) != nil {
		t.Fatalf("equal values should have no diff")
	}
}

func TestPropertiesEqualNumbersAndNesting(t *testing.T) {
	cases := []struct {
		a, b any
		want bool
	}{
		{1, 1.0, true},
		{int64(2), uint8(2), true},
		{1, "1", false},
		{nil, nil, true},
		{nil, 0, false},
		{map[string]any{"a": 1}, Value{"a": 1.0}, true},
		{[]any{1, "x"}, []any{1.0, "x"}, true},
		{[]any{1}, []any{1, 2}, false},
		{"a", "a", true},
	}
	for _, c := range cases {
		if got := PropertiesEqual(c.a, c.b); got != c.want {
			t.Fatalf("PropertiesEqual(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
	if !DiffsEqual(Diff{"a": nil}, Diff{"a": nil}) || DiffsEqual(Diff{"a": nil}, Diff{"a": 1}) {
		t.Fatalf("DiffsEqual mismatch on nil removals")
	}
}

func TestCloneValueIsDeep(t *testing.T) {
	v := Value{"name": "inserter", "filters": []any{map[string]any{"item": "gear"}}}
	cp := CloneValue(v)
	cp["filters"].([]any)[0].(map[string]any)["item"] = "plate"
	if v["filters"].([]any)[0].(map[string]any)["item"] != "gear" {
		t.Fatalf("clone shares nested state")
	}
	if CloneValue(nil) != nil || CloneDiff(nil) != nil {
		t.Fatalf("nil should clone to nil")
	}
	if diff := cmp.Diff([]string{"filters", "name"}, v.Keys()); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
}

func TestPositionAndDirection(t *testing.T) {
	if got := (Position{X: -0.5, Y: 2.9}).Cell(); got != (Cell{X: -1, Y: 2}) {
		t.Fatalf("cell = %+v", got)
	}
	if got := (Position{X: 0.5, Y: 0.5}).Add(West, 3); got != (Position{X: -2.5, Y: 0.5}) {
		t.Fatalf("add = %v", got)
	}
	if North.Opposite() != South || Direction(14).Opposite() != Direction(6) {
		t.Fatalf("opposite wrong")
	}
	if East.Axis() != West.Axis() || North.Axis() == East.Axis() {
		t.Fatalf("axis wrong")
	}
	if dx, dy := Direction(2).Vector(); dx != 0 || dy != 0 {
		t.Fatalf("diagonal vector should be zero")
	}
	if UndergroundInput.Flip() != UndergroundOutput || UndergroundOutput.Flip() != UndergroundInput {
		t.Fatalf("flip wrong")
	}
}

func TestPrototypeInfo(t *testing.T) {
	box := BoundingBox{LeftTop: Position{X: -0.4, Y: -0.4}, RightBottom: Position{X: 0.4, Y: 0.4}}
	info := NewPrototypeInfo(
		Prototype{Name: "chest", Type: "container", FastReplaceGroup: "container", CollisionBox: box},
		Prototype{Name: "iron-chest", Type: "container", FastReplaceGroup: "container", CollisionBox: box},
		Prototype{Name: "tank", Type: "storage-tank", FastReplaceGroup: "container", CollisionBox: box},
		Prototype{Name: "splitter", Type: "splitter", Kind: KindBelt, Directions: []Direction{North, South}},
	)
	if !info.Compatible("chest", "iron-chest") || info.Compatible("chest", "tank") || info.Compatible("chest", "missing") {
		t.Fatalf("compatibility wrong")
	}
	if info.KindOf("chest") != KindGeneric || info.KindOf("splitter") != KindBelt || info.KindOf("nope") != KindGeneric {
		t.Fatalf("kinds wrong")
	}
	sp, _ := info.Lookup("splitter")
	if sp.SupportsDirection(East) || !sp.SupportsDirection(South) {
		t.Fatalf("explicit directions wrong")
	}
	ch, _ := info.Lookup("chest")
	if !ch.SupportsDirection(West) || ch.SupportsDirection(Direction(2)) {
		t.Fatalf("default directions wrong")
	}
	if diff := cmp.Diff([]string{"chest", "iron-chest", "splitter", "tank"}, info.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestInfoAndOutcomeHelpers(t *testing.T) {
	v := EntityInfo{Name: "belt", Value: Value{"speed": 1}}.ObservedValue()
	if v.Name() != "belt" || v["speed"] != 1 {
		t.Fatalf("observed value %v", v)
	}
	if code := (Outcome{Delete: DeleteMadeSettingsRemnant}).Code(); code != ResultCode(DeleteMadeSettingsRemnant) {
		t.Fatalf("code %q", code)
	}
	if (Outcome{}).Code() != "" {
		t.Fatalf("empty outcome should have no code")
	}
	if !(LinkSet{}).Empty() {
		t.Fatalf("zero link set should be empty")
	}
	w := CircuitWire{FromConnector: 1, ToConnector: 2, Color: WireGreen}
	if w.Reverse().Reverse() != w || w.Reverse().FromConnector != 2 {
		t.Fatalf("reverse wrong")
	}
}
