package policy

import (
	"testing"

	"stageplan/internal/entity"
	"stageplan/internal/project"
	"stageplan/pkg/domain"
)

func testProtos() domain.PrototypeInfo {
	box := domain.BoundingBox{LeftTop: domain.Position{X: -0.4, Y: -0.4}, RightBottom: domain.Position{X: 0.4, Y: 0.4}}
	return domain.NewPrototypeInfo(
		domain.Prototype{Name: "ug", Type: "underground-belt", Kind: domain.KindUnderground, CollisionBox: box, FastReplaceGroup: "transport-belt", MaxUndergroundDistance: 5},
		domain.Prototype{Name: "fast-ug", Type: "underground-belt", Kind: domain.KindUnderground, CollisionBox: box, FastReplaceGroup: "transport-belt", MaxUndergroundDistance: 7},
		domain.Prototype{Name: "chest", Type: "container", CollisionBox: box},
		domain.Prototype{Name: "lamp", Type: "lamp", CollisionBox: box},
	)
}

func underground(name string, x float64, t domain.UndergroundType, first domain.StageNumber) *entity.Entity {
	v := domain.Value{"name": name, "type": string(t)}
	return entity.New(domain.KindUnderground, v, domain.Position{X: x + 0.5, Y: 0.5}, domain.East, first)
}

func generic(name string, first domain.StageNumber) *entity.Entity {
	return entity.New(domain.KindGeneric, domain.Value{"name": name}, domain.Position{X: 0.5, Y: 0.5}, domain.North, first)
}

func TestUndergroundPairing(t *testing.T) {
	c := project.NewContent(5, testProtos())
	in := underground("ug", 0, domain.UndergroundInput, 1)
	out := underground("ug", 3, domain.UndergroundOutput, 1)
	c.Add(in)
	c.Add(out)

	if got := UndergroundPairAt(c, in, 1, "ug"); got != out {
		t.Fatalf("input should pair forward with output, got %v", got)
	}
	if got := UndergroundPairAt(c, out, 1, "ug"); got != in {
		t.Fatalf("output should pair backward with input, got %v", got)
	}
	if got := UndergroundPairAt(c, in, 1, "fast-ug"); got != nil {
		t.Fatalf("different name must not pair")
	}
}

func TestUndergroundSameTypeBlocks(t *testing.T) {
	c := project.NewContent(5, testProtos())
	in := underground("ug", 0, domain.UndergroundInput, 1)
	blocker := underground("ug", 2, domain.UndergroundInput, 1)
	out := underground("ug", 4, domain.UndergroundOutput, 1)
	c.Add(in)
	c.Add(blocker)
	c.Add(out)
	if got := UndergroundPairAt(c, in, 1, "ug"); got != nil {
		t.Fatalf("an input between must block pairing, got %v", got)
	}
	if got := UndergroundPairAt(c, blocker, 1, "ug"); got != out {
		t.Fatalf("middle input should pair with the output")
	}
}

func TestUndergroundOutOfReach(t *testing.T) {
	c := project.NewContent(5, testProtos())
	in := underground("ug", 0, domain.UndergroundInput, 1)
	out := underground("ug", 6, domain.UndergroundOutput, 1)
	c.Add(in)
	c.Add(out)
	if got := UndergroundPairAt(c, in, 1, "ug"); got != nil {
		t.Fatalf("output beyond reach must not pair")
	}
}

func TestMultiplePairsAcrossStages(t *testing.T) {
	c := project.NewContent(6, testProtos())
	in := underground("ug", 0, domain.UndergroundInput, 1)
	far := underground("ug", 4, domain.UndergroundOutput, 1)
	near := underground("ug", 2, domain.UndergroundOutput, 3)
	c.Add(in)
	c.Add(far)
	c.Add(near)
	pair, multiple := FindUndergroundPair(c, in, 1, "ug")
	if pair != far || !multiple {
		t.Fatalf("expected far pair and ambiguity, got %v %v", pair, multiple)
	}
	if _, res := CheckUndergroundUpgrade(c, in, 1, "fast-ug"); res != domain.UpdateCannotUpgradeMultiPairUnderground {
		t.Fatalf("expected multi-pair rejection, got %s", res)
	}
}

func TestCheckUndergroundUpgrade(t *testing.T) {
	t.Run("paired upgrades together", func(t *testing.T) {
		c := project.NewContent(5, testProtos())
		in := underground("ug", 0, domain.UndergroundInput, 1)
		out := underground("ug", 3, domain.UndergroundOutput, 1)
		c.Add(in)
		c.Add(out)
		pair, res := CheckUndergroundUpgrade(c, in, 1, "fast-ug")
		if res != domain.UpdateUpdated || pair != out {
			t.Fatalf("expected pair upgrade, got %v %s", pair, res)
		}
	})
	t.Run("upgrade would create a pair", func(t *testing.T) {
		c := project.NewContent(5, testProtos())
		in := underground("ug", 0, domain.UndergroundInput, 1)
		out := underground("fast-ug", 3, domain.UndergroundOutput, 1)
		c.Add(in)
		c.Add(out)
		if _, res := CheckUndergroundUpgrade(c, in, 1, "fast-ug"); res != domain.UpdateCannotCreatePairUpgrade {
			t.Fatalf("expected create-pair rejection, got %s", res)
		}
	})
	t.Run("partner appears later", func(t *testing.T) {
		c := project.NewContent(5, testProtos())
		in := underground("ug", 0, domain.UndergroundInput, 1)
		out := underground("fast-ug", 3, domain.UndergroundOutput, 4)
		c.Add(in)
		c.Add(out)
		if _, res := CheckUndergroundUpgrade(c, in, 1, "fast-ug"); res != domain.UpdateCannotCreatePairUpgrade {
			t.Fatalf("expected create-pair rejection, got %s", res)
		}
	})
	t.Run("pair would change", func(t *testing.T) {
		c := project.NewContent(5, testProtos())
		in := underground("ug", 0, domain.UndergroundInput, 1)
		closer := underground("fast-ug", 1, domain.UndergroundOutput, 1)
		out := underground("ug", 3, domain.UndergroundOutput, 1)
		c.Add(in)
		c.Add(closer)
		c.Add(out)
		if _, res := CheckUndergroundUpgrade(c, in, 1, "fast-ug"); res != domain.UpdateCannotUpgradeChangedPair {
			t.Fatalf("expected changed-pair rejection, got %s", res)
		}
	})
	t.Run("unpaired upgrade", func(t *testing.T) {
		c := project.NewContent(5, testProtos())
		in := underground("ug", 0, domain.UndergroundInput, 1)
		c.Add(in)
		if pair, res := CheckUndergroundUpgrade(c, in, 1, "fast-ug"); res != domain.UpdateUpdated || pair != nil {
			t.Fatalf("expected lone upgrade, got %v %s", pair, res)
		}
	})
}

func TestCanRotateAt(t *testing.T) {
	e := generic("chest", 2)
	pair := generic("chest", 4)
	cases := []struct {
		stage domain.StageNumber
		pair  *entity.Entity
		want  bool
	}{
		{2, nil, true},
		{3, nil, false},
		{4, nil, false},
		{4, pair, true},
		{5, pair, false},
	}
	for _, tc := range cases {
		if got := CanRotateAt(e, tc.pair, tc.stage); got != tc.want {
			t.Fatalf("stage %d pair %v: want %v got %v", tc.stage, tc.pair != nil, tc.want, got)
		}
	}
}

func TestCheckFirstStageMove(t *testing.T) {
	c := project.NewContent(10, testProtos())
	e := generic("chest", 1)
	other := generic("lamp", 2)
	c.Add(e)
	c.Add(other)
	if got := CheckFirstStageMove(c, e, 2); got != domain.StageMoveIntersectsAnotherEntity {
		t.Fatalf("expected intersection, got %s", got)
	}
	if got := CheckFirstStageMove(c, e, 1); got != domain.StageMoveNoChange {
		t.Fatalf("expected no change, got %s", got)
	}

	bounded := generic("chest", 3)
	bounded.SetLastStageUnchecked(ptr(domain.StageNumber(5)))
	c2 := project.NewContent(10, testProtos())
	c2.Add(bounded)
	if got := CheckFirstStageMove(c2, bounded, 6); got != domain.StageMoveCannotMovePastLastStage {
		t.Fatalf("expected past-last rejection, got %s", got)
	}
	if got := CheckFirstStageMove(c2, bounded, 1); got != domain.StageMoveUpdated {
		t.Fatalf("expected legal move down, got %s", got)
	}

	c3 := project.NewContent(10, testProtos())
	ug := underground("ug", 0, domain.UndergroundInput, 2)
	ug.ApplyUpgradeAtStage(4, "fast-ug")
	c3.Add(ug)
	if got := CheckFirstStageMove(c3, ug, 1); got != domain.StageMoveCannotMoveUpgradedUnderground {
		t.Fatalf("expected upgraded underground rejection, got %s", got)
	}
}

func TestCheckFirstStageMoveDownOverlap(t *testing.T) {
	c := project.NewContent(10, testProtos())
	below := generic("chest", 1)
	below.SetLastStageUnchecked(ptr(domain.StageNumber(2)))
	e := generic("chest", 5)
	c.Add(below)
	c.Add(e)
	if got := CheckFirstStageMove(c, e, 3); got != domain.StageMoveUpdated {
		t.Fatalf("stages 3..4 are free, got %s", got)
	}
	if got := CheckFirstStageMove(c, e, 2); got != domain.StageMoveIntersectsAnotherEntity {
		t.Fatalf("stage 2 is occupied, got %s", got)
	}
}

func TestCheckFirstStageMoveDownIgnoresIncompatible(t *testing.T) {
	c := project.NewContent(10, testProtos())
	lamp := generic("lamp", 1)
	lamp.SetLastStageUnchecked(ptr(domain.StageNumber(3)))
	e := generic("chest", 5)
	c.Add(lamp)
	c.Add(e)
	if got := CheckFirstStageMove(c, e, 2); got != domain.StageMoveUpdated {
		t.Fatalf("an incompatible entity below must not block a move down, got %s", got)
	}
	if got := Overlaps(c, e, 2, ptr(domain.StageNumber(4))); !got {
		t.Fatalf("Overlaps itself stays name-blind")
	}
}

func TestCheckLastStageMove(t *testing.T) {
	c := project.NewContent(10, testProtos())
	e := generic("chest", 2)
	e.SetLastStageUnchecked(ptr(domain.StageNumber(4)))
	above := generic("chest", 7)
	c.Add(e)
	c.Add(above)

	cases := []struct {
		name  string
		stage *domain.StageNumber
		want  domain.StageMoveResult
	}{
		{"same", ptr(domain.StageNumber(4)), domain.StageMoveNoChange},
		{"before first", ptr(domain.StageNumber(1)), domain.StageMoveCannotMoveBeforeFirstStage},
		{"shrink", ptr(domain.StageNumber(3)), domain.StageMoveUpdated},
		{"grow clear", ptr(domain.StageNumber(6)), domain.StageMoveUpdated},
		{"grow into other", ptr(domain.StageNumber(7)), domain.StageMoveIntersectsAnotherEntity},
		{"unbound", nil, domain.StageMoveIntersectsAnotherEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CheckLastStageMove(c, e, tc.stage); got != tc.want {
				t.Fatalf("want %s got %s", tc.want, got)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
