package policy

import (
	"testing"

	"stageplan/testutil"
)

func TestPolicyDoesNotDependOnEngine(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ImportsAny("internal/core", "internal/sandbox", "internal/archive"), "policies are pure functions over project content")
	testutil.AssertNoTransitiveImports(t, "stageplan/internal/policy", testutil.ImportsAny("internal/core", "internal/sandbox", "internal/archive"), "policies must not reach the engine through a dependency")
}
