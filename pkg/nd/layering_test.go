package nd

import (
	"testing"

	"sweepcore/testutil"
)

func TestArrayHelpersStayDependencyFree(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.NonStdlibForbidden,
		"nd must not depend on anything outside the standard library")
}
