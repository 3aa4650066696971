package domain

import (
	"testing"

	"sweepcore/testutil"
)

// The schema layer is shared with external callers and must stay free of
// storage and engine concerns.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"domain must not depend on internal implementation packages")
}
