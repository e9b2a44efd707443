package domain

import (
	"testing"

	"cultureplan/testutil"
)

// The domain layer is shared by every store and service; it must not reach
// back into internal packages.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "pkg/domain must stay independent of internal packages")
}
