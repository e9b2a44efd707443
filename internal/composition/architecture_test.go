package composition

import (
	"testing"

	"cultureplan/testutil"
)

func TestCompositionImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InfraImportForbidden, func(path string) bool {
		return path == "cultureplan/internal/core"
	}), "compositions are computed from resolved components only")
}
