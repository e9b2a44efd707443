package layout

import (
	"testing"

	"cultureplan/testutil"
)

func TestLayoutStaysInMemory(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "layout packing must not depend on storage or transport")
}
