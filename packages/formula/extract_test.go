package formula

import (
	"fmt"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
)

func TestExtractVariables(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	table := Symbols(false)
	cases := []struct {
		expr string
		want []string
	}{
		{"", []string{}},
		{"x + y * x", []string{"x", "y"}},
		{"sin(x) + cos(y)", []string{"x", "y"}},
		{"PI * radius * radius", []string{"radius"}},
		{"r1 + r22 * r", []string{"r"}},
		{"r1x + rx", []string{"rx"}},
		{"r1x + r2d2", []string{}},
		{"r_1 + ra1", []string{"r_1", "ra1"}},
		{"a_b + a1", []string{"a_b", "a1"}},
		{"2x + 1e5", []string{}},
		{"_x + x_", []string{"x_"}},
		{"sinx + xsin", []string{"sinx", "xsin"}},
		{"width×height÷depth", []string{"width", "height", "depth"}},
		{"((a", []string{"a"}},
		{"éa + b", []string{"a", "b"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ExtractVariables(c.expr, table), c.expr)
	}
}

func TestExtractExcludesPredefined(t *testing.T) {
	table := Symbols(true)
	for _, name := range table.Names() {
		assert.Empty(t, ExtractVariables(name, table), name)
	}
}

func TestExtractExcludesResultRefs(t *testing.T) {
	for n := 1; n <= 200; n++ {
		ref := fmt.Sprintf("r%d", n)
		assert.Empty(t, ExtractVariables(ref, nil), ref)
		assert.Empty(t, ExtractVariables(ref, NewNameSet("x")), ref)
	}
}

func TestExtractWithoutPredicate(t *testing.T) {
	assert.Equal(t, []string{"sin", "x"}, ExtractVariables("sin(x)", nil))
	assert.Equal(t, []string{"x"}, ExtractVariables("sin(x)", NewNameSet("sin")))
}

func TestVariablesInUse(t *testing.T) {
	table := Symbols(false)
	vars := VariablesInUse([]string{"a + b", "r1 * c", "b + a", "", "sqrt(d)"}, table)
	assert.Equal(t, []string{"a", "b", "c", "d"}, vars)
}

func TestResultRefs(t *testing.T) {
	assert.True(t, IsResultRef("r1"))
	assert.True(t, IsResultRef("r0"))
	assert.True(t, IsResultRef("r123"))
	assert.False(t, IsResultRef("r"))
	assert.False(t, IsResultRef("r1x"))
	assert.False(t, IsResultRef("R1"))
	assert.False(t, IsResultRef("xr1"))
	assert.Equal(t, "r1", ResultRef(0))
	assert.Equal(t, "r10", ResultRef(9))
}
