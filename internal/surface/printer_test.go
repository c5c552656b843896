package surface

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/diag"
)

const printFixture = `package example.authz

import data.common as shared

default allow = false

allow {
	input.user == "root"
	not input.banned
}

evens = {n | some n in input.ns; n % 2 == 0}

f(x) = y {
	y := x * 2
} else = 0

members[m] {
	some m in input.groups
}
`

func TestPrintParsePrintIsStable(t *testing.T) {
	mod, err := ParseModule(&diag.Source{Name: "fixture.rego", Text: printFixture})
	require.NoError(t, err)
	first := Print(mod)

	again, err := ParseModule(&diag.Source{Name: "printed.rego", Text: first})
	require.NoError(t, err)
	require.Equal(t, first, Print(again))
}

func TestPrintKeepsRuleShapes(t *testing.T) {
	mod, err := ParseModule(&diag.Source{Name: "fixture.rego", Text: printFixture})
	require.NoError(t, err)
	out := Print(mod)
	require.Contains(t, out, "package example.authz")
	require.Contains(t, out, "import data.common as shared")
	require.Contains(t, out, "default allow = false")
	require.Contains(t, out, "members[m]")
	require.Contains(t, out, "else = 0")
	require.Contains(t, out, `input.user == "root"`)
}
