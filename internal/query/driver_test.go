package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
	"github.com/ashgrove/regowalk/internal/jsonio"
	"github.com/ashgrove/regowalk/internal/surface"
)

func newDriver(t *testing.T, modules map[string]string, data, input string) *Driver {
	t.Helper()
	d := New()
	for name, src := range modules {
		mod, err := surface.ParseModule(&diag.Source{Name: name, Text: src})
		require.NoError(t, err, name)
		d.Modules = append(d.Modules, mod)
	}
	if data != "" {
		doc, err := jsonio.Read("data", data)
		require.NoError(t, err)
		d.DataDocs = append(d.DataDocs, doc)
	}
	if input != "" {
		doc, err := jsonio.Read("input", input)
		require.NoError(t, err)
		d.Input = doc
	}
	return d
}

// terms renders every bare Term child of a Query result.
func terms(t *testing.T, node *ast.Node) []string {
	t.Helper()
	var out []string
	for _, c := range node.Children() {
		if c.Kind() == ast.KindTerm {
			out = append(out, jsonio.Emit(c.Child(0)))
		}
	}
	return out
}

func TestHello(t *testing.T) {
	d := newDriver(t, map[string]string{
		"p.rego": `package p
msg = "hello"`,
	}, "", "")
	node, err := d.Run("data.p.msg")
	require.NoError(t, err)
	require.Equal(t, []string{`"hello"`}, terms(t, node))
}

func TestArithmeticAndComparison(t *testing.T) {
	d := newDriver(t, map[string]string{
		"p.rego": `package p
ok {
	x := 2 + 3
	x > 4
}`,
	}, "", "")
	node, err := d.Run("data.p.ok")
	require.NoError(t, err)
	require.Equal(t, []string{"true"}, terms(t, node))
}

func TestDefaultDominance(t *testing.T) {
	src := map[string]string{
		"p.rego": `package p
default allow = false
allow { input.user == "root" }`,
	}

	d := newDriver(t, src, "", `{"user":"alice"}`)
	node, err := d.Run("data.p.allow")
	require.NoError(t, err)
	require.Equal(t, []string{"false"}, terms(t, node))

	d = newDriver(t, src, "", `{"user":"root"}`)
	node, err = d.Run("data.p.allow")
	require.NoError(t, err)
	require.Equal(t, []string{"true"}, terms(t, node))
}

func TestSetComprehensionWithCapture(t *testing.T) {
	d := newDriver(t, map[string]string{
		"p.rego": `package p
evens := {n | n := input.ns[_]; n % 2 == 0}`,
	}, "", `{"ns":[1,2,3,4]}`)
	node, err := d.Run("data.p.evens")
	require.NoError(t, err)
	require.Equal(t, []string{"[2,4]"}, terms(t, node))
}

func TestEveryQuantifier(t *testing.T) {
	src := map[string]string{
		"p.rego": `package p
ok { every x in input.xs { x > 0 } }`,
	}

	d := newDriver(t, src, "", `{"xs":[1,2,3]}`)
	node, err := d.Run("data.p.ok")
	require.NoError(t, err)
	require.Equal(t, []string{"true"}, terms(t, node))

	d = newDriver(t, src, "", `{"xs":[1,-1,3]}`)
	node, err = d.Run("data.p.ok")
	require.NoError(t, err)
	require.Equal(t, []string{"false"}, terms(t, node))
}

func TestRecursionYieldsError(t *testing.T) {
	d := newDriver(t, map[string]string{
		"p.rego": `package p
a = b
b = a`,
	}, "", "")
	node, err := d.Run("data.p.a")
	require.NoError(t, err)
	var errs []*ast.Node
	node.Errors(&errs)
	require.Len(t, errs, 1)
	msg, _ := errs[0].Lit.(string)
	require.Contains(t, msg, "Recursion")
}

func TestWithLocality(t *testing.T) {
	src := map[string]string{
		"p.rego": `package p
v = input.x
w { v == 7 with input as {"x": 7} }`,
	}

	d := newDriver(t, src, "", "")
	node, err := d.Run("data.p.w")
	require.NoError(t, err)
	require.Equal(t, []string{"true"}, terms(t, node))

	// Outside the with body the override is invisible: no input is set, so
	// v has no value and the query collapses to false.
	node, err = d.Run("data.p.v")
	require.NoError(t, err)
	require.Equal(t, []string{"false"}, terms(t, node))
}

func TestQueryBinding(t *testing.T) {
	d := newDriver(t, map[string]string{
		"p.rego": `package p
msg = "hi"`,
	}, "", "")
	node, err := d.Run(`x = data.p.msg`)
	require.NoError(t, err)
	require.Equal(t, 1, node.NumChildren())
	b := node.Child(0)
	require.Equal(t, ast.KindBinding, b.Kind())
	require.Equal(t, "x", b.Child(0).Lit)
	require.Equal(t, `"hi"`, jsonio.Emit(b.Child(1)))
}

func TestDataDocumentPath(t *testing.T) {
	d := newDriver(t, nil, `{"site":{"region":"eu-west"}}`, "")
	node, err := d.Run("data.site.region")
	require.NoError(t, err)
	require.Equal(t, []string{`"eu-west"`}, terms(t, node))
}

func TestFunctionRule(t *testing.T) {
	d := newDriver(t, map[string]string{
		"p.rego": `package p
double(x) = y { y := x * 2 }
n = data.p.double(21)`,
	}, "", "")
	node, err := d.Run("data.p.n")
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, terms(t, node))
}

func TestRuleSetAggregation(t *testing.T) {
	d := newDriver(t, map[string]string{
		"p.rego": `package p
members[m] { some m in input.a }
members[m] { some m in input.b }`,
	}, "", `{"a":["x","y"],"b":["y","z"]}`)
	node, err := d.Run("data.p.members")
	require.NoError(t, err)
	require.Equal(t, []string{`["x","y","z"]`}, terms(t, node))
}

func TestModuleOrderDoesNotAffectOutput(t *testing.T) {
	a := `package a
v = 1`
	b := `package b
v = data.a.v + 1`

	first := newDriver(t, map[string]string{"a.rego": a, "b.rego": b}, "", "")
	second := New()
	for _, src := range []string{b, a} { // reversed insertion order
		mod, err := surface.ParseModule(&diag.Source{Name: "m.rego", Text: src})
		require.NoError(t, err)
		second.Modules = append(second.Modules, mod)
	}

	n1, err := first.Run("data.b.v")
	require.NoError(t, err)
	n2, err := second.Run("data.b.v")
	require.NoError(t, err)
	require.Equal(t, terms(t, n1), terms(t, n2))
	require.Equal(t, []string{"2"}, terms(t, n1))
}

func TestListRules(t *testing.T) {
	d := newDriver(t, map[string]string{
		"p.rego": `package p
default allow = false
allow { input.user == "root" }
members[m] { some m in input.groups }`,
		"q.rego": `package a
v = 1`,
	}, "", "")
	require.Equal(t, []string{"data.a.v", "data.p.allow", "data.p.members"}, d.ListRules())
}
