package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
	"github.com/ashgrove/regowalk/internal/surface"
	"github.com/ashgrove/regowalk/internal/wf"
)

func parseModule(t *testing.T, src string) *ast.Node {
	t.Helper()
	mod, err := surface.ParseModule(&diag.Source{Name: "test.rego", Text: src})
	require.NoError(t, err)
	return mod
}

const fixture = `package p

default allow = false

allow {
	input.user == "root"
	not input.banned
}

evens := {n | n := input.ns[_]; n % 2 == 0}

double(x) = y { y := x * 2 }

members[m] { some m in input.groups }

grades[k] = v { some k, v in input.raw }

ok { every x in input.xs { x > 0 } }
`

// Every lowered module must satisfy the normal-form WF grammar, the final
// boundary of the pipeline.
func TestLoweredModuleIsWellFormed(t *testing.T) {
	lowered := LowerModule(parseModule(t, fixture))

	// wrap in the same root shape the driver assembles so scope walks
	// terminate at a Top node
	seq := ast.Create(ast.KindModuleSeq, diag.Location{})
	seq.PushBack(lowered)
	rego := ast.Create(ast.KindRego, diag.Location{})
	rego.PushBack(ast.Create(ast.KindQuery, diag.Location{}))
	in := ast.Create(ast.KindInput, diag.Location{})
	in.PushBack(ast.Leaf(ast.KindUndefinedTerm, diag.Location{}, nil))
	rego.PushBack(in)
	ds := ast.Create(ast.KindDataSeq, diag.Location{})
	ds.PushBack(ast.Create(ast.KindObject, diag.Location{}))
	rego.PushBack(ds)
	rego.PushBack(seq)
	top := ast.Create(ast.KindTop, diag.Location{})
	top.PushBack(rego)

	viols := wf.Check(top, NormalFormSchema())
	for _, v := range viols {
		t.Log(v.Error())
	}
	require.Empty(t, viols)

	var errs []*ast.Node
	top.Errors(&errs)
	require.Empty(t, errs)
}

// Lowering two fresh parses of the same source must yield the same shape
// (deterministic lowering).
func TestLoweringIsDeterministic(t *testing.T) {
	lowered := LowerModule(parseModule(t, fixture))
	again := LowerModule(parseModule(t, fixture))
	require.Equal(t, shape(lowered), shape(again))
}

func shape(n *ast.Node) string {
	out := n.Kind().String()
	if n.NumChildren() == 0 {
		return out
	}
	out += "("
	for i, c := range n.Children() {
		if i > 0 {
			out += ","
		}
		out += shape(c)
	}
	return out + ")"
}

func TestRuleKindsLowerToExpectedLayouts(t *testing.T) {
	lowered := LowerModule(parseModule(t, fixture))
	policy := lowered.Child(2)

	kinds := map[ast.Kind]int{}
	for _, rule := range policy.Children() {
		kinds[rule.Kind()]++
		switch rule.Kind() {
		case ast.KindRuleComp:
			require.Equal(t, 4, rule.NumChildren())
			require.Equal(t, ast.KindUnifyBody, rule.Child(1).Kind())
			require.Equal(t, ast.KindUnifyBody, rule.Child(2).Kind())
			require.Equal(t, ast.KindElseSeq, rule.Child(3).Kind())
		case ast.KindRuleFunc:
			require.Equal(t, 5, rule.NumChildren())
			require.Equal(t, ast.KindRuleArgs, rule.Child(1).Kind())
		case ast.KindRuleSet:
			require.Equal(t, 3, rule.NumChildren())
		case ast.KindRuleObj:
			require.Equal(t, 4, rule.NumChildren())
		case ast.KindDefaultRule:
			require.Equal(t, 2, rule.NumChildren())
		}
	}
	require.Equal(t, 1, kinds[ast.KindDefaultRule])
	require.Equal(t, 1, kinds[ast.KindRuleFunc])
	require.Equal(t, 1, kinds[ast.KindRuleSet])
	require.Equal(t, 1, kinds[ast.KindRuleObj])
}

func TestLowerQueryShapes(t *testing.T) {
	src := &diag.Source{Name: "query", Text: "data.p.msg"}
	expr, err := surface.ParseQuery(src)
	require.NoError(t, err)
	q := LowerQuery(expr)
	require.Empty(t, q.Bindings)
	require.Len(t, q.Anon, 1)
	require.Equal(t, ast.KindUnifyBody, q.Body.Kind())

	src = &diag.Source{Name: "query", Text: "x = data.p.msg"}
	expr, err = surface.ParseQuery(src)
	require.NoError(t, err)
	q = LowerQuery(expr)
	require.Equal(t, []string{"x"}, q.Bindings)
	require.Empty(t, q.Anon)
}

func TestPrepassInlinesParens(t *testing.T) {
	mod := parseModule(t, `package p
v = (1 + 2) * 3`)
	lowered := LowerModule(mod)
	var parens int
	lowered.Walk(func(n *ast.Node, _ int) bool {
		if n.Kind() == ast.KindParen {
			parens++
		}
		return true
	})
	require.Zero(t, parens)
}
