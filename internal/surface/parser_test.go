package surface

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
)

func parse(t *testing.T, src string) *ast.Node {
	t.Helper()
	mod, err := ParseModule(MakeSource("test", src))
	require.NoError(t, err)
	return mod
}

func policy(t *testing.T, mod *ast.Node) *ast.Node {
	t.Helper()
	require.Equal(t, ast.KindModule, mod.Kind())
	return mod.Child(2)
}

func TestParsePackageAndImport(t *testing.T) {
	mod := parse(t, `package p
import data.q as aliased
`)
	pkg := mod.Child(0)
	require.Equal(t, ast.KindPackage, pkg.Kind())
	require.Equal(t, "p", pkg.Child(0).Lit)

	imports := mod.Child(1)
	require.Equal(t, 1, imports.NumChildren())
	imp := imports.Child(0)
	require.Equal(t, "data.q", imp.Child(0).Lit)
	require.Equal(t, "aliased", imp.Child(1).Lit)
}

func TestParseCompleteRuleDefaultsToTrue(t *testing.T) {
	mod := parse(t, `package p
allow { input.x == 1 }
`)
	pol := policy(t, mod)
	require.Equal(t, 1, pol.NumChildren())
	rule := pol.Child(0)
	require.Equal(t, ast.KindRuleComp, rule.Kind())
	require.Equal(t, "allow", rule.Child(0).Lit)
	require.Equal(t, ast.KindJSONTrue, rule.Child(1).Kind())
	body := rule.Child(2)
	require.Equal(t, ast.KindBody, body.Kind())
	require.Equal(t, 1, body.NumChildren())
}

func TestParseRuleWithValueAndElse(t *testing.T) {
	mod := parse(t, `package p
grade = "a" { score > 90 } else = "b" { score > 80 }
`)
	rule := policy(t, mod).Child(0)
	require.Equal(t, ast.KindRuleComp, rule.Kind())
	require.Equal(t, "a", rule.Child(1).Lit)
	elses := rule.Child(3)
	require.Equal(t, 1, elses.NumChildren())
	require.Equal(t, "b", elses.Child(0).Child(0).Lit)
}

func TestParseFunctionRule(t *testing.T) {
	mod := parse(t, `package p
double(x) = y {
	y := x * 2
}
`)
	rule := policy(t, mod).Child(0)
	require.Equal(t, ast.KindRuleFunc, rule.Kind())
	args := rule.Child(1)
	require.Equal(t, ast.KindRuleArgs, args.Kind())
	require.Equal(t, 1, args.NumChildren())
}

func TestParseDefaultRule(t *testing.T) {
	mod := parse(t, `package p
default allow = false
`)
	rule := policy(t, mod).Child(0)
	require.Equal(t, ast.KindDefaultRule, rule.Kind())
	require.Equal(t, "allow", rule.Child(0).Lit)
	require.Equal(t, false, rule.Child(1).Lit)
}

func TestParseSetAndObjectRules(t *testing.T) {
	mod := parse(t, `package p
names contains n {
	n := input.users[_]
}
scores[name] = s {
	s := input.grades[name]
}
`)
	pol := policy(t, mod)
	require.Equal(t, ast.KindRuleSet, pol.Child(0).Kind())
	require.Equal(t, ast.KindRuleObj, pol.Child(1).Kind())
}

func TestParseSomeAndEvery(t *testing.T) {
	mod := parse(t, `package p
allow {
	some x in input.items
	every y in input.items { y > 0 }
}
`)
	body := policy(t, mod).Child(0).Child(2)
	require.Equal(t, ast.KindSomeDecl, body.Child(0).Kind())
	require.Equal(t, ast.KindEvery, body.Child(1).Kind())
}

func TestParseWithClause(t *testing.T) {
	mod := parse(t, `package p
allow {
	input.x == 1 with input.x as 1
}
`)
	stmt := policy(t, mod).Child(0).Child(2).Child(0)
	require.Equal(t, ast.KindLiteralWith, stmt.Kind())
	require.Equal(t, 2, stmt.NumChildren())
	require.Equal(t, ast.KindWithAs, stmt.Child(1).Kind())
}

func TestParseComprehensions(t *testing.T) {
	mod := parse(t, `package p
doubled = [x * 2 | x := input.items[_]]
uniq = {x | x := input.items[_]}
byid = {x.id: x | x := input.items[_]}
`)
	pol := policy(t, mod)
	require.Equal(t, ast.KindArrayCompr, pol.Child(0).Child(1).Kind())
	require.Equal(t, ast.KindSetCompr, pol.Child(1).Child(1).Kind())
	require.Equal(t, ast.KindObjectCompr, pol.Child(2).Child(1).Kind())
}

func TestParseArithmeticPrecedence(t *testing.T) {
	mod := parse(t, `package p
x = 1 + 2 * 3
`)
	val := policy(t, mod).Child(0).Child(1)
	require.Equal(t, ast.KindArithInfix, val.Kind())
	require.Equal(t, "+", val.Lit)
	require.Equal(t, ast.KindArithInfix, val.Child(1).Kind())
	require.Equal(t, "*", val.Child(1).Lit)
}

func TestParseNegationAndRef(t *testing.T) {
	mod := parse(t, `package p
allow {
	not input.deny.flag
}
`)
	stmt := policy(t, mod).Child(0).Child(2).Child(0)
	require.Equal(t, ast.KindUnaryExpr, stmt.Kind())
	require.Equal(t, "not", stmt.Lit)
	require.Equal(t, ast.KindRef, stmt.Child(0).Kind())
}

func TestParseEmptySetCall(t *testing.T) {
	mod := parse(t, `package p
s = set()
`)
	val := policy(t, mod).Child(0).Child(1)
	require.Equal(t, ast.KindSet, val.Kind())
	require.Equal(t, 0, val.NumChildren())
}

func TestParseErrorOnUnexpectedToken(t *testing.T) {
	_, err := ParseModule(MakeSource("test", `package p
allow { == }
`))
	require.Error(t, err)
}
