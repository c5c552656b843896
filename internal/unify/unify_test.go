package unify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/builtin"
	"github.com/ashgrove/regowalk/internal/diag"
)

var loc0 = diag.Location{}

func varLeaf(name string) *ast.Node { return ast.Leaf(ast.KindVar, loc0, name) }
func scLeaf(v any) *ast.Node        { return ast.Leaf(ast.KindScalar, loc0, v) }
func localDecl(name string) *ast.Node {
	n := ast.Create(ast.KindLocal, loc0)
	n.PushBack(varLeaf(name))
	return n
}

func unifyExpr(target string, rhs *ast.Node) *ast.Node {
	n := ast.Create(ast.KindUnifyExpr, loc0)
	n.PushBack(varLeaf(target))
	n.PushBack(rhs)
	return n
}

func fn(name string, args ...*ast.Node) *ast.Node {
	n := ast.Create(ast.KindFunction, loc0)
	n.Lit = name
	for _, a := range args {
		n.PushBack(a)
	}
	return n
}

func body(stmts ...*ast.Node) *ast.Node {
	b := ast.Create(ast.KindUnifyBody, loc0)
	for _, s := range stmts {
		b.PushBack(s)
	}
	return b
}

func newCtx() *Context {
	return NewContext(builtin.Standard(), ast.Create(ast.KindObject, loc0), ast.Leaf(ast.KindUndefinedTerm, loc0, nil))
}

func TestUnifyExprScalarAssignment(t *testing.T) {
	b := body(
		localDecl("x"),
		unifyExpr("x", scLeaf(int64(5))),
	)
	u := Build(newCtx(), b)
	require.NoError(t, u.Run())
	require.True(t, u.Succeeded())
	v, ok := u.Var("x")
	require.True(t, ok)
	require.Equal(t, int64(5), v.Bind().Lit)
}

func TestUnifyExprArithmeticChain(t *testing.T) {
	b := body(
		localDecl("x"),
		localDecl("y"),
		unifyExpr("x", scLeaf(int64(2))),
		unifyExpr("y", fn("+", varLeaf("x"), scLeaf(int64(3)))),
	)
	u := Build(newCtx(), b)
	require.NoError(t, u.Run())
	v, _ := u.Var("y")
	require.Equal(t, int64(5), v.Bind().Lit)
}

func TestUnifyExprConditionGatesSuccess(t *testing.T) {
	b := body(
		localDecl("x"),
		unifyExpr("x", scLeaf(int64(2))),
		unifyExpr("unify$0", fn(">", varLeaf("x"), scLeaf(int64(10)))),
	)
	u := Build(newCtx(), b)
	require.NoError(t, u.Run())
	require.False(t, u.Succeeded())
}

func TestUnifyExprBuiltinCall(t *testing.T) {
	arr := ast.Create(ast.KindArray, loc0)
	arr.PushBack(scLeaf(int64(1)))
	arr.PushBack(scLeaf(int64(2)))
	arr.PushBack(scLeaf(int64(3)))

	b := body(
		localDecl("total"),
		unifyExpr("total", fn("sum", arr)),
	)
	u := Build(newCtx(), b)
	require.NoError(t, u.Run())
	v, _ := u.Var("total")
	require.Equal(t, int64(6), v.Bind().Lit)
}

func TestUnifyExprEnumProducesEachElement(t *testing.T) {
	arr := ast.Create(ast.KindArray, loc0)
	arr.PushBack(scLeaf(int64(10)))
	arr.PushBack(scLeaf(int64(20)))

	enum := ast.Create(ast.KindUnifyExprEnum, loc0)
	enum.PushBack(varLeaf("i"))
	enum.PushBack(varLeaf("v"))
	enum.PushBack(varLeaf("coll"))

	b := body(
		localDecl("coll"),
		localDecl("i"),
		localDecl("v"),
		unifyExpr("coll", arr),
		enum,
	)
	u := Build(newCtx(), b)
	require.NoError(t, u.Run())
	v, _ := u.Var("v")
	require.Len(t, v.Values, 2)
}

func TestUnifyExprSchedulesDependencyBeforeUse(t *testing.T) {
	b := body(
		localDecl("a"),
		localDecl("b"),
		unifyExpr("a", varLeaf("b")),
		unifyExpr("b", scLeaf(int64(1))),
	)
	u := Build(newCtx(), b)
	require.NoError(t, u.Run())
	a, _ := u.Var("a")
	require.Len(t, a.Values, 1)
	require.Equal(t, int64(1), a.Bind().Lit)
}

func makeRuleComp(name string, valueTerm *ast.Node) *ast.Node {
	nameLeaf := ast.Leaf(ast.KindVar, loc0, name)
	valBody := body(unifyExpr("value$", valueTerm))
	condBody := body()
	elseSeq := ast.Create(ast.KindElseSeq, loc0)
	rule := ast.Create(ast.KindRuleComp, loc0)
	rule.PushBack(nameLeaf)
	rule.PushBack(valBody)
	rule.PushBack(condBody)
	rule.PushBack(elseSeq)
	return rule
}

func TestEvalRuleCompReturnsValue(t *testing.T) {
	ctx := newCtx()
	ev := NewEvaluator(ctx)
	rule := makeRuleComp("allow", scLeaf(int64(42)))
	term, err := ev.EvalRuleComp(rule)
	require.NoError(t, err)
	require.Equal(t, int64(42), term.Lit)
}

func TestEvalRuleFuncRecursionErrors(t *testing.T) {
	ctx := newCtx()
	ev := NewEvaluator(ctx)

	nameLeaf := ast.Leaf(ast.KindVar, loc0, "loop")
	ruleArgs := ast.Create(ast.KindRuleArgs, loc0)
	valBody := body(unifyExpr("value$", fn("loop")))
	condBody := body()
	elseSeq := ast.Create(ast.KindElseSeq, loc0)
	rule := ast.Create(ast.KindRuleFunc, loc0)
	rule.PushBack(nameLeaf)
	rule.PushBack(ruleArgs)
	rule.PushBack(valBody)
	rule.PushBack(condBody)
	rule.PushBack(elseSeq)

	ctx.CallRuleFunc = func(name string, args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		require.Equal(t, "loop", name)
		return ev.EvalRuleFunc(rule, args, loc)
	}

	_, err := ev.EvalRuleFunc(rule, nil, loc0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Recursion")
}

func TestResolveNameDefaultDominance(t *testing.T) {
	ctx := newCtx()
	ev := NewEvaluator(ctx)

	defaultLeaf := ast.Leaf(ast.KindVar, loc0, "allow")
	defaultRule := ast.Create(ast.KindDefaultRule, loc0)
	defaultRule.PushBack(defaultLeaf)
	defaultRule.PushBack(body(unifyExpr("value$", ast.Leaf(ast.KindJSONFalse, loc0, false))))

	term, err := ev.ResolveName([]*ast.Node{defaultRule}, loc0)
	require.NoError(t, err)
	require.Equal(t, ast.KindJSONFalse, term.Kind())
}
