package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

func sc(v any) *ast.Node { return ast.Leaf(ast.KindScalar, diag.Location{}, v) }

func TestArithInfixIntAndFloat(t *testing.T) {
	r, err := ArithInfix("+", sc(int64(2)), sc(int64(3)), diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(5), r.Lit)

	r, err = ArithInfix("/", sc(int64(1)), sc(int64(2)), diag.Location{})
	require.NoError(t, err)
	require.Equal(t, 0.5, r.Lit)
}

func TestArithInfixDivideByZero(t *testing.T) {
	_, err := ArithInfix("/", sc(int64(1)), sc(int64(0)), diag.Location{})
	require.Error(t, err)
}

func TestArithInfixFloatModuloUndefined(t *testing.T) {
	r, err := ArithInfix("%", sc(1.5), sc(2.0), diag.Location{})
	require.NoError(t, err)
	require.Equal(t, ast.KindUndefinedTerm, r.Kind())
}

func TestArithInfixUndefinedOperandIsFalse(t *testing.T) {
	r, err := ArithInfix("+", ast.Leaf(ast.KindUndefinedTerm, diag.Location{}, nil), sc(int64(1)), diag.Location{})
	require.NoError(t, err)
	require.Equal(t, ast.KindJSONFalse, r.Kind())
}

func TestBoolInfixNumericAndMixed(t *testing.T) {
	require.Equal(t, ast.KindJSONTrue, BoolInfix(">", sc(int64(5)), sc(int64(3)), diag.Location{}).Kind())
	require.Equal(t, ast.KindJSONTrue, BoolInfix("==", sc("a"), sc("a"), diag.Location{}).Kind())
}

func TestBinInfixSetOps(t *testing.T) {
	a := MakeSet(diag.Location{}, []*ast.Node{sc(int64(1)), sc(int64(2))})
	b := MakeSet(diag.Location{}, []*ast.Node{sc(int64(2)), sc(int64(3))})

	inter, err := BinInfix("&", a, b, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, 1, inter.NumChildren())

	union, err := BinInfix("|", a, b, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, 3, union.NumChildren())

	diff, err := BinInfix("-", a, b, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, 1, diff.NumChildren())
	require.Equal(t, int64(1), diff.Child(0).Lit)
}

func TestApplyAccessArrayBoundsAndObjectAndSet(t *testing.T) {
	arr := MakeArray(diag.Location{}, []*ast.Node{sc(int64(10)), sc(int64(20))})
	v, err := ApplyAccess(arr, sc(int64(1)), diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(20), v.Lit)

	v, err = ApplyAccess(arr, sc(int64(5)), diag.Location{})
	require.NoError(t, err)
	require.Equal(t, ast.KindUndefinedTerm, v.Kind())

	obj, err := MakeObject(diag.Location{}, []*ast.Node{sc("k")}, []*ast.Node{sc("v")})
	require.NoError(t, err)
	v, err = ApplyAccess(obj, sc("k"), diag.Location{})
	require.NoError(t, err)
	require.Equal(t, "v", v.Lit)

	set := MakeSet(diag.Location{}, []*ast.Node{sc(int64(1))})
	v, err = ApplyAccess(set, sc(int64(1)), diag.Location{})
	require.NoError(t, err)
	require.Equal(t, ast.KindJSONTrue, v.Kind())
}

func TestMakeSetDedupesAndSorts(t *testing.T) {
	s := MakeSet(diag.Location{}, []*ast.Node{sc(int64(2)), sc(int64(1)), sc(int64(2))})
	require.Equal(t, 2, s.NumChildren())
	require.Equal(t, int64(1), s.Child(0).Lit)
	require.Equal(t, int64(2), s.Child(1).Lit)
}

func TestInjectArgsBindsAndChecksConstants(t *testing.T) {
	ruleArgs := ast.Create(ast.KindRuleArgs, diag.Location{})
	argVar := ast.Create(ast.KindArgVar, diag.Location{})
	nameLeaf := ast.Leaf(ast.KindVar, diag.Location{}, "x")
	argVar.PushBack(nameLeaf)
	argVar.SetKey(nameLeaf)
	ruleArgs.PushBack(argVar)

	bindings, err := InjectArgs(ruleArgs, []*ast.Node{sc(int64(7))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(7), bindings["x"].Lit)

	_, err = InjectArgs(ruleArgs, []*ast.Node{}, diag.Location{})
	require.Error(t, err)
}
