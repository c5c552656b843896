package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

func arr(elems ...any) *ast.Node {
	out := ast.Create(ast.KindArray, diag.Location{})
	for _, e := range elems {
		out.PushBack(scalar(diag.Location{}, e))
	}
	return out
}

func TestCountSumProduct(t *testing.T) {
	reg := Standard()
	v, err := reg["count"]([]*ast.Node{arr(int64(1), int64(2), int64(3))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(3), v.Lit)

	v, err = reg["sum"]([]*ast.Node{arr(int64(1), int64(2), int64(3))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(6), v.Lit)

	v, err = reg["product"]([]*ast.Node{arr(int64(2), int64(3))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(6), v.Lit)
}

func TestMaxMin(t *testing.T) {
	reg := Standard()
	v, err := reg["max"]([]*ast.Node{arr(int64(3), int64(9), int64(1))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(9), v.Lit)

	v, err = reg["min"]([]*ast.Node{arr(int64(3), int64(9), int64(1))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Lit)
}

func TestStringHelpers(t *testing.T) {
	reg := Standard()
	v, err := reg["upper"]([]*ast.Node{scalar(diag.Location{}, "ab")}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, "AB", v.Lit)

	v, err = reg["contains"]([]*ast.Node{scalar(diag.Location{}, "hello"), scalar(diag.Location{}, "ell")}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, ast.KindJSONTrue, v.Kind())

	v, err = reg["split"]([]*ast.Node{scalar(diag.Location{}, "a,b,c"), scalar(diag.Location{}, ",")}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, 3, v.NumChildren())
}

func TestSprintf(t *testing.T) {
	reg := Standard()
	v, err := reg["sprintf"]([]*ast.Node{scalar(diag.Location{}, "%s is %d"), arr("x", int64(1))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, "x is 1", v.Lit)
}

func TestTypeName(t *testing.T) {
	reg := Standard()
	v, err := reg["type_name"]([]*ast.Node{arr(int64(1))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, "array", v.Lit)
}

func TestObjectHelpers(t *testing.T) {
	reg := Standard()
	obj := ast.Create(ast.KindObject, diag.Location{})
	item := ast.Create(ast.KindObjectItem, diag.Location{})
	k := scalar(diag.Location{}, "a")
	item.PushBack(k)
	item.PushBack(scalar(diag.Location{}, int64(1)))
	item.SetKey(k)
	obj.PushBack(item)

	v, err := reg["object.get"]([]*ast.Node{obj, scalar(diag.Location{}, "a"), scalar(diag.Location{}, int64(0))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Lit)

	v, err = reg["object.get"]([]*ast.Node{obj, scalar(diag.Location{}, "missing"), scalar(diag.Location{}, int64(0))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(0), v.Lit)
}

func TestJSONMarshalUnmarshalRoundTrip(t *testing.T) {
	reg := Standard()
	v, err := reg["json.marshal"]([]*ast.Node{arr(int64(1), int64(2))}, diag.Location{})
	require.NoError(t, err)
	s, _ := v.Lit.(string)

	back, err := reg["json.unmarshal"]([]*ast.Node{scalar(diag.Location{}, s)}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, ast.KindArray, back.Kind())
	require.Equal(t, 2, back.NumChildren())
}

func TestRegexMatch(t *testing.T) {
	reg := Standard()
	v, err := reg["regex.match"]([]*ast.Node{scalar(diag.Location{}, "^a.*z$"), scalar(diag.Location{}, "abcz")}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, ast.KindJSONTrue, v.Kind())
}

func TestAbsRound(t *testing.T) {
	reg := Standard()
	v, err := reg["abs"]([]*ast.Node{scalar(diag.Location{}, int64(-5))}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(5), v.Lit)

	v, err = reg["round"]([]*ast.Node{scalar(diag.Location{}, 2.6)}, diag.Location{})
	require.NoError(t, err)
	require.Equal(t, int64(3), v.Lit)
}
