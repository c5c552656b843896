package value

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

func scalar(v any) *ast.Node { return ast.Leaf(ast.KindScalar, diag.Location{}, v) }

func TestRenderCanonicalFormDedupesArraysAndObjects(t *testing.T) {
	a := ast.Create(ast.KindArray, diag.Location{})
	a.PushBack(scalar(int64(1)))
	a.PushBack(scalar(int64(2)))

	b := ast.Create(ast.KindArray, diag.Location{})
	b.PushBack(scalar(int64(1)))
	b.PushBack(scalar(int64(2)))

	require.Equal(t, Render(a), Render(b))
}

func TestRenderObjectIsOrderIndependent(t *testing.T) {
	mk := func(k1, v1, k2, v2 string) *ast.Node {
		o := ast.Create(ast.KindObject, diag.Location{})
		i1 := ast.Create(ast.KindObjectItem, diag.Location{})
		i1.PushBack(scalar(k1))
		i1.PushBack(scalar(v1))
		i2 := ast.Create(ast.KindObjectItem, diag.Location{})
		i2.PushBack(scalar(k2))
		i2.PushBack(scalar(v2))
		o.PushBack(i1)
		o.PushBack(i2)
		return o
	}
	require.Equal(t, Render(mk("a", "1", "b", "2")), Render(mk("b", "2", "a", "1")))
}

func TestUserVariableAddDedupesByRenderedForm(t *testing.T) {
	v := NewVariable("x", diag.Location{}, nil)
	v.Add(NewValue(scalar(int64(1)), diag.Location{}, nil, 0))
	v.Add(NewValue(scalar(int64(1)), diag.Location{}, nil, 0))
	v.Add(NewValue(scalar(int64(2)), diag.Location{}, nil, 0))
	require.Len(t, v.Values, 2)
	require.True(t, v.IsUserVar)
}

// Synthetic variables keep same-rendered candidates apart so each tuple's
// source chain can be condemned independently; Bind collapses them.
func TestSyntheticVariableKeepsDuplicateCandidates(t *testing.T) {
	v := NewVariable("t$1", diag.Location{}, nil)
	v.Add(NewValue(scalar(int64(1)), diag.Location{}, nil, 0))
	v.Add(NewValue(scalar(int64(1)), diag.Location{}, nil, 0))
	require.Len(t, v.Values, 2)
	require.Equal(t, ast.KindScalar, v.Bind().Kind())
}

func TestUserVariableDedupPrefersLiveChain(t *testing.T) {
	v := NewVariable("x", diag.Location{}, nil)
	src := NewValue(scalar(int64(0)), diag.Location{}, nil, 0)
	dead := NewValue(scalar(int64(5)), diag.Location{}, nil, 0)
	dead.Srcs = []*Value{src}
	v.Add(dead)
	src.Valid = false
	v.Add(NewValue(scalar(int64(5)), diag.Location{}, nil, 0))
	require.Len(t, v.Values, 1)
	require.True(t, v.Values[0].Alive())
}

func TestVariableAddDropsUndefinedButRecordsSources(t *testing.T) {
	v := NewVariable("x", diag.Location{}, nil)
	undef := ast.Leaf(ast.KindUndefinedTerm, diag.Location{}, nil)
	v.Add(NewValue(undef, diag.Location{}, map[string]bool{"y": true}, 0))
	require.Empty(t, v.Values)
	require.True(t, v.DroppedSources["y"])
}

func TestUserVarNameClassification(t *testing.T) {
	require.True(t, NewVariable("x", diag.Location{}, nil).IsUserVar)
	require.True(t, NewVariable("$x", diag.Location{}, nil).IsUserVar)
	require.False(t, NewVariable("unify$3", diag.Location{}, nil).IsUserVar)
}

func TestFilterByRankPrefersMinimumNonDefault(t *testing.T) {
	vals := []*Value{
		{Rank: 2, Term: scalar(int64(1))},
		{Rank: 1, Term: scalar(int64(2))},
		{Rank: DefaultRank, Term: scalar(int64(0))},
	}
	out := FilterByRank(vals)
	require.Len(t, out, 1)
	require.Equal(t, int64(2), out[0].Term.Lit)
}

func TestFilterByRankFallsBackToDefault(t *testing.T) {
	vals := []*Value{{Rank: DefaultRank, Term: scalar(false)}}
	out := FilterByRank(vals)
	require.Len(t, out, 1)
	require.Equal(t, DefaultRank, out[0].Rank)
}

func TestMarkInvalidValuesCascades(t *testing.T) {
	dep := NewVariable("unify$dep", diag.Location{}, nil)
	// dep has no surviving candidates.
	target := NewVariable("unify$target", diag.Location{}, nil)
	target.Add(NewValue(scalar(int64(1)), diag.Location{}, map[string]bool{"unify$dep": true}, 0))

	vars := map[string]*Variable{"unify$dep": dep, "unify$target": target}
	MarkInvalidValues(vars)
	RemoveInvalidValues(vars)

	require.Empty(t, target.Values)
}

func TestBindVariablesFailsWhenAnyUnifyVarEmpty(t *testing.T) {
	a := NewVariable("unify$a", diag.Location{}, nil)
	a.Add(NewValue(scalar(int64(1)), diag.Location{}, nil, 0))
	b := NewVariable("unify$b", diag.Location{}, nil)

	require.False(t, BindVariables(map[string]*Variable{"unify$a": a, "unify$b": b}))
	b.Add(NewValue(scalar(int64(2)), diag.Location{}, nil, 0))
	require.True(t, BindVariables(map[string]*Variable{"unify$a": a, "unify$b": b}))
}

func TestBindEmitsSingleOrTermSet(t *testing.T) {
	v := NewVariable("x", diag.Location{}, nil)
	require.Equal(t, ast.KindUndefinedTerm, v.Bind().Kind())

	v.Add(NewValue(scalar(int64(1)), diag.Location{}, nil, 0))
	require.Equal(t, ast.KindScalar, v.Bind().Kind())

	v.Add(NewValue(scalar(int64(2)), diag.Location{}, nil, 0))
	require.Equal(t, ast.KindTermSet, v.Bind().Kind())
}

func TestIsTruthy(t *testing.T) {
	require.False(t, IsTruthy(ast.Leaf(ast.KindJSONFalse, diag.Location{}, nil)))
	require.True(t, IsTruthy(ast.Leaf(ast.KindJSONTrue, diag.Location{}, nil)))
	require.False(t, IsTruthy(ast.Leaf(ast.KindUndefinedTerm, diag.Location{}, nil)))
	require.True(t, IsTruthy(ast.Create(ast.KindArray, diag.Location{})))
}
