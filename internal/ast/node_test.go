package ast_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

func TestPushBackSetsParent(t *testing.T) {
	root := ast.Create(ast.KindUnifyBody, diag.Location{})
	child := ast.Create(ast.KindUnifyExpr, diag.Location{})
	root.PushBack(child)

	require.Equal(t, 1, root.NumChildren())
	require.Same(t, root, child.Parent())
}

func TestCloneIsDeepAndIndependent(t *testing.T) {
	root := ast.Create(ast.KindArray, diag.Location{})
	leaf := ast.Leaf(ast.KindScalar, diag.Location{}, int64(1))
	root.PushBack(leaf)

	clone := root.Clone()
	require.Equal(t, 1, clone.NumChildren())
	require.NotSame(t, leaf, clone.Child(0))
	require.Equal(t, int64(1), clone.Child(0).Lit)

	clone.Child(0).Lit = int64(2)
	require.Equal(t, int64(1), leaf.Lit, "clone mutation must not affect original")
}

func TestLookupWalksEnclosingScopes(t *testing.T) {
	module := ast.Create(ast.KindModule, diag.Location{})
	outer := ast.Create(ast.KindLocal, diag.Location{})
	outerName := ast.Leaf(ast.KindVar, diag.Location{}, "x")
	outer.PushBack(outerName)
	outer.SetKey(outerName)
	module.PushBack(outer)
	module.BindSymbol("x", outer)

	body := ast.Create(ast.KindUnifyBody, diag.Location{})
	module.PushBack(body)
	inner := ast.Create(ast.KindLocal, diag.Location{})
	innerName := ast.Leaf(ast.KindVar, diag.Location{}, "y")
	inner.PushBack(innerName)
	inner.SetKey(innerName)
	body.PushBack(inner)
	body.BindSymbol("y", inner)

	ref := ast.Create(ast.KindRefTerm, diag.Location{})
	body.PushBack(ref)

	require.Len(t, ref.Lookup("y"), 1)
	require.Len(t, ref.Lookup("x"), 1, "lookup must walk from UnifyBody out to Module")
	require.Empty(t, ref.Lookup("z"))
}

func TestErrorsCollectsAllDescendants(t *testing.T) {
	top := ast.Create(ast.KindTop, diag.Location{})
	body := ast.Create(ast.KindUnifyBody, diag.Location{})
	top.PushBack(body)
	body.PushBack(ast.Create(ast.KindError, diag.Location{}))
	body.PushBack(ast.Create(ast.KindUnifyExpr, diag.Location{}))
	top.PushBack(ast.Create(ast.KindError, diag.Location{}))

	var errs []*ast.Node
	top.Errors(&errs)
	require.Len(t, errs, 2)
}

func TestCommonParent(t *testing.T) {
	top := ast.Create(ast.KindTop, diag.Location{})
	a := ast.Create(ast.KindUnifyBody, diag.Location{})
	b := ast.Create(ast.KindUnifyBody, diag.Location{})
	top.PushBack(a)
	top.PushBack(b)
	leafA := ast.Create(ast.KindUnifyExpr, diag.Location{})
	a.PushBack(leafA)

	require.Same(t, top, leafA.CommonParent(b))
	require.Same(t, a, leafA.CommonParent(a))
}
