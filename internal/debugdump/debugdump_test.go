package debugdump

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

func TestDumpWritesZeroPaddedFiles(t *testing.T) {
	dir := t.TempDir()
	d, err := New(filepath.Join(dir, "dumps"))
	require.NoError(t, err)
	require.NotEmpty(t, d.RunID())

	root := ast.Create(ast.KindTop, diag.Location{})
	root.PushBack(ast.Leaf(ast.KindVar, diag.Location{}, "x"))

	require.NoError(t, d.Dump(1, "frontend", root))
	require.NoError(t, d.Dump(12, "unify", root))

	_, err = os.Stat(filepath.Join(dir, "dumps", "01_frontend.trieste"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "dumps", "12_unify.trieste"))
	require.NoError(t, err)
}

func TestRenderIsDeterministic(t *testing.T) {
	root := ast.Create(ast.KindUnifyBody, diag.Location{})
	local := ast.Create(ast.KindLocal, diag.Location{})
	local.PushBack(ast.Leaf(ast.KindVar, diag.Location{}, "x"))
	root.PushBack(local)
	root.PushBack(ast.Leaf(ast.KindScalar, diag.Location{}, int64(3)))

	want := "(UnifyBody\n  (Local\n    (Var \"x\")\n  )\n  (Scalar 3)\n)\n"
	require.Equal(t, want, Render(root))
	require.Equal(t, Render(root), Render(root))
}
