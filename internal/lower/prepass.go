package lower

import (
	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/rewrite"
)

// prepass is the rewrite-engine stage run over the parsed surface tree
// before recursive-descent lowering starts: it inlines Paren wrappers
// and folds negated numeric literals into
// signed scalars, so the later stages only ever see canonical expression
// shapes.
func prepass(root *ast.Node) *ast.Node {
	out, _, _ := rewrite.Run(root, prepassRules())
	return out
}

func prepassRules() rewrite.Ruleset {
	return rewrite.Ruleset{
		Name:      "prepass",
		Direction: rewrite.BottomUp,
		Rules: []rewrite.Rule{
			{
				Name: "inline_paren",
				Pattern: rewrite.Guard(func(n *ast.Node, _ *rewrite.Env) bool {
					// A rootless Paren cannot be spliced; the descent lowers
					// it directly.
					return n.Parent() != nil && n.NumChildren() == 1
				}, rewrite.K(ast.KindParen)),
				Action: func(n *ast.Node, _ *rewrite.Env) rewrite.Result {
					return rewrite.ReplaceWith(n.Child(0))
				},
			},
			{
				Name: "fold_negation",
				Pattern: rewrite.Guard(func(n *ast.Node, _ *rewrite.Env) bool {
					op, _ := n.Lit.(string)
					if n.Parent() == nil || op != "-" || n.NumChildren() != 1 {
						return false
					}
					c := n.Child(0)
					if c.Kind() != ast.KindScalar {
						return false
					}
					switch c.Lit.(type) {
					case int64, float64:
						return true
					}
					return false
				}, rewrite.K(ast.KindUnaryExpr)),
				Action: func(n *ast.Node, _ *rewrite.Env) rewrite.Result {
					c := n.Child(0)
					switch v := c.Lit.(type) {
					case int64:
						return rewrite.ReplaceWith(ast.Leaf(ast.KindScalar, n.Loc(), -v))
					case float64:
						return rewrite.ReplaceWith(ast.Leaf(ast.KindScalar, n.Loc(), -v))
					}
					return rewrite.Unchanged()
				},
			},
		},
	}
}
