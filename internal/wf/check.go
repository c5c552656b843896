package wf

import (
	"fmt"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

// Violation is one well-formedness failure: node didn't match its kind's
// production. The query driver (internal/query) reports the first one as
// an error and stops before evaluation.
type Violation struct {
	Node *ast.Node
	Msg  string
}

func (v Violation) Error() string {
	return diag.Snippet(diag.CategoryWellFormed, v.Node.Loc(), v.Msg)
}

// Check walks root top-down, verifying every node's children against
// schema (kinds with no entry are unconstrained), and rebuilds every scope-
// bearing node's symbol table as it goes. It returns every violation found;
// an empty result means the tree is well formed.
func Check(root *ast.Node, schema Schema) []Violation {
	var out []Violation
	resetSymtabs(root)
	root.Walk(func(n *ast.Node, _ int) bool {
		for _, c := range n.Children() {
			checkNode(c, schema, &out)
		}
		return true
	})
	checkNode(root, schema, &out)
	return out
}

func resetSymtabs(n *ast.Node) {
	n.Walk(func(node *ast.Node, _ int) bool {
		if ast.IsScopeBearing(node.Kind()) {
			node.ResetSymtab()
		}
		return true
	})
}

func checkNode(n *ast.Node, schema Schema, out *[]Violation) {
	prod, ok := schema[n.Kind()]
	if !ok {
		bindIfKeyBearing(n, n.Children())
		return
	}
	children := n.Children()
	idx := 0
	for _, item := range prod {
		count := 0
		for idx < len(children) && item.allows(children[idx].Kind()) && (item.max < 0 || count < item.max) {
			if item.isKey {
				setKey(n, children[idx])
			}
			idx++
			count++
		}
		if count < item.min {
			*out = append(*out, Violation{
				Node: n,
				Msg:  fmt.Sprintf("%s: expected at least %d of %v, got %d at position %d", n.Kind(), item.min, item.alts, count, idx),
			})
		}
	}
	if idx != len(children) {
		*out = append(*out, Violation{
			Node: n,
			Msg:  fmt.Sprintf("%s: %d unexpected trailing children starting at position %d", n.Kind(), len(children)-idx, idx),
		})
	}
	bindIfKeyBearing(n, children)
}

// setKey wires n.key; the actual symbol registration happens in
// bindIfKeyBearing once the full child scan has fixed n.Key().
func setKey(n, keyChild *ast.Node) { n.SetKey(keyChild) }

// bindIfKeyBearing registers n into the nearest scope-bearing ancestor's
// symbol table under n.Key()'s rendered name.
func bindIfKeyBearing(n *ast.Node, _ []*ast.Node) {
	if !ast.IsKeyBearing(n.Kind()) || n.Key() == nil {
		return
	}
	name, ok := n.KeyName()
	if !ok {
		return
	}
	target := n.Parent()
	if target == nil {
		return
	}
	if scope := target.Scope(); scope != nil {
		scope.BindSymbol(name, n)
	}
}
