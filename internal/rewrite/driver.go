package rewrite

import "github.com/ashgrove/regowalk/internal/ast"

// Direction controls sweep order for a Ruleset.
type Direction int

const (
	TopDown Direction = iota
	BottomUp
)

// Ruleset is an ordered list of rules applied during one sweep. The first
// rule whose Pattern matches a node fires; the driver then moves on (it does
// not try further rules against the same node in the same visit).
type Ruleset struct {
	Name      string
	Rules     []Rule
	Direction Direction
	Once      bool // run exactly one sweep regardless of fixpoint
}

// sweep runs one pass over tree, applying the first matching rule to each
// visited node. It returns the (possibly mutated in place) tree along with
// counts used by Run to detect fixpoint.
func sweep(tree *ast.Node, rs Ruleset) (visited, changed int) {
	var lifted []liftRequest

	var walk func(n *ast.Node)
	visit := func(n *ast.Node) {
		visited++
		env := newEnv()
		for _, r := range rs.Rules {
			next, ok := r.Pattern.match(n, env)
			if !ok {
				continue
			}
			res := r.Action(n, next)
			if res.NoChange {
				continue
			}
			changed++
			applyResult(n, res, &lifted)
			return
		}
	}

	switch rs.Direction {
	case BottomUp:
		walk = func(n *ast.Node) {
			for _, c := range append([]*ast.Node(nil), n.Children()...) {
				walk(c)
			}
			visit(n)
		}
	default:
		walk = func(n *ast.Node) {
			visit(n)
			for _, c := range append([]*ast.Node(nil), n.Children()...) {
				walk(c)
			}
		}
	}
	walk(tree)

	for _, lr := range lifted {
		performLift(lr)
	}
	return visited, changed
}

type liftRequest struct {
	anchorFrom *ast.Node // the original match site, used to find the ancestor
	kind       ast.Kind
	payload    []*ast.Node
}

// applyResult mutates the tree in place for one Action result.
func applyResult(matched *ast.Node, res Result, lifted *[]liftRequest) {
	if res.LiftTo != ast.KindUndefined {
		payload := res.Inline
		if res.Replace != nil {
			payload = []*ast.Node{res.Replace}
		}
		*lifted = append(*lifted, liftRequest{anchorFrom: matched, kind: res.LiftTo, payload: payload})
		// The match site itself collapses to nothing (it has been hoisted
		// elsewhere); splice zero children in its place.
		spliceInPlace(matched, nil)
		return
	}
	if res.Replace != nil {
		spliceInPlace(matched, []*ast.Node{res.Replace})
		return
	}
	spliceInPlace(matched, res.Inline)
}

// spliceInPlace replaces matched (inside its parent's child list) with
// replacements (possibly zero, one, or many nodes).
func spliceInPlace(matched *ast.Node, replacements []*ast.Node) {
	parent := matched.Parent()
	if parent == nil {
		return
	}
	children := parent.Children()
	idx := -1
	for i, c := range children {
		if c == matched {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	newChildren := make([]*ast.Node, 0, len(children)-1+len(replacements))
	newChildren = append(newChildren, children[:idx]...)
	newChildren = append(newChildren, replacements...)
	newChildren = append(newChildren, children[idx+1:]...)
	parent.SetChildren(newChildren)
}

// performLift re-anchors a lifted payload at the nearest enclosing ancestor
// of the requested kind, found by walking up from where the match occurred.
func performLift(lr liftRequest) {
	anchor := lr.anchorFrom.Parent()
	for anchor != nil && anchor.Kind() != lr.kind {
		anchor = anchor.Parent()
	}
	if anchor == nil {
		return
	}
	for _, p := range lr.payload {
		anchor.PushBack(p)
	}
}

// Run sweeps tree with rs repeatedly until a sweep makes zero changes
// (fixpoint), unless rs.Once, in which case it sweeps exactly once. It
// returns the tree, total nodes visited across all sweeps, and total
// changes.
func Run(tree *ast.Node, rs Ruleset) (result *ast.Node, visited, changed int) {
	if rs.Once {
		v, c := sweep(tree, rs)
		return tree, v, c
	}
	for {
		v, c := sweep(tree, rs)
		visited += v
		changed += c
		if c == 0 {
			return tree, visited, changed
		}
	}
}
