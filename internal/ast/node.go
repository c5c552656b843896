package ast

import "github.com/ashgrove/regowalk/internal/diag"

// Node is one element of the policy tree. A Node owns its
// children; Parent and symtab entries are non-owning back-references that
// must not be dereferenced after the owning parent is released.
//
// Literal payloads (for Scalar/Var/JSON* leaf kinds) are carried in Lit as an
// `any` holding one of: nil, bool, int64, float64, string.
type Node struct {
	kind     Kind
	children []*Node
	parent   *Node
	loc      diag.Location
	key      *Node // symbol-table key child, set on key-bearing kinds
	Lit      any

	// symtab is rebuilt by the wf checker at the start of each pass; it
	// must not be mutated outside that walk.
	symtab map[string][]*Node
}

// Create allocates a fresh, childless Node of the given kind at loc.
func Create(kind Kind, loc diag.Location) *Node {
	return &Node{kind: kind, loc: loc}
}

// Leaf allocates a literal-bearing leaf node (Scalar, Var, JSON*).
func Leaf(kind Kind, loc diag.Location, lit any) *Node {
	return &Node{kind: kind, loc: loc, Lit: lit}
}

func (n *Node) Kind() Kind             { return n.kind }
func (n *Node) Loc() diag.Location     { return n.loc }
func (n *Node) SetLoc(l diag.Location) { n.loc = l }
func (n *Node) Parent() *Node          { return n.parent }
func (n *Node) Children() []*Node      { return n.children }
func (n *Node) NumChildren() int       { return len(n.children) }

// Child returns the i'th child, or nil if out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// PushBack appends child, taking ownership and setting its parent.
func (n *Node) PushBack(child *Node) {
	if child == nil {
		return
	}
	child.parent = n
	n.children = append(n.children, child)
}

// PushFront prepends child, taking ownership.
func (n *Node) PushFront(child *Node) {
	if child == nil {
		return
	}
	child.parent = n
	n.children = append([]*Node{child}, n.children...)
}

// ReplaceChild swaps the child at index i for replacement, which must not
// already be owned elsewhere. Returns the displaced child (now parentless).
func (n *Node) ReplaceChild(i int, replacement *Node) *Node {
	old := n.children[i]
	old.parent = nil
	replacement.parent = n
	n.children[i] = replacement
	return old
}

// SetChildren replaces the full child list, adopting each element.
func (n *Node) SetChildren(children []*Node) {
	n.children = nil
	for _, c := range children {
		n.PushBack(c)
	}
}

// SetKey records which child names this node's symbol-table binding. Only
// meaningful for kinds where IsKeyBearing is true.
func (n *Node) SetKey(key *Node) { n.key = key }

// Key returns the binding's name child (a Var/Ident leaf), or nil.
func (n *Node) Key() *Node { return n.key }

// KeyName is a convenience for the common case of a string-literal key.
func (n *Node) KeyName() (string, bool) {
	if n.key == nil {
		return "", false
	}
	s, ok := n.key.Lit.(string)
	return s, ok
}

// Clone performs a deep, post-order rebuild: children are cloned first, then
// reattached to a fresh node. Back-pointers (Parent) and symtab are rebuilt
// fresh; the WF checker must re-run before the clone's symtab is trusted.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{kind: n.kind, loc: n.loc, Lit: n.Lit}
	for _, c := range n.children {
		cc := c.Clone()
		out.PushBack(cc)
		if c == n.key {
			out.key = cc
		}
	}
	return out
}

// Scope returns the nearest scope-bearing ancestor (including n itself),
// i.e. the node whose symtab Lookup/Lookdown consult.
func (n *Node) Scope() *Node {
	for cur := n; cur != nil; cur = cur.parent {
		if IsScopeBearing(cur.kind) {
			return cur
		}
	}
	return nil
}

// Lookdown resolves name within this node's own symbol table only (no
// lexical walk to enclosing scopes).
func (n *Node) Lookdown(name string) []*Node {
	if n.symtab == nil {
		return nil
	}
	return n.symtab[name]
}

// Lookup resolves a Var name against enclosing symbol scopes, walking from
// the nearest scope outward, returning candidate definition nodes in lexical
// order (innermost scope's definitions first).
func (n *Node) Lookup(name string) []*Node {
	var out []*Node
	for cur := n.Scope(); cur != nil; cur = cur.parent.scopeOrNil() {
		out = append(out, cur.Lookdown(name)...)
	}
	return out
}

func (n *Node) scopeOrNil() *Node {
	if n == nil {
		return nil
	}
	return n.Scope()
}

// BindSymbol registers child (a key-bearing node reachable from n) into n's
// symbol table under name. Used by the wf checker.
func (n *Node) BindSymbol(name string, child *Node) {
	if n.symtab == nil {
		n.symtab = map[string][]*Node{}
	}
	n.symtab[name] = append(n.symtab[name], child)
}

// ResetSymtab clears this node's symbol table; called by the wf checker
// before rebuilding it for the current pass.
func (n *Node) ResetSymtab() { n.symtab = nil }

// CommonParent returns the nearest node that is an ancestor of (or equal to)
// both n and other, or nil if they belong to different trees.
func (n *Node) CommonParent(other *Node) *Node {
	depth := func(x *Node) int {
		d := 0
		for p := x; p != nil; p = p.parent {
			d++
		}
		return d
	}
	da, db := depth(n), depth(other)
	a, b := n, other
	for da > db {
		a = a.parent
		da--
	}
	for db > da {
		b = b.parent
		db--
	}
	for a != b {
		a = a.parent
		b = b.parent
	}
	return a
}

// Errors appends every Error-kind descendant (including n) to out, in
// pre-order.
func (n *Node) Errors(out *[]*Node) {
	if n == nil {
		return
	}
	if n.kind == KindError {
		*out = append(*out, n)
	}
	for _, c := range n.children {
		c.Errors(out)
	}
}

// Walk visits n and every descendant in pre-order, calling visit(node,
// depth). If visit returns false, that subtree's children are skipped.
func (n *Node) Walk(visit func(node *Node, depth int) bool) {
	n.walk(0, visit)
}

func (n *Node) walk(depth int, visit func(*Node, int) bool) {
	if n == nil {
		return
	}
	if !visit(n, depth) {
		return
	}
	for _, c := range n.children {
		c.walk(depth+1, visit)
	}
}

// Count returns the total number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	total := 0
	n.Walk(func(*Node, int) bool { total++; return true })
	return total
}
