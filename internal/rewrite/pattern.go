// Package rewrite is the pattern-match-and-replace engine: a
// small combinator library for matching subtrees, plus a driver that runs a
// Ruleset to fixpoint (or once). It does not check well-formedness.
package rewrite

import "github.com/ashgrove/regowalk/internal/ast"

// Env is the match environment an Action receives: nodes and sequences
// captured by Bind during matching.
type Env struct {
	nodes map[string]*ast.Node
	seqs  map[string][]*ast.Node
}

func newEnv() *Env { return &Env{nodes: map[string]*ast.Node{}, seqs: map[string][]*ast.Node{}} }

func (e *Env) Node(name string) *ast.Node  { return e.nodes[name] }
func (e *Env) Seq(name string) []*ast.Node { return e.seqs[name] }

func (e *Env) clone() *Env {
	out := newEnv()
	for k, v := range e.nodes {
		out.nodes[k] = v
	}
	for k, v := range e.seqs {
		out.seqs[k] = v
	}
	return out
}

// Pattern matches against a single node. It returns ok and an updated Env
// on success.
type Pattern interface {
	match(n *ast.Node, env *Env) (*Env, bool)
}

// Kind matches a node whose Kind() is one of ks.
type Kind struct{ Ks []ast.Kind }

func K(ks ...ast.Kind) Kind { return Kind{Ks: ks} }

func (p Kind) match(n *ast.Node, env *Env) (*Env, bool) {
	if n == nil {
		return env, false
	}
	for _, k := range p.Ks {
		if n.Kind() == k {
			return env, true
		}
	}
	return env, false
}

// In matches when n's parent has one of the given kinds (an
// ancestor-context guard).
type In struct {
	Inner Pattern
	Ks    []ast.Kind
}

func WithParent(ks []ast.Kind, inner Pattern) In { return In{Inner: inner, Ks: ks} }

func (p In) match(n *ast.Node, env *Env) (*Env, bool) {
	if n.Parent() == nil {
		return env, false
	}
	ok := false
	for _, k := range p.Ks {
		if n.Parent().Kind() == k {
			ok = true
			break
		}
	}
	if !ok {
		return env, false
	}
	return p.Inner.match(n, env)
}

// Bind captures the matched node under name.
type Bind struct {
	Name  string
	Inner Pattern
}

func B(name string, inner Pattern) Bind { return Bind{Name: name, Inner: inner} }

func (p Bind) match(n *ast.Node, env *Env) (*Env, bool) {
	next, ok := p.Inner.match(n, env)
	if !ok {
		return env, false
	}
	next = next.clone()
	next.nodes[p.Name] = n
	return next, true
}

// Where adds a predicate guard evaluated against the already-bound Env.
type Where struct {
	Inner Pattern
	Pred  func(*ast.Node, *Env) bool
}

func Guard(pred func(*ast.Node, *Env) bool, inner Pattern) Where {
	return Where{Inner: inner, Pred: pred}
}

func (p Where) match(n *ast.Node, env *Env) (*Env, bool) {
	next, ok := p.Inner.match(n, env)
	if !ok {
		return env, false
	}
	if !p.Pred(n, next) {
		return env, false
	}
	return next, true
}

// Any matches every non-nil node (the spec's `Any` combinator).
type anyPattern struct{}

var Any Pattern = anyPattern{}

func (anyPattern) match(n *ast.Node, env *Env) (*Env, bool) { return env, n != nil }

// Action is what a matched rule does: it receives the matched node and its
// Env, and returns a Result: a single replacement node, a sequence to
// inline, an ast.KindError node, a lift, or no change.
type Action func(n *ast.Node, env *Env) Result

// Result is the outcome of an Action.
type Result struct {
	// Replace, if non-nil, replaces the matched node in place.
	Replace *ast.Node
	// Inline, if non-nil, splices these nodes in place of the matched node
	// (the "sequence node is inlined" case).
	Inline []*ast.Node
	// LiftTo, if non-zero, means Replace/Inline should instead be spliced as
	// a new child of the nearest enclosing ancestor of this kind, rather
	// than in place.
	LiftTo ast.Kind
	// NoChange signals the action declined to fire (pattern matched but the
	// rule is a no-op here); the driver does not count this as a change.
	NoChange bool
}

func Unchanged() Result { return Result{NoChange: true} }

func ReplaceWith(n *ast.Node) Result { return Result{Replace: n} }

func InlineSeq(ns []*ast.Node) Result { return Result{Inline: ns} }

func ErrorNode(msg string, at *ast.Node) Result {
	e := ast.Leaf(ast.KindError, at.Loc(), msg)
	return Result{Replace: e}
}

func LiftTo(kind ast.Kind, n *ast.Node) Result { return Result{Replace: n, LiftTo: kind} }

// Rule pairs a pattern with an action.
type Rule struct {
	Name    string
	Pattern Pattern
	Action  Action
}
