// Package lower rewrites the surface-syntax tree internal/surface produces
// into the normal form internal/unify consumes. The surface
// parser already resolves precedence, ref/call structure, and rule-kind
// classification, so this package's own work is concentrated on the later
// passes: flattening nested expressions into three-address Function calls
// ("functions"), normalizing every statement to Local|UnifyExpr|
// UnifyExprWith|UnifyExprCompr|UnifyExprEnum|UnifyExprEvery ("rulebody"),
// and reshaping each rule into the exact node layout internal/unify/rules.go
// expects.
package lower

import (
	"fmt"
	"strings"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

// Pass names the stage a piece of lowering belongs to, purely for
// internal/debugdump labeling. Lowering runs as a rewrite-engine prepass
// (prepass.go) followed by one recursive-descent traversal, since the
// context each stage needs (scope, fresh-name counters) threads naturally
// through a single pass and gains nothing from being reified as many
// separate tree walks.
type Pass struct {
	Name   string
	Detail string
}

// Pipeline documents, in order, the conceptual stages a module passes
// through on its way to normal form, for debug-dump headings.
func Pipeline() []Pass {
	return []Pass{
		{"frontend", "surface parse (package, imports, rule shapes)"},
		{"rulebody", "normalize every statement to Local|UnifyExpr*"},
		{"functions", "flatten nested expressions to Var|Scalar|Function"},
		{"unify", "hand off normal-form bodies to the Unifier"},
	}
}

// ctx carries lowering-wide state: a fresh-name counter, shared across one
// module so temporary and synthetic-condition names never collide between
// rules (Unifier instances are per-body anyway, but distinct names make
// .trieste dumps easier to read).
type ctx struct {
	n int
}

func (c *ctx) fresh(prefix string) string {
	c.n++
	return fmt.Sprintf("%s%d", prefix, c.n)
}

// scope tracks which names are locally declared at this point in a body, so
// a bare Var can be told apart from an implicit zero-argument rule call.
type scope struct {
	parent *scope
	locals map[string]bool
}

func newScope(parent *scope) *scope { return &scope{parent: parent, locals: map[string]bool{}} }

func (s *scope) declare(name string) { s.locals[name] = true }

func (s *scope) isLocal(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.locals[name] {
			return true
		}
	}
	return false
}

func varLeaf(loc diag.Location, name string) *ast.Node { return ast.Leaf(ast.KindVar, loc, name) }

func fnNode(loc diag.Location, name string, args ...*ast.Node) *ast.Node {
	n := ast.Create(ast.KindFunction, loc)
	n.Lit = name
	for _, a := range args {
		n.PushBack(a)
	}
	return n
}

func declareLocal(body *ast.Node, loc diag.Location, name string) {
	l := ast.Create(ast.KindLocal, loc)
	l.PushBack(varLeaf(loc, name))
	body.PushBack(l)
}

func appendUnifyExpr(body *ast.Node, loc diag.Location, target string, rhs *ast.Node) {
	n := ast.Create(ast.KindUnifyExpr, loc)
	n.PushBack(varLeaf(loc, target))
	n.PushBack(rhs)
	body.PushBack(n)
}

// refDottedName flattens a chain of Var/Ref(.field) nodes into a dotted
// string ("data.p.msg", "object.get"); it fails on any dynamic ([expr])
// segment, which must instead lower through $apply_access.
func refDottedName(n *ast.Node) (string, bool) {
	switch n.Kind() {
	case ast.KindVar:
		name, ok := n.Lit.(string)
		return name, ok && name != ""
	case ast.KindRef:
		base, ok := refDottedName(n.Child(0))
		if !ok {
			return "", false
		}
		idx := n.Child(1)
		if idx == nil || idx.Kind() != ast.KindScalar {
			return "", false
		}
		seg, ok := idx.Lit.(string)
		if !ok {
			return "", false
		}
		return base + "." + seg, true
	}
	return "", false
}

// isOperand reports whether n is already a valid Function argument: a Var,
// Scalar, or JSON scalar sentinel.
func isOperand(n *ast.Node) bool {
	switch n.Kind() {
	case ast.KindVar, ast.KindScalar, ast.KindJSONTrue, ast.KindJSONFalse, ast.KindJSONNull, ast.KindUndefinedTerm:
		return true
	}
	return false
}

// lowerOperand lowers e and, if the result isn't already Var/Scalar,
// materializes it through a fresh temporary so it can be used as a Function
// argument (which admits only Var/Scalar children).
func lowerOperand(c *ctx, sc *scope, body *ast.Node, e *ast.Node) *ast.Node {
	v := lowerValue(c, sc, body, e)
	if isOperand(v) {
		return v
	}
	name := c.fresh("t$")
	declareLocal(body, v.Loc(), name)
	appendUnifyExpr(body, v.Loc(), name, v)
	return varLeaf(v.Loc(), name)
}

// lowerValue lowers e to its normal-form value: Var/Scalar pass through
// unchanged, everything else becomes a Function (possibly after appending
// helper statements into body for its sub-expressions and, for
// comprehensions, the comprehension statement itself).
func lowerValue(c *ctx, sc *scope, body *ast.Node, e *ast.Node) *ast.Node {
	if e == nil {
		return ast.Leaf(ast.KindUndefinedTerm, diag.Location{}, nil)
	}
	switch e.Kind() {
	case ast.KindScalar, ast.KindJSONTrue, ast.KindJSONFalse, ast.KindJSONNull, ast.KindUndefinedTerm:
		return e
	case ast.KindVar:
		name, _ := e.Lit.(string)
		if name == "input" || name == "data" || name == "_" || sc.isLocal(name) {
			return e
		}
		// Not a declared local: an implicit zero-argument rule reference.
		// Bare names dispatch through the same call seam as a builtin or
		// user rule call.
		return fnNode(e.Loc(), name)
	case ast.KindParen:
		return lowerValue(c, sc, body, e.Child(0))
	case ast.KindAssignInfix:
		// A bare assignment used in value position (rare); its value is its
		// right-hand side.
		return lowerValue(c, sc, body, e.Child(1))
	case ast.KindUnaryExpr:
		op, _ := e.Lit.(string)
		operand := lowerOperand(c, sc, body, e.Child(0))
		if op == "-" {
			return fnNode(e.Loc(), "-", ast.Leaf(ast.KindScalar, e.Loc(), int64(0)), operand)
		}
		return fnNode(e.Loc(), "not", operand)
	case ast.KindArithInfix, ast.KindBoolInfix, ast.KindBinInfix:
		op, _ := e.Lit.(string)
		lhs := lowerOperand(c, sc, body, e.Child(0))
		rhs := lowerOperand(c, sc, body, e.Child(1))
		return fnNode(e.Loc(), op, lhs, rhs)
	case ast.KindRef:
		// Fully static dotted paths into the data/input documents resolve
		// through the call seam so the with-stack can override any prefix of
		// the path; anything dynamic lowers through $apply_access instead.
		if name, ok := refDottedName(e); ok {
			if strings.HasPrefix(name, "input.") ||
				(strings.HasPrefix(name, "data.") && strings.Count(name, ".") >= 2) {
				return fnNode(e.Loc(), name)
			}
		}
		base := lowerOperand(c, sc, body, e.Child(0))
		idx := lowerOperand(c, sc, body, e.Child(1))
		return fnNode(e.Loc(), "$apply_access", base, idx)
	case ast.KindExprCall:
		name, ok := refDottedName(e.Child(0))
		if !ok {
			return ast.Leaf(ast.KindError, e.Loc(), "unsupported call target")
		}
		var args []*ast.Node
		if e.NumChildren() > 1 {
			for _, a := range e.Child(1).Children() {
				args = append(args, lowerOperand(c, sc, body, a))
			}
		}
		return fnNode(e.Loc(), name, args...)
	case ast.KindArray:
		var elems []*ast.Node
		for _, ch := range e.Children() {
			elems = append(elems, lowerOperand(c, sc, body, ch))
		}
		return fnNode(e.Loc(), "array", elems...)
	case ast.KindSet:
		var elems []*ast.Node
		for _, ch := range e.Children() {
			elems = append(elems, lowerOperand(c, sc, body, ch))
		}
		return fnNode(e.Loc(), "set", elems...)
	case ast.KindObject:
		var args []*ast.Node
		for _, item := range e.Children() {
			args = append(args, lowerOperand(c, sc, body, item.Child(0)))
			args = append(args, lowerOperand(c, sc, body, item.Child(1)))
		}
		return fnNode(e.Loc(), "object", args...)
	case ast.KindArrayCompr, ast.KindSetCompr, ast.KindObjectCompr:
		return lowerCompr(c, sc, body, e)
	}
	return e
}

// lowerCompr lowers an array/set/object comprehension into a
// KindUnifyExprCompr statement appended to body, returning a reference to
// its synthetic result variable. Rather than synthesizing a module-level
// rule for the comprehension body, the nested body is evaluated in place
// through the Unifier's own Build+importOuter mechanism.
func lowerCompr(c *ctx, sc *scope, body *ast.Node, e *ast.Node) *ast.Node {
	var kindStr string
	var exprNode, keyNode, valNode, comprBody *ast.Node
	switch e.Kind() {
	case ast.KindArrayCompr:
		kindStr, exprNode, comprBody = "array", e.Child(0), e.Child(1)
	case ast.KindSetCompr:
		kindStr, exprNode, comprBody = "set", e.Child(0), e.Child(1)
	case ast.KindObjectCompr:
		kindStr, keyNode, valNode, comprBody = "object", e.Child(0), e.Child(1), e.Child(2)
	}

	nestedScope := newScope(sc)
	nested := ast.Create(ast.KindUnifyBody, e.Loc())
	for _, stmt := range comprBody.Children() {
		lowerStatement(c, nestedScope, nested, stmt)
	}

	target := c.fresh("compr$")
	stmt := ast.Create(ast.KindUnifyExprCompr, e.Loc())
	stmt.Lit = kindStr
	stmt.PushBack(varLeaf(e.Loc(), target))
	if kindStr == "object" {
		keyName := c.fresh("k$")
		valName := c.fresh("v$")
		appendUnifyExpr(nested, keyNode.Loc(), keyName, lowerValue(c, nestedScope, nested, keyNode))
		appendUnifyExpr(nested, valNode.Loc(), valName, lowerValue(c, nestedScope, nested, valNode))
		stmt.PushBack(varLeaf(e.Loc(), keyName))
		stmt.PushBack(varLeaf(e.Loc(), valName))
	} else {
		valName := c.fresh("v$")
		appendUnifyExpr(nested, exprNode.Loc(), valName, lowerValue(c, nestedScope, nested, exprNode))
		stmt.PushBack(varLeaf(e.Loc(), valName))
	}
	stmt.PushBack(nested)
	body.PushBack(stmt)
	return varLeaf(e.Loc(), target)
}
