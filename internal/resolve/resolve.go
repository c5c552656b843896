// Package resolve is the pure term-operation layer:
// arithmetic/boolean/set primitives, container access, and the
// array/object/set constructors with canonical dedup. It stays free of
// Unifier state; the one place it must reach back into rule evaluation
// (ruleset/ruleobj aggregation reached through a Ref) is expressed through
// the narrow RuleEvaluator interface rather than an import of
// internal/unify, which would be an import cycle.
package resolve

import (
	"fmt"
	"sort"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
	"github.com/ashgrove/regowalk/internal/value"
)

// EvalError is a runtime evaluation error: type mismatch,
// divide by zero, arity mismatch, etc.
type EvalError struct {
	Loc diag.Location
	Msg string
}

func (e *EvalError) Error() string { return diag.Snippet(diag.CategoryEval, e.Loc, e.Msg) }

func errf(loc diag.Location, format string, args ...any) error {
	return &EvalError{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

func isInt(n *ast.Node) (int64, bool) {
	if n == nil || n.Kind() != ast.KindScalar {
		return 0, false
	}
	v, ok := n.Lit.(int64)
	return v, ok
}

func isFloat(n *ast.Node) (float64, bool) {
	if n == nil || n.Kind() != ast.KindScalar {
		return 0, false
	}
	switch v := n.Lit.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func isUndefined(n *ast.Node) bool { return n == nil || n.Kind() == ast.KindUndefinedTerm }

func falseTerm(loc diag.Location) *ast.Node            { return ast.Leaf(ast.KindJSONFalse, loc, false) }
func trueTerm(loc diag.Location) *ast.Node             { return ast.Leaf(ast.KindJSONTrue, loc, true) }
func undefTerm(loc diag.Location) *ast.Node            { return ast.Leaf(ast.KindUndefinedTerm, loc, nil) }
func intTerm(loc diag.Location, v int64) *ast.Node     { return ast.Leaf(ast.KindScalar, loc, v) }
func floatTerm(loc diag.Location, v float64) *ast.Node { return ast.Leaf(ast.KindScalar, loc, v) }

// ArithInfix evaluates an arithmetic operator: integer arithmetic when both operands
// are JSONInt, else double; divide/modulo by zero is an error for ints and
// Undefined for float modulo; either side Undefined yields JSONFalse.
func ArithInfix(op string, lhs, rhs *ast.Node, loc diag.Location) (*ast.Node, error) {
	if isUndefined(lhs) || isUndefined(rhs) {
		return falseTerm(loc), nil
	}
	li, lok := isInt(lhs)
	ri, rok := isInt(rhs)
	if lok && rok {
		switch op {
		case "+":
			return intTerm(loc, li+ri), nil
		case "-":
			return intTerm(loc, li-ri), nil
		case "*":
			return intTerm(loc, li*ri), nil
		case "/":
			if ri == 0 {
				return nil, errf(loc, "divide by zero")
			}
			if li%ri == 0 {
				return intTerm(loc, li/ri), nil
			}
			return floatTerm(loc, float64(li)/float64(ri)), nil
		case "%":
			if ri == 0 {
				return nil, errf(loc, "modulo by zero")
			}
			return intTerm(loc, li%ri), nil
		}
	}
	lf, lfok := isFloat(lhs)
	rf, rfok := isFloat(rhs)
	if !lfok || !rfok {
		return nil, errf(loc, "arithmetic on non-numeric operand")
	}
	switch op {
	case "+":
		return floatTerm(loc, lf+rf), nil
	case "-":
		return floatTerm(loc, lf-rf), nil
	case "*":
		return floatTerm(loc, lf*rf), nil
	case "/":
		if rf == 0 {
			return nil, errf(loc, "divide by zero")
		}
		return floatTerm(loc, lf/rf), nil
	case "%":
		return undefTerm(loc), nil
	}
	return nil, errf(loc, "unknown arithmetic operator %q", op)
}

// BoolInfix evaluates a comparison: numeric comparison by value when both
// sides are numeric, otherwise a lexicographic compare of each side's
// rendered canonical form (Rego's mixed-type ordering).
func BoolInfix(op string, lhs, rhs *ast.Node, loc diag.Location) *ast.Node {
	if isUndefined(lhs) || isUndefined(rhs) {
		return falseTerm(loc)
	}
	var cmp int
	if lf, lok := isFloat(lhs); lok {
		if rf, rok := isFloat(rhs); rok {
			switch {
			case lf < rf:
				cmp = -1
			case lf > rf:
				cmp = 1
			}
			return boolResult(op, cmp, loc)
		}
	}
	lr, rr := value.Render(lhs), value.Render(rhs)
	switch {
	case lr < rr:
		cmp = -1
	case lr > rr:
		cmp = 1
	}
	return boolResult(op, cmp, loc)
}

func boolResult(op string, cmp int, loc diag.Location) *ast.Node {
	var ok bool
	switch op {
	case "==":
		ok = cmp == 0
	case "!=":
		ok = cmp != 0
	case "<":
		ok = cmp < 0
	case "<=":
		ok = cmp <= 0
	case ">":
		ok = cmp > 0
	case ">=":
		ok = cmp >= 0
	}
	if ok {
		return trueTerm(loc)
	}
	return falseTerm(loc)
}

// BinInfix implements set intersection, union, and difference.
func BinInfix(op string, lhs, rhs *ast.Node, loc diag.Location) (*ast.Node, error) {
	if lhs.Kind() != ast.KindSet || rhs.Kind() != ast.KindSet {
		return nil, errf(loc, "%q requires set operands", op)
	}
	lset := map[string]*ast.Node{}
	for _, c := range lhs.Children() {
		lset[value.Render(c)] = c
	}
	rset := map[string]*ast.Node{}
	for _, c := range rhs.Children() {
		rset[value.Render(c)] = c
	}
	out := ast.Create(ast.KindSet, loc)
	switch op {
	case "&":
		for k, v := range lset {
			if _, ok := rset[k]; ok {
				out.PushBack(v)
			}
		}
	case "|":
		for _, v := range lset {
			out.PushBack(v)
		}
		for k, v := range rset {
			if _, ok := lset[k]; !ok {
				out.PushBack(v)
			}
		}
	case "-":
		for k, v := range lset {
			if _, ok := rset[k]; !ok {
				out.PushBack(v)
			}
		}
	default:
		return nil, errf(loc, "unknown set operator %q", op)
	}
	sortSetChildren(out)
	return out, nil
}

func sortSetChildren(set *ast.Node) {
	children := append([]*ast.Node(nil), set.Children()...)
	sort.Slice(children, func(i, j int) bool { return value.Render(children[i]) < value.Render(children[j]) })
	set.SetChildren(children)
}

// ApplyAccess resolves container[index] for Array/Object/Set containers.
// Accessing Input/Data/a module's symbol table is not a pure term operation
// (it may resolve to a RuleSet/RuleObj requiring aggregation) and is handled
// by the caller via LookdownSymbol plus a RuleEvaluator.
func ApplyAccess(container, index *ast.Node, loc diag.Location) (*ast.Node, error) {
	if isUndefined(container) || isUndefined(index) {
		return undefTerm(loc), nil
	}
	switch container.Kind() {
	case ast.KindArray:
		i, ok := isInt(index)
		if !ok {
			return nil, errf(loc, "array index must be an integer")
		}
		if i < 0 || i >= int64(container.NumChildren()) {
			return undefTerm(loc), nil
		}
		return container.Child(int(i)), nil
	case ast.KindObject:
		want := value.Render(index)
		for _, item := range container.Children() {
			if value.Render(item.Child(0)) == want {
				return item.Child(1), nil
			}
		}
		return undefTerm(loc), nil
	case ast.KindSet:
		want := value.Render(index)
		for _, c := range container.Children() {
			if value.Render(c) == want {
				return trueTerm(loc), nil
			}
		}
		return falseTerm(loc), nil
	default:
		return nil, errf(loc, "cannot index into %s", container.Kind())
	}
}

// LookdownSymbol resolves index (rendered as a plain string) against scope's
// symbol table, returning the candidate definition nodes (Rule* or Local)
// without evaluating them.
func LookdownSymbol(scope *ast.Node, index *ast.Node) []*ast.Node {
	name, ok := stringLit(index)
	if !ok {
		return nil
	}
	return scope.Lookdown(name)
}

func stringLit(n *ast.Node) (string, bool) {
	if n == nil || n.Kind() != ast.KindScalar {
		return "", false
	}
	s, ok := n.Lit.(string)
	return s, ok
}

// MakeArray builds an Array term from already-resolved element terms,
// preserving order (arrays are not deduplicated).
func MakeArray(loc diag.Location, elems []*ast.Node) *ast.Node {
	out := ast.Create(ast.KindArray, loc)
	for _, e := range elems {
		out.PushBack(e)
	}
	return out
}

// MakeSet builds a Set term, deduplicating by canonical rendered form and
// sorting for deterministic output.
func MakeSet(loc diag.Location, elems []*ast.Node) *ast.Node {
	seen := map[string]bool{}
	out := ast.Create(ast.KindSet, loc)
	for _, e := range elems {
		k := value.Render(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		out.PushBack(e)
	}
	sortSetChildren(out)
	return out
}

// MakeObject builds an Object term from (key, value) pairs, keeping the last
// write for a repeated rendered key.
func MakeObject(loc diag.Location, keys, vals []*ast.Node) (*ast.Node, error) {
	if len(keys) != len(vals) {
		return nil, errf(loc, "object constructor key/value count mismatch")
	}
	order := []string{}
	byKey := map[string]*ast.Node{}
	for i, k := range keys {
		rk := value.Render(k)
		if _, exists := byKey[rk]; !exists {
			order = append(order, rk)
		}
		item := ast.Create(ast.KindObjectItem, loc)
		item.PushBack(k)
		item.PushBack(vals[i])
		item.SetKey(k)
		byKey[rk] = item
	}
	out := ast.Create(ast.KindObject, loc)
	for _, rk := range order {
		out.PushBack(byKey[rk])
	}
	return out, nil
}

// ObjectLookdown resolves a query term against an Object's items by a linear
// rendered-key comparison, returning the first match. It does not consult
// any symbol table.
func ObjectLookdown(obj *ast.Node, query *ast.Node) (*ast.Node, bool) {
	want := value.Render(query)
	for _, item := range obj.Children() {
		if value.Render(item.Child(0)) == want {
			return item.Child(1), true
		}
	}
	return nil, false
}

// RuleEvaluator is the narrow callback set for turning a RuleComp, RuleSet
// or RuleObj definition into a term, declared here so that resolve does not
// import internal/unify (whose Evaluator implements it).
type RuleEvaluator interface {
	EvalRuleComp(rule *ast.Node) (*ast.Node, error)
	EvalRuleSet(rules []*ast.Node) (*ast.Node, error)
	EvalRuleObj(rules []*ast.Node) (*ast.Node, error)
}

// InjectArgs binds a function rule's formal parameters: length check against
// RuleArgs, constant-match for ArgVal parameters, binding for ArgVar
// parameters. Returns the name->actual bindings for ArgVar parameters.
func InjectArgs(ruleArgs *ast.Node, actual []*ast.Node, loc diag.Location) (map[string]*ast.Node, error) {
	if ruleArgs.NumChildren() != len(actual) {
		return nil, errf(loc, "function called with %d arguments, expected %d", len(actual), ruleArgs.NumChildren())
	}
	bindings := map[string]*ast.Node{}
	for i, formal := range ruleArgs.Children() {
		a := actual[i]
		switch formal.Kind() {
		case ast.KindArgVal:
			if value.Render(formal.Child(0)) != value.Render(a) {
				return nil, errf(loc, "argument %d does not match constant parameter", i)
			}
		case ast.KindArgVar:
			name, _ := formal.KeyName()
			bindings[name] = a
		default:
			if name, ok := formal.KeyName(); ok {
				bindings[name] = a
			}
		}
	}
	return bindings, nil
}
