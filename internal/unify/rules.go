package unify

import (
	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
	"github.com/ashgrove/regowalk/internal/resolve"
	"github.com/ashgrove/regowalk/internal/value"
)

// Evaluator implements resolve.RuleEvaluator and adds rule-call and
// multi-definition resolution on top of the Unifier: pushing
// and popping the call stack for recursion detection, running a rule's
// condition body then its value body, walking else-chains, and aggregating
// partial set/object rules and default-rule dominance.
//
// Rule nodes are assumed already lowered to normal form:
//
//	RuleComp: [NameVar, ValueBody, CondBody, ElseSeq]
//	RuleFunc: [NameVar, RuleArgs, ValueBody, CondBody, ElseSeq]
//	RuleSet:  [NameVar, ElemBody, CondBody]
//	RuleObj:  [NameVar, KeyBody, ValueBody, CondBody]
//	DefaultRule: [NameVar, ValueBody]
//	Else: [ValueBody, CondBody]
//
// ValueBody/KeyBody/ElemBody are UnifyBody computations whose final
// statement assigns into the synthetic variable "value$" (or "key$").
type Evaluator struct {
	ctx *Context
}

func NewEvaluator(ctx *Context) *Evaluator { return &Evaluator{ctx: ctx} }

func ruleName(rule *ast.Node) string {
	n, _ := rule.Child(0).Lit.(string)
	return n
}

func undef(loc diag.Location) *ast.Node { return ast.Leaf(ast.KindUndefinedTerm, loc, nil) }

// runBody fetches body's (cached, reset) Unifier exactly once, injects the
// given argument seeds, and runs it. UnifierFor resets on every fetch, so
// seeding and running must happen against the same fetch.
func (e *Evaluator) runBody(body *ast.Node, seeds map[string]*ast.Node, loc diag.Location) (*Unifier, error) {
	u := e.ctx.UnifierFor(body)
	for name, term := range seeds {
		u.Seed(name, term, loc)
	}
	if err := u.Run(); err != nil {
		return nil, err
	}
	return u, nil
}

// evalValueBody runs body and returns its "value$" binding.
func (e *Evaluator) evalValueBody(body *ast.Node, seeds map[string]*ast.Node, loc diag.Location) (*ast.Node, error) {
	u, err := e.runBody(body, seeds, loc)
	if err != nil {
		return nil, err
	}
	v, ok := u.Var("value$")
	if !ok {
		return undef(body.Loc()), nil
	}
	return v.Bind(), nil
}

func (e *Evaluator) condHolds(body *ast.Node, seeds map[string]*ast.Node, loc diag.Location) (bool, error) {
	if body == nil || body.NumChildren() == 0 {
		return true, nil
	}
	u, err := e.runBody(body, seeds, loc)
	if err != nil {
		return false, err
	}
	return u.Succeeded(), nil
}

// EvalRuleComp implements resolve.RuleEvaluator: evaluate rule's own
// condition/value pair, falling through its else-chain in order.
func (e *Evaluator) EvalRuleComp(rule *ast.Node) (*ast.Node, error) {
	name := ruleName(rule)
	if err := e.ctx.PushRule(name, rule.Loc()); err != nil {
		return nil, err
	}
	defer e.ctx.PopRule()
	return e.evalBranches(rule.Child(1), rule.Child(2), rule.Child(3), nil, rule.Loc())
}

// evalBranches runs one cond/value pair plus its else-chain, injecting the
// same argument seeds into every body (nil for non-function rules).
func (e *Evaluator) evalBranches(valBody, condBody, elseSeq *ast.Node, seeds map[string]*ast.Node, loc diag.Location) (*ast.Node, error) {
	ok, err := e.condHolds(condBody, seeds, loc)
	if err != nil {
		return nil, err
	}
	if ok {
		return e.evalValueBody(valBody, seeds, loc)
	}
	if elseSeq == nil {
		return undef(loc), nil
	}
	for _, els := range elseSeq.Children() {
		ok, err := e.condHolds(els.Child(1), seeds, loc)
		if err != nil {
			return nil, err
		}
		if ok {
			return e.evalValueBody(els.Child(0), seeds, loc)
		}
	}
	return undef(loc), nil
}

// EvalRuleSet implements resolve.RuleEvaluator: union every partial
// definition's element candidates into one Set term.
func (e *Evaluator) EvalRuleSet(rules []*ast.Node) (*ast.Node, error) {
	var elems []*ast.Node
	var loc diag.Location
	for _, rule := range rules {
		loc = rule.Loc()
		name := ruleName(rule)
		if err := e.ctx.PushRule(name, rule.Loc()); err != nil {
			return nil, err
		}
		ok, err := e.condHolds(rule.Child(2), nil, loc)
		if err != nil {
			e.ctx.PopRule()
			return nil, err
		}
		if !ok {
			e.ctx.PopRule()
			continue
		}
		elemU, err := e.runBody(rule.Child(1), nil, loc)
		e.ctx.PopRule()
		if err != nil {
			return nil, err
		}
		if v, ok := elemU.Var("value$"); ok {
			for _, val := range v.Values {
				elems = append(elems, val.Term)
			}
		}
	}
	return resolve.MakeSet(loc, elems), nil
}

// EvalRuleObj implements resolve.RuleEvaluator: merge every partial
// definition's key/value candidates into one Object term.
func (e *Evaluator) EvalRuleObj(rules []*ast.Node) (*ast.Node, error) {
	var keys, vals []*ast.Node
	var loc diag.Location
	for _, rule := range rules {
		loc = rule.Loc()
		name := ruleName(rule)
		if err := e.ctx.PushRule(name, rule.Loc()); err != nil {
			return nil, err
		}
		ok, err := e.condHolds(rule.Child(3), nil, loc)
		if err != nil {
			e.ctx.PopRule()
			return nil, err
		}
		if !ok {
			e.ctx.PopRule()
			continue
		}
		keyU, err := e.runBody(rule.Child(1), nil, loc)
		if err != nil {
			e.ctx.PopRule()
			return nil, err
		}
		kv, kok := keyU.Var("key$")
		var keyTerms []*ast.Node
		if kok {
			for _, val := range kv.Values {
				keyTerms = append(keyTerms, val.Term)
			}
		}
		valU, err := e.runBody(rule.Child(2), nil, loc)
		e.ctx.PopRule()
		if err != nil {
			return nil, err
		}
		vv, vok := valU.Var("value$")
		if !kok || !vok {
			continue
		}
		n := len(keyTerms)
		if len(vv.Values) < n {
			n = len(vv.Values)
		}
		for i := 0; i < n; i++ {
			keys = append(keys, keyTerms[i])
			vals = append(vals, vv.Values[i].Term)
		}
	}
	obj, err := resolve.MakeObject(loc, keys, vals)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// EvalDefaultRule evaluates a DefaultRule's constant value body; its result
// is always tagged with value.DefaultRank by the caller aggregating it
// against sibling RuleComp definitions.
func (e *Evaluator) EvalDefaultRule(rule *ast.Node) (*ast.Node, error) {
	return e.evalValueBody(rule.Child(1), nil, rule.Loc())
}

// EvalRuleFunc evaluates a function-rule call: bind formal
// parameters via resolve.InjectArgs, then behave like EvalRuleComp.
func (e *Evaluator) EvalRuleFunc(rule *ast.Node, args []*ast.Node, loc diag.Location) (*ast.Node, error) {
	name := ruleName(rule)
	if err := e.ctx.PushRule(name, loc); err != nil {
		return nil, err
	}
	defer e.ctx.PopRule()

	bindings, err := resolve.InjectArgs(rule.Child(1), args, loc)
	if err != nil {
		return nil, err
	}
	return e.evalBranches(rule.Child(2), rule.Child(3), rule.Child(4), bindings, loc)
}

// ResolveName aggregates every top-level definition sharing one name.
// Each RuleComp contributes its value at the rank of its declared index; a
// DefaultRule contributes at value.DefaultRank. FilterByRank then keeps the
// minimum-rank candidate, falling back to the default only when nothing
// else produced a value.
func (e *Evaluator) ResolveName(defs []*ast.Node, loc diag.Location) (*ast.Node, error) {
	var cands []*value.Value
	for i, d := range defs {
		switch d.Kind() {
		case ast.KindDefaultRule:
			term, err := e.EvalDefaultRule(d)
			if err != nil {
				return nil, err
			}
			if term.Kind() != ast.KindUndefinedTerm {
				cands = append(cands, value.NewValue(term, loc, nil, value.DefaultRank))
			}
		case ast.KindRuleComp:
			term, err := e.EvalRuleComp(d)
			if err != nil {
				return nil, err
			}
			if term.Kind() != ast.KindUndefinedTerm {
				cands = append(cands, value.NewValue(term, loc, nil, i))
			}
		}
	}
	kept := value.FilterByRank(cands)
	if len(kept) == 0 {
		return undef(loc), nil
	}
	return kept[0].Term, nil
}
