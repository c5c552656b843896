package lower

import (
	"github.com/ashgrove/regowalk/internal/ast"
)

// LowerModule converts one surface Module(Package, ImportSeq, Policy) into
// its normal-form equivalent: the package and imports pass through
// unchanged, every rule is reshaped into the exact layout
// internal/unify/rules.go evaluates.
func LowerModule(raw *ast.Node) *ast.Node {
	raw = prepass(raw)
	c := &ctx{}
	pkg := raw.Child(0)
	imports := raw.Child(1)
	rawPolicy := raw.Child(2)

	policy := ast.Create(ast.KindPolicy, rawPolicy.Loc())
	for _, rule := range rawPolicy.Children() {
		policy.PushBack(lowerRule(c, rule))
	}

	out := ast.Create(ast.KindModule, raw.Loc())
	out.PushBack(pkg.Clone())
	out.PushBack(imports.Clone())
	out.PushBack(policy)
	return out
}

func lowerRule(c *ctx, raw *ast.Node) *ast.Node {
	switch raw.Kind() {
	case ast.KindRuleComp:
		return lowerRuleComp(c, raw)
	case ast.KindRuleFunc:
		return lowerRuleFunc(c, raw)
	case ast.KindRuleSet:
		return lowerRuleSet(c, raw)
	case ast.KindRuleObj:
		return lowerRuleObj(c, raw)
	case ast.KindDefaultRule:
		return lowerDefaultRule(c, raw)
	}
	return raw.Clone()
}

// lowerCondBody lowers a rule's condition block into a UnifyBody, returning
// the scope it declared locals into so a value expression sharing the same
// block can see them.
func lowerCondBody(c *ctx, raw *ast.Node, base *scope) (*ast.Node, *scope) {
	sc := newScope(base)
	cb := ast.Create(ast.KindUnifyBody, raw.Loc())
	for _, s := range raw.Children() {
		lowerStatement(c, sc, cb, s)
	}
	return cb, sc
}

// bodyWithTarget clones condBody's already-lowered statements as a prefix,
// then lowers expr and appends a final assignment into target, used so a
// rule's value/key expression can see variables its own condition block
// declared, while still running as its own independent Unifier
// (ValueBody/CondBody/KeyBody evaluate as separate bodies).
func bodyWithTarget(c *ctx, condBody *ast.Node, sc *scope, expr *ast.Node, target string) *ast.Node {
	b := ast.Create(ast.KindUnifyBody, expr.Loc())
	for _, s := range condBody.Children() {
		b.PushBack(s.Clone())
	}
	v := lowerValue(c, sc, b, expr)
	appendUnifyExpr(b, expr.Loc(), target, v)
	return b
}

func lowerRuleComp(c *ctx, raw *ast.Node) *ast.Node {
	nameVar, rawVal, rawCond, rawElse := raw.Child(0), raw.Child(1), raw.Child(2), raw.Child(3)

	condBody, sc := lowerCondBody(c, rawCond, nil)
	valueBody := bodyWithTarget(c, condBody, sc, rawVal, "value$")

	elseSeq := ast.Create(ast.KindElseSeq, rawElse.Loc())
	for _, els := range rawElse.Children() {
		elseSeq.PushBack(lowerElse(c, els, nil))
	}

	out := ast.Create(ast.KindRuleComp, raw.Loc())
	out.PushBack(nameVar.Clone())
	out.PushBack(valueBody)
	out.PushBack(condBody)
	out.PushBack(elseSeq)
	return out
}

func lowerElse(c *ctx, raw *ast.Node, base *scope) *ast.Node {
	rawVal, rawCond := raw.Child(0), raw.Child(1)
	condBody, sc := lowerCondBody(c, rawCond, base)
	valueBody := bodyWithTarget(c, condBody, sc, rawVal, "value$")
	out := ast.Create(ast.KindElse, raw.Loc())
	out.PushBack(valueBody)
	out.PushBack(condBody)
	return out
}

// lowerRuleArgs converts a RuleFunc's raw parameter expressions into
// ArgVar (binds a formal name) or ArgVal (matches a constant) nodes, per
// internal/resolve.InjectArgs's expectations.
func lowerRuleArgs(raw *ast.Node) (*ast.Node, *scope) {
	out := ast.Create(ast.KindRuleArgs, raw.Loc())
	sc := newScope(nil)
	for _, a := range raw.Children() {
		if a.Kind() == ast.KindVar {
			name, _ := a.Lit.(string)
			n := ast.Create(ast.KindArgVar, a.Loc())
			nameLeaf := varLeaf(a.Loc(), name)
			n.PushBack(nameLeaf)
			n.SetKey(nameLeaf)
			out.PushBack(n)
			sc.declare(name)
		} else {
			n := ast.Create(ast.KindArgVal, a.Loc())
			n.PushBack(a.Clone())
			out.PushBack(n)
		}
	}
	return out, sc
}

func lowerRuleFunc(c *ctx, raw *ast.Node) *ast.Node {
	nameVar := raw.Child(0)
	rawArgs := raw.Child(1)
	rawVal := raw.Child(2)
	rawCond := raw.Child(3)
	rawElse := raw.Child(4)

	args, argScope := lowerRuleArgs(rawArgs)
	condBody, sc := lowerCondBody(c, rawCond, argScope)
	valueBody := bodyWithTarget(c, condBody, sc, rawVal, "value$")

	elseSeq := ast.Create(ast.KindElseSeq, rawElse.Loc())
	for _, els := range rawElse.Children() {
		elseSeq.PushBack(lowerElse(c, els, argScope))
	}

	out := ast.Create(ast.KindRuleFunc, raw.Loc())
	out.PushBack(nameVar.Clone())
	out.PushBack(args)
	out.PushBack(valueBody)
	out.PushBack(condBody)
	out.PushBack(elseSeq)
	return out
}

func lowerRuleSet(c *ctx, raw *ast.Node) *ast.Node {
	nameVar, rawKey, rawCond := raw.Child(0), raw.Child(1), raw.Child(2)
	condBody, sc := lowerCondBody(c, rawCond, nil)
	elemBody := bodyWithTarget(c, condBody, sc, rawKey, "value$")

	out := ast.Create(ast.KindRuleSet, raw.Loc())
	out.PushBack(nameVar.Clone())
	out.PushBack(elemBody)
	out.PushBack(condBody)
	return out
}

func lowerRuleObj(c *ctx, raw *ast.Node) *ast.Node {
	nameVar, rawKey, rawVal, rawCond := raw.Child(0), raw.Child(1), raw.Child(2), raw.Child(3)
	condBody, sc := lowerCondBody(c, rawCond, nil)
	keyBody := bodyWithTarget(c, condBody, sc, rawKey, "key$")
	valBody := bodyWithTarget(c, condBody, sc, rawVal, "value$")

	out := ast.Create(ast.KindRuleObj, raw.Loc())
	out.PushBack(nameVar.Clone())
	out.PushBack(keyBody)
	out.PushBack(valBody)
	out.PushBack(condBody)
	return out
}

func lowerDefaultRule(c *ctx, raw *ast.Node) *ast.Node {
	nameVar, rawVal := raw.Child(0), raw.Child(1)
	sc := newScope(nil)
	valueBody := ast.Create(ast.KindUnifyBody, rawVal.Loc())
	v := lowerValue(c, sc, valueBody, rawVal)
	appendUnifyExpr(valueBody, rawVal.Loc(), "value$", v)

	out := ast.Create(ast.KindDefaultRule, raw.Loc())
	out.PushBack(nameVar.Clone())
	out.PushBack(valueBody)
	return out
}
