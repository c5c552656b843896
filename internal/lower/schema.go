package lower

import (
	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/wf"
)

// operand kinds a Function argument, UnifyExpr right-hand side, or WithAs
// value may take after the "functions" stage.
var operandKinds = []ast.Kind{
	ast.KindVar, ast.KindScalar,
	ast.KindJSONTrue, ast.KindJSONFalse, ast.KindJSONNull,
	ast.KindUndefinedTerm,
}

func rhsKinds() []ast.Kind {
	return append([]ast.Kind{ast.KindFunction, ast.KindError}, operandKinds...)
}

// NormalFormSchema is the WF grammar the fully lowered tree must satisfy
// before the Unifier runs.
// Checking it also rebuilds the symbol tables of scope-bearing nodes; the
// query driver resolves rule references through its own index, not these.
func NormalFormSchema() wf.Schema {
	return wf.Override(wf.Base(), wf.Schema{
		ast.KindTop:  {wf.Of(ast.KindRego)},
		ast.KindRego: {wf.Of(ast.KindQuery), wf.Of(ast.KindInput), wf.Of(ast.KindDataSeq), wf.Of(ast.KindModuleSeq)},

		ast.KindModuleSeq: {wf.Star(ast.KindModule)},
		ast.KindModule:    {wf.Of(ast.KindPackage), wf.Of(ast.KindImportSeq), wf.Of(ast.KindPolicy)},
		ast.KindPackage:   {wf.Of(ast.KindVar)},
		ast.KindImportSeq: {wf.Star(ast.KindImport)},
		ast.KindImport:    {wf.Of(ast.KindVar), wf.Opt(ast.KindVar)},
		ast.KindPolicy: {wf.Star(
			ast.KindRuleComp, ast.KindRuleFunc, ast.KindRuleSet, ast.KindRuleObj, ast.KindDefaultRule,
		)},

		ast.KindRuleComp:    {wf.Key(wf.Of(ast.KindVar)), wf.Of(ast.KindUnifyBody), wf.Of(ast.KindUnifyBody), wf.Of(ast.KindElseSeq)},
		ast.KindRuleFunc:    {wf.Key(wf.Of(ast.KindVar)), wf.Of(ast.KindRuleArgs), wf.Of(ast.KindUnifyBody), wf.Of(ast.KindUnifyBody), wf.Of(ast.KindElseSeq)},
		ast.KindRuleSet:     {wf.Key(wf.Of(ast.KindVar)), wf.Of(ast.KindUnifyBody), wf.Of(ast.KindUnifyBody)},
		ast.KindRuleObj:     {wf.Key(wf.Of(ast.KindVar)), wf.Of(ast.KindUnifyBody), wf.Of(ast.KindUnifyBody), wf.Of(ast.KindUnifyBody)},
		ast.KindDefaultRule: {wf.Key(wf.Of(ast.KindVar)), wf.Of(ast.KindUnifyBody)},
		ast.KindElseSeq:     {wf.Star(ast.KindElse)},
		ast.KindElse:        {wf.Of(ast.KindUnifyBody), wf.Of(ast.KindUnifyBody)},

		ast.KindRuleArgs: {wf.Star(ast.KindArgVar, ast.KindArgVal)},
		ast.KindArgVar:   {wf.Key(wf.Of(ast.KindVar))},

		ast.KindUnifyBody: {wf.Star(
			ast.KindLocal, ast.KindUnifyExpr, ast.KindUnifyExprWith,
			ast.KindUnifyExprEnum, ast.KindUnifyExprEvery, ast.KindUnifyExprCompr,
		)},
		ast.KindLocal:          {wf.Key(wf.Of(ast.KindVar))},
		ast.KindUnifyExpr:      {wf.Of(ast.KindVar), wf.Of(rhsKinds()...)},
		ast.KindUnifyExprEnum:  {wf.Of(ast.KindVar), wf.Of(ast.KindVar), wf.Of(ast.KindVar)},
		ast.KindUnifyExprEvery: {wf.Of(ast.KindVar), wf.Of(ast.KindVar), wf.Of(ast.KindVar), wf.Of(ast.KindVar), wf.Of(ast.KindUnifyBody)},
		ast.KindUnifyExprWith:  {wf.Of(ast.KindVar), wf.Of(ast.KindUnifyBody), wf.Star(ast.KindWithAs)},
		ast.KindUnifyExprCompr: {wf.Of(ast.KindVar), wf.Of(ast.KindVar), wf.Opt(ast.KindVar), wf.Of(ast.KindUnifyBody)},
		ast.KindWithAs:         {wf.Of(ast.KindScalar), wf.Of(operandKinds...)},

		ast.KindFunction: {wf.Star(operandKinds...)},
	})
}
