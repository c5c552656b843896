// Package ast is the typed tree with symbol-table lookup. It is the shared
// node model every other component (wf, rewrite, lower, unify, resolve)
// operates over.
package ast

// Kind is the closed vocabulary a Node's tag is drawn from. It covers both
// surface-syntax kinds (produced by internal/surface, consumed by the early
// lowering passes) and normal-form kinds (produced by the later passes,
// consumed by internal/unify).
type Kind int

const (
	KindUndefined Kind = iota

	// Top-level / module structure
	KindTop
	KindRego
	KindModuleSeq
	KindDataSeq
	KindModule
	KindPackage
	KindImportSeq
	KindImport
	KindPolicy
	KindSubmodule
	KindDataItem

	// Rules
	KindRuleComp
	KindRuleFunc
	KindRuleSet
	KindRuleObj
	KindDefaultRule
	KindRuleHead
	KindRuleArgs
	KindElse
	KindElseSeq

	// Bodies / statements (surface, pre normal-form)
	KindBody
	KindLiteral
	KindLiteralWith
	KindLiteralInit
	KindEvery
	KindSomeDecl
	KindWithAs
	KindParen

	// Normal form statements
	KindUnifyBody
	KindUnifyExpr
	KindUnifyExprWith
	KindUnifyExprEnum
	KindUnifyExprEvery
	KindUnifyExprCompr
	KindLocal
	KindArgVar
	KindArgVal
	KindArgSeq

	// Terms / values
	KindTerm
	KindScalar
	KindArray
	KindObject
	KindObjectItem
	KindSet
	KindTermSet
	KindRefTerm
	KindNumTerm
	KindSimpleRef
	KindRef
	KindRefHead
	KindRefArgSeq
	KindFunction
	KindExprCall
	KindVar
	KindBinding
	KindQuery
	KindVarSeq
	KindEnumerate
	KindSkip
	KindDataTerm
	KindArrayCompr
	KindSetCompr
	KindObjectCompr
	KindComprBody

	// Expressions (surface, resolved to Function in pass 24)
	KindUnaryExpr
	KindArithInfix
	KindBinInfix
	KindBoolInfix
	KindAssignInfix

	// JSON scalars / sentinels
	KindJSONInt
	KindJSONFloat
	KindJSONString
	KindJSONTrue
	KindJSONFalse
	KindJSONNull
	KindUndefinedTerm

	// Input/Data roots
	KindInput
	KindData

	// Raw surface literals (folded away by pass "strings"/"lists")
	KindRawString
	KindBrace
	KindListLit
	KindIdent
	KindDefaultTerm

	KindError
)

var kindNames = map[Kind]string{
	KindUndefined:      "Undefined",
	KindTop:            "Top",
	KindRego:           "Rego",
	KindModuleSeq:      "ModuleSeq",
	KindDataSeq:        "DataSeq",
	KindModule:         "Module",
	KindPackage:        "Package",
	KindImportSeq:      "ImportSeq",
	KindImport:         "Import",
	KindPolicy:         "Policy",
	KindSubmodule:      "Submodule",
	KindDataItem:       "DataItem",
	KindRuleComp:       "RuleComp",
	KindRuleFunc:       "RuleFunc",
	KindRuleSet:        "RuleSet",
	KindRuleObj:        "RuleObj",
	KindDefaultRule:    "DefaultRule",
	KindRuleHead:       "RuleHead",
	KindRuleArgs:       "RuleArgs",
	KindElse:           "Else",
	KindElseSeq:        "ElseSeq",
	KindBody:           "Body",
	KindLiteral:        "Literal",
	KindLiteralWith:    "LiteralWith",
	KindLiteralInit:    "LiteralInit",
	KindEvery:          "Every",
	KindSomeDecl:       "SomeDecl",
	KindWithAs:         "WithAs",
	KindParen:          "Paren",
	KindUnifyBody:      "UnifyBody",
	KindUnifyExpr:      "UnifyExpr",
	KindUnifyExprWith:  "UnifyExprWith",
	KindUnifyExprEnum:  "UnifyExprEnum",
	KindUnifyExprEvery: "UnifyExprEvery",
	KindUnifyExprCompr: "UnifyExprCompr",
	KindLocal:          "Local",
	KindArgVar:         "ArgVar",
	KindArgVal:         "ArgVal",
	KindArgSeq:         "ArgSeq",
	KindTerm:           "Term",
	KindScalar:         "Scalar",
	KindArray:          "Array",
	KindObject:         "Object",
	KindObjectItem:     "ObjectItem",
	KindSet:            "Set",
	KindTermSet:        "TermSet",
	KindRefTerm:        "RefTerm",
	KindNumTerm:        "NumTerm",
	KindSimpleRef:      "SimpleRef",
	KindRef:            "Ref",
	KindRefHead:        "RefHead",
	KindRefArgSeq:      "RefArgSeq",
	KindFunction:       "Function",
	KindExprCall:       "ExprCall",
	KindVar:            "Var",
	KindBinding:        "Binding",
	KindQuery:          "Query",
	KindVarSeq:         "VarSeq",
	KindEnumerate:      "Enumerate",
	KindSkip:           "Skip",
	KindDataTerm:       "DataTerm",
	KindArrayCompr:     "ArrayCompr",
	KindSetCompr:       "SetCompr",
	KindObjectCompr:    "ObjectCompr",
	KindComprBody:      "ComprBody",
	KindUnaryExpr:      "UnaryExpr",
	KindArithInfix:     "ArithInfix",
	KindBinInfix:       "BinInfix",
	KindBoolInfix:      "BoolInfix",
	KindAssignInfix:    "AssignInfix",
	KindJSONInt:        "JSONInt",
	KindJSONFloat:      "JSONFloat",
	KindJSONString:     "JSONString",
	KindJSONTrue:       "JSONTrue",
	KindJSONFalse:      "JSONFalse",
	KindJSONNull:       "JSONNull",
	KindUndefinedTerm:  "Undefined",
	KindInput:          "Input",
	KindData:           "Data",
	KindRawString:      "RawString",
	KindBrace:          "Brace",
	KindListLit:        "ListLit",
	KindIdent:          "Ident",
	KindDefaultTerm:    "DefaultTerm",
	KindError:          "Error",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Kind(?)"
}

// keyBearing is the set of kinds that introduce a symbol-table binding.
// Their Key() child is the Var/Ident that names the binding.
var keyBearing = map[Kind]bool{
	KindRuleComp:    true,
	KindRuleFunc:    true,
	KindRuleSet:     true,
	KindRuleObj:     true,
	KindDefaultRule: true,
	KindLocal:       true,
	KindArgVar:      true,
	KindModule:      true,
	KindDataItem:    true,
	KindSubmodule:   true,
	KindObjectItem:  true,
	KindBinding:     true,
}

// IsKeyBearing reports whether nodes of this kind carry a symbol-table key.
func IsKeyBearing(k Kind) bool { return keyBearing[k] }

// scopeBearing is the set of kinds whose symbol table is consulted by
// Lookup; these are the nodes Scope() stops at.
var scopeBearing = map[Kind]bool{
	KindModule:    true,
	KindUnifyBody: true,
	KindBody:      true,
	KindRuleArgs:  true,
	KindTop:       true,
}

func IsScopeBearing(k Kind) bool { return scopeBearing[k] }
