package lower

import (
	"github.com/ashgrove/regowalk/internal/ast"
)

// lowerStatement lowers one surface statement into zero or more normal-form
// statements appended to body.
func lowerStatement(c *ctx, sc *scope, body *ast.Node, stmt *ast.Node) {
	switch stmt.Kind() {
	case ast.KindSomeDecl:
		lowerSomeDecl(c, sc, body, stmt)
	case ast.KindEvery:
		lowerEvery(c, sc, body, stmt)
	case ast.KindLiteralWith:
		lowerWith(c, sc, body, stmt)
	case ast.KindUnaryExpr:
		if op, _ := stmt.Lit.(string); op == "not" {
			operand := lowerOperand(c, sc, body, stmt.Child(0))
			target := c.fresh("unify$")
			appendUnifyExpr(body, stmt.Loc(), target, fnNode(stmt.Loc(), "not", operand))
			return
		}
		target := c.fresh("unify$")
		appendUnifyExpr(body, stmt.Loc(), target, lowerValue(c, sc, body, stmt))
	case ast.KindAssignInfix:
		lowerAssign(c, sc, body, stmt)
	default:
		target := c.fresh("unify$")
		appendUnifyExpr(body, stmt.Loc(), target, lowerValue(c, sc, body, stmt))
	}
}

// lowerAssign handles both plain assignment (declaring a fresh local) and
// the implicit-enumeration pattern `x := coll[_]`/`x := coll[i]` where the
// bracket index is itself a not-yet-bound name, which means "enumerate
// the container".
func lowerAssign(c *ctx, sc *scope, body *ast.Node, stmt *ast.Node) {
	lhs, rhs := stmt.Child(0), stmt.Child(1)
	if lhs.Kind() == ast.KindVar {
		name, _ := lhs.Lit.(string)
		if !sc.isLocal(name) {
			if keyName, container, ok := implicitEnum(sc, rhs); ok {
				containerOperand := lowerOperand(c, sc, body, container)
				if keyName == "_" || keyName == "" {
					keyName = c.fresh("_enum$")
				}
				declareLocal(body, stmt.Loc(), keyName)
				sc.declare(keyName)
				declareLocal(body, stmt.Loc(), name)
				sc.declare(name)
				enum := ast.Create(ast.KindUnifyExprEnum, stmt.Loc())
				enum.PushBack(varLeaf(stmt.Loc(), keyName))
				enum.PushBack(varLeaf(stmt.Loc(), name))
				enum.PushBack(containerOperand)
				body.PushBack(enum)
				return
			}
			declareLocal(body, stmt.Loc(), name)
			sc.declare(name)
			v := lowerValue(c, sc, body, rhs)
			appendUnifyExpr(body, stmt.Loc(), name, v)
			return
		}
	}
	// Equality constraint between two already-meaningful expressions.
	lv := lowerOperand(c, sc, body, lhs)
	rv := lowerOperand(c, sc, body, rhs)
	target := c.fresh("unify$")
	appendUnifyExpr(body, stmt.Loc(), target, fnNode(stmt.Loc(), "==", lv, rv))
}

// implicitEnum reports whether rhs is a Ref whose bracket index is a
// not-yet-bound Var, i.e. `container[idx]` meant as "enumerate container".
func implicitEnum(sc *scope, rhs *ast.Node) (keyName string, container *ast.Node, ok bool) {
	if rhs.Kind() != ast.KindRef {
		return "", nil, false
	}
	idx := rhs.Child(1)
	if idx.Kind() != ast.KindVar {
		return "", nil, false
	}
	name, _ := idx.Lit.(string)
	if name == "_" || !sc.isLocal(name) {
		return name, rhs.Child(0), true
	}
	return "", nil, false
}

// lowerSomeDecl lowers `some x` / `some x, _ in coll`.
func lowerSomeDecl(c *ctx, sc *scope, body *ast.Node, stmt *ast.Node) {
	keyVar, valVar, coll := stmt.Child(0), stmt.Child(1), stmt.Child(2)
	keyName, _ := keyVar.Lit.(string)
	valName, _ := valVar.Lit.(string)
	if coll.Kind() == ast.KindUndefinedTerm {
		if valName != "" && valName != "_" {
			declareLocal(body, stmt.Loc(), valName)
			sc.declare(valName)
		}
		return
	}
	containerOperand := lowerOperand(c, sc, body, coll)
	if keyName == "" || keyName == "_" {
		keyName = c.fresh("_some$")
	} else {
		declareLocal(body, stmt.Loc(), keyName)
		sc.declare(keyName)
	}
	declareLocal(body, stmt.Loc(), valName)
	sc.declare(valName)
	enum := ast.Create(ast.KindUnifyExprEnum, stmt.Loc())
	enum.PushBack(varLeaf(stmt.Loc(), keyName))
	enum.PushBack(varLeaf(stmt.Loc(), valName))
	enum.PushBack(containerOperand)
	body.PushBack(enum)
}

// lowerEvery lowers `every [k,] v in coll { body }` into a KindUnifyExprEvery
// statement.
func lowerEvery(c *ctx, sc *scope, body *ast.Node, stmt *ast.Node) {
	keyVar, valVar, coll, inner := stmt.Child(0), stmt.Child(1), stmt.Child(2), stmt.Child(3)
	containerOperand := lowerOperand(c, sc, body, coll)

	nestedScope := newScope(sc)
	nested := ast.Create(ast.KindUnifyBody, stmt.Loc())
	keyName, _ := keyVar.Lit.(string)
	valName, _ := valVar.Lit.(string)
	if keyName != "" && keyName != "_" {
		nestedScope.declare(keyName)
	} else {
		keyName = ""
	}
	nestedScope.declare(valName)
	for _, s := range inner.Children() {
		lowerStatement(c, nestedScope, nested, s)
	}

	target := c.fresh("unify$")
	every := ast.Create(ast.KindUnifyExprEvery, stmt.Loc())
	every.PushBack(varLeaf(stmt.Loc(), target))
	every.PushBack(varLeaf(stmt.Loc(), keyName))
	every.PushBack(varLeaf(stmt.Loc(), valName))
	every.PushBack(containerOperand)
	every.PushBack(nested)
	body.PushBack(every)
}

// lowerWith lowers `stmt with ref as val [with ...]` into a
// KindUnifyExprWith statement; the override
// path must flatten to a literal dotted string, since ResolveWith keys its
// override map by path text rather than by expression identity.
func lowerWith(c *ctx, sc *scope, body *ast.Node, stmt *ast.Node) {
	base := stmt.Child(0)
	withAs := stmt.Children()[1:]

	nestedScope := newScope(sc)
	nested := ast.Create(ast.KindUnifyBody, stmt.Loc())
	lowerStatement(c, nestedScope, nested, base)

	target := c.fresh("unify$")
	with := ast.Create(ast.KindUnifyExprWith, stmt.Loc())
	with.PushBack(varLeaf(stmt.Loc(), target))
	with.PushBack(nested)
	for _, wa := range withAs {
		path, ok := refDottedName(wa.Child(0))
		if !ok {
			continue
		}
		val := lowerOperand(c, sc, body, wa.Child(1))
		waNode := ast.Create(ast.KindWithAs, wa.Loc())
		waNode.PushBack(ast.Leaf(ast.KindScalar, wa.Loc(), path))
		waNode.PushBack(val)
		with.PushBack(waNode)
	}
	body.PushBack(with)
}
