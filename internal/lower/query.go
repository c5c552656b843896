package lower

import (
	"strings"

	"github.com/ashgrove/regowalk/internal/ast"
)

// Query is one lowered query expression: the normal-form body to unify,
// plus which of its variables carry results: user-named bindings (emitted
// as Binding nodes) and the synthetic value$ targets of anonymous
// expressions (emitted as bare Terms).
type Query struct {
	Body     *ast.Node
	Bindings []string
	Anon     []string
}

// LowerQuery lowers a parsed query expression (internal/surface.ParseQuery)
// into a UnifyBody the Unifier can run directly. An assignment with a
// user-named left-hand side becomes a binding; any other expression is
// anonymous and unifies into a fresh value$ variable.
func LowerQuery(expr *ast.Node) *Query {
	expr = prepass(expr)
	c := &ctx{}
	sc := newScope(nil)
	body := ast.Create(ast.KindUnifyBody, expr.Loc())
	q := &Query{Body: body}

	if expr.Kind() == ast.KindAssignInfix && expr.Child(0).Kind() == ast.KindVar {
		name, _ := expr.Child(0).Lit.(string)
		if !strings.Contains(name, "$") && name != "_" {
			lowerStatement(c, sc, body, expr)
			q.Bindings = append(q.Bindings, name)
			return q
		}
	}

	target := c.fresh("value$")
	appendUnifyExpr(body, expr.Loc(), target, lowerValue(c, sc, body, expr))
	q.Anon = append(q.Anon, target)
	return q
}
