package surface

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ashgrove/regowalk/internal/ast"
)

// Print re-emits a parsed (pre-lowering) module as surface syntax. The
// output is canonical rather than byte-faithful: one rule per paragraph,
// tab-indented bodies, normalized spacing around operators.
func Print(module *ast.Node) string {
	var b strings.Builder
	pkg := module.Child(0)
	fmt.Fprintf(&b, "package %s\n", varName(pkg.Child(0)))

	imports := module.Child(1)
	if imports.NumChildren() > 0 {
		b.WriteByte('\n')
		for _, imp := range imports.Children() {
			b.WriteString("import ")
			b.WriteString(varName(imp.Child(0)))
			if imp.NumChildren() > 1 {
				b.WriteString(" as ")
				b.WriteString(varName(imp.Child(1)))
			}
			b.WriteByte('\n')
		}
	}

	for _, rule := range module.Child(2).Children() {
		b.WriteByte('\n')
		printRule(&b, rule)
	}
	return b.String()
}

func varName(n *ast.Node) string {
	s, _ := n.Lit.(string)
	return s
}

func printRule(b *strings.Builder, rule *ast.Node) {
	switch rule.Kind() {
	case ast.KindDefaultRule:
		fmt.Fprintf(b, "default %s = %s\n", varName(rule.Child(0)), expr(rule.Child(1)))
	case ast.KindRuleComp:
		b.WriteString(varName(rule.Child(0)))
		printValue(b, rule.Child(1))
		printBody(b, rule.Child(2))
		printElses(b, rule.Child(3))
		b.WriteByte('\n')
	case ast.KindRuleFunc:
		b.WriteString(varName(rule.Child(0)))
		b.WriteByte('(')
		for i, a := range rule.Child(1).Children() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(expr(a))
		}
		b.WriteByte(')')
		printValue(b, rule.Child(2))
		printBody(b, rule.Child(3))
		printElses(b, rule.Child(4))
		b.WriteByte('\n')
	case ast.KindRuleSet:
		fmt.Fprintf(b, "%s[%s]", varName(rule.Child(0)), expr(rule.Child(1)))
		printBody(b, rule.Child(2))
		b.WriteByte('\n')
	case ast.KindRuleObj:
		fmt.Fprintf(b, "%s[%s] = %s", varName(rule.Child(0)), expr(rule.Child(1)), expr(rule.Child(2)))
		printBody(b, rule.Child(3))
		b.WriteByte('\n')
	}
}

// printValue emits " = v" unless v is the implicit true a bare rule head
// carries.
func printValue(b *strings.Builder, v *ast.Node) {
	if v.Kind() == ast.KindJSONTrue {
		return
	}
	b.WriteString(" = ")
	b.WriteString(expr(v))
}

func printBody(b *strings.Builder, body *ast.Node) {
	if body.NumChildren() == 0 {
		return
	}
	b.WriteString(" {\n")
	for _, s := range body.Children() {
		b.WriteByte('\t')
		b.WriteString(statement(s))
		b.WriteByte('\n')
	}
	b.WriteString("}")
}

func printElses(b *strings.Builder, elses *ast.Node) {
	for _, e := range elses.Children() {
		b.WriteString(" else")
		printValue(b, e.Child(0))
		printBody(b, e.Child(1))
	}
}

func statement(s *ast.Node) string {
	switch s.Kind() {
	case ast.KindSomeDecl:
		key, val := varName(s.Child(0)), varName(s.Child(1))
		coll := s.Child(2)
		if coll.Kind() == ast.KindUndefinedTerm {
			return "some " + val
		}
		if key == "_" {
			return fmt.Sprintf("some %s in %s", val, expr(coll))
		}
		return fmt.Sprintf("some %s, %s in %s", key, val, expr(coll))
	case ast.KindEvery:
		key, val := varName(s.Child(0)), varName(s.Child(1))
		var b strings.Builder
		if key == "_" {
			fmt.Fprintf(&b, "every %s in %s", val, expr(s.Child(2)))
		} else {
			fmt.Fprintf(&b, "every %s, %s in %s", key, val, expr(s.Child(2)))
		}
		b.WriteString(" { ")
		for i, inner := range s.Child(3).Children() {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(statement(inner))
		}
		b.WriteString(" }")
		return b.String()
	case ast.KindLiteralWith:
		out := statement(s.Child(0))
		for _, wa := range s.Children()[1:] {
			out += fmt.Sprintf(" with %s as %s", expr(wa.Child(0)), expr(wa.Child(1)))
		}
		return out
	default:
		return expr(s)
	}
}

func expr(n *ast.Node) string {
	switch n.Kind() {
	case ast.KindVar:
		return varName(n)
	case ast.KindScalar:
		return scalarText(n.Lit)
	case ast.KindJSONTrue:
		return "true"
	case ast.KindJSONFalse:
		return "false"
	case ast.KindJSONNull, ast.KindUndefinedTerm:
		return "null"
	case ast.KindParen:
		return "(" + expr(n.Child(0)) + ")"
	case ast.KindUnaryExpr:
		op, _ := n.Lit.(string)
		if op == "not" {
			return "not " + expr(n.Child(0))
		}
		return op + expr(n.Child(0))
	case ast.KindAssignInfix, ast.KindArithInfix, ast.KindBoolInfix, ast.KindBinInfix:
		op, _ := n.Lit.(string)
		return fmt.Sprintf("%s %s %s", expr(n.Child(0)), op, expr(n.Child(1)))
	case ast.KindRef:
		idx := n.Child(1)
		if s, ok := idx.Lit.(string); ok && idx.Kind() == ast.KindScalar && isBareIdent(s) {
			return expr(n.Child(0)) + "." + s
		}
		return expr(n.Child(0)) + "[" + expr(idx) + "]"
	case ast.KindExprCall:
		args := make([]string, 0, n.Child(1).NumChildren())
		for _, a := range n.Child(1).Children() {
			args = append(args, expr(a))
		}
		return expr(n.Child(0)) + "(" + strings.Join(args, ", ") + ")"
	case ast.KindArray:
		return "[" + joinExprs(n.Children()) + "]"
	case ast.KindSet:
		if n.NumChildren() == 0 {
			return "set()"
		}
		return "{" + joinExprs(n.Children()) + "}"
	case ast.KindObject:
		if n.NumChildren() == 0 {
			return "{}"
		}
		items := make([]string, 0, n.NumChildren())
		for _, it := range n.Children() {
			items = append(items, expr(it.Child(0))+": "+expr(it.Child(1)))
		}
		return "{" + strings.Join(items, ", ") + "}"
	case ast.KindArrayCompr:
		return "[" + expr(n.Child(0)) + " | " + comprBody(n.Child(1)) + "]"
	case ast.KindSetCompr:
		return "{" + expr(n.Child(0)) + " | " + comprBody(n.Child(1)) + "}"
	case ast.KindObjectCompr:
		return "{" + expr(n.Child(0)) + ": " + expr(n.Child(1)) + " | " + comprBody(n.Child(2)) + "}"
	}
	return n.Kind().String()
}

func joinExprs(ns []*ast.Node) string {
	parts := make([]string, 0, len(ns))
	for _, c := range ns {
		parts = append(parts, expr(c))
	}
	return strings.Join(parts, ", ")
}

func comprBody(body *ast.Node) string {
	parts := make([]string, 0, body.NumChildren())
	for _, s := range body.Children() {
		parts = append(parts, statement(s))
	}
	return strings.Join(parts, "; ")
}

func scalarText(lit any) string {
	switch v := lit.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isBareIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
