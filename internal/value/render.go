// Package value is the Value/Variable candidate model: ranked candidate
// values threaded through a Unifier, source tracking for cascading
// invalidation, and default-rule rank dominance.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ashgrove/regowalk/internal/ast"
)

// Render produces a stable, structural string form of a term, used as the
// equality key for dedup (set/object construction, unify-variable candidate
// merging). It is not the
// display JSON emitter (internal/jsonio owns output formatting rules); it
// just needs to agree whenever two terms are the same value.
func Render(n *ast.Node) string {
	if n == nil {
		return "null"
	}
	var b strings.Builder
	render(n, &b)
	return b.String()
}

func render(n *ast.Node, b *strings.Builder) {
	switch n.Kind() {
	case ast.KindUndefinedTerm:
		b.WriteString("undefined")
	case ast.KindJSONNull:
		b.WriteString("null")
	case ast.KindJSONTrue:
		b.WriteString("true")
	case ast.KindJSONFalse:
		b.WriteString("false")
	case ast.KindScalar, ast.KindJSONInt, ast.KindJSONFloat, ast.KindJSONString:
		renderLit(n.Lit, b)
	case ast.KindArray, ast.KindTerm:
		b.WriteByte('[')
		for i, c := range n.Children() {
			if i > 0 {
				b.WriteByte(',')
			}
			render(c, b)
		}
		b.WriteByte(']')
	case ast.KindObject:
		items := append([]*ast.Node(nil), n.Children()...)
		sort.Slice(items, func(i, j int) bool { return renderKey(items[i]) < renderKey(items[j]) })
		b.WriteByte('{')
		for i, it := range items {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(renderKey(it))
			b.WriteByte(':')
			render(it.Child(1), b)
		}
		b.WriteByte('}')
	case ast.KindSet, ast.KindTermSet:
		vals := make([]string, 0, n.NumChildren())
		for _, c := range n.Children() {
			var cb strings.Builder
			render(c, &cb)
			vals = append(vals, cb.String())
		}
		sort.Strings(vals)
		b.WriteByte('<')
		b.WriteString(strings.Join(vals, ","))
		b.WriteByte('>')
	default:
		fmt.Fprintf(b, "%s(", n.Kind())
		for i, c := range n.Children() {
			if i > 0 {
				b.WriteByte(',')
			}
			render(c, b)
		}
		b.WriteByte(')')
	}
}

func renderKey(item *ast.Node) string {
	var b strings.Builder
	render(item.Child(0), &b)
	return b.String()
}

func renderLit(lit any, b *strings.Builder) {
	switch v := lit.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case int:
		b.WriteString(strconv.Itoa(v))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case string:
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(v, `"`, `\"`))
		b.WriteByte('"')
	default:
		fmt.Fprintf(b, "%v", v)
	}
}

// IsTruthy decides condition satisfaction: a non-empty TermSet is truthy;
// Scalar(JSONFalse) is false; object/array/set are truthy; anything else
// non-truthy only when it is the false scalar or Undefined.
func IsTruthy(n *ast.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind() {
	case ast.KindUndefinedTerm:
		return false
	case ast.KindJSONFalse:
		return false
	case ast.KindScalar:
		if b, ok := n.Lit.(bool); ok {
			return b
		}
		return true
	case ast.KindTermSet:
		return n.NumChildren() > 0
	default:
		return true
	}
}
