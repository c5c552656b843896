// Package builtin is the builtin-function registry: a name -> function
// dispatcher consumed by the Unifier's call dispatch. Builtins are pure
// functions over terms; failure is an error return, never a panic.
package builtin

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
	"github.com/ashgrove/regowalk/internal/value"
)

// Func is one builtin's implementation: given the already-resolved argument
// terms and a call-site location (for error reporting), produce a result
// term or an error.
type Func func(args []*ast.Node, loc diag.Location) (*ast.Node, error)

// Registry maps a builtin's Rego name to its implementation.
type Registry map[string]Func

func errf(loc diag.Location, format string, args ...any) error {
	return &diag.Error{Category: diag.CategoryEval, Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

func scalar(loc diag.Location, v any) *ast.Node { return ast.Leaf(ast.KindScalar, loc, v) }

func boolTerm(loc diag.Location, b bool) *ast.Node {
	if b {
		return ast.Leaf(ast.KindJSONTrue, loc, true)
	}
	return ast.Leaf(ast.KindJSONFalse, loc, false)
}

func asString(n *ast.Node) (string, bool) {
	if n == nil || n.Kind() != ast.KindScalar {
		return "", false
	}
	s, ok := n.Lit.(string)
	return s, ok
}

func asInt(n *ast.Node) (int64, bool) {
	if n == nil || n.Kind() != ast.KindScalar {
		return 0, false
	}
	v, ok := n.Lit.(int64)
	return v, ok
}

func asFloat(n *ast.Node) (float64, bool) {
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

func numericTerms(n *ast.Node) []float64 {
	out := make([]float64, 0, n.NumChildren())
	for _, c := range n.Children() {
		if f, ok := asFloat(c); ok {
			out = append(out, f)
		}
	}
	return out
}

// Standard returns the default registry: collection
// aggregates, string helpers, numeric helpers, object/array set operations,
// JSON (de)serialization, and a narrow regex/time surface.
func Standard() Registry {
	r := Registry{}

	r["count"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "count: expected 1 argument")
		}
		switch args[0].Kind() {
		case ast.KindArray, ast.KindSet, ast.KindObject:
			return scalar(loc, int64(args[0].NumChildren())), nil
		case ast.KindScalar:
			if s, ok := asString(args[0]); ok {
				return scalar(loc, int64(len(s))), nil
			}
		}
		return nil, errf(loc, "count: unsupported argument type")
	}

	r["sum"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 || (args[0].Kind() != ast.KindArray && args[0].Kind() != ast.KindSet) {
			return nil, errf(loc, "sum: expected one array or set argument")
		}
		var isum int64
		var fsum float64
		allInt := true
		for _, c := range args[0].Children() {
			if i, ok := asInt(c); ok {
				isum += i
				fsum += float64(i)
				continue
			}
			if f, ok := asFloat(c); ok {
				allInt = false
				fsum += f
				continue
			}
			return nil, errf(loc, "sum: non-numeric element")
		}
		if allInt {
			return scalar(loc, isum), nil
		}
		return scalar(loc, fsum), nil
	}

	r["product"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "product: expected 1 argument")
		}
		prod := 1.0
		allInt := true
		iprod := int64(1)
		for _, c := range args[0].Children() {
			if i, ok := asInt(c); ok {
				iprod *= i
				prod *= float64(i)
				continue
			}
			if f, ok := asFloat(c); ok {
				allInt = false
				prod *= f
				continue
			}
			return nil, errf(loc, "product: non-numeric element")
		}
		if allInt {
			return scalar(loc, iprod), nil
		}
		return scalar(loc, prod), nil
	}

	r["max"] = minmax(cmpGreater)
	r["min"] = minmax(cmpLess)

	r["sort"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "sort: expected 1 argument")
		}
		items := append([]*ast.Node(nil), args[0].Children()...)
		sort.Slice(items, func(i, j int) bool { return value.Render(items[i]) < value.Render(items[j]) })
		out := ast.Create(ast.KindArray, loc)
		for _, it := range items {
			out.PushBack(it)
		}
		return out, nil
	}

	r["all"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "all: expected 1 argument")
		}
		for _, c := range args[0].Children() {
			if !value.IsTruthy(c) {
				return boolTerm(loc, false), nil
			}
		}
		return boolTerm(loc, true), nil
	}

	r["any"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "any: expected 1 argument")
		}
		for _, c := range args[0].Children() {
			if value.IsTruthy(c) {
				return boolTerm(loc, true), nil
			}
		}
		return boolTerm(loc, false), nil
	}

	r["type_name"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "type_name: expected 1 argument")
		}
		return scalar(loc, typeName(args[0])), nil
	}

	r["to_number"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "to_number: expected 1 argument")
		}
		switch args[0].Kind() {
		case ast.KindScalar:
			if _, ok := asFloat(args[0]); ok {
				return args[0], nil
			}
			if s, ok := asString(args[0]); ok {
				if i, err := strconv.ParseInt(s, 10, 64); err == nil {
					return scalar(loc, i), nil
				}
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					return scalar(loc, f), nil
				}
			}
		}
		return nil, errf(loc, "to_number: cannot convert argument")
	}

	r["contains"] = stringPred(strings.Contains)
	r["startswith"] = stringPred(strings.HasPrefix)
	r["endswith"] = stringPred(strings.HasSuffix)

	r["upper"] = stringMap(strings.ToUpper)
	r["lower"] = stringMap(strings.ToLower)
	r["trim_space"] = stringMap(strings.TrimSpace)

	r["trim"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		s, cutset, err := twoStrings("trim", args, loc)
		if err != nil {
			return nil, err
		}
		return scalar(loc, strings.Trim(s, cutset)), nil
	}

	r["split"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		s, sep, err := twoStrings("split", args, loc)
		if err != nil {
			return nil, err
		}
		out := ast.Create(ast.KindArray, loc)
		for _, part := range strings.Split(s, sep) {
			out.PushBack(scalar(loc, part))
		}
		return out, nil
	}

	r["concat"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 2 {
			return nil, errf(loc, "concat: expected 2 arguments")
		}
		sep, ok := asString(args[0])
		if !ok {
			return nil, errf(loc, "concat: separator must be a string")
		}
		var parts []string
		for _, c := range args[1].Children() {
			s, ok := asString(c)
			if !ok {
				return nil, errf(loc, "concat: element must be a string")
			}
			parts = append(parts, s)
		}
		return scalar(loc, strings.Join(parts, sep)), nil
	}

	r["sprintf"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) < 1 {
			return nil, errf(loc, "sprintf: expected at least 1 argument")
		}
		format, ok := asString(args[0])
		if !ok {
			return nil, errf(loc, "sprintf: format must be a string")
		}
		var fargs []any
		if len(args) > 1 {
			for _, c := range args[1].Children() {
				fargs = append(fargs, literalOf(c))
			}
		}
		return scalar(loc, fmt.Sprintf(format, fargs...)), nil
	}

	r["format_int"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 2 {
			return nil, errf(loc, "format_int: expected 2 arguments")
		}
		n, ok := asInt(args[0])
		if !ok {
			return nil, errf(loc, "format_int: first argument must be an integer")
		}
		base, ok := asInt(args[1])
		if !ok {
			return nil, errf(loc, "format_int: second argument must be an integer")
		}
		return scalar(loc, strconv.FormatInt(n, int(base))), nil
	}

	r["round"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "round: expected 1 argument")
		}
		f, ok := asFloat(args[0])
		if !ok {
			return nil, errf(loc, "round: expected numeric argument")
		}
		r := int64(f)
		if f-float64(r) >= 0.5 {
			r++
		} else if f-float64(r) <= -0.5 {
			r--
		}
		return scalar(loc, r), nil
	}

	r["abs"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "abs: expected 1 argument")
		}
		if i, ok := asInt(args[0]); ok {
			if i < 0 {
				i = -i
			}
			return scalar(loc, i), nil
		}
		if f, ok := asFloat(args[0]); ok {
			if f < 0 {
				f = -f
			}
			return scalar(loc, f), nil
		}
		return nil, errf(loc, "abs: expected numeric argument")
	}

	r["object.union"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 2 || args[0].Kind() != ast.KindObject || args[1].Kind() != ast.KindObject {
			return nil, errf(loc, "object.union: expected two objects")
		}
		out := ast.Create(ast.KindObject, loc)
		seen := map[string]bool{}
		for _, it := range args[1].Children() {
			out.PushBack(it)
			seen[value.Render(it.Child(0))] = true
		}
		for _, it := range args[0].Children() {
			if !seen[value.Render(it.Child(0))] {
				out.PushBack(it)
			}
		}
		return out, nil
	}

	r["object.get"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 3 || args[0].Kind() != ast.KindObject {
			return nil, errf(loc, "object.get: expected (object, key, default)")
		}
		want := value.Render(args[1])
		for _, it := range args[0].Children() {
			if value.Render(it.Child(0)) == want {
				return it.Child(1), nil
			}
		}
		return args[2], nil
	}

	r["object.remove"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 2 || args[0].Kind() != ast.KindObject {
			return nil, errf(loc, "object.remove: expected (object, keys)")
		}
		drop := map[string]bool{}
		for _, k := range args[1].Children() {
			drop[value.Render(k)] = true
		}
		out := ast.Create(ast.KindObject, loc)
		for _, it := range args[0].Children() {
			if !drop[value.Render(it.Child(0))] {
				out.PushBack(it)
			}
		}
		return out, nil
	}

	r["array.concat"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 2 || args[0].Kind() != ast.KindArray || args[1].Kind() != ast.KindArray {
			return nil, errf(loc, "array.concat: expected two arrays")
		}
		out := ast.Create(ast.KindArray, loc)
		out.SetChildren(append(append([]*ast.Node(nil), args[0].Children()...), args[1].Children()...))
		return out, nil
	}

	r["array.reverse"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 || args[0].Kind() != ast.KindArray {
			return nil, errf(loc, "array.reverse: expected an array")
		}
		children := args[0].Children()
		out := ast.Create(ast.KindArray, loc)
		for i := len(children) - 1; i >= 0; i-- {
			out.PushBack(children[i])
		}
		return out, nil
	}

	r["json.marshal"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "json.marshal: expected 1 argument")
		}
		return scalar(loc, marshalJSON(args[0])), nil
	}

	r["json.unmarshal"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "json.unmarshal: expected 1 argument")
		}
		s, ok := asString(args[0])
		if !ok {
			return nil, errf(loc, "json.unmarshal: expected a string argument")
		}
		n, err := unmarshalJSON(s, loc)
		if err != nil {
			return nil, errf(loc, "json.unmarshal: %v", err)
		}
		return n, nil
	}

	r["regex.match"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		pattern, s, err := twoStrings("regex.match", args, loc)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errf(loc, "regex.match: %v", err)
		}
		return boolTerm(loc, re.MatchString(s)), nil
	}

	r["time.now_ns"] = func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		return nil, errf(loc, "time.now_ns: wall-clock access is not available to pure evaluation")
	}

	return r
}

func twoStrings(name string, args []*ast.Node, loc diag.Location) (string, string, error) {
	if len(args) != 2 {
		return "", "", errf(loc, "%s: expected 2 arguments", name)
	}
	a, ok := asString(args[0])
	if !ok {
		return "", "", errf(loc, "%s: first argument must be a string", name)
	}
	b, ok := asString(args[1])
	if !ok {
		return "", "", errf(loc, "%s: second argument must be a string", name)
	}
	return a, b, nil
}

func stringPred(fn func(s, sub string) bool) Func {
	return func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		a, b, err := twoStrings("contains", args, loc)
		if err != nil {
			return nil, err
		}
		return boolTerm(loc, fn(a, b)), nil
	}
}

func stringMap(fn func(string) string) Func {
	return func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 {
			return nil, errf(loc, "expected 1 argument")
		}
		s, ok := asString(args[0])
		if !ok {
			return nil, errf(loc, "expected a string argument")
		}
		return scalar(loc, fn(s)), nil
	}
}

const (
	cmpGreater = 1
	cmpLess    = -1
)

func minmax(want int) Func {
	return func(args []*ast.Node, loc diag.Location) (*ast.Node, error) {
		if len(args) != 1 || args[0].NumChildren() == 0 {
			return nil, errf(loc, "expected a non-empty collection argument")
		}
		children := args[0].Children()
		best := children[0]
		for _, c := range children[1:] {
			cmp := strings.Compare(value.Render(c), value.Render(best))
			if cmp == want {
				best = c
			}
		}
		return best, nil
	}
}

func typeName(n *ast.Node) string {
	switch n.Kind() {
	case ast.KindArray:
		return "array"
	case ast.KindObject:
		return "object"
	case ast.KindSet, ast.KindTermSet:
		return "set"
	case ast.KindJSONTrue, ast.KindJSONFalse:
		return "boolean"
	case ast.KindUndefinedTerm:
		return "null"
	case ast.KindScalar:
		switch n.Lit.(type) {
		case int64:
			return "number"
		case float64:
			return "number"
		case string:
			return "string"
		case bool:
			return "boolean"
		case nil:
			return "null"
		}
	}
	return "unknown"
}

func literalOf(n *ast.Node) any {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case ast.KindJSONTrue:
		return true
	case ast.KindJSONFalse:
		return false
	case ast.KindUndefinedTerm, ast.KindJSONNull:
		return nil
	default:
		return n.Lit
	}
}
