package builtin

import (
	"encoding/json"
	"fmt"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

// marshalJSON renders a term to a JSON string using encoding/json over an
// intermediate any tree. This is the builtin's own narrow need
// (json.marshal/json.unmarshal); internal/jsonio owns the canonical display
// emitter used for query output, which follows different formatting rules
// (fixed float precision, no library round-trip requirement).
func marshalJSON(n *ast.Node) string {
	b, _ := json.Marshal(toAny(n))
	return string(b)
}

func toAny(n *ast.Node) any {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case ast.KindUndefinedTerm, ast.KindJSONNull:
		return nil
	case ast.KindJSONTrue:
		return true
	case ast.KindJSONFalse:
		return false
	case ast.KindScalar:
		return n.Lit
	case ast.KindArray:
		out := make([]any, 0, n.NumChildren())
		for _, c := range n.Children() {
			out = append(out, toAny(c))
		}
		return out
	case ast.KindSet, ast.KindTermSet:
		out := make([]any, 0, n.NumChildren())
		for _, c := range n.Children() {
			out = append(out, toAny(c))
		}
		return out
	case ast.KindObject:
		out := map[string]any{}
		for _, it := range n.Children() {
			k, _ := it.Child(0).Lit.(string)
			out[k] = toAny(it.Child(1))
		}
		return out
	default:
		return nil
	}
}

func unmarshalJSON(s string, loc diag.Location) (*ast.Node, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return fromAny(v, loc)
}

func fromAny(v any, loc diag.Location) (*ast.Node, error) {
	switch x := v.(type) {
	case nil:
		return ast.Leaf(ast.KindJSONNull, loc, nil), nil
	case bool:
		if x {
			return ast.Leaf(ast.KindJSONTrue, loc, true), nil
		}
		return ast.Leaf(ast.KindJSONFalse, loc, false), nil
	case float64:
		if x == float64(int64(x)) {
			return ast.Leaf(ast.KindScalar, loc, int64(x)), nil
		}
		return ast.Leaf(ast.KindScalar, loc, x), nil
	case string:
		return ast.Leaf(ast.KindScalar, loc, x), nil
	case []any:
		out := ast.Create(ast.KindArray, loc)
		for _, e := range x {
			c, err := fromAny(e, loc)
			if err != nil {
				return nil, err
			}
			out.PushBack(c)
		}
		return out, nil
	case map[string]any:
		out := ast.Create(ast.KindObject, loc)
		for k, val := range x {
			c, err := fromAny(val, loc)
			if err != nil {
				return nil, err
			}
			item := ast.Create(ast.KindObjectItem, loc)
			keyNode := ast.Leaf(ast.KindScalar, loc, k)
			item.PushBack(keyNode)
			item.PushBack(c)
			item.SetKey(keyNode)
			out.PushBack(item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", v)
	}
}
