// Package jsonio is the JSON adapter: a strict reader that turns a
// data/input document into an ast term tree, and the canonical emitter used
// for query output (integers as integers, floats at 8 significant digits
// with no trailing zeros, no trailing spaces).
//
// The reader works from the token stream rather than an any-map so object
// item order follows the document, keeping query output deterministic.
package jsonio

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

// Read parses one JSON document into a term tree. name labels the source in
// error messages (a file path or "input"/"data").
func Read(name, text string) (*ast.Node, error) {
	src := &diag.Source{Name: name, Text: text}
	loc := diag.Location{Src: src, End: len(text)}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	n, err := readValue(dec, loc)
	if err != nil {
		return nil, diag.New(diag.CategoryParse, loc, "invalid JSON: %v", err)
	}
	if dec.More() {
		return nil, diag.New(diag.CategoryParse, loc, "trailing content after JSON document")
	}
	return n, nil
}

func readValue(dec *json.Decoder, loc diag.Location) (*ast.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := ast.Create(ast.KindObject, loc)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string")
				}
				val, err := readValue(dec, loc)
				if err != nil {
					return nil, err
				}
				item := ast.Create(ast.KindObjectItem, loc)
				keyNode := ast.Leaf(ast.KindScalar, loc, key)
				item.PushBack(keyNode)
				item.PushBack(val)
				item.SetKey(keyNode)
				obj.PushBack(item)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		case '[':
			arr := ast.Create(ast.KindArray, loc)
			for dec.More() {
				val, err := readValue(dec, loc)
				if err != nil {
					return nil, err
				}
				arr.PushBack(val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return ast.Leaf(ast.KindScalar, loc, t), nil
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return ast.Leaf(ast.KindScalar, loc, i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return ast.Leaf(ast.KindScalar, loc, f), nil
	case bool:
		if t {
			return ast.Leaf(ast.KindJSONTrue, loc, true), nil
		}
		return ast.Leaf(ast.KindJSONFalse, loc, false), nil
	case nil:
		return ast.Leaf(ast.KindJSONNull, loc, nil), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// Emit renders a term as one line of canonical JSON. Sets and TermSets
// render as arrays (their children are already canonically ordered by the
// constructors that build them).
func Emit(n *ast.Node) string {
	var b strings.Builder
	emit(n, &b)
	return b.String()
}

func emit(n *ast.Node, b *strings.Builder) {
	if n == nil {
		b.WriteString("null")
		return
	}
	switch n.Kind() {
	case ast.KindJSONNull, ast.KindUndefinedTerm:
		b.WriteString("null")
	case ast.KindJSONTrue:
		b.WriteString("true")
	case ast.KindJSONFalse:
		b.WriteString("false")
	case ast.KindScalar, ast.KindJSONInt, ast.KindJSONFloat, ast.KindJSONString:
		emitScalar(n.Lit, b)
	case ast.KindArray, ast.KindSet, ast.KindTermSet:
		b.WriteByte('[')
		for i, c := range n.Children() {
			if i > 0 {
				b.WriteByte(',')
			}
			emit(c, b)
		}
		b.WriteByte(']')
	case ast.KindObject:
		b.WriteByte('{')
		for i, item := range n.Children() {
			if i > 0 {
				b.WriteByte(',')
			}
			emit(item.Child(0), b)
			b.WriteByte(':')
			emit(item.Child(1), b)
		}
		b.WriteByte('}')
	default:
		b.WriteString("null")
	}
}

func emitScalar(lit any, b *strings.Builder) {
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
	case float64:
		b.WriteString(FormatFloat(v))
	case string:
		quote(v, b)
	default:
		b.WriteString("null")
	}
}

// FormatFloat renders a float at 8 significant digits with trailing zeros
// trimmed (the canonical output form).
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', 8, 64)
	if strings.ContainsAny(s, "eE") || !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func quote(s string, b *strings.Builder) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
