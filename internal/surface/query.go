package surface

import (
	"fmt"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

// ParseQuery parses a single query expression (the text passed to
// Engine.RawQuery/Query), reusing the same Pratt expression grammar rule
// bodies use.
func ParseQuery(src *diag.Source) (*ast.Node, error) {
	p, err := NewParser(src)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpr(1)
	if err != nil {
		return nil, err
	}
	if !p.at(TEOF) {
		return nil, &ParseError{Line: p.cur().Line, Col: p.cur().Col, Msg: fmt.Sprintf("unexpected %q after query expression", p.cur().Text)}
	}
	return expr, nil
}
