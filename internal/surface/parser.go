package surface

import (
	"fmt"

	"github.com/ashgrove/regowalk/internal/ast"
	"github.com/ashgrove/regowalk/internal/diag"
)

type ParseError struct {
	Line, Col int
	Msg       string
}

func (e *ParseError) Error() string { return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg) }

// Parser is a recursive-descent/Pratt parser over the token stream produced
// by Lexer, emitting the ast.Node shapes internal/lower's frontend passes
// expect. It covers the supported Rego subset; it is not a
// grammar-complete Rego parser.
type Parser struct {
	toks []Token
	pos  int
	src  *diag.Source
}

func NewParser(src *diag.Source) (*Parser, error) {
	toks, err := NewLexer(src.Text).Tokenize()
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks, src: src}, nil
}

func (p *Parser) cur() Token           { return p.toks[p.pos] }
func (p *Parser) at(tt TokenType) bool { return p.cur().Type == tt }
func (p *Parser) loc(t Token) diag.Location {
	return diag.Location{Src: p.src, Start: t.Start, End: t.End}
}

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	if !p.at(tt) {
		return Token{}, &ParseError{Line: p.cur().Line, Col: p.cur().Col, Msg: fmt.Sprintf("expected %s, got %q", what, p.cur().Text)}
	}
	return p.advance(), nil
}

// ParseModule parses one source file into a KindModule node:
// Module(Package, ImportSeq, Policy).
func ParseModule(src *diag.Source) (*ast.Node, error) {
	p, err := NewParser(src)
	if err != nil {
		return nil, err
	}
	return p.parseModule()
}

func (p *Parser) parseModule() (*ast.Node, error) {
	start := p.cur()
	if _, err := p.expect(TKwPackage, "'package'"); err != nil {
		return nil, err
	}
	pkgName, pkgLoc, err := p.parseDottedPath()
	if err != nil {
		return nil, err
	}
	pkgVar := ast.Leaf(ast.KindVar, pkgLoc, pkgName)
	pkg := ast.Create(ast.KindPackage, pkgLoc)
	pkg.PushBack(pkgVar)

	imports := ast.Create(ast.KindImportSeq, pkgLoc)
	for p.at(TKwImport) {
		imp, err := p.parseImport()
		if err != nil {
			return nil, err
		}
		imports.PushBack(imp)
	}

	policy := ast.Create(ast.KindPolicy, pkgLoc)
	for !p.at(TEOF) {
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		policy.PushBack(rule)
	}

	mod := ast.Create(ast.KindModule, p.loc(start))
	mod.PushBack(pkg)
	mod.PushBack(imports)
	mod.PushBack(policy)
	return mod, nil
}

func (p *Parser) parseDottedPath() (string, diag.Location, error) {
	first, err := p.expect(TIdent, "identifier")
	if err != nil {
		return "", diag.Location{}, err
	}
	loc := p.loc(first)
	name := first.Text
	for p.at(TPeriod) {
		p.advance()
		seg, err := p.expect(TIdent, "identifier")
		if err != nil {
			return "", diag.Location{}, err
		}
		name += "." + seg.Text
		loc = diag.Join(loc, p.loc(seg))
	}
	return name, loc, nil
}

func (p *Parser) parseImport() (*ast.Node, error) {
	start := p.advance() // 'import'
	name, loc, err := p.parseDottedPath()
	if err != nil {
		return nil, err
	}
	imp := ast.Create(ast.KindImport, diag.Join(p.loc(start), loc))
	imp.PushBack(ast.Leaf(ast.KindVar, loc, name))
	if p.at(TKwAs) {
		p.advance()
		alias, err := p.expect(TIdent, "identifier")
		if err != nil {
			return nil, err
		}
		imp.PushBack(ast.Leaf(ast.KindVar, p.loc(alias), alias.Text))
	}
	return imp, nil
}

// parseRule parses one rule declaration of any shape (complete, functional,
// set-generating, object-generating, or default).
func (p *Parser) parseRule() (*ast.Node, error) {
	start := p.cur()
	if p.at(TKwDefault) {
		p.advance()
		name, err := p.expect(TIdent, "identifier")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TAssign, "'='"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
		n := ast.Create(ast.KindDefaultRule, diag.Join(p.loc(start), val.Loc()))
		n.PushBack(ast.Leaf(ast.KindVar, p.loc(name), name.Text))
		n.PushBack(val)
		return n, nil
	}

	name, err := p.expect(TIdent, "identifier")
	if err != nil {
		return nil, err
	}
	nameVar := ast.Leaf(ast.KindVar, p.loc(name), name.Text)

	if p.at(TLParen) {
		return p.parseFuncRule(start, nameVar)
	}
	if p.at(TLSquare) {
		return p.parseBracketRule(start, nameVar)
	}
	if p.at(TKwContains) {
		p.advance()
		key, err := p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
		body, err := p.parseOptionalBody()
		if err != nil {
			return nil, err
		}
		n := ast.Create(ast.KindRuleSet, diag.Join(p.loc(start), key.Loc()))
		n.PushBack(nameVar)
		n.PushBack(key)
		n.PushBack(body)
		return n, nil
	}

	// Complete rule: name [= value] [body] [else ...]
	var val *ast.Node
	if p.at(TAssign) || p.at(TDeclare) {
		p.advance()
		val, err = p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseOptionalBody()
	if err != nil {
		return nil, err
	}
	elses, err := p.parseElseSeq()
	if err != nil {
		return nil, err
	}
	n := ast.Create(ast.KindRuleComp, p.loc(start))
	n.PushBack(nameVar)
	n.PushBack(valOrTrue(val, p.loc(start)))
	n.PushBack(body)
	n.PushBack(elses)
	return n, nil
}

func valOrTrue(val *ast.Node, loc diag.Location) *ast.Node {
	if val != nil {
		return val
	}
	return ast.Leaf(ast.KindJSONTrue, loc, true)
}

func (p *Parser) parseFuncRule(start Token, nameVar *ast.Node) (*ast.Node, error) {
	args, err := p.parseRuleArgs()
	if err != nil {
		return nil, err
	}
	var val *ast.Node
	if p.at(TAssign) || p.at(TDeclare) {
		p.advance()
		val, err = p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseOptionalBody()
	if err != nil {
		return nil, err
	}
	elses, err := p.parseElseSeq()
	if err != nil {
		return nil, err
	}
	n := ast.Create(ast.KindRuleFunc, p.loc(start))
	n.PushBack(nameVar)
	n.PushBack(args)
	n.PushBack(valOrTrue(val, p.loc(start)))
	n.PushBack(body)
	n.PushBack(elses)
	return n, nil
}

func (p *Parser) parseRuleArgs() (*ast.Node, error) {
	open, err := p.expect(TLParen, "'('")
	if err != nil {
		return nil, err
	}
	args := ast.Create(ast.KindRuleArgs, p.loc(open))
	for !p.at(TRParen) {
		e, err := p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
		args.PushBack(e)
		if p.at(TComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(TRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseBracketRule(start Token, nameVar *ast.Node) (*ast.Node, error) {
	p.advance() // '['
	key, err := p.parseExpr(precOr)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TRSquare, "']'"); err != nil {
		return nil, err
	}
	if p.at(TAssign) || p.at(TDeclare) {
		p.advance()
		val, err := p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
		body, err := p.parseOptionalBody()
		if err != nil {
			return nil, err
		}
		n := ast.Create(ast.KindRuleObj, diag.Join(p.loc(start), val.Loc()))
		n.PushBack(nameVar)
		n.PushBack(key)
		n.PushBack(val)
		n.PushBack(body)
		return n, nil
	}
	body, err := p.parseOptionalBody()
	if err != nil {
		return nil, err
	}
	n := ast.Create(ast.KindRuleSet, p.loc(start))
	n.PushBack(nameVar)
	n.PushBack(key)
	n.PushBack(body)
	return n, nil
}

func (p *Parser) parseOptionalBody() (*ast.Node, error) {
	if p.at(TKwIf) {
		p.advance()
	}
	if !p.at(TLCurly) {
		return ast.Create(ast.KindBody, p.loc(p.cur())), nil
	}
	return p.parseBody()
}

func (p *Parser) parseElseSeq() (*ast.Node, error) {
	start := p.cur()
	seq := ast.Create(ast.KindElseSeq, p.loc(start))
	for p.at(TKwElse) {
		p.advance()
		var val *ast.Node
		var err error
		if p.at(TAssign) || p.at(TDeclare) {
			p.advance()
			val, err = p.parseExpr(precAssign)
			if err != nil {
				return nil, err
			}
		}
		body, err := p.parseOptionalBody()
		if err != nil {
			return nil, err
		}
		e := ast.Create(ast.KindElse, p.loc(start))
		e.PushBack(valOrTrue(val, p.loc(start)))
		e.PushBack(body)
		seq.PushBack(e)
	}
	return seq, nil
}

func (p *Parser) parseBody() (*ast.Node, error) {
	open, err := p.expect(TLCurly, "'{'")
	if err != nil {
		return nil, err
	}
	body := ast.Create(ast.KindBody, p.loc(open))
	for !p.at(TRCurly) && !p.at(TEOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body.PushBack(stmt)
		if p.at(TSemicolon) {
			p.advance()
		}
	}
	if _, err := p.expect(TRCurly, "'}'"); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *Parser) parseStatement() (*ast.Node, error) {
	var stmt *ast.Node
	var err error
	switch {
	case p.at(TKwSome):
		stmt, err = p.parseSomeDecl()
	case p.at(TKwEvery):
		stmt, err = p.parseEveryDecl()
	case p.at(TKwNot):
		start := p.advance()
		inner, e := p.parseExpr(precOr)
		if e != nil {
			return nil, e
		}
		n := ast.Create(ast.KindUnaryExpr, diag.Join(p.loc(start), inner.Loc()))
		n.Lit = "not"
		n.PushBack(inner)
		stmt, err = n, nil
	default:
		stmt, err = p.parseExpr(precAssign)
	}
	if err != nil {
		return nil, err
	}
	if p.at(TKwWith) {
		return p.parseWithClauses(stmt)
	}
	return stmt, nil
}

func (p *Parser) parseWithClauses(base *ast.Node) (*ast.Node, error) {
	n := ast.Create(ast.KindLiteralWith, base.Loc())
	n.PushBack(base)
	for p.at(TKwWith) {
		p.advance()
		ref, err := p.parseExpr(precAdditive)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TKwAs, "'as'"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
		wa := ast.Create(ast.KindWithAs, diag.Join(ref.Loc(), val.Loc()))
		wa.PushBack(ref)
		wa.PushBack(val)
		n.PushBack(wa)
	}
	return n, nil
}

func (p *Parser) parseSomeDecl() (*ast.Node, error) {
	start := p.advance() // 'some'
	v1, err := p.expect(TIdent, "identifier")
	if err != nil {
		return nil, err
	}
	n := ast.Create(ast.KindSomeDecl, p.loc(start))
	var keyVar, valVar *ast.Node
	valVar = ast.Leaf(ast.KindVar, p.loc(v1), v1.Text)
	if p.at(TComma) {
		p.advance()
		v2, err := p.expect(TIdent, "identifier")
		if err != nil {
			return nil, err
		}
		keyVar = valVar
		valVar = ast.Leaf(ast.KindVar, p.loc(v2), v2.Text)
	}
	if keyVar != nil {
		n.PushBack(keyVar)
	} else {
		n.PushBack(ast.Leaf(ast.KindVar, p.loc(v1), "_"))
	}
	n.PushBack(valVar)
	if p.at(TKwIn) {
		p.advance()
		coll, err := p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
		n.PushBack(coll)
	} else {
		n.PushBack(ast.Leaf(ast.KindUndefinedTerm, p.loc(start), nil))
	}
	return n, nil
}

func (p *Parser) parseEveryDecl() (*ast.Node, error) {
	start := p.advance() // 'every'
	v1, err := p.expect(TIdent, "identifier")
	if err != nil {
		return nil, err
	}
	var keyVar, valVar *ast.Node
	valVar = ast.Leaf(ast.KindVar, p.loc(v1), v1.Text)
	if p.at(TComma) {
		p.advance()
		v2, err := p.expect(TIdent, "identifier")
		if err != nil {
			return nil, err
		}
		keyVar = valVar
		valVar = ast.Leaf(ast.KindVar, p.loc(v2), v2.Text)
	}
	if _, err := p.expect(TKwIn, "'in'"); err != nil {
		return nil, err
	}
	coll, err := p.parseExpr(precOr)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	n := ast.Create(ast.KindEvery, p.loc(start))
	if keyVar != nil {
		n.PushBack(keyVar)
	} else {
		n.PushBack(ast.Leaf(ast.KindVar, p.loc(v1), "_"))
	}
	n.PushBack(valVar)
	n.PushBack(coll)
	n.PushBack(body)
	return n, nil
}

// --- Pratt expression parser ---

const (
	precAssign   = 1
	precOr       = 2
	precAnd      = 3
	precCmp      = 4
	precAdditive = 5
	precMul      = 6
	precUnary    = 7
)

func (p *Parser) parseExpr(minPrec int) (*ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, prec, kind, ok := infixOp(p.cur().Type)
		if !ok || prec < minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		n := ast.Create(kind, diag.Join(left.Loc(), right.Loc()))
		n.Lit = op
		n.PushBack(left)
		n.PushBack(right)
		left = n
	}
}

func infixOp(tt TokenType) (op string, prec int, kind ast.Kind, ok bool) {
	switch tt {
	case TDeclare:
		return ":=", precAssign, ast.KindAssignInfix, true
	case TAssign:
		return "=", precAssign, ast.KindAssignInfix, true
	case TPipe:
		return "|", precOr, ast.KindBinInfix, true
	case TAmp:
		return "&", precAnd, ast.KindBinInfix, true
	case TEq:
		return "==", precCmp, ast.KindBoolInfix, true
	case TNeq:
		return "!=", precCmp, ast.KindBoolInfix, true
	case TLt:
		return "<", precCmp, ast.KindBoolInfix, true
	case TLe:
		return "<=", precCmp, ast.KindBoolInfix, true
	case TGt:
		return ">", precCmp, ast.KindBoolInfix, true
	case TGe:
		return ">=", precCmp, ast.KindBoolInfix, true
	case TPlus:
		return "+", precAdditive, ast.KindArithInfix, true
	case TMinus:
		return "-", precAdditive, ast.KindArithInfix, true
	case TStar:
		return "*", precMul, ast.KindArithInfix, true
	case TSlash:
		return "/", precMul, ast.KindArithInfix, true
	case TPercent:
		return "%", precMul, ast.KindArithInfix, true
	}
	return "", 0, ast.KindUndefined, false
}

func (p *Parser) parseUnary() (*ast.Node, error) {
	if p.at(TMinus) {
		start := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := ast.Create(ast.KindUnaryExpr, diag.Join(p.loc(start), operand.Loc()))
		n.Lit = "-"
		n.PushBack(operand)
		return n, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (*ast.Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(TPeriod):
			p.advance()
			field, err := p.expect(TIdent, "identifier")
			if err != nil {
				return nil, err
			}
			ref := ast.Create(ast.KindRef, diag.Join(base.Loc(), p.loc(field)))
			ref.PushBack(base)
			ref.PushBack(ast.Leaf(ast.KindScalar, p.loc(field), field.Text))
			base = ref
		case p.at(TLSquare):
			p.advance()
			idx, err := p.parseExpr(precAssign)
			if err != nil {
				return nil, err
			}
			close, err := p.expect(TRSquare, "']'")
			if err != nil {
				return nil, err
			}
			ref := ast.Create(ast.KindRef, diag.Join(base.Loc(), p.loc(close)))
			ref.PushBack(base)
			ref.PushBack(idx)
			base = ref
		case p.at(TLParen):
			p.advance()
			call := ast.Create(ast.KindExprCall, base.Loc())
			call.PushBack(base)
			args := ast.Create(ast.KindArgSeq, base.Loc())
			for !p.at(TRParen) {
				a, err := p.parseExpr(precOr)
				if err != nil {
					return nil, err
				}
				args.PushBack(a)
				if p.at(TComma) {
					p.advance()
					continue
				}
				break
			}
			close, err := p.expect(TRParen, "')'")
			if err != nil {
				return nil, err
			}
			call.SetLoc(diag.Join(call.Loc(), p.loc(close)))
			call.PushBack(args)
			base = call
		default:
			return base, nil
		}
	}
}

func (p *Parser) parsePrimary() (*ast.Node, error) {
	t := p.cur()
	switch t.Type {
	case TInt:
		p.advance()
		v, err := ParseIntLiteral(t.Text)
		if err != nil {
			return nil, &ParseError{Line: t.Line, Col: t.Col, Msg: "invalid integer literal"}
		}
		return ast.Leaf(ast.KindScalar, p.loc(t), v), nil
	case TFloat:
		p.advance()
		v, err := ParseFloatLiteral(t.Text)
		if err != nil {
			return nil, &ParseError{Line: t.Line, Col: t.Col, Msg: "invalid float literal"}
		}
		return ast.Leaf(ast.KindScalar, p.loc(t), v), nil
	case TString:
		p.advance()
		return ast.Leaf(ast.KindScalar, p.loc(t), t.Text), nil
	case TRawString:
		p.advance()
		return ast.Leaf(ast.KindScalar, p.loc(t), t.Text), nil
	case TTrue:
		p.advance()
		return ast.Leaf(ast.KindScalar, p.loc(t), true), nil
	case TFalse:
		p.advance()
		return ast.Leaf(ast.KindScalar, p.loc(t), false), nil
	case TNull:
		p.advance()
		return ast.Leaf(ast.KindScalar, p.loc(t), nil), nil
	case TBang:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := ast.Create(ast.KindUnaryExpr, diag.Join(p.loc(t), operand.Loc()))
		n.Lit = "not"
		n.PushBack(operand)
		return n, nil
	case TLParen:
		p.advance()
		inner, err := p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
		close, err := p.expect(TRParen, "')'")
		if err != nil {
			return nil, err
		}
		paren := ast.Create(ast.KindParen, diag.Join(p.loc(t), p.loc(close)))
		paren.PushBack(inner)
		return paren, nil
	case TLSquare:
		return p.parseArrayOrCompr(t)
	case TLCurly:
		return p.parseBraceLiteral(t)
	case TIdent:
		p.advance()
		if t.Text == "set" && p.at(TLParen) {
			p.advance()
			close, err := p.expect(TRParen, "')'")
			if err != nil {
				return nil, err
			}
			return ast.Create(ast.KindSet, diag.Join(p.loc(t), p.loc(close))), nil
		}
		return ast.Leaf(ast.KindVar, p.loc(t), t.Text), nil
	case TKwNot:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := ast.Create(ast.KindUnaryExpr, diag.Join(p.loc(t), operand.Loc()))
		n.Lit = "not"
		n.PushBack(operand)
		return n, nil
	}
	return nil, &ParseError{Line: t.Line, Col: t.Col, Msg: fmt.Sprintf("unexpected token %q", t.Text)}
}

func (p *Parser) parseArrayOrCompr(open Token) (*ast.Node, error) {
	p.advance() // '['
	if p.at(TRSquare) {
		close := p.advance()
		return ast.Create(ast.KindArray, diag.Join(p.loc(open), p.loc(close))), nil
	}
	// Parse above precOr so a "|" ends the head instead of forming a union.
	first, err := p.parseExpr(precAnd)
	if err != nil {
		return nil, err
	}
	if p.at(TPipe) {
		p.advance()
		body, err := p.parseComprBody()
		if err != nil {
			return nil, err
		}
		close, err := p.expect(TRSquare, "']'")
		if err != nil {
			return nil, err
		}
		n := ast.Create(ast.KindArrayCompr, diag.Join(p.loc(open), p.loc(close)))
		n.PushBack(first)
		n.PushBack(body)
		return n, nil
	}
	arr := ast.Create(ast.KindArray, p.loc(open))
	arr.PushBack(first)
	for p.at(TComma) {
		p.advance()
		if p.at(TRSquare) {
			break
		}
		e, err := p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
		arr.PushBack(e)
	}
	close, err := p.expect(TRSquare, "']'")
	if err != nil {
		return nil, err
	}
	arr.SetLoc(diag.Join(arr.Loc(), p.loc(close)))
	return arr, nil
}

func (p *Parser) parseComprBody() (*ast.Node, error) {
	body := ast.Create(ast.KindComprBody, p.loc(p.cur()))
	for {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body.PushBack(stmt)
		if p.at(TSemicolon) {
			p.advance()
			continue
		}
		break
	}
	return body, nil
}

func (p *Parser) parseBraceLiteral(open Token) (*ast.Node, error) {
	p.advance() // '{'
	if p.at(TRCurly) {
		close := p.advance()
		return ast.Create(ast.KindObject, diag.Join(p.loc(open), p.loc(close))), nil
	}
	// Parse above precOr so a "|" ends the head instead of forming a union.
	first, err := p.parseExpr(precAnd)
	if err != nil {
		return nil, err
	}
	if p.at(TColon) {
		p.advance()
		val, err := p.parseExpr(precAnd)
		if err != nil {
			return nil, err
		}
		if p.at(TPipe) {
			p.advance()
			body, err := p.parseComprBody()
			if err != nil {
				return nil, err
			}
			close, err := p.expect(TRCurly, "'}'")
			if err != nil {
				return nil, err
			}
			n := ast.Create(ast.KindObjectCompr, diag.Join(p.loc(open), p.loc(close)))
			n.PushBack(first)
			n.PushBack(val)
			n.PushBack(body)
			return n, nil
		}
		obj := ast.Create(ast.KindObject, p.loc(open))
		item := ast.Create(ast.KindObjectItem, diag.Join(first.Loc(), val.Loc()))
		item.PushBack(first)
		item.PushBack(val)
		item.SetKey(first)
		obj.PushBack(item)
		for p.at(TComma) {
			p.advance()
			if p.at(TRCurly) {
				break
			}
			k, err := p.parseExpr(precOr)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TColon, "':'"); err != nil {
				return nil, err
			}
			v, err := p.parseExpr(precOr)
			if err != nil {
				return nil, err
			}
			it := ast.Create(ast.KindObjectItem, diag.Join(k.Loc(), v.Loc()))
			it.PushBack(k)
			it.PushBack(v)
			it.SetKey(k)
			obj.PushBack(it)
		}
		close, err := p.expect(TRCurly, "'}'")
		if err != nil {
			return nil, err
		}
		obj.SetLoc(diag.Join(obj.Loc(), p.loc(close)))
		return obj, nil
	}
	if p.at(TPipe) {
		p.advance()
		body, err := p.parseComprBody()
		if err != nil {
			return nil, err
		}
		close, err := p.expect(TRCurly, "'}'")
		if err != nil {
			return nil, err
		}
		n := ast.Create(ast.KindSetCompr, diag.Join(p.loc(open), p.loc(close)))
		n.PushBack(first)
		n.PushBack(body)
		return n, nil
	}
	set := ast.Create(ast.KindSet, p.loc(open))
	set.PushBack(first)
	for p.at(TComma) {
		p.advance()
		if p.at(TRCurly) {
			break
		}
		e, err := p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
		set.PushBack(e)
	}
	close, err := p.expect(TRCurly, "'}'")
	if err != nil {
		return nil, err
	}
	set.SetLoc(diag.Join(set.Loc(), p.loc(close)))
	return set, nil
}
