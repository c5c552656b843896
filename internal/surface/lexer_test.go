package surface

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func typesWithoutEOF(toks []Token) []TokenType {
	out := make([]TokenType, 0, len(toks))
	for _, t := range toks {
		if t.Type == TEOF {
			continue
		}
		out = append(out, t.Type)
	}
	return out
}

func scan(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := NewLexer(src).Tokenize()
	require.NoError(t, err)
	return toks
}

func TestLexerPunctuationAndOperators(t *testing.T) {
	toks := scan(t, `a := 1 + 2 == 3 != 4 <= 5 >= 6 < 7 > 8 | 9 & 10`)
	want := []TokenType{
		TIdent, TDeclare, TInt, TPlus, TInt, TEq, TInt, TNeq, TInt,
		TLe, TInt, TGe, TInt, TLt, TInt, TGt, TInt, TPipe, TInt, TAmp, TInt,
	}
	require.Equal(t, want, typesWithoutEOF(toks))
}

func TestLexerKeywords(t *testing.T) {
	toks := scan(t, `package p import x as y default d = true else false not null some every in with contains if`)
	want := []TokenType{
		TKwPackage, TIdent, TKwImport, TIdent, TKwAs, TIdent,
		TKwDefault, TIdent, TAssign, TTrue, TKwElse, TFalse, TKwNot, TNull,
		TKwSome, TKwEvery, TKwIn, TKwWith, TKwContains, TKwIf,
	}
	require.Equal(t, want, typesWithoutEOF(toks))
}

func TestLexerNumbers(t *testing.T) {
	toks := scan(t, `1 2.5 3e10 4.2e-3`)
	require.Equal(t, []TokenType{TInt, TFloat, TFloat, TFloat}, typesWithoutEOF(toks))
	require.Equal(t, "2.5", toks[1].Text)
}

func TestLexerStringEscapes(t *testing.T) {
	toks := scan(t, `"a\nb\"c"`)
	require.Len(t, toks, 2)
	require.Equal(t, "a\nb\"c", toks[0].Text)
}

func TestLexerRawString(t *testing.T) {
	toks := scan(t, "`a\\nb`")
	require.Equal(t, `a\nb`, toks[0].Text)
}

func TestLexerComment(t *testing.T) {
	toks := scan(t, "x # trailing comment\ny")
	require.Equal(t, []TokenType{TIdent, TIdent}, typesWithoutEOF(toks))
}

func TestLexerUnterminatedStringErrors(t *testing.T) {
	_, err := NewLexer(`"abc`).Tokenize()
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
}

func TestLexerIllegalCharacterErrors(t *testing.T) {
	_, err := NewLexer(`@`).Tokenize()
	require.Error(t, err)
}
