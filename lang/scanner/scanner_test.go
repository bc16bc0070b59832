package scanner_test

import (
	"testing"

	"github.com/mna/ember/lang/scanner"
	"github.com/mna/ember/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	var s scanner.Scanner
	s.Init([]byte(src))

	var toks []token.Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll(t, `( ) { } , . - + ; / * ! != = == > >= < <=`)
	want := []token.Kind{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.COMMA,
		token.DOT, token.MINUS, token.PLUS, token.SEMI, token.SLASH, token.STAR,
		token.BANG, token.BANG_EQ, token.EQ, token.EQ_EQ, token.GT, token.GT_EQ,
		token.LT, token.LT_EQ, token.EOF,
	}
	require.Len(t, toks, len(want))
	for i, k := range want {
		require.Equalf(t, k, toks[i].Kind, "token %d (%q)", i, toks[i].Lexeme)
	}
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks := scanAll(t, `and class else false for fun if nil or print return super this true var while frobnicate`)
	want := []token.Kind{
		token.AND, token.CLASS, token.ELSE, token.FALSE, token.FOR, token.FUN,
		token.IF, token.NIL, token.OR, token.PRINT, token.RETURN, token.SUPER,
		token.THIS, token.TRUE, token.VAR, token.WHILE, token.IDENT, token.EOF,
	}
	require.Len(t, toks, len(want))
	for i, k := range want {
		require.Equalf(t, k, toks[i].Kind, "token %d (%q)", i, toks[i].Lexeme)
	}
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll(t, `123 3.14 0 1.`)
	require.Equal(t, token.NUMBER, toks[0].Kind)
	require.Equal(t, "123", toks[0].Lexeme)
	require.Equal(t, token.NUMBER, toks[1].Kind)
	require.Equal(t, "3.14", toks[1].Lexeme)
	require.Equal(t, token.NUMBER, toks[2].Kind)
	require.Equal(t, "0", toks[2].Lexeme)
	// "1." has no digit after the dot, so the dot is not part of the number.
	require.Equal(t, token.NUMBER, toks[3].Kind)
	require.Equal(t, "1", toks[3].Lexeme)
	require.Equal(t, token.DOT, toks[4].Kind)
}

func TestScanStrings(t *testing.T) {
	toks := scanAll(t, `"hello world" "multi
line"`)
	require.Equal(t, token.STRING, toks[0].Kind)
	require.Equal(t, `"hello world"`, toks[0].Lexeme)
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, token.STRING, toks[1].Kind)
	require.Equal(t, 2, toks[1].Line, "line counter must advance past an embedded newline")
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(t, `"oops`)
	require.Equal(t, token.ILLEGAL, toks[0].Kind)
	require.Equal(t, "Unterminated string", toks[0].Lexeme)
}

func TestScanUnexpectedCharacter(t *testing.T) {
	toks := scanAll(t, `@`)
	require.Equal(t, token.ILLEGAL, toks[0].Kind)
	require.Equal(t, "Unexpected character", toks[0].Lexeme)
}

func TestScanCommentsAndWhitespace(t *testing.T) {
	toks := scanAll(t, "// a comment\nvar   x\t= 1 // trailing\n;")
	kinds := make([]token.Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	require.Equal(t, []token.Kind{token.VAR, token.IDENT, token.EQ, token.NUMBER, token.SEMI, token.EOF}, kinds)
	require.Equal(t, 2, toks[0].Line)
}

func TestEOFIsAlwaysLast(t *testing.T) {
	toks := scanAll(t, `var a = 1;`)
	require.Equal(t, token.EOF, toks[len(toks)-1].Kind)
	for _, tok := range toks[:len(toks)-1] {
		require.NotEqual(t, token.EOF, tok.Kind)
	}
}

func TestLineNumbersNonDecreasing(t *testing.T) {
	toks := scanAll(t, "var a = 1;\nvar b = 2;\nprint a + b;")
	last := 1
	for _, tok := range toks {
		require.GreaterOrEqual(t, tok.Line, last)
		last = tok.Line
	}
}
