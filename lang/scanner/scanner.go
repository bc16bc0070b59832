// Package scanner tokenizes ember source text for the compiler to consume.
//
// The scanner is single-pass and keeps no lookahead buffer beyond the two
// bytes available through peek/peekNext: every token is produced by advancing
// through the source exactly once. Identifiers are ASCII-only, matching the
// language's Non-goals.
package scanner

import (
	"github.com/mna/ember/lang/token"
)

// Scanner tokenizes a single source buffer, one token at a time.
type Scanner struct {
	src     []byte
	start   int // byte offset of the start of the token being scanned
	current int // byte offset of the next byte to read
	line    int // current 1-based line number
}

// Init (re)initializes the scanner to tokenize src from the beginning.
func (s *Scanner) Init(src []byte) {
	s.src = src
	s.start = 0
	s.current = 0
	s.line = 1
}

// Next returns the next token in the source. Once EOF has been returned,
// every subsequent call also returns EOF.
func (s *Scanner) Next() token.Token {
	s.skipWhitespace()
	s.start = s.current

	if s.atEnd() {
		return s.make(token.EOF)
	}

	c := s.advance()
	if isAlpha(c) {
		return s.identifier()
	}
	if isDigit(c) {
		return s.number()
	}

	switch c {
	case '(':
		return s.make(token.LPAREN)
	case ')':
		return s.make(token.RPAREN)
	case '{':
		return s.make(token.LBRACE)
	case '}':
		return s.make(token.RBRACE)
	case ';':
		return s.make(token.SEMI)
	case ',':
		return s.make(token.COMMA)
	case '.':
		return s.make(token.DOT)
	case '-':
		return s.make(token.MINUS)
	case '+':
		return s.make(token.PLUS)
	case '*':
		return s.make(token.STAR)
	case '/':
		return s.make(token.SLASH)
	case '!':
		return s.make(s.ifMatch('=', token.BANG_EQ, token.BANG))
	case '=':
		return s.make(s.ifMatch('=', token.EQ_EQ, token.EQ))
	case '<':
		return s.make(s.ifMatch('=', token.LT_EQ, token.LT))
	case '>':
		return s.make(s.ifMatch('=', token.GT_EQ, token.GT))
	case '"':
		return s.string()
	}
	return s.errToken("Unexpected character")
}

func (s *Scanner) atEnd() bool { return s.current >= len(s.src) }

// advance consumes and returns the current byte.
func (s *Scanner) advance() byte {
	c := s.src[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.src) {
		return 0
	}
	return s.src[s.current+1]
}

// ifMatch consumes the current byte if it equals want, returning matched;
// otherwise it leaves the scanner unadvanced and returns unmatched.
func (s *Scanner) ifMatch(want byte, matched, unmatched token.Kind) token.Kind {
	if s.atEnd() || s.src[s.current] != want {
		return unmatched
	}
	s.current++
	return matched
}

func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case ' ', '\t', '\r':
			s.advance()
		case '\n':
			s.line++
			s.advance()
		case '/':
			if s.peekNext() != '/' {
				return
			}
			for s.peek() != '\n' && !s.atEnd() {
				s.advance()
			}
		default:
			return
		}
	}
}

func (s *Scanner) identifier() token.Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	return s.make(token.Lookup(string(s.src[s.start:s.current])))
}

func (s *Scanner) number() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance() // consume the '.'
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	return s.make(token.NUMBER)
}

func (s *Scanner) string() token.Token {
	for s.peek() != '"' && !s.atEnd() {
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}
	if s.atEnd() {
		return s.errToken("Unterminated string")
	}
	s.advance() // closing quote
	return s.make(token.STRING)
}

func (s *Scanner) make(kind token.Kind) token.Token {
	return token.Token{Kind: kind, Lexeme: string(s.src[s.start:s.current]), Line: s.line}
}

// errToken produces an ILLEGAL token whose Lexeme carries the diagnostic
// message, per the Err-token convention: the compiler reports msg verbatim.
func (s *Scanner) errToken(msg string) token.Token {
	return token.Token{Kind: token.ILLEGAL, Lexeme: msg, Line: s.line}
}

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
