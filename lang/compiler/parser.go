package compiler

import (
	"fmt"

	"github.com/mna/ember/lang/scanner"
	"github.com/mna/ember/lang/token"
)

// parser drives the scanner one token ahead of the compiler's current
// position and accumulates diagnostics. It has no notion of precedence or
// grammar; that lives in compiler.go and rules.go.
type parser struct {
	scanner *scanner.Scanner

	previous token.Token
	current  token.Token

	errs      []string
	hadError  bool
	panicMode bool
}

func newParser(src []byte) *parser {
	s := &scanner.Scanner{}
	s.Init(src)
	return &parser{scanner: s}
}

// advance pulls the next non-error token into current, skipping over any
// error tokens the scanner produces along the way. The first of them is
// reported; once that puts the parser in panic mode, errorAt suppresses the
// rest until synchronize runs.
func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scanner.Next()
		if p.current.Kind != token.ILLEGAL {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *parser) check(kind token.Kind) bool { return p.current.Kind == kind }

func (p *parser) match(kind token.Kind) bool {
	if !p.check(kind) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(kind token.Kind, msg string) {
	if p.current.Kind == kind {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(&p.current, msg) }
func (p *parser) errorAtPrevious(msg string) { p.errorAt(&p.previous, msg) }

func (p *parser) errorAt(tok *token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true

	where := fmt.Sprintf(" at '%s'", tok.Lexeme)
	switch tok.Kind {
	case token.EOF:
		where = " at end"
	case token.ILLEGAL:
		where = ""
	}
	p.errs = append(p.errs, fmt.Sprintf("[line %d] Error%s: %s", tok.Line, where, msg))
}

// synchronize discards tokens until it reaches a plausible statement
// boundary, so a single malformed statement produces one diagnostic instead
// of a cascade.
func (p *parser) synchronize() {
	p.panicMode = false

	for p.current.Kind != token.EOF {
		if p.previous.Kind == token.SEMI {
			return
		}
		switch p.current.Kind {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		p.advance()
	}
}
