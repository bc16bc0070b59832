package compiler

import "github.com/mna/ember/lang/token"

// parseFn is a prefix or infix parsing action, bound to the compiler whose
// expression it extends. canAssign threads through both prefix and infix
// actions so that only an expression parsed at precAssignment or looser may
// treat a trailing '=' as an assignment target.
type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// rules is a dense table indexed by token.Kind, giving each kind's prefix
// action, infix action, and infix precedence. A nil action means the kind
// never begins (prefix) or continues (infix) an expression.
var rules [256]parseRule

func init() {
	rules[token.LPAREN] = parseRule{prefix: (*compiler).grouping, infix: (*compiler).call, precedence: precCall}
	rules[token.DOT] = parseRule{infix: (*compiler).dot, precedence: precCall}
	rules[token.MINUS] = parseRule{prefix: (*compiler).unary, infix: (*compiler).binary, precedence: precTerm}
	rules[token.PLUS] = parseRule{infix: (*compiler).binary, precedence: precTerm}
	rules[token.SLASH] = parseRule{infix: (*compiler).binary, precedence: precFactor}
	rules[token.STAR] = parseRule{infix: (*compiler).binary, precedence: precFactor}
	rules[token.BANG] = parseRule{prefix: (*compiler).unary}
	rules[token.BANG_EQ] = parseRule{infix: (*compiler).binary, precedence: precEquality}
	rules[token.EQ_EQ] = parseRule{infix: (*compiler).binary, precedence: precEquality}
	rules[token.GT] = parseRule{infix: (*compiler).binary, precedence: precComparison}
	rules[token.GT_EQ] = parseRule{infix: (*compiler).binary, precedence: precComparison}
	rules[token.LT] = parseRule{infix: (*compiler).binary, precedence: precComparison}
	rules[token.LT_EQ] = parseRule{infix: (*compiler).binary, precedence: precComparison}
	rules[token.IDENT] = parseRule{prefix: (*compiler).variable}
	rules[token.STRING] = parseRule{prefix: (*compiler).string}
	rules[token.NUMBER] = parseRule{prefix: (*compiler).number}
	rules[token.AND] = parseRule{infix: (*compiler).and_, precedence: precAnd}
	rules[token.OR] = parseRule{infix: (*compiler).or_, precedence: precOr}
	rules[token.FALSE] = parseRule{prefix: (*compiler).literal}
	rules[token.TRUE] = parseRule{prefix: (*compiler).literal}
	rules[token.NIL] = parseRule{prefix: (*compiler).literal}
	rules[token.THIS] = parseRule{prefix: (*compiler).this_}
}

func getRule(kind token.Kind) *parseRule { return &rules[kind] }
