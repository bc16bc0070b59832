// Package compiler turns ember source into bytecode: a single-pass Pratt
// parser that emits directly into a Chunk, with no intermediate syntax
// tree. Local variables, upvalues, and classes are resolved as parsing
// proceeds; see rules.go for the expression grammar and parser.go for
// token-stream plumbing.
package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mna/ember/lang/token"
	"github.com/mna/ember/lang/value"
)

// CompileError collects every diagnostic produced while compiling a single
// source; the VM reports it as a compile error without further parsing its
// contents.
type CompileError struct {
	Messages []string
}

func (e *CompileError) Error() string { return strings.Join(e.Messages, "\n") }

// functionType distinguishes the kinds of function bodies a compiler can be
// compiling, since each has slightly different rules for slot 0 and for
// `return`.
type functionType uint8

const (
	typeScript functionType = iota
	typeFunction
	typeMethod
	typeInitializer
)

// local is a compile-time record of a declared local variable. depth is -1
// between declaration and initialization (see declareVariable/
// markInitialized); captured is set once some nested function closes over
// this slot, which changes how endScope releases it.
type local struct {
	name     token.Token
	depth    int
	captured bool
}

// upvalueSlot is a compile-time record of one of a function's upvalues,
// mirroring value.UpvalueDesc but keyed during compilation before the
// function's upvalue count is known.
type upvalueSlot struct {
	index   byte
	isLocal bool
}

// classCompiler tracks the class currently being compiled, if any, so
// `this` can be resolved and rejected outside of one. Class compilers chain
// through enclosing the same way function compilers do, for nested classes.
type classCompiler struct {
	enclosing *classCompiler
}

// state is the handful of things shared by every compiler in a nested
// chain: the token stream, the heap strings and functions are allocated
// from, and the current class (if compiling inside one). Everything else
// that is only relevant to a single function body lives on *compiler.
type state struct {
	parser *parser
	heap   *value.Heap
	class  *classCompiler
}

// compiler compiles a single function body (or the top-level script). Each
// nested `fun`/method pushes a child compiler whose enclosing field points
// back to the compiler for the lexically surrounding function; this chain
// is exactly what resolveUpvalue walks, and the GC walks the equivalent
// chain of in-progress functions as roots during compilation.
type compiler struct {
	st        *state
	enclosing *compiler

	typ      functionType
	function *value.ObjFunction

	locals     []local
	scopeDepth int
	upvalues   []upvalueSlot
}

// Compile compiles source into a top-level script Function. On success the
// returned error is nil; on failure the Function is nil and the error is a
// *CompileError listing every diagnostic gathered before synchronizing.
func Compile(source []byte, heap *value.Heap) (*value.ObjFunction, error) {
	st := &state{parser: newParser(source), heap: heap}
	top := newCompiler(st, nil, typeScript, "")

	st.parser.advance()
	for !st.parser.match(token.EOF) {
		top.declaration()
	}

	fn := top.endCompiler()
	if st.parser.hadError {
		return nil, &CompileError{Messages: st.parser.errs}
	}
	return fn, nil
}

func newCompiler(st *state, enclosing *compiler, typ functionType, name string) *compiler {
	fn := st.heap.NewFunction()

	// The function is live (and may be allocated into further, e.g. via its
	// name or the constants compiled into its own chunk) before it is
	// reachable from any VM state; register it as a GC root for the rest of
	// this compiler's lifetime.
	st.heap.PushCompilerRoot(fn)

	if typ != typeScript {
		fn.Name = st.heap.CopyString(name)
	}
	c := &compiler{st: st, enclosing: enclosing, typ: typ, function: fn}

	// Slot 0 is reserved: named "this" for methods/initializers so `this`
	// resolves as an ordinary local read, unnamed (and so unreachable by any
	// identifier) for plain functions and the script.
	slot0 := ""
	if typ == typeMethod || typ == typeInitializer {
		slot0 = "this"
	}
	c.locals = append(c.locals, local{name: token.Token{Lexeme: slot0}, depth: 0})
	return c
}

func (c *compiler) error(msg string) { c.st.parser.errorAtPrevious(msg) }

// endCompiler appends the implicit return every function body needs and
// returns the finished Function. For initializers this is `GET_LOCAL 0
// RETURN` so `init` always yields the receiver, matching how a class
// constructor call binds and returns its instance.
func (c *compiler) endCompiler() *value.ObjFunction {
	c.emitReturn()
	c.st.heap.PopCompilerRoot()
	return c.function
}

// ---- emission helpers ----

func (c *compiler) emitByte(b byte) {
	c.function.Chunk.Write(b, c.st.parser.previous.Line)
}

func (c *compiler) emitOp(op value.OpCode) { c.emitByte(byte(op)) }

func (c *compiler) emitOpByte(op value.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *compiler) emitReturn() {
	if c.typ == typeInitializer {
		c.emitOpByte(value.OpGetLocal, 0)
	} else {
		c.emitOp(value.OpNil)
	}
	c.emitOp(value.OpReturn)
}

func (c *compiler) makeConstant(v value.Value) byte {
	idx := c.function.Chunk.AddConstant(v)
	if idx > 255 {
		c.error("Too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (c *compiler) emitConstant(v value.Value) {
	c.emitOpByte(value.OpConstant, c.makeConstant(v))
}

// emitJump emits op followed by a two-byte placeholder offset, returning
// the offset of the placeholder's first byte for patchJump to fill in once
// the jump target is known.
func (c *compiler) emitJump(op value.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.function.Chunk.Code) - 2
}

func (c *compiler) patchJump(offset int) {
	jump := len(c.function.Chunk.Code) - offset - 2
	if jump > math.MaxUint16 {
		c.error("Too much code to jump over")
	}
	c.function.Chunk.Code[offset] = byte(jump >> 8 & 0xff)
	c.function.Chunk.Code[offset+1] = byte(jump & 0xff)
}

// emitLoop emits a backward OP_LOOP jump to loopStart.
func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(value.OpLoop)
	offset := len(c.function.Chunk.Code) - loopStart + 2
	if offset > math.MaxUint16 {
		c.error("Loop body too large")
	}
	c.emitByte(byte(offset >> 8 & 0xff))
	c.emitByte(byte(offset & 0xff))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// ---- scopes and variables ----

func (c *compiler) beginScope() { c.scopeDepth++ }

func (c *compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		if c.locals[len(c.locals)-1].captured {
			c.emitOp(value.OpCloseUpvalue)
		} else {
			c.emitOp(value.OpPop)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *compiler) identifierConstant(name token.Token) byte {
	return c.makeConstant(c.st.heap.CopyString(name.Lexeme))
}

func (c *compiler) addLocal(name token.Token) {
	if len(c.locals) == 256 {
		c.error("Too many local variables in function")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: -1})
}

// declareVariable binds the previous token as a new local in the current
// scope (a no-op at global scope, where binding happens via defineVariable
// instead). It rejects a second declaration of the same name in the same
// scope; it does not look past scope boundaries, so shadowing an outer
// local or global is fine.
func (c *compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.st.parser.previous
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name.Lexeme == name.Lexeme {
			c.error("Already a variable with this name in this scope")
		}
	}
	c.addLocal(name)
}

func (c *compiler) parseVariable(errMsg string) byte {
	p := c.st.parser
	p.consume(token.IDENT, errMsg)
	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(p.previous)
}

func (c *compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

func (c *compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(value.OpDefineGlobal, global)
}

// resolveLocal looks up name among comp's own locals, innermost first. A
// match whose depth is still -1 means the variable's own initializer
// referenced its name, which is an error: the slot exists but is not yet
// readable.
func resolveLocal(comp *compiler, name token.Token) (int, bool) {
	for i := len(comp.locals) - 1; i >= 0; i-- {
		l := comp.locals[i]
		if l.name.Lexeme == name.Lexeme {
			if l.depth == -1 {
				comp.error("Cannot read variable in its own initializer")
			}
			return i, true
		}
	}
	return 0, false
}

// resolveUpvalue walks comp's enclosing-compiler chain looking for name as
// a local or upvalue of some lexically surrounding function. A hit on an
// enclosing local marks that local captured (endScope needs to know to
// close it rather than just pop it) and records a new upvalue entry on
// every compiler between comp and the one that owns the local.
func resolveUpvalue(comp *compiler, name token.Token) (byte, bool) {
	if comp.enclosing == nil {
		return 0, false
	}
	if idx, ok := resolveLocal(comp.enclosing, name); ok {
		comp.enclosing.locals[idx].captured = true
		return comp.addUpvalue(byte(idx), true), true
	}
	if idx, ok := resolveUpvalue(comp.enclosing, name); ok {
		return comp.addUpvalue(idx, false), true
	}
	return 0, false
}

func (c *compiler) addUpvalue(index byte, isLocal bool) byte {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return byte(i)
		}
	}
	if len(c.upvalues) == 256 {
		c.error("Too many closure variables in function")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueSlot{index: index, isLocal: isLocal})
	c.function.UpvalueCount = len(c.upvalues)
	return byte(len(c.upvalues) - 1)
}

func (c *compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp value.OpCode
	var arg int

	if idx, ok := resolveLocal(c, name); ok {
		arg, getOp, setOp = idx, value.OpGetLocal, value.OpSetLocal
	} else if idx, ok := resolveUpvalue(c, name); ok {
		arg, getOp, setOp = int(idx), value.OpGetUpvalue, value.OpSetUpvalue
	} else {
		arg, getOp, setOp = int(c.identifierConstant(name)), value.OpGetGlobal, value.OpSetGlobal
	}

	if canAssign && c.st.parser.match(token.EQ) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

// ---- declarations and statements ----

func (c *compiler) declaration() {
	p := c.st.parser
	switch {
	case p.match(token.CLASS):
		c.classDeclaration()
	case p.match(token.FUN):
		c.funDeclaration()
	case p.match(token.VAR):
		c.varDeclaration()
	default:
		c.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (c *compiler) classDeclaration() {
	p := c.st.parser
	p.consume(token.IDENT, "Expect class name")
	nameTok := p.previous
	nameConst := c.identifierConstant(nameTok)
	c.declareVariable()

	c.emitOpByte(value.OpClass, nameConst)
	c.defineVariable(nameConst)

	cc := &classCompiler{enclosing: c.st.class}
	c.st.class = cc

	c.namedVariable(nameTok, false) // leave the class on the stack for OP_METHOD
	p.consume(token.LBRACE, "Expect '{' before class body")
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		c.method()
	}
	p.consume(token.RBRACE, "Expect '}' after class body")
	c.emitOp(value.OpPop)

	c.st.class = cc.enclosing
}

func (c *compiler) method() {
	p := c.st.parser
	p.consume(token.IDENT, "Expect method name")
	nameTok := p.previous
	nameConst := c.identifierConstant(nameTok)

	typ := typeMethod
	if nameTok.Lexeme == "init" {
		typ = typeInitializer
	}
	c.compileFunction(typ, nameTok.Lexeme)
	c.emitOpByte(value.OpMethod, nameConst)
}

func (c *compiler) funDeclaration() {
	global := c.parseVariable("Expect function name")
	c.markInitialized()
	c.compileFunction(typeFunction, c.st.parser.previous.Lexeme)
	c.defineVariable(global)
}

// compileFunction compiles a function's parameter list and body in a fresh
// child compiler, then emits the OP_CLOSURE instruction (and its upvalue
// operand pairs) that materializes it at runtime.
func (c *compiler) compileFunction(typ functionType, name string) {
	p := c.st.parser
	child := newCompiler(c.st, c, typ, name)
	child.beginScope()

	p.consume(token.LPAREN, "Expect '(' after function name")
	if !p.check(token.RPAREN) {
		for {
			child.function.Arity++
			if child.function.Arity > 255 {
				child.error("Can't have more than 255 parameters")
			}
			paramConst := child.parseVariable("Expect parameter name")
			child.defineVariable(paramConst)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "Expect ')' after parameters")
	p.consume(token.LBRACE, "Expect '{' before function body")
	child.block()

	fn := child.endCompiler()
	c.emitOpByte(value.OpClosure, c.makeConstant(fn))
	for _, uv := range child.upvalues {
		c.emitByte(boolByte(uv.isLocal))
		c.emitByte(uv.index)
	}
}

func (c *compiler) varDeclaration() {
	p := c.st.parser
	global := c.parseVariable("Expect variable name")
	if p.match(token.EQ) {
		c.expression()
	} else {
		c.emitOp(value.OpNil)
	}
	p.consume(token.SEMI, "Expect ';' after variable declaration")
	c.defineVariable(global)
}

func (c *compiler) statement() {
	p := c.st.parser
	switch {
	case p.match(token.PRINT):
		c.printStatement()
	case p.match(token.IF):
		c.ifStatement()
	case p.match(token.WHILE):
		c.whileStatement()
	case p.match(token.FOR):
		c.forStatement()
	case p.match(token.RETURN):
		c.returnStatement()
	case p.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *compiler) block() {
	p := c.st.parser
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		c.declaration()
	}
	p.consume(token.RBRACE, "Expect '}' after block")
}

func (c *compiler) printStatement() {
	c.expression()
	c.st.parser.consume(token.SEMI, "Expect ';' after value")
	c.emitOp(value.OpPrint)
}

func (c *compiler) expressionStatement() {
	c.expression()
	c.st.parser.consume(token.SEMI, "Expect ';' after expression")
	c.emitOp(value.OpPop)
}

func (c *compiler) returnStatement() {
	p := c.st.parser
	if c.typ == typeScript {
		c.error("Can't return from top-level code")
	}
	if p.match(token.SEMI) {
		c.emitReturn()
		return
	}
	if c.typ == typeInitializer {
		c.error("Can't return a value from an initializer")
	}
	c.expression()
	p.consume(token.SEMI, "Expect ';' after return value")
	c.emitOp(value.OpReturn)
}

func (c *compiler) ifStatement() {
	p := c.st.parser
	p.consume(token.LPAREN, "Expect '(' after 'if'")
	c.expression()
	p.consume(token.RPAREN, "Expect ')' after condition")

	thenJump := c.emitJump(value.OpJumpIfFalse)
	c.emitOp(value.OpPop)
	c.statement()

	elseJump := c.emitJump(value.OpJump)
	c.patchJump(thenJump)
	c.emitOp(value.OpPop)

	if p.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *compiler) whileStatement() {
	p := c.st.parser
	loopStart := len(c.function.Chunk.Code)
	p.consume(token.LPAREN, "Expect '(' after 'while'")
	c.expression()
	p.consume(token.RPAREN, "Expect ')' after condition")

	exitJump := c.emitJump(value.OpJumpIfFalse)
	c.emitOp(value.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(value.OpPop)
}

// forStatement desugars to a while loop: an optional initializer runs
// once, then the (possibly absent) condition and increment are stitched
// around the body with jumps, so the increment runs after the body but
// before the condition is retested.
func (c *compiler) forStatement() {
	p := c.st.parser
	c.beginScope()
	p.consume(token.LPAREN, "Expect '(' after 'for'")
	switch {
	case p.match(token.SEMI):
	case p.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.function.Chunk.Code)
	exitJump := -1
	if !p.match(token.SEMI) {
		c.expression()
		p.consume(token.SEMI, "Expect ';' after loop condition")

		exitJump = c.emitJump(value.OpJumpIfFalse)
		c.emitOp(value.OpPop)
	}

	if !p.match(token.RPAREN) {
		bodyJump := c.emitJump(value.OpJump)
		incrementStart := len(c.function.Chunk.Code)
		c.expression()
		c.emitOp(value.OpPop)
		p.consume(token.RPAREN, "Expect ')' after for clauses")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(value.OpPop)
	}
	c.endScope()
}

// ---- expressions (prefix/infix actions wired in rules.go) ----

func (c *compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *compiler) parsePrecedence(prec precedence) {
	p := c.st.parser
	p.advance()
	prefixRule := getRule(p.previous.Kind).prefix
	if prefixRule == nil {
		c.error("Expect expression")
		return
	}

	canAssign := prec <= precAssignment
	prefixRule(c, canAssign)

	for prec <= getRule(p.current.Kind).precedence {
		p.advance()
		infixRule := getRule(p.previous.Kind).infix
		infixRule(c, canAssign)
	}

	if canAssign && p.match(token.EQ) {
		c.error("Invalid assignment target")
	}
}

func (c *compiler) grouping(_ bool) {
	c.expression()
	c.st.parser.consume(token.RPAREN, "Expect ')' after expression")
}

func (c *compiler) unary(_ bool) {
	opType := c.st.parser.previous.Kind
	c.parsePrecedence(precUnary)
	switch opType {
	case token.MINUS:
		c.emitOp(value.OpNegate)
	case token.BANG:
		c.emitOp(value.OpNot)
	}
}

func (c *compiler) binary(_ bool) {
	opType := c.st.parser.previous.Kind
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence.next())

	switch opType {
	case token.BANG_EQ:
		c.emitOp(value.OpEqual)
		c.emitOp(value.OpNot)
	case token.EQ_EQ:
		c.emitOp(value.OpEqual)
	case token.GT:
		c.emitOp(value.OpGreater)
	case token.GT_EQ:
		c.emitOp(value.OpLess)
		c.emitOp(value.OpNot)
	case token.LT:
		c.emitOp(value.OpLess)
	case token.LT_EQ:
		c.emitOp(value.OpGreater)
		c.emitOp(value.OpNot)
	case token.PLUS:
		c.emitOp(value.OpAdd)
	case token.MINUS:
		c.emitOp(value.OpSubtract)
	case token.STAR:
		c.emitOp(value.OpMultiply)
	case token.SLASH:
		c.emitOp(value.OpDivide)
	}
}

func (c *compiler) number(_ bool) {
	f, err := strconv.ParseFloat(c.st.parser.previous.Lexeme, 64)
	if err != nil {
		c.error(fmt.Sprintf("Invalid number literal %q", c.st.parser.previous.Lexeme))
		return
	}
	c.emitConstant(value.Number(f))
}

func (c *compiler) string(_ bool) {
	lex := c.st.parser.previous.Lexeme
	s := c.st.heap.CopyString(lex[1 : len(lex)-1]) // strip the surrounding quotes
	c.emitConstant(s)
}

func (c *compiler) literal(_ bool) {
	switch c.st.parser.previous.Kind {
	case token.FALSE:
		c.emitOp(value.OpFalse)
	case token.TRUE:
		c.emitOp(value.OpTrue)
	case token.NIL:
		c.emitOp(value.OpNil)
	}
}

func (c *compiler) variable(canAssign bool) { c.namedVariable(c.st.parser.previous, canAssign) }

func (c *compiler) this_(_ bool) {
	if c.st.class == nil {
		c.error("Can't use 'this' outside of a class")
		return
	}
	c.namedVariable(c.st.parser.previous, false)
}

func (c *compiler) and_(_ bool) {
	endJump := c.emitJump(value.OpJumpIfFalse)
	c.emitOp(value.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *compiler) or_(_ bool) {
	elseJump := c.emitJump(value.OpJumpIfFalse)
	endJump := c.emitJump(value.OpJump)
	c.patchJump(elseJump)
	c.emitOp(value.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *compiler) call(_ bool) {
	argc := c.argumentList()
	c.emitOpByte(value.OpCall, argc)
}

func (c *compiler) argumentList() byte {
	p := c.st.parser
	var argc int
	if !p.check(token.RPAREN) {
		for {
			c.expression()
			if argc == 255 {
				c.error("Can't have more than 255 arguments")
			}
			argc++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "Expect ')' after arguments")
	return byte(argc)
}

func (c *compiler) dot(canAssign bool) {
	p := c.st.parser
	p.consume(token.IDENT, "Expect property name after '.'")
	name := c.identifierConstant(p.previous)

	switch {
	case canAssign && p.match(token.EQ):
		c.expression()
		c.emitOpByte(value.OpSetProperty, name)
	case p.match(token.LPAREN):
		argc := c.argumentList()
		c.emitOpByte(value.OpInvoke, name)
		c.emitByte(argc)
	default:
		c.emitOpByte(value.OpGetProperty, name)
	}
}
