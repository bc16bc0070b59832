package compiler_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/compiler"
	"github.com/mna/ember/lang/value"
)

func compileOK(t *testing.T, src string) *value.ObjFunction {
	t.Helper()
	h := value.NewHeap()
	fn, err := compiler.Compile([]byte(src), h)
	require.NoError(t, err)
	require.NotNil(t, fn)
	return fn
}

func disasm(fn *value.ObjFunction) string {
	var buf bytes.Buffer
	compiler.Disassemble(&buf, &fn.Chunk, fn.String())
	return buf.String()
}

func TestArithmeticPrecedence(t *testing.T) {
	fn := compileOK(t, "print 1 + 2 * 3;")
	out := disasm(fn)
	assert.Contains(t, out, "OP_MULTIPLY")
	assert.Contains(t, out, "OP_ADD")
	assert.Contains(t, out, "OP_PRINT")
}

func TestStringConcatenation(t *testing.T) {
	fn := compileOK(t, `var a = "hi "; var b = "there"; print a + b;`)
	out := disasm(fn)
	assert.Contains(t, out, "OP_DEFINE_GLOBAL")
	assert.Contains(t, out, "OP_ADD")
}

func TestClosureCapturesUpvalue(t *testing.T) {
	src := `fun make(n){ fun inc(){ n = n + 1; return n; } return inc; } var c = make(10);`
	fn := compileOK(t, src)
	out := disasm(fn)
	assert.Contains(t, out, "OP_CLOSURE")

	// Disassemble lists a single chunk, so the capture shows up in make's own
	// chunk (constant 1 of the script): inc's OP_CLOSURE carries the operand
	// pair for make's local slot 1, n.
	makeFn := fn.Chunk.Constants[1].(*value.ObjFunction)
	assert.Contains(t, disasm(makeFn), "local 1")
}

func TestClassInitAndMethodCall(t *testing.T) {
	src := `class Greeter { init(name){ this.name = name; } hello(){ print "hello " + this.name; } } Greeter("world").hello();`
	fn := compileOK(t, src)
	out := disasm(fn)
	assert.Contains(t, out, "OP_CLASS")
	assert.Contains(t, out, "OP_METHOD")
	assert.Contains(t, out, "OP_INVOKE")
}

func TestForLoopSummation(t *testing.T) {
	src := `var sum = 0; for (var i = 1; i <= 5; i = i + 1) sum = sum + i; print sum;`
	fn := compileOK(t, src)
	out := disasm(fn)
	assert.Contains(t, out, "OP_LOOP")
	assert.Contains(t, out, "OP_JUMP_IF_FALSE")
}

func TestUndefinedVariableCompilesFine(t *testing.T) {
	// referencing an undefined global is a *runtime* error, not a compile
	// error: the compiler has no notion of which globals exist.
	compileOK(t, "print x;")
}

func TestDuplicateLocalIsCompileError(t *testing.T) {
	h := value.NewHeap()
	_, err := compiler.Compile([]byte("{ var a = 1; var a = 2; }"), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Already a variable with this name in this scope")
}

func TestReadingOwnInitializerIsCompileError(t *testing.T) {
	h := value.NewHeap()
	_, err := compiler.Compile([]byte("{ var a = a; }"), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "own initializer")
}

func TestReturnAtTopLevelIsCompileError(t *testing.T) {
	h := value.NewHeap()
	_, err := compiler.Compile([]byte("return 1;"), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top-level")
}

func TestReturnValueFromInitializerIsCompileError(t *testing.T) {
	h := value.NewHeap()
	src := `class C { init(){ return 1; } }`
	_, err := compiler.Compile([]byte(src), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initializer")
}

func TestThisOutsideClassIsCompileError(t *testing.T) {
	h := value.NewHeap()
	_, err := compiler.Compile([]byte("print this;"), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside of a class")
}

func TestInvalidAssignmentTarget(t *testing.T) {
	h := value.NewHeap()
	_, err := compiler.Compile([]byte("1 + 2 = 3;"), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid assignment target")
}

func TestSynchronizationReportsOneErrorPerBadStatement(t *testing.T) {
	h := value.NewHeap()
	src := "var ; var ;"
	_, err := compiler.Compile([]byte(src), h)
	require.Error(t, err)
	lines := strings.Split(err.Error(), "\n")
	assert.Len(t, lines, 2)
}
