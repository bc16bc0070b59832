package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/value"
	"github.com/mna/ember/lang/vm"
)

func run(t *testing.T, src string) (stdout, stderr string, result vm.Result) {
	t.Helper()
	heap := value.NewHeap()
	interp := vm.New(heap, vm.Config{})

	var out, errs bytes.Buffer
	interp.Stdout = &out
	interp.Stderr = &errs

	result = interp.Interpret([]byte(src))
	return out.String(), errs.String(), result
}

func TestArithmeticPrecedence(t *testing.T) {
	out, errs, res := run(t, "print 1 + 2 * 3;")
	require.Equal(t, vm.ResultOK, res, errs)
	assert.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, errs, res := run(t, `print "hi" + " " + "there";`)
	require.Equal(t, vm.ResultOK, res, errs)
	assert.Equal(t, "hi there\n", out)
}

func TestClosuresCaptureAndIncrementSharedUpvalue(t *testing.T) {
	src := `
fun makeCounter() {
  var count = 10;
  fun increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
var counter = makeCounter();
print counter();
print counter();
print counter();
`
	out, errs, res := run(t, src)
	require.Equal(t, vm.ResultOK, res, errs)
	assert.Equal(t, "11\n12\n13\n", out)
}

func TestClassInitAndMethodCall(t *testing.T) {
	src := `
class Greeter {
  init(name) {
    this.name = name;
  }
  greet() {
    print "hello " + this.name;
  }
}
var g = Greeter("world");
g.greet();
`
	out, errs, res := run(t, src)
	require.Equal(t, vm.ResultOK, res, errs)
	assert.Equal(t, "hello world\n", out)
}

func TestForLoopSummation(t *testing.T) {
	src := `
var sum = 0;
for (var i = 1; i <= 5; i = i + 1) {
  sum = sum + i;
}
print sum;
`
	out, errs, res := run(t, src)
	require.Equal(t, vm.ResultOK, res, errs)
	assert.Equal(t, "15\n", out)
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	out, errs, res := run(t, "print x;")
	assert.Equal(t, vm.ResultRuntimeError, res)
	assert.Empty(t, out)
	assert.Contains(t, errs, "Undefined variable 'x'")
	assert.Contains(t, errs, "[line 1]")
}

func TestAssigningUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, errs, res := run(t, "x = 1;")
	assert.Equal(t, vm.ResultRuntimeError, res)
	assert.Contains(t, errs, "Undefined variable 'x'")
}

func TestCompileErrorDoesNotRun(t *testing.T) {
	out, _, res := run(t, "print ;")
	assert.Equal(t, vm.ResultCompileError, res)
	assert.Empty(t, out)
}

func TestAddingNumberAndStringIsRuntimeError(t *testing.T) {
	_, errs, res := run(t, `print 1 + "a";`)
	assert.Equal(t, vm.ResultRuntimeError, res)
	assert.Contains(t, errs, "Operands must be two numbers or two strings")
}

func TestNegatingNonNumberIsRuntimeError(t *testing.T) {
	_, errs, res := run(t, `print -"a";`)
	assert.Equal(t, vm.ResultRuntimeError, res)
	assert.Contains(t, errs, "Operand must be a number")
}

func TestCallingUndefinedMethodIsRuntimeError(t *testing.T) {
	src := `
class Box {}
var b = Box();
b.open();
`
	_, errs, res := run(t, src)
	assert.Equal(t, vm.ResultRuntimeError, res)
	assert.Contains(t, errs, "Undefined property 'open'")
}

func TestRuntimeErrorIncludesCallStack(t *testing.T) {
	src := `
fun a() { return b(); }
fun b() { return 1/0 + undefined_name; }
a();
`
	_, errs, res := run(t, src)
	assert.Equal(t, vm.ResultRuntimeError, res)
	assert.Contains(t, errs, "in a()")
}

func TestClockNativeReturnsNumber(t *testing.T) {
	out, errs, res := run(t, "print type(clock());")
	require.Equal(t, vm.ResultOK, res, errs)
	assert.Equal(t, "number\n", out)
}

func TestFieldShadowsMethodOnGet(t *testing.T) {
	src := `
class Box {
  value() { return "method"; }
}
var b = Box();
b.value = "field";
print b.value;
`
	out, errs, res := run(t, src)
	require.Equal(t, vm.ResultOK, res, errs)
	assert.Equal(t, "field\n", out)
}

func TestStressGCStillProducesCorrectResults(t *testing.T) {
	heap := value.NewHeap()
	interp := vm.New(heap, vm.Config{StressGC: true})
	var out, errs bytes.Buffer
	interp.Stdout = &out
	interp.Stderr = &errs

	src := `
class Node {
  init(value, next) {
    this.value = value;
    this.next = next;
  }
}
fun sum(node) {
  if (node == nil) return 0;
  return node.value + sum(node.next);
}
var list = nil;
for (var i = 1; i <= 20; i = i + 1) {
  list = Node(i, list);
}
print sum(list);
`
	res := interp.Interpret([]byte(src))
	require.Equal(t, vm.ResultOK, res, errs.String())
	assert.Equal(t, "210\n", out.String())
}

func TestMaxStepsAbortsRunawayLoop(t *testing.T) {
	heap := value.NewHeap()
	interp := vm.New(heap, vm.Config{MaxSteps: 1000})
	var out, errs bytes.Buffer
	interp.Stdout = &out
	interp.Stderr = &errs

	res := interp.Interpret([]byte(`var i = 0; while (true) { i = i + 1; }`))
	assert.Equal(t, vm.ResultRuntimeError, res)
	assert.Contains(t, errs.String(), "step limit")
}
