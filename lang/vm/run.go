package vm

import (
	"fmt"

	"github.com/mna/ember/lang/compiler"
	"github.com/mna/ember/lang/value"
)

// run is the dispatch loop: it reads opcodes from the topmost call frame
// until the outermost RETURN unwinds the last frame (ResultOK), a runtime
// error is raised (ResultRuntimeError), or the step budget is exhausted.
func (vm *VM) run() Result {
	frame := &vm.frames[vm.frameCount-1]

	for {
		if vm.Config.MaxSteps > 0 {
			vm.steps++
			if vm.steps > vm.Config.MaxSteps {
				vm.runtimeError("Execution step limit exceeded")
				return ResultRuntimeError
			}
		}
		if vm.Config.TraceExec {
			vm.traceInstruction(frame)
		}

		switch op := value.OpCode(frame.readByte()); op {
		case value.OpConstant:
			vm.push(frame.readConstant())

		case value.OpNil:
			vm.push(value.Nil)
		case value.OpTrue:
			vm.push(value.Bool(true))
		case value.OpFalse:
			vm.push(value.Bool(false))
		case value.OpPop:
			vm.pop()

		case value.OpGetLocal:
			slot := int(frame.readByte())
			vm.push(vm.stack[frame.slots+slot])
		case value.OpSetLocal:
			slot := int(frame.readByte())
			vm.stack[frame.slots+slot] = vm.peek(0)

		case value.OpGetUpvalue:
			slot := frame.readByte()
			vm.push(*frame.closure.Upvalues[slot].Location)
		case value.OpSetUpvalue:
			slot := frame.readByte()
			*frame.closure.Upvalues[slot].Location = vm.peek(0)

		case value.OpGetGlobal:
			name := frame.readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				vm.runtimeError("Undefined variable '%s'", name.Chars)
				return ResultRuntimeError
			}
			vm.push(v)
		case value.OpDefineGlobal:
			name := frame.readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case value.OpSetGlobal:
			name := frame.readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				vm.runtimeError("Undefined variable '%s'", name.Chars)
				return ResultRuntimeError
			}

		case value.OpGetProperty:
			name := frame.readString()
			inst, ok := vm.peek(0).(*value.ObjInstance)
			if !ok {
				vm.runtimeError("Only instances have properties")
				return ResultRuntimeError
			}
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
			} else if !vm.bindMethod(inst.Class, name) {
				return ResultRuntimeError
			}
		case value.OpSetProperty:
			name := frame.readString()
			inst, ok := vm.peek(1).(*value.ObjInstance)
			if !ok {
				vm.runtimeError("Only instances have fields")
				return ResultRuntimeError
			}
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case value.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case value.OpGreater:
			if !vm.binaryNumberOp(op) {
				return ResultRuntimeError
			}
		case value.OpLess:
			if !vm.binaryNumberOp(op) {
				return ResultRuntimeError
			}

		case value.OpAdd:
			if sa, ok := isString(vm.peek(1)); ok {
				if sb, ok := isString(vm.peek(0)); ok {
					// Both operands stay on the stack (and so rooted) while
					// TakeString allocates; only once the result exists do we
					// pop the operands and push it.
					result := vm.heap.TakeString(sa.Chars + sb.Chars)
					vm.pop()
					vm.pop()
					vm.push(result)
					break
				}
			}
			if na, ok := isNumber(vm.peek(1)); ok {
				if nb, ok := isNumber(vm.peek(0)); ok {
					vm.pop()
					vm.pop()
					vm.push(na + nb)
					break
				}
			}
			vm.runtimeError("Operands must be two numbers or two strings")
			return ResultRuntimeError
		case value.OpSubtract, value.OpMultiply, value.OpDivide:
			if !vm.binaryNumberOp(op) {
				return ResultRuntimeError
			}

		case value.OpNot:
			vm.push(value.Bool(!vm.pop().Truth()))
		case value.OpNegate:
			n, ok := isNumber(vm.peek(0))
			if !ok {
				vm.runtimeError("Operand must be a number")
				return ResultRuntimeError
			}
			vm.pop()
			vm.push(-n)

		case value.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.pop())

		case value.OpJump:
			offset := frame.readShort()
			frame.ip += offset
		case value.OpJumpIfFalse:
			offset := frame.readShort()
			if !vm.peek(0).Truth() {
				frame.ip += offset
			}
		case value.OpLoop:
			offset := frame.readShort()
			frame.ip -= offset

		case value.OpCall:
			argc := int(frame.readByte())
			if !vm.callValue(vm.peek(argc), argc) {
				return ResultRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]
		case value.OpInvoke:
			name := frame.readString()
			argc := int(frame.readByte())
			if !vm.invoke(name, argc) {
				return ResultRuntimeError
			}
			frame = &vm.frames[vm.frameCount-1]

		case value.OpClosure:
			fn := frame.readConstant().(*value.ObjFunction)
			closure := vm.heap.NewClosure(fn)
			vm.push(closure)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := frame.readByte()
				index := frame.readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slots + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
		case value.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case value.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return ResultOK
			}
			vm.stackTop = frame.slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		case value.OpClass:
			vm.push(vm.heap.NewClass(frame.readString()))
		case value.OpMethod:
			vm.defineMethod(frame.readString())

		default:
			vm.runtimeError("Unknown opcode %d", op)
			return ResultRuntimeError
		}
	}
}

// binaryNumberOp implements the five arithmetic/comparison opcodes that
// require two Number operands (ADD is handled separately above because it
// also accepts two Strings). It pops both operands, pushes the result, and
// reports whether the operands were valid; on failure it has already
// called runtimeError.
func (vm *VM) binaryNumberOp(op value.OpCode) bool {
	b, bok := isNumber(vm.peek(0))
	a, aok := isNumber(vm.peek(1))
	if !aok || !bok {
		vm.runtimeError("Operands must be numbers")
		return false
	}
	vm.pop()
	vm.pop()

	switch op {
	case value.OpGreater:
		vm.push(value.Bool(a > b))
	case value.OpLess:
		vm.push(value.Bool(a < b))
	case value.OpSubtract:
		vm.push(a - b)
	case value.OpMultiply:
		vm.push(a * b)
	case value.OpDivide:
		vm.push(a / b)
	}
	return true
}

func (vm *VM) traceInstruction(frame *callFrame) {
	fmt.Fprint(vm.Stderr, "          ")
	for i := 0; i < vm.stackTop; i++ {
		fmt.Fprintf(vm.Stderr, "[ %s ]", vm.stack[i])
	}
	fmt.Fprintln(vm.Stderr)
	compiler.DisassembleInstruction(vm.Stderr, &frame.closure.Function.Chunk, frame.ip)
}
