package compiler

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mna/ember/lang/value"
)

// Disassemble writes a human-readable listing of every instruction in
// chunk to w, labeled with name. It exists for debug tracing (see the
// EMBER_TRACE_EXEC toggle in package vm) and is never consulted by the
// compiler or VM themselves.
func Disassemble(w io.Writer, chunk *value.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = DisassembleInstruction(w, chunk, offset)
	}
}

// DisassembleInstruction writes the single instruction at offset to w and
// returns the offset of the instruction that follows it.
func DisassembleInstruction(w io.Writer, chunk *value.Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", chunk.Lines[offset])
	}

	op := value.OpCode(chunk.Code[offset])
	switch op {
	case value.OpConstant, value.OpGetGlobal, value.OpSetGlobal, value.OpDefineGlobal,
		value.OpGetProperty, value.OpSetProperty, value.OpClass, value.OpMethod:
		return constantInst(w, op, chunk, offset)
	case value.OpGetLocal, value.OpSetLocal, value.OpGetUpvalue, value.OpSetUpvalue, value.OpCall:
		return byteInst(w, op, chunk, offset)
	case value.OpJump, value.OpJumpIfFalse:
		return jumpInst(w, op, chunk, offset, 1)
	case value.OpLoop:
		return jumpInst(w, op, chunk, offset, -1)
	case value.OpInvoke:
		return invokeInst(w, op, chunk, offset)
	case value.OpClosure:
		return closureInst(w, chunk, offset)
	default:
		return simpleInst(w, op, offset)
	}
}

func simpleInst(w io.Writer, op value.OpCode, offset int) int {
	fmt.Fprintln(w, op)
	return offset + 1
}

func byteInst(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-18s %4d\n", op, slot)
	return offset + 2
}

func constantInst(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-18s %4d '%s'\n", op, idx, chunk.Constants[idx])
	return offset + 2
}

func invokeInst(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	argc := chunk.Code[offset+2]
	fmt.Fprintf(w, "%-18s (%d args) %4d '%s'\n", op, argc, idx, chunk.Constants[idx])
	return offset + 3
}

func jumpInst(w io.Writer, op value.OpCode, chunk *value.Chunk, offset, sign int) int {
	jump := int(binary.BigEndian.Uint16(chunk.Code[offset+1 : offset+3]))
	fmt.Fprintf(w, "%-18s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func closureInst(w io.Writer, chunk *value.Chunk, offset int) int {
	offset++
	idx := chunk.Code[offset]
	offset++
	fn := chunk.Constants[idx].(*value.ObjFunction)
	fmt.Fprintf(w, "%-18s %4d '%s'\n", value.OpClosure, idx, fn)

	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		index := chunk.Code[offset+1]
		offset += 2
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset-2, kind, index)
	}
	return offset
}
