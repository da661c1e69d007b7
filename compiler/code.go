package compiler

import (
	"fmt"

	"lumen/value"
)

// Opcode is a single instruction byte. Most opcodes pop operands from the
// value stack and push one result; a few embed immediate operand bytes
// read directly from the chunk. The VM and compiler must agree
// bit-exactly on each opcode's immediate width: the compiler and the
// disassembler consult the `definitions` table below, and the VM reads
// each opcode's immediates itself with the same widths.
type Opcode byte

const (
	OP_CONSTANT Opcode = iota
	OP_NIL
	OP_ICONST0
	OP_ICONST1
	OP_ICONST2
	OP_ICONST3
	OP_ICONST4
	OP_TRUE
	OP_FALSE

	OP_IADD
	OP_ISUB
	OP_IMUL
	OP_IDIV
	OP_IMOD

	OP_FADD
	OP_FSUB
	OP_FMUL
	OP_FDIV
	OP_FMOD

	OP_I2F
	OP_F2I

	OP_INVERT
	OP_NEGATE

	OP_STR_CONCAT

	OP_AND
	OP_OR
	OP_COALESCE

	OP_LT
	OP_LTE
	OP_GT
	OP_GTE
	OP_EQ
	OP_NEQ

	OP_OPT_MK

	OP_ARR_MK
	OP_ARR_LOAD
	OP_ARR_SLC

	OP_MAP_MK
	OP_MAP_LOAD

	// Reserved per spec section 3's opcode table; this MVP's compiler never
	// emits them. Every BindingDecl resolves to a binding-slot
	// (LStore/LLoad family) regardless of ScopeDepth, since ScopeDepth is
	// metadata the VM never consults (spec Glossary) and spec section 4.2
	// describes no separate global-binding compilation path distinct from
	// slot allocation. Left unreachable rather than wired to an invented
	// "depth 0 means global" rule the teacher's original compiler had but
	// spec.md does not describe.
	OP_GSTORE
	OP_GLOAD

	OP_LSTORE0
	OP_LSTORE1
	OP_LSTORE2
	OP_LSTORE3
	OP_LSTORE4
	OP_LSTORE
	OP_LLOAD0
	OP_LLOAD1
	OP_LLOAD2
	OP_LLOAD3
	OP_LLOAD4
	OP_LLOAD

	// Upvalues/closures: opcode space reserved per spec section 9, never
	// emitted by this MVP's compiler (no capture analysis).
	OP_USTORE0
	OP_USTORE1
	OP_USTORE2
	OP_USTORE3
	OP_USTORE4
	OP_USTORE
	OP_ULOAD0
	OP_ULOAD1
	OP_ULOAD2
	OP_ULOAD3
	OP_ULOAD4
	OP_ULOAD

	OP_JUMP
	OP_JUMP_IF_FALSE
	OP_JUMP_BACK

	OP_INVOKE

	OP_CLOSURE_MK
	OP_CLOSE_UPVALUE
	OP_CLOSE_UPVALUE_AND_POP

	OP_POP
	OP_POPN
	OP_RETURN
)

// OpCodeDefinition names an opcode and the width, in bytes, of each of its
// immediate operands, in order. len(OperandWidths) is the immediate count.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	OP_CONSTANT: {"OP_CONSTANT", []int{1}},
	OP_NIL:      {"OP_NIL", nil},
	OP_ICONST0:  {"OP_ICONST0", nil},
	OP_ICONST1:  {"OP_ICONST1", nil},
	OP_ICONST2:  {"OP_ICONST2", nil},
	OP_ICONST3:  {"OP_ICONST3", nil},
	OP_ICONST4:  {"OP_ICONST4", nil},
	OP_TRUE:     {"OP_TRUE", nil},
	OP_FALSE:    {"OP_FALSE", nil},

	OP_IADD: {"OP_IADD", nil},
	OP_ISUB: {"OP_ISUB", nil},
	OP_IMUL: {"OP_IMUL", nil},
	OP_IDIV: {"OP_IDIV", nil},
	OP_IMOD: {"OP_IMOD", nil},

	OP_FADD: {"OP_FADD", nil},
	OP_FSUB: {"OP_FSUB", nil},
	OP_FMUL: {"OP_FMUL", nil},
	OP_FDIV: {"OP_FDIV", nil},
	OP_FMOD: {"OP_FMOD", nil},

	OP_I2F: {"OP_I2F", nil},
	OP_F2I: {"OP_F2I", nil},

	OP_INVERT: {"OP_INVERT", nil},
	OP_NEGATE: {"OP_NEGATE", nil},

	OP_STR_CONCAT: {"OP_STR_CONCAT", nil},

	OP_AND:      {"OP_AND", nil},
	OP_OR:       {"OP_OR", nil},
	OP_COALESCE: {"OP_COALESCE", nil},

	OP_LT:  {"OP_LT", nil},
	OP_LTE: {"OP_LTE", nil},
	OP_GT:  {"OP_GT", nil},
	OP_GTE: {"OP_GTE", nil},
	OP_EQ:  {"OP_EQ", nil},
	OP_NEQ: {"OP_NEQ", nil},

	OP_OPT_MK: {"OP_OPT_MK", nil},

	OP_ARR_MK:   {"OP_ARR_MK", nil},
	OP_ARR_LOAD: {"OP_ARR_LOAD", nil},
	OP_ARR_SLC:  {"OP_ARR_SLC", nil},

	OP_MAP_MK:   {"OP_MAP_MK", []int{1}},
	OP_MAP_LOAD: {"OP_MAP_LOAD", nil},

	OP_GSTORE: {"OP_GSTORE", nil},
	OP_GLOAD:  {"OP_GLOAD", nil},

	OP_LSTORE0: {"OP_LSTORE0", nil},
	OP_LSTORE1: {"OP_LSTORE1", nil},
	OP_LSTORE2: {"OP_LSTORE2", nil},
	OP_LSTORE3: {"OP_LSTORE3", nil},
	OP_LSTORE4: {"OP_LSTORE4", nil},
	OP_LSTORE:  {"OP_LSTORE", []int{1}},
	OP_LLOAD0:  {"OP_LLOAD0", nil},
	OP_LLOAD1:  {"OP_LLOAD1", nil},
	OP_LLOAD2:  {"OP_LLOAD2", nil},
	OP_LLOAD3:  {"OP_LLOAD3", nil},
	OP_LLOAD4:  {"OP_LLOAD4", nil},
	OP_LLOAD:   {"OP_LLOAD", []int{1}},

	OP_USTORE0: {"OP_USTORE0", nil},
	OP_USTORE1: {"OP_USTORE1", nil},
	OP_USTORE2: {"OP_USTORE2", nil},
	OP_USTORE3: {"OP_USTORE3", nil},
	OP_USTORE4: {"OP_USTORE4", nil},
	OP_USTORE:  {"OP_USTORE", []int{1}},
	OP_ULOAD0:  {"OP_ULOAD0", nil},
	OP_ULOAD1:  {"OP_ULOAD1", nil},
	OP_ULOAD2:  {"OP_ULOAD2", nil},
	OP_ULOAD3:  {"OP_ULOAD3", nil},
	OP_ULOAD4:  {"OP_ULOAD4", nil},
	OP_ULOAD:   {"OP_ULOAD", []int{1}},

	OP_JUMP:          {"OP_JUMP", []int{1}},
	OP_JUMP_IF_FALSE: {"OP_JUMP_IF_FALSE", []int{1}},
	OP_JUMP_BACK:     {"OP_JUMP_BACK", []int{1}},

	// (arity, has_return) — see SPEC_FULL.md section C for why both bytes
	// are always written even though has_return is always 1 in this MVP.
	OP_INVOKE: {"OP_INVOKE", []int{1, 1}},

	OP_CLOSURE_MK:            {"OP_CLOSURE_MK", nil},
	OP_CLOSE_UPVALUE:         {"OP_CLOSE_UPVALUE", nil},
	OP_CLOSE_UPVALUE_AND_POP: {"OP_CLOSE_UPVALUE_AND_POP", nil},

	OP_POP:    {"OP_POP", nil},
	OP_POPN:   {"OP_POPN", []int{1}},
	OP_RETURN: {"OP_RETURN", nil},
}

func Get(op Opcode) (*OpCodeDefinition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode: %d undefined", op)
	}
	return def, nil
}

// MakeInstruction encodes op followed by its operands, each truncated to a
// single unsigned byte per spec section 6 ("jumps are byte-relative and
// unsigned", "constant-table indices are one byte"). Unlike the teacher's
// original BigEndian uint16 encoding, every immediate this VM defines is
// exactly one byte wide, so there is nothing to byte-swap.
func MakeInstruction(op Opcode, operands ...int) []byte {
	def, err := Get(op)
	if err != nil {
		return []byte{}
	}

	instruction := make([]byte, 1+len(def.OperandWidths))
	instruction[0] = byte(op)
	offset := 1
	for i, o := range operands {
		width := def.OperandWidths[i]
		if width != 1 {
			panic(fmt.Sprintf("opcode %s: only single-byte immediates are supported", def.Name))
		}
		instruction[offset] = byte(o)
		offset += width
	}
	return instruction
}

// Bytecode is a single named chunk: a contiguous instruction stream, a
// parallel run-length line table, and the count of binding slots this
// chunk itself declared (spec section 3's "Chunk").
type Bytecode struct {
	Instructions []byte
	// Lines[i] is the number of instruction bytes emitted for source line
	// i+1 (the first emitted byte establishes line 1).
	Lines []int
	// NumBindings is the number of BindingDescriptors appended to the
	// owning module's shared Bindings vector while this chunk was current.
	NumBindings int
}

// BindingDescriptor names one binding slot. Module.Bindings is a flat,
// append-only vector shared by every chunk in the module; an index into
// it is frozen at allocation time and doubles, at run time, as the VM's
// stack-slot offset within whichever frame owns it (spec section 3/9).
type BindingDescriptor struct {
	Name       string
	ScopeDepth int
}

// Module is the compiler's output and the VM's input (spec section 3's
// "CompiledModule").
type Module struct {
	Name      string
	Chunks    map[string]*Bytecode
	Constants []value.Value
	Bindings  []BindingDescriptor
}

const MainChunkName = "main"

func NewModule(name string) *Module {
	return &Module{
		Name:   name,
		Chunks: map[string]*Bytecode{MainChunkName: {}},
	}
}
