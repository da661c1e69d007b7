package compiler

import "testing"

func TestMakeInstruction(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []int
		expected []byte
	}{
		{OP_CONSTANT, []int{5}, []byte{byte(OP_CONSTANT), 5}},
		{OP_RETURN, []int{}, []byte{byte(OP_RETURN)}},
		{OP_IADD, []int{}, []byte{byte(OP_IADD)}},
		{OP_LSTORE, []int{7}, []byte{byte(OP_LSTORE), 7}},
		{OP_LLOAD, []int{7}, []byte{byte(OP_LLOAD), 7}},
		{OP_JUMP_IF_FALSE, []int{200}, []byte{byte(OP_JUMP_IF_FALSE), 200}},
		{OP_MAP_MK, []int{3}, []byte{byte(OP_MAP_MK), 3}},
		{OP_INVOKE, []int{2, 1}, []byte{byte(OP_INVOKE), 2, 1}},
		{OP_LSTORE0, []int{}, []byte{byte(OP_LSTORE0)}},
	}

	for _, tt := range tests {
		instruction := MakeInstruction(tt.op, tt.operands...)
		if len(instruction) != len(tt.expected) {
			t.Fatalf("%v: wrong length - got %d, want %d", tt.op, len(instruction), len(tt.expected))
		}
		for i, b := range tt.expected {
			if instruction[i] != b {
				t.Errorf("%v: byte %d - got %d, want %d", tt.op, i, instruction[i], b)
			}
		}
	}
}

func TestGetUnknownOpcode(t *testing.T) {
	if _, err := Get(Opcode(250)); err == nil {
		t.Fatal("expected an error for an undefined opcode")
	}
}

func TestNewModuleHasMainChunk(t *testing.T) {
	mod := NewModule("test")
	if _, ok := mod.Chunks[MainChunkName]; !ok {
		t.Fatal("NewModule must seed a main chunk")
	}
}
