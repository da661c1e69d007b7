package compiler

import (
	"strings"
	"testing"
)

func TestDisassembleInstruction_NoOperand(t *testing.T) {
	code := []byte{byte(OP_RETURN)}
	line, width, err := DisassembleInstruction(code, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if width != 1 {
		t.Fatalf("got width %d, want 1", width)
	}
	if line != "0000 OP_RETURN" {
		t.Fatalf("got %q", line)
	}
}

func TestDisassembleInstruction_OneOperand(t *testing.T) {
	code := []byte{byte(OP_CONSTANT), 5}
	line, width, err := DisassembleInstruction(code, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if width != 2 {
		t.Fatalf("got width %d, want 2", width)
	}
	if line != "0000 OP_CONSTANT 5" {
		t.Fatalf("got %q", line)
	}
}

func TestDisassemble_WalksEveryChunk(t *testing.T) {
	mod := NewModule("t")
	mod.Chunks[MainChunkName].Instructions = []byte{byte(OP_ICONST1), byte(OP_RETURN)}
	mod.Chunks["inc"] = &Bytecode{Instructions: []byte{byte(OP_LLOAD0), byte(OP_RETURN)}}

	text, err := Disassemble(mod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"== main ==", "== inc ==", "OP_ICONST1", "OP_LLOAD0"} {
		if !strings.Contains(text, want) {
			t.Fatalf("disassembly missing %q in:\n%s", want, text)
		}
	}
}
