package compiler

import (
	"fmt"
	"os"
	"strings"
)

// DisassembleInstruction renders one instruction starting at code[ip] as
// "ip OP_NAME operand operand" (ip zero-padded to four digits), returning the instruction's total byte
// width. Grounded on the teacher's ast_compiler.go DiassembleInstruction/
// DiassembleBytecode pair, generalized from its per-opcode switch (which
// only made sense for the teacher's fixed two-byte operand width) to the
// shared `definitions` table every opcode in this instruction set already
// carries its own operand widths in.
func DisassembleInstruction(code []byte, ip int) (string, int, error) {
	op := Opcode(code[ip])
	def, err := Get(op)
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%04d %s", ip, def.Name)
	offset := ip + 1
	for _, width := range def.OperandWidths {
		if width != 1 {
			return "", 0, fmt.Errorf("opcode %s: only single-byte immediates are supported", def.Name)
		}
		if offset >= len(code) {
			return "", 0, fmt.Errorf("opcode %s: truncated operand at byte %d", def.Name, offset)
		}
		fmt.Fprintf(&b, " %d", code[offset])
		offset++
	}
	return b.String(), offset - ip, nil
}

// Disassemble renders every chunk of mod as human-readable text, one
// instruction per line, chunk name as a header — the multi-chunk analog
// of the teacher's single-bytecode DiassembleBytecode.
func Disassemble(mod *Module) (string, error) {
	var b strings.Builder
	for name, chunk := range mod.Chunks {
		fmt.Fprintf(&b, "== %s ==\n", name)
		ip := 0
		for ip < len(chunk.Instructions) {
			line, width, err := DisassembleInstruction(chunk.Instructions, ip)
			if err != nil {
				return "", fmt.Errorf("chunk %q: %w", name, err)
			}
			b.WriteString(line)
			b.WriteByte('\n')
			ip += width
		}
	}
	return b.String(), nil
}

// DumpBytecode writes mod's raw instruction bytes (main chunk only, hex
// encoded) to filePath+".nic", matching the teacher's DumpBytecode naming
// convention and file extension exactly.
func DumpBytecode(mod *Module, filePath string) error {
	if filePath == "" {
		filePath = "bytecode"
	}
	f, err := os.Create(filePath + ".nic")
	if err != nil {
		return fmt.Errorf("error creating lumen bytecode file: %w", err)
	}
	defer f.Close()

	encoded := fmt.Sprintf("%x", mod.Chunks[MainChunkName].Instructions)
	_, err = f.WriteString(encoded)
	return err
}

// DisassembleToFile writes Disassemble's output to filePath+".dnic",
// mirroring the teacher's "-diassemble" flag convention.
func DisassembleToFile(mod *Module, filePath string) (string, error) {
	text, err := Disassemble(mod)
	if err != nil {
		return "", err
	}
	if filePath == "" {
		filePath = "bytecode"
	}
	if err := os.WriteFile(filePath+".dnic", []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("error writing disassembly file: %w", err)
	}
	return text, nil
}
