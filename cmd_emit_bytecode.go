package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"lumen/compiler"
	"lumen/lexer"
	"lumen/lower"
	"lumen/parser"

	"github.com/google/subcommands"
)

type emitBytecodeCmd struct {
	disassemble  bool
	dumpBytecode bool
}

func (*emitBytecodeCmd) Name() string { return "emit" }
func (*emitBytecodeCmd) Synopsis() string {
	return "Emit the bytecode representation of a source file without running it"
}
func (*emitBytecodeCmd) Usage() string {
	return `lumen emit <file>`
}

func (cmd *emitBytecodeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.disassemble, "disassemble", true, "disassemble the bytecode to a .dnic file")
	f.BoolVar(&cmd.dumpBytecode, "dumpBytecode", true, "write the encoded bytecode as hex to a .nic file")
}

func (cmd *emitBytecodeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}
	sourceFile := args[0]
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file:\n\t%v", err.Error())
		return subcommands.ExitFailure
	}

	lex := lexer.New(string(data))
	tokens, err := lex.Scan()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lexing error: %v\n", err)
		return subcommands.ExitFailure
	}

	p := parser.Make(tokens)
	statements, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		fmt.Fprintf(os.Stderr, "💥 Parsing error:\n")
		for _, pErr := range parseErrs {
			fmt.Fprintf(os.Stderr, "\t%v\n", pErr)
		}
		return subcommands.ExitFailure
	}

	typed := lower.Program(statements)
	mod, cErr := compiler.NewASTCompiler().CompileAST("main", typed)
	if cErr != nil {
		fmt.Fprintf(os.Stderr, "💥 Compilation error:\n\t%v\n", cErr)
		return subcommands.ExitFailure
	}

	fileName := strings.TrimSuffix(sourceFile, ".lumen")

	if cmd.disassemble {
		if _, dErr := compiler.DisassembleToFile(mod, fileName); dErr != nil {
			fmt.Fprintf(os.Stderr, "💥 Bytecode disassemble error:\n\t%s", dErr.Error())
			return subcommands.ExitFailure
		}
	}

	if cmd.dumpBytecode {
		if dErr := compiler.DumpBytecode(mod, fileName); dErr != nil {
			fmt.Fprintf(os.Stderr, "💥 Dump bytecode error:\n\t%s", dErr.Error())
			return subcommands.ExitFailure
		}
	}

	return subcommands.ExitSuccess
}
