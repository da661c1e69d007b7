package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"lumen/compiler"
	"lumen/lexer"
	"lumen/lower"
	"lumen/parser"
	"lumen/vm"

	"github.com/google/subcommands"
)

// runCompiledCmd runs a source file through the lexer/parser/lower
// frontend into a typedast program, compiles it, and executes it on the
// bytecode VM — the "compiled" counterpart to runCmd's tree-walk.
type runCompiledCmd struct {
	disassemble  bool
	dumpBytecode bool
}

func (*runCompiledCmd) Name() string { return "runC" }
func (*runCompiledCmd) Synopsis() string {
	return "Execute lumen code from a source file via the compiler/VM pipeline"
}
func (*runCompiledCmd) Usage() string {
	return `runC <file>:
  Compile and execute lumen code.
`
}

func (r *runCompiledCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.disassemble, "disassemble", false, "disassemble the compiled bytecode to a .dnic file")
	f.BoolVar(&r.dumpBytecode, "dumpBytecode", false, "write the encoded bytecode as hex to a .nic file")
}

func (r *runCompiledCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
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
		for _, pErr := range parseErrs {
			fmt.Fprintln(os.Stderr, pErr)
		}
		return subcommands.ExitFailure
	}

	typed := lower.Program(statements)
	mod, err := compiler.NewASTCompiler().CompileAST("main", typed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return subcommands.ExitFailure
	}

	if r.disassemble {
		if _, dErr := compiler.DisassembleToFile(mod, ""); dErr != nil {
			fmt.Fprintf(os.Stderr, "💥 disassemble error:\n\t%s", dErr.Error())
		}
	}
	if r.dumpBytecode {
		if dErr := compiler.DumpBytecode(mod, ""); dErr != nil {
			fmt.Fprintf(os.Stderr, "💥 dump bytecode error:\n\t%s", dErr.Error())
		}
	}

	result, runErr := vm.New(mod).Run()
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr.Error())
		return subcommands.ExitFailure
	}
	if result != nil {
		fmt.Println(result)
	}
	return subcommands.ExitSuccess
}
