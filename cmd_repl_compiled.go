package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"lumen/compiler"
	"lumen/lexer"
	"lumen/lower"
	"lumen/parser"
	"lumen/token"
	"lumen/vm"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"
)

type replCompiledCmd struct {
	disassemble  bool
	dumpBytecode bool
}

func (*replCompiledCmd) Name() string { return "cRepl" }
func (*replCompiledCmd) Synopsis() string {
	return "Start a REPL session driven by the compiler/VM pipeline"
}
func (*replCompiledCmd) Usage() string {
	return `lumen cRepl`
}

func (cmd *replCompiledCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.disassemble, "disassemble", false, "disassemble each compiled line to a .dnic file")
	f.BoolVar(&cmd.dumpBytecode, "dumpBytecode", false, "write each compiled line's bytecode as hex to a .nic file")
	f.BoolVar(&cmd.disassemble, "di", false, "shorthand for -disassemble")
	f.BoolVar(&cmd.dumpBytecode, "du", false, "shorthand for -dumpBytecode")
}

func (cmd *replCompiledCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("\nWelcome to the lumen programming language!")
	fmt.Println("")

	rl, err := readline.NewEx(&readline.Config{Prompt: ">>> "})
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %s", err.Error())
		return subcommands.ExitFailure
	}
	defer rl.Close()

	astCompiler := compiler.NewASTCompiler()
	var buffer strings.Builder

	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buffer.Len() == 0 {
				break
			}
			buffer.Reset()
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("💥 %s\n", err.Error())
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			break
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		lex := lexer.New(source)
		tokens, lexErr := lex.Scan()
		if lexErr != nil {
			fmt.Println(lexErr)
			buffer.Reset()
			continue
		}

		if !isInputReady(tokens) {
			continue
		}

		p := parser.Make(tokens)
		statements, parseErrs := p.Parse()
		if len(parseErrs) > 0 {
			// If every parse error is a syntax error positioned at the EOF
			// token, the user has not finished typing yet; wait for more
			// input instead of reporting an error.
			if allParseErrorsAtEOF(parseErrs, tokens[len(tokens)-1]) {
				continue
			}
			fmt.Printf("Parse error: ")
			for _, pErr := range parseErrs {
				fmt.Printf("%v\n", pErr)
			}
			buffer.Reset()
			continue
		}

		typed := lower.Program(statements)
		mod, cErr := astCompiler.CompileAST("repl", typed)
		if cErr != nil {
			fmt.Println(cErr.Error())
			buffer.Reset()
			continue
		}

		if cmd.disassemble {
			if _, dErr := compiler.DisassembleToFile(mod, ""); dErr != nil {
				fmt.Printf("💥 Bytecode disassemble error:\n\t%s\n", dErr.Error())
			}
		}
		if cmd.dumpBytecode {
			if dErr := compiler.DumpBytecode(mod, ""); dErr != nil {
				fmt.Printf("💥 Dump bytecode error:\n\t%s\n", dErr.Error())
			}
		}

		result, runErr := vm.New(mod).Run()
		if runErr != nil {
			fmt.Println(runErr.Error())
			buffer.Reset()
			continue
		}
		if result != nil {
			fmt.Println(result)
		}
		buffer.Reset()
	}
	return subcommands.ExitSuccess
}

// isInputReady checks if the input is ready to be parsed and executed. It checks for balanced parentheses and braces,
// and also checks if the last non-EOF token is an operator or a keyword that expects more input.
//
// For example, if the user types `if (x > 5) {`, the REPL should wait for more input until the
// user finishes the block with a `}`.
func isInputReady(tokens []token.Token) bool {

	braceBalance := 0
	parenBalance := 0
	for _, tok := range tokens {
		switch tok.TokenType {
		case token.LCUR:
			braceBalance++
		case token.RCUR:
			braceBalance--
		case token.LPA:
			parenBalance++
		case token.RPA:
			parenBalance--
		}
	}

	if braceBalance > 0 || parenBalance > 0 {
		return false
	}

	last := lastNonEOF(tokens)
	if last == nil {
		return true
	}

	switch last.TokenType {
	case token.ASSIGN,
		token.ADD,
		token.SUB,
		token.MULT,
		token.DIV,
		token.BANG,
		token.EQUAL_EQUAL,
		token.NOT_EQUAL,
		token.LESS,
		token.LESS_EQUAL,
		token.LARGER,
		token.LARGER_EQUAL,
		token.COMMA,
		token.LPA,
		token.LCUR,
		token.IF,
		token.ELSE,
		token.ELIF,
		token.WHILE,
		token.FOR,
		token.FUNC,
		token.RETURN,
		token.VAR,
		token.CONST,
		token.AND,
		token.OR,
		token.PRINT:
		return false
	}

	return true
}

// lastNonEOF returns the last non-EOF token from the list of tokens. If all tokens are EOF, it returns nil.
func lastNonEOF(tokens []token.Token) *token.Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].TokenType != token.EOF {
			return &tokens[i]
		}
	}
	return nil
}

// allParseErrorsAtEOF checks if all parse errors are syntax errors that occur at the position of the EOF token.
func allParseErrorsAtEOF(parseErrs []error, eof token.Token) bool {
	for _, parseErr := range parseErrs {
		syntaxErr, ok := parseErr.(parser.SyntaxError)
		if !ok {
			return false
		}
		if syntaxErr.Line != eof.Line || syntaxErr.Column != eof.Column {
			return false
		}
	}
	return len(parseErrs) > 0
}
