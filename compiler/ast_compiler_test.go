package compiler

import (
	"testing"

	"lumen/token"
	"lumen/typedast"
	"lumen/types"
	"lumen/value"
)

func tok(tt token.TokenType) token.Token { return token.Token{TokenType: tt, Line: 1} }

func intLit(n int64) typedast.Literal   { return typedast.Literal{Type: types.TInt, Int: n} }
func boolLit(b bool) typedast.Literal   { return typedast.Literal{Type: types.TBool, Bool: b} }

func assertBytes(t *testing.T, got, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("instruction length mismatch - got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d - got %d, want %d (full: got %v, want %v)", i, got[i], want[i], got, want)
		}
	}
}

// Scenario 1: `1 + 2 * 3` -> [IConst1, IConst2, IConst3, IMul, IAdd, Return].
func TestCompile_IntFusion(t *testing.T) {
	mul := typedast.Binary{
		Left: intLit(2), Right: intLit(3), Operator: tok(token.MULT),
		LeftType: types.TInt, RightType: types.TInt, ResultType: types.TInt,
	}
	add := typedast.Binary{
		Left: intLit(1), Right: mul, Operator: tok(token.ADD),
		LeftType: types.TInt, RightType: types.TInt, ResultType: types.TInt,
	}
	stmts := []typedast.Stmt{typedast.ExpressionStmt{Expression: add, Line: 1}}

	mod, err := NewASTCompiler().CompileAST("t", stmts)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	assertBytes(t, mod.Chunks[MainChunkName].Instructions, []byte{
		byte(OP_ICONST1), byte(OP_ICONST2), byte(OP_ICONST3), byte(OP_IMUL), byte(OP_IADD), byte(OP_RETURN),
	})
}

// Boundary case: empty module compiles to a single Return on line 1.
func TestCompile_EmptyModule(t *testing.T) {
	mod, err := NewASTCompiler().CompileAST("t", nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	assertBytes(t, mod.Chunks[MainChunkName].Instructions, []byte{byte(OP_RETURN)})
	if len(mod.Chunks[MainChunkName].Lines) == 0 || mod.Chunks[MainChunkName].Lines[0] != 1 {
		t.Fatalf("Return must land on line 1 for an empty module, got lines=%v", mod.Chunks[MainChunkName].Lines)
	}
}

// Boundary case: `!true` emits [T, Negate, Return].
func TestCompile_NegateTrue(t *testing.T) {
	un := typedast.Unary{Operator: tok(token.BANG), Right: boolLit(true), OperandType: types.TBool}
	stmts := []typedast.Stmt{typedast.ExpressionStmt{Expression: un, Line: 1}}

	mod, err := NewASTCompiler().CompileAST("t", stmts)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	assertBytes(t, mod.Chunks[MainChunkName].Instructions, []byte{
		byte(OP_TRUE), byte(OP_NEGATE), byte(OP_RETURN),
	})
}

// `-0` on an integer is Invert applied to IConst0 - exactly two bytes.
func TestCompile_InvertZero(t *testing.T) {
	un := typedast.Unary{Operator: tok(token.SUB), Right: intLit(0), OperandType: types.TInt}
	stmts := []typedast.Stmt{typedast.ExpressionStmt{Expression: un, Line: 1}}

	mod, err := NewASTCompiler().CompileAST("t", stmts)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	assertBytes(t, mod.Chunks[MainChunkName].Instructions, []byte{
		byte(OP_ICONST0), byte(OP_INVERT), byte(OP_RETURN),
	})
}

// An if with no else omits the unconditional Jump.
func TestCompile_IfNoElseOmitsJump(t *testing.T) {
	stmt := typedast.IfStmt{
		Cond: boolLit(true),
		Then: []typedast.Stmt{typedast.ExpressionStmt{Expression: intLit(1), Line: 2}},
		Line: 1,
	}
	mod, err := NewASTCompiler().CompileAST("t", []typedast.Stmt{stmt})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	instr := mod.Chunks[MainChunkName].Instructions
	// T, JumpIfF <d>, IConst1, Pop, Return - no Jump opcode anywhere.
	for _, b := range instr {
		if Opcode(b) == OP_JUMP {
			t.Fatalf("unconditional Jump must not be emitted when there is no else branch: %v", instr)
		}
	}
}

// Scenario 6, traced per spec section 8's own worked example: with
// `val one = 1` occupying binding slot 0 before `func inc` is declared,
// inc's sole parameter lands on slot 1, so the inc chunk contains exactly
// [LStore1, LLoad1, IConst1, IAdd, Return].
func TestCompile_FunctionChunkShape(t *testing.T) {
	body := []typedast.Stmt{
		typedast.ExpressionStmt{
			Expression: typedast.Binary{
				Left: typedast.Identifier{Name: "n"}, Right: intLit(1), Operator: tok(token.ADD),
				LeftType: types.TInt, RightType: types.TInt, ResultType: types.TInt,
			},
			Line: 1,
		},
	}
	decl := typedast.FunctionDecl{
		Name: "inc", Params: []typedast.Param{{Name: "n", Type: types.TInt}},
		Body: body, ScopeDepth: 0, Line: 2,
	}
	one := typedast.BindingDecl{Name: "one", Initializer: intLit(1), Line: 1}
	mod, err := NewASTCompiler().CompileAST("t", []typedast.Stmt{one, decl})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	incChunk, ok := mod.Chunks["inc"]
	if !ok {
		t.Fatal("expected a chunk named \"inc\"")
	}
	assertBytes(t, incChunk.Instructions, []byte{
		byte(OP_LSTORE1), byte(OP_LLOAD1), byte(OP_ICONST1), byte(OP_IADD), byte(OP_RETURN),
	})
}

func TestAddConstantOverflowPanics(t *testing.T) {
	c := NewASTCompiler()
	c.module = NewModule("t")
	c.currentChunk = MainChunkName
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a DeveloperError panic past 256 constants")
		}
	}()
	for i := 0; i < 300; i++ {
		c.addConstant(value.Int(i))
	}
}
