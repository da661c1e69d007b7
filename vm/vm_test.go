package vm

import (
	"testing"

	"lumen/compiler"
	"lumen/token"
	"lumen/typedast"
	"lumen/types"
	"lumen/value"
)

func tok(tt token.TokenType) token.Token { return token.Token{TokenType: tt, Line: 1} }

func intLit(n int64) typedast.Literal { return typedast.Literal{Type: types.TInt, Int: n} }

func compileAndRun(t *testing.T, stmts []typedast.Stmt) value.Value {
	t.Helper()
	mod, err := compiler.NewASTCompiler().CompileAST("t", stmts)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	result, err := New(mod).Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return result
}

// Scenario 1: `1 + 2 * 3` -> Int(7).
func TestRun_IntFusion(t *testing.T) {
	mul := typedast.Binary{
		Left: intLit(2), Right: intLit(3), Operator: tok(token.MULT),
		LeftType: types.TInt, RightType: types.TInt, ResultType: types.TInt,
	}
	add := typedast.Binary{
		Left: intLit(1), Right: mul, Operator: tok(token.ADD),
		LeftType: types.TInt, RightType: types.TInt, ResultType: types.TInt,
	}
	result := compileAndRun(t, []typedast.Stmt{typedast.ExpressionStmt{Expression: add, Line: 1}})
	if i, ok := result.(value.Int); !ok || i != 7 {
		t.Fatalf("got %v, want Int(7)", result)
	}
}

// Scenario 2: `val a = 1; var b = 2; val c = b = a = 3` -> result Int(3).
func TestRun_AssignmentChain(t *testing.T) {
	stmts := []typedast.Stmt{
		typedast.BindingDecl{Name: "a", Initializer: intLit(1), Line: 1},
		typedast.BindingDecl{Name: "b", Initializer: intLit(2), Line: 2},
		typedast.BindingDecl{
			Name: "c",
			Initializer: typedast.Assignment{
				Name: "b",
				Value: typedast.Assignment{
					Name:  "a",
					Value: intLit(3),
				},
			},
			Line: 3,
		},
	}
	result := compileAndRun(t, stmts)
	if i, ok := result.(value.Int); !ok || i != 3 {
		t.Fatalf("got %v, want Int(3)", result)
	}
}

// Scenario 3: `if (1 == 2) 123 else 456` as expression -> Int(456).
func TestRun_IfExprElseBranch(t *testing.T) {
	cond := typedast.Binary{
		Left: intLit(1), Right: intLit(2), Operator: tok(token.EQUAL_EQUAL),
		LeftType: types.TInt, RightType: types.TInt, ResultType: types.TBool,
	}
	ifExpr := typedast.IfExpr{
		Cond: cond,
		Then: []typedast.Stmt{typedast.ExpressionStmt{Expression: intLit(123), Line: 1}},
		Else: []typedast.Stmt{typedast.ExpressionStmt{Expression: intLit(456), Line: 1}},
		Line: 1,
	}
	result := compileAndRun(t, []typedast.Stmt{typedast.ExpressionStmt{Expression: ifExpr, Line: 1}})
	if i, ok := result.(value.Int); !ok || i != 456 {
		t.Fatalf("got %v, want Int(456)", result)
	}
}

// Scenario 4: `[1,2,3,4,5][3+1]` -> Some(Int(5)).
func TestRun_ArrayIndexing(t *testing.T) {
	arr := typedast.Array{
		Items: []typedast.Expression{intLit(1), intLit(2), intLit(3), intLit(4), intLit(5)},
		ElemType: types.TInt,
	}
	idx := typedast.Binary{
		Left: intLit(3), Right: intLit(1), Operator: tok(token.ADD),
		LeftType: types.TInt, RightType: types.TInt, ResultType: types.TInt,
	}
	indexing := typedast.Indexing{Target: arr, TargetType: types.TArray(types.TInt), Mode: typedast.IndexSingle, Index: idx}
	result := compileAndRun(t, []typedast.Stmt{typedast.ExpressionStmt{Expression: indexing, Line: 1}})

	obj, ok := result.(*value.Obj)
	if !ok {
		t.Fatalf("got %v, want a boxed OptionObj", result)
	}
	opt, ok := obj.Payload.(*value.OptionObj)
	if !ok || !opt.Some {
		t.Fatalf("got %v, want Some(...)", result)
	}
	if i, ok := opt.Inner.(value.Int); !ok || i != 5 {
		t.Fatalf("got inner %v, want Int(5)", opt.Inner)
	}
}

// Indexing a map must emit OP_MAP_LOAD, not OP_ARR_LOAD, so a map built
// via MapMk can actually be read back by key.
func TestRun_MapIndexing(t *testing.T) {
	lit := typedast.MapLiteral{
		Keys:   []typedast.Expression{typedast.Literal{Type: types.TString, Str: "k"}},
		Values: []typedast.Expression{intLit(5)},
	}
	indexing := typedast.Indexing{
		Target: lit, TargetType: types.TMap, Mode: typedast.IndexSingle,
		Index: typedast.Literal{Type: types.TString, Str: "k"},
	}
	result := compileAndRun(t, []typedast.Stmt{typedast.ExpressionStmt{Expression: indexing, Line: 1}})

	obj, ok := result.(*value.Obj)
	if !ok {
		t.Fatalf("got %v, want a boxed OptionObj", result)
	}
	opt, ok := obj.Payload.(*value.OptionObj)
	if !ok || !opt.Some {
		t.Fatalf("got %v, want Some(...)", result)
	}
	if i, ok := opt.Inner.(value.Int); !ok || i != 5 {
		t.Fatalf("got inner %v, want Int(5)", opt.Inner)
	}
}

// Scenario 5: `"abc"[-1:]` -> StringObj("c").
func TestRun_StringSliceNegativeStart(t *testing.T) {
	str := typedast.Literal{Type: types.TString, Str: "abc"}
	indexing := typedast.Indexing{
		Target: str, TargetType: types.TString, Mode: typedast.IndexRange,
		Start: typedast.Unary{Operator: tok(token.SUB), Right: intLit(1), OperandType: types.TInt},
		End:   nil,
	}
	result := compileAndRun(t, []typedast.Stmt{typedast.ExpressionStmt{Expression: indexing, Line: 1}})
	obj, ok := result.(*value.Obj)
	if !ok {
		t.Fatalf("got %v, want a boxed StringObj", result)
	}
	s, ok := obj.Payload.(*value.StringObj)
	if !ok || s.S != "c" {
		t.Fatalf("got %v, want StringObj(\"c\")", result)
	}
}

// Scenario 6: func inc(n: Int) { n + 1 }; inc(number: 1) -> Int(2).
func TestRun_Invocation(t *testing.T) {
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
		Body: body, Line: 1,
	}
	call := typedast.Invocation{Callee: "inc", Args: []typedast.Expression{intLit(1)}}
	result := compileAndRun(t, []typedast.Stmt{decl, typedast.ExpressionStmt{Expression: call, Line: 2}})
	if i, ok := result.(value.Int); !ok || i != 2 {
		t.Fatalf("got %v, want Int(2)", result)
	}
}

func TestRun_StackEmptyOnBarePop(t *testing.T) {
	mod := compiler.NewModule("t")
	mod.Chunks[compiler.MainChunkName].Instructions = []byte{byte(compiler.OP_POP), byte(compiler.OP_RETURN)}
	_, err := New(mod).Run()
	rerr, ok := err.(RuntimeError)
	if !ok || rerr.Kind != StackEmpty {
		t.Fatalf("got %v, want a StackEmpty RuntimeError", err)
	}
}

func TestRun_ConstIdxOutOfBounds(t *testing.T) {
	mod := compiler.NewModule("t")
	mod.Chunks[compiler.MainChunkName].Instructions = []byte{byte(compiler.OP_CONSTANT), 9, byte(compiler.OP_RETURN)}
	_, err := New(mod).Run()
	rerr, ok := err.(RuntimeError)
	if !ok || rerr.Kind != ConstIdxOutOfBounds {
		t.Fatalf("got %v, want a ConstIdxOutOfBounds RuntimeError", err)
	}
}

func TestRun_EndOfBytes(t *testing.T) {
	mod := compiler.NewModule("t")
	mod.Chunks[compiler.MainChunkName].Instructions = []byte{byte(compiler.OP_ICONST1)}
	_, err := New(mod).Run()
	rerr, ok := err.(RuntimeError)
	if !ok || rerr.Kind != EndOfBytes {
		t.Fatalf("got %v, want an EndOfBytes RuntimeError", err)
	}
}
