package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen/ast"
	"lumen/token"
	"lumen/typedast"
	"lumen/types"
)

func name(lexeme string) token.Token {
	return token.Token{TokenType: token.IDENTIFIER, Lexeme: lexeme, Line: 1}
}

func TestProgram_VarStmtInfersIntAndTypedLiteral(t *testing.T) {
	stmts := []ast.Stmt{
		ast.VarStmt{Name: name("a"), Initializer: ast.Literal{Value: int64(3)}},
	}
	out := Program(stmts)
	require.Len(t, out, 1)

	decl, ok := out[0].(typedast.BindingDecl)
	require.True(t, ok)
	assert.Equal(t, "a", decl.Name)
	assert.Equal(t, types.TInt, decl.Type)

	lit, ok := decl.Initializer.(typedast.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(3), lit.Int)
	assert.Equal(t, types.TInt, lit.Type)
}

func TestProgram_BinaryCarriesOperandAndResultTypes(t *testing.T) {
	bin := ast.Binary{
		Left:     ast.Literal{Value: int64(1)},
		Operator: token.Token{TokenType: token.ADD, Line: 2},
		Right:    ast.Literal{Value: 2.0},
	}
	stmts := []ast.Stmt{ast.ExpressionStmt{Expression: bin}}
	out := Program(stmts)
	require.Len(t, out, 1)

	es, ok := out[0].(typedast.ExpressionStmt)
	require.True(t, ok)
	tb, ok := es.Expression.(typedast.Binary)
	require.True(t, ok)
	assert.Equal(t, types.TInt, tb.LeftType)
	assert.Equal(t, types.TFloat, tb.RightType)
	assert.Equal(t, types.TFloat, tb.ResultType)
}

func TestProgram_PrintStmtLowersToBareExpressionStmt(t *testing.T) {
	stmts := []ast.Stmt{ast.PrintStmt{Expression: ast.Literal{Value: int64(7)}}}
	out := Program(stmts)
	require.Len(t, out, 1)
	_, ok := out[0].(typedast.ExpressionStmt)
	assert.True(t, ok, "PrintStmt must lower to a plain ExpressionStmt, not fail or vanish")
}

func TestProgram_BlockOpensChildScopeWithIncrementedDepth(t *testing.T) {
	inner := ast.VarStmt{Name: name("b"), Initializer: ast.Literal{Value: int64(1)}}
	stmts := []ast.Stmt{ast.BlockStmt{Statements: []ast.Stmt{inner}}}
	out := Program(stmts)
	require.Len(t, out, 1)

	block, ok := out[0].(typedast.BlockStmt)
	require.True(t, ok)
	require.Len(t, block.Statements, 1)

	decl, ok := block.Statements[0].(typedast.BindingDecl)
	require.True(t, ok)
	assert.Equal(t, 1, decl.ScopeDepth)
}

func TestProgram_IfStmtWithoutElseLeavesElseNil(t *testing.T) {
	ifStmt := ast.IfStmt{
		Condition: ast.Literal{Value: true},
		Then:      ast.ExpressionStmt{Expression: ast.Literal{Value: int64(1)}},
		Else:      nil,
	}
	out := Program([]ast.Stmt{ifStmt})
	require.Len(t, out, 1)

	typed, ok := out[0].(typedast.IfStmt)
	require.True(t, ok)
	assert.Nil(t, typed.Else)
	assert.Len(t, typed.Then, 1)
}

func TestProgram_AssignmentLowersTargetByName(t *testing.T) {
	assign := ast.Assign{Name: name("x"), Value: ast.Literal{Value: int64(5)}}
	out := Program([]ast.Stmt{ast.ExpressionStmt{Expression: assign}})
	require.Len(t, out, 1)

	es := out[0].(typedast.ExpressionStmt)
	ta, ok := es.Expression.(typedast.Assignment)
	require.True(t, ok)
	assert.Equal(t, "x", ta.Name)
}
