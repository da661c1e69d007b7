package typecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen/ast"
	"lumen/token"
	"lumen/types"
)

func opTok(tt token.TokenType) token.Token { return token.Token{TokenType: tt, Line: 1} }

func TestInferExpr_Literals(t *testing.T) {
	env := NewEnv()
	assert.Equal(t, types.TInt, InferExpr(ast.Literal{Value: int64(1)}, env))
	assert.Equal(t, types.TFloat, InferExpr(ast.Literal{Value: 1.5}, env))
	assert.Equal(t, types.TString, InferExpr(ast.Literal{Value: "hi"}, env))
	assert.Equal(t, types.TBool, InferExpr(ast.Literal{Value: true}, env))
	assert.Equal(t, types.TNil, InferExpr(ast.Literal{Value: nil}, env))
}

func TestInferExpr_ArithmeticPromotesToFloat(t *testing.T) {
	env := NewEnv()
	bin := ast.Binary{
		Left: ast.Literal{Value: int64(1)}, Operator: opTok(token.ADD),
		Right: ast.Literal{Value: 2.5},
	}
	assert.Equal(t, types.TFloat, InferExpr(bin, env))
}

func TestInferExpr_AddStringsConcatenates(t *testing.T) {
	env := NewEnv()
	bin := ast.Binary{
		Left: ast.Literal{Value: "a"}, Operator: opTok(token.ADD),
		Right: ast.Literal{Value: "b"},
	}
	assert.Equal(t, types.TString, InferExpr(bin, env))
}

func TestInferExpr_ComparisonIsBool(t *testing.T) {
	env := NewEnv()
	bin := ast.Binary{
		Left: ast.Literal{Value: int64(1)}, Operator: opTok(token.LESS),
		Right: ast.Literal{Value: int64(2)},
	}
	assert.Equal(t, types.TBool, InferExpr(bin, env))
}

func TestInferExpr_IdentifierResolvesFromEnv(t *testing.T) {
	env := NewEnv()
	env.Declare("x", types.TFloat)
	v := ast.Variable{Name: token.Token{TokenType: token.IDENTIFIER, Lexeme: "x"}}
	assert.Equal(t, types.TFloat, InferExpr(v, env))
}

func TestEnv_ChildShadowsParentButResolvesOutward(t *testing.T) {
	parent := NewEnv()
	parent.Declare("x", types.TInt)
	child := parent.Child()
	require.Equal(t, 1, child.Depth())

	got, ok := child.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, types.TInt, got)

	child.Declare("x", types.TString)
	got, ok = child.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, types.TString, got)

	parentGot, _ := parent.Resolve("x")
	assert.Equal(t, types.TInt, parentGot, "shadowing in a child scope must not mutate the parent")
}

func TestEnv_ResolveUnknownFallsBackToNil(t *testing.T) {
	env := NewEnv()
	got, ok := env.Resolve("never-declared")
	assert.False(t, ok)
	assert.Equal(t, types.TNil, got)
}
