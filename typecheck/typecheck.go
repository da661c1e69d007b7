// Package typecheck runs a best-effort structural type inference pass over
// the teacher's untyped ast package, resolving exactly the annotations
// compiler needs (ResultType on binary nodes, a binding's declared type,
// scope depth) without any of the richer semantic checks a real
// typechecker would perform — spec.md treats the typechecker as an
// out-of-scope black box; this is the minimal stand-in SPEC_FULL.md section
// D calls for.
package typecheck

import (
	"lumen/ast"
	"lumen/token"
	"lumen/types"
)

// Env is a chain of lexical scopes mapping a declared name to its inferred
// type, mirroring the shape of interpreter.Environment but additionally
// tracking scope depth so lower can stamp it onto typedast.BindingDecl.
type Env struct {
	parent *Env
	vars   map[string]types.Type
	depth  int
}

func NewEnv() *Env {
	return &Env{vars: make(map[string]types.Type)}
}

// Child opens a new nested scope one level deeper than e.
func (e *Env) Child() *Env {
	return &Env{parent: e, vars: make(map[string]types.Type), depth: e.depth + 1}
}

// Declare records name's inferred type in this scope.
func (e *Env) Declare(name string, t types.Type) {
	e.vars[name] = t
}

// Resolve looks up name starting from the innermost scope outward, the
// same backward scan compiler.ASTCompiler.resolveBinding performs over
// Module.Bindings. Unresolved names (a forward reference, or a name a
// real typechecker would have rejected) fall back to Nil — best-effort,
// not a semantic guarantee.
func (e *Env) Resolve(name string) (types.Type, bool) {
	for env := e; env != nil; env = env.parent {
		if t, ok := env.vars[name]; ok {
			return t, true
		}
	}
	return types.TNil, false
}

// Depth reports this scope's nesting depth, the value lower stamps onto
// BindingDecl.ScopeDepth (metadata only — the compiler/VM never consult
// it, per spec.md's Glossary).
func (e *Env) Depth() int { return e.depth }

// InferExpr infers expr's result type, given env for resolving identifier
// references. It is deliberately structural: literal form decides a
// literal's type, arithmetic promotes Int/Float to Float exactly the way
// compiler.ASTCompiler.coerce does on the other side of the pipe,
// comparisons and logical connectives are always Bool, and string
// concatenation is recognized the same way binaryOpcode recognizes it
// (ADD where either side already typed String).
func InferExpr(e ast.Expression, env *Env) types.Type {
	switch n := e.(type) {
	case ast.Literal:
		return inferLiteral(n.Value)
	case ast.Grouping:
		return InferExpr(n.Expression, env)
	case ast.Variable:
		t, _ := env.Resolve(n.Name.Lexeme)
		return t
	case ast.Assign:
		return InferExpr(n.Value, env)
	case ast.Logical:
		return types.TBool
	case ast.Unary:
		return inferUnary(n, env)
	case ast.Binary:
		return inferBinary(n, env)
	default:
		return types.TNil
	}
}

func inferLiteral(v any) types.Type {
	switch v.(type) {
	case int64:
		return types.TInt
	case float64:
		return types.TFloat
	case string:
		return types.TString
	case bool:
		return types.TBool
	default:
		return types.TNil
	}
}

func inferUnary(n ast.Unary, env *Env) types.Type {
	if n.Operator.TokenType == token.BANG {
		return types.TBool
	}
	return InferExpr(n.Right, env)
}

func inferBinary(n ast.Binary, env *Env) types.Type {
	switch n.Operator.TokenType {
	case token.EQUAL_EQUAL, token.NOT_EQUAL,
		token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL:
		return types.TBool
	}

	left := InferExpr(n.Left, env)
	right := InferExpr(n.Right, env)

	if n.Operator.TokenType == token.ADD && (left.Kind == types.String || right.Kind == types.String) {
		return types.TString
	}
	if left.Kind == types.Float || right.Kind == types.Float {
		return types.TFloat
	}
	return types.TInt
}
