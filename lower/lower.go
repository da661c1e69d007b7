// Package lower turns the teacher's untyped ast tree (as produced by
// package parser for the original arithmetic/var/block/if/while/print
// language subset) into the typedast tree package compiler actually
// consumes, running package typecheck along the way to fill in the
// annotations compiler needs. Per SPEC_FULL.md section D, typedast is the
// authoritative input contract; this package is one reference frontend
// that produces it, not the thing spec.md calls in-scope.
package lower

import (
	"lumen/ast"
	"lumen/typecheck"
	"lumen/typedast"
	"lumen/types"
)

// Program lowers a full statement list compiled at the top level, all
// under one fresh root scope.
func Program(stmts []ast.Stmt) []typedast.Stmt {
	env := typecheck.NewEnv()
	return stmtList(stmts, env)
}

func stmtList(stmts []ast.Stmt, env *typecheck.Env) []typedast.Stmt {
	out := make([]typedast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, stmt(s, env))
	}
	return out
}

func stmt(s ast.Stmt, env *typecheck.Env) typedast.Stmt {
	switch n := s.(type) {
	case ast.ExpressionStmt:
		return typedast.ExpressionStmt{Expression: expr(n.Expression, env), Line: line(n.Expression)}

	case ast.PrintStmt:
		// PrintStmt has no opcode in spec.md's table (printing is the
		// driver CLI's concern); its argument still compiles and pops so a
		// program that prints never fails to compile, it just performs no
		// VM-visible I/O (SPEC_FULL.md section D).
		return typedast.ExpressionStmt{Expression: expr(n.Expression, env), Line: line(n.Expression)}

	case ast.VarStmt:
		var init typedast.Expression
		t := types.TNil
		if n.Initializer != nil {
			init = expr(n.Initializer, env)
			t = typecheck.InferExpr(n.Initializer, env)
		}
		env.Declare(n.Name.Lexeme, t)
		return typedast.BindingDecl{
			Name:        n.Name.Lexeme,
			Initializer: init,
			ScopeDepth:  env.Depth(),
			IsConst:     false,
			Type:        t,
			Line:        n.Name.Line,
		}

	case ast.BlockStmt:
		child := env.Child()
		return typedast.BlockStmt{Statements: stmtList(n.Statements, child)}

	case ast.IfStmt:
		return typedast.IfStmt{
			Cond: expr(n.Condition, env),
			Then: blockOf(n.Then, env),
			Else: elseBlockOf(n.Else, env),
			Line: line(n.Condition),
		}

	case ast.WhileStmt:
		return typedast.WhileStmt{
			Cond: expr(n.Condition, env),
			Body: blockOf(n.Body, env),
			Line: line(n.Condition),
		}

	default:
		panic("lower: unhandled ast.Stmt node")
	}
}

// blockOf lowers a single (possibly non-block) statement into the
// []typedast.Stmt shape IfStmt/WhileStmt's Then/Body expect, opening a
// child scope the way the teacher's parser already required braces to
// imply.
func blockOf(s ast.Stmt, env *typecheck.Env) []typedast.Stmt {
	if block, ok := s.(ast.BlockStmt); ok {
		return stmtList(block.Statements, env.Child())
	}
	return []typedast.Stmt{stmt(s, env)}
}

func elseBlockOf(s ast.Stmt, env *typecheck.Env) []typedast.Stmt {
	if s == nil {
		return nil
	}
	return blockOf(s, env)
}

func expr(e ast.Expression, env *typecheck.Env) typedast.Expression {
	switch n := e.(type) {
	case ast.Literal:
		return literal(n)

	case ast.Grouping:
		return typedast.Grouping{Expression: expr(n.Expression, env)}

	case ast.Variable:
		return typedast.Identifier{Name: n.Name.Lexeme}

	case ast.Assign:
		return typedast.Assignment{Name: n.Name.Lexeme, Value: expr(n.Value, env)}

	case ast.Logical:
		return typedast.Logical{Left: expr(n.Left, env), Right: expr(n.Right, env), Operator: n.Operator}

	case ast.Unary:
		return typedast.Unary{
			Operator:    n.Operator,
			Right:       expr(n.Right, env),
			OperandType: typecheck.InferExpr(n.Right, env),
		}

	case ast.Binary:
		leftType := typecheck.InferExpr(n.Left, env)
		rightType := typecheck.InferExpr(n.Right, env)
		return typedast.Binary{
			Left:       expr(n.Left, env),
			Right:      expr(n.Right, env),
			Operator:   n.Operator,
			LeftType:   leftType,
			RightType:  rightType,
			ResultType: typecheck.InferExpr(n, env),
		}

	default:
		panic("lower: unhandled ast.Expression node")
	}
}

func literal(n ast.Literal) typedast.Literal {
	switch v := n.Value.(type) {
	case int64:
		return typedast.Literal{Type: types.TInt, Int: v}
	case float64:
		return typedast.Literal{Type: types.TFloat, Float: v}
	case string:
		return typedast.Literal{Type: types.TString, Str: v}
	case bool:
		return typedast.Literal{Type: types.TBool, Bool: v}
	default:
		return typedast.Literal{Type: types.TNil}
	}
}

// line recovers a source line for expression-statement nodes that carry
// no Line field of their own, the way spec.md's own compiler algorithm
// bases the attributed line on the nearest token it has in hand.
func line(e ast.Expression) int32 {
	switch n := e.(type) {
	case ast.Binary:
		return n.Operator.Line
	case ast.Unary:
		return n.Operator.Line
	case ast.Assign:
		return n.Name.Line
	case ast.Variable:
		return n.Name.Line
	case ast.Logical:
		return n.Operator.Line
	case ast.Grouping:
		return line(n.Expression)
	default:
		return 1
	}
}
