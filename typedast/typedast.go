// Package typedast models the compiler's actual input contract: a typed
// AST whose operator and binding nodes already carry the annotations a
// typechecker would have resolved (spec.md section 1 treats the
// typechecker as an out-of-scope black box; this package is the shape its
// output is assumed to have). It follows the same Accept/Visitor pattern
// the teacher's own `ast` package uses, generalized to the node set
// spec.md section 4.2 actually compiles.
package typedast

import (
	"lumen/token"
	"lumen/types"
)

// Expression is any typed-AST node that produces a value.
type Expression interface {
	Accept(v ExpressionVisitor) any
}

// Stmt is any typed-AST node compiled at statement position.
type Stmt interface {
	Accept(v StmtVisitor) any
}

type ExpressionVisitor interface {
	VisitLiteral(e Literal) any
	VisitBinary(e Binary) any
	VisitUnary(e Unary) any
	VisitGrouping(e Grouping) any
	VisitIdentifier(e Identifier) any
	VisitAssignment(e Assignment) any
	VisitLogical(e Logical) any
	VisitArray(e Array) any
	VisitIndexing(e Indexing) any
	VisitInvocation(e Invocation) any
	VisitIfExpr(e IfExpr) any
	VisitOptionSome(e OptionSome) any
	VisitCoalesce(e Coalesce) any
	VisitMapLiteral(e MapLiteral) any
}

type StmtVisitor interface {
	VisitExpressionStmt(s ExpressionStmt) any
	VisitBindingDecl(s BindingDecl) any
	VisitBlockStmt(s BlockStmt) any
	VisitIfStmt(s IfStmt) any
	VisitWhileStmt(s WhileStmt) any
	VisitFunctionDecl(s FunctionDecl) any
}

// --- Expressions ---

// Literal is a constant value already reduced to its final form; Type
// records which literal opcode family the compiler must choose
// (IConst0..4/Constant for Int, Constant for Float/String, T/F for Bool,
// OP_NIL for Nil).
type Literal struct {
	Type  types.Type
	Int   int64
	Float float64
	Bool  bool
	Str   string
}

func (e Literal) Accept(v ExpressionVisitor) any { return v.VisitLiteral(e) }

// Binary carries the operand types alongside the already-resolved result
// type, so the compiler can decide where I2F/F2I coercions go without
// re-deriving them (spec section 4.2, "Binary operators").
type Binary struct {
	Left, Right           Expression
	Operator              token.Token
	LeftType, RightType   types.Type
	ResultType            types.Type
}

func (e Binary) Accept(v ExpressionVisitor) any { return v.VisitBinary(e) }

type Unary struct {
	Operator    token.Token
	Right       Expression
	OperandType types.Type
}

func (e Unary) Accept(v ExpressionVisitor) any { return v.VisitUnary(e) }

type Grouping struct{ Expression Expression }

func (e Grouping) Accept(v ExpressionVisitor) any { return v.VisitGrouping(e) }

// Identifier references a previously declared binding by name; the
// compiler resolves Name to a slot by scanning Module.Bindings backward
// (spec section 4.2, "Identifier reference").
type Identifier struct{ Name string }

func (e Identifier) Accept(v ExpressionVisitor) any { return v.VisitIdentifier(e) }

// Assignment's target is always a plain identifier — the typechecker is
// assumed to have rejected anything else.
type Assignment struct {
	Name  string
	Value Expression
}

func (e Assignment) Accept(v ExpressionVisitor) any { return v.VisitAssignment(e) }

// Logical is `And`/`Or`; per spec section 4.1 these are non-short-circuit
// in this core — the compiler emits no jumps for them, just the opcode.
type Logical struct {
	Left, Right Expression
	Operator    token.Token
}

func (e Logical) Accept(v ExpressionVisitor) any { return v.VisitLogical(e) }

// Array is an array literal; its elements compile left-to-right followed
// by the length and OP_ARR_MK (spec section 4.2, "Arrays").
type Array struct {
	Items    []Expression
	ElemType types.Type
}

func (e Array) Accept(v ExpressionVisitor) any { return v.VisitArray(e) }

type IndexMode int

const (
	IndexSingle IndexMode = iota
	IndexRange
)

// Indexing covers both `target[i]` (IndexSingle, result is an Option) and
// `target[start:end]` (IndexRange, either bound may be nil to mean
// "from/to the edge"); spec section 4.2, "Indexing". TargetType is the
// typechecker's resolved type for Target, the same way Binary carries
// LeftType/RightType — the compiler needs it to choose between
// OP_ARR_LOAD and OP_MAP_LOAD (a Map has no opcode-level notion of a
// slice, so TargetType is only consulted for IndexSingle).
type Indexing struct {
	Target     Expression
	TargetType types.Type
	Mode       IndexMode
	Index      Expression // IndexSingle
	Start, End Expression // IndexRange; either may be nil
}

func (e Indexing) Accept(v ExpressionVisitor) any { return v.VisitIndexing(e) }

// Invocation calls a function by name: arguments are pushed left-to-right,
// then the callee name constant, then OP_INVOKE (spec section 4.2,
// "Invocation" — the MVP's by-name call convention).
type Invocation struct {
	Callee string
	Args   []Expression
}

func (e Invocation) Accept(v ExpressionVisitor) any { return v.VisitInvocation(e) }

// IfExpr is an if-construct used in expression position — its value is
// the last expression of whichever branch ran (spec section 4.2, "If
// construct", expression mode).
type IfExpr struct {
	Cond       Expression
	Then, Else []Stmt
	Line       int32
}

func (e IfExpr) Accept(v ExpressionVisitor) any { return v.VisitIfExpr(e) }

// OptionSome wraps a value as Some(v) (OP_OPT_MK); part of the section C
// supplement giving OptMk surface syntax.
type OptionSome struct{ Value Expression }

func (e OptionSome) Accept(v ExpressionVisitor) any { return v.VisitOptionSome(e) }

// Coalesce is `value ?? fallback`, compiling to OP_COALESCE.
type Coalesce struct{ Value, Fallback Expression }

func (e Coalesce) Accept(v ExpressionVisitor) any { return v.VisitCoalesce(e) }

// MapLiteral is `{k1: v1, k2: v2}`, compiling to OP_MAP_MK <n> (section C
// supplement: n is a literal immediate, not a popped stack value, since a
// map literal's arity is always known at compile time).
type MapLiteral struct {
	Keys, Values []Expression
}

func (e MapLiteral) Accept(v ExpressionVisitor) any { return v.VisitMapLiteral(e) }

// --- Statements ---

type ExpressionStmt struct {
	Expression Expression
	Line       int32
}

func (s ExpressionStmt) Accept(v StmtVisitor) any { return v.VisitExpressionStmt(s) }

// BindingDecl declares a new binding, `var`/`val` distinguished only for
// the typechecker's benefit (IsConst is metadata; the VM does not consult
// it, same as ScopeDepth — spec section 4.2, "Binding declarations").
type BindingDecl struct {
	Name        string
	Initializer Expression // nil if the declaration has no initializer
	ScopeDepth  int
	IsConst     bool
	Type        types.Type
	Line        int32
}

func (s BindingDecl) Accept(v StmtVisitor) any { return v.VisitBindingDecl(s) }

type BlockStmt struct{ Statements []Stmt }

func (s BlockStmt) Accept(v StmtVisitor) any { return v.VisitBlockStmt(s) }

// IfStmt is an if-construct used in statement position — its branch
// values are discarded (spec section 4.2, "If construct", statement
// mode).
type IfStmt struct {
	Cond       Expression
	Then, Else []Stmt
	Line       int32
}

func (s IfStmt) Accept(v StmtVisitor) any { return v.VisitIfStmt(s) }

// WhileStmt is the section-C supplement exercising OP_JUMP_BACK: the
// condition is re-tested by jumping backward to its own start.
type WhileStmt struct {
	Cond Expression
	Body []Stmt
	Line int32
}

func (s WhileStmt) Accept(v StmtVisitor) any { return v.VisitWhileStmt(s) }

// Param is one function declaration parameter.
type Param struct {
	Name string
	Type types.Type
}

// FunctionDecl emits the Fn constant into the enclosing chunk, then
// compiles Body into a freshly allocated chunk named Name, then restores
// the enclosing chunk and binds Name there (spec section 4.2, "Function
// declarations" — see compiler.ASTCompiler.compileFunctionDecl for the
// exact ordering this must preserve).
type FunctionDecl struct {
	Name       string
	Params     []Param
	Body       []Stmt
	ScopeDepth int
	Line       int32
}

func (s FunctionDecl) Accept(v StmtVisitor) any { return v.VisitFunctionDecl(s) }
