package compiler

import (
	"lumen/token"
	"lumen/typedast"
	"lumen/types"
	"lumen/value"
)

// ASTCompiler is a single-pass, left-to-right, depth-first visitor over a
// typedast program. It emits bytecode into named chunks of a Module,
// interns constants, allocates binding slots, and patches forward jumps.
// Grounded on the teacher's ast_compiler.go, generalized to the typedast
// node set and corrected against spec.md where the teacher's own
// implementation diverged from it (see DESIGN.md for the specific
// divergences and why each was resolved the way it was).
type ASTCompiler struct {
	module       *Module
	currentChunk string
	// line is the source line attributed to whatever bytecode is emitted
	// next; it is updated each time a statement carrying its own Line
	// field is visited; expression-level emission inherits it, refined by
	// any operator token's own line when one is available.
	line int32
}

func NewASTCompiler() *ASTCompiler {
	return &ASTCompiler{}
}

// CompileAST compiles a top-level program into a Module named name.
// Recovery mirrors the teacher: a SemanticError/DeveloperError raised by
// any Visit method unwinds as a panic caught here, turning an internal
// compiler signal into a returned error.
func (c *ASTCompiler) CompileAST(name string, statements []typedast.Stmt) (mod *Module, err error) {
	c.module = NewModule(name)
	c.currentChunk = MainChunkName

	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case SemanticError:
				err = e
			case DeveloperError:
				err = e
			default:
				panic(r)
			}
		}
	}()

	c.line = 0
	for i, stmt := range statements {
		c.compileStmt(stmt)
		if stmtProducesValue(stmt) && i != len(statements)-1 {
			c.emit(c.line, OP_POP)
		}
	}
	// The main chunk's trailing Return sits one line past the last
	// emitted instruction's line, a source quirk spec section 9 calls
	// out to preserve for bytecode bit-compatibility.
	c.emit(c.line+1, OP_RETURN)

	return c.module, nil
}

// --- chunk / emission plumbing ---

func (c *ASTCompiler) chunk() *Bytecode { return c.module.Chunks[c.currentChunk] }

func (c *ASTCompiler) emit(line int32, op Opcode, operands ...int) int {
	instr := MakeInstruction(op, operands...)
	chunk := c.chunk()
	pos := len(chunk.Instructions)
	chunk.Instructions = append(chunk.Instructions, instr...)

	idx := int(line) - 1
	if idx < 0 {
		idx = 0
	}
	for len(chunk.Lines) <= idx {
		chunk.Lines = append(chunk.Lines, 0)
	}
	chunk.Lines[idx] += len(instr)
	return pos
}

// emitPlaceholderJump emits op with a zero placeholder byte and returns the
// offset of that placeholder byte (to be fixed up by patchJump).
func (c *ASTCompiler) emitPlaceholderJump(line int32, op Opcode) int {
	pos := c.emit(line, op, 0)
	return pos + 1
}

// patchJump writes the distance from the slot immediately after the jump's
// operand byte to the current end of the chunk, per spec section 3's
// invariant: "A forward jump's immediate is the byte distance from the
// slot immediately after the jump operand to the target." Branch ranges
// are limited to 255 bytes; overflow is a DeveloperError (an emission
// error), never a silent truncation.
func (c *ASTCompiler) patchJump(operandPos int) {
	dist := len(c.chunk().Instructions) - (operandPos + 1)
	if dist < 0 || dist > 255 {
		panic(DeveloperError{Message: "jump distance exceeds 255 bytes"})
	}
	c.chunk().Instructions[operandPos] = byte(dist)
}

func stmtProducesValue(s typedast.Stmt) bool {
	_, ok := s.(typedast.ExpressionStmt)
	return ok
}

// --- constants / bindings ---

func (c *ASTCompiler) addConstant(v value.Value) int {
	idx := len(c.module.Constants)
	if idx > 255 {
		panic(DeveloperError{Message: "constant pool exceeds 256 entries"})
	}
	c.module.Constants = append(c.module.Constants, v)
	return idx
}

func (c *ASTCompiler) writeIntConstant(line int32, n int64) {
	switch n {
	case 0:
		c.emit(line, OP_ICONST0)
	case 1:
		c.emit(line, OP_ICONST1)
	case 2:
		c.emit(line, OP_ICONST2)
	case 3:
		c.emit(line, OP_ICONST3)
	case 4:
		c.emit(line, OP_ICONST4)
	default:
		idx := c.addConstant(value.Int(n))
		c.emit(line, OP_CONSTANT, idx)
	}
}

// declareBinding allocates the next binding slot: index = len(Bindings).
// The index is frozen for the lifetime of this compilation even though
// bindings declared inside a function body are later popped back off (see
// compileFunctionDecl) so outer scopes resume their original numbering.
func (c *ASTCompiler) declareBinding(name string, scopeDepth int) int {
	idx := len(c.module.Bindings)
	c.module.Bindings = append(c.module.Bindings, BindingDescriptor{Name: name, ScopeDepth: scopeDepth})
	c.chunk().NumBindings++
	return idx
}

// resolveBinding scans the binding vector from the end toward the start
// (spec section 4.2, "Identifier reference"); the first matching name
// wins, giving nested/shadowed declarations priority over outer ones.
func (c *ASTCompiler) resolveBinding(name string) (int, bool) {
	for i := len(c.module.Bindings) - 1; i >= 0; i-- {
		if c.module.Bindings[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

func (c *ASTCompiler) emitLoad(line int32, slot int) {
	switch slot {
	case 0:
		c.emit(line, OP_LLOAD0)
	case 1:
		c.emit(line, OP_LLOAD1)
	case 2:
		c.emit(line, OP_LLOAD2)
	case 3:
		c.emit(line, OP_LLOAD3)
	case 4:
		c.emit(line, OP_LLOAD4)
	default:
		if slot > 255 {
			panic(DeveloperError{Message: "binding slot exceeds 255"})
		}
		c.emit(line, OP_LLOAD, slot)
	}
}

func (c *ASTCompiler) emitStore(line int32, slot int) {
	switch slot {
	case 0:
		c.emit(line, OP_LSTORE0)
	case 1:
		c.emit(line, OP_LSTORE1)
	case 2:
		c.emit(line, OP_LSTORE2)
	case 3:
		c.emit(line, OP_LSTORE3)
	case 4:
		c.emit(line, OP_LSTORE4)
	default:
		if slot > 255 {
			panic(DeveloperError{Message: "binding slot exceeds 255"})
		}
		c.emit(line, OP_LSTORE, slot)
	}
}

// --- statements ---

func (c *ASTCompiler) compileStmt(s typedast.Stmt) { s.Accept(c) }

func (c *ASTCompiler) compileExpr(e typedast.Expression) { e.Accept(c) }

// compileBlock compiles a statement sequence. When keepLast is true
// (if-expression branches) the last
// value-producing statement's value survives on the stack; otherwise
// (if-statement/while bodies, nested block statements) every
// value-producing statement is immediately popped.
func (c *ASTCompiler) compileBlock(stmts []typedast.Stmt, keepLast bool, line int32) {
	for i, stmt := range stmts {
		c.compileStmt(stmt)
		if stmtProducesValue(stmt) {
			if !keepLast || i != len(stmts)-1 {
				c.emit(line, OP_POP)
			}
		}
	}
}

func (c *ASTCompiler) VisitExpressionStmt(s typedast.ExpressionStmt) any {
	c.line = s.Line
	c.compileExpr(s.Expression)
	return nil
}

func (c *ASTCompiler) VisitBindingDecl(s typedast.BindingDecl) any {
	c.line = s.Line
	idx := c.declareBinding(s.Name, s.ScopeDepth)
	if s.Initializer != nil {
		c.compileExpr(s.Initializer)
		c.emitStore(c.line, idx)
	}
	return nil
}

func (c *ASTCompiler) VisitBlockStmt(s typedast.BlockStmt) any {
	c.compileBlock(s.Statements, false, c.line)
	return nil
}

func (c *ASTCompiler) VisitIfStmt(s typedast.IfStmt) any {
	c.line = s.Line
	c.compileIf(s.Cond, s.Then, s.Else, false)
	return nil
}

func (c *ASTCompiler) VisitWhileStmt(s typedast.WhileStmt) any {
	c.line = s.Line
	loopStart := len(c.chunk().Instructions)
	c.compileExpr(s.Cond)
	exitSlot := c.emitPlaceholderJump(c.line, OP_JUMP_IF_FALSE)
	c.compileBlock(s.Body, false, c.line)

	backDist := len(c.chunk().Instructions) + 2 - loopStart
	if backDist > 255 {
		panic(DeveloperError{Message: "loop body exceeds 255 bytes"})
	}
	c.emit(c.line, OP_JUMP_BACK, backDist)
	c.patchJump(exitSlot)
	return nil
}

func (c *ASTCompiler) VisitFunctionDecl(s typedast.FunctionDecl) any {
	c.line = s.Line
	c.compileFunctionDecl(s)
	return nil
}

// compileFunctionDecl preserves the exact ordering spec.md's Design Notes
// call out as load-bearing: (1) the Fn constant is pushed into the
// *enclosing* chunk before the function's own chunk exists; (2) the
// function's own bindings (its parameters) are appended, then popped back
// off the shared vector once its body is compiled, so outer numbering
// resumes correctly; (3) only *after* that unwind is a binding allocated,
// in the enclosing scope, for the function's own name, with a store that
// persists the already-pushed Fn value into it.
//
// Parameters are stored starting at whatever binding index is next in the
// shared bindings vector — no slot is reserved ahead of them. A function's
// first parameter therefore compiles to LStore0 only when the function is
// declared before any other binding is live in the enclosing scope; if
// bindings already precede it (as in spec section 8's own worked trace,
// where `val one = 1` occupies slot 0 before `func inc` is declared), the
// parameter naturally lands on whatever slot follows. Invoke's
// stack_offset at the call site (stack.len() - arity) lines up with this
// exactly: no value is pushed for a slot that was never reserved.
func (c *ASTCompiler) compileFunctionDecl(s typedast.FunctionDecl) {
	fnIdx := c.addConstant(value.Fn{Name: s.Name})
	c.emit(c.line, OP_CONSTANT, fnIdx)

	enclosing := c.currentChunk
	c.currentChunk = s.Name
	if _, ok := c.module.Chunks[s.Name]; !ok {
		c.module.Chunks[s.Name] = &Bytecode{}
	}

	bindingsBefore := len(c.module.Bindings)
	for _, p := range s.Params {
		idx := c.declareBinding(p.Name, s.ScopeDepth+1)
		c.emitStore(c.line, idx)
	}

	for i, stmt := range s.Body {
		c.compileStmt(stmt)
		if stmtProducesValue(stmt) && i != len(s.Body)-1 {
			c.emit(c.line, OP_POP)
		}
	}
	c.emit(c.line, OP_RETURN)

	c.currentChunk = enclosing
	c.module.Bindings = c.module.Bindings[:bindingsBefore]
	c.line = s.Line

	ownIdx := c.declareBinding(s.Name, s.ScopeDepth)
	c.emitStore(c.line, ownIdx)
}

// compileIf implements spec section 4.2's "If construct" algorithm
// verbatim, parameterized by isExpr (false keeps no branch value,
// true keeps each branch's last value).
func (c *ASTCompiler) compileIf(cond typedast.Expression, then, els []typedast.Stmt, isExpr bool) {
	c.compileExpr(cond)
	elseJumpSlot := c.emitPlaceholderJump(c.line, OP_JUMP_IF_FALSE)

	c.compileBlock(then, isExpr, c.line)

	var endJumpSlot int
	hasElse := els != nil
	if hasElse {
		endJumpSlot = c.emitPlaceholderJump(c.line, OP_JUMP)
	}
	c.patchJump(elseJumpSlot)

	if hasElse {
		c.compileBlock(els, isExpr, c.line)
		c.patchJump(endJumpSlot)
	}
}

// --- expressions ---

func (c *ASTCompiler) VisitLiteral(e typedast.Literal) any {
	switch e.Type.Kind {
	case types.Bool:
		if e.Bool {
			c.emit(c.line, OP_TRUE)
		} else {
			c.emit(c.line, OP_FALSE)
		}
	case types.Int:
		c.writeIntConstant(c.line, e.Int)
	case types.Float:
		idx := c.addConstant(value.Float(e.Float))
		c.emit(c.line, OP_CONSTANT, idx)
	case types.String:
		idx := c.addConstant(value.NewObj(&value.StringObj{S: e.Str}))
		c.emit(c.line, OP_CONSTANT, idx)
	case types.Nil:
		c.emit(c.line, OP_NIL)
	default:
		panic(SemanticError{Message: "literal with unresolved type reached the compiler"})
	}
	return nil
}

func (c *ASTCompiler) VisitBinary(e typedast.Binary) any {
	c.compileExpr(e.Left)
	c.line = e.Operator.Line + 1
	c.coerce(c.line, e.LeftType, e.ResultType)
	c.compileExpr(e.Right)
	c.line = e.Operator.Line + 1
	c.coerce(c.line, e.RightType, e.ResultType)
	c.emit(c.line, c.binaryOpcode(e.Operator.TokenType, e.ResultType))
	return nil
}

// coerce inserts I2F/F2I between an operand and the enclosing operator
// exactly as spec.md's "Binary operators" prose states: coerce Int to
// Float when the node's result type is Float, and the inverse.
func (c *ASTCompiler) coerce(line int32, operandType, resultType types.Type) {
	if resultType.Kind == types.Float && operandType.Kind == types.Int {
		c.emit(line, OP_I2F)
	} else if resultType.Kind == types.Int && operandType.Kind == types.Float {
		c.emit(line, OP_F2I)
	}
}

func (c *ASTCompiler) binaryOpcode(op token.TokenType, resultType types.Type) Opcode {
	switch op {
	case token.ADD:
		if resultType.Kind == types.String {
			return OP_STR_CONCAT
		}
		if resultType.Kind == types.Float {
			return OP_FADD
		}
		return OP_IADD
	case token.SUB:
		if resultType.Kind == types.Float {
			return OP_FSUB
		}
		return OP_ISUB
	case token.MULT:
		if resultType.Kind == types.Float {
			return OP_FMUL
		}
		return OP_IMUL
	case token.DIV:
		if resultType.Kind == types.Float {
			return OP_FDIV
		}
		return OP_IDIV
	case token.MOD:
		if resultType.Kind == types.Float {
			return OP_FMOD
		}
		return OP_IMOD
	case token.EQUAL_EQUAL:
		return OP_EQ
	case token.NOT_EQUAL:
		return OP_NEQ
	case token.LESS:
		return OP_LT
	case token.LESS_EQUAL:
		return OP_LTE
	case token.LARGER:
		return OP_GT
	case token.LARGER_EQUAL:
		return OP_GTE
	default:
		panic(SemanticError{Message: "unsupported binary operator reached the compiler: " + string(op)})
	}
}

func (c *ASTCompiler) VisitUnary(e typedast.Unary) any {
	c.compileExpr(e.Right)
	c.line = e.Operator.Line + 1
	switch e.Operator.TokenType {
	case token.SUB:
		c.emit(c.line, OP_INVERT)
	case token.BANG:
		c.emit(c.line, OP_NEGATE)
	default:
		panic(SemanticError{Message: "unsupported unary operator reached the compiler"})
	}
	return nil
}

func (c *ASTCompiler) VisitGrouping(e typedast.Grouping) any {
	c.compileExpr(e.Expression)
	return nil
}

func (c *ASTCompiler) VisitIdentifier(e typedast.Identifier) any {
	idx, ok := c.resolveBinding(e.Name)
	if !ok {
		panic(SemanticError{Message: "undefined binding: " + e.Name})
	}
	c.emitLoad(c.line, idx)
	return nil
}

func (c *ASTCompiler) VisitAssignment(e typedast.Assignment) any {
	idx, ok := c.resolveBinding(e.Name)
	if !ok {
		panic(SemanticError{Message: "undefined binding: " + e.Name})
	}
	c.compileExpr(e.Value)
	c.emitStore(c.line, idx)
	c.emitLoad(c.line, idx)
	return nil
}

func (c *ASTCompiler) VisitLogical(e typedast.Logical) any {
	// Non-short-circuiting per spec section 4.1: visit both operands
	// unconditionally, emit the opcode, no jumps. This is an explicit
	// open-question resolution (spec section 9) — do not "fix" it to
	// short-circuit.
	c.compileExpr(e.Left)
	c.compileExpr(e.Right)
	switch e.Operator.TokenType {
	case token.AND:
		c.emit(c.line, OP_AND)
	case token.OR:
		c.emit(c.line, OP_OR)
	default:
		panic(SemanticError{Message: "unsupported logical operator reached the compiler"})
	}
	return nil
}

func (c *ASTCompiler) VisitArray(e typedast.Array) any {
	for _, item := range e.Items {
		c.compileExpr(item)
	}
	c.writeIntConstant(c.line, int64(len(e.Items)))
	c.emit(c.line, OP_ARR_MK)
	return nil
}

func (c *ASTCompiler) VisitIndexing(e typedast.Indexing) any {
	c.compileExpr(e.Target)
	switch e.Mode {
	case typedast.IndexSingle:
		c.compileExpr(e.Index)
		if e.TargetType.Kind == types.Map {
			c.emit(c.line, OP_MAP_LOAD)
		} else {
			c.emit(c.line, OP_ARR_LOAD)
		}
	case typedast.IndexRange:
		if e.Start != nil {
			c.compileExpr(e.Start)
		} else {
			c.emit(c.line, OP_ICONST0)
		}
		if e.End != nil {
			c.compileExpr(e.End)
		} else {
			c.emit(c.line, OP_NIL)
		}
		c.emit(c.line, OP_ARR_SLC)
	}
	return nil
}

func (c *ASTCompiler) VisitInvocation(e typedast.Invocation) any {
	for _, arg := range e.Args {
		c.compileExpr(arg)
	}
	idx := c.addConstant(value.NewObj(&value.StringObj{S: e.Callee}))
	c.emit(c.line, OP_CONSTANT, idx)
	c.emit(c.line, OP_INVOKE, len(e.Args), 1)
	return nil
}

func (c *ASTCompiler) VisitIfExpr(e typedast.IfExpr) any {
	c.line = e.Line
	c.compileIf(e.Cond, e.Then, e.Else, true)
	return nil
}

func (c *ASTCompiler) VisitOptionSome(e typedast.OptionSome) any {
	c.compileExpr(e.Value)
	c.emit(c.line, OP_OPT_MK)
	return nil
}

func (c *ASTCompiler) VisitCoalesce(e typedast.Coalesce) any {
	c.compileExpr(e.Value)
	c.compileExpr(e.Fallback)
	c.emit(c.line, OP_COALESCE)
	return nil
}

func (c *ASTCompiler) VisitMapLiteral(e typedast.MapLiteral) any {
	for i := range e.Keys {
		c.compileExpr(e.Keys[i])
		c.compileExpr(e.Values[i])
	}
	if len(e.Keys) > 255 {
		panic(DeveloperError{Message: "map literal exceeds 255 entries"})
	}
	c.emit(c.line, OP_MAP_MK, len(e.Keys))
	return nil
}
