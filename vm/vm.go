// Package vm is the stack machine that executes a compiler.Module: a
// call-frame stack, a shared value stack, a constants table, and a
// globals map, following the fetch/decode/execute loop spec section 4.3
// describes. Grounded on the teacher's original vm/vm.go shape (a single
// Run loop switching on compiler.Opcode), rebuilt around the typed
// value.Value stack and the module/chunk/binding layout compiler/code.go
// now defines.
package vm

import (
	"fmt"
	"math"

	"lumen/compiler"
	"lumen/value"
)

// FrameState is a call frame's position in its own tiny state machine
// (spec section 4.3: RUNNING until a Return executes, then TERMINATED).
type FrameState int

const (
	Running FrameState = iota
	Terminated
)

// CallFrame records one activation: the chunk it is executing, its
// instruction pointer within that chunk, and the stack index at which its
// own binding slots begin.
type CallFrame struct {
	ip          int
	chunkName   string
	stackOffset int
	state       FrameState
}

// VM owns the module and all runtime state needed to execute it. A VM
// runs a single module once; construct a fresh one to run again.
type VM struct {
	module  *compiler.Module
	frames  []*CallFrame
	stack   Stack
	globals map[string]value.Value
}

func New(module *compiler.Module) *VM {
	return &VM{
		module:  module,
		globals: make(map[string]value.Value),
	}
}

func (vm *VM) currentFrame() *CallFrame { return vm.frames[len(vm.frames)-1] }

func (vm *VM) currentChunk() *compiler.Bytecode {
	return vm.module.Chunks[vm.currentFrame().chunkName]
}

// Run executes the module's main chunk to completion. The result is the
// value left on top of the stack by main's Return, or nil if the program
// produced none (spec section 6's VM entry point contract).
func (vm *VM) Run() (value.Value, error) {
	vm.frames = []*CallFrame{{chunkName: compiler.MainChunkName, state: Running}}

	for {
		frame := vm.currentFrame()
		chunk := vm.currentChunk()

		if frame.ip >= len(chunk.Instructions) {
			return nil, RuntimeError{Kind: EndOfBytes, Message: fmt.Sprintf("chunk %q fell off its end without Return", frame.chunkName)}
		}

		op := compiler.Opcode(chunk.Instructions[frame.ip])
		frame.ip++

		result, done, err := vm.exec(op, frame, chunk)
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}
	}
}

func (vm *VM) readByte(frame *CallFrame, chunk *compiler.Bytecode) int {
	b := chunk.Instructions[frame.ip]
	frame.ip++
	return int(b)
}

func (vm *VM) pop() (value.Value, error) {
	v, ok := vm.stack.Pop()
	if !ok {
		return nil, RuntimeError{Kind: StackEmpty, Message: "pop with nothing on the stack"}
	}
	return v, nil
}

func (vm *VM) constant(idx int) (value.Value, error) {
	if idx < 0 || idx >= len(vm.module.Constants) {
		return nil, RuntimeError{Kind: ConstIdxOutOfBounds, Message: fmt.Sprintf("constant index %d out of bounds (pool has %d entries)", idx, len(vm.module.Constants))}
	}
	return vm.module.Constants[idx], nil
}

// exec runs one opcode, having already consumed its opcode byte. done
// reports whether execution just terminated (the main frame's Return),
// in which case result is the program's value.
func (vm *VM) exec(op compiler.Opcode, frame *CallFrame, chunk *compiler.Bytecode) (result value.Value, done bool, err error) {
	switch op {
	case compiler.OP_CONSTANT:
		idx := vm.readByte(frame, chunk)
		v, e := vm.constant(idx)
		if e != nil {
			return nil, false, e
		}
		vm.stack.Push(v)
	case compiler.OP_NIL:
		vm.stack.Push(value.NilVal)
	case compiler.OP_ICONST0:
		vm.stack.Push(value.Int(0))
	case compiler.OP_ICONST1:
		vm.stack.Push(value.Int(1))
	case compiler.OP_ICONST2:
		vm.stack.Push(value.Int(2))
	case compiler.OP_ICONST3:
		vm.stack.Push(value.Int(3))
	case compiler.OP_ICONST4:
		vm.stack.Push(value.Int(4))
	case compiler.OP_TRUE:
		vm.stack.Push(value.Bool(true))
	case compiler.OP_FALSE:
		vm.stack.Push(value.Bool(false))

	case compiler.OP_IADD, compiler.OP_ISUB, compiler.OP_IMUL, compiler.OP_IDIV, compiler.OP_IMOD:
		return vm.execIntArith(op)
	case compiler.OP_FADD, compiler.OP_FSUB, compiler.OP_FMUL, compiler.OP_FDIV, compiler.OP_FMOD:
		return vm.execFloatArith(op)

	case compiler.OP_I2F:
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		i, ok := v.(value.Int)
		if !ok {
			return nil, false, RuntimeError{Message: "I2F on a non-Int operand"}
		}
		vm.stack.Push(value.Float(float64(i)))
	case compiler.OP_F2I:
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		f, ok := v.(value.Float)
		if !ok {
			return nil, false, RuntimeError{Message: "F2I on a non-Float operand"}
		}
		vm.stack.Push(value.Int(int64(f)))

	case compiler.OP_INVERT:
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		switch n := v.(type) {
		case value.Int:
			vm.stack.Push(-n)
		case value.Float:
			vm.stack.Push(-n)
		default:
			return nil, false, RuntimeError{Message: "Invert on a non-numeric operand"}
		}
	case compiler.OP_NEGATE:
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		b, ok := v.(value.Bool)
		if !ok {
			return nil, false, RuntimeError{Message: "Negate on a non-Bool operand"}
		}
		vm.stack.Push(!b)

	case compiler.OP_STR_CONCAT:
		b, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		a, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		vm.stack.Push(value.NewObj(&value.StringObj{S: a.String() + b.String()}))

	case compiler.OP_AND:
		return vm.execLogical(func(a, b bool) bool { return a && b })
	case compiler.OP_OR:
		return vm.execLogical(func(a, b bool) bool { return a || b })
	case compiler.OP_COALESCE:
		fallback, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		opt, ok := asOption(v)
		if !ok {
			return nil, false, RuntimeError{Message: "Coalesce on a non-Option operand"}
		}
		if opt.Some {
			vm.stack.Push(opt.Inner)
		} else {
			vm.stack.Push(fallback)
		}

	case compiler.OP_LT, compiler.OP_LTE, compiler.OP_GT, compiler.OP_GTE, compiler.OP_EQ, compiler.OP_NEQ:
		return vm.execCompare(op)

	case compiler.OP_OPT_MK:
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		vm.stack.Push(value.Some(v))

	case compiler.OP_ARR_MK:
		return vm.execArrMk()
	case compiler.OP_ARR_LOAD:
		return vm.execArrLoad()
	case compiler.OP_ARR_SLC:
		return vm.execArrSlc()

	case compiler.OP_MAP_MK:
		n := vm.readByte(frame, chunk)
		return vm.execMapMk(n)
	case compiler.OP_MAP_LOAD:
		return vm.execMapLoad()

	case compiler.OP_GSTORE:
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		k, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		key, ok := stringKey(k)
		if !ok {
			return nil, false, RuntimeError{Message: "GStore key is not a string"}
		}
		vm.globals[key] = v
	case compiler.OP_GLOAD:
		k, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		key, ok := stringKey(k)
		if !ok {
			return nil, false, RuntimeError{Message: "GLoad key is not a string"}
		}
		if v, ok := vm.globals[key]; ok {
			vm.stack.Push(v)
		} else {
			vm.stack.Push(value.NilVal)
		}

	case compiler.OP_LSTORE0, compiler.OP_LSTORE1, compiler.OP_LSTORE2, compiler.OP_LSTORE3, compiler.OP_LSTORE4:
		slot := int(op - compiler.OP_LSTORE0)
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		vm.stack.Set(frame.stackOffset+slot, v)
	case compiler.OP_LSTORE:
		slot := vm.readByte(frame, chunk)
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		vm.stack.Set(frame.stackOffset+slot, v)
	case compiler.OP_LLOAD0, compiler.OP_LLOAD1, compiler.OP_LLOAD2, compiler.OP_LLOAD3, compiler.OP_LLOAD4:
		slot := int(op - compiler.OP_LLOAD0)
		vm.stack.Push(vm.stack.Get(frame.stackOffset + slot))
	case compiler.OP_LLOAD:
		slot := vm.readByte(frame, chunk)
		vm.stack.Push(vm.stack.Get(frame.stackOffset + slot))

	case compiler.OP_USTORE0, compiler.OP_USTORE1, compiler.OP_USTORE2, compiler.OP_USTORE3, compiler.OP_USTORE4, compiler.OP_USTORE,
		compiler.OP_ULOAD0, compiler.OP_ULOAD1, compiler.OP_ULOAD2, compiler.OP_ULOAD3, compiler.OP_ULOAD4, compiler.OP_ULOAD,
		compiler.OP_CLOSURE_MK, compiler.OP_CLOSE_UPVALUE, compiler.OP_CLOSE_UPVALUE_AND_POP:
		return nil, false, RuntimeError{Message: fmt.Sprintf("opcode %d is reserved for upvalues/closures and is never emitted by this compiler", op)}

	case compiler.OP_JUMP:
		n := vm.readByte(frame, chunk)
		frame.ip += n
	case compiler.OP_JUMP_IF_FALSE:
		n := vm.readByte(frame, chunk)
		v, e := vm.pop()
		if e != nil {
			return nil, false, e
		}
		b, ok := v.(value.Bool)
		if !ok {
			return nil, false, RuntimeError{Message: "JumpIfF on a non-Bool operand"}
		}
		if !bool(b) {
			frame.ip += n
		}
	case compiler.OP_JUMP_BACK:
		n := vm.readByte(frame, chunk)
		frame.ip -= n

	case compiler.OP_INVOKE:
		arity := vm.readByte(frame, chunk)
		_ = vm.readByte(frame, chunk) // has_return; always 1 in this MVP, never consulted
		return vm.execInvoke(arity)

	case compiler.OP_POP:
		if _, e := vm.pop(); e != nil {
			return nil, false, e
		}
	case compiler.OP_POPN:
		n := vm.readByte(frame, chunk)
		for i := 0; i < n; i++ {
			if _, e := vm.pop(); e != nil {
				return nil, false, e
			}
		}
	case compiler.OP_RETURN:
		return vm.execReturn(frame)

	default:
		return nil, false, RuntimeError{Message: fmt.Sprintf("unknown opcode %d", op)}
	}
	return nil, false, nil
}

func (vm *VM) execLogical(combine func(a, b bool) bool) (value.Value, bool, error) {
	b, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	a, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	ab, aok := a.(value.Bool)
	bb, bok := b.(value.Bool)
	if !aok || !bok {
		return nil, false, RuntimeError{Message: "And/Or on a non-Bool operand"}
	}
	vm.stack.Push(value.Bool(combine(bool(ab), bool(bb))))
	return nil, false, nil
}

func (vm *VM) execIntArith(op compiler.Opcode) (value.Value, bool, error) {
	b, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	a, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	ai, aok := a.(value.Int)
	bi, bok := b.(value.Int)
	if !aok || !bok {
		return nil, false, RuntimeError{Message: "integer arithmetic on a non-Int operand"}
	}
	var r value.Int
	switch op {
	case compiler.OP_IADD:
		r = ai + bi
	case compiler.OP_ISUB:
		r = ai - bi
	case compiler.OP_IMUL:
		r = ai * bi
	case compiler.OP_IDIV:
		r = ai / bi
	case compiler.OP_IMOD:
		r = ai % bi
	}
	vm.stack.Push(r)
	return nil, false, nil
}

func (vm *VM) execFloatArith(op compiler.Opcode) (value.Value, bool, error) {
	b, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	a, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	af, aok := a.(value.Float)
	bf, bok := b.(value.Float)
	if !aok || !bok {
		return nil, false, RuntimeError{Message: "float arithmetic on a non-Float operand"}
	}
	var r value.Float
	switch op {
	case compiler.OP_FADD:
		r = af + bf
	case compiler.OP_FSUB:
		r = af - bf
	case compiler.OP_FMUL:
		r = af * bf
	case compiler.OP_FDIV:
		r = af / bf
	case compiler.OP_FMOD:
		r = value.Float(math.Mod(float64(af), float64(bf)))
	}
	vm.stack.Push(r)
	return nil, false, nil
}

// execCompare handles LT/LTE/GT/GTE (numeric, Int/Float promoted to
// float) and Eq/Neq (type-independent structural equality).
func (vm *VM) execCompare(op compiler.Opcode) (value.Value, bool, error) {
	b, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	a, err := vm.pop()
	if err != nil {
		return nil, false, err
	}

	if op == compiler.OP_EQ {
		vm.stack.Push(value.Bool(a.Equal(b)))
		return nil, false, nil
	}
	if op == compiler.OP_NEQ {
		vm.stack.Push(value.Bool(!a.Equal(b)))
		return nil, false, nil
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, false, RuntimeError{Message: "ordering comparison on a non-numeric operand"}
	}
	var result bool
	switch op {
	case compiler.OP_LT:
		result = af < bf
	case compiler.OP_LTE:
		result = af <= bf
	case compiler.OP_GT:
		result = af > bf
	case compiler.OP_GTE:
		result = af >= bf
	}
	vm.stack.Push(value.Bool(result))
	return nil, false, nil
}

func toFloat(v value.Value) (float64, bool) {
	switch n := v.(type) {
	case value.Int:
		return float64(n), true
	case value.Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// execArrMk pops an Int arity n, then n values, collecting them back into
// source order (the deepest pop is the first element).
func (vm *VM) execArrMk() (value.Value, bool, error) {
	nv, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	n, ok := nv.(value.Int)
	if !ok {
		return nil, false, RuntimeError{Message: "ArrMk arity is not an Int"}
	}
	items := make([]value.Value, n)
	for i := int(n) - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return nil, false, err
		}
		items[i] = v
	}
	vm.stack.Push(value.NewObj(&value.ArrayObj{Items: items}))
	return nil, false, nil
}

// resolveIndex turns a possibly-negative source index into an absolute
// one relative to length, without bounds-checking the result.
func resolveIndex(idx int64, length int) int {
	if idx < 0 {
		idx += int64(length)
	}
	return int(idx)
}

func (vm *VM) execArrLoad() (value.Value, bool, error) {
	idxV, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	idx, ok := idxV.(value.Int)
	if !ok {
		return nil, false, RuntimeError{Message: "ArrLoad index is not an Int"}
	}
	seqV, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	obj, ok := seqV.(*value.Obj)
	if !ok {
		return nil, false, RuntimeError{Message: "ArrLoad target is not an Array/String"}
	}
	switch p := obj.Payload.(type) {
	case *value.ArrayObj:
		i := resolveIndex(int64(idx), len(p.Items))
		if i < 0 || i >= len(p.Items) {
			vm.stack.Push(value.None())
		} else {
			vm.stack.Push(value.Some(p.Items[i]))
		}
	case *value.StringObj:
		runes := []rune(p.S)
		i := resolveIndex(int64(idx), len(runes))
		if i < 0 || i >= len(runes) {
			vm.stack.Push(value.None())
		} else {
			vm.stack.Push(value.Some(value.NewObj(&value.StringObj{S: string(runes[i])})))
		}
	default:
		return nil, false, RuntimeError{Message: "ArrLoad target is not an Array/String"}
	}
	return nil, false, nil
}

// clampIndex resolves a negative index relative to length, then clamps
// into [0, length] — the slice-bound variant of resolveIndex, which never
// produces an out-of-range endpoint the way a bare index lookup can.
func clampIndex(idx int64, length int) int {
	if idx < 0 {
		idx += int64(length)
	}
	if idx < 0 {
		idx = 0
	}
	if idx > int64(length) {
		idx = int64(length)
	}
	return int(idx)
}

func (vm *VM) execArrSlc() (value.Value, bool, error) {
	endV, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	startV, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	start, ok := startV.(value.Int)
	if !ok {
		return nil, false, RuntimeError{Message: "ArrSlc start is not an Int"}
	}
	seqV, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	obj, ok := seqV.(*value.Obj)
	if !ok {
		return nil, false, RuntimeError{Message: "ArrSlc target is not an Array/String"}
	}

	bounds := func(length int) (int, int) {
		s := clampIndex(int64(start), length)
		e := length
		if endInt, ok := endV.(value.Int); ok {
			e = clampIndex(int64(endInt), length)
		}
		if e < s {
			e = s
		}
		return s, e
	}

	switch p := obj.Payload.(type) {
	case *value.ArrayObj:
		s, e := bounds(len(p.Items))
		items := make([]value.Value, e-s)
		copy(items, p.Items[s:e])
		vm.stack.Push(value.NewObj(&value.ArrayObj{Items: items}))
	case *value.StringObj:
		runes := []rune(p.S)
		s, e := bounds(len(runes))
		vm.stack.Push(value.NewObj(&value.StringObj{S: string(runes[s:e])}))
	default:
		return nil, false, RuntimeError{Message: "ArrSlc target is not an Array/String"}
	}
	return nil, false, nil
}

// execMapMk pops exactly 2*n values off the stack (n key/value pairs,
// pushed key-then-value per typedast.MapLiteral's compile order) and
// builds a MapObj. Unlike ArrMk, n is the opcode's own immediate, not a
// popped value.
func (vm *VM) execMapMk(n int) (value.Value, bool, error) {
	type pair struct{ k, v value.Value }
	pairs := make([]pair, n)
	for i := n - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return nil, false, err
		}
		k, err := vm.pop()
		if err != nil {
			return nil, false, err
		}
		pairs[i] = pair{k, v}
	}
	m := value.NewMap(n)
	for _, p := range pairs {
		m.Put(p.k, p.v)
	}
	vm.stack.Push(value.NewObj(m))
	return nil, false, nil
}

// execMapLoad pops a key then a MapObj and pushes an OptionObj, the same
// fallible-lookup shape ArrLoad uses; spec section 4.1's table leaves
// MapLoad's pop/push semantics unspecified, so this mirrors the pattern
// every other fallible lookup in the instruction set already follows.
func (vm *VM) execMapLoad() (value.Value, bool, error) {
	keyV, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	mapV, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	obj, ok := mapV.(*value.Obj)
	if !ok {
		return nil, false, RuntimeError{Message: "MapLoad target is not a Map"}
	}
	m, ok := obj.Payload.(*value.MapObj)
	if !ok {
		return nil, false, RuntimeError{Message: "MapLoad target is not a Map"}
	}
	if v, ok := m.Get(keyV); ok {
		vm.stack.Push(value.Some(v))
	} else {
		vm.stack.Push(value.None())
	}
	return nil, false, nil
}

func stringKey(v value.Value) (string, bool) {
	obj, ok := v.(*value.Obj)
	if !ok {
		return "", false
	}
	s, ok := obj.Payload.(*value.StringObj)
	if !ok {
		return "", false
	}
	return s.S, true
}

func asOption(v value.Value) (*value.OptionObj, bool) {
	obj, ok := v.(*value.Obj)
	if !ok {
		return nil, false
	}
	opt, ok := obj.Payload.(*value.OptionObj)
	return opt, ok
}

// execInvoke pops the callee name, reads no further bytes itself (the
// caller already consumed both Invoke immediates), and pushes a new
// frame whose stack_offset re-bases the already-pushed arguments onto
// the callee's own binding-slot numbering (spec section 4.3, "Invoke").
func (vm *VM) execInvoke(arity int) (value.Value, bool, error) {
	nameV, err := vm.pop()
	if err != nil {
		return nil, false, err
	}
	name, ok := stringKey(nameV)
	if !ok {
		return nil, false, RuntimeError{Message: "Invoke callee is not a string"}
	}
	if _, ok := vm.module.Chunks[name]; !ok {
		return nil, false, RuntimeError{Message: fmt.Sprintf("call to undefined chunk %q", name)}
	}
	vm.frames = append(vm.frames, &CallFrame{
		chunkName:   name,
		stackOffset: vm.stack.Len() - arity,
		state:       Running,
	})
	return nil, false, nil
}

// execReturn implements the main-vs-non-main distinction spec section
// 4.3 calls out: the root frame's Return ends the program and yields its
// value (if any); any other frame's Return just unwinds, trusting the
// callee to have left its result on top of the shared stack.
func (vm *VM) execReturn(frame *CallFrame) (value.Value, bool, error) {
	frame.state = Terminated
	if len(vm.frames) == 1 {
		v, ok := vm.stack.Pop()
		if !ok {
			return nil, true, nil
		}
		return v, true, nil
	}
	vm.frames = vm.frames[:len(vm.frames)-1]
	return nil, false, nil
}
