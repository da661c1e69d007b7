// Package value implements the runtime value taxonomy the VM operates on:
// a small tagged union (spec section 3's "Value") plus a shared,
// interior-mutable heap handle ("Obj") for boxed payloads.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is the interface every runtime value implements. Unlike a Rust
// enum, Go gives us no closed sum type, so the set of concrete
// implementations below (Int, Float, Bool, Nil, Str, *Obj, Fn) is the
// taxonomy in practice; nothing outside this package should add new ones.
type Value interface {
	String() string
	Type() string
	// Equal reports structural equality, per spec section 3.
	Equal(other Value) bool
}

// Int is a boxed 64-bit integer.
type Int int64

func (i Int) String() string      { return strconv.FormatInt(int64(i), 10) }
func (i Int) Type() string        { return "Int" }
func (i Int) Equal(o Value) bool  { v, ok := o.(Int); return ok && v == i }

// Float is a boxed 64-bit float.
type Float float64

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (f Float) Type() string   { return "Float" }
func (f Float) Equal(o Value) bool {
	v, ok := o.(Float)
	return ok && v == f
}

// Hash returns a lossless, NaN-free integer decoding of f so that equal
// floats always hash equal, matching Equal. Ported from the original
// implementation's `integer_decode`-style float hashing.
func (f Float) Hash() uint64 {
	if math.IsNaN(float64(f)) {
		// NaN never equals itself; collapse all NaNs to one bucket since
		// they can never collide with Equal returning true anyway.
		return math.MaxUint64
	}
	if f == 0 {
		// 0.0 and -0.0 are Equal; both hash as +0.0.
		return 0
	}
	return math.Float64bits(float64(f))
}

// Bool is a boxed boolean.
type Bool bool

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (b Bool) Type() string   { return "Bool" }
func (b Bool) Equal(o Value) bool {
	v, ok := o.(Bool)
	return ok && v == b
}

// Nil is the single nil value.
type Nil struct{}

func (Nil) String() string { return "nil" }
func (Nil) Type() string   { return "Nil" }
func (Nil) Equal(o Value) bool {
	_, ok := o.(Nil)
	return ok
}

// NilVal is the canonical Nil instance, used wherever the VM needs to push
// "no value" (e.g. an uninitialized binding, a read past the live stack).
var NilVal = Nil{}

// Str is a plain, unboxed Go string value. The compiler does not emit it:
// string literals and Invoke callee names become constants holding an *Obj
// that wraps a StringObj, and the VM's GStore/GLoad keys and Invoke callee
// names accept only that boxed form, not a Str.
type Str string

func (s Str) String() string { return string(s) }
func (s Str) Type() string    { return "Str" }
func (s Str) Equal(o Value) bool {
	v, ok := o.(Str)
	return ok && v == s
}

// Fn is a first-class reference to a named code chunk in the owning
// CompiledModule. It is what a function declaration pushes into the
// enclosing chunk before compiling the function's own body (see
// compiler.ASTCompiler.compileFunctionDecl).
type Fn struct{ Name string }

func (f Fn) String() string { return fmt.Sprintf("<fn %s>", f.Name) }
func (f Fn) Type() string   { return "Fn" }
func (f Fn) Equal(o Value) bool {
	v, ok := o.(Fn)
	return ok && v == f
}

// Obj is a shared, interior-mutable heap handle: multiple stack slots or
// collection entries may hold the same *Obj, and a mutation through one
// alias is observed by all of them (spec section 5). This is the Go
// stand-in for the original's Arc<RefCell<Obj>> — an ordinary pointer,
// since Go's GC already gives us shared ownership and Go is single
// threaded with respect to any one VM.
type Obj struct {
	Payload ObjPayload
}

func NewObj(p ObjPayload) *Obj { return &Obj{Payload: p} }

func (o *Obj) String() string { return o.Payload.String() }
func (o *Obj) Type() string   { return o.Payload.Type() }
func (o *Obj) Equal(other Value) bool {
	v, ok := other.(*Obj)
	if !ok {
		return false
	}
	if o == v {
		return true
	}
	return o.Payload.Equal(v.Payload)
}

// ObjPayload is implemented by every boxed object kind an *Obj can wrap.
type ObjPayload interface {
	String() string
	Type() string
	Equal(other ObjPayload) bool
}

// StringObj is a boxed UTF-8 string (the result of
// StrConcat, a string literal constant, or a slice of another string).
type StringObj struct{ S string }

func (s *StringObj) String() string { return s.S }
func (s *StringObj) Type() string   { return "String" }
func (s *StringObj) Equal(o ObjPayload) bool {
	v, ok := o.(*StringObj)
	return ok && v.S == s.S
}

// ArrayObj is a boxed, mutable sequence of Values.
type ArrayObj struct{ Items []Value }

func (a *ArrayObj) String() string {
	parts := make([]string, len(a.Items))
	for i, it := range a.Items {
		parts[i] = it.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (a *ArrayObj) Type() string { return "Array" }
func (a *ArrayObj) Equal(o ObjPayload) bool {
	v, ok := o.(*ArrayObj)
	if !ok || len(v.Items) != len(a.Items) {
		return false
	}
	for i := range a.Items {
		if !a.Items[i].Equal(v.Items[i]) {
			return false
		}
	}
	return true
}

// OptionObj carries either Some(Value) or None; it is the result type of
// fallible lookups (ArrLoad) and the operand Coalesce pattern-matches on.
type OptionObj struct {
	Some  bool
	Inner Value
}

func Some(v Value) *Obj { return NewObj(&OptionObj{Some: true, Inner: v}) }
func None() *Obj        { return NewObj(&OptionObj{Some: false}) }

func (o *OptionObj) String() string {
	if !o.Some {
		return "None"
	}
	return fmt.Sprintf("Some(%s)", o.Inner.String())
}
func (o *OptionObj) Type() string { return "Option" }
func (o *OptionObj) Equal(other ObjPayload) bool {
	v, ok := other.(*OptionObj)
	if !ok || v.Some != o.Some {
		return false
	}
	if !o.Some {
		return true
	}
	return o.Inner.Equal(v.Inner)
}

// TupleObj and SetObj round out the Value taxonomy spec section 3 names.
// No opcode in the MVP's instruction set constructs either (see
// SPEC_FULL.md section C) — they exist so a host-injected tuple or set can
// still be pushed, compared, and round-tripped through the stack.
type TupleObj struct{ Items []Value }

func NewTuple(items []Value) *TupleObj { return &TupleObj{Items: items} }

func (t *TupleObj) String() string {
	parts := make([]string, len(t.Items))
	for i, it := range t.Items {
		parts[i] = it.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (t *TupleObj) Type() string { return "Tuple" }
func (t *TupleObj) Equal(o ObjPayload) bool {
	v, ok := o.(*TupleObj)
	if !ok || len(v.Items) != len(t.Items) {
		return false
	}
	for i := range t.Items {
		if !t.Items[i].Equal(v.Items[i]) {
			return false
		}
	}
	return true
}

type SetObj struct{ Items []Value }

func (s *SetObj) String() string {
	parts := make([]string, len(s.Items))
	for i, it := range s.Items {
		parts[i] = it.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (s *SetObj) Type() string { return "Set" }
func (s *SetObj) Contains(v Value) bool {
	for _, it := range s.Items {
		if it.Equal(v) {
			return true
		}
	}
	return false
}
func (s *SetObj) Equal(o ObjPayload) bool {
	v, ok := o.(*SetObj)
	if !ok || len(v.Items) != len(s.Items) {
		return false
	}
	for _, it := range s.Items {
		if !v.Contains(it) {
			return false
		}
	}
	return true
}
