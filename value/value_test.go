package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt_StringAndEqual(t *testing.T) {
	assert.Equal(t, "7", Int(7).String())
	assert.True(t, Int(7).Equal(Int(7)))
	assert.False(t, Int(7).Equal(Int(8)))
	assert.False(t, Int(7).Equal(Float(7)))
}

func TestFloat_HashIsStableAcrossEqualValues(t *testing.T) {
	assert.Equal(t, Float(1.5).Hash(), Float(1.5).Hash())
	assert.NotEqual(t, Float(1.5).Hash(), Float(2.5).Hash())
}

func TestFloat_HashCollapsesNaNToOneBucket(t *testing.T) {
	nan := Float(nanFloat())
	assert.Equal(t, nan.Hash(), Float(nanFloat()).Hash())
}

func nanFloat() float64 {
	var zero float64
	return zero / zero
}

func TestNil_EqualsOnlyNil(t *testing.T) {
	assert.True(t, NilVal.Equal(Nil{}))
	assert.False(t, NilVal.Equal(Int(0)))
}

func TestObj_EqualDelegatesToPayload(t *testing.T) {
	a := NewObj(&StringObj{S: "hi"})
	b := NewObj(&StringObj{S: "hi"})
	c := NewObj(&StringObj{S: "bye"})

	assert.True(t, a.Equal(b), "distinct *Obj wrapping equal payloads should compare equal")
	assert.False(t, a.Equal(c))
	assert.True(t, a.Equal(a), "identical pointer short-circuits to equal")
}

func TestObj_SharedHandleObservesMutationThroughEitherAlias(t *testing.T) {
	arr := NewObj(&ArrayObj{Items: []Value{Int(1), Int(2)}})
	alias := arr

	alias.Payload.(*ArrayObj).Items[0] = Int(99)

	assert.Equal(t, Int(99), arr.Payload.(*ArrayObj).Items[0])
}

func TestArrayObj_StringAndEqual(t *testing.T) {
	a := &ArrayObj{Items: []Value{Int(1), Int(2)}}
	b := &ArrayObj{Items: []Value{Int(1), Int(2)}}
	c := &ArrayObj{Items: []Value{Int(1)}}

	assert.Equal(t, "[1, 2]", a.String())
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestOptionObj_SomeAndNone(t *testing.T) {
	some := Some(Int(5))
	none := None()

	assert.Equal(t, "Some(5)", some.String())
	assert.Equal(t, "None", none.String())
	assert.False(t, some.Equal(none))
	assert.True(t, some.Equal(Some(Int(5))))
	assert.True(t, none.Equal(None()))
}

func TestTupleObj_StringAndEqual(t *testing.T) {
	tup := NewTuple([]Value{Int(1), Str("x")})
	assert.Equal(t, "(1, x)", tup.String())
	assert.True(t, tup.Equal(NewTuple([]Value{Int(1), Str("x")})))
	assert.False(t, tup.Equal(NewTuple([]Value{Int(1)})))
}

func TestSetObj_ContainsIsOrderIndependentEquality(t *testing.T) {
	a := &SetObj{Items: []Value{Int(1), Int(2)}}
	b := &SetObj{Items: []Value{Int(2), Int(1)}}

	assert.True(t, a.Contains(Int(1)))
	assert.False(t, a.Contains(Int(3)))
	assert.True(t, a.Equal(b), "sets compare equal regardless of item order")
}

func TestMapObj_PutGetLenAndEqual(t *testing.T) {
	m := NewMap(4)
	m.Put(Str("a"), Int(1))
	m.Put(Str("b"), Int(2))

	v, ok := m.Get(Str("a"))
	assert.True(t, ok)
	assert.Equal(t, Int(1), v)
	assert.Equal(t, 2, m.Len())

	other := NewMap(4)
	other.Put(Str("b"), Int(2))
	other.Put(Str("a"), Int(1))
	assert.True(t, m.Equal(other), "maps compare equal regardless of insertion order")

	other.Put(Str("a"), Int(99))
	assert.False(t, m.Equal(other))
}

func TestMapObj_NewMapClampsNonPositiveSize(t *testing.T) {
	m := NewMap(0)
	m.Put(Str("k"), Int(1))
	v, ok := m.Get(Str("k"))
	assert.True(t, ok)
	assert.Equal(t, Int(1), v)
}
