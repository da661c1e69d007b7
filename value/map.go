package value

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// MapObj is a boxed Value→Value dictionary, backed by a swiss table for
// O(1) amortized Get/Put. Grounded directly on mna-nenuphar's
// lang/machine/map.go, which wraps the same library the same way for the
// same reason (a scripting-language map value needs open-addressed
// hashing over an interface-typed key, not Go's builtin map, since
// Value's concrete key types are boxed behind the Value interface).
type MapObj struct {
	m *swiss.Map[Value, Value]
}

// NewMap returns a map value pre-sized for at least size entries.
func NewMap(size int) *MapObj {
	if size < 1 {
		size = 1
	}
	return &MapObj{m: swiss.NewMap[Value, Value](uint32(size))}
}

// Put inserts or overwrites the value for k. Later writes for an equal key
// win, matching what a source-level map literal with duplicate keys would
// imply.
func (m *MapObj) Put(k, v Value) { m.m.Put(k, v) }

// Get returns the value for k and whether it was present.
func (m *MapObj) Get(k Value) (Value, bool) { return m.m.Get(k) }

// Len reports the number of entries.
func (m *MapObj) Len() int { return m.m.Count() }

func (m *MapObj) String() string { return fmt.Sprintf("map(%d entries)", m.Len()) }
func (m *MapObj) Type() string   { return "Map" }
func (m *MapObj) Equal(o ObjPayload) bool {
	v, ok := o.(*MapObj)
	if !ok || v.Len() != m.Len() {
		return false
	}
	eq := true
	m.m.Iter(func(k, val Value) (stop bool) {
		other, present := v.Get(k)
		if !present || !other.Equal(val) {
			eq = false
			return true
		}
		return false
	})
	return eq
}
