// Package value implements the ownership-safe data model shared by every
// plugin interface: tagged values, text, counted lists and the scoped
// release helpers around them.
//
// Whichever side populates a payload supplies the matching free capability.
// The consumer's only obligation is to call Release exactly once, which
// runs the capability and clears the payload to the zero sentinel so a
// second Release is a no-op.
package value

import (
	"fmt"
	"math"
)

// Kind is the tag of a Value. The numeric values are part of the wire ABI.
type Kind uint32

const (
	KindNull    Kind = 0
	KindBool    Kind = 1
	KindInt     Kind = 2
	KindUint    Kind = 3
	KindFloat   Kind = 4
	KindPointer Kind = 5
	KindString  Kind = 6
	KindBuffer  Kind = 7
	KindArray   Kind = 8
	KindCustom  Kind = math.MaxUint32
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindString:
		return "string"
	case KindBuffer:
		return "buffer"
	case KindArray:
		return "array"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// FreeFunc releases the memory owned by v. It runs before v is cleared.
type FreeFunc func(v *Value)

// Value is a tagged union paired with an optional free capability.
// A nil capability means the value owns no memory of its own; arrays
// still release their nested values.
type Value struct {
	ref   any
	free  FreeFunc
	data  []byte
	items []Value
	num   uint64
	size  int
	kind  Kind
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a bool value.
func Bool(b bool) Value {
	v := Value{kind: KindBool, size: 1}
	if b {
		v.num = 1
	}
	return v
}

// Int returns a signed integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: uint64(i), size: 8} }

// Uint returns an unsigned integer value.
func Uint(u uint64) Value { return Value{kind: KindUint, num: u, size: 8} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, num: math.Float64bits(f), size: 8} }

// Pointer returns an opaque pointer value. The host never dereferences it.
func Pointer(p any, size int) Value { return Value{kind: KindPointer, ref: p, size: size} }

// String returns a string value with an explicit byte count.
func String(s string) Value {
	return Value{kind: KindString, data: []byte(s), size: len(s)}
}

// Buffer returns a buffer value borrowing b.
func Buffer(b []byte) Value { return Value{kind: KindBuffer, data: b, size: len(b)} }

// Array returns an array value that owns items.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: items, size: len(items)}
}

// Custom returns a plugin-defined payload of size bytes.
func Custom(payload any, size int) Value { return Value{kind: KindCustom, ref: payload, size: size} }

// WithFree returns a copy of v carrying free as its capability.
func (v Value) WithFree(free FreeFunc) Value {
	v.free = free
	return v
}

// Kind returns the tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value or has been released.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Len returns the byte count for strings and buffers, the element count
// for arrays and the declared size otherwise.
func (v Value) Len() int { return v.size }

// HasFree reports whether v carries a free capability.
func (v Value) HasFree() bool { return v.free != nil }

// AsBool returns the payload of a bool value.
func (v Value) AsBool() (bool, bool) { return v.num != 0, v.kind == KindBool }

// AsInt returns the payload of an int value.
func (v Value) AsInt() (int64, bool) { return int64(v.num), v.kind == KindInt }

// AsUint returns the payload of a uint value.
func (v Value) AsUint() (uint64, bool) { return v.num, v.kind == KindUint }

// AsFloat returns the payload of a float value.
func (v Value) AsFloat() (float64, bool) { return math.Float64frombits(v.num), v.kind == KindFloat }

// AsString returns the payload of a string value.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return string(v.data), true
}

// Bytes returns the raw payload of a string or buffer value.
func (v Value) Bytes() []byte {
	if v.kind != KindString && v.kind != KindBuffer {
		return nil
	}
	return v.data
}

// Items returns the elements of an array value.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Ref returns the payload of a pointer or custom value.
func (v Value) Ref() any {
	if v.kind != KindPointer && v.kind != KindCustom {
		return nil
	}
	return v.ref
}

// Release frees nested array elements, runs the free capability and clears
// v to the null sentinel. Releasing a cleared value does nothing.
func (v *Value) Release() {
	if v == nil {
		return
	}
	for i := range v.items {
		v.items[i].Release()
	}
	if free := v.free; free != nil {
		v.free = nil
		free(v)
	}
	*v = Value{}
}

// Clone returns a deep copy of v that owns no memory of its own.
func (v Value) Clone() Value {
	c := v
	c.free = nil
	if v.data != nil {
		c.data = append([]byte(nil), v.data...)
	}
	if v.items != nil {
		c.items = make([]Value, len(v.items))
		for i, item := range v.items {
			c.items[i] = item.Clone()
		}
	}
	return c
}

// GoString renders v for debugging.
func (v Value) GoString() string {
	switch v.kind {
	case KindBool:
		b, _ := v.AsBool()
		return fmt.Sprintf("value.Bool(%t)", b)
	case KindInt:
		return fmt.Sprintf("value.Int(%d)", int64(v.num))
	case KindUint:
		return fmt.Sprintf("value.Uint(%d)", v.num)
	case KindFloat:
		f, _ := v.AsFloat()
		return fmt.Sprintf("value.Float(%g)", f)
	case KindString:
		return fmt.Sprintf("value.String(%q)", v.data)
	case KindBuffer:
		return fmt.Sprintf("value.Buffer(%d bytes)", len(v.data))
	case KindArray:
		return fmt.Sprintf("value.Array(%d items)", len(v.items))
	default:
		return "value." + v.kind.String()
	}
}
