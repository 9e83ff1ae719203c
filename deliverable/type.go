package deliverable

import (
	"reflect"
)

// Type is a runtime type token. Go reifies instantiated generics, so the
// token for Container[Product1] and Container[Product2] compare unequal even
// though both instantiate the same generic type.
type Type struct {
	rt reflect.Type
}

// TypeOf returns the token for T. This is the canonical way to declare slot
// and output types because it captures T exactly, interface types included.
func TypeOf[T any]() Type {
	return Type{rt: reflect.TypeOf((*T)(nil)).Elem()}
}

// TypeOfValue returns the token for the dynamic type of v.
func TypeOfValue(v any) Type {
	return Type{rt: reflect.TypeOf(v)}
}

// FromReflect wraps an existing reflect.Type.
func FromReflect(rt reflect.Type) Type {
	return Type{rt: rt}
}

// Reflect exposes the wrapped reflect.Type. It is nil for the zero token.
func (t Type) Reflect() reflect.Type {
	return t.rt
}

// IsZero reports whether the token carries no type.
func (t Type) IsZero() bool {
	return t.rt == nil
}

// Equal reports structural equality, generic parameters included.
func (t Type) Equal(other Type) bool {
	return t.rt == other.rt
}

func (t Type) String() string {
	if t.rt == nil {
		return "<none>"
	}
	return t.rt.String()
}
