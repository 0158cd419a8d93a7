package ir

import (
	"fmt"
	"strings"
)

// ElemKind identifies the element encoding of a tensor. The numeric
// values are the interchange wire codes and must not be reordered.
type ElemKind int

const (
	ElemFloat32 ElemKind = 1
	ElemInt8    ElemKind = 3
	ElemInt16   ElemKind = 5
	ElemInt32   ElemKind = 6
	ElemInt64   ElemKind = 7
	ElemFloat16 ElemKind = 10
	ElemFloat64 ElemKind = 11
)

// Size returns the byte width of one element.
func (k ElemKind) Size() int {
	switch k {
	case ElemInt8:
		return 1
	case ElemInt16, ElemFloat16:
		return 2
	case ElemFloat32, ElemInt32:
		return 4
	case ElemInt64, ElemFloat64:
		return 8
	default:
		return 0
	}
}

// String returns the human-readable name used in graph dumps.
func (k ElemKind) String() string {
	switch k {
	case ElemFloat32:
		return "Float"
	case ElemFloat64:
		return "Double"
	case ElemFloat16:
		return "Half"
	case ElemInt8:
		return "Char"
	case ElemInt16:
		return "Short"
	case ElemInt32:
		return "Int"
	case ElemInt64:
		return "Long"
	default:
		return fmt.Sprintf("ElemKind(%d)", int(k))
	}
}

// TypeKind discriminates the three value types in the IR.
type TypeKind int

const (
	// KindDynamic marks a value whose type has not been inferred.
	KindDynamic TypeKind = iota

	// KindTensor marks a value with a known element kind and shape.
	KindTensor

	// KindHandle marks an opaque capability value. Handles are never
	// exportable; the lowering pass refuses to rewrite nodes whose
	// trailing handle output is still used.
	KindHandle
)

// Type describes a Value. The zero value is the dynamic type.
type Type struct {
	Kind TypeKind
	Elem ElemKind // tensor only
	Dims []int64  // tensor only
}

// Shared singletons for the shapeless types.
var (
	DynamicType = &Type{Kind: KindDynamic}
	HandleType  = &Type{Kind: KindHandle}
)

// TensorTypeOf builds a typed-tensor descriptor.
func TensorTypeOf(elem ElemKind, dims ...int64) *Type {
	d := make([]int64, len(dims))
	copy(d, dims)
	return &Type{Kind: KindTensor, Elem: elem, Dims: d}
}

// IsTensor reports whether t is a typed-tensor descriptor.
func (t *Type) IsTensor() bool { return t != nil && t.Kind == KindTensor }

// IsHandle reports whether t is the opaque handle type.
func (t *Type) IsHandle() bool { return t != nil && t.Kind == KindHandle }

// String renders the type the way graph dumps print it, e.g.
// "Float(2, 3)", "Dynamic", "Handle".
func (t *Type) String() string {
	if t == nil {
		return "Dynamic"
	}
	switch t.Kind {
	case KindTensor:
		parts := make([]string, len(t.Dims))
		for i, d := range t.Dims {
			parts[i] = fmt.Sprintf("%d", d)
		}
		return fmt.Sprintf("%s(%s)", t.Elem, strings.Join(parts, ", "))
	case KindHandle:
		return "Handle"
	default:
		return "Dynamic"
	}
}
