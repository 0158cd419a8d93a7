package ir

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tensor is the opaque dense payload carried by constants, tensor
// attributes, and exported initializers. The IR never interprets the
// numbers; numeric kernels are external collaborators. Data is the
// contiguous little-endian encoding of Numel() elements.
type Tensor struct {
	Elem ElemKind
	Dims []int64
	Data []byte
}

// Numel returns the element count implied by Dims. A zero-rank tensor
// is a scalar with one element.
func (t *Tensor) Numel() int64 {
	n := int64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// Type returns the typed-tensor descriptor matching this payload.
func (t *Tensor) Type() *Type {
	return TensorTypeOf(t.Elem, t.Dims...)
}

// Check validates that the payload length matches the shape.
func (t *Tensor) Check() error {
	want := t.Numel() * int64(t.Elem.Size())
	if int64(len(t.Data)) != want {
		return fmt.Errorf("tensor payload is %d bytes, shape %v of %s needs %d",
			len(t.Data), t.Dims, t.Elem, want)
	}
	return nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{Elem: t.Elem, Dims: make([]int64, len(t.Dims)), Data: make([]byte, len(t.Data))}
	copy(c.Dims, t.Dims)
	copy(c.Data, t.Data)
	return c
}

// Equal reports whether two tensors have identical kind, shape and
// payload bytes.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Elem != o.Elem || len(t.Dims) != len(o.Dims) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Dims {
		if t.Dims[i] != o.Dims[i] {
			return false
		}
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// FloatTensor builds a float32 tensor from values in row-major order.
func FloatTensor(dims []int64, values ...float32) *Tensor {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return &Tensor{Elem: ElemFloat32, Dims: dims, Data: data}
}

// LongTensor builds an int64 tensor from values in row-major order.
func LongTensor(dims []int64, values ...int64) *Tensor {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[8*i:], uint64(v))
	}
	return &Tensor{Elem: ElemInt64, Dims: dims, Data: data}
}

// FloatScalar builds a zero-rank float32 tensor.
func FloatScalar(v float32) *Tensor {
	return FloatTensor(nil, v)
}

// LongScalar builds a zero-rank int64 tensor.
func LongScalar(v int64) *Tensor {
	return LongTensor(nil, v)
}

// Floats decodes a float32 tensor back into a slice. It returns an
// error for any other element kind.
func (t *Tensor) Floats() ([]float32, error) {
	if t.Elem != ElemFloat32 {
		return nil, fmt.Errorf("tensor is %s, not Float", t.Elem)
	}
	out := make([]float32, t.Numel())
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[4*i:]))
	}
	return out, nil
}

// Longs decodes an int64 tensor back into a slice.
func (t *Tensor) Longs() ([]int64, error) {
	if t.Elem != ElemInt64 {
		return nil, fmt.Errorf("tensor is %s, not Long", t.Elem)
	}
	out := make([]int64, t.Numel())
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(t.Data[8*i:]))
	}
	return out, nil
}

// String renders a compact form for dumps, e.g. "{Float 2x3}".
func (t *Tensor) String() string {
	if len(t.Dims) == 0 {
		return fmt.Sprintf("{%s scalar}", t.Elem)
	}
	s := fmt.Sprintf("{%s ", t.Elem)
	for i, d := range t.Dims {
		if i > 0 {
			s += "x"
		}
		s += fmt.Sprintf("%d", d)
	}
	return s + "}"
}
