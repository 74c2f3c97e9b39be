// Package std140 packs scalars, vectors, matrices and nested structures into byte buffers
// laid out with the std140 uniform alignment rules.
//
// Scalars align to 4 bytes, 2-component vectors to 8, and 3-/4-component vectors and matrix
// columns to 16. A Buffer tracks the largest alignment it has seen; Align pads the buffer to it.
package std140

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Marshaler is implemented by types that serialize themselves into a std140 Buffer.
type Marshaler interface {
	// Std140 returns the std140 representation of the value.
	//
	// Returns:
	//   - *Buffer: the serialized value, usually already aligned
	Std140() *Buffer
}

// Buffer is an append-only std140 byte sequence.
// Every Write method pads to the alignment of the written type and returns the buffer itself for chaining.
type Buffer struct {
	bytes     []byte
	alignment int
}

const (
	scalarAlign = 4
	vec2Align   = 8
	vec4Align   = 16
)

// New creates an empty Buffer with zero alignment.
func New() *Buffer {
	return &Buffer{}
}

// Bytes returns the serialized bytes. The slice aliases the buffer's storage.
func (b *Buffer) Bytes() []byte {
	return b.bytes
}

// Len returns the current length in bytes.
func (b *Buffer) Len() int {
	return len(b.bytes)
}

// Alignment returns the largest alignment written so far.
func (b *Buffer) Alignment() int {
	return b.alignment
}

func (b *Buffer) pad(align int) {
	if align == 0 {
		return
	}
	if rem := len(b.bytes) % align; rem != 0 {
		b.bytes = append(b.bytes, make([]byte, align-rem)...)
	}
}

func (b *Buffer) writeSlice(align int, data []byte) *Buffer {
	b.alignment = max(b.alignment, align)
	b.pad(align)
	b.bytes = append(b.bytes, data...)
	return b
}

func (b *Buffer) words(align int, words ...uint32) *Buffer {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return b.writeSlice(align, data)
}

func floatWords(values ...float32) []uint32 {
	words := make([]uint32, len(values))
	for i, v := range values {
		words[i] = math.Float32bits(v)
	}
	return words
}

func intWords(values ...int32) []uint32 {
	words := make([]uint32, len(values))
	for i, v := range values {
		words[i] = uint32(v)
	}
	return words
}

func (b *Buffer) WriteU32(v uint32) *Buffer {
	return b.words(scalarAlign, v)
}

func (b *Buffer) WriteUVec2(v [2]uint32) *Buffer {
	return b.words(vec2Align, v[:]...)
}

func (b *Buffer) WriteUVec3(v [3]uint32) *Buffer {
	return b.words(vec4Align, v[:]...)
}

func (b *Buffer) WriteUVec4(v [4]uint32) *Buffer {
	return b.words(vec4Align, v[:]...)
}

func (b *Buffer) WriteI32(v int32) *Buffer {
	return b.words(scalarAlign, uint32(v))
}

func (b *Buffer) WriteIVec2(v [2]int32) *Buffer {
	return b.words(vec2Align, intWords(v[:]...)...)
}

func (b *Buffer) WriteIVec3(v [3]int32) *Buffer {
	return b.words(vec4Align, intWords(v[:]...)...)
}

func (b *Buffer) WriteIVec4(v [4]int32) *Buffer {
	return b.words(vec4Align, intWords(v[:]...)...)
}

func (b *Buffer) WriteF32(v float32) *Buffer {
	return b.words(scalarAlign, math.Float32bits(v))
}

// WriteBool writes a boolean as a 4-byte scalar holding 0 or 1.
func (b *Buffer) WriteBool(v bool) *Buffer {
	if v {
		return b.WriteU32(1)
	}
	return b.WriteU32(0)
}

func (b *Buffer) WriteVec2(v mgl32.Vec2) *Buffer {
	return b.words(vec2Align, floatWords(v[:]...)...)
}

func (b *Buffer) WriteVec3(v mgl32.Vec3) *Buffer {
	return b.words(vec4Align, floatWords(v[:]...)...)
}

func (b *Buffer) WriteVec4(v mgl32.Vec4) *Buffer {
	return b.words(vec4Align, floatWords(v[:]...)...)
}

// WriteMat3 writes a 3x3 matrix as three 16-aligned vec3 columns.
// The last column is not padded; a following scalar may pack into its fourth component.
func (b *Buffer) WriteMat3(m mgl32.Mat3) *Buffer {
	return b.WriteVec3(m.Col(0)).WriteVec3(m.Col(1)).WriteVec3(m.Col(2))
}

// WriteMat4 writes a 4x4 matrix as four vec4 columns.
func (b *Buffer) WriteMat4(m mgl32.Mat4) *Buffer {
	return b.WriteVec4(m.Col(0)).WriteVec4(m.Col(1)).WriteVec4(m.Col(2)).WriteVec4(m.Col(3))
}

// WriteStruct serializes a nested value and appends it at the nested buffer's alignment.
// The nested alignment is folded into this buffer's alignment.
//
// Parameters:
//   - v: the nested value
//
// Returns:
//   - *Buffer: the receiver, for chaining
func (b *Buffer) WriteStruct(v Marshaler) *Buffer {
	nested := v.Std140()
	return b.writeSlice(nested.alignment, nested.bytes)
}

// WriteStructs writes a fixed-length array of nested values.
// Slots past len(items) are filled with the serialization of zero.
//
// Parameters:
//   - items: the values to write, truncated to capacity
//   - capacity: the declared array length
//   - zero: a zero value of the element type, used to size the empty slots
//
// Returns:
//   - *Buffer: the receiver, for chaining
func WriteStructs[T Marshaler](b *Buffer, items []T, capacity int, zero T) *Buffer {
	for i := 0; i < capacity; i++ {
		if i < len(items) {
			b.WriteStruct(items[i])
			continue
		}
		b.WriteStruct(zero)
	}
	return b
}

// Align pads the buffer to a multiple of its maximum alignment.
// An empty buffer with zero alignment is left unchanged.
func (b *Buffer) Align() *Buffer {
	b.pad(b.alignment)
	return b
}
