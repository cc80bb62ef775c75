package tensor

import "fmt"

// ElementType identifies the scalar type of a tensor element. Only
// fixed-size, trivially-copyable scalars are supported.
type ElementType int

const (
	Float32 ElementType = 0 // 32-bit IEEE float, the kernel's native type
	Uint8   ElementType = 1 // unsigned byte, 0..255 maps to 0.0..1.0
)

// Size returns the element size in bytes, or 0 for an unknown type.
func (e ElementType) Size() int {
	switch e {
	case Float32:
		return 4
	case Uint8:
		return 1
	default:
		return 0
	}
}

func (e ElementType) String() string {
	switch e {
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("ElementType(%d)", int(e))
	}
}
