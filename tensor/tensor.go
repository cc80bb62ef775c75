package tensor

import (
	"fmt"
	"unsafe"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a flat, row-major (height, width, channel) view over a byte
// buffer. Tensors returned by a converter alias the converter's mirror
// buffer: the contents stay valid only until the next conversion call on
// that converter. Copy Bytes() out to retain a frame.
type Tensor struct {
	width    int
	height   int
	channels int
	elem     ElementType
	data     []byte
}

// NewTensor allocates a zeroed tensor for cfg.
func NewTensor(cfg Config) (Tensor, error) {
	if err := cfg.Validate(); err != nil {
		return Tensor{}, err
	}
	return View(cfg, make([]byte, cfg.ByteLen()))
}

// View wraps an existing byte buffer of exactly cfg.ByteLen() bytes.
func View(cfg Config, data []byte) (Tensor, error) {
	if err := cfg.Validate(); err != nil {
		return Tensor{}, err
	}
	if len(data) != cfg.ByteLen() {
		return Tensor{}, fmt.Errorf("tensor: buffer is %d bytes, config needs %d", len(data), cfg.ByteLen())
	}
	return Tensor{
		width:    cfg.Width,
		height:   cfg.Height,
		channels: cfg.Channels,
		elem:     cfg.Element,
		data:     data,
	}, nil
}

func (t Tensor) Width() int           { return t.width }
func (t Tensor) Height() int          { return t.height }
func (t Tensor) Channels() int        { return t.channels }
func (t Tensor) Element() ElementType { return t.elem }

// Shape returns the row-major dimensions (height, width, channels).
func (t Tensor) Shape() [3]int {
	return [3]int{t.height, t.width, t.channels}
}

// Len returns the element count height*width*channels.
func (t Tensor) Len() int {
	return t.height * t.width * t.channels
}

// Bytes returns the raw backing buffer, length Len()*Element().Size().
func (t Tensor) Bytes() []byte {
	return t.data
}

// Float32s reinterprets the backing buffer as float32 elements. Returns nil
// unless the element type is Float32.
func (t Tensor) Float32s() []float32 {
	if t.elem != Float32 || len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), t.Len())
}

// Uint8s returns the backing buffer as elements. Returns nil unless the
// element type is Uint8.
func (t Tensor) Uint8s() []uint8 {
	if t.elem != Uint8 {
		return nil
	}
	return t.data
}

// At returns the element at (x, y, channel) as a float64, with Uint8
// elements mapped back to 0..1.
func (t Tensor) At(x, y, ch int) float64 {
	idx := (y*t.width+x)*t.channels + ch
	switch t.elem {
	case Float32:
		return float64(t.Float32s()[idx])
	case Uint8:
		return float64(t.data[idx]) / 255
	default:
		return 0
	}
}

// Dense copies a Float32 tensor into a gonum matrix with Height rows and
// Width*Channels columns, for interop with gonum-based pipelines.
func (t Tensor) Dense() (*mat.Dense, error) {
	f := t.Float32s()
	if f == nil {
		return nil, fmt.Errorf("tensor: Dense requires a float32 tensor, have %s", t.elem)
	}
	data := make([]float64, len(f))
	for i, v := range f {
		data[i] = float64(v)
	}
	return mat.NewDense(t.height, t.width*t.channels, data), nil
}
