package tensor

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Converter is the CPU reference implementation of texture-to-tensor
// conversion. It resamples the source under the same output-to-input affine
// contract as the GPU converter, using bilinear filtering, then packs the
// result row-major with per-channel normalization and element conversion.
//
// The returned tensor aliases an internal buffer reused on every call.
// Convert is not safe for concurrent use on one instance.
type Converter struct {
	cfg     Config
	out     Tensor
	scratch *image.NRGBA
	last    Matrix
}

// NewConverter validates cfg and allocates the output and scratch buffers.
func NewConverter(cfg Config) (*Converter, error) {
	out, err := NewTensor(cfg)
	if err != nil {
		return nil, err
	}
	return &Converter{
		cfg:     cfg,
		out:     out,
		scratch: image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
		last:    Identity(),
	}, nil
}

// Config returns the conversion configuration.
func (c *Converter) Config() Config { return c.cfg }

// LastMatrix returns the matrix used by the most recent conversion.
func (c *Converter) LastMatrix() Matrix { return c.last }

// Convert resamples src under m (output normalized coords to input
// normalized coords) into the configured tensor layout. Destination pixels
// that map outside the source read as zero.
func (c *Converter) Convert(src image.Image, m Matrix) (Tensor, error) {
	if src == nil {
		return Tensor{}, fmt.Errorf("tensor: nil source image")
	}

	aff, err := srcToDstAffine(m, src.Bounds(), c.cfg.Width, c.cfg.Height)
	if err != nil {
		return Tensor{}, err
	}

	clear(c.scratch.Pix)
	draw.BiLinear.Transform(c.scratch, aff, src, src.Bounds(), draw.Src, nil)

	c.pack()
	c.last = m
	return c.out, nil
}

// ConvertAspect derives the matrix for the given aspect policy from the
// source and configured dimensions, then converts.
func (c *Converter) ConvertAspect(src image.Image, mode AspectMode) (Tensor, error) {
	if src == nil {
		return Tensor{}, fmt.Errorf("tensor: nil source image")
	}
	m, err := c.AspectMatrix(src, mode)
	if err != nil {
		return Tensor{}, err
	}
	return c.Convert(src, m)
}

// AspectMatrix computes the sampling matrix for src under the given mode
// without performing a conversion.
func (c *Converter) AspectMatrix(src image.Image, mode AspectMode) (Matrix, error) {
	b := src.Bounds()
	return AspectMatrix(b.Dx(), b.Dy(), c.cfg.Width, c.cfg.Height, mode)
}

// pack converts the resampled scratch surface into the output tensor.
func (c *Converter) pack() {
	cfg := c.cfg
	fs := c.out.Float32s()
	bs := c.out.Uint8s()

	for y := 0; y < cfg.Height; y++ {
		row := y * c.scratch.Stride
		for x := 0; x < cfg.Width; x++ {
			pix := row + x*4
			base := (y*cfg.Width + x) * cfg.Channels
			for ch := 0; ch < cfg.Channels; ch++ {
				mean, std := cfg.Norm(ch)
				v := float32(c.scratch.Pix[pix+ch]) / 255
				v = (v - mean) / std
				switch cfg.Element {
				case Float32:
					fs[base+ch] = v
				case Uint8:
					bs[base+ch] = clamp255(v)
				}
			}
		}
	}
}

// srcToDstAffine inverts the output-to-input sampling matrix and rescales it
// to the pixel-space source-to-destination form x/image/draw transforms
// expect. The 2D linear part of m must be invertible.
func srcToDstAffine(m Matrix, srcBounds image.Rectangle, dstW, dstH int) (f64.Aff3, error) {
	srcW := float64(srcBounds.Dx())
	srcH := float64(srcBounds.Dy())
	if srcW == 0 || srcH == 0 {
		return f64.Aff3{}, fmt.Errorf("tensor: empty source image")
	}

	a := float64(m[0])
	b := float64(m[4])
	cc := float64(m[1])
	d := float64(m[5])
	tx := float64(m[12])
	ty := float64(m[13])

	det := a*d - b*cc
	if math.Abs(det) < 1e-12 {
		return f64.Aff3{}, fmt.Errorf("%w: singular sampling matrix", ErrInvalidConfig)
	}

	w := float64(dstW)
	h := float64(dstH)
	aff := f64.Aff3{
		w * d / (det * srcW), -w * b / (det * srcH), w * (b*ty - d*tx) / det,
		-h * cc / (det * srcW), h * a / (det * srcH), h * (cc*tx - a*ty) / det,
	}

	// Fold in a non-zero source bounds origin.
	minX := float64(srcBounds.Min.X)
	minY := float64(srcBounds.Min.Y)
	aff[2] -= aff[0]*minX + aff[1]*minY
	aff[5] -= aff[3]*minX + aff[4]*minY
	return aff, nil
}
