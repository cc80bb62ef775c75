package tensor

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
)

// DecodeImage decodes an image from r, accepting any format registered with
// the imaging codecs (PNG, JPEG, GIF, TIFF, BMP).
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("tensor: decode image: %w", err)
	}
	return img, nil
}

// OpenImage decodes the image file at path.
func OpenImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tensor: open image: %w", err)
	}
	return img, nil
}

// YUV444ToNRGBA converts planar full-range BT.709 luma/chroma (one sample
// per pixel, chroma centered on zero) into an NRGBA image with opaque alpha.
// This is the shape camera and video pipelines hand frames over in before
// they reach the GPU sampler.
func YUV444ToNRGBA(y, u, v []float32, w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("tensor: frame dimensions must be positive, got %dx%d", w, h)
	}
	n := w * h
	if len(y) != n || len(u) != n || len(v) != n {
		return nil, fmt.Errorf("tensor: plane lengths %d/%d/%d do not match %dx%d frame", len(y), len(u), len(v), w, h)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < n; i++ {
		r := y[i] + 1.5748*v[i]
		g := y[i] - 0.1873*u[i] - 0.4681*v[i]
		b := y[i] + 1.8556*u[i]

		img.Pix[4*i+0] = clamp255(r)
		img.Pix[4*i+1] = clamp255(g)
		img.Pix[4*i+2] = clamp255(b)
		img.Pix[4*i+3] = 0xff
	}
	return img, nil
}

// ConstantImage returns a w x h image filled with c, handy for pipeline
// smoke checks.
func ConstantImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func clamp255(v float32) uint8 {
	s := v * 255
	if s <= 0 {
		return 0
	}
	if s >= 255 {
		return 255
	}
	return uint8(s + 0.5)
}
