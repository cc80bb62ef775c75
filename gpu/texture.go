package gpu

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/openfluke/webgpu/wgpu"
)

// Texture wraps a sampleable 2D RGBA texture and its default view. A
// Texture is owned by its creator and must be released exactly once;
// converters only borrow it for the duration of a call.
type Texture struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	width  int
	height int
}

// NewTexture creates an empty w x h RGBA texture that can be sampled by
// conversion kernels and filled with Upload.
func NewTexture(w, h int) (*Texture, error) {
	return newTexture(w, h, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst, "tapestry_src")
}

// NewTextureFromImage creates a texture sized to img and uploads its pixels.
func NewTextureFromImage(img image.Image) (*Texture, error) {
	if img == nil {
		return nil, fmt.Errorf("gpu: nil image")
	}
	b := img.Bounds()
	t, err := NewTexture(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	if err := t.Upload(img); err != nil {
		t.Release()
		return nil, err
	}
	return t, nil
}

// newStorageTexture creates the converter's intermediate surface: a
// random-write (storage) target that remains sampleable for inspection.
func newStorageTexture(w, h int, label string) (*Texture, error) {
	return newTexture(w, h, wgpu.TextureUsageStorageBinding|wgpu.TextureUsageTextureBinding, label)
}

func newTexture(w, h int, usage wgpu.TextureUsage, label string) (*Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("gpu: texture dimensions must be positive, got %dx%d", w, h)
	}
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	if rep := c.Report; rep != nil && rep.Limits.MaxTextureDimension2D > 0 {
		if max := int(rep.Limits.MaxTextureDimension2D); w > max || h > max {
			return nil, fmt.Errorf("gpu: texture %dx%d exceeds adapter limit %d", w, h, max)
		}
	}

	tex, err := c.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create texture: %w", err)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("gpu: create texture view: %w", err)
	}

	return &Texture{tex: tex, view: view, width: w, height: h}, nil
}

// Upload replaces the texture contents with img, which must match the
// texture dimensions. Any image type is accepted; pixels are normalized to
// non-premultiplied RGBA on the way in.
func (t *Texture) Upload(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != t.width || b.Dy() != t.height {
		return fmt.Errorf("gpu: image %dx%d does not match texture %dx%d", b.Dx(), b.Dy(), t.width, t.height)
	}
	c, err := GetContext()
	if err != nil {
		return err
	}

	nrgba := imaging.Clone(img)
	c.Queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		nrgba.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(4 * t.width),
			RowsPerImage: uint32(t.height),
		},
		&wgpu.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1},
	)
	return nil
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.height }

// View returns the default view for binding.
func (t *Texture) View() *wgpu.TextureView { return t.view }

// Release frees the GPU resources. Safe to call more than once.
func (t *Texture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Destroy()
		t.tex = nil
	}
}
