package gpu

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/openfluke/tapestry/tensor"
)

// requireGPU skips the test when no adapter is available, so the suite
// stays green on CI machines without GPU access.
func requireGPU(t *testing.T) {
	t.Helper()
	if err := EnsureGPU(); err != nil {
		t.Skipf("no GPU available: %v", err)
	}
}

// Validation happens before any GPU work, so these cases run everywhere.
func TestNewConverterInvalidSpec(t *testing.T) {
	cases := []struct {
		name string
		spec ConverterSpec
	}{
		{"zero width", ConverterSpec{Config: tensor.Config{Width: 0, Height: 2, Channels: 1, Element: tensor.Float32}}},
		{"zero height", ConverterSpec{Config: tensor.Config{Width: 2, Height: 0, Channels: 1, Element: tensor.Float32}}},
		{"channels high", ConverterSpec{Config: tensor.Config{Width: 2, Height: 2, Channels: 5, Element: tensor.Float32}}},
		{"channels low", ConverterSpec{Config: tensor.Config{Width: 2, Height: 2, Channels: 0, Element: tensor.Float32}}},
		{"bad element", ConverterSpec{Config: tensor.Config{Width: 2, Height: 2, Channels: 1, Element: tensor.ElementType(9)}}},
		{"missing entry", ConverterSpec{
			Config: tensor.Config{Width: 2, Height: 2, Channels: 1, Element: tensor.Float32},
			WGSL:   "fn other() {}",
		}},
	}
	for _, tc := range cases {
		if _, err := NewConverter(tc.spec); !errors.Is(err, tensor.ErrInvalidConfig) {
			t.Errorf("%s: got %v, want ErrInvalidConfig", tc.name, err)
		}
	}
}

func mustGPUConverter(t *testing.T, cfg tensor.Config) *Converter {
	t.Helper()
	c, err := NewConverter(ConverterSpec{Config: cfg})
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func mustTexture(t *testing.T, w, h int, col color.NRGBA) *Texture {
	t.Helper()
	tex, err := NewTextureFromImage(tensor.ConstantImage(w, h, col))
	if err != nil {
		t.Fatalf("NewTextureFromImage: %v", err)
	}
	t.Cleanup(tex.Release)
	return tex
}

// TestConvertConstantTexture runs the 4x2x1 constant-color scenario end to
// end: dispatch, readback, and the buffer sizing invariant.
func TestConvertConstantTexture(t *testing.T) {
	requireGPU(t)

	cfg := tensor.Config{Width: 4, Height: 2, Channels: 1, Element: tensor.Float32}
	c := mustGPUConverter(t, cfg)
	src := mustTexture(t, 8, 8, color.NRGBA{R: 128, G: 128, B: 128, A: 255})

	out, err := c.ConvertAspect(src, tensor.AspectNone)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Bytes()) != cfg.ByteLen() {
		t.Fatalf("mirror is %d bytes, want %d", len(out.Bytes()), cfg.ByteLen())
	}
	fs := out.Float32s()
	if len(fs) != 8 {
		t.Fatalf("got %d elements, want 8", len(fs))
	}
	want := 128.0 / 255.0
	for i, v := range fs {
		// rgba8unorm sampling quantizes to 1/255 steps.
		if math.Abs(float64(v)-want) > 1.0/255 {
			t.Errorf("element %d = %v, want ~%v", i, v, want)
		}
	}
}

func TestConvertIdempotent(t *testing.T) {
	requireGPU(t)

	c := mustGPUConverter(t, tensor.Config{Width: 16, Height: 16, Channels: 3, Element: tensor.Float32})
	src := mustTexture(t, 32, 16, color.NRGBA{R: 40, G: 80, B: 120, A: 255})
	m, err := c.AspectMatrix(src, tensor.AspectFit)
	if err != nil {
		t.Fatal(err)
	}

	first, err := c.Convert(src, m)
	if err != nil {
		t.Fatal(err)
	}
	snapshot := append([]byte(nil), first.Bytes()...)

	second, err := c.Convert(src, m)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range second.Bytes() {
		if snapshot[i] != b {
			t.Fatalf("byte %d differs between identical conversions", i)
		}
	}
}

// TestConvertFitLetterbox checks that sampling outside the source reads as
// zero on the GPU path, matching the CPU reference converter.
func TestConvertFitLetterbox(t *testing.T) {
	requireGPU(t)

	c := mustGPUConverter(t, tensor.Config{Width: 100, Height: 100, Channels: 1, Element: tensor.Float32})
	src := mustTexture(t, 200, 100, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	out, err := c.ConvertAspect(src, tensor.AspectFit)
	if err != nil {
		t.Fatal(err)
	}
	for _, y := range []int{2, 5, 95, 98} {
		if v := out.At(50, y, 0); v != 0 {
			t.Errorf("letterbox row %d = %v, want 0", y, v)
		}
	}
	for _, y := range []int{30, 50, 70} {
		if v := out.At(50, y, 0); math.Abs(v-1) > 1.0/255 {
			t.Errorf("visible row %d = %v, want 1", y, v)
		}
	}

	if c.Surface() == nil {
		t.Error("intermediate surface accessor returned nil")
	}
	if c.LastMatrix() == (tensor.Matrix{}) {
		t.Error("LastMatrix not updated")
	}
}

func TestConvertUint8(t *testing.T) {
	requireGPU(t)

	c := mustGPUConverter(t, tensor.Config{Width: 4, Height: 4, Channels: 3, Element: tensor.Uint8})
	src := mustTexture(t, 16, 16, color.NRGBA{R: 64, G: 128, B: 255, A: 255})

	out, err := c.ConvertAspect(src, tensor.AspectNone)
	if err != nil {
		t.Fatal(err)
	}
	bs := out.Uint8s()
	if len(bs) != 48 {
		t.Fatalf("got %d bytes, want 48", len(bs))
	}
	for i := 0; i < len(bs); i += 3 {
		if delta(bs[i], 64) > 1 || delta(bs[i+1], 128) > 1 || delta(bs[i+2], 255) > 1 {
			t.Fatalf("pixel %d = (%d, %d, %d), want ~(64, 128, 255)", i/3, bs[i], bs[i+1], bs[i+2])
		}
	}
}

func delta(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// TestCloseGuards verifies disposal is idempotent and conversion after
// disposal is rejected instead of silently touching freed resources.
func TestCloseGuards(t *testing.T) {
	requireGPU(t)

	c, err := NewConverter(ConverterSpec{Config: tensor.Config{Width: 4, Height: 4, Channels: 1, Element: tensor.Float32}})
	if err != nil {
		t.Fatal(err)
	}
	src := mustTexture(t, 4, 4, color.NRGBA{A: 255})

	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := c.ConvertAspect(src, tensor.AspectNone); !errors.Is(err, ErrConverterClosed) {
		t.Errorf("Convert after Close: got %v, want ErrConverterClosed", err)
	}
}
