package tensor

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{Width: 4, Height: 2, Channels: 1, Element: Float32}, true},
		{"valid rgba uint8", Config{Width: 16, Height: 16, Channels: 4, Element: Uint8}, true},
		{"zero width", Config{Width: 0, Height: 2, Channels: 1, Element: Float32}, false},
		{"negative height", Config{Width: 4, Height: -1, Channels: 1, Element: Float32}, false},
		{"zero channels", Config{Width: 4, Height: 2, Channels: 0, Element: Float32}, false},
		{"five channels", Config{Width: 4, Height: 2, Channels: 5, Element: Float32}, false},
		{"bad element", Config{Width: 4, Height: 2, Channels: 1, Element: ElementType(7)}, false},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("%s: expected error", tc.name)
			} else if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("%s: error %v does not wrap ErrInvalidConfig", tc.name, err)
			}
		}
	}
}

// TestTensorSizing verifies the buffer length invariant
// len == width*height*channels*elemSize for both element types.
func TestTensorSizing(t *testing.T) {
	cases := []Config{
		{Width: 4, Height: 2, Channels: 1, Element: Float32},
		{Width: 224, Height: 224, Channels: 3, Element: Float32},
		{Width: 7, Height: 5, Channels: 4, Element: Uint8},
	}
	for _, cfg := range cases {
		tn, err := NewTensor(cfg)
		if err != nil {
			t.Fatalf("NewTensor(%+v): %v", cfg, err)
		}
		want := cfg.Width * cfg.Height * cfg.Channels * cfg.Element.Size()
		if len(tn.Bytes()) != want {
			t.Errorf("len(Bytes) = %d, want %d", len(tn.Bytes()), want)
		}
		if tn.Len() != cfg.Elems() {
			t.Errorf("Len() = %d, want %d", tn.Len(), cfg.Elems())
		}
		if tn.Shape() != [3]int{cfg.Height, cfg.Width, cfg.Channels} {
			t.Errorf("Shape() = %v", tn.Shape())
		}
	}
}

func TestTensorViews(t *testing.T) {
	ft, err := NewTensor(Config{Width: 3, Height: 2, Channels: 2, Element: Float32})
	if err != nil {
		t.Fatal(err)
	}
	fs := ft.Float32s()
	if len(fs) != 12 {
		t.Fatalf("Float32s length %d, want 12", len(fs))
	}
	if ft.Uint8s() != nil {
		t.Error("Uint8s on a float tensor should be nil")
	}

	fs[7] = 0.5
	if ft.At(0, 1, 1) != 0.5 {
		t.Errorf("At(0,1,1) = %v, want 0.5", ft.At(0, 1, 1))
	}

	bt, err := NewTensor(Config{Width: 3, Height: 2, Channels: 2, Element: Uint8})
	if err != nil {
		t.Fatal(err)
	}
	if bt.Float32s() != nil {
		t.Error("Float32s on a byte tensor should be nil")
	}
	bt.Uint8s()[0] = 255
	if bt.At(0, 0, 0) != 1 {
		t.Errorf("At maps 255 to %v, want 1", bt.At(0, 0, 0))
	}
}

func TestViewLengthMismatch(t *testing.T) {
	cfg := Config{Width: 4, Height: 4, Channels: 3, Element: Float32}
	if _, err := View(cfg, make([]byte, 10)); err == nil {
		t.Error("short buffer must be rejected")
	}
}

func TestTensorDense(t *testing.T) {
	cfg := Config{Width: 3, Height: 2, Channels: 2, Element: Float32}
	tn, err := NewTensor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	fs := tn.Float32s()
	for i := range fs {
		fs[i] = float32(i)
	}

	d, err := tn.Dense()
	if err != nil {
		t.Fatal(err)
	}
	r, c := d.Dims()
	if r != 2 || c != 6 {
		t.Fatalf("Dims = (%d, %d), want (2, 6)", r, c)
	}
	// Row-major HWC flattening: element (y=1, x=2, ch=1) is index 11.
	if got := d.At(1, 5); got != 11 {
		t.Errorf("At(1, 5) = %v, want 11", got)
	}

	bt, _ := NewTensor(Config{Width: 2, Height: 2, Channels: 1, Element: Uint8})
	if _, err := bt.Dense(); err == nil {
		t.Error("Dense on a byte tensor must fail")
	}
}
