package tensor

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("tensor: invalid config")

// Config describes the tensor a converter produces. It is fixed for the
// lifetime of the converter built from it.
type Config struct {
	Width    int // target width in pixels, > 0
	Height   int // target height in pixels, > 0
	Channels int // channel count, 1..4, selecting the leading RGBA components

	Element ElementType

	// Mean and Std apply per-channel normalization (v - Mean[c]) / Std[c]
	// to the sampled 0..1 value before element conversion. A zero Std
	// component is treated as 1, so the zero value of Config performs no
	// normalization.
	Mean [4]float32
	Std  [4]float32
}

// Validate reports the first configuration violation, wrapped in
// ErrInvalidConfig. Violations are programmer errors and fatal to
// construction.
func (c Config) Validate() error {
	if c.Width <= 0 {
		return fmt.Errorf("%w: width %d must be positive", ErrInvalidConfig, c.Width)
	}
	if c.Height <= 0 {
		return fmt.Errorf("%w: height %d must be positive", ErrInvalidConfig, c.Height)
	}
	if c.Channels < 1 || c.Channels > 4 {
		return fmt.Errorf("%w: channels %d must be in [1,4]", ErrInvalidConfig, c.Channels)
	}
	if c.Element.Size() == 0 {
		return fmt.Errorf("%w: unknown element type %d", ErrInvalidConfig, int(c.Element))
	}
	return nil
}

// Elems returns the element count Width*Height*Channels.
func (c Config) Elems() int {
	return c.Width * c.Height * c.Channels
}

// ByteLen returns the byte length of the produced tensor,
// Width*Height*Channels*Element.Size().
func (c Config) ByteLen() int {
	return c.Elems() * c.Element.Size()
}

// Norm returns the normalization pair for channel i with the zero-means-one
// Std default applied.
func (c Config) Norm(i int) (mean, std float32) {
	std = c.Std[i]
	if std == 0 {
		std = 1
	}
	return c.Mean[i], std
}
