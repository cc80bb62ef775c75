package tensor

import (
	"errors"
	"fmt"
)

// AspectMode selects how a source/destination aspect-ratio mismatch is
// resolved during conversion.
type AspectMode int

const (
	// AspectNone stretches the source to fill the destination, ignoring
	// aspect ratio.
	AspectNone AspectMode = 0

	// AspectFit (contain) keeps the whole source visible and letterboxes
	// the destination; padded regions read as zero.
	AspectFit AspectMode = 1

	// AspectFill (cover) covers the whole destination and crops the source
	// edges that do not fit.
	AspectFill AspectMode = 2
)

func (m AspectMode) String() string {
	switch m {
	case AspectNone:
		return "none"
	case AspectFit:
		return "fit"
	case AspectFill:
		return "fill"
	default:
		return fmt.Sprintf("AspectMode(%d)", int(m))
	}
}

// ErrUnknownAspectMode is returned for an unrecognized AspectMode value.
var ErrUnknownAspectMode = errors.New("tensor: unknown aspect mode")

// AspectScale computes the 2D correction factors for sampling a source with
// aspect ratio srcAspect (width/height) into a destination with aspect ratio
// dstAspect under the given mode. Both aspects must be positive.
func AspectScale(srcAspect, dstAspect float64, mode AspectMode) (sx, sy float64, err error) {
	if srcAspect <= 0 || dstAspect <= 0 {
		return 0, 0, fmt.Errorf("tensor: aspect ratios must be positive, got src=%v dst=%v", srcAspect, dstAspect)
	}

	switch mode {
	case AspectNone:
		return 1, 1, nil
	case AspectFit:
		if srcAspect > dstAspect {
			return 1, srcAspect / dstAspect, nil
		}
		return dstAspect / srcAspect, 1, nil
	case AspectFill:
		if srcAspect > dstAspect {
			return dstAspect / srcAspect, 1, nil
		}
		return 1, srcAspect / dstAspect, nil
	default:
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownAspectMode, int(mode))
	}
}

// AspectMatrix builds the sampling transform for converting a srcW x srcH
// image into a dstW x dstH tensor under the given mode. The scale pivots on
// the image center: translate by (-0.5,-0.5), scale, translate back. The
// result maps output normalized coordinates to input normalized coordinates.
func AspectMatrix(srcW, srcH, dstW, dstH int, mode AspectMode) (Matrix, error) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Matrix{}, fmt.Errorf("tensor: dimensions must be positive, got src=%dx%d dst=%dx%d", srcW, srcH, dstW, dstH)
	}

	sx, sy, err := AspectScale(float64(srcW)/float64(srcH), float64(dstW)/float64(dstH), mode)
	if err != nil {
		return Matrix{}, err
	}

	m := Translation(0.5, 0.5).
		Mul(Scale(float32(sx), float32(sy))).
		Mul(Translation(-0.5, -0.5))
	return m, nil
}
