package screenshot

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/timdodge/grimshot/internal/errdefs"
)

const integerScaleTolerance = 0.01

var lanczos3 = &draw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		if t == 0 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		pt := math.Pi * t
		return 3 * math.Sin(pt) * math.Sin(pt/3) / (pt * pt)
	},
}

// Scale resizes c by factor. A factor of exactly 1 returns c itself.
func Scale(c *CaptureResult, factor float64) (*CaptureResult, error) {
	if factor == 1.0 {
		return c, nil
	}
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return nil, fmt.Errorf("%w: invalid scale factor %v", errdefs.ErrScalingFailed, factor)
	}

	if k, ok := integerUpscale(factor); ok {
		return replicate(c, k), nil
	}

	w := scaledDim(c.Width, factor)
	h := scaledDim(c.Height, factor)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d -> %dx%d at factor %v", errdefs.ErrScalingFailed, c.Width, c.Height, w, h, factor)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	interpolatorFor(factor).Scale(dst, dst.Bounds(), c.ToImage(), image.Rect(0, 0, c.Width, c.Height), draw.Src, nil)
	return &CaptureResult{Data: dst.Pix, Width: w, Height: h}, nil
}

func scaledDim(n int, factor float64) int {
	return int(math.Floor(float64(n)*factor + 1e-6))
}

func integerUpscale(factor float64) (int, bool) {
	if factor <= 1 {
		return 0, false
	}
	rounded := math.Round(factor)
	if math.Abs(factor-rounded) >= integerScaleTolerance {
		return 0, false
	}
	switch k := int(rounded); k {
	case 2, 3, 4:
		return k, true
	}
	return 0, false
}

func interpolatorFor(factor float64) draw.Interpolator {
	switch {
	case factor > 1:
		return draw.NearestNeighbor
	case factor >= 0.75:
		return draw.BiLinear
	case factor >= 0.5:
		return draw.CatmullRom
	default:
		return lanczos3
	}
}

// replicate copies every source pixel into a k×k block.
func replicate(c *CaptureResult, k int) *CaptureResult {
	out := newCaptureResult(c.Width*k, c.Height*k)
	dstRow := out.Width * 4
	for y := 0; y < c.Height; y++ {
		first := out.Data[y*k*dstRow : (y*k+1)*dstRow]
		src := c.Data[y*c.Width*4 : (y+1)*c.Width*4]
		for x := 0; x < c.Width; x++ {
			px := src[x*4 : x*4+4]
			for i := 0; i < k; i++ {
				copy(first[(x*k+i)*4:], px)
			}
		}
		for i := 1; i < k; i++ {
			copy(out.Data[(y*k+i)*dstRow:(y*k+i+1)*dstRow], first)
		}
	}
	return out
}
