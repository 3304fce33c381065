package screenshot

import "fmt"

// Transform mirrors the wl_output.transform enum.
type Transform int32

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

var transformNames = [...]string{
	"normal", "90", "180", "270",
	"flipped", "flipped-90", "flipped-180", "flipped-270",
}

func (t Transform) String() string {
	if t < 0 || int(t) >= len(transformNames) {
		return fmt.Sprintf("%d", int32(t))
	}
	return transformNames[t]
}

func (t Transform) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Transform) UnmarshalText(b []byte) error {
	for i, name := range transformNames {
		if name == string(b) {
			*t = Transform(i)
			return nil
		}
	}
	return fmt.Errorf("unknown transform %q", b)
}

// SwapsDimensions reports whether the transform exchanges width and height.
func (t Transform) SwapsDimensions() bool {
	switch t {
	case Transform90, Transform270, TransformFlipped90, TransformFlipped270:
		return true
	}
	return false
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	switch t {
	case Transform90:
		return Transform270
	case Transform270:
		return Transform90
	}
	return t
}

// ApplyTransform returns upright pixel data for a buffer captured from an
// output with transform t. The normal transform returns data unchanged.
func ApplyTransform(data []byte, width, height int, t Transform) ([]byte, int, int) {
	switch t {
	case Transform90:
		return rotate90(data, width, height)
	case Transform180:
		return rotate180(data, width, height), width, height
	case Transform270:
		return rotate270(data, width, height)
	case TransformFlipped:
		return flipHorizontal(data, width, height), width, height
	case TransformFlipped90:
		return rotate90(flipHorizontal(data, width, height), width, height)
	case TransformFlipped180:
		return flipVertical(data, width, height), width, height
	case TransformFlipped270:
		return rotate270(flipHorizontal(data, width, height), width, height)
	}
	return data, width, height
}

// orient applies the output transform and then the frame's y-invert flag.
func orient(c *CaptureResult, t Transform, yInvert bool) *CaptureResult {
	data, w, h := ApplyTransform(c.Data, c.Width, c.Height, t)
	if yInvert {
		data = flipVertical(data, w, h)
	}
	return &CaptureResult{Data: data, Width: w, Height: h}
}

func rotate90(data []byte, width, height int) ([]byte, int, int) {
	out := make([]byte, len(data))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			nx, ny := height-1-y, x
			si := (y*width + x) * 4
			di := (ny*height + nx) * 4
			copy(out[di:di+4], data[si:si+4])
		}
	}
	return out, height, width
}

func rotate270(data []byte, width, height int) ([]byte, int, int) {
	out := make([]byte, len(data))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			nx, ny := y, width-1-x
			si := (y*width + x) * 4
			di := (ny*height + nx) * 4
			copy(out[di:di+4], data[si:si+4])
		}
	}
	return out, height, width
}

func rotate180(data []byte, width, height int) []byte {
	out := make([]byte, len(data))
	last := width*height - 1
	for i := 0; i <= last; i++ {
		copy(out[(last-i)*4:(last-i)*4+4], data[i*4:i*4+4])
	}
	return out
}

func flipHorizontal(data []byte, width, height int) []byte {
	out := make([]byte, len(data))
	for y := 0; y < height; y++ {
		row := y * width * 4
		for x := 0; x < width; x++ {
			si := row + x*4
			di := row + (width-1-x)*4
			copy(out[di:di+4], data[si:si+4])
		}
	}
	return out
}

func flipVertical(data []byte, width, height int) []byte {
	out := make([]byte, len(data))
	rowLen := width * 4
	for y := 0; y < height; y++ {
		copy(out[(height-1-y)*rowLen:(height-y)*rowLen], data[y*rowLen:(y+1)*rowLen])
	}
	return out
}
