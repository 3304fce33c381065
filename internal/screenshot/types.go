package screenshot

import (
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/timdodge/grimshot/internal/errdefs"
	wlhelpers "github.com/timdodge/grimshot/internal/wayland/client"
)

// Region is an axis-aligned rectangle in integer pixel coordinates.
type Region struct {
	X      int32 `json:"x"`
	Y      int32 `json:"y"`
	Width  int32 `json:"width"`
	Height int32 `json:"height"`
}

func NewRegion(x, y, width, height int32) Region {
	return Region{X: x, Y: y, Width: width, Height: height}
}

func (r Region) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Region) right() int64  { return int64(r.X) + int64(r.Width) }
func (r Region) bottom() int64 { return int64(r.Y) + int64(r.Height) }

func (r Region) Intersects(o Region) bool {
	if r.IsEmpty() || o.IsEmpty() {
		return false
	}
	return int64(r.X) < o.right() && int64(o.X) < r.right() &&
		int64(r.Y) < o.bottom() && int64(o.Y) < r.bottom()
}

// Intersection returns the overlapping area of r and o. ok is false when
// they do not intersect.
func (r Region) Intersection(o Region) (Region, bool) {
	if !r.Intersects(o) {
		return Region{}, false
	}
	x := max(r.X, o.X)
	y := max(r.Y, o.Y)
	right := min(r.right(), o.right())
	bottom := min(r.bottom(), o.bottom())
	return Region{X: x, Y: y, Width: int32(right - int64(x)), Height: int32(bottom - int64(y))}, true
}

// Contains reports whether o lies entirely inside r.
func (r Region) Contains(o Region) bool {
	if r.IsEmpty() || o.IsEmpty() {
		return false
	}
	return o.X >= r.X && o.Y >= r.Y && o.right() <= r.right() && o.bottom() <= r.bottom()
}

// Union returns the bounding box of r and o. Empty operands are ignored.
func (r Region) Union(o Region) Region {
	switch {
	case r.IsEmpty():
		return o
	case o.IsEmpty():
		return r
	}
	x := min(r.X, o.X)
	y := min(r.Y, o.Y)
	right := max(r.right(), o.right())
	bottom := max(r.bottom(), o.bottom())
	return Region{X: x, Y: y, Width: int32(right - int64(x)), Height: int32(bottom - int64(y))}
}

// String renders the region in the slurp/grim geometry form "x,y wxh".
func (r Region) String() string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

// ParseRegion parses the "x,y wxh" geometry form.
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(strings.TrimSpace(s), " ")
	if len(parts) != 2 {
		return Region{}, fmt.Errorf("%w: %q", errdefs.ErrInvalidGeometry, s)
	}

	xy := strings.Split(parts[0], ",")
	wh := strings.Split(parts[1], "x")
	if len(xy) != 2 || len(wh) != 2 {
		return Region{}, fmt.Errorf("%w: %q", errdefs.ErrInvalidGeometry, s)
	}

	var vals [4]int32
	for i, field := range []string{xy[0], xy[1], wh[0], wh[1]} {
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return Region{}, fmt.Errorf("%w: %q: %v", errdefs.ErrInvalidGeometry, s, err)
		}
		vals[i] = int32(v)
	}
	return Region{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// OutputInfo is the accumulated state of one wl_output. The physical box is
// the wl_output position with the current mode size; the logical box comes
// from xdg-output or is derived from the physical one.
type OutputInfo struct {
	Name        string
	Description string

	X, Y          int32
	Width, Height int32
	Scale         int32
	Transform     Transform

	LogicalX, LogicalY          int32
	LogicalWidth, LogicalHeight int32
	LogicalScaleKnown           bool
}

func (o OutputInfo) PhysicalBox() Region {
	return Region{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
}

func (o OutputInfo) LogicalBox() Region {
	return Region{X: o.LogicalX, Y: o.LogicalY, Width: o.LogicalWidth, Height: o.LogicalHeight}
}

// deriveLogical fills the logical box from physical geometry for outputs the
// compositor never described through xdg-output.
func (o *OutputInfo) deriveLogical() {
	scale := max(o.Scale, 1)
	w, h := o.Width/scale, o.Height/scale
	if o.Transform.SwapsDimensions() {
		w, h = h, w
	}
	o.LogicalX, o.LogicalY = o.X, o.Y
	o.LogicalWidth, o.LogicalHeight = w, h
	o.LogicalScaleKnown = true
}

// Output is the public listing entry for one output.
type Output struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Geometry    Region    `json:"geometry"`
	Scale       int32     `json:"scale"`
	Transform   Transform `json:"transform"`
}

// CaptureResult holds tightly packed RGBA8 pixels.
type CaptureResult struct {
	Data   []byte
	Width  int
	Height int
}

func newCaptureResult(width, height int) *CaptureResult {
	return &CaptureResult{Data: make([]byte, width*height*4), Width: width, Height: height}
}

// ToImage wraps the pixels without copying.
func (c *CaptureResult) ToImage() *image.RGBA {
	return &image.RGBA{
		Pix:    c.Data,
		Stride: c.Width * 4,
		Rect:   image.Rect(0, 0, c.Width, c.Height),
	}
}

type MultiOutputCaptureResult struct {
	Outputs map[string]*CaptureResult
}

// CaptureParameters describes one output of a CaptureOutputs call. Region is
// in layout coordinates and must lie inside the output's physical box.
type CaptureParameters struct {
	OutputName    string
	Region        *Region
	OverlayCursor bool
	Scale         *float64
}

// Observer receives capture timings. Implementations must not block.
type Observer interface {
	ObserveCapture(mode string, outputs int, elapsed time.Duration, err error)
	ObservePoll(phase string, attempts int, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveCapture(string, int, time.Duration, error) {}
func (nopObserver) ObservePoll(string, int, error)                   {}

type Config struct {
	// Cursor overlays the pointer on CaptureAll, CaptureOutput and
	// CaptureRegion. CaptureOutputs uses the per-parameter flag.
	Cursor bool
	// MaxAttempts bounds every wait on the compositor, in round-trips.
	MaxAttempts int
	Observer    Observer
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: wlhelpers.DefaultMaxAttempts,
	}
}
