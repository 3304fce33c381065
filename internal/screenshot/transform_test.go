package screenshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// patterned returns a buffer whose pixel (x, y) holds x in R and y in G.
func patterned(w, h int) *CaptureResult {
	c := newCaptureResult(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			c.Data[i], c.Data[i+1], c.Data[i+2], c.Data[i+3] = byte(x), byte(y), 7, 255
		}
	}
	return c
}

func pixel(c *CaptureResult, x, y int) (byte, byte) {
	i := (y*c.Width + x) * 4
	return c.Data[i], c.Data[i+1]
}

func TestApplyTransform_Dimensions(t *testing.T) {
	src := patterned(4, 3)
	for tr := TransformNormal; tr <= TransformFlipped270; tr++ {
		_, w, h := ApplyTransform(src.Data, 4, 3, tr)
		if tr.SwapsDimensions() {
			assert.Equal(t, [2]int{3, 4}, [2]int{w, h}, tr.String())
		} else {
			assert.Equal(t, [2]int{4, 3}, [2]int{w, h}, tr.String())
		}
	}
}

func TestApplyTransform_NormalIsIdentity(t *testing.T) {
	src := patterned(2, 2)
	out, _, _ := ApplyTransform(src.Data, 2, 2, TransformNormal)
	assert.Same(t, &src.Data[0], &out[0])
}

func TestApplyTransform_Rotate90(t *testing.T) {
	src := patterned(4, 3)
	data, w, h := ApplyTransform(src.Data, 4, 3, Transform90)
	out := &CaptureResult{Data: data, Width: w, Height: h}

	// source (x, y) lands at (h-1-y, x)
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			r, g := pixel(out, 3-1-y, x)
			assert.Equal(t, byte(x), r)
			assert.Equal(t, byte(y), g)
		}
	}
}

func TestApplyTransform_Rotate270(t *testing.T) {
	src := patterned(4, 3)
	data, w, h := ApplyTransform(src.Data, 4, 3, Transform270)
	out := &CaptureResult{Data: data, Width: w, Height: h}

	// source (x, y) lands at (y, w-1-x)
	r, g := pixel(out, 0, 3)
	assert.Equal(t, byte(0), r)
	assert.Equal(t, byte(0), g)
	r, g = pixel(out, 2, 0)
	assert.Equal(t, byte(3), r)
	assert.Equal(t, byte(2), g)
}

func TestApplyTransform_Flips(t *testing.T) {
	src := patterned(4, 3)

	data, _, _ := ApplyTransform(src.Data, 4, 3, TransformFlipped)
	r, g := pixel(&CaptureResult{Data: data, Width: 4, Height: 3}, 0, 1)
	assert.Equal(t, byte(3), r)
	assert.Equal(t, byte(1), g)

	data, _, _ = ApplyTransform(src.Data, 4, 3, TransformFlipped180)
	r, g = pixel(&CaptureResult{Data: data, Width: 4, Height: 3}, 1, 0)
	assert.Equal(t, byte(1), r)
	assert.Equal(t, byte(2), g)

	data, _, _ = ApplyTransform(src.Data, 4, 3, Transform180)
	r, g = pixel(&CaptureResult{Data: data, Width: 4, Height: 3}, 0, 0)
	assert.Equal(t, byte(3), r)
	assert.Equal(t, byte(2), g)
}

func TestApplyTransform_InverseRestores(t *testing.T) {
	src := patterned(5, 3)
	for tr := TransformNormal; tr <= TransformFlipped270; tr++ {
		data, w, h := ApplyTransform(src.Data, 5, 3, tr)
		back, bw, bh := ApplyTransform(data, w, h, tr.Inverse())
		assert.Equal(t, 5, bw, tr.String())
		assert.Equal(t, 3, bh, tr.String())
		assert.Equal(t, src.Data, back, tr.String())
	}
}

func TestOrient_YInvertAfterTransform(t *testing.T) {
	src := patterned(4, 3)
	out := orient(src, Transform90, true)
	require.Equal(t, 3, out.Width)
	require.Equal(t, 4, out.Height)

	// rotate90 puts source (0,0) at (2,0); the y flip moves it to (2,3)
	r, g := pixel(out, 2, 3)
	assert.Equal(t, byte(0), r)
	assert.Equal(t, byte(0), g)
}

func TestTransform_TextForm(t *testing.T) {
	assert.Equal(t, "flipped-90", TransformFlipped90.String())
	assert.Equal(t, "9", Transform(9).String())

	b, err := json.Marshal(struct{ T Transform }{Transform270})
	require.NoError(t, err)
	assert.JSONEq(t, `{"T":"270"}`, string(b))

	var tr Transform
	require.NoError(t, tr.UnmarshalText([]byte("flipped-180")))
	assert.Equal(t, TransformFlipped180, tr)
	assert.Error(t, tr.UnmarshalText([]byte("sideways")))
}
