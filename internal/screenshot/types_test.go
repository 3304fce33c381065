package screenshot

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timdodge/grimshot/internal/errdefs"
)

func TestRegion_IsEmpty(t *testing.T) {
	tests := []struct {
		region Region
		empty  bool
	}{
		{NewRegion(0, 0, 0, 0), true},
		{NewRegion(0, 0, 10, 0), true},
		{NewRegion(0, 0, -1, 10), true},
		{NewRegion(5, 5, 1, 1), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.empty, tt.region.IsEmpty(), tt.region.String())
	}
}

func TestRegion_Intersection(t *testing.T) {
	a := NewRegion(0, 0, 100, 100)
	b := NewRegion(50, 50, 100, 100)

	inter, ok := a.Intersection(b)
	require.True(t, ok)
	assert.Equal(t, NewRegion(50, 50, 50, 50), inter)

	_, ok = NewRegion(0, 0, 100, 100).Intersection(NewRegion(100, 0, 100, 100))
	assert.False(t, ok, "adjacent boxes share no pixels")
}

func TestRegion_EmptyNeverIntersects(t *testing.T) {
	empty := NewRegion(0, 0, 0, 0)
	assert.False(t, NewRegion(0, 0, 100, 100).Intersects(empty))
	assert.False(t, empty.Intersects(empty))
}

func randomRegion(r *rand.Rand) Region {
	return NewRegion(
		int32(r.Intn(400)-200),
		int32(r.Intn(400)-200),
		int32(r.Intn(300)-20),
		int32(r.Intn(300)-20),
	)
}

func TestRegion_IntersectionProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		a, b := randomRegion(r), randomRegion(r)

		assert.Equal(t, a.Intersects(b), b.Intersects(a))

		ab, okAB := a.Intersection(b)
		ba, okBA := b.Intersection(a)
		assert.Equal(t, okAB, okBA)
		assert.Equal(t, ab, ba)
		assert.Equal(t, a.Intersects(b), okAB)

		if okAB {
			assert.True(t, a.Contains(ab), "%s within %s", ab, a)
			assert.True(t, b.Contains(ab), "%s within %s", ab, b)
		}

		if !a.IsEmpty() {
			self, ok := a.Intersection(a)
			assert.True(t, ok)
			assert.Equal(t, a, self)
		}
	}
}

func TestRegion_SpanningAdjacentOutputs(t *testing.T) {
	left := NewRegion(0, 0, 1920, 1080)
	right := NewRegion(1920, 0, 1920, 1080)
	span := NewRegion(1800, 400, 240, 280)

	l, ok := left.Intersection(span)
	require.True(t, ok)
	r, ok := right.Intersection(span)
	require.True(t, ok)

	assert.Equal(t, int32(1800), l.X)
	assert.Equal(t, int32(120), l.Width)
	assert.Equal(t, int32(1920), r.X)
	assert.Equal(t, int32(120), r.Width)
	assert.Equal(t, span.Width, l.Width+r.Width)
}

func TestRegion_Union(t *testing.T) {
	u := NewRegion(0, 0, 1920, 1080).Union(NewRegion(1920, -200, 1280, 1024))
	assert.Equal(t, NewRegion(0, -200, 3200, 1280), u)
	assert.Equal(t, NewRegion(1, 2, 3, 4), Region{}.Union(NewRegion(1, 2, 3, 4)))
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("10,20 300x400")
	require.NoError(t, err)
	assert.Equal(t, NewRegion(10, 20, 300, 400), r)
	assert.Equal(t, "10,20 300x400", r.String())

	r, err = ParseRegion("-1920,-5 1920x1080\n")
	require.NoError(t, err)
	assert.Equal(t, NewRegion(-1920, -5, 1920, 1080), r)
}

func TestParseRegion_Invalid(t *testing.T) {
	for _, in := range []string{"", "10,20", "10 20 30x40", "10,20 30", "a,b cxd", "10,20,30 40x50", "1,2 3x99999999999"} {
		_, err := ParseRegion(in)
		assert.True(t, errors.Is(err, errdefs.ErrInvalidGeometry), "input %q", in)
	}
}

func TestParseRegion_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		want := NewRegion(int32(r.Int31()-r.Int31()), int32(r.Int31()-r.Int31()), r.Int31(), r.Int31())
		got, err := ParseRegion(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestOutputInfo_DeriveLogical(t *testing.T) {
	o := OutputInfo{X: 0, Y: 0, Width: 3840, Height: 2160, Scale: 2}
	o.deriveLogical()
	assert.Equal(t, NewRegion(0, 0, 1920, 1080), o.LogicalBox())
	assert.True(t, o.LogicalScaleKnown)

	rotated := OutputInfo{X: 1920, Y: 0, Width: 1920, Height: 1080, Scale: 1, Transform: Transform90}
	rotated.deriveLogical()
	assert.Equal(t, NewRegion(1920, 0, 1080, 1920), rotated.LogicalBox())

	flipped := OutputInfo{Width: 2560, Height: 1440, Scale: 2, Transform: TransformFlipped270}
	flipped.deriveLogical()
	assert.Equal(t, NewRegion(0, 0, 720, 1280), flipped.LogicalBox())
}

func TestCaptureResult_ToImage(t *testing.T) {
	c := newCaptureResult(3, 2)
	c.Data[(1*3+2)*4] = 200
	img := c.ToImage()
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, uint8(200), img.RGBAAt(2, 1).R)
}
