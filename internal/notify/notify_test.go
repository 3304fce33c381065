package notify

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timdodge/grimshot/internal/screenshot"
)

type fakeCaller struct {
	method string
	args   []any
	id     uint32
	err    error
}

func (f *fakeCaller) Call(method string, flags dbus.Flags, args ...any) *dbus.Call {
	f.method = method
	f.args = args
	if f.err != nil {
		return &dbus.Call{Err: f.err}
	}
	return &dbus.Call{Body: []any{f.id}}
}

func solid(w, h int, c [4]byte) *screenshot.CaptureResult {
	res := &screenshot.CaptureResult{Data: make([]byte, w*h*4), Width: w, Height: h}
	for i := 0; i < w*h; i++ {
		copy(res.Data[i*4:], c[:])
	}
	return res
}

func TestSend_CallsNotify(t *testing.T) {
	fc := &fakeCaller{id: 17}
	id, err := send(fc, Result{FilePath: "/tmp/shot.png", Image: solid(4, 2, [4]byte{1, 2, 3, 255})})
	require.NoError(t, err)
	assert.Equal(t, uint32(17), id)

	assert.Equal(t, "org.freedesktop.Notifications.Notify", fc.method)
	require.Len(t, fc.args, 8)
	assert.Equal(t, "grimshot", fc.args[0])
	assert.Equal(t, "Screenshot captured", fc.args[3])
	assert.Equal(t, "/tmp/shot.png", fc.args[4])

	h, ok := fc.args[6].(map[string]dbus.Variant)
	require.True(t, ok)
	img, ok := h["image-data"].Value().(imageData)
	require.True(t, ok)
	assert.Equal(t, int32(4), img.Width)
	assert.Equal(t, int32(12), img.RowStride)
	assert.Equal(t, []byte{1, 2, 3}, img.Data[:3])
}

func TestSend_ServiceUnknownIsIgnored(t *testing.T) {
	fc := &fakeCaller{err: dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}}
	_, err := send(fc, Result{})
	assert.NoError(t, err)
}

func TestSend_OtherErrors(t *testing.T) {
	fc := &fakeCaller{err: errors.New("bus exploded")}
	_, err := send(fc, Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus exploded")
}

func TestBody(t *testing.T) {
	assert.Equal(t, "written to stdout", body(Result{}))
	assert.Equal(t, "/a/b.png", body(Result{FilePath: "/a/b.png"}))
}

func TestThumbnail_FitsBox(t *testing.T) {
	img, err := thumbnail(solid(1024, 512, [4]byte{9, 8, 7, 255}), ThumbnailSize)
	require.NoError(t, err)
	assert.Equal(t, int32(256), img.Width)
	assert.Equal(t, int32(128), img.Height)
	assert.Equal(t, int32(3), img.Channels)
	assert.Len(t, img.Data, 256*128*3)
}

func TestThumbnail_SmallImageKeepsSize(t *testing.T) {
	img, err := thumbnail(solid(10, 20, [4]byte{}), ThumbnailSize)
	require.NoError(t, err)
	assert.Equal(t, int32(10), img.Width)
	assert.Equal(t, int32(20), img.Height)
}

func TestHints_NoImage(t *testing.T) {
	h := hints(Result{})
	_, ok := h["image-data"]
	assert.False(t, ok)
	assert.Equal(t, "transfer.complete", h["category"].Value())
}
