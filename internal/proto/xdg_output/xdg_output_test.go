package xdg_output

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func wireString(s string) []byte {
	n := len(s) + 1
	padded := (n + 3) &^ 3
	b := make([]byte, 4+padded)
	binary.NativeEndian.PutUint32(b, uint32(n))
	copy(b[4:], s)
	return b
}

func TestXdgOutputDispatch_Geometry(t *testing.T) {
	out := &ZxdgOutputV1{}
	var pos ZxdgOutputV1LogicalPositionEvent
	var size ZxdgOutputV1LogicalSizeEvent
	done := false
	out.SetLogicalPositionHandler(func(e ZxdgOutputV1LogicalPositionEvent) { pos = e })
	out.SetLogicalSizeHandler(func(e ZxdgOutputV1LogicalSizeEvent) { size = e })
	out.SetDoneHandler(func(e ZxdgOutputV1DoneEvent) { done = true })

	x := int32(-1280)
	b := make([]byte, 8)
	binary.NativeEndian.PutUint32(b[0:], uint32(x))
	binary.NativeEndian.PutUint32(b[4:], 200)
	out.Dispatch(0, -1, b)

	binary.NativeEndian.PutUint32(b[0:], 1280)
	binary.NativeEndian.PutUint32(b[4:], 720)
	out.Dispatch(1, -1, b)
	out.Dispatch(2, -1, nil)

	assert.Equal(t, int32(-1280), pos.X)
	assert.Equal(t, int32(200), pos.Y)
	assert.Equal(t, int32(1280), size.Width)
	assert.Equal(t, int32(720), size.Height)
	assert.True(t, done)
}

func TestXdgOutputDispatch_NameAndDescription(t *testing.T) {
	out := &ZxdgOutputV1{}
	var name, desc string
	out.SetNameHandler(func(e ZxdgOutputV1NameEvent) { name = e.Name })
	out.SetDescriptionHandler(func(e ZxdgOutputV1DescriptionEvent) { desc = e.Description })

	out.Dispatch(3, -1, wireString("DP-1"))
	out.Dispatch(4, -1, wireString("Dell Inc. U2720Q"))

	assert.Equal(t, "DP-1", name)
	assert.Equal(t, "Dell Inc. U2720Q", desc)
}
