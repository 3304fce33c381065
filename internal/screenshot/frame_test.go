package screenshot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timdodge/grimshot/internal/errdefs"
)

func TestFrameState_PanicPoisons(t *testing.T) {
	s := &frameState{}
	require.NoError(t, s.update(func(d *frameData) { d.buffer = true }))

	err := s.update(func(d *frameData) { panic("bad event") })
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrCaptureFailed))
	assert.Contains(t, err.Error(), "bad event")

	_, err = s.snapshot()
	assert.True(t, errors.Is(err, errdefs.ErrCaptureFailed))

	called := false
	err = s.update(func(d *frameData) { called = true })
	assert.Error(t, err)
	assert.False(t, called)
}

func TestFrameData_BufferNegotiated(t *testing.T) {
	tests := []struct {
		name    string
		data    frameData
		version uint32
		done    bool
		err     error
	}{
		{"nothing yet", frameData{}, 3, false, nil},
		{"v2 buffer", frameData{buffer: true}, 2, true, nil},
		{"v3 waits for buffer_done", frameData{buffer: true}, 3, false, nil},
		{"v3 complete", frameData{buffer: true, bufferDone: true}, 3, true, nil},
		{"failed", frameData{failed: true}, 3, false, errdefs.ErrCaptureFailed},
		{"ready without buffer", frameData{ready: true}, 3, false, errdefs.ErrProtocolViolation},
		{"dmabuf only", frameData{dmabuf: true, bufferDone: true}, 3, false, errdefs.ErrCaptureFailed},
		{"buffer_done without shm", frameData{bufferDone: true}, 3, false, errdefs.ErrProtocolViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done, err := tt.data.bufferNegotiated(tt.version)
			assert.Equal(t, tt.done, done)
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
			}
		})
	}
}

func TestFrameData_CopyFinished(t *testing.T) {
	done, err := frameData{buffer: true}.copyFinished()
	assert.NoError(t, err)
	assert.False(t, done)

	done, err = frameData{buffer: true, ready: true}.copyFinished()
	assert.NoError(t, err)
	assert.True(t, done)

	_, err = frameData{buffer: true, failed: true}.copyFinished()
	assert.True(t, errors.Is(err, errdefs.ErrCaptureFailed))

	_, err = frameData{ready: true}.copyFinished()
	assert.True(t, errors.Is(err, errdefs.ErrProtocolViolation))
}

func TestFramesDone_ErrorBeatsPending(t *testing.T) {
	out := &WaylandOutput{OutputInfo: OutputInfo{Name: "HDMI-1"}}
	pending := &pendingFrame{req: frameRequest{output: out}, state: &frameState{}}
	failed := &pendingFrame{req: frameRequest{output: out}, state: &frameState{data: frameData{failed: true}}}

	done, err := framesDone([]*pendingFrame{pending, failed}, frameData.copyFinished)
	assert.False(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HDMI-1")

	ready := &pendingFrame{req: frameRequest{output: out}, state: &frameState{data: frameData{buffer: true, ready: true}}}
	done, err = framesDone([]*pendingFrame{ready, ready}, frameData.copyFinished)
	assert.NoError(t, err)
	assert.True(t, done)
}

func TestValidateLocalRegion(t *testing.T) {
	assert.NoError(t, validateLocalRegion(NewRegion(0, 0, 1, 1)))
	assert.True(t, errors.Is(validateLocalRegion(NewRegion(0, 0, 0, 5)), errdefs.ErrInvalidRegion))
	assert.True(t, errors.Is(validateLocalRegion(NewRegion(-1, 0, 5, 5)), errdefs.ErrInvalidRegion))
}

func TestFrameRequest_ProtocolRegion(t *testing.T) {
	out := &WaylandOutput{OutputInfo: OutputInfo{Scale: 2}}
	x, y, w, h := frameRequest{output: out, region: NewRegion(200, 100, 401, 200)}.protocolRegion()
	assert.Equal(t, []int32{100, 50, 201, 100}, []int32{x, y, w, h})

	out.Scale = 1
	x, y, w, h = frameRequest{output: out, region: NewRegion(3, 4, 5, 6)}.protocolRegion()
	assert.Equal(t, []int32{3, 4, 5, 6}, []int32{x, y, w, h})
}

func TestFrameRequest_ProtocolRegionUnaligned(t *testing.T) {
	out := &WaylandOutput{OutputInfo: OutputInfo{Scale: 2}}
	req := frameRequest{output: out, region: NewRegion(1, 1, 3, 3)}

	x, y, w, h := req.protocolRegion()
	assert.Equal(t, []int32{0, 0, 2, 2}, []int32{x, y, w, h})
	ox, oy := req.cropOffset()
	assert.Equal(t, []int{1, 1}, []int{ox, oy})

	out.Scale = 3
	req.region = NewRegion(4, 5, 4, 1)
	x, y, w, h = req.protocolRegion()
	assert.Equal(t, []int32{1, 1, 2, 1}, []int32{x, y, w, h})
	ox, oy = req.cropOffset()
	assert.Equal(t, []int{1, 2}, []int{ox, oy})
}

func TestCrop(t *testing.T) {
	src := newCaptureResult(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			copy(src.Data[(y*4+x)*4:], []byte{byte(x), byte(y), 0, 255})
		}
	}

	got := crop(src, 1, 1, 3, 3)
	require.Equal(t, 3, got.Width)
	require.Equal(t, 3, got.Height)
	assert.Equal(t, [4]byte{1, 1, 0, 255}, at(got, 0, 0))
	assert.Equal(t, [4]byte{3, 3, 0, 255}, at(got, 2, 2))

	assert.Same(t, src, crop(src, 0, 0, 4, 4))

	clamped := crop(src, 3, 3, 5, 5)
	assert.Equal(t, 1, clamped.Width)
	assert.Equal(t, [4]byte{3, 3, 0, 255}, at(clamped, 0, 0))
}
