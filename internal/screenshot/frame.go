package screenshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rajveermalviya/go-wayland/wayland/client"

	"github.com/timdodge/grimshot/internal/errdefs"
	"github.com/timdodge/grimshot/internal/log"
	"github.com/timdodge/grimshot/internal/proto/wlr_screencopy"
	wlhelpers "github.com/timdodge/grimshot/internal/wayland/client"
)

const flagYInvert = uint32(wlr_screencopy.ZwlrScreencopyFrameV1FlagsYInvert)

// frameData is what the compositor has told us about one screencopy frame.
type frameData struct {
	width, height, stride uint32
	format                PixelFormat
	buffer                bool
	bufferDone            bool
	dmabuf                bool
	ready                 bool
	failed                bool
	flags                 uint32
}

// bufferNegotiated reports whether a shm buffer can be attached. From
// version 3 on the compositor enumerates buffer types and ends with
// buffer_done.
func (d frameData) bufferNegotiated(version uint32) (bool, error) {
	switch {
	case d.failed:
		return false, fmt.Errorf("%w: compositor reported failure before buffer negotiation", errdefs.ErrCaptureFailed)
	case d.ready:
		return false, fmt.Errorf("%w: frame ready before any buffer was described", errdefs.ErrProtocolViolation)
	case d.bufferDone && !d.buffer:
		if d.dmabuf {
			return false, fmt.Errorf("%w: compositor only offered linux-dmabuf buffers", errdefs.ErrCaptureFailed)
		}
		return false, fmt.Errorf("%w: buffer_done without a wl_shm buffer", errdefs.ErrProtocolViolation)
	}
	if version >= 3 {
		return d.buffer && d.bufferDone, nil
	}
	return d.buffer, nil
}

func (d frameData) copyFinished() (bool, error) {
	switch {
	case d.failed:
		return false, fmt.Errorf("%w: compositor reported frame failure", errdefs.ErrCaptureFailed)
	case d.ready && !d.buffer:
		return false, fmt.Errorf("%w: frame ready but no buffer was received", errdefs.ErrProtocolViolation)
	}
	return d.ready, nil
}

// frameState guards frameData between event handlers and the poll loop. A
// panic inside update poisons the state; every later access reports it.
type frameState struct {
	mu       sync.Mutex
	data     frameData
	poisoned error
}

func (s *frameState) update(fn func(*frameData)) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned != nil {
		return s.poisoned
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = fmt.Errorf("%w: frame state poisoned: %v", errdefs.ErrCaptureFailed, r)
			err = s.poisoned
		}
	}()
	fn(&s.data)
	return nil
}

func (s *frameState) snapshot() (frameData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned != nil {
		return frameData{}, s.poisoned
	}
	return s.data, nil
}

type frameRequest struct {
	output *WaylandOutput
	// region is output-local in physical pixels; ignored when full is set.
	region Region
	full   bool
	cursor bool
}

func validateLocalRegion(r Region) error {
	switch {
	case r.Width <= 0 || r.Height <= 0:
		return fmt.Errorf("%w: non-positive size %dx%d", errdefs.ErrInvalidRegion, r.Width, r.Height)
	case r.X < 0 || r.Y < 0:
		return fmt.Errorf("%w: negative origin %d,%d", errdefs.ErrInvalidRegion, r.X, r.Y)
	}
	return nil
}

// pendingFrame owns every protocol object and OS resource of one in-flight
// capture.
type pendingFrame struct {
	req    frameRequest
	frame  *wlr_screencopy.ZwlrScreencopyFrameV1
	state  *frameState
	shm    *ShmBuffer
	pool   *client.ShmPool
	buffer *client.Buffer
}

func (p *pendingFrame) release() {
	if p.buffer != nil {
		if err := p.buffer.Destroy(); err != nil {
			log.Debug("failed to destroy wl_buffer", "err", err)
		}
		p.buffer = nil
	}
	if p.pool != nil {
		if err := p.pool.Destroy(); err != nil {
			log.Debug("failed to destroy wl_shm_pool", "err", err)
		}
		p.pool = nil
	}
	if p.shm != nil {
		if err := p.shm.Close(); err != nil {
			log.Debug("failed to release shm buffer", "err", err)
		}
		p.shm = nil
	}
	if p.frame != nil {
		if err := p.frame.Destroy(); err != nil {
			log.Debug("failed to destroy screencopy frame", "err", err)
		}
		p.frame = nil
	}
}

// captureFrames issues every request before waiting, then polls all frames
// together so the slowest output bounds the wait. Results come back in
// request order, already oriented.
func (b *waylandBackend) captureFrames(reqs []frameRequest) ([]*CaptureResult, error) {
	frames := make([]*pendingFrame, 0, len(reqs))
	defer func() {
		for _, f := range frames {
			f.release()
		}
	}()

	for _, req := range reqs {
		f, err := b.issueFrame(req)
		if f != nil {
			frames = append(frames, f)
		}
		if err != nil {
			return nil, err
		}
	}

	version := b.screencopyVersion
	if err := b.pollFrames("buffer", frames, func(d frameData) (bool, error) {
		return d.bufferNegotiated(version)
	}); err != nil {
		return nil, err
	}

	for _, f := range frames {
		if err := b.attachBuffer(f); err != nil {
			return nil, err
		}
	}

	if err := b.pollFrames("copy", frames, frameData.copyFinished); err != nil {
		return nil, err
	}

	results := make([]*CaptureResult, 0, len(frames))
	for _, f := range frames {
		res, err := f.read()
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (b *waylandBackend) issueFrame(req frameRequest) (*pendingFrame, error) {
	var cursor int32
	if req.cursor {
		cursor = 1
	}

	var frame *wlr_screencopy.ZwlrScreencopyFrameV1
	var err error
	if req.full {
		frame, err = b.screencopy.CaptureOutput(cursor, req.output.wlOutput)
	} else {
		x, y, w, h := req.protocolRegion()
		frame, err = b.screencopy.CaptureOutputRegion(cursor, req.output.wlOutput, x, y, w, h)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: capture request for %s: %w", errdefs.ErrCaptureFailed, req.output.Name, err)
	}

	f := &pendingFrame{req: req, frame: frame, state: &frameState{}}
	name := req.output.Name

	frame.SetBufferHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1BufferEvent) {
		_ = f.state.update(func(d *frameData) {
			if d.buffer {
				return
			}
			d.format = PixelFormat(e.Format)
			d.width, d.height, d.stride = e.Width, e.Height, e.Stride
			d.buffer = true
		})
		log.Debug("screencopy buffer offered", "output", name, "format", PixelFormat(e.Format), "width", e.Width, "height", e.Height, "stride", e.Stride)
	})
	frame.SetLinuxDmabufHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1LinuxDmabufEvent) {
		_ = f.state.update(func(d *frameData) { d.dmabuf = true })
		log.Debug("ignoring linux-dmabuf buffer offer", "output", name, "format", fmt.Sprintf("0x%08x", e.Format), "width", e.Width, "height", e.Height)
	})
	frame.SetBufferDoneHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1BufferDoneEvent) {
		_ = f.state.update(func(d *frameData) { d.bufferDone = true })
	})
	frame.SetFlagsHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1FlagsEvent) {
		_ = f.state.update(func(d *frameData) { d.flags = e.Flags })
	})
	frame.SetReadyHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1ReadyEvent) {
		_ = f.state.update(func(d *frameData) { d.ready = true })
	})
	frame.SetFailedHandler(func(e wlr_screencopy.ZwlrScreencopyFrameV1FailedEvent) {
		_ = f.state.update(func(d *frameData) { d.failed = true })
	})

	return f, nil
}

// protocolRegion converts the physical request into the output-local logical
// units capture_output_region expects. The logical box covers the request,
// so an unaligned request comes back slightly larger and is cropped by
// cropOffset.
func (r frameRequest) protocolRegion() (x, y, w, h int32) {
	scale := max(r.output.Scale, 1)
	x0, y0 := floorDiv(r.region.X, scale), floorDiv(r.region.Y, scale)
	x1 := ceilDiv(r.region.X+r.region.Width, scale)
	y1 := ceilDiv(r.region.Y+r.region.Height, scale)
	return x0, y0, x1 - x0, y1 - y0
}

// cropOffset is where the requested physical region starts inside the
// buffer returned for protocolRegion.
func (r frameRequest) cropOffset() (int, int) {
	scale := max(r.output.Scale, 1)
	x, y, _, _ := r.protocolRegion()
	return int(r.region.X - x*scale), int(r.region.Y - y*scale)
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int32) int32 {
	return -floorDiv(-a, b)
}

func (b *waylandBackend) attachBuffer(f *pendingFrame) error {
	d, err := f.state.snapshot()
	if err != nil {
		return err
	}

	bpp := d.format.BytesPerPixel()
	if int(d.stride) < int(d.width)*bpp {
		return fmt.Errorf("%w: stride %d for %d pixels of %s on %s", errdefs.ErrProtocolViolation, d.stride, d.width, d.format, f.req.output.Name)
	}

	shm, err := CreateShmBuffer(int(d.width), int(d.height), int(d.stride))
	if err != nil {
		return err
	}
	shm.Format = d.format
	f.shm = shm

	pool, err := b.shm.CreatePool(shm.Fd(), int32(shm.Size()))
	if err != nil {
		return fmt.Errorf("%w: create wl_shm_pool of %d bytes: %w", errdefs.ErrBufferCreation, shm.Size(), err)
	}
	f.pool = pool

	buffer, err := pool.CreateBuffer(0, int32(d.width), int32(d.height), int32(d.stride), uint32(d.format))
	if err != nil {
		return fmt.Errorf("%w: create wl_buffer %dx%d: %w", errdefs.ErrBufferCreation, d.width, d.height, err)
	}
	f.buffer = buffer

	if err := f.frame.Copy(buffer); err != nil {
		return fmt.Errorf("%w: copy request for %s: %w", errdefs.ErrCaptureFailed, f.req.output.Name, err)
	}
	return nil
}

func (f *pendingFrame) read() (*CaptureResult, error) {
	d, err := f.state.snapshot()
	if err != nil {
		return nil, err
	}
	if f.shm == nil {
		return nil, fmt.Errorf("%w: no buffer attached for %s", errdefs.ErrProtocolViolation, f.req.output.Name)
	}

	raw, err := f.shm.ReadRGBA()
	if err != nil {
		return nil, err
	}
	res := orient(raw, f.req.output.Transform, d.flags&flagYInvert != 0)
	if f.req.full {
		return res, nil
	}
	ox, oy := f.req.cropOffset()
	return crop(res, ox, oy, int(f.req.region.Width), int(f.req.region.Height)), nil
}

// crop cuts w x h pixels at x,y out of c, clamped to its bounds. A buffer
// already of the requested size is returned as is; some compositors honour
// the region at physical precision.
func crop(c *CaptureResult, x, y, w, h int) *CaptureResult {
	if c.Width == w && c.Height == h {
		return c
	}
	x, y = min(max(x, 0), c.Width), min(max(y, 0), c.Height)
	w, h = min(w, c.Width-x), min(h, c.Height-y)

	out := newCaptureResult(w, h)
	for row := 0; row < h; row++ {
		src := ((y+row)*c.Width + x) * 4
		copy(out.Data[row*w*4:(row+1)*w*4], c.Data[src:src+w*4])
	}
	return out
}

func (b *waylandBackend) pollFrames(phase string, frames []*pendingFrame, check func(frameData) (bool, error)) error {
	attempts, err := wlhelpers.Poll(b.maxAttempts, b.roundtrip, func() (bool, error) {
		return framesDone(frames, check)
	})
	b.observer.ObservePoll(phase, attempts, err)

	if errors.Is(err, wlhelpers.ErrPollExhausted) {
		return fmt.Errorf("%w: waiting for %s after %d round-trips", errdefs.ErrFrameTimeout, phase, attempts)
	}
	return err
}

// framesDone reports true once check accepts every frame. Any error wins
// over pending frames so a failed output aborts the wait early.
func framesDone(frames []*pendingFrame, check func(frameData) (bool, error)) (bool, error) {
	all := true
	for _, f := range frames {
		d, err := f.state.snapshot()
		if err != nil {
			return false, err
		}
		ok, err := check(d)
		if err != nil {
			return false, fmt.Errorf("output %s: %w", f.req.output.Name, err)
		}
		all = all && ok
	}
	return all, nil
}
