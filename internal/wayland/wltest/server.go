// Package wltest runs an in-process Wayland compositor that speaks just
// enough of wl_registry, wl_output, wl_shm, wlr-screencopy and xdg-output to
// drive a real client connection in tests.
package wltest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/sys/unix"
)

const (
	formatXRGB8888 = 1
	fourccXR24     = 0x34325258

	displayID = 1
)

// FrameMode selects how the compositor answers screencopy frames for one
// output.
type FrameMode int

const (
	// FrameReady offers a wl_shm buffer and completes the copy.
	FrameReady FrameMode = iota
	// FrameFailed answers the capture request with failed.
	FrameFailed
	// FrameFailedOnCopy offers a buffer and fails the copy.
	FrameFailedOnCopy
	// FrameSilent offers a buffer and never answers the copy.
	FrameSilent
	// FrameDmabufOnly offers only a linux-dmabuf buffer.
	FrameDmabufOnly
	// FrameLate holds the copy result back until the client destroys the
	// frame, then sends flags and ready for the dead object.
	FrameLate
)

type Box struct {
	X, Y, Width, Height int32
}

// Output describes one wl_output global. Pixels copied from it encode the
// physical coordinate in the red and green channels and Tint in blue.
type Output struct {
	Name, Description string
	Make, Model       string
	X, Y              int32
	Width, Height     int32
	Scale             int32
	Transform         int32

	// Logical defaults to the physical box divided by Scale.
	Logical        *Box
	XdgName        string
	XdgDescription string

	Tint  byte
	Frame FrameMode
}

func (o *Output) logical() Box {
	if o.Logical != nil {
		return *o.Logical
	}
	s := max(o.Scale, 1)
	return Box{X: o.X, Y: o.Y, Width: o.Width / s, Height: o.Height / s}
}

type Config struct {
	Outputs []Output
	// OutputVersion is the advertised wl_output version, 4 when zero.
	OutputVersion uint32
	// ScreencopyVersion is the advertised manager version, 3 when zero.
	ScreencopyVersion uint32
	NoScreencopy      bool
	XdgOutput         bool
	// XdgManagerFirst advertises zxdg_output_manager_v1 before the outputs.
	XdgManagerFirst bool
}

type frame struct {
	output  *Output
	version uint32
	mode    FrameMode
	// physical origin and size of the offered buffer
	x, y, w, h int32
	copied     bool
}

type object struct {
	iface   string
	version uint32
	output  *Output
	frame   *frame

	mem                   *os.File
	offset                int64
	width, height, stride int32
}

// Server accepts a single client connection.
type Server struct {
	t    testing.TB
	dir  string
	ln   *net.UnixListener
	done chan struct{}

	mu       sync.Mutex
	cfg      Config
	conn     *net.UnixConn
	objects  map[uint32]*object
	outputs  map[uint32]*Output
	order    []uint32
	nextName uint32
	serial   uint32
	captures []Box
	err      error
}

// NewServer listens on a fresh socket and points WAYLAND_DISPLAY and
// XDG_RUNTIME_DIR at it for the rest of the test.
func NewServer(t testing.TB, cfg Config) *Server {
	t.Helper()

	dir, err := os.MkdirTemp("", "wl")
	if err != nil {
		t.Fatalf("runtime dir: %v", err)
	}
	const socket = "wayland-test"
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: filepath.Join(dir, socket), Net: "unix"})
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("listen: %v", err)
	}

	if cfg.OutputVersion == 0 {
		cfg.OutputVersion = 4
	}
	if cfg.ScreencopyVersion == 0 {
		cfg.ScreencopyVersion = 3
	}

	s := &Server{
		t:        t,
		dir:      dir,
		ln:       ln,
		done:     make(chan struct{}),
		cfg:      cfg,
		objects:  map[uint32]*object{displayID: {iface: "wl_display"}},
		nextName: 10,
	}
	s.setOutputsLocked(cfg.Outputs)

	t.Setenv("XDG_RUNTIME_DIR", dir)
	t.Setenv("WAYLAND_DISPLAY", socket)
	t.Cleanup(s.Close)

	go s.serve()
	return s
}

// Close drops the client and reports any protocol error the server hit.
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.objects {
		if o.mem != nil {
			o.mem.Close()
		}
	}
	s.objects = map[uint32]*object{}
	os.RemoveAll(s.dir)
	if s.err != nil {
		s.t.Errorf("wayland test server: %v", s.err)
		s.err = nil
	}
}

// SetOutputs replaces the advertised outputs. Registries created afterwards
// see only the new globals.
func (s *Server) SetOutputs(outputs ...Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setOutputsLocked(outputs)
}

func (s *Server) setOutputsLocked(outputs []Output) {
	s.outputs = make(map[uint32]*Output, len(outputs))
	s.order = s.order[:0]
	for i := range outputs {
		o := outputs[i]
		name := s.nextName
		s.nextName++
		s.outputs[name] = &o
		s.order = append(s.order, name)
	}
}

// SetFrameMode changes how frames for the named output are answered from the
// next capture request on.
func (s *Server) SetFrameMode(output string, mode FrameMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.outputs {
		if o.Name == output {
			o.Frame = mode
		}
	}
}

// Live counts client objects of iface that have not been destroyed.
func (s *Server) Live(iface string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.objects {
		if o.iface == iface {
			n++
		}
	}
	return n
}

// Captures returns the output-local logical box of every capture request so
// far. Full-output captures are recorded with a zero box.
func (s *Server) Captures() []Box {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Box(nil), s.captures...)
}

func (s *Server) serve() {
	defer close(s.done)

	conn, err := s.ln.AcceptUnix()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	for {
		id, opcode, fd, body, err := readRequest(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !hangup(err) {
				s.fail(err)
			}
			return
		}

		s.mu.Lock()
		err = s.handle(id, opcode, fd, &args{b: body})
		s.mu.Unlock()
		if err != nil {
			s.fail(fmt.Errorf("object %d opcode %d: %w", id, opcode, err))
			return
		}
	}
}

func hangup(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
}

func (s *Server) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func readRequest(conn *net.UnixConn) (id, opcode uint32, fd int, body []byte, err error) {
	fd = -1
	header := make([]byte, 8)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := conn.ReadMsgUnix(header, oob)
	if err != nil {
		return 0, 0, fd, nil, err
	}
	if n == 0 {
		return 0, 0, fd, nil, io.EOF
	}
	if n != len(header) {
		return 0, 0, fd, nil, fmt.Errorf("short header: %d bytes", n)
	}
	if oobn > 0 {
		msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return 0, 0, fd, nil, err
		}
		for _, m := range msgs {
			fds, err := unix.ParseUnixRights(&m)
			if err == nil && len(fds) > 0 {
				fd = fds[0]
			}
		}
	}

	id = binary.NativeEndian.Uint32(header[0:4])
	word := binary.NativeEndian.Uint32(header[4:8])
	opcode = word & 0xffff
	body = make([]byte, int(word>>16)-len(header))
	if _, err := io.ReadFull(conn, body); err != nil {
		return 0, 0, fd, nil, err
	}
	return id, opcode, fd, body, nil
}

type args struct {
	b []byte
}

func (a *args) u32() uint32 {
	if len(a.b) < 4 {
		return 0
	}
	v := binary.NativeEndian.Uint32(a.b)
	a.b = a.b[4:]
	return v
}

func (a *args) i32() int32 { return int32(a.u32()) }

func (a *args) str() string {
	n := int(a.u32())
	if n == 0 {
		return ""
	}
	padded := (n + 3) &^ 3
	s := string(a.b[:n-1])
	a.b = a.b[padded:]
	return s
}

// send encodes one event. Arguments are uint32, int32 or string.
func (s *Server) send(id uint32, opcode uint16, argv ...any) {
	body := make([]byte, 0, 32)
	for _, v := range argv {
		switch v := v.(type) {
		case uint32:
			body = binary.NativeEndian.AppendUint32(body, v)
		case int32:
			body = binary.NativeEndian.AppendUint32(body, uint32(v))
		case string:
			n := len(v) + 1
			body = binary.NativeEndian.AppendUint32(body, uint32(n))
			body = append(body, v...)
			body = append(body, make([]byte, ((n+3)&^3)-len(v))...)
		default:
			panic(fmt.Sprintf("wltest: unsupported argument %T", v))
		}
	}

	msg := make([]byte, 8, 8+len(body))
	binary.NativeEndian.PutUint32(msg[0:4], id)
	binary.NativeEndian.PutUint32(msg[4:8], uint32(8+len(body))<<16|uint32(opcode))
	msg = append(msg, body...)

	_, err := s.conn.Write(msg)
	if err != nil && s.err == nil && !hangup(err) {
		s.err = fmt.Errorf("write event: %w", err)
	}
}

func (s *Server) destroy(id uint32) {
	if o, ok := s.objects[id]; ok && o.mem != nil {
		o.mem.Close()
	}
	delete(s.objects, id)
	s.send(displayID, 1, id)
}

func (s *Server) register(id uint32, o *object) error {
	if _, ok := s.objects[id]; ok {
		return fmt.Errorf("id %d already in use", id)
	}
	s.objects[id] = o
	return nil
}

func (s *Server) handle(id, opcode uint32, fd int, a *args) error {
	obj, ok := s.objects[id]
	if !ok {
		if fd >= 0 {
			unix.Close(fd)
		}
		return errors.New("request for unknown object")
	}

	switch obj.iface {
	case "wl_display":
		switch opcode {
		case 0:
			cb := a.u32()
			s.serial++
			s.send(cb, 0, s.serial)
			s.send(displayID, 1, cb)
		case 1:
			reg := a.u32()
			if err := s.register(reg, &object{iface: "wl_registry"}); err != nil {
				return err
			}
			s.advertise(reg)
		}
	case "wl_registry":
		name := a.u32()
		iface := a.str()
		version := a.u32()
		newID := a.u32()
		return s.bind(name, iface, version, newID)
	case "wl_shm":
		if opcode == 0 {
			pool := a.u32()
			if fd < 0 {
				return errors.New("create_pool without a file descriptor")
			}
			return s.register(pool, &object{iface: "wl_shm_pool", mem: os.NewFile(uintptr(fd), "wl_shm_pool")})
		}
	case "wl_shm_pool":
		switch opcode {
		case 0:
			bufID := a.u32()
			offset := a.i32()
			w, h, stride := a.i32(), a.i32(), a.i32()
			_ = a.u32()
			dup, err := unix.Dup(int(obj.mem.Fd()))
			if err != nil {
				return err
			}
			return s.register(bufID, &object{
				iface:  "wl_buffer",
				mem:    os.NewFile(uintptr(dup), "wl_buffer"),
				offset: int64(offset),
				width:  w,
				height: h,
				stride: stride,
			})
		case 1:
			s.destroy(id)
		}
	case "zxdg_output_manager_v1":
		if opcode != 1 {
			s.destroy(id)
			return nil
		}
		xo := a.u32()
		out := s.objects[a.u32()]
		if out == nil || out.output == nil {
			return errors.New("get_xdg_output for unknown wl_output")
		}
		if err := s.register(xo, &object{iface: "zxdg_output_v1", output: out.output}); err != nil {
			return err
		}
		s.describeXdg(xo, obj.version, out.output)
	case "zwlr_screencopy_manager_v1":
		if opcode == 2 {
			s.destroy(id)
			return nil
		}
		return s.capture(obj, opcode, a)
	case "wl_buffer", "wl_output", "zxdg_output_v1":
		// destroy, or release for wl_output
		s.destroy(id)
	case "zwlr_screencopy_frame_v1":
		switch opcode {
		case 0, 2:
			return s.copyFrame(obj.frame, a.u32(), id)
		case 1:
			if obj.frame.mode == FrameLate && obj.frame.copied {
				s.send(id, 1, uint32(0))
				s.send(id, 2, uint32(0), uint32(0), uint32(0))
			}
			s.destroy(id)
		}
	}
	return nil
}

func (s *Server) advertise(reg uint32) {
	s.send(reg, 0, uint32(1), "wl_compositor", uint32(4))
	s.send(reg, 0, uint32(2), "wl_shm", uint32(1))
	if !s.cfg.NoScreencopy {
		s.send(reg, 0, uint32(3), "zwlr_screencopy_manager_v1", s.cfg.ScreencopyVersion)
	}

	xdg := func() {
		if s.cfg.XdgOutput {
			s.send(reg, 0, uint32(4), "zxdg_output_manager_v1", uint32(3))
		}
	}
	if s.cfg.XdgManagerFirst {
		xdg()
	}
	for _, name := range s.order {
		s.send(reg, 0, name, "wl_output", s.cfg.OutputVersion)
	}
	if !s.cfg.XdgManagerFirst {
		xdg()
	}
}

func (s *Server) bind(name uint32, iface string, version, id uint32) error {
	o := &object{iface: iface, version: version}
	if iface == "wl_output" {
		out, ok := s.outputs[name]
		if !ok {
			return fmt.Errorf("bind to unknown output global %d", name)
		}
		o.output = out
	}
	if err := s.register(id, o); err != nil {
		return err
	}
	if o.output != nil {
		s.describeOutput(id, version, o.output)
	}
	return nil
}

func (s *Server) describeOutput(id, version uint32, o *Output) {
	s.send(id, 0, o.X, o.Y, int32(600), int32(340), int32(0), o.Make, o.Model, o.Transform)
	s.send(id, 1, uint32(0), o.Width/2, o.Height/2, int32(30000))
	s.send(id, 1, uint32(0x3), o.Width, o.Height, int32(60000))
	if version >= 2 {
		s.send(id, 3, max(o.Scale, 1))
	}
	if version >= 4 {
		if o.Name != "" {
			s.send(id, 4, o.Name)
		}
		if o.Description != "" {
			s.send(id, 5, o.Description)
		}
	}
	if version >= 2 {
		s.send(id, 2)
	}
}

func (s *Server) describeXdg(id, version uint32, o *Output) {
	l := o.logical()
	s.send(id, 0, l.X, l.Y)
	s.send(id, 1, l.Width, l.Height)
	if version >= 2 {
		if o.XdgName != "" {
			s.send(id, 3, o.XdgName)
		}
		if o.XdgDescription != "" {
			s.send(id, 4, o.XdgDescription)
		}
	}
	s.send(id, 2)
}

func (s *Server) capture(mgr *object, opcode uint32, a *args) error {
	frameID := a.u32()
	_ = a.i32()
	out := s.objects[a.u32()]
	if out == nil || out.output == nil {
		return errors.New("capture of unknown wl_output")
	}
	o := out.output
	scale := max(o.Scale, 1)

	f := &frame{output: o, version: mgr.version, mode: o.Frame, w: o.Width, h: o.Height}
	var box Box
	if opcode == 1 {
		box = Box{X: a.i32(), Y: a.i32(), Width: a.i32(), Height: a.i32()}
		f.x, f.y = box.X*scale, box.Y*scale
		f.w, f.h = box.Width*scale, box.Height*scale
	}
	s.captures = append(s.captures, box)

	if err := s.register(frameID, &object{iface: "zwlr_screencopy_frame_v1", frame: f}); err != nil {
		return err
	}

	switch f.mode {
	case FrameFailed:
		s.send(frameID, 3)
		return nil
	case FrameDmabufOnly:
		s.send(frameID, 5, uint32(fourccXR24), uint32(f.w), uint32(f.h))
		s.send(frameID, 6)
		return nil
	}

	s.send(frameID, 0, uint32(formatXRGB8888), uint32(f.w), uint32(f.h), uint32(f.w*4))
	if f.version >= 3 {
		s.send(frameID, 5, uint32(fourccXR24), uint32(f.w), uint32(f.h))
		s.send(frameID, 6)
	}
	return nil
}

func (s *Server) copyFrame(f *frame, bufID, frameID uint32) error {
	buf := s.objects[bufID]
	if buf == nil || buf.iface != "wl_buffer" {
		return errors.New("copy into unknown wl_buffer")
	}
	f.copied = true

	switch f.mode {
	case FrameFailedOnCopy:
		s.send(frameID, 3)
		return nil
	case FrameSilent, FrameLate:
		return nil
	}

	w, h := min(f.w, buf.width), min(f.h, buf.height)
	pixels := make([]byte, int(buf.stride)*int(h))
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			p := pixels[int(y)*int(buf.stride)+int(x)*4:]
			// xrgb8888 is little-endian: blue, green, red, padding
			p[0], p[1], p[2], p[3] = f.output.Tint, byte(f.y+y), byte(f.x+x), 0xff
		}
	}
	if _, err := buf.mem.WriteAt(pixels, buf.offset); err != nil {
		return fmt.Errorf("write pixels: %w", err)
	}

	s.send(frameID, 1, uint32(0))
	s.send(frameID, 2, uint32(0), uint32(0), uint32(0))
	return nil
}
