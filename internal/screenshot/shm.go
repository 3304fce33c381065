package screenshot

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/timdodge/grimshot/internal/errdefs"
)

// PixelFormat is a wl_shm format code. ARGB8888 and XRGB8888 use the wl_shm
// specific values, everything else is a DRM fourcc.
type PixelFormat uint32

const (
	FormatARGB8888 PixelFormat = 0
	FormatXRGB8888 PixelFormat = 1
	FormatABGR8888 PixelFormat = 0x34324241
	FormatXBGR8888 PixelFormat = 0x34324258
	FormatRGB888   PixelFormat = 0x34324752
	FormatBGR888   PixelFormat = 0x34324742
)

func (f PixelFormat) String() string {
	switch f {
	case FormatARGB8888:
		return "argb8888"
	case FormatXRGB8888:
		return "xrgb8888"
	case FormatABGR8888:
		return "abgr8888"
	case FormatXBGR8888:
		return "xbgr8888"
	case FormatRGB888:
		return "rgb888"
	case FormatBGR888:
		return "bgr888"
	}
	return fmt.Sprintf("0x%08x", uint32(f))
}

func (f PixelFormat) BytesPerPixel() int {
	if f.Is24Bit() {
		return 3
	}
	return 4
}

func (f PixelFormat) Is24Bit() bool {
	return f == FormatRGB888 || f == FormatBGR888
}

// convertRow writes one row of width pixels as RGBA into dst. Packed little
// endian formats store blue first, so XRGB/ARGB need the red and blue bytes
// swapped. Unknown 32-bit formats are copied as is.
func convertRow(dst, src []byte, width int, format PixelFormat) {
	switch format {
	case FormatXRGB8888:
		for x := 0; x < width; x++ {
			s, d := src[x*4:x*4+4], dst[x*4:x*4+4]
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
		}
	case FormatARGB8888:
		for x := 0; x < width; x++ {
			s, d := src[x*4:x*4+4], dst[x*4:x*4+4]
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
		}
	case FormatXBGR8888:
		copy(dst[:width*4], src[:width*4])
		for x := 0; x < width; x++ {
			dst[x*4+3] = 0xff
		}
	case FormatRGB888:
		for x := 0; x < width; x++ {
			s, d := src[x*3:x*3+3], dst[x*4:x*4+4]
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
		}
	case FormatBGR888:
		for x := 0; x < width; x++ {
			s, d := src[x*3:x*3+3], dst[x*4:x*4+4]
			d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xff
		}
	default:
		copy(dst[:width*4], src[:width*4])
	}
}

// ShmBuffer is an anonymous file mapped read/write and shared with the
// compositor. Close must be called on every path once the pixels have been
// read back.
type ShmBuffer struct {
	fd     int
	data   []byte
	Width  int
	Height int
	Stride int
	Format PixelFormat
}

func CreateShmBuffer(width, height, stride int) (*ShmBuffer, error) {
	if width <= 0 || height <= 0 || stride <= 0 {
		return nil, fmt.Errorf("%w: invalid buffer size %dx%d stride %d", errdefs.ErrBufferCreation, width, height, stride)
	}
	size := stride * height

	fd, err := createAnonymousFile(size)
	if err != nil {
		return nil, err
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: mmap %d bytes: %w", errdefs.ErrBufferCreation, size, err)
	}

	return &ShmBuffer{
		fd:     fd,
		data:   data,
		Width:  width,
		Height: height,
		Stride: stride,
	}, nil
}

func createAnonymousFile(size int) (int, error) {
	fd, err := unix.MemfdCreate("grimshot-shm", unix.MFD_CLOEXEC)
	if err != nil {
		fd, err = createUnlinkedTempFile()
		if err != nil {
			return -1, err
		}
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: ftruncate %d bytes: %w", errdefs.ErrBufferCreation, size, err)
	}
	return fd, nil
}

// createUnlinkedTempFile covers kernels without memfd_create.
func createUnlinkedTempFile() (int, error) {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}

	f, err := os.CreateTemp(dir, "grimshot-shm-*")
	if err != nil {
		return -1, fmt.Errorf("%w: create temp file in %s: %w", errdefs.ErrBufferCreation, dir, err)
	}
	defer f.Close()

	if err := os.Remove(f.Name()); err != nil {
		return -1, fmt.Errorf("%w: unlink %s: %w", errdefs.ErrBufferCreation, f.Name(), err)
	}

	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return -1, fmt.Errorf("%w: dup %s: %w", errdefs.ErrBufferCreation, f.Name(), err)
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

func (b *ShmBuffer) Fd() int      { return b.fd }
func (b *ShmBuffer) Size() int    { return len(b.data) }
func (b *ShmBuffer) Data() []byte { return b.data }

// Close unmaps the buffer and closes its descriptor. It is safe to call more
// than once.
func (b *ShmBuffer) Close() error {
	var firstErr error
	if b.data != nil {
		if err := unix.Munmap(b.data); err != nil {
			firstErr = fmt.Errorf("munmap: %w", err)
		}
		b.data = nil
	}
	if b.fd >= 0 {
		if err := unix.Close(b.fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close shm fd: %w", err)
		}
		b.fd = -1
	}
	return firstErr
}

// ReadRGBA copies the mapped pixels out, dropping stride padding and
// normalising to RGBA.
func (b *ShmBuffer) ReadRGBA() (*CaptureResult, error) {
	if b.data == nil {
		return nil, fmt.Errorf("%w: read from closed shm buffer", errdefs.ErrCaptureFailed)
	}
	rowLen := b.Width * b.Format.BytesPerPixel()
	if b.Stride < rowLen || len(b.data) < b.Stride*b.Height {
		return nil, fmt.Errorf("%w: stride %d too small for %d pixels of %s", errdefs.ErrProtocolViolation, b.Stride, b.Width, b.Format)
	}

	out := newCaptureResult(b.Width, b.Height)
	dstRow := b.Width * 4
	for y := 0; y < b.Height; y++ {
		src := b.data[y*b.Stride : y*b.Stride+rowLen]
		convertRow(out.Data[y*dstRow:(y+1)*dstRow], src, b.Width, b.Format)
	}
	return out, nil
}
