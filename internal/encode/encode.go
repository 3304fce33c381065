// Package encode turns capture results into PNG, JPEG or PPM files.
package encode

import (
	"bufio"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/timdodge/grimshot/internal/errdefs"
	"github.com/timdodge/grimshot/internal/screenshot"
)

type Format int

const (
	FormatPNG Format = iota
	FormatPPM
	FormatJPEG
)

func (f Format) String() string {
	switch f {
	case FormatPPM:
		return "ppm"
	case FormatJPEG:
		return "jpeg"
	default:
		return "png"
	}
}

func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return f.String()
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "ppm":
		return FormatPPM, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return FormatPNG, fmt.Errorf("%w: %q", errdefs.ErrUnsupportedFormat, s)
}

type Options struct {
	Format      Format
	JPEGQuality int
	PNGLevel    int
}

func DefaultOptions() Options {
	return Options{Format: FormatPNG, JPEGQuality: 80, PNGLevel: 6}
}

func Encode(w io.Writer, c *screenshot.CaptureResult, opts Options) error {
	switch opts.Format {
	case FormatPPM:
		return EncodePPM(w, c)
	case FormatJPEG:
		return EncodeJPEG(w, c, opts.JPEGQuality)
	case FormatPNG:
		return EncodePNG(w, c, opts.PNGLevel)
	}
	return fmt.Errorf("%w: format %d", errdefs.ErrUnsupportedFormat, int(opts.Format))
}

func pngCompression(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

func EncodePNG(w io.Writer, c *screenshot.CaptureResult, level int) error {
	enc := png.Encoder{CompressionLevel: pngCompression(level)}
	return enc.Encode(w, c.ToImage())
}

func clampQuality(q int) int {
	return min(max(q, 1), 100)
}

func EncodeJPEG(w io.Writer, c *screenshot.CaptureResult, quality int) error {
	return jpeg.Encode(w, c.ToImage(), &jpeg.Options{Quality: clampQuality(quality)})
}

// EncodePPM writes a binary P6 image. Alpha is dropped.
func EncodePPM(w io.Writer, c *screenshot.CaptureResult) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", c.Width, c.Height); err != nil {
		return err
	}
	row := make([]byte, c.Width*3)
	for y := 0; y < c.Height; y++ {
		src := c.Data[y*c.Width*4 : (y+1)*c.Width*4]
		for x := 0; x < c.Width; x++ {
			copy(row[x*3:x*3+3], src[x*4:x*4+3])
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile encodes into a temporary file next to path and renames it into
// place, so readers never see a partial image.
func WriteFile(path string, c *screenshot.CaptureResult, opts Options) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	bw := bufio.NewWriter(tmp)
	if err := Encode(bw, c, opts); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteStdout encodes to standard output.
func WriteStdout(c *screenshot.CaptureResult, opts Options) error {
	bw := bufio.NewWriter(os.Stdout)
	if err := Encode(bw, c, opts); err != nil {
		return err
	}
	return bw.Flush()
}
