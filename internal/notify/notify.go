// Package notify posts a desktop notification for a finished capture.
package notify

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/timdodge/grimshot/internal/log"
	"github.com/timdodge/grimshot/internal/screenshot"
)

const (
	dbusNotifyDest      = "org.freedesktop.Notifications"
	dbusNotifyPath      = "/org/freedesktop/Notifications"
	dbusNotifyInterface = "org.freedesktop.Notifications"

	appName       = "grimshot"
	appIcon       = "camera-photo"
	summary       = "Screenshot captured"
	expireTimeout = int32(5000)

	ThumbnailSize = 256
)

type Result struct {
	// FilePath is empty when the image went to stdout.
	FilePath string
	Image    *screenshot.CaptureResult
}

// imageData is the (iiibiiay) struct of the image-data hint.
type imageData struct {
	Width         int32
	Height        int32
	RowStride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

type caller interface {
	Call(method string, flags dbus.Flags, args ...any) *dbus.Call
}

// Send notifies over the session bus. A missing notification daemon is not
// an error.
func Send(r Result) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Debug("session bus unavailable, skipping notification", "err", err)
		return nil
	}
	defer conn.Close()

	if !serviceAvailable(busObject(conn), dbusNotifyDest) {
		log.Debug("no notification daemon on the session bus")
		return nil
	}

	id, err := send(conn.Object(dbusNotifyDest, dbusNotifyPath), r)
	if err != nil {
		return err
	}
	log.Debug("notification sent", "id", id)
	return nil
}

func send(obj caller, r Result) (uint32, error) {
	var id uint32
	err := obj.Call(dbusNotifyInterface+".Notify", 0,
		appName,
		uint32(0),
		appIcon,
		summary,
		body(r),
		[]string{},
		hints(r),
		expireTimeout,
	).Store(&id)
	if err != nil {
		if isServiceUnknown(err) {
			log.Debug("no notification daemon running")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to send notification: %w", err)
	}
	return id, nil
}

func isServiceUnknown(err error) bool {
	const name = "org.freedesktop.DBus.Error.ServiceUnknown"
	var byValue dbus.Error
	if errors.As(err, &byValue) {
		return byValue.Name == name
	}
	var byPtr *dbus.Error
	return errors.As(err, &byPtr) && byPtr.Name == name
}

func body(r Result) string {
	if r.FilePath == "" {
		return "written to stdout"
	}
	return r.FilePath
}

func hints(r Result) map[string]dbus.Variant {
	h := map[string]dbus.Variant{
		"category": dbus.MakeVariant("transfer.complete"),
	}
	if r.Image == nil {
		return h
	}
	img, err := thumbnail(r.Image, ThumbnailSize)
	if err != nil {
		log.Debug("skipping notification thumbnail", "err", err)
		return h
	}
	h["image-data"] = dbus.MakeVariant(img)
	return h
}

// thumbnail fits c into maxSize×maxSize and packs it as 8-bit RGB.
func thumbnail(c *screenshot.CaptureResult, maxSize int) (imageData, error) {
	factor := 1.0
	if longest := max(c.Width, c.Height); longest > maxSize {
		factor = float64(maxSize) / float64(longest)
	}
	small, err := screenshot.Scale(c, factor)
	if err != nil {
		return imageData{}, err
	}

	rgb := make([]byte, small.Width*small.Height*3)
	for i := 0; i < small.Width*small.Height; i++ {
		copy(rgb[i*3:i*3+3], small.Data[i*4:i*4+3])
	}
	return imageData{
		Width:         int32(small.Width),
		Height:        int32(small.Height),
		RowStride:     int32(small.Width * 3),
		HasAlpha:      false,
		BitsPerSample: 8,
		Channels:      3,
		Data:          rgb,
	}, nil
}
