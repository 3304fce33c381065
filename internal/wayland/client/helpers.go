package client

import (
	"errors"
	"fmt"

	wlclient "github.com/rajveermalviya/go-wayland/wayland/client"
	"golang.org/x/sys/unix"

	"github.com/timdodge/grimshot/internal/log"
)

// Core interface names as advertised by wl_registry.global.
const (
	CompositorInterfaceName = "wl_compositor"
	ShmInterfaceName        = "wl_shm"
	OutputInterfaceName     = "wl_output"
)

const DefaultMaxAttempts = 100

var ErrPollExhausted = errors.New("poll attempts exhausted")

// Dispatch reads one event and hands it to its proxy. Events addressed to an
// object the client already destroyed are discarded: the compositor may have
// queued them before it saw the destroy request.
func Dispatch(ctx *wlclient.Context) error {
	senderID, opcode, fd, data, err := ctx.ReadMsg()
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	proxy := ctx.GetProxy(senderID)
	if proxy == nil {
		if fd >= 0 {
			unix.Close(fd)
		}
		log.Debugf("dropping event %d for destroyed object %d", opcode, senderID)
		return nil
	}

	dispatcher, ok := proxy.(wlclient.Dispatcher)
	if !ok {
		return fmt.Errorf("object %d cannot dispatch events", senderID)
	}
	dispatcher.Dispatch(opcode, fd, data)
	return nil
}

// Roundtrip blocks until the compositor has processed every request sent so
// far and all events it emitted in response have been dispatched.
func Roundtrip(display *wlclient.Display, ctx *wlclient.Context) error {
	callback, err := display.Sync()
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	defer callback.Destroy()

	done := false
	callback.SetDoneHandler(func(wlclient.CallbackDoneEvent) {
		done = true
	})

	for !done {
		if err := Dispatch(ctx); err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
	}
	return nil
}

// Poll calls step until done reports true, giving up after maxAttempts
// steps. done is consulted once before the first step so state that is
// already complete costs no round-trip. The returned count is the number of
// steps taken.
func Poll(maxAttempts int, step func() error, done func() (bool, error)) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	ok, err := done()
	if err != nil || ok {
		return 0, err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := step(); err != nil {
			return attempt, err
		}
		ok, err := done()
		if err != nil {
			return attempt, err
		}
		if ok {
			return attempt, nil
		}
	}
	return maxAttempts, fmt.Errorf("%w after %d attempts", ErrPollExhausted, maxAttempts)
}
