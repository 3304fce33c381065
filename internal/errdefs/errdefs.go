package errdefs

import "errors"

var (
	ErrConnection          = errors.New("failed to connect to wayland compositor")
	ErrUnsupportedProtocol = errors.New("required wayland protocol not supported")
	ErrNoOutputs           = errors.New("no outputs available")
	ErrOutputNotFound      = errors.New("output not found")
	ErrInvalidRegion       = errors.New("invalid capture region")
	ErrInvalidGeometry     = errors.New("invalid geometry format")
	ErrInvalidParameters   = errors.New("invalid capture parameters")
	ErrCaptureFailed       = errors.New("capture failed")
	ErrBufferCreation      = errors.New("buffer creation failed")
	ErrFrameTimeout        = errors.New("timed out waiting for frame")
	ErrProtocolViolation   = errors.New("compositor protocol violation")
	ErrScalingFailed       = errors.New("image scaling failed")
	ErrUnsupportedFormat   = errors.New("unsupported image format")
)
