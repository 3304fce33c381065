package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedErrorsKeepIdentity(t *testing.T) {
	err := fmt.Errorf("%w: memfd_create 8294400 bytes: permission denied", ErrBufferCreation)

	assert.True(t, errors.Is(err, ErrBufferCreation))
	assert.False(t, errors.Is(err, ErrCaptureFailed))
	assert.Contains(t, err.Error(), "buffer creation failed")
	assert.Contains(t, err.Error(), "8294400")
}

func TestOutputNotFound_Message(t *testing.T) {
	err := fmt.Errorf("%w: %s", ErrOutputNotFound, "HDMI-1")
	assert.Equal(t, "output not found: HDMI-1", err.Error())
}

func TestSentinelsAreDistinct(t *testing.T) {
	all := []error{
		ErrConnection, ErrUnsupportedProtocol, ErrNoOutputs, ErrOutputNotFound,
		ErrInvalidRegion, ErrInvalidGeometry, ErrInvalidParameters, ErrCaptureFailed,
		ErrBufferCreation, ErrFrameTimeout, ErrProtocolViolation, ErrScalingFailed,
		ErrUnsupportedFormat,
	}
	for i, a := range all {
		for j, b := range all {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}
