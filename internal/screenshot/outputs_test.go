package screenshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortOutputs_ByLogicalPosition(t *testing.T) {
	outputs := []*WaylandOutput{
		fakeOutput("right", 1920, 0, 1920, 1080, 1),
		fakeOutput("below", 0, 1080, 1920, 1080, 1),
		fakeOutput("b-left", 0, 0, 1920, 1080, 1),
		fakeOutput("a-left", 0, 0, 1920, 1080, 1),
	}
	sortOutputs(outputs)

	names := make([]string, len(outputs))
	for i, o := range outputs {
		names[i] = o.Name
	}
	assert.Equal(t, []string{"a-left", "b-left", "right", "below"}, names)
}

func TestWaylandOutput_PlaceholderName(t *testing.T) {
	o := &WaylandOutput{globalName: 42}
	assert.True(t, o.hasPlaceholderName())

	o.Name = placeholderName(42)
	assert.Equal(t, "output-42", o.Name)
	assert.True(t, o.hasPlaceholderName())

	o.Name = "DP-3"
	assert.False(t, o.hasPlaceholderName())
}
