package screenshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timdodge/grimshot/internal/errdefs"
	"github.com/timdodge/grimshot/internal/wayland/wltest"
)

func connectFake(t *testing.T, cfg Config) *Screenshoter {
	t.Helper()
	sc := New(cfg)
	require.NoError(t, sc.Connect())
	t.Cleanup(sc.Close)
	return sc
}

func assertReleased(t *testing.T, srv *wltest.Server) {
	t.Helper()
	for _, iface := range []string{"zwlr_screencopy_frame_v1", "wl_buffer", "wl_shm_pool"} {
		assert.Eventually(t, func() bool { return srv.Live(iface) == 0 },
			time.Second, 5*time.Millisecond, "%s still alive", iface)
	}
}

func twoHeads() []wltest.Output {
	return []wltest.Output{
		{Name: "DP-1", Width: 4, Height: 2, Scale: 1, Tint: 10},
		{Name: "HDMI-A-1", X: 4, Width: 4, Height: 2, Scale: 1, Tint: 20},
	}
}

func TestWaylandBackend_CaptureOutput(t *testing.T) {
	srv := wltest.NewServer(t, wltest.Config{Outputs: twoHeads()})
	sc := connectFake(t, DefaultConfig())

	res, err := sc.CaptureOutput("HDMI-A-1")
	require.NoError(t, err)
	require.Equal(t, 4, res.Width)
	require.Equal(t, 2, res.Height)
	assert.Equal(t, [4]byte{3, 1, 20, 255}, at(res, 3, 1))
	assertReleased(t, srv)
}

func TestWaylandBackend_CaptureAllStitchesOutputs(t *testing.T) {
	srv := wltest.NewServer(t, wltest.Config{Outputs: twoHeads()})
	sc := connectFake(t, DefaultConfig())

	res, err := sc.CaptureAll()
	require.NoError(t, err)
	require.Equal(t, 8, res.Width)
	require.Equal(t, 2, res.Height)
	assert.Equal(t, [4]byte{0, 0, 10, 255}, at(res, 0, 0))
	assert.Equal(t, [4]byte{1, 1, 20, 255}, at(res, 5, 1))
	assertReleased(t, srv)
}

func TestWaylandBackend_LegacyScreencopyWithoutBufferDone(t *testing.T) {
	wltest.NewServer(t, wltest.Config{Outputs: twoHeads(), ScreencopyVersion: 1})
	sc := connectFake(t, DefaultConfig())

	res, err := sc.CaptureOutput("DP-1")
	require.NoError(t, err)
	assert.Equal(t, [4]byte{2, 0, 10, 255}, at(res, 2, 0))
}

func TestWaylandBackend_UnalignedScaledRegionIsCropped(t *testing.T) {
	srv := wltest.NewServer(t, wltest.Config{Outputs: []wltest.Output{
		{Name: "eDP-1", Width: 8, Height: 8, Scale: 2, Tint: 5},
	}})
	sc := connectFake(t, DefaultConfig())

	region := NewRegion(1, 1, 3, 3)
	multi, err := sc.CaptureOutputs([]CaptureParameters{{OutputName: "eDP-1", Region: &region}})
	require.NoError(t, err)

	res := multi.Outputs["eDP-1"]
	require.Equal(t, 3, res.Width)
	require.Equal(t, 3, res.Height)
	assert.Equal(t, [4]byte{1, 1, 5, 255}, at(res, 0, 0))
	assert.Equal(t, [4]byte{3, 3, 5, 255}, at(res, 2, 2))
	assert.Equal(t, []wltest.Box{{X: 0, Y: 0, Width: 2, Height: 2}}, srv.Captures())
}

func TestWaylandBackend_ScaledRegionComposite(t *testing.T) {
	wltest.NewServer(t, wltest.Config{Outputs: []wltest.Output{
		{Name: "eDP-1", Width: 8, Height: 8, Scale: 2},
	}})
	sc := connectFake(t, DefaultConfig())

	res, err := sc.CaptureRegion(NewRegion(1, 1, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Width)
	assert.Equal(t, 2, res.Height)
}

func TestWaylandBackend_FrameTimeout(t *testing.T) {
	srv := wltest.NewServer(t, wltest.Config{Outputs: []wltest.Output{
		{Name: "DP-1", Width: 4, Height: 2, Scale: 1, Frame: wltest.FrameSilent},
	}})
	obs := &recordingObserver{}
	sc := connectFake(t, Config{MaxAttempts: 3, Observer: obs})

	_, err := sc.CaptureOutput("DP-1")
	require.ErrorIs(t, err, errdefs.ErrFrameTimeout)
	assertReleased(t, srv)

	require.Equal(t, []string{"output"}, obs.modes)
	assert.ErrorIs(t, obs.errs[0], errdefs.ErrFrameTimeout)
}

func TestWaylandBackend_ReleasesOnFailure(t *testing.T) {
	tests := []struct {
		name string
		mode wltest.FrameMode
		want error
	}{
		{"failed before buffer", wltest.FrameFailed, errdefs.ErrCaptureFailed},
		{"failed on copy", wltest.FrameFailedOnCopy, errdefs.ErrCaptureFailed},
		{"dmabuf only", wltest.FrameDmabufOnly, errdefs.ErrCaptureFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := wltest.NewServer(t, wltest.Config{Outputs: []wltest.Output{
				{Name: "DP-1", Width: 4, Height: 2, Scale: 1, Frame: tt.mode},
			}})
			sc := connectFake(t, Config{MaxAttempts: 5})

			_, err := sc.CaptureOutput("DP-1")
			require.ErrorIs(t, err, tt.want)
			assertReleased(t, srv)
		})
	}
}

func TestWaylandBackend_SiblingFailureReleasesEveryFrame(t *testing.T) {
	heads := twoHeads()
	heads[1].Frame = wltest.FrameFailedOnCopy
	srv := wltest.NewServer(t, wltest.Config{Outputs: heads})
	sc := connectFake(t, DefaultConfig())

	_, err := sc.CaptureAll()
	require.ErrorIs(t, err, errdefs.ErrCaptureFailed)
	assert.Contains(t, err.Error(), "HDMI-A-1")
	assertReleased(t, srv)
}

func TestWaylandBackend_StaleFrameEventsAfterTimeout(t *testing.T) {
	srv := wltest.NewServer(t, wltest.Config{Outputs: []wltest.Output{
		{Name: "DP-1", Width: 4, Height: 2, Scale: 1, Tint: 1, Frame: wltest.FrameLate},
	}})
	sc := connectFake(t, Config{MaxAttempts: 3})

	_, err := sc.CaptureOutput("DP-1")
	require.ErrorIs(t, err, errdefs.ErrFrameTimeout)

	// flags and ready for the destroyed frame arrive during the next refresh
	srv.SetFrameMode("DP-1", wltest.FrameReady)
	res, err := sc.CaptureOutput("DP-1")
	require.NoError(t, err)
	assert.Equal(t, [4]byte{3, 1, 1, 255}, at(res, 3, 1))

	outputs, err := sc.GetOutputs()
	require.NoError(t, err)
	assert.Len(t, outputs, 1)
}

func TestWaylandBackend_XdgNameOverridesPlaceholderOnly(t *testing.T) {
	t.Run("v3 output without name", func(t *testing.T) {
		wltest.NewServer(t, wltest.Config{
			OutputVersion: 3,
			XdgOutput:     true,
			Outputs:       []wltest.Output{{Width: 4, Height: 2, Scale: 1, XdgName: "DP-3"}},
		})
		sc := connectFake(t, DefaultConfig())

		outputs, err := sc.GetOutputs()
		require.NoError(t, err)
		require.Len(t, outputs, 1)
		assert.Equal(t, "DP-3", outputs[0].Name)
	})

	t.Run("v4 output name wins", func(t *testing.T) {
		wltest.NewServer(t, wltest.Config{
			XdgOutput: true,
			Outputs:   []wltest.Output{{Name: "DP-1", Width: 4, Height: 2, Scale: 1, XdgName: "Virtual-1"}},
		})
		sc := connectFake(t, DefaultConfig())

		outputs, err := sc.GetOutputs()
		require.NoError(t, err)
		require.Len(t, outputs, 1)
		assert.Equal(t, "DP-1", outputs[0].Name)
	})

	t.Run("no name anywhere keeps placeholder", func(t *testing.T) {
		wltest.NewServer(t, wltest.Config{
			OutputVersion: 3,
			Outputs:       []wltest.Output{{Width: 4, Height: 2, Scale: 1, Make: "Dell", Model: "U2720Q"}},
		})
		sc := connectFake(t, DefaultConfig())

		outputs, err := sc.GetOutputs()
		require.NoError(t, err)
		require.Len(t, outputs, 1)
		assert.Equal(t, "output-10", outputs[0].Name)
		assert.Equal(t, "Dell U2720Q", outputs[0].Description)
	})
}

func TestWaylandBackend_XdgManagerOrdering(t *testing.T) {
	for _, first := range []bool{false, true} {
		name := "manager after outputs"
		if first {
			name = "manager before outputs"
		}
		t.Run(name, func(t *testing.T) {
			srv := wltest.NewServer(t, wltest.Config{
				XdgOutput:       true,
				XdgManagerFirst: first,
				Outputs: []wltest.Output{{
					Name: "DP-1", Width: 200, Height: 100, Scale: 1,
					Logical: &wltest.Box{X: 50, Y: 0, Width: 100, Height: 50},
				}},
			})
			b, err := connectWayland(DefaultConfig(), nopObserver{})
			require.NoError(t, err)
			t.Cleanup(b.close)

			// binds issued while dispatching the registry are answered here
			require.NoError(t, b.roundtrip())
			outs := b.outputs()
			require.Len(t, outs, 1)
			assert.True(t, outs[0].LogicalScaleKnown)
			assert.Equal(t, NewRegion(50, 0, 100, 50), outs[0].LogicalBox())
			assert.Equal(t, 1, srv.Live("zxdg_output_v1"))
		})
	}
}

func TestWaylandBackend_RefreshRebuildsOutputs(t *testing.T) {
	srv := wltest.NewServer(t, wltest.Config{XdgOutput: true, Outputs: twoHeads()})
	sc := connectFake(t, DefaultConfig())

	outputs, err := sc.GetOutputs()
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, 2, srv.Live("wl_output"))

	srv.SetOutputs(
		wltest.Output{Name: "eDP-1", Width: 8, Height: 4, Scale: 2},
		wltest.Output{Name: "DP-1", X: 4, Width: 6, Height: 2, Scale: 1},
		wltest.Output{Name: "DP-2", X: 10, Width: 6, Height: 2, Scale: 1},
	)
	outputs, err = sc.GetOutputs()
	require.NoError(t, err)
	require.Len(t, outputs, 3)
	assert.Equal(t, "eDP-1", outputs[0].Name)
	assert.Equal(t, NewRegion(0, 0, 4, 2), outputs[0].Geometry)
	assert.Equal(t, NewRegion(4, 0, 6, 2), outputs[1].Geometry)
	assert.Equal(t, 3, srv.Live("wl_output"))
	assert.Equal(t, 3, srv.Live("zxdg_output_v1"))

	srv.SetOutputs()
	_, err = sc.GetOutputs()
	require.ErrorIs(t, err, errdefs.ErrNoOutputs)
	assert.Equal(t, 0, srv.Live("wl_output"))
}

func TestWaylandBackend_DerivedLogicalGeometry(t *testing.T) {
	wltest.NewServer(t, wltest.Config{Outputs: []wltest.Output{
		{Name: "eDP-1", Width: 40, Height: 20, Scale: 2},
	}})
	sc := connectFake(t, DefaultConfig())

	outputs, err := sc.GetOutputs()
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, NewRegion(0, 0, 20, 10), outputs[0].Geometry)
}

func TestWaylandBackend_MissingScreencopy(t *testing.T) {
	wltest.NewServer(t, wltest.Config{NoScreencopy: true, Outputs: twoHeads()})

	err := New(DefaultConfig()).Connect()
	require.ErrorIs(t, err, errdefs.ErrUnsupportedProtocol)
}
