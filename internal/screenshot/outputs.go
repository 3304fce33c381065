package screenshot

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rajveermalviya/go-wayland/wayland/client"

	"github.com/timdodge/grimshot/internal/errdefs"
	"github.com/timdodge/grimshot/internal/log"
	"github.com/timdodge/grimshot/internal/proto/wlr_screencopy"
	"github.com/timdodge/grimshot/internal/proto/xdg_output"
	wlhelpers "github.com/timdodge/grimshot/internal/wayland/client"
)

// Extra round-trips after registry discovery. Compositors spread an
// output's geometry, mode, scale and xdg-output events over several.
const outputSettleRoundtrips = 2

// WaylandOutput is one bound wl_output plus everything learned about it.
type WaylandOutput struct {
	OutputInfo

	globalName uint32
	version    uint32
	wlOutput   *client.Output
	xdgOutput  *xdg_output.ZxdgOutputV1

	vendor, model string
}

func placeholderName(global uint32) string {
	return fmt.Sprintf("output-%d", global)
}

func (o *WaylandOutput) hasPlaceholderName() bool {
	return o.Name == "" || o.Name == placeholderName(o.globalName)
}

type waylandBackend struct {
	display  *client.Display
	registry *client.Registry
	ctx      *client.Context

	compositor        *client.Compositor
	shm               *client.Shm
	screencopy        *wlr_screencopy.ZwlrScreencopyManagerV1
	screencopyVersion uint32
	xdgOutputManager  *xdg_output.ZxdgOutputManagerV1

	outputsMap map[uint32]*WaylandOutput
	outputsMu  sync.Mutex

	maxAttempts int
	observer    Observer
}

func connectWayland(config Config, observer Observer) (*waylandBackend, error) {
	display, err := client.Connect("")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrConnection, err)
	}

	b := &waylandBackend{
		display:     display,
		ctx:         display.Context(),
		outputsMap:  make(map[uint32]*WaylandOutput),
		maxAttempts: config.MaxAttempts,
		observer:    observer,
	}

	if err := b.setupRegistry(); err != nil {
		b.close()
		return nil, fmt.Errorf("registry setup: %w", err)
	}
	if err := b.roundtrip(); err != nil {
		b.close()
		return nil, fmt.Errorf("%w: roundtrip: %w", errdefs.ErrConnection, err)
	}

	switch {
	case b.screencopy == nil:
		b.close()
		return nil, fmt.Errorf("%w: %s", errdefs.ErrUnsupportedProtocol, wlr_screencopy.ZwlrScreencopyManagerV1InterfaceName)
	case b.shm == nil:
		b.close()
		return nil, fmt.Errorf("%w: %s", errdefs.ErrUnsupportedProtocol, wlhelpers.ShmInterfaceName)
	}

	if b.xdgOutputManager == nil {
		log.Debug("compositor lacks xdg-output, logical geometry will be derived")
	}
	return b, nil
}

func (b *waylandBackend) roundtrip() error {
	return wlhelpers.Roundtrip(b.display, b.ctx)
}

// setupRegistry requests a fresh wl_registry. The previous one stays alive
// on the connection but its handlers are cleared so hotplug events are only
// handled once.
func (b *waylandBackend) setupRegistry() error {
	registry, err := b.display.GetRegistry()
	if err != nil {
		return err
	}

	if b.registry != nil {
		b.registry.SetGlobalHandler(nil)
		b.registry.SetGlobalRemoveHandler(nil)
	}
	b.registry = registry

	registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		b.handleGlobal(registry, e)
	})
	registry.SetGlobalRemoveHandler(func(e client.RegistryGlobalRemoveEvent) {
		b.outputsMu.Lock()
		o, ok := b.outputsMap[e.Name]
		delete(b.outputsMap, e.Name)
		b.outputsMu.Unlock()
		if ok {
			log.Debug("output removed", "name", o.Name)
			b.releaseOutput(o)
		}
	})
	return nil
}

func (b *waylandBackend) handleGlobal(registry *client.Registry, e client.RegistryGlobalEvent) {
	switch e.Interface {
	case wlhelpers.CompositorInterfaceName:
		if b.compositor != nil {
			return
		}
		comp := client.NewCompositor(b.ctx)
		if err := registry.Bind(e.Name, e.Interface, min(e.Version, 4), comp); err == nil {
			b.compositor = comp
		}
	case wlhelpers.ShmInterfaceName:
		if b.shm != nil {
			return
		}
		shm := client.NewShm(b.ctx)
		if err := registry.Bind(e.Name, e.Interface, min(e.Version, 1), shm); err == nil {
			b.shm = shm
		}
	case wlhelpers.OutputInterfaceName:
		b.bindOutput(registry, e)
	case wlr_screencopy.ZwlrScreencopyManagerV1InterfaceName:
		if b.screencopy != nil {
			return
		}
		sc := wlr_screencopy.NewZwlrScreencopyManagerV1(b.ctx)
		version := min(e.Version, 3)
		if err := registry.Bind(e.Name, e.Interface, version, sc); err == nil {
			b.screencopy = sc
			b.screencopyVersion = version
			log.Debug("bound screencopy manager", "version", version)
		}
	case xdg_output.ZxdgOutputManagerV1InterfaceName:
		if b.xdgOutputManager != nil {
			return
		}
		mgr := xdg_output.NewZxdgOutputManagerV1(b.ctx)
		if err := registry.Bind(e.Name, e.Interface, min(e.Version, 3), mgr); err != nil {
			return
		}
		b.xdgOutputManager = mgr

		b.outputsMu.Lock()
		pending := make([]*WaylandOutput, 0, len(b.outputsMap))
		for _, o := range b.outputsMap {
			pending = append(pending, o)
		}
		b.outputsMu.Unlock()
		for _, o := range pending {
			b.attachXdgOutput(o)
		}
	}
}

func (b *waylandBackend) bindOutput(registry *client.Registry, e client.RegistryGlobalEvent) {
	output := client.NewOutput(b.ctx)
	version := min(e.Version, 4)
	if err := registry.Bind(e.Name, e.Interface, version, output); err != nil {
		log.Warn("failed to bind output", "global", e.Name, "err", err)
		return
	}

	o := &WaylandOutput{
		OutputInfo: OutputInfo{
			Name:  placeholderName(e.Name),
			Scale: 1,
		},
		globalName: e.Name,
		version:    version,
		wlOutput:   output,
	}

	b.outputsMu.Lock()
	b.outputsMap[e.Name] = o
	b.outputsMu.Unlock()

	b.setupOutputHandlers(o)
	b.attachXdgOutput(o)
}

func (b *waylandBackend) setupOutputHandlers(o *WaylandOutput) {
	output := o.wlOutput
	output.SetGeometryHandler(func(e client.OutputGeometryEvent) {
		b.outputsMu.Lock()
		o.X, o.Y = e.X, e.Y
		o.Transform = Transform(e.Transform)
		o.vendor, o.model = e.Make, e.Model
		b.outputsMu.Unlock()
	})
	output.SetModeHandler(func(e client.OutputModeEvent) {
		if e.Flags&uint32(client.OutputModeCurrent) == 0 {
			return
		}
		b.outputsMu.Lock()
		o.Width, o.Height = e.Width, e.Height
		b.outputsMu.Unlock()
	})
	output.SetScaleHandler(func(e client.OutputScaleEvent) {
		b.outputsMu.Lock()
		o.Scale = max(e.Factor, 1)
		b.outputsMu.Unlock()
	})
	output.SetNameHandler(func(e client.OutputNameEvent) {
		b.outputsMu.Lock()
		o.Name = e.Name
		b.outputsMu.Unlock()
	})
	output.SetDescriptionHandler(func(e client.OutputDescriptionEvent) {
		b.outputsMu.Lock()
		o.Description = e.Description
		b.outputsMu.Unlock()
	})
}

func (b *waylandBackend) attachXdgOutput(o *WaylandOutput) {
	if b.xdgOutputManager == nil || o.xdgOutput != nil {
		return
	}

	xo, err := b.xdgOutputManager.GetXdgOutput(o.wlOutput)
	if err != nil {
		log.Warn("failed to create xdg-output", "output", o.Name, "err", err)
		return
	}
	o.xdgOutput = xo

	xo.SetLogicalPositionHandler(func(e xdg_output.ZxdgOutputV1LogicalPositionEvent) {
		b.outputsMu.Lock()
		o.LogicalX, o.LogicalY = e.X, e.Y
		b.outputsMu.Unlock()
	})
	xo.SetLogicalSizeHandler(func(e xdg_output.ZxdgOutputV1LogicalSizeEvent) {
		b.outputsMu.Lock()
		o.LogicalWidth, o.LogicalHeight = e.Width, e.Height
		o.LogicalScaleKnown = true
		b.outputsMu.Unlock()
	})
	xo.SetNameHandler(func(e xdg_output.ZxdgOutputV1NameEvent) {
		b.outputsMu.Lock()
		if o.hasPlaceholderName() {
			o.Name = e.Name
		}
		b.outputsMu.Unlock()
	})
	xo.SetDescriptionHandler(func(e xdg_output.ZxdgOutputV1DescriptionEvent) {
		b.outputsMu.Lock()
		if o.Description == "" {
			o.Description = e.Description
		}
		b.outputsMu.Unlock()
	})
}

func (b *waylandBackend) releaseOutput(o *WaylandOutput) {
	if o.xdgOutput != nil {
		o.xdgOutput.SetLogicalPositionHandler(nil)
		o.xdgOutput.SetLogicalSizeHandler(nil)
		o.xdgOutput.SetNameHandler(nil)
		o.xdgOutput.SetDescriptionHandler(nil)
		if err := o.xdgOutput.Destroy(); err != nil {
			log.Debug("failed to destroy xdg-output", "output", o.Name, "err", err)
		}
		o.xdgOutput = nil
	}

	o.wlOutput.SetGeometryHandler(nil)
	o.wlOutput.SetModeHandler(nil)
	o.wlOutput.SetScaleHandler(nil)
	o.wlOutput.SetNameHandler(nil)
	o.wlOutput.SetDescriptionHandler(nil)
	if o.version >= 3 {
		if err := o.wlOutput.Release(); err != nil {
			log.Debug("failed to release wl_output", "output", o.Name, "err", err)
		}
	}
}

// refreshOutputs drops every tracked output and rediscovers them from a new
// registry listing.
func (b *waylandBackend) refreshOutputs() error {
	b.outputsMu.Lock()
	old := b.outputsMap
	b.outputsMap = make(map[uint32]*WaylandOutput)
	b.outputsMu.Unlock()

	for _, o := range old {
		b.releaseOutput(o)
	}

	if err := b.setupRegistry(); err != nil {
		return fmt.Errorf("registry setup: %w", err)
	}
	for i := 0; i < 1+outputSettleRoundtrips; i++ {
		if err := b.roundtrip(); err != nil {
			return fmt.Errorf("%w: roundtrip: %w", errdefs.ErrConnection, err)
		}
	}

	b.outputsMu.Lock()
	defer b.outputsMu.Unlock()

	if len(b.outputsMap) == 0 {
		return errdefs.ErrNoOutputs
	}
	for _, o := range b.outputsMap {
		if !o.LogicalScaleKnown {
			o.deriveLogical()
		}
		if o.Description == "" && (o.vendor != "" || o.model != "") {
			o.Description = strings.TrimSpace(o.vendor + " " + o.model)
		}
		log.Debug("output discovered", "name", o.Name,
			"physical", o.PhysicalBox().String(), "logical", o.LogicalBox().String(),
			"scale", o.Scale, "transform", o.Transform)
	}
	return nil
}

// outputs returns copies of the tracked outputs ordered by logical position.
func (b *waylandBackend) outputs() []*WaylandOutput {
	b.outputsMu.Lock()
	defer b.outputsMu.Unlock()

	out := make([]*WaylandOutput, 0, len(b.outputsMap))
	for _, o := range b.outputsMap {
		cp := *o
		out = append(out, &cp)
	}
	sortOutputs(out)
	return out
}

func sortOutputs(outputs []*WaylandOutput) {
	sort.SliceStable(outputs, func(i, j int) bool {
		a, b := outputs[i], outputs[j]
		if a.LogicalY != b.LogicalY {
			return a.LogicalY < b.LogicalY
		}
		if a.LogicalX != b.LogicalX {
			return a.LogicalX < b.LogicalX
		}
		return a.Name < b.Name
	})
}

func (b *waylandBackend) close() {
	b.outputsMu.Lock()
	old := b.outputsMap
	b.outputsMap = nil
	b.outputsMu.Unlock()
	for _, o := range old {
		b.releaseOutput(o)
	}

	if b.xdgOutputManager != nil {
		b.xdgOutputManager.Destroy()
	}
	if b.screencopy != nil {
		b.screencopy.Destroy()
	}
	if b.display != nil {
		b.ctx.Close()
	}
}
