package screenshot

import (
	"fmt"
	"sync"
	"time"

	"github.com/timdodge/grimshot/internal/errdefs"
	wlhelpers "github.com/timdodge/grimshot/internal/wayland/client"
)

// captureBackend is the protocol side of the engine. The Wayland
// implementation lives in outputs.go and frame.go.
type captureBackend interface {
	refreshOutputs() error
	outputs() []*WaylandOutput
	captureFrames(reqs []frameRequest) ([]*CaptureResult, error)
	close()
}

// Screenshoter owns one compositor connection. Methods are safe for
// concurrent use but run one at a time.
type Screenshoter struct {
	config   Config
	observer Observer

	mu      sync.Mutex
	backend captureBackend
}

func New(config Config) *Screenshoter {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = wlhelpers.DefaultMaxAttempts
	}
	observer := config.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Screenshoter{config: config, observer: observer}
}

func newWithBackend(config Config, backend captureBackend) *Screenshoter {
	s := New(config)
	s.backend = backend
	return s
}

// Connect binds the compositor globals. It fails with
// errdefs.ErrUnsupportedProtocol when wlr-screencopy or wl_shm is missing.
func (s *Screenshoter) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		return nil
	}
	b, err := connectWayland(s.config, s.observer)
	if err != nil {
		return err
	}
	s.backend = b
	return nil
}

func (s *Screenshoter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		s.backend.close()
		s.backend = nil
	}
}

// refreshed rediscovers outputs and returns the new snapshot. Callers hold
// s.mu.
func (s *Screenshoter) refreshed() ([]*WaylandOutput, error) {
	if s.backend == nil {
		return nil, fmt.Errorf("%w: not connected", errdefs.ErrConnection)
	}
	if err := s.backend.refreshOutputs(); err != nil {
		return nil, err
	}
	outputs := s.backend.outputs()
	if len(outputs) == 0 {
		return nil, errdefs.ErrNoOutputs
	}
	return outputs, nil
}

func (s *Screenshoter) captureFrames(reqs []frameRequest) ([]*CaptureResult, error) {
	for _, r := range reqs {
		if r.full {
			continue
		}
		if err := validateLocalRegion(r.region); err != nil {
			return nil, fmt.Errorf("output %s: %w", r.output.Name, err)
		}
	}
	return s.backend.captureFrames(reqs)
}

func (s *Screenshoter) observe(mode string, start time.Time, outputs int, err error) {
	s.observer.ObserveCapture(mode, outputs, time.Since(start), err)
}

func findOutput(outputs []*WaylandOutput, name string) (*WaylandOutput, error) {
	for _, o := range outputs {
		if o.Name == name {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errdefs.ErrOutputNotFound, name)
}

// GetOutputs rediscovers outputs and lists them by logical position.
func (s *Screenshoter) GetOutputs() ([]Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outputs, err := s.refreshed()
	if err != nil {
		return nil, err
	}

	result := make([]Output, 0, len(outputs))
	for _, o := range outputs {
		geom := o.PhysicalBox()
		if o.LogicalScaleKnown {
			geom = o.LogicalBox()
		}
		result = append(result, Output{
			Name:        o.Name,
			Description: o.Description,
			Geometry:    geom,
			Scale:       o.Scale,
			Transform:   o.Transform,
		})
	}
	return result, nil
}

// CaptureAll composites every output into one buffer covering the whole
// layout.
func (s *Screenshoter) CaptureAll() (res *CaptureResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	outputs, err := s.refreshed()
	defer func() { s.observe("all", start, len(outputs), err) }()
	if err != nil {
		return nil, err
	}

	bounds, err := layoutBounds(outputs)
	if err != nil {
		return nil, err
	}
	return s.compositeRegion(outputs, bounds, s.config.Cursor)
}

func (s *Screenshoter) CaptureAllWithScale(scale float64) (*CaptureResult, error) {
	res, err := s.CaptureAll()
	if err != nil {
		return nil, err
	}
	return Scale(res, scale)
}

// CaptureOutput captures one output at its native resolution.
func (s *Screenshoter) CaptureOutput(name string) (res *CaptureResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { s.observe("output", start, 1, err) }()

	outputs, err := s.refreshed()
	if err != nil {
		return nil, err
	}
	o, err := findOutput(outputs, name)
	if err != nil {
		return nil, err
	}

	results, err := s.captureFrames([]frameRequest{{
		output: o,
		region: Region{Width: o.Width, Height: o.Height},
		full:   true,
		cursor: s.config.Cursor,
	}})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (s *Screenshoter) CaptureOutputWithScale(name string, scale float64) (*CaptureResult, error) {
	res, err := s.CaptureOutput(name)
	if err != nil {
		return nil, err
	}
	return Scale(res, scale)
}

// CaptureRegion captures a region given in logical layout coordinates,
// stitching together every output it touches.
func (s *Screenshoter) CaptureRegion(region Region) (res *CaptureResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	outputs, err := s.refreshed()
	defer func() { s.observe("region", start, len(outputs), err) }()
	if err != nil {
		return nil, err
	}
	return s.compositeRegion(outputs, region, s.config.Cursor)
}

func (s *Screenshoter) CaptureRegionWithScale(region Region, scale float64) (*CaptureResult, error) {
	res, err := s.CaptureRegion(region)
	if err != nil {
		return nil, err
	}
	return Scale(res, scale)
}

// CaptureOutputs captures several named outputs in one batch of frames.
func (s *Screenshoter) CaptureOutputs(params []CaptureParameters) (*MultiOutputCaptureResult, error) {
	return s.CaptureOutputsWithScale(params, 1.0)
}

// CaptureOutputsWithScale is CaptureOutputs with defaultScale applied to
// every parameter that does not carry its own scale.
func (s *Screenshoter) CaptureOutputsWithScale(params []CaptureParameters, defaultScale float64) (res *MultiOutputCaptureResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { s.observe("outputs", start, len(params), err) }()

	if len(params) == 0 {
		return nil, fmt.Errorf("%w: no outputs requested", errdefs.ErrInvalidParameters)
	}

	outputs, err := s.refreshed()
	if err != nil {
		return nil, err
	}

	reqs, err := buildOutputRequests(outputs, params)
	if err != nil {
		return nil, err
	}

	results, err := s.captureFrames(reqs)
	if err != nil {
		return nil, err
	}

	res = &MultiOutputCaptureResult{Outputs: make(map[string]*CaptureResult, len(params))}
	for i, p := range params {
		factor := defaultScale
		if p.Scale != nil {
			factor = *p.Scale
		}
		scaled, err := Scale(results[i], factor)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", p.OutputName, err)
		}
		res.Outputs[p.OutputName] = scaled
	}
	return res, nil
}

func buildOutputRequests(outputs []*WaylandOutput, params []CaptureParameters) ([]frameRequest, error) {
	seen := make(map[string]bool, len(params))
	reqs := make([]frameRequest, 0, len(params))
	for _, p := range params {
		if seen[p.OutputName] {
			return nil, fmt.Errorf("%w: output %s requested twice", errdefs.ErrInvalidParameters, p.OutputName)
		}
		seen[p.OutputName] = true

		o, err := findOutput(outputs, p.OutputName)
		if err != nil {
			return nil, err
		}

		req := frameRequest{output: o, cursor: p.OverlayCursor}
		if p.Region == nil {
			req.full = true
			req.region = Region{Width: o.Width, Height: o.Height}
		} else {
			box := o.PhysicalBox()
			if !box.Contains(*p.Region) {
				return nil, fmt.Errorf("%w: %s is outside output %s (%s)", errdefs.ErrInvalidRegion, *p.Region, o.Name, box)
			}
			req.region = Region{
				X:      p.Region.X - box.X,
				Y:      p.Region.Y - box.Y,
				Width:  p.Region.Width,
				Height: p.Region.Height,
			}
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// ListOutputs opens a short-lived connection and lists the outputs.
func ListOutputs() ([]Output, error) {
	sc := New(DefaultConfig())
	if err := sc.Connect(); err != nil {
		return nil, err
	}
	defer sc.Close()
	return sc.GetOutputs()
}
