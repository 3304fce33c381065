// Package metrics records capture outcomes with Prometheus collectors and
// exports them for the node-exporter textfile collector.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/timdodge/grimshot/internal/errdefs"
)

// Recorder implements screenshot.Observer.
type Recorder struct {
	registry *prometheus.Registry

	captures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	pollAttempts *prometheus.HistogramVec
	outputs      prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grimshot_captures_total",
			Help: "Captures by mode and result",
		}, []string{"mode", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grimshot_capture_duration_seconds",
			Help:    "Wall time of a capture including output discovery",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"mode"}),
		pollAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grimshot_poll_attempts",
			Help:    "Round-trips spent waiting on screencopy frames",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}, []string{"phase"}),
		outputs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grimshot_outputs",
			Help: "Outputs involved in the last capture",
		}),
	}
	r.registry.MustRegister(r.captures, r.duration, r.pollAttempts, r.outputs)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveCapture(mode string, outputs int, elapsed time.Duration, err error) {
	r.captures.WithLabelValues(mode, Result(err)).Inc()
	r.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
	r.outputs.Set(float64(outputs))
}

func (r *Recorder) ObservePoll(phase string, attempts int, err error) {
	r.pollAttempts.WithLabelValues(phase).Observe(float64(attempts))
}

// Result maps a capture error onto a small label set.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errdefs.ErrFrameTimeout):
		return "timeout"
	case errors.Is(err, errdefs.ErrOutputNotFound),
		errors.Is(err, errdefs.ErrInvalidRegion),
		errors.Is(err, errdefs.ErrInvalidGeometry),
		errors.Is(err, errdefs.ErrInvalidParameters):
		return "invalid"
	case errors.Is(err, errdefs.ErrConnection),
		errors.Is(err, errdefs.ErrUnsupportedProtocol),
		errors.Is(err, errdefs.ErrNoOutputs):
		return "unavailable"
	default:
		return "error"
	}
}

// WriteTextfile writes every collected metric to path in the text format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
