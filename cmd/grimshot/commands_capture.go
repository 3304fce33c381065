package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/timdodge/grimshot/internal/config"
	"github.com/timdodge/grimshot/internal/encode"
	"github.com/timdodge/grimshot/internal/log"
	"github.com/timdodge/grimshot/internal/metrics"
	"github.com/timdodge/grimshot/internal/notify"
	"github.com/timdodge/grimshot/internal/screenshot"
)

var (
	capScale       float64
	capGeometry    string
	capType        string
	capQuality     int
	capLevel       int
	capOutputName  string
	capCursor      bool
	capNotify      bool
	capMetricsFile string
	capMaxAttempts int
)

func init() {
	f := rootCmd.Flags()
	f.Float64VarP(&capScale, "scale", "s", 1.0, "Output image scale factor")
	f.StringVarP(&capGeometry, "geometry", "g", "", "Region to capture as \"x,y wxh\" ('-' reads it from stdin)")
	f.StringVarP(&capType, "type", "t", "png", "Output filetype (png, ppm, jpeg)")
	f.IntVarP(&capQuality, "quality", "q", 80, "JPEG quality (0-100)")
	f.IntVarP(&capLevel, "level", "l", 6, "PNG compression level (0-9)")
	f.StringVarP(&capOutputName, "output", "o", "", "Output name to capture")
	f.BoolVarP(&capCursor, "cursor", "c", false, "Include cursors in the screenshot")
	f.BoolVar(&capNotify, "notify", false, "Show a desktop notification when done")
	f.StringVar(&capMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	f.IntVar(&capMaxAttempts, "max-attempts", 0, "Round-trips to wait for each frame phase")
}

func runCapture(cmd *cobra.Command, args []string) {
	if err := capture(cmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// applyFlags lets explicitly set flags win over the config file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("type") {
		cfg.Format = capType
	}
	if f.Changed("quality") {
		cfg.JPEGQuality = capQuality
	}
	if f.Changed("level") {
		cfg.PNGLevel = capLevel
	}
	if f.Changed("scale") {
		cfg.Scale = capScale
	}
	if f.Changed("cursor") {
		cfg.Cursor = capCursor
	}
	if f.Changed("notify") {
		cfg.Notify = capNotify
	}
	if f.Changed("metrics-file") {
		cfg.MetricsFile = capMetricsFile
	}
	if f.Changed("max-attempts") {
		cfg.MaxAttempts = capMaxAttempts
	}
	return cfg.Validate()
}

func capture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if logLevel == "" && cfg.LogLevel != "" {
		if err := log.SetLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	opts, err := cfg.EncodeOptions()
	if err != nil {
		return err
	}

	var region *screenshot.Region
	if capGeometry != "" {
		r, err := readGeometry(capGeometry, os.Stdin)
		if err != nil {
			return err
		}
		region = &r
	}

	scConfig := screenshot.DefaultConfig()
	scConfig.Cursor = cfg.Cursor
	scConfig.MaxAttempts = cfg.MaxAttempts
	var recorder *metrics.Recorder
	if cfg.MetricsFile != "" {
		recorder = metrics.NewRecorder()
		scConfig.Observer = recorder
	}

	sc := screenshot.New(scConfig)
	if err := sc.Connect(); err != nil {
		return err
	}
	defer sc.Close()

	plan := planCapture(capOutputName, region, cfg.Cursor, cfg.Scale)
	log.Debug("capturing", "mode", plan.mode, "output", plan.output, "geometry", capGeometry, "scale", plan.scale)
	result, err := plan.run(sc)

	if recorder != nil {
		if werr := recorder.WriteTextfile(cfg.MetricsFile); werr != nil {
			log.Warn("failed to export metrics", "err", werr)
		}
	}
	if err != nil {
		return err
	}

	dest := outputPath(args, cfg, opts.Format, time.Now())
	if dest == "-" {
		if err := encode.WriteStdout(result, opts); err != nil {
			return fmt.Errorf("writing to stdout: %w", err)
		}
	} else if err := encode.WriteFile(dest, result, opts); err != nil {
		return err
	}

	if cfg.Notify {
		r := notify.Result{Image: result}
		if dest != "-" {
			r.FilePath = dest
		}
		if err := notify.Send(r); err != nil {
			log.Warn("notification failed", "err", err)
		}
	}
	return nil
}

// readGeometry parses arg, or the first line of stdin when arg is "-".
func readGeometry(arg string, stdin io.Reader) (screenshot.Region, error) {
	if arg != "-" {
		return screenshot.ParseRegion(arg)
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return screenshot.Region{}, fmt.Errorf("failed to read geometry from stdin: %w", err)
	}
	return screenshot.ParseRegion(strings.TrimSpace(line))
}

func outputPath(args []string, cfg *config.Config, format encode.Format, now time.Time) string {
	if len(args) > 0 {
		return args[0]
	}
	return filepath.Join(cfg.ResolveOutputDir(), config.DefaultFilename(now, format))
}

type captureMode string

const (
	modeAll     captureMode = "all"
	modeRegion  captureMode = "region"
	modeOutput  captureMode = "output"
	modeOutputs captureMode = "outputs"
)

type capturePlan struct {
	mode   captureMode
	output string
	region *screenshot.Region
	cursor bool
	scale  float64
}

// capturer is the subset of *screenshot.Screenshoter the CLI drives.
type capturer interface {
	CaptureAllWithScale(scale float64) (*screenshot.CaptureResult, error)
	CaptureRegionWithScale(region screenshot.Region, scale float64) (*screenshot.CaptureResult, error)
	CaptureOutputWithScale(name string, scale float64) (*screenshot.CaptureResult, error)
	CaptureOutputsWithScale(params []screenshot.CaptureParameters, defaultScale float64) (*screenshot.MultiOutputCaptureResult, error)
}

// planCapture picks the engine call. A named output with a cursor or a
// region goes through the parameterised path so both apply to that output.
func planCapture(output string, region *screenshot.Region, cursor bool, scale float64) capturePlan {
	p := capturePlan{output: output, region: region, cursor: cursor, scale: scale}
	switch {
	case output != "" && (cursor || region != nil):
		p.mode = modeOutputs
	case output != "":
		p.mode = modeOutput
	case region != nil:
		p.mode = modeRegion
	default:
		p.mode = modeAll
	}
	return p
}

func (p capturePlan) run(c capturer) (*screenshot.CaptureResult, error) {
	switch p.mode {
	case modeOutputs:
		res, err := c.CaptureOutputsWithScale([]screenshot.CaptureParameters{{
			OutputName:    p.output,
			Region:        p.region,
			OverlayCursor: p.cursor,
		}}, p.scale)
		if err != nil {
			return nil, err
		}
		out, ok := res.Outputs[p.output]
		if !ok {
			return nil, fmt.Errorf("no image returned for output %s", p.output)
		}
		return out, nil
	case modeOutput:
		return c.CaptureOutputWithScale(p.output, p.scale)
	case modeRegion:
		return c.CaptureRegionWithScale(*p.region, p.scale)
	default:
		return c.CaptureAllWithScale(p.scale)
	}
}
