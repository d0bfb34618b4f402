// Command interpolate raises the frame rate of a local video file by
// synthesizing frames between every adjacent pair.
//
//	interpolate -in clip.mp4 -passes 2 -strategy deep -model convnet.msgpack
//	interpolate -in clip.mp4 -list-rates
//	interpolate -in clip.mp4 -compare -out out/clip.mp4
//	interpolate -in clip.mp4 -pair 12 -out frames/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fiapx/fiapx-interpolation-service/internal/infra/config"
	"github.com/fiapx/fiapx-interpolation-service/pkg/logger"
)

type options struct {
	preset config.Preset

	in        string
	out       string
	listRates bool
	maxFPS    float64
	compare   bool
	pair      int
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "interpolate:", err)
		os.Exit(2)
	}

	log, err := logger.New(opts.preset.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "interpolate:", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(ctx, opts, os.Stdout, log); err != nil {
		log.Error("interpolation failed", errField(err)...)
		log.Sync()
		os.Exit(1)
	}
}

// parseOptions reads flags over the optional -config preset. Only flags that
// were given explicitly override preset values.
func parseOptions(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("interpolate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		presetPath = fs.String("config", "", "YAML preset file")
		in         = fs.String("in", "", "input video file (required)")
		out        = fs.String("out", "", "output file, or directory with -pair (default <in>_interpolated.mp4)")
		passes     = fs.Int("passes", 0, "number of doubling passes")
		strategy   = fs.String("strategy", "", "interpolation strategy: naive or deep")
		model      = fs.String("model", "", "convnet weights file for the deep strategy")
		audio      = fs.String("audio", "", "audio policy: keep, shortest, stretch or drop")
		fallback   = fs.Bool("fallback", true, "use the naive strategy when the deep model is unavailable")
		workers    = fs.Int("workers", 0, "concurrent pairs per pass (0 = GOMAXPROCS)")
		logLevel   = fs.String("log-level", "", "log level: debug, info, warn or error")
		listRates  = fs.Bool("list-rates", false, "print the output rates reachable from the input and exit")
		maxFPS     = fs.Float64("max-fps", 0, "upper bound for -list-rates (default 240)")
		compare    = fs.Bool("compare", false, "write naive_ and deep_ outputs side by side")
		pair       = fs.Int("pair", -1, "write the synthesized midpoint of frames i and i+1 as PNG per strategy")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	preset := config.DefaultPreset()
	if *presetPath != "" {
		p, err := config.LoadPreset(*presetPath)
		if err != nil {
			return nil, err
		}
		preset = *p
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "passes":
			preset.Passes = *passes
		case "strategy":
			preset.Strategy = *strategy
		case "model":
			preset.Model.WeightsPath = *model
		case "audio":
			preset.AudioPolicy = *audio
		case "fallback":
			preset.Fallback = fallback
		case "workers":
			preset.PairWorkers = *workers
		case "log-level":
			preset.LogLevel = *logLevel
		}
	})

	opts := &options{
		preset:    preset,
		in:        *in,
		out:       *out,
		listRates: *listRates,
		maxFPS:    *maxFPS,
		compare:   *compare,
		pair:      *pair,
	}
	return opts, opts.validate()
}

func (o *options) validate() error {
	if o.in == "" {
		return errors.New("-in is required")
	}
	if o.compare && o.pair >= 0 {
		return errors.New("-compare and -pair are mutually exclusive")
	}
	if o.preset.Passes < 0 || o.preset.Passes > o.preset.MaxPasses {
		return fmt.Errorf("-passes must be in [0, %d], got %d", o.preset.MaxPasses, o.preset.Passes)
	}
	if o.out == "" {
		if o.pair >= 0 {
			o.out = "."
		} else {
			o.out = defaultOutput(o.in)
		}
	}
	return nil
}

func defaultOutput(in string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + "_interpolated.mp4"
}

// comparePath prefixes the file name of out with the strategy kind.
func comparePath(out, kind string) string {
	dir, base := filepath.Split(out)
	return filepath.Join(dir, kind+"_"+base)
}
