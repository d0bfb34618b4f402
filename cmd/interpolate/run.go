package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
	"github.com/fiapx/fiapx-interpolation-service/internal/imaging"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/config"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-interpolation-service/internal/interpolation"
	"github.com/fiapx/fiapx-interpolation-service/internal/strategy/average"
	"github.com/fiapx/fiapx-interpolation-service/internal/strategy/convnet"
	"go.uber.org/zap"
)

func run(ctx context.Context, opts *options, stdout io.Writer, log *zap.Logger) error {
	tc, err := config.LoadToolchain()
	if err != nil {
		return err
	}

	decoder := ffmpeg.NewDecoder(ffmpeg.DecoderConfig{
		FFmpegBin:  tc.FFmpegBin,
		FFprobeBin: tc.FFprobeBin,
		MaxFrames:  opts.preset.MaxFrames,
	}, log)
	decoded, err := decoder.Decode(ctx, opts.in)
	if err != nil {
		return fmt.Errorf("decode %s: %w", opts.in, err)
	}

	if opts.listRates {
		return printRates(stdout, decoded.Probe, opts.maxFPS)
	}

	strategies := loadStrategies(opts.preset, log)

	if opts.pair >= 0 {
		return writePair(opts, decoded.Sequence, strategies, log)
	}

	assembler := ffmpeg.NewAssembler(ffmpeg.AssemblerConfig{
		FFmpegBin:  tc.FFmpegBin,
		VideoCodec: opts.preset.Encoder.VideoCodec,
		AudioCodec: opts.preset.Encoder.AudioCodec,
		CRF:        opts.preset.Encoder.CRF,
	}, log)

	if opts.compare {
		for _, kind := range []entity.StrategyKind{entity.StrategyNaive, entity.StrategyDeep} {
			s := strategies[kind]
			if err := s.Ready(); err != nil {
				log.Warn("skipping unavailable strategy", zap.String("strategy", string(kind)), zap.Error(err))
				continue
			}
			if err := interpolateTo(ctx, opts, decoded, s, assembler, comparePath(opts.out, string(kind)), log); err != nil {
				return err
			}
		}
		return nil
	}

	kind, err := entity.ParseStrategyKind(opts.preset.Strategy)
	if err != nil {
		return err
	}
	sel, err := interpolation.SelectStrategy(kind, strategies, opts.preset.AllowFallback())
	if err != nil {
		return err
	}
	if sel.Fallback {
		log.Warn("requested strategy unavailable, falling back",
			zap.String("requested", string(kind)),
			zap.String("using", string(sel.Strategy.Kind())),
			zap.Error(sel.Cause),
		)
	}
	return interpolateTo(ctx, opts, decoded, sel.Strategy, assembler, opts.out, log)
}

func loadStrategies(p config.Preset, log *zap.Logger) interpolation.Strategies {
	deep := convnet.New(convnet.Config{
		WeightsPath:       p.Model.WeightsPath,
		WorkingResolution: entity.Resolution{Width: p.Model.WorkingWidth, Height: p.Model.WorkingHeight},
	})
	if p.Model.WeightsPath != "" {
		if err := deep.Load(); err != nil {
			log.Warn("deep strategy unavailable", zap.String("weights", p.Model.WeightsPath), zap.Error(err))
		}
	}
	return interpolation.Strategies{
		entity.StrategyNaive: average.New(),
		entity.StrategyDeep:  deep,
	}
}

func interpolateTo(
	ctx context.Context,
	opts *options,
	decoded *port.DecodedVideo,
	s port.Strategy,
	assembler port.SequenceAssembler,
	outPath string,
	log *zap.Logger,
) error {
	policy, err := entity.ParseAudioPolicy(opts.preset.AudioPolicy)
	if err != nil {
		return err
	}

	in := interpolation.NewInterpolator(s, interpolation.Config{
		Workers:   opts.preset.PairWorkers,
		MaxPasses: opts.preset.MaxPasses,
	})
	result, err := in.Run(ctx, decoded.Sequence, decoded.Probe.FPS, opts.preset.Passes)
	if err != nil {
		return err
	}
	if result.Skipped != nil {
		log.Warn("input too short to interpolate, writing it unchanged", zap.Error(result.Skipped))
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	req := port.AssembleRequest{
		Sequence:   result.Sequence,
		FPS:        result.OutputFPS,
		Policy:     policy,
		OutputPath: outPath,
	}
	if decoded.Probe.HasAudio {
		req.Audio = &port.AudioTrack{SourcePath: opts.in, Duration: decoded.Probe.AudioDuration}
	}
	if err := assembler.Assemble(ctx, req); err != nil {
		return err
	}

	log.Info("interpolated video written",
		zap.String("output", outPath),
		zap.String("strategy", string(s.Kind())),
		zap.Int("passes", result.PassesApplied),
		zap.Int("source_frames", decoded.Sequence.Len()),
		zap.Int("output_frames", result.Sequence.Len()),
		zap.Float64("source_fps", result.SourceFPS),
		zap.Float64("output_fps", result.OutputFPS),
	)
	return nil
}

// writePair writes the midpoint of frames i and i+1 for every ready strategy,
// resized to the source resolution.
func writePair(opts *options, seq entity.Sequence, strategies interpolation.Strategies, log *zap.Logger) error {
	i := opts.pair
	if i > seq.Len()-2 {
		return fmt.Errorf("-pair %d out of range: the input has %d frames", i, seq.Len())
	}
	if err := os.MkdirAll(opts.out, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, kind := range []entity.StrategyKind{entity.StrategyNaive, entity.StrategyDeep} {
		s := strategies[kind]
		if err := s.Ready(); err != nil {
			log.Warn("skipping unavailable strategy", zap.String("strategy", string(kind)), zap.Error(err))
			continue
		}
		mid, err := s.Interpolate(seq.Frames[i], seq.Frames[i+1])
		if err != nil {
			return &interpolation.PairError{Pass: 1, Pair: i, Strategy: kind, Err: err}
		}
		mid, err = imaging.Resize(mid, seq.Resolution)
		if err != nil {
			return err
		}
		path := filepath.Join(opts.out, fmt.Sprintf("pair_%d_%s.png", i, kind))
		if err := imaging.WritePNG(path, mid); err != nil {
			return err
		}
		log.Info("midpoint written", zap.String("strategy", string(kind)), zap.String("path", path))
	}
	return nil
}

func printRates(w io.Writer, probe port.VideoProbe, maxFPS float64) error {
	opts := entity.RateOptions(probe.FrameCount, probe.Duration, maxFPS)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "source\t%d frames\t%.3f fps\t%.3fs\n", probe.FrameCount, probe.FPS, probe.Duration)
	fmt.Fprintln(tw, "passes\tframes\tfps")
	for _, o := range opts {
		fmt.Fprintf(tw, "%d\t%d\t%d\n", o.Passes, o.Frames, o.FPS)
	}
	return tw.Flush()
}

func errField(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	if pass := interpolation.FailedPass(err); pass > 0 {
		fields = append(fields, zap.Int("failed_pass", pass))
	}
	return fields
}
