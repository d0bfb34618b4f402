package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
	"go.uber.org/zap"
)

type AssemblerConfig struct {
	FFmpegBin  string
	VideoCodec string
	AudioCodec string
	CRF        int
}

type Assembler struct {
	cfg    AssemblerConfig
	logger *zap.Logger
}

func NewAssembler(cfg AssemblerConfig, logger *zap.Logger) *Assembler {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = defaultFFmpegBin
	}
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = "libx264"
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = "aac"
	}
	return &Assembler{cfg: cfg, logger: logger}
}

// Assemble pipes the sequence into ffmpeg and muxes the audio according to
// req.Policy. Output goes to a hidden sibling first and is renamed into place
// only on success.
func (a *Assembler) Assemble(ctx context.Context, req port.AssembleRequest) error {
	if req.Sequence.Len() == 0 {
		return errors.New("assemble: empty sequence")
	}
	if !req.Sequence.Uniform() {
		return fmt.Errorf("assemble: frames do not share resolution %s", req.Sequence.Resolution)
	}
	if req.FPS <= 0 {
		return fmt.Errorf("assemble: invalid frame rate %v", req.FPS)
	}
	if req.OutputPath == "" {
		return errors.New("assemble: empty output path")
	}

	tmpPath := partialPath(req.OutputPath)
	args := a.args(req, tmpPath)

	cmd := exec.CommandContext(ctx, a.cfg.FFmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var writeErr error
	for i, f := range req.Sequence.Frames {
		if _, err := stdin.Write(f.Pix); err != nil {
			writeErr = fmt.Errorf("write frame %d: %w", i, err)
			break
		}
	}
	stdin.Close()
	waitErr := cmd.Wait()

	if writeErr != nil || waitErr != nil {
		os.Remove(tmpPath)
		if waitErr != nil {
			return fmt.Errorf("ffmpeg error: %w, output: %s", waitErr, stderr.String())
		}
		return writeErr
	}

	if err := os.Rename(tmpPath, req.OutputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("move output into place: %w", err)
	}

	a.logger.Info("video assembled",
		zap.String("output", req.OutputPath),
		zap.Int("frames", req.Sequence.Len()),
		zap.Float64("fps", req.FPS),
		zap.Float64("video_duration", VideoDuration(req.Sequence.Len(), req.FPS)),
		zap.String("audio_policy", string(effectivePolicy(req))),
	)
	return nil
}

func (a *Assembler) args(req port.AssembleRequest, outPath string) []string {
	res := req.Sequence.Resolution
	args := []string{
		"-y", "-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", res.String(),
		"-framerate", formatFloat(req.FPS),
		"-i", "pipe:0",
	}

	policy := effectivePolicy(req)
	if policy != entity.AudioDrop {
		args = append(args, "-i", req.Audio.SourcePath, "-map", "0:v:0", "-map", "1:a:0")
	} else {
		args = append(args, "-map", "0:v:0")
	}

	// yuv420p needs even dimensions.
	if res.Width%2 != 0 || res.Height%2 != 0 {
		args = append(args, "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2")
	}
	args = append(args, "-c:v", a.cfg.VideoCodec, "-pix_fmt", "yuv420p")
	if a.cfg.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(a.cfg.CRF))
	}

	switch policy {
	case entity.AudioDrop:
		args = append(args, "-an")
	case entity.AudioShortest:
		args = append(args, "-c:a", a.cfg.AudioCodec, "-shortest")
	case entity.AudioStretch:
		tempo := req.Audio.Duration / VideoDuration(req.Sequence.Len(), req.FPS)
		args = append(args, "-filter:a", AtempoChain(tempo), "-c:a", a.cfg.AudioCodec)
	default:
		args = append(args, "-c:a", a.cfg.AudioCodec)
	}

	return append(args, outPath)
}

func effectivePolicy(req port.AssembleRequest) entity.AudioPolicy {
	if req.Audio == nil || req.Audio.SourcePath == "" || req.Policy == entity.AudioDrop {
		return entity.AudioDrop
	}
	if req.Policy == entity.AudioStretch && req.Audio.Duration <= 0 {
		return entity.AudioKeep
	}
	if req.Policy == "" {
		return entity.AudioKeep
	}
	return req.Policy
}

// VideoDuration is the displayed length of frames shown at fps.
func VideoDuration(frames int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frames) / fps
}

// AtempoChain builds an ffmpeg atempo filter for the given speed factor,
// splitting it into stages within the filter's [0.5, 2] range.
func AtempoChain(tempo float64) string {
	if tempo <= 0 {
		tempo = 1
	}
	var stages []string
	for tempo > 2 {
		stages = append(stages, "atempo=2.0")
		tempo /= 2
	}
	for tempo < 0.5 {
		stages = append(stages, "atempo=0.5")
		tempo /= 0.5
	}
	stages = append(stages, "atempo="+strconv.FormatFloat(tempo, 'f', 6, 64))
	return strings.Join(stages, ",")
}

func partialPath(out string) string {
	dir, base := filepath.Split(out)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
