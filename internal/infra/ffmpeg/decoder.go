package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
	"go.uber.org/zap"
)

var (
	ErrInvalidVideo   = fmt.Errorf("%w: invalid video", port.ErrUnprocessableVideo)
	ErrTooManyFrames  = fmt.Errorf("%w: video exceeds frame limit", port.ErrUnprocessableVideo)
	defaultFFmpegBin  = "ffmpeg"
	defaultFFprobeBin = "ffprobe"
)

type DecoderConfig struct {
	FFmpegBin  string
	FFprobeBin string
	// MaxFrames caps decoded frames to bound memory. Zero disables it.
	MaxFrames int
}

type Decoder struct {
	ffmpegBin  string
	ffprobeBin string
	maxFrames  int
	logger     *zap.Logger
}

func NewDecoder(cfg DecoderConfig, logger *zap.Logger) *Decoder {
	d := &Decoder{
		ffmpegBin:  cfg.FFmpegBin,
		ffprobeBin: cfg.FFprobeBin,
		maxFrames:  cfg.MaxFrames,
		logger:     logger,
	}
	if d.ffmpegBin == "" {
		d.ffmpegBin = defaultFFmpegBin
	}
	if d.ffprobeBin == "" {
		d.ffprobeBin = defaultFFprobeBin
	}
	return d
}

// Decode probes videoPath and reads every frame of its first video stream as RGB24.
func (d *Decoder) Decode(ctx context.Context, videoPath string) (*port.DecodedVideo, error) {
	probe, err := d.Probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	frames, err := d.readFrames(ctx, videoPath, probe.Resolution)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames decoded from %s", ErrInvalidVideo, videoPath)
	}
	probe.FrameCount = len(frames)

	d.logger.Info("frames decoded",
		zap.Int("count", len(frames)),
		zap.Float64("fps", probe.FPS),
		zap.Float64("video_duration", probe.Duration),
		zap.String("resolution", probe.Resolution.String()),
		zap.Bool("has_audio", probe.HasAudio),
	)

	return &port.DecodedVideo{Probe: *probe, Sequence: entity.NewSequence(frames)}, nil
}

func (d *Decoder) Probe(ctx context.Context, videoPath string) (*port.VideoProbe, error) {
	cmd := exec.CommandContext(ctx, d.ffprobeBin,
		"-v", "error",
		"-show_streams",
		"-show_format",
		"-of", "json",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

func (d *Decoder) readFrames(ctx context.Context, videoPath string, res entity.Resolution) ([]*entity.Frame, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegBin,
		"-v", "error",
		"-i", videoPath,
		"-map", "0:v:0",
		"-vsync", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	var frames []*entity.Frame
	var readErr error
	for {
		f := entity.NewFrame(res.Width, res.Height)
		if _, err := io.ReadFull(stdout, f.Pix); err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = fmt.Errorf("read frame %d: %w", len(frames), err)
			}
			break
		}
		frames = append(frames, f)
		if d.maxFrames > 0 && len(frames) > d.maxFrames {
			readErr = fmt.Errorf("%w: more than %d frames", ErrTooManyFrames, d.maxFrames)
			break
		}
	}
	if readErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, readErr
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, stderr.String())
	}
	return frames, nil
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(data []byte) (*port.VideoProbe, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	probe := &port.VideoProbe{}
	formatDuration := parseFloat(out.Format.Duration)
	foundVideo := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			probe.Resolution = entity.Resolution{Width: s.Width, Height: s.Height}
			probe.FPS = parseRate(s.AvgFrameRate)
			if probe.FPS <= 0 {
				probe.FPS = parseRate(s.RFrameRate)
			}
			probe.FrameCount, _ = strconv.Atoi(s.NbFrames)
			probe.Duration = parseFloat(s.Duration)
		case "audio":
			if probe.HasAudio {
				continue
			}
			probe.HasAudio = true
			probe.AudioDuration = parseFloat(s.Duration)
			if probe.AudioDuration <= 0 {
				probe.AudioDuration = formatDuration
			}
		}
	}

	if !foundVideo {
		return nil, fmt.Errorf("%w: no video stream", ErrInvalidVideo)
	}
	if probe.Duration <= 0 {
		probe.Duration = formatDuration
	}
	if !probe.Resolution.Valid() {
		return nil, fmt.Errorf("%w: resolution %s", ErrInvalidVideo, probe.Resolution)
	}
	if probe.FPS <= 0 {
		return nil, fmt.Errorf("%w: frame rate %v", ErrInvalidVideo, probe.FPS)
	}
	if probe.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration %v", ErrInvalidVideo, probe.Duration)
	}
	return probe, nil
}

// parseRate reads ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
