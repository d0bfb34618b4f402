package port

import (
	"context"
	"errors"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
)

// ErrUnprocessableVideo marks a source that can never be decoded as given.
var ErrUnprocessableVideo = errors.New("unprocessable video")

type VideoProbe struct {
	FPS           float64
	Duration      float64
	FrameCount    int
	Resolution    entity.Resolution
	HasAudio      bool
	AudioDuration float64
}

type DecodedVideo struct {
	Probe    VideoProbe
	Sequence entity.Sequence
}

type FrameDecoder interface {
	Decode(ctx context.Context, videoPath string) (*DecodedVideo, error)
}

// AudioTrack references the audio stream of a source file.
type AudioTrack struct {
	SourcePath string
	Duration   float64
}

type AssembleRequest struct {
	Sequence   entity.Sequence
	FPS        float64
	Audio      *AudioTrack
	Policy     entity.AudioPolicy
	OutputPath string
}

// SequenceAssembler writes a playable video at OutputPath, or nothing at all.
type SequenceAssembler interface {
	Assemble(ctx context.Context, req AssembleRequest) error
}
