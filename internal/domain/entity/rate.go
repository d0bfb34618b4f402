package entity

import "math"

// DefaultMaxFPS bounds the rates offered by RateOptions.
const DefaultMaxFPS = 240.0

// OutputFPS is the display rate after the given number of doubling passes.
func OutputFPS(fpsIn float64, passes int) float64 {
	if passes <= 0 {
		return fpsIn
	}
	return fpsIn * math.Pow(2, float64(passes))
}

// FrameCountAfter is the sequence length after passes applied to length frames.
// Sequences shorter than two frames are never expanded.
func FrameCountAfter(length, passes int) int {
	if length < 2 || passes <= 0 {
		return length
	}
	return (length-1)<<passes + 1
}

type RateOption struct {
	Passes int
	Frames int
	FPS    int
}

// RateOptions lists the output rates reachable from a clip of totalFrames
// spanning durationSecs, stopping before the rate exceeds maxFPS by more
// than a 1% margin.
func RateOptions(totalFrames int, durationSecs float64, maxFPS float64) []RateOption {
	if totalFrames < 2 || durationSecs <= 0 {
		return nil
	}
	if maxFPS <= 0 {
		maxFPS = DefaultMaxFPS
	}
	limit := maxFPS * 1.01

	var opts []RateOption
	for p := 1; ; p++ {
		frames := FrameCountAfter(totalFrames, p)
		rate := float64(frames) / durationSecs
		if rate > limit {
			break
		}
		opts = append(opts, RateOption{Passes: p, Frames: frames, FPS: int(math.Round(rate))})
	}
	return opts
}
