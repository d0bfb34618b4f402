package entity

import "fmt"

type StrategyKind string

const (
	StrategyNaive StrategyKind = "naive"
	StrategyDeep  StrategyKind = "deep"
)

func ParseStrategyKind(s string) (StrategyKind, error) {
	switch k := StrategyKind(s); k {
	case StrategyNaive, StrategyDeep:
		return k, nil
	case "":
		return StrategyNaive, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// AudioPolicy decides how the source audio track is attached to the
// interpolated video, whose duration generally differs from the source clip.
type AudioPolicy string

const (
	// AudioKeep attaches the original track un-stretched.
	AudioKeep AudioPolicy = "keep"
	// AudioShortest attaches the track and cuts the output to the shorter stream.
	AudioShortest AudioPolicy = "shortest"
	// AudioStretch time-stretches the track to the video duration.
	AudioStretch AudioPolicy = "stretch"
	AudioDrop    AudioPolicy = "drop"
)

func ParseAudioPolicy(s string) (AudioPolicy, error) {
	switch p := AudioPolicy(s); p {
	case AudioKeep, AudioShortest, AudioStretch, AudioDrop:
		return p, nil
	case "":
		return AudioKeep, nil
	}
	return "", fmt.Errorf("unknown audio policy %q", s)
}
