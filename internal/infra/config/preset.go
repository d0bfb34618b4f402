package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset holds CLI run settings read from a YAML file. Flags given on the
// command line take precedence over preset values.
type Preset struct {
	Passes      int    `yaml:"passes"`
	Strategy    string `yaml:"strategy"`    // naive, deep
	AudioPolicy string `yaml:"audio_policy"` // keep, shortest, stretch, drop
	Fallback    *bool  `yaml:"fallback,omitempty"`
	PairWorkers int    `yaml:"pair_workers"`
	MaxPasses   int    `yaml:"max_passes"`
	MaxFrames   int    `yaml:"max_frames"`
	LogLevel    string `yaml:"log_level"`

	Model   ModelPreset   `yaml:"model"`
	Encoder EncoderPreset `yaml:"encoder"`
}

type ModelPreset struct {
	WeightsPath   string `yaml:"weights_path"`
	WorkingWidth  int    `yaml:"working_width"`
	WorkingHeight int    `yaml:"working_height"`
}

type EncoderPreset struct {
	VideoCodec string `yaml:"video_codec"`
	AudioCodec string `yaml:"audio_codec"`
	CRF        int    `yaml:"crf"`
}

// DefaultPreset mirrors the worker defaults.
func DefaultPreset() Preset {
	fallback := true
	return Preset{
		Passes:      1,
		Strategy:    "naive",
		AudioPolicy: "keep",
		Fallback:    &fallback,
		PairWorkers: 4,
		MaxPasses:   5,
		LogLevel:    "info",
		Model: ModelPreset{
			WorkingWidth:  512,
			WorkingHeight: 512,
		},
		Encoder: EncoderPreset{
			VideoCodec: "libx264",
			AudioCodec: "aac",
			CRF:        18,
		},
	}
}

// LoadPreset overlays the YAML file at path onto DefaultPreset.
func LoadPreset(path string) (*Preset, error) {
	p := DefaultPreset()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preset %s: %w", path, err)
	}
	return &p, nil
}

func (p *Preset) Validate() error {
	if p.MaxPasses < 1 {
		return fmt.Errorf("max_passes must be >= 1, got %d", p.MaxPasses)
	}
	if p.Passes < 1 || p.Passes > p.MaxPasses {
		return fmt.Errorf("passes must be in [1, %d], got %d", p.MaxPasses, p.Passes)
	}
	return nil
}

func (p *Preset) AllowFallback() bool {
	return p.Fallback == nil || *p.Fallback
}
