package convnet

import (
	"errors"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

const WeightsVersion = 1

// Layer is a stride-1, zero-padded square convolution. Weights are laid out
// [Out][In][Kernel][Kernel].
type Layer struct {
	In      int       `msgpack:"in"`
	Out     int       `msgpack:"out"`
	Kernel  int       `msgpack:"kernel"`
	Weights []float32 `msgpack:"weights"`
	Bias    []float32 `msgpack:"bias"`
	ReLU    bool      `msgpack:"relu"`
}

type Weights struct {
	Version int     `msgpack:"version"`
	Layers  []Layer `msgpack:"layers"`
}

func (w *Weights) Validate() error {
	if w.Version != WeightsVersion {
		return fmt.Errorf("unsupported weights version %d", w.Version)
	}
	if len(w.Layers) == 0 {
		return errors.New("no layers")
	}
	if w.Layers[0].In != 6 {
		return fmt.Errorf("first layer takes %d channels, want 6", w.Layers[0].In)
	}
	if last := w.Layers[len(w.Layers)-1]; last.Out != 3 {
		return fmt.Errorf("last layer emits %d channels, want 3", last.Out)
	}
	for i, l := range w.Layers {
		if i > 0 && l.In != w.Layers[i-1].Out {
			return fmt.Errorf("layer %d takes %d channels, previous emits %d", i, l.In, w.Layers[i-1].Out)
		}
		if l.Kernel <= 0 || l.Kernel%2 == 0 {
			return fmt.Errorf("layer %d: kernel %d must be odd and positive", i, l.Kernel)
		}
		if want := l.Out * l.In * l.Kernel * l.Kernel; len(l.Weights) != want {
			return fmt.Errorf("layer %d: %d weights, want %d", i, len(l.Weights), want)
		}
		if len(l.Bias) != l.Out {
			return fmt.Errorf("layer %d: %d biases, want %d", i, len(l.Bias), l.Out)
		}
	}
	return nil
}

func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var w Weights
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights %s: %w", path, err)
	}
	return &w, nil
}

func SaveWeights(path string, w *Weights) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}
	data, err := msgpack.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
