// Package convnet implements the model-based interpolation strategy: a small
// convolutional network fed both frames stacked channel-wise at a fixed
// working resolution.
//
// Output frames stay at the working resolution. Resizing them back to the
// sequence resolution is the pipeline's job.
package convnet

import (
	"fmt"
	"sync"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
	"github.com/fiapx/fiapx-interpolation-service/internal/imaging"
)

var DefaultWorkingResolution = entity.Resolution{Width: 512, Height: 512}

type Config struct {
	WeightsPath       string
	WorkingResolution entity.Resolution
}

type Strategy struct {
	weightsPath string
	working     entity.Resolution

	mu      sync.RWMutex
	weights *Weights
	loadErr error
}

// New returns an unloaded strategy; Ready fails until Load succeeds.
func New(cfg Config) *Strategy {
	working := cfg.WorkingResolution
	if !working.Valid() {
		working = DefaultWorkingResolution
	}
	return &Strategy{
		weightsPath: cfg.WeightsPath,
		working:     working,
		loadErr:     fmt.Errorf("%w: model not loaded", port.ErrStrategyUnavailable),
	}
}

// NewFromWeights returns a ready strategy around already-decoded weights.
func NewFromWeights(w *Weights, working entity.Resolution) (*Strategy, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrStrategyUnavailable, err)
	}
	s := New(Config{WorkingResolution: working})
	s.weights, s.loadErr = w, nil
	return s, nil
}

// Load reads the weight file. Failure leaves the strategy unavailable and
// is also returned.
func (s *Strategy) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.weightsPath == "" {
		s.loadErr = fmt.Errorf("%w: no weights path configured", port.ErrStrategyUnavailable)
		return s.loadErr
	}
	w, err := LoadWeights(s.weightsPath)
	if err != nil {
		s.weights = nil
		s.loadErr = fmt.Errorf("%w: %v", port.ErrStrategyUnavailable, err)
		return s.loadErr
	}
	s.weights, s.loadErr = w, nil
	return nil
}

func (s *Strategy) Kind() entity.StrategyKind {
	return entity.StrategyDeep
}

func (s *Strategy) Ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

func (s *Strategy) WorkingResolution() entity.Resolution {
	return s.working
}

func (s *Strategy) Interpolate(a, b *entity.Frame) (*entity.Frame, error) {
	s.mu.RLock()
	w, loadErr := s.weights, s.loadErr
	s.mu.RUnlock()
	if loadErr != nil {
		return nil, loadErr
	}

	ra, err := imaging.Resize(a, s.working)
	if err != nil {
		return nil, fmt.Errorf("resize first frame: %w", err)
	}
	rb, err := imaging.Resize(b, s.working)
	if err != nil {
		return nil, fmt.Errorf("resize second frame: %w", err)
	}

	h, wd := s.working.Height, s.working.Width
	x := stack(ra, rb)
	for _, l := range w.Layers {
		x = l.apply(x, h, wd)
	}
	return toFrame(x, wd, h), nil
}

// stack lays out a and b as six planar channels scaled to [0,1].
func stack(a, b *entity.Frame) []float32 {
	n := a.Width * a.Height
	out := make([]float32, 6*n)
	for i := 0; i < n; i++ {
		for c := 0; c < entity.Channels; c++ {
			out[c*n+i] = float32(a.Pix[i*3+c]) / 255
			out[(c+3)*n+i] = float32(b.Pix[i*3+c]) / 255
		}
	}
	return out
}

func toFrame(x []float32, width, height int) *entity.Frame {
	n := width * height
	f := entity.NewFrame(width, height)
	for i := 0; i < n; i++ {
		for c := 0; c < entity.Channels; c++ {
			v := x[c*n+i]
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			f.Pix[i*3+c] = uint8(v*255 + 0.5)
		}
	}
	return f
}

func (l *Layer) apply(in []float32, h, w int) []float32 {
	n := h * w
	k, pad := l.Kernel, l.Kernel/2
	out := make([]float32, l.Out*n)

	for o := 0; o < l.Out; o++ {
		plane := out[o*n : (o+1)*n]
		for i := range plane {
			plane[i] = l.Bias[o]
		}
		for c := 0; c < l.In; c++ {
			src := in[c*n : (c+1)*n]
			for ky := 0; ky < k; ky++ {
				dy := ky - pad
				y0, y1 := max(0, -dy), min(h, h-dy)
				for kx := 0; kx < k; kx++ {
					wt := l.Weights[((o*l.In+c)*k+ky)*k+kx]
					if wt == 0 {
						continue
					}
					dx := kx - pad
					x0, x1 := max(0, -dx), min(w, w-dx)
					for y := y0; y < y1; y++ {
						srow := src[(y+dy)*w : (y+dy+1)*w]
						drow := plane[y*w : (y+1)*w]
						for xx := x0; xx < x1; xx++ {
							drow[xx] += wt * srow[xx+dx]
						}
					}
				}
			}
		}
		if l.ReLU {
			for i, v := range plane {
				if v < 0 {
					plane[i] = 0
				}
			}
		}
	}
	return out
}
