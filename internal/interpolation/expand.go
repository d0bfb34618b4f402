// Package interpolation grows a frame sequence by synthesizing a frame
// between every adjacent pair, one pass at a time.
//
// A pass over L frames yields 2L-1 frames: originals keep their order on the
// even positions and each odd position holds the frame synthesized from its
// two neighbours. Passes run strictly one after another; pairs within a pass
// are independent and run concurrently.
package interpolation

import (
	"context"
	"fmt"
	"runtime"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
)

type Config struct {
	// Workers bounds concurrent Interpolate calls within a pass. Zero means GOMAXPROCS.
	Workers int
	// MaxPasses is a caller safety limit. Zero disables it.
	MaxPasses int
}

type Interpolator struct {
	strategy  port.Strategy
	workers   int
	maxPasses int
}

func NewInterpolator(strategy port.Strategy, cfg Config) *Interpolator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Interpolator{strategy: strategy, workers: workers, maxPasses: cfg.MaxPasses}
}

func (in *Interpolator) Strategy() port.Strategy {
	return in.strategy
}

// Expand applies the strategy once across seq. Sequences shorter than two
// frames are returned unchanged. Synthesized frames are not resized.
func (in *Interpolator) Expand(ctx context.Context, seq entity.Sequence) (entity.Sequence, error) {
	return in.expand(ctx, seq, 1)
}

func (in *Interpolator) expand(ctx context.Context, seq entity.Sequence, pass int) (entity.Sequence, error) {
	n := seq.Len()
	if n < 2 {
		return seq, nil
	}

	out := make([]*entity.Frame, 2*n-1)
	for i, f := range seq.Frames {
		out[2*i] = f
	}

	pair, err := forEach(ctx, n-1, in.workers, func(i int) error {
		mid, err := in.strategy.Interpolate(seq.Frames[i], seq.Frames[i+1])
		if err != nil {
			return err
		}
		if !mid.Valid() {
			return fmt.Errorf("%w: strategy returned an unusable frame", ErrResolutionMismatch)
		}
		out[2*i+1] = mid
		return nil
	})
	if err != nil {
		if pair < 0 {
			return entity.Sequence{}, fmt.Errorf("pass %d: %w", pass, err)
		}
		return entity.Sequence{}, &PairError{Pass: pass, Pair: pair, Strategy: in.strategy.Kind(), Err: err}
	}

	return entity.Sequence{Frames: out, Resolution: seq.Resolution}, nil
}
