package interpolation

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
	"github.com/fiapx/fiapx-interpolation-service/internal/imaging"
)

type Result struct {
	Sequence      entity.Sequence
	SourceFPS     float64
	OutputFPS     float64
	PassesApplied int
	Synthesized   int
	// Skipped is ErrInputTooShort when the seed could not be expanded.
	Skipped error
}

// Run applies passes expansions in sequence and then resizes every frame
// back to the seed resolution. Strategy readiness is checked before any pair
// is touched.
func (in *Interpolator) Run(ctx context.Context, seq entity.Sequence, fpsIn float64, passes int) (*Result, error) {
	if passes < 0 || (in.maxPasses > 0 && passes > in.maxPasses) {
		return nil, fmt.Errorf("%w: %d (limit %d)", ErrInvalidPasses, passes, in.maxPasses)
	}
	if err := in.strategy.Ready(); err != nil {
		if !errors.Is(err, port.ErrStrategyUnavailable) {
			err = fmt.Errorf("%w: %v", port.ErrStrategyUnavailable, err)
		}
		return nil, fmt.Errorf("%s strategy: %w", in.strategy.Kind(), err)
	}

	if seq.Len() < 2 {
		return &Result{Sequence: seq, SourceFPS: fpsIn, OutputFPS: fpsIn, Skipped: ErrInputTooShort}, nil
	}
	if !seq.Resolution.Valid() || !seq.Uniform() {
		return nil, fmt.Errorf("%w: seed frames do not share resolution %s", ErrResolutionMismatch, seq.Resolution)
	}

	cur := seq
	for p := 1; p <= passes; p++ {
		next, err := in.expand(ctx, cur, p)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	normalized, err := in.normalize(ctx, cur, seq.Resolution)
	if err != nil {
		var ne *normalizeError
		if errors.As(err, &ne) {
			pass, pair := origin(ne.index, passes)
			return nil, &PairError{Pass: pass, Pair: pair, Strategy: in.strategy.Kind(), Err: ne.err}
		}
		return nil, err
	}

	return &Result{
		Sequence:      normalized,
		SourceFPS:     fpsIn,
		OutputFPS:     entity.OutputFPS(fpsIn, passes),
		PassesApplied: passes,
		Synthesized:   normalized.Len() - seq.Len(),
	}, nil
}

type normalizeError struct {
	index int
	err   error
}

func (e *normalizeError) Error() string {
	return fmt.Sprintf("normalize frame %d: %v", e.index, e.err)
}

func (e *normalizeError) Unwrap() error {
	return e.err
}

// normalize resizes every frame off the target resolution. Frames already at
// the target are kept by reference (imaging.Resize returns them as is).
func (in *Interpolator) normalize(ctx context.Context, seq entity.Sequence, to entity.Resolution) (entity.Sequence, error) {
	out := make([]*entity.Frame, seq.Len())
	idx, err := forEach(ctx, seq.Len(), in.workers, func(i int) error {
		r, err := imaging.Resize(seq.Frames[i], to)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrResolutionMismatch, err)
		}
		out[i] = r
		return nil
	})
	if err != nil {
		if idx < 0 {
			return entity.Sequence{}, fmt.Errorf("normalize: %w", err)
		}
		return entity.Sequence{}, &normalizeError{index: idx, err: err}
	}
	return entity.Sequence{Frames: out, Resolution: to}, nil
}

// origin maps a position in the final sequence of a run with the given
// number of passes to the pass and pair that synthesized it. Seed frames
// map to pass 0.
func origin(index, passes int) (pass, pair int) {
	if index == 0 {
		return 0, 0
	}
	tz := bits.TrailingZeros(uint(index))
	if tz >= passes {
		return 0, index >> passes
	}
	return passes - tz, (index>>tz - 1) / 2
}
