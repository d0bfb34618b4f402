// Package average implements the pixel-average interpolation strategy.
package average

import (
	"fmt"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/interpolation"
)

// Strategy emits the per-channel mean of two frames, rounding halves up.
type Strategy struct{}

func New() *Strategy {
	return &Strategy{}
}

func (s *Strategy) Kind() entity.StrategyKind {
	return entity.StrategyNaive
}

func (s *Strategy) Ready() error {
	return nil
}

func (s *Strategy) Interpolate(a, b *entity.Frame) (*entity.Frame, error) {
	if !a.Valid() || !b.Valid() {
		return nil, fmt.Errorf("%w: invalid source frame", interpolation.ErrResolutionMismatch)
	}
	if a.Resolution() != b.Resolution() {
		return nil, fmt.Errorf("%w: %s vs %s", interpolation.ErrResolutionMismatch, a.Resolution(), b.Resolution())
	}

	out := entity.NewFrame(a.Width, a.Height)
	for i := range out.Pix {
		out.Pix[i] = Mean(a.Pix[i], b.Pix[i])
	}
	return out, nil
}

// Mean is (x+y)/2 rounded half up.
func Mean(x, y uint8) uint8 {
	return uint8((uint16(x) + uint16(y) + 1) >> 1)
}
