package interpolation

import (
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
)

var (
	// ErrInputTooShort marks a run whose seed had fewer than two frames.
	// It is reported on Result.Skipped, never returned.
	ErrInputTooShort = errors.New("sequence shorter than two frames")

	ErrResolutionMismatch = errors.New("frame resolution mismatch")
	ErrInvalidPasses      = errors.New("invalid pass count")
)

// PairError locates a failure inside a run. Pass is 1-based, Pair is the
// 0-based index of the left frame within that pass's input.
type PairError struct {
	Pass     int
	Pair     int
	Strategy entity.StrategyKind
	Err      error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("pass %d pair %d (%s): %v", e.Pass, e.Pair, e.Strategy, e.Err)
}

func (e *PairError) Unwrap() error {
	return e.Err
}

// FailedPass returns the 1-based pass carried by err, or 0.
func FailedPass(err error) int {
	var pe *PairError
	if errors.As(err, &pe) {
		return pe.Pass
	}
	return 0
}
