package port

import (
	"errors"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
)

// ErrStrategyUnavailable reports that a strategy's backing model never became
// ready. Callers may select another strategy before a run starts.
var ErrStrategyUnavailable = errors.New("interpolation strategy unavailable")

// Strategy synthesizes one frame between two source frames. Implementations
// must be safe for concurrent use once Ready returns nil, and may return a
// frame at a resolution different from the inputs.
type Strategy interface {
	Kind() entity.StrategyKind
	Ready() error
	Interpolate(a, b *entity.Frame) (*entity.Frame, error)
}
