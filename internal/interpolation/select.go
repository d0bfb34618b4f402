package interpolation

import (
	"fmt"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
)

// Strategies holds the strategies a driver can pick from by kind.
type Strategies map[entity.StrategyKind]port.Strategy

type Selection struct {
	Strategy port.Strategy
	// Fallback is set when the requested strategy was unavailable and the
	// naive one was substituted.
	Fallback bool
	// Cause is the readiness error of the requested strategy when Fallback is set.
	Cause error
}

// SelectStrategy resolves kind before a run starts. An unavailable strategy
// is replaced by the naive one only when allowFallback is set, so a run never
// mixes strategies.
func SelectStrategy(kind entity.StrategyKind, available Strategies, allowFallback bool) (Selection, error) {
	s, ok := available[kind]
	if !ok {
		return Selection{}, fmt.Errorf("%w: %s strategy not configured", port.ErrStrategyUnavailable, kind)
	}

	readyErr := s.Ready()
	if readyErr == nil {
		return Selection{Strategy: s}, nil
	}
	if !allowFallback || kind == entity.StrategyNaive {
		return Selection{}, fmt.Errorf("%s strategy: %w", kind, readyErr)
	}

	naive, ok := available[entity.StrategyNaive]
	if !ok || naive.Ready() != nil {
		return Selection{}, fmt.Errorf("%s strategy: %w (no naive fallback)", kind, readyErr)
	}
	return Selection{Strategy: naive, Fallback: true, Cause: readyErr}, nil
}
