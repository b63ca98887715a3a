package auth

import (
	"context"

	"go.uber.org/zap"
)

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// saga collects compensating actions for the forward steps of one operation.
type saga struct {
	steps  []compensation
	logger *zap.Logger
}

func newSaga(logger *zap.Logger) *saga {
	return &saga{logger: logger}
}

// onFailure registers the compensation for a forward step that just succeeded.
func (s *saga) onFailure(name string, fn func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, fn: fn})
}

// rollback runs the compensations in reverse order and returns cause.
// Compensation failures are logged and otherwise ignored.
func (s *saga) rollback(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.fn(ctx); err != nil {
			s.logger.Warn("Compensation failed",
				zap.String("step", step.name),
				zap.Error(err),
				zap.NamedError("cause", cause))
			continue
		}
		s.logger.Debug("Compensation applied", zap.String("step", step.name))
	}
	s.steps = nil
	return cause
}
