// Package saga runs a sequence of local steps and undoes the completed ones
// when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Step represents a single step in a saga with execute and compensate actions.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Error reports the failed step. Err is the step's own error so callers can
// match it with errors.Is/As.
type Error struct {
	Saga             string
	Step             string
	Err              error
	CompensationErrs []error
}

func (e *Error) Error() string {
	return fmt.Sprintf("saga '%s' failed at step '%s': %v", e.Saga, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Saga orchestrates a sequence of steps with compensating transactions on failure.
type Saga struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// New creates a new saga orchestrator.
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

// AddStep appends a step to the saga.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs all steps in order. On failure, completed steps are compensated
// in reverse order. Compensation ignores cancellation of ctx.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		s.logger.Debug("executing saga step",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
		)

		err := step.Execute(ctx)
		if err == nil {
			continue
		}

		s.logger.Info("saga step failed, starting compensation",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
			zap.Error(err),
		)
		return &Error{
			Saga:             s.name,
			Step:             step.Name,
			Err:              err,
			CompensationErrs: s.compensate(context.WithoutCancel(ctx), s.steps[:i]),
		}
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []Step) []error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("compensation failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("compensate %s: %w", step.Name, err))
		}
	}
	return errs
}

// CompensationFailed reports whether err is a saga error whose rollback was incomplete.
func CompensationFailed(err error) bool {
	var se *Error
	return errors.As(err, &se) && len(se.CompensationErrs) > 0
}
