// Package saga runs an ordered list of steps and undoes the completed ones
// in reverse order when a later step fails.
package saga

import (
	"context"
	"fmt"

	"github.com/hearth-panel/hearth-ctl/internal/logging"
)

// Step is one stage of a saga.
type Step struct {
	// Name identifies the step in logs and errors.
	Name string

	// Do performs the step.
	Do func(ctx context.Context) error

	// Compensate undoes Do. Nil means the step has nothing to undo.
	Compensate func(ctx context.Context) error

	// CompensateOnFailure also runs Compensate when Do itself fails, for
	// steps that may have taken partial effect (a remote call that timed
	// out after the remote side acted).
	CompensateOnFailure bool
}

// StepError reports which step failed. It unwraps to the step's error so
// typed errors stay reachable with errors.As.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Saga is a named list of steps.
type Saga struct {
	name  string
	steps []Step
}

// New returns an empty saga.
func New(name string) *Saga {
	return &Saga{name: name}
}

// Add appends a step and returns the saga for chaining.
func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the steps in order. When one fails, compensations run in
// reverse over every completed step (and the failing one when it is marked
// CompensateOnFailure), then the failure is returned as a *StepError.
//
// Compensations run on a context detached from ctx's cancellation so a
// cancelled request still cleans up. Their errors are logged and never
// replace the original failure.
func (s *Saga) Run(ctx context.Context) error {
	var done []Step

	for _, step := range s.steps {
		logging.Debug("saga step", "saga", s.name, "step", step.Name)
		if err := step.Do(ctx); err != nil {
			if step.CompensateOnFailure {
				done = append(done, step)
			}
			logging.Debug("saga step failed", "saga", s.name, "step", step.Name, "error", err)
			s.compensate(context.WithoutCancel(ctx), done)
			return &StepError{Step: step.Name, Err: err}
		}
		done = append(done, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []Step) {
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		logging.Debug("compensating", "saga", s.name, "step", step.Name)
		if err := step.Compensate(ctx); err != nil {
			logging.Warn("compensation failed", "saga", s.name, "step", step.Name, "error", err)
		}
	}
}
