// Package saga runs an ordered list of steps, each with an optional
// compensating action. When a step fails, the compensations of every
// already-completed step run in reverse order, then the original error is
// returned.
//
// A step whose effect happened before the saga started (for example a payment
// captured by an external gateway ahead of the call) can be registered with
// Completed so that its compensation participates without the saga re-running
// the step.
package saga

import (
	"context"
	"fmt"
)

// Step is a single unit of work in a saga. Run performs the step's effect and
// Compensate semantically undoes it. Either may be nil: a nil Run marks a
// step that only exists for its compensation, a nil Compensate marks a step
// that needs no undo.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga is an ordered list of steps. It is not safe for concurrent use; build
// and execute one Saga per operation.
type Saga struct {
	steps []Step
	done  int
}

// New returns an empty Saga.
func New() *Saga {
	return &Saga{}
}

// Completed registers a step whose effect already happened outside the saga.
// Its Run is never invoked, but its Compensate runs if a later step fails.
// Completed steps must be registered before any pending step.
func (s *Saga) Completed(step Step) *Saga {
	s.steps = append(s.steps, step)
	s.done++
	return s
}

// Then appends a pending step.
func (s *Saga) Then(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs the pending steps in order. On the first failure it runs the
// compensations of all completed steps in reverse order and returns the
// step's error. If a compensation itself fails, Execute stops compensating
// and returns a *CompensationError carrying both failures; the remaining
// state must be resolved manually.
func (s *Saga) Execute(ctx context.Context) error {
	for ; s.done < len(s.steps); s.done++ {
		step := s.steps[s.done]
		if step.Run == nil {
			continue
		}
		if err := step.Run(ctx); err != nil {
			return s.compensate(ctx, err)
		}
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, cause error) error {
	for i := s.done - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if cerr := step.Compensate(ctx); cerr != nil {
			return &CompensationError{
				Step:          step.Name,
				Cause:         cause,
				CompensateErr: cerr,
			}
		}
	}
	return cause
}

// CompensationError reports that a compensating action failed after a step
// error. It is strictly more severe than the causing error: the effects of
// the named step are neither applied nor undone.
type CompensationError struct {
	// Step is the name of the step whose compensation failed.
	Step string
	// Cause is the error that triggered compensation.
	Cause error
	// CompensateErr is the error returned by the compensating action.
	CompensateErr error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation for step %q failed: %v (original error: %v)",
		e.Step, e.CompensateErr, e.Cause)
}

// Unwrap exposes the original step error so callers can still match it with
// errors.Is / errors.As.
func (e *CompensationError) Unwrap() error {
	return e.Cause
}
