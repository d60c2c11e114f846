package executor

import (
	"errors"
	"fmt"
)

var (
	ErrElementNotFound   = errors.New("element not found")
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrActionExecution   = errors.New("action execution failed")
	ErrScenarioInternal  = errors.New("scenario internal error")
)

// StepError is the failure recorded on a step. Kind is one of the Err* sentinels.
type StepError struct {
	Kind     error
	StepName string
	Target   string
	Err      error
}

func (e *StepError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrElementNotFound):
		return fmt.Sprintf("step %q: no element matched target %q, the page may have changed", e.StepName, e.Target)
	case e.Target != "" && e.Err != nil:
		return fmt.Sprintf("step %q on target %q: %v: %v (the page may have changed)", e.StepName, e.Target, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("step %q: %v: %v", e.StepName, e.Kind, e.Err)
	default:
		return fmt.Sprintf("step %q: %v", e.StepName, e.Kind)
	}
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Is(target error) bool { return target == e.Kind }

func stepErr(kind error, name, target string, err error) *StepError {
	return &StepError{Kind: kind, StepName: name, Target: target, Err: err}
}
