package orchestrator

import "fmt"

// ValidationError reports an invalid matter payload or call parameter.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// PlanNotFoundError reports a reference to a plan that does not exist.
type PlanNotFoundError struct {
	PlanID string
}

func (e *PlanNotFoundError) Error() string {
	return fmt.Sprintf("plan %q does not exist", e.PlanID)
}

// ExecutionNotFoundError reports a reference to a plan that has never
// been executed.
type ExecutionNotFoundError struct {
	PlanID string
}

func (e *ExecutionNotFoundError) Error() string {
	return fmt.Sprintf("execution for plan %q does not exist", e.PlanID)
}
