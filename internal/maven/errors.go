package maven

import (
	"errors"
	"fmt"
	"strings"
)

const (
	validationErrorTemplateConstant = "invalid maven installation %s: %s"
	goalErrorTemplateConstant       = "maven %s exited with code %d"
	goalErrorOutputTemplateConstant = "maven %s exited with code %d: %s"
	goalSeparatorConstant           = " "
	executorMissingMessageConstant  = "maven executor not configured"
	projectMissingMessageConstant   = "plugin has no local repository to build"
	homeMissingMessageConstant      = "maven home not configured"
)

var (
	// ErrExecutorNotConfigured indicates the invoker was constructed without a tool executor.
	ErrExecutorNotConfigured = errors.New(executorMissingMessageConstant)
	// ErrProjectDirectoryMissing indicates a goal was requested for a plugin that has not been cloned.
	ErrProjectDirectoryMissing = errors.New(projectMissingMessageConstant)
	// ErrHomeNotConfigured indicates no Maven home was supplied.
	ErrHomeNotConfigured = errors.New(homeMissingMessageConstant)
)

// ValidationError reports a Maven installation that cannot be used. It is a configuration error.
type ValidationError struct {
	Home   string
	Reason string
	Cause  error
}

// Error describes the invalid installation.
func (validationError ValidationError) Error() string {
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.Home, validationError.Reason)
}

// Unwrap exposes the underlying cause.
func (validationError ValidationError) Unwrap() error {
	return validationError.Cause
}

// GoalError reports goals that ran to completion with a non-zero exit code.
type GoalError struct {
	Goals    []string
	ExitCode int
	Output   string
	Cause    error
}

// Error describes the failed goals with the tail of their output.
func (goalError GoalError) Error() string {
	goals := strings.Join(goalError.Goals, goalSeparatorConstant)
	trimmedOutput := strings.TrimSpace(goalError.Output)
	if len(trimmedOutput) == 0 {
		return fmt.Sprintf(goalErrorTemplateConstant, goals, goalError.ExitCode)
	}
	return fmt.Sprintf(goalErrorOutputTemplateConstant, goals, goalError.ExitCode, trimmedOutput)
}

// Unwrap exposes the underlying cause.
func (goalError GoalError) Unwrap() error {
	return goalError.Cause
}
