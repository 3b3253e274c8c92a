package vcs

import (
	"errors"
	"fmt"
)

const (
	stageErrorTemplateConstant       = "%s failed for plugin %s: %v"
	forkCollisionTemplateConstant    = "repository %s exists but is not a fork of %s"
	forkTimeoutTemplateConstant      = "fork %s not visible after %s"
	missingRepositoryMessageConstant = "plugin repository name is unknown"
	missingLocalRepositoryMessage    = "plugin has no local repository"
)

var (
	// ErrRepositoryNameMissing indicates a stage ran before the plugin repository was resolved.
	ErrRepositoryNameMissing = errors.New(missingRepositoryMessageConstant)
	// ErrLocalRepositoryMissing indicates a working-copy stage ran before cloning.
	ErrLocalRepositoryMissing = errors.New(missingLocalRepositoryMessage)
)

// StageError attributes a version-control failure to a plugin and stage.
type StageError struct {
	Plugin string
	Stage  string
	Cause  error
}

// Error describes the failed stage.
func (stageError StageError) Error() string {
	return fmt.Sprintf(stageErrorTemplateConstant, stageError.Stage, stageError.Plugin, stageError.Cause)
}

// Unwrap exposes the underlying cause.
func (stageError StageError) Unwrap() error {
	return stageError.Cause
}

// ForkCollisionError reports an existing repository at the fork location that is not a fork of upstream.
type ForkCollisionError struct {
	Repository string
	Upstream   string
}

// Error describes the collision.
func (collisionError ForkCollisionError) Error() string {
	return fmt.Sprintf(forkCollisionTemplateConstant, collisionError.Repository, collisionError.Upstream)
}

// ForkTimeoutError reports a fork that did not become visible before the deadline.
type ForkTimeoutError struct {
	Repository string
	Waited     string
}

// Error describes the timeout.
func (timeoutError ForkTimeoutError) Error() string {
	return fmt.Sprintf(forkTimeoutTemplateConstant, timeoutError.Repository, timeoutError.Waited)
}
