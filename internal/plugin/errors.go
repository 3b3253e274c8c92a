package plugin

import (
	"errors"
	"fmt"
)

const (
	notFoundErrorTemplateConstant    = "plugin %s not found in %s"
	policyErrorTemplateConstant      = "plugin %s skipped: %s"
	stageSkippedMessageConstant      = "stage skipped by configuration"
	projectFileErrorTemplateConstant = "invalid project file %s: %v"

	// SourceUpdateCenter names the registry snapshot in NotFoundError.
	SourceUpdateCenter = "update center"
	// SourceHealthScores names the health score snapshot in NotFoundError.
	SourceHealthScores = "health scores"
	// SourceInstallationStats names the installation statistics snapshot in NotFoundError.
	SourceInstallationStats = "installation statistics"
	// SourcePluginVersions names the version table snapshot in NotFoundError.
	SourcePluginVersions = "plugin versions"
)

// ErrStageSkipped is returned by collaborators that deliberately did not perform a stage,
// for example a push during a dry run. It is neither recorded nor treated as a failure.
var ErrStageSkipped = errors.New(stageSkippedMessageConstant)

// NotFoundError reports a plugin absent from a metadata snapshot.
type NotFoundError struct {
	Plugin string
	Source string
}

// Error describes the missing plugin.
func (notFoundError NotFoundError) Error() string {
	return fmt.Sprintf(notFoundErrorTemplateConstant, notFoundError.Plugin, notFoundError.Source)
}

// PolicyError reports a plugin excluded by a configured policy such as deprecation or a low health score.
type PolicyError struct {
	Plugin string
	Reason string
}

// Error describes the policy exclusion.
func (policyError PolicyError) Error() string {
	return fmt.Sprintf(policyErrorTemplateConstant, policyError.Plugin, policyError.Reason)
}

// ProjectFileError reports a pom.xml that could not be read or lacks required elements.
type ProjectFileError struct {
	Location string
	Cause    error
}

// Error describes the project file failure.
func (projectFileError ProjectFileError) Error() string {
	return fmt.Sprintf(projectFileErrorTemplateConstant, projectFileError.Location, projectFileError.Cause)
}

// Unwrap exposes the underlying cause.
func (projectFileError ProjectFileError) Unwrap() error {
	return projectFileError.Cause
}
