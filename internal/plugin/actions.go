package plugin

import (
	"context"
	"errors"

	"github.com/temirov/pluginmodernizer/internal/recipes"
)

// VersionControl performs the hosted-provider and working-tree stages for a plugin.
// Implementations return ErrStageSkipped when configuration suppresses a stage.
type VersionControl interface {
	Fork(executionContext context.Context, target *Plugin) error
	Clone(executionContext context.Context, target *Plugin) error
	Checkout(executionContext context.Context, target *Plugin) error
	Commit(executionContext context.Context, target *Plugin, message string) error
	Push(executionContext context.Context, target *Plugin) error
	OpenPullRequest(executionContext context.Context, target *Plugin, title string, body string) error
	DeleteFork(executionContext context.Context, target *Plugin) error
}

// Builder runs build tool goals against a plugin's working copy.
type Builder interface {
	Clean(executionContext context.Context, target *Plugin) error
	Compile(executionContext context.Context, target *Plugin) error
	Verify(executionContext context.Context, target *Plugin) error
	RunRecipes(executionContext context.Context, target *Plugin, selected []recipes.Recipe) error
}

// Fork ensures a fork exists for the plugin.
func (plugin *Plugin) Fork(executionContext context.Context, versionControl VersionControl) error {
	return plugin.advanceWith(StageForked, func() error { return versionControl.Fork(executionContext, plugin) })
}

// Clone ensures the fork is cloned locally.
func (plugin *Plugin) Clone(executionContext context.Context, versionControl VersionControl) error {
	return plugin.advanceWith(StageCloned, func() error { return versionControl.Clone(executionContext, plugin) })
}

// Checkout switches the working copy to the modernization branch.
func (plugin *Plugin) Checkout(executionContext context.Context, versionControl VersionControl) error {
	return plugin.advanceWith(StageBranched, func() error { return versionControl.Checkout(executionContext, plugin) })
}

// Commit records working tree changes under message.
func (plugin *Plugin) Commit(executionContext context.Context, versionControl VersionControl, message string) error {
	return plugin.advanceWith(StageCommitted, func() error { return versionControl.Commit(executionContext, plugin, message) })
}

// Push publishes the branch to the fork.
func (plugin *Plugin) Push(executionContext context.Context, versionControl VersionControl) error {
	return plugin.advanceWith(StagePushed, func() error { return versionControl.Push(executionContext, plugin) })
}

// OpenPullRequest opens, or finds, the pull request for the branch.
func (plugin *Plugin) OpenPullRequest(executionContext context.Context, versionControl VersionControl, title string, body string) error {
	return plugin.advanceWith(StagePullRequestOpened, func() error {
		return versionControl.OpenPullRequest(executionContext, plugin, title, body)
	})
}

// DeleteFork removes the fork when it is safe to do so.
func (plugin *Plugin) DeleteFork(executionContext context.Context, versionControl VersionControl) error {
	return plugin.record(versionControl.DeleteFork(executionContext, plugin))
}

// Clean runs the clean goal.
func (plugin *Plugin) Clean(executionContext context.Context, builder Builder) error {
	return plugin.completeWith(BuildStepCleaned, func() error { return builder.Clean(executionContext, plugin) })
}

// Compile runs the compile goal.
func (plugin *Plugin) Compile(executionContext context.Context, builder Builder) error {
	return plugin.completeWith(BuildStepCompiled, func() error { return builder.Compile(executionContext, plugin) })
}

// RunRecipes applies the selected recipes.
func (plugin *Plugin) RunRecipes(executionContext context.Context, builder Builder, selected []recipes.Recipe) error {
	return plugin.completeWith(BuildStepTransformed, func() error { return builder.RunRecipes(executionContext, plugin, selected) })
}

// Verify runs the verify goal.
func (plugin *Plugin) Verify(executionContext context.Context, builder Builder) error {
	return plugin.completeWith(BuildStepVerified, func() error { return builder.Verify(executionContext, plugin) })
}

func (plugin *Plugin) advanceWith(stage Stage, action func() error) error {
	actionError := action()
	if errors.Is(actionError, ErrStageSkipped) {
		return nil
	}
	if recordedError := plugin.record(actionError); recordedError != nil {
		return recordedError
	}
	plugin.AdvanceTo(stage)
	return nil
}

func (plugin *Plugin) completeWith(step BuildStep, action func() error) error {
	actionError := action()
	if errors.Is(actionError, ErrStageSkipped) {
		return nil
	}
	if recordedError := plugin.record(actionError); recordedError != nil {
		return recordedError
	}
	plugin.CompleteBuildStep(step)
	return nil
}

func (plugin *Plugin) record(actionError error) error {
	if actionError == nil || errors.Is(actionError, ErrStageSkipped) {
		return nil
	}
	plugin.AddError(actionError)
	return actionError
}
