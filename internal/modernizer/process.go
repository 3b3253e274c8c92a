package modernizer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/pluginmodernizer/internal/jdk"
	"github.com/temirov/pluginmodernizer/internal/plugin"
	"github.com/temirov/pluginmodernizer/internal/recipes"
	"github.com/temirov/pluginmodernizer/internal/telemetry"
)

const (
	logFieldCompletedConstant  = "completed"
	logFieldCommitsConstant    = "has_commits"
	logFieldErrorCountConstant = "errors"
)

func (modernizer *Modernizer) processPlugin(executionContext context.Context, target *plugin.Plugin, recipe recipes.Recipe) {
	pluginContext, span := telemetry.StartPluginSpan(executionContext, target.Name())
	logger := modernizer.logger.With(zap.String(logFieldPluginConstant, target.Name()))
	logger.Info(logMessagePluginStarted)

	completed := modernizer.runSteps(pluginContext, target, modernizer.pluginSteps(recipe))
	modernizer.cleanupPlugin(pluginContext, target)

	telemetry.EndSpan(span, target.FirstError())
	logger.Info(logMessagePluginFinished,
		zap.Bool(logFieldCompletedConstant, completed),
		zap.String(logFieldStageConstant, target.Stage().String()),
		zap.Bool(logFieldCommitsConstant, target.HasCommits()),
		zap.Int(logFieldErrorCountConstant, len(target.Errors())),
	)
}

func (modernizer *Modernizer) pluginSteps(recipe recipes.Recipe) []pluginStep {
	settings := modernizer.config.settings
	versionControl := modernizer.dependencies.VersionControl
	builder := modernizer.dependencies.Builder

	steps := []pluginStep{
		{name: stageMetadataConstant, run: modernizer.resolveMetadata},
		{name: stageForkConstant, recordsErrors: true, run: func(stepContext context.Context, target *plugin.Plugin) error {
			return target.Fork(stepContext, versionControl)
		}},
		{name: stageCloneConstant, recordsErrors: true, run: func(stepContext context.Context, target *plugin.Plugin) error {
			return target.Clone(stepContext, versionControl)
		}},
		{name: stageCheckoutConstant, recordsErrors: true, run: func(stepContext context.Context, target *plugin.Plugin) error {
			return target.Checkout(stepContext, versionControl)
		}},
	}
	if !settings.SkipMetadata {
		steps = append(steps, pluginStep{name: stageCollectConstant, run: modernizer.collectMetadata})
	}
	if settings.FetchMetadataOnly {
		return steps
	}

	steps = append(steps, pluginStep{name: stageToolchainConstant, run: modernizer.selectToolchain})
	if !settings.SkipBuild {
		steps = append(steps,
			pluginStep{name: stageCleanConstant, recordsErrors: true, run: func(stepContext context.Context, target *plugin.Plugin) error {
				return target.Clean(stepContext, builder)
			}},
			pluginStep{name: stageCompileConstant, recordsErrors: true, run: func(stepContext context.Context, target *plugin.Plugin) error {
				return target.Compile(stepContext, builder)
			}},
		)
	}
	steps = append(steps, pluginStep{name: stageRecipesConstant, recordsErrors: true, run: func(stepContext context.Context, target *plugin.Plugin) error {
		return target.RunRecipes(stepContext, builder, []recipes.Recipe{recipe})
	}})
	if !settings.SkipBuild {
		steps = append(steps, pluginStep{name: stageVerifyConstant, recordsErrors: true, run: func(stepContext context.Context, target *plugin.Plugin) error {
			return target.Verify(stepContext, builder)
		}})
	}

	var texts recipes.Texts
	return append(steps,
		pluginStep{name: stageCommitConstant, run: func(stepContext context.Context, target *plugin.Plugin) error {
			rendered, renderError := renderTexts(recipe, target)
			if renderError != nil {
				return renderError
			}
			texts = rendered
			if commitError := target.Commit(stepContext, versionControl, texts.CommitMessage); commitError != nil {
				return errRecorded
			}
			return nil
		}},
		pluginStep{name: stagePushConstant, recordsErrors: true, run: func(stepContext context.Context, target *plugin.Plugin) error {
			return target.Push(stepContext, versionControl)
		}},
		pluginStep{name: stagePullRequestConst, recordsErrors: true, run: func(stepContext context.Context, target *plugin.Plugin) error {
			return target.OpenPullRequest(stepContext, versionControl, texts.PullRequestTitle, texts.PullRequestBody)
		}},
	)
}

// resolveMetadata resolves the repository name and applies the registry and health policies.
func (modernizer *Modernizer) resolveMetadata(executionContext context.Context, target *plugin.Plugin) error {
	settings := modernizer.config.settings
	resolver := modernizer.dependencies.Metadata

	if repositoryError := modernizer.resolveRepositoryName(executionContext, target); repositoryError != nil {
		return repositoryError
	}

	deprecated, deprecationError := resolver.IsDeprecated(executionContext, target)
	if deprecationError != nil {
		return deprecationError
	}
	if deprecated && !settings.AllowDeprecated {
		return plugin.PolicyError{Plugin: target.Name(), Reason: policyReasonDeprecated}
	}

	if settings.SkipAPIPlugins {
		apiPlugin, labelError := resolver.IsAPIPlugin(executionContext, target)
		if labelError != nil {
			return labelError
		}
		if apiPlugin {
			target.Skip(skipReasonAPIPlugin)
			return nil
		}
	}

	if settings.MinimumScore > 0 {
		lowScore, scoreError := resolver.HasLowScore(executionContext, target, settings.MinimumScore)
		if scoreError != nil {
			return scoreError
		}
		if lowScore {
			return plugin.PolicyError{Plugin: target.Name(), Reason: fmt.Sprintf(policyReasonLowScoreTemplate, settings.MinimumScore)}
		}
	}

	if settings.SkipMaxScore {
		maximumScore, scoreError := resolver.HasMaximumScore(executionContext, target)
		if scoreError != nil {
			return scoreError
		}
		if maximumScore {
			target.Skip(skipReasonMaximumScore)
			return nil
		}
	}

	if target.HasErrors() {
		return errRecorded
	}
	return nil
}

func (modernizer *Modernizer) resolveRepositoryName(executionContext context.Context, target *plugin.Plugin) error {
	repositoryName, lookupError := modernizer.dependencies.Metadata.ExtractRepoName(executionContext, target)
	if lookupError != nil {
		return lookupError
	}
	if len(repositoryName) == 0 {
		return errRecorded
	}
	target.WithRepositoryName(repositoryName)
	return nil
}

func (modernizer *Modernizer) collectMetadata(_ context.Context, target *plugin.Plugin) error {
	if _, collectError := target.CollectMetadata(); collectError != nil {
		return collectError
	}
	_, publishError := target.PublishMetadata(modernizer.dependencies.Cache)
	return publishError
}

// selectToolchain picks the oldest JDK able to build for the plugin's core baseline and installs it.
func (modernizer *Modernizer) selectToolchain(executionContext context.Context, target *plugin.Plugin) error {
	coreVersion := target.TargetCoreVersion()
	if len(coreVersion) == 0 {
		requiredCore, lookupError := modernizer.dependencies.Metadata.ExtractRequiredCore(executionContext, target)
		if lookupError != nil {
			return lookupError
		}
		coreVersion = requiredCore
		target.WithTargetCoreVersion(coreVersion)
	}

	toolchain, selectionError := jdk.Select(coreVersion)
	if selectionError != nil {
		return selectionError
	}
	home, ensureError := modernizer.dependencies.Toolchains.Ensure(executionContext, toolchain)
	if ensureError != nil {
		return ensureError
	}
	target.WithJDK(toolchain, home)
	modernizer.logger.Info(logMessageToolchainChosen,
		zap.String(logFieldPluginConstant, target.Name()),
		zap.String(logFieldCoreConstant, coreVersion),
		zap.String(logFieldToolchainConstant, toolchain.String()),
	)
	return nil
}

func (modernizer *Modernizer) removeLocalData(_ context.Context, target *plugin.Plugin) error {
	return modernizer.dependencies.VersionControl.RemoveLocalData(target)
}

func (modernizer *Modernizer) cleanupPlugin(executionContext context.Context, target *plugin.Plugin) {
	settings := modernizer.config.settings
	if settings.RemoveLocalData && len(target.LocalRepository()) > 0 {
		if removeError := modernizer.removeLocalData(executionContext, target); removeError != nil {
			target.AddError(removeError)
		}
	}
	if settings.RemoveForks && target.Stage() >= plugin.StageForked {
		_ = target.DeleteFork(executionContext, modernizer.dependencies.VersionControl)
	}
}

func renderTexts(recipe recipes.Recipe, target *plugin.Plugin) (recipes.Texts, error) {
	data := recipes.TemplateData{PluginName: target.Name(), CoreVersion: target.TargetCoreVersion()}
	if toolchain := target.JDK(); toolchain != nil {
		data.JDKMajor = toolchain.Major
	}
	texts, renderError := recipe.Render(data)
	if renderError != nil {
		return recipes.Texts{}, fmt.Errorf(renderTextsErrorTemplate, target.Name(), renderError)
	}
	return texts, nil
}
