package modernizer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/pluginmodernizer/internal/cache"
	"github.com/temirov/pluginmodernizer/internal/jdk"
	"github.com/temirov/pluginmodernizer/internal/plugin"
	"github.com/temirov/pluginmodernizer/internal/recipes"
	"github.com/temirov/pluginmodernizer/internal/telemetry"
)

const (
	stageMetadataConstant   = "metadata"
	stageForkConstant       = "fork"
	stageCloneConstant      = "clone"
	stageCheckoutConstant   = "checkout"
	stageCollectConstant    = "collect metadata"
	stageToolchainConstant  = "toolchain"
	stageCleanConstant      = "clean"
	stageCompileConstant    = "compile"
	stageRecipesConstant    = "recipes"
	stageVerifyConstant     = "verify"
	stageCommitConstant     = "commit"
	stagePushConstant       = "push"
	stagePullRequestConst   = "pull request"
	stageRemoveLocalConst   = "remove local data"
	stageDeleteForkConstant = "delete fork"

	logFieldPluginConstant    = "plugin_name"
	logFieldStageConstant     = "stage"
	logFieldRecipeConstant    = "recipe"
	logFieldPluginCountConst  = "plugins"
	logFieldConcurrencyConst  = "concurrency"
	logFieldDryRunConstant    = "dry_run"
	logFieldFailedConstant    = "failed"
	logFieldReasonConstant    = "reason"
	logFieldToolchainConstant = "jdk"
	logFieldCoreConstant      = "core_version"
	logMessageRunStarted      = "Starting modernization run"
	logMessageRunFinished     = "Modernization run finished"
	logMessagePluginStarted   = "Processing plugin"
	logMessagePluginFinished  = "Finished plugin"
	logMessagePluginSkipped   = "Skipping plugin"
	logMessageStageFailed     = "Plugin stage failed"
	logMessageToolchainChosen = "Selected toolchain"
	logMessageMetricsWritten  = "Wrote metrics textfile"
	logMessageMetricsFailed   = "Unable to write metrics textfile"
	logFieldMetricsFileConst  = "metrics_file"

	recipeLookupErrorTemplate    = "resolve recipe: %w"
	preloadErrorTemplate         = "load remote metadata: %w"
	builderValidationTemplate    = "validate build tool: %w"
	dependencyMissingTemplate    = "modernizer dependency %s not configured"
	renderTextsErrorTemplate     = "render texts for plugin %s: %w"
	skipReasonAPIPlugin          = "API plugin"
	skipReasonMaximumScore       = "already at maximum health score"
	policyReasonDeprecated       = "plugin is deprecated"
	policyReasonLowScoreTemplate = "health score below %.0f"
)

// MetadataResolver answers registry, health and version questions about plugins.
type MetadataResolver interface {
	Preload(executionContext context.Context) error
	ExtractRepoName(executionContext context.Context, target *plugin.Plugin) (string, error)
	IsDeprecated(executionContext context.Context, target *plugin.Plugin) (bool, error)
	IsAPIPlugin(executionContext context.Context, target *plugin.Plugin) (bool, error)
	HasLowScore(executionContext context.Context, target *plugin.Plugin, threshold float64) (bool, error)
	HasMaximumScore(executionContext context.Context, target *plugin.Plugin) (bool, error)
	ExtractRequiredCore(executionContext context.Context, target *plugin.Plugin) (string, error)
}

// VersionControl extends plugin.VersionControl with local working copy removal.
type VersionControl interface {
	plugin.VersionControl
	RemoveLocalData(target *plugin.Plugin) error
}

// Builder extends plugin.Builder with installation validation.
type Builder interface {
	plugin.Builder
	Validate(executionContext context.Context) error
}

// Toolchains provides a home directory for a JDK, installing it when needed.
type Toolchains interface {
	Ensure(executionContext context.Context, toolchain jdk.JDK) (string, error)
}

// Dependencies are the collaborators of a Modernizer.
type Dependencies struct {
	Logger         *zap.Logger
	Metadata       MetadataResolver
	VersionControl VersionControl
	Builder        Builder
	Toolchains     Toolchains
	Cache          *cache.Manager
	Catalogue      *recipes.Catalogue
	Metrics        *telemetry.Metrics
	Tracing        *telemetry.TracerProvider
}

// Modernizer runs the modernization workflow for the configured plugins.
type Modernizer struct {
	config       Config
	logger       *zap.Logger
	dependencies Dependencies
}

// NewModernizer validates dependencies and constructs a Modernizer.
func NewModernizer(config Config, dependencies Dependencies) (*Modernizer, error) {
	required := map[string]bool{
		"metadata":        dependencies.Metadata != nil,
		"version control": dependencies.VersionControl != nil,
		"builder":         dependencies.Builder != nil,
		"toolchains":      dependencies.Toolchains != nil,
		"cache":           dependencies.Cache != nil,
		"catalogue":       dependencies.Catalogue != nil,
	}
	for name, present := range required {
		if !present {
			return nil, fmt.Errorf(dependencyMissingTemplate, name)
		}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Modernizer{config: config, logger: logger, dependencies: dependencies}, nil
}

// Validate checks the configuration errors that must abort a run before any plugin is processed.
func (modernizer *Modernizer) Validate(executionContext context.Context) (recipes.Recipe, error) {
	recipe, lookupError := modernizer.dependencies.Catalogue.Lookup(modernizer.config.Recipe())
	if lookupError != nil {
		return recipes.Recipe{}, ConfigurationError{Cause: fmt.Errorf(recipeLookupErrorTemplate, lookupError)}
	}
	if !modernizer.config.settings.FetchMetadataOnly {
		if validationError := modernizer.dependencies.Builder.Validate(executionContext); validationError != nil {
			return recipes.Recipe{}, ConfigurationError{Cause: fmt.Errorf(builderValidationTemplate, validationError)}
		}
	}
	return recipe, nil
}

// Run processes every configured plugin. Per-plugin failures are reported in the Summary; the
// returned error is reserved for configuration problems, metadata loading failures and, when
// enabled, PluginFailuresError.
func (modernizer *Modernizer) Run(executionContext context.Context) (Summary, error) {
	recipe, validationError := modernizer.Validate(executionContext)
	if validationError != nil {
		return Summary{}, validationError
	}
	if preloadError := modernizer.dependencies.Metadata.Preload(executionContext); preloadError != nil {
		return Summary{}, fmt.Errorf(preloadErrorTemplate, preloadError)
	}

	names := modernizer.config.Plugins()
	modernizer.logger.Info(logMessageRunStarted,
		zap.String(logFieldRecipeConstant, recipe.Name),
		zap.Int(logFieldPluginCountConst, len(names)),
		zap.Int(logFieldConcurrencyConst, modernizer.config.Concurrency()),
		zap.Bool(logFieldDryRunConstant, modernizer.config.DryRun()),
	)

	plugins := make([]*plugin.Plugin, 0, len(names))
	for _, name := range names {
		plugins = append(plugins, plugin.New(name))
	}

	workers, workerContext := errgroup.WithContext(executionContext)
	workers.SetLimit(modernizer.config.Concurrency())
	for _, target := range plugins {
		workers.Go(func() error {
			modernizer.processPlugin(workerContext, target, recipe)
			return nil
		})
	}
	_ = workers.Wait()

	summary := newSummary(plugins)
	for _, result := range summary.Results {
		modernizer.dependencies.Metrics.RecordPlugin(result.Outcome())
	}
	modernizer.writeMetrics()
	modernizer.logger.Info(logMessageRunFinished, zap.Int(logFieldPluginCountConst, len(summary.Results)), zap.Int(logFieldFailedConstant, summary.Failed()))

	if modernizer.config.settings.FailOnErrors && summary.Failed() > 0 {
		return summary, PluginFailuresError{Failed: summary.Failed(), Total: len(summary.Results)}
	}
	if executionContext.Err() != nil {
		return summary, executionContext.Err()
	}
	return summary, nil
}

// Cleanup removes local working copies of the configured plugins and, when enabled, their forks.
func (modernizer *Modernizer) Cleanup(executionContext context.Context) (Summary, error) {
	plugins := make([]*plugin.Plugin, 0)
	for _, name := range modernizer.config.Plugins() {
		target := plugin.New(name)
		plugins = append(plugins, target)
		steps := []pluginStep{{name: stageRemoveLocalConst, run: modernizer.removeLocalData}}
		if modernizer.config.settings.RemoveForks {
			steps = append([]pluginStep{{name: stageMetadataConstant, run: modernizer.resolveRepositoryName}}, steps...)
			steps = append(steps, pluginStep{name: stageDeleteForkConstant, run: func(stepContext context.Context, target *plugin.Plugin) error {
				return target.DeleteFork(stepContext, modernizer.dependencies.VersionControl)
			}})
		}
		modernizer.runSteps(executionContext, target, steps)
	}
	summary := newSummary(plugins)
	if summary.Failed() > 0 && modernizer.config.settings.FailOnErrors {
		return summary, PluginFailuresError{Failed: summary.Failed(), Total: len(summary.Results)}
	}
	return summary, nil
}

// Shutdown flushes spans recorded during the run.
func (modernizer *Modernizer) Shutdown(executionContext context.Context) error {
	return modernizer.dependencies.Tracing.Shutdown(executionContext)
}

func (modernizer *Modernizer) writeMetrics() {
	metricsFile := modernizer.config.settings.MetricsFile
	if modernizer.dependencies.Metrics == nil || len(metricsFile) == 0 {
		return
	}
	if writeError := modernizer.dependencies.Metrics.WriteTextfile(metricsFile); writeError != nil {
		modernizer.logger.Warn(logMessageMetricsFailed, zap.String(logFieldMetricsFileConst, metricsFile), zap.Error(writeError))
		return
	}
	modernizer.logger.Debug(logMessageMetricsWritten, zap.String(logFieldMetricsFileConst, metricsFile))
}

// errRecorded stops a plugin whose failure is already on its error list.
var errRecorded = errors.New("failure recorded on plugin")

type pluginStep struct {
	name string
	run  func(executionContext context.Context, target *plugin.Plugin) error
	// recordsErrors marks steps implemented by plugin actions, which record their own failures.
	recordsErrors bool
}

// runSteps executes steps in order and stops at the first failure or skip.
func (modernizer *Modernizer) runSteps(executionContext context.Context, target *plugin.Plugin, steps []pluginStep) bool {
	logger := modernizer.logger.With(zap.String(logFieldPluginConstant, target.Name()))
	for _, step := range steps {
		if contextError := executionContext.Err(); contextError != nil {
			target.AddError(contextError)
			return false
		}
		stepContext, span := telemetry.StartStageSpan(executionContext, step.name)
		stepError := step.run(stepContext, target)
		if stepError != nil && !step.recordsErrors && !errors.Is(stepError, errRecorded) {
			target.AddError(stepError)
		}
		if errors.Is(stepError, errRecorded) {
			stepError = lastError(target)
		}
		telemetry.EndSpan(span, stepError)
		if stepError != nil {
			modernizer.dependencies.Metrics.RecordStageFailure(step.name)
			logger.Warn(logMessageStageFailed, zap.String(logFieldStageConstant, step.name), zap.Error(stepError))
			return false
		}
		if target.Skipped() {
			logger.Info(logMessagePluginSkipped, zap.String(logFieldReasonConstant, target.SkipReason()))
			return false
		}
	}
	return true
}

func lastError(target *plugin.Plugin) error {
	recorded := target.Errors()
	if len(recorded) == 0 {
		return errRecorded
	}
	return recorded[len(recorded)-1]
}
