package modernizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/pluginmodernizer/internal/utils/flags"
)

const (
	runCommandUseConstant              = "run"
	runCommandShortDescription         = "Modernize Jenkins plugins with a recipe"
	runCommandLongDescription          = "run forks, clones, transforms and verifies each selected plugin, then pushes the change and opens a pull request."
	validateCommandUseConstant         = "validate"
	validateCommandShortDescription    = "Check configuration, credentials and build tool"
	validateCommandLongDescription     = "validate resolves GitHub credentials, checks the Maven installation and looks up the recipe without processing any plugin."
	cleanupCommandUseConstant          = "cleanup"
	cleanupCommandShortDescription     = "Remove local working copies and forks"
	cleanupCommandLongDescription      = "cleanup deletes the local working copies of the selected plugins and, with --remove-forks, forks without open pull requests."
	unexpectedArgumentsMessageConstant = "command does not accept positional arguments"
	validationSucceededTemplate        = "Configuration is valid (recipe %s)\n"
	shutdownTimeoutConstant            = 10 * time.Second

	concurrencyFlagName         = "concurrency"
	concurrencyFlagUsage        = "Number of plugins processed in parallel"
	minimumScoreFlagName        = "min-score"
	minimumScoreFlagUsage       = "Fail plugins whose health score is below this value (0 disables)"
	skipAPIPluginsFlagName      = "skip-api-plugins"
	skipAPIPluginsFlagUsage     = "Skip plugins labelled as API plugins"
	skipMaxScoreFlagName        = "skip-max-score"
	skipMaxScoreFlagUsage       = "Skip plugins already at the maximum health score"
	cachePathFlagName           = "cache-path"
	cachePathFlagUsage          = "Cache root for metadata, toolchains and working copies"
	mavenHomeFlagName           = "maven-home"
	mavenHomeFlagUsage          = "Maven installation directory"
	metricsFileFlagName         = "metrics-file"
	metricsFileFlagUsage        = "Write run metrics in Prometheus text format to this file"
	forkOwnerFlagName           = "fork-owner"
	forkOwnerFlagUsage          = "Account or organization receiving forks"
	previewRecipesFlagName      = "preview-recipes"
	previewRecipesFlagUsage     = "Run recipes in preview mode without changing sources"
	defaultMinimumScoreConstant = 0
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the persisted settings.
type ConfigurationProvider func() Settings

// DependenciesFactory constructs collaborators for a validated configuration.
type DependenciesFactory func(config Config, options WiringOptions) (Dependencies, error)

// CommandBuilder assembles the run, validate and cleanup commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        ConfigurationProvider
	DependenciesFactory          DependenciesFactory
}

type commandFlags struct {
	toggles        *flags.WorkflowToggles
	selection      *flags.PluginSelection
	concurrency    int
	minimumScore   float64
	skipAPIPlugins bool
	skipMaxScore   bool
	cachePath      string
	mavenHome      string
	metricsFile    string
	forkOwner      string
	previewRecipes bool
}

// BuildRunCommand constructs the run command.
func (builder *CommandBuilder) BuildRunCommand() (*cobra.Command, error) {
	parsed := &commandFlags{}
	command := &cobra.Command{
		Use:   runCommandUseConstant,
		Short: runCommandShortDescription,
		Long:  runCommandLongDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, parsed)
		},
	}
	parsed.toggles = flags.BindWorkflowToggles(command)
	parsed.selection = flags.BindPluginSelection(command, true)
	builder.bindSharedFlags(command.Flags(), parsed)
	command.Flags().IntVar(&parsed.concurrency, concurrencyFlagName, defaultConcurrencyConstant, concurrencyFlagUsage)
	command.Flags().Float64Var(&parsed.minimumScore, minimumScoreFlagName, defaultMinimumScoreConstant, minimumScoreFlagUsage)
	command.Flags().StringVar(&parsed.metricsFile, metricsFileFlagName, "", metricsFileFlagUsage)
	flags.AddToggleFlag(command.Flags(), &parsed.skipAPIPlugins, skipAPIPluginsFlagName, false, skipAPIPluginsFlagUsage)
	flags.AddToggleFlag(command.Flags(), &parsed.skipMaxScore, skipMaxScoreFlagName, false, skipMaxScoreFlagUsage)
	flags.AddToggleFlag(command.Flags(), &parsed.previewRecipes, previewRecipesFlagName, false, previewRecipesFlagUsage)
	return command, nil
}

// BuildValidateCommand constructs the validate command.
func (builder *CommandBuilder) BuildValidateCommand() (*cobra.Command, error) {
	parsed := &commandFlags{toggles: &flags.WorkflowToggles{}, selection: &flags.PluginSelection{}}
	command := &cobra.Command{
		Use:   validateCommandUseConstant,
		Short: validateCommandShortDescription,
		Long:  validateCommandLongDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.validate(command, arguments, parsed)
		},
	}
	flags.AddToggleFlag(command.Flags(), &parsed.toggles.DryRun, flags.DryRunFlagName, false, "Validate without requiring publishing credentials")
	command.Flags().StringVar(&parsed.selection.Recipe, flags.RecipeFlagName, "", "Recipe name to apply")
	builder.bindSharedFlags(command.Flags(), parsed)
	return command, nil
}

// BuildCleanupCommand constructs the cleanup command.
func (builder *CommandBuilder) BuildCleanupCommand() (*cobra.Command, error) {
	parsed := &commandFlags{toggles: &flags.WorkflowToggles{}}
	command := &cobra.Command{
		Use:   cleanupCommandUseConstant,
		Short: cleanupCommandShortDescription,
		Long:  cleanupCommandLongDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.cleanup(command, arguments, parsed)
		},
	}
	parsed.selection = flags.BindPluginSelection(command, false)
	flags.AddToggleFlag(command.Flags(), &parsed.toggles.RemoveForks, flags.RemoveForksFlagName, false, "Delete forks without open pull requests")
	flags.AddToggleFlag(command.Flags(), &parsed.toggles.DryRun, flags.DryRunFlagName, false, "Report forks without deleting them")
	flags.AddToggleFlag(command.Flags(), &parsed.toggles.FailOnErrors, flags.FailOnErrorsFlagName, false, "Exit with a non-zero code when any plugin fails")
	command.Flags().StringVar(&parsed.cachePath, cachePathFlagName, "", cachePathFlagUsage)
	command.Flags().StringVar(&parsed.forkOwner, forkOwnerFlagName, "", forkOwnerFlagUsage)
	return command, nil
}

func (builder *CommandBuilder) bindSharedFlags(flagSet *pflag.FlagSet, parsed *commandFlags) {
	flagSet.StringVar(&parsed.cachePath, cachePathFlagName, "", cachePathFlagUsage)
	flagSet.StringVar(&parsed.mavenHome, mavenHomeFlagName, "", mavenHomeFlagUsage)
	flagSet.StringVar(&parsed.forkOwner, forkOwnerFlagName, "", forkOwnerFlagUsage)
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string, parsed *commandFlags) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}
	instance, instanceError := builder.newModernizer(command, parsed, RequireAll, false)
	if instanceError != nil {
		return instanceError
	}
	defer shutdownModernizer(command, instance)
	summary, runError := instance.Run(commandContext(command))
	if renderError := renderSummary(command.OutOrStdout(), summary); renderError != nil {
		return renderError
	}
	return runError
}

func (builder *CommandBuilder) validate(command *cobra.Command, arguments []string, parsed *commandFlags) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}
	instance, instanceError := builder.newModernizer(command, parsed, RequireRecipe|RequireForkOwner|RequireBuildTool, false)
	if instanceError != nil {
		return instanceError
	}
	defer shutdownModernizer(command, instance)
	recipe, validationError := instance.Validate(commandContext(command))
	if validationError != nil {
		return validationError
	}
	_, writeError := fmt.Fprintf(command.OutOrStdout(), validationSucceededTemplate, recipe.Name)
	return writeError
}

func (builder *CommandBuilder) cleanup(command *cobra.Command, arguments []string, parsed *commandFlags) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}
	requirements := RequirePlugins
	if flags.OverrideBool(command.Flags(), flags.RemoveForksFlagName, parsed.toggles.RemoveForks, builder.configuration().RemoveForks) {
		requirements |= RequireForkOwner
	}
	instance, instanceError := builder.newModernizer(command, parsed, requirements, requirements&RequireForkOwner == 0)
	if instanceError != nil {
		return instanceError
	}
	defer shutdownModernizer(command, instance)
	summary, cleanupError := instance.Cleanup(commandContext(command))
	if renderError := renderSummary(command.OutOrStdout(), summary); renderError != nil {
		return renderError
	}
	return cleanupError
}

func (builder *CommandBuilder) newModernizer(command *cobra.Command, parsed *commandFlags, requirements Requirement, credentialsOptional bool) (*Modernizer, error) {
	config, configError := NewConfigBuilder(builder.configuration()).
		WithRequirements(requirements).
		WithOverride(func(settings *Settings) {
			applyFlagOverrides(command.Flags(), parsed, settings)
		}).
		Build()
	if configError != nil {
		return nil, configError
	}

	logger := builder.resolveLogger()
	factory := builder.DependenciesFactory
	if factory == nil {
		factory = BuildDependencies
	}
	dependencies, dependenciesError := factory(config, WiringOptions{
		Logger:               logger,
		HumanReadableLogging: builder.humanReadableLogging(),
		CredentialsOptional:  credentialsOptional,
	})
	if dependenciesError != nil {
		return nil, dependenciesError
	}
	return NewModernizer(config, dependencies)
}

func applyFlagOverrides(flagSet *pflag.FlagSet, parsed *commandFlags, settings *Settings) {
	toggles := parsed.toggles
	settings.DryRun = flags.OverrideBool(flagSet, flags.DryRunFlagName, toggles.DryRun, settings.DryRun)
	settings.SkipBuild = flags.OverrideBool(flagSet, flags.SkipBuildFlagName, toggles.SkipBuild, settings.SkipBuild)
	settings.SkipPush = flags.OverrideBool(flagSet, flags.SkipPushFlagName, toggles.SkipPush, settings.SkipPush)
	settings.SkipPullRequest = flags.OverrideBool(flagSet, flags.SkipPullRequestFlagName, toggles.SkipPullRequest, settings.SkipPullRequest)
	settings.SkipMetadata = flags.OverrideBool(flagSet, flags.SkipMetadataFlagName, toggles.SkipMetadata, settings.SkipMetadata)
	settings.FetchMetadataOnly = flags.OverrideBool(flagSet, flags.FetchMetadataOnlyFlagName, toggles.FetchMetadataOnly, settings.FetchMetadataOnly)
	settings.RemoveLocalData = flags.OverrideBool(flagSet, flags.RemoveLocalDataFlagName, toggles.RemoveLocalData, settings.RemoveLocalData)
	settings.RemoveForks = flags.OverrideBool(flagSet, flags.RemoveForksFlagName, toggles.RemoveForks, settings.RemoveForks)
	settings.ExportDatatables = flags.OverrideBool(flagSet, flags.ExportDatatablesFlagName, toggles.ExportDatatables, settings.ExportDatatables)
	settings.DraftPullRequest = flags.OverrideBool(flagSet, flags.DraftFlagName, toggles.Draft, settings.DraftPullRequest)
	settings.AllowDeprecated = flags.OverrideBool(flagSet, flags.AllowDeprecatedFlagName, toggles.AllowDeprecated, settings.AllowDeprecated)
	settings.FailOnErrors = flags.OverrideBool(flagSet, flags.FailOnErrorsFlagName, toggles.FailOnErrors, settings.FailOnErrors)
	settings.SkipAPIPlugins = flags.OverrideBool(flagSet, skipAPIPluginsFlagName, parsed.skipAPIPlugins, settings.SkipAPIPlugins)
	settings.SkipMaxScore = flags.OverrideBool(flagSet, skipMaxScoreFlagName, parsed.skipMaxScore, settings.SkipMaxScore)
	settings.Maven.PreviewRecipes = flags.OverrideBool(flagSet, previewRecipesFlagName, parsed.previewRecipes, settings.Maven.PreviewRecipes)

	selection := parsed.selection
	settings.Plugins = flags.OverrideStrings(flagSet, flags.PluginsFlagName, selection.Plugins, settings.Plugins)
	settings.PluginFile = flags.OverrideString(flagSet, flags.PluginFileFlagName, selection.PluginFile, settings.PluginFile)
	settings.Recipe = flags.OverrideString(flagSet, flags.RecipeFlagName, selection.Recipe, settings.Recipe)
	settings.CachePath = flags.OverrideString(flagSet, cachePathFlagName, parsed.cachePath, settings.CachePath)
	settings.Maven.Home = flags.OverrideString(flagSet, mavenHomeFlagName, parsed.mavenHome, settings.Maven.Home)
	settings.MetricsFile = flags.OverrideString(flagSet, metricsFileFlagName, parsed.metricsFile, settings.MetricsFile)
	settings.GitHub.ForkOwner = flags.OverrideString(flagSet, forkOwnerFlagName, parsed.forkOwner, settings.GitHub.ForkOwner)

	if flags.Changed(flagSet, concurrencyFlagName) {
		settings.Concurrency = parsed.concurrency
	}
	if flags.Changed(flagSet, minimumScoreFlagName) {
		settings.MinimumScore = parsed.minimumScore
	}
}

func renderSummary(writer io.Writer, summary Summary) error {
	if len(summary.Results) == 0 {
		return nil
	}
	return summary.Render(writer)
}

func (builder *CommandBuilder) configuration() Settings {
	if builder.ConfigurationProvider == nil {
		return DefaultSettings()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) humanReadableLogging() bool {
	return builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// shutdownModernizer flushes telemetry even when the command context was cancelled.
// Flush failures are logged by the tracer provider and do not change the exit code.
func shutdownModernizer(command *cobra.Command, instance *Modernizer) {
	shutdownContext, cancel := context.WithTimeout(context.WithoutCancel(commandContext(command)), shutdownTimeoutConstant)
	defer cancel()
	_ = instance.Shutdown(shutdownContext)
}

// commandContext returns the command's context or a background context for commands executed directly.
func commandContext(command *cobra.Command) context.Context {
	if command.Context() != nil {
		return command.Context()
	}
	return context.Background()
}
