package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Workflow flag names shared by the run and cleanup commands.
const (
	DryRunFlagName            = "dry-run"
	SkipBuildFlagName         = "skip-build"
	SkipPushFlagName          = "skip-push"
	SkipPullRequestFlagName   = "skip-pull-request"
	SkipMetadataFlagName      = "skip-metadata"
	FetchMetadataOnlyFlagName = "fetch-metadata-only"
	RemoveLocalDataFlagName   = "remove-local-data"
	RemoveForksFlagName       = "remove-forks"
	ExportDatatablesFlagName  = "export-datatables"
	DraftFlagName             = "draft"
	AllowDeprecatedFlagName   = "allow-deprecated"
	FailOnErrorsFlagName      = "fail-on-errors"
	PluginsFlagName           = "plugins"
	PluginFileFlagName        = "plugin-file"
	RecipeFlagName            = "recipe"
)

// WorkflowToggles carries the boolean workflow switches parsed from the command line.
type WorkflowToggles struct {
	DryRun            bool
	SkipBuild         bool
	SkipPush          bool
	SkipPullRequest   bool
	SkipMetadata      bool
	FetchMetadataOnly bool
	RemoveLocalData   bool
	RemoveForks       bool
	ExportDatatables  bool
	Draft             bool
	AllowDeprecated   bool
	FailOnErrors      bool
}

// PluginSelection carries the plugin and recipe selection parsed from the command line.
type PluginSelection struct {
	Plugins    []string
	PluginFile string
	Recipe     string
}

// BindWorkflowToggles registers every workflow toggle on the command's local flag set.
func BindWorkflowToggles(command *cobra.Command) *WorkflowToggles {
	toggles := &WorkflowToggles{}
	if command == nil {
		return toggles
	}

	flagSet := command.Flags()
	AddToggleFlag(flagSet, &toggles.DryRun, DryRunFlagName, false, "Analyse and transform locally without pushing or opening pull requests")
	AddToggleFlag(flagSet, &toggles.SkipBuild, SkipBuildFlagName, false, "Skip compile and verify goals")
	AddToggleFlag(flagSet, &toggles.SkipPush, SkipPushFlagName, false, "Do not push branches to forks")
	AddToggleFlag(flagSet, &toggles.SkipPullRequest, SkipPullRequestFlagName, false, "Do not open pull requests")
	AddToggleFlag(flagSet, &toggles.SkipMetadata, SkipMetadataFlagName, false, "Skip per-plugin metadata collection")
	AddToggleFlag(flagSet, &toggles.FetchMetadataOnly, FetchMetadataOnlyFlagName, false, "Only collect plugin metadata; no build or transformation")
	AddToggleFlag(flagSet, &toggles.RemoveLocalData, RemoveLocalDataFlagName, false, "Delete local working copies after processing")
	AddToggleFlag(flagSet, &toggles.RemoveForks, RemoveForksFlagName, false, "Delete forks without open pull requests after processing")
	AddToggleFlag(flagSet, &toggles.ExportDatatables, ExportDatatablesFlagName, false, "Export transformation data tables")
	AddToggleFlag(flagSet, &toggles.Draft, DraftFlagName, false, "Open pull requests as drafts")
	AddToggleFlag(flagSet, &toggles.AllowDeprecated, AllowDeprecatedFlagName, false, "Process deprecated plugins")
	AddToggleFlag(flagSet, &toggles.FailOnErrors, FailOnErrorsFlagName, false, "Exit with a non-zero code when any plugin fails")
	return toggles
}

// BindPluginSelection registers plugin and recipe selection flags on the command's local flag set.
func BindPluginSelection(command *cobra.Command, includeRecipe bool) *PluginSelection {
	selection := &PluginSelection{}
	if command == nil {
		return selection
	}

	flagSet := command.Flags()
	flagSet.StringSliceVar(&selection.Plugins, PluginsFlagName, nil, "Comma separated plugin names")
	flagSet.StringVar(&selection.PluginFile, PluginFileFlagName, "", "File listing one plugin name per line")
	if includeRecipe {
		flagSet.StringVar(&selection.Recipe, RecipeFlagName, "", "Recipe name to apply")
	}
	return selection
}

// OverrideBool returns the flag value when the user changed the flag and the configured value otherwise.
func OverrideBool(flagSet *pflag.FlagSet, flagName string, flagValue bool, configuredValue bool) bool {
	if Changed(flagSet, flagName) {
		return flagValue
	}
	return configuredValue
}

// OverrideString returns the flag value when the user changed the flag and the configured value otherwise.
func OverrideString(flagSet *pflag.FlagSet, flagName string, flagValue string, configuredValue string) string {
	if Changed(flagSet, flagName) {
		return flagValue
	}
	return configuredValue
}

// OverrideStrings returns the flag values when the user changed the flag and the configured values otherwise.
func OverrideStrings(flagSet *pflag.FlagSet, flagName string, flagValues []string, configuredValues []string) []string {
	if Changed(flagSet, flagName) {
		return append([]string{}, flagValues...)
	}
	return configuredValues
}

// Changed reports whether the named flag exists and was set on the command line.
func Changed(flagSet *pflag.FlagSet, flagName string) bool {
	if flagSet == nil {
		return false
	}
	registeredFlag := flagSet.Lookup(flagName)
	return registeredFlag != nil && registeredFlag.Changed
}
