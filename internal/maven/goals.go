package maven

import (
	"context"
	"strings"

	"github.com/temirov/pluginmodernizer/internal/plugin"
	"github.com/temirov/pluginmodernizer/internal/recipes"
)

const (
	// DefaultRewritePluginVersion is the OpenRewrite Maven plugin release used for recipes.
	DefaultRewritePluginVersion = "6.1.4"

	cleanGoalConstant               = "clean"
	compileGoalConstant             = "compile"
	verifyGoalConstant              = "verify"
	rewritePluginTemplateConstant   = "org.openrewrite.maven:rewrite-maven-plugin:"
	rewriteRunGoalConstant          = "run"
	rewriteDryRunGoalConstant       = "dryRun"
	activeRecipesPropertyConstant   = "-Drewrite.activeRecipes="
	recipeArtifactsPropertyConstant = "-Drewrite.recipeArtifactCoordinates="
	exportDatatablesPropertyConst   = "-Drewrite.exportDatatables=true"
	skipTestsPropertyConstant       = "-DskipTests"
	goalSeparator                   = ":"
)

var _ plugin.Builder = (*Invoker)(nil)

// Clean runs the clean goal in the plugin working copy.
func (invoker *Invoker) Clean(executionContext context.Context, target *plugin.Plugin) error {
	return invoker.runForPlugin(executionContext, target, nil, cleanGoalConstant)
}

// Compile compiles the plugin without running tests.
func (invoker *Invoker) Compile(executionContext context.Context, target *plugin.Plugin) error {
	return invoker.runForPlugin(executionContext, target, []string{skipTestsPropertyConstant}, compileGoalConstant)
}

// Verify runs the full verify lifecycle including tests.
func (invoker *Invoker) Verify(executionContext context.Context, target *plugin.Plugin) error {
	return invoker.runForPlugin(executionContext, target, nil, verifyGoalConstant)
}

// RunRecipes applies recipes through the OpenRewrite Maven plugin.
func (invoker *Invoker) RunRecipes(executionContext context.Context, target *plugin.Plugin, selected []recipes.Recipe) error {
	if len(selected) == 0 {
		return plugin.ErrStageSkipped
	}
	return invoker.runForPlugin(executionContext, target, invoker.RecipeProperties(selected), invoker.RewriteGoal())
}

// RewriteGoal returns the fully-qualified OpenRewrite goal for the configured mode.
func (invoker *Invoker) RewriteGoal() string {
	goal := rewriteRunGoalConstant
	if invoker.options.PreviewRecipes {
		goal = rewriteDryRunGoalConstant
	}
	return rewritePluginTemplateConstant + invoker.options.RewritePluginVersion + goalSeparator + goal
}

// RecipeProperties returns the system properties selecting recipes and their artifacts.
func (invoker *Invoker) RecipeProperties(selected []recipes.Recipe) []string {
	properties := []string{
		activeRecipesPropertyConstant + recipes.ActiveRecipes(selected),
		recipeArtifactsPropertyConstant + recipes.ArtifactCoordinates(selected),
	}
	if invoker.options.ExportDatatables {
		properties = append(properties, exportDatatablesPropertyConst)
	}
	return properties
}

func (invoker *Invoker) runForPlugin(executionContext context.Context, target *plugin.Plugin, properties []string, goals ...string) error {
	directory := strings.TrimSpace(target.LocalRepository())
	if len(directory) == 0 {
		return ErrProjectDirectoryMissing
	}
	_, invokeError := invoker.Invoke(executionContext, Request{
		Directory:  directory,
		JavaHome:   target.JDKHome(),
		Goals:      goals,
		Properties: properties,
	})
	return invokeError
}
