package modernizer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	pathutils "github.com/temirov/pluginmodernizer/internal/utils/path"
)

const (
	mavenHomeEnvironmentConstant     = "MAVEN_HOME"
	legacyMavenHomeEnvironment       = "M2_HOME"
	pluginFileCommentPrefixConstant  = "#"
	invalidConfigurationTemplate     = "invalid configuration: %v"
	pluginFileReadErrorTemplate      = "read plugin file %s: %w"
	noPluginsMessageConstant         = "no plugins selected; pass --plugins or --plugin-file"
	recipeRequiredMessageConstant    = "no recipe selected; pass --recipe"
	forkOwnerRequiredMessageConstant = "github.fork_owner is required unless running in dry-run mode"
	metadataModesConflictMessage     = "fetch_metadata_only and skip_metadata cannot both be enabled"
	mavenHomeRequiredMessageConstant = "maven.home is required; set it or export MAVEN_HOME"
)

var (
	// ErrNoPlugins indicates that neither the configuration nor the command line selected a plugin.
	ErrNoPlugins = errors.New(noPluginsMessageConstant)
	// ErrRecipeRequired indicates that no recipe was selected.
	ErrRecipeRequired = errors.New(recipeRequiredMessageConstant)
	// ErrForkOwnerRequired indicates a publishing run without an account to fork into.
	ErrForkOwnerRequired = errors.New(forkOwnerRequiredMessageConstant)
	// ErrConflictingMetadataModes indicates mutually exclusive metadata switches.
	ErrConflictingMetadataModes = errors.New(metadataModesConflictMessage)
	// ErrMavenHomeRequired indicates that no Maven installation was configured.
	ErrMavenHomeRequired = errors.New(mavenHomeRequiredMessageConstant)
)

// ConfigurationError reports settings rejected before any plugin is processed.
type ConfigurationError struct {
	Cause error
}

// Error describes the rejected configuration.
func (configurationError ConfigurationError) Error() string {
	return fmt.Sprintf(invalidConfigurationTemplate, configurationError.Cause)
}

// Unwrap exposes the underlying cause.
func (configurationError ConfigurationError) Unwrap() error {
	return configurationError.Cause
}

// Requirement names a setting a command cannot run without.
type Requirement int

// Requirements enforced by ConfigBuilder.Build.
const (
	RequirePlugins Requirement = 1 << iota
	RequireRecipe
	// RequireForkOwner applies outside dry-run mode only.
	RequireForkOwner
	// RequireBuildTool applies unless only metadata is fetched.
	RequireBuildTool

	// RequireAll is what a modernization run needs.
	RequireAll = RequirePlugins | RequireRecipe | RequireForkOwner | RequireBuildTool
)

func (requirements Requirement) includes(requirement Requirement) bool {
	return requirements&requirement != 0
}

// Config is the validated, immutable configuration of one run.
type Config struct {
	settings Settings
}

// Settings returns a copy of the validated settings.
func (config Config) Settings() Settings {
	copied := config.settings
	copied.Plugins = append([]string(nil), config.settings.Plugins...)
	return copied
}

// Plugins returns the selected plugin names in selection order.
func (config Config) Plugins() []string {
	return append([]string(nil), config.settings.Plugins...)
}

// Recipe returns the selected recipe name.
func (config Config) Recipe() string {
	return config.settings.Recipe
}

// DryRun reports whether provider-side changes are suppressed.
func (config Config) DryRun() bool {
	return config.settings.DryRun
}

// Concurrency returns the number of plugins processed in parallel.
func (config Config) Concurrency() int {
	return config.settings.Concurrency
}

// ConfigBuilder assembles a Config from persisted settings and command-line overrides.
type ConfigBuilder struct {
	settings          Settings
	requirements      Requirement
	overrides         []func(*Settings)
	readFile          func(string) ([]byte, error)
	lookupEnvironment func(string) (string, bool)
	userCacheDir      func() (string, error)
	homeExpander      *pathutils.HomeExpander
}

// NewConfigBuilder starts a builder from settings.
func NewConfigBuilder(settings Settings) *ConfigBuilder {
	return &ConfigBuilder{
		settings:          settings,
		requirements:      RequireAll,
		readFile:          os.ReadFile,
		lookupEnvironment: os.LookupEnv,
		userCacheDir:      os.UserCacheDir,
		homeExpander:      pathutils.NewHomeExpander(),
	}
}

// WithPlugins replaces the selected plugins when names is non-empty.
func (builder *ConfigBuilder) WithPlugins(names []string) *ConfigBuilder {
	if len(names) == 0 {
		return builder
	}
	return builder.WithOverride(func(settings *Settings) {
		settings.Plugins = append([]string(nil), names...)
	})
}

// WithRecipe replaces the selected recipe when name is non-empty.
func (builder *ConfigBuilder) WithRecipe(name string) *ConfigBuilder {
	if len(strings.TrimSpace(name)) == 0 {
		return builder
	}
	return builder.WithOverride(func(settings *Settings) {
		settings.Recipe = name
	})
}

// WithOverride registers a mutation applied before validation.
func (builder *ConfigBuilder) WithOverride(override func(*Settings)) *ConfigBuilder {
	if override != nil {
		builder.overrides = append(builder.overrides, override)
	}
	return builder
}

// WithRequirements replaces the settings Build insists on. The default is RequireAll.
func (builder *ConfigBuilder) WithRequirements(requirements Requirement) *ConfigBuilder {
	builder.requirements = requirements
	return builder
}

// WithEnvironmentLookup replaces the process environment used for defaults.
func (builder *ConfigBuilder) WithEnvironmentLookup(lookup func(string) (string, bool)) *ConfigBuilder {
	if lookup != nil {
		builder.lookupEnvironment = lookup
	}
	return builder
}

// Build normalizes and validates the settings. Every failure is a ConfigurationError.
func (builder *ConfigBuilder) Build() (Config, error) {
	settings := builder.settings
	settings.Plugins = append([]string(nil), builder.settings.Plugins...)
	for _, override := range builder.overrides {
		override(&settings)
	}

	if normalizeError := builder.normalize(&settings); normalizeError != nil {
		return Config{}, ConfigurationError{Cause: normalizeError}
	}
	if validationError := validateSettings(settings, builder.requirements); validationError != nil {
		return Config{}, ConfigurationError{Cause: validationError}
	}
	return Config{settings: settings}, nil
}

func (builder *ConfigBuilder) normalize(settings *Settings) error {
	settings.Recipe = strings.TrimSpace(settings.Recipe)
	settings.PluginFile = builder.homeExpander.Expand(strings.TrimSpace(settings.PluginFile))
	settings.CachePath = builder.homeExpander.Expand(strings.TrimSpace(settings.CachePath))
	if len(settings.CachePath) == 0 {
		settings.CachePath = builder.homeExpander.DefaultCacheRoot(builder.userCacheDir)
	}
	settings.MetricsFile = builder.homeExpander.Expand(strings.TrimSpace(settings.MetricsFile))
	settings.GitHub.Owner = strings.TrimSpace(settings.GitHub.Owner)
	settings.GitHub.ForkOwner = strings.TrimSpace(settings.GitHub.ForkOwner)
	settings.GitHub.PrivateKeyPath = builder.homeExpander.Expand(strings.TrimSpace(settings.GitHub.PrivateKeyPath))
	settings.Maven.Home = builder.homeExpander.Expand(strings.TrimSpace(settings.Maven.Home))
	if len(settings.Maven.Home) == 0 {
		settings.Maven.Home = builder.environmentMavenHome()
	}

	names := settings.Plugins
	if len(settings.PluginFile) > 0 {
		content, readError := builder.readFile(settings.PluginFile)
		if readError != nil {
			return fmt.Errorf(pluginFileReadErrorTemplate, settings.PluginFile, readError)
		}
		names = append(names, parsePluginList(content)...)
	}
	settings.Plugins = normalizePluginNames(names)
	return nil
}

func (builder *ConfigBuilder) environmentMavenHome() string {
	for _, variable := range []string{mavenHomeEnvironmentConstant, legacyMavenHomeEnvironment} {
		if value, found := builder.lookupEnvironment(variable); found && len(strings.TrimSpace(value)) > 0 {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func validateSettings(settings Settings, requirements Requirement) error {
	structValidator := validator.New(validator.WithRequiredStructEnabled())
	if validationError := structValidator.Struct(settings); validationError != nil {
		return validationError
	}
	switch {
	case requirements.includes(RequirePlugins) && len(settings.Plugins) == 0:
		return ErrNoPlugins
	case requirements.includes(RequireRecipe) && len(settings.Recipe) == 0:
		return ErrRecipeRequired
	case requirements.includes(RequireForkOwner) && !settings.DryRun && len(settings.GitHub.ForkOwner) == 0:
		return ErrForkOwnerRequired
	case settings.FetchMetadataOnly && settings.SkipMetadata:
		return ErrConflictingMetadataModes
	case requirements.includes(RequireBuildTool) && !settings.FetchMetadataOnly && len(settings.Maven.Home) == 0:
		return ErrMavenHomeRequired
	}
	return nil
}

// parsePluginList reads one plugin name per line, ignoring blank lines and # comments.
func parsePluginList(content []byte) []string {
	names := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, pluginFileCommentPrefixConstant) {
			continue
		}
		names = append(names, line)
	}
	return names
}

func normalizePluginNames(names []string) []string {
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if len(trimmed) == 0 || slices.Contains(normalized, trimmed) {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
