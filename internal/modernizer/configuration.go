package modernizer

import (
	"time"
)

const (
	defaultConcurrencyConstant       = 4
	defaultRequestsPerSecondConstant = 5.0
	defaultRequestBurstConstant      = 5
	defaultBranchNameConstant        = "plugin-modernizer"
	defaultUpstreamOwnerConstant     = "jenkinsci"
	defaultMavenMinimumVersion       = "3.9.7"
	defaultForkPollIntervalConstant  = 5 * time.Second
	defaultForkPollTimeoutConstant   = 2 * time.Minute
	defaultCommitAuthorNameConstant  = "Jenkins Plugin Modernizer"
	defaultCommitAuthorEmailConstant = "jenkins-plugin-modernizer@users.noreply.github.com"
	defaultTracingExporterConstant   = "none"
	configurationKeySeparator        = "."
)

// Settings is the persisted configuration of the modernizer commands.
type Settings struct {
	Plugins           []string         `mapstructure:"plugins"`
	PluginFile        string           `mapstructure:"plugin_file"`
	Recipe            string           `mapstructure:"recipe"`
	DryRun            bool             `mapstructure:"dry_run"`
	SkipBuild         bool             `mapstructure:"skip_build"`
	SkipPush          bool             `mapstructure:"skip_push"`
	SkipPullRequest   bool             `mapstructure:"skip_pull_request"`
	SkipMetadata      bool             `mapstructure:"skip_metadata"`
	FetchMetadataOnly bool             `mapstructure:"fetch_metadata_only"`
	RemoveLocalData   bool             `mapstructure:"remove_local_data"`
	RemoveForks       bool             `mapstructure:"remove_forks"`
	ExportDatatables  bool             `mapstructure:"export_datatables"`
	DraftPullRequest  bool             `mapstructure:"draft_pull_request"`
	AllowDeprecated   bool             `mapstructure:"allow_deprecated"`
	SkipAPIPlugins    bool             `mapstructure:"skip_api_plugins"`
	SkipMaxScore      bool             `mapstructure:"skip_max_score"`
	MinimumScore      float64          `mapstructure:"min_score" validate:"gte=0,lte=100"`
	FailOnErrors      bool             `mapstructure:"fail_on_errors"`
	Concurrency       int              `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	CachePath         string           `mapstructure:"cache_path" validate:"required"`
	MetricsFile       string           `mapstructure:"metrics_file"`
	GitHub            GitHubSettings   `mapstructure:"github"`
	Git               GitSettings      `mapstructure:"git"`
	Metadata          MetadataSettings `mapstructure:"metadata"`
	Maven             MavenSettings    `mapstructure:"maven"`
	JDK               JDKSettings      `mapstructure:"jdk"`
	Tracing           TracingSettings  `mapstructure:"tracing"`
}

// GitHubSettings configures the hosted Git provider.
type GitHubSettings struct {
	Owner                string  `mapstructure:"owner" validate:"required"`
	ForkOwner            string  `mapstructure:"fork_owner"`
	ForkIntoOrganization bool    `mapstructure:"fork_into_organization"`
	Token                string  `mapstructure:"token"`
	AppID                int64   `mapstructure:"app_id" validate:"gte=0"`
	InstallationID       int64   `mapstructure:"installation_id" validate:"required_with=AppID,gte=0"`
	PrivateKeyPath       string  `mapstructure:"private_key_path" validate:"required_with=AppID"`
	APIURL               string  `mapstructure:"api_url" validate:"omitempty,url"`
	RequestsPerSecond    float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	RequestBurst         int     `mapstructure:"request_burst" validate:"gte=1"`
}

// GitSettings configures working copies and commits.
type GitSettings struct {
	Branch           string        `mapstructure:"branch" validate:"required"`
	AuthorName       string        `mapstructure:"author_name"`
	AuthorEmail      string        `mapstructure:"author_email" validate:"omitempty,email"`
	ForkPollInterval time.Duration `mapstructure:"fork_poll_interval" validate:"gt=0"`
	ForkPollTimeout  time.Duration `mapstructure:"fork_poll_timeout" validate:"gtefield=ForkPollInterval"`
}

// MetadataSettings overrides the remote metadata endpoints.
type MetadataSettings struct {
	UpdateCenterURL      string `mapstructure:"update_center_url" validate:"omitempty,url"`
	HealthScoresURL      string `mapstructure:"health_scores_url" validate:"omitempty,url"`
	InstallationStatsURL string `mapstructure:"installation_stats_url" validate:"omitempty,url"`
	PluginVersionsURL    string `mapstructure:"plugin_versions_url" validate:"omitempty,url"`
}

// MavenSettings configures the build tool.
type MavenSettings struct {
	Home                 string `mapstructure:"home"`
	MinimumVersion       string `mapstructure:"minimum_version" validate:"required"`
	RewritePluginVersion string `mapstructure:"rewrite_plugin_version"`
	PreviewRecipes       bool   `mapstructure:"preview_recipes"`
}

// JDKSettings configures toolchain downloads.
type JDKSettings struct {
	Implementation      string `mapstructure:"implementation"`
	DownloadURLTemplate string `mapstructure:"download_url_template"`
}

// TracingSettings selects the exporter for plugin and stage spans.
type TracingSettings struct {
	Exporter string `mapstructure:"exporter" validate:"omitempty,oneof=none log otlp"`
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Exporter otlp"`
	Insecure bool   `mapstructure:"insecure"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Concurrency: defaultConcurrencyConstant,
		GitHub: GitHubSettings{
			Owner:             defaultUpstreamOwnerConstant,
			RequestsPerSecond: defaultRequestsPerSecondConstant,
			RequestBurst:      defaultRequestBurstConstant,
		},
		Git: GitSettings{
			Branch:           defaultBranchNameConstant,
			AuthorName:       defaultCommitAuthorNameConstant,
			AuthorEmail:      defaultCommitAuthorEmailConstant,
			ForkPollInterval: defaultForkPollIntervalConstant,
			ForkPollTimeout:  defaultForkPollTimeoutConstant,
		},
		Maven: MavenSettings{
			MinimumVersion: defaultMavenMinimumVersion,
		},
		Tracing: TracingSettings{
			Exporter: defaultTracingExporterConstant,
		},
	}
}

// DefaultConfigurationValues returns viper defaults for the settings rooted at prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultSettings()
	key := func(name string) string {
		if len(prefix) == 0 {
			return name
		}
		return prefix + configurationKeySeparator + name
	}
	return map[string]any{
		key("concurrency"):                defaults.Concurrency,
		key("min_score"):                  defaults.MinimumScore,
		key("github.owner"):               defaults.GitHub.Owner,
		key("github.requests_per_second"): defaults.GitHub.RequestsPerSecond,
		key("github.request_burst"):       defaults.GitHub.RequestBurst,
		key("git.branch"):                 defaults.Git.Branch,
		key("git.author_name"):            defaults.Git.AuthorName,
		key("git.author_email"):           defaults.Git.AuthorEmail,
		key("git.fork_poll_interval"):     defaults.Git.ForkPollInterval,
		key("git.fork_poll_timeout"):      defaults.Git.ForkPollTimeout,
		key("maven.minimum_version"):      defaults.Maven.MinimumVersion,
		key("tracing.exporter"):           defaults.Tracing.Exporter,
	}
}
