package modernizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/temirov/pluginmodernizer/internal/cache"
	"github.com/temirov/pluginmodernizer/internal/execshell"
	"github.com/temirov/pluginmodernizer/internal/githubauth"
	"github.com/temirov/pluginmodernizer/internal/githubcli"
	"github.com/temirov/pluginmodernizer/internal/gitrepo"
	"github.com/temirov/pluginmodernizer/internal/jdk"
	"github.com/temirov/pluginmodernizer/internal/maven"
	"github.com/temirov/pluginmodernizer/internal/metadata"
	"github.com/temirov/pluginmodernizer/internal/recipes"
	"github.com/temirov/pluginmodernizer/internal/telemetry"
	"github.com/temirov/pluginmodernizer/internal/ui"
	"github.com/temirov/pluginmodernizer/internal/vcs"
)

const (
	// SourcesDirectoryName is the directory under the cache root holding plugin working copies.
	SourcesDirectoryName = "sources"

	configuredJDKHomeTemplate      = "JAVA_HOME_%d_X64"
	wiringErrorTemplate            = "initialize %s: %w"
	componentExecutorConstant      = "command executor"
	componentCacheConstant         = "cache"
	componentCredentialsConstant   = "github credentials"
	componentHostedClientConstant  = "github client"
	componentWorkingCopiesConstant = "git repository manager"
	componentBuilderConstant       = "maven invoker"
	componentMetadataConstant      = "metadata service"
	componentCatalogueConstant     = "recipe catalogue"
	componentTracingConstant       = "tracing"
	logMessageAnonymous            = "No GitHub credentials found; continuing anonymously"
)

// WiringOptions supplies process-level inputs to BuildDependencies.
type WiringOptions struct {
	Logger               *zap.Logger
	HumanReadableLogging bool
	LookupEnvironment    func(string) (string, bool)
	CommandRunner        execshell.CommandRunner
	HTTPClient           *http.Client
	// CredentialsOptional tolerates missing GitHub credentials outside dry-run mode.
	CredentialsOptional bool
}

// BuildDependencies constructs the production collaborators for config.
func BuildDependencies(config Config, options WiringOptions) (Dependencies, error) {
	settings := config.settings
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lookupEnvironment := options.LookupEnvironment
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	commandRunner := options.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	metrics := telemetry.NewMetrics()
	observers := []execshell.CommandEventObserver{metrics}
	if options.HumanReadableLogging {
		observers = append(observers, ui.NewConsoleCommandEventLogger(logger))
	}
	executor, executorError := execshell.NewShellExecutor(logger, commandRunner, observers...)
	if executorError != nil {
		return Dependencies{}, fmt.Errorf(wiringErrorTemplate, componentExecutorConstant, executorError)
	}

	cacheManager, cacheError := cache.NewManager(settings.CachePath, logger)
	if cacheError == nil {
		cacheError = cacheManager.Init()
	}
	if cacheError != nil {
		return Dependencies{}, fmt.Errorf(wiringErrorTemplate, componentCacheConstant, cacheError)
	}

	tokenSource, credentialsError := resolveTokenSource(logger, settings, lookupEnvironment, options.CredentialsOptional)
	if credentialsError != nil {
		return Dependencies{}, fmt.Errorf(wiringErrorTemplate, componentCredentialsConstant, credentialsError)
	}

	clientOptions := []githubcli.ClientOption{githubcli.WithRateLimiter(rate.NewLimiter(rate.Limit(settings.GitHub.RequestsPerSecond), settings.GitHub.RequestBurst))}
	managerOptions := []gitrepo.ManagerOption{}
	if tokenSource != nil {
		clientOptions = append(clientOptions, githubcli.WithTokenSource(tokenSource))
		managerOptions = append(managerOptions, gitrepo.WithTokenSource(tokenSource))
	}
	hostedClient, clientError := githubcli.NewClient(executor, clientOptions...)
	if clientError != nil {
		return Dependencies{}, fmt.Errorf(wiringErrorTemplate, componentHostedClientConstant, clientError)
	}
	workingCopies, managerError := gitrepo.NewRepositoryManager(executor, managerOptions...)
	if managerError != nil {
		return Dependencies{}, fmt.Errorf(wiringErrorTemplate, componentWorkingCopiesConstant, managerError)
	}

	versionControl := vcs.NewService(logger, vcs.Options{
		UpstreamOwner:        settings.GitHub.Owner,
		ForkOwner:            settings.GitHub.ForkOwner,
		ForkIntoOrganization: settings.GitHub.ForkIntoOrganization,
		BranchName:           settings.Git.Branch,
		WorkingDirectory:     filepath.Join(settings.CachePath, SourcesDirectoryName),
		DryRun:               settings.DryRun,
		SkipPush:             settings.SkipPush,
		SkipPullRequest:      settings.SkipPullRequest,
		DraftPullRequest:     settings.DraftPullRequest,
		ForkPollInterval:     settings.Git.ForkPollInterval,
		ForkPollTimeout:      settings.Git.ForkPollTimeout,
		CommitAuthorName:     settings.Git.AuthorName,
		CommitAuthorEmail:    settings.Git.AuthorEmail,
	}, vcs.Dependencies{Hosted: hostedClient, WorkingCopy: workingCopies})

	builder, builderError := maven.NewInvoker(logger, executor, maven.Options{
		Home:                 settings.Maven.Home,
		MinimumVersion:       settings.Maven.MinimumVersion,
		RewritePluginVersion: settings.Maven.RewritePluginVersion,
		PreviewRecipes:       settings.Maven.PreviewRecipes,
		ExportDatatables:     settings.ExportDatatables,
	})
	if builderError != nil {
		return Dependencies{}, fmt.Errorf(wiringErrorTemplate, componentBuilderConstant, builderError)
	}

	toolchains := jdk.NewInstaller(jdk.InstallerOptions{
		CacheRoot:           settings.CachePath,
		Implementation:      settings.JDK.Implementation,
		DownloadURLTemplate: settings.JDK.DownloadURLTemplate,
		ConfiguredHomes:     configuredJDKHomes(lookupEnvironment),
	}, httpClient, logger)

	metadataService, metadataError := metadata.NewService(logger, metadata.ServiceConfiguration{
		Cache:   cacheManager,
		Fetcher: metadata.NewHTTPFetcher(nil),
		Endpoints: metadata.Endpoints{
			UpdateCenterURL:      settings.Metadata.UpdateCenterURL,
			HealthScoresURL:      settings.Metadata.HealthScoresURL,
			InstallationStatsURL: settings.Metadata.InstallationStatsURL,
			PluginVersionsURL:    settings.Metadata.PluginVersionsURL,
		},
		Observer: metrics,
	})
	if metadataError != nil {
		return Dependencies{}, fmt.Errorf(wiringErrorTemplate, componentMetadataConstant, metadataError)
	}

	catalogue, catalogueError := recipes.DefaultCatalogue()
	if catalogueError != nil {
		return Dependencies{}, fmt.Errorf(wiringErrorTemplate, componentCatalogueConstant, catalogueError)
	}

	tracing, tracingError := telemetry.NewTracerProvider(context.Background(), telemetry.TracingOptions{
		Exporter: settings.Tracing.Exporter,
		Endpoint: settings.Tracing.Endpoint,
		Insecure: settings.Tracing.Insecure,
	}, logger)
	if tracingError != nil {
		return Dependencies{}, fmt.Errorf(wiringErrorTemplate, componentTracingConstant, tracingError)
	}
	tracing.Install()

	return Dependencies{
		Logger:         logger,
		Metadata:       metadataService,
		VersionControl: versionControl,
		Builder:        builder,
		Toolchains:     toolchains,
		Cache:          cacheManager,
		Catalogue:      catalogue,
		Metrics:        metrics,
		Tracing:        tracing,
	}, nil
}

// resolveTokenSource returns nil without error when no credential exists and none is needed.
func resolveTokenSource(logger *zap.Logger, settings Settings, lookupEnvironment func(string) (string, bool), optional bool) (oauth2.TokenSource, error) {
	tokenSource, resolutionError := githubauth.NewTokenSource(logger, githubauth.SourceConfiguration{
		Token: settings.GitHub.Token,
		App: githubauth.AppCredentials{
			AppID:          settings.GitHub.AppID,
			InstallationID: settings.GitHub.InstallationID,
			PrivateKeyPath: settings.GitHub.PrivateKeyPath,
		},
		Lookup:     lookupEnvironment,
		APIBaseURL: settings.GitHub.APIURL,
	})
	if errors.Is(resolutionError, githubauth.ErrTokenNotFound) && (settings.DryRun || optional) {
		logger.Warn(logMessageAnonymous)
		return nil, nil
	}
	return tokenSource, resolutionError
}

func configuredJDKHomes(lookupEnvironment func(string) (string, bool)) map[int]string {
	homes := map[int]string{}
	for _, toolchain := range jdk.All() {
		if home, found := lookupEnvironment(fmt.Sprintf(configuredJDKHomeTemplate, toolchain.Major)); found && len(home) > 0 {
			homes[toolchain.Major] = home
		}
	}
	return homes
}
