package modernizer_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/pluginmodernizer/internal/cache"
	"github.com/temirov/pluginmodernizer/internal/githubcli"
	"github.com/temirov/pluginmodernizer/internal/gitrepo"
	"github.com/temirov/pluginmodernizer/internal/jdk"
	"github.com/temirov/pluginmodernizer/internal/metadata"
	"github.com/temirov/pluginmodernizer/internal/modernizer"
	"github.com/temirov/pluginmodernizer/internal/plugin"
	"github.com/temirov/pluginmodernizer/internal/recipes"
	"github.com/temirov/pluginmodernizer/internal/telemetry"
	"github.com/temirov/pluginmodernizer/internal/vcs"
)

const (
	testRecipeName      = "AddPluginsBom"
	testForkOwner       = "modernizer-bot"
	testAbsentPlugin    = "absent-plugin"
	testHealthyPlugin   = "mailer"
	testAPIPlugin       = "bom-api"
	testDeprecated      = "old-plugin"
	updateCenterPayload = `{"plugins":{"mailer":{"name":"mailer","version":"472.vf7c289a_4b_420","scm":"https://github.com/jenkinsci/mailer-plugin","defaultBranch":"master","requiredCore":"2.440.3"},"bom-api":{"name":"bom-api","scm":"https://github.com/jenkinsci/bom-api-plugin","requiredCore":"2.440.3","labels":["api-plugin"]},"old-plugin":{"name":"old-plugin","scm":"https://github.com/jenkinsci/old-plugin","requiredCore":"2.361.4"}},"deprecations":{"old-plugin":{"url":"https://example.com/deprecated"}}}`
	healthScoresPayload = `{"plugins":{"mailer":{"value":82},"bom-api":{"value":100},"old-plugin":{"value":40}}}`
	installationsCSV    = "name,count\nmailer,120000\nbom-api,5000\nold-plugin,12\n"
	pluginVersionsJSON  = `{"plugins":{"mailer":{"472.v2":{"version":"472.v2","requiredCore":"2.440.3"}}}}`
	projectFileContents = `<project>
  <parent>
    <groupId>org.jenkins-ci.plugins</groupId>
    <artifactId>plugin</artifactId>
    <version>4.80</version>
  </parent>
  <artifactId>mailer</artifactId>
  <version>${revision}${changelist}</version>
  <packaging>hpi</packaging>
  <properties>
    <revision>472</revision>
    <changelist>-SNAPSHOT</changelist>
    <jenkins.version>2.440.3</jenkins.version>
  </properties>
</project>
`
	markerFileName = "modernized.txt"
)

func newRegistryServer(testInstance *testing.T) *httptest.Server {
	testInstance.Helper()
	payloads := map[string]string{
		"/update-center.json":   updateCenterPayload,
		"/scores":               healthScoresPayload,
		"/stats/202609.csv":     installationsCSV,
		"/plugin-versions.json": pluginVersionsJSON,
	}
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		payload, known := payloads[request.URL.Path]
		if !known {
			http.NotFound(responseWriter, request)
			return
		}
		_, _ = responseWriter.Write([]byte(payload))
	}))
	testInstance.Cleanup(server.Close)
	return server
}

type stubHostedClient struct {
	mutex        sync.Mutex
	repositories map[string]githubcli.RepositoryMetadata
	forkCalls    int
	createCalls  int
	deleteCalls  int
}

func newStubHostedClient() *stubHostedClient {
	return &stubHostedClient{repositories: map[string]githubcli.RepositoryMetadata{
		"jenkinsci/mailer-plugin": {NameWithOwner: "jenkinsci/mailer-plugin", Owner: "jenkinsci", DefaultBranch: "master"},
	}}
}

func (stub *stubHostedClient) ResolveRepoMetadata(_ context.Context, repository string) (githubcli.RepositoryMetadata, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	metadata, found := stub.repositories[repository]
	if !found {
		return githubcli.RepositoryMetadata{}, githubcli.ErrRepositoryNotFound
	}
	return metadata, nil
}

func (stub *stubHostedClient) ForkRepository(_ context.Context, repository string, _ string) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.forkCalls++
	_, name, _ := strings.Cut(repository, "/")
	identifier := githubcli.RepositoryIdentifier(testForkOwner, name)
	stub.repositories[identifier] = githubcli.RepositoryMetadata{
		NameWithOwner:       identifier,
		Owner:               testForkOwner,
		IsFork:              true,
		ParentNameWithOwner: repository,
	}
	return nil
}

func (stub *stubHostedClient) ListPullRequests(context.Context, string, githubcli.PullRequestListOptions) ([]githubcli.PullRequest, error) {
	return nil, nil
}

func (stub *stubHostedClient) CreatePullRequest(context.Context, githubcli.PullRequestCreateOptions) (string, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.createCalls++
	return "https://github.com/jenkinsci/mailer-plugin/pull/1", nil
}

func (stub *stubHostedClient) DeleteRepository(_ context.Context, repository string) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.deleteCalls++
	delete(stub.repositories, repository)
	return nil
}

type stubWorkingCopy struct {
	mutex     sync.Mutex
	cloneURLs []string
	commits   int
	pushes    int
}

func (stub *stubWorkingCopy) Clone(_ context.Context, remoteURL string, destination string) error {
	stub.mutex.Lock()
	stub.cloneURLs = append(stub.cloneURLs, remoteURL)
	stub.mutex.Unlock()
	if directoryError := os.MkdirAll(destination, 0o755); directoryError != nil {
		return directoryError
	}
	return os.WriteFile(filepath.Join(destination, "pom.xml"), []byte(projectFileContents), 0o644)
}

func (stub *stubWorkingCopy) CheckoutBranch(context.Context, string, string) error {
	return nil
}

func (stub *stubWorkingCopy) CheckCleanWorktree(_ context.Context, repositoryPath string) (bool, error) {
	_, statError := os.Stat(filepath.Join(repositoryPath, markerFileName))
	return errors.Is(statError, os.ErrNotExist), nil
}

func (stub *stubWorkingCopy) CommitAll(_ context.Context, repositoryPath string, _ gitrepo.CommitOptions) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.commits++
	return os.Remove(filepath.Join(repositoryPath, markerFileName))
}

func (stub *stubWorkingCopy) Push(context.Context, string, string, string) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.pushes++
	return nil
}

func (stub *stubWorkingCopy) CountUnpushedCommits(context.Context, string, string, string) (int, error) {
	return 0, nil
}

func (stub *stubWorkingCopy) GetRemoteURL(context.Context, string, string) (string, error) {
	return "", nil
}

func (stub *stubWorkingCopy) SetRemoteURL(context.Context, string, string, string) error {
	return nil
}

type stubBuilder struct {
	mutex           sync.Mutex
	goals           []string
	validationError error
	compileError    error
}

func (stub *stubBuilder) record(goal string) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.goals = append(stub.goals, goal)
}

func (stub *stubBuilder) Validate(context.Context) error {
	return stub.validationError
}

func (stub *stubBuilder) Clean(_ context.Context, target *plugin.Plugin) error {
	stub.record("clean " + target.Name())
	return nil
}

func (stub *stubBuilder) Compile(_ context.Context, target *plugin.Plugin) error {
	stub.record("compile " + target.Name())
	return stub.compileError
}

func (stub *stubBuilder) Verify(_ context.Context, target *plugin.Plugin) error {
	stub.record("verify " + target.Name())
	return nil
}

func (stub *stubBuilder) RunRecipes(_ context.Context, target *plugin.Plugin, selected []recipes.Recipe) error {
	stub.record("recipes " + target.Name() + " " + recipes.ActiveRecipes(selected))
	return os.WriteFile(filepath.Join(target.LocalRepository(), markerFileName), []byte("changed\n"), 0o644)
}

type stubToolchains struct {
	mutex     sync.Mutex
	requested []int
}

func (stub *stubToolchains) Ensure(_ context.Context, toolchain jdk.JDK) (string, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.requested = append(stub.requested, toolchain.Major)
	return filepath.Join("/opt", toolchain.String()), nil
}

type runFixture struct {
	modernizer   *modernizer.Modernizer
	dependencies modernizer.Dependencies
	hosted       *stubHostedClient
	workingCopy  *stubWorkingCopy
	builder      *stubBuilder
	toolchains   *stubToolchains
	cache        *cache.Manager
	metrics      *telemetry.Metrics
	logs         *observer.ObservedLogs
}

func registrySettings(testInstance *testing.T) modernizer.Settings {
	testInstance.Helper()
	server := newRegistryServer(testInstance)
	settings := modernizer.DefaultSettings()
	settings.Recipe = testRecipeName
	settings.DryRun = true
	settings.CachePath = testInstance.TempDir()
	settings.Maven.Home = "/opt/maven"
	settings.Metadata.UpdateCenterURL = server.URL + "/update-center.json"
	settings.Metadata.HealthScoresURL = server.URL + "/scores"
	settings.Metadata.InstallationStatsURL = server.URL + "/stats/{month}.csv"
	settings.Metadata.PluginVersionsURL = server.URL + "/plugin-versions.json"
	return settings
}

// newFixtureDependencies wires real cache, metadata and version control services around stub providers.
func newFixtureDependencies(testInstance *testing.T, config modernizer.Config) *runFixture {
	testInstance.Helper()
	settings := config.Settings()

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	manager, managerError := cache.NewManager(settings.CachePath, logger)
	require.NoError(testInstance, managerError)
	metrics := telemetry.NewMetrics()

	metadataService, metadataError := metadata.NewService(logger, metadata.ServiceConfiguration{
		Cache:   manager,
		Fetcher: metadata.NewHTTPFetcher(nil),
		Endpoints: metadata.Endpoints{
			UpdateCenterURL:      settings.Metadata.UpdateCenterURL,
			HealthScoresURL:      settings.Metadata.HealthScoresURL,
			InstallationStatsURL: settings.Metadata.InstallationStatsURL,
			PluginVersionsURL:    settings.Metadata.PluginVersionsURL,
		},
		Observer: metrics,
		Clock: func() time.Time {
			return time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
		},
	})
	require.NoError(testInstance, metadataError)

	hosted := newStubHostedClient()
	workingCopy := &stubWorkingCopy{}
	versionControl := vcs.NewService(logger, vcs.Options{
		ForkOwner:        settings.GitHub.ForkOwner,
		BranchName:       settings.Git.Branch,
		WorkingDirectory: filepath.Join(settings.CachePath, modernizer.SourcesDirectoryName),
		DryRun:           settings.DryRun,
		SkipPush:         settings.SkipPush,
		SkipPullRequest:  settings.SkipPullRequest,
	}, vcs.Dependencies{
		Hosted:      hosted,
		WorkingCopy: workingCopy,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})

	catalogue, catalogueError := recipes.DefaultCatalogue()
	require.NoError(testInstance, catalogueError)

	builder := &stubBuilder{}
	toolchains := &stubToolchains{}
	return &runFixture{
		dependencies: modernizer.Dependencies{
			Logger:         logger,
			Metadata:       metadataService,
			VersionControl: versionControl,
			Builder:        builder,
			Toolchains:     toolchains,
			Cache:          manager,
			Catalogue:      catalogue,
			Metrics:        metrics,
		},
		hosted:      hosted,
		workingCopy: workingCopy,
		builder:     builder,
		toolchains:  toolchains,
		cache:       manager,
		metrics:     metrics,
		logs:        logs,
	}
}

func newRunFixture(testInstance *testing.T, plugins []string, override func(*modernizer.Settings)) *runFixture {
	testInstance.Helper()
	config, configError := modernizer.NewConfigBuilder(registrySettings(testInstance)).
		WithPlugins(plugins).
		WithOverride(override).
		WithEnvironmentLookup(func(string) (string, bool) { return "", false }).
		Build()
	require.NoError(testInstance, configError)

	fixture := newFixtureDependencies(testInstance, config)
	instance, instanceError := modernizer.NewModernizer(config, fixture.dependencies)
	require.NoError(testInstance, instanceError)
	fixture.modernizer = instance
	return fixture
}

func TestNewModernizerRequiresDependencies(testInstance *testing.T) {
	config, configError := modernizer.NewConfigBuilder(modernizer.DefaultSettings()).
		WithPlugins([]string{testHealthyPlugin}).
		WithRecipe(testRecipeName).
		WithOverride(func(settings *modernizer.Settings) {
			settings.DryRun = true
			settings.CachePath = testInstance.TempDir()
			settings.Maven.Home = "/opt/maven"
		}).
		Build()
	require.NoError(testInstance, configError)

	_, constructionError := modernizer.NewModernizer(config, modernizer.Dependencies{})
	require.Error(testInstance, constructionError)
	require.Contains(testInstance, constructionError.Error(), "not configured")
}

func TestDryRunProcessesHealthyPluginAndReportsAbsentPlugin(testInstance *testing.T) {
	fixture := newRunFixture(testInstance, []string{testHealthyPlugin, testAbsentPlugin}, nil)

	summary, runError := fixture.modernizer.Run(context.Background())
	require.NoError(testInstance, runError)
	require.Len(testInstance, summary.Results, 2)
	require.Equal(testInstance, 1, summary.Failed())

	healthy, found := summary.Result(testHealthyPlugin)
	require.True(testInstance, found)
	require.Empty(testInstance, healthy.Errors)
	require.Equal(testInstance, "mailer-plugin", healthy.RepositoryName)
	require.Equal(testInstance, plugin.StageBranched, healthy.Stage)
	require.Equal(testInstance, plugin.BuildStepVerified, healthy.BuildStep)
	require.True(testInstance, healthy.HasCommits)

	absent, found := summary.Result(testAbsentPlugin)
	require.True(testInstance, found)
	require.Len(testInstance, absent.Errors, 1)
	require.Contains(testInstance, absent.Errors[0].Error(), "not found in update center")
	require.Equal(testInstance, plugin.StageUnforked, absent.Stage)
	require.Equal(testInstance, plugin.BuildStepNone, absent.BuildStep)

	require.Zero(testInstance, fixture.hosted.forkCalls)
	require.Zero(testInstance, fixture.hosted.createCalls)
	require.Zero(testInstance, fixture.workingCopy.commits)
	require.Zero(testInstance, fixture.workingCopy.pushes)
	require.Equal(testInstance, []string{"https://github.com/jenkinsci/mailer-plugin.git"}, fixture.workingCopy.cloneURLs)

	require.Equal(testInstance, []string{
		"clean mailer",
		"compile mailer",
		"recipes mailer io.jenkins.tools.pluginmodernizer.AddPluginsBom",
		"verify mailer",
	}, fixture.builder.goals)
	require.Equal(testInstance, []int{11}, fixture.toolchains.requested)

	published, loadError := plugin.LoadMetadata(fixture.cache, testHealthyPlugin)
	require.NoError(testInstance, loadError)
	require.NotNil(testInstance, published)
	require.Equal(testInstance, "4.80", published.ParentVersion)
	require.Equal(testInstance, "2.440.3", published.JenkinsVersion)

	require.Equal(testInstance, 1, fixture.logs.FilterMessage("Plugin stage failed").Len())
}

func TestRunAppliesRegistryPolicies(testInstance *testing.T) {
	fixture := newRunFixture(testInstance, []string{testAPIPlugin, testDeprecated, testHealthyPlugin}, func(settings *modernizer.Settings) {
		settings.SkipAPIPlugins = true
		settings.FetchMetadataOnly = true
	})

	summary, runError := fixture.modernizer.Run(context.Background())
	require.NoError(testInstance, runError)

	apiPlugin, _ := summary.Result(testAPIPlugin)
	require.Empty(testInstance, apiPlugin.Errors)
	require.Equal(testInstance, "API plugin", apiPlugin.SkipReason)
	require.Equal(testInstance, plugin.StageUnforked, apiPlugin.Stage)

	deprecated, _ := summary.Result(testDeprecated)
	require.Len(testInstance, deprecated.Errors, 1)
	var policyError plugin.PolicyError
	require.ErrorAs(testInstance, deprecated.Errors[0], &policyError)
	require.Equal(testInstance, "plugin is deprecated", policyError.Reason)

	healthy, _ := summary.Result(testHealthyPlugin)
	require.Empty(testInstance, healthy.Errors)
	require.Equal(testInstance, plugin.StageBranched, healthy.Stage)
	require.Equal(testInstance, plugin.BuildStepNone, healthy.BuildStep)
	require.Empty(testInstance, fixture.builder.goals)
	require.Empty(testInstance, fixture.toolchains.requested)
}

func TestRunHonorsMinimumScore(testInstance *testing.T) {
	fixture := newRunFixture(testInstance, []string{testHealthyPlugin}, func(settings *modernizer.Settings) {
		settings.MinimumScore = 90
	})

	summary, runError := fixture.modernizer.Run(context.Background())
	require.NoError(testInstance, runError)

	healthy, _ := summary.Result(testHealthyPlugin)
	require.Len(testInstance, healthy.Errors, 1)
	require.Contains(testInstance, healthy.Errors[0].Error(), "health score below 90")
	require.Equal(testInstance, plugin.StageUnforked, healthy.Stage)
}

func TestRunProcessesUnscoredPluginWithScoreGates(testInstance *testing.T) {
	emptyScores := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		_, _ = responseWriter.Write([]byte(`{"plugins":{}}`))
	}))
	testInstance.Cleanup(emptyScores.Close)

	fixture := newRunFixture(testInstance, []string{testHealthyPlugin}, func(settings *modernizer.Settings) {
		settings.Metadata.HealthScoresURL = emptyScores.URL
		settings.SkipMaxScore = true
		settings.MinimumScore = 90
		settings.FetchMetadataOnly = true
	})

	summary, runError := fixture.modernizer.Run(context.Background())
	require.NoError(testInstance, runError)

	healthy, _ := summary.Result(testHealthyPlugin)
	require.Empty(testInstance, healthy.Errors)
	require.Empty(testInstance, healthy.SkipReason)
	require.Equal(testInstance, plugin.StageBranched, healthy.Stage)
}

func TestRunStopsPluginAtFirstBuildFailure(testInstance *testing.T) {
	fixture := newRunFixture(testInstance, []string{testHealthyPlugin}, func(settings *modernizer.Settings) {
		settings.FailOnErrors = true
	})
	fixture.builder.compileError = errors.New("compilation failure")

	summary, runError := fixture.modernizer.Run(context.Background())
	var failuresError modernizer.PluginFailuresError
	require.ErrorAs(testInstance, runError, &failuresError)
	require.Equal(testInstance, modernizer.PluginFailuresError{Failed: 1, Total: 1}, failuresError)

	healthy, _ := summary.Result(testHealthyPlugin)
	require.Len(testInstance, healthy.Errors, 1)
	require.EqualError(testInstance, healthy.Errors[0], "compilation failure")
	require.Equal(testInstance, plugin.BuildStepCleaned, healthy.BuildStep)
	require.False(testInstance, healthy.HasCommits)
	require.Equal(testInstance, []string{"clean mailer", "compile mailer"}, fixture.builder.goals)
}

func TestRunRejectsConfigurationBeforeProcessing(testInstance *testing.T) {
	unknownRecipe := newRunFixture(testInstance, []string{testHealthyPlugin}, func(settings *modernizer.Settings) {
		settings.Recipe = "NoSuchRecipe"
	})
	_, recipeError := unknownRecipe.modernizer.Run(context.Background())
	var configurationError modernizer.ConfigurationError
	require.ErrorAs(testInstance, recipeError, &configurationError)
	var unknownRecipeError recipes.UnknownRecipeError
	require.ErrorAs(testInstance, recipeError, &unknownRecipeError)

	invalidBuildTool := newRunFixture(testInstance, []string{testHealthyPlugin}, nil)
	invalidBuildTool.builder.validationError = errors.New("bin/mvn not found")
	_, validationError := invalidBuildTool.modernizer.Run(context.Background())
	require.ErrorAs(testInstance, validationError, &configurationError)
	require.Empty(testInstance, invalidBuildTool.workingCopy.cloneURLs)
}

func TestCleanupRemovesLocalDataOnly(testInstance *testing.T) {
	fixture := newRunFixture(testInstance, []string{testHealthyPlugin}, nil)
	_, runError := fixture.modernizer.Run(context.Background())
	require.NoError(testInstance, runError)

	sourcesDirectory := filepath.Join(fixture.cache.Root(), modernizer.SourcesDirectoryName, "mailer")
	_, statError := os.Stat(sourcesDirectory)
	require.NoError(testInstance, statError)

	summary, cleanupError := fixture.modernizer.Cleanup(context.Background())
	require.NoError(testInstance, cleanupError)
	require.Zero(testInstance, summary.Failed())

	_, statError = os.Stat(sourcesDirectory)
	require.ErrorIs(testInstance, statError, os.ErrNotExist)
	require.Zero(testInstance, fixture.hosted.deleteCalls)
}
