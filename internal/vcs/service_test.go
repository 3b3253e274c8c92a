package vcs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/pluginmodernizer/internal/githubcli"
	"github.com/temirov/pluginmodernizer/internal/gitrepo"
	"github.com/temirov/pluginmodernizer/internal/plugin"
	"github.com/temirov/pluginmodernizer/internal/vcs"
)

const (
	testUpstreamOwner = "jenkinsci"
	testForkOwner     = "modernizer-bot"
	testPluginName    = "mailer"
	testRepository    = "mailer-plugin"
	testUpstream      = "jenkinsci/mailer-plugin"
	testFork          = "modernizer-bot/mailer-plugin"
	testTitle         = "Modernize mailer"
)

type stubHostedClient struct {
	repositories     map[string]githubcli.RepositoryMetadata
	pullRequests     []githubcli.PullRequest
	forkCalls        int
	createCalls      int
	deleteCalls      int
	forkVisibleAfter int
	lookups          map[string]int
	createOptions    githubcli.PullRequestCreateOptions
	listOptions      githubcli.PullRequestListOptions
}

func newStubHostedClient() *stubHostedClient {
	return &stubHostedClient{
		repositories: map[string]githubcli.RepositoryMetadata{
			testUpstream: {NameWithOwner: testUpstream, Owner: testUpstreamOwner, DefaultBranch: "master"},
		},
		lookups: map[string]int{},
	}
}

func (stub *stubHostedClient) ResolveRepoMetadata(_ context.Context, repository string) (githubcli.RepositoryMetadata, error) {
	stub.lookups[repository]++
	metadata, found := stub.repositories[repository]
	if !found {
		return githubcli.RepositoryMetadata{}, githubcli.ErrRepositoryNotFound
	}
	return metadata, nil
}

func (stub *stubHostedClient) ForkRepository(_ context.Context, repository string, _ string) error {
	stub.forkCalls++
	_, name, _ := strings.Cut(repository, "/")
	identifier := githubcli.RepositoryIdentifier(testForkOwner, name)
	if stub.forkVisibleAfter > 0 {
		stub.forkVisibleAfter--
		return nil
	}
	stub.repositories[identifier] = githubcli.RepositoryMetadata{
		NameWithOwner:       identifier,
		Owner:               testForkOwner,
		DefaultBranch:       "master",
		IsFork:              true,
		ParentNameWithOwner: repository,
	}
	return nil
}

func (stub *stubHostedClient) ListPullRequests(_ context.Context, _ string, options githubcli.PullRequestListOptions) ([]githubcli.PullRequest, error) {
	stub.listOptions = options
	matching := []githubcli.PullRequest{}
	for _, pullRequest := range stub.pullRequests {
		if pullRequest.HeadRefName == options.HeadBranch {
			matching = append(matching, pullRequest)
		}
	}
	return matching, nil
}

func (stub *stubHostedClient) CreatePullRequest(_ context.Context, options githubcli.PullRequestCreateOptions) (string, error) {
	stub.createCalls++
	stub.createOptions = options
	url := "https://github.com/jenkinsci/mailer-plugin/pull/1"
	owner, branch, _ := strings.Cut(options.HeadBranch, ":")
	stub.pullRequests = append(stub.pullRequests, githubcli.PullRequest{Number: 1, Title: options.Title, HeadRefName: branch, HeadRepositoryOwner: owner, URL: url})
	return url, nil
}

func (stub *stubHostedClient) DeleteRepository(_ context.Context, repository string) error {
	stub.deleteCalls++
	delete(stub.repositories, repository)
	return nil
}

type stubWorkingCopy struct {
	clean         bool
	unpushed      int
	cloneURL      string
	remotes       map[string]string
	checkouts     []string
	commits       []gitrepo.CommitOptions
	pushes        []string
	commitFailure error
}

func (stub *stubWorkingCopy) Clone(executionContext context.Context, remoteURL string, destination string) error {
	stub.cloneURL = remoteURL
	if remoteError := stub.SetRemoteURL(executionContext, destination, gitrepo.OriginRemoteName, remoteURL); remoteError != nil {
		return remoteError
	}
	return os.MkdirAll(destination, 0o755)
}

func (stub *stubWorkingCopy) CheckoutBranch(_ context.Context, _ string, branchName string) error {
	stub.checkouts = append(stub.checkouts, branchName)
	return nil
}

func (stub *stubWorkingCopy) CheckCleanWorktree(context.Context, string) (bool, error) {
	return stub.clean, nil
}

func (stub *stubWorkingCopy) CommitAll(_ context.Context, _ string, options gitrepo.CommitOptions) error {
	if stub.commitFailure != nil {
		return stub.commitFailure
	}
	stub.commits = append(stub.commits, options)
	stub.clean = true
	return nil
}

func (stub *stubWorkingCopy) Push(_ context.Context, _ string, remoteName string, branchName string) error {
	stub.pushes = append(stub.pushes, remoteName+" "+branchName)
	return nil
}

func (stub *stubWorkingCopy) CountUnpushedCommits(context.Context, string, string, string) (int, error) {
	return stub.unpushed, nil
}

func (stub *stubWorkingCopy) GetRemoteURL(_ context.Context, _ string, remoteName string) (string, error) {
	remoteURL, found := stub.remotes[remoteName]
	if !found {
		return "", errors.New("no such remote '" + remoteName + "'")
	}
	return remoteURL, nil
}

func (stub *stubWorkingCopy) SetRemoteURL(_ context.Context, _ string, remoteName string, remoteURL string) error {
	if stub.remotes == nil {
		stub.remotes = map[string]string{}
	}
	stub.remotes[remoteName] = remoteURL
	return nil
}

type serviceFixture struct {
	service     *vcs.Service
	hosted      *stubHostedClient
	workingCopy *stubWorkingCopy
	sleeps      *[]time.Duration
	logs        *observer.ObservedLogs
	directory   string
}

func newServiceFixture(testInstance *testing.T, options vcs.Options) serviceFixture {
	testInstance.Helper()
	core, logs := observer.New(zap.InfoLevel)
	directory := testInstance.TempDir()
	options.UpstreamOwner = testUpstreamOwner
	options.ForkOwner = testForkOwner
	options.WorkingDirectory = directory
	hosted := newStubHostedClient()
	workingCopy := &stubWorkingCopy{}
	sleeps := []time.Duration{}
	service := vcs.NewService(zap.New(core), options, vcs.Dependencies{
		Hosted:      hosted,
		WorkingCopy: workingCopy,
		Sleep: func(_ context.Context, duration time.Duration) error {
			sleeps = append(sleeps, duration)
			return nil
		},
	})
	return serviceFixture{service: service, hosted: hosted, workingCopy: workingCopy, sleeps: &sleeps, logs: logs, directory: directory}
}

func newTestPlugin() *plugin.Plugin {
	return plugin.New(testPluginName).WithRepositoryName(testRepository)
}

func TestServiceAppliesDefaults(testInstance *testing.T) {
	service := vcs.NewService(nil, vcs.Options{}, vcs.Dependencies{})
	options := service.Options()
	require.Equal(testInstance, vcs.DefaultUpstreamOwner, options.UpstreamOwner)
	require.Equal(testInstance, vcs.DefaultBranchName, options.BranchName)
	require.Equal(testInstance, vcs.DefaultForkPollInterval, options.ForkPollInterval)
	require.Equal(testInstance, vcs.DefaultForkPollTimeout, options.ForkPollTimeout)
}

func TestForkIsIdempotent(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	target := newTestPlugin()

	require.NoError(testInstance, target.Fork(context.Background(), fixture.service))
	require.NoError(testInstance, target.Fork(context.Background(), fixture.service))

	require.Equal(testInstance, 1, fixture.hosted.forkCalls)
	require.Equal(testInstance, plugin.StageForked, target.Stage())
	require.Equal(testInstance, 1, fixture.logs.FilterMessage("Reusing existing fork").Len())
}

func TestForkPollsUntilVisible(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{ForkPollInterval: time.Second, ForkPollTimeout: 10 * time.Second})
	fixture.hosted.forkVisibleAfter = 1
	target := newTestPlugin()

	forkError := fixture.service.Fork(context.Background(), target)
	require.Error(testInstance, forkError)
	var timeoutError vcs.ForkTimeoutError
	require.ErrorAs(testInstance, forkError, &timeoutError)
	require.Len(testInstance, *fixture.sleeps, 10)

	*fixture.sleeps = nil
	require.NoError(testInstance, fixture.service.Fork(context.Background(), target))
	require.Equal(testInstance, 2, fixture.hosted.forkCalls)
	require.Len(testInstance, *fixture.sleeps, 1)
}

func TestForkRejectsUnrelatedRepository(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	fixture.hosted.repositories[testFork] = githubcli.RepositoryMetadata{NameWithOwner: testFork, Owner: testForkOwner}
	target := newTestPlugin()

	forkError := target.Fork(context.Background(), fixture.service)
	var collisionError vcs.ForkCollisionError
	require.ErrorAs(testInstance, forkError, &collisionError)
	var stageError vcs.StageError
	require.ErrorAs(testInstance, forkError, &stageError)
	require.Equal(testInstance, testPluginName, stageError.Plugin)
	require.Equal(testInstance, "fork failed for plugin mailer: repository modernizer-bot/mailer-plugin exists but is not a fork of jenkinsci/mailer-plugin", forkError.Error())
	require.Zero(testInstance, fixture.hosted.forkCalls)
	require.Len(testInstance, target.Errors(), 1)
	require.Equal(testInstance, plugin.StageUnforked, target.Stage())
}

func TestForkRequiresRepositoryName(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	target := plugin.New(testPluginName).WithRepositoryName(" ")

	forkError := fixture.service.Fork(context.Background(), target)
	require.ErrorIs(testInstance, forkError, vcs.ErrRepositoryNameMissing)
}

func TestCloneUsesForkAndConfiguresUpstream(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	target := newTestPlugin()

	require.NoError(testInstance, target.Clone(context.Background(), fixture.service))

	expectedDirectory := filepath.Join(fixture.directory, testPluginName)
	require.Equal(testInstance, expectedDirectory, target.LocalRepository())
	require.Equal(testInstance, "https://github.com/modernizer-bot/mailer-plugin.git", fixture.workingCopy.cloneURL)
	require.Equal(testInstance, "https://github.com/jenkinsci/mailer-plugin.git", fixture.workingCopy.remotes[gitrepo.UpstreamRemoteName])
	require.Equal(testInstance, plugin.StageCloned, target.Stage())

	fixture.workingCopy.cloneURL = ""
	require.NoError(testInstance, target.Clone(context.Background(), fixture.service))
	require.Empty(testInstance, fixture.workingCopy.cloneURL)
	require.Zero(testInstance, fixture.logs.FilterMessage("Pointed origin at fork").Len())
}

func TestCloneRepointsReusedWorkingCopyAtFork(testInstance *testing.T) {
	testCases := []struct {
		name           string
		remotes        map[string]string
		expectedOrigin string
		repointed      int
	}{
		{
			name:           "upstream_origin_from_dry_run",
			remotes:        map[string]string{gitrepo.OriginRemoteName: "https://github.com/jenkinsci/mailer-plugin.git"},
			expectedOrigin: "https://github.com/modernizer-bot/mailer-plugin.git",
			repointed:      1,
		},
		{
			name:           "ssh_fork_origin",
			remotes:        map[string]string{gitrepo.OriginRemoteName: "git@github.com:Modernizer-Bot/mailer-plugin.git"},
			expectedOrigin: "git@github.com:Modernizer-Bot/mailer-plugin.git",
		},
		{
			name:           "missing_origin",
			remotes:        map[string]string{},
			expectedOrigin: "https://github.com/modernizer-bot/mailer-plugin.git",
			repointed:      1,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture(testInstance, vcs.Options{})
			fixture.workingCopy.remotes = testCase.remotes
			target := newTestPlugin()
			require.NoError(testInstance, os.MkdirAll(filepath.Join(fixture.directory, testPluginName), 0o755))

			require.NoError(testInstance, target.Clone(context.Background(), fixture.service))
			require.Empty(testInstance, fixture.workingCopy.cloneURL)
			require.Equal(testInstance, testCase.expectedOrigin, fixture.workingCopy.remotes[gitrepo.OriginRemoteName])
			require.Equal(testInstance, "https://github.com/jenkinsci/mailer-plugin.git", fixture.workingCopy.remotes[gitrepo.UpstreamRemoteName])
			require.Equal(testInstance, testCase.repointed, fixture.logs.FilterMessage("Pointed origin at fork").Len())
		})
	}
}

func TestDryRunKeepsReusedWorkingCopyRemotes(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{DryRun: true})
	fixture.workingCopy.remotes = map[string]string{gitrepo.OriginRemoteName: "https://github.com/jenkinsci/mailer-plugin.git"}
	require.NoError(testInstance, os.MkdirAll(filepath.Join(fixture.directory, testPluginName), 0o755))

	require.NoError(testInstance, fixture.service.Clone(context.Background(), newTestPlugin()))
	require.Equal(testInstance, map[string]string{gitrepo.OriginRemoteName: "https://github.com/jenkinsci/mailer-plugin.git"}, fixture.workingCopy.remotes)
}

func TestDryRunMakesNoProviderChanges(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{DryRun: true})
	target := newTestPlugin()
	executionContext := context.Background()

	require.NoError(testInstance, target.Fork(executionContext, fixture.service))
	require.Equal(testInstance, plugin.StageUnforked, target.Stage())
	require.NoError(testInstance, target.Clone(executionContext, fixture.service))
	require.Equal(testInstance, "https://github.com/jenkinsci/mailer-plugin.git", fixture.workingCopy.cloneURL)
	require.NotContains(testInstance, fixture.workingCopy.remotes, gitrepo.UpstreamRemoteName)
	require.NoError(testInstance, target.Checkout(executionContext, fixture.service))
	require.NoError(testInstance, target.Commit(executionContext, fixture.service, "message"))
	require.NoError(testInstance, target.Push(executionContext, fixture.service))
	require.NoError(testInstance, target.OpenPullRequest(executionContext, fixture.service, testTitle, "body"))
	require.NoError(testInstance, target.DeleteFork(executionContext, fixture.service))

	require.True(testInstance, target.HasCommits())
	require.Equal(testInstance, plugin.StageBranched, target.Stage())
	require.Zero(testInstance, fixture.hosted.forkCalls)
	require.Zero(testInstance, fixture.hosted.createCalls)
	require.Zero(testInstance, fixture.hosted.deleteCalls)
	require.Empty(testInstance, fixture.workingCopy.commits)
	require.Empty(testInstance, fixture.workingCopy.pushes)
	require.Empty(testInstance, fixture.hosted.lookups)
	require.False(testInstance, target.HasErrors())
}

func TestCommitWithCleanTreeClearsCommits(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	fixture.workingCopy.clean = true
	target := newTestPlugin().WithLocalRepository(fixture.directory).WithCommits()

	require.NoError(testInstance, target.Commit(context.Background(), fixture.service, "message"))
	require.False(testInstance, target.HasCommits())
	require.Empty(testInstance, fixture.workingCopy.commits)
	require.NoError(testInstance, target.Push(context.Background(), fixture.service))
	require.Empty(testInstance, fixture.workingCopy.pushes)
}

func TestCommitWithCleanTreeKeepsUnpushedCommits(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	fixture.workingCopy.clean = true
	fixture.workingCopy.unpushed = 1
	target := newTestPlugin().WithLocalRepository(fixture.directory)

	require.NoError(testInstance, target.Commit(context.Background(), fixture.service, "message"))
	require.True(testInstance, target.HasCommits())
	require.Empty(testInstance, fixture.workingCopy.commits)
	require.Equal(testInstance, 1, fixture.logs.FilterMessage("Working tree clean with unpushed commits").Len())

	require.NoError(testInstance, target.Push(context.Background(), fixture.service))
	require.Equal(testInstance, []string{"origin plugin-modernizer"}, fixture.workingCopy.pushes)
}

func TestCommitFailureClearsCommits(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	fixture.workingCopy.commitFailure = errors.New("hook rejected")
	target := newTestPlugin().WithLocalRepository(fixture.directory)

	commitError := target.Commit(context.Background(), fixture.service, "message")
	require.ErrorContains(testInstance, commitError, "commit failed for plugin mailer: hook rejected")
	require.False(testInstance, target.HasCommits())
}

func TestCommitRequiresWorkingCopy(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	commitError := fixture.service.Commit(context.Background(), newTestPlugin(), "message")
	require.ErrorIs(testInstance, commitError, vcs.ErrLocalRepositoryMissing)
}

func TestCommitPushAndOpenPullRequestOnce(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{CommitAuthorName: "Bot", CommitAuthorEmail: "bot@example.com", DraftPullRequest: true})
	target := newTestPlugin().WithLocalRepository(fixture.directory)
	executionContext := context.Background()

	require.NoError(testInstance, target.Commit(executionContext, fixture.service, "Modernize"))
	require.Equal(testInstance, []gitrepo.CommitOptions{{Message: "Modernize", AuthorName: "Bot", AuthorEmail: "bot@example.com"}}, fixture.workingCopy.commits)
	require.NoError(testInstance, target.Push(executionContext, fixture.service))
	require.Equal(testInstance, []string{"origin plugin-modernizer"}, fixture.workingCopy.pushes)

	require.NoError(testInstance, target.OpenPullRequest(executionContext, fixture.service, testTitle, "body"))
	require.NoError(testInstance, target.OpenPullRequest(executionContext, fixture.service, testTitle, "body"))

	require.Equal(testInstance, 1, fixture.hosted.createCalls)
	require.Len(testInstance, fixture.hosted.pullRequests, 1)
	require.Equal(testInstance, githubcli.PullRequestCreateOptions{
		Repository: testUpstream,
		BaseBranch: "master",
		HeadBranch: "modernizer-bot:plugin-modernizer",
		Title:      testTitle,
		Body:       "body",
		Draft:      true,
	}, fixture.hosted.createOptions)
	require.Equal(testInstance, githubcli.PullRequestListOptions{State: githubcli.PullRequestStateOpen, HeadBranch: "plugin-modernizer"}, fixture.hosted.listOptions)
	require.Equal(testInstance, plugin.StagePullRequestOpened, target.Stage())
}

func TestOpenPullRequestIgnoresOtherForks(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	fixture.hosted.pullRequests = []githubcli.PullRequest{{Number: 7, Title: testTitle, HeadRefName: "plugin-modernizer", HeadRepositoryOwner: "someone-else"}}
	target := newTestPlugin().WithLocalRepository(fixture.directory).WithCommits()

	require.NoError(testInstance, fixture.service.OpenPullRequest(context.Background(), target, testTitle, "body"))
	require.Equal(testInstance, 1, fixture.hosted.createCalls)
	require.Zero(testInstance, fixture.logs.FilterMessage("Pull request already open").Len())
}

func TestSkipFlagsSuppressPublication(testInstance *testing.T) {
	testCases := []struct {
		name           string
		options        vcs.Options
		expectedPushes int
	}{
		{name: "skip push", options: vcs.Options{SkipPush: true}, expectedPushes: 0},
		{name: "skip pull request", options: vcs.Options{SkipPullRequest: true}, expectedPushes: 1},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			fixture := newServiceFixture(subTest, testCase.options)
			target := newTestPlugin().WithLocalRepository(fixture.directory).WithCommits()

			require.NoError(subTest, target.Push(context.Background(), fixture.service))
			require.NoError(subTest, target.OpenPullRequest(context.Background(), fixture.service, testTitle, "body"))
			require.Len(subTest, fixture.workingCopy.pushes, testCase.expectedPushes)
			require.Zero(subTest, fixture.hosted.createCalls)
		})
	}
}

func TestDeleteForkKeepsForkWithOpenPullRequest(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	target := newTestPlugin()
	require.NoError(testInstance, fixture.service.Fork(context.Background(), target))
	fixture.hosted.pullRequests = []githubcli.PullRequest{{Number: 3, Title: testTitle, HeadRefName: "plugin-modernizer", HeadRepositoryOwner: testForkOwner}}

	require.NoError(testInstance, fixture.service.DeleteFork(context.Background(), target))
	require.Zero(testInstance, fixture.hosted.deleteCalls)

	fixture.hosted.pullRequests = []githubcli.PullRequest{{Number: 4, Title: testTitle, HeadRefName: "plugin-modernizer", HeadRepositoryOwner: "someone-else"}}
	require.NoError(testInstance, fixture.service.DeleteFork(context.Background(), target))
	require.Equal(testInstance, 1, fixture.hosted.deleteCalls)

	require.NoError(testInstance, fixture.service.DeleteFork(context.Background(), target))
	require.Equal(testInstance, 1, fixture.hosted.deleteCalls)
}

func TestDeleteForkKeepsRepositoriesNotOwned(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	fixture.hosted.repositories[testFork] = githubcli.RepositoryMetadata{NameWithOwner: testFork, Owner: testForkOwner}

	require.NoError(testInstance, fixture.service.DeleteFork(context.Background(), newTestPlugin()))
	require.Zero(testInstance, fixture.hosted.deleteCalls)
}

func TestRemoveLocalData(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, vcs.Options{})
	target := newTestPlugin()
	require.NoError(testInstance, fixture.service.Clone(context.Background(), target))
	require.DirExists(testInstance, target.LocalRepository())

	require.NoError(testInstance, fixture.service.RemoveLocalData(target))
	require.NoDirExists(testInstance, target.LocalRepository())
}
