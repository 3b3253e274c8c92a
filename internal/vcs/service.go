package vcs

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/pluginmodernizer/internal/githubcli"
	"github.com/temirov/pluginmodernizer/internal/gitrepo"
	"github.com/temirov/pluginmodernizer/internal/plugin"
)

const (
	// DefaultUpstreamOwner is the organization hosting plugin repositories.
	DefaultUpstreamOwner = "jenkinsci"
	// DefaultBranchName is the branch modernization changes are committed to.
	DefaultBranchName = "plugin-modernizer"
	// DefaultForkPollInterval is the delay between fork visibility checks.
	DefaultForkPollInterval = 5 * time.Second
	// DefaultForkPollTimeout bounds how long a new fork may take to become visible.
	DefaultForkPollTimeout = 2 * time.Minute

	stageForkConstant        = "fork"
	stageCloneConstant       = "clone"
	stageCheckoutConstant    = "checkout"
	stageCommitConstant      = "commit"
	stagePushConstant        = "push"
	stagePullRequestConstant = "pull request"
	stageDeleteForkConstant  = "delete fork"
	stageCleanupConstant     = "cleanup"

	workingCopyPermissions = 0o755

	logFieldPluginConstant      = "plugin_name"
	logFieldStageConstant       = "stage"
	logFieldRepositoryConstant  = "repository"
	logFieldDirectoryConstant   = "directory"
	logFieldBranchConstant      = "branch"
	logFieldPullRequestConstant = "pull_request"
	logFieldReasonConstant      = "reason"
	logFieldRemoteConstant      = "remote"
	logFieldUnpushedConstant    = "unpushed_commits"

	logMessageForkReused          = "Reusing existing fork"
	logMessageForkCreated         = "Created fork"
	logMessageForkSkipped         = "Skipping fork in dry run; cloning upstream"
	logMessageCloneReused         = "Reusing existing working copy"
	logMessageCloned              = "Cloned repository"
	logMessageOriginRepointed     = "Pointed origin at fork"
	logMessageBranchReady         = "Checked out modernization branch"
	logMessageNoChanges           = "No changes to commit"
	logMessageUnpushedCommits     = "Working tree clean with unpushed commits"
	logMessageWouldCommit         = "Dry run: changes would be committed"
	logMessageCommitted           = "Committed changes"
	logMessageWouldPush           = "Skipping push"
	logMessagePushed              = "Pushed branch"
	logMessageWouldOpen           = "Skipping pull request"
	logMessagePullRequestReused   = "Pull request already open"
	logMessagePullRequestOpened   = "Opened pull request"
	logMessageForkKept            = "Keeping fork"
	logMessageForkDeleted         = "Deleted fork"
	logMessageLocalDataRemoved    = "Removed local working copy"
	reasonDryRunConstant          = "dry run"
	reasonSkipPushConstant        = "push disabled"
	reasonSkipPullRequestConstant = "pull request disabled"
	reasonNoCommitsConstant       = "no commits"
	reasonOpenPullRequestConstant = "open pull request"
	reasonNotOwnedConstant        = "not a fork owned by the configured account"
)

// HostedRepositoryClient is the subset of githubcli.Client used by the service.
type HostedRepositoryClient interface {
	ResolveRepoMetadata(executionContext context.Context, repository string) (githubcli.RepositoryMetadata, error)
	ForkRepository(executionContext context.Context, repository string, organization string) error
	ListPullRequests(executionContext context.Context, repository string, options githubcli.PullRequestListOptions) ([]githubcli.PullRequest, error)
	CreatePullRequest(executionContext context.Context, options githubcli.PullRequestCreateOptions) (string, error)
	DeleteRepository(executionContext context.Context, repository string) error
}

// WorkingCopyManager is the subset of gitrepo.RepositoryManager used by the service.
type WorkingCopyManager interface {
	Clone(executionContext context.Context, remoteURL string, destination string) error
	CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error
	CheckCleanWorktree(executionContext context.Context, repositoryPath string) (bool, error)
	CommitAll(executionContext context.Context, repositoryPath string, options gitrepo.CommitOptions) error
	Push(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error
	CountUnpushedCommits(executionContext context.Context, repositoryPath string, remoteName string, branchName string) (int, error)
	GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
	SetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string) error
}

// Options configures the service for one run.
type Options struct {
	UpstreamOwner        string
	ForkOwner            string
	ForkIntoOrganization bool
	BranchName           string
	WorkingDirectory     string
	DryRun               bool
	SkipPush             bool
	SkipPullRequest      bool
	DraftPullRequest     bool
	ForkPollInterval     time.Duration
	ForkPollTimeout      time.Duration
	CommitAuthorName     string
	CommitAuthorEmail    string
}

func (options Options) withDefaults() Options {
	if len(strings.TrimSpace(options.UpstreamOwner)) == 0 {
		options.UpstreamOwner = DefaultUpstreamOwner
	}
	if len(strings.TrimSpace(options.BranchName)) == 0 {
		options.BranchName = DefaultBranchName
	}
	if options.ForkPollInterval <= 0 {
		options.ForkPollInterval = DefaultForkPollInterval
	}
	if options.ForkPollTimeout <= 0 {
		options.ForkPollTimeout = DefaultForkPollTimeout
	}
	return options
}

// Dependencies captures collaborators required by the service.
type Dependencies struct {
	Hosted      HostedRepositoryClient
	WorkingCopy WorkingCopyManager
	FileSystem  FileSystem
	Sleep       func(executionContext context.Context, duration time.Duration) error
}

// Service implements plugin.VersionControl.
type Service struct {
	logger       *zap.Logger
	options      Options
	dependencies Dependencies
}

var _ plugin.VersionControl = (*Service)(nil)

// NewService constructs a Service, defaulting the filesystem and sleep collaborators.
func NewService(logger *zap.Logger, options Options, dependencies Dependencies) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dependencies.FileSystem == nil {
		dependencies.FileSystem = OSFileSystem{}
	}
	if dependencies.Sleep == nil {
		dependencies.Sleep = sleepWithContext
	}
	return &Service{logger: logger, options: options.withDefaults(), dependencies: dependencies}
}

// Options returns the effective options.
func (service *Service) Options() Options {
	return service.options
}

// LocalRepositoryPath returns the working copy directory of target.
func (service *Service) LocalRepositoryPath(target *plugin.Plugin) string {
	return filepath.Join(service.options.WorkingDirectory, target.Name())
}

// Fork ensures the configured account owns a fork of the plugin repository. Forking is skipped in a dry run.
func (service *Service) Fork(executionContext context.Context, target *plugin.Plugin) error {
	logger := service.pluginLogger(target, stageForkConstant)
	if service.options.DryRun {
		logger.Info(logMessageForkSkipped)
		return plugin.ErrStageSkipped
	}

	upstream, fork, identifierError := service.identifiers(target)
	if identifierError != nil {
		return service.stageError(target, stageForkConstant, identifierError)
	}

	existing, lookupError := service.dependencies.Hosted.ResolveRepoMetadata(executionContext, fork)
	switch {
	case lookupError == nil:
		if !existing.IsFork || !strings.EqualFold(existing.ParentNameWithOwner, upstream) {
			return service.stageError(target, stageForkConstant, ForkCollisionError{Repository: fork, Upstream: upstream})
		}
		logger.Info(logMessageForkReused, zap.String(logFieldRepositoryConstant, fork))
		return nil
	case !errors.Is(lookupError, githubcli.ErrRepositoryNotFound):
		return service.stageError(target, stageForkConstant, lookupError)
	}

	organization := ""
	if service.options.ForkIntoOrganization {
		organization = service.options.ForkOwner
	}
	if forkError := service.dependencies.Hosted.ForkRepository(executionContext, upstream, organization); forkError != nil {
		return service.stageError(target, stageForkConstant, forkError)
	}
	if waitError := service.waitForFork(executionContext, fork); waitError != nil {
		return service.stageError(target, stageForkConstant, waitError)
	}
	logger.Info(logMessageForkCreated, zap.String(logFieldRepositoryConstant, fork))
	return nil
}

// Clone clones the fork, or upstream in a dry run, unless the working copy already exists.
// Outside a dry run a reused working copy has its origin pointed back at the fork.
func (service *Service) Clone(executionContext context.Context, target *plugin.Plugin) error {
	logger := service.pluginLogger(target, stageCloneConstant)
	directory := service.LocalRepositoryPath(target)
	target.WithLocalRepository(directory)

	upstreamURL, upstreamError := gitrepo.GitHubHTTPSURL(service.options.UpstreamOwner, target.RepositoryName())
	if upstreamError != nil {
		return service.stageError(target, stageCloneConstant, upstreamError)
	}
	cloneURL := upstreamURL
	if !service.options.DryRun {
		forkURL, forkError := gitrepo.GitHubHTTPSURL(service.options.ForkOwner, target.RepositoryName())
		if forkError != nil {
			return service.stageError(target, stageCloneConstant, forkError)
		}
		cloneURL = forkURL
	}

	if _, statError := service.dependencies.FileSystem.Stat(directory); statError == nil {
		if !service.options.DryRun {
			if remoteError := service.alignRemotes(executionContext, target, directory, cloneURL, upstreamURL); remoteError != nil {
				return service.stageError(target, stageCloneConstant, remoteError)
			}
		}
		logger.Info(logMessageCloneReused, zap.String(logFieldDirectoryConstant, directory))
		return nil
	} else if !errors.Is(statError, fs.ErrNotExist) {
		return service.stageError(target, stageCloneConstant, statError)
	}

	if mkdirError := service.dependencies.FileSystem.MkdirAll(service.options.WorkingDirectory, workingCopyPermissions); mkdirError != nil {
		return service.stageError(target, stageCloneConstant, mkdirError)
	}
	if cloneError := service.dependencies.WorkingCopy.Clone(executionContext, cloneURL, directory); cloneError != nil {
		return service.stageError(target, stageCloneConstant, cloneError)
	}
	if !service.options.DryRun {
		if remoteError := service.dependencies.WorkingCopy.SetRemoteURL(executionContext, directory, gitrepo.UpstreamRemoteName, upstreamURL); remoteError != nil {
			return service.stageError(target, stageCloneConstant, remoteError)
		}
	}
	logger.Info(logMessageCloned, zap.String(logFieldRepositoryConstant, cloneURL), zap.String(logFieldDirectoryConstant, directory))
	return nil
}

// Checkout switches the working copy to the modernization branch, creating it when needed.
func (service *Service) Checkout(executionContext context.Context, target *plugin.Plugin) error {
	directory, directoryError := service.workingCopy(target)
	if directoryError != nil {
		return service.stageError(target, stageCheckoutConstant, directoryError)
	}
	if checkoutError := service.dependencies.WorkingCopy.CheckoutBranch(executionContext, directory, service.options.BranchName); checkoutError != nil {
		return service.stageError(target, stageCheckoutConstant, checkoutError)
	}
	service.pluginLogger(target, stageCheckoutConstant).Info(logMessageBranchReady, zap.String(logFieldBranchConstant, service.options.BranchName))
	return nil
}

// Commit records every working tree change. A clean tree marks the plugin as having no commits;
// a dry run only inspects the tree.
func (service *Service) Commit(executionContext context.Context, target *plugin.Plugin, message string) error {
	logger := service.pluginLogger(target, stageCommitConstant)
	directory, directoryError := service.workingCopy(target)
	if directoryError != nil {
		return service.stageError(target, stageCommitConstant, directoryError)
	}

	clean, statusError := service.dependencies.WorkingCopy.CheckCleanWorktree(executionContext, directory)
	if statusError != nil {
		return service.stageError(target, stageCommitConstant, statusError)
	}
	if clean {
		unpushed, countError := service.dependencies.WorkingCopy.CountUnpushedCommits(executionContext, directory, gitrepo.OriginRemoteName, service.options.BranchName)
		if countError != nil {
			return service.stageError(target, stageCommitConstant, countError)
		}
		if unpushed > 0 {
			target.WithCommits()
			logger.Info(logMessageUnpushedCommits, zap.Int(logFieldUnpushedConstant, unpushed))
			return plugin.ErrStageSkipped
		}
		target.WithoutCommits()
		logger.Info(logMessageNoChanges)
		return plugin.ErrStageSkipped
	}

	target.WithCommits()
	if service.options.DryRun {
		logger.Info(logMessageWouldCommit)
		return plugin.ErrStageSkipped
	}

	if commitError := service.dependencies.WorkingCopy.CommitAll(executionContext, directory, gitrepo.CommitOptions{
		Message:     message,
		AuthorName:  service.options.CommitAuthorName,
		AuthorEmail: service.options.CommitAuthorEmail,
	}); commitError != nil {
		target.WithoutCommits()
		return service.stageError(target, stageCommitConstant, commitError)
	}
	logger.Info(logMessageCommitted)
	return nil
}

// Push publishes the modernization branch to the fork.
func (service *Service) Push(executionContext context.Context, target *plugin.Plugin) error {
	logger := service.pluginLogger(target, stagePushConstant)
	if reason, skipped := service.pushSkipReason(target); skipped {
		logger.Info(logMessageWouldPush, zap.String(logFieldReasonConstant, reason), zap.String(logFieldBranchConstant, service.options.BranchName))
		return plugin.ErrStageSkipped
	}

	directory, directoryError := service.workingCopy(target)
	if directoryError != nil {
		return service.stageError(target, stagePushConstant, directoryError)
	}
	if pushError := service.dependencies.WorkingCopy.Push(executionContext, directory, gitrepo.OriginRemoteName, service.options.BranchName); pushError != nil {
		return service.stageError(target, stagePushConstant, pushError)
	}
	logger.Info(logMessagePushed, zap.String(logFieldBranchConstant, service.options.BranchName))
	return nil
}

// OpenPullRequest opens a pull request from the fork branch unless one with the same title is already open.
func (service *Service) OpenPullRequest(executionContext context.Context, target *plugin.Plugin, title string, body string) error {
	logger := service.pluginLogger(target, stagePullRequestConstant)
	if reason, skipped := service.pullRequestSkipReason(target); skipped {
		logger.Info(logMessageWouldOpen, zap.String(logFieldReasonConstant, reason), zap.String(logFieldPullRequestConstant, title))
		return plugin.ErrStageSkipped
	}

	upstream, _, identifierError := service.identifiers(target)
	if identifierError != nil {
		return service.stageError(target, stagePullRequestConstant, identifierError)
	}
	openPullRequests, listError := service.openPullRequestsFromFork(executionContext, upstream)
	if listError != nil {
		return service.stageError(target, stagePullRequestConstant, listError)
	}
	for _, pullRequest := range openPullRequests {
		if pullRequest.Title == title {
			logger.Info(logMessagePullRequestReused, zap.String(logFieldPullRequestConstant, pullRequest.URL))
			return nil
		}
	}

	upstreamMetadata, metadataError := service.dependencies.Hosted.ResolveRepoMetadata(executionContext, upstream)
	if metadataError != nil {
		return service.stageError(target, stagePullRequestConstant, metadataError)
	}
	url, createError := service.dependencies.Hosted.CreatePullRequest(executionContext, githubcli.PullRequestCreateOptions{
		Repository: upstream,
		BaseBranch: upstreamMetadata.DefaultBranch,
		HeadBranch: service.headReference(),
		Title:      title,
		Body:       body,
		Draft:      service.options.DraftPullRequest,
	})
	if createError != nil {
		return service.stageError(target, stagePullRequestConstant, createError)
	}
	logger.Info(logMessagePullRequestOpened, zap.String(logFieldPullRequestConstant, url))
	return nil
}

// DeleteFork removes the fork when it is owned by the configured account and no pull request from it is open.
func (service *Service) DeleteFork(executionContext context.Context, target *plugin.Plugin) error {
	logger := service.pluginLogger(target, stageDeleteForkConstant)
	if service.options.DryRun {
		logger.Info(logMessageForkKept, zap.String(logFieldReasonConstant, reasonDryRunConstant))
		return plugin.ErrStageSkipped
	}

	upstream, fork, identifierError := service.identifiers(target)
	if identifierError != nil {
		return service.stageError(target, stageDeleteForkConstant, identifierError)
	}

	existing, lookupError := service.dependencies.Hosted.ResolveRepoMetadata(executionContext, fork)
	if errors.Is(lookupError, githubcli.ErrRepositoryNotFound) {
		return nil
	}
	if lookupError != nil {
		return service.stageError(target, stageDeleteForkConstant, lookupError)
	}
	if !existing.IsFork || !strings.EqualFold(existing.Owner, service.options.ForkOwner) {
		logger.Info(logMessageForkKept, zap.String(logFieldReasonConstant, reasonNotOwnedConstant))
		return nil
	}

	openPullRequests, listError := service.openPullRequestsFromFork(executionContext, upstream)
	if listError != nil {
		return service.stageError(target, stageDeleteForkConstant, listError)
	}
	if len(openPullRequests) > 0 {
		logger.Info(logMessageForkKept, zap.String(logFieldReasonConstant, reasonOpenPullRequestConstant))
		return nil
	}

	if deleteError := service.dependencies.Hosted.DeleteRepository(executionContext, fork); deleteError != nil {
		return service.stageError(target, stageDeleteForkConstant, deleteError)
	}
	logger.Info(logMessageForkDeleted, zap.String(logFieldRepositoryConstant, fork))
	return nil
}

// RemoveLocalData deletes the plugin working copy.
func (service *Service) RemoveLocalData(target *plugin.Plugin) error {
	directory := service.LocalRepositoryPath(target)
	if removeError := service.dependencies.FileSystem.RemoveAll(directory); removeError != nil {
		return service.stageError(target, stageCleanupConstant, removeError)
	}
	service.pluginLogger(target, stageCleanupConstant).Info(logMessageLocalDataRemoved, zap.String(logFieldDirectoryConstant, directory))
	return nil
}

func (service *Service) pushSkipReason(target *plugin.Plugin) (string, bool) {
	switch {
	case service.options.DryRun:
		return reasonDryRunConstant, true
	case service.options.SkipPush:
		return reasonSkipPushConstant, true
	case !target.HasCommits():
		return reasonNoCommitsConstant, true
	}
	return "", false
}

func (service *Service) pullRequestSkipReason(target *plugin.Plugin) (string, bool) {
	switch {
	case service.options.DryRun:
		return reasonDryRunConstant, true
	case service.options.SkipPush:
		return reasonSkipPushConstant, true
	case service.options.SkipPullRequest:
		return reasonSkipPullRequestConstant, true
	case !target.HasCommits():
		return reasonNoCommitsConstant, true
	}
	return "", false
}

func (service *Service) identifiers(target *plugin.Plugin) (string, string, error) {
	repositoryName := strings.TrimSpace(target.RepositoryName())
	if len(repositoryName) == 0 {
		return "", "", ErrRepositoryNameMissing
	}
	return githubcli.RepositoryIdentifier(service.options.UpstreamOwner, repositoryName),
		githubcli.RepositoryIdentifier(service.options.ForkOwner, repositoryName),
		nil
}

// alignRemotes points origin at the fork when a reused working copy tracks another repository
// and makes sure the upstream remote is configured.
func (service *Service) alignRemotes(executionContext context.Context, target *plugin.Plugin, directory string, forkURL string, upstreamURL string) error {
	originURL, lookupError := service.dependencies.WorkingCopy.GetRemoteURL(executionContext, directory, gitrepo.OriginRemoteName)
	if lookupError != nil || !service.tracksFork(originURL, target) {
		if remoteError := service.dependencies.WorkingCopy.SetRemoteURL(executionContext, directory, gitrepo.OriginRemoteName, forkURL); remoteError != nil {
			return remoteError
		}
		service.pluginLogger(target, stageCloneConstant).Info(logMessageOriginRepointed,
			zap.String(logFieldRemoteConstant, originURL),
			zap.String(logFieldRepositoryConstant, forkURL))
	}
	return service.dependencies.WorkingCopy.SetRemoteURL(executionContext, directory, gitrepo.UpstreamRemoteName, upstreamURL)
}

func (service *Service) tracksFork(remoteURL string, target *plugin.Plugin) bool {
	parsed, parseError := gitrepo.ParseRemoteURL(remoteURL)
	if parseError != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, gitrepo.GitHubHost) &&
		strings.EqualFold(parsed.Owner, service.options.ForkOwner) &&
		strings.EqualFold(parsed.Repository, target.RepositoryName())
}

// openPullRequestsFromFork lists open pull requests against upstream whose head is the
// modernization branch of the configured fork owner.
func (service *Service) openPullRequestsFromFork(executionContext context.Context, upstream string) ([]githubcli.PullRequest, error) {
	pullRequests, listError := service.dependencies.Hosted.ListPullRequests(executionContext, upstream, githubcli.PullRequestListOptions{
		State:      githubcli.PullRequestStateOpen,
		HeadBranch: service.options.BranchName,
	})
	if listError != nil {
		return nil, listError
	}
	fromFork := make([]githubcli.PullRequest, 0, len(pullRequests))
	for _, pullRequest := range pullRequests {
		if strings.EqualFold(pullRequest.HeadRepositoryOwner, service.options.ForkOwner) {
			fromFork = append(fromFork, pullRequest)
		}
	}
	return fromFork, nil
}

// headReference names the fork branch in the "owner:branch" form gh pr create expects.
func (service *Service) headReference() string {
	return strings.Join([]string{service.options.ForkOwner, service.options.BranchName}, ":")
}

func (service *Service) workingCopy(target *plugin.Plugin) (string, error) {
	directory := target.LocalRepository()
	if len(directory) == 0 {
		return "", ErrLocalRepositoryMissing
	}
	return directory, nil
}

func (service *Service) waitForFork(executionContext context.Context, fork string) error {
	waited := time.Duration(0)
	for waited < service.options.ForkPollTimeout {
		if sleepError := service.dependencies.Sleep(executionContext, service.options.ForkPollInterval); sleepError != nil {
			return sleepError
		}
		waited += service.options.ForkPollInterval

		_, lookupError := service.dependencies.Hosted.ResolveRepoMetadata(executionContext, fork)
		if lookupError == nil {
			return nil
		}
		if !errors.Is(lookupError, githubcli.ErrRepositoryNotFound) {
			return lookupError
		}
	}
	return ForkTimeoutError{Repository: fork, Waited: service.options.ForkPollTimeout.String()}
}

func (service *Service) stageError(target *plugin.Plugin, stage string, cause error) error {
	return StageError{Plugin: target.Name(), Stage: stage, Cause: cause}
}

func (service *Service) pluginLogger(target *plugin.Plugin, stage string) *zap.Logger {
	return service.logger.With(zap.String(logFieldPluginConstant, target.Name()), zap.String(logFieldStageConstant, stage))
}

func sleepWithContext(executionContext context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}
