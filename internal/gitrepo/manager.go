package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/temirov/pluginmodernizer/internal/execshell"
)

const (
	gitCloneSubcommandConstant           = "clone"
	gitCheckoutSubcommandConstant        = "checkout"
	gitStatusSubcommandConstant          = "status"
	gitAddSubcommandConstant             = "add"
	gitCommitSubcommandConstant          = "commit"
	gitPushSubcommandConstant            = "push"
	gitRemoteSubcommandConstant          = "remote"
	gitRevParseSubcommandConstant        = "rev-parse"
	gitRevListSubcommandConstant         = "rev-list"
	countFlagConstant                    = "--count"
	gitConfigFlagConstant                = "-c"
	porcelainFlagConstant                = "--porcelain"
	createBranchFlagConstant             = "-b"
	allFlagConstant                      = "--all"
	messageFlagConstant                  = "-m"
	noSignFlagConstant                   = "--no-gpg-sign"
	authorFlagConstant                   = "--author"
	originFlagConstant                   = "--origin"
	forceWithLeaseFlagConstant           = "--force-with-lease"
	setUpstreamFlagConstant              = "--set-upstream"
	verifyFlagConstant                   = "--verify"
	quietFlagConstant                    = "--quiet"
	abbreviatedRefFlagConstant           = "--abbrev-ref"
	headReferenceConstant                = "HEAD"
	getURLSubcommandConstant             = "get-url"
	setURLSubcommandConstant             = "set-url"
	localBranchReferenceTemplate         = "refs/heads/%s"
	remoteBranchReferenceTemplate        = "refs/remotes/%s/%s"
	revisionRangeTemplate                = "%s..%s"
	authorTemplateConstant               = "%s <%s>"
	resetCredentialHelperConstant        = "credential.helper="
	githubCredentialHelperConstant       = "credential.helper=!gh auth git-credential"
	githubTokenEnvironmentConstant       = "GH_TOKEN"
	terminalPromptEnvironmentConstant    = "GIT_TERMINAL_PROMPT"
	terminalPromptDisabledValueConstant  = "0"
	requiredValueMessageConstant         = "value required"
	executorNotConfiguredMessageConstant = "git executor not configured"
	repositoryPathFieldNameConstant      = "repository_path"
	remoteURLFieldNameConstant           = "remote_url"
	remoteNameFieldNameConstant          = "remote_name"
	branchNameFieldNameConstant          = "branch_name"
	commitMessageFieldNameConstant       = "commit_message"
	destinationFieldNameConstant         = "destination"
	invalidInputTemplateConstant         = "%s: %s"
	operationErrorTemplateConstant       = "%s %s failed: %v"
)

// ErrExecutorNotConfigured indicates the manager was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// GitExecutor exposes the subset of shell execution used by repository operations.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps a failed git invocation with the repository it targeted.
type OperationError struct {
	Operation      string
	RepositoryPath string
	Cause          error
}

// Error describes the failed operation.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.RepositoryPath, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// CommitOptions describes a commit of every staged and unstaged change.
type CommitOptions struct {
	Message     string
	AuthorName  string
	AuthorEmail string
}

// RepositoryManager runs git operations against local working copies.
type RepositoryManager struct {
	executor    GitExecutor
	tokenSource oauth2.TokenSource
}

// ManagerOption customizes a RepositoryManager.
type ManagerOption func(*RepositoryManager)

// WithTokenSource authenticates network operations through the gh credential helper.
func WithTokenSource(tokenSource oauth2.TokenSource) ManagerOption {
	return func(manager *RepositoryManager) {
		manager.tokenSource = tokenSource
	}
}

// NewRepositoryManager constructs a RepositoryManager.
func NewRepositoryManager(executor GitExecutor, options ...ManagerOption) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	manager := &RepositoryManager{executor: executor}
	for _, option := range options {
		if option != nil {
			option(manager)
		}
	}
	return manager, nil
}

// Clone clones remoteURL into destination, naming the remote "origin".
func (manager *RepositoryManager) Clone(executionContext context.Context, remoteURL string, destination string) error {
	trimmedURL := strings.TrimSpace(remoteURL)
	if len(trimmedURL) == 0 {
		return InvalidInputError{FieldName: remoteURLFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedDestination := strings.TrimSpace(destination)
	if len(trimmedDestination) == 0 {
		return InvalidInputError{FieldName: destinationFieldNameConstant, Message: requiredValueMessageConstant}
	}

	details, authenticationError := manager.authenticated(execshell.CommandDetails{
		Arguments:        []string{gitCloneSubcommandConstant, originFlagConstant, OriginRemoteName, trimmedURL, trimmedDestination},
		WorkingDirectory: filepath.Dir(trimmedDestination),
	})
	if authenticationError != nil {
		return OperationError{Operation: gitCloneSubcommandConstant, RepositoryPath: trimmedDestination, Cause: authenticationError}
	}
	if _, executionError := manager.executor.ExecuteGit(executionContext, details); executionError != nil {
		return OperationError{Operation: gitCloneSubcommandConstant, RepositoryPath: trimmedDestination, Cause: executionError}
	}
	return nil
}

// BranchExists reports whether a local branch named branchName exists.
func (manager *RepositoryManager) BranchExists(executionContext context.Context, repositoryPath string, branchName string) (bool, error) {
	if validationError := validateRequired(repositoryPath, branchNameFieldNameConstant, branchName); validationError != nil {
		return false, validationError
	}
	return manager.referenceExists(executionContext, repositoryPath, fmt.Sprintf(localBranchReferenceTemplate, branchName))
}

// CountUnpushedCommits returns how many commits of HEAD are missing from remoteName/branchName.
// A branch that was never pushed is compared with the default branch of remoteName instead;
// zero is returned when neither reference is known locally.
func (manager *RepositoryManager) CountUnpushedCommits(executionContext context.Context, repositoryPath string, remoteName string, branchName string) (int, error) {
	if validationError := validateRequired(repositoryPath, remoteNameFieldNameConstant, remoteName); validationError != nil {
		return 0, validationError
	}
	if validationError := validateRequired(repositoryPath, branchNameFieldNameConstant, branchName); validationError != nil {
		return 0, validationError
	}

	candidates := []string{
		fmt.Sprintf(remoteBranchReferenceTemplate, remoteName, branchName),
		fmt.Sprintf(remoteBranchReferenceTemplate, remoteName, headReferenceConstant),
	}
	for _, reference := range candidates {
		exists, existsError := manager.referenceExists(executionContext, repositoryPath, reference)
		if existsError != nil {
			return 0, existsError
		}
		if !exists {
			continue
		}
		result, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
			Arguments:        []string{gitRevListSubcommandConstant, countFlagConstant, fmt.Sprintf(revisionRangeTemplate, reference, headReferenceConstant)},
			WorkingDirectory: repositoryPath,
		})
		if executionError != nil {
			return 0, OperationError{Operation: gitRevListSubcommandConstant, RepositoryPath: repositoryPath, Cause: executionError}
		}
		count, parseError := strconv.Atoi(strings.TrimSpace(result.StandardOutput))
		if parseError != nil {
			return 0, OperationError{Operation: gitRevListSubcommandConstant, RepositoryPath: repositoryPath, Cause: parseError}
		}
		return count, nil
	}
	return 0, nil
}

func (manager *RepositoryManager) referenceExists(executionContext context.Context, repositoryPath string, reference string) (bool, error) {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, verifyFlagConstant, quietFlagConstant, reference},
		WorkingDirectory: repositoryPath,
	})
	if executionError == nil {
		return true, nil
	}
	var failedError execshell.CommandFailedError
	if errors.As(executionError, &failedError) {
		return false, nil
	}
	return false, OperationError{Operation: gitRevParseSubcommandConstant, RepositoryPath: repositoryPath, Cause: executionError}
}

// CheckoutBranch switches to branchName, creating it from HEAD when it does not exist yet.
func (manager *RepositoryManager) CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	exists, existsError := manager.BranchExists(executionContext, repositoryPath, branchName)
	if existsError != nil {
		return existsError
	}

	arguments := []string{gitCheckoutSubcommandConstant, branchName}
	if !exists {
		arguments = []string{gitCheckoutSubcommandConstant, createBranchFlagConstant, branchName}
	}
	if _, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{Arguments: arguments, WorkingDirectory: repositoryPath}); executionError != nil {
		return OperationError{Operation: gitCheckoutSubcommandConstant, RepositoryPath: repositoryPath, Cause: executionError}
	}
	return nil
}

// GetCurrentBranch returns the checked out branch name.
func (manager *RepositoryManager) GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	if validationError := validateRequired(repositoryPath, repositoryPathFieldNameConstant, repositoryPath); validationError != nil {
		return "", validationError
	}
	result, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, abbreviatedRefFlagConstant, headReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", OperationError{Operation: gitRevParseSubcommandConstant, RepositoryPath: repositoryPath, Cause: executionError}
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// CheckCleanWorktree reports whether git status shows no changes.
func (manager *RepositoryManager) CheckCleanWorktree(executionContext context.Context, repositoryPath string) (bool, error) {
	if validationError := validateRequired(repositoryPath, repositoryPathFieldNameConstant, repositoryPath); validationError != nil {
		return false, validationError
	}
	result, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitStatusSubcommandConstant, porcelainFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return false, OperationError{Operation: gitStatusSubcommandConstant, RepositoryPath: repositoryPath, Cause: executionError}
	}
	return len(strings.TrimSpace(result.StandardOutput)) == 0, nil
}

// CommitAll stages every change and records an unsigned commit.
func (manager *RepositoryManager) CommitAll(executionContext context.Context, repositoryPath string, options CommitOptions) error {
	if validationError := validateRequired(repositoryPath, commitMessageFieldNameConstant, options.Message); validationError != nil {
		return validationError
	}

	if _, addError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitAddSubcommandConstant, allFlagConstant},
		WorkingDirectory: repositoryPath,
	}); addError != nil {
		return OperationError{Operation: gitAddSubcommandConstant, RepositoryPath: repositoryPath, Cause: addError}
	}

	arguments := []string{gitCommitSubcommandConstant, noSignFlagConstant, messageFlagConstant, options.Message}
	if len(strings.TrimSpace(options.AuthorName)) > 0 && len(strings.TrimSpace(options.AuthorEmail)) > 0 {
		arguments = append(arguments, authorFlagConstant, fmt.Sprintf(authorTemplateConstant, strings.TrimSpace(options.AuthorName), strings.TrimSpace(options.AuthorEmail)))
	}
	if _, commitError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{Arguments: arguments, WorkingDirectory: repositoryPath}); commitError != nil {
		return OperationError{Operation: gitCommitSubcommandConstant, RepositoryPath: repositoryPath, Cause: commitError}
	}
	return nil
}

// Push publishes branchName to remoteName, refusing to overwrite unseen remote work.
func (manager *RepositoryManager) Push(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error {
	if validationError := validateRequired(repositoryPath, remoteNameFieldNameConstant, remoteName); validationError != nil {
		return validationError
	}
	if validationError := validateRequired(repositoryPath, branchNameFieldNameConstant, branchName); validationError != nil {
		return validationError
	}

	details, authenticationError := manager.authenticated(execshell.CommandDetails{
		Arguments:        []string{gitPushSubcommandConstant, forceWithLeaseFlagConstant, setUpstreamFlagConstant, remoteName, branchName},
		WorkingDirectory: repositoryPath,
	})
	if authenticationError != nil {
		return OperationError{Operation: gitPushSubcommandConstant, RepositoryPath: repositoryPath, Cause: authenticationError}
	}
	if _, executionError := manager.executor.ExecuteGit(executionContext, details); executionError != nil {
		return OperationError{Operation: gitPushSubcommandConstant, RepositoryPath: repositoryPath, Cause: executionError}
	}
	return nil
}

// GetRemoteURL returns the URL configured for remoteName.
func (manager *RepositoryManager) GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	if validationError := validateRequired(repositoryPath, remoteNameFieldNameConstant, remoteName); validationError != nil {
		return "", validationError
	}
	result, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, getURLSubcommandConstant, remoteName},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", OperationError{Operation: gitRemoteSubcommandConstant, RepositoryPath: repositoryPath, Cause: executionError}
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// SetRemoteURL points remoteName at remoteURL, adding the remote when it is missing.
func (manager *RepositoryManager) SetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string) error {
	if validationError := validateRequired(repositoryPath, remoteNameFieldNameConstant, remoteName); validationError != nil {
		return validationError
	}
	if len(strings.TrimSpace(remoteURL)) == 0 {
		return InvalidInputError{FieldName: remoteURLFieldNameConstant, Message: requiredValueMessageConstant}
	}

	currentURL, lookupError := manager.GetRemoteURL(executionContext, repositoryPath, remoteName)
	subcommand := setURLSubcommandConstant
	if lookupError != nil {
		subcommand = gitAddSubcommandConstant
	} else if currentURL == remoteURL {
		return nil
	}

	if _, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, subcommand, remoteName, remoteURL},
		WorkingDirectory: repositoryPath,
	}); executionError != nil {
		return OperationError{Operation: gitRemoteSubcommandConstant, RepositoryPath: repositoryPath, Cause: executionError}
	}
	return nil
}

func (manager *RepositoryManager) authenticated(details execshell.CommandDetails) (execshell.CommandDetails, error) {
	if manager.tokenSource == nil {
		return details, nil
	}
	token, tokenError := manager.tokenSource.Token()
	if tokenError != nil {
		return execshell.CommandDetails{}, tokenError
	}

	environment := make(map[string]string, len(details.EnvironmentVariables)+2)
	for key, value := range details.EnvironmentVariables {
		environment[key] = value
	}
	environment[githubTokenEnvironmentConstant] = token.AccessToken
	environment[terminalPromptEnvironmentConstant] = terminalPromptDisabledValueConstant

	arguments := []string{gitConfigFlagConstant, resetCredentialHelperConstant, gitConfigFlagConstant, githubCredentialHelperConstant}
	details.Arguments = append(arguments, details.Arguments...)
	details.EnvironmentVariables = environment
	return details, nil
}

func validateRequired(repositoryPath string, fieldName string, value string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return InvalidInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(value)) == 0 {
		return InvalidInputError{FieldName: fieldName, Message: requiredValueMessageConstant}
	}
	return nil
}
