package gitrepo_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/temirov/pluginmodernizer/internal/execshell"
	"github.com/temirov/pluginmodernizer/internal/gitrepo"
)

const (
	testRepositoryPathConstant = "/work/mailer"
	testBranchNameConstant     = "plugin-modernizer"
	testForkURLConstant        = "https://github.com/modernizer-bot/mailer-plugin.git"
)

type scriptedGitExecutor struct {
	responses       map[string]execshell.ExecutionResult
	failures        map[string]error
	recordedDetails []execshell.CommandDetails
}

func (executor *scriptedGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	key := strings.Join(details.Arguments, " ")
	if failure, found := executor.failures[key]; found {
		return execshell.ExecutionResult{}, failure
	}
	return executor.responses[key], nil
}

func (executor *scriptedGitExecutor) arguments() []string {
	recorded := make([]string, 0, len(executor.recordedDetails))
	for _, details := range executor.recordedDetails {
		recorded = append(recorded, strings.Join(details.Arguments, " "))
	}
	return recorded
}

func commandFailure(exitCode int) error {
	return execshell.CommandFailedError{Command: execshell.ShellCommand{Name: execshell.CommandGit}, Result: execshell.ExecutionResult{ExitCode: exitCode}}
}

func TestNewRepositoryManagerRequiresExecutor(testInstance *testing.T) {
	manager, creationError := gitrepo.NewRepositoryManager(nil)
	require.ErrorIs(testInstance, creationError, gitrepo.ErrExecutorNotConfigured)
	require.Nil(testInstance, manager)
}

func TestCheckoutBranchCreatesOrReuses(testInstance *testing.T) {
	testCases := []struct {
		name             string
		failures         map[string]error
		expectedCheckout string
	}{
		{
			name:             "existing_branch",
			expectedCheckout: "checkout plugin-modernizer",
		},
		{
			name:             "new_branch",
			failures:         map[string]error{"rev-parse --verify --quiet refs/heads/plugin-modernizer": commandFailure(1)},
			expectedCheckout: "checkout -b plugin-modernizer",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{failures: testCase.failures}
			manager, creationError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, creationError)

			require.NoError(testInstance, manager.CheckoutBranch(context.Background(), testRepositoryPathConstant, testBranchNameConstant))
			require.Equal(testInstance, []string{"rev-parse --verify --quiet refs/heads/plugin-modernizer", testCase.expectedCheckout}, executor.arguments())
			require.Equal(testInstance, testRepositoryPathConstant, executor.recordedDetails[1].WorkingDirectory)
		})
	}
}

func TestBranchExistsSurfacesExecutionErrors(testInstance *testing.T) {
	startError := execshell.CommandExecutionError{Command: execshell.ShellCommand{Name: execshell.CommandGit}, Cause: errors.New("git missing")}
	executor := &scriptedGitExecutor{failures: map[string]error{"rev-parse --verify --quiet refs/heads/plugin-modernizer": startError}}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	_, existsError := manager.BranchExists(context.Background(), testRepositoryPathConstant, testBranchNameConstant)
	var operationError gitrepo.OperationError
	require.ErrorAs(testInstance, existsError, &operationError)
	require.Equal(testInstance, "rev-parse", operationError.Operation)
}

func TestCheckCleanWorktree(testInstance *testing.T) {
	testCases := []struct {
		name          string
		statusOutput  string
		expectedClean bool
	}{
		{name: "clean", statusOutput: "\n", expectedClean: true},
		{name: "modified", statusOutput: " M pom.xml\n?? .github/CODEOWNERS\n", expectedClean: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{responses: map[string]execshell.ExecutionResult{"status --porcelain": {StandardOutput: testCase.statusOutput}}}
			manager, creationError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, creationError)

			clean, statusError := manager.CheckCleanWorktree(context.Background(), testRepositoryPathConstant)
			require.NoError(testInstance, statusError)
			require.Equal(testInstance, testCase.expectedClean, clean)
		})
	}
}

func TestCommitAllIsUnsigned(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	require.NoError(testInstance, manager.CommitAll(context.Background(), testRepositoryPathConstant, gitrepo.CommitOptions{
		Message:     "Add CODEOWNERS",
		AuthorName:  "Modernizer Bot",
		AuthorEmail: "bot@example.com",
	}))
	require.Equal(testInstance, []string{
		"add --all",
		"commit --no-gpg-sign -m Add CODEOWNERS --author Modernizer Bot <bot@example.com>",
	}, executor.arguments())

	var inputError gitrepo.InvalidInputError
	require.ErrorAs(testInstance, manager.CommitAll(context.Background(), testRepositoryPathConstant, gitrepo.CommitOptions{}), &inputError)
	require.Equal(testInstance, "commit_message", inputError.FieldName)
}

func TestNetworkOperationsUseCredentialHelper(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	manager, creationError := gitrepo.NewRepositoryManager(executor, gitrepo.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret"})))
	require.NoError(testInstance, creationError)

	require.NoError(testInstance, manager.Clone(context.Background(), testForkURLConstant, testRepositoryPathConstant))
	require.NoError(testInstance, manager.Push(context.Background(), testRepositoryPathConstant, gitrepo.OriginRemoteName, testBranchNameConstant))

	require.Equal(testInstance, []string{
		"-c credential.helper= -c credential.helper=!gh auth git-credential clone --origin origin " + testForkURLConstant + " " + testRepositoryPathConstant,
		"-c credential.helper= -c credential.helper=!gh auth git-credential push --force-with-lease --set-upstream origin plugin-modernizer",
	}, executor.arguments())
	require.Equal(testInstance, "/work", executor.recordedDetails[0].WorkingDirectory)
	for _, details := range executor.recordedDetails {
		require.Equal(testInstance, "secret", details.EnvironmentVariables["GH_TOKEN"])
		require.Equal(testInstance, "0", details.EnvironmentVariables["GIT_TERMINAL_PROMPT"])
		require.NotContains(testInstance, strings.Join(details.Arguments, " "), "secret")
	}
}

func TestSetRemoteURLAddsOrUpdates(testInstance *testing.T) {
	upstreamURL := "https://github.com/jenkinsci/mailer-plugin.git"
	testCases := []struct {
		name             string
		responses        map[string]execshell.ExecutionResult
		failures         map[string]error
		expectedCommands []string
	}{
		{
			name:             "missing_remote",
			failures:         map[string]error{"remote get-url upstream": commandFailure(2)},
			expectedCommands: []string{"remote get-url upstream", "remote add upstream " + upstreamURL},
		},
		{
			name:             "different_remote",
			responses:        map[string]execshell.ExecutionResult{"remote get-url upstream": {StandardOutput: "https://github.com/someone/else.git\n"}},
			expectedCommands: []string{"remote get-url upstream", "remote set-url upstream " + upstreamURL},
		},
		{
			name:             "already_configured",
			responses:        map[string]execshell.ExecutionResult{"remote get-url upstream": {StandardOutput: upstreamURL + "\n"}},
			expectedCommands: []string{"remote get-url upstream"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{responses: testCase.responses, failures: testCase.failures}
			manager, creationError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, creationError)

			require.NoError(testInstance, manager.SetRemoteURL(context.Background(), testRepositoryPathConstant, gitrepo.UpstreamRemoteName, upstreamURL))
			require.Equal(testInstance, testCase.expectedCommands, executor.arguments())
		})
	}
}

func TestGetCurrentBranch(testInstance *testing.T) {
	executor := &scriptedGitExecutor{responses: map[string]execshell.ExecutionResult{"rev-parse --abbrev-ref HEAD": {StandardOutput: "plugin-modernizer\n"}}}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	branch, branchError := manager.GetCurrentBranch(context.Background(), testRepositoryPathConstant)
	require.NoError(testInstance, branchError)
	require.Equal(testInstance, testBranchNameConstant, branch)
}

func TestCountUnpushedCommits(testInstance *testing.T) {
	testCases := []struct {
		name          string
		responses     map[string]execshell.ExecutionResult
		failures      map[string]error
		expectedCount int
		expectedCalls []string
	}{
		{
			name:          "pushed_branch",
			responses:     map[string]execshell.ExecutionResult{"rev-list --count refs/remotes/origin/plugin-modernizer..HEAD": {StandardOutput: "2\n"}},
			expectedCount: 2,
			expectedCalls: []string{
				"rev-parse --verify --quiet refs/remotes/origin/plugin-modernizer",
				"rev-list --count refs/remotes/origin/plugin-modernizer..HEAD",
			},
		},
		{
			name:          "never_pushed",
			responses:     map[string]execshell.ExecutionResult{"rev-list --count refs/remotes/origin/HEAD..HEAD": {StandardOutput: "1\n"}},
			failures:      map[string]error{"rev-parse --verify --quiet refs/remotes/origin/plugin-modernizer": commandFailure(1)},
			expectedCount: 1,
			expectedCalls: []string{
				"rev-parse --verify --quiet refs/remotes/origin/plugin-modernizer",
				"rev-parse --verify --quiet refs/remotes/origin/HEAD",
				"rev-list --count refs/remotes/origin/HEAD..HEAD",
			},
		},
		{
			name: "no_remote_references",
			failures: map[string]error{
				"rev-parse --verify --quiet refs/remotes/origin/plugin-modernizer": commandFailure(1),
				"rev-parse --verify --quiet refs/remotes/origin/HEAD":              commandFailure(1),
			},
			expectedCalls: []string{
				"rev-parse --verify --quiet refs/remotes/origin/plugin-modernizer",
				"rev-parse --verify --quiet refs/remotes/origin/HEAD",
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{responses: testCase.responses, failures: testCase.failures}
			manager, creationError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, creationError)

			count, countError := manager.CountUnpushedCommits(context.Background(), testRepositoryPathConstant, gitrepo.OriginRemoteName, testBranchNameConstant)
			require.NoError(testInstance, countError)
			require.Equal(testInstance, testCase.expectedCount, count)
			require.Equal(testInstance, testCase.expectedCalls, executor.arguments())
		})
	}
}
