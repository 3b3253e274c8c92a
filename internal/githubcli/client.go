package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/temirov/pluginmodernizer/internal/execshell"
)

const (
	repoSubcommandConstant                  = "repo"
	viewSubcommandConstant                  = "view"
	forkSubcommandConstant                  = "fork"
	deleteSubcommandConstant                = "delete"
	jsonFlagConstant                        = "--json"
	organizationFlagConstant                = "--org"
	cloneDisabledFlagConstant               = "--clone=false"
	defaultBranchOnlyFlagConstant           = "--default-branch-only"
	confirmFlagConstant                     = "--yes"
	repositoryFieldNameConstant             = "repository"
	requiredValueMessageConstant            = "value required"
	executorNotConfiguredMessageConstant    = "github cli executor not configured"
	repositoryNotFoundMessageConstant       = "repository not found"
	repositoryNotFoundIndicatorConstant     = "could not resolve to a repository"
	repositoryNotFoundHTTPIndicatorConstant = "http 404"
	repoViewJSONFieldsConstant              = "nameWithOwner,description,defaultBranchRef,isFork,parent,owner,visibility"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	repositoryIdentifierTemplateConstant    = "%s/%s"
	githubTokenEnvironmentVariableConstant  = "GH_TOKEN"
	repositoryMetadataOperationNameConstant = OperationName("ResolveRepoMetadata")
	forkRepositoryOperationNameConstant     = OperationName("ForkRepository")
	deleteRepositoryOperationNameConstant   = OperationName("DeleteRepository")
	rateLimitOperationNameConstant          = OperationName("WaitForRateLimit")
	tokenOperationNameConstant              = OperationName("ResolveToken")
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// RepositoryMetadata contains key details resolved from GitHub.
type RepositoryMetadata struct {
	NameWithOwner       string
	Owner               string
	Description         string
	DefaultBranch       string
	IsFork              bool
	ParentNameWithOwner string
}

// RepositoryIdentifier joins owner and name into "owner/name".
func RepositoryIdentifier(owner string, name string) string {
	return fmt.Sprintf(repositoryIdentifierTemplateConstant, strings.TrimSpace(owner), strings.TrimSpace(name))
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client coordinates GitHub CLI invocations through execshell.
type Client struct {
	executor    GitHubCommandExecutor
	limiter     *rate.Limiter
	tokenSource oauth2.TokenSource
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithRateLimiter shares limiter across every invocation of the client.
func WithRateLimiter(limiter *rate.Limiter) ClientOption {
	return func(client *Client) {
		client.limiter = limiter
	}
}

// WithTokenSource supplies the credential exported as GH_TOKEN to each invocation.
func WithTokenSource(tokenSource oauth2.TokenSource) ClientOption {
	return func(client *Client) {
		client.tokenSource = tokenSource
	}
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrRepositoryNotFound indicates GitHub reported the repository does not exist.
	ErrRepositoryNotFound = errors.New(repositoryNotFoundMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// NewClient constructs a GitHub CLI client.
func NewClient(executor GitHubCommandExecutor, options ...ClientOption) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	client := &Client{executor: executor}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

// ResolveRepoMetadata retrieves canonical metadata for a repository using gh repo view.
// A missing repository yields an OperationError wrapping ErrRepositoryNotFound.
func (client *Client) ResolveRepoMetadata(executionContext context.Context, repository string) (RepositoryMetadata, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return RepositoryMetadata{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.execute(executionContext, repositoryMetadataOperationNameConstant, execshell.CommandDetails{
		Arguments: []string{
			repoSubcommandConstant,
			viewSubcommandConstant,
			repositoryIdentifier,
			jsonFlagConstant,
			repoViewJSONFieldsConstant,
		},
	})
	if executionError != nil {
		return RepositoryMetadata{}, executionError
	}

	var response struct {
		NameWithOwner    string `json:"nameWithOwner"`
		Description      string `json:"description"`
		IsFork           bool   `json:"isFork"`
		DefaultBranchRef struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
		Parent *struct {
			Name  string `json:"name"`
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"parent"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return RepositoryMetadata{}, ResponseDecodingError{Operation: repositoryMetadataOperationNameConstant, Cause: decodingError}
	}

	metadata := RepositoryMetadata{
		NameWithOwner: response.NameWithOwner,
		Owner:         response.Owner.Login,
		Description:   response.Description,
		DefaultBranch: response.DefaultBranchRef.Name,
		IsFork:        response.IsFork,
	}
	if response.Parent != nil && len(response.Parent.Name) > 0 {
		metadata.ParentNameWithOwner = RepositoryIdentifier(response.Parent.Owner.Login, response.Parent.Name)
	}
	return metadata, nil
}

// ForkRepository requests a fork of repository without cloning it. An empty organization forks into the
// authenticated account. GitHub creates forks asynchronously; callers poll ResolveRepoMetadata.
func (client *Client) ForkRepository(executionContext context.Context, repository string, organization string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{
		repoSubcommandConstant,
		forkSubcommandConstant,
		repositoryIdentifier,
		cloneDisabledFlagConstant,
		defaultBranchOnlyFlagConstant,
	}
	if trimmedOrganization := strings.TrimSpace(organization); len(trimmedOrganization) > 0 {
		arguments = append(arguments, organizationFlagConstant, trimmedOrganization)
	}

	_, executionError := client.execute(executionContext, forkRepositoryOperationNameConstant, execshell.CommandDetails{Arguments: arguments})
	return executionError
}

// DeleteRepository permanently removes repository.
func (client *Client) DeleteRepository(executionContext context.Context, repository string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := client.execute(executionContext, deleteRepositoryOperationNameConstant, execshell.CommandDetails{
		Arguments: []string{repoSubcommandConstant, deleteSubcommandConstant, repositoryIdentifier, confirmFlagConstant},
	})
	return executionError
}

func (client *Client) execute(executionContext context.Context, operation OperationName, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	if client.limiter != nil {
		if waitError := client.limiter.Wait(executionContext); waitError != nil {
			return execshell.ExecutionResult{}, OperationError{Operation: rateLimitOperationNameConstant, Cause: waitError}
		}
	}

	if client.tokenSource != nil {
		token, tokenError := client.tokenSource.Token()
		if tokenError != nil {
			return execshell.ExecutionResult{}, OperationError{Operation: tokenOperationNameConstant, Cause: tokenError}
		}
		environment := make(map[string]string, len(details.EnvironmentVariables)+1)
		for key, value := range details.EnvironmentVariables {
			environment[key] = value
		}
		environment[githubTokenEnvironmentVariableConstant] = token.AccessToken
		details.EnvironmentVariables = environment
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, details)
	if executionError != nil {
		if isRepositoryNotFound(executionError) {
			return execshell.ExecutionResult{}, OperationError{Operation: operation, Cause: errors.Join(ErrRepositoryNotFound, executionError)}
		}
		return execshell.ExecutionResult{}, OperationError{Operation: operation, Cause: executionError}
	}
	return executionResult, nil
}

func isRepositoryNotFound(executionError error) bool {
	var failedError execshell.CommandFailedError
	if !errors.As(executionError, &failedError) {
		return false
	}
	standardError := strings.ToLower(failedError.Result.StandardError)
	return strings.Contains(standardError, repositoryNotFoundIndicatorConstant) || strings.Contains(standardError, repositoryNotFoundHTTPIndicatorConstant)
}
