package githubcli

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/temirov/pluginmodernizer/internal/execshell"
)

const (
	pullRequestSubcommandConstant          = "pr"
	listSubcommandConstant                 = "list"
	createSubcommandConstant               = "create"
	repoFlagConstant                       = "--repo"
	stateFlagConstant                      = "--state"
	baseFlagConstant                       = "--base"
	headFlagConstant                       = "--head"
	limitFlagConstant                      = "--limit"
	titleFlagConstant                      = "--title"
	bodyFileFlagConstant                   = "--body-file"
	draftFlagConstant                      = "--draft"
	stdinReferenceConstant                 = "-"
	headBranchFieldNameConstant            = "head_branch"
	baseBranchFieldNameConstant            = "base_branch"
	titleFieldNameConstant                 = "title"
	stateFieldNameConstant                 = "state"
	pullRequestLimitDefaultValueConstant   = 100
	pullRequestJSONFieldsConstant          = "number,title,headRefName,headRepositoryOwner,url,isDraft"
	listPullRequestsOperationNameConstant  = OperationName("ListPullRequests")
	createPullRequestOperationNameConstant = OperationName("CreatePullRequest")
)

// PullRequestState describes acceptable GitHub pull request states.
type PullRequestState string

// Pull request state enumerations.
const (
	PullRequestStateOpen   PullRequestState = PullRequestState("open")
	PullRequestStateClosed PullRequestState = PullRequestState("closed")
	PullRequestStateMerged PullRequestState = PullRequestState("merged")
	PullRequestStateAll    PullRequestState = PullRequestState("all")
)

// PullRequest represents minimal PR details returned by GitHub CLI.
type PullRequest struct {
	Number              int
	Title               string
	HeadRefName         string
	HeadRepositoryOwner string
	URL                 string
	IsDraft             bool
}

// PullRequestListOptions configures ListPullRequests queries. HeadBranch is a bare branch name;
// gh does not filter by "owner:branch", so callers match HeadRepositoryOwner themselves.
type PullRequestListOptions struct {
	State       PullRequestState
	BaseBranch  string
	HeadBranch  string
	ResultLimit int
}

// PullRequestCreateOptions describes a pull request to open against Repository.
type PullRequestCreateOptions struct {
	Repository string
	BaseBranch string
	HeadBranch string
	Title      string
	Body       string
	Draft      bool
}

// ListPullRequests enumerates pull requests using gh pr list.
func (client *Client) ListPullRequests(executionContext context.Context, repository string, options PullRequestListOptions) ([]PullRequest, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(options.State) == 0 {
		return nil, InvalidInputError{FieldName: stateFieldNameConstant, Message: requiredValueMessageConstant}
	}

	resultLimit := options.ResultLimit
	if resultLimit <= 0 {
		resultLimit = pullRequestLimitDefaultValueConstant
	}

	arguments := []string{
		pullRequestSubcommandConstant,
		listSubcommandConstant,
		repoFlagConstant,
		repositoryIdentifier,
		stateFlagConstant,
		string(options.State),
	}
	if baseBranch := strings.TrimSpace(options.BaseBranch); len(baseBranch) > 0 {
		arguments = append(arguments, baseFlagConstant, baseBranch)
	}
	if headBranch := strings.TrimSpace(options.HeadBranch); len(headBranch) > 0 {
		arguments = append(arguments, headFlagConstant, headBranch)
	}
	arguments = append(arguments, jsonFlagConstant, pullRequestJSONFieldsConstant, limitFlagConstant, strconv.Itoa(resultLimit))

	executionResult, executionError := client.execute(executionContext, listPullRequestsOperationNameConstant, execshell.CommandDetails{Arguments: arguments})
	if executionError != nil {
		return nil, executionError
	}

	var response []struct {
		Number              int    `json:"number"`
		Title               string `json:"title"`
		HeadRefName         string `json:"headRefName"`
		HeadRepositoryOwner struct {
			Login string `json:"login"`
		} `json:"headRepositoryOwner"`
		URL     string `json:"url"`
		IsDraft bool   `json:"isDraft"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return nil, ResponseDecodingError{Operation: listPullRequestsOperationNameConstant, Cause: decodingError}
	}

	pullRequests := make([]PullRequest, 0, len(response))
	for _, pullRequestEntry := range response {
		pullRequests = append(pullRequests, PullRequest{
			Number:              pullRequestEntry.Number,
			Title:               pullRequestEntry.Title,
			HeadRefName:         pullRequestEntry.HeadRefName,
			HeadRepositoryOwner: pullRequestEntry.HeadRepositoryOwner.Login,
			URL:                 pullRequestEntry.URL,
			IsDraft:             pullRequestEntry.IsDraft,
		})
	}

	return pullRequests, nil
}

// CreatePullRequest opens a pull request and returns its URL. The body is passed on standard input.
func (client *Client) CreatePullRequest(executionContext context.Context, options PullRequestCreateOptions) (string, error) {
	repositoryIdentifier := strings.TrimSpace(options.Repository)
	switch {
	case len(repositoryIdentifier) == 0:
		return "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	case len(strings.TrimSpace(options.BaseBranch)) == 0:
		return "", InvalidInputError{FieldName: baseBranchFieldNameConstant, Message: requiredValueMessageConstant}
	case len(strings.TrimSpace(options.HeadBranch)) == 0:
		return "", InvalidInputError{FieldName: headBranchFieldNameConstant, Message: requiredValueMessageConstant}
	case len(strings.TrimSpace(options.Title)) == 0:
		return "", InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{
		pullRequestSubcommandConstant,
		createSubcommandConstant,
		repoFlagConstant,
		repositoryIdentifier,
		baseFlagConstant,
		strings.TrimSpace(options.BaseBranch),
		headFlagConstant,
		strings.TrimSpace(options.HeadBranch),
		titleFlagConstant,
		options.Title,
		bodyFileFlagConstant,
		stdinReferenceConstant,
	}
	if options.Draft {
		arguments = append(arguments, draftFlagConstant)
	}

	executionResult, executionError := client.execute(executionContext, createPullRequestOperationNameConstant, execshell.CommandDetails{
		Arguments:     arguments,
		StandardInput: []byte(options.Body),
	})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}
