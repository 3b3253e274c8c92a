package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	standardErrorSuffixLimitConstant        = 512
	unknownFailureMessageConstant           = "unknown error"
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
	gitConfigFlagConstant                   = "-c"
	mavenFileFlagConstant                   = "-f"
)

const (
	gitCloneSubcommandNameConstant    = "clone"
	gitCheckoutSubcommandNameConstant = "checkout"
	gitStatusSubcommandNameConstant   = "status"
	gitAddSubcommandNameConstant      = "add"
	gitCommitSubcommandNameConstant   = "commit"
	gitPushSubcommandNameConstant     = "push"
	gitRemoteSubcommandNameConstant   = "remote"
	gitFetchSubcommandNameConstant    = "fetch"
	gitCreateBranchFlagConstant       = "-b"
)

const (
	githubRepoSubcommandNameConstant        = "repo"
	githubPullRequestSubcommandNameConstant = "pr"
	githubAPISubcommandNameConstant         = "api"
	githubForkSubcommandNameConstant        = "fork"
	githubViewSubcommandNameConstant        = "view"
	githubDeleteSubcommandNameConstant      = "delete"
	githubListSubcommandNameConstant        = "list"
	githubCreateSubcommandNameConstant      = "create"
	githubRepoFlagConstant                  = "--repo"
)

type stageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	gitCloneTemplates = stageTemplates{
		start:            "Cloning %s into %s",
		success:          "Cloned %s into %s",
		failure:          "Failed to clone %s into %s (exit code %d%s)",
		executionFailure: "Unable to clone %s into %s: %s",
	}
	gitCheckoutTemplates = stageTemplates{
		start:            "Switching to branch %s in %s",
		success:          "Switched to branch %s in %s",
		failure:          "Failed to switch to branch %s in %s (exit code %d%s)",
		executionFailure: "Unable to switch to branch %s in %s: %s",
	}
	gitStatusTemplates = stageTemplates{
		start:            "Reviewing working tree status of %s in %s",
		success:          "Collected working tree status of %s in %s",
		failure:          "Failed to review working tree status of %s in %s (exit code %d%s)",
		executionFailure: "Unable to review working tree status of %s in %s: %s",
	}
	gitAddTemplates = stageTemplates{
		start:            "Staging %s in %s",
		success:          "Staged %s in %s",
		failure:          "Failed to stage %s in %s (exit code %d%s)",
		executionFailure: "Unable to stage %s in %s: %s",
	}
	gitCommitTemplates = stageTemplates{
		start:            "Creating commit %q in %s",
		success:          "Created commit %q in %s",
		failure:          "Failed to create commit %q in %s (exit code %d%s)",
		executionFailure: "Unable to create commit %q in %s: %s",
	}
	gitPushTemplates = stageTemplates{
		start:            "Pushing %s from %s",
		success:          "Pushed %s from %s",
		failure:          "Failed to push %s from %s (exit code %d%s)",
		executionFailure: "Unable to push %s from %s: %s",
	}
	gitRemoteTemplates = stageTemplates{
		start:            "Configuring remote %s in %s",
		success:          "Configured remote %s in %s",
		failure:          "Failed to configure remote %s in %s (exit code %d%s)",
		executionFailure: "Unable to configure remote %s in %s: %s",
	}
	githubForkTemplates = stageTemplates{
		start:            "Forking %s into %s",
		success:          "Forked %s into %s",
		failure:          "Failed to fork %s into %s (exit code %d%s)",
		executionFailure: "Unable to fork %s into %s: %s",
	}
	githubRepoViewTemplates = stageTemplates{
		start:            "Retrieving repository details for %s%s",
		success:          "Retrieved repository details for %s%s",
		failure:          "Failed to retrieve repository details for %s%s (exit code %d%s)",
		executionFailure: "Unable to retrieve repository details for %s%s: %s",
	}
	githubRepoDeleteTemplates = stageTemplates{
		start:            "Deleting repository %s%s",
		success:          "Deleted repository %s%s",
		failure:          "Failed to delete repository %s%s (exit code %d%s)",
		executionFailure: "Unable to delete repository %s%s: %s",
	}
	githubPullRequestListTemplates = stageTemplates{
		start:            "Listing pull requests for %s%s",
		success:          "Listed pull requests for %s%s",
		failure:          "Failed to list pull requests for %s%s (exit code %d%s)",
		executionFailure: "Unable to list pull requests for %s%s: %s",
	}
	githubPullRequestCreateTemplates = stageTemplates{
		start:            "Opening pull request on %s%s",
		success:          "Opened pull request on %s%s",
		failure:          "Failed to open pull request on %s%s (exit code %d%s)",
		executionFailure: "Unable to open pull request on %s%s: %s",
	}
	githubAPITemplates = stageTemplates{
		start:            "Calling GitHub API %s%s",
		success:          "Called GitHub API %s%s",
		failure:          "GitHub API call %s%s failed (exit code %d%s)",
		executionFailure: "Unable to call GitHub API %s%s: %s",
	}
	mavenTemplates = stageTemplates{
		start:            "Running build goals %s in %s",
		success:          "Build goals %s succeeded in %s",
		failure:          "Build goals %s failed in %s (exit code %d%s)",
		executionFailure: "Unable to run build goals %s in %s: %s",
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name.Tool() {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandGitHub:
		return formatter.describeGitHubMessage(command, result, failure, stage)
	case CommandMaven:
		goals := strings.Join(formatter.mavenGoals(command.Details.Arguments), commandArgumentsJoinSeparatorConstant)
		return formatter.render(mavenTemplates, stage, result, failure, formatter.ensureValue(goals), formatter.describeWorkingDirectory(command))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := formatter.stripGitConfiguration(command.Details.Arguments)
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	positional := formatter.positionalArguments(arguments[1:])

	switch strings.TrimSpace(arguments[0]) {
	case gitCloneSubcommandNameConstant:
		return formatter.render(gitCloneTemplates, stage, result, failure, formatter.argumentAtIndex(positional, 0), formatter.ensureValue(formatter.argumentAtIndex(positional, 1)))
	case gitCheckoutSubcommandNameConstant:
		branchName := findFlagValue(arguments, gitCreateBranchFlagConstant)
		if len(branchName) == 0 {
			branchName = formatter.argumentAtIndex(positional, 0)
		}
		return formatter.render(gitCheckoutTemplates, stage, result, failure, formatter.ensureValue(branchName), workingDirectory)
	case gitStatusSubcommandNameConstant:
		return formatter.render(gitStatusTemplates, stage, result, failure, defaultWorkingDirectoryLabelConstant, workingDirectory)
	case gitAddSubcommandNameConstant:
		return formatter.render(gitAddTemplates, stage, result, failure, formatter.ensureValue(strings.Join(arguments[1:], commandArgumentsJoinSeparatorConstant)), workingDirectory)
	case gitCommitSubcommandNameConstant:
		return formatter.render(gitCommitTemplates, stage, result, failure, findFlagValue(arguments, "-m"), workingDirectory)
	case gitPushSubcommandNameConstant:
		return formatter.render(gitPushTemplates, stage, result, failure, formatter.ensureValue(strings.Join(positional, commandArgumentsJoinSeparatorConstant)), workingDirectory)
	case gitRemoteSubcommandNameConstant, gitFetchSubcommandNameConstant:
		return formatter.render(gitRemoteTemplates, stage, result, failure, formatter.ensureValue(strings.Join(positional, commandArgumentsJoinSeparatorConstant)), workingDirectory)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitHubMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) < 2 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	primary := strings.TrimSpace(arguments[0])
	secondary := strings.TrimSpace(arguments[1])
	positional := formatter.positionalArguments(arguments[2:])
	repository := findFlagValue(arguments, githubRepoFlagConstant)
	if len(repository) == 0 {
		repository = formatter.argumentAtIndex(positional, 0)
	}
	repository = formatter.ensureValue(repository)

	switch {
	case primary == githubRepoSubcommandNameConstant && secondary == githubForkSubcommandNameConstant:
		return formatter.render(githubForkTemplates, stage, result, failure, repository, formatter.ensureValue(findFlagValue(arguments, "--org")))
	case primary == githubRepoSubcommandNameConstant && secondary == githubViewSubcommandNameConstant:
		return formatter.render(githubRepoViewTemplates, stage, result, failure, repository, "")
	case primary == githubRepoSubcommandNameConstant && secondary == githubDeleteSubcommandNameConstant:
		return formatter.render(githubRepoDeleteTemplates, stage, result, failure, repository, "")
	case primary == githubPullRequestSubcommandNameConstant && secondary == githubListSubcommandNameConstant:
		return formatter.render(githubPullRequestListTemplates, stage, result, failure, repository, "")
	case primary == githubPullRequestSubcommandNameConstant && secondary == githubCreateSubcommandNameConstant:
		return formatter.render(githubPullRequestCreateTemplates, stage, result, failure, repository, "")
	case primary == githubAPISubcommandNameConstant:
		return formatter.render(githubAPITemplates, stage, result, failure, secondary, "")
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) render(templates stageTemplates, stage messageStage, result ExecutionResult, failure error, subject string, location string) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, subject, location)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, subject, location)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, subject, location, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(templates.executionFailure, subject, location, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandParts := []string{string(command.Name.Tool())}
	if len(command.Details.Arguments) > 0 {
		commandParts = append(commandParts, command.Details.Arguments...)
	}
	commandLabel := strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return commandLabel
	}
	return commandLabel + fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return ""
	}
	if len(trimmedStandardError) > standardErrorSuffixLimitConstant {
		trimmedStandardError = trimmedStandardError[len(trimmedStandardError)-standardErrorSuffixLimitConstant:]
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return ""
	}
	return strings.TrimSpace(arguments[index])
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedValue
}

// positionalArguments drops every argument that looks like a flag.
func (formatter CommandMessageFormatter) positionalArguments(arguments []string) []string {
	positional := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if len(trimmedArgument) == 0 || strings.HasPrefix(trimmedArgument, flagPrefixConstant) {
			continue
		}
		positional = append(positional, trimmedArgument)
	}
	return positional
}

func (formatter CommandMessageFormatter) mavenGoals(arguments []string) []string {
	goals := make([]string, 0, len(arguments))
	skipNext := false
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if skipNext {
			skipNext = false
			continue
		}
		if trimmedArgument == mavenFileFlagConstant {
			skipNext = true
			continue
		}
		if len(trimmedArgument) == 0 || strings.HasPrefix(trimmedArgument, flagPrefixConstant) {
			continue
		}
		goals = append(goals, trimmedArgument)
	}
	return goals
}

func (formatter CommandMessageFormatter) stripGitConfiguration(arguments []string) []string {
	remaining := arguments
	for len(remaining) >= 2 && strings.TrimSpace(remaining[0]) == gitConfigFlagConstant {
		remaining = remaining[2:]
	}
	return remaining
}

func findFlagValue(arguments []string, flag string) string {
	for argumentIndex := 0; argumentIndex < len(arguments)-1; argumentIndex++ {
		if strings.TrimSpace(arguments[argumentIndex]) == flag {
			return strings.TrimSpace(arguments[argumentIndex+1])
		}
	}
	return ""
}
