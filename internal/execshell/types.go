package execshell

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	commandGitNameConstant                = "git"
	commandGitHubNameConstant             = "gh"
	commandMavenNameConstant              = "mvn"
	commandFailedErrorTemplateConstant    = "%s command exited with code %d"
	commandFailedWithOutputTemplate       = "%s command exited with code %d: %s"
	commandExecutionErrorTemplateConstant = "%s command failed: %v"
)

// CommandName identifies an external executable.
type CommandName string

// Supported command names.
const (
	CommandGit    CommandName = CommandName(commandGitNameConstant)
	CommandGitHub CommandName = CommandName(commandGitHubNameConstant)
	CommandMaven  CommandName = CommandName(commandMavenNameConstant)
)

// Tool reports the base executable name so absolute tool paths classify like their bare names.
func (name CommandName) Tool() CommandName {
	return CommandName(filepath.Base(string(name)))
}

// CommandDetails describes arguments and process settings for a command invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand couples an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable results of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandFailedError reports a process that ran to completion with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failedError CommandFailedError) Error() string {
	trimmedStandardError := strings.TrimSpace(failedError.Result.StandardError)
	if len(trimmedStandardError) == 0 {
		return fmt.Sprintf(commandFailedErrorTemplateConstant, failedError.Command.Name.Tool(), failedError.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedWithOutputTemplate, failedError.Command.Name.Tool(), failedError.Result.ExitCode, trimmedStandardError)
}

// CommandExecutionError reports a process that could not be started or was interrupted.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, executionError.Command.Name.Tool(), executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}
