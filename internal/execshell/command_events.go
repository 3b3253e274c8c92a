package execshell

import "time"

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	// CommandStarted notifies observers that command execution is beginning.
	CommandStarted(command ShellCommand)
	// CommandCompleted reports a finished process, including non-zero exits, and how long it ran.
	CommandCompleted(command ShellCommand, result ExecutionResult, elapsed time.Duration)
	// CommandExecutionFailed reports failures prior to receiving an execution result.
	CommandExecutionFailed(command ShellCommand, failure error)
}
