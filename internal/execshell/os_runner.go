package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

const (
	environmentAssignmentTemplateConstant = "%s=%s"
	defaultOutputLimitBytesConstant       = 4 << 20
	truncatedOutputMarkerConstant         = "...[truncated]...\n"
)

// OSCommandRunner executes commands using the operating system facilities.
type OSCommandRunner struct {
	outputLimitBytes int
}

// NewOSCommandRunner constructs a runner backed by os/exec that keeps the last few
// megabytes of each output stream.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{outputLimitBytes: defaultOutputLimitBytesConstant}
}

// NewOSCommandRunnerWithOutputLimit constructs a runner retaining at most limit bytes per stream.
// Non-positive limits disable truncation.
func NewOSCommandRunnerWithOutputLimit(limit int) *OSCommandRunner {
	return &OSCommandRunner{outputLimitBytes: limit}
}

// Run executes the supplied command using os/exec.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandArguments := append([]string{}, command.Details.Arguments...)
	executable := exec.CommandContext(executionContext, string(command.Name), commandArguments...)

	if len(command.Details.WorkingDirectory) > 0 {
		executable.Dir = command.Details.WorkingDirectory
	}

	if len(command.Details.EnvironmentVariables) > 0 {
		mergedEnvironment := append([]string{}, os.Environ()...)
		for environmentKey, environmentValue := range command.Details.EnvironmentVariables {
			mergedEnvironment = append(mergedEnvironment, fmt.Sprintf(environmentAssignmentTemplateConstant, environmentKey, environmentValue))
		}
		executable.Env = mergedEnvironment
	}

	standardOutputBuffer := newTailBuffer(runner.outputLimitBytes)
	standardErrorBuffer := newTailBuffer(runner.outputLimitBytes)
	executable.Stdout = standardOutputBuffer
	executable.Stderr = standardErrorBuffer

	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	runError := executable.Run()
	if runError != nil {
		exitError := &exec.ExitError{}
		if errors.As(runError, &exitError) && executionContext.Err() == nil {
			return ExecutionResult{
				StandardOutput: standardOutputBuffer.String(),
				StandardError:  standardErrorBuffer.String(),
				ExitCode:       exitError.ExitCode(),
			}, nil
		}
		if contextError := executionContext.Err(); contextError != nil {
			return ExecutionResult{}, contextError
		}
		return ExecutionResult{}, runError
	}

	return ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
		ExitCode:       0,
	}, nil
}

// tailBuffer keeps only the most recent bytes written to it.
type tailBuffer struct {
	mutex     sync.Mutex
	buffer    []byte
	limit     int
	truncated bool
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (tail *tailBuffer) Write(data []byte) (int, error) {
	tail.mutex.Lock()
	defer tail.mutex.Unlock()

	tail.buffer = append(tail.buffer, data...)
	if tail.limit > 0 && len(tail.buffer) > tail.limit {
		overflow := len(tail.buffer) - tail.limit
		tail.buffer = append(tail.buffer[:0], tail.buffer[overflow:]...)
		tail.truncated = true
	}
	return len(data), nil
}

func (tail *tailBuffer) String() string {
	tail.mutex.Lock()
	defer tail.mutex.Unlock()

	if tail.truncated {
		return truncatedOutputMarkerConstant + string(tail.buffer)
	}
	return string(tail.buffer)
}
