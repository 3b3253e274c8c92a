package maven

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/pluginmodernizer/internal/execshell"
	"github.com/temirov/pluginmodernizer/internal/versions"
)

const (
	// DefaultMinimumVersion is the oldest Maven release the invoker accepts.
	DefaultMinimumVersion = "3.9.7"
	// ProjectFileName is the build descriptor every goal runs against.
	ProjectFileName = "pom.xml"

	executableRelativePathConstant = "bin/mvn"
	batchModeFlagConstant          = "-B"
	noTransferProgressFlagConstant = "-ntp"
	projectFileFlagConstant        = "-f"
	versionFlagConstant            = "-v"
	javaHomeVariableConstant       = "JAVA_HOME"
	mavenHomeVariableConstant      = "MAVEN_HOME"
	outputTailLinesConstant        = 20
	executablePermissionMask       = 0o111

	reasonHomeMissingConstant       = "home directory does not exist"
	reasonHomeNotDirectoryConstant  = "home is not a directory"
	reasonExecutableMissingConstant = "bin/mvn not found"
	reasonNotExecutableConstant     = "bin/mvn is not executable"
	reasonVersionFailedConstant     = "mvn -v failed"
	reasonVersionUnknownConstant    = "unable to determine maven version"
	reasonVersionTooOldConstant     = "maven version %s is older than required %s"

	logFieldHomeConstant      = "maven_home"
	logFieldVersionConstant   = "maven_version"
	logFieldGoalsConstant     = "goals"
	logFieldDirectoryConstant = "directory"
	logMessageValidated       = "Validated maven installation"
	logMessageRunningGoals    = "Running maven goals"
)

var versionPattern = regexp.MustCompile(`Apache Maven (\d+(?:\.\d+)*)`)

// ToolExecutor runs an executable addressed by path.
type ToolExecutor interface {
	ExecuteTool(executionContext context.Context, executablePath string, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Options configures the invoker.
type Options struct {
	Home                 string
	MinimumVersion       string
	RewritePluginVersion string
	PreviewRecipes       bool
	ExportDatatables     bool
}

// Request describes one goal invocation.
type Request struct {
	Directory  string
	JavaHome   string
	Goals      []string
	Properties []string
}

// Invoker runs Maven goals.
type Invoker struct {
	logger   *zap.Logger
	executor ToolExecutor
	options  Options

	validationMutex sync.Mutex
	validated       bool
	detectedVersion string
}

// NewInvoker constructs an Invoker.
func NewInvoker(logger *zap.Logger, executor ToolExecutor, options Options) (*Invoker, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(strings.TrimSpace(options.MinimumVersion)) == 0 {
		options.MinimumVersion = DefaultMinimumVersion
	}
	if len(strings.TrimSpace(options.RewritePluginVersion)) == 0 {
		options.RewritePluginVersion = DefaultRewritePluginVersion
	}
	return &Invoker{logger: logger, executor: executor, options: options}, nil
}

// Executable returns the path of the mvn launcher inside the configured home.
func (invoker *Invoker) Executable() string {
	return filepath.Join(invoker.options.Home, executableRelativePathConstant)
}

// Version returns the version detected by the last successful validation.
func (invoker *Invoker) Version() string {
	invoker.validationMutex.Lock()
	defer invoker.validationMutex.Unlock()
	return invoker.detectedVersion
}

// Validate checks that the home exists, contains an executable launcher, and reports a supported version.
// A successful validation is remembered for the lifetime of the invoker.
func (invoker *Invoker) Validate(executionContext context.Context) error {
	invoker.validationMutex.Lock()
	defer invoker.validationMutex.Unlock()
	if invoker.validated {
		return nil
	}

	home := strings.TrimSpace(invoker.options.Home)
	if len(home) == 0 {
		return ValidationError{Home: home, Reason: homeMissingMessageConstant, Cause: ErrHomeNotConfigured}
	}
	homeInfo, homeError := os.Stat(home)
	if homeError != nil {
		return ValidationError{Home: home, Reason: reasonHomeMissingConstant, Cause: homeError}
	}
	if !homeInfo.IsDir() {
		return ValidationError{Home: home, Reason: reasonHomeNotDirectoryConstant}
	}
	executableInfo, executableError := os.Stat(invoker.Executable())
	if executableError != nil {
		return ValidationError{Home: home, Reason: reasonExecutableMissingConstant, Cause: executableError}
	}
	if executableInfo.IsDir() || executableInfo.Mode().Perm()&executablePermissionMask == 0 {
		return ValidationError{Home: home, Reason: reasonNotExecutableConstant}
	}

	result, versionError := invoker.executor.ExecuteTool(executionContext, invoker.Executable(), execshell.CommandDetails{
		Arguments:            []string{batchModeFlagConstant, versionFlagConstant},
		EnvironmentVariables: map[string]string{mavenHomeVariableConstant: home},
	})
	if versionError != nil {
		return ValidationError{Home: home, Reason: reasonVersionFailedConstant, Cause: versionError}
	}
	version, parsed := ParseVersion(result.StandardOutput)
	if !parsed {
		return ValidationError{Home: home, Reason: reasonVersionUnknownConstant}
	}
	if !versions.AtLeast(version, invoker.options.MinimumVersion) {
		return ValidationError{Home: home, Reason: fmt.Sprintf(reasonVersionTooOldConstant, version, invoker.options.MinimumVersion)}
	}

	invoker.validated = true
	invoker.detectedVersion = version
	invoker.logger.Info(logMessageValidated, zap.String(logFieldHomeConstant, home), zap.String(logFieldVersionConstant, version))
	return nil
}

// Invoke validates the installation when needed and runs the requested goals.
func (invoker *Invoker) Invoke(executionContext context.Context, request Request) (execshell.ExecutionResult, error) {
	if len(strings.TrimSpace(request.Directory)) == 0 {
		return execshell.ExecutionResult{}, ErrProjectDirectoryMissing
	}
	if validationError := invoker.Validate(executionContext); validationError != nil {
		return execshell.ExecutionResult{}, validationError
	}

	arguments := []string{batchModeFlagConstant, noTransferProgressFlagConstant, projectFileFlagConstant, ProjectFileName}
	arguments = append(arguments, request.Properties...)
	arguments = append(arguments, request.Goals...)

	environment := map[string]string{mavenHomeVariableConstant: invoker.options.Home}
	if len(request.JavaHome) > 0 {
		environment[javaHomeVariableConstant] = request.JavaHome
	}

	invoker.logger.Debug(logMessageRunningGoals, zap.Strings(logFieldGoalsConstant, request.Goals), zap.String(logFieldDirectoryConstant, request.Directory))
	result, executionError := invoker.executor.ExecuteTool(executionContext, invoker.Executable(), execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     request.Directory,
		EnvironmentVariables: environment,
	})
	if executionError != nil {
		var failedError execshell.CommandFailedError
		if errors.As(executionError, &failedError) {
			return failedError.Result, GoalError{
				Goals:    append([]string(nil), request.Goals...),
				ExitCode: failedError.Result.ExitCode,
				Output:   tailLines(failedError.Result.StandardOutput, outputTailLinesConstant),
				Cause:    executionError,
			}
		}
		return execshell.ExecutionResult{}, executionError
	}
	return result, nil
}

// ParseVersion extracts the Maven version from `mvn -v` output.
func ParseVersion(output string) (string, bool) {
	match := versionPattern.FindStringSubmatch(output)
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

func tailLines(output string, limit int) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return strings.Join(lines, "\n")
}
