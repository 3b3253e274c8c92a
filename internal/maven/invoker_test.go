package maven_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pluginmodernizer/internal/execshell"
	"github.com/temirov/pluginmodernizer/internal/jdk"
	"github.com/temirov/pluginmodernizer/internal/maven"
	"github.com/temirov/pluginmodernizer/internal/plugin"
	"github.com/temirov/pluginmodernizer/internal/recipes"
)

const (
	versionOutput = "Apache Maven 3.9.9 (8e8579a9e76f7d015ee5ec7bfcdc97d260186937)\nMaven home: /opt/maven\nJava version: 17.0.12\n"
	oldVersion    = "Apache Maven 3.8.6 (84538c9988a25aec085021c365c560670ad80f63)\n"
)

type recordedInvocation struct {
	executable string
	details    execshell.CommandDetails
}

type stubToolExecutor struct {
	versionOutput string
	goalResults   map[string]error
	invocations   []recordedInvocation
}

func (stub *stubToolExecutor) ExecuteTool(_ context.Context, executablePath string, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	stub.invocations = append(stub.invocations, recordedInvocation{executable: executablePath, details: details})
	if len(details.Arguments) == 2 && details.Arguments[1] == "-v" {
		return execshell.ExecutionResult{StandardOutput: stub.versionOutput}, nil
	}
	lastArgument := details.Arguments[len(details.Arguments)-1]
	if failure, configured := stub.goalResults[lastArgument]; configured {
		return execshell.ExecutionResult{}, failure
	}
	return execshell.ExecutionResult{StandardOutput: "BUILD SUCCESS"}, nil
}

func createMavenHome(testInstance *testing.T, permissions os.FileMode) string {
	testInstance.Helper()
	home := testInstance.TempDir()
	require.NoError(testInstance, os.MkdirAll(filepath.Join(home, "bin"), 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(home, "bin", "mvn"), []byte("#!/bin/sh\n"), permissions))
	return home
}

func TestParseVersion(testInstance *testing.T) {
	testCases := []struct {
		name            string
		output          string
		expectedVersion string
		expectedParsed  bool
	}{
		{name: "release", output: versionOutput, expectedVersion: "3.9.9", expectedParsed: true},
		{name: "four components", output: "Apache Maven 4.0.0.1\n", expectedVersion: "4.0.0.1", expectedParsed: true},
		{name: "unrelated", output: "command not found", expectedParsed: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			version, parsed := maven.ParseVersion(testCase.output)
			require.Equal(subTest, testCase.expectedParsed, parsed)
			require.Equal(subTest, testCase.expectedVersion, version)
		})
	}
}

func TestNewInvokerRequiresExecutor(testInstance *testing.T) {
	_, constructionError := maven.NewInvoker(nil, nil, maven.Options{})
	require.ErrorIs(testInstance, constructionError, maven.ErrExecutorNotConfigured)
}

func TestValidateRejectsInvalidInstallations(testInstance *testing.T) {
	testCases := []struct {
		name           string
		home           func(*testing.T) string
		versionOutput  string
		expectedReason string
	}{
		{name: "missing home value", home: func(*testing.T) string { return "" }, expectedReason: "maven home not configured"},
		{name: "missing directory", home: func(subTest *testing.T) string { return filepath.Join(subTest.TempDir(), "absent") }, expectedReason: "home directory does not exist"},
		{name: "missing launcher", home: func(subTest *testing.T) string { return subTest.TempDir() }, expectedReason: "bin/mvn not found"},
		{name: "launcher not executable", home: func(subTest *testing.T) string { return createMavenHome(subTest, 0o644) }, expectedReason: "bin/mvn is not executable"},
		{name: "unparseable version", home: func(subTest *testing.T) string { return createMavenHome(subTest, 0o755) }, versionOutput: "garbage", expectedReason: "unable to determine maven version"},
		{name: "version too old", home: func(subTest *testing.T) string { return createMavenHome(subTest, 0o755) }, versionOutput: oldVersion, expectedReason: "maven version 3.8.6 is older than required 3.9.7"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			executor := &stubToolExecutor{versionOutput: testCase.versionOutput}
			invoker, constructionError := maven.NewInvoker(nil, executor, maven.Options{Home: testCase.home(subTest)})
			require.NoError(subTest, constructionError)

			validationError := invoker.Validate(context.Background())
			var typedError maven.ValidationError
			require.ErrorAs(subTest, validationError, &typedError)
			require.Equal(subTest, testCase.expectedReason, typedError.Reason)
		})
	}
}

func TestValidateRunsOnce(testInstance *testing.T) {
	executor := &stubToolExecutor{versionOutput: versionOutput}
	home := createMavenHome(testInstance, 0o755)
	invoker, constructionError := maven.NewInvoker(nil, executor, maven.Options{Home: home})
	require.NoError(testInstance, constructionError)

	require.NoError(testInstance, invoker.Validate(context.Background()))
	require.NoError(testInstance, invoker.Validate(context.Background()))
	require.Len(testInstance, executor.invocations, 1)
	require.Equal(testInstance, "3.9.9", invoker.Version())
	require.Equal(testInstance, filepath.Join(home, "bin", "mvn"), executor.invocations[0].executable)
}

func TestBuildGoalsRunAgainstPluginWorkingCopy(testInstance *testing.T) {
	executor := &stubToolExecutor{versionOutput: versionOutput}
	home := createMavenHome(testInstance, 0o755)
	invoker, constructionError := maven.NewInvoker(nil, executor, maven.Options{Home: home, ExportDatatables: true})
	require.NoError(testInstance, constructionError)

	workingCopy := testInstance.TempDir()
	target := plugin.New("mailer").WithLocalRepository(workingCopy).WithJDK(*jdk.Get(17), "/opt/jdk-17")
	catalogue, catalogueError := recipes.LoadCatalogue([]byte(`recipes:
  - name: UpgradeParent
    id: io.jenkins.tools.pluginmodernizer.UpgradeParent
    artifact: io.jenkins.plugin-modernizer:plugin-modernizer-core:999999-SNAPSHOT
`))
	require.NoError(testInstance, catalogueError)

	executionContext := context.Background()
	require.NoError(testInstance, target.Clean(executionContext, invoker))
	require.NoError(testInstance, target.Compile(executionContext, invoker))
	require.NoError(testInstance, target.RunRecipes(executionContext, invoker, catalogue.All()))
	require.NoError(testInstance, target.Verify(executionContext, invoker))
	require.Equal(testInstance, plugin.BuildStepVerified, target.BuildStep())

	goalInvocations := executor.invocations[1:]
	require.Len(testInstance, goalInvocations, 4)
	for _, invocation := range goalInvocations {
		require.Equal(testInstance, []string{"-B", "-ntp", "-f", "pom.xml"}, invocation.details.Arguments[:4])
		require.Equal(testInstance, workingCopy, invocation.details.WorkingDirectory)
		require.Equal(testInstance, "/opt/jdk-17", invocation.details.EnvironmentVariables["JAVA_HOME"])
		require.Equal(testInstance, home, invocation.details.EnvironmentVariables["MAVEN_HOME"])
	}
	require.Equal(testInstance, []string{"-B", "-ntp", "-f", "pom.xml", "clean"}, goalInvocations[0].details.Arguments)
	require.Equal(testInstance, []string{"-B", "-ntp", "-f", "pom.xml", "-DskipTests", "compile"}, goalInvocations[1].details.Arguments)
	require.Equal(testInstance, []string{
		"-B", "-ntp", "-f", "pom.xml",
		"-Drewrite.activeRecipes=io.jenkins.tools.pluginmodernizer.UpgradeParent",
		"-Drewrite.recipeArtifactCoordinates=io.jenkins.plugin-modernizer:plugin-modernizer-core:999999-SNAPSHOT",
		"-Drewrite.exportDatatables=true",
		"org.openrewrite.maven:rewrite-maven-plugin:" + maven.DefaultRewritePluginVersion + ":run",
	}, goalInvocations[2].details.Arguments)
	require.Equal(testInstance, "verify", goalInvocations[3].details.Arguments[4])
}

func TestRewriteGoalPreview(testInstance *testing.T) {
	invoker, constructionError := maven.NewInvoker(nil, &stubToolExecutor{}, maven.Options{PreviewRecipes: true, RewritePluginVersion: "6.0.0"})
	require.NoError(testInstance, constructionError)
	require.Equal(testInstance, "org.openrewrite.maven:rewrite-maven-plugin:6.0.0:dryRun", invoker.RewriteGoal())
}

func TestRunRecipesWithoutSelectionIsSkipped(testInstance *testing.T) {
	executor := &stubToolExecutor{versionOutput: versionOutput}
	invoker, constructionError := maven.NewInvoker(nil, executor, maven.Options{Home: createMavenHome(testInstance, 0o755)})
	require.NoError(testInstance, constructionError)

	target := plugin.New("mailer").WithLocalRepository(testInstance.TempDir())
	require.NoError(testInstance, target.RunRecipes(context.Background(), invoker, nil))
	require.Empty(testInstance, executor.invocations)
	require.Equal(testInstance, plugin.BuildStepNone, target.BuildStep())
}

func TestGoalFailureIsReportedWithOutputTail(testInstance *testing.T) {
	outputLines := make([]string, 0, 30)
	for index := 0; index < 30; index++ {
		outputLines = append(outputLines, "line")
	}
	outputLines[29] = "[ERROR] COMPILATION ERROR"
	failure := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandMaven},
		Result:  execshell.ExecutionResult{StandardOutput: strings.Join(outputLines, "\n") + "\n", ExitCode: 1},
	}
	executor := &stubToolExecutor{versionOutput: versionOutput, goalResults: map[string]error{"compile": failure}}
	invoker, constructionError := maven.NewInvoker(nil, executor, maven.Options{Home: createMavenHome(testInstance, 0o755)})
	require.NoError(testInstance, constructionError)

	target := plugin.New("mailer").WithLocalRepository(testInstance.TempDir())
	compileError := target.Compile(context.Background(), invoker)

	var goalError maven.GoalError
	require.ErrorAs(testInstance, compileError, &goalError)
	require.Equal(testInstance, []string{"compile"}, goalError.Goals)
	require.Equal(testInstance, 1, goalError.ExitCode)
	require.Len(testInstance, strings.Split(goalError.Output, "\n"), 20)
	require.True(testInstance, strings.HasSuffix(goalError.Error(), "[ERROR] COMPILATION ERROR"))
	require.Len(testInstance, target.Errors(), 1)
	require.Equal(testInstance, plugin.BuildStepNone, target.BuildStep())
}

func TestInvokeSurfacesExecutionErrors(testInstance *testing.T) {
	executionFailure := errors.New("exec format error")
	executor := &stubToolExecutor{versionOutput: versionOutput, goalResults: map[string]error{"clean": executionFailure}}
	invoker, constructionError := maven.NewInvoker(nil, executor, maven.Options{Home: createMavenHome(testInstance, 0o755)})
	require.NoError(testInstance, constructionError)

	_, invokeError := invoker.Invoke(context.Background(), maven.Request{Directory: testInstance.TempDir(), Goals: []string{"clean"}})
	require.ErrorIs(testInstance, invokeError, executionFailure)

	_, missingError := invoker.Invoke(context.Background(), maven.Request{Goals: []string{"clean"}})
	require.ErrorIs(testInstance, missingError, maven.ErrProjectDirectoryMissing)
}
