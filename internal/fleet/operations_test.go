package fleet_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/fleetdash/internal/execshell"
	"github.com/temirov/fleetdash/internal/fleet"
)

type scriptedCommandExecutor struct {
	recordedCommands []execshell.ShellCommand
	respond          func(command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

func (executor *scriptedCommandExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.recordedCommands = append(executor.recordedCommands, command)
	if executor.respond == nil {
		return execshell.ExecutionResult{}, nil
	}
	return executor.respond(command)
}

func respondWithOutput(standardOutput string) func(execshell.ShellCommand) (execshell.ExecutionResult, error) {
	return func(execshell.ShellCommand) (execshell.ExecutionResult, error) {
		return execshell.ExecutionResult{StandardOutput: standardOutput}, nil
	}
}

func respondWithExit(exitCode int, standardError string) func(execshell.ShellCommand) (execshell.ExecutionResult, error) {
	return func(command execshell.ShellCommand) (execshell.ExecutionResult, error) {
		executionResult := execshell.ExecutionResult{StandardError: standardError, ExitCode: exitCode}
		return executionResult, execshell.CommandFailedError{Command: command, Result: executionResult}
	}
}

func newTestOperations(t *testing.T, executor fleet.CommandExecutor) *fleet.Operations {
	t.Helper()
	operations, constructionError := fleet.NewOperations(fleet.OperationsDependencies{
		Executor: executor,
		Layout:   fleet.Layout{Root: filepath.Join("/", "srv", "fleet"), Perennial: "perennial", ClonePrefix: "git@forge:team/"},
		Commands: fleet.DefaultCommandSet(),
	})
	require.NoError(t, constructionError)
	return operations
}

func TestNewOperationsValidatesDependencies(t *testing.T) {
	testCases := []struct {
		name          string
		dependencies  fleet.OperationsDependencies
		expectedError error
	}{
		{
			name:          "MissingExecutor",
			dependencies:  fleet.OperationsDependencies{Layout: fleet.Layout{Root: "/srv/fleet"}},
			expectedError: fleet.ErrCommandExecutorNotConfigured,
		},
		{
			name:          "MissingRoot",
			dependencies:  fleet.OperationsDependencies{Executor: &scriptedCommandExecutor{}},
			expectedError: fleet.ErrFleetRootNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			operations, constructionError := fleet.NewOperations(testCase.dependencies)
			require.ErrorIs(t, constructionError, testCase.expectedError)
			require.Nil(t, operations)
		})
	}
}

func TestSynchronizeRunsConfiguredCommandInRepositoryDirectory(t *testing.T) {
	executor := &scriptedCommandExecutor{respond: respondWithOutput("Already up to date.\n")}
	operations := newTestOperations(t, executor)

	operationResult := operations.Synchronize(context.Background(), "alpha")

	require.True(t, operationResult.Succeeded)
	require.Equal(t, "Already up to date.", operationResult.Output)
	require.Len(t, executor.recordedCommands, 1)

	recordedCommand := executor.recordedCommands[0]
	require.Equal(t, execshell.CommandGit, recordedCommand.Name)
	require.Equal(t, []string{"pull", "--ff-only"}, recordedCommand.Details.Arguments)
	require.Equal(t, filepath.Join("/", "srv", "fleet", "alpha"), recordedCommand.Details.WorkingDirectory)
	require.Equal(t, "0", recordedCommand.Details.EnvironmentVariables["GIT_TERMINAL_PROMPT"])
}

func TestBuildReportsNonZeroExitAsFailureResult(t *testing.T) {
	executor := &scriptedCommandExecutor{respond: respondWithExit(2, "missing module")}
	operations := newTestOperations(t, executor)

	operationResult := operations.Build(context.Background(), "alpha")

	require.False(t, operationResult.Succeeded)
	require.Equal(t, 2, operationResult.ExitCode)
	require.Contains(t, operationResult.Diagnostic, "npm run build")
	require.Contains(t, operationResult.Diagnostic, "exited with code 2")
	require.Contains(t, operationResult.Diagnostic, "missing module")
}

func TestOperationsReportSpawnFailures(t *testing.T) {
	spawnFailure := errors.New("executable file not found in $PATH")
	executor := &scriptedCommandExecutor{
		respond: func(command execshell.ShellCommand) (execshell.ExecutionResult, error) {
			return execshell.ExecutionResult{}, execshell.CommandExecutionError{Command: command, Cause: spawnFailure}
		},
	}
	operations := newTestOperations(t, executor)

	operationResult := operations.InstallDependencies(context.Background(), "alpha")

	require.False(t, operationResult.Succeeded)
	require.Equal(t, -1, operationResult.ExitCode)
	require.Contains(t, operationResult.Diagnostic, "unable to start npm")
}

func TestCloneAppendsRemoteAndTargetTokens(t *testing.T) {
	executor := &scriptedCommandExecutor{respond: respondWithOutput("")}
	operations := newTestOperations(t, executor)

	operationResult := operations.Clone(context.Background(), "beta")

	require.True(t, operationResult.Succeeded)
	require.Len(t, executor.recordedCommands, 1)

	recordedCommand := executor.recordedCommands[0]
	require.Equal(t, execshell.CommandGit, recordedCommand.Name)
	require.Equal(t, []string{"clone", "git@forge:team/beta", "beta"}, recordedCommand.Details.Arguments)
	require.Equal(t, filepath.Join("/", "srv", "fleet"), recordedCommand.Details.WorkingDirectory)
}

func TestRebuildSharedTargetsPerennialCheckout(t *testing.T) {
	executor := &scriptedCommandExecutor{respond: respondWithOutput("built")}
	operations := newTestOperations(t, executor)

	operationResult := operations.RebuildShared(context.Background())

	require.True(t, operationResult.Succeeded)
	require.Len(t, executor.recordedCommands, 1)
	require.Equal(t, filepath.Join("/", "srv", "fleet", "perennial"), executor.recordedCommands[0].Details.WorkingDirectory)
	require.Equal(t, []string{"run", "build-shared"}, executor.recordedCommands[0].Details.Arguments)
}

func TestCompareToRemoteInterpretsScriptOutput(t *testing.T) {
	testCases := []struct {
		name           string
		respond        func(execshell.ShellCommand) (execshell.ExecutionResult, error)
		expectedStatus fleet.ComparisonStatus
	}{
		{name: "SameOutput", respond: respondWithOutput("same\n"), expectedStatus: fleet.StatusUpToDate},
		{name: "DifferentOutput", respond: respondWithOutput("different\n"), expectedStatus: fleet.StatusOutOfDate},
		{name: "UnparsableOutput", respond: respondWithOutput("fatal: not a git repository"), expectedStatus: fleet.StatusCheckFailed},
		{name: "NonZeroExit", respond: respondWithExit(1, "network unreachable"), expectedStatus: fleet.StatusCheckFailed},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			executor := &scriptedCommandExecutor{respond: testCase.respond}
			operations := newTestOperations(t, executor)

			comparisonStatus, operationResult := operations.CompareToRemote(context.Background(), "alpha")

			require.Equal(t, testCase.expectedStatus, comparisonStatus)
			if testCase.expectedStatus == fleet.StatusCheckFailed {
				require.NotEmpty(t, operationResult.Output+operationResult.Diagnostic)
			}
		})
	}
}
