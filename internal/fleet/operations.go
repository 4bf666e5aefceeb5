package fleet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/fleetdash/internal/execshell"
)

const (
	operationsExecutorMissingMessageConstant    = "command executor not configured"
	operationsRootMissingMessageConstant        = "fleet root directory not configured"
	operationsEmptyCommandTemplateConstant      = "no command configured for %s"
	spawnFailureDiagnosticTemplateConstant      = "unable to start %s: %s"
	nonZeroExitDiagnosticTemplateConstant       = "%s exited with code %d%s"
	standardErrorDiagnosticSuffixConstant       = ": %s"
	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"
	comparisonSameOutputConstant                = "same"
	comparisonDifferentOutputConstant           = "different"
	spawnFailureExitCodeConstant                = -1
	cloneRemoteTemplateConstant                 = "%s%s"
)

// ErrCommandExecutorNotConfigured indicates the operations service was built without an executor.
var ErrCommandExecutorNotConfigured = errors.New(operationsExecutorMissingMessageConstant)

// ErrFleetRootNotConfigured indicates the fleet root directory option was empty.
var ErrFleetRootNotConfigured = errors.New(operationsRootMissingMessageConstant)

// CommandExecutor exposes the subset of shell execution used by repository operations.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// CommandSet declares the configurable token lists behind each named
// operation. Arguments are always passed as discrete tokens so repository
// names never travel through a shell string.
type CommandSet struct {
	Synchronize   []string `mapstructure:"synchronize"`
	Install       []string `mapstructure:"install"`
	Build         []string `mapstructure:"build"`
	Compare       []string `mapstructure:"compare"`
	RebuildShared []string `mapstructure:"rebuild_shared"`
	Clone         []string `mapstructure:"clone"`
}

// DefaultCommandSet returns the stock tool invocations for a node-based fleet.
func DefaultCommandSet() CommandSet {
	return CommandSet{
		Synchronize:   []string{"git", "pull", "--ff-only"},
		Install:       []string{"npm", "install"},
		Build:         []string{"npm", "run", "build"},
		Compare:       []string{"bash", "scripts/same-as-remote-master.sh"},
		RebuildShared: []string{"npm", "run", "build-shared"},
		Clone:         []string{"git", "clone"},
	}
}

// Layout describes where fleet checkouts live on disk.
type Layout struct {
	Root        string
	Perennial   RepositoryName
	ClonePrefix string
}

// OperationsDependencies enumerates collaborators for the operations service.
type OperationsDependencies struct {
	Executor CommandExecutor
	Layout   Layout
	Commands CommandSet
}

// Operations provides the named semantic repository actions used by pipelines
// and the status aggregator. Domain outcomes (being out of date, a failing
// build) are reported through OperationResult, never as errors.
type Operations struct {
	executor CommandExecutor
	layout   Layout
	commands CommandSet
}

// NewOperations constructs the operations service, validating dependencies.
func NewOperations(dependencies OperationsDependencies) (*Operations, error) {
	if dependencies.Executor == nil {
		return nil, ErrCommandExecutorNotConfigured
	}
	if len(strings.TrimSpace(dependencies.Layout.Root)) == 0 {
		return nil, ErrFleetRootNotConfigured
	}
	return &Operations{
		executor: dependencies.Executor,
		layout:   dependencies.Layout,
		commands: dependencies.Commands,
	}, nil
}

// Perennial returns the name of the shared tooling repository.
func (operations *Operations) Perennial() RepositoryName {
	return operations.layout.Perennial
}

// RepositoryDirectory resolves the checkout directory for a validated repository name.
func (operations *Operations) RepositoryDirectory(name RepositoryName) string {
	return filepath.Join(operations.layout.Root, name.String())
}

// RepositoryExists reports whether the repository checkout is present on disk.
func (operations *Operations) RepositoryExists(name RepositoryName) bool {
	directoryInfo, statError := os.Stat(operations.RepositoryDirectory(name))
	return statError == nil && directoryInfo.IsDir()
}

// Synchronize pulls the repository from its remote.
func (operations *Operations) Synchronize(executionContext context.Context, name RepositoryName) OperationResult {
	return operations.run(executionContext, operations.commands.Synchronize, operations.RepositoryDirectory(name))
}

// InstallDependencies resolves the repository's package-manager dependencies.
func (operations *Operations) InstallDependencies(executionContext context.Context, name RepositoryName) OperationResult {
	return operations.run(executionContext, operations.commands.Install, operations.RepositoryDirectory(name))
}

// Build runs the repository's project build.
func (operations *Operations) Build(executionContext context.Context, name RepositoryName) OperationResult {
	return operations.run(executionContext, operations.commands.Build, operations.RepositoryDirectory(name))
}

// RebuildShared rebuilds the shared derived sources in the perennial tooling checkout.
func (operations *Operations) RebuildShared(executionContext context.Context) OperationResult {
	return operations.run(executionContext, operations.commands.RebuildShared, operations.RepositoryDirectory(operations.layout.Perennial))
}

// Clone creates a missing repository checkout under the fleet root.
func (operations *Operations) Clone(executionContext context.Context, name RepositoryName) OperationResult {
	cloneTokens := append([]string{}, operations.commands.Clone...)
	cloneTokens = append(cloneTokens, fmt.Sprintf(cloneRemoteTemplateConstant, operations.layout.ClonePrefix, name.String()), name.String())
	return operations.run(executionContext, cloneTokens, operations.layout.Root)
}

// CompareToRemote runs the comparison script for the repository. A successful
// run whose output parses as "same" or "different" yields StatusUpToDate or
// StatusOutOfDate; every other outcome yields StatusCheckFailed.
func (operations *Operations) CompareToRemote(executionContext context.Context, name RepositoryName) (ComparisonStatus, OperationResult) {
	comparisonResult := operations.run(executionContext, operations.commands.Compare, operations.RepositoryDirectory(name))
	if !comparisonResult.Succeeded {
		return StatusCheckFailed, comparisonResult
	}

	switch comparisonResult.Output {
	case comparisonSameOutputConstant:
		return StatusUpToDate, comparisonResult
	case comparisonDifferentOutputConstant:
		return StatusOutOfDate, comparisonResult
	default:
		return StatusCheckFailed, comparisonResult
	}
}

func (operations *Operations) run(executionContext context.Context, commandTokens []string, workingDirectory string) OperationResult {
	if len(commandTokens) == 0 {
		return FailureResult(spawnFailureExitCodeConstant, fmt.Sprintf(operationsEmptyCommandTemplateConstant, workingDirectory))
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        append([]string{}, commandTokens[1:]...),
		WorkingDirectory: workingDirectory,
	}
	commandName := execshell.CommandName(commandTokens[0])
	if commandName == execshell.CommandGit {
		commandDetails.EnvironmentVariables = map[string]string{
			gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentDisableConstant,
		}
	}

	executionResult, executionError := operations.executor.Execute(executionContext, execshell.ShellCommand{Name: commandName, Details: commandDetails})
	if executionError != nil {
		commandFailure := execshell.CommandFailedError{}
		if errors.As(executionError, &commandFailure) {
			return FailureResult(commandFailure.Result.ExitCode, operations.buildExitDiagnostic(commandTokens, commandFailure.Result))
		}
		return FailureResult(spawnFailureExitCodeConstant, fmt.Sprintf(spawnFailureDiagnosticTemplateConstant, commandTokens[0], executionError.Error()))
	}

	return SuccessResult(strings.TrimSpace(executionResult.StandardOutput))
}

func (operations *Operations) buildExitDiagnostic(commandTokens []string, executionResult execshell.ExecutionResult) string {
	standardErrorSuffix := ""
	trimmedStandardError := strings.TrimSpace(executionResult.StandardError)
	if len(trimmedStandardError) > 0 {
		standardErrorSuffix = fmt.Sprintf(standardErrorDiagnosticSuffixConstant, trimmedStandardError)
	}
	return fmt.Sprintf(nonZeroExitDiagnosticTemplateConstant, strings.Join(commandTokens, " "), executionResult.ExitCode, standardErrorSuffix)
}
