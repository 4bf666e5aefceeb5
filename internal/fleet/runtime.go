package fleet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/fleetdash/internal/execshell"
)

const (
	sharedFleetNameConstant                 = "shared"
	simulationFleetNameConstant             = "simulations"
	homeDirectoryPrefixConstant             = "~/"
	homeDirectoryErrorTemplateConstant      = "failed to resolve home directory: %w"
	perennialNameErrorTemplateConstant      = "invalid perennial repository name: %w"
	executorCreationErrorTemplateConstant   = "failed to create shell executor: %w"
	rosterCreationErrorTemplateConstant     = "failed to load roster: %w"
	operationsCreationErrorTemplateConstant = "failed to create repository operations: %w"
	aggregatorCreationErrorTemplateConstant = "failed to create %s aggregator: %w"
)

// RuntimeConfiguration captures the fleet section of the application configuration.
type RuntimeConfiguration struct {
	Root        string `mapstructure:"root"`
	Roster      string `mapstructure:"roster"`
	Perennial   string `mapstructure:"perennial"`
	ClonePrefix string `mapstructure:"clone_prefix"`
}

// Runtime bundles the wired fleet collaborators shared by the serve and check commands.
type Runtime struct {
	Executor             *execshell.ShellExecutor
	Roster               *Roster
	Operations           *Operations
	SharedAggregator     *StatusAggregator
	SimulationAggregator *StatusAggregator
}

// NewRuntime wires the executor, roster, operations, and the two independent
// status aggregators from configuration. The shared and simulation
// aggregators hold disjoint state and may run passes concurrently.
func NewRuntime(logger *zap.Logger, configuration RuntimeConfiguration, commands CommandSet, eventObservers ...execshell.CommandEventObserver) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fleetRoot, rootError := expandHomeDirectory(configuration.Root)
	if rootError != nil {
		return nil, rootError
	}

	perennialName, perennialError := ParseRepositoryName(configuration.Perennial)
	if perennialError != nil {
		return nil, fmt.Errorf(perennialNameErrorTemplateConstant, perennialError)
	}

	shellExecutor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), eventObservers...)
	if executorError != nil {
		return nil, fmt.Errorf(executorCreationErrorTemplateConstant, executorError)
	}

	rosterPath, rosterPathError := expandHomeDirectory(configuration.Roster)
	if rosterPathError != nil {
		return nil, rosterPathError
	}
	if !filepath.IsAbs(rosterPath) {
		rosterPath = filepath.Join(fleetRoot, rosterPath)
	}

	roster, rosterError := NewRoster(rosterPath)
	if rosterError != nil {
		return nil, fmt.Errorf(rosterCreationErrorTemplateConstant, rosterError)
	}

	operations, operationsError := NewOperations(OperationsDependencies{
		Executor: shellExecutor,
		Layout: Layout{
			Root:        fleetRoot,
			Perennial:   perennialName,
			ClonePrefix: configuration.ClonePrefix,
		},
		Commands: commands,
	})
	if operationsError != nil {
		return nil, fmt.Errorf(operationsCreationErrorTemplateConstant, operationsError)
	}

	sharedAggregator, sharedError := NewStatusAggregator(sharedFleetNameConstant, operations, logger)
	if sharedError != nil {
		return nil, fmt.Errorf(aggregatorCreationErrorTemplateConstant, sharedFleetNameConstant, sharedError)
	}

	simulationAggregator, simulationError := NewStatusAggregator(simulationFleetNameConstant, operations, logger)
	if simulationError != nil {
		return nil, fmt.Errorf(aggregatorCreationErrorTemplateConstant, simulationFleetNameConstant, simulationError)
	}

	return &Runtime{
		Executor:             shellExecutor,
		Roster:               roster,
		Operations:           operations,
		SharedAggregator:     sharedAggregator,
		SimulationAggregator: simulationAggregator,
	}, nil
}

func expandHomeDirectory(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if !strings.HasPrefix(trimmedPath, homeDirectoryPrefixConstant) {
		return trimmedPath, nil
	}
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil {
		return "", fmt.Errorf(homeDirectoryErrorTemplateConstant, homeError)
	}
	return filepath.Join(homeDirectory, trimmedPath[len(homeDirectoryPrefixConstant):]), nil
}
