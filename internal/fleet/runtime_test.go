package fleet_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/fleetdash/internal/fleet"
)

func writeRuntimeRoster(t *testing.T, fleetRoot string) {
	t.Helper()
	rosterContents := "repositories:\n  - perennial\n  - alpha\nsimulations:\n  - alpha\n"
	require.NoError(t, os.WriteFile(filepath.Join(fleetRoot, "repositories.yaml"), []byte(rosterContents), 0o644))
}

func TestNewRuntimeWiresCollaborators(t *testing.T) {
	fleetRoot := t.TempDir()
	writeRuntimeRoster(t, fleetRoot)

	runtime, runtimeError := fleet.NewRuntime(zap.NewNop(), fleet.RuntimeConfiguration{
		Root:      fleetRoot,
		Roster:    "repositories.yaml",
		Perennial: "perennial",
	}, fleet.DefaultCommandSet())

	require.NoError(t, runtimeError)
	require.NotNil(t, runtime.Executor)
	require.NotNil(t, runtime.Operations)
	require.Equal(t, fleet.RepositoryName("perennial"), runtime.Operations.Perennial())
	require.Equal(t, []fleet.RepositoryName{"perennial", "alpha"}, runtime.Roster.All())
	require.Equal(t, "shared", runtime.SharedAggregator.Snapshot().Fleet)
	require.Equal(t, "simulations", runtime.SimulationAggregator.Snapshot().Fleet)
}

func TestNewRuntimeResolvesAbsoluteRosterPaths(t *testing.T) {
	fleetRoot := t.TempDir()
	rosterDirectory := t.TempDir()
	rosterPath := filepath.Join(rosterDirectory, "fleet-roster.yaml")
	require.NoError(t, os.WriteFile(rosterPath, []byte("repositories:\n  - alpha\n"), 0o644))

	runtime, runtimeError := fleet.NewRuntime(zap.NewNop(), fleet.RuntimeConfiguration{
		Root:      fleetRoot,
		Roster:    rosterPath,
		Perennial: "perennial",
	}, fleet.DefaultCommandSet())

	require.NoError(t, runtimeError)
	require.Equal(t, []fleet.RepositoryName{"alpha"}, runtime.Roster.All())
}

func TestNewRuntimeRejectsInvalidConfiguration(t *testing.T) {
	fleetRoot := t.TempDir()
	writeRuntimeRoster(t, fleetRoot)

	testCases := []struct {
		name          string
		configuration fleet.RuntimeConfiguration
	}{
		{
			name:          "InvalidPerennialName",
			configuration: fleet.RuntimeConfiguration{Root: fleetRoot, Roster: "repositories.yaml", Perennial: "Not Valid"},
		},
		{
			name:          "MissingRosterFile",
			configuration: fleet.RuntimeConfiguration{Root: fleetRoot, Roster: "absent.yaml", Perennial: "perennial"},
		},
		{
			name:          "EmptyRoot",
			configuration: fleet.RuntimeConfiguration{Root: "", Roster: "repositories.yaml", Perennial: "perennial"},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			runtime, runtimeError := fleet.NewRuntime(zap.NewNop(), testCase.configuration, fleet.DefaultCommandSet())
			require.Error(t, runtimeError)
			require.Nil(t, runtime)
		})
	}
}
