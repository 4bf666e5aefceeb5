package check

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/fleetdash/internal/fleet"
)

func TestBuildRequiresLoggerProvider(t *testing.T) {
	builder := CommandBuilder{}
	command, buildError := builder.Build()
	require.Error(t, buildError)
	require.Nil(t, command)
}

func TestBuildRegistersFleetSelectionFlags(t *testing.T) {
	builder := CommandBuilder{LoggerProvider: zap.NewNop}
	command, buildError := builder.Build()
	require.NoError(t, buildError)
	require.Equal(t, "check", command.Name())
	require.NotNil(t, command.Flags().Lookup("sims"))
	require.NotNil(t, command.Flags().Lookup("all"))
}

func TestResolversFallBackToDefaultsWithoutProviders(t *testing.T) {
	builder := CommandBuilder{LoggerProvider: zap.NewNop}

	require.Equal(t, fleet.RuntimeConfiguration{}, builder.resolveFleetConfiguration())
	require.Equal(t, fleet.DefaultCommandSet(), builder.resolveCommandSet())

	configured := fleet.RuntimeConfiguration{Root: "/srv/fleet", Roster: "repositories.yaml", Perennial: "perennial"}
	customCommands := fleet.CommandSet{Compare: []string{"bash", "compare.sh"}}
	builder.FleetConfigurationProvider = func() fleet.RuntimeConfiguration { return configured }
	builder.CommandSetProvider = func() fleet.CommandSet { return customCommands }

	require.Equal(t, configured, builder.resolveFleetConfiguration())
	require.Equal(t, customCommands, builder.resolveCommandSet())
}

func TestRunReportsFleetStatusThroughConfiguredProviders(t *testing.T) {
	previousNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = previousNoColor })

	fleetRoot := t.TempDir()
	rosterContents := "repositories:\n  - perennial\n  - alpha\nsimulations:\n  - alpha\n"
	require.NoError(t, os.WriteFile(filepath.Join(fleetRoot, "repositories.yaml"), []byte(rosterContents), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(fleetRoot, "perennial"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(fleetRoot, "alpha"), 0o755))

	builder := CommandBuilder{
		LoggerProvider: zap.NewNop,
		FleetConfigurationProvider: func() fleet.RuntimeConfiguration {
			return fleet.RuntimeConfiguration{Root: fleetRoot, Roster: "repositories.yaml", Perennial: "perennial"}
		},
		CommandSetProvider: func() fleet.CommandSet {
			commandSet := fleet.DefaultCommandSet()
			commandSet.Compare = []string{"bash", "-c", "echo same"}
			return commandSet
		},
	}

	command, buildError := builder.Build()
	require.NoError(t, buildError)

	reportBuilder := &strings.Builder{}
	command.SetOut(reportBuilder)
	command.SetErr(reportBuilder)
	command.SetContext(context.Background())
	command.SetArgs([]string{})

	require.NoError(t, command.Execute())

	reportText := reportBuilder.String()
	require.Contains(t, reportText, "shared fleet (2 repositories)")
	require.Contains(t, reportText, "perennial")
	require.Contains(t, reportText, "alpha")
	require.Contains(t, reportText, "up-to-date")
	require.Contains(t, reportText, "no out-of-date repositories")
}

func TestPrintReportListsRepositoriesInRosterOrder(t *testing.T) {
	previousNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = previousNoColor })

	snapshot := fleet.Snapshot{
		Fleet: "shared",
		Phase: fleet.PassDone,
		Statuses: map[fleet.RepositoryName]fleet.ComparisonStatus{
			"perennial": fleet.StatusUpToDate,
			"alpha":     fleet.StatusOutOfDate,
			"beta":      fleet.StatusCheckFailed,
		},
		OutOfDate: []fleet.RepositoryName{"alpha"},
	}

	builder := CommandBuilder{LoggerProvider: zap.NewNop}
	reportBuilder := &strings.Builder{}
	builder.printReport(reportBuilder, snapshot, []fleet.RepositoryName{"perennial", "alpha", "beta"})

	reportText := reportBuilder.String()
	reportLines := strings.Split(strings.TrimRight(reportText, "\n"), "\n")
	require.Len(t, reportLines, 5)
	require.Equal(t, "shared fleet (3 repositories)", reportLines[0])
	require.Contains(t, reportLines[1], "up-to-date")
	require.Contains(t, reportLines[1], "perennial")
	require.Contains(t, reportLines[2], "out-of-date")
	require.Contains(t, reportLines[3], "check-failed")
	require.Contains(t, reportLines[4], "1 repositories out of date")
}

func TestPrintReportRendersUnknownForUnvisitedRepositories(t *testing.T) {
	previousNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = previousNoColor })

	builder := CommandBuilder{LoggerProvider: zap.NewNop}
	reportBuilder := &strings.Builder{}
	builder.printReport(reportBuilder, fleet.Snapshot{Fleet: "simulations"}, []fleet.RepositoryName{"alpha"})

	require.Contains(t, reportBuilder.String(), "unknown")
	require.Contains(t, reportBuilder.String(), "no out-of-date repositories")
}
