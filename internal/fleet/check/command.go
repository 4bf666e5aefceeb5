// Package check provides the one-shot fleet status command for fleetdash.
package check

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/fleetdash/internal/fleet"
)

const (
	commandUseConstant                   = "check"
	commandShortDescriptionConstant      = "Run an aggregation pass and report fleet status"
	commandLongDescriptionConstant       = "check sequentially compares every tracked repository against its remote and prints a per-repository status report."
	simulationsFlagNameConstant          = "sims"
	simulationsFlagDescriptionConstant   = "Check the simulation fleet instead of the shared fleet"
	allFleetsFlagNameConstant            = "all"
	allFleetsFlagDescriptionConstant     = "Check the shared and simulation fleets concurrently"
	loggerProviderMissingMessageConstant = "check command requires a logger provider"
	fleetReportHeaderTemplateConstant    = "%s fleet (%d repositories)\n"
	repositoryReportLineTemplateConstant = "  %s  %s\n"
	summaryReportLineTemplateConstant    = "  %s\n"
)

// CommandBuilder assembles the check command.
type CommandBuilder struct {
	LoggerProvider             func() *zap.Logger
	FleetConfigurationProvider func() fleet.RuntimeConfiguration
	CommandSetProvider         func() fleet.CommandSet
}

// Build constructs the check command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, errors.New(loggerProviderMissingMessageConstant)
	}

	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().Bool(simulationsFlagNameConstant, false, simulationsFlagDescriptionConstant)
	command.Flags().Bool(allFleetsFlagNameConstant, false, allFleetsFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	simulationsRequested, simulationsFlagError := command.Flags().GetBool(simulationsFlagNameConstant)
	if simulationsFlagError != nil {
		return simulationsFlagError
	}
	allFleetsRequested, allFleetsFlagError := command.Flags().GetBool(allFleetsFlagNameConstant)
	if allFleetsFlagError != nil {
		return allFleetsFlagError
	}

	fleetRuntime, runtimeError := fleet.NewRuntime(builder.LoggerProvider(), builder.resolveFleetConfiguration(), builder.resolveCommandSet())
	if runtimeError != nil {
		return runtimeError
	}

	// The two fleets hold disjoint state, so their passes may run
	// concurrently; each pass stays internally sequential.
	if allFleetsRequested {
		passGroup, passContext := errgroup.WithContext(command.Context())
		passGroup.Go(func() error {
			fleetRuntime.SharedAggregator.RunPass(passContext, fleetRuntime.Roster.All())
			return nil
		})
		passGroup.Go(func() error {
			fleetRuntime.SimulationAggregator.RunPass(passContext, fleetRuntime.Roster.Simulations())
			return nil
		})
		if waitError := passGroup.Wait(); waitError != nil {
			return waitError
		}
		builder.printReport(command.OutOrStdout(), fleetRuntime.SharedAggregator.Snapshot(), fleetRuntime.Roster.All())
		builder.printReport(command.OutOrStdout(), fleetRuntime.SimulationAggregator.Snapshot(), fleetRuntime.Roster.Simulations())
		return nil
	}

	if simulationsRequested {
		fleetRuntime.SimulationAggregator.RunPass(command.Context(), fleetRuntime.Roster.Simulations())
		builder.printReport(command.OutOrStdout(), fleetRuntime.SimulationAggregator.Snapshot(), fleetRuntime.Roster.Simulations())
		return nil
	}

	fleetRuntime.SharedAggregator.RunPass(command.Context(), fleetRuntime.Roster.All())
	builder.printReport(command.OutOrStdout(), fleetRuntime.SharedAggregator.Snapshot(), fleetRuntime.Roster.All())
	return nil
}

func (builder *CommandBuilder) resolveFleetConfiguration() fleet.RuntimeConfiguration {
	if builder.FleetConfigurationProvider == nil {
		return fleet.RuntimeConfiguration{}
	}
	return builder.FleetConfigurationProvider()
}

func (builder *CommandBuilder) resolveCommandSet() fleet.CommandSet {
	if builder.CommandSetProvider == nil {
		return fleet.DefaultCommandSet()
	}
	return builder.CommandSetProvider()
}

func (builder *CommandBuilder) printReport(output io.Writer, snapshot fleet.Snapshot, repositories []fleet.RepositoryName) {
	fmt.Fprintf(output, fleetReportHeaderTemplateConstant, snapshot.Fleet, len(repositories))
	for _, repositoryName := range repositories {
		fmt.Fprintf(output, repositoryReportLineTemplateConstant, colorizeStatus(snapshot.Statuses[repositoryName]), repositoryName.String())
	}
	fmt.Fprintf(output, summaryReportLineTemplateConstant, buildSummaryLine(snapshot))
}

func colorizeStatus(comparisonStatus fleet.ComparisonStatus) string {
	switch comparisonStatus {
	case fleet.StatusUpToDate:
		return color.GreenString(string(comparisonStatus))
	case fleet.StatusOutOfDate:
		return color.YellowString(string(comparisonStatus))
	case fleet.StatusCheckFailed:
		return color.RedString(string(comparisonStatus))
	default:
		return string(fleet.StatusUnknown)
	}
}

func buildSummaryLine(snapshot fleet.Snapshot) string {
	if len(snapshot.OutOfDate) == 0 {
		return color.GreenString("no out-of-date repositories")
	}
	return color.YellowString("%d repositories out of date", len(snapshot.OutOfDate))
}
