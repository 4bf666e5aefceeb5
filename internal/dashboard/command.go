package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/fleetdash/internal/fleet"
)

const (
	serveCommandUseConstant              = "serve"
	serveCommandShortDescriptionConstant = "Run the dashboard status service"
	serveCommandLongDescriptionConstant  = "serve exposes fleet synchronization, build pipelines, and status aggregation to the dev-ops dashboard over HTTP."
	addressFlagNameConstant              = "address"
	addressFlagDescriptionConstant       = "Listen address for the dashboard service"
	defaultListenAddressConstant         = ":8473"
	serverShutdownTimeoutConstant        = 5 * time.Second
	serverListeningLogMessageConstant    = "dashboard service listening"
	serverLogFieldAddressConstant        = "address"
	loggerProviderMissingMessageConstant = "serve command requires a logger provider"
)

// ServerConfiguration captures the server section of the application configuration.
type ServerConfiguration struct {
	Address string `mapstructure:"address"`
}

// CommandBuilder assembles the serve command.
type CommandBuilder struct {
	LoggerProvider              func() *zap.Logger
	FleetConfigurationProvider  func() fleet.RuntimeConfiguration
	ServerConfigurationProvider func() ServerConfiguration
	CommandSetProvider          func() fleet.CommandSet
}

// Build constructs the serve command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, errors.New(loggerProviderMissingMessageConstant)
	}

	command := &cobra.Command{
		Use:   serveCommandUseConstant,
		Short: serveCommandShortDescriptionConstant,
		Long:  serveCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(addressFlagNameConstant, "", addressFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.LoggerProvider()

	eventHub := NewEventHub(logger)
	fleetRuntime, runtimeError := fleet.NewRuntime(
		logger,
		builder.resolveFleetConfiguration(),
		builder.resolveCommandSet(),
		NewCommandEventPublisher(eventHub),
	)
	if runtimeError != nil {
		return runtimeError
	}

	service, serviceError := NewService(Dependencies{
		Logger:               logger,
		Roster:               fleetRuntime.Roster,
		Operations:           fleetRuntime.Operations,
		SharedAggregator:     fleetRuntime.SharedAggregator,
		SimulationAggregator: fleetRuntime.SimulationAggregator,
		Events:               eventHub,
	})
	if serviceError != nil {
		return serviceError
	}

	mux := http.NewServeMux()
	service.RegisterRoutes(mux, eventHub)

	listenAddress, addressError := builder.resolveListenAddress(command)
	if addressError != nil {
		return addressError
	}

	server := &http.Server{Addr: listenAddress, Handler: mux}
	go func() {
		<-command.Context().Done()
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), serverShutdownTimeoutConstant)
		defer cancelShutdown()
		_ = server.Shutdown(shutdownContext)
	}()

	logger.Info(serverListeningLogMessageConstant, zap.String(serverLogFieldAddressConstant, listenAddress))
	serveError := server.ListenAndServe()
	if errors.Is(serveError, http.ErrServerClosed) {
		return nil
	}
	return serveError
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

func (builder *CommandBuilder) resolveListenAddress(command *cobra.Command) (string, error) {
	flagAddress, flagError := command.Flags().GetString(addressFlagNameConstant)
	if flagError != nil {
		return "", flagError
	}
	if len(flagAddress) > 0 {
		return flagAddress, nil
	}
	if builder.ServerConfigurationProvider != nil {
		configuredAddress := builder.ServerConfigurationProvider().Address
		if len(configuredAddress) > 0 {
			return configuredAddress, nil
		}
	}
	return defaultListenAddressConstant, nil
}
