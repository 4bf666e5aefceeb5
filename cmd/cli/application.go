package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/fleetdash/internal/dashboard"
	"github.com/temirov/fleetdash/internal/fleet"
	"github.com/temirov/fleetdash/internal/fleet/check"
	"github.com/temirov/fleetdash/internal/utils"
)

const (
	applicationNameConstant                 = "fleetdash"
	applicationShortDescriptionConstant     = "Fleet synchronization and build orchestration for the dev-ops dashboard"
	applicationLongDescriptionConstant      = "fleetdash keeps a fleet of repository checkouts synchronized with their remotes, rebuilds derived artifacts, and reports per-repository status to the dashboard."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	environmentPrefixConstant               = "FLEETDASH"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	defaultConfigurationSearchPathConstant  = "."
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	serveCommandBuildErrorTemplateConstant  = "failed to build serve command: %w"
	checkCommandBuildErrorTemplateConstant  = "failed to build check command: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Fleet  fleet.RuntimeConfiguration     `mapstructure:"fleet"`
	Server dashboard.ServerConfiguration  `mapstructure:"server"`

	Commands fleet.CommandSet `mapstructure:"commands"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() (*Application, error) {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	application.registerPersistentFlags(cobraCommand.PersistentFlags())

	serveBuilder := dashboard.CommandBuilder{
		LoggerProvider:              application.loggerProvider,
		FleetConfigurationProvider:  application.fleetConfigurationProvider,
		ServerConfigurationProvider: application.serverConfigurationProvider,
		CommandSetProvider:          application.commandSetProvider,
	}
	serveCommand, serveBuildError := serveBuilder.Build()
	if serveBuildError != nil {
		return nil, fmt.Errorf(serveCommandBuildErrorTemplateConstant, serveBuildError)
	}
	cobraCommand.AddCommand(serveCommand)

	checkBuilder := check.CommandBuilder{
		LoggerProvider:             application.loggerProvider,
		FleetConfigurationProvider: application.fleetConfigurationProvider,
		CommandSetProvider:         application.commandSetProvider,
	}
	checkCommand, checkBuildError := checkBuilder.Build()
	if checkBuildError != nil {
		return nil, fmt.Errorf(checkCommandBuildErrorTemplateConstant, checkBuildError)
	}
	cobraCommand.AddCommand(checkCommand)

	application.rootCommand = cobraCommand
	return application, nil
}

// Execute runs the application, wiring interrupt signals into command contexts.
func Execute() error {
	application, applicationError := NewApplication()
	if applicationError != nil {
		return applicationError
	}
	signalContext, stopSignalHandling := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignalHandling()
	application.rootCommand.SetContext(signalContext)
	return application.rootCommand.Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(
		application.configurationFilePath,
		defaultConfigurationValues(),
		&application.configuration,
	)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	resolvedLogLevel := application.configuration.Common.LogLevel
	if flagValue := strings.TrimSpace(application.logLevelFlagValue); len(flagValue) > 0 {
		resolvedLogLevel = flagValue
	}
	resolvedLogFormat := application.configuration.Common.LogFormat
	if flagValue := strings.TrimSpace(application.logFormatFlagValue); len(flagValue) > 0 {
		resolvedLogFormat = flagValue
	}

	logger, loggerError := application.loggerFactory.CreateLogger(utils.LogLevel(resolvedLogLevel), utils.LogFormat(resolvedLogFormat))
	if loggerError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerError)
	}
	application.logger = logger

	application.logger.Debug(configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, resolvedLogLevel),
		zap.String(configurationLogFormatFieldConstant, resolvedLogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

func (application *Application) registerPersistentFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	flagSet.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	flagSet.StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
}

func (application *Application) loggerProvider() *zap.Logger {
	return application.logger
}

func (application *Application) fleetConfigurationProvider() fleet.RuntimeConfiguration {
	return application.configuration.Fleet
}

func (application *Application) serverConfigurationProvider() dashboard.ServerConfiguration {
	return application.configuration.Server
}

func (application *Application) commandSetProvider() fleet.CommandSet {
	return application.configuration.Commands
}
