package cli

import "github.com/temirov/fleetdash/internal/fleet"

const (
	defaultLogLevelConstant      = "info"
	defaultLogFormatConstant     = "structured"
	defaultFleetRootConstant     = "~/fleet"
	defaultRosterFileConstant    = "repositories.yaml"
	defaultPerennialNameConstant = "perennial"
	defaultListenAddressConstant = ":8473"
	defaultClonePrefixConstant   = ""
	commonLogLevelConfigKey      = "common.log_level"
	commonLogFormatConfigKey     = "common.log_format"
	fleetRootConfigKey           = "fleet.root"
	fleetRosterConfigKey         = "fleet.roster"
	fleetPerennialConfigKey      = "fleet.perennial"
	fleetClonePrefixConfigKey    = "fleet.clone_prefix"
	serverAddressConfigKey       = "server.address"
	commandsSynchronizeConfigKey = "commands.synchronize"
	commandsInstallConfigKey     = "commands.install"
	commandsBuildConfigKey       = "commands.build"
	commandsCompareConfigKey     = "commands.compare"
	commandsRebuildSharedConfKey = "commands.rebuild_shared"
	commandsCloneConfigKey       = "commands.clone"
)

// defaultConfigurationValues seeds Viper before files and environment overrides apply.
func defaultConfigurationValues() map[string]any {
	defaultCommands := fleet.DefaultCommandSet()
	return map[string]any{
		commonLogLevelConfigKey:      defaultLogLevelConstant,
		commonLogFormatConfigKey:     defaultLogFormatConstant,
		fleetRootConfigKey:           defaultFleetRootConstant,
		fleetRosterConfigKey:         defaultRosterFileConstant,
		fleetPerennialConfigKey:      defaultPerennialNameConstant,
		fleetClonePrefixConfigKey:    defaultClonePrefixConstant,
		serverAddressConfigKey:       defaultListenAddressConstant,
		commandsSynchronizeConfigKey: defaultCommands.Synchronize,
		commandsInstallConfigKey:     defaultCommands.Install,
		commandsBuildConfigKey:       defaultCommands.Build,
		commandsCompareConfigKey:     defaultCommands.Compare,
		commandsRebuildSharedConfKey: defaultCommands.RebuildShared,
		commandsCloneConfigKey:       defaultCommands.Clone,
	}
}
