// Package cli assembles the fleetdash command-line application.
//
// It wires the Cobra root command, the Viper-backed configuration loader,
// and the zap logger, and registers the serve and check subcommands.
package cli
