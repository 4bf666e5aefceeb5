// Package fleet implements the repository fleet domain for fleetdash.
//
// It validates repository identifiers, loads the roster of tracked
// repositories, exposes named repository operations built on execshell,
// sequences fail-fast pipelines, and aggregates remote comparison status
// across the fleet.
package fleet
