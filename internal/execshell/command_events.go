package execshell

// CommandEventObserver receives lifecycle notifications for every process the
// executor spawns. The dashboard wires an observer to stream a live command
// log to connected clients.
type CommandEventObserver interface {
	// CommandStarted fires before the process is spawned.
	CommandStarted(command ShellCommand)
	// CommandCompleted fires once the process exits, with its captured result.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed fires when the process could not be started.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// noopCommandEventObserver stands in when no observer is configured.
type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}
