package fleet

// OperationResult reduces one external process outcome to the uniform
// success/failure shape consumed by pipelines and the aggregator.
type OperationResult struct {
	Succeeded  bool
	ExitCode   int
	Diagnostic string
	Output     string
}

// SuccessResult builds a successful result carrying the trimmed process output.
func SuccessResult(output string) OperationResult {
	return OperationResult{Succeeded: true, Output: output}
}

// FailureResult builds a failed result carrying the exit code and diagnostic text.
func FailureResult(exitCode int, diagnostic string) OperationResult {
	return OperationResult{Succeeded: false, ExitCode: exitCode, Diagnostic: diagnostic}
}
