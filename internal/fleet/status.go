package fleet

// ComparisonStatus captures whether a repository's local commit matches its
// remote default branch tip.
type ComparisonStatus string

// Remote comparison statuses. Entries start as StatusUnknown and are updated
// in place on each aggregation pass; they are never deleted.
const (
	StatusUnknown     ComparisonStatus = "unknown"
	StatusUpToDate    ComparisonStatus = "up-to-date"
	StatusOutOfDate   ComparisonStatus = "out-of-date"
	StatusCheckFailed ComparisonStatus = "check-failed"
)

// PassPhase enumerates the lifecycle of one aggregation pass.
type PassPhase string

// Aggregation pass phases.
const (
	PassIdle     PassPhase = "idle"
	PassChecking PassPhase = "checking"
	PassDone     PassPhase = "done"
)
