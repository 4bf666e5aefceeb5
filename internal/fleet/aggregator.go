package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	aggregatorComparerMissingMessageConstant = "remote comparer not configured"
	aggregatorNameMissingMessageConstant     = "aggregator fleet name must be provided"
	noOutOfDateSummaryMessageConstant        = "no out-of-date repositories"
	outOfDateSummaryTemplateConstant         = "%d of %d repositories out of date"
	passSupersededSummaryMessageConstant     = "pass superseded by a newer trigger"
	passStartedLogMessageConstant            = "aggregation pass started"
	passCompletedLogMessageConstant          = "aggregation pass completed"
	passAbandonedLogMessageConstant          = "aggregation pass abandoned"
	repositoryCheckedLogMessageConstant      = "repository checked"
	aggregatorLogFieldFleetConstant          = "fleet"
	aggregatorLogFieldRepositoryConstant     = "repository"
	aggregatorLogFieldStatusConstant         = "status"
	aggregatorLogFieldCountConstant          = "repository_count"
)

// ErrRemoteComparerNotConfigured indicates the aggregator was built without a comparer.
var ErrRemoteComparerNotConfigured = errors.New(aggregatorComparerMissingMessageConstant)

// ErrAggregatorNameRequired indicates the aggregator fleet name option was empty.
var ErrAggregatorNameRequired = errors.New(aggregatorNameMissingMessageConstant)

// RemoteComparer compares one repository's local commit against its remote tip.
type RemoteComparer interface {
	CompareToRemote(executionContext context.Context, name RepositoryName) (ComparisonStatus, OperationResult)
}

// PassSummary reports the outcome of one aggregation pass.
type PassSummary struct {
	Fleet       string
	Visited     int
	OutOfDate   int
	CheckFailed int
	Completed   bool
	Message     string
}

// Snapshot is a point-in-time copy of FleetState handed to readers. The
// OutOfDate list preserves first-seen repository order.
type Snapshot struct {
	Fleet     string
	Phase     PassPhase
	Remaining int
	Statuses  map[RepositoryName]ComparisonStatus
	OutOfDate []RepositoryName
}

// StatusAggregator owns the FleetState for one repository fleet. Checks
// within a pass run strictly sequentially because the comparison script
// reads and writes the repository working directory; only the bookkeeping is
// guarded by the mutex so readers can snapshot at any time.
type StatusAggregator struct {
	fleetName  string
	comparer   RemoteComparer
	logger     *zap.Logger
	mutex      sync.Mutex
	statuses   map[RepositoryName]ComparisonStatus
	knownOrder []RepositoryName
	phase      PassPhase
	remaining  int
	generation uint64
}

// NewStatusAggregator constructs an aggregator for one named fleet.
func NewStatusAggregator(fleetName string, comparer RemoteComparer, logger *zap.Logger) (*StatusAggregator, error) {
	if len(fleetName) == 0 {
		return nil, ErrAggregatorNameRequired
	}
	if comparer == nil {
		return nil, ErrRemoteComparerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusAggregator{
		fleetName: fleetName,
		comparer:  comparer,
		logger:    logger,
		statuses:  map[RepositoryName]ComparisonStatus{},
		phase:     PassIdle,
	}, nil
}

// RunPass visits every repository in list order exactly once, recording each
// comparison status. A repository whose check fails is recorded as
// StatusCheckFailed and the pass continues; the pass reaches Done only after
// every repository has been visited. A newer trigger supersedes an in-flight
// pass, which then abandons before its next visit.
func (aggregator *StatusAggregator) RunPass(executionContext context.Context, repositories []RepositoryName) PassSummary {
	passGeneration := aggregator.beginPass(repositories)

	aggregator.logger.Info(passStartedLogMessageConstant,
		zap.String(aggregatorLogFieldFleetConstant, aggregator.fleetName),
		zap.Int(aggregatorLogFieldCountConstant, len(repositories)),
	)

	visitedCount := 0
	checkFailedCount := 0
	for _, repositoryName := range repositories {
		if aggregator.superseded(passGeneration) {
			aggregator.logger.Info(passAbandonedLogMessageConstant, zap.String(aggregatorLogFieldFleetConstant, aggregator.fleetName))
			return PassSummary{Fleet: aggregator.fleetName, Visited: visitedCount, Message: passSupersededSummaryMessageConstant}
		}

		comparisonStatus, _ := aggregator.comparer.CompareToRemote(executionContext, repositoryName)
		aggregator.record(repositoryName, comparisonStatus, passGeneration)
		visitedCount++
		if comparisonStatus == StatusCheckFailed {
			checkFailedCount++
		}

		aggregator.logger.Debug(repositoryCheckedLogMessageConstant,
			zap.String(aggregatorLogFieldFleetConstant, aggregator.fleetName),
			zap.String(aggregatorLogFieldRepositoryConstant, repositoryName.String()),
			zap.String(aggregatorLogFieldStatusConstant, string(comparisonStatus)),
		)
	}

	summary := aggregator.finishPass(passGeneration, repositories, visitedCount, checkFailedCount)
	if summary.Completed {
		aggregator.logger.Info(passCompletedLogMessageConstant,
			zap.String(aggregatorLogFieldFleetConstant, aggregator.fleetName),
			zap.String(aggregatorLogFieldStatusConstant, summary.Message),
		)
	}
	return summary
}

// CheckOne compares a single repository and records its status without
// touching the pass lifecycle. A completed synchronize uses this to keep the
// repository's recorded status current.
func (aggregator *StatusAggregator) CheckOne(executionContext context.Context, repositoryName RepositoryName) ComparisonStatus {
	comparisonStatus, _ := aggregator.comparer.CompareToRemote(executionContext, repositoryName)
	aggregator.mutex.Lock()
	aggregator.store(repositoryName, comparisonStatus)
	aggregator.mutex.Unlock()
	return comparisonStatus
}

// Record stores a status obtained outside a pass, such as the comparison run
// by the reporting service after a completed synchronize.
func (aggregator *StatusAggregator) Record(repositoryName RepositoryName, comparisonStatus ComparisonStatus) {
	aggregator.mutex.Lock()
	aggregator.store(repositoryName, comparisonStatus)
	aggregator.mutex.Unlock()
}

// Snapshot returns a consistent copy of the fleet state for readers.
func (aggregator *StatusAggregator) Snapshot() Snapshot {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()

	statuses := make(map[RepositoryName]ComparisonStatus, len(aggregator.statuses))
	for repositoryName, comparisonStatus := range aggregator.statuses {
		statuses[repositoryName] = comparisonStatus
	}

	outOfDate := make([]RepositoryName, 0)
	for _, repositoryName := range aggregator.knownOrder {
		if aggregator.statuses[repositoryName] == StatusOutOfDate {
			outOfDate = append(outOfDate, repositoryName)
		}
	}

	return Snapshot{
		Fleet:     aggregator.fleetName,
		Phase:     aggregator.phase,
		Remaining: aggregator.remaining,
		Statuses:  statuses,
		OutOfDate: outOfDate,
	}
}

func (aggregator *StatusAggregator) beginPass(repositories []RepositoryName) uint64 {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()

	aggregator.generation++
	aggregator.phase = PassChecking
	aggregator.remaining = len(repositories)
	for _, repositoryName := range repositories {
		if _, known := aggregator.statuses[repositoryName]; !known {
			aggregator.store(repositoryName, StatusUnknown)
		}
	}
	return aggregator.generation
}

func (aggregator *StatusAggregator) superseded(passGeneration uint64) bool {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()
	return aggregator.generation != passGeneration
}

func (aggregator *StatusAggregator) record(repositoryName RepositoryName, comparisonStatus ComparisonStatus, passGeneration uint64) {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()

	aggregator.store(repositoryName, comparisonStatus)
	if aggregator.generation == passGeneration && aggregator.remaining > 0 {
		aggregator.remaining--
	}
}

// store assumes the mutex is held.
func (aggregator *StatusAggregator) store(repositoryName RepositoryName, comparisonStatus ComparisonStatus) {
	if _, known := aggregator.statuses[repositoryName]; !known {
		aggregator.knownOrder = append(aggregator.knownOrder, repositoryName)
	}
	aggregator.statuses[repositoryName] = comparisonStatus
}

func (aggregator *StatusAggregator) finishPass(passGeneration uint64, repositories []RepositoryName, visitedCount int, checkFailedCount int) PassSummary {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()

	if aggregator.generation != passGeneration {
		return PassSummary{Fleet: aggregator.fleetName, Visited: visitedCount, Message: passSupersededSummaryMessageConstant}
	}

	aggregator.phase = PassDone
	aggregator.remaining = 0

	outOfDateCount := 0
	for _, repositoryName := range repositories {
		if aggregator.statuses[repositoryName] == StatusOutOfDate {
			outOfDateCount++
		}
	}

	summaryMessage := noOutOfDateSummaryMessageConstant
	if outOfDateCount > 0 {
		summaryMessage = fmt.Sprintf(outOfDateSummaryTemplateConstant, outOfDateCount, len(repositories))
	}

	return PassSummary{
		Fleet:       aggregator.fleetName,
		Visited:     visitedCount,
		OutOfDate:   outOfDateCount,
		CheckFailed: checkFailedCount,
		Completed:   true,
		Message:     summaryMessage,
	}
}
