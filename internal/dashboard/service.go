package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/temirov/fleetdash/internal/fleet"
)

const (
	repoListRoutePathConstant         = "/repo-list"
	simListRoutePathConstant          = "/sim-list"
	pullRoutePathConstant             = "/pull"
	buildRoutePathConstant            = "/build"
	pullAllRoutePathConstant          = "/pull-all"
	compareRoutePathConstant          = "/same-as-remote-master"
	perennialRefreshRoutePathConstant = "/perennial-refresh"
	checkAllRoutePathConstant         = "/check-all"
	checkSimsRoutePathConstant        = "/check-sims"
	statusRoutePathConstant           = "/status"
	eventsRoutePathConstant           = "/events"
	rootRoutePathConstant             = "/"

	simulationQueryParameterConstant = "sim"
	repositoryQueryParameterConstant = "repo"

	corsHeaderNameConstant        = "Access-Control-Allow-Origin"
	corsHeaderValueConstant       = "*"
	contentTypeHeaderNameConstant = "Content-Type"
	contentTypeJSONValueConstant  = "application/json"

	serviceLoggerMissingMessageConstant     = "dashboard service requires a logger"
	serviceRosterMissingMessageConstant     = "dashboard service requires a roster"
	serviceOperationsMissingMessageConstant = "dashboard service requires repository operations"
	serviceAggregatorMissingMessageConstant = "dashboard service requires both status aggregators"

	unknownOperationMessageConstant         = "unknown operation"
	missingParameterTemplateConstant        = "missing %q query parameter"
	unknownRepositoryTemplateConstant       = "repository %q is not in the fleet"
	unknownSimulationTemplateConstant       = "repository %q is not a simulation"
	comparisonSameResponseConstant          = "same"
	comparisonDifferentResponseConstant     = "different"
	rosterReloadFailureTemplateConstant     = "roster reload failed: %s"
	pullPipelineNameTemplateConstant        = "pull %s"
	buildPipelineNameTemplateConstant       = "build %s"
	pullAllPipelineNameConstant             = "pull-all"
	perennialRefreshPipelineNameConstant    = "perennial-refresh"
	synchronizeStepNameTemplateConstant     = "synchronize %s"
	installStepNameTemplateConstant         = "install %s"
	buildStepNameTemplateConstant           = "build %s"
	cloneStepNameTemplateConstant           = "clone %s"
	rebuildSharedStepNameConstant           = "rebuild-shared"
	envelopeEncodeFailedLogMessageConstant  = "failed to encode response envelope"
	requestRejectedLogMessageConstant       = "request rejected before spawning any process"
	requestHandledLogMessageConstant        = "dashboard request handled"
	serviceLogFieldRoutePathConstant        = "route"
	serviceLogFieldRejectionReasonConstant  = "reason"
	serviceLogFieldOperationSuccessConstant = "success"
)

// ErrLoggerNotConfigured indicates the service was constructed without a logger.
var ErrLoggerNotConfigured = errors.New(serviceLoggerMissingMessageConstant)

// ErrRosterNotConfigured indicates the service was constructed without a roster.
var ErrRosterNotConfigured = errors.New(serviceRosterMissingMessageConstant)

// ErrOperationsNotConfigured indicates the service was constructed without repository operations.
var ErrOperationsNotConfigured = errors.New(serviceOperationsMissingMessageConstant)

// ErrAggregatorsNotConfigured indicates one of the status aggregators was missing.
var ErrAggregatorsNotConfigured = errors.New(serviceAggregatorMissingMessageConstant)

// ResponseEnvelope is the uniform response shape rendered for every operation.
type ResponseEnvelope struct {
	Output  any  `json:"output"`
	Success bool `json:"success"`
}

// StatusDocument is the fleet state snapshot served to dashboard polls.
type StatusDocument struct {
	Shared      FleetStatusDocument `json:"shared"`
	Simulations FleetStatusDocument `json:"simulations"`
}

// FleetStatusDocument renders one aggregator snapshot.
type FleetStatusDocument struct {
	Phase     string            `json:"phase"`
	Remaining int               `json:"remaining"`
	Statuses  map[string]string `json:"statuses"`
	OutOfDate []string          `json:"outOfDate"`
}

// EventPublisher receives pass summaries and pipeline outcomes for live streaming.
type EventPublisher interface {
	PublishPassSummary(summary fleet.PassSummary)
	PublishPipelineOutcome(pipelineName string, outcome fleet.Outcome)
}

// noopEventPublisher discards events when no hub is wired.
type noopEventPublisher struct{}

func (noopEventPublisher) PublishPassSummary(fleet.PassSummary)         {}
func (noopEventPublisher) PublishPipelineOutcome(string, fleet.Outcome) {}

// Dependencies enumerates collaborators for the reporting service.
type Dependencies struct {
	Logger               *zap.Logger
	Roster               *fleet.Roster
	Operations           *fleet.Operations
	SharedAggregator     *fleet.StatusAggregator
	SimulationAggregator *fleet.StatusAggregator
	Events               EventPublisher
}

// Service converts dashboard requests into pipelines and aggregation passes
// and renders their outcomes as response envelopes.
type Service struct {
	logger               *zap.Logger
	roster               *fleet.Roster
	operations           *fleet.Operations
	sharedAggregator     *fleet.StatusAggregator
	simulationAggregator *fleet.StatusAggregator
	events               EventPublisher
}

// NewService constructs the reporting service, validating dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Roster == nil {
		return nil, ErrRosterNotConfigured
	}
	if dependencies.Operations == nil {
		return nil, ErrOperationsNotConfigured
	}
	if dependencies.SharedAggregator == nil || dependencies.SimulationAggregator == nil {
		return nil, ErrAggregatorsNotConfigured
	}

	events := dependencies.Events
	if events == nil {
		events = noopEventPublisher{}
	}

	return &Service{
		logger:               dependencies.Logger,
		roster:               dependencies.Roster,
		operations:           dependencies.Operations,
		sharedAggregator:     dependencies.SharedAggregator,
		simulationAggregator: dependencies.SimulationAggregator,
		events:               events,
	}, nil
}

// RegisterRoutes wires every dashboard operation onto the provided mux.
func (service *Service) RegisterRoutes(mux *http.ServeMux, eventHub *EventHub) {
	mux.HandleFunc(repoListRoutePathConstant, service.handleRepoList)
	mux.HandleFunc(simListRoutePathConstant, service.handleSimList)
	mux.HandleFunc(pullRoutePathConstant, service.handlePull)
	mux.HandleFunc(buildRoutePathConstant, service.handleBuild)
	mux.HandleFunc(pullAllRoutePathConstant, service.handlePullAll)
	mux.HandleFunc(compareRoutePathConstant, service.handleCompare)
	mux.HandleFunc(perennialRefreshRoutePathConstant, service.handlePerennialRefresh)
	mux.HandleFunc(checkAllRoutePathConstant, service.handleCheckAll)
	mux.HandleFunc(checkSimsRoutePathConstant, service.handleCheckSims)
	mux.HandleFunc(statusRoutePathConstant, service.handleStatus)
	if eventHub != nil {
		mux.HandleFunc(eventsRoutePathConstant, eventHub.HandleEvents)
	}
	mux.HandleFunc(rootRoutePathConstant, service.handleUnknown)
}

func (service *Service) handleRepoList(responseWriter http.ResponseWriter, request *http.Request) {
	service.writeEnvelope(responseWriter, http.StatusOK, repositoryNameStrings(service.roster.All()), true)
}

func (service *Service) handleSimList(responseWriter http.ResponseWriter, request *http.Request) {
	service.writeEnvelope(responseWriter, http.StatusOK, repositoryNameStrings(service.roster.Simulations()), true)
}

func (service *Service) handlePull(responseWriter http.ResponseWriter, request *http.Request) {
	repositoryName, validationError := service.simulationParameter(request)
	if validationError != nil {
		service.rejectRequest(responseWriter, request, validationError)
		return
	}

	pipelineName := fmt.Sprintf(pullPipelineNameTemplateConstant, repositoryName.String())
	pipeline := fleet.NewPipeline(pipelineName, []fleet.Step{
		service.synchronizeStep(repositoryName),
	}, service.logger)

	outcome := pipeline.Execute(request.Context())
	service.events.PublishPipelineOutcome(pipelineName, outcome)

	// A completed synchronize on a repository updates that repository's
	// recorded remote comparison status.
	if outcome.Succeeded {
		service.refreshRepositoryStatus(request.Context(), repositoryName)
	}

	service.writePipelineEnvelope(responseWriter, request, outcome)
}

func (service *Service) handleBuild(responseWriter http.ResponseWriter, request *http.Request) {
	repositoryName, validationError := service.simulationParameter(request)
	if validationError != nil {
		service.rejectRequest(responseWriter, request, validationError)
		return
	}

	pipelineName := fmt.Sprintf(buildPipelineNameTemplateConstant, repositoryName.String())
	pipeline := fleet.NewPipeline(pipelineName, []fleet.Step{
		service.installStep(repositoryName),
		service.buildStep(repositoryName),
	}, service.logger)

	outcome := pipeline.Execute(request.Context())
	service.events.PublishPipelineOutcome(pipelineName, outcome)
	service.writePipelineEnvelope(responseWriter, request, outcome)
}

func (service *Service) handlePullAll(responseWriter http.ResponseWriter, request *http.Request) {
	pipelineSteps := make([]fleet.Step, 0, len(service.roster.All())+1)
	for _, repositoryName := range service.roster.All() {
		pipelineSteps = append(pipelineSteps, service.synchronizeStep(repositoryName))
	}
	pipelineSteps = append(pipelineSteps, fleet.Step{
		Name: rebuildSharedStepNameConstant,
		Run: func(executionContext context.Context) fleet.OperationResult {
			return service.operations.RebuildShared(executionContext)
		},
	})

	pipeline := fleet.NewPipeline(pullAllPipelineNameConstant, pipelineSteps, service.logger)
	outcome := pipeline.Execute(request.Context())
	service.events.PublishPipelineOutcome(pullAllPipelineNameConstant, outcome)
	service.writePipelineEnvelope(responseWriter, request, outcome)
}

func (service *Service) handleCompare(responseWriter http.ResponseWriter, request *http.Request) {
	repositoryName, validationError := service.repositoryParameter(request)
	if validationError != nil {
		service.rejectRequest(responseWriter, request, validationError)
		return
	}

	comparisonStatus, comparisonResult := service.operations.CompareToRemote(request.Context(), repositoryName)
	service.recordRepositoryStatus(repositoryName, comparisonStatus)

	switch comparisonStatus {
	case fleet.StatusUpToDate:
		service.writeEnvelope(responseWriter, http.StatusOK, comparisonSameResponseConstant, true)
	case fleet.StatusOutOfDate:
		service.writeEnvelope(responseWriter, http.StatusOK, comparisonDifferentResponseConstant, true)
	default:
		service.writeEnvelope(responseWriter, http.StatusOK, comparisonResult.Diagnostic, false)
	}
}

func (service *Service) handlePerennialRefresh(responseWriter http.ResponseWriter, request *http.Request) {
	perennialName := service.operations.Perennial()
	pipelineSteps := []fleet.Step{
		service.synchronizeStep(perennialName),
		service.installStep(perennialName),
	}
	for _, repositoryName := range service.roster.All() {
		if service.operations.RepositoryExists(repositoryName) {
			continue
		}
		pipelineSteps = append(pipelineSteps, service.cloneStep(repositoryName))
	}

	pipeline := fleet.NewPipeline(perennialRefreshPipelineNameConstant, pipelineSteps, service.logger)
	outcome := pipeline.Execute(request.Context())
	service.events.PublishPipelineOutcome(perennialRefreshPipelineNameConstant, outcome)

	if outcome.Succeeded {
		if reloadError := service.roster.Reload(); reloadError != nil {
			service.writeEnvelope(responseWriter, http.StatusOK, fmt.Sprintf(rosterReloadFailureTemplateConstant, reloadError.Error()), false)
			return
		}
	}

	service.writePipelineEnvelope(responseWriter, request, outcome)
}

func (service *Service) handleCheckAll(responseWriter http.ResponseWriter, request *http.Request) {
	summary := service.sharedAggregator.RunPass(request.Context(), service.roster.All())
	service.events.PublishPassSummary(summary)
	service.writeEnvelope(responseWriter, http.StatusOK, summary.Message, summary.Completed)
}

func (service *Service) handleCheckSims(responseWriter http.ResponseWriter, request *http.Request) {
	summary := service.simulationAggregator.RunPass(request.Context(), service.roster.Simulations())
	service.events.PublishPassSummary(summary)
	service.writeEnvelope(responseWriter, http.StatusOK, summary.Message, summary.Completed)
}

func (service *Service) handleStatus(responseWriter http.ResponseWriter, request *http.Request) {
	statusDocument := StatusDocument{
		Shared:      buildFleetStatusDocument(service.sharedAggregator.Snapshot()),
		Simulations: buildFleetStatusDocument(service.simulationAggregator.Snapshot()),
	}
	service.writeJSON(responseWriter, http.StatusOK, statusDocument)
}

func (service *Service) handleUnknown(responseWriter http.ResponseWriter, request *http.Request) {
	service.logger.Debug(requestRejectedLogMessageConstant,
		zap.String(serviceLogFieldRoutePathConstant, request.URL.Path),
		zap.String(serviceLogFieldRejectionReasonConstant, unknownOperationMessageConstant),
	)
	service.writeEnvelope(responseWriter, http.StatusNotFound, unknownOperationMessageConstant, false)
}

func (service *Service) synchronizeStep(repositoryName fleet.RepositoryName) fleet.Step {
	return fleet.Step{
		Name: fmt.Sprintf(synchronizeStepNameTemplateConstant, repositoryName.String()),
		Run: func(executionContext context.Context) fleet.OperationResult {
			return service.operations.Synchronize(executionContext, repositoryName)
		},
	}
}

func (service *Service) installStep(repositoryName fleet.RepositoryName) fleet.Step {
	return fleet.Step{
		Name: fmt.Sprintf(installStepNameTemplateConstant, repositoryName.String()),
		Run: func(executionContext context.Context) fleet.OperationResult {
			return service.operations.InstallDependencies(executionContext, repositoryName)
		},
	}
}

func (service *Service) buildStep(repositoryName fleet.RepositoryName) fleet.Step {
	return fleet.Step{
		Name: fmt.Sprintf(buildStepNameTemplateConstant, repositoryName.String()),
		Run: func(executionContext context.Context) fleet.OperationResult {
			return service.operations.Build(executionContext, repositoryName)
		},
	}
}

func (service *Service) cloneStep(repositoryName fleet.RepositoryName) fleet.Step {
	return fleet.Step{
		Name: fmt.Sprintf(cloneStepNameTemplateConstant, repositoryName.String()),
		Run: func(executionContext context.Context) fleet.OperationResult {
			return service.operations.Clone(executionContext, repositoryName)
		},
	}
}

// refreshRepositoryStatus re-runs the comparison once and records the result
// in every aggregator whose fleet contains the repository.
func (service *Service) refreshRepositoryStatus(executionContext context.Context, repositoryName fleet.RepositoryName) {
	comparisonStatus, _ := service.operations.CompareToRemote(executionContext, repositoryName)
	service.recordRepositoryStatus(repositoryName, comparisonStatus)
}

func (service *Service) recordRepositoryStatus(repositoryName fleet.RepositoryName, comparisonStatus fleet.ComparisonStatus) {
	if service.roster.Contains(repositoryName) {
		service.sharedAggregator.Record(repositoryName, comparisonStatus)
	}
	if service.roster.ContainsSimulation(repositoryName) {
		service.simulationAggregator.Record(repositoryName, comparisonStatus)
	}
}

func (service *Service) simulationParameter(request *http.Request) (fleet.RepositoryName, error) {
	return service.validatedParameter(request, simulationQueryParameterConstant, true)
}

func (service *Service) repositoryParameter(request *http.Request) (fleet.RepositoryName, error) {
	return service.validatedParameter(request, repositoryQueryParameterConstant, false)
}

// validatedParameter enforces the identifier invariant and roster membership
// before any process can be spawned on behalf of the request.
func (service *Service) validatedParameter(request *http.Request, parameterName string, requireSimulation bool) (fleet.RepositoryName, error) {
	rawValue := request.URL.Query().Get(parameterName)
	if len(rawValue) == 0 {
		return "", fmt.Errorf(missingParameterTemplateConstant, parameterName)
	}

	repositoryName, parseError := fleet.ParseRepositoryName(rawValue)
	if parseError != nil {
		return "", parseError
	}

	if requireSimulation {
		if !service.roster.ContainsSimulation(repositoryName) {
			return "", fmt.Errorf(unknownSimulationTemplateConstant, repositoryName.String())
		}
		return repositoryName, nil
	}

	if !service.roster.Contains(repositoryName) {
		return "", fmt.Errorf(unknownRepositoryTemplateConstant, repositoryName.String())
	}
	return repositoryName, nil
}

func (service *Service) rejectRequest(responseWriter http.ResponseWriter, request *http.Request, validationError error) {
	service.logger.Debug(requestRejectedLogMessageConstant,
		zap.String(serviceLogFieldRoutePathConstant, request.URL.Path),
		zap.String(serviceLogFieldRejectionReasonConstant, validationError.Error()),
	)
	service.writeEnvelope(responseWriter, http.StatusBadRequest, validationError.Error(), false)
}

func (service *Service) writePipelineEnvelope(responseWriter http.ResponseWriter, request *http.Request, outcome fleet.Outcome) {
	service.logger.Info(requestHandledLogMessageConstant,
		zap.String(serviceLogFieldRoutePathConstant, request.URL.Path),
		zap.Bool(serviceLogFieldOperationSuccessConstant, outcome.Succeeded),
	)
	service.writeEnvelope(responseWriter, http.StatusOK, outcome.Message(), outcome.Succeeded)
}

func (service *Service) writeEnvelope(responseWriter http.ResponseWriter, statusCode int, output any, success bool) {
	service.writeJSON(responseWriter, statusCode, ResponseEnvelope{Output: output, Success: success})
}

func (service *Service) writeJSON(responseWriter http.ResponseWriter, statusCode int, payload any) {
	responseWriter.Header().Set(corsHeaderNameConstant, corsHeaderValueConstant)
	responseWriter.Header().Set(contentTypeHeaderNameConstant, contentTypeJSONValueConstant)
	responseWriter.WriteHeader(statusCode)
	if encodeError := json.NewEncoder(responseWriter).Encode(payload); encodeError != nil {
		service.logger.Warn(envelopeEncodeFailedLogMessageConstant, zap.Error(encodeError))
	}
}

func buildFleetStatusDocument(snapshot fleet.Snapshot) FleetStatusDocument {
	statuses := make(map[string]string, len(snapshot.Statuses))
	for repositoryName, comparisonStatus := range snapshot.Statuses {
		statuses[repositoryName.String()] = string(comparisonStatus)
	}
	return FleetStatusDocument{
		Phase:     string(snapshot.Phase),
		Remaining: snapshot.Remaining,
		Statuses:  statuses,
		OutOfDate: repositoryNameStrings(snapshot.OutOfDate),
	}
}

func repositoryNameStrings(names []fleet.RepositoryName) []string {
	nameStrings := make([]string, 0, len(names))
	for _, name := range names {
		nameStrings = append(nameStrings, name.String())
	}
	return nameStrings
}
