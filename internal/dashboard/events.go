package dashboard

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/temirov/fleetdash/internal/execshell"
	"github.com/temirov/fleetdash/internal/fleet"
)

const (
	commandEventTypeConstant             = "command"
	passEventTypeConstant                = "pass"
	pipelineEventTypeConstant            = "pipeline"
	eventUpgradeFailedLogMessageConstant = "websocket upgrade failed"
	eventSendFailedLogMessageConstant    = "websocket send failed; dropping subscriber"
	eventSubscriberLogMessageConstant    = "dashboard event subscriber connected"
)

// Event is the envelope pushed to dashboard websocket subscribers.
type Event struct {
	Type    string `json:"type"`
	Fleet   string `json:"fleet,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// EventHub fans dashboard events out to connected websocket subscribers.
type EventHub struct {
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	mutex       sync.Mutex
	subscribers map[*websocket.Conn]struct{}
}

// NewEventHub constructs an event hub accepting cross-origin dashboard connections.
func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:      logger,
		subscribers: map[*websocket.Conn]struct{}{},
	}
}

// HandleEvents upgrades the request and registers the connection as a subscriber.
func (hub *EventHub) HandleEvents(responseWriter http.ResponseWriter, request *http.Request) {
	connection, upgradeError := hub.upgrader.Upgrade(responseWriter, request, nil)
	if upgradeError != nil {
		hub.logger.Warn(eventUpgradeFailedLogMessageConstant, zap.Error(upgradeError))
		return
	}

	hub.mutex.Lock()
	hub.subscribers[connection] = struct{}{}
	hub.mutex.Unlock()
	hub.logger.Debug(eventSubscriberLogMessageConstant)

	go hub.discardIncoming(connection)
}

// Publish delivers the event to every subscriber, dropping connections that fail.
func (hub *EventHub) Publish(event Event) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	for connection := range hub.subscribers {
		if writeError := connection.WriteJSON(event); writeError != nil {
			hub.logger.Debug(eventSendFailedLogMessageConstant, zap.Error(writeError))
			_ = connection.Close()
			delete(hub.subscribers, connection)
		}
	}
}

// PublishPassSummary pushes an aggregation pass summary to subscribers.
func (hub *EventHub) PublishPassSummary(summary fleet.PassSummary) {
	hub.Publish(Event{
		Type:    passEventTypeConstant,
		Fleet:   summary.Fleet,
		Message: summary.Message,
		Success: summary.Completed,
	})
}

// PublishPipelineOutcome pushes a pipeline terminal state to subscribers.
func (hub *EventHub) PublishPipelineOutcome(pipelineName string, outcome fleet.Outcome) {
	hub.Publish(Event{
		Type:    pipelineEventTypeConstant,
		Subject: pipelineName,
		Message: outcome.Message(),
		Success: outcome.Succeeded,
	})
}

// SubscriberCount reports the number of connected subscribers.
func (hub *EventHub) SubscriberCount() int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	return len(hub.subscribers)
}

func (hub *EventHub) discardIncoming(connection *websocket.Conn) {
	for {
		if _, _, readError := connection.ReadMessage(); readError != nil {
			hub.mutex.Lock()
			delete(hub.subscribers, connection)
			hub.mutex.Unlock()
			_ = connection.Close()
			return
		}
	}
}

// CommandEventPublisher adapts the hub to execshell.CommandEventObserver so
// dashboard clients see a live log of every spawned process.
type CommandEventPublisher struct {
	hub       *EventHub
	formatter execshell.CommandMessageFormatter
}

// NewCommandEventPublisher wraps the hub as a command lifecycle observer.
func NewCommandEventPublisher(hub *EventHub) *CommandEventPublisher {
	return &CommandEventPublisher{hub: hub}
}

// CommandStarted publishes a start notification for the command.
func (publisher *CommandEventPublisher) CommandStarted(command execshell.ShellCommand) {
	publisher.hub.Publish(Event{
		Type:    commandEventTypeConstant,
		Message: publisher.formatter.BuildStartedMessage(command),
		Success: true,
	})
}

// CommandCompleted publishes the completion result for the command.
func (publisher *CommandEventPublisher) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if result.ExitCode == 0 {
		publisher.hub.Publish(Event{
			Type:    commandEventTypeConstant,
			Message: publisher.formatter.BuildSuccessMessage(command),
			Success: true,
		})
		return
	}
	publisher.hub.Publish(Event{
		Type:    commandEventTypeConstant,
		Message: publisher.formatter.BuildFailureMessage(command, result),
		Success: false,
	})
}

// CommandExecutionFailed publishes spawn failures for the command.
func (publisher *CommandEventPublisher) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	publisher.hub.Publish(Event{
		Type:    commandEventTypeConstant,
		Message: publisher.formatter.BuildExecutionFailureMessage(command, failure),
		Success: false,
	})
}
