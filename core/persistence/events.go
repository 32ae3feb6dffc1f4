package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-docquery/core/command"
)

// OperationEventType names an event emitted around a document operation.
type OperationEventType string

const (
	DocumentReadStart     OperationEventType = "document:read:start"
	DocumentReadSuccess   OperationEventType = "document:read:success"
	DocumentReadFailed    OperationEventType = "document:read:failed"
	DocumentWriteStart    OperationEventType = "document:write:start"
	DocumentWriteSuccess  OperationEventType = "document:write:success"
	DocumentWriteFailed   OperationEventType = "document:write:failed"
	DocumentUpdateStart   OperationEventType = "document:update:start"
	DocumentUpdateSuccess OperationEventType = "document:update:success"
	DocumentUpdateFailed  OperationEventType = "document:update:failed"
	DocumentDeleteStart   OperationEventType = "document:delete:start"
	DocumentDeleteSuccess OperationEventType = "document:delete:success"
	DocumentDeleteFailed  OperationEventType = "document:delete:failed"
	DocumentQueryStart    OperationEventType = "document:query:start"
	DocumentQuerySuccess  OperationEventType = "document:query:success"
	DocumentQueryFailed   OperationEventType = "document:query:failed"
)

// EventPhase is the stage of an operation an event reports.
type EventPhase string

const (
	PhaseStart   EventPhase = "start"
	PhaseSuccess EventPhase = "success"
	PhaseFailed  EventPhase = "failed"
)

// EventTypeFor returns the event type for op at the given phase.
func EventTypeFor(op command.Operation, phase EventPhase) OperationEventType {
	return OperationEventType(fmt.Sprintf("document:%s:%s", op, phase))
}

// OperationEvent is emitted before and after every document operation the
// adapter executes.
type OperationEvent struct {
	Type       OperationEventType `json:"type"`
	Timestamp  int64              `json:"timestamp"` // Unix milliseconds.
	Operation  command.Operation  `json:"operation"`
	Collection string             `json:"collection"`
	DocumentID string             `json:"documentId,omitempty"`
	Input      any                `json:"input,omitempty"`
	Output     any                `json:"output,omitempty"`
	Error      *string            `json:"error,omitempty"`
	Duration   *int64             `json:"duration,omitempty"` // Milliseconds, set on success and failure.
}

// EventCallbackFunction receives operation events.
type EventCallbackFunction func(ctx context.Context, event OperationEvent) error

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	ID          string             `json:"id"`
	Event       OperationEventType `json:"event"`
	Unsubscribe func()             `json:"-"`
}
