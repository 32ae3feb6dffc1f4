package persistence

import (
	"time"

	"github.com/asaidimu/go-docquery/core/command"
)

func createEvent(
	eventType OperationEventType,
	cmd *command.Command,
	documentID string,
	output any,
	err error,
	startTime time.Time,
) OperationEvent {
	var duration *int64
	if eventType != EventTypeFor(cmd.Operation, PhaseStart) && !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	var errStr *string
	if err != nil {
		s := err.Error()
		errStr = &s
	}

	var input any
	switch {
	case cmd.Data != nil:
		input = cmd.Data
	case cmd.Query != nil:
		input = cmd.Query
	}

	return OperationEvent{
		Type:       eventType,
		Timestamp:  time.Now().UnixMilli(),
		Operation:  cmd.Operation,
		Collection: cmd.Collection,
		DocumentID: documentID,
		Input:      input,
		Output:     output,
		Error:      errStr,
		Duration:   duration,
	}
}
