package broker

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names recognized by stream consumers.
const (
	EventConnected           = "connected"
	EventTaskStarted         = "task-started"
	EventTaskCompleted       = "task-completed"
	EventTaskFailed          = "task-failed"
	EventTaskCancelled       = "task-cancelled"
	EventRecognitionStart    = "recognition-start"
	EventRecognitionFinished = "recognition-finished"
	EventRecognitionError    = "recognition-error"
	EventPageStart           = "page-start"
	EventPageComplete        = "page-complete"
	EventHeartbeat           = "heartbeat"
)

// Event is one structured progress message. Only the fields relevant to the
// event name are populated.
type Event struct {
	Name       string    `json:"event"`
	SessionID  string    `json:"sessionId,omitempty"`
	TaskID     string    `json:"taskId,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	PageIndex  *int      `json:"pageIndex,omitempty"`
	TotalPages int       `json:"totalPages,omitempty"`
	Pages      int       `json:"pages,omitempty"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// IsTerminal reports whether the event ends a task's event stream.
func (e Event) IsTerminal() bool {
	switch e.Name {
	case EventTaskCompleted, EventTaskFailed, EventTaskCancelled:
		return true
	}
	return false
}

// Frame renders the event as a server-sent-events wire frame:
// "data: <json>\n\n".
func (e Event) Frame() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// PageRef builds the pointer pageIndex field; index zero must still appear
// on the wire.
func PageRef(index int) *int {
	return &index
}
