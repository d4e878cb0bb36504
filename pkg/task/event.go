package task

import "fmt"

type Kind string

const (
	KindSearch    Kind = "search"
	KindDownload  Kind = "download"
	KindInference Kind = "inference"
)

type EventType int

const (
	EventProgress EventType = iota
	EventCompleted
	EventFailed
	EventCancelled
)

func (t EventType) String() string {
	switch t {
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is a notification about one task. Each task produces zero or more
// progress events followed by exactly one terminal event.
type Event struct {
	TaskID   string
	Kind     Kind
	Type     EventType
	Progress int
	// Outcome is set on terminal events. Cancelled downloads carry the
	// files retrieved so far, failures carry a Failure.
	Outcome Outcome
	Err     error
}

func (e Event) Terminal() bool {
	return e.Type != EventProgress
}
