package profundo

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the streamed event union.
type EventKind string

// Event kinds.
const (
	EventStage     EventKind = "stage"
	EventQueries   EventKind = "queries"
	EventSource    EventKind = "source"
	EventTextDelta EventKind = "text-delta"
	EventDone      EventKind = "done"
	EventError     EventKind = "error"
)

// Event is one entry of the ordered run event stream. Switch on the
// concrete type or on Kind().
type Event interface {
	Kind() EventKind
}

// StageEvent reports a stage transition with a monotonic progress
// fraction in [0,1].
type StageEvent struct {
	Stage    Stage       `json:"stage"`
	Status   StageStatus `json:"status"`
	Progress float64     `json:"progress"`
	Message  string      `json:"message,omitempty"`
}

func (StageEvent) Kind() EventKind { return EventStage }

// QueriesEvent carries the decomposed sub-query batch.
type QueriesEvent struct {
	Queries []SubQuery `json:"queries"`
}

func (QueriesEvent) Kind() EventKind { return EventQueries }

// SourceEvent carries one evaluated source as it is retained.
type SourceEvent struct {
	Source Source `json:"source"`
}

func (SourceEvent) Kind() EventKind { return EventSource }

// TextDeltaEvent carries an incremental chunk of report text.
type TextDeltaEvent struct {
	Delta string `json:"delta"`
}

func (TextDeltaEvent) Kind() EventKind { return EventTextDelta }

// DoneEvent is the terminal completion event carrying the full
// response.
type DoneEvent struct {
	Response ResearchResponse `json:"response"`
}

func (DoneEvent) Kind() EventKind { return EventDone }

// ErrorEvent reports a failure. Recoverable errors are informational;
// a non-recoverable error terminates the run.
type ErrorEvent struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

func (ErrorEvent) Kind() EventKind { return EventError }

// EventHandler receives each streamed event in order. Returning an
// error aborts the stream.
type EventHandler func(Event) error

// decodeEvent parses one SSE data payload into a typed event.
func decodeEvent(data []byte) (Event, error) {
	var head struct {
		Type EventKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("profundo: malformed event: %w", err)
	}

	unmarshal := func(into any) error {
		if err := json.Unmarshal(data, into); err != nil {
			return fmt.Errorf("profundo: decode %s event: %w", head.Type, err)
		}
		return nil
	}

	switch head.Type {
	case EventStage:
		var e StageEvent
		err := unmarshal(&e)
		return e, err
	case EventQueries:
		var e QueriesEvent
		err := unmarshal(&e)
		return e, err
	case EventSource:
		var e SourceEvent
		err := unmarshal(&e)
		return e, err
	case EventTextDelta:
		var e TextDeltaEvent
		err := unmarshal(&e)
		return e, err
	case EventDone:
		var e DoneEvent
		err := unmarshal(&e)
		return e, err
	case EventError:
		var e ErrorEvent
		err := unmarshal(&e)
		return e, err
	default:
		return nil, fmt.Errorf("profundo: unknown event type %q", head.Type)
	}
}
