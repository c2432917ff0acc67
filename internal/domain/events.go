package domain

// EventKind discriminates the pipeline event union.
type EventKind string

const (
	EventStage     EventKind = "stage"
	EventQueries   EventKind = "queries"
	EventSource    EventKind = "source"
	EventTextDelta EventKind = "text-delta"
	EventDone      EventKind = "done"
	EventError     EventKind = "error"
)

// StageStatus is the reported state of a stage within a stage event.
type StageStatus string

const (
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// Event is one entry of the ordered pipeline event stream. Consumers
// switch on Kind(); the serialization boundary must handle every kind.
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
	Source EvaluatedSource `json:"source"`
}

func (SourceEvent) Kind() EventKind { return EventSource }

// TextDeltaEvent carries an incremental chunk of report text.
type TextDeltaEvent struct {
	Delta string `json:"delta"`
}

func (TextDeltaEvent) Kind() EventKind { return EventTextDelta }

// DoneEvent is the terminal completion event carrying the full response.
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
