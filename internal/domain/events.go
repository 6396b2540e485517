package domain

// StreamEventKind tags a StreamEvent.
type StreamEventKind string

const (
	// EventStarted is emitted once, after the process has been spawned.
	EventStarted StreamEventKind = "started"
	// EventDelta carries one normalized fragment.
	EventDelta StreamEventKind = "delta"
	// EventDone is terminal and carries the full accumulated text.
	EventDone StreamEventKind = "done"
	// EventErrored is terminal and carries the failure kind and message.
	EventErrored StreamEventKind = "errored"
)

// StreamEvent is one item of an incremental execution stream. A stream is
// Started, then any number of Delta, then exactly one of Done or Errored.
type StreamEvent struct {
	Kind       StreamEventKind
	RequestID  string
	Fragment   TextFragment
	Text       string
	ErrorKind  ErrorKind
	Message    string
	HTTPStatus int
}

// IsTerminal reports whether the event ends the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Kind == EventDone || e.Kind == EventErrored
}
