package domain

// StreamEvent is one decoded inbound message from the realtime endpoint.
// The transport decodes each wire envelope exactly once; the controller
// switches over the concrete types.
type StreamEvent interface {
	streamEventType() string
}

// PartialEvent carries live, not-yet-confirmed transcript text. Text is the
// concatenation of the envelope's confirmed text and its unconfirmed stash.
type PartialEvent struct {
	Text string
}

func (PartialEvent) streamEventType() string { return "partial" }

// CompletedEvent carries the server-confirmed final transcript for one
// utterance. Side, SourceLang and TargetLang echo the server's attribution;
// the language fields are empty when the server omitted them.
type CompletedEvent struct {
	Transcript string
	Side       Side
	SourceLang string
	TargetLang string
}

func (CompletedEvent) streamEventType() string { return "completed" }

// FinishedEvent signals a server-initiated session close.
type FinishedEvent struct{}

func (FinishedEvent) streamEventType() string { return "finished" }

// ErrorEvent carries a server-sent error message. It does not by itself end
// the session.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) streamEventType() string { return "error" }

// ActivityEvent wraps any unrecognized envelope, forwarded for idle
// tracking (speech_started, speech_stopped and similar markers).
type ActivityEvent struct {
	Type string
}

func (ActivityEvent) streamEventType() string { return "activity" }
