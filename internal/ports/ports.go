package ports

import (
	"context"

	"parley/internal/domain"
)

// AudioConfig describes how the microphone should be captured and framed.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	// ChunkSize is the number of raw PCM bytes per emitted frame.
	ChunkSize int
}

// AudioSession is a live capture session emitting microphone audio in the
// realtime transport's frame format: chunks of little-endian 16-bit PCM,
// base64 encoded.
type AudioSession interface {
	// ReadFrame blocks until captured audio is available and returns the
	// next encoded frame. It returns io.EOF once the session is stopped
	// and drained.
	ReadFrame() (string, error)
	// Stop ends capture. Idempotent.
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// RealtimeConfig describes one realtime session to open. Token is the
// bearer token carried on the connection URL, refreshed on every connect.
type RealtimeConfig struct {
	Token     string
	Mode      domain.Mode
	LeftLang  string
	RightLang string
}

// RealtimeSession is an active connection to the speech recognition and
// translation endpoint.
type RealtimeSession interface {
	// SendAudio transmits one base64-encoded PCM frame, best effort.
	SendAudio(b64 string) error
	// Commit flushes server-side buffered audio; required before Finish in
	// the manually controlled turn modes.
	Commit() error
	// Finish asks the server to emit any remaining final transcript and
	// then end the session.
	Finish() error
	// Events yields decoded inbound events in wire order. The channel is
	// closed when the receive loop ends.
	Events() <-chan domain.StreamEvent
	// Wait blocks until the receive loop ends and reports its failure, if
	// any. A server-initiated or explicit close returns nil.
	Wait() error
	// Close tears the connection down. Idempotent.
	Close() error
}

// RealtimeDialer opens realtime sessions. Callers enforce the at-most-one
// live session invariant.
type RealtimeDialer interface {
	Dial(ctx context.Context, cfg RealtimeConfig) (RealtimeSession, error)
}

// Translator performs one-shot text translation.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Speaker plays translated text aloud. Failures are logged, never fatal.
type Speaker interface {
	Speak(ctx context.Context, text, lang string) error
}

// TokenSource supplies a bearer token on demand. An error (or empty token)
// means the caller must abort rather than proceed unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// EventSink pushes conversation state to the UI layer.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	ConversationUpdated(entries []domain.Exchange)
	SessionError(code domain.ErrorCode, detail string)
}
