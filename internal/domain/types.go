package domain

// Side identifies which conversational party produced an exchange.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// SideFromWire maps the server's ui_side value onto a Side. Anything other
// than "right" resolves to the left party.
func SideFromWire(value string) Side {
	if value == "right" {
		return SideRight
	}
	return SideLeft
}

// Mode selects how turns are delimited during a conversation. The string
// values are the mode names carried in the session.update envelope.
type Mode string

const (
	// ModeTurnLeftRight gives each party a dedicated hold-to-talk button.
	ModeTurnLeftRight Mode = "dual_button"
	// ModeTurnSingle uses one shared button; the server attributes sides.
	ModeTurnSingle Mode = "single_button"
	// ModeFreeTalk relies on server-side voice activity detection.
	ModeFreeTalk Mode = "live"
)

// SessionState models the realtime session lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateStarting   SessionState = "starting"
	SessionStateListening  SessionState = "listening"
	SessionStateFinalizing SessionState = "finalizing"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady           SessionStateReason = "ready"
	SessionReasonTurnStarted     SessionStateReason = "turn_started"
	SessionReasonLiveStarted     SessionStateReason = "live_started"
	SessionReasonAwaitingFinal   SessionStateReason = "awaiting_final"
	SessionReasonTurnCompleted   SessionStateReason = "turn_completed"
	SessionReasonServerFinished  SessionStateReason = "server_finished"
	SessionReasonFinalizeTimeout SessionStateReason = "finalize_timeout"
	SessionReasonIdleTimeout     SessionStateReason = "idle_timeout"
	SessionReasonStartFailed     SessionStateReason = "start_failed"
	SessionReasonTransportClosed SessionStateReason = "transport_closed"
)

// ErrorCode identifies non-fatal and fatal session errors.
type ErrorCode string

const (
	ErrorCodeAuth        ErrorCode = "auth"
	ErrorCodeTransport   ErrorCode = "transport"
	ErrorCodeProtocol    ErrorCode = "protocol"
	ErrorCodeTranslation ErrorCode = "translation"
	ErrorCodeAudio       ErrorCode = "audio"
	ErrorCodeStartup     ErrorCode = "startup"
)
