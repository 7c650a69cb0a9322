package usecase

import (
	"context"
	"time"

	"parley/internal/domain"
	"parley/internal/ports"
)

// activeSession tracks one live turn or free-talk run. At most one exists at
// a time; all fields are guarded by the controller mutex unless set once
// before the session is published.
type activeSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	mode   domain.Mode
	audio  ports.AudioSession
	stream ports.RealtimeSession

	activeExchangeID string

	finalizing    bool
	finalizeTimer *time.Timer
	lastActivity  time.Time

	closed bool

	eventsDone chan struct{}
	audioDone  chan struct{}
}
