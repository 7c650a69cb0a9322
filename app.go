package main

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"parley/internal/bootstrap"
	"parley/internal/config"
	"parley/internal/domain"
	"parley/internal/history"
	"parley/internal/usecase"
)

const (
	eventSession      = "parley:session"
	eventConversation = "parley:conversation"
	eventError        = "parley:error"
)

// App is the Wails application root. It adapts user intent from the frontend
// into controller calls and observes the conversation log on the way back.
type App struct {
	ctx    context.Context
	logger *log.Logger

	controller *usecase.ConversationController
	historyAPI *history.Client
	cfg        config.Config

	holdMu        sync.Mutex
	holdingLeft   bool
	holdingRight  bool
	holdingSingle bool
	liveActive    bool
}

func NewApp(logger *log.Logger) *App {
	if logger == nil {
		logger = log.Default()
	}
	return &App{logger: logger}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services := bootstrap.Build(a, a.logger)
	a.cfg = services.Config
	a.controller = services.Controller
	a.historyAPI = services.History

	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(ctx context.Context) {
	if a.controller != nil {
		a.controller.Shutdown()
	}
}

// PressLeftChanged handles the left hold-to-talk button.
func (a *App) PressLeftChanged(pressing bool) {
	a.pressChanged(domain.SideLeft, pressing, &a.holdingLeft)
}

// PressRightChanged handles the right hold-to-talk button.
func (a *App) PressRightChanged(pressing bool) {
	a.pressChanged(domain.SideRight, pressing, &a.holdingRight)
}

// PressSingleChanged handles the shared single-button mode; the recording is
// provisionally attributed to the left side until the server corrects it.
func (a *App) PressSingleChanged(pressing bool) {
	a.pressChanged(domain.SideLeft, pressing, &a.holdingSingle)
}

func (a *App) pressChanged(side domain.Side, pressing bool, holding *bool) {
	if a.controller == nil {
		return
	}

	a.holdMu.Lock()
	*holding = pressing
	a.holdMu.Unlock()

	if pressing {
		if err := a.controller.StartTurn(a.ctx, side); err != nil &&
			!errors.Is(err, usecase.ErrSessionActive) {
			a.logger.Error("turn start rejected", "side", side, "error", err)
		}
		return
	}

	if err := a.controller.StopTurn(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		a.logger.Error("turn stop failed", "error", err)
	}
}

// ToggleLive flips free-talk listening and returns the new live state.
func (a *App) ToggleLive() bool {
	if a.controller == nil {
		return false
	}

	a.holdMu.Lock()
	wasActive := a.liveActive
	a.liveActive = !wasActive
	a.holdMu.Unlock()

	if wasActive {
		if err := a.controller.StopLive(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
			a.logger.Error("live stop failed", "error", err)
		}
		return false
	}

	if err := a.controller.StartLive(a.ctx); err != nil {
		a.holdMu.Lock()
		a.liveActive = false
		a.holdMu.Unlock()
		return false
	}
	return true
}

// SetMode switches conversation mode; rejected while a session is live.
func (a *App) SetMode(mode string) error {
	if a.controller == nil {
		return errors.New("application is not initialized")
	}
	return a.controller.SetMode(domain.Mode(mode))
}

// SetLanguages selects the conversation languages by code.
func (a *App) SetLanguages(left, right string) {
	if a.controller == nil {
		return
	}
	a.controller.SetLanguages(left, right)
}

// SwapLanguages exchanges the two sides' languages and returns the new pair.
func (a *App) SwapLanguages() domain.LanguagePair {
	if a.controller == nil {
		return domain.LanguagePair{}
	}
	return a.controller.SwapLanguages()
}

// SetAutoSpeak toggles automatic playback of translations.
func (a *App) SetAutoSpeak(enabled bool) {
	if a.controller == nil {
		return
	}
	a.controller.SetAutoSpeak(enabled)
}

// SupportedLanguages returns the language table for the pickers.
func (a *App) SupportedLanguages() []domain.Language {
	return domain.SupportedLanguages
}

// GetConversation returns the current conversation log snapshot.
func (a *App) GetConversation() []domain.Exchange {
	if a.controller == nil {
		return nil
	}
	return a.controller.Conversation()
}

// SpeakExchange replays a finished exchange's translation.
func (a *App) SpeakExchange(id string) error {
	if a.controller == nil {
		return errors.New("application is not initialized")
	}
	return a.controller.SpeakExchange(a.ctx, id)
}

// ListConversations fetches stored conversation history.
func (a *App) ListConversations() ([]history.Conversation, error) {
	if a.historyAPI == nil {
		return nil, errors.New("application is not initialized")
	}
	return a.historyAPI.ListConversations(a.ctx)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	return map[string]string{
		"model":      a.cfg.Realtime.Model,
		"httpBase":   a.cfg.Endpoints.HTTPBaseURL,
		"realtime":   a.cfg.Endpoints.RealtimeURL,
		"audioInput": a.cfg.Audio.InputDevice,
		"langLeft":   a.cfg.Languages.Left,
		"langRight":  a.cfg.Languages.Right,
	}
}

// SessionStateChanged emits session lifecycle updates to the frontend.
// Reaching idle also clears every holding flag, so a failed or torn-down
// session leaves the buttons in their pre-start state.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.holdMu.Lock()
	if state == domain.SessionStateIdle {
		a.holdingLeft = false
		a.holdingRight = false
		a.holdingSingle = false
		a.liveActive = false
	}
	payload := map[string]any{
		"state":         string(state),
		"reason":        string(reason),
		"message":       sessionReasonMessage(reason),
		"holdingLeft":   a.holdingLeft,
		"holdingRight":  a.holdingRight,
		"holdingSingle": a.holdingSingle,
		"liveActive":    a.liveActive,
	}
	a.holdMu.Unlock()

	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, payload)
}

// ConversationUpdated emits the refreshed conversation log.
func (a *App) ConversationUpdated(entries []domain.Exchange) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventConversation, entries)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonTurnStarted:
		return "Listening..."
	case domain.SessionReasonLiveStarted:
		return "Free talk on"
	case domain.SessionReasonAwaitingFinal:
		return "Finishing up..."
	case domain.SessionReasonTurnCompleted:
		return "Turn completed"
	case domain.SessionReasonServerFinished:
		return "Session finished"
	case domain.SessionReasonFinalizeTimeout:
		return "Server did not respond; session closed"
	case domain.SessionReasonIdleTimeout:
		return "Free talk stopped after inactivity"
	case domain.SessionReasonStartFailed:
		return "Could not start the session"
	case domain.SessionReasonTransportClosed:
		return "Connection closed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeAuth:
		return "Sign-in required"
	case domain.ErrorCodeTransport:
		return "Connection problem"
	case domain.ErrorCodeProtocol:
		return "Recognition service error"
	case domain.ErrorCodeTranslation:
		return "Translation failed"
	case domain.ErrorCodeAudio:
		return "Microphone problem"
	case domain.ErrorCodeStartup:
		return "Startup failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
