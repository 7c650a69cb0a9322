package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"parley/internal/domain"
	"parley/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active realtime session")
	ErrSessionActive   = errors.New("a realtime session is already active")
	ErrWrongMode       = errors.New("operation does not apply to the current mode")
)

// Config controls conversation session behavior.
type Config struct {
	Audio             ports.AudioConfig
	FinalizeGrace     time.Duration
	IdleTimeout       time.Duration
	IdleCheckInterval time.Duration
	AutoSpeak         bool
	TranslateTimeout  time.Duration
}

// ConversationController is the realtime session state machine. It owns the
// conversation log, the single active session, turn lifecycle, and the
// idle/finalize timers. All collaborators are injected; all log and session
// mutations are serialized through the controller mutex.
type ConversationController struct {
	audio      ports.AudioCapture
	dialer     ports.RealtimeDialer
	tokens     ports.TokenSource
	translator ports.Translator
	speaker    ports.Speaker
	events     ports.EventSink
	logger     *log.Logger
	cfg        Config

	mu           sync.Mutex
	mode         domain.Mode
	langs        domain.LanguagePair
	autoSpeak    bool
	conversation *domain.Log
	current      *activeSession
}

func NewConversationController(
	audio ports.AudioCapture,
	dialer ports.RealtimeDialer,
	tokens ports.TokenSource,
	translator ports.Translator,
	speaker ports.Speaker,
	events ports.EventSink,
	logger *log.Logger,
	cfg Config,
) *ConversationController {
	if cfg.FinalizeGrace <= 0 {
		cfg.FinalizeGrace = 3 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	if cfg.IdleCheckInterval <= 0 {
		cfg.IdleCheckInterval = time.Second
	}
	if cfg.TranslateTimeout <= 0 {
		cfg.TranslateTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ConversationController{
		audio:        audio,
		dialer:       dialer,
		tokens:       tokens,
		translator:   translator,
		speaker:      speaker,
		events:       events,
		logger:       logger,
		cfg:          cfg,
		mode:         domain.ModeTurnLeftRight,
		langs:        domain.LanguagePair{Left: domain.LanguageByCode("zh"), Right: domain.LanguageByCode("en")},
		autoSpeak:    cfg.AutoSpeak,
		conversation: domain.NewLog(),
	}
}

// Mode returns the active conversation mode.
func (c *ConversationController) Mode() domain.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches the conversation mode. Rejected while a session is live.
func (c *ConversationController) SetMode(mode domain.Mode) error {
	switch mode {
	case domain.ModeTurnLeftRight, domain.ModeTurnSingle, domain.ModeFreeTalk:
	default:
		return fmt.Errorf("unknown conversation mode %q", mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return ErrSessionActive
	}
	c.mode = mode
	return nil
}

// Languages returns the current language pair.
func (c *ConversationController) Languages() domain.LanguagePair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.langs
}

// SetLanguages selects the conversation languages by code.
func (c *ConversationController) SetLanguages(leftCode, rightCode string) {
	c.mu.Lock()
	c.langs = domain.LanguagePair{
		Left:  domain.LanguageByCode(leftCode),
		Right: domain.LanguageByCode(rightCode),
	}
	c.mu.Unlock()
}

// SwapLanguages exchanges the two sides' languages.
func (c *ConversationController) SwapLanguages() domain.LanguagePair {
	c.mu.Lock()
	c.langs = c.langs.Swapped()
	langs := c.langs
	c.mu.Unlock()
	return langs
}

// SetAutoSpeak toggles automatic playback of translations.
func (c *ConversationController) SetAutoSpeak(enabled bool) {
	c.mu.Lock()
	c.autoSpeak = enabled
	c.mu.Unlock()
}

// Conversation returns a snapshot of the conversation log for rendering.
func (c *ConversationController) Conversation() []domain.Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation.Snapshot()
}

// Active reports whether a session is currently live.
func (c *ConversationController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// StartTurn begins a recording turn for the given side. Starting while a
// session is already active (either side) is rejected without side effects.
func (c *ConversationController) StartTurn(ctx context.Context, side domain.Side) error {
	c.mu.Lock()
	if c.mode == domain.ModeFreeTalk {
		c.mu.Unlock()
		return ErrWrongMode
	}
	if c.current != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	mode := c.mode
	langs := c.langs
	active := c.reserveSessionLocked(ctx, mode)
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateStarting, domain.SessionReasonTurnStarted)
	c.logger.Info("starting turn", "mode", mode, "side", side,
		"left", langs.Left.Code, "right", langs.Right.Code)

	if err := c.openSession(active, mode, langs); err != nil {
		return err
	}

	// The exchange must be in the log before any event is consumed, so an
	// early partial lands on it instead of lazily creating a second one.
	c.mu.Lock()
	ex := domain.NewExchange(side)
	c.conversation.Append(ex)
	active.activeExchangeID = ex.ID
	snap := c.conversation.Snapshot()
	c.mu.Unlock()

	c.startSessionLoops(active)

	c.events.ConversationUpdated(snap)
	c.events.SessionStateChanged(domain.SessionStateListening, domain.SessionReasonTurnStarted)
	return nil
}

// StopTurn stops capture and asks the server to flush and close. The session
// stays in the finalizing state until the final transcript arrives or the
// grace period forces a teardown.
func (c *ConversationController) StopTurn() error {
	c.mu.Lock()
	active := c.current
	if active == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	if active.mode == domain.ModeFreeTalk {
		c.mu.Unlock()
		return ErrWrongMode
	}
	if active.finalizing {
		c.mu.Unlock()
		return nil
	}
	active.finalizing = true
	audio, stream := active.audio, active.stream
	c.mu.Unlock()

	if audio != nil {
		_ = audio.Stop()
	}
	if stream != nil {
		// The server has no VAD signal in the turn modes, so buffered
		// audio must be committed before the finish.
		if err := stream.Commit(); err != nil {
			c.logger.Warn("audio commit failed", "error", err)
		}
		if err := stream.Finish(); err != nil {
			c.logger.Warn("session finish failed", "error", err)
		}
	}

	c.armFinalizeTimer(active)
	c.events.SessionStateChanged(domain.SessionStateFinalizing, domain.SessionReasonAwaitingFinal)
	return nil
}

// StartLive enables free-talk listening. The server segments utterances via
// voice activity detection; an idle supervisor finishes the session after
// the inactivity threshold.
func (c *ConversationController) StartLive(ctx context.Context) error {
	c.mu.Lock()
	if c.mode != domain.ModeFreeTalk {
		c.mu.Unlock()
		return ErrWrongMode
	}
	if c.current != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	langs := c.langs
	active := c.reserveSessionLocked(ctx, domain.ModeFreeTalk)
	active.lastActivity = time.Now()
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateStarting, domain.SessionReasonLiveStarted)
	c.logger.Info("starting free talk", "left", langs.Left.Code, "right", langs.Right.Code)

	if err := c.openSession(active, domain.ModeFreeTalk, langs); err != nil {
		return err
	}

	c.startSessionLoops(active)
	go c.superviseIdle(active)
	c.events.SessionStateChanged(domain.SessionStateListening, domain.SessionReasonLiveStarted)
	return nil
}

// StopLive disables free-talk listening and waits for the server to flush
// its VAD-buffered audio.
func (c *ConversationController) StopLive() error {
	c.mu.Lock()
	active := c.current
	if active == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	if active.mode != domain.ModeFreeTalk {
		c.mu.Unlock()
		return ErrWrongMode
	}
	c.mu.Unlock()

	c.finishLive(active, domain.SessionReasonAwaitingFinal)
	return nil
}

// SpeakExchange replays an exchange's translation through the speaker.
func (c *ConversationController) SpeakExchange(ctx context.Context, id string) error {
	c.mu.Lock()
	ex := c.conversation.Find(id)
	if ex == nil || ex.Translated == nil || *ex.Translated == "" ||
		*ex.Translated == domain.TranslationFailedPlaceholder {
		c.mu.Unlock()
		return fmt.Errorf("exchange %q has no translation to speak", id)
	}
	text := *ex.Translated
	target := c.langs.TargetFor(ex.Side).Code
	c.mu.Unlock()

	return c.speaker.Speak(ctx, text, target)
}

// Shutdown tears any live session down. Safe to call repeatedly.
func (c *ConversationController) Shutdown() {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()
	if active != nil {
		c.cleanup(active, domain.SessionReasonTransportClosed)
	}
}

// reserveSessionLocked publishes a placeholder session so concurrent start
// requests are rejected while token acquisition and dialing are in flight.
func (c *ConversationController) reserveSessionLocked(ctx context.Context, mode domain.Mode) *activeSession {
	sctx, cancel := context.WithCancel(ctx)
	active := &activeSession{
		ctx:        sctx,
		cancel:     cancel,
		mode:       mode,
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}
	c.current = active
	return active
}

// openSession resolves a token, dials the realtime endpoint, and starts
// audio capture. Any failure aborts the start cleanly: the placeholder is
// withdrawn and no partial exchange is left behind. The caller launches the
// session loops once its log state is seeded.
func (c *ConversationController) openSession(active *activeSession, mode domain.Mode, langs domain.LanguagePair) error {
	token, err := c.tokens.Token(active.ctx)
	if err != nil || strings.TrimSpace(token) == "" {
		if err == nil {
			err = errors.New("token source returned an empty token")
		}
		c.failStart(active, domain.ErrorCodeAuth, fmt.Errorf("cannot open realtime session: %w", err))
		return fmt.Errorf("token acquisition failed: %w", err)
	}

	stream, err := c.dialer.Dial(active.ctx, ports.RealtimeConfig{
		Token:     token,
		Mode:      mode,
		LeftLang:  langs.Left.Code,
		RightLang: langs.Right.Code,
	})
	if err != nil {
		c.failStart(active, domain.ErrorCodeTransport, err)
		return err
	}

	audioSession, err := c.audio.Start(active.ctx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		c.failStart(active, domain.ErrorCodeAudio, err)
		return err
	}

	c.mu.Lock()
	active.stream = stream
	active.audio = audioSession
	c.mu.Unlock()
	return nil
}

// startSessionLoops begins event consumption and audio forwarding. Events
// buffered by the transport before this point are preserved, not lost.
func (c *ConversationController) startSessionLoops(active *activeSession) {
	go c.consumeEvents(active)
	go pumpEncodedAudio(active.audio, active.stream, c.logger, active.audioDone)
}

func (c *ConversationController) failStart(active *activeSession, code domain.ErrorCode, err error) {
	c.mu.Lock()
	active.closed = true
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	active.cancel()
	c.logger.Error("session start failed", "error", err)
	c.events.SessionError(code, err.Error())
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonStartFailed)
}

// consumeEvents drains the transport's decoded events in wire order,
// handling each to completion before the next. When the stream ends with an
// unconsumed session still live, the drop is fatal.
func (c *ConversationController) consumeEvents(active *activeSession) {
	defer close(active.eventsDone)

	for event := range active.stream.Events() {
		c.handleEvent(active, event)
	}

	err := active.stream.Wait()

	c.mu.Lock()
	live := c.current == active && !active.closed
	c.mu.Unlock()
	if !live {
		return
	}

	if err != nil {
		c.logger.Error("realtime transport failed", "error", err)
		c.events.SessionError(domain.ErrorCodeTransport, err.Error())
	}
	c.cleanup(active, domain.SessionReasonTransportClosed)
}

func (c *ConversationController) handleEvent(active *activeSession, event domain.StreamEvent) {
	switch ev := event.(type) {
	case domain.PartialEvent:
		c.touchActivity(active)
		c.applyPartial(active, ev.Text)

	case domain.CompletedEvent:
		c.touchActivity(active)
		c.applyCompleted(active, ev)

	case domain.FinishedEvent:
		c.logger.Info("session finished by server")
		c.cleanup(active, domain.SessionReasonServerFinished)

	case domain.ErrorEvent:
		// Server-sent protocol errors are surfaced but do not close the
		// session on their own.
		c.logger.Error("realtime endpoint error", "message", ev.Message)
		c.events.SessionError(domain.ErrorCodeProtocol, ev.Message)

	case domain.ActivityEvent:
		if ev.Type == "input_audio_buffer.speech_started" {
			c.touchActivity(active)
		}
	}
}

// applyPartial updates the active exchange's live transcript in place. The
// first free-talk utterance arrives before any start intent, so an exchange
// is created lazily with a provisional side until completed corrects it.
func (c *ConversationController) applyPartial(active *activeSession, text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	ex := c.conversation.Find(active.activeExchangeID)
	if ex == nil {
		ex = domain.NewExchange(domain.SideLeft)
		c.conversation.Append(ex)
		active.activeExchangeID = ex.ID
	}
	ex.OriginalPartial = text
	snap := c.conversation.Snapshot()
	c.mu.Unlock()

	c.events.ConversationUpdated(snap)
}

func (c *ConversationController) applyCompleted(active *activeSession, ev domain.CompletedEvent) {
	if ev.Transcript == "" {
		// No-signal tick. During a free-talk finalize it means the server
		// has nothing more to send.
		c.mu.Lock()
		teardown := active.mode == domain.ModeFreeTalk && active.finalizing
		c.mu.Unlock()
		if teardown {
			c.cleanup(active, domain.SessionReasonServerFinished)
		}
		return
	}

	c.mu.Lock()
	// Language hints may be absent on older server builds; fall back to the
	// configured pair, oriented by the speaking side.
	source, target := ev.SourceLang, ev.TargetLang
	if source == "" {
		source = c.langs.SourceFor(ev.Side).Code
	}
	if target == "" {
		target = c.langs.TargetFor(ev.Side).Code
	}

	ex := c.conversation.Find(active.activeExchangeID)
	if ex == nil {
		ex = domain.NewExchange(ev.Side)
		c.conversation.Append(ex)
	}
	ex.Side = ev.Side
	ex.SetFinal(ev.Transcript)
	exchangeID := ex.ID

	mode := active.mode
	finalizing := active.finalizing
	if mode == domain.ModeFreeTalk {
		// The next utterance starts a fresh exchange.
		active.activeExchangeID = ""
	}
	snap := c.conversation.Snapshot()
	c.mu.Unlock()

	c.events.ConversationUpdated(snap)
	go c.translateAndSpeak(exchangeID, ev.Transcript, source, target, mode)

	if mode != domain.ModeFreeTalk {
		c.cleanup(active, domain.SessionReasonTurnCompleted)
	} else if finalizing {
		c.cleanup(active, domain.SessionReasonServerFinished)
	}
}

// translateAndSpeak runs after a final transcript is fixed. Failures store a
// placeholder on the exchange and are never retried.
func (c *ConversationController) translateAndSpeak(exchangeID, text, source, target string, mode domain.Mode) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.TranslateTimeout)
	defer cancel()

	translated, err := c.translator.Translate(ctx, text, source, target)

	c.mu.Lock()
	ex := c.conversation.Find(exchangeID)
	if ex == nil {
		c.mu.Unlock()
		return
	}
	var speak bool
	if err != nil {
		placeholder := domain.TranslationFailedPlaceholder
		ex.Translated = &placeholder
	} else {
		value := strings.TrimSpace(translated)
		ex.Translated = &value
		speak = c.autoSpeak && mode != domain.ModeFreeTalk && value != ""
	}
	snap := c.conversation.Snapshot()
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("translation failed", "source", source, "target", target, "error", err)
		c.events.SessionError(domain.ErrorCodeTranslation, err.Error())
	}
	c.events.ConversationUpdated(snap)

	if speak {
		if serr := c.speaker.Speak(ctx, strings.TrimSpace(translated), target); serr != nil {
			c.logger.Warn("speech playback failed", "error", serr)
		}
	}
}

// finishLive takes the live-toggle-off path: stop capture, finish without a
// commit (the server flushes its own VAD buffer), and wait out the grace
// window.
func (c *ConversationController) finishLive(active *activeSession, reason domain.SessionStateReason) {
	c.mu.Lock()
	if active.closed || active.finalizing {
		c.mu.Unlock()
		return
	}
	active.finalizing = true
	audio, stream := active.audio, active.stream
	c.mu.Unlock()

	if audio != nil {
		_ = audio.Stop()
	}
	if stream != nil {
		if err := stream.Finish(); err != nil {
			c.logger.Warn("session finish failed", "error", err)
		}
	}

	c.armFinalizeTimer(active)
	c.events.SessionStateChanged(domain.SessionStateFinalizing, reason)
}

// armFinalizeTimer forces a teardown if the server never confirms the close
// within the grace window.
func (c *ConversationController) armFinalizeTimer(active *activeSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if active.closed {
		return
	}
	active.finalizeTimer = time.AfterFunc(c.cfg.FinalizeGrace, func() {
		c.mu.Lock()
		expired := c.current == active && !active.closed && active.finalizing
		c.mu.Unlock()
		if !expired {
			return
		}
		c.logger.Warn("finalize grace expired, forcing disconnect")
		c.cleanup(active, domain.SessionReasonFinalizeTimeout)
	})
}

// superviseIdle tears a free-talk session down after the inactivity
// threshold. Recognized activity (speech start, partial or final
// transcripts) resets the countdown.
func (c *ConversationController) superviseIdle(active *activeSession) {
	ticker := time.NewTicker(c.cfg.IdleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-active.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			eligible := c.current == active && !active.closed && !active.finalizing
			idle := time.Since(active.lastActivity) >= c.cfg.IdleTimeout
			c.mu.Unlock()

			if !eligible {
				continue
			}
			if idle {
				c.logger.Info("free talk idle timeout, finishing session")
				c.finishLive(active, domain.SessionReasonIdleTimeout)
				return
			}
		}
	}
}

func (c *ConversationController) touchActivity(active *activeSession) {
	c.mu.Lock()
	active.lastActivity = time.Now()
	c.mu.Unlock()
}

// cleanup releases every session resource: capture, transport, timers and
// active references. Idempotent; safe to call from any goroutine.
func (c *ConversationController) cleanup(active *activeSession, reason domain.SessionStateReason) {
	c.mu.Lock()
	if active.closed {
		c.mu.Unlock()
		return
	}
	active.closed = true
	active.finalizing = false
	active.activeExchangeID = ""
	if active.finalizeTimer != nil {
		active.finalizeTimer.Stop()
	}
	if c.current == active {
		c.current = nil
	}
	audio, stream := active.audio, active.stream
	c.mu.Unlock()

	active.cancel()
	if audio != nil {
		_ = audio.Stop()
	}
	if stream != nil {
		_ = stream.Close()
	}

	c.logger.Info("session closed", "reason", reason)
	c.events.SessionStateChanged(domain.SessionStateIdle, reason)
}
