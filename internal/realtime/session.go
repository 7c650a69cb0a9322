package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"parley/internal/domain"
	"parley/internal/ports"
)

// VADConfig is the server-side voice activity detection block sent for
// FreeTalk sessions.
type VADConfig struct {
	Threshold         float64
	PrefixPaddingMS   int
	SilenceDurationMS int
}

// Config controls the realtime websocket endpoint.
type Config struct {
	URL   string
	Model string
	VAD   VADConfig
}

// Dialer opens realtime sessions against the speech endpoint.
type Dialer struct {
	cfg    Config
	logger *log.Logger
}

func NewDialer(cfg Config, logger *log.Logger) *Dialer {
	if cfg.Model == "" {
		cfg.Model = "qwen3-asr-flash-realtime"
	}
	if cfg.VAD.Threshold <= 0 {
		cfg.VAD.Threshold = 0.5
	}
	if cfg.VAD.PrefixPaddingMS <= 0 {
		cfg.VAD.PrefixPaddingMS = 300
	}
	if cfg.VAD.SilenceDurationMS <= 0 {
		cfg.VAD.SilenceDurationMS = 1000
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dialer{cfg: cfg, logger: logger}
}

// Dial opens a new connection, sends the opening session.update envelope and
// starts the receive loop. The caller owns the at-most-one-session invariant.
func (d *Dialer) Dial(ctx context.Context, cfg ports.RealtimeConfig) (ports.RealtimeSession, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("realtime connection requires a bearer token")
	}

	wsURL, err := buildSessionURL(d.cfg.URL, cfg.Token)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to realtime endpoint: %w", err)
	}

	s := &session{
		conn:    conn,
		logger:  d.logger,
		events:  make(chan domain.StreamEvent, 64),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}

	if err := s.writeJSON(newSessionUpdate(d.cfg, cfg)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send session.update: %w", err)
	}

	go s.readLoop()
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	d.logger.Info("realtime session opened",
		"mode", cfg.Mode, "left", cfg.LeftLang, "right", cfg.RightLang)
	return s, nil
}

type session struct {
	conn   *websocket.Conn
	logger *log.Logger

	events  chan domain.StreamEvent
	done    chan struct{}
	closing chan struct{}

	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (s *session) SendAudio(b64 string) error {
	if b64 == "" {
		return nil
	}
	return s.writeJSON(audioAppend{Type: "input_audio_buffer.append", Audio: b64})
}

func (s *session) Commit() error {
	return s.writeJSON(control{Type: "input_audio_buffer.commit"})
}

func (s *session) Finish() error {
	return s.writeJSON(control{Type: "session.finish"})
}

func (s *session) Events() <-chan domain.StreamEvent {
	return s.events
}

func (s *session) Wait() error {
	<-s.done
	return s.loopErr()
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
	<-s.done
	return s.loopErr()
}

func (s *session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *session) loopErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *session) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	if errors.Is(err, net.ErrClosed) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// readLoop re-arms after every successful receive and exits on the first
// failure. It never reconnects; a drop is surfaced to the consumer via Wait.
func (s *session) readLoop() {
	defer func() {
		close(s.events)
		close(s.done)
		_ = s.conn.Close()
	}()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("realtime receive failed: %w", err))
			return
		}

		event, ok := decodeEvent(payload)
		if !ok {
			// Malformed envelope without a type discriminator; dropped.
			continue
		}
		select {
		case s.events <- event:
		case <-s.closing:
			return
		}
	}
}

// buildSessionURL normalizes the endpoint scheme and attaches a fresh bearer
// token as a query parameter.
func buildSessionURL(endpoint, token string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if strings.HasPrefix(endpoint, "https://") {
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	} else if strings.HasPrefix(endpoint, "http://") {
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid realtime endpoint URL: %w", err)
	}

	query := u.Query()
	query.Set("token", token)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// decodeEvent classifies one inbound wire envelope. Envelopes without a type
// are reported as not-ok and dropped by the caller.
func decodeEvent(payload []byte) (domain.StreamEvent, bool) {
	var envelope struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		Stash        string `json:"stash"`
		Transcript   string `json:"transcript"`
		UISide       string `json:"ui_side"`
		UISourceLang string `json:"ui_source_lang"`
		UITargetLang string `json:"ui_target_lang"`
		Error        struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Type == "" {
		return nil, false
	}

	switch envelope.Type {
	case "conversation.item.input_audio_transcription.text":
		// The stash field holds the recognized-but-unconfirmed tail.
		return domain.PartialEvent{Text: envelope.Text + envelope.Stash}, true
	case "conversation.item.input_audio_transcription.completed":
		return domain.CompletedEvent{
			Transcript: envelope.Transcript,
			Side:       domain.SideFromWire(envelope.UISide),
			SourceLang: envelope.UISourceLang,
			TargetLang: envelope.UITargetLang,
		}, true
	case "session.finished":
		return domain.FinishedEvent{}, true
	case "error":
		message := strings.TrimSpace(envelope.Error.Message)
		if message == "" {
			message = "realtime endpoint returned an unknown error"
		}
		return domain.ErrorEvent{Message: message}, true
	default:
		// Speech start/stop markers and anything newer, kept for idle
		// tracking.
		return domain.ActivityEvent{Type: envelope.Type}, true
	}
}
