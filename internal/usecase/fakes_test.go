package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"time"

	"parley/internal/domain"
	"parley/internal/ports"
)

type fakeAudioSession struct {
	mu      sync.Mutex
	chunks  [][]byte
	stopped chan struct{}
	once    sync.Once
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{})}
}

func (s *fakeAudioSession) ReadFrame() (string, error) {
	s.mu.Lock()
	if len(s.chunks) > 0 {
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		s.mu.Unlock()
		return base64.StdEncoding.EncodeToString(chunk), nil
	}
	s.mu.Unlock()
	<-s.stopped
	return "", io.EOF
}

func (s *fakeAudioSession) Stop() error {
	s.once.Do(func() { close(s.stopped) })
	return nil
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	starts   int
}

func (c *fakeAudioCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	if c.err != nil {
		return nil, c.err
	}
	if len(c.sessions) == 0 {
		return newFakeAudioSession(), nil
	}
	session := c.sessions[0]
	c.sessions = c.sessions[1:]
	return session, nil
}

type fakeStream struct {
	mu       sync.Mutex
	events   chan domain.StreamEvent
	done     chan struct{}
	once     sync.Once
	err      error
	sendErr  error
	sent     []string
	commits  int
	finishes int
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan domain.StreamEvent, 16),
		done:   make(chan struct{}),
	}
}

func (s *fakeStream) SendAudio(b64 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, b64)
	return nil
}

func (s *fakeStream) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return nil
}

func (s *fakeStream) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishes++
	return nil
}

func (s *fakeStream) Events() <-chan domain.StreamEvent { return s.events }

func (s *fakeStream) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		close(s.events)
		close(s.done)
	})
	return nil
}

func (s *fakeStream) emit(event domain.StreamEvent) { s.events <- event }

// fail simulates a dropped connection: the receive loop ends with an error.
func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.Close()
}

func (s *fakeStream) sentFrames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *fakeStream) counts() (commits, finishes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits, s.finishes
}

type fakeDialer struct {
	mu       sync.Mutex
	sessions []ports.RealtimeSession
	err      error
	configs  []ports.RealtimeConfig
}

func (d *fakeDialer) Dial(ctx context.Context, cfg ports.RealtimeConfig) (ports.RealtimeSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configs = append(d.configs, cfg)
	if d.err != nil {
		return nil, d.err
	}
	if len(d.sessions) == 0 {
		return newFakeStream(), nil
	}
	session := d.sessions[0]
	d.sessions = d.sessions[1:]
	return session, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.configs)
}

type fakeTokens struct {
	token string
	err   error
}

func (t *fakeTokens) Token(ctx context.Context) (string, error) {
	return t.token, t.err
}

type translation struct {
	text, source, target string
}

type fakeTranslator struct {
	mu     sync.Mutex
	result string
	err    error
	calls  []translation
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, translation{text: text, source: sourceLang, target: targetLang})
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTranslator) lastCall() translation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return translation{}
	}
	return f.calls[len(f.calls)-1]
}

type spoken struct {
	text, lang string
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []spoken
}

func (f *fakeSpeaker) Speak(ctx context.Context, text, lang string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, spoken{text: text, lang: lang})
	return nil
}

func (f *fakeSpeaker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spoken)
}

type stateChange struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type sinkError struct {
	code   domain.ErrorCode
	detail string
}

type recordingSink struct {
	mu        sync.Mutex
	states    []stateChange
	snapshots [][]domain.Exchange
	errors    []sinkError
}

func (s *recordingSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, stateChange{state: state, reason: reason})
}

func (s *recordingSink) ConversationUpdated(entries []domain.Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, entries)
}

func (s *recordingSink) SessionError(code domain.ErrorCode, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, sinkError{code: code, detail: detail})
}

func (s *recordingSink) hasReason(reason domain.SessionStateReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st.reason == reason {
			return true
		}
	}
	return false
}

func (s *recordingSink) countReason(reason domain.SessionStateReason) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.states {
		if st.reason == reason {
			n++
		}
	}
	return n
}

func (s *recordingSink) hasErrorCode(code domain.ErrorCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.errors {
		if e.code == code {
			return true
		}
	}
	return false
}

var errCondition = errors.New("condition not met in time")

// waitFor polls cond until it holds or the deadline expires.
func waitFor(timeout time.Duration, cond func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	if cond() {
		return nil
	}
	return errCondition
}
