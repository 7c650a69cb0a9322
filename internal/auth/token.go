package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrNoToken is returned when no bearer token can be produced. Callers must
// abort rather than proceed unauthenticated.
var ErrNoToken = errors.New("no bearer token available")

// StaticTokenSource returns the same pre-issued token for every request.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: strings.TrimSpace(token)}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// HTTPTokenSource exchanges credentials at a token endpoint and caches the
// result until shortly before expiry.
type HTTPTokenSource struct {
	url  string
	http *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewHTTPTokenSource(url string) *HTTPTokenSource {
	return &HTTPTokenSource{
		url:  strings.TrimSpace(url),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func (s *HTTPTokenSource) Token(ctx context.Context) (string, error) {
	if s.url == "" {
		return "", ErrNoToken
	}

	s.mu.Lock()
	if s.token != "" && time.Now().Before(s.expires) {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if strings.TrimSpace(decoded.Token) == "" {
		return "", ErrNoToken
	}

	ttl := time.Duration(decoded.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	s.mu.Lock()
	s.token = decoded.Token
	// Refresh a little early so in-flight requests never carry a token
	// that expires mid-call.
	s.expires = time.Now().Add(ttl - 30*time.Second)
	s.mu.Unlock()

	return decoded.Token, nil
}
