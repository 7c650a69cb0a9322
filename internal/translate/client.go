package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"parley/internal/ports"
)

// Client calls the stateless text translation endpoint.
type Client struct {
	baseURL string
	tokens  ports.TokenSource
	http    *http.Client
}

func NewClient(baseURL string, tokens ports.TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Stream     bool   `json:"stream"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

// Translate performs one translation call. Any non-2xx status is a hard
// failure for the call; the caller decides whether to record a placeholder.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("translation requires a bearer token: %w", err)
	}

	body, err := json.Marshal(translateRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Stream:     false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/translate/text", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("translation endpoint returned status %d", resp.StatusCode)
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode translation response: %w", err)
	}
	return strings.TrimSpace(decoded.Translation), nil
}
