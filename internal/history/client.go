package history

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

// Conversation is one stored conversation header.
type Conversation struct {
	ID            string     `json:"id"`
	Title         *string    `json:"title"`
	LangLeft      string     `json:"langLeft"`
	LangRight     string     `json:"langRight"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	IsArchived    bool       `json:"isArchived"`
}

// Message is one stored conversation message.
type Message struct {
	Side           string  `json:"side"`
	SourceLang     string  `json:"sourceLang"`
	TargetLang     string  `json:"targetLang"`
	OriginalText   string  `json:"originalText"`
	TranslatedText *string `json:"translatedText"`
}

// Client talks to the authenticated conversation history endpoints. It backs
// the history screen only; the realtime session flow never calls it.
type Client struct {
	baseURL string
	tokens  ports.TokenSource
	http    *http.Client
}

func NewClient(baseURL string, tokens ports.TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateConversation registers a new conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context, langLeft, langRight string, title *string) (string, error) {
	body := map[string]any{
		"langLeft":  langLeft,
		"langRight": langRight,
		"title":     title,
	}

	var decoded struct {
		ConversationID string `json:"conversationId"`
	}
	if err := c.post(ctx, "/api/v1/history/conversations", body, &decoded); err != nil {
		return "", err
	}
	if decoded.ConversationID == "" {
		return "", fmt.Errorf("history endpoint returned no conversation id")
	}
	return decoded.ConversationID, nil
}

// SaveMessage appends a message to a stored conversation.
func (c *Client) SaveMessage(ctx context.Context, conversationID string, msg Message) error {
	path := fmt.Sprintf("/api/v1/history/conversations/%s/messages", conversationID)
	return c.post(ctx, path, msg, nil)
}

// ListConversations fetches the caller's stored conversations.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/history/conversations", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("history endpoint returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return decoded.Conversations, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("history endpoint returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("history access requires a bearer token: %w", err)
	}

	var req *http.Request
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}
