// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/models"
)

// API is the backend surface used by the rest of the process. Client and
// CircuitBreakerClient both implement it.
type API interface {
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	CountUnread(ctx context.Context, conversationID, senderID string, since time.Time) (int, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	Invoke(ctx context.Context, name string, payload interface{}) (json.RawMessage, error)
}

var _ API = (*Client)(nil)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Client performs raw REST and RPC requests.
type Client struct {
	baseURL    string
	anonKey    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. token is the session access token;
// when empty the anon key is used as bearer.
func NewClient(baseURL, anonKey, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		anonKey: anonKey,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListConversations returns every conversation the user participates in,
// most recently updated first.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("or", fmt.Sprintf("(user1_id.eq.%s,user2_id.eq.%s)", userID, userID))
	q.Set("order", "updated_at.desc")

	var out []models.Conversation
	if err := c.getJSON(ctx, "list_conversations", "/rest/v1/conversations", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountUnread counts messages in conversationID sent by senderID after since.
func (c *Client) CountUnread(ctx context.Context, conversationID, senderID string, since time.Time) (int, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("conversation_id", "eq."+conversationID)
	q.Set("sender_id", "eq."+senderID)
	q.Set("created_at", "gt."+since.UTC().Format(time.RFC3339Nano))

	var rows []struct {
		ID string `json:"id"`
	}
	if err := c.getJSON(ctx, "count_unread", "/rest/v1/messages", q, &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// GetProfile returns the profile of userID.
func (c *Client) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+userID)

	var rows []models.Profile
	if err := c.getJSON(ctx, "get_profile", "/rest/v1/profiles", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile %s: %w", userID, apperrors.ErrNotFound)
	}
	return &rows[0], nil
}

// Invoke calls a mutation procedure and returns its raw response body.
func (c *Client) Invoke(ctx context.Context, name string, payload interface{}) (json.RawMessage, error) {
	op := "rpc " + name
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Validation(op, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/functions/v1/"+url.PathEscape(name), bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Validation(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(data), nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return apperrors.Validation(op, err)
	}
	data, err := c.do(op, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Network(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if bearer := c.bearer(); bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Network(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Network(op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, statusError(op, resp.StatusCode, data)
}

func (c *Client) bearer() string {
	if c.token != "" {
		return c.token
	}
	return c.anonKey
}

// statusError maps a non-2xx response to a categorized error.
func statusError(op string, status int, body []byte) error {
	msg := errorMessage(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.Security(op, fmt.Errorf("status %d: %s: %w", status, msg, apperrors.ErrUnauthorized))
	case status == http.StatusNotFound:
		return apperrors.Validation(op, fmt.Errorf("status %d: %s: %w", status, msg, apperrors.ErrNotFound))
	case status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout:
		return apperrors.Validation(op, fmt.Errorf("status %d: %s", status, msg))
	default:
		return apperrors.Network(op, fmt.Errorf("status %d: %s", status, msg))
	}
}

// errorMessage extracts {"error"} or {"message"} from an error body, falling
// back to the truncated raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	if s == "" {
		s = "empty response"
	}
	return s
}
