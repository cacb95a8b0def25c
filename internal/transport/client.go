// Package transport talks to the chat backend: the REST client behind the
// view's collaborator interfaces and the real-time event feeds.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/chatview"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// APIError represents a non-2xx response or an ok:false body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("chat api error: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("chat api error: %s (%d)", e.Code, e.Status)
	}
	if e.Message != "" {
		return fmt.Sprintf("chat api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("chat api error (%d)", e.Status)
}

type envelope struct {
	OK      *bool  `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client implements the chat view collaborators over HTTP+JSON.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

var (
	_ chatview.HistoryAPI   = (*Client)(nil)
	_ chatview.SendAPI      = (*Client)(nil)
	_ chatview.MutationAPI  = (*Client)(nil)
	_ chatview.ReceiptAPI   = (*Client)(nil)
	_ chatview.DirectoryAPI = (*Client)(nil)
	_ chatview.SettingsAPI  = (*Client)(nil)
)

// NewClient constructs a client for the API at baseURL.
func NewClient(baseURL, token string) (*Client, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: normalized,
		token:   token,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		now: time.Now,
	}, nil
}

// SetTimeout bounds every request. Non-positive values keep the current timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
}

// NormalizeBaseURL trims a base URL and ensures it has a scheme.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("api url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("api url must include scheme (https://)")
	}
	return strings.TrimRight(value, "/"), nil
}

// Collaborators returns the client wired into every REST collaborator slot.
func (c *Client) Collaborators() chatview.Collaborators {
	return chatview.Collaborators{
		History:   c,
		Send:      c,
		Mutations: c,
		Receipts:  c,
		Directory: c,
		Settings:  c,
	}
}

type pageResponse struct {
	Items      []types.Message `json:"items"`
	Members    []types.Member  `json:"members"`
	NextCursor string          `json:"nextCursor"`
}

// LoadMessages fetches one page of a conversation. An empty cursor asks for the newest page.
func (c *Client) LoadMessages(ctx context.Context, conversationID, cursor string) (types.Page, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var resp pageResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/conversations/"+url.PathEscape(conversationID)+"/messages", query, nil, &resp); err != nil {
		return types.Page{}, err
	}
	return types.Page{Items: resp.Items, Members: resp.Members, NextCursor: resp.NextCursor}, nil
}

type sendBody struct {
	ConversationID   string             `json:"conversationId"`
	Body             string             `json:"body"`
	Attachments      []types.Attachment `json:"attachments,omitempty"`
	ClientMessageID  string             `json:"clientMessageId"`
	ReplyToMessageID string             `json:"replyToMessageId,omitempty"`
}

type messageResponse struct {
	Message *types.Message `json:"message"`
}

// SendMessage posts a new message and returns the persisted copy.
func (c *Client) SendMessage(ctx context.Context, req chatview.SendRequest) (types.Message, error) {
	body := sendBody{
		ConversationID:   req.ConversationID,
		Body:             req.Body,
		Attachments:      req.Attachments,
		ClientMessageID:  req.CorrelationToken,
		ReplyToMessageID: req.ReplyToMessageID,
	}
	var resp messageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/messages", nil, body, &resp); err != nil {
		return types.Message{}, err
	}
	if resp.Message == nil {
		return types.Message{}, fmt.Errorf("send: response without message")
	}
	return *resp.Message, nil
}

// EditMessage replaces the body of a message.
func (c *Client) EditMessage(ctx context.Context, messageID, body string) (types.Message, error) {
	var resp messageResponse
	payload := map[string]string{"body": body}
	if err := c.doJSON(ctx, http.MethodPatch, messagePath(messageID), nil, payload, &resp); err != nil {
		return types.Message{}, err
	}
	if resp.Message == nil {
		return types.Message{}, fmt.Errorf("edit: response without message")
	}
	return *resp.Message, nil
}

// DeleteMessage soft-deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.doJSON(ctx, http.MethodDelete, messagePath(messageID), nil, nil, nil)
}

type reactionsResponse struct {
	Reactions []types.Reaction `json:"reactions"`
}

// ToggleReaction adds or removes the viewer's reaction.
func (c *Client) ToggleReaction(ctx context.Context, messageID, label string, remove bool) ([]types.Reaction, error) {
	method := http.MethodPost
	if remove {
		method = http.MethodDelete
	}
	var resp reactionsResponse
	payload := map[string]string{"emoji": label}
	if err := c.doJSON(ctx, method, messagePath(messageID)+"/reactions", nil, payload, &resp); err != nil {
		return nil, err
	}
	return resp.Reactions, nil
}

// SetPin pins or unpins a message.
func (c *Client) SetPin(ctx context.Context, messageID string, pinned bool) error {
	method := http.MethodPost
	if !pinned {
		method = http.MethodDelete
	}
	return c.doJSON(ctx, method, messagePath(messageID)+"/pins", nil, nil, nil)
}

// MarkRead reports the newest message the viewer has seen.
func (c *Client) MarkRead(ctx context.Context, conversationID, lastReadMessageID string) error {
	payload := map[string]string{"lastReadMessageId": lastReadMessageID}
	return c.doJSON(ctx, http.MethodPost, conversationPath(conversationID)+"/read", nil, payload, nil)
}

type conversationResponse struct {
	Conversation *types.Conversation `json:"conversation"`
}

// Members returns the member profiles of a conversation.
func (c *Client) Members(ctx context.Context, conversationID string) ([]types.Member, error) {
	var resp conversationResponse
	if err := c.doJSON(ctx, http.MethodGet, conversationPath(conversationID), nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Conversation == nil {
		return nil, nil
	}
	return resp.Conversation.Members, nil
}

type notificationsBody struct {
	NotifLevel types.NotifLevel `json:"notifLevel"`
	MutedUntil *time.Time       `json:"mutedUntil"`
}

// UpdateNotifications changes the viewer's notification level for a conversation.
func (c *Client) UpdateNotifications(ctx context.Context, conversationID string, level types.NotifLevel, mutedUntil *time.Time) error {
	body := notificationsBody{NotifLevel: level, MutedUntil: mutedUntil}
	return c.doJSON(ctx, http.MethodPatch, conversationPath(conversationID)+"/notifications", nil, body, nil)
}

func messagePath(messageID string) string {
	return "/api/chat/messages/" + url.PathEscape(messageID)
}

func conversationPath(conversationID string) string {
	return "/api/chat/conversations/" + url.PathEscape(conversationID)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, respBody any) error {
	endpoint, err := c.buildURL(path, query)
	if err != nil {
		return err
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id, err := core.NewRequestID(c.now()); err == nil {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	decoded := json.Unmarshal(respData, &env) == nil
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decoded {
			apiErr.Code = env.Error
			apiErr.Message = env.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respData))
		}
		return apiErr
	}
	if decoded && env.OK != nil && !*env.OK {
		return &APIError{Status: resp.StatusCode, Code: env.Error, Message: env.Message}
	}

	if respBody == nil || len(respData) == 0 {
		return nil
	}
	return json.Unmarshal(respData, respBody)
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	endpoint := base.ResolveReference(ref)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}
