// Package polymind provides the Go client for the Polymind chat backend.
//
// The package has two layers: a thin authenticated gateway (Client) over the
// backend's /webapp HTTP surface, and a local offline cache (Store, ChatStore,
// MessageStore) that keeps chat sessions and message history available and
// consistent while the network or the identity handshake is unreliable.
//
// Example:
//
//	client := polymind.NewClient(
//		polymind.WithBaseURL("https://api.example.com"),
//		polymind.WithIdentity(polymind.StaticIdentity{Token: initData, User: "42"}),
//	)
//
//	chats := polymind.NewChatStore(polymind.NewMemoryStore(), client, nil)
//	sessions, _ := chats.RefreshChats(ctx)
//
//	stream, _ := client.StreamChat(ctx, &polymind.StreamChatOptions{Message: "Hi"})
//	defer stream.Close()
//	for {
//		ev, err := stream.Recv()
//		if err != nil {
//			break
//		}
//		fmt.Print(ev.Content)
//	}
package polymind

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is used when neither WithBaseURL nor POLYMIND_API_URL
	// is set.
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	// authScheme is the Authorization scheme the backend expects for
	// Telegram init-data tokens.
	authScheme = "tma"
)

// ============================================================================
// Client
// ============================================================================

// Client is the authenticated gateway to the Polymind backend. Every request
// waits for the identity handshake (bounded), then attaches the init-data
// token as an Authorization header; without a token it falls back to a
// user_id query parameter, which supports the app being opened outside the
// authenticating host.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	identity       IdentityProvider
	gate           *Gate
	fallbackUserID string
	readyTimeout   time.Duration
	log            logrus.FieldLogger
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithIdentity sets the identity provider consulted for every request.
func WithIdentity(p IdentityProvider) ClientOption {
	return func(c *Client) { c.identity = p }
}

// WithFallbackUserID sets the user id appended as a user_id query parameter
// when no init-data token is available.
func WithFallbackUserID(id string) ClientOption {
	return func(c *Client) { c.fallbackUserID = id }
}

// WithReadyTimeout bounds the identity wait performed before each request.
func WithReadyTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.readyTimeout = d }
}

func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a Polymind client. Without options it targets
// POLYMIND_API_URL (or DefaultBaseURL) with an anonymous, already-initialized
// identity.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		identity:     StaticIdentity{},
		readyTimeout: DefaultReadyTimeout,
		log:          logrus.StandardLogger(),
	}
	if env := os.Getenv("POLYMIND_API_URL"); env != "" {
		c.baseURL = strings.TrimRight(env, "/")
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gate = NewGate(c.identity)
	return c
}

// Ready waits for the identity handshake with the given timeout. It is the
// same gate the client consults before each request; cache layers use it to
// decide between network and cache-only behavior.
func (c *Client) Ready(ctx context.Context, timeout time.Duration) bool {
	return c.gate.WaitUntilReady(ctx, timeout)
}

// ============================================================================
// Internal request helpers
// ============================================================================

// request issues an HTTP call with authentication attached. The identity wait
// here never refuses the request: on timeout it logs and proceeds with
// fallback auth, matching the gateway's availability-over-freshness stance.
// Callers that must not hit the network unauthenticated check Ready first.
func (c *Client) request(ctx context.Context, method, endpoint string, body any, query url.Values) (*http.Response, error) {
	if !c.gate.WaitUntilReady(ctx, c.readyTimeout) {
		c.log.Warn("identity handshake timed out, proceeding with fallback auth")
	}

	initData := c.identity.InitData()
	if initData == "" && c.fallbackUserID != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("user_id", c.fallbackUserID)
	}

	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if initData != "" {
		req.Header.Set("Authorization", authScheme+" "+initData)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, endpoint, err)
	}
	return resp, nil
}

// doJSON performs a request and returns the response body, converting non-2xx
// statuses into *StatusError.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, query url.Values) ([]byte, error) {
	resp, err := c.request(ctx, method, endpoint, body, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func decodeJSON[T any](data []byte) (T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}

// ============================================================================
// Chat Operations
// ============================================================================

// ListSessions returns the authoritative, complete list of the user's chat
// sessions. Absence from this listing means the chat was deleted.
func (c *Client) ListSessions(ctx context.Context) ([]Chat, error) {
	data, err := c.doJSON(ctx, http.MethodGet, "/webapp/sessions", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[[]Chat](data)
}

// ListChats returns a page of chat sessions. Zero limit defaults to 50.
func (c *Client) ListChats(ctx context.Context, limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", limit))
	query.Set("offset", fmt.Sprintf("%d", offset))
	data, err := c.doJSON(ctx, http.MethodGet, "/webapp/chats", nil, query)
	if err != nil {
		return nil, err
	}
	return decodeJSON[[]Chat](data)
}

// CreateChat creates a chat session on the backend.
func (c *Client) CreateChat(ctx context.Context, req *CreateChatRequest) (*Chat, error) {
	data, err := c.doJSON(ctx, http.MethodPost, "/webapp/chats", req, nil)
	if err != nil {
		return nil, err
	}
	chat, err := decodeJSON[Chat](data)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// DeleteChat deletes a chat session. A 404 is returned as a *StatusError so
// callers can treat it as already-deleted.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/webapp/chats/"+url.PathEscape(id), nil, nil)
	return err
}

// UpdateChatPin sets the pinned flag of a chat session.
func (c *Client) UpdateChatPin(ctx context.Context, id string, pinned bool) error {
	body := map[string]any{"pinned": pinned}
	_, err := c.doJSON(ctx, http.MethodPost, "/webapp/chats/"+url.PathEscape(id)+"/pin", body, nil)
	return err
}

// UpdateChatModel sets the model of a chat session.
func (c *Client) UpdateChatModel(ctx context.Context, id, model string) error {
	body := map[string]any{"model": model}
	_, err := c.doJSON(ctx, http.MethodPost, "/webapp/chats/"+url.PathEscape(id)+"/model", body, nil)
	return err
}

// GetMessages fetches the ordered message history of a chat. For UUID-form
// chat ids the backend needs the model to locate the conversation; pass it
// via model (composite-key ids can leave it empty).
func (c *Client) GetMessages(ctx context.Context, chatID, model string) ([]Message, error) {
	var query url.Values
	if model != "" {
		query = url.Values{}
		query.Set("model", model)
	}
	data, err := c.doJSON(ctx, http.MethodGet, "/webapp/messages/"+url.PathEscape(chatID), nil, query)
	if err != nil {
		return nil, err
	}
	return decodeJSON[[]Message](data)
}

// ============================================================================
// Models & Preferences
// ============================================================================

// GetModels fetches the models offered by the backend. Most callers want the
// cached view through ModelCatalog instead.
func (c *Client) GetModels(ctx context.Context) ([]ModelConfig, error) {
	data, err := c.doJSON(ctx, http.MethodGet, "/webapp/models", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[[]ModelConfig](data)
}

// GetPreferences fetches the user preference document.
func (c *Client) GetPreferences(ctx context.Context) (Preferences, error) {
	data, err := c.doJSON(ctx, http.MethodGet, "/webapp/user/preferences", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Preferences](data)
}

// UpdatePreferences replaces the user preference document.
func (c *Client) UpdatePreferences(ctx context.Context, prefs Preferences) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/webapp/user/preferences", prefs, nil)
	return err
}
