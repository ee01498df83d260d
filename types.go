package polymind

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// ============================================================================
// Shared Types
// ============================================================================

// StatusError is returned when the backend answers with a non-2xx status.
// The Code lets callers distinguish 401/403/404 from genuine failures.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Code, e.Body)
}

// statusCode extracts the HTTP status from an error chain, or 0 when the
// error is not a StatusError (network failure, decode failure, ...).
func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool { return statusCode(err) == http.StatusNotFound }

// IsForbidden reports whether err is a backend 403.
func IsForbidden(err error) bool { return statusCode(err) == http.StatusForbidden }

// IsUnauthorized reports whether err is a backend 401.
func IsUnauthorized(err error) bool { return statusCode(err) == http.StatusUnauthorized }

// ============================================================================
// Chat Types
// ============================================================================

// Chat is a chat session as stored locally and exchanged with the backend.
//
// The ID is either a backend UUID or a composite key of the form
// user_<userID>_model_<model> (see CompositeChatID). Timestamps are ISO 8601
// strings, kept verbatim as the backend sent them.
type Chat struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Model     string  `json:"model"`
	UserID    string  `json:"user_id"`
	Pinned    bool    `json:"pinned"`
	PinnedAt  *string `json:"pinned_at"`
	ProjectID *string `json:"project_id,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// CreateChatRequest is the payload for POST /webapp/chats.
type CreateChatRequest struct {
	Title string `json:"title,omitempty"`
	Model string `json:"model,omitempty"`
}

// timestampBefore compares two ISO 8601 timestamps by instant, so strings
// with offsets or fractional seconds order correctly. Values that do not
// parse fall back to string comparison.
func timestampBefore(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ta.Before(tb)
}

// sortChatsByCreatedDesc orders chats newest first.
func sortChatsByCreatedDesc(chats []Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return timestampBefore(chats[j].CreatedAt, chats[i].CreatedAt)
	})
}

// ============================================================================
// Message Types
// ============================================================================

// Message is a single chat message.
type Message struct {
	ID        string `json:"id,omitempty"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ChatMessageEntry is the stored value of the "messages" collection: the full
// ordered message history of one chat, keyed by chat id. The store holds at
// most one entry per chat.
type ChatMessageEntry struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}

// sortMessagesAsc orders messages by ascending createdAt.
func sortMessagesAsc(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return timestampBefore(msgs[i].CreatedAt, msgs[j].CreatedAt)
	})
}

// ============================================================================
// Model Catalog Types
// ============================================================================

// ModelConfig describes one model offered by the backend.
type ModelConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	ProviderID  string `json:"providerId,omitempty"`
	Description string `json:"description,omitempty"`
	Accessible  bool   `json:"accessible,omitempty"`
}

// Preferences is the user preference document, passed through verbatim.
type Preferences map[string]any

// ============================================================================
// Streaming Types
// ============================================================================

// Stream event discriminators.
const (
	EventStart   = "start"
	EventContent = "content"
	EventDone    = "done"
	EventError   = "error"
)

// StreamEvent is one frame of a chat response stream.
type StreamEvent struct {
	Type      string  `json:"type"`
	Content   string  `json:"content,omitempty"`
	Model     string  `json:"model,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Attachment is a base64-encoded file sent alongside a streamed message.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

// StreamChatOptions is the payload for POST /webapp/chat/stream.
type StreamChatOptions struct {
	Message            string       `json:"message"`
	Model              string       `json:"model,omitempty"`
	IncludeContext     *bool        `json:"include_context,omitempty"`
	MaxContextMessages int          `json:"max_context_messages,omitempty"`
	ChatID             string       `json:"chat_id,omitempty"`
	Attachments        []Attachment `json:"attachments,omitempty"`
}
