package polymind

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ============================================================================
// MessageStore
// ============================================================================

// MessageStore keeps per-chat message histories cached locally. Reads are
// cache-first: a non-empty cached history is returned without any network
// traffic, so conversation switches render instantly. Only a cache miss (or
// empty history) triggers a backend fetch, and every failure mode of that
// fetch degrades to an empty history rather than an error; the error return
// is reserved for local store failures.
type MessageStore struct {
	store  Store
	client *Client
	chats  *ChatStore
	log    logrus.FieldLogger

	readyTimeout time.Duration
}

// MessageStoreOptions tunes a MessageStore. Nil uses defaults.
type MessageStoreOptions struct {
	ReadyTimeout time.Duration
	Logger       logrus.FieldLogger
}

// NewMessageStore creates a message cache over the given store and client.
// The chat store is consulted to resolve the model of UUID-form chat ids,
// which the backend needs to locate the conversation; it may be nil when all
// chat ids are composite keys.
func NewMessageStore(store Store, client *Client, chats *ChatStore, opts *MessageStoreOptions) *MessageStore {
	s := &MessageStore{
		store:        store,
		client:       client,
		chats:        chats,
		log:          logrus.StandardLogger(),
		readyTimeout: DefaultReadyTimeout,
	}
	if opts != nil {
		if opts.ReadyTimeout > 0 {
			s.readyTimeout = opts.ReadyTimeout
		}
		if opts.Logger != nil {
			s.log = opts.Logger
		}
	}
	return s
}

// ============================================================================
// Reads
// ============================================================================

// Messages returns the message history of a chat, ascending by time.
//
// A cached non-empty history short-circuits the fetch. On a miss the backend
// is consulted: a 404 additionally clears any cached entry (the chat is gone),
// a 403 yields an empty history without touching the cache (access may be
// restored), and identity timeouts or network failures are logged and yield
// the empty history. Fetched non-empty histories are written back; empty ones
// are not, so a transient empty response cannot mask a later successful fetch.
func (s *MessageStore) Messages(ctx context.Context, chatID string) ([]Message, error) {
	cached, err := s.CachedMessages(chatID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	if !s.client.Ready(ctx, s.readyTimeout) {
		s.log.Debug("identity not ready, returning empty message history")
		return []Message{}, nil
	}

	msgs, err := s.client.GetMessages(ctx, chatID, s.modelFor(chatID))
	if err != nil {
		switch {
		case IsNotFound(err):
			if derr := s.store.Delete(CollectionMessages, chatID); derr != nil {
				return nil, fmt.Errorf("clear deleted chat messages: %w", derr)
			}
		case IsForbidden(err):
			// Access denied now may be granted later; keep the cache as is.
		default:
			s.log.Warnf("message fetch failed for chat %s: %v", chatID, err)
		}
		return []Message{}, nil
	}

	sortMessagesAsc(msgs)
	if len(msgs) > 0 {
		if err := s.SetMessages(chatID, msgs); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// CachedMessages returns the cached history of a chat without any network
// traffic. A missing entry is an empty history.
func (s *MessageStore) CachedMessages(chatID string) ([]Message, error) {
	record, ok, err := s.store.Get(CollectionMessages, chatID)
	if err != nil {
		return nil, fmt.Errorf("get cached messages: %w", err)
	}
	if !ok {
		return []Message{}, nil
	}
	var entry ChatMessageEntry
	if err := json.Unmarshal(record, &entry); err != nil {
		return nil, fmt.Errorf("decode cached messages: %w", err)
	}
	if entry.Messages == nil {
		return []Message{}, nil
	}
	return entry.Messages, nil
}

// modelFor resolves the model query parameter for a chat id. Composite keys
// already encode the model, so only UUID-form ids need the cached chat's
// model.
func (s *MessageStore) modelFor(chatID string) string {
	if strings.HasPrefix(chatID, "user_") || s.chats == nil {
		return ""
	}
	chat, err := s.chats.GetChat(chatID)
	if err != nil || chat == nil {
		return ""
	}
	return chat.Model
}

// ============================================================================
// Writes
// ============================================================================

// SetMessages replaces the cached history of a chat.
func (s *MessageStore) SetMessages(chatID string, msgs []Message) error {
	if msgs == nil {
		msgs = []Message{}
	}
	record, err := json.Marshal(&ChatMessageEntry{ID: chatID, Messages: msgs})
	if err != nil {
		return fmt.Errorf("encode message entry: %w", err)
	}
	if err := s.store.Put(CollectionMessages, chatID, record); err != nil {
		return fmt.Errorf("cache messages: %w", err)
	}
	return nil
}

// AddMessage appends one message to the cached history of a chat, creating
// the entry if needed.
func (s *MessageStore) AddMessage(chatID string, msg Message) error {
	cached, err := s.CachedMessages(chatID)
	if err != nil {
		return err
	}
	return s.SetMessages(chatID, append(cached, msg))
}

// ClearMessages drops the cached history of a chat.
func (s *MessageStore) ClearMessages(chatID string) error {
	if err := s.store.Delete(CollectionMessages, chatID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}
