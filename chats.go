package polymind

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultChatTitle is used when a chat is created without a title.
const DefaultChatTitle = "New Chat"

// CompositeChatID derives the deterministic chat id for a (user, model) pair.
// Client and backend compute the same key independently, so a chat created
// optimistically offline converges with its server-side counterpart without
// an id exchange.
func CompositeChatID(userID, model string) string {
	return "user_" + userID + "_model_" + model
}

// ============================================================================
// ChatStore
// ============================================================================

// ChatStore keeps the local chat-session cache consistent with the backend.
// Reads serve from cache immediately; refreshes reconcile against the
// authoritative session listing with remote-wins merge semantics. Writes are
// optimistic: the cache is updated first so the session is usable before the
// network round-trip completes (or when it never does).
type ChatStore struct {
	store  Store
	client *Client
	log    logrus.FieldLogger
	now    func() time.Time

	readyTimeout time.Duration

	// single-flight guard for RefreshChats
	mu       sync.Mutex
	inFlight *refreshCall
}

type refreshCall struct {
	done  chan struct{}
	chats []Chat
	err   error
}

// ChatStoreOptions tunes a ChatStore. The zero value (or nil) uses the
// client's defaults.
type ChatStoreOptions struct {
	// ReadyTimeout bounds the identity wait before a refresh may touch the
	// network. Zero means DefaultReadyTimeout.
	ReadyTimeout time.Duration
	Logger       logrus.FieldLogger
	// Now is the clock used for record timestamps. Nil means time.Now.
	Now func() time.Time
}

// NewChatStore creates a chat cache over the given store and client.
func NewChatStore(store Store, client *Client, opts *ChatStoreOptions) *ChatStore {
	s := &ChatStore{
		store:        store,
		client:       client,
		log:          logrus.StandardLogger(),
		now:          time.Now,
		readyTimeout: DefaultReadyTimeout,
	}
	if opts != nil {
		if opts.ReadyTimeout > 0 {
			s.readyTimeout = opts.ReadyTimeout
		}
		if opts.Logger != nil {
			s.log = opts.Logger
		}
		if opts.Now != nil {
			s.now = opts.Now
		}
	}
	return s
}

func (s *ChatStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// ============================================================================
// Cache primitives
// ============================================================================

// CachedChats returns the locally cached chats, newest first, without
// touching the network.
func (s *ChatStore) CachedChats() ([]Chat, error) {
	records, err := s.store.List(CollectionChats)
	if err != nil {
		return nil, fmt.Errorf("list cached chats: %w", err)
	}
	chats := make([]Chat, 0, len(records))
	for _, record := range records {
		var chat Chat
		if err := json.Unmarshal(record, &chat); err != nil {
			s.log.Warnf("skipping corrupt chat record: %v", err)
			continue
		}
		chats = append(chats, chat)
	}
	sortChatsByCreatedDesc(chats)
	return chats, nil
}

// GetChat returns one cached chat by id.
func (s *ChatStore) GetChat(id string) (*Chat, error) {
	record, ok, err := s.store.Get(CollectionChats, id)
	if err != nil {
		return nil, fmt.Errorf("get cached chat: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var chat Chat
	if err := json.Unmarshal(record, &chat); err != nil {
		return nil, fmt.Errorf("decode cached chat: %w", err)
	}
	return &chat, nil
}

func (s *ChatStore) putChat(chat *Chat) error {
	record, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("encode chat: %w", err)
	}
	if err := s.store.Put(CollectionChats, chat.ID, record); err != nil {
		return fmt.Errorf("cache chat: %w", err)
	}
	return nil
}

// ============================================================================
// Refresh (remote-wins reconciliation)
// ============================================================================

// RefreshChats reconciles the cache against the backend's authoritative
// session listing and returns the merged result, newest first. Remote records
// overwrite local ones, and local chats absent from the listing are purged as
// deleted elsewhere. When identity is not ready or the network fails, the
// cached view is returned unchanged with a nil error; the error return is
// reserved for local store failures. Concurrent callers share one in-flight
// refresh.
func (s *ChatStore) RefreshChats(ctx context.Context) ([]Chat, error) {
	s.mu.Lock()
	if call := s.inFlight; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.chats, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	s.inFlight = call
	s.mu.Unlock()

	call.chats, call.err = s.refreshChats(ctx)
	close(call.done)

	s.mu.Lock()
	s.inFlight = nil
	s.mu.Unlock()

	return call.chats, call.err
}

func (s *ChatStore) refreshChats(ctx context.Context) ([]Chat, error) {
	if !s.client.Ready(ctx, s.readyTimeout) {
		s.log.Debug("identity not ready, serving chats from cache")
		return s.CachedChats()
	}

	remote, err := s.client.ListSessions(ctx)
	if err != nil {
		s.log.Warnf("chat refresh failed, serving cache: %v", err)
		return s.CachedChats()
	}

	cached, err := s.CachedChats()
	if err != nil {
		return nil, err
	}

	remoteIDs := make(map[string]struct{}, len(remote))
	for i := range remote {
		remoteIDs[remote[i].ID] = struct{}{}
		if err := s.putChat(&remote[i]); err != nil {
			return nil, err
		}
	}

	// Purge local chats the authoritative listing no longer contains.
	for _, chat := range cached {
		if _, ok := remoteIDs[chat.ID]; ok {
			continue
		}
		if err := s.store.Delete(CollectionChats, chat.ID); err != nil {
			return nil, fmt.Errorf("purge stale chat: %w", err)
		}
		if err := s.store.Delete(CollectionMessages, chat.ID); err != nil {
			return nil, fmt.Errorf("purge stale messages: %w", err)
		}
	}

	return s.CachedChats()
}

// ============================================================================
// Write operations
// ============================================================================

// CreateChat creates a chat session, cache first. When userID and model are
// both known the chat gets the deterministic composite id, so the backend's
// copy lands on the same key; otherwise a random id is used. The backend call
// happens after the cache write, and its failure does not undo the local
// record; the next refresh reconciles.
func (s *ChatStore) CreateChat(ctx context.Context, userID, title, model string) (*Chat, error) {
	if title == "" {
		title = DefaultChatTitle
	}

	id := uuid.NewString()
	if userID != "" && model != "" {
		id = CompositeChatID(userID, model)
	}

	// An equivalent optimistic record may already exist under a different
	// random id (retry after an offline create). Reuse it instead of
	// duplicating the session.
	cached, err := s.CachedChats()
	if err != nil {
		return nil, err
	}
	for i := range cached {
		if cached[i].Title == title && cached[i].UserID == userID && cached[i].Model == model {
			return &cached[i], nil
		}
	}

	ts := s.timestamp()
	chat := &Chat{
		ID:        id,
		Title:     title,
		Model:     model,
		UserID:    userID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.putChat(chat); err != nil {
		return nil, err
	}
	// Seed an empty history so message reads for the new chat are cache hits.
	if err := s.seedMessages(chat.ID); err != nil {
		return nil, err
	}

	if s.client.Ready(ctx, s.readyTimeout) {
		remote, err := s.client.CreateChat(ctx, &CreateChatRequest{Title: title, Model: model})
		if err != nil {
			s.log.Warnf("backend chat create failed, keeping optimistic record: %v", err)
		} else {
			if remote != nil && remote.ID != "" && remote.ID != chat.ID {
				// Backend chose a different id: move the record onto it.
				if err := s.store.Delete(CollectionChats, chat.ID); err != nil {
					return nil, fmt.Errorf("replace optimistic chat: %w", err)
				}
				if err := s.store.Delete(CollectionMessages, chat.ID); err != nil {
					return nil, fmt.Errorf("replace optimistic messages: %w", err)
				}
				chat = remote
				if err := s.putChat(chat); err != nil {
					return nil, err
				}
				if err := s.seedMessages(chat.ID); err != nil {
					return nil, err
				}
			}
			if err := s.dropDuplicateChats(title, userID, chat.ID); err != nil {
				return nil, err
			}
		}
	} else {
		s.log.Debug("identity not ready, chat created locally only")
	}

	return chat, nil
}

// dropDuplicateChats removes cached chats that duplicate a confirmed create:
// same title and user under any other id. These are optimistic leftovers from
// offline creates that never reached the backend.
func (s *ChatStore) dropDuplicateChats(title, userID, keepID string) error {
	cached, err := s.CachedChats()
	if err != nil {
		return err
	}
	for _, c := range cached {
		if c.ID == keepID || c.Title != title || c.UserID != userID {
			continue
		}
		if err := s.store.Delete(CollectionChats, c.ID); err != nil {
			return fmt.Errorf("drop duplicate chat: %w", err)
		}
		if err := s.store.Delete(CollectionMessages, c.ID); err != nil {
			return fmt.Errorf("drop duplicate messages: %w", err)
		}
	}
	return nil
}

func (s *ChatStore) seedMessages(chatID string) error {
	record, err := json.Marshal(&ChatMessageEntry{ID: chatID, Messages: []Message{}})
	if err != nil {
		return fmt.Errorf("encode message entry: %w", err)
	}
	if err := s.store.Put(CollectionMessages, chatID, record); err != nil {
		return fmt.Errorf("seed messages: %w", err)
	}
	return nil
}

// DeleteChat removes a chat session everywhere: backend, chat cache, and the
// chat's message history. A backend 404 counts as success, so deleting an
// already-deleted chat is idempotent.
func (s *ChatStore) DeleteChat(ctx context.Context, id string) error {
	if err := s.client.DeleteChat(ctx, id); err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete chat: %w", err)
	}
	if err := s.store.Delete(CollectionChats, id); err != nil {
		return fmt.Errorf("delete cached chat: %w", err)
	}
	if err := s.store.Delete(CollectionMessages, id); err != nil {
		return fmt.Errorf("delete cached messages: %w", err)
	}
	return nil
}

// ToggleChatPin sets the pinned state of a chat, backend first so the cache
// never claims a pin the server rejected. PinnedAt is stamped when pinning
// and cleared when unpinning.
func (s *ChatStore) ToggleChatPin(ctx context.Context, id string, pinned bool) error {
	if err := s.client.UpdateChatPin(ctx, id, pinned); err != nil {
		return fmt.Errorf("update pin: %w", err)
	}
	return s.patchChat(id, func(chat *Chat) {
		chat.Pinned = pinned
		if pinned {
			ts := s.timestamp()
			chat.PinnedAt = &ts
		} else {
			chat.PinnedAt = nil
		}
	})
}

// UpdateChatModel switches the model of a chat, backend first.
func (s *ChatStore) UpdateChatModel(ctx context.Context, id, model string) error {
	if err := s.client.UpdateChatModel(ctx, id, model); err != nil {
		return fmt.Errorf("update model: %w", err)
	}
	return s.patchChat(id, func(chat *Chat) {
		chat.Model = model
	})
}

// UpdateChatTitle renames a chat in the local cache. The backend derives
// titles on its side, so this is a cache-only operation.
func (s *ChatStore) UpdateChatTitle(id, title string) error {
	return s.patchChat(id, func(chat *Chat) {
		chat.Title = title
	})
}

// patchChat applies fn to the cached chat with the given id, if present, and
// bumps UpdatedAt. A missing record is not an error: the next refresh will
// bring the authoritative state.
func (s *ChatStore) patchChat(id string, fn func(*Chat)) error {
	chat, err := s.GetChat(id)
	if err != nil {
		return err
	}
	if chat == nil {
		return nil
	}
	fn(chat)
	chat.UpdatedAt = s.timestamp()
	return s.putChat(chat)
}
