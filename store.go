package polymind

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Logical collection names used by the cache layers.
const (
	CollectionChats    = "chats"
	CollectionMessages = "messages"
)

// ============================================================================
// Store
// ============================================================================

// Store is the local persistence primitive shared by all cache layers:
// a key-value store keyed by collection name and record id. There is no
// transactional isolation between collections; each collection's consistency
// is managed independently by its synchronizer.
type Store interface {
	Get(collection, id string) ([]byte, bool, error)
	Put(collection, id string, value []byte) error
	Delete(collection, id string) error
	List(collection string) ([][]byte, error)
}

// ============================================================================
// MemoryStore
// ============================================================================

// MemoryStore is a goroutine-safe in-memory Store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(collection, id string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.collections[collection][id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *MemoryStore) Put(collection, id string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string][]byte)
		s.collections[collection] = coll
	}
	coll[id] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) List(collection string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.collections[collection]
	out := make([][]byte, 0, len(coll))
	for _, value := range coll {
		out = append(out, append([]byte(nil), value...))
	}
	return out, nil
}

// ============================================================================
// FileStore
// ============================================================================

// FileStore persists each collection as a single JSON file (id -> record)
// under a directory. It is the durable analog of the browser cache for
// long-lived processes and the CLI.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// load reads a collection file. A missing file is an empty collection.
func (s *FileStore) load(collection string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read collection %s: %w", collection, err)
	}
	coll := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &coll); err != nil {
		return nil, fmt.Errorf("parse collection %s: %w", collection, err)
	}
	return coll, nil
}

// save writes a collection file via temp-file rename so readers never observe
// a torn write.
func (s *FileStore) save(collection string, coll map[string]json.RawMessage) error {
	data, err := json.Marshal(coll)
	if err != nil {
		return fmt.Errorf("marshal collection %s: %w", collection, err)
	}
	tmp := s.path(collection) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write collection %s: %w", collection, err)
	}
	if err := os.Rename(tmp, s.path(collection)); err != nil {
		return fmt.Errorf("replace collection %s: %w", collection, err)
	}
	return nil
}

func (s *FileStore) Get(collection, id string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.load(collection)
	if err != nil {
		return nil, false, err
	}
	value, ok := coll[id]
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *FileStore) Put(collection, id string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.load(collection)
	if err != nil {
		return err
	}
	coll[id] = json.RawMessage(append([]byte(nil), value...))
	return s.save(collection, coll)
}

func (s *FileStore) Delete(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.load(collection)
	if err != nil {
		return err
	}
	if _, ok := coll[id]; !ok {
		return nil
	}
	delete(coll, id)
	return s.save(collection, coll)
}

func (s *FileStore) List(collection string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(coll))
	for _, value := range coll {
		out = append(out, value)
	}
	return out, nil
}
