package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/petasbytes/agent-core/internal/clock"
	"github.com/petasbytes/agent-core/internal/telemetry"
)

// Store persists conversations as a single JSON blob. Every conversation
// is held in memory; the blob is rewritten after each mutation.
type Store struct {
	// Namer, when set, names unnamed conversations in EnsureName.
	Namer Namer

	path string
	max  int
	clk  clock.Clock

	mu    sync.Mutex
	convs map[string]*Conversation
}

// storeFile is the on-disk shape of the blob.
type storeFile struct {
	Conversations []*Conversation `json:"conversations"`
}

// Open loads the blob at path. A missing file yields an empty store; a
// corrupt one is an error. maxConversations bounds retention (0 or less
// means unbounded). clk stamps timestamps and may be nil for the real
// clock.
func Open(path string, maxConversations int, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.Real()
	}
	s := &Store{
		path:  path,
		max:   maxConversations,
		clk:   clk,
		convs: make(map[string]*Conversation),
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}
	var f storeFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", path, err)
	}
	for _, c := range f.Conversations {
		if c.ID != "" {
			s.convs[c.ID] = c
		}
	}
	return s, nil
}

// Save upserts conv and rewrites the blob. A conversation without an ID
// gets one; UpdatedAt is stamped on every save. Past the retention bound
// the least recently updated conversation is evicted.
func (s *Store) Save(conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	conv.UpdatedAt = s.clk.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}
	s.convs[conv.ID] = conv

	for s.max > 0 && len(s.convs) > s.max {
		s.evictOldestLocked()
	}

	n, err := s.writeLocked()
	if err != nil {
		return err
	}
	telemetry.Emit("store_saved", map[string]any{
		"conversation_id": conv.ID,
		"conversations":   len(s.convs),
		"bytes":           n,
	})
	return nil
}

// Get returns the conversation with id. The pointer aliases store state;
// callers append messages to it and hand it back to Save.
func (s *Store) Get(id string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	return c, ok
}

// Delete removes the conversation with id and rewrites the blob.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return fmt.Errorf("conversation %s: not found", id)
	}
	delete(s.convs, id)
	_, err := s.writeLocked()
	return err
}

// List returns conversation metadata, most recently updated first.
func (s *Store) List() []Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Metadata, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, Metadata{
			ID:           c.ID,
			Name:         c.Name,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
			MessageCount: len(c.Messages),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// evictOldestLocked drops the least recently updated conversation. Ties
// break on ID so eviction is deterministic.
func (s *Store) evictOldestLocked() {
	var oldest *Conversation
	for _, c := range s.convs {
		switch {
		case oldest == nil:
			oldest = c
		case c.UpdatedAt.Before(oldest.UpdatedAt):
			oldest = c
		case c.UpdatedAt.Equal(oldest.UpdatedAt) && c.ID < oldest.ID:
			oldest = c
		}
	}
	if oldest != nil {
		delete(s.convs, oldest.ID)
	}
}

// writeLocked marshals every conversation and rewrites the blob, newest
// first. Returns the byte size written. Conversation history is
// sensitive, so the file is user-only.
func (s *Store) writeLocked() (int, error) {
	f := storeFile{Conversations: make([]*Conversation, 0, len(s.convs))}
	for _, c := range s.convs {
		f.Conversations = append(f.Conversations, c)
	}
	sort.Slice(f.Conversations, func(i, j int) bool {
		a, b := f.Conversations[i], f.Conversations[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	b, err := json.MarshalIndent(f, "", " ")
	if err != nil {
		return 0, fmt.Errorf("marshal store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return 0, fmt.Errorf("create store dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return 0, fmt.Errorf("write store: %w", err)
	}
	return len(b), nil
}
