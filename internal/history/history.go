// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcum42/sagechat/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// Role values for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. Immutable once appended.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// Conversation is an ordered list of messages plus identity metadata.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt int64     `json:"created"` // epoch milliseconds
	UpdatedAt int64     `json:"updated"` // epoch milliseconds
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Messages  []Message `json:"messages"`
}

// Metadata tags a conversation with the provider/model that produced it.
type Metadata struct {
	Provider string
	Model    string
}

// titleMaxRunes is the title truncation threshold.
const titleMaxRunes = 50

// =============================================================================
// ERRORS
// =============================================================================

// StoreError represents a conversation-store error.
// Use errors.Is with the sentinels below to check for specific cases.
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrConversationNotFound is returned for an id with no matching
	// conversation. Appending under an unknown id is an error, never a
	// silent create.
	ErrConversationNotFound = &StoreError{Message: "conversation not found"}

	// ErrConversationExists is returned by Import on an id collision when
	// overwrite was not requested.
	ErrConversationExists = &StoreError{Message: "conversation already exists"}

	// ErrInvalidImport is returned when an imported blob fails shape
	// validation.
	ErrInvalidImport = &StoreError{Message: "invalid conversation data"}
)

// =============================================================================
// STORE
// =============================================================================

// Store owns the conversation list. The in-memory index is authoritative;
// disk writes under dir are best-effort (one JSON file per conversation),
// and read or write failures degrade to the in-memory state rather than
// propagating.
//
// Thread-safe for concurrent use.
type Store struct {
	dir string

	mu    sync.RWMutex
	convs map[string]*Conversation
}

// NewStore opens a store over the given directory, loading any persisted
// conversations. Corrupt files are skipped with a log line; a missing or
// unreadable directory yields an empty store.
func NewStore(dir string) *Store {
	s := &Store{
		dir:   dir,
		convs: make(map[string]*Conversation),
	}
	s.loadAll()
	return s
}

func (s *Store) loadAll() {
	if s.dir == "" {
		return
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("history: read dir %s failed: %v, starting empty", s.dir, err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("history: read %s failed: %v, skipping", path, err)
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil || conv.ID == "" {
			log.Printf("history: skipping corrupt conversation file %s", path)
			continue
		}
		s.convs[conv.ID] = &conv
	}
}

// persist writes one conversation to disk. Best-effort: failures are logged
// and the in-memory copy stays authoritative.
func (s *Store) persist(conv *Conversation) {
	if s.dir == "" {
		return
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		log.Printf("history: encode conversation %s failed: %v", conv.ID, err)
		return
	}
	if err := util.AtomicWriteFile(s.filePath(conv.ID), data, 0644); err != nil {
		log.Printf("history: write conversation %s failed: %v", conv.ID, err)
	}
}

func (s *Store) filePath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// =============================================================================
// OPERATIONS
// =============================================================================

// List returns copies of all conversations, most recently updated first.
func (s *Store) List() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		list = append(list, copyConversation(conv))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedAt != list[j].UpdatedAt {
			return list[i].UpdatedAt > list[j].UpdatedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Get returns a copy of one conversation.
func (s *Store) Get(id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok {
		return Conversation{}, ErrConversationNotFound
	}
	return copyConversation(conv), nil
}

// Append adds a message. An empty id creates a new conversation whose title
// derives from the first line of content (truncated past 50 runes with an
// ellipsis). An unknown id is an error.
func (s *Store) Append(id, role, content string, meta Metadata) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	var conv *Conversation
	if id == "" {
		conv = &Conversation{
			ID:        uuid.NewString(),
			Title:     deriveTitle(content),
			CreatedAt: now,
			UpdatedAt: now,
			Provider:  meta.Provider,
			Model:     meta.Model,
		}
		s.convs[conv.ID] = conv
	} else {
		var ok bool
		conv, ok = s.convs[id]
		if !ok {
			return Conversation{}, ErrConversationNotFound
		}
	}

	conv.Messages = append(conv.Messages, Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	conv.UpdatedAt = now
	if meta.Provider != "" {
		conv.Provider = meta.Provider
	}
	if meta.Model != "" {
		conv.Model = meta.Model
	}

	s.persist(conv)
	return copyConversation(conv), nil
}

// Delete removes a conversation. The caller clears any "current" pointer it
// holds; the store does not track which conversation is active.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[id]; !ok {
		return ErrConversationNotFound
	}
	delete(s.convs, id)

	if s.dir != "" {
		if err := os.Remove(s.filePath(id)); err != nil && !os.IsNotExist(err) {
			log.Printf("history: remove conversation file %s failed: %v", id, err)
		}
	}
	return nil
}

// ClearAll empties the store.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.convs {
		delete(s.convs, id)
		if s.dir != "" {
			if err := os.Remove(s.filePath(id)); err != nil && !os.IsNotExist(err) {
				log.Printf("history: remove conversation file %s failed: %v", id, err)
			}
		}
	}
}

// Search returns conversations whose title or message content contains the
// query, case-insensitively, most recently updated first.
func (s *Store) Search(query string) []Conversation {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.List()
	}

	var results []Conversation
	for _, conv := range s.List() {
		if strings.Contains(strings.ToLower(conv.Title), query) {
			results = append(results, conv)
			continue
		}
		for _, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, conv)
				break
			}
		}
	}
	return results
}

// Import accepts an externally produced conversation blob after shape
// validation (id and messages must be present). On an id collision the
// import is rejected unless overwrite is set.
func (s *Store) Import(data []byte, overwrite bool) (Conversation, error) {
	var raw struct {
		ID       string           `json:"id"`
		Messages *json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Conversation{}, ErrInvalidImport
	}
	if raw.ID == "" || raw.Messages == nil {
		return Conversation{}, ErrInvalidImport
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return Conversation{}, ErrInvalidImport
	}
	if conv.Title == "" && len(conv.Messages) > 0 {
		conv.Title = deriveTitle(conv.Messages[0].Content)
	}
	now := time.Now().UnixMilli()
	if conv.CreatedAt == 0 {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt == 0 {
		conv.UpdatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.convs[conv.ID]; exists && !overwrite {
		return Conversation{}, ErrConversationExists
	}
	s.convs[conv.ID] = &conv
	s.persist(&conv)
	return copyConversation(&conv), nil
}

// =============================================================================
// HELPERS
// =============================================================================

// deriveTitle builds a conversation title from the first line of the first
// message. Titles of 50 runes or fewer are kept verbatim; longer ones keep
// the first 50 runes plus an ellipsis.
func deriveTitle(content string) string {
	line := util.FirstLine(content)
	if line == "" {
		return "New conversation"
	}
	return util.TruncateRunes(line, titleMaxRunes)
}

func copyConversation(conv *Conversation) Conversation {
	out := *conv
	out.Messages = make([]Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return out
}
