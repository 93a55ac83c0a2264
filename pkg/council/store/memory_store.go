package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-notetaking-be/pkg/council"
)

// MemoryStore is an in-process ConversationStore, grounded on
// ai-notetaking-be's internal/repository/memory.SessionRepository: a
// go-cache-free map guarded by a mutex, used for tests and for the cmd/
// demo CLI where standing up Postgres is unnecessary overhead.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*council.Conversation
}

var _ ConversationStore = &MemoryStore{}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*council.Conversation)}
}

func (s *MemoryStore) Create(ctx context.Context) (*council.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c := &council.Conversation{
		ID:          uuid.NewString(),
		Title:       "New conversation",
		TitleSource: "derived",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.conversations[c.ID] = c
	return cloneConversation(c), nil
}

func (s *MemoryStore) Load(ctx context.Context, cid string) (*council.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[cid]
	if !ok {
		return nil, nil
	}
	return cloneConversation(c), nil
}

func (s *MemoryStore) Delete(ctx context.Context, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, cid)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*council.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*council.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, cloneConversation(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendUserMessage(ctx context.Context, cid, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[cid]
	if !ok {
		return ErrNotFound{CID: cid}
	}
	c.Messages = append(c.Messages, council.ConversationMessage{Role: "user", Content: content, CreatedAt: time.Now()})
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AppendAssistantMessage(ctx context.Context, cid string, msg council.AssistantMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[cid]
	if !ok {
		return ErrNotFound{CID: cid}
	}
	assistant := msg
	c.Messages = append(c.Messages, council.ConversationMessage{Role: "assistant", Assistant: &assistant, CreatedAt: time.Now()})
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetTitle(ctx context.Context, cid, title, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[cid]
	if !ok {
		return ErrNotFound{CID: cid}
	}
	c.Title = title
	c.TitleSource = source
	c.UpdatedAt = time.Now()
	return nil
}

func cloneConversation(c *council.Conversation) *council.Conversation {
	clone := *c
	clone.Messages = append([]council.ConversationMessage{}, c.Messages...)
	return &clone
}
