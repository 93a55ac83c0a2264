package store

import (
	"context"
	"testing"

	"ai-notetaking-be/pkg/council"
)

func TestMemoryStoreCreateLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	c, err := s.Create(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.Load(ctx, c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded == nil || loaded.ID != c.ID {
		t.Fatalf("expected to load back the created conversation, got %+v", loaded)
	}
}

func TestMemoryStoreLoadMissingReturnsNilNil(t *testing.T) {
	s := NewMemoryStore()

	loaded, err := s.Load(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for missing conversation, got %+v", loaded)
	}
}

func TestMemoryStoreAppendMessagesPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c, _ := s.Create(ctx)

	if err := s.AppendUserMessage(ctx, c.ID, "what should I build first?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AppendAssistantMessage(ctx, c.ID, council.AssistantMessage{Role: "assistant"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, _ := s.Load(ctx, c.ID)
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
	}
	if loaded.Messages[0].Role != "user" || loaded.Messages[1].Role != "assistant" {
		t.Fatalf("expected user then assistant, got %+v", loaded.Messages)
	}
}

func TestMemoryStoreAppendToMissingConversationErrors(t *testing.T) {
	s := NewMemoryStore()

	err := s.AppendUserMessage(context.Background(), "ghost", "hello")
	if err == nil {
		t.Fatalf("expected error for missing conversation")
	}
}

func TestMemoryStoreCloneIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c, _ := s.Create(ctx)

	c.Title = "mutated by caller"

	reloaded, _ := s.Load(ctx, c.ID)
	if reloaded.Title == "mutated by caller" {
		t.Fatalf("expected store's internal state unaffected by caller mutation")
	}
}
