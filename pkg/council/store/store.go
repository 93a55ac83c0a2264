package store

import (
	"context"

	"ai-notetaking-be/pkg/council"
)

// ConversationStore is the external collaborator contract of spec §6: a
// single-writer-per-conversation resource the Orchestrator never writes to
// concurrently for the same conversation id.
type ConversationStore interface {
	// Create starts a new, empty conversation.
	Create(ctx context.Context) (*council.Conversation, error)

	// Load returns the conversation, or (nil, nil) if cid does not exist.
	Load(ctx context.Context, cid string) (*council.Conversation, error)

	// Delete removes a conversation and its messages.
	Delete(ctx context.Context, cid string) error

	// List returns every conversation, most recently updated first.
	List(ctx context.Context) ([]*council.Conversation, error)

	// AppendUserMessage durably appends a user turn, in order.
	AppendUserMessage(ctx context.Context, cid, content string) error

	// AppendAssistantMessage durably appends an assistant turn, in order.
	AppendAssistantMessage(ctx context.Context, cid string, msg council.AssistantMessage) error

	// SetTitle updates a conversation's title and its source ("derived",
	// "refined" or "chairman").
	SetTitle(ctx context.Context, cid, title, source string) error
}

// ErrNotFound is returned by operations that require an existing
// conversation the store doesn't have.
type ErrNotFound struct{ CID string }

func (e ErrNotFound) Error() string { return "conversation not found: " + e.CID }
