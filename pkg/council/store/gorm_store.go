package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ai-notetaking-be/pkg/council"
	"ai-notetaking-be/pkg/council/cerr"
)

// GormStore implements ConversationStore over a relational database,
// grounded on ai-notetaking-be's
// internal/repository/implementation.ChatMessageRepositoryImpl: a thin
// struct wrapping *gorm.DB, one method per operation, gorm.ErrRecordNotFound
// translated into a nil/nil "not found" return rather than bubbling a raw
// GORM error.
type GormStore struct {
	db *gorm.DB
}

var _ ConversationStore = &GormStore{}

// NewGormStore wraps an already-migrated *gorm.DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context) (*council.Conversation, error) {
	row := ConversationRow{Title: "New conversation", TitleSource: "derived"}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, cerr.Wrap(cerr.KindStoreFailure, "create conversation", err)
	}
	return toConversation(row, nil), nil
}

func (s *GormStore) Load(ctx context.Context, cid string) (*council.Conversation, error) {
	id, err := uuid.Parse(cid)
	if err != nil {
		return nil, nil
	}

	var row ConversationRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, cerr.Wrap(cerr.KindStoreFailure, "load conversation", err)
	}

	var messageRows []MessageRow
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("sequence ASC").
		Find(&messageRows).Error; err != nil {
		return nil, cerr.Wrap(cerr.KindStoreFailure, "load conversation messages", err)
	}

	messages, err := toConversationMessages(messageRows)
	if err != nil {
		return nil, cerr.Wrap(cerr.KindStoreFailure, "decode conversation messages", err)
	}

	return toConversation(row, messages), nil
}

func (s *GormStore) Delete(ctx context.Context, cid string) error {
	id, err := uuid.Parse(cid)
	if err != nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ConversationRow{}, "id = ?", id).Error
	})
}

func (s *GormStore) List(ctx context.Context) ([]*council.Conversation, error) {
	var rows []ConversationRow
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, cerr.Wrap(cerr.KindStoreFailure, "list conversations", err)
	}

	out := make([]*council.Conversation, len(rows))
	for i, row := range rows {
		out[i] = toConversation(row, nil)
	}
	return out, nil
}

func (s *GormStore) AppendUserMessage(ctx context.Context, cid, content string) error {
	id, err := uuid.Parse(cid)
	if err != nil {
		return cerr.New(cerr.KindStoreFailure, "invalid conversation id: "+cid)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := nextSequence(tx, id)
		if err != nil {
			return err
		}
		row := MessageRow{ConversationID: id, Sequence: seq, Role: "user", Content: content}
		return tx.Create(&row).Error
	})
}

func (s *GormStore) AppendAssistantMessage(ctx context.Context, cid string, msg council.AssistantMessage) error {
	id, err := uuid.Parse(cid)
	if err != nil {
		return cerr.New(cerr.KindStoreFailure, "invalid conversation id: "+cid)
	}

	stage1, err := json.Marshal(msg.Stage1)
	if err != nil {
		return cerr.Wrap(cerr.KindStoreFailure, "marshal stage1", err)
	}
	stage2, err := json.Marshal(msg.Stage2)
	if err != nil {
		return cerr.Wrap(cerr.KindStoreFailure, "marshal stage2", err)
	}
	stage3, err := json.Marshal(msg.Stage3)
	if err != nil {
		return cerr.Wrap(cerr.KindStoreFailure, "marshal stage3", err)
	}
	meta, err := json.Marshal(msg.Meta)
	if err != nil {
		return cerr.Wrap(cerr.KindStoreFailure, "marshal meta", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := nextSequence(tx, id)
		if err != nil {
			return err
		}
		row := MessageRow{
			ConversationID: id,
			Sequence:       seq,
			Role:           "assistant",
			Stage1:         datatypes.JSON(stage1),
			Stage2:         datatypes.JSON(stage2),
			Stage3:         datatypes.JSON(stage3),
			Meta:           datatypes.JSON(meta),
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return cerr.Wrap(cerr.KindStoreFailure, "append assistant message", err)
	}
	return nil
}

func (s *GormStore) SetTitle(ctx context.Context, cid, title, source string) error {
	id, err := uuid.Parse(cid)
	if err != nil {
		return cerr.New(cerr.KindStoreFailure, "invalid conversation id: "+cid)
	}
	return s.db.WithContext(ctx).
		Model(&ConversationRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "title_source": source}).Error
}

func nextSequence(tx *gorm.DB, conversationID uuid.UUID) (int, error) {
	var count int64
	if err := tx.Model(&MessageRow{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func toConversation(row ConversationRow, messages []council.ConversationMessage) *council.Conversation {
	return &council.Conversation{
		ID:          row.ID.String(),
		Title:       row.Title,
		TitleSource: row.TitleSource,
		Messages:    messages,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func toConversationMessages(rows []MessageRow) ([]council.ConversationMessage, error) {
	out := make([]council.ConversationMessage, len(rows))
	for i, row := range rows {
		cm := council.ConversationMessage{Role: row.Role, Content: row.Content, CreatedAt: row.CreatedAt}
		if row.Role == "assistant" {
			assistant, err := decodeAssistantMessage(row)
			if err != nil {
				return nil, fmt.Errorf("message %s: %w", row.ID, err)
			}
			cm.Assistant = assistant
		}
		out[i] = cm
	}
	return out, nil
}

func decodeAssistantMessage(row MessageRow) (*council.AssistantMessage, error) {
	msg := council.AssistantMessage{Role: "assistant"}
	if len(row.Stage1) > 0 {
		if err := json.Unmarshal(row.Stage1, &msg.Stage1); err != nil {
			return nil, err
		}
	}
	if len(row.Stage2) > 0 {
		if err := json.Unmarshal(row.Stage2, &msg.Stage2); err != nil {
			return nil, err
		}
	}
	if len(row.Stage3) > 0 {
		if err := json.Unmarshal(row.Stage3, &msg.Stage3); err != nil {
			return nil, err
		}
	}
	if len(row.Meta) > 0 {
		if err := json.Unmarshal(row.Meta, &msg.Meta); err != nil {
			return nil, err
		}
	}
	msg.Metadata = msg.Meta
	return &msg, nil
}
