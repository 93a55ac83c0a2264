// Package store persists conversations and the council messages inside
// them, behind the ConversationStore contract external to the orchestrator.
//
// Grounded on ai-notetaking-be's internal/repository: a contract interface
// plus a GORM-backed implementation, the same split as
// internal/repository/contract + internal/repository/implementation. The
// persisted row shapes mirror internal/model's use of gorm.io/datatypes for
// JSON columns (see model/notification_model.go) and
// github.com/pgvector/pgvector-go for a vector column (see
// model/note_embedding_model.go).
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversationRow is the conversations table.
type ConversationRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title       string    `gorm:"type:varchar(200);not null;default:'New conversation'"`
	TitleSource string    `gorm:"type:varchar(20);not null;default:'derived'"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (ConversationRow) TableName() string { return "council_conversations" }

// MessageRow is one turn of a conversation. User turns populate Content;
// assistant turns populate the four JSON columns and leave Content empty.
type MessageRow struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index:idx_council_messages_conversation,priority:1"`
	Sequence       int            `gorm:"not null;index:idx_council_messages_conversation,priority:2"`
	Role           string         `gorm:"type:varchar(20);not null"`
	Content        string         `gorm:"type:text"`
	Stage1         datatypes.JSON `gorm:"type:jsonb"`
	Stage2         datatypes.JSON `gorm:"type:jsonb"`
	Stage3         datatypes.JSON `gorm:"type:jsonb"`
	Meta           datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
}

func (MessageRow) TableName() string { return "council_messages" }

// StageAnswerEmbedding holds an optional embedding of one Stage-1 answer,
// keyed by message and label. Nothing in the deliberation pipeline reads
// this column today; it exists so a future semantic-search feature over
// past council answers has somewhere to land without a schema migration.
type StageAnswerEmbedding struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MessageID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Label     string          `gorm:"type:varchar(4);not null"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (StageAnswerEmbedding) TableName() string { return "council_stage_answer_embeddings" }

// Migrate runs the auto-migration for every row type this package owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ConversationRow{}, &MessageRow{}, &StageAnswerEmbedding{})
}
