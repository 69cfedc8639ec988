// Package store provides the persistence collaborators of the gateway: message
// stores backed by SQLite or MongoDB and a Redis presence recorder.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tyrowin/gochat/internal/gateway"
)

// MessageRecord is the relational row for a chat message.
type MessageRecord struct {
	ID           string    `gorm:"primarykey;size:36"`
	SenderID     string    `gorm:"size:64;not null;index:idx_messages_pair,priority:1"`
	SenderName   string    `gorm:"size:50;not null"`
	SenderAvatar string    `gorm:"size:500"`
	Content      string    `gorm:"size:8000;not null"`
	Kind         string    `gorm:"size:10;not null;default:text"`
	Room         string    `gorm:"size:200;not null;default:general;index:idx_messages_room,priority:1"`
	RecipientID  *string   `gorm:"size:64;index:idx_messages_pair,priority:2"`
	IsPrivate    bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null;index:idx_messages_room,priority:2;index:idx_messages_pair,priority:3"`
}

// TableName returns the table name for MessageRecord.
func (MessageRecord) TableName() string {
	return "messages"
}

// SQLStore persists chat messages through GORM.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the SQLite database at path and migrates the
// messages table. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an open GORM handle and migrates the messages table.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&MessageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate messages table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Save inserts msg and returns its id.
func (s *SQLStore) Save(ctx context.Context, msg *gateway.ChatMessage) (string, error) {
	record := MessageRecord{
		ID:           uuid.New().String(),
		SenderID:     msg.Sender.UserID,
		SenderName:   msg.Sender.Username,
		SenderAvatar: msg.Sender.AvatarRef,
		Content:      msg.Content,
		Kind:         string(msg.Kind),
		Room:         msg.Room,
		IsPrivate:    msg.IsPrivate,
		CreatedAt:    msg.CreatedAt,
	}
	if msg.RecipientID != "" {
		recipient := msg.RecipientID
		record.RecipientID = &recipient
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to save message: %w", err)
	}
	return record.ID, nil
}

// Close releases the underlying database connection.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
