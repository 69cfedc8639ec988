package store

import (
	"context"
	"testing"
	"time"

	"github.com/Tyrowin/gochat/internal/gateway"
)

// setupTestStore creates an in-memory SQLite store for testing.
func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()

	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("close error: %v", err)
		}
	})
	return s
}

func TestSQLStore_SavePublic(t *testing.T) {
	s := setupTestStore(t)
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	msg := &gateway.ChatMessage{
		Sender:    gateway.Identity{UserID: "u-alice", Username: "alice", AvatarRef: "alice.png"},
		Content:   "hello",
		Kind:      gateway.KindText,
		Room:      "general",
		CreatedAt: created,
	}

	id, err := s.Save(context.Background(), msg)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id == "" {
		t.Fatal("Save() returned empty id")
	}

	var found MessageRecord
	if err := s.db.First(&found, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to find saved message: %v", err)
	}
	if found.Content != "hello" {
		t.Errorf("expected content %q, got %q", "hello", found.Content)
	}
	if found.SenderName != "alice" || found.SenderAvatar != "alice.png" {
		t.Errorf("unexpected sender fields: %+v", found)
	}
	if found.RecipientID != nil {
		t.Errorf("expected nil recipient, got %q", *found.RecipientID)
	}
	if found.IsPrivate {
		t.Error("expected public message")
	}
	if !found.CreatedAt.Equal(created) {
		t.Errorf("expected createdAt %v, got %v", created, found.CreatedAt)
	}
}

func TestSQLStore_SavePrivate(t *testing.T) {
	s := setupTestStore(t)

	msg := &gateway.ChatMessage{
		Sender:      gateway.Identity{UserID: "u-alice", Username: "alice"},
		Content:     "psst",
		Kind:        gateway.KindText,
		Room:        "general",
		RecipientID: "u-bob",
		IsPrivate:   true,
		CreatedAt:   time.Now(),
	}

	id, err := s.Save(context.Background(), msg)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var found MessageRecord
	if err := s.db.First(&found, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to find saved message: %v", err)
	}
	if found.RecipientID == nil || *found.RecipientID != "u-bob" {
		t.Errorf("expected recipient u-bob, got %v", found.RecipientID)
	}
	if !found.IsPrivate {
		t.Error("expected private message")
	}
}

func TestSQLStore_UniqueIDs(t *testing.T) {
	s := setupTestStore(t)
	ids := make(map[string]bool)

	for i := 0; i < 20; i++ {
		id, err := s.Save(context.Background(), &gateway.ChatMessage{
			Sender:    gateway.Identity{UserID: "u1", Username: "u1"},
			Content:   "again",
			Kind:      gateway.KindText,
			Room:      "general",
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if ids[id] {
			t.Fatalf("duplicate id %s", id)
		}
		ids[id] = true
	}

	var count int64
	if err := s.db.Model(&MessageRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count error: %v", err)
	}
	if count != 20 {
		t.Errorf("expected 20 rows, got %d", count)
	}
}

func TestSQLStore_SaveAfterClose(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err = s.Save(context.Background(), &gateway.ChatMessage{
		Sender:    gateway.Identity{UserID: "u1", Username: "u1"},
		Content:   "too late",
		Kind:      gateway.KindText,
		Room:      "general",
		CreatedAt: time.Now(),
	})
	if err == nil {
		t.Error("expected error saving to a closed database")
	}
}
