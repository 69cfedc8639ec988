package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Tyrowin/gochat/internal/gateway"
)

const messageCollection = "messages"

// messageDocument is the MongoDB shape of a chat message.
type messageDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	SenderID    string             `bson:"sender_id"`
	SenderName  string             `bson:"sender_name"`
	Avatar      string             `bson:"sender_avatar,omitempty"`
	Content     string             `bson:"content"`
	Kind        string             `bson:"type"`
	Room        string             `bson:"room"`
	RecipientID string             `bson:"recipient_id,omitempty"`
	IsPrivate   bool               `bson:"is_private"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// MongoStore persists chat messages in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, connectionString, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Save inserts msg and returns the hex object id.
func (s *MongoStore) Save(ctx context.Context, msg *gateway.ChatMessage) (string, error) {
	doc := messageDocument{
		ID:          primitive.NewObjectID(),
		SenderID:    msg.Sender.UserID,
		SenderName:  msg.Sender.Username,
		Avatar:      msg.Sender.AvatarRef,
		Content:     msg.Content,
		Kind:        string(msg.Kind),
		Room:        msg.Room,
		RecipientID: msg.RecipientID,
		IsPrivate:   msg.IsPrivate,
		CreatedAt:   msg.CreatedAt,
	}

	if _, err := s.db.Collection(messageCollection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to save message: %w", err)
	}
	return doc.ID.Hex(), nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
