package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tripunite/gateway/internal/domain"
)

// messageDoc matches the documents the REST service writes, so both share one
// collection.
type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Content   string             `bson:"content"`
	Sender    primitive.ObjectID `bson:"sender"`
	Chat      primitive.ObjectID `bson:"chat"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
	Version   int                `bson:"__v"`
}

func newMessageDoc(msg *domain.Message) (*messageDoc, error) {
	sender, err := toObjectID(msg.SenderID)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	chat, err := toObjectID(msg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	// Mongo stores milliseconds.
	createdAt = createdAt.UTC().Truncate(time.Millisecond)

	return &messageDoc{
		ID:        primitive.NewObjectIDFromTimestamp(createdAt),
		Content:   msg.Content,
		Sender:    sender,
		Chat:      chat,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// MessageStore writes relayed chat messages.
type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(c *Client) *MessageStore {
	return &MessageStore{coll: c.DB().Collection(messagesCollection)}
}

// CreateMessage inserts a message document.
func (s *MessageStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	doc, err := newMessageDoc(msg)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
