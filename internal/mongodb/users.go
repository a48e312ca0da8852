package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tripunite/gateway/internal/domain"
)

// userDoc is the subset of the users collection read at handshake.
type userDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email,omitempty"`
	CreatedAt time.Time          `bson:"createdAt,omitempty"`
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		CreatedAt: d.CreatedAt,
	}
}

// UserStore looks up users by id.
type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(c *Client) *UserStore {
	return &UserStore{coll: c.DB().Collection(usersCollection)}
}

// GetByID finds a user by its hex ObjectID. Ids that are not ObjectIDs cannot name a
// user and return domain.ErrUserNotFound.
func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := toObjectID(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	opts := options.FindOne().SetProjection(bson.D{
		{Key: "name", Value: 1},
		{Key: "email", Value: 1},
		{Key: "createdAt", Value: 1},
	})

	var doc userDoc
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}
