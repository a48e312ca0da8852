package mongodb

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func toObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid object id %q: %w", id, err)
	}
	return oid, nil
}
