package users

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// userDocument is the BSON shape of a user in the users collection
type userDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      *string            `bson:"name,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MongoStore implements UserStore on a MongoDB collection
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a store over an already connected collection
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// CreateUser inserts one document. The ObjectID is generated client side, as the driver does by default.
func (s *MongoStore) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	doc := userDocument{
		ID:   primitive.NewObjectID(),
		Name: req.Name,
		// BSON dates carry millisecond precision
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, classify("insert", s.coll.Name(), err, isMongoConnError)
	}

	return doc.toUser(), nil
}

// ListUsers returns the whole collection in natural order
func (s *MongoStore) ListUsers(ctx context.Context) ([]*User, error) {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, classify("find", s.coll.Name(), err, isMongoConnError)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("find", s.coll.Name(), err, isMongoConnError)
	}

	out := make([]*User, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toUser())
	}
	return out, nil
}

func (d userDocument) toUser() *User {
	return &User{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func isMongoConnError(err error) bool {
	var selectionErr topology.ServerSelectionError
	return errors.As(err, &selectionErr) ||
		mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected)
}
