package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphStore implements UserStore with (:User) nodes in Neo4j
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewGraphStore creates a store over an existing driver
func NewGraphStore(driver neo4j.DriverWithContext, database string) *GraphStore {
	return &GraphStore{
		driver:   driver,
		database: database,
	}
}

const (
	createUserQuery = `
		CREATE (u:User {id: $id, name: $name, created_at: $created_at})
		RETURN u.id AS id, u.name AS name, u.created_at AS created_at`

	listUsersQuery = `
		MATCH (u:User)
		RETURN u.id AS id, u.name AS name, u.created_at AS created_at
		ORDER BY u.created_at ASC, u.id ASC`
)

func (s *GraphStore) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	params := map[string]any{
		"id":         uuid.New().String(),
		"name":       nil,
		"created_at": time.Now().UTC(),
	}
	// a null property is not stored at all
	if req.Name != nil {
		params["name"] = *req.Name
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, createUserQuery, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithWritersRouting())
	if err != nil {
		return nil, classify("create", "User", err, neo4j.IsConnectivityError)
	}
	if len(result.Records) != 1 {
		return nil, NewStorageQueryError("create", "User",
			fmt.Errorf("expected 1 record, got %d", len(result.Records)))
	}

	user, err := recordToUser(result.Records[0])
	if err != nil {
		return nil, NewStorageQueryError("create", "User", err)
	}
	return user, nil
}

func (s *GraphStore) ListUsers(ctx context.Context) ([]*User, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, listUsersQuery, nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, classify("match", "User", err, neo4j.IsConnectivityError)
	}

	out := make([]*User, 0, len(result.Records))
	for _, record := range result.Records {
		user, err := recordToUser(record)
		if err != nil {
			return nil, NewStorageQueryError("match", "User", err)
		}
		out = append(out, user)
	}
	return out, nil
}

func recordToUser(record *neo4j.Record) (*User, error) {
	values := record.AsMap()

	id, ok := values["id"].(string)
	if !ok {
		return nil, fmt.Errorf("user node without string id: %v", values["id"])
	}

	user := &User{ID: id}
	if name, ok := values["name"].(string); ok {
		user.Name = &name
	}
	if createdAt, ok := values["created_at"].(time.Time); ok {
		user.CreatedAt = createdAt.UTC()
	}
	return user, nil
}
