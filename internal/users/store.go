package users

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserSchema represents the users table schema for the bun-backed stores
type UserSchema struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      *string   `bun:"name" json:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// BunStore implements UserStore on top of bun, for both PostgreSQL and SQLite.
// The users table is created on first use and retried until it succeeds, so a
// database that was down at startup is usable once it comes back.
type BunStore struct {
	db *bun.DB

	schemaMu     sync.Mutex
	schemaReady  bool
	createSchema func(ctx context.Context) error
}

// NewBunStore creates a new user store instance
func NewBunStore(db *bun.DB) *BunStore {
	s := &BunStore{
		db: db,
	}
	s.createSchema = s.createTable
	return s
}

func (s *BunStore) createTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*UserSchema)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// ensureSchema runs createSchema until it has succeeded once
func (s *BunStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schemaReady {
		return nil
	}
	if err := s.createSchema(ctx); err != nil {
		return classify("create table", "users", err, isSQLConnError)
	}
	s.schemaReady = true
	return nil
}

// CreateUser inserts one row and returns it as stored
func (s *BunStore) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	schema := UserSchema{
		ID:   uuid.New().String(),
		Name: req.Name,
		// postgres and sqlite keep microseconds
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := s.db.NewInsert().
		Model(&schema).
		Exec(ctx)
	if err != nil {
		return nil, classify("insert", "users", err, isSQLConnError)
	}

	return UserSchemaToUser(schema), nil
}

// ListUsers returns every row ordered by creation time
func (s *BunStore) ListUsers(ctx context.Context) ([]*User, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var rows []UserSchema
	err := s.db.NewSelect().
		Model(&rows).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, classify("find", "users", err, isSQLConnError)
	}

	out := make([]*User, 0, len(rows))
	for _, row := range rows {
		out = append(out, UserSchemaToUser(row))
	}
	return out, nil
}

func isSQLConnError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Helper conversion functions
func UserSchemaToUser(schema UserSchema) *User {
	return &User{
		ID:        schema.ID,
		Name:      schema.Name,
		CreatedAt: schema.CreatedAt.UTC(),
	}
}
