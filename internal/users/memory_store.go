package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps users in process memory. Records are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users []User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make([]User, 0, 16)}
}

func (s *MemoryStore) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewStorageConnectionError("insert", "users", err)
	}

	user := User{
		ID:        uuid.New().String(),
		Name:      copyName(req.Name),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.users = append(s.users, user)
	s.mu.Unlock()

	out := user
	return &out, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewStorageConnectionError("find", "users", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*User, len(s.users))
	for i := range s.users {
		u := s.users[i]
		u.Name = copyName(u.Name)
		out[i] = &u
	}
	return out, nil
}

func copyName(name *string) *string {
	if name == nil {
		return nil
	}
	n := *name
	return &n
}
