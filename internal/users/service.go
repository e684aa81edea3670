package users

import (
	"context"
	"fmt"
	"time"
)

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	store   UserStore
	timeout time.Duration
}

// NewUserService creates a new user service instance. A zero timeout leaves
// store calls bounded only by the request context.
func NewUserService(store UserStore, timeout time.Duration) *UserServiceImpl {
	return &UserServiceImpl{
		store:   store,
		timeout: timeout,
	}
}

// CreateUser creates a new user
func (s *UserServiceImpl) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if req == nil {
		req = &CreateUserRequest{}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.CreateUser(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// ListUsers returns every stored user
func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]*User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	list, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if list == nil {
		list = []*User{}
	}
	return list, nil
}

func (s *UserServiceImpl) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
