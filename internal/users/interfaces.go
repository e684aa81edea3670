package users

import (
	"context"
)

// UserStore defines the interface for user storage operations
type UserStore interface {
	CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

// UserService defines the interface for user service operations
type UserService interface {
	UserStore
}
