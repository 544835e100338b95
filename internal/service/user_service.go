package service

import (
	"context"

	"ojudge/internal/model"
	"ojudge/internal/repository"
)

// UserService manages judge accounts.
type UserService struct {
	store repository.UserStore
}

func NewUserService(store repository.UserStore) *UserService {
	return &UserService{store: store}
}

// Save creates the user when no id is given, or renames an existing one.
func (s *UserService) Save(ctx context.Context, user model.User) (model.User, error) {
	return s.store.SaveUser(ctx, user)
}

// List returns all users in ascending id order.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.store.ListUsers(ctx)
}
