package service

import (
	"context"
	"fmt"
	"time"

	"notevault-server/internal/domain"
	"notevault-server/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	user.Password = ""
	return user, nil
}

func (s *UserService) UpdateEmail(ctx context.Context, userID, newEmail string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	if user.Email != newEmail {
		emailExists, err := s.userRepo.EmailExists(ctx, newEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if emailExists {
			return nil, domain.ErrEmailTaken
		}
	}

	user.Email = newEmail
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	user.Password = ""
	return user, nil
}
