package usecase

import (
	"context"
	"errors"

	"github.com/iho/mpay/internal/domain"
)

// UserUseCase handles user management operations
type UserUseCase struct {
	userRepo UserRepository
	clock    Clock
}

// NewUserUseCase creates a new user use case
func NewUserUseCase(userRepo UserRepository, clock Clock) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
		clock:    clock,
	}
}

// CreateUser registers a new active user.
func (uc *UserUseCase) CreateUser(ctx context.Context, name string) (*domain.User, error) {
	name, err := domain.SanitizeUserName(name)
	if err != nil {
		return nil, err
	}

	// Check if user already exists
	_, err = uc.userRepo.GetByName(ctx, nil, name)
	if err == nil {
		return nil, domain.ErrUserExists
	}

	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	user := &domain.User{
		Name:      name,
		Active:    true,
		CreatedAt: uc.clock.Now(),
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// GetUser retrieves a user by name
func (uc *UserUseCase) GetUser(ctx context.Context, name string) (*domain.User, error) {
	return lookupUser(ctx, uc.userRepo, nil, name, false)
}

// ListUsers lists all users ordered by name
func (uc *UserUseCase) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return uc.userRepo.List(ctx, nil)
}

// DeactivateUser stops a user from taking part in new payments.
// Existing transactions and the derived balance are unaffected.
func (uc *UserUseCase) DeactivateUser(ctx context.Context, name string) error {
	user, err := lookupUser(ctx, uc.userRepo, nil, name, false)
	if err != nil {
		return err
	}

	return uc.userRepo.Deactivate(ctx, user.Name)
}
