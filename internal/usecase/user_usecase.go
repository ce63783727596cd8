package usecase

import (
	"context"
	"log"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
	"fanlink/pkg/errors"
)

type UserUseCase struct {
	userRepo repository.UserRepository
}

func NewUserUseCase(userRepo repository.UserRepository) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
	}
}

type RegisterProfileInput struct {
	Email       string
	DisplayName string
	PhotoURL    string
	Role        string
}

type UpdateProfileInput struct {
	DisplayName string
	PhotoURL    string
	Bio         string
}

// RegisterProfile creates the profile record for an authenticated identity.
// The auth provider owns credentials; this only stores the display profile.
// Re-registering an existing id refreshes the profile instead of failing.
func (uc *UserUseCase) RegisterProfile(ctx context.Context, userID string, input RegisterProfileInput) (*entity.User, error) {
	role := input.Role
	switch role {
	case "", "fan":
		role = "fan"
	case "creator":
	default:
		return nil, errors.BadRequest("Role must be fan or creator", nil)
	}
	if input.DisplayName == "" {
		return nil, errors.BadRequest("Display name is required", nil)
	}

	if existing, err := uc.userRepo.GetByID(ctx, userID); err == nil {
		existing.Email = input.Email
		existing.DisplayName = input.DisplayName
		if input.PhotoURL != "" {
			existing.PhotoURL = input.PhotoURL
		}
		if err := uc.userRepo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	user := &entity.User{
		ID:          userID,
		Email:       input.Email,
		DisplayName: input.DisplayName,
		PhotoURL:    input.PhotoURL,
		Role:        role,
		Status:      "active",
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		log.Printf("RegisterProfile Error: %v", err)
		return nil, err
	}

	return user, nil
}

func (uc *UserUseCase) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	return uc.userRepo.GetByID(ctx, userID)
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != "" {
		user.DisplayName = input.DisplayName
	}
	if input.PhotoURL != "" {
		user.PhotoURL = input.PhotoURL
	}
	if input.Bio != "" {
		user.Bio = input.Bio
	}

	if err := uc.userRepo.Update(ctx, user); err != nil {
		log.Printf("UpdateProfile Error: %v", err)
		return nil, err
	}

	return user, nil
}
