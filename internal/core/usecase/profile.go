package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/core/ports"
)

type ProfileUseCase struct {
	profiles ports.ProfileStore
}

func NewProfileUseCase(profiles ports.ProfileStore) *ProfileUseCase {
	return &ProfileUseCase{profiles: profiles}
}

func (uc *ProfileUseCase) GetProfile(ctx context.Context, ownerID string) (*domain.Profile, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "get profile", fmt.Errorf("owner identity is required"))
	}
	profile, err := uc.profiles.EnsureProfile(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

func (uc *ProfileUseCase) UpdatePreferences(ctx context.Context, ownerID string, prefs domain.Preferences) (*domain.Profile, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "update profile", fmt.Errorf("owner identity is required"))
	}
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	if _, err := uc.profiles.EnsureProfile(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if err := uc.profiles.UpdatePreferences(ctx, ownerID, prefs); err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	profile, err := uc.profiles.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	return profile, nil
}
