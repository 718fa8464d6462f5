package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/core/ports"
)

type StatusUseCase struct {
	profiles ports.ProfileStore
}

func NewStatusUseCase(profiles ports.ProfileStore) *StatusUseCase {
	return &StatusUseCase{profiles: profiles}
}

// Status reports the owner's job state. An owner without a profile has never
// uploaded, which reads as NONE.
func (uc *StatusUseCase) Status(ctx context.Context, ownerID string) (domain.StatusReport, error) {
	if strings.TrimSpace(ownerID) == "" {
		return domain.StatusReport{}, domain.WrapError(domain.ErrUnauthorized, "statement status", fmt.Errorf("owner identity is required"))
	}
	profile, err := uc.profiles.GetProfile(ctx, ownerID)
	if err != nil {
		if domain.IsKind(err, domain.ErrProfileNotFound) {
			return domain.NewProcessingJob().Report(), nil
		}
		return domain.StatusReport{}, fmt.Errorf("load profile: %w", err)
	}
	return profile.Job.Report(), nil
}
