package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/model"
	"github.com/zoomi/household-auth/internal/repository"
	"github.com/zoomi/household-auth/internal/util"
)

const maxCodeAttempts = 10

// LinkingService issues and redeems linking codes. A code is valid for the
// configured TTL, a newer code for the same child replaces it, and a
// successful verification consumes it.
type LinkingService struct {
	family   *FamilyService
	codes    repository.LinkingCodeRepository
	children repository.ChildRepository
	ttl      time.Duration
}

func NewLinkingService(
	family *FamilyService,
	codes repository.LinkingCodeRepository,
	children repository.ChildRepository,
	ttl time.Duration,
) *LinkingService {
	return &LinkingService{
		family:   family,
		codes:    codes,
		children: children,
		ttl:      ttl,
	}
}

// GenerateCode issues a fresh code for a child of the requesting parent.
func (s *LinkingService) GenerateCode(ctx context.Context, requesterID, childID string) (*model.LinkingCode, error) {
	child, err := s.family.GetChild(ctx, requesterID, childID)
	if err != nil {
		return nil, err
	}
	if child.FamilyID == nil {
		return nil, apperrors.Forbidden("Only family children can be linked to a device")
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := util.GenerateLinkingCode()
		if err != nil {
			return nil, apperrors.Internal("Failed to generate code").WithCause(err)
		}

		lc, err := s.codes.Replace(ctx, model.CreateLinkingCodeParams{
			Code:      code,
			ChildID:   child.ID,
			ExpiresAt: time.Now().Add(s.ttl),
		})
		if err != nil {
			return nil, apperrors.Database(fmt.Errorf("store linking code: %w", err))
		}
		if lc != nil {
			return lc, nil
		}

		log.Debug().Int("attempt", attempt+1).Msg("linking code collision, retrying")
	}

	return nil, apperrors.Internal("Failed to allocate a unique linking code")
}

// Verify redeems code. Rejections are reported in the result, not as errors;
// the error is reserved for failures of the backend itself.
func (s *LinkingService) Verify(ctx context.Context, code string) (model.VerifyResult, error) {
	normalized := util.NormalizeLinkingCode(code)
	if !util.IsValidLinkingCode(normalized) {
		return rejected(apperrors.ErrCodeInvalidCode), nil
	}

	lc, err := s.codes.FindByCode(ctx, normalized)
	if err != nil {
		return model.VerifyResult{}, apperrors.Database(fmt.Errorf("find linking code: %w", err))
	}
	if lc == nil || lc.IsUsed() {
		return rejected(apperrors.ErrCodeInvalidCode), nil
	}
	if lc.IsExpired() {
		return rejected(apperrors.ErrCodeCodeExpired), nil
	}

	consumed, err := s.codes.Consume(ctx, normalized)
	if err != nil {
		return model.VerifyResult{}, apperrors.Database(fmt.Errorf("consume linking code: %w", err))
	}
	if !consumed {
		// lost a race with another device or with expiry
		return rejected(apperrors.ErrCodeInvalidCode), nil
	}

	child, err := s.children.FindByID(ctx, lc.ChildID)
	if err != nil {
		return model.VerifyResult{}, apperrors.Database(fmt.Errorf("find child: %w", err))
	}
	if child == nil {
		return rejected(apperrors.ErrCodeInvalidCode), nil
	}

	return model.VerifyResult{Success: true, Child: child}, nil
}

func rejected(code apperrors.ErrorCode) model.VerifyResult {
	return model.VerifyResult{Success: false, Error: string(code)}
}
