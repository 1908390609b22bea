// Package pairing links a device to a child through a one-time code and
// remembers that link across restarts.
package pairing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/localstore"
	"github.com/zoomi/household-auth/internal/model"
	"github.com/zoomi/household-auth/internal/util"
)

// Gateway is the subset of the remote data gateway the pairing flow talks to.
type Gateway interface {
	GenerateLinkingCode(ctx context.Context, childID string) (string, error)
	VerifyLinkingCode(ctx context.Context, code string) (model.VerifyResult, error)
	GetLinkedChild(ctx context.Context, childID string) (*model.Child, error)
}

type Service struct {
	gateway Gateway
	store   localstore.Store
}

func NewService(gateway Gateway, store localstore.Store) *Service {
	return &Service{
		gateway: gateway,
		store:   store,
	}
}

// GenerateLinkingCode asks the backend for a fresh code for childID. It has no
// local side effects.
func (s *Service) GenerateLinkingCode(ctx context.Context, childID string) (string, error) {
	if childID == "" {
		return "", apperrors.MissingRequired("childId")
	}

	code, err := s.gateway.GenerateLinkingCode(ctx, childID)
	if err != nil {
		return "", fmt.Errorf("generate linking code: %w", err)
	}
	return code, nil
}

// RedeemCode verifies code with the backend and, on success, remembers the
// child on this device. Every failure is returned in the Result.
func (s *Service) RedeemCode(ctx context.Context, code string) model.Result[model.Child] {
	normalized := util.NormalizeLinkingCode(code)
	if !util.IsValidLinkingCode(normalized) {
		return model.Fail[model.Child](apperrors.ErrCodeInvalidCode, "Linking code must be 6 characters")
	}

	result, err := s.gateway.VerifyLinkingCode(ctx, normalized)
	if err != nil {
		log.Warn().Err(err).Str("code", util.MaskCode(normalized)).Msg("linking code verification failed")
		return verifyFailure(err)
	}

	if !result.Success || result.Child == nil {
		kind := apperrors.ErrCodeInvalidCode
		if result.Error == string(apperrors.ErrCodeCodeExpired) {
			kind = apperrors.ErrCodeCodeExpired
		}
		log.Info().Str("code", util.MaskCode(normalized)).Str("reason", string(kind)).Msg("linking code rejected")
		return model.Fail[model.Child](kind, rejectionMessage(kind))
	}

	if err := s.store.Set(ctx, localstore.KeyLinkedChildID, result.Child.ID); err != nil {
		log.Error().Err(err).Str("childId", result.Child.ID).Msg("failed to persist linked child")
		return model.Fail[model.Child](apperrors.ErrCodeInternal, "Failed to save pairing on this device")
	}

	log.Info().Str("childId", result.Child.ID).Msg("device paired")
	return model.Ok(result.Child.AsLinkedDevice())
}

// GetPersistedLinkedChild returns the child this device was paired with, or
// nil. A failed or empty lookup keeps the stored id so a later call can retry.
func (s *Service) GetPersistedLinkedChild(ctx context.Context) *model.Child {
	childID, ok := s.LinkedChildID(ctx)
	if !ok {
		return nil
	}

	child, err := s.gateway.GetLinkedChild(ctx, childID)
	if err != nil {
		log.Warn().Err(err).Str("childId", childID).Msg("failed to load linked child")
		return nil
	}
	if child == nil {
		log.Warn().Str("childId", childID).Msg("linked child not found")
		return nil
	}

	linked := child.AsLinkedDevice()
	return &linked
}

// ClearPairing forgets the linked child. Storage failures are logged only.
func (s *Service) ClearPairing(ctx context.Context) {
	if err := s.store.Remove(ctx, localstore.KeyLinkedChildID); err != nil {
		log.Error().Err(err).Msg("failed to clear pairing")
	}
}

// LinkedChildID returns the stored child id, if any.
func (s *Service) LinkedChildID(ctx context.Context) (string, bool) {
	childID, ok, err := s.store.Get(ctx, localstore.KeyLinkedChildID)
	if err != nil {
		log.Error().Err(err).Msg("failed to read linked child id")
		return "", false
	}
	if !ok || childID == "" {
		return "", false
	}
	return childID, true
}

// verifyFailure keeps INVALID_CODE and CODE_EXPIRED from the backend and
// reports every other failure as REMOTE_UNAVAILABLE with its message.
func verifyFailure(err error) model.Result[model.Child] {
	result := model.ResultFromError[model.Child](err)
	if result.Kind != apperrors.ErrCodeInvalidCode && result.Kind != apperrors.ErrCodeCodeExpired {
		result.Kind = apperrors.ErrCodeRemoteUnavailable
	}
	return result
}

func rejectionMessage(kind apperrors.ErrorCode) string {
	if kind == apperrors.ErrCodeCodeExpired {
		return "This code has expired. Ask a parent for a new one"
	}
	return "That code is not valid"
}
