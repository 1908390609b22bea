package service

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/model"
	"github.com/zoomi/household-auth/internal/repository"
	"github.com/zoomi/household-auth/internal/util"
)

// FamilyService serves profile and child reads with per-requester access
// checks.
type FamilyService struct {
	accounts repository.AccountRepository
	children repository.ChildRepository
}

func NewFamilyService(accounts repository.AccountRepository, children repository.ChildRepository) *FamilyService {
	return &FamilyService{
		accounts: accounts,
		children: children,
	}
}

// GetProfile returns the requester's own profile.
func (s *FamilyService) GetProfile(ctx context.Context, requesterID, profileID string) (*model.Profile, error) {
	if profileID != requesterID {
		return nil, apperrors.Forbidden("Profiles can only be read by their owner")
	}

	profile, err := s.accounts.FindProfileByID(ctx, profileID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find profile: %w", err))
	}
	if profile == nil {
		return nil, apperrors.NotFound("Profile")
	}
	return profile, nil
}

// GetChild returns a child the requester owns or is the parent of.
func (s *FamilyService) GetChild(ctx context.Context, requesterID, childID string) (*model.Child, error) {
	child, err := s.findChild(ctx, childID)
	if err != nil {
		return nil, err
	}

	if child.UserID != nil && *child.UserID == requesterID {
		return child, nil
	}

	profile, err := s.requireParent(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if child.FamilyID == nil || *child.FamilyID != *profile.FamilyID {
		return nil, apperrors.Forbidden("Child belongs to another family")
	}
	return child, nil
}

// GetChildByOwner returns the child record of an independent child account.
func (s *FamilyService) GetChildByOwner(ctx context.Context, requesterID, ownerID string) (*model.Child, error) {
	if ownerID != requesterID {
		return nil, apperrors.Forbidden("Children can only be looked up by their owner")
	}

	child, err := s.children.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find child by owner: %w", err))
	}
	if child == nil {
		return nil, apperrors.NotFound("Child")
	}
	return child, nil
}

// GetLinkedChild is the session-less read used by paired devices.
func (s *FamilyService) GetLinkedChild(ctx context.Context, childID string) (*model.Child, error) {
	return s.findChild(ctx, childID)
}

func (s *FamilyService) ListChildren(ctx context.Context, requesterID string) ([]model.Child, error) {
	profile, err := s.requireParent(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	children, err := s.children.FindByFamilyID(ctx, *profile.FamilyID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list children: %w", err))
	}
	return children, nil
}

func (s *FamilyService) AddChild(ctx context.Context, requesterID, name string, age int) (*model.Child, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if err := ValidateChildAge(age); err != nil {
		return nil, err
	}

	profile, err := s.requireParent(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	child, err := s.children.Create(ctx, model.CreateChildParams{
		FamilyID: profile.FamilyID,
		Name:     name,
		Age:      age,
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create child: %w", err))
	}
	return child, nil
}

func (s *FamilyService) findChild(ctx context.Context, childID string) (*model.Child, error) {
	if !util.IsValidUUID(childID) {
		return nil, apperrors.NotFound("Child")
	}

	child, err := s.children.FindByID(ctx, childID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find child: %w", err))
	}
	if child == nil {
		return nil, apperrors.NotFound("Child")
	}
	return child, nil
}

// requireParent loads the requester's profile and checks it heads a family.
func (s *FamilyService) requireParent(ctx context.Context, requesterID string) (*model.Profile, error) {
	profile, err := s.accounts.FindProfileByID(ctx, requesterID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find profile: %w", err))
	}
	if profile == nil || profile.Role != model.RoleParent || profile.FamilyID == nil {
		return nil, apperrors.Forbidden("Only parents can manage children")
	}
	return profile, nil
}
