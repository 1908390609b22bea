package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/model"
	"github.com/zoomi/household-auth/internal/repository"
	"github.com/zoomi/household-auth/internal/util"
)

const (
	minPasswordLength = 6
	minChildAge       = 3
	maxChildAge       = 18
	defaultFamilyName = "My Family"
)

// SessionEventPublisher notifies devices that a session ended. An empty
// tokenHash means every session of the user.
type SessionEventPublisher interface {
	PublishSessionRevoked(ctx context.Context, userID, tokenHash string) error
}

type AuthService struct {
	accounts   repository.AccountRepository
	sessions   repository.SessionRepository
	publisher  SessionEventPublisher
	sessionTTL time.Duration
}

func NewAuthService(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	publisher SessionEventPublisher,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		accounts:   accounts,
		sessions:   sessions,
		publisher:  publisher,
		sessionTTL: sessionTTL,
	}
}

// SignUp registers an account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, params model.SignUpParams) (*model.Session, error) {
	if err := ValidateSignUp(params); err != nil {
		return nil, err
	}

	existing, err := s.accounts.FindUserByEmail(ctx, params.Email)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find user: %w", err))
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("Account")
	}

	hash, err := util.HashPassword(params.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password").WithCause(err)
	}

	profile, err := s.accounts.CreateAccount(ctx, model.CreateAccountParams{
		Email:        params.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(params.FullName),
		Role:         params.Role,
		FamilyName:   defaultFamilyName,
		ChildName:    strings.TrimSpace(params.ChildName),
		ChildAge:     params.ChildAge,
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create account: %w", err))
	}

	log.Info().
		Str("userId", profile.ID).
		Str("role", string(profile.Role)).
		Msg("account created")

	return s.issueSession(ctx, profile)
}

// SignIn checks the password and opens a new session. Unknown emails and wrong
// passwords fail the same way.
func (s *AuthService) SignIn(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, apperrors.InvalidCredentials()
	}

	user, err := s.accounts.FindUserByEmail(ctx, creds.Email)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find user: %w", err))
	}
	if user == nil || !util.CheckPasswordHash(creds.Password, user.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	profile, err := s.accounts.FindProfileByID(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find profile: %w", err))
	}
	if profile == nil {
		// the session is still issued: the device resolves a missing profile
		// by signing out again
		log.Warn().Str("userId", user.ID).Msg("signing in user without profile")
		profile = &model.Profile{ID: user.ID}
	}

	return s.issueSession(ctx, profile)
}

func (s *AuthService) issueSession(ctx context.Context, profile *model.Profile) (*model.Session, error) {
	token, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate session token").WithCause(err)
	}

	now := time.Now()
	record := model.SessionRecord{
		UserID:    profile.ID,
		Role:      profile.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, util.HashToken(token), record); err != nil {
		return nil, apperrors.Internal("Failed to store session").WithCause(err)
	}

	return &model.Session{
		UserID:    record.UserID,
		Token:     token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// ValidateSession returns the session behind token or UNAUTHORIZED.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*model.SessionRecord, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("Missing session token")
	}

	record, err := s.sessions.FindByTokenHash(ctx, util.HashToken(token))
	if err != nil {
		return nil, apperrors.Internal("Failed to load session").WithCause(err)
	}
	if record == nil || time.Now().After(record.ExpiresAt) {
		return nil, apperrors.Unauthorized("Invalid or expired session")
	}
	return record, nil
}

// SignOut ends the session behind token, or every session of its user when
// everywhere is set, and tells the affected devices.
func (s *AuthService) SignOut(ctx context.Context, token string, everywhere bool) error {
	record, err := s.ValidateSession(ctx, token)
	if err != nil {
		return err
	}

	tokenHash := util.HashToken(token)
	if everywhere {
		if _, err := s.sessions.DeleteAllForUser(ctx, record.UserID); err != nil {
			return apperrors.Internal("Failed to delete sessions").WithCause(err)
		}
		tokenHash = ""
	} else if err := s.sessions.Delete(ctx, tokenHash, record.UserID); err != nil {
		return apperrors.Internal("Failed to delete session").WithCause(err)
	}

	if err := s.publisher.PublishSessionRevoked(ctx, record.UserID, tokenHash); err != nil {
		log.Warn().Err(err).Str("userId", record.UserID).Msg("failed to publish session revocation")
	}

	return nil
}

// ValidateSignUp checks sign-up input before anything is written.
func ValidateSignUp(params model.SignUpParams) error {
	if !util.IsValidEmail(strings.TrimSpace(params.Email)) {
		return apperrors.InvalidInput("email", "must be a valid email address")
	}
	if len(params.Password) < minPasswordLength {
		return apperrors.InvalidInput("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if strings.TrimSpace(params.FullName) == "" {
		return apperrors.MissingRequired("fullName")
	}
	if !params.Role.Valid() {
		return apperrors.InvalidInput("role", "must be parent or child_independent")
	}
	if params.Role == model.RoleIndependentChild {
		if strings.TrimSpace(params.ChildName) == "" {
			return apperrors.MissingRequired("childName")
		}
		if err := ValidateChildAge(params.ChildAge); err != nil {
			return err
		}
	}
	return nil
}

func ValidateChildAge(age int) error {
	if age < minChildAge || age > maxChildAge {
		return apperrors.InvalidInput("age", fmt.Sprintf("must be between %d and %d", minChildAge, maxChildAge))
	}
	return nil
}
