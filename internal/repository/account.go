package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zoomi/household-auth/internal/database"
	"github.com/zoomi/household-auth/internal/model"
)

type AccountRepository interface {
	// CreateAccount writes the user, its profile and, depending on the role,
	// the family or the owned child record in one transaction.
	CreateAccount(ctx context.Context, params model.CreateAccountParams) (*model.Profile, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindProfileByID(ctx context.Context, id string) (*model.Profile, error)
}

type accountRepo struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) CreateAccount(ctx context.Context, params model.CreateAccountParams) (*model.Profile, error) {
	var profile model.Profile

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		userID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash)
			VALUES ($1, $2, $3)
		`, userID, normalizeEmail(params.Email), params.PasswordHash); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		var familyID *string
		if params.Role == model.RoleParent {
			id := uuid.NewString()
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO families (id, parent_id, name)
				VALUES ($1, $2, $3)
			`, id, userID, params.FamilyName); err != nil {
				return fmt.Errorf("insert family: %w", err)
			}
			familyID = &id
		}

		if err := tx.GetContext(ctx, &profile, `
			INSERT INTO profiles (id, role, family_id, full_name, email)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		`, userID, params.Role, familyID, params.FullName, normalizeEmail(params.Email)); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}

		if params.Role == model.RoleIndependentChild {
			if _, err := insertChild(ctx, tx, model.CreateChildParams{
				UserID: &userID,
				Name:   params.ChildName,
				Age:    params.ChildAge,
			}); err != nil {
				return fmt.Errorf("insert child: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *accountRepo) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE email = $1
	`, normalizeEmail(email))
	return HandleNotFound(&user, err)
}

func (r *accountRepo) FindProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM profiles WHERE id = $1
	`, id)
	return HandleNotFound(&profile, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
