package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/zoomi/household-auth/internal/database"
	"github.com/zoomi/household-auth/internal/model"
)

type LinkingCodeRepository interface {
	// FindByCode returns the code whatever its state, so callers can tell
	// an expired code from an unknown one.
	FindByCode(ctx context.Context, code string) (*model.LinkingCode, error)
	// Replace removes the child's unused codes and stores the new one. It
	// returns nil without error when the code is taken by a live code.
	Replace(ctx context.Context, params model.CreateLinkingCodeParams) (*model.LinkingCode, error)
	// Consume marks a live code used and reports whether it did.
	Consume(ctx context.Context, code string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type linkingCodeRepo struct {
	db *database.DB
}

func NewLinkingCodeRepository(db *database.DB) LinkingCodeRepository {
	return &linkingCodeRepo{db: db}
}

func (r *linkingCodeRepo) FindByCode(ctx context.Context, code string) (*model.LinkingCode, error) {
	var lc model.LinkingCode
	err := r.db.GetContext(ctx, &lc, `
		SELECT * FROM linking_codes WHERE code = $1
	`, code)
	return HandleNotFound(&lc, err)
}

func (r *linkingCodeRepo) Replace(ctx context.Context, params model.CreateLinkingCodeParams) (*model.LinkingCode, error) {
	var lc *model.LinkingCode

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM linking_codes
			WHERE child_id = $1 AND used_at IS NULL
		`, params.ChildID); err != nil {
			return fmt.Errorf("delete previous codes: %w", err)
		}

		// a stale row holding the same code is recycled, a live one is not
		var created model.LinkingCode
		err := tx.GetContext(ctx, &created, `
			INSERT INTO linking_codes (code, child_id, expires_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET
				child_id = EXCLUDED.child_id,
				expires_at = EXCLUDED.expires_at,
				used_at = NULL,
				created_at = NOW()
			WHERE linking_codes.used_at IS NOT NULL OR linking_codes.expires_at <= NOW()
			RETURNING *
		`, params.Code, params.ChildID, params.ExpiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert code: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE children SET
				linking_code = $2,
				code_generated_at = $3,
				updated_at = NOW()
			WHERE id = $1
		`, params.ChildID, created.Code, created.CreatedAt); err != nil {
			return fmt.Errorf("update child code: %w", err)
		}

		lc = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lc, nil
}

func (r *linkingCodeRepo) Consume(ctx context.Context, code string) (bool, error) {
	consumed := false

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var childID string
		err := tx.GetContext(ctx, &childID, `
			UPDATE linking_codes SET used_at = NOW()
			WHERE code = $1 AND used_at IS NULL AND expires_at > NOW()
			RETURNING child_id
		`, code)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE children SET
				linking_code = NULL,
				code_generated_at = NULL,
				updated_at = NOW()
			WHERE id = $1 AND linking_code = $2
		`, childID, code); err != nil {
			return err
		}

		consumed = true
		return nil
	})
	return consumed, err
}

func (r *linkingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM linking_codes
		WHERE expires_at < NOW() OR used_at IS NOT NULL
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
