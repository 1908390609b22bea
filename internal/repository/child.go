package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/zoomi/household-auth/internal/database"
	"github.com/zoomi/household-auth/internal/model"
)

type ChildRepository interface {
	FindByID(ctx context.Context, id string) (*model.Child, error)
	FindByOwner(ctx context.Context, userID string) (*model.Child, error)
	FindByFamilyID(ctx context.Context, familyID string) ([]model.Child, error)
	Create(ctx context.Context, params model.CreateChildParams) (*model.Child, error)
}

type childRepo struct {
	db database.DBTX
}

func NewChildRepository(db database.DBTX) ChildRepository {
	return &childRepo{db: db}
}

func (r *childRepo) FindByID(ctx context.Context, id string) (*model.Child, error) {
	var child model.Child
	err := r.db.GetContext(ctx, &child, `
		SELECT * FROM children WHERE id = $1
	`, id)
	return HandleNotFound(&child, err)
}

func (r *childRepo) FindByOwner(ctx context.Context, userID string) (*model.Child, error) {
	var child model.Child
	err := r.db.GetContext(ctx, &child, `
		SELECT * FROM children WHERE user_id = $1
	`, userID)
	return HandleNotFound(&child, err)
}

func (r *childRepo) FindByFamilyID(ctx context.Context, familyID string) ([]model.Child, error) {
	children := []model.Child{}
	err := r.db.SelectContext(ctx, &children, `
		SELECT * FROM children
		WHERE family_id = $1
		ORDER BY created_at ASC
	`, familyID)
	return children, err
}

func (r *childRepo) Create(ctx context.Context, params model.CreateChildParams) (*model.Child, error) {
	return insertChild(ctx, r.db, params)
}

func insertChild(ctx context.Context, db database.DBTX, params model.CreateChildParams) (*model.Child, error) {
	var child model.Child
	err := db.GetContext(ctx, &child, `
		INSERT INTO children (id, family_id, user_id, name, age)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, uuid.NewString(), params.FamilyID, params.UserID, params.Name, params.Age)
	if err != nil {
		return nil, err
	}
	return &child, nil
}
