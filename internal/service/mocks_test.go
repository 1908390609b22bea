package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zoomi/household-auth/internal/model"
	"github.com/zoomi/household-auth/internal/repository"
)

var (
	_ repository.AccountRepository     = (*mockAccountRepo)(nil)
	_ repository.ChildRepository       = (*mockChildRepo)(nil)
	_ repository.LinkingCodeRepository = (*mockLinkingCodeRepo)(nil)
	_ repository.SessionRepository     = (*mockSessionRepo)(nil)
	_ SessionEventPublisher            = (*mockPublisher)(nil)
)

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) CreateAccount(ctx context.Context, params model.CreateAccountParams) (*model.Profile, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockAccountRepo) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockAccountRepo) FindProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

type mockChildRepo struct {
	mock.Mock
}

func (m *mockChildRepo) FindByID(ctx context.Context, id string) (*model.Child, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Child), args.Error(1)
}

func (m *mockChildRepo) FindByOwner(ctx context.Context, userID string) (*model.Child, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Child), args.Error(1)
}

func (m *mockChildRepo) FindByFamilyID(ctx context.Context, familyID string) ([]model.Child, error) {
	args := m.Called(ctx, familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Child), args.Error(1)
}

func (m *mockChildRepo) Create(ctx context.Context, params model.CreateChildParams) (*model.Child, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Child), args.Error(1)
}

type mockLinkingCodeRepo struct {
	mock.Mock
}

func (m *mockLinkingCodeRepo) FindByCode(ctx context.Context, code string) (*model.LinkingCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkingCode), args.Error(1)
}

func (m *mockLinkingCodeRepo) Replace(ctx context.Context, params model.CreateLinkingCodeParams) (*model.LinkingCode, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkingCode), args.Error(1)
}

func (m *mockLinkingCodeRepo) Consume(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockLinkingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) Create(ctx context.Context, tokenHash string, record model.SessionRecord) error {
	args := m.Called(ctx, tokenHash, record)
	return args.Error(0)
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.SessionRecord, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRecord), args.Error(1)
}

func (m *mockSessionRepo) Delete(ctx context.Context, tokenHash string, userID string) error {
	args := m.Called(ctx, tokenHash, userID)
	return args.Error(0)
}

func (m *mockSessionRepo) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockSessionRepo) PruneStale(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSessionRevoked(ctx context.Context, userID, tokenHash string) error {
	args := m.Called(ctx, userID, tokenHash)
	return args.Error(0)
}

func strPtr(s string) *string {
	return &s
}

func parentProfile(id, familyID string) *model.Profile {
	return &model.Profile{ID: id, Role: model.RoleParent, FamilyID: strPtr(familyID), FullName: "Pat Parent"}
}

func familyChild(id, familyID string) *model.Child {
	return &model.Child{ID: id, FamilyID: strPtr(familyID), Name: "Mia", Age: 7}
}
