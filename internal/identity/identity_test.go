package identity

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zoomi/household-auth/internal/model"
)

type fakeProvider struct {
	mu           sync.Mutex
	session      *model.Session
	getErr       error
	signInErr    error
	signOutCalls int
	listeners    map[int]func(*model.Session)
	nextID       int
}

func newFakeProvider(session *model.Session) *fakeProvider {
	return &fakeProvider{session: session, listeners: map[int]func(*model.Session){}}
}

func (p *fakeProvider) GetSession(_ context.Context) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, p.getErr
	}
	return p.session, nil
}

func (p *fakeProvider) OnSessionChange(fn func(*model.Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *fakeProvider) SignUp(ctx context.Context, params model.SignUpParams) (*model.Session, error) {
	return p.SignIn(ctx, model.Credentials{Email: params.Email, Password: params.Password})
}

func (p *fakeProvider) SignIn(_ context.Context, _ model.Credentials) (*model.Session, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	session := parentSession()
	p.setSession(session)
	return session, nil
}

func (p *fakeProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.signOutCalls++
	hadSession := p.session != nil
	p.mu.Unlock()

	if hadSession {
		p.setSession(nil)
	}
	return nil
}

// setSession replaces the session and notifies listeners synchronously.
func (p *fakeProvider) setSession(session *model.Session) {
	p.mu.Lock()
	p.session = session
	fns := make([]func(*model.Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(session)
	}
}

func (p *fakeProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

type mockGateway struct {
	mock.Mock
}

func childOrNil(args mock.Arguments) (*model.Child, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Child), args.Error(1)
}

func (m *mockGateway) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockGateway) GetChild(ctx context.Context, childID string) (*model.Child, error) {
	return childOrNil(m.Called(ctx, childID))
}

func (m *mockGateway) GetChildByOwner(ctx context.Context, userID string) (*model.Child, error) {
	return childOrNil(m.Called(ctx, userID))
}

func (m *mockGateway) GetLinkedChild(ctx context.Context, childID string) (*model.Child, error) {
	return childOrNil(m.Called(ctx, childID))
}

func (m *mockGateway) GenerateLinkingCode(ctx context.Context, childID string) (string, error) {
	args := m.Called(ctx, childID)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) VerifyLinkingCode(ctx context.Context, code string) (model.VerifyResult, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(model.VerifyResult), args.Error(1)
}

func (m *mockGateway) ListChildren(ctx context.Context) ([]model.Child, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Child), args.Error(1)
}

func (m *mockGateway) AddChild(ctx context.Context, name string, age int) (*model.Child, error) {
	return childOrNil(m.Called(ctx, name, age))
}

type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func strPtr(s string) *string { return &s }

func parentSession() *model.Session {
	return &model.Session{UserID: "p1", Token: "tok-p1", ExpiresAt: time.Now().Add(time.Hour)}
}

func kidSession() *model.Session {
	return &model.Session{UserID: "k1", Token: "tok-k1", ExpiresAt: time.Now().Add(time.Hour)}
}

func parentProfile() *model.Profile {
	return &model.Profile{ID: "p1", Role: model.RoleParent, FamilyID: strPtr("f1"), FullName: "Ana"}
}

func kidProfile() *model.Profile {
	return &model.Profile{ID: "k1", Role: model.RoleIndependentChild, FullName: "Leo"}
}

func familyChild() *model.Child {
	return &model.Child{ID: "c1", FamilyID: strPtr("f1"), Name: "Mina", Age: 7, CurrentStep: 3, TotalSteps: 30}
}
