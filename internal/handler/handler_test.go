package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/httputil"
	"github.com/zoomi/household-auth/internal/middleware"
	"github.com/zoomi/household-auth/internal/model"
)

const (
	testToken   = "tok-parent"
	testUserID  = "user-1"
	testChildID = "6f1c7a52-7d0e-4a57-9a43-2a1bde0f3c11"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) SignUp(ctx context.Context, params model.SignUpParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockAuthService) SignIn(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockAuthService) SignOut(ctx context.Context, token string, everywhere bool) error {
	args := m.Called(ctx, token, everywhere)
	return args.Error(0)
}

// ValidateSession accepts testToken only.
func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*model.SessionRecord, error) {
	if token != testToken {
		return nil, apperrors.Unauthorized("Invalid or expired session")
	}
	return &model.SessionRecord{UserID: testUserID, Role: model.RoleParent, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type mockFamilyService struct {
	mock.Mock
}

func (m *mockFamilyService) GetProfile(ctx context.Context, requesterID, profileID string) (*model.Profile, error) {
	args := m.Called(ctx, requesterID, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockFamilyService) GetChild(ctx context.Context, requesterID, childID string) (*model.Child, error) {
	args := m.Called(ctx, requesterID, childID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Child), args.Error(1)
}

func (m *mockFamilyService) GetChildByOwner(ctx context.Context, requesterID, ownerID string) (*model.Child, error) {
	args := m.Called(ctx, requesterID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Child), args.Error(1)
}

func (m *mockFamilyService) GetLinkedChild(ctx context.Context, childID string) (*model.Child, error) {
	args := m.Called(ctx, childID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Child), args.Error(1)
}

func (m *mockFamilyService) ListChildren(ctx context.Context, requesterID string) ([]model.Child, error) {
	args := m.Called(ctx, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Child), args.Error(1)
}

func (m *mockFamilyService) AddChild(ctx context.Context, requesterID, name string, age int) (*model.Child, error) {
	args := m.Called(ctx, requesterID, name, age)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Child), args.Error(1)
}

type mockLinkingService struct {
	mock.Mock
}

func (m *mockLinkingService) GenerateCode(ctx context.Context, requesterID, childID string) (*model.LinkingCode, error) {
	args := m.Called(ctx, requesterID, childID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkingCode), args.Error(1)
}

func (m *mockLinkingService) Verify(ctx context.Context, code string) (model.VerifyResult, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(model.VerifyResult), args.Error(1)
}

type fixture struct {
	auth    *mockAuthService
	family  *mockFamilyService
	linking *mockLinkingService
	broker  *fakeBroker
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		auth:    new(mockAuthService),
		family:  new(mockFamilyService),
		linking: new(mockLinkingService),
		broker:  newFakeBroker(),
	}

	events := NewEventsHandler(f.broker)
	events.heartbeat = 20 * time.Millisecond

	r := chi.NewRouter()
	Routes{
		Auth:        NewAuthHandler(f.auth),
		Gateway:     NewGatewayHandler(f.family, f.linking),
		Events:      events,
		RequireAuth: middleware.NewAuthMiddleware(f.auth).Handler,
	}.Mount(r)
	f.router = r

	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandler(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	t.Run("sign in returns session", func(t *testing.T) {
		f := newFixture(t)
		creds := model.Credentials{Email: "pat@example.com", Password: "secret123"}
		f.auth.On("SignIn", mock.Anything, creds).
			Return(&model.Session{UserID: testUserID, Token: "new-token", ExpiresAt: expires}, nil)

		rec := f.do(t, "POST", "/v1/auth/signin", creds, false)

		require.Equal(t, http.StatusOK, rec.Code)
		var session model.Session
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
		assert.Equal(t, "new-token", session.Token)
		assert.True(t, expires.Equal(session.ExpiresAt))
	})

	t.Run("sign in failure maps to 401", func(t *testing.T) {
		f := newFixture(t)
		f.auth.On("SignIn", mock.Anything, mock.Anything).Return(nil, apperrors.InvalidCredentials())

		rec := f.do(t, "POST", "/v1/auth/signin", model.Credentials{Email: "x@y.z", Password: "nope"}, false)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, apperrors.ErrCodeInvalidCredentials, decodeError(t, rec).Code)
	})

	t.Run("sign up returns 201", func(t *testing.T) {
		f := newFixture(t)
		f.auth.On("SignUp", mock.Anything, mock.MatchedBy(func(p model.SignUpParams) bool {
			return p.Role == model.RoleIndependentChild && p.ChildAge == 12
		})).Return(&model.Session{UserID: "kid-1", Token: "t", ExpiresAt: expires}, nil)

		rec := f.do(t, "POST", "/v1/auth/signup", model.SignUpParams{
			Email: "kid@example.com", Password: "secret123", FullName: "Kid",
			Role: model.RoleIndependentChild, ChildName: "Kid", ChildAge: 12,
		}, false)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("malformed body is a validation error", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest("POST", "/v1/auth/signin", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.auth.AssertNotCalled(t, "SignIn", mock.Anything, mock.Anything)
	})

	t.Run("session omits the token", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, "GET", "/v1/auth/session", nil, true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "token")
		assert.Contains(t, rec.Body.String(), testUserID)
	})

	t.Run("session without token is 401", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, "GET", "/v1/auth/session", nil, false)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("sign out with empty body revokes this session", func(t *testing.T) {
		f := newFixture(t)
		f.auth.On("SignOut", mock.Anything, testToken, false).Return(nil)

		rec := f.do(t, "POST", "/v1/auth/signout", nil, true)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		f.auth.AssertExpectations(t)
	})

	t.Run("sign out everywhere", func(t *testing.T) {
		f := newFixture(t)
		f.auth.On("SignOut", mock.Anything, testToken, true).Return(nil)

		rec := f.do(t, "POST", "/v1/auth/signout", map[string]bool{"everywhere": true}, true)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		f.auth.AssertExpectations(t)
	})
}

func TestGatewayHandler(t *testing.T) {
	child := &model.Child{ID: testChildID, Name: "Mia", Age: 7}

	t.Run("get profile", func(t *testing.T) {
		f := newFixture(t)
		f.family.On("GetProfile", mock.Anything, testUserID, testUserID).
			Return(&model.Profile{ID: testUserID, Role: model.RoleParent}, nil)

		rec := f.do(t, "GET", "/v1/profiles/"+testUserID, nil, true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"role":"parent"`)
	})

	t.Run("missing profile is 404", func(t *testing.T) {
		f := newFixture(t)
		f.family.On("GetProfile", mock.Anything, testUserID, testUserID).Return(nil, apperrors.NotFound("Profile"))

		rec := f.do(t, "GET", "/v1/profiles/"+testUserID, nil, true)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("child by owner query", func(t *testing.T) {
		f := newFixture(t)
		f.family.On("GetChildByOwner", mock.Anything, testUserID, testUserID).Return(child, nil)

		rec := f.do(t, "GET", "/v1/children?owner="+testUserID, nil, true)

		require.Equal(t, http.StatusOK, rec.Code)
		f.family.AssertNotCalled(t, "ListChildren", mock.Anything, mock.Anything)
	})

	t.Run("list children wraps array", func(t *testing.T) {
		f := newFixture(t)
		f.family.On("ListChildren", mock.Anything, testUserID).Return([]model.Child(nil), nil)

		rec := f.do(t, "GET", "/v1/children", nil, true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"children":[]}`, rec.Body.String())
	})

	t.Run("add child", func(t *testing.T) {
		f := newFixture(t)
		f.family.On("AddChild", mock.Anything, testUserID, "Mia", 7).Return(child, nil)

		rec := f.do(t, "POST", "/v1/children", addChildRequest{Name: "Mia", Age: 7}, true)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("forbidden child", func(t *testing.T) {
		f := newFixture(t)
		f.family.On("GetChild", mock.Anything, testUserID, testChildID).
			Return(nil, apperrors.Forbidden("Child belongs to another family"))

		rec := f.do(t, "GET", "/v1/children/"+testChildID, nil, true)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("generate linking code", func(t *testing.T) {
		f := newFixture(t)
		expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		f.linking.On("GenerateCode", mock.Anything, testUserID, testChildID).
			Return(&model.LinkingCode{Code: "ABC234", ChildID: testChildID, ExpiresAt: expires}, nil)

		rec := f.do(t, "POST", "/v1/children/"+testChildID+"/linking-code", nil, true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"code":"ABC234","expiresAt":"2030-01-02T03:04:05Z"}`, rec.Body.String())
	})

	t.Run("verify needs no session and rejects with 200", func(t *testing.T) {
		f := newFixture(t)
		f.linking.On("Verify", mock.Anything, "ZZZ999").
			Return(model.VerifyResult{Success: false, Error: "CODE_EXPIRED"}, nil)

		rec := f.do(t, "POST", "/v1/linking-codes/verify", verifyRequest{Code: "ZZZ999"}, false)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"CODE_EXPIRED"}`, rec.Body.String())
	})

	t.Run("verify success returns child", func(t *testing.T) {
		f := newFixture(t)
		f.linking.On("Verify", mock.Anything, "ABC234").
			Return(model.VerifyResult{Success: true, Child: child}, nil)

		rec := f.do(t, "POST", "/v1/linking-codes/verify", verifyRequest{Code: "ABC234"}, false)

		require.Equal(t, http.StatusOK, rec.Code)
		var result model.VerifyResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.Equal(t, testChildID, result.Child.ID)
	})

	t.Run("verify backend failure is 500", func(t *testing.T) {
		f := newFixture(t)
		f.linking.On("Verify", mock.Anything, "ABC234").
			Return(model.VerifyResult{}, apperrors.Database(assert.AnError))

		rec := f.do(t, "POST", "/v1/linking-codes/verify", verifyRequest{Code: "ABC234"}, false)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("linked child needs no session", func(t *testing.T) {
		f := newFixture(t)
		f.family.On("GetLinkedChild", mock.Anything, testChildID).Return(child, nil)

		rec := f.do(t, "GET", "/v1/linked-children/"+testChildID, nil, false)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("protected routes require a session", func(t *testing.T) {
		f := newFixture(t)

		for _, path := range []string{"/v1/children", "/v1/profiles/" + testUserID, "/v1/children/" + testChildID} {
			rec := f.do(t, "GET", path, nil, false)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		}
	})
}

func TestLimitsAreApplied(t *testing.T) {
	f := newFixture(t)
	limited := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteError(w, apperrors.RateLimitExceeded())
		})
	}

	r := chi.NewRouter()
	Routes{
		Auth:        NewAuthHandler(f.auth),
		Gateway:     NewGatewayHandler(f.family, f.linking),
		Events:      NewEventsHandler(f.broker),
		RequireAuth: middleware.NewAuthMiddleware(f.auth).Handler,
		SignInLimit: limited,
		VerifyLimit: limited,
		LookupLimit: limited,
	}.Mount(r)

	for _, tc := range []struct{ method, path string }{
		{"POST", "/v1/auth/signin"},
		{"POST", "/v1/linking-codes/verify"},
		{"GET", "/v1/linked-children/" + testChildID},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, tc.path)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLinkedChildLookupHasItsOwnLimit(t *testing.T) {
	f := newFixture(t)
	f.family.On("GetLinkedChild", mock.Anything, testChildID).
		Return(&model.Child{ID: testChildID, Name: "Mia", Age: 7}, nil)
	limited := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteError(w, apperrors.RateLimitExceeded())
		})
	}

	r := chi.NewRouter()
	Routes{
		Auth:        NewAuthHandler(f.auth),
		Gateway:     NewGatewayHandler(f.family, f.linking),
		Events:      NewEventsHandler(f.broker),
		RequireAuth: middleware.NewAuthMiddleware(f.auth).Handler,
		VerifyLimit: limited,
	}.Mount(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/linking-codes/verify", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/linked-children/"+testChildID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
