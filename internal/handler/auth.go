package handler

import (
	"context"
	"net/http"

	"github.com/zoomi/household-auth/internal/audit"
	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/httputil"
	"github.com/zoomi/household-auth/internal/middleware"
	"github.com/zoomi/household-auth/internal/model"
)

type AuthService interface {
	SignUp(ctx context.Context, params model.SignUpParams) (*model.Session, error)
	SignIn(ctx context.Context, creds model.Credentials) (*model.Session, error)
	SignOut(ctx context.Context, token string, everywhere bool) error
}

type AuthHandler struct {
	auth AuthService
}

func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type signOutRequest struct {
	Everywhere bool `json:"everywhere"`
}

// POST /v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var params model.SignUpParams
	if err := decodeJSON(r, &params, false); err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.auth.SignUp(r.Context(), params)
	if err != nil {
		writeServiceError(w, err, "sign up")
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventAccountCreate,
		UserID:  session.UserID,
		Details: map[string]interface{}{"role": string(params.Role)},
	})

	writeJSON(w, http.StatusCreated, session)
}

// POST /v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeJSON(r, &creds, false); err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.auth.SignIn(r.Context(), creds)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeInvalidCredentials) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventSignInFailure})
		}
		writeServiceError(w, err, "sign in")
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventSignInSuccess,
		UserID: session.UserID,
	})

	writeJSON(w, http.StatusOK, session)
}

// GET /v1/auth/session
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	writeJSON(w, http.StatusOK, model.Session{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	})
}

// POST /v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var req signOutRequest
	if err := decodeJSON(r, &req, true); err != nil {
		httputil.WriteError(w, err)
		return
	}

	session := middleware.GetSession(r.Context())
	if err := h.auth.SignOut(r.Context(), middleware.GetToken(r.Context()), req.Everywhere); err != nil {
		writeServiceError(w, err, "sign out")
		return
	}

	eventType := audit.EventSignOut
	if req.Everywhere {
		eventType = audit.EventSignOutAll
	}
	event := audit.Event{Type: eventType}
	if session != nil {
		event.UserID = session.UserID
	}
	audit.LogFromRequest(r, event)

	w.WriteHeader(http.StatusNoContent)
}
