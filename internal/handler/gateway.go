package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zoomi/household-auth/internal/audit"
	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/httputil"
	"github.com/zoomi/household-auth/internal/middleware"
	"github.com/zoomi/household-auth/internal/model"
	"github.com/zoomi/household-auth/internal/util"
)

type FamilyService interface {
	GetProfile(ctx context.Context, requesterID, profileID string) (*model.Profile, error)
	GetChild(ctx context.Context, requesterID, childID string) (*model.Child, error)
	GetChildByOwner(ctx context.Context, requesterID, ownerID string) (*model.Child, error)
	GetLinkedChild(ctx context.Context, childID string) (*model.Child, error)
	ListChildren(ctx context.Context, requesterID string) ([]model.Child, error)
	AddChild(ctx context.Context, requesterID, name string, age int) (*model.Child, error)
}

type LinkingService interface {
	GenerateCode(ctx context.Context, requesterID, childID string) (*model.LinkingCode, error)
	Verify(ctx context.Context, code string) (model.VerifyResult, error)
}

// GatewayHandler serves the family data and pairing endpoints.
type GatewayHandler struct {
	family  FamilyService
	linking LinkingService
}

func NewGatewayHandler(family FamilyService, linking LinkingService) *GatewayHandler {
	return &GatewayHandler{
		family:  family,
		linking: linking,
	}
}

type addChildRequest struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

type linkingCodeResponse struct {
	Code      string `json:"code"`
	ExpiresAt string `json:"expiresAt"`
}

type childrenResponse struct {
	Children []model.Child `json:"children"`
}

// GET /v1/profiles/{id}
func (h *GatewayHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	profile, err := h.family.GetProfile(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "get profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// GET /v1/children/{id}
func (h *GatewayHandler) GetChild(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	child, err := h.family.GetChild(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "get child")
		return
	}

	writeJSON(w, http.StatusOK, child)
}

// GET /v1/children and GET /v1/children?owner={userID}
func (h *GatewayHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	if owner := r.URL.Query().Get("owner"); owner != "" {
		child, err := h.family.GetChildByOwner(r.Context(), session.UserID, owner)
		if err != nil {
			writeServiceError(w, err, "get child by owner")
			return
		}
		writeJSON(w, http.StatusOK, child)
		return
	}

	children, err := h.family.ListChildren(r.Context(), session.UserID)
	if err != nil {
		writeServiceError(w, err, "list children")
		return
	}
	if children == nil {
		children = []model.Child{}
	}

	writeJSON(w, http.StatusOK, childrenResponse{Children: children})
}

// POST /v1/children
func (h *GatewayHandler) AddChild(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	var req addChildRequest
	if err := decodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, err)
		return
	}

	child, err := h.family.AddChild(r.Context(), session.UserID, req.Name, req.Age)
	if err != nil {
		writeServiceError(w, err, "add child")
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventChildCreate,
		UserID:  session.UserID,
		ChildID: child.ID,
	})

	writeJSON(w, http.StatusCreated, child)
}

// POST /v1/children/{id}/linking-code
func (h *GatewayHandler) GenerateLinkingCode(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	lc, err := h.linking.GenerateCode(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "generate linking code")
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventCodeGenerate,
		UserID:  session.UserID,
		ChildID: lc.ChildID,
		Details: map[string]interface{}{"code": util.MaskCode(lc.Code)},
	})

	writeJSON(w, http.StatusOK, linkingCodeResponse{
		Code:      lc.Code,
		ExpiresAt: lc.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// POST /v1/linking-codes/verify
//
// Rejected codes are a 200 with success=false so devices can tell a bad code
// from an unreachable backend.
func (h *GatewayHandler) VerifyLinkingCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req, false); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.linking.Verify(r.Context(), req.Code)
	if err != nil {
		writeServiceError(w, err, "verify linking code")
		return
	}

	event := audit.Event{
		Type:    audit.EventCodeRedeem,
		Details: map[string]interface{}{"code": util.MaskCode(util.NormalizeLinkingCode(req.Code))},
	}
	if result.Success {
		event.ChildID = result.Child.ID
	} else {
		event.Type = audit.EventCodeReject
		event.Details["reason"] = result.Error
	}
	audit.LogFromRequest(r, event)

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/linked-children/{id}
func (h *GatewayHandler) GetLinkedChild(w http.ResponseWriter, r *http.Request) {
	child, err := h.family.GetLinkedChild(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "get linked child")
		return
	}

	writeJSON(w, http.StatusOK, child)
}

// writeServiceError logs unexpected failures before writing err.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInternal, apperrors.ErrCodeDatabase:
		log.Error().Err(err).Str("op", op).Msg("request failed")
	}
	httputil.WriteError(w, err)
}
