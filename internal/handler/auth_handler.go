package handler

import (
	"net/http"
	"strings"

	"go-student-records/internal/auth"
	"go-student-records/internal/model"
	"go-student-records/internal/service"
)

type AuthHandler struct {
	accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeAndValidate(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.accounts.Register(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeAndValidate(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.accounts.Login(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

// Refresh exchanges the bearer token in the Authorization header, which may
// already be expired, for a new refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token := ""
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		token = strings.TrimSpace(header[7:])
	}

	tokens, err := h.accounts.Refresh(r.Context(), token, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	me, err := h.accounts.Me(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, me, nil)
}
