package handler

import (
	"net/http"

	"go-student-records/internal/model"
	"go-student-records/internal/service"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	items, meta, err := h.accounts.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items, &meta)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, account, nil)
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateAccountRequest
	if err := decodeAndValidate(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accounts.Create(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, account, nil)
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateAccountRequest
	if err := decodeAndValidate(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accounts.Update(r.Context(), id, payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, account, nil)
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.Delete(r.Context(), id, actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DeletedResponse{Deleted: 1}, nil)
}

func (h *AccountHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.accounts.DeleteAll(r.Context(), actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DeletedResponse{Deleted: n}, nil)
}

func (h *AccountHandler) LinkUser(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountId")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accounts.LinkUser(r.Context(), accountID, userID, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, account, nil)
}
