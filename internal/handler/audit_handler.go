package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-student-records/internal/model"
	"go-student-records/internal/service"
	"go-student-records/pkg/apierror"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := model.AuditQuery{
		Action:   strings.TrimSpace(query.Get("action")),
		Status:   strings.TrimSpace(query.Get("status")),
		Resource: strings.TrimSpace(query.Get("resource")),
		Page:     parseIntOrDefault(query.Get("page"), 1),
		Limit:    parseIntOrDefault(query.Get("limit"), 50),
	}

	if raw := strings.TrimSpace(query.Get("account_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, apierror.BadRequest("account_id must be a positive integer", raw))
			return
		}
		filter.AccountID = id
	}

	var err error
	if filter.From, err = parseTimeParam(query.Get("from"), "from"); err != nil {
		writeError(w, err)
		return
	}
	if filter.To, err = parseTimeParam(query.Get("to"), "to"); err != nil {
		writeError(w, err)
		return
	}

	items, meta, err := h.service.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items}, &meta)
}

func parseTimeParam(raw string, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apierror.BadRequest(name+" must be an RFC3339 timestamp", raw)
	}
	return &t, nil
}
