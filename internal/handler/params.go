package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-student-records/pkg/apierror"
)

func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest(name+" must be a positive integer", raw)
	}
	return id, nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func pageParams(r *http.Request) (int, int) {
	query := r.URL.Query()
	return parseIntOrDefault(query.Get("page"), 1), parseIntOrDefault(query.Get("limit"), 50)
}
