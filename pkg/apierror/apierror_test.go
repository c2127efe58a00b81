package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	require.Equal(t, "NOT_FOUND: course not found", NotFound("course not found").Error())
	require.Equal(t, "CONFLICT: course is full (course 7)", Conflict("course is full", "course 7").Error())

	var nilErr *APIError
	require.Equal(t, "", nilErr.Error())
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    *APIError
		code   string
		status int
	}{
		{BadRequest("bad", ""), CodeBadRequest, http.StatusBadRequest},
		{Unauthorized("who"), CodeUnauthorized, http.StatusUnauthorized},
		{Forbidden("no"), CodeForbidden, http.StatusForbidden},
		{NotFound("gone"), CodeNotFound, http.StatusNotFound},
		{AlreadyExists("dup", ""), CodeAlreadyExists, http.StatusConflict},
		{Conflict("clash", ""), CodeConflict, http.StatusConflict},
		{Internal("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		require.Equal(t, tt.code, tt.err.Code)
		require.Equal(t, tt.status, tt.err.HTTPStatus)
	}
}

func TestAPIError_Unwrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("add user: %w", Conflict("course is full", ""))

	var apiErr *APIError
	require.True(t, errors.As(wrapped, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.HTTPStatus)
}
