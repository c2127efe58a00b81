package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-student-records/internal/model"
	"go-student-records/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    apierror.CodeInternal,
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	var valErr *ValidationError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
		body.Code = apierror.CodeValidation
		body.Message = "request validation failed"
		body.Fields = valErr.Fields()
	case errors.Is(err, model.ErrAccountNotFound),
		errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrCourseNotFound):
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = err.Error()
	case errors.Is(err, model.ErrUsernameTaken):
		status = http.StatusConflict
		body.Code = apierror.CodeAlreadyExists
		body.Message = "username already exists"
	case errors.Is(err, model.ErrProfileLinked),
		errors.Is(err, model.ErrCourseFull),
		errors.Is(err, model.ErrAlreadyEnrolled),
		errors.Is(err, model.ErrNotEnrolled),
		errors.Is(err, model.ErrCapacityTooLow):
		status = http.StatusConflict
		body.Code = apierror.CodeConflict
		body.Message = err.Error()
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = "invalid credentials"
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = "authentication required"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = apierror.CodeForbidden
		body.Message = "access denied"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = apierror.CodeBadRequest
		body.Message = "invalid input"
	default:
		slog.Error("unhandled error in writeError", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
