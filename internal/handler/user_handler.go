package handler

import (
	"net/http"

	"go-student-records/internal/model"
	"go-student-records/internal/service"
)

type UserHandler struct {
	users   *service.UserService
	courses *service.CourseService
}

func NewUserHandler(users *service.UserService, courses *service.CourseService) *UserHandler {
	return &UserHandler{users: users, courses: courses}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	items, meta, err := h.users.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items, &meta)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) Courses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	courses, err := h.users.Courses(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, courses, nil)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.UserRequest
	if err := decodeAndValidate(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Create(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, nil)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UserRequest
	if err := decodeAndValidate(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Update(r.Context(), id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DeletedResponse{Deleted: 1}, nil)
}

func (h *UserHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.users.DeleteAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DeletedResponse{Deleted: n}, nil)
}

// AddCourse and DropCourse mirror the course-side enrollment routes.
func (h *UserHandler) AddCourse(w http.ResponseWriter, r *http.Request) {
	enroll(w, r, h.courses.AddUser, http.StatusCreated)
}

func (h *UserHandler) DropCourse(w http.ResponseWriter, r *http.Request) {
	enroll(w, r, h.courses.RemoveUser, http.StatusOK)
}
