package handler

import (
	"context"
	"net/http"

	"go-student-records/internal/model"
	"go-student-records/internal/service"
)

type CourseHandler struct {
	courses *service.CourseService
}

func NewCourseHandler(courses *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	items, meta, err := h.courses.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items, &meta)
}

func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	course, err := h.courses.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, course, nil)
}

func (h *CourseHandler) Users(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.courses.Users(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users, nil)
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CourseRequest
	if err := decodeAndValidate(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	course, err := h.courses.Create(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, course, nil)
}

func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.CourseRequest
	if err := decodeAndValidate(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	course, err := h.courses.Update(r.Context(), id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, course, nil)
}

func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.courses.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DeletedResponse{Deleted: 1}, nil)
}

func (h *CourseHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.courses.DeleteAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DeletedResponse{Deleted: n}, nil)
}

func (h *CourseHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	enroll(w, r, h.courses.AddUser, http.StatusCreated)
}

func (h *CourseHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	enroll(w, r, h.courses.RemoveUser, http.StatusOK)
}

type enrollmentFunc func(ctx context.Context, courseID int64, userID int64, actor model.AuditActor) error

func enroll(w http.ResponseWriter, r *http.Request, apply enrollmentFunc, status int) {
	courseID, err := pathID(r, "courseId")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := apply(r.Context(), courseID, userID, actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, status, model.Enrollment{CourseID: courseID, UserID: userID}, nil)
}
