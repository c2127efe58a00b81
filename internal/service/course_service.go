package service

import (
	"context"
	"fmt"

	"go-student-records/internal/model"
)

type CourseStore interface {
	FindByID(ctx context.Context, id int64) (model.Course, error)
	List(ctx context.Context, page int, limit int) ([]model.Course, model.Meta, error)
	Create(ctx context.Context, req model.CourseRequest) (model.Course, error)
	Update(ctx context.Context, id int64, req model.CourseRequest) (model.Course, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Users(ctx context.Context, courseID int64) ([]model.User, error)
	AddUser(ctx context.Context, courseID int64, userID int64) error
	RemoveUser(ctx context.Context, courseID int64, userID int64) error
	IsEnrolled(ctx context.Context, userID int64, courseID int64) (bool, error)
}

type CourseService struct {
	courses CourseStore
	audit   *AuditService
}

func NewCourseService(courses CourseStore, audit *AuditService) *CourseService {
	return &CourseService{courses: courses, audit: audit}
}

func (s *CourseService) List(ctx context.Context, page int, limit int) ([]model.Course, model.Meta, error) {
	return s.courses.List(ctx, page, limit)
}

func (s *CourseService) Get(ctx context.Context, id int64) (model.Course, error) {
	return s.courses.FindByID(ctx, id)
}

func (s *CourseService) Users(ctx context.Context, id int64) ([]model.User, error) {
	return s.courses.Users(ctx, id)
}

func (s *CourseService) Create(ctx context.Context, req model.CourseRequest) (model.Course, error) {
	return s.courses.Create(ctx, req)
}

func (s *CourseService) Update(ctx context.Context, id int64, req model.CourseRequest) (model.Course, error) {
	return s.courses.Update(ctx, id, req)
}

func (s *CourseService) Delete(ctx context.Context, id int64) error {
	return s.courses.Delete(ctx, id)
}

func (s *CourseService) DeleteAll(ctx context.Context) (int64, error) {
	return s.courses.DeleteAll(ctx)
}

// AddUser enrolls userID in courseID subject to the course capacity.
func (s *CourseService) AddUser(ctx context.Context, courseID int64, userID int64, actor model.AuditActor) error {
	resource := enrollmentResource(courseID, userID)
	if err := s.courses.AddUser(ctx, courseID, userID); err != nil {
		s.audit.Failure(ctx, model.AuditEnroll, actor, resource, err)
		return err
	}

	s.audit.Success(ctx, model.AuditEnroll, actor, resource)
	return nil
}

func (s *CourseService) RemoveUser(ctx context.Context, courseID int64, userID int64, actor model.AuditActor) error {
	resource := enrollmentResource(courseID, userID)
	if err := s.courses.RemoveUser(ctx, courseID, userID); err != nil {
		s.audit.Failure(ctx, model.AuditUnenroll, actor, resource, err)
		return err
	}

	s.audit.Success(ctx, model.AuditUnenroll, actor, resource)
	return nil
}

func enrollmentResource(courseID int64, userID int64) string {
	return fmt.Sprintf("course:%d/user:%d", courseID, userID)
}
