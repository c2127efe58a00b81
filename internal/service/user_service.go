package service

import (
	"context"

	"go-student-records/internal/model"
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	List(ctx context.Context, page int, limit int) ([]model.User, model.Meta, error)
	Create(ctx context.Context, req model.UserRequest) (model.User, error)
	Update(ctx context.Context, id int64, req model.UserRequest) (model.User, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Courses(ctx context.Context, userID int64) ([]model.Course, error)
}

type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) List(ctx context.Context, page int, limit int) ([]model.User, model.Meta, error) {
	return s.users.List(ctx, page, limit)
}

func (s *UserService) Get(ctx context.Context, id int64) (model.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) Create(ctx context.Context, req model.UserRequest) (model.User, error) {
	return s.users.Create(ctx, req)
}

func (s *UserService) Update(ctx context.Context, id int64, req model.UserRequest) (model.User, error) {
	return s.users.Update(ctx, id, req)
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.users.Delete(ctx, id)
}

func (s *UserService) DeleteAll(ctx context.Context) (int64, error) {
	return s.users.DeleteAll(ctx)
}

func (s *UserService) Courses(ctx context.Context, id int64) ([]model.Course, error) {
	return s.users.Courses(ctx, id)
}
