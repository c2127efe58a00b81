package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go-student-records/internal/auth"
	"go-student-records/internal/model"
)

type mockAccountStore struct {
	mock.Mock
}

func (m *mockAccountStore) FindByID(ctx context.Context, id int64) (model.Account, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *mockAccountStore) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *mockAccountStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountStore) CreateWithProfile(ctx context.Context, username string, passwordHash string, role auth.Role) (model.Account, error) {
	args := m.Called(ctx, username, passwordHash, role)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *mockAccountStore) Create(ctx context.Context, username string, passwordHash string, role auth.Role) (model.Account, error) {
	args := m.Called(ctx, username, passwordHash, role)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *mockAccountStore) Update(ctx context.Context, account model.Account) (model.Account, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *mockAccountStore) LinkUser(ctx context.Context, accountID int64, userID int64) (model.Account, error) {
	args := m.Called(ctx, accountID, userID)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *mockAccountStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockAccountStore) DeleteAll(ctx context.Context, keepID int64) (int64, error) {
	args := m.Called(ctx, keepID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAccountStore) List(ctx context.Context, page int, limit int) ([]model.Account, model.Meta, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(model.Meta), args.Error(2)
	}
	return args.Get(0).([]model.Account), args.Get(1).(model.Meta), args.Error(2)
}
