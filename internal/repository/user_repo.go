package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"go-student-records/internal/model"
)

const userColumns = `id, first_name, last_name, email, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func collectUsers(rows pgx.Rows) ([]model.User, error) {
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, page int, limit int) ([]model.User, model.Meta, error) {
	page, limit, offset := pageBounds(page, limit)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list users: %w", err)
	}

	users, err := collectUsers(rows)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list users: %w", err)
	}
	return users, model.NewMeta(page, limit, total), nil
}

func (r *UserRepository) Create(ctx context.Context, req model.UserRequest) (model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (first_name, last_name, email)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), strings.TrimSpace(req.Email)))
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, req model.UserRequest) (model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, email = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), strings.TrimSpace(req.Email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Courses lists the courses userID is enrolled in.
func (r *UserRepository) Courses(ctx context.Context, userID int64) ([]model.Course, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		return nil, model.ErrUserNotFound
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+courseSelect+`
		 FROM courses c
		 JOIN enrollments e ON e.course_id = c.id
		 WHERE e.user_id = $1
		 ORDER BY c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user courses: %w", err)
	}

	courses, err := collectCourses(rows)
	if err != nil {
		return nil, fmt.Errorf("list user courses: %w", err)
	}
	return courses, nil
}
