package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"go-student-records/internal/model"
)

const courseSelect = `c.id, c.name, c.description, c.max_capacity,
	(SELECT COUNT(*) FROM enrollments en WHERE en.course_id = c.id) AS enrolled,
	c.created_at, c.updated_at`

type CourseRepository struct {
	db DBTX
}

func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

func scanCourse(row pgx.Row) (model.Course, error) {
	var c model.Course
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.MaxCapacity, &c.Enrolled, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func collectCourses(rows pgx.Rows) ([]model.Course, error) {
	defer rows.Close()

	courses := make([]model.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *CourseRepository) FindByID(ctx context.Context, id int64) (model.Course, error) {
	c, err := scanCourse(r.db.QueryRow(ctx, `SELECT `+courseSelect+` FROM courses c WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Course{}, model.ErrCourseNotFound
	}
	if err != nil {
		return model.Course{}, fmt.Errorf("find course by id: %w", err)
	}
	return c, nil
}

func (r *CourseRepository) List(ctx context.Context, page int, limit int) ([]model.Course, model.Meta, error) {
	page, limit, offset := pageBounds(page, limit)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM courses`).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count courses: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+courseSelect+` FROM courses c ORDER BY c.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list courses: %w", err)
	}

	courses, err := collectCourses(rows)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list courses: %w", err)
	}
	return courses, model.NewMeta(page, limit, total), nil
}

func (r *CourseRepository) Create(ctx context.Context, req model.CourseRequest) (model.Course, error) {
	c := model.Course{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		MaxCapacity: req.MaxCapacity,
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO courses (name, description, max_capacity)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		c.Name, c.Description, c.MaxCapacity).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Course{}, fmt.Errorf("create course: %w", err)
	}
	return c, nil
}

// Update rewrites a course. The new capacity may not drop below the current
// enrollment count.
func (r *CourseRepository) Update(ctx context.Context, id int64, req model.CourseRequest) (model.Course, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Course{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, enrolled, err := lockCourse(ctx, tx, id)
	if err != nil {
		return model.Course{}, err
	}
	if req.MaxCapacity < enrolled {
		return model.Course{}, model.ErrCapacityTooLow
	}

	c := model.Course{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		MaxCapacity: req.MaxCapacity,
		Enrolled:    enrolled,
	}
	err = tx.QueryRow(ctx,
		`UPDATE courses SET name = $2, description = $3, max_capacity = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		id, c.Name, c.Description, c.MaxCapacity).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Course{}, fmt.Errorf("update course: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Course{}, fmt.Errorf("commit transaction: %w", err)
	}
	return c, nil
}

func (r *CourseRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCourseNotFound
	}
	return nil
}

func (r *CourseRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM courses`)
	if err != nil {
		return 0, fmt.Errorf("delete courses: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Users lists the profiles enrolled in courseID.
func (r *CourseRepository) Users(ctx context.Context, courseID int64) ([]model.User, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, courseID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check course exists: %w", err)
	}
	if !exists {
		return nil, model.ErrCourseNotFound
	}

	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.first_name, u.last_name, u.email, u.created_at, u.updated_at
		 FROM users u
		 JOIN enrollments e ON e.user_id = u.id
		 WHERE e.course_id = $1
		 ORDER BY u.id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course users: %w", err)
	}

	users, err := collectUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("list course users: %w", err)
	}
	return users, nil
}

// AddUser enrolls userID in courseID. The course row is locked so concurrent
// enrollments cannot exceed the capacity.
func (r *CourseRepository) AddUser(ctx context.Context, courseID int64, userID int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	capacity, enrolled, err := lockCourse(ctx, tx, courseID)
	if err != nil {
		return err
	}

	var userExists, already bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1),
		        EXISTS(SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`,
		userID, courseID).Scan(&userExists, &already)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !userExists {
		return model.ErrUserNotFound
	}
	if enrolled >= capacity {
		return model.ErrCourseFull
	}
	if already {
		return model.ErrAlreadyEnrolled
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO enrollments (user_id, course_id) VALUES ($1, $2)`, userID, courseID); err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyEnrolled
		}
		return fmt.Errorf("enroll user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *CourseRepository) RemoveUser(ctx context.Context, courseID int64, userID int64) error {
	var courseExists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, courseID).Scan(&courseExists); err != nil {
		return fmt.Errorf("check course exists: %w", err)
	}
	if !courseExists {
		return model.ErrCourseNotFound
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM enrollments WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		return fmt.Errorf("unenroll user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotEnrolled
	}
	return nil
}

// IsEnrolled answers the enrollment predicate used by authorization.
func (r *CourseRepository) IsEnrolled(ctx context.Context, userID int64, courseID int64) (bool, error) {
	var enrolled bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`,
		userID, courseID).Scan(&enrolled)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}

func lockCourse(ctx context.Context, tx pgx.Tx, courseID int64) (int, int, error) {
	var capacity, enrolled int
	err := tx.QueryRow(ctx,
		`SELECT max_capacity, (SELECT COUNT(*) FROM enrollments WHERE course_id = $1)
		 FROM courses WHERE id = $1
		 FOR UPDATE`, courseID).Scan(&capacity, &enrolled)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, model.ErrCourseNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lock course: %w", err)
	}
	return capacity, enrolled, nil
}
