package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"go-student-records/internal/auth"
	"go-student-records/internal/model"
)

const accountColumns = `id, username, password_hash, role, user_id, created_at, updated_at`

// AccountRepository is the credential store.
type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	var role string
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &role, &a.UserID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return model.Account{}, err
	}

	parsed, err := auth.ParseRole(role)
	if err != nil {
		return model.Account{}, fmt.Errorf("account %d: %w", a.ID, err)
	}
	a.Role = parsed
	return a, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (model.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("find account by id: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("find account by username: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE lower(username) = lower($1))`,
		strings.TrimSpace(username)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

// CreateWithProfile inserts an empty user profile and an account linked to it
// in one transaction.
func (r *AccountRepository) CreateWithProfile(ctx context.Context, username string, passwordHash string, role auth.Role) (model.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Account{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO users (first_name, last_name, email) VALUES ('', '', '') RETURNING id`).
		Scan(&userID); err != nil {
		return model.Account{}, fmt.Errorf("create profile: %w", err)
	}

	a, err := insertAccount(ctx, tx, username, passwordHash, role, &userID)
	if err != nil {
		return model.Account{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Account{}, fmt.Errorf("commit transaction: %w", err)
	}
	return a, nil
}

// Create inserts an account without a profile link.
func (r *AccountRepository) Create(ctx context.Context, username string, passwordHash string, role auth.Role) (model.Account, error) {
	return insertAccount(ctx, r.db, username, passwordHash, role, nil)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertAccount(ctx context.Context, q queryRower, username string, passwordHash string, role auth.Role, userID *int64) (model.Account, error) {
	a, err := scanAccount(q.QueryRow(ctx,
		`INSERT INTO accounts (username, password_hash, role, user_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+accountColumns,
		strings.TrimSpace(username), passwordHash, role.String(), userID))
	if isUniqueViolation(err) {
		return model.Account{}, model.ErrUsernameTaken
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) Update(ctx context.Context, a model.Account) (model.Account, error) {
	updated, err := scanAccount(r.db.QueryRow(ctx,
		`UPDATE accounts SET password_hash = $2, role = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		a.ID, a.PasswordHash, a.Role.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("update account: %w", err)
	}
	return updated, nil
}

// LinkUser points an account at a user profile.
func (r *AccountRepository) LinkUser(ctx context.Context, accountID int64, userID int64) (model.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`UPDATE accounts SET user_id = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		accountID, userID))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.Account{}, model.ErrAccountNotFound
	case isUniqueViolation(err):
		return model.Account{}, model.ErrProfileLinked
	case isForeignKeyViolation(err):
		return model.Account{}, model.ErrUserNotFound
	case err != nil:
		return model.Account{}, fmt.Errorf("link account to user: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// DeleteAll removes every account except keepID, which is the caller's own.
func (r *AccountRepository) DeleteAll(ctx context.Context, keepID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id <> $1`, keepID)
	if err != nil {
		return 0, fmt.Errorf("delete accounts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *AccountRepository) List(ctx context.Context, page int, limit int) ([]model.Account, model.Meta, error) {
	page, limit, offset := pageBounds(page, limit)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count accounts: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]model.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, model.NewMeta(page, limit, total), nil
}
