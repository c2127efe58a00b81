package repository

import (
	"context"
	"fmt"
	"strings"

	"go-student-records/internal/model"
)

type AuditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	var actorID *int64
	if entry.Actor.AccountID != 0 {
		id := entry.Actor.AccountID
		actorID = &id
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_entries
		 (action, occurred_at, actor_account_id, actor_username, actor_role, actor_ip,
		  status, resource, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.Action, entry.OccurredAt,
		actorID, entry.Actor.Username, entry.Actor.Role, entry.Actor.IP,
		entry.Status, entry.Resource, entry.Error)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	page, limit, offset := pageBounds(query.Page, query.Limit)

	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if action := strings.TrimSpace(query.Action); action != "" {
		where = append(where, fmt.Sprintf("lower(action) = lower($%d)", argIdx))
		args = append(args, action)
		argIdx++
	}
	if query.AccountID > 0 {
		where = append(where, fmt.Sprintf("actor_account_id = $%d", argIdx))
		args = append(args, query.AccountID)
		argIdx++
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		where = append(where, fmt.Sprintf("lower(status) = lower($%d)", argIdx))
		args = append(args, status)
		argIdx++
	}
	if resource := strings.TrimSpace(query.Resource); resource != "" {
		where = append(where, fmt.Sprintf("lower(resource) LIKE lower($%d)", argIdx))
		args = append(args, "%"+resource+"%")
		argIdx++
	}
	if query.From != nil {
		where = append(where, fmt.Sprintf("occurred_at >= $%d", argIdx))
		args = append(args, *query.From)
		argIdx++
	}
	if query.To != nil {
		where = append(where, fmt.Sprintf("occurred_at <= $%d", argIdx))
		args = append(args, *query.To)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM audit_entries "+whereClause, args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}

	dataQuery := fmt.Sprintf(
		`SELECT id, action, occurred_at, COALESCE(actor_account_id, 0), actor_username, actor_role, actor_ip,
		        status, resource, error_text
		 FROM audit_entries %s
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $%d OFFSET $%d`, whereClause, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(
			&e.ID, &e.Action, &e.OccurredAt,
			&e.Actor.AccountID, &e.Actor.Username, &e.Actor.Role, &e.Actor.IP,
			&e.Status, &e.Resource, &e.Error,
		); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan audit entry: %w", err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, model.NewMeta(page, limit, total), nil
}
