package service

import (
	"context"
	"log/slog"
	"time"

	"go-student-records/internal/model"
	"go-student-records/pkg/apierror"
)

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// AuditService records security-relevant actions. Recording never fails the
// action being audited.
type AuditService struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, errText string) {
	if s == nil || s.store == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: s.now().UTC(),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Error:      errText,
	}

	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("failed to record audit entry", "action", action, "status", status, "error", err)
	}
}

func (s *AuditService) Success(ctx context.Context, action string, actor model.AuditActor, resource string) {
	s.Log(ctx, action, actor, model.AuditStatusSuccess, resource, "")
}

func (s *AuditService) Failure(ctx context.Context, action string, actor model.AuditActor, resource string, err error) {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	s.Log(ctx, action, actor, model.AuditStatusFailure, resource, errText)
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return nil, model.Meta{}, apierror.BadRequest("'from' must not be after 'to'", "")
	}
	if query.Status != "" && query.Status != model.AuditStatusSuccess && query.Status != model.AuditStatusFailure {
		return nil, model.Meta{}, apierror.BadRequest("invalid status filter", query.Status)
	}

	return s.store.Query(ctx, query)
}
