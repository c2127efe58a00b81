package auth

import (
	"context"
	"log/slog"
)

// EnrollmentReader answers enrollment questions from the credential store.
type EnrollmentReader interface {
	IsEnrolled(ctx context.Context, userID int64, courseID int64) (bool, error)
}

// Evaluator answers resource-scoped questions about the identity attached to a
// request context. Every failure, including a missing identity or a missing
// profile link, is reported as false.
type Evaluator struct {
	enrollments EnrollmentReader
}

func NewEvaluator(enrollments EnrollmentReader) *Evaluator {
	return &Evaluator{enrollments: enrollments}
}

// SameProfile reports whether the caller's linked profile is userID.
func (e *Evaluator) SameProfile(ctx context.Context, userID int64) bool {
	id, ok := IdentityFrom(ctx)
	if !ok || id.ProfileID == nil {
		return false
	}
	return *id.ProfileID == userID
}

// EnrolledIn reports whether the caller's linked profile is enrolled in courseID.
func (e *Evaluator) EnrolledIn(ctx context.Context, courseID int64) bool {
	id, ok := IdentityFrom(ctx)
	if !ok || id.ProfileID == nil || e == nil || e.enrollments == nil {
		return false
	}

	enrolled, err := e.enrollments.IsEnrolled(ctx, *id.ProfileID, courseID)
	if err != nil {
		slog.Warn("enrollment check failed", "user_id", *id.ProfileID, "course_id", courseID, "error", err)
		return false
	}
	return enrolled
}
