package errors

import (
	"errors"
	"strings"
	"time"

	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

// ReasonMapper maps reason-coded failures to problems. The problem carries the
// code and class as extensions, plus validAt for timing failures.
func ReasonMapper(err error) (ProblemDetail, bool) {
	var guardErr *reason.GuardError
	if errors.As(err, &guardErr) {
		return ErrUnprocessable.
			WithDetail(err.Error()).
			WithExtension("reason", reason.ErrGuardRejected.Code).
			WithExtension("class", string(reason.ClassPolicy)).
			WithExtension("guard", guardErr.Guard), true
	}
	r := reason.Of(err)
	if r == nil {
		return ProblemDetail{}, false
	}
	var problem ProblemDetail
	switch r.Class {
	case reason.ClassNotFound:
		problem = ErrNotFound
	case reason.ClassTiming:
		problem = ErrConflict
	case reason.ClassExternal:
		problem = ErrBadGateway
	case reason.ClassPolicy:
		if strings.HasPrefix(r.Code, "Only") {
			problem = ErrForbidden
		} else {
			problem = ErrUnprocessable
		}
	default:
		problem = ErrUnprocessable
	}
	if r.Code == "ReentrantCall" || r.Code == "IdempotencyConflict" {
		problem = ErrConflict
	}
	problem = problem.
		WithDetail(err.Error()).
		WithExtension("reason", r.Code).
		WithExtension("class", string(r.Class))
	if validAt, ok := reason.ValidAt(err); ok {
		problem = problem.WithExtension("validAt", validAt.UTC().Format(time.RFC3339))
	}
	return problem, true
}
