package repository

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fanlink/pkg/errors"
)

// mapStoreError classifies a Firestore failure so callers can tell a
// transient outage (safe to retry, every mutation is idempotent) from a
// genuine internal error.
func mapStoreError(message string, err error) *errors.AppError {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return errors.Unavailable(message, err)
	default:
		return errors.Internal(message, err)
	}
}
