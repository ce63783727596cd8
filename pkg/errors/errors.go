package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Meta    map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     nil,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InsufficientFunds is an expected, user-facing outcome, not a system error.
// Required amount and current balance are carried so the caller can offer a
// top-up flow.
func InsufficientFunds(required, balance int64) *AppError {
	return &AppError{
		Code:    "INSUFFICIENT_FUNDS",
		Message: fmt.Sprintf("Insufficient balance: %d required, %d available", required, balance),
		Status:  http.StatusPaymentRequired,
		Meta: map[string]interface{}{
			"required": required,
			"balance":  balance,
		},
	}
}

// AlreadyApplied signals an idempotency replay. Callers treat it as success;
// it is never surfaced to the user as a failure.
func AlreadyApplied(key string) *AppError {
	return &AppError{
		Code:    "ALREADY_APPLIED",
		Message: fmt.Sprintf("Operation %s was already applied", key),
		Status:  http.StatusOK,
	}
}

func InvalidPrice(message string) *AppError {
	return &AppError{
		Code:    "INVALID_PRICE",
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// Unavailable marks a transient backing-store failure. Mutating operations
// are idempotent, so the caller may retry the whole operation.
func Unavailable(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// UnlockPending marks the charged-but-not-granted state: the debit went
// through but the grant write failed. The charge record guarantees eventual
// access once reconciliation completes the grant.
func UnlockPending(messageID string) *AppError {
	return &AppError{
		Code:    "UNLOCK_PENDING",
		Message: fmt.Sprintf("Unlock of message %s is pending reconciliation", messageID),
		Status:  http.StatusConflict,
		Meta: map[string]interface{}{
			"message_id": messageID,
		},
	}
}

func TooManyRequests(message string, waitTime interface{}) *AppError {
	return &AppError{
		Code:    "TOO_MANY_REQUESTS",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     nil,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
