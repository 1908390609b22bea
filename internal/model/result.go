package model

import (
	apperrors "github.com/zoomi/household-auth/internal/errors"
)

// Result is a tagged outcome returned across the pairing boundary, so failures
// reach the caller as values they can show to the user.
type Result[T any] struct {
	OK      bool
	Value   T
	Kind    apperrors.ErrorCode
	Message string
}

func Ok[T any](value T) Result[T] {
	return Result[T]{OK: true, Value: value}
}

func Fail[T any](kind apperrors.ErrorCode, message string) Result[T] {
	return Result[T]{Kind: kind, Message: message}
}

// ResultFromError converts a collaborator error into a failed Result. Errors
// that are not AppErrors are reported as REMOTE_UNAVAILABLE.
func ResultFromError[T any](err error) Result[T] {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return Fail[T](appErr.Code, appErr.Message)
	}
	return Fail[T](apperrors.ErrCodeRemoteUnavailable, err.Error())
}

// Err returns the failure as an AppError, or nil when the result is OK.
func (r Result[T]) Err() error {
	if r.OK {
		return nil
	}
	return apperrors.New(r.Kind, r.Message)
}
