package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Child not found")
		assert.Equal(t, "NOT_FOUND: Child not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(ErrCodeRemoteUnavailable, "Remote service unavailable", cause)
		assert.Contains(t, err.Error(), "REMOTE_UNAVAILABLE")
		assert.Contains(t, err.Error(), "Remote service unavailable")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "email", "reason": "invalid format"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"InvalidCredentials", InvalidCredentials, ErrCodeInvalidCredentials},
		{"NotFound", func() *AppError { return NotFound("Child") }, ErrCodeNotFound},
		{"AlreadyExists", func() *AppError { return AlreadyExists("Email") }, ErrCodeAlreadyExists},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("age", "out of range") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("email") }, ErrCodeMissingRequired},
		{"InvalidCode", InvalidCode, ErrCodeInvalidCode},
		{"CodeExpired", CodeExpired, ErrCodeCodeExpired},
		{"ProfileMissing", func() *AppError { return ProfileMissing("u1") }, ErrCodeProfileMissing},
		{"ChildMissing", func() *AppError { return ChildMissing("u1") }, ErrCodeChildMissing},
		{"RateLimitExceeded", RateLimitExceeded, ErrCodeRateLimitExceeded},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestDatabase(t *testing.T) {
	t.Run("wraps database error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.Equal(t, ErrCodeDatabase, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestRemoteUnavailable(t *testing.T) {
	t.Run("wraps transport error", func(t *testing.T) {
		cause := errors.New("timeout")
		err := RemoteUnavailable("data gateway", cause)
		assert.Equal(t, ErrCodeRemoteUnavailable, err.Code)
		assert.Contains(t, err.Message, "data gateway")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError", func(t *testing.T) {
		original := New(ErrCodeNotFound, "Child not found")
		extracted, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("extracts AppError through fmt wrapping", func(t *testing.T) {
		original := InvalidCode()
		wrapped := fmt.Errorf("redeem: %w", original)
		extracted, ok := AsAppError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeInvalidCode, extracted.Code)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		err := errors.New("standard error")
		extracted, ok := AsAppError(err)
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		assert.Equal(t, ErrCodeCodeExpired, GetCode(CodeExpired()))
	})

	t.Run("returns ErrCodeInternal for standard error", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("standard error")))
	})
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(ChildMissing("u1"), ErrCodeChildMissing))
	assert.False(t, HasCode(ChildMissing("u1"), ErrCodeProfileMissing))
	assert.False(t, HasCode(nil, ErrCodeInternal))
}

func TestIntegrityDetails(t *testing.T) {
	err := ProfileMissing("user-42")
	assert.Equal(t, map[string]string{"userId": "user-42"}, err.Details)
}
