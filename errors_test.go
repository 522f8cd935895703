package lireddit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeAndPublicMessage(t *testing.T) {
	tests := []struct {
		err     error
		code    Code
		message string
	}{
		{ErrUnauthorized, CodeUnauthorized, "Not authenticated"},
		{fmt.Errorf("resolver: %w", ErrUnauthorized), CodeUnauthorized, "Not authenticated"},
		{ErrInvalidCredentials, CodeUnauthorized, "Credentials are invalid"},
		{ErrAccountExists, CodeConflict, "User already exists"},
		{ErrUserNotFound, CodeNotFound, "User not found"},
		{ErrPostNotFound, CodeNotFound, "Post not found"},
		{ErrForbidden, CodeForbidden, "Not allowed"},
		{errors.Join(ErrPasswordResetInvalid, errBoom), CodeBadUserInput, "token expired"},
		{ErrLoginRateLimited, CodeTooManyRequests, "Too many login attempts"},
		{ErrPasswordResetRateLimited, CodeTooManyRequests, "Too many password reset requests"},
		{errors.Join(ErrStoreUnavailable, errBoom), CodeInternal, "Internal server error"},
		{errors.Join(ErrSessionUnavailable, errBoom), CodeInternal, "Internal server error"},
		{context.Canceled, CodeInternal, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.message, PublicMessage(tt.err))
		})
	}

	assert.Equal(t, Code(""), ErrorCode(nil))
	assert.Empty(t, PublicMessage(nil))
}

func TestValidationErrorJoinsMessages(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: "username", Message: "username should not be empty"},
		{Field: "password", Message: "password must be longer than or equal to 8 characters"},
		{Field: "username", Message: "username must not contain @"},
	}}

	assert.Equal(t,
		"username should not be empty,password must be longer than or equal to 8 characters,username must not contain @",
		err.Error())
	assert.Equal(t, CodeBadUserInput, ErrorCode(err))
	assert.Equal(t, err.Error(), PublicMessage(fmt.Errorf("wrapped: %w", err)))
	assert.Len(t, err.Messages()["username"], 2)
}
