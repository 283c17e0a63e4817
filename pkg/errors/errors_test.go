package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestDomainErrorFormatting(t *testing.T) {
	err := NewProcessError("failed to spawn", io.ErrUnexpectedEOF).
		WithContext("executable", "/plugins/mount-linux-x86_64").
		WithContext("attempt", 3)

	assert.Equal(t,
		"process: failed to spawn [attempt=3, executable=/plugins/mount-linux-x86_64]: unexpected EOF",
		err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewConflictError("duplicate", nil))

	assert.True(t, IsConflictError(err))
	assert.False(t, IsNotFoundError(err))
	assert.True(t, Is(err, &DomainError{Type: ErrorTypeConflict}))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{NewConflictError("plugin is already registered", nil), codes.AlreadyExists},
		{NewValidationError("name is required", nil), codes.InvalidArgument},
		{NewNotFoundError("missing", nil), codes.NotFound},
		{NewTimeoutError("slow", nil), codes.DeadlineExceeded},
		{NewInternalError("boom", nil), codes.Internal},
		{io.EOF, codes.Internal},
		{status.Error(codes.Unimplemented, "todo"), codes.Unimplemented},
	}

	for _, tt := range tests {
		st, ok := status.FromError(ToStatus(tt.err))
		assert.True(t, ok)
		assert.Equal(t, tt.code, st.Code(), tt.err.Error())
	}

	assert.Nil(t, ToStatus(nil))
	assert.True(t, IsAlreadyExists(ToStatus(NewConflictError("dup", nil))))
}
