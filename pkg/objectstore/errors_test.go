package objectstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	err := NewError("put", "uploads/abc", "s3", ErrRejected)

	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "put")
	assert.Contains(t, err.Error(), "uploads/abc")

	var storeErr *Error
	assert.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "s3", storeErr.Provider)
}

func TestErrorWithoutKey(t *testing.T) {
	err := NewError("list", "", "s3", ErrUnavailable)
	assert.NotContains(t, err.Error(), "for ")
	assert.True(t, IsUnavailable(err))
}

func TestRetryableError(t *testing.T) {
	base := errors.New("connection reset")
	err := NewRetryableError(base)

	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, base))

	// classification survives further wrapping
	wrapped := NewError("upload-part-3", "uploads/abc", "s3", err)
	assert.True(t, IsRetryable(wrapped))

	assert.False(t, IsRetryable(ErrRejected))
	assert.False(t, IsRetryable(nil))
}

func TestSentinelClassifiers(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"not found direct", ErrNotFound, IsNotFound, true},
		{"not found wrapped", fmt.Errorf("head: %w", ErrNotFound), IsNotFound, true},
		{"unavailable wrapped", NewError("create-upload", "k", "s3", ErrUnavailable), IsUnavailable, true},
		{"rejected wrapped", NewError("upload-part-1", "k", "s3", ErrRejected), IsRejected, true},
		{"mismatch", ErrRejected, IsNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred(tt.err))
		})
	}
}
