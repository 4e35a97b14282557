package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fileferry/fileferry/pkg/objectstore"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "file too large keeps the limit",
			err:  fileTooLargeError(5<<30, 4<<30),
			want: "file exceeds the maximum allowed size: 5GiB declared, limit is 4GiB",
		},
		{
			name: "cancellation",
			err:  fmt.Errorf("retry cancelled: %w", context.Canceled),
			want: "transfer cancelled",
		},
		{
			name: "store unavailable",
			err:  objectstore.NewError("create_upload", "k", "s3", objectstore.ErrUnavailable),
			want: "storage is unavailable right now, please try again later",
		},
		{
			name: "store rejected",
			err:  objectstore.NewError("upload_part", "k", "s3", objectstore.ErrRejected),
			want: "storage rejected the upload",
		},
		{
			name: "signing failure",
			err:  objectstore.NewError("presign", "k", "s3", objectstore.ErrSigning),
			want: "could not create a download link",
		},
		{
			name: "not found",
			err:  objectstore.NewError("stat", "k", "s3", objectstore.ErrNotFound),
			want: "no such file",
		},
		{
			name: "anything else stays generic",
			err:  errors.New("smithy API error: something internal"),
			want: "transfer failed, please try again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
