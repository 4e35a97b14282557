package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/docker/go-units"

	"github.com/fileferry/fileferry/pkg/objectstore"
)

// ErrFileTooLarge rejects a file whose declared size exceeds the configured
// maximum. It is user-facing and never retried.
var ErrFileTooLarge = errors.New("file exceeds the maximum allowed size")

func fileTooLargeError(declared, limit int64) error {
	return fmt.Errorf("%w: %s declared, limit is %s", ErrFileTooLarge,
		units.BytesSize(float64(declared)), units.BytesSize(float64(limit)))
}

func streamTooLargeError(limit int64) error {
	return fmt.Errorf("%w: stream exceeded the %s limit", ErrFileTooLarge,
		units.BytesSize(float64(limit)))
}

// UserMessage reduces an internal error to a short message safe to show in
// chat. Raw store detail stays in the logs.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileTooLarge):
		return err.Error()
	case errors.Is(err, context.Canceled):
		return "transfer cancelled"
	case errors.Is(err, objectstore.ErrUnavailable):
		return "storage is unavailable right now, please try again later"
	case errors.Is(err, objectstore.ErrRejected):
		return "storage rejected the upload"
	case errors.Is(err, objectstore.ErrSigning):
		return "could not create a download link"
	case errors.Is(err, objectstore.ErrNotFound):
		return "no such file"
	default:
		return "transfer failed, please try again"
	}
}
