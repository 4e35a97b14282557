package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fileferry/fileferry/pkg/objectstore"
)

// PresignGet produces a time-limited GET URL for an object. Signing happens
// locally; an error here almost always means broken credentials.
func (p *Provider) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	key = normalizeKey(key)

	request, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", objectstore.NewError("presign-get", key, "s3",
			fmt.Errorf("%w: %v", objectstore.ErrSigning, err))
	}

	return request.URL, nil
}

// PresignPut produces a time-limited PUT URL, letting a caller push an
// object into the bucket without holding credentials.
func (p *Provider) PresignPut(ctx context.Context, key string, expiry time.Duration, contentType string) (string, error) {
	key = normalizeKey(key)

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	request, err := p.presign.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", objectstore.NewError("presign-put", key, "s3",
			fmt.Errorf("%w: %v", objectstore.ErrSigning, err))
	}

	return request.URL, nil
}
