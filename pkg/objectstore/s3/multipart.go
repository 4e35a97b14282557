package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fileferry/fileferry/pkg/objectstore"
)

// CreateUpload starts a multipart upload and returns its opaque upload ID.
func (p *Provider) CreateUpload(ctx context.Context, key string, opts ...objectstore.PutOption) (string, error) {
	key = normalizeKey(key)
	options := objectstore.BuildPutOptions(opts...)

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if options.ContentType != "" {
		input.ContentType = aws.String(options.ContentType)
	}
	if len(options.Metadata) > 0 {
		input.Metadata = options.Metadata
	}

	result, err := p.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		// session creation failure means the store is effectively down
		// for this transfer, whatever the underlying code
		wrapped := p.wrapError("create-upload", key, err)
		if !objectstore.IsUnavailable(wrapped) && !objectstore.IsRejected(wrapped) {
			return "", objectstore.NewError("create-upload", key, "s3",
				fmt.Errorf("%w: %v", objectstore.ErrUnavailable, err))
		}
		return "", wrapped
	}

	return aws.ToString(result.UploadId), nil
}

// UploadPart uploads one part. Parts are buffered by the caller; the reader
// must deliver exactly size bytes. Re-sending a part number overwrites the
// previous attempt server-side, so retries are safe.
func (p *Provider) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, reader io.Reader, size int64) (string, error) {
	key = normalizeKey(key)

	data := make([]byte, size)
	n, err := io.ReadFull(reader, data)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read part %d data: %w", partNumber, err)
	}
	data = data[:n]

	input := &s3.UploadPartInput{
		Bucket:     aws.String(p.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(data),
	}

	result, err := p.client.UploadPart(ctx, input)
	if err != nil {
		return "", p.wrapError(fmt.Sprintf("upload-part-%d", partNumber), key, err)
	}

	return strings.Trim(aws.ToString(result.ETag), "\""), nil
}

// CompleteUpload finalizes a multipart upload. Parts are sorted by part
// number before completion since the store requires strictly ascending order.
func (p *Provider) CompleteUpload(ctx context.Context, key, uploadID string, parts []objectstore.Part) (*objectstore.ObjectMeta, error) {
	key = normalizeKey(key)

	completed := make([]types.CompletedPart, 0, len(parts))
	var total int64
	for _, part := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(part.Number),
		})
		total += part.Size
	}
	sort.Slice(completed, func(i, j int) bool {
		return *completed[i].PartNumber < *completed[j].PartNumber
	})

	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(p.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	}

	result, err := p.client.CompleteMultipartUpload(ctx, input)
	if err != nil {
		return nil, p.wrapError("complete-upload", key, err)
	}

	meta := &objectstore.ObjectMeta{
		Key:  key,
		Size: total,
	}
	if result.ETag != nil {
		meta.ETag = strings.Trim(*result.ETag, "\"")
	}

	return meta, nil
}

// AbortUpload cancels a multipart upload so the store does not accumulate
// orphaned parts.
func (p *Provider) AbortUpload(ctx context.Context, key, uploadID string) error {
	key = normalizeKey(key)

	_, err := p.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(p.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return p.wrapError("abort-upload", key, err)
	}

	return nil
}

// ListOrphanedUploads lists active multipart uploads under a prefix. Useful
// for operational sweeps of sessions that escaped abort (crashed process).
func (p *Provider) ListOrphanedUploads(ctx context.Context, prefix string) (map[string]string, error) {
	uploads := make(map[string]string)
	var keyMarker, uploadIDMarker *string

	for {
		input := &s3.ListMultipartUploadsInput{
			Bucket: aws.String(p.bucket),
		}
		if prefix != "" {
			input.Prefix = aws.String(normalizeKey(prefix))
		}
		input.KeyMarker = keyMarker
		input.UploadIdMarker = uploadIDMarker

		result, err := p.client.ListMultipartUploads(ctx, input)
		if err != nil {
			return nil, p.wrapError("list-uploads", prefix, err)
		}

		for _, upload := range result.Uploads {
			uploads[aws.ToString(upload.Key)] = aws.ToString(upload.UploadId)
		}

		if !aws.ToBool(result.IsTruncated) {
			break
		}
		keyMarker = result.NextKeyMarker
		uploadIDMarker = result.NextUploadIdMarker
	}

	return uploads, nil
}
