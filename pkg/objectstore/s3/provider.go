package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/fileferry/fileferry/pkg/logging"
	"github.com/fileferry/fileferry/pkg/objectstore"
)

const (
	// managerPartSize is the part size the SDK uploader uses for streamed
	// puts; the relay's own chunk engine has its own, larger chunk size.
	managerPartSize    = 8 * 1024 * 1024
	managerConcurrency = 5

	directPutLimit = 32 * 1024 * 1024

	maxRetries   = 3
	httpTimeout  = 10 * time.Minute
	maxIdleConns = 100
)

// Provider implements objectstore.Store, objectstore.Multipart and
// objectstore.Presigner against any S3-compatible service.
type Provider struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
	region   string
	endpoint string
	logger   logging.Interface
}

// NewProvider builds a Provider from the given configuration.
func NewProvider(ctx context.Context, config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid s3 configuration: %w", err)
	}
	if !isValidBucketName(config.Bucket) {
		return nil, fmt.Errorf("invalid s3 bucket name: %q", config.Bucket)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	client, err := initializeClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = managerPartSize
		u.Concurrency = managerConcurrency
	})

	p := &Provider{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: uploader,
		bucket:   config.Bucket,
		region:   config.Region,
		endpoint: config.Endpoint,
		logger:   logger,
	}

	logger.WithField("provider", "s3").
		WithField("bucket", config.Bucket).
		WithField("endpoint", config.Endpoint).
		Info("S3 object store initialized")

	return p, nil
}

func initializeClient(ctx context.Context, config *Config) (*s3.Client, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(&http.Client{
			Timeout: httpTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConns,
				IdleConnTimeout:     90 * time.Second,
			},
		}),
	}

	if config.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(config.Region))
	}

	if !config.UseDefaultCredentialChain {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	awsCfg.RetryMode = aws.RetryModeStandard
	awsCfg.RetryMaxAttempts = maxRetries

	clientOpts := []func(*s3.Options){
		func(o *s3.Options) {
			if config.Endpoint != "" {
				o.BaseEndpoint = aws.String(config.Endpoint)
			}
			o.UsePathStyle = config.ForcePathStyle ||
				(config.Endpoint != "" && !strings.Contains(config.Endpoint, "amazonaws.com"))
		},
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// Provider returns the backend type.
func (p *Provider) Provider() objectstore.Provider {
	return objectstore.ProviderS3
}

// Put uploads an object. Small sized payloads go through a single PutObject;
// anything larger, or of unknown size, is handed to the SDK upload manager.
func (p *Provider) Put(ctx context.Context, key string, reader io.Reader, size int64, opts ...objectstore.PutOption) error {
	key = normalizeKey(key)
	options := objectstore.BuildPutOptions(opts...)

	if size >= 0 && size <= directPutLimit {
		return p.putDirect(ctx, key, reader, options)
	}

	return p.putManaged(ctx, key, reader, options)
}

func (p *Provider) putDirect(ctx context.Context, key string, reader io.Reader, options objectstore.PutOptions) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}

	if options.ContentType != "" {
		input.ContentType = aws.String(options.ContentType)
	}
	if len(options.Metadata) > 0 {
		input.Metadata = options.Metadata
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return p.wrapError("put", key, err)
	}

	return nil
}

func (p *Provider) putManaged(ctx context.Context, key string, reader io.Reader, options objectstore.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}

	if options.ContentType != "" {
		input.ContentType = aws.String(options.ContentType)
	}
	if len(options.Metadata) > 0 {
		input.Metadata = options.Metadata
	}

	if _, err := p.uploader.Upload(ctx, input); err != nil {
		return p.wrapError("put", key, err)
	}

	return nil
}

// Get retrieves an object as a stream. The caller owns the returned reader.
func (p *Provider) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	key = normalizeKey(key)

	result, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, p.wrapError("get", key, err)
	}

	return result.Body, nil
}

// Delete removes an object.
func (p *Provider) Delete(ctx context.Context, key string) error {
	key = normalizeKey(key)

	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return p.wrapError("delete", key, err)
	}

	return nil
}

// Exists checks whether an object exists.
func (p *Provider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.Stat(ctx, key)
	if err != nil {
		if objectstore.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stat retrieves object metadata.
func (p *Provider) Stat(ctx context.Context, key string) (*objectstore.ObjectMeta, error) {
	key = normalizeKey(key)

	result, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, p.wrapError("stat", key, err)
	}

	meta := &objectstore.ObjectMeta{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		ContentType:  aws.ToString(result.ContentType),
		LastModified: aws.ToTime(result.LastModified),
		Metadata:     make(map[string]string, len(result.Metadata)),
	}
	for k, v := range result.Metadata {
		meta.Metadata[k] = v
	}
	if result.ETag != nil {
		meta.ETag = strings.Trim(*result.ETag, "\"")
	}

	return meta, nil
}

// List lists objects under a prefix.
func (p *Provider) List(ctx context.Context, prefix string, opts ...objectstore.ListOption) ([]objectstore.ObjectInfo, error) {
	options := objectstore.BuildListOptions(opts...)

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		Prefix:  aws.String(normalizeKey(prefix)),
		MaxKeys: aws.Int32(int32(options.MaxResults)),
	}
	if options.Delimiter != "" {
		input.Delimiter = aws.String(options.Delimiter)
	}
	if options.StartAfter != "" {
		input.StartAfter = aws.String(options.StartAfter)
	}

	var objects []objectstore.ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(p.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, p.wrapError("list", prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			info := objectstore.ObjectInfo{
				Key:          *obj.Key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			}
			if obj.ETag != nil {
				info.ETag = strings.Trim(*obj.ETag, "\"")
			}

			objects = append(objects, info)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				objects = append(objects, objectstore.ObjectInfo{
					Key:   *cp.Prefix,
					IsDir: true,
				})
			}
		}
	}

	return objects, nil
}

// wrapError classifies an SDK error into the objectstore taxonomy and adds
// operation context.
func (p *Provider) wrapError(op, key string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchUpload":
			return objectstore.NewError(op, key, "s3", objectstore.ErrNotFound)
		case "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return objectstore.NewError(op, key, "s3", fmt.Errorf("%w: %s", objectstore.ErrUnavailable, apiErr.ErrorCode()))
		case "QuotaExceeded", "EntityTooLarge", "InvalidPart", "InvalidPartOrder", "InvalidRequest":
			return objectstore.NewError(op, key, "s3", fmt.Errorf("%w: %s", objectstore.ErrRejected, apiErr.ErrorMessage()))
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return objectstore.NewError(op, key, "s3", objectstore.NewRetryableError(err))
		default:
			return objectstore.NewError(op, key, "s3", fmt.Errorf("%s: %w", apiErr.ErrorCode(), err))
		}
	}

	// connection-level failures without an API error code are worth a retry
	if ctxErr := ctxCause(err); ctxErr != nil {
		return objectstore.NewError(op, key, "s3", ctxErr)
	}

	return objectstore.NewError(op, key, "s3", objectstore.NewRetryableError(err))
}

func ctxCause(err error) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return objectstore.NewRetryableError(context.DeadlineExceeded)
	}
	return nil
}
