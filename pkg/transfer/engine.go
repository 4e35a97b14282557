package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fileferry/fileferry/pkg/logging"
	"github.com/fileferry/fileferry/pkg/objectstore"
)

const (
	// DefaultChunkSize amortizes per-part overhead while keeping peak
	// memory at chunkSize * maxChunks.
	DefaultChunkSize int64 = 32 * 1024 * 1024
	// DefaultChunkTimeout bounds a single upload attempt for one part.
	// Exceeding it consumes one retry from the part's budget, not the
	// whole transfer's.
	DefaultChunkTimeout = 2 * time.Minute

	// maxParts is the multipart part-count limit imposed by S3-compatible
	// stores.
	maxParts = 10000
)

// EngineConfig tunes the chunked transfer engine.
type EngineConfig struct {
	ChunkSize    int64         `mapstructure:"chunk_size"`
	ChunkTimeout time.Duration `mapstructure:"chunk_timeout"`
	Retry        objectstore.RetryConfig
}

func (c *EngineConfig) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkTimeout <= 0 {
		c.ChunkTimeout = DefaultChunkTimeout
	}
	if c.Retry.RetryableError == nil {
		c.Retry = objectstore.DefaultRetryConfig()
	}
}

// Engine streams an arbitrarily large source to the object store as a
// multipart session without ever holding more than the governed number of
// chunks in memory. A session opened by Upload always ends Completed or
// Aborted; no exit path leaves it open.
type Engine struct {
	store    objectstore.Multipart
	governor *Governor
	logger   logging.Interface
	config   EngineConfig

	buffers sync.Pool
}

// NewEngine creates a chunked transfer engine on top of a multipart-capable
// store.
func NewEngine(store objectstore.Multipart, governor *Governor, logger logging.Interface, config EngineConfig) *Engine {
	config.applyDefaults()

	e := &Engine{
		store:    store,
		governor: governor,
		logger:   logger,
		config:   config,
	}
	e.buffers.New = func() interface{} {
		buf := make([]byte, config.ChunkSize)
		return &buf
	}
	return e
}

// Upload moves the source stream to key as one multipart session. Chunks are
// read sequentially, dispatched to concurrent workers under the governor's
// chunk limit, and retried individually on transient failures. On any
// failure after the session opens, the session is aborted exactly once
// before the error is returned.
func (e *Engine) Upload(ctx context.Context, key string, source io.Reader, progress *Aggregator) (*objectstore.ObjectMeta, error) {
	uploadID, err := e.store.CreateUpload(ctx, key)
	if err != nil {
		return nil, err
	}

	e.logger.WithField("key", key).WithField("uploadId", uploadID).
		WithField("chunkSize", e.config.ChunkSize).Debug("Multipart session opened")

	receipts, err := e.uploadParts(ctx, key, uploadID, source, progress)
	if err != nil {
		e.abort(ctx, key, uploadID)
		return nil, err
	}

	meta, err := e.finalize(ctx, key, uploadID, receipts)
	if err != nil {
		e.abort(ctx, key, uploadID)
		return nil, err
	}
	return meta, nil
}

// uploadParts drives the read-dispatch loop. The source is read on the
// calling goroutine only; workers own their buffer from dispatch until the
// part lands.
func (e *Engine) uploadParts(ctx context.Context, key, uploadID string, source io.Reader, progress *Aggregator) ([]objectstore.Part, error) {
	group, groupCtx := errgroup.WithContext(ctx)

	var (
		mu       sync.Mutex
		receipts []objectstore.Part
	)

	partNumber := int32(0)
	for {
		// permit first, so buffered-but-unsent chunks also count
		// against the memory bound
		release, err := e.governor.AcquireChunk(groupCtx)
		if err != nil {
			break
		}

		bufPtr := e.buffers.Get().(*[]byte)
		n, readErr := io.ReadFull(source, *bufPtr)
		if n == 0 {
			release()
			e.buffers.Put(bufPtr)
			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				break
			}
			if readErr != nil {
				_ = group.Wait()
				return nil, objectstore.NewRetryableError(fmt.Errorf("reading source: %w", readErr))
			}
			break
		}

		partNumber++
		if partNumber > maxParts {
			release()
			e.buffers.Put(bufPtr)
			_ = group.Wait()
			return nil, objectstore.NewError("upload_part", key, "", objectstore.ErrRejected)
		}

		number := partNumber
		group.Go(func() error {
			defer release()
			defer e.buffers.Put(bufPtr)

			receipt, err := e.uploadPart(groupCtx, key, uploadID, number, (*bufPtr)[:n])
			if err != nil {
				return err
			}

			mu.Lock()
			receipts = append(receipts, receipt)
			mu.Unlock()

			if progress != nil {
				progress.Add(receipt.Size)
			}
			return nil
		})

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			_ = group.Wait()
			return nil, objectstore.NewRetryableError(fmt.Errorf("reading source: %w", readErr))
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// an empty source still produces a valid object: one zero-byte part
	if len(receipts) == 0 {
		receipt, err := e.uploadPart(ctx, key, uploadID, 1, nil)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// uploadPart sends one part, retrying transient failures with backoff. Each
// attempt re-reads the same buffer, so a retried part overwrites its
// predecessor cleanly under the store's multipart semantics.
func (e *Engine) uploadPart(ctx context.Context, key, uploadID string, number int32, data []byte) (objectstore.Part, error) {
	size := int64(len(data))

	var etag string
	err := objectstore.RetryOperation(ctx, e.config.Retry, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.config.ChunkTimeout)
		defer cancel()

		var err error
		etag, err = e.store.UploadPart(attemptCtx, key, uploadID, number, bytes.NewReader(data), size)
		return err
	})
	if err != nil {
		e.logger.WithError(err).WithField("key", key).WithField("part", number).
			Error("Part upload failed")
		return objectstore.Part{}, err
	}

	return objectstore.Part{Number: number, ETag: etag, Size: size}, nil
}

// finalize sorts receipts and completes the session. Non-contiguous part
// numbers indicate lost receipts on our side, not a store fault, and fail
// with ErrIncomplete.
func (e *Engine) finalize(ctx context.Context, key, uploadID string, receipts []objectstore.Part) (*objectstore.ObjectMeta, error) {
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].Number < receipts[j].Number
	})

	for i, receipt := range receipts {
		if receipt.Number != int32(i+1) {
			return nil, objectstore.NewError("complete_upload", key, "",
				fmt.Errorf("%w: part %d missing from receipts", objectstore.ErrIncomplete, i+1))
		}
	}
	if len(receipts) == 0 {
		return nil, objectstore.NewError("complete_upload", key, "",
			fmt.Errorf("%w: no parts uploaded", objectstore.ErrIncomplete))
	}

	meta, err := e.store.CompleteUpload(ctx, key, uploadID, receipts)
	if err != nil {
		return nil, err
	}

	e.logger.WithField("key", key).WithField("parts", len(receipts)).
		WithField("size", meta.Size).Info("Multipart session completed")
	return meta, nil
}

// abort tears down an open session. It is best-effort: the caller is already
// on an error path, so failures are logged and swallowed. Cleanup keeps its
// own deadline and survives cancellation of the transfer context.
func (e *Engine) abort(ctx context.Context, key, uploadID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	err := objectstore.RetryOperation(cleanupCtx, objectstore.RetryConfig{
		MaxRetries:     2,
		InitialDelay:   time.Second,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		RetryableError: objectstore.IsRetryable,
	}, func() error {
		return e.store.AbortUpload(cleanupCtx, key, uploadID)
	})
	if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		e.logger.WithError(err).WithField("key", key).WithField("uploadId", uploadID).
			Warn("Failed to abort multipart session; upload may be orphaned")
		return
	}

	e.logger.WithField("key", key).WithField("uploadId", uploadID).Debug("Multipart session aborted")
}
