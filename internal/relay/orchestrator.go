package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/fileferry/fileferry/pkg/logging"
	"github.com/fileferry/fileferry/pkg/objectstore"
	"github.com/fileferry/fileferry/pkg/transfer"
)

// State is the lifecycle phase of one transfer.
type State string

const (
	StateReceived     State = "received"
	StateValidating   State = "validating"
	StateTransferring State = "transferring"
	StateFinalizing   State = "finalizing"
	StateLinkIssued   State = "link-issued"
	StateRejected     State = "rejected"
	StateFailed       State = "failed"
)

// Result is the terminal outcome of a successful transfer.
type Result struct {
	Key      string
	Size     int64
	ETag     string
	Link     Link
	State    State
	Strategy transfer.Strategy
}

// Orchestrator coordinates one transfer end to end: size validation, key
// generation, strategy selection, streaming under concurrency limits, link
// issuing and failure cleanup. A transfer is atomic from the caller's view;
// no partial-success state ever escapes.
type Orchestrator struct {
	config   *Config
	store    objectstore.Store
	engine   *transfer.Engine
	governor *transfer.Governor
	issuer   *LinkIssuer
	staging  afero.Fs
	metrics  *Metrics
	logger   logging.Interface
}

// orphanLister is implemented by stores that can enumerate multipart
// sessions left open by earlier crashes.
type orphanLister interface {
	ListOrphanedUploads(ctx context.Context, prefix string) (map[string]string, error)
}

// NewOrchestrator wires the relay pipeline on top of a store.
func NewOrchestrator(config *Config, store objectstore.Store, multipart objectstore.Multipart, presigner objectstore.Presigner, staging afero.Fs, metrics *Metrics, logger logging.Interface) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	if err := staging.MkdirAll(config.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}

	governor := transfer.NewGovernor(config.MaxTransfers, config.MaxChunks)
	engine := transfer.NewEngine(multipart, governor, logger, transfer.EngineConfig{
		ChunkSize:    config.ChunkSize,
		ChunkTimeout: config.ChunkTimeout,
	})

	return &Orchestrator{
		config:   config,
		store:    store,
		engine:   engine,
		governor: governor,
		issuer:   NewLinkIssuer(presigner, config.LinkTTL, MaxLinkTTL),
		staging:  staging,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Transfer relays one inbound file to the store and mints a retrieval link.
// It blocks while all whole-file slots are taken; cancelling the context
// releases the slot, aborts any open session and surfaces a cancellation
// error.
func (o *Orchestrator) Transfer(ctx context.Context, file InboundFile, sink ProgressSink) (*Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	defer file.Stream.Close()

	started := time.Now()
	logger := o.logger.WithField("file", file.DisplayName)
	logger.WithField("declaredSize", file.DeclaredSize).Debug("Transfer received")

	strategy := transfer.Classify(file.DeclaredSize, o.config.SinglePartThreshold)

	result, err := o.transfer(ctx, file, sink, strategy)
	if err != nil {
		state := StateFailed
		if errors.Is(err, ErrFileTooLarge) {
			state = StateRejected
		}
		o.metrics.observeTransfer(strategy.String(), string(state), 0, 0)
		logger.WithError(err).Error("Transfer failed")
		sink.ReportTerminal(nil, err)
		return nil, err
	}

	o.metrics.observeTransfer(strategy.String(), string(StateLinkIssued), result.Size, time.Since(started).Seconds())
	logger.WithField("key", result.Key).WithField("size", result.Size).Info("Transfer completed")
	sink.ReportTerminal(result, nil)
	return result, nil
}

func (o *Orchestrator) transfer(ctx context.Context, file InboundFile, sink ProgressSink, strategy transfer.Strategy) (*Result, error) {
	// Validating
	if file.DeclaredSize > o.config.MaxFileSize {
		return nil, fileTooLargeError(file.DeclaredSize, o.config.MaxFileSize)
	}

	release, err := o.governor.AcquireTransfer(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// Transferring
	prefix := o.config.KeyPrefix
	if file.KeyHint != "" {
		prefix = file.KeyHint
	}
	key := BuildKey(prefix, file.DisplayName)

	progress := transfer.NewAggregator(file.DeclaredSize, o.config.ProgressInterval, sink.ReportProgress)
	source := o.boundedSource(file)

	var meta *objectstore.ObjectMeta
	switch strategy {
	case transfer.SinglePart:
		err = o.store.Put(ctx, key, &progressReader{r: source, progress: progress}, file.DeclaredSize)
		if err == nil {
			meta, err = o.store.Stat(ctx, key)
		}
	default:
		meta, err = o.engine.Upload(ctx, key, source, progress)
	}
	if err != nil {
		return nil, err
	}

	// Finalizing
	link, err := o.issuer.Issue(ctx, key, o.config.LinkTTL)
	if err != nil {
		return nil, err
	}
	o.metrics.observeLink()

	progress.Complete()
	return &Result{
		Key:      key,
		Size:     meta.Size,
		ETag:     meta.ETag,
		Link:     link,
		State:    StateLinkIssued,
		Strategy: strategy,
	}, nil
}

// boundedSource enforces the size cap during streaming for sources whose
// length was unknown up front; declared sizes are checked before the first
// byte moves.
func (o *Orchestrator) boundedSource(file InboundFile) io.Reader {
	if file.DeclaredSize >= 0 {
		return file.Stream
	}
	return &maxBytesReader{r: file.Stream, remaining: o.config.MaxFileSize, limit: o.config.MaxFileSize}
}

// Link reissues a retrieval link for an existing object.
func (o *Orchestrator) Link(ctx context.Context, key string, ttl time.Duration) (Link, error) {
	exists, err := o.store.Exists(ctx, key)
	if err != nil {
		return Link{}, err
	}
	if !exists {
		return Link{}, objectstore.NewError("presign", key, string(o.store.Provider()), objectstore.ErrNotFound)
	}

	link, err := o.issuer.Issue(ctx, key, ttl)
	if err != nil {
		return Link{}, err
	}
	o.metrics.observeLink()
	return link, nil
}

// Fetch downloads an object into a staging file and returns a reader that
// deletes the staging artifact on close. Spilling to disk keeps the store
// connection short-lived while the chat transport re-uploads at its own
// pace.
func (o *Orchestrator) Fetch(ctx context.Context, key string) (io.ReadCloser, *objectstore.ObjectMeta, error) {
	meta, err := o.store.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	body, err := o.store.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()

	tmp, err := afero.TempFile(o.staging, o.config.StagingDir, "fetch-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating staging file: %w", err)
	}

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		o.removeStaging(tmp.Name())
		return nil, nil, fmt.Errorf("staging %s: %w", key, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		o.removeStaging(tmp.Name())
		return nil, nil, err
	}

	return &stagedFile{File: tmp, orchestrator: o}, meta, nil
}

// Remove deletes an object from the store.
func (o *Orchestrator) Remove(ctx context.Context, key string) error {
	return o.store.Delete(ctx, key)
}

// AbortOrphans aborts multipart sessions left open by earlier process
// crashes. Best-effort; stores that cannot enumerate sessions are skipped,
// and per-session failures are collected rather than stopping the sweep.
func (o *Orchestrator) AbortOrphans(ctx context.Context) error {
	lister, ok := o.store.(orphanLister)
	if !ok {
		return nil
	}
	aborter, ok := o.store.(objectstore.Multipart)
	if !ok {
		return nil
	}

	orphans, err := lister.ListOrphanedUploads(ctx, o.config.KeyPrefix)
	if err != nil {
		o.logger.WithError(err).Warn("Failed to list orphaned multipart sessions")
		return err
	}

	var errs *multierror.Error
	for key, uploadID := range orphans {
		if err := aborter.AbortUpload(ctx, key, uploadID); err != nil {
			o.logger.WithError(err).WithField("key", key).Warn("Failed to abort orphaned session")
			errs = multierror.Append(errs, fmt.Errorf("aborting %s: %w", key, err))
			continue
		}
		o.logger.WithField("key", key).Info("Aborted orphaned multipart session")
	}
	return errs.ErrorOrNil()
}

func (o *Orchestrator) removeStaging(name string) {
	if err := o.staging.Remove(name); err != nil {
		o.logger.WithError(err).WithField("path", name).Warn("Failed to remove staging file")
	}
}

type progressReader struct {
	r        io.Reader
	progress *transfer.Aggregator
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.progress.Add(int64(n))
	}
	return n, err
}

// maxBytesReader fails the stream once it produces more than limit bytes.
// A source of exactly limit bytes still reaches EOF cleanly.
type maxBytesReader struct {
	r         io.Reader
	remaining int64
	limit     int64
}

func (m *maxBytesReader) Read(b []byte) (int, error) {
	if m.remaining < 0 {
		return 0, streamTooLargeError(m.limit)
	}
	if int64(len(b)) > m.remaining+1 {
		b = b[:m.remaining+1]
	}
	n, err := m.r.Read(b)
	if int64(n) <= m.remaining {
		m.remaining -= int64(n)
		return n, err
	}

	// the extra byte proves the source exceeds the limit
	n = int(m.remaining)
	m.remaining = -1
	return n, streamTooLargeError(m.limit)
}

// stagedFile deletes its backing staging artifact on close.
type stagedFile struct {
	afero.File
	orchestrator *Orchestrator
}

func (s *stagedFile) Close() error {
	err := s.File.Close()
	s.orchestrator.removeStaging(s.File.Name())
	return err
}
