package transfer

import (
	"context"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxTransfers bounds concurrent whole-file transfers.
	DefaultMaxTransfers = 4
	// DefaultMaxChunks bounds chunk uploads in flight across all transfers.
	// Together with the chunk size this caps peak buffer memory.
	DefaultMaxChunks = 16
)

// Governor admission-controls the two resources the relay contends on:
// whole-file transfer slots and in-flight chunk uploads. Acquire calls block
// until a slot frees; backpressure is applied by waiting, never by dropping
// or rejecting work.
type Governor struct {
	transfers *semaphore.Weighted
	chunks    *semaphore.Weighted
}

// NewGovernor creates a governor with the given limits. Non-positive limits
// fall back to the defaults.
func NewGovernor(maxTransfers, maxChunks int) *Governor {
	if maxTransfers <= 0 {
		maxTransfers = DefaultMaxTransfers
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &Governor{
		transfers: semaphore.NewWeighted(int64(maxTransfers)),
		chunks:    semaphore.NewWeighted(int64(maxChunks)),
	}
}

// AcquireTransfer blocks until a whole-file slot is available or the context
// is cancelled. The returned release function is safe to call exactly once
// and must run on every exit path.
func (g *Governor) AcquireTransfer(ctx context.Context) (func(), error) {
	if err := g.transfers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { g.transfers.Release(1) }, nil
}

// AcquireChunk blocks until a chunk slot is available or the context is
// cancelled.
func (g *Governor) AcquireChunk(ctx context.Context) (func(), error) {
	if err := g.chunks.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { g.chunks.Release(1) }, nil
}
