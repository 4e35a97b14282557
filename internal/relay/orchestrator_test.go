package relay

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileferry/fileferry/pkg/logging"
	"github.com/fileferry/fileferry/pkg/objectstore"
	"github.com/fileferry/fileferry/pkg/transfer"
)

// fakeStore is an in-memory object store covering the single-shot, multipart
// and presign surfaces the orchestrator touches.
type fakeStore struct {
	mu sync.Mutex

	objects map[string][]byte
	uploads map[string]map[int32][]byte // uploadID -> parts
	orphans map[string]string

	putCalls      int
	createCalls   int
	completeCalls int
	abortCalls    int

	putErr    error
	partErr   func(number int32) error
	nextID    int
	uploadKey map[string]string // uploadID -> key
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:   make(map[string][]byte),
		uploads:   make(map[string]map[int32][]byte),
		uploadKey: make(map[string]string),
	}
}

func (f *fakeStore) Provider() objectstore.Provider { return objectstore.ProviderS3 }

func (f *fakeStore) Put(ctx context.Context, key string, reader io.Reader, size int64, opts ...objectstore.PutOption) error {
	f.mu.Lock()
	f.putCalls++
	err := f.putErr
	f.mu.Unlock()
	if err != nil {
		return err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, objectstore.NewError("get", key, "s3", objectstore.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) Stat(ctx context.Context, key string) (*objectstore.ObjectMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, objectstore.NewError("stat", key, "s3", objectstore.ErrNotFound)
	}
	return &objectstore.ObjectMeta{Key: key, Size: int64(len(data)), ETag: `"fake-etag"`}, nil
}

func (f *fakeStore) List(ctx context.Context, prefix string, opts ...objectstore.ListOption) ([]objectstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []objectstore.ObjectInfo
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, objectstore.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return infos, nil
}

func (f *fakeStore) CreateUpload(ctx context.Context, key string, opts ...objectstore.PutOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = make(map[int32][]byte)
	f.uploadKey[id] = key
	return id, nil
}

func (f *fakeStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, reader io.Reader, size int64) (string, error) {
	if f.partErr != nil {
		if err := f.partErr(partNumber); err != nil {
			return "", err
		}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.uploads[uploadID]
	if !ok {
		return "", objectstore.NewError("upload_part", key, "s3", objectstore.ErrNotFound)
	}
	parts[partNumber] = data
	return fmt.Sprintf(`"etag-%d"`, partNumber), nil
}

func (f *fakeStore) CompleteUpload(ctx context.Context, key, uploadID string, parts []objectstore.Part) (*objectstore.ObjectMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++

	stored, ok := f.uploads[uploadID]
	if !ok {
		return nil, objectstore.NewError("complete_upload", key, "s3", objectstore.ErrNotFound)
	}

	numbers := make([]int32, 0, len(parts))
	for _, p := range parts {
		numbers = append(numbers, p.Number)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	var assembled []byte
	for _, n := range numbers {
		assembled = append(assembled, stored[n]...)
	}
	f.objects[key] = assembled
	delete(f.uploads, uploadID)
	return &objectstore.ObjectMeta{Key: key, Size: int64(len(assembled)), ETag: `"fake-multipart-etag"`}, nil
}

func (f *fakeStore) AbortUpload(ctx context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortCalls++
	delete(f.uploads, uploadID)
	delete(f.orphans, key)
	return nil
}

func (f *fakeStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://store.example/%s?expires=%d", key, int64(expiry.Seconds())), nil
}

func (f *fakeStore) ListOrphanedUploads(ctx context.Context, prefix string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.orphans))
	for k, v := range f.orphans {
		out[k] = v
	}
	return out, nil
}

// recordingSink captures everything the orchestrator reports upward.
type recordingSink struct {
	mu        sync.Mutex
	snapshots []transfer.Snapshot
	result    *Result
	err       error
	terminal  int
}

func (r *recordingSink) ReportProgress(s transfer.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recordingSink) ReportTerminal(result *Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = result
	r.err = err
	r.terminal++
}

func testConfig() *Config {
	config, _ := NewConfig()
	config.Logger = logging.Discard()
	config.MaxFileSize = 1024 * 1024 // 1 MiB
	config.SinglePartThreshold = 100 * 1024
	config.ChunkSize = 16 * 1024
	config.MaxTransfers = 2
	config.MaxChunks = 4
	config.ChunkTimeout = 5 * time.Second
	config.ProgressInterval = time.Millisecond
	config.StagingDir = "/staging"
	return config
}

func testOrchestrator(t *testing.T, store *fakeStore) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(testConfig(), store, store, store, afero.NewMemMapFs(), nil, logging.NewTestLogger())
	require.NoError(t, err)
	return o
}

func inbound(data []byte, declaredSize int64, name string) InboundFile {
	return InboundFile{
		Stream:       io.NopCloser(bytes.NewReader(data)),
		DeclaredSize: declaredSize,
		DisplayName:  name,
	}
}

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return buf
}

func TestTransferSmallFileSinglePart(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store)
	sink := &recordingSink{}

	payload := randomPayload(t, 10*1024) // well under the 100 KiB threshold
	result, err := o.Transfer(context.Background(), inbound(payload, int64(len(payload)), "photo.jpg"), sink)
	require.NoError(t, err)

	assert.Equal(t, transfer.SinglePart, result.Strategy)
	assert.Equal(t, StateLinkIssued, result.State)
	assert.Equal(t, int64(len(payload)), result.Size)
	assert.NotEmpty(t, result.Link.URL)
	assert.False(t, result.Link.Expired())

	// single-shot path never opens a multipart session
	assert.Equal(t, 1, store.putCalls)
	assert.Zero(t, store.createCalls)

	assert.Equal(t, payload, store.objects[result.Key])
	assert.Equal(t, 1, sink.terminal)
	require.NotNil(t, sink.result)
	assert.Nil(t, sink.err)
}

func TestTransferLargeFileChunked(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store)
	sink := &recordingSink{}

	payload := randomPayload(t, 320*1024) // 20 chunks of 16 KiB
	result, err := o.Transfer(context.Background(), inbound(payload, int64(len(payload)), "video.mp4"), sink)
	require.NoError(t, err)

	assert.Equal(t, transfer.Chunked, result.Strategy)
	assert.Equal(t, 1, store.createCalls)
	assert.Equal(t, 1, store.completeCalls)
	assert.Zero(t, store.putCalls)
	assert.Zero(t, store.abortCalls)

	assert.Equal(t, payload, store.objects[result.Key], "reassembled object must match the source")

	// final progress must account for every byte exactly once
	require.NotEmpty(t, sink.snapshots)
	final := sink.snapshots[len(sink.snapshots)-1]
	assert.Equal(t, int64(len(payload)), final.BytesTransferred)
}

func TestTransferUnknownSizeGoesChunked(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store)

	payload := randomPayload(t, 30*1024)
	result, err := o.Transfer(context.Background(), inbound(payload, transfer.SizeUnknown, "stream.bin"), nil)
	require.NoError(t, err)

	assert.Equal(t, transfer.Chunked, result.Strategy)
	assert.Equal(t, 1, store.createCalls)
	assert.Zero(t, store.putCalls)
}

func TestTransferRejectsOversizedDeclaration(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store)
	sink := &recordingSink{}

	file := inbound(nil, 10*1024*1024, "huge.iso") // over the 1 MiB cap
	_, err := o.Transfer(context.Background(), file, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Contains(t, err.Error(), "1MiB", "rejection must name the limit")

	// rejected before any store traffic
	assert.Zero(t, store.putCalls)
	assert.Zero(t, store.createCalls)
	assert.Equal(t, 1, sink.terminal)
}

func TestTransferUnknownSizeStreamOverLimitAborts(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store)

	payload := randomPayload(t, 1024*1024+512) // one byte class over the cap
	_, err := o.Transfer(context.Background(), inbound(payload, transfer.SizeUnknown, "runaway.bin"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// the opened session must not leak
	assert.Equal(t, 1, store.createCalls)
	assert.Equal(t, 1, store.abortCalls)
	assert.Zero(t, store.completeCalls)
}

func TestTransferStoreRejectionFailsWithoutFinalize(t *testing.T) {
	store := newFakeStore()
	store.partErr = func(number int32) error {
		if number == 14 {
			return objectstore.NewError("upload_part", "", "s3", objectstore.ErrRejected)
		}
		return nil
	}
	o := testOrchestrator(t, store)
	sink := &recordingSink{}

	payload := randomPayload(t, 320*1024)
	_, err := o.Transfer(context.Background(), inbound(payload, int64(len(payload)), "doomed.mkv"), sink)
	require.Error(t, err)

	assert.Equal(t, 1, store.abortCalls)
	assert.Zero(t, store.completeCalls)

	// the chat-facing message carries no store internals
	msg := UserMessage(err)
	assert.NotContains(t, msg, "objectstore")
	assert.NotContains(t, msg, "upload_part")
	assert.NotEmpty(t, msg)
}

func TestTransferReleasesPermitOnFailure(t *testing.T) {
	store := newFakeStore()
	store.putErr = objectstore.NewError("put", "", "s3", objectstore.ErrUnavailable)
	o := testOrchestrator(t, store)

	payload := randomPayload(t, 1024)
	for i := 0; i < 5; i++ { // more failures than transfer slots
		_, err := o.Transfer(context.Background(), inbound(payload, int64(len(payload)), "a.bin"), nil)
		require.Error(t, err)
	}

	// a healthy transfer still gets a slot afterwards
	store.putErr = nil
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := o.Transfer(ctx, inbound(payload, int64(len(payload)), "b.bin"), nil)
	require.NoError(t, err)
}

func TestLinkForExistingObject(t *testing.T) {
	store := newFakeStore()
	store.objects["uploads/id/a.bin"] = []byte("data")
	o := testOrchestrator(t, store)

	link, err := o.Link(context.Background(), "uploads/id/a.bin", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, link.URL, "uploads/id/a.bin")
	assert.False(t, link.Expired())
}

func TestLinkForMissingObject(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store)

	_, err := o.Link(context.Background(), "uploads/nope", time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestFetchStagesAndCleansUp(t *testing.T) {
	store := newFakeStore()
	payload := randomPayload(t, 64*1024)
	store.objects["uploads/id/a.bin"] = payload

	staging := afero.NewMemMapFs()
	o, err := NewOrchestrator(testConfig(), store, store, store, staging, nil, logging.Discard())
	require.NoError(t, err)

	reader, meta, err := o.Fetch(context.Background(), "uploads/id/a.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), meta.Size)

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NoError(t, reader.Close())

	// staging artifact must be gone after close
	entries, err := afero.ReadDir(staging, testConfig().StagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove(t *testing.T) {
	store := newFakeStore()
	store.objects["uploads/id/a.bin"] = []byte("data")
	o := testOrchestrator(t, store)

	require.NoError(t, o.Remove(context.Background(), "uploads/id/a.bin"))
	exists, err := store.Exists(context.Background(), "uploads/id/a.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAbortOrphans(t *testing.T) {
	store := newFakeStore()
	store.orphans = map[string]string{
		"uploads/x/a.bin": "upload-old-1",
		"uploads/y/b.bin": "upload-old-2",
	}
	o := testOrchestrator(t, store)

	require.NoError(t, o.AbortOrphans(context.Background()))
	assert.Equal(t, 2, store.abortCalls)
}
