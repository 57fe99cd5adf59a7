// Package transfer provides end-to-end tests for the batch engine against
// an in-memory store and filesystem.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colpal/dataeng-container-tools/objstore"
	transfererrors "github.com/colpal/dataeng-container-tools/transfer/errors"
	"github.com/colpal/dataeng-container-tools/transfer/internal/remotepath"
	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// TestMain doubles as the entry point for child worker processes spawned by
// the processes-model tests, which re-execute this binary.
func TestMain(m *testing.M) {
	if ran, err := RunWorker(); ran {
		if err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func seedStore(t *testing.T, objects map[string]string) *objstore.Memory {
	t.Helper()
	store := objstore.NewMemory()
	for key, content := range objects {
		require.NoError(t, store.Put(context.Background(), "bucket", key, bytes.NewReader([]byte(content)), int64(len(content)), ""))
	}
	return store
}

// TestDownload_ToMemory tests decoding a store object into the payload map.
func TestDownload_ToMemory(t *testing.T) {
	store := seedStore(t, map[string]string{"data/users.csv": "id,name\n1,alice\n"})
	engine := New(store)

	batch, err := engine.Download(context.Background(), []transfertypes.Item{
		Remote("s3://bucket/data/users.csv"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())

	objects := batch.Objects()
	require.Contains(t, objects, "data/users.csv")
	payload := objects["data/users.csv"]
	require.True(t, payload.IsTable())
	assert.Equal(t, "alice", payload.Table.Rows[0]["name"])
}

// TestDownload_UnrecognizedExtension tests the identity fallback.
func TestDownload_UnrecognizedExtension(t *testing.T) {
	store := seedStore(t, map[string]string{"blob.bin": "\x00\x01\x02"})
	engine := New(store)

	batch, err := engine.Download(context.Background(), []transfertypes.Item{
		Remote("s3://bucket/blob.bin"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())

	payload := batch.Objects()["blob.bin"]
	require.NotNil(t, payload)
	assert.False(t, payload.IsTable())
	assert.Equal(t, []byte("\x00\x01\x02"), payload.Raw)
}

// TestDownload_Glob tests expansion of wildcard sources against the store.
func TestDownload_Glob(t *testing.T) {
	store := seedStore(t, map[string]string{
		"data/a.csv":     "x\n1\n",
		"data/b.csv":     "x\n2\n",
		"data/notes.txt": "skip",
		"data/sub/c.csv": "x\n3\n",
	})
	engine := New(store)

	t.Run("segment bound", func(t *testing.T) {
		batch, err := engine.Download(context.Background(), []transfertypes.Item{
			Remote("s3://bucket/data/*.csv"),
		})
		require.NoError(t, err)
		require.NoError(t, batch.Err())
		assert.Len(t, batch.Results(), 2)

		objects := batch.Objects()
		assert.Contains(t, objects, "data/a.csv")
		assert.Contains(t, objects, "data/b.csv")
	})

	t.Run("recursive", func(t *testing.T) {
		batch, err := engine.Download(context.Background(), []transfertypes.Item{
			Remote("s3://bucket/data/**/*.csv"),
		})
		require.NoError(t, err)
		assert.Len(t, batch.Results(), 3)
	})

	t.Run("no matches is an empty batch", func(t *testing.T) {
		batch, err := engine.Download(context.Background(), []transfertypes.Item{
			Remote("s3://bucket/data/*.parquet"),
		})
		require.NoError(t, err)
		assert.Empty(t, batch.Results())
	})
}

// TestDownload_LastWriterWins tests destination key collisions in the
// payload map.
func TestDownload_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	require.NoError(t, store.Put(ctx, "b1", "x.csv", bytes.NewReader([]byte("v\n1\n")), 4, ""))
	require.NoError(t, store.Put(ctx, "b2", "x.csv", bytes.NewReader([]byte("v\n2\n")), 4, ""))

	engine := New(store)
	batch, err := engine.Download(ctx, []transfertypes.Item{
		Remote("s3://b1/x.csv"),
		Remote("s3://b2/x.csv"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())

	assert.Len(t, batch.Results(), 2)
	assert.Len(t, batch.Objects(), 1, "colliding keys collapse to the later completion")
}

// TestDownload_ToFile tests writing a store object to a local file.
func TestDownload_ToFile(t *testing.T) {
	store := seedStore(t, map[string]string{"data/file.bin": "payload-bytes"})
	fsys := billy.NewInMemoryFS()
	engine := New(store, WithFilesystem(fsys))

	batch, err := engine.Download(context.Background(), []transfertypes.Item{
		ToFile("s3://bucket/data/file.bin", "/out/nested/file.bin"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())
	assert.Equal(t, []string{"/out/nested/file.bin"}, batch.Paths())

	data, err := fsys.ReadFile("/out/nested/file.bin")
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes", string(data))
}

// TestDownload_Web tests fetching and decoding an HTTP source.
func TestDownload_Web(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.Header.Get("X-Auth"))
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	engine := New(nil, WithHeaders(map[string]string{"X-Auth": "token"}))
	batch, err := engine.Download(context.Background(), []transfertypes.Item{
		Remote(srv.URL + "/records.json"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())

	payload := batch.Objects()[srv.URL+"/records.json"]
	require.NotNil(t, payload)
	require.True(t, payload.IsTable())
	assert.Equal(t, 1, payload.Table.NumRows())
}

// TestDownload_BatchFatal tests that validation errors stop the whole batch
// before anything runs.
func TestDownload_BatchFatal(t *testing.T) {
	store := seedStore(t, map[string]string{"good.csv": "a\n1\n"})
	engine := New(store)

	tests := []struct {
		name  string
		items []transfertypes.Item
		check func(error) bool
	}{
		{
			name:  "malformed uri",
			items: []transfertypes.Item{Remote("s3://bucket/good.csv"), Remote("not-a-uri")},
			check: transfererrors.IsMalformedURI,
		},
		{
			name:  "glob with file destination",
			items: []transfertypes.Item{ToFile("s3://bucket/*.csv", "/tmp/one.csv")},
			check: func(err error) bool { return errors.Is(err, transfererrors.ErrInvalidGlobUsage) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := engine.Download(context.Background(), tt.items)
			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.Nil(t, batch)
		})
	}
}

// TestDownload_EmptyBatch tests that an empty batch is a successful no-op.
func TestDownload_EmptyBatch(t *testing.T) {
	engine := New(objstore.NewMemory())
	batch, err := engine.Download(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Results())
	assert.NoError(t, batch.Err())
}

// TestDownload_TransportFailureIsolated tests that a missing object fails
// its own request only.
func TestDownload_TransportFailureIsolated(t *testing.T) {
	store := seedStore(t, map[string]string{"present.csv": "a\n1\n"})
	engine := New(store)

	batch, err := engine.Download(context.Background(), []transfertypes.Item{
		Remote("s3://bucket/present.csv"),
		Remote("s3://bucket/absent.csv"),
	})
	require.NoError(t, err, "transport failures are per-request, not batch-fatal")

	require.Len(t, batch.Results(), 2)
	failed := batch.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "absent.csv", failed[0].Request.Key)
	assert.ErrorIs(t, failed[0].Err, transfererrors.ErrTransferFailed)
	assert.Contains(t, batch.Objects(), "present.csv")
}

// TestDownload_Timeout tests the per-request deadline.
func TestDownload_Timeout(t *testing.T) {
	store := &slowStore{Store: seedStore(t, map[string]string{"slow.csv": "a\n1\n"}), delay: 500 * time.Millisecond}
	engine := New(store)

	batch, err := engine.Download(context.Background(), []transfertypes.Item{
		Remote("s3://bucket/slow.csv"),
	}, WithCallTimeout(20*time.Millisecond))
	require.NoError(t, err)

	failed := batch.Failed()
	require.Len(t, failed, 1)
	assert.True(t, transfererrors.IsTimeout(failed[0].Err))
}

// TestUpload_Table tests structured uploads via the destination extension.
func TestUpload_Table(t *testing.T) {
	store := objstore.NewMemory()
	engine := New(store)
	table := &transfertypes.Table{
		Columns: []string{"id", "name"},
		Rows:    []map[string]any{{"id": "1", "name": "alice"}},
	}

	batch, err := engine.Upload(context.Background(), []transfertypes.Item{
		FromTable(table, "s3://bucket/out/users.csv"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())

	assert.Equal(t, "id,name\n1,alice\n", string(store.Bytes("bucket", "out/users.csv")))
}

// TestUpload_UnsupportedFormat tests that a structured upload to an
// unrecognized extension fails its request without writing, while the rest
// of the batch proceeds.
func TestUpload_UnsupportedFormat(t *testing.T) {
	store := objstore.NewMemory()
	engine := New(store)
	table := &transfertypes.Table{Columns: []string{"a"}, Rows: []map[string]any{{"a": "1"}}}

	batch, err := engine.Upload(context.Background(), []transfertypes.Item{
		FromTable(table, "s3://bucket/bad.zzz"),
		FromTable(table, "s3://bucket/good.json"),
	})
	require.NoError(t, err)

	failed := batch.Failed()
	require.Len(t, failed, 1)
	assert.True(t, transfererrors.IsUnsupportedUploadFormat(failed[0].Err))
	assert.False(t, store.Exists("bucket", "bad.zzz"), "failed upload must write nothing")
	assert.True(t, store.Exists("bucket", "good.json"))
}

// TestUpload_RawBytesAnyExtension tests that raw payloads skip the codec.
func TestUpload_RawBytesAnyExtension(t *testing.T) {
	store := objstore.NewMemory()
	engine := New(store)

	batch, err := engine.Upload(context.Background(), []transfertypes.Item{
		FromBytes([]byte("opaque"), "s3://bucket/out.zzz"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())
	assert.Equal(t, "opaque", string(store.Bytes("bucket", "out.zzz")))
}

// TestUpload_FromFile tests uploading a local file verbatim.
func TestUpload_FromFile(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("/src/report.csv", []byte("a,b\n1,2\n"), 0o644))

	store := objstore.NewMemory()
	engine := New(store, WithFilesystem(fsys))

	batch, err := engine.Upload(context.Background(), []transfertypes.Item{
		FromFile("/src/report.csv", "s3://bucket/in/report.csv"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())
	assert.Equal(t, "a,b\n1,2\n", string(store.Bytes("bucket", "in/report.csv")))
}

// TestUpload_MetadataTags tests the best-effort tagging side channel,
// including the ambient environment identity.
func TestUpload_MetadataTags(t *testing.T) {
	t.Setenv("DAG_ID", "daily-load")
	t.Setenv("RUN_ID", "run-7")

	store := objstore.NewMemory()
	engine := New(store, WithMetadata(map[string]string{"team": "dataeng"}))

	batch, err := engine.Upload(context.Background(), []transfertypes.Item{
		FromBytes([]byte("x"), "s3://bucket/tagged.bin"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())

	tags := store.Tags("bucket", "tagged.bin")
	assert.Equal(t, "daily-load", tags["dag_id"])
	assert.Equal(t, "run-7", tags["run_id"])
	assert.Equal(t, "dataeng", tags["team"])
	assert.NotEmpty(t, tags["batch_id"])
}

// TestStream tests the as-completed delivery contract.
func TestStream(t *testing.T) {
	store := seedStore(t, map[string]string{
		"a.csv": "x\n1\n",
		"b.csv": "x\n2\n",
		"c.csv": "x\n3\n",
	})
	engine := New(store, WithWorkers(2))

	results, err := engine.Stream(context.Background(), transfertypes.DirectionDownload, []transfertypes.Item{
		Remote("s3://bucket/*.csv"),
	})
	require.NoError(t, err)

	var count int
	for res := range results {
		require.NoError(t, res.Err)
		count++
	}
	assert.Equal(t, 3, count, "exactly one result per request, then closed")
}

// TestSubmit tests the handle contract: poll, wait, and cancellation.
func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("handles resolve per request", func(t *testing.T) {
		store := seedStore(t, map[string]string{"a.csv": "x\n1\n", "b.csv": "x\n2\n"})
		engine := New(store)

		batch, err := engine.Submit(ctx, transfertypes.DirectionDownload, []transfertypes.Item{
			Remote("s3://bucket/a.csv"),
			Remote("s3://bucket/b.csv"),
		})
		require.NoError(t, err)

		results, err := batch.Wait(ctx)
		require.NoError(t, err)
		assert.Len(t, results, 2)

		for _, h := range batch.Handles() {
			res, done := h.Poll()
			require.True(t, done)
			require.NoError(t, res.Err)
			assert.Equal(t, h.Request().Key, res.Request.Key)
		}
	})

	t.Run("cancel skips pending requests", func(t *testing.T) {
		gate := &gateStore{
			Store:   seedStore(t, map[string]string{"a.csv": "x\n1\n", "b.csv": "x\n2\n"}),
			entered: make(chan struct{}),
			release: make(chan struct{}),
		}
		engine := New(gate, WithWorkers(1))

		batch, err := engine.Submit(ctx, transfertypes.DirectionDownload, []transfertypes.Item{
			Remote("s3://bucket/a.csv"),
			Remote("s3://bucket/b.csv"),
		})
		require.NoError(t, err)

		<-gate.entered
		handle := batch.Handles()[1]
		_, done := handle.Poll()
		assert.False(t, done, "second request has not started yet")

		batch.Cancel()
		close(gate.release)

		results, err := batch.Wait(ctx)
		require.NoError(t, err)
		require.Len(t, results, 2)

		first, done := batch.Handles()[0].Poll()
		require.True(t, done)
		assert.NoError(t, first.Err, "in-flight request runs to completion")

		second, err := handle.Wait(ctx)
		require.NoError(t, err)
		assert.True(t, transfererrors.IsCanceled(second.Err))
	})
}

// TestProcessModel_RequiresSpec tests the processes-model configuration
// contract.
func TestProcessModel_RequiresSpec(t *testing.T) {
	engine := New(objstore.NewMemory(), WithWorkerModel(transfertypes.WorkerProcesses))
	_, err := engine.Download(context.Background(), []transfertypes.Item{Remote("s3://b/k.csv")})
	assert.Error(t, err)
}

// TestWorkerLoop tests the child side of the process protocol directly,
// without spawning: tasks in, results out, in order.
func TestWorkerLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("remote-content"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.txt")
	remote, err := remotepath.Parse(srv.URL + "/file.txt")
	require.NoError(t, err)

	var in, out bytes.Buffer
	enc := json.NewEncoder(&in)
	require.NoError(t, enc.Encode(procTask{Request: transfertypes.Request{
		Direction: transfertypes.DirectionDownload,
		Remote:    remote,
		LocalPath: dest,
	}}))
	require.NoError(t, enc.Encode(procTask{Request: transfertypes.Request{
		Direction: transfertypes.DirectionDownload,
		Remote:    remote,
	}}))

	require.NoError(t, runWorkerLoop(context.Background(), &in, &out, `{"spec":{}}`))

	dec := json.NewDecoder(&out)
	var fileReply, memReply procResult
	require.NoError(t, dec.Decode(&fileReply))
	require.NoError(t, dec.Decode(&memReply))

	assert.Equal(t, dest, fileReply.Path)
	assert.Empty(t, fileReply.Err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "remote-content", string(data))

	assert.Equal(t, []byte("remote-content"), memReply.Raw)
	assert.Empty(t, memReply.Err)
}

// TestProcessModel_WebDownload tests the full processes model, re-executing
// this test binary as the worker.
func TestProcessModel_WebDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"n":1},{"n":2}]`))
	}))
	defer srv.Close()

	engine := New(nil,
		WithWorkerModel(transfertypes.WorkerProcesses),
		WithWorkerSpec(&transfertypes.WorkerSpec{}),
		WithWorkers(2),
	)

	batch, err := engine.Download(context.Background(), []transfertypes.Item{
		Remote(srv.URL + "/data.json"),
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())

	payload := batch.Objects()[srv.URL+"/data.json"]
	require.NotNil(t, payload)
	require.True(t, payload.IsTable())
	assert.Equal(t, 2, payload.Table.NumRows())
}

// slowStore delays reads, honoring context cancellation.
type slowStore struct {
	objstore.Store
	delay time.Duration
}

func (s *slowStore) Get(ctx context.Context, container, key string) (io.ReadCloser, int64, error) {
	select {
	case <-time.After(s.delay):
		return s.Store.Get(ctx, container, key)
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

// gateStore blocks the first read until released, so tests can observe a
// batch mid-flight.
type gateStore struct {
	objstore.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateStore) Get(ctx context.Context, container, key string) (io.ReadCloser, int64, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Store.Get(ctx, container, key)
}
