// Package transfer implements a batch transfer engine for moving data
// between remote stores and local files or memory.
//
// The Engine accepts one-to-many transfer batches, normalizes heterogeneous
// input shapes into uniform requests, expands glob patterns against the
// store, dispatches format codecs by file extension, and executes the batch
// on a worker pool. Three delivery contracts are offered: Download and
// Upload block until the whole batch completes, Stream returns a channel of
// results as they complete, and Submit returns per-request handles with
// polling, waiting, and cooperative cancellation.
//
// Example:
//
//	engine := transfer.New(store, transfer.WithWorkers(8))
//	batch, err := engine.Download(ctx, []transfertypes.Item{
//	    transfer.Remote("s3://bucket/data/*.parquet"),
//	})
package transfer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/rs/zerolog"

	"github.com/colpal/dataeng-container-tools/httpfetch"
	"github.com/colpal/dataeng-container-tools/objstore"
	transfererrors "github.com/colpal/dataeng-container-tools/transfer/errors"
	"github.com/colpal/dataeng-container-tools/transfer/internal/codec"
	"github.com/colpal/dataeng-container-tools/transfer/internal/normalize"
	"github.com/colpal/dataeng-container-tools/transfer/internal/remotepath"
	"github.com/colpal/dataeng-container-tools/transfer/internal/runner"
	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// Engine defaults. Each can be overridden at construction or per call.
const (
	DefaultWorkers   = 5
	DefaultChunkSize = 32 * 1024 * 1024
	DefaultTimeout   = 5 * time.Minute
)

// Ambient job identity read from the environment and attached to uploads as
// object tags, keyed by the lowercased variable name.
var metadataEnvVars = []string{"DAG_ID", "RUN_ID", "NAMESPACE", "POD_NAME", "GITHUB_SHA"}

// Engine executes transfer batches against an object store and the web.
// Safe for concurrent use; each call runs its own worker pool.
type Engine struct {
	store objstore.Store
	fsys  fs.Filesystem
	log   zerolog.Logger
	cfg   transfertypes.EngineConfig
}

// New creates an engine backed by the given store. A nil store is allowed
// for web-only downloads. Options adjust worker count, worker model, chunk
// size, timeouts, metadata tagging, and local filesystem access.
func New(store objstore.Store, opts ...transfertypes.Option) *Engine {
	cfg := transfertypes.EngineConfig{
		Workers:       DefaultWorkers,
		Model:         transfertypes.WorkerGoroutines,
		ChunkSize:     DefaultChunkSize,
		Timeout:       DefaultTimeout,
		DecodeContent: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	fsys := cfg.Filesystem
	if fsys == nil {
		fsys = billy.NewOSFS("/")
	}
	// Quiet by default; callers opt into logging with WithLogger.
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	return &Engine{
		store: store,
		fsys:  fsys,
		log:   log,
		cfg:   cfg,
	}
}

// Download executes a batch of download items and blocks until every
// request resolves. Shape, URI, and glob errors fail the whole batch before
// anything runs; transport failures are carried per request in the result.
//
// Returns:
//   - *BatchResult: one result per request in completion order, with
//     Objects() mapping destination keys to decoded payloads
//   - error: batch-fatal validation errors only
func (e *Engine) Download(ctx context.Context, items []transfertypes.Item, opts ...transfertypes.CallOption) (*BatchResult, error) {
	return e.runBlocking(ctx, transfertypes.DirectionDownload, items, opts)
}

// Upload executes a batch of upload items and blocks until every request
// resolves. See Download for the error contract; an upload whose
// destination extension has no encoder fails that request only, and writes
// nothing.
func (e *Engine) Upload(ctx context.Context, items []transfertypes.Item, opts ...transfertypes.CallOption) (*BatchResult, error) {
	return e.runBlocking(ctx, transfertypes.DirectionUpload, items, opts)
}

// Stream executes a batch and returns a channel delivering results as they
// complete. The channel carries exactly one result per request and is
// closed when the batch is done. The channel is buffered to the batch size,
// so a slow consumer never blocks the workers.
func (e *Engine) Stream(ctx context.Context, direction transfertypes.Direction, items []transfertypes.Item, opts ...transfertypes.CallOption) (<-chan transfertypes.Result, error) {
	results, _, err := e.start(ctx, direction, items, opts)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Submit executes a batch and returns a handle exposing per-request
// completion, polling, and cooperative cancellation. Cancel skips requests
// that have not started; in-flight requests run to completion.
func (e *Engine) Submit(ctx context.Context, direction transfertypes.Direction, items []transfertypes.Item, opts ...transfertypes.CallOption) (*BatchHandle, error) {
	settings, err := e.settings(opts)
	if err != nil {
		return nil, err
	}
	requests, err := e.prepare(ctx, direction, items, settings)
	if err != nil {
		return nil, err
	}

	skip := &atomic.Bool{}
	results := runner.Run(ctx, settings.workers, requests, skip, e.factory(settings))

	batch := &BatchHandle{
		handles: make([]*Handle, len(requests)),
		skip:    skip,
		done:    make(chan struct{}),
	}
	for i, req := range requests {
		batch.handles[i] = newHandle(req)
	}
	go func() {
		for res := range results {
			batch.results = append(batch.results, res)
			batch.handles[res.Request.Ordinal].complete(res)
		}
		close(batch.done)
	}()
	return batch, nil
}

func (e *Engine) runBlocking(ctx context.Context, direction transfertypes.Direction, items []transfertypes.Item, opts []transfertypes.CallOption) (*BatchResult, error) {
	results, _, err := e.start(ctx, direction, items, opts)
	if err != nil {
		return nil, err
	}
	batch := &BatchResult{}
	for res := range results {
		batch.results = append(batch.results, res)
	}
	return batch, nil
}

// start validates and normalizes the batch and launches the worker pool.
// Returns the completion channel and the cancellation flag.
func (e *Engine) start(ctx context.Context, direction transfertypes.Direction, items []transfertypes.Item, opts []transfertypes.CallOption) (<-chan transfertypes.Result, *atomic.Bool, error) {
	settings, err := e.settings(opts)
	if err != nil {
		return nil, nil, err
	}
	requests, err := e.prepare(ctx, direction, items, settings)
	if err != nil {
		return nil, nil, err
	}

	e.log.Debug().
		Str("direction", string(direction)).
		Str("batch_id", settings.batchID).
		Int("requests", len(requests)).
		Int("workers", settings.workers).
		Str("model", string(settings.model)).
		Msg("starting batch")

	skip := &atomic.Bool{}
	results := runner.Run(ctx, settings.workers, requests, skip, e.factory(settings))
	return results, skip, nil
}

// callSettings is the engine configuration after per-call overrides.
type callSettings struct {
	workers       int
	model         transfertypes.WorkerModel
	chunkSize     int64
	timeout       time.Duration
	decodeContent bool
	codecOptions  map[string]any
	metadata      map[string]string
	headers       map[string]string
	workerSpec    *transfertypes.WorkerSpec
	batchID       string
}

func (e *Engine) settings(opts []transfertypes.CallOption) (*callSettings, error) {
	call := &transfertypes.CallConfig{}
	for _, opt := range opts {
		opt(call)
	}

	s := &callSettings{
		workers:       e.cfg.Workers,
		model:         e.cfg.Model,
		chunkSize:     e.cfg.ChunkSize,
		timeout:       e.cfg.Timeout,
		decodeContent: e.cfg.DecodeContent,
		codecOptions:  call.CodecOptions,
		workerSpec:    e.cfg.WorkerSpec,
		batchID:       uuid.NewString(),
	}
	if call.Workers > 0 {
		s.workers = call.Workers
	}
	if call.Model != "" {
		s.model = call.Model
	}
	if call.ChunkSize > 0 {
		s.chunkSize = call.ChunkSize
	}
	if call.Timeout > 0 {
		s.timeout = call.Timeout
	}
	if call.DecodeContent != nil {
		s.decodeContent = *call.DecodeContent
	}
	s.metadata = mergeMaps(envMetadata(), e.cfg.Metadata, call.Metadata)
	s.metadata["batch_id"] = s.batchID
	s.headers = mergeMaps(e.cfg.Headers, call.Headers)

	switch s.model {
	case transfertypes.WorkerGoroutines:
	case transfertypes.WorkerProcesses:
		if s.workerSpec == nil {
			return nil, fmt.Errorf("transfer: processes worker model requires a worker spec")
		}
	default:
		return nil, fmt.Errorf("transfer: unknown worker model %q", s.model)
	}
	return s, nil
}

// prepare normalizes the items and expands glob sources against the store.
// Every error here is batch-fatal.
func (e *Engine) prepare(ctx context.Context, direction transfertypes.Direction, items []transfertypes.Item, settings *callSettings) ([]transfertypes.Request, error) {
	normalized, err := normalize.Requests(direction, items, settings.codecOptions)
	if err != nil {
		return nil, err
	}

	requests := make([]transfertypes.Request, 0, len(normalized))
	for _, req := range normalized {
		if direction != transfertypes.DirectionDownload || req.Remote.IsWeb() || !remotepath.IsPattern(req.Remote.Path) {
			requests = append(requests, req)
			continue
		}
		if e.store == nil {
			return nil, transfererrors.NewError("expand", errNoStore).WithSource(req.Remote.String())
		}
		locations, err := remotepath.Expand(ctx, e.store, req.Remote)
		if err != nil {
			return nil, err
		}
		for _, loc := range locations {
			expanded := req
			expanded.Remote = loc
			expanded.Key = loc.Path
			requests = append(requests, expanded)
		}
	}
	for i := range requests {
		requests[i].Ordinal = i
	}
	return requests, nil
}

// factory selects the worker construction strategy for the batch.
func (e *Engine) factory(settings *callSettings) runner.WorkerFactory {
	if settings.model == transfertypes.WorkerProcesses {
		return e.procFactory(settings)
	}
	return runner.Shared(e.performer(settings))
}

// performer builds the in-process perform function: transport plus codec
// binding, with the per-request timeout applied around both.
func (e *Engine) performer(settings *callSettings) runner.Perform {
	m := e.mover(settings)
	return func(ctx context.Context, req transfertypes.Request) transfertypes.Result {
		if settings.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, settings.timeout)
			defer cancel()
		}
		return performOne(ctx, m, req)
	}
}

func (e *Engine) mover(settings *callSettings) *mover {
	return &mover{
		store: e.store,
		fetch: httpfetch.New(
			httpfetch.WithTimeout(0),
			httpfetch.WithChunkSize(settings.chunkSize),
			httpfetch.WithDecodeContent(settings.decodeContent),
		),
		fsys:      e.fsys,
		chunkSize: settings.chunkSize,
		headers:   settings.headers,
		metadata:  settings.metadata,
		log:       e.log,
	}
}

// performOne executes one request end to end: encode structured uploads,
// move bytes, decode in-memory sink downloads.
func performOne(ctx context.Context, m *mover, req transfertypes.Request) transfertypes.Result {
	res := transfertypes.Result{Request: req}

	if req.Direction == transfertypes.DirectionUpload && req.Table != nil {
		data, err := encodeTable(req)
		if err != nil {
			res.Err = err
			return res
		}
		req.Table = nil
		req.Data = data
	}

	path, raw, err := m.move(ctx, req)
	if err != nil {
		res.Err = classify(string(req.Direction), req, err)
		return res
	}
	if req.Direction == transfertypes.DirectionUpload {
		return res
	}
	if path != "" {
		res.Path = path
		return res
	}

	payload, err := codec.ForExtension(req.Remote.Ext()).Decode(raw, req.CodecOptions)
	if err != nil {
		res.Err = classify("decode", req, err)
		return res
	}
	res.Payload = payload
	return res
}

// encodeTable serializes a structured upload payload using the codec bound
// to the destination's extension.
func encodeTable(req transfertypes.Request) ([]byte, error) {
	ext := req.Remote.Ext()
	data, err := codec.ForExtension(ext).Encode(req.Table, req.CodecOptions)
	if err != nil {
		if errors.Is(err, transfererrors.ErrUnsupportedUploadFormat) {
			return nil, transfererrors.NewError("encode", err).
				WithDest(req.Remote.String()).
				WithMessage("no encoder for " + extLabel(ext))
		}
		return nil, transfererrors.NewError("encode", fmt.Errorf("%w: %v", transfererrors.ErrTransferFailed, err)).
			WithDest(req.Remote.String())
	}
	return data, nil
}

func extLabel(ext string) string {
	if ext == "" {
		return "extensionless destination"
	}
	return ext
}

// classify maps a transport or codec error into the engine's failure
// taxonomy, preserving the message.
func classify(op string, req transfertypes.Request, err error) error {
	wrap := func(cause error) *transfererrors.Error {
		return withEndpoints(transfererrors.NewError(op, cause), req)
	}

	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return wrap(transfererrors.ErrTimeout)
	case errors.As(err, &nerr) && nerr.Timeout():
		return wrap(fmt.Errorf("%w: %v", transfererrors.ErrTimeout, err))
	case errors.Is(err, context.Canceled):
		return wrap(transfererrors.ErrCanceled)
	default:
		return wrap(fmt.Errorf("%w: %v", transfererrors.ErrTransferFailed, err))
	}
}

// withEndpoints attaches the request's source and destination to an error.
func withEndpoints(e *transfererrors.Error, req transfertypes.Request) *transfererrors.Error {
	if req.Direction == transfertypes.DirectionUpload {
		return e.WithDest(req.Remote.String())
	}
	e = e.WithSource(req.Remote.String())
	if req.LocalPath != "" {
		e = e.WithDest(req.LocalPath)
	}
	return e
}

// envMetadata collects the ambient job identity from the environment.
func envMetadata() map[string]string {
	metadata := make(map[string]string)
	for _, name := range metadataEnvVars {
		if v := os.Getenv(name); v != "" {
			metadata[strings.ToLower(name)] = v
		}
	}
	return metadata
}

// mergeMaps overlays maps left to right into a fresh map.
func mergeMaps(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
