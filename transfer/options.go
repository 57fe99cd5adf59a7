package transfer

import (
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/rs/zerolog"

	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// WithWorkers sets the worker pool size for each batch.
// Default is 5 workers.
func WithWorkers(workers int) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		if workers > 0 {
			c.Workers = workers
		}
	}
}

// WithWorkerModel selects the concurrency substrate executing batches.
// Default is the goroutines model; the processes model additionally
// requires WithWorkerSpec.
func WithWorkerModel(model transfertypes.WorkerModel) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		c.Model = model
	}
}

// WithChunkSize sets the streaming copy chunk size for file transfers.
// Default is 32MB.
func WithChunkSize(chunkSize int64) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		if chunkSize > 0 {
			c.ChunkSize = chunkSize
		}
	}
}

// WithTimeout sets the per-request deadline. Each request gets its own
// timer; a slow request never consumes another request's budget.
// Default is 5 minutes. Set to 0 to disable.
func WithTimeout(timeout time.Duration) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		c.Timeout = timeout
	}
}

// WithDecodeContent toggles transparent HTTP response decompression for web
// downloads. Default is true.
func WithDecodeContent(decode bool) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		c.DecodeContent = decode
	}
}

// WithMetadata attaches key/value tags to every uploaded object. Tagging is
// best effort: failures are logged, never surfaced as transfer errors.
// Merged over the ambient job identity read from the environment.
func WithMetadata(metadata map[string]string) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		c.Metadata = metadata
	}
}

// WithHeaders sets extra HTTP headers sent with every web download.
func WithHeaders(headers map[string]string) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		c.Headers = headers
	}
}

// WithWorkerSpec provides the serializable client configuration that child
// worker processes rebuild their transports from. Required when the
// processes worker model is selected.
func WithWorkerSpec(spec *transfertypes.WorkerSpec) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		c.WorkerSpec = spec
	}
}

// WithFilesystem sets the filesystem abstraction for local file access.
// Defaults to the OS filesystem; an in-memory filesystem is useful in tests.
func WithFilesystem(fsys fs.Filesystem) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		c.Filesystem = fsys
	}
}

// WithLogger sets the engine's logger. The default logger discards
// everything.
func WithLogger(logger zerolog.Logger) transfertypes.Option {
	return func(c *transfertypes.EngineConfig) {
		c.Logger = &logger
	}
}

// WithCallWorkers overrides the worker pool size for one call.
func WithCallWorkers(workers int) transfertypes.CallOption {
	return func(c *transfertypes.CallConfig) {
		if workers > 0 {
			c.Workers = workers
		}
	}
}

// WithCallModel overrides the worker model for one call.
func WithCallModel(model transfertypes.WorkerModel) transfertypes.CallOption {
	return func(c *transfertypes.CallConfig) {
		c.Model = model
	}
}

// WithCallChunkSize overrides the streaming chunk size for one call.
func WithCallChunkSize(chunkSize int64) transfertypes.CallOption {
	return func(c *transfertypes.CallConfig) {
		if chunkSize > 0 {
			c.ChunkSize = chunkSize
		}
	}
}

// WithCallTimeout overrides the per-request deadline for one call.
func WithCallTimeout(timeout time.Duration) transfertypes.CallOption {
	return func(c *transfertypes.CallConfig) {
		c.Timeout = timeout
	}
}

// WithCallDecodeContent overrides HTTP decompression for one call.
func WithCallDecodeContent(decode bool) transfertypes.CallOption {
	return func(c *transfertypes.CallConfig) {
		c.DecodeContent = &decode
	}
}

// WithCodecOptions passes format-specific options through to the codec
// handling each request in the call, for example {"delimiter": ";"} for CSV
// or {"sheet": "Data"} for Excel. Unknown keys are ignored.
func WithCodecOptions(opts map[string]any) transfertypes.CallOption {
	return func(c *transfertypes.CallConfig) {
		c.CodecOptions = opts
	}
}

// WithCallMetadata adds upload tags for one call, merged over the engine's.
func WithCallMetadata(metadata map[string]string) transfertypes.CallOption {
	return func(c *transfertypes.CallConfig) {
		c.Metadata = metadata
	}
}

// WithCallHeaders adds web download headers for one call, merged over the
// engine's.
func WithCallHeaders(headers map[string]string) transfertypes.CallOption {
	return func(c *transfertypes.CallConfig) {
		c.Headers = headers
	}
}
