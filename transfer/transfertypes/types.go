// Package transfertypes provides shared type definitions for the transfer module.
package transfertypes

import (
	"path"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/rs/zerolog"
)

// Direction represents which way a transfer request moves data.
type Direction string

// Predefined transfer directions
const (
	// DirectionDownload moves data from a remote location to a local file or
	// an in-memory sink
	DirectionDownload Direction = "download"

	// DirectionUpload moves data from a local file or an in-memory payload to
	// a remote location
	DirectionUpload Direction = "upload"
)

// WorkerModel represents the concurrency substrate executing a batch.
type WorkerModel string

// Predefined worker models
const (
	// WorkerGoroutines runs requests on a pool of worker goroutines sharing
	// the engine's address space. Best for I/O-bound workloads, which is the
	// common case for network transfers.
	WorkerGoroutines WorkerModel = "goroutines"

	// WorkerProcesses runs requests through a pool of isolated child
	// processes. Only worth the startup and memory overhead when
	// decode/encode work is CPU-heavy.
	WorkerProcesses WorkerModel = "processes"
)

// Location identifies one remote object or URL, parsed into components.
type Location struct {
	// Scheme is the URI scheme ("s3", "gs", "http", "https")
	Scheme string

	// Container is the bucket name, or the host for web locations
	Container string

	// Path is the object key, or the request path for web locations
	Path string

	// Raw is the original location string as supplied by the caller.
	// For web locations it is the exact URL used by the transport.
	Raw string
}

// IsZero reports whether the location is unset.
func (l Location) IsZero() bool {
	return l.Scheme == "" && l.Container == ""
}

// IsWeb reports whether the location is an HTTP or HTTPS URL.
func (l Location) IsWeb() bool {
	return l.Scheme == "http" || l.Scheme == "https"
}

// Ext returns the lowercased file extension of the location's path,
// including the leading dot ("" when there is none).
func (l Location) Ext() string {
	return strings.ToLower(path.Ext(l.Path))
}

// String returns the canonical URI form of the location.
func (l Location) String() string {
	if l.IsWeb() {
		return l.Raw
	}
	return l.Scheme + "://" + l.Container + "/" + l.Path
}

// Table is the structured, column-oriented payload produced and consumed by
// the format codecs. Rows hold one value per column name; a missing key reads
// as nil.
type Table struct {
	// Columns is the ordered list of column names
	Columns []string

	// Rows holds the records, one map per row keyed by column name
	Rows []map[string]any
}

// NumRows returns the number of records in the table.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Payload is the outcome value of a download into an in-memory sink.
// Exactly one of Table and Raw is set, determined by the request's resolved
// extension at dispatch time.
type Payload struct {
	// Table is set when the codec recognized the format
	Table *Table

	// Raw holds the opaque bytes for unrecognized formats
	Raw []byte
}

// IsTable reports whether the payload carries a structured table.
func (p *Payload) IsTable() bool {
	return p != nil && p.Table != nil
}

// Item is one element of a transfer batch input before normalization.
// Use the constructors in the transfer package rather than filling fields
// directly; Normalize validates every field combination regardless.
type Item struct {
	// Source is the remote URI for downloads, or the local file path for
	// file uploads. Empty for in-memory payload uploads.
	Source string

	// Destination is the local file path for file downloads or the remote
	// URI for uploads. Empty means an in-memory sink (downloads only).
	Destination string

	// Table is an in-memory structured payload to upload
	Table *Table

	// Data is an in-memory raw payload to upload, written verbatim
	Data []byte
}

// Request is one normalized, immutable transfer unit. Exactly one of the
// local-side fields (LocalPath, Table, Data, or none for an in-memory sink)
// describes the non-remote end.
type Request struct {
	// Direction is download or upload
	Direction Direction

	// Remote is the parsed remote side of the transfer
	Remote Location

	// LocalPath is the local file side ("" for in-memory)
	LocalPath string

	// Table is the structured payload for in-memory uploads
	Table *Table

	// Data is the raw payload for in-memory uploads
	Data []byte

	// Key is the destination identity used for in-memory sinks: the object
	// path for store locations, the full URL for web locations
	Key string

	// CodecOptions is the opaque option bag handed verbatim to the codec
	CodecOptions map[string]any

	// Ordinal is the request's position within its normalized batch,
	// assigned after glob expansion
	Ordinal int
}

// Result is the outcome of one transfer request. Produced exactly once per
// request regardless of the delivery contract.
type Result struct {
	// Request is the request this result belongs to
	Request Request

	// Path is the local path written, for file-destination downloads
	Path string

	// Payload is the decoded value, for in-memory sink downloads
	Payload *Payload

	// Err is the failure cause; nil on success
	Err error

	// Duration is how long the transfer took
	Duration time.Duration
}

// EngineConfig holds engine-level configuration applied at construction.
type EngineConfig struct {
	// Workers is the worker pool size per batch
	Workers int

	// Model selects the worker model
	Model WorkerModel

	// ChunkSize is the streaming copy chunk size in bytes
	ChunkSize int64

	// Timeout is the per-request deadline (0 disables)
	Timeout time.Duration

	// DecodeContent controls transparent HTTP content decompression
	DecodeContent bool

	// Metadata is attached to every upload's remote object as tags
	Metadata map[string]string

	// Headers are extra HTTP headers for web downloads
	Headers map[string]string

	// WorkerSpec configures child processes for the processes model
	WorkerSpec *WorkerSpec

	// Filesystem abstracts local file access (nil selects the OS filesystem)
	Filesystem fs.Filesystem

	// Logger overrides the engine's default logger
	Logger *zerolog.Logger
}

// Option is a functional option that modifies engine configuration.
type Option func(*EngineConfig)

// CallConfig holds per-call overrides of the engine configuration.
// Zero values mean "inherit from the engine".
type CallConfig struct {
	Workers       int
	Model         WorkerModel
	ChunkSize     int64
	Timeout       time.Duration
	DecodeContent *bool
	CodecOptions  map[string]any
	Metadata      map[string]string
	Headers       map[string]string
}

// CallOption is a functional option that modifies one engine call.
type CallOption func(*CallConfig)

// WorkerSpec carries the serializable configuration a child worker process
// needs to rebuild its own store and transport clients. Required when the
// processes worker model is selected.
type WorkerSpec struct {
	// S3 configures the child's object store client
	S3 *S3Spec `json:"s3,omitempty"`

	// HTTPTimeout is the child's web transport timeout
	HTTPTimeout time.Duration `json:"http_timeout,omitempty"`
}

// S3Spec is the serializable subset of S3 client configuration. Credentials
// are never carried here; children resolve them from the default chain.
type S3Spec struct {
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	PathStyle bool   `json:"path_style,omitempty"`
}
