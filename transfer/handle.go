package transfer

import (
	"context"
	"sync/atomic"

	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// Handle tracks one submitted request. It resolves exactly once, with a
// successful result, a failure, or a cancellation.
type Handle struct {
	request transfertypes.Request
	done    chan struct{}
	result  transfertypes.Result
}

func newHandle(req transfertypes.Request) *Handle {
	return &Handle{request: req, done: make(chan struct{})}
}

// Request returns the request this handle tracks.
func (h *Handle) Request() transfertypes.Request {
	return h.request
}

// Done returns a channel closed when the request resolves.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Poll returns the result without blocking. The second return is false
// while the request is still pending.
func (h *Handle) Poll() (transfertypes.Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return transfertypes.Result{}, false
	}
}

// Wait blocks until the request resolves or the context is done.
func (h *Handle) Wait(ctx context.Context) (transfertypes.Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return transfertypes.Result{}, ctx.Err()
	}
}

// complete resolves the handle. Must be called exactly once.
func (h *Handle) complete(res transfertypes.Result) {
	h.result = res
	close(h.done)
}

// BatchHandle tracks a batch submitted with Submit. It exposes per-request
// handles and supports cooperative cancellation.
type BatchHandle struct {
	handles []*Handle
	skip    *atomic.Bool
	done    chan struct{}
	results []transfertypes.Result
}

// Handles returns one handle per request, in batch order.
func (b *BatchHandle) Handles() []*Handle {
	return b.handles
}

// Cancel requests cooperative cancellation: requests that have not started
// resolve with a cancellation error, in-flight requests run to completion.
// Safe to call any number of times, from any goroutine.
func (b *BatchHandle) Cancel() {
	b.skip.Store(true)
}

// Done returns a channel closed when every request has resolved.
func (b *BatchHandle) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the whole batch resolves or the context is done, and
// returns the results in completion order.
func (b *BatchHandle) Wait(ctx context.Context) ([]transfertypes.Result, error) {
	select {
	case <-b.done:
		return b.results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BatchResult is the outcome of a blocking batch call. Results are held in
// completion order.
type BatchResult struct {
	results []transfertypes.Result
}

// Results returns every result, one per request, in completion order.
func (r *BatchResult) Results() []transfertypes.Result {
	return r.results
}

// Objects maps destination keys to the decoded payloads of in-memory sink
// downloads. When two requests resolve to the same key, the later completion
// wins.
func (r *BatchResult) Objects() map[string]*transfertypes.Payload {
	objects := make(map[string]*transfertypes.Payload)
	for _, res := range r.results {
		if res.Err == nil && res.Payload != nil {
			objects[res.Request.Key] = res.Payload
		}
	}
	return objects
}

// Paths returns the local paths written by file-destination downloads.
func (r *BatchResult) Paths() []string {
	var paths []string
	for _, res := range r.results {
		if res.Err == nil && res.Path != "" {
			paths = append(paths, res.Path)
		}
	}
	return paths
}

// Failed returns the results that carry an error.
func (r *BatchResult) Failed() []transfertypes.Result {
	var failed []transfertypes.Result
	for _, res := range r.results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err returns the first failure in completion order, or nil when every
// request succeeded.
func (r *BatchResult) Err() error {
	for _, res := range r.results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}
