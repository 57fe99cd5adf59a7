// Package runner provides the worker pool that executes a batch of transfer
// requests and delivers results on a completion channel.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	transfererrors "github.com/colpal/dataeng-container-tools/transfer/errors"
	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// Perform executes a single transfer request.
type Perform func(ctx context.Context, req transfertypes.Request) transfertypes.Result

// WorkerFactory builds the perform function for one worker, plus a teardown
// invoked when the worker drains its queue. The processes model uses this to
// bind each worker to its own child process; the goroutines model shares a
// single perform across workers.
type WorkerFactory func(id int) (Perform, func(), error)

// Shared adapts a single perform function into a WorkerFactory with no
// per-worker state.
func Shared(perform Perform) WorkerFactory {
	return func(int) (Perform, func(), error) {
		return perform, func() {}, nil
	}
}

// Run executes the requests on a pool of worker goroutines and returns the
// completion channel. The channel is buffered to the batch size, carries
// exactly one result per request in completion order, and is closed when the
// batch is done. Requests are picked up in input order.
//
// When skip is set (or the context is done), requests that have not started
// resolve immediately with a cancellation error; in-flight requests run to
// completion.
func Run(ctx context.Context, workers int, requests []transfertypes.Request, skip *atomic.Bool, factory WorkerFactory) <-chan transfertypes.Result {
	results := make(chan transfertypes.Result, len(requests))
	if len(requests) == 0 {
		close(results)
		return results
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(requests) {
		workers = len(requests)
	}

	queue := make(chan transfertypes.Request, len(requests))
	for _, req := range requests {
		queue <- req
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			perform, teardown, err := factory(id)
			if err != nil {
				for req := range queue {
					results <- spawnFailed(req, err)
				}
				return
			}
			defer teardown()

			for req := range queue {
				if (skip != nil && skip.Load()) || ctx.Err() != nil {
					results <- canceled(req)
					continue
				}
				start := time.Now()
				res := perform(ctx, req)
				res.Request = req
				res.Duration = time.Since(start)
				results <- res
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

func canceled(req transfertypes.Request) transfertypes.Result {
	return transfertypes.Result{
		Request: req,
		Err: transfererrors.NewError("run", transfererrors.ErrCanceled).
			WithSource(req.Remote.String()),
	}
}

func spawnFailed(req transfertypes.Request, err error) transfertypes.Result {
	return transfertypes.Result{
		Request: req,
		Err: transfererrors.NewError("worker", transfererrors.ErrTransferFailed).
			WithSource(req.Remote.String()).
			WithMessage(err.Error()),
	}
}
