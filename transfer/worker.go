package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/rs/zerolog"

	"github.com/colpal/dataeng-container-tools/httpfetch"
	"github.com/colpal/dataeng-container-tools/objstore"
	"github.com/colpal/dataeng-container-tools/objstore/s3store"
	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// RunWorker checks whether this process was spawned as a transfer worker
// and, if so, runs the worker loop until its task stream closes. Binaries
// that use the processes worker model must call it at the top of main and
// exit when it reports that it ran:
//
//	func main() {
//	    if ran, err := transfer.RunWorker(); ran {
//	        if err != nil {
//	            os.Exit(1)
//	        }
//	        return
//	    }
//	    // normal program
//	}
func RunWorker() (bool, error) {
	if os.Getenv(workerFlagEnv) != "1" {
		return false, nil
	}
	err := runWorkerLoop(context.Background(), os.Stdin, os.Stdout, os.Getenv(workerConfigEnv))
	return true, err
}

// runWorkerLoop rebuilds the transports from the serialized worker config,
// then serves tasks from in until EOF, replying in task order. The child
// moves bytes only; encoding and decoding stay with the parent.
func runWorkerLoop(ctx context.Context, in io.Reader, out io.Writer, rawConfig string) error {
	var init workerInit
	if rawConfig != "" {
		if err := json.Unmarshal([]byte(rawConfig), &init); err != nil {
			return fmt.Errorf("transfer: worker config: %w", err)
		}
	}
	if init.ChunkSize <= 0 {
		init.ChunkSize = DefaultChunkSize
	}

	var store objstore.Store
	if init.Spec.S3 != nil {
		s, err := s3store.New(ctx,
			s3store.WithRegion(init.Spec.S3.Region),
			s3store.WithEndpoint(init.Spec.S3.Endpoint),
			s3store.WithPathStyle(init.Spec.S3.PathStyle),
		)
		if err != nil {
			return fmt.Errorf("transfer: worker store: %w", err)
		}
		store = s
	}

	httpTimeout := init.Spec.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = httpfetch.DefaultTimeout
	}
	m := &mover{
		store: store,
		fetch: httpfetch.New(
			httpfetch.WithTimeout(httpTimeout),
			httpfetch.WithChunkSize(init.ChunkSize),
			httpfetch.WithDecodeContent(init.DecodeContent),
		),
		fsys:      billy.NewOSFS("/"),
		chunkSize: init.ChunkSize,
		headers:   init.Headers,
		metadata:  init.Metadata,
		log:       zerolog.New(os.Stderr).With().Timestamp().Str("component", "transfer-worker").Logger(),
	}

	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)
	for {
		var task procTask
		if err := dec.Decode(&task); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("transfer: worker read: %w", err)
		}
		if err := enc.Encode(runWorkerTask(ctx, m, init.Timeout, task.Request)); err != nil {
			return fmt.Errorf("transfer: worker write: %w", err)
		}
	}
}

func runWorkerTask(ctx context.Context, m *mover, timeout time.Duration, req transfertypes.Request) procResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	path, raw, err := m.move(ctx, req)
	if err != nil {
		return procResult{Err: err.Error(), Kind: workerErrKind(err)}
	}
	return procResult{Path: path, Raw: raw}
}

func workerErrKind(err error) string {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return kindTimeout
	case errors.As(err, &nerr) && nerr.Timeout():
		return kindTimeout
	case errors.Is(err, context.Canceled):
		return kindCanceled
	default:
		return kindFailed
	}
}
