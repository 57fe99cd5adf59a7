package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	transfererrors "github.com/colpal/dataeng-container-tools/transfer/errors"
	"github.com/colpal/dataeng-container-tools/transfer/internal/codec"
	"github.com/colpal/dataeng-container-tools/transfer/internal/runner"
	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// Environment contract between the engine and its child worker processes.
// A child is this same binary re-executed with the flag set; RunWorker
// picks it up at the top of main.
const (
	workerFlagEnv   = "DATAENG_TRANSFER_WORKER"
	workerConfigEnv = "DATAENG_TRANSFER_WORKER_CONFIG"
)

// workerInit is the per-batch configuration a child rebuilds its transports
// from, passed once through the environment at spawn.
type workerInit struct {
	Spec          transfertypes.WorkerSpec `json:"spec"`
	ChunkSize     int64                    `json:"chunk_size,omitempty"`
	Timeout       time.Duration            `json:"timeout,omitempty"`
	DecodeContent bool                     `json:"decode_content"`
	Headers       map[string]string        `json:"headers,omitempty"`
	Metadata      map[string]string        `json:"metadata,omitempty"`
}

// procTask is one request sent to a child over stdin, one JSON value per
// line. Structured upload payloads are encoded by the parent, so the child
// only ever moves bytes.
type procTask struct {
	Request transfertypes.Request `json:"request"`
}

// procResult is the child's reply, one JSON value per line, in task order.
type procResult struct {
	Path string `json:"path,omitempty"`
	Raw  []byte `json:"raw,omitempty"`
	Err  string `json:"err,omitempty"`
	Kind string `json:"kind,omitempty"`
}

// Failure kinds crossing the process boundary.
const (
	kindTimeout  = "timeout"
	kindCanceled = "canceled"
	kindFailed   = "failed"
)

// procFactory builds the worker factory for the processes model. Each
// worker goroutine owns one child process for the life of the batch and
// round-trips its requests sequentially; decode of in-memory sink payloads
// stays on the parent's worker goroutines.
func (e *Engine) procFactory(settings *callSettings) runner.WorkerFactory {
	init := workerInit{
		Spec:          *settings.workerSpec,
		ChunkSize:     settings.chunkSize,
		Timeout:       settings.timeout,
		DecodeContent: settings.decodeContent,
		Headers:       settings.headers,
		Metadata:      settings.metadata,
	}
	initJSON, err := json.Marshal(init)

	return func(id int) (runner.Perform, func(), error) {
		if err != nil {
			return nil, nil, fmt.Errorf("marshal worker config: %w", err)
		}
		exe, err := os.Executable()
		if err != nil {
			return nil, nil, fmt.Errorf("locate executable: %w", err)
		}

		cmd := exec.Command(exe)
		cmd.Env = append(os.Environ(),
			workerFlagEnv+"=1",
			workerConfigEnv+"="+string(initJSON),
		)
		cmd.Stderr = os.Stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, nil, fmt.Errorf("worker stdin: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, nil, fmt.Errorf("worker stdout: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, nil, fmt.Errorf("start worker: %w", err)
		}
		e.log.Debug().Int("worker", id).Int("pid", cmd.Process.Pid).Msg("started worker process")

		enc := json.NewEncoder(stdin)
		dec := json.NewDecoder(stdout)
		perform := func(ctx context.Context, req transfertypes.Request) transfertypes.Result {
			return e.performViaProc(enc, dec, req)
		}
		teardown := func() {
			stdin.Close()
			if err := cmd.Wait(); err != nil {
				e.log.Warn().Int("worker", id).Err(err).Msg("worker process exited with error")
			}
		}
		return perform, teardown, nil
	}
}

// performViaProc round-trips one request through a child process. The
// child enforces the per-request timeout itself; the parent binds the codec
// to whatever bytes come back.
func (e *Engine) performViaProc(enc *json.Encoder, dec *json.Decoder, req transfertypes.Request) transfertypes.Result {
	res := transfertypes.Result{Request: req}

	task := req
	if req.Direction == transfertypes.DirectionUpload && req.Table != nil {
		data, err := encodeTable(req)
		if err != nil {
			res.Err = err
			return res
		}
		task.Table = nil
		task.Data = data
	}

	if err := enc.Encode(procTask{Request: task}); err != nil {
		res.Err = classify(string(req.Direction), req, fmt.Errorf("send to worker: %w", err))
		return res
	}
	var reply procResult
	if err := dec.Decode(&reply); err != nil {
		res.Err = classify(string(req.Direction), req, fmt.Errorf("receive from worker: %w", err))
		return res
	}

	if reply.Err != "" {
		res.Err = fromProcError(req, reply)
		return res
	}
	if req.Direction == transfertypes.DirectionUpload {
		return res
	}
	if reply.Path != "" {
		res.Path = reply.Path
		return res
	}
	payload, err := codec.ForExtension(req.Remote.Ext()).Decode(reply.Raw, req.CodecOptions)
	if err != nil {
		res.Err = classify("decode", req, err)
		return res
	}
	res.Payload = payload
	return res
}

// fromProcError rebuilds a taxonomy error from the child's kind and
// message.
func fromProcError(req transfertypes.Request, reply procResult) error {
	var sentinel error
	switch reply.Kind {
	case kindTimeout:
		sentinel = transfererrors.ErrTimeout
	case kindCanceled:
		sentinel = transfererrors.ErrCanceled
	default:
		sentinel = transfererrors.ErrTransferFailed
	}
	err := transfererrors.NewError(string(req.Direction), fmt.Errorf("%w: %s", sentinel, reply.Err))
	return withEndpoints(err, req)
}
