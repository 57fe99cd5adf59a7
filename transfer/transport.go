package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/rs/zerolog"

	"github.com/colpal/dataeng-container-tools/httpfetch"
	"github.com/colpal/dataeng-container-tools/objstore"
	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// errNoStore reports a store-scheme request on an engine built without a
// store.
var errNoStore = errors.New("no object store configured")

// mover executes the transport half of a request: bytes move between the
// remote side and a file or memory, with no codec involvement. It is shared
// by the in-process perform path and by child worker processes.
type mover struct {
	store     objstore.Store
	fetch     *httpfetch.Client
	fsys      fs.Filesystem
	chunkSize int64
	headers   map[string]string
	metadata  map[string]string
	log       zerolog.Logger
}

// move runs one request. Downloads return either the local path written or
// the raw bytes fetched; uploads return neither. The request's Table must
// already be encoded into Data by the caller.
func (m *mover) move(ctx context.Context, req transfertypes.Request) (string, []byte, error) {
	switch req.Direction {
	case transfertypes.DirectionUpload:
		return "", nil, m.upload(ctx, req)
	default:
		return m.download(ctx, req)
	}
}

func (m *mover) download(ctx context.Context, req transfertypes.Request) (string, []byte, error) {
	if req.LocalPath == "" {
		data, err := m.fetchBytes(ctx, req.Remote)
		return "", data, err
	}

	if dir := filepath.Dir(req.LocalPath); dir != "." && dir != "/" {
		if err := m.fsys.MkdirAll(dir, 0o755); err != nil {
			return "", nil, err
		}
	}
	file, err := m.fsys.Create(req.LocalPath)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	if req.Remote.IsWeb() {
		if _, err := m.fetch.FetchTo(ctx, req.Remote.Raw, file, m.headers); err != nil {
			return "", nil, err
		}
		return req.LocalPath, nil, nil
	}
	if m.store == nil {
		return "", nil, errNoStore
	}
	body, _, err := m.store.Get(ctx, req.Remote.Container, req.Remote.Path)
	if err != nil {
		return "", nil, err
	}
	defer body.Close()
	if _, err := io.CopyBuffer(file, body, make([]byte, m.chunkSize)); err != nil {
		return "", nil, err
	}
	return req.LocalPath, nil, nil
}

func (m *mover) fetchBytes(ctx context.Context, loc transfertypes.Location) ([]byte, error) {
	if loc.IsWeb() {
		return m.fetch.Fetch(ctx, loc.Raw, m.headers)
	}
	if m.store == nil {
		return nil, errNoStore
	}
	body, _, err := m.store.Get(ctx, loc.Container, loc.Path)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (m *mover) upload(ctx context.Context, req transfertypes.Request) error {
	if m.store == nil {
		return errNoStore
	}

	var (
		reader      io.Reader
		size        int64
		contentType string
	)
	if req.LocalPath != "" {
		info, err := m.fsys.Stat(req.LocalPath)
		if err != nil {
			return err
		}
		file, err := m.fsys.Open(req.LocalPath)
		if err != nil {
			return err
		}
		defer file.Close()
		reader = file
		size = info.Size()
		contentType = sniffFile(file)
	} else {
		reader = bytes.NewReader(req.Data)
		size = int64(len(req.Data))
		contentType = mimetype.Detect(req.Data).String()
	}

	if err := m.store.Put(ctx, req.Remote.Container, req.Remote.Path, reader, size, contentType); err != nil {
		return err
	}

	// Tagging is a best-effort side channel. A tagging failure never fails
	// the transfer.
	if len(m.metadata) > 0 {
		if err := m.store.SetTags(ctx, req.Remote.Container, req.Remote.Path, m.metadata); err != nil {
			m.log.Warn().
				Err(err).
				Str("destination", req.Remote.String()).
				Msg("failed to tag uploaded object")
		}
	}
	return nil
}

// sniffFile detects the content type from the file's first 512 bytes
// without disturbing the read position.
func sniffFile(file fs.File) string {
	buf := make([]byte, 512)
	n, err := file.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return ""
	}
	return mimetype.Detect(buf[:n]).String()
}
