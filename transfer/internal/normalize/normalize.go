// Package normalize validates batch input items and maps them to transfer
// requests. Every error it returns is batch-fatal: nothing runs until the
// whole batch maps cleanly.
package normalize

import (
	transfererrors "github.com/colpal/dataeng-container-tools/transfer/errors"
	"github.com/colpal/dataeng-container-tools/transfer/internal/remotepath"
	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// Requests maps a batch of input items to normalized requests for the given
// direction. An empty batch normalizes to an empty request list. The codec
// option bag is attached verbatim to every request.
func Requests(direction transfertypes.Direction, items []transfertypes.Item, codecOptions map[string]any) ([]transfertypes.Request, error) {
	requests := make([]transfertypes.Request, 0, len(items))
	for _, item := range items {
		var (
			req *transfertypes.Request
			err error
		)
		switch direction {
		case transfertypes.DirectionDownload:
			req, err = download(item)
		case transfertypes.DirectionUpload:
			req, err = upload(item)
		default:
			return nil, transfererrors.NewError("normalize", transfererrors.ErrInvalidRequestShape).
				WithMessage("unknown direction " + string(direction))
		}
		if err != nil {
			return nil, err
		}
		req.CodecOptions = codecOptions
		requests = append(requests, *req)
	}
	return requests, nil
}

func download(item transfertypes.Item) (*transfertypes.Request, error) {
	if item.Table != nil || item.Data != nil {
		return nil, shapeErr(item, "download items cannot carry a payload")
	}
	if item.Source == "" {
		return nil, shapeErr(item, "download items need a remote source")
	}
	if !remotepath.IsRemote(item.Source) {
		return nil, transfererrors.NewError("normalize", transfererrors.ErrMalformedURI).
			WithSource(item.Source).
			WithMessage("download source is not a remote URI")
	}
	remote, err := remotepath.Parse(item.Source)
	if err != nil {
		return nil, err
	}
	if item.Destination != "" {
		if remotepath.IsRemote(item.Destination) {
			return nil, shapeErr(item, "download destination must be a local path")
		}
		if remotepath.IsPattern(remote.Path) {
			// A pattern can expand to any number of objects; a single file
			// destination cannot receive them.
			return nil, transfererrors.NewError("normalize", transfererrors.ErrInvalidGlobUsage).
				WithSource(item.Source).
				WithDest(item.Destination).
				WithMessage("glob sources cannot target a single file")
		}
	}
	if remote.IsWeb() && remotepath.IsPattern(remote.Path) {
		return nil, transfererrors.NewError("normalize", transfererrors.ErrInvalidGlobUsage).
			WithSource(item.Source).
			WithMessage("web locations cannot be glob patterns")
	}
	return &transfertypes.Request{
		Direction: transfertypes.DirectionDownload,
		Remote:    remote,
		LocalPath: item.Destination,
		Key:       sinkKey(remote),
	}, nil
}

func upload(item transfertypes.Item) (*transfertypes.Request, error) {
	if item.Destination == "" {
		return nil, shapeErr(item, "upload items need a remote destination")
	}
	if !remotepath.IsRemote(item.Destination) {
		return nil, transfererrors.NewError("normalize", transfererrors.ErrMalformedURI).
			WithDest(item.Destination).
			WithMessage("upload destination is not a remote URI")
	}
	remote, err := remotepath.Parse(item.Destination)
	if err != nil {
		return nil, err
	}
	if remote.IsWeb() {
		return nil, shapeErr(item, "uploads target object stores, not web URLs")
	}
	if remotepath.IsPattern(remote.Path) {
		return nil, transfererrors.NewError("normalize", transfererrors.ErrInvalidGlobUsage).
			WithDest(item.Destination).
			WithMessage("write targets cannot be glob patterns")
	}

	sources := 0
	if item.Source != "" {
		sources++
	}
	if item.Table != nil {
		sources++
	}
	if item.Data != nil {
		sources++
	}
	if sources != 1 {
		return nil, shapeErr(item, "upload items need exactly one of a local path, a table, or raw bytes")
	}
	if item.Source != "" && remotepath.IsRemote(item.Source) {
		return nil, shapeErr(item, "upload source must be a local path")
	}

	return &transfertypes.Request{
		Direction: transfertypes.DirectionUpload,
		Remote:    remote,
		LocalPath: item.Source,
		Table:     item.Table,
		Data:      item.Data,
		Key:       sinkKey(remote),
	}, nil
}

// sinkKey is the destination identity used to key in-memory results: the
// object path for store locations, the full URL for web locations.
func sinkKey(loc transfertypes.Location) string {
	if loc.IsWeb() {
		return loc.Raw
	}
	return loc.Path
}

func shapeErr(item transfertypes.Item, message string) error {
	err := transfererrors.NewError("normalize", transfererrors.ErrInvalidRequestShape).
		WithMessage(message)
	if item.Source != "" {
		err = err.WithSource(item.Source)
	}
	if item.Destination != "" {
		err = err.WithDest(item.Destination)
	}
	return err
}
