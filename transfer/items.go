package transfer

import (
	"sort"

	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// Remote builds a download item that fetches a remote location into the
// batch result's in-memory payload map.
func Remote(uri string) transfertypes.Item {
	return transfertypes.Item{Source: uri}
}

// Locations builds one in-memory download item per remote location.
func Locations(uris ...string) []transfertypes.Item {
	items := make([]transfertypes.Item, 0, len(uris))
	for _, uri := range uris {
		items = append(items, Remote(uri))
	}
	return items
}

// Pair builds an item from a raw source/destination pair. The call's
// direction decides how the sides are interpreted; normalization rejects
// pairs whose sides do not fit it.
func Pair(source, destination string) transfertypes.Item {
	return transfertypes.Item{Source: source, Destination: destination}
}

// ToFile builds a download item that writes a remote location's content to
// a local file.
func ToFile(uri, localPath string) transfertypes.Item {
	return transfertypes.Item{Source: uri, Destination: localPath}
}

// FromFile builds an upload item that copies a local file to a remote
// location verbatim.
func FromFile(localPath, uri string) transfertypes.Item {
	return transfertypes.Item{Source: localPath, Destination: uri}
}

// FromTable builds an upload item that serializes an in-memory table to the
// format implied by the destination's file extension.
func FromTable(table *transfertypes.Table, uri string) transfertypes.Item {
	return transfertypes.Item{Table: table, Destination: uri}
}

// FromBytes builds an upload item that writes raw bytes to a remote
// location verbatim, regardless of the destination's extension.
func FromBytes(data []byte, uri string) transfertypes.Item {
	return transfertypes.Item{Data: data, Destination: uri}
}

// Mapping converts a source-to-destination map into items, ordered by
// lexicographic source so batches built from maps are deterministic. For
// downloads the keys are remote locations and the values local paths; for
// uploads the keys are local paths and the values remote locations.
func Mapping(pairs map[string]string) []transfertypes.Item {
	sources := make([]string, 0, len(pairs))
	for source := range pairs {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	items := make([]transfertypes.Item, 0, len(sources))
	for _, source := range sources {
		items = append(items, transfertypes.Item{Source: source, Destination: pairs[source]})
	}
	return items
}
