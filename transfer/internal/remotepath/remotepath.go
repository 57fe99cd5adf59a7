// Package remotepath parses remote location strings and expands glob
// patterns against a store listing.
package remotepath

import (
	"context"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/colpal/dataeng-container-tools/objstore"
	transfererrors "github.com/colpal/dataeng-container-tools/transfer/errors"
	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// patternMeta is the set of characters that mark a path as a glob pattern.
const patternMeta = "*?[{"

// Lister is the listing capability Expand needs from a store.
type Lister interface {
	List(ctx context.Context, container, prefix string) ([]objstore.Object, error)
}

// IsRemote reports whether s looks like a remote location rather than a
// local path: it carries a scheme separator.
func IsRemote(s string) bool {
	return strings.Contains(s, "://")
}

// IsPattern reports whether a path contains glob metacharacters.
func IsPattern(p string) bool {
	return strings.ContainsAny(p, patternMeta)
}

// Parse splits a remote location string into its components and normalizes
// the object path (redundant slashes and relative segments are resolved).
// It fails with ErrMalformedURI when the scheme or container is absent.
func Parse(raw string) (transfertypes.Location, error) {
	idx := strings.Index(raw, "://")
	if idx <= 0 {
		return transfertypes.Location{}, transfererrors.NewError("parse", transfererrors.ErrMalformedURI).
			WithSource(raw).
			WithMessage("missing scheme separator")
	}

	scheme := strings.ToLower(raw[:idx])
	rest := raw[idx+len("://"):]

	container, objectPath, _ := strings.Cut(rest, "/")
	if container == "" {
		return transfertypes.Location{}, transfererrors.NewError("parse", transfererrors.ErrMalformedURI).
			WithSource(raw).
			WithMessage("missing container")
	}

	loc := transfertypes.Location{
		Scheme:    scheme,
		Container: container,
		Path:      objectPath,
		Raw:       raw,
	}

	if loc.IsWeb() {
		// Web URLs are passed to the transport verbatim; only the host and
		// path components are split out for extension resolution.
		if q := strings.IndexAny(loc.Path, "?#"); q >= 0 {
			loc.Path = loc.Path[:q]
		}
		return loc, nil
	}

	loc.Path = Normalize(loc.Path)
	return loc, nil
}

// Normalize cleans a remote object path: redundant slashes and "."/".."
// segments are resolved, preserving glob metacharacters.
func Normalize(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// PatternPrefix returns the longest non-wildcard prefix of a glob path,
// cut at the last path separator before the first metacharacter. The store
// listing is scoped to this prefix before client-side filtering.
func PatternPrefix(p string) string {
	meta := strings.IndexAny(p, patternMeta)
	if meta < 0 {
		return p
	}
	slash := strings.LastIndex(p[:meta], "/")
	if slash < 0 {
		return ""
	}
	return p[:slash+1]
}

// Match reports whether an object key matches a glob pattern with
// segment-boundary-aware semantics: `*` never crosses a `/`, `**` may.
func Match(pattern, key string) bool {
	ok, err := doublestar.Match(pattern, key)
	return err == nil && ok
}

// Expand resolves a location that may contain a glob into the concrete
// locations that currently exist. A non-pattern location is returned as-is
// without touching the store. Results preserve the store's listing order.
func Expand(ctx context.Context, lister Lister, loc transfertypes.Location) ([]transfertypes.Location, error) {
	if !IsPattern(loc.Path) {
		return []transfertypes.Location{loc}, nil
	}

	objects, err := lister.List(ctx, loc.Container, PatternPrefix(loc.Path))
	if err != nil {
		return nil, transfererrors.NewError("expand", err).WithSource(loc.String())
	}

	expanded := make([]transfertypes.Location, 0, len(objects))
	for _, obj := range objects {
		if !Match(loc.Path, obj.Key) {
			continue
		}
		expanded = append(expanded, transfertypes.Location{
			Scheme:    loc.Scheme,
			Container: loc.Container,
			Path:      obj.Key,
			Raw:       loc.Scheme + "://" + loc.Container + "/" + obj.Key,
		})
	}
	return expanded, nil
}
