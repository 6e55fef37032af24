package assembly

import (
	"errors"
	"fmt"
	"io/fs"
)

// FileErrorKind classifies why a file could not be read or written.
type FileErrorKind int

const (
	IOError FileErrorKind = iota
	NotFound
	PermissionDenied
)

func (k FileErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	default:
		return "i/o error"
	}
}

// FileError is returned by the template loader, the fragment store and the
// output writer. Path is always the offending file.
type FileError struct {
	Op   string
	Path string
	Kind FileErrorKind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// newFileError wraps err, deriving the kind from the fs sentinel errors.
func newFileError(op, path string, err error) *FileError {
	kind := IOError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = NotFound
	case errors.Is(err, fs.ErrPermission):
		kind = PermissionDenied
	}
	return &FileError{Op: op, Path: path, Kind: kind, Err: err}
}

// ManifestErrorKind names the manifest invariant that was broken.
type ManifestErrorKind int

const (
	DuplicateToken ManifestErrorKind = iota
	OverlappingToken
	EmptyToken
	EmptySource
	AdjacentOverlap
)

func (k ManifestErrorKind) String() string {
	switch k {
	case DuplicateToken:
		return "duplicate token"
	case OverlappingToken:
		return "overlapping token"
	case EmptyToken:
		return "empty token"
	case EmptySource:
		return "empty source"
	case AdjacentOverlap:
		return "adjacent overlap"
	default:
		return "invalid manifest"
	}
}

// ManifestError is returned by NewManifest. Index is the position of the
// offending entry. For OverlappingToken, Other is the token that contains
// Token; for AdjacentOverlap, Other is the token whose start Token ends with.
type ManifestError struct {
	Kind  ManifestErrorKind
	Index int
	Token string
	Other string
}

func (e *ManifestError) Error() string {
	switch e.Kind {
	case OverlappingToken:
		return fmt.Sprintf("manifest entry %d: %s: %q is contained in %q", e.Index, e.Kind, e.Token, e.Other)
	case AdjacentOverlap:
		return fmt.Sprintf("manifest entry %d: %s: %q ends with the start of %q", e.Index, e.Kind, e.Token, e.Other)
	case EmptyToken:
		return fmt.Sprintf("manifest entry %d: %s", e.Index, e.Kind)
	default:
		return fmt.Sprintf("manifest entry %d: %s: %q", e.Index, e.Kind, e.Token)
	}
}

// UnusedTokenWarning reports a manifest token that never occurred in the
// template. It is only returned as an error in strict mode.
type UnusedTokenWarning struct {
	Token  string
	Source string
}

func (w *UnusedTokenWarning) Error() string {
	return fmt.Sprintf("token %q (from %s) does not occur in the template", w.Token, w.Source)
}

// ErrStale is returned by Check when the output on disk differs from a fresh
// assembly.
var ErrStale = errors.New("output is stale")
