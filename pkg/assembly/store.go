package assembly

import (
	"os"
	"path/filepath"
)

// FragmentStore returns the full text of a fragment.
type FragmentStore interface {
	Load(ref string) (string, error)
}

// DirStore reads fragments from the filesystem. Relative references are
// resolved against Base; absolute ones are used as-is.
type DirStore struct {
	Base string
}

// Path returns the filesystem path a reference resolves to.
func (s DirStore) Path(ref string) string {
	if filepath.IsAbs(ref) || s.Base == "" {
		return ref
	}
	return filepath.Join(s.Base, ref)
}

// Load reads the whole fragment. Nothing is cached between calls.
func (s DirStore) Load(ref string) (string, error) {
	path := s.Path(ref)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", newFileError("read fragment", path, err)
	}
	return string(data), nil
}

// MapStore serves fragments from memory, keyed by reference. Missing keys
// produce a NotFound FileError like DirStore does.
type MapStore map[string]string

func (s MapStore) Load(ref string) (string, error) {
	text, ok := s[ref]
	if !ok {
		return "", newFileError("read fragment", ref, os.ErrNotExist)
	}
	return text, nil
}

// LoadTemplate reads the template document.
func LoadTemplate(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, newFileError("read template", path, err)
	}
	return NewDocument(string(data)), nil
}
