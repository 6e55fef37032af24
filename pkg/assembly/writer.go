package assembly

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// OutputMode is the permission of an output file that did not exist before.
const OutputMode fs.FileMode = 0644

// WriteOutput replaces the file at path with doc. The content goes to a
// temporary file in the same directory that is then renamed over path, so a
// failed write leaves the previous content in place. Missing parent
// directories are created. An existing file keeps its permissions; a new one
// gets OutputMode.
func WriteOutput(path string, doc Document) error {
	mode := OutputMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return newFileError("write output", path, err)
		}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(doc.Bytes())); err != nil {
		return newFileError("write output", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return newFileError("write output", path, err)
	}
	return nil
}
