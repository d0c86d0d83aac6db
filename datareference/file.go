package datareference

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileVerifier checks references to files on the local filesystem.
// Aliases map to root directories; a reference whose alias is unknown is
// not handled.
type FileVerifier struct {
	roots map[string]string
}

// NewFileVerifier creates a verifier for the given alias to root directory map.
func NewFileVerifier(roots map[string]string) *FileVerifier {
	copied := make(map[string]string, len(roots))
	for alias, root := range roots {
		copied[alias] = root
	}
	return &FileVerifier{roots: copied}
}

// CanHandle implements Verifier.
func (f *FileVerifier) CanHandle(ref Reference) bool {
	_, ok := f.roots[ref.Alias]
	return ok && ref.Location != ""
}

// Verify implements Verifier.
func (f *FileVerifier) Verify(_ context.Context, ref Reference) error {
	root, ok := f.roots[ref.Alias]
	if !ok {
		return fmt.Errorf("unknown alias %q", ref.Alias)
	}

	location := ref.Location
	if u, err := url.Parse(location); err == nil && u.Scheme == "file" {
		location = u.Path
	}
	location = strings.TrimPrefix(filepath.Clean("/"+location), "/")
	path := filepath.Join(root, location)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
