package helpers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidFilename = errors.New("invalid archive filename")

// SafeFilename reduces a server-supplied name to a single path element.
func SafeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return base, nil
}

// SaveArchive streams r into dir/name and returns the written path and
// size. The file only appears under its final name once fully written.
func SaveArchive(dir, name string, r io.Reader) (string, int64, error) {
	base, err := SafeFilename(name)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil && !os.IsExist(err) {
		return "", 0, fmt.Errorf("error creating output folder %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.part")
	if err != nil {
		return "", 0, fmt.Errorf("error creating temporary file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return "", n, fmt.Errorf("error writing %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		return "", n, fmt.Errorf("error writing %s: %w", base, err)
	}

	fullPath := filepath.Join(dir, base)
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", n, fmt.Errorf("error saving file %s: %w", fullPath, err)
	}
	return fullPath, n, nil
}
