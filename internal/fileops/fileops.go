// Package fileops holds the thin filesystem wrappers behind the view,
// download and upload endpoints.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// ReadText returns the content of a regular file decoded as UTF-8; invalid
// sequences become U+FFFD.
func ReadText(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", err
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}

// Open opens a regular file for download. The caller closes the file.
func Open(path string) (*os.File, os.FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, st, nil
}

// BaseName strips any directory components a client sent with a file name.
// Both slash styles are treated as separators.
func BaseName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.Contains(name, "\x00") {
		return "", ErrInvalidName
	}
	return name, nil
}

// WriteUpload creates folder if needed and writes r to folder/<base of
// filename>, replacing an existing file. Data goes to a temp file in the same
// folder first and is renamed into place, so a failed copy leaves no partial
// file behind. It returns the stored name and the number of bytes written.
func WriteUpload(folder, filename string, r io.Reader) (string, int64, error) {
	name, err := BaseName(filename)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", err, filename)
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", 0, err
	}
	dst := filepath.Join(folder, name)

	tmp, err := os.CreateTemp(folder, "."+name+".*.part")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0o644)
	}
	if err == nil {
		err = os.Rename(tmpPath, dst)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", n, fmt.Errorf("write %s: %w", name, err)
	}
	return name, n, nil
}
