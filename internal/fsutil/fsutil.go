package fsutil

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrOutsideRoot = errors.New("path escapes share root")
)

// Resolver turns client supplied folder/file values into absolute host paths.
// Relative values are taken against Root. When Confine is set, any result
// outside Root is rejected, both by its text and by where its symlinks lead.
type Resolver struct {
	root     string
	realRoot string
	confine  bool
}

func NewResolver(root string, confine bool) (*Resolver, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)
	return &Resolver{root: abs, realRoot: realPath(abs), confine: confine}, nil
}

func (r *Resolver) Root() string { return r.root }

func (r *Resolver) Confined() bool { return r.confine }

// Resolve accepts "", ".", relative and absolute paths. The returned path is
// the lexical one; symlinks are only evaluated for the confinement check.
func (r *Resolver) Resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	if strings.Contains(p, "\x00") {
		return "", ErrInvalidPath
	}
	var abs string
	switch {
	case p == "" || p == ".":
		abs = r.root
	case filepath.IsAbs(p):
		abs = filepath.Clean(p)
	default:
		abs = filepath.Join(r.root, p)
	}
	if r.confine && (!r.Within(abs) || !within(r.realRoot, realPath(abs))) {
		return "", ErrOutsideRoot
	}
	return abs, nil
}

// Within reports whether abs is the root or below it, textually.
func (r *Resolver) Within(abs string) bool {
	return within(r.root, filepath.Clean(abs))
}

func within(root, abs string) bool {
	if abs == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(abs, prefix)
}

// realPath evaluates the symlinks of the longest existing prefix of abs and
// appends the rest unchanged, so paths that are about to be created (upload
// folders) are judged by the directory they would land in.
func realPath(abs string) string {
	var rest []string
	p := abs
	for {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return abs
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}

// Parent returns the folder above abs. At the filesystem root, and at the
// share root when confined, the parent is abs itself.
func (r *Resolver) Parent(abs string) string {
	abs = filepath.Clean(abs)
	if r.confine && abs == r.root {
		return abs
	}
	return filepath.Dir(abs)
}

// Display renders abs for the page header: slash separated and relative to
// the root when possible.
func (r *Resolver) Display(abs string) string {
	if r.Within(abs) {
		rel, err := filepath.Rel(r.root, abs)
		if err == nil {
			if rel == "." {
				return "/"
			}
			return "/" + filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(abs)
}
