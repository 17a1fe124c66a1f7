// Package listing enumerates one folder into display rows: name, owner,
// size, content hash and timestamp. Nothing is cached; every call re-reads the
// directory and re-hashes its files.
package listing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lanshare/internal/hashing"
)

type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// NoHash marks a file whose content could not be read.
const NoHash = "-"

type Entry struct {
	Name    string
	Path    string // absolute
	Kind    Kind
	Size    int64
	HasSize bool // regular files only
	Owner   string
	Created time.Time
	Hash    string
	// Err is set when the entry could not be stat'ed; the other columns are
	// then empty.
	Err string
	// Parent marks the synthetic "up one level" row.
	Parent bool
}

func (e Entry) IsDir() bool { return e.Kind == KindDir }

// SizeMB formats Size in mebibytes with two decimals, or "-" without a size.
func (e Entry) SizeMB() string {
	if !e.HasSize {
		return "-"
	}
	return fmt.Sprintf("%.2f", float64(e.Size)/1024/1024)
}

// Date is the creation timestamp as shown in the table.
func (e Entry) Date() string {
	if e.Created.IsZero() {
		return ""
	}
	return e.Created.Local().Format("2006/01/02")
}

// Lister lists folders. ParentOf computes the target of the synthetic parent
// row; nil means filepath.Dir.
type Lister struct {
	ParentOf func(abs string) string
}

// List reads folder and returns the parent row followed by its children,
// directories first and then case-insensitively by name. Names starting with
// "." are skipped unless showHidden is set. Only the directory read itself can
// fail the call; per entry failures are reported in Entry.Err or as NoHash.
func (l Lister) List(ctx context.Context, folder string, alg hashing.Algorithm, showHidden bool) ([]Entry, error) {
	folder = filepath.Clean(folder)
	dirents, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	type child struct {
		name  string
		isDir bool
	}
	children := make([]child, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		if !showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		isDir := d.IsDir()
		if d.Type()&os.ModeSymlink != 0 {
			if st, err := os.Stat(filepath.Join(folder, name)); err == nil {
				isDir = st.IsDir()
			}
		}
		children = append(children, child{name: name, isDir: isDir})
	}
	sort.SliceStable(children, func(i, j int) bool {
		if children[i].isDir != children[j].isDir {
			return children[i].isDir
		}
		return strings.ToLower(children[i].name) < strings.ToLower(children[j].name)
	})

	parentOf := l.ParentOf
	if parentOf == nil {
		parentOf = filepath.Dir
	}
	out := make([]Entry, 0, len(children)+1)
	out = append(out, Entry{
		Name:   "..",
		Path:   parentOf(folder),
		Kind:   KindDir,
		Parent: true,
	})
	for _, c := range children {
		out = append(out, describe(ctx, filepath.Join(folder, c.name), c.name, c.isDir, alg))
	}
	return out, nil
}

// List uses a zero Lister.
func List(ctx context.Context, folder string, alg hashing.Algorithm, showHidden bool) ([]Entry, error) {
	return Lister{}.List(ctx, folder, alg, showHidden)
}

func describe(ctx context.Context, full, name string, isDir bool, alg hashing.Algorithm) Entry {
	e := Entry{Name: name, Path: full, Kind: KindFile}
	if isDir {
		e.Kind = KindDir
	}
	lst, err := os.Lstat(full)
	if err != nil {
		e.Err = err.Error()
		return e
	}
	e.Owner = ownerOf(lst)
	e.Created = createdAt(lst)
	if isDir {
		return e
	}

	e.Hash = NoHash
	st, err := os.Stat(full)
	if err != nil || !st.Mode().IsRegular() {
		return e
	}
	e.Size = st.Size()
	e.HasSize = true
	if ctx.Err() != nil {
		return e
	}
	if sum, _, err := hashing.SumFile(full, alg); err == nil {
		e.Hash = sum
	}
	return e
}
