package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfined(t *testing.T) {
	root := t.TempDir()
	r, err := NewResolver(root, true)
	require.NoError(t, err)

	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "", want: r.Root()},
		{in: ".", want: r.Root()},
		{in: "docs", want: filepath.Join(r.Root(), "docs")},
		{in: "docs/../pics", want: filepath.Join(r.Root(), "pics")},
		{in: filepath.Join(r.Root(), "a", "b"), want: filepath.Join(r.Root(), "a", "b")},
		{in: "../escape", wantErr: ErrOutsideRoot},
		{in: "/etc/passwd", wantErr: ErrOutsideRoot},
		{in: r.Root() + "-sibling", wantErr: ErrOutsideRoot},
		{in: "bad\x00name", wantErr: ErrInvalidPath},
	}
	for _, tc := range tests {
		got, err := r.Resolve(tc.in)
		if tc.wantErr != nil {
			assert.ErrorIs(t, err, tc.wantErr, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestResolveUnconfined(t *testing.T) {
	root := t.TempDir()
	r, err := NewResolver(root, false)
	require.NoError(t, err)

	got, err := r.Resolve("../x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(r.Root()), "x"), got)

	got, err = r.Resolve("/etc")
	require.NoError(t, err)
	assert.Equal(t, "/etc", got)
}

func TestParent(t *testing.T) {
	root := t.TempDir()
	confined, err := NewResolver(root, true)
	require.NoError(t, err)
	open, err := NewResolver(root, false)
	require.NoError(t, err)

	assert.Equal(t, confined.Root(), confined.Parent(confined.Root()))
	assert.Equal(t, confined.Root(), confined.Parent(filepath.Join(confined.Root(), "sub")))
	assert.Equal(t, filepath.Dir(open.Root()), open.Parent(open.Root()))
	assert.Equal(t, "/", open.Parent("/"))
}

func TestDisplay(t *testing.T) {
	r, err := NewResolver(t.TempDir(), true)
	require.NoError(t, err)

	assert.Equal(t, "/", r.Display(r.Root()))
	assert.Equal(t, "/a/b", r.Display(filepath.Join(r.Root(), "a", "b")))
	assert.Equal(t, "/etc", r.Display("/etc"))
}

func TestNewResolverDefaultsToWorkingDir(t *testing.T) {
	r, err := NewResolver("  ", true)
	require.NoError(t, err)
	want, err := filepath.Abs(".")
	require.NoError(t, err)
	assert.Equal(t, want, r.Root())
	assert.True(t, r.Confined())
}

func TestResolveConfinedFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))
	require.NoError(t, os.Symlink(filepath.Join(root, "docs"), filepath.Join(root, "alias")))

	r, err := NewResolver(root, true)
	require.NoError(t, err)

	for _, in := range []string{"link", "link/secret.txt", "link/not/yet/created"} {
		_, err := r.Resolve(in)
		assert.ErrorIs(t, err, ErrOutsideRoot, in)
	}

	got, err := r.Resolve("alias/new.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.Root(), "alias", "new.txt"), got)

	open, err := NewResolver(root, false)
	require.NoError(t, err)
	got, err = open.Resolve("link/secret.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(open.Root(), "link", "secret.txt"), got)
}

func TestResolveSymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	link := filepath.Join(t.TempDir(), "share")
	require.NoError(t, os.Symlink(target, link))

	r, err := NewResolver(link, true)
	require.NoError(t, err)
	assert.Equal(t, link, r.Root())

	got, err := r.Resolve("sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(link, "sub", "file.txt"), got)

	_, err = r.Resolve(filepath.Join(target, "file.txt"))
	assert.ErrorIs(t, err, ErrOutsideRoot)
}
