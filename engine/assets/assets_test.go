package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}

func watching(t *testing.T) (*AssetManager, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shaders"), 0o755))
	am, err := NewAssetManager(root, 8)
	require.NoError(t, err)
	require.NoError(t, am.Watch())
	t.Cleanup(func() { _ = am.Close() })
	return am, root
}

// waitFor drains until path shows up and returns everything drained.
func waitFor(t *testing.T, am *AssetManager, path string) []string {
	t.Helper()
	var got []string
	require.Eventually(t, func() bool {
		got = append(got, am.Changes()...)
		for _, p := range got {
			if p == path {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestIsWatched(t *testing.T) {
	for _, p := range []string{"a/cube.vert.spv", "albedo.PNG", "x.jpeg", "x.webp", "x.tiff", "x.bmp"} {
		assert.True(t, IsWatched(p), p)
	}
	for _, p := range []string{"cube.vert", "notes.txt", "shaders"} {
		assert.False(t, IsWatched(p), p)
	}
}

func TestWatchQueuesShaderWrites(t *testing.T) {
	am, root := watching(t)
	path := filepath.Join(root, "shaders", "cube.vert.spv")
	require.NoError(t, os.WriteFile(path, spirv, 0o644))

	got := waitFor(t, am, path)
	for _, p := range got {
		assert.True(t, IsWatched(p), p)
	}

	src, err := am.LoadShader(path, "")
	require.NoError(t, err)
	assert.Equal(t, "main", src.EntryPoint())
	assert.Equal(t, path, src.Path)
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	am, root := watching(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hi"), 0o644))
	marker := filepath.Join(root, "marker.png")
	require.NoError(t, os.WriteFile(marker, []byte{1}, 0o644))

	got := waitFor(t, am, marker)
	assert.NotContains(t, got, filepath.Join(root, "readme.txt"))
}

func TestWatchFollowsNewDirectories(t *testing.T) {
	am, root := watching(t)
	dir := filepath.Join(root, "textures")
	require.NoError(t, os.Mkdir(dir, 0o755))

	path := filepath.Join(dir, "albedo.png")
	require.Eventually(t, func() bool {
		// The directory watch is added asynchronously; keep touching the file.
		_ = os.WriteFile(path, []byte{1}, 0o644)
		for _, p := range am.Changes() {
			if p == path {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestChangesAreDeduplicated(t *testing.T) {
	am, err := NewAssetManager(t.TempDir(), 4)
	require.NoError(t, err)
	require.NoError(t, am.changes.Enqueue("a.spv"))
	require.NoError(t, am.changes.Enqueue("a.spv"))
	require.NoError(t, am.changes.Enqueue("b.png"))

	assert.Equal(t, []string{"a.spv", "b.png"}, am.Changes())
	assert.Nil(t, am.Changes())
}

func TestShaderPath(t *testing.T) {
	am, err := NewAssetManager("assets/", 0)
	require.NoError(t, err)
	assert.Equal(t, "assets", am.Root())
	assert.Equal(t, filepath.Join("assets", "shaders", "cube.vert.spv"), am.ShaderPath("cube.vert"))
}
