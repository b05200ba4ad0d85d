package loaders

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 1, color.NRGBA{B: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestImageLoaderDecodesToRGBA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	writePNG(t, path)

	data, err := (&ImageLoader{}).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), data.Width)
	assert.Equal(t, uint32(2), data.Height)
	require.Len(t, data.Pixels, 16)
	assert.Equal(t, []byte{255, 0, 0, 255}, data.Pixels[0:4])
	assert.Equal(t, path, data.Source)
	assert.Equal(t, uint64(16), data.Size())
	assert.True(t, data.Complete())
}

func TestImageLoaderFlipY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	writePNG(t, path)

	data, err := (&ImageLoader{}).Load(path, &metadata.ImageResourceParams{FlipY: true})
	require.NoError(t, err)
	// Row 1 moved to the top: pixel (1,1) is now (1,0).
	assert.Equal(t, []byte{0, 0, 255, 255}, data.Pixels[4:8])
}

func TestImageLoaderErrors(t *testing.T) {
	_, err := (&ImageLoader{}).Load("", nil)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = (&ImageLoader{}).Load(bad, nil)
	assert.Error(t, err)
}

func TestShaderLoaderChecksMagic(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.spv")
	require.NoError(t, os.WriteFile(good, []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 0, 0}, 0o644))
	src, err := (&ShaderLoader{}).Load(good, "")
	require.NoError(t, err)
	assert.Equal(t, "main", src.EntryPoint())
	assert.Equal(t, good, src.Path)

	bad := filepath.Join(dir, "b.spv")
	require.NoError(t, os.WriteFile(bad, []byte{1, 2, 3, 4}, 0o644))
	_, err = (&ShaderLoader{}).Load(bad, "main")
	assert.Error(t, err)
}
