package resource

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/prism/engine/assets/loaders"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Texture is an uploaded sampled image.
type Texture struct {
	Image       gpu.Image
	Sampler     gpu.Sampler
	Width       uint32
	Height      uint32
	Placeholder bool
	destroyed   bool
}

// placeholderPixel is opaque magenta so a missing texture is obvious on screen.
var placeholderPixel = []byte{255, 0, 255, 255}

func placeholderImage() *metadata.ImageResourceData {
	return &metadata.ImageResourceData{
		Width:       1,
		Height:      1,
		Pixels:      append([]byte(nil), placeholderPixel...),
		Placeholder: true,
	}
}

// DecodeImage decodes path or falls back to a 1x1 placeholder. The fallback
// logs exactly one warning and never fails.
func DecodeImage(path string) (*metadata.ImageResourceData, bool) {
	data, err := (&loaders.ImageLoader{}).Load(path, nil)
	if err != nil {
		core.LogWarn("image %q unavailable, using 1x1 placeholder: %v", path, err)
		return placeholderImage(), true
	}
	return data, false
}

// UploadTexture creates the image and sampler and copies pixels in through a
// staging buffer. The image ends in the shader read-only layout.
func UploadTexture(ctx *gpu.Context, name string, data *metadata.ImageResourceData, linear bool) (*Texture, error) {
	mem := ctx.Memory()
	if name == "" {
		name = "image-" + uuid.NewString()
	}
	size := data.Size()
	core.Assert(data.Complete(), "image %s has %d bytes, need %d", name, len(data.Pixels), size)

	staging, err := mem.CreateBuffer(gpu.BufferDesc{
		Size:   size,
		Usage:  gpu.BufferUsageTransferSrc,
		Memory: gpu.MemoryHostVisible,
		Name:   name + ".staging",
	})
	if err != nil {
		return nil, core.Fatal(err, "create staging buffer for "+name)
	}
	defer mem.DestroyBuffer(staging)

	view, err := mem.MapBuffer(staging)
	if err != nil {
		return nil, core.Fatal(err, "map staging buffer for "+name)
	}
	copy(view, data.Pixels[:size])
	mem.UnmapBuffer(staging)

	img, err := mem.CreateImage(gpu.ImageDesc{
		Width:  data.Width,
		Height: data.Height,
		Format: gpu.FormatR8G8B8A8Srgb,
		Name:   name,
	})
	if err != nil {
		return nil, core.Fatal(err, "create image "+name)
	}

	xfer := ctx.Transfer()
	cb, err := xfer.BeginOneShot()
	if err != nil {
		mem.DestroyImage(img)
		return nil, core.Fatal(err, "begin upload of "+name)
	}
	xfer.CmdTransitionImage(cb, img, gpu.ImageLayoutUndefined, gpu.ImageLayoutTransferDst)
	xfer.CmdCopyBufferToImage(cb, staging, img, data.Width, data.Height)
	xfer.CmdTransitionImage(cb, img, gpu.ImageLayoutTransferDst, gpu.ImageLayoutShaderReadOnly)
	if err := xfer.EndOneShot(cb); err != nil {
		mem.DestroyImage(img)
		return nil, core.Fatal(err, "submit upload of "+name)
	}

	sampler, err := mem.CreateSampler(gpu.SamplerDesc{Linear: linear, Repeat: true})
	if err != nil {
		mem.DestroyImage(img)
		return nil, core.Fatal(err, "create sampler for "+name)
	}
	return &Texture{
		Image:       img,
		Sampler:     sampler,
		Width:       data.Width,
		Height:      data.Height,
		Placeholder: data.Placeholder,
	}, nil
}

func (t *Texture) Destroy(ctx *gpu.Context) {
	if t == nil || t.destroyed {
		return
	}
	t.destroyed = true
	ctx.Memory().DestroySampler(t.Sampler)
	ctx.Memory().DestroyImage(t.Image)
}
