package resource

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Bound is a slot together with the device resources backing it.
type Bound struct {
	Slot    Slot
	Ring    *Ring
	Texture *Texture
	// Elements is the number of attribute elements in each ring buffer.
	Elements uint32
}

// Realize allocates the backing resources of slot and writes setup-time data.
// elements is only used for attribute sets and image only for image slots.
func Realize(ctx *gpu.Context, name string, slot Slot, elements uint32, image *metadata.ImageResourceData) (*Bound, error) {
	b := &Bound{Slot: slot, Elements: elements}
	switch s := slot.(type) {
	case *UniformSlot:
		s.finalize()
		usage := gpu.BufferUsageUniform
		if s.storage {
			usage = gpu.BufferUsageStorage
		}
		ring, err := NewRing(ctx, RingDesc{
			Count:  s.Redundancy(ctx.FramesInFlight),
			Size:   uint64(s.size),
			Usage:  usage,
			Memory: gpu.MemoryHostVisible,
			Name:   fmt.Sprintf("%s.uniform%d", name, s.binding),
		})
		if err != nil {
			return nil, err
		}
		b.Ring = ring
		if s.onlySetup {
			data := make([]byte, s.size)
			s.encode(&FrameContext{}, data)
			if err := ring.Upload(data); err != nil {
				ring.Destroy()
				return nil, err
			}
		}

	case *AttributeSlot:
		s.finalize()
		core.Assert(elements > 0, "attribute binding %d has no elements", s.binding)
		usage := gpu.BufferUsageVertex
		memory := gpu.MemoryHostVisible
		if s.computeFriendly {
			usage |= gpu.BufferUsageStorage | gpu.BufferUsageTransferDst
			memory = gpu.MemoryDeviceLocal
		}
		ring, err := NewRing(ctx, RingDesc{
			Count:  s.Redundancy(ctx.FramesInFlight),
			Size:   uint64(s.Stride()) * uint64(elements),
			Usage:  usage,
			Memory: memory,
			Name:   fmt.Sprintf("%s.attribute%d", name, s.binding),
		})
		if err != nil {
			return nil, err
		}
		b.Ring = ring
		if s.onlySetup && s.fill != nil {
			data := make([]byte, ring.Size())
			s.fill(&FrameContext{}, data, elements)
			if err := ring.Upload(data); err != nil {
				ring.Destroy()
				return nil, err
			}
		}

	case *ImageSlot:
		s.finalized = true
		core.Assert(image != nil, "image binding %d realized without pixels", s.binding)
		tex, err := UploadTexture(ctx, fmt.Sprintf("%s.image%d", name, s.binding), image, s.linear)
		if err != nil {
			return nil, err
		}
		b.Texture = tex

	default:
		core.Assert(false, "unknown slot type %T", slot)
	}
	return b, nil
}

// Update writes the current frame's ring element. Setup-only slots and
// images are left alone.
func (b *Bound) Update(fc *FrameContext) {
	switch s := b.Slot.(type) {
	case *UniformSlot:
		if s.onlySetup || s.encode == nil {
			return
		}
		s.encode(fc, b.Ring.View(fc.Frame))
	case *AttributeSlot:
		if s.onlySetup || s.fill == nil {
			return
		}
		s.fill(fc, b.Ring.View(fc.Frame), b.Elements)
	}
}

func (b *Bound) Destroy(ctx *gpu.Context) {
	b.Ring.Destroy()
	b.Texture.Destroy(ctx)
}
