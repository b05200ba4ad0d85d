package resource

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type RingDesc struct {
	Count  uint32
	Size   uint64
	Usage  gpu.BufferUsage
	Memory gpu.MemoryKind
	Name   string
}

// Ring is Count equally sized buffers, one per frame in flight. Host-visible
// rings are mapped once at creation and stay mapped until Destroy.
type Ring struct {
	ctx       *gpu.Context
	desc      RingDesc
	buffers   []gpu.Buffer
	views     [][]byte
	destroyed bool
}

// NewRing allocates every element or none of them.
func NewRing(ctx *gpu.Context, desc RingDesc) (*Ring, error) {
	core.Assert(desc.Count > 0, "ring %q has no elements", desc.Name)
	r := &Ring{ctx: ctx, desc: desc}
	mem := ctx.Memory()
	for i := uint32(0); i < desc.Count; i++ {
		b, err := mem.CreateBuffer(gpu.BufferDesc{
			Size:   desc.Size,
			Usage:  desc.Usage,
			Memory: desc.Memory,
			Name:   fmt.Sprintf("%s[%d]", desc.Name, i),
		})
		if err != nil {
			r.Destroy()
			return nil, core.Fatal(err, fmt.Sprintf("create ring %s element %d", desc.Name, i))
		}
		r.buffers = append(r.buffers, b)
		if desc.Memory != gpu.MemoryHostVisible {
			continue
		}
		view, err := mem.MapBuffer(b)
		if err != nil {
			r.Destroy()
			return nil, core.Fatal(err, fmt.Sprintf("map ring %s element %d", desc.Name, i))
		}
		r.views = append(r.views, view)
	}
	return r, nil
}

func (r *Ring) Count() uint32 { return r.desc.Count }
func (r *Ring) Size() uint64  { return r.desc.Size }
func (r *Ring) Name() string  { return r.desc.Name }
func (r *Ring) HostVisible() bool {
	return r.desc.Memory == gpu.MemoryHostVisible
}

// Element is the ring index read by frame when it looks offset frames back.
func (r *Ring) Element(frame, offset uint32) uint32 {
	n := r.desc.Count
	return (frame%n + n - offset%n) % n
}

func (r *Ring) Buffer(frame uint32) gpu.Buffer {
	return r.buffers[r.Element(frame, 0)]
}

func (r *Ring) BufferAt(frame, offset uint32) gpu.Buffer {
	return r.buffers[r.Element(frame, offset)]
}

func (r *Ring) Buffers() []gpu.Buffer {
	return r.buffers
}

// View is the mapped memory written for frame. Nil for device-local rings.
func (r *Ring) View(frame uint32) []byte {
	if !r.HostVisible() {
		return nil
	}
	return r.views[r.Element(frame, 0)]
}

// Upload writes data into every element. Device-local rings go through one
// staging buffer and a single one-shot submission.
func (r *Ring) Upload(data []byte) error {
	core.Assert(uint64(len(data)) <= r.desc.Size, "upload of %d bytes into ring %q of %d", len(data), r.desc.Name, r.desc.Size)
	if r.HostVisible() {
		for _, v := range r.views {
			copy(v, data)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	mem := r.ctx.Memory()
	staging, err := mem.CreateBuffer(gpu.BufferDesc{
		Size:   uint64(len(data)),
		Usage:  gpu.BufferUsageTransferSrc,
		Memory: gpu.MemoryHostVisible,
		Name:   r.desc.Name + ".staging",
	})
	if err != nil {
		return core.Fatal(err, "create staging buffer for "+r.desc.Name)
	}
	defer mem.DestroyBuffer(staging)

	view, err := mem.MapBuffer(staging)
	if err != nil {
		return core.Fatal(err, "map staging buffer for "+r.desc.Name)
	}
	copy(view, data)
	mem.UnmapBuffer(staging)

	xfer := r.ctx.Transfer()
	cb, err := xfer.BeginOneShot()
	if err != nil {
		return core.Fatal(err, "begin upload of "+r.desc.Name)
	}
	for _, b := range r.buffers {
		xfer.CmdCopyBuffer(cb, staging, b, uint64(len(data)))
	}
	if err := xfer.EndOneShot(cb); err != nil {
		return core.Fatal(err, "submit upload of "+r.desc.Name)
	}
	return nil
}

// Destroy releases every element. Calling it again does nothing.
func (r *Ring) Destroy() {
	if r == nil || r.destroyed {
		return
	}
	r.destroyed = true
	mem := r.ctx.Memory()
	for i, b := range r.buffers {
		if i < len(r.views) {
			mem.UnmapBuffer(b)
		}
		mem.DestroyBuffer(b)
	}
	r.buffers = nil
	r.views = nil
}
