package resource

import (
	"unsafe"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// UniformBuilder configures a UniformSlot until the owning renderer is set up.
type UniformBuilder struct {
	slot *UniformSlot
}

func (b *UniformBuilder) mutable() *UniformSlot {
	core.Assert(!b.slot.finalized, "uniform binding %d modified after setup", b.slot.binding)
	return b.slot
}

// OnlySetup writes the block once at setup. Later updates are no-ops.
func (b *UniformBuilder) OnlySetup(v bool) *UniformBuilder {
	b.mutable().onlySetup = v
	return b
}

// Storage exposes the block as a storage buffer instead of a uniform buffer.
func (b *UniformBuilder) Storage(v bool) *UniformBuilder {
	b.mutable().storage = v
	return b
}

// FrameOffset makes frame f read the element written offset frames earlier.
func (b *UniformBuilder) FrameOffset(offset uint32) *UniformBuilder {
	b.mutable().frameOffset = offset
	return b
}

func (b *UniformBuilder) Slot() *UniformSlot { return b.slot }

// Attach sets the callback producing the block contents. T must be a plain
// value type laid out the way the shader expects it.
func Attach[T any](b *UniformBuilder, fn func(fc *FrameContext) T) *UniformBuilder {
	s := b.mutable()
	var zero T
	size := uint32(unsafe.Sizeof(zero))
	core.Assert(size > 0, "uniform binding %d attached a zero sized type", s.binding)
	s.size = size
	s.encode = func(fc *FrameContext, dst []byte) {
		v := fn(fc)
		copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&v)), size))
	}
	return b
}

// AttributeBuilder configures an AttributeSlot until setup.
type AttributeBuilder struct {
	slot *AttributeSlot
}

func (b *AttributeBuilder) mutable() *AttributeSlot {
	core.Assert(!b.slot.finalized, "attribute binding %d modified after setup", b.slot.binding)
	return b.slot
}

// Add appends a vertex-input field at the given byte offset.
func (b *AttributeBuilder) Add(offset uint32, format gpu.Format) *AttributeBuilder {
	core.Assert(format.Size() > 0, "attribute binding %d field at %d has no format", b.slot.binding, offset)
	s := b.mutable()
	s.fields = append(s.fields, Field{Offset: offset, Format: format})
	return b
}

func (b *AttributeBuilder) OnlySetup(v bool) *AttributeBuilder {
	b.mutable().onlySetup = v
	return b
}

// ComputeFriendly makes the buffers device local and writable from a compute
// pass. Requires OnlySetup.
func (b *AttributeBuilder) ComputeFriendly(v bool) *AttributeBuilder {
	b.mutable().computeFriendly = v
	return b
}

// SingleBuffered backs the set with one buffer regardless of frames in flight.
func (b *AttributeBuilder) SingleBuffered(v bool) *AttributeBuilder {
	b.mutable().singleBuffered = v
	return b
}

// ComputeBindings overrides the storage bindings used in the compute set.
// A single-buffered set is bound at both, so read and write see the same
// buffer.
func (b *AttributeBuilder) ComputeBindings(read, write uint32) *AttributeBuilder {
	core.Assert(read != write, "attribute binding %d compute read and write share binding %d", b.slot.binding, read)
	b.mutable().computeBindings = [2]uint32{read, write}
	return b
}

func (b *AttributeBuilder) Slot() *AttributeSlot { return b.slot }

// AttachElements sets the callback filling every element of the set. The
// element count is the mesh vertex count for per-vertex sets and the instance
// count for per-instance sets.
func AttachElements[T any](b *AttributeBuilder, fn func(fc *FrameContext, out []T)) *AttributeBuilder {
	s := b.mutable()
	var zero T
	size := uint32(unsafe.Sizeof(zero))
	core.Assert(size > 0, "attribute binding %d attached a zero sized type", s.binding)
	s.elemSize = size
	s.fill = func(fc *FrameContext, dst []byte, count uint32) {
		if count == 0 {
			return
		}
		fn(fc, unsafe.Slice((*T)(unsafe.Pointer(&dst[0])), count))
	}
	return b
}

// ImageBuilder configures an ImageSlot.
type ImageBuilder struct {
	slot *ImageSlot
}

func (b *ImageBuilder) mutable() *ImageSlot {
	core.Assert(!b.slot.finalized, "image binding %d modified after setup", b.slot.binding)
	return b.slot
}

// Linear selects linear filtering instead of nearest.
func (b *ImageBuilder) Linear(v bool) *ImageBuilder {
	b.mutable().linear = v
	return b
}

func (b *ImageBuilder) Slot() *ImageSlot { return b.slot }
