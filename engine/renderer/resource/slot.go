package resource

import (
	"time"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// FrameContext is handed to every update callback.
type FrameContext struct {
	// Frame is the frame-in-flight index. It selects ring elements,
	// descriptor sets and command buffers.
	Frame uint32
	// Number counts presented frames since start.
	Number    uint64
	DeltaTime time.Duration
	Extent    gpu.Extent2D
}

// Slot is one declared binding of a render target. The set of
// implementations is closed: *UniformSlot, *ImageSlot and *AttributeSlot.
type Slot interface {
	Binding() uint32
	slot()
}

// UniformSlot is a uniform or storage block written from the host.
type UniformSlot struct {
	binding     uint32
	stages      gpu.ShaderStage
	size        uint32
	encode      func(fc *FrameContext, dst []byte)
	onlySetup   bool
	storage     bool
	frameOffset uint32
	finalized   bool
}

func (*UniformSlot) slot() {}

func (s *UniformSlot) Binding() uint32         { return s.binding }
func (s *UniformSlot) Stages() gpu.ShaderStage { return s.stages }
func (s *UniformSlot) Size() uint32            { return s.size }
func (s *UniformSlot) IsOnlySetup() bool       { return s.onlySetup }
func (s *UniformSlot) FrameOffset() uint32     { return s.frameOffset }

func (s *UniformSlot) DescriptorType() gpu.DescriptorType {
	if s.storage {
		return gpu.DescriptorTypeStorageBuffer
	}
	return gpu.DescriptorTypeUniformBuffer
}

// Redundancy is the number of ring elements backing the slot.
func (s *UniformSlot) Redundancy(framesInFlight uint32) uint32 {
	if s.onlySetup {
		return 1
	}
	return framesInFlight
}

func (s *UniformSlot) finalize() {
	s.finalized = true
	core.Assert(s.size > 0, "uniform binding %d has no attached data", s.binding)
}

// ImageSlot is a sampled image decoded from Path at setup.
type ImageSlot struct {
	binding   uint32
	path      string
	stages    gpu.ShaderStage
	linear    bool
	finalized bool
}

func (*ImageSlot) slot() {}

func (s *ImageSlot) Binding() uint32         { return s.binding }
func (s *ImageSlot) Path() string            { return s.path }
func (s *ImageSlot) Stages() gpu.ShaderStage { return s.stages }
func (s *ImageSlot) IsLinear() bool          { return s.linear }

// Field is one vertex-input sub-field of an attribute set.
type Field struct {
	Offset uint32
	Format gpu.Format
}

// AttributeSlot feeds the vertex input stage at its binding. Binding 0 is
// reserved for mesh vertices.
type AttributeSlot struct {
	binding         uint32
	rate            gpu.InputRate
	fields          []Field
	onlySetup       bool
	computeFriendly bool
	singleBuffered  bool
	elemSize        uint32
	fill            func(fc *FrameContext, dst []byte, count uint32)
	computeBindings [2]uint32
	finalized       bool
}

func (*AttributeSlot) slot() {}

func (s *AttributeSlot) Binding() uint32         { return s.binding }
func (s *AttributeSlot) Rate() gpu.InputRate     { return s.rate }
func (s *AttributeSlot) Fields() []Field         { return s.fields }
func (s *AttributeSlot) IsOnlySetup() bool       { return s.onlySetup }
func (s *AttributeSlot) IsComputeFriendly() bool { return s.computeFriendly }
func (s *AttributeSlot) IsSingleBuffered() bool  { return s.singleBuffered }

// ComputeBindings returns the read and write bindings used when the set is
// exposed to a compute pass.
func (s *AttributeSlot) ComputeBindings() (read, write uint32) {
	return s.computeBindings[0], s.computeBindings[1]
}

// Stride is the size of one element. An attached element type defines it,
// otherwise it is the extent of the declared fields.
func (s *AttributeSlot) Stride() uint32 {
	if s.elemSize > 0 {
		return s.elemSize
	}
	return s.fieldExtent()
}

func (s *AttributeSlot) fieldExtent() uint32 {
	var extent uint32
	for _, f := range s.fields {
		if end := f.Offset + f.Format.Size(); end > extent {
			extent = end
		}
	}
	return extent
}

// BindingDescription panics on a zero stride.
func (s *AttributeSlot) BindingDescription() gpu.VertexBinding {
	stride := s.Stride()
	core.Assert(stride > 0, "attribute binding %d has zero stride", s.binding)
	return gpu.VertexBinding{Binding: s.binding, Stride: stride, Rate: s.rate}
}

func (s *AttributeSlot) Redundancy(framesInFlight uint32) uint32 {
	if s.singleBuffered || (s.onlySetup && !s.computeFriendly) {
		return 1
	}
	return framesInFlight
}

func (s *AttributeSlot) finalize() {
	s.finalized = true
	core.Assert(!s.computeFriendly || s.onlySetup,
		"attribute binding %d is compute friendly but not setup-only", s.binding)
	core.Assert(s.onlySetup || !s.singleBuffered,
		"attribute binding %d is updated per frame but single buffered", s.binding)
	core.Assert(s.Stride() > 0, "attribute binding %d has zero stride", s.binding)
	core.Assert(s.fieldExtent() <= s.Stride(),
		"attribute binding %d fields span %d bytes but element is %d", s.binding, s.fieldExtent(), s.Stride())
}
