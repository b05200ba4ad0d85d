package resource

import (
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type ShaderSet struct {
	Vertex   metadata.ShaderSource
	Fragment metadata.ShaderSource
}

// ComputeParams enables a compute pass dispatched before the render pass.
type ComputeParams struct {
	Source metadata.ShaderSource
	Groups [3]uint32
}

// ActiveSlot is a live arena entry. IDs are never reused.
type ActiveSlot struct {
	ID   uint32
	Slot Slot
}

type entry struct {
	slot    Slot
	retired bool
}

// RenderParams is the declarative description of a render target. Slots live
// in an append-only arena: replacing one retires the old entry and appends the
// new one. Every change that requires new device state bumps the version.
type RenderParams struct {
	entries     []entry
	descriptors map[uint32]int
	attributes  map[uint32]int
	version     uint64

	shaders ShaderSet
	compute *ComputeParams
	mode    metadata.RenderMode
	cull    bool
	blend   bool
}

func NewRenderParams(shaders ShaderSet) *RenderParams {
	return &RenderParams{
		descriptors: make(map[uint32]int),
		attributes:  make(map[uint32]int),
		shaders:     shaders,
		cull:        true,
	}
}

func (p *RenderParams) Version() uint64 { return p.version }

// Invalidate requests a pipeline and binding rebuild on the next update.
func (p *RenderParams) Invalidate() { p.version++ }

func (p *RenderParams) push(s Slot) int {
	p.entries = append(p.entries, entry{slot: s})
	p.version++
	return len(p.entries) - 1
}

func (p *RenderParams) retire(idx int) {
	p.entries[idx].retired = true
}

// SetAttribute declares an attribute set. Binding 0 carries mesh vertices.
func (p *RenderParams) SetAttribute(binding uint32, rate gpu.InputRate) *AttributeBuilder {
	core.Assert(binding != 0, "attribute binding 0 is reserved for mesh vertices")
	_, exists := p.attributes[binding]
	core.Assert(!exists, "attribute binding %d already declared, use UpdateAttribute", binding)
	return p.newAttribute(binding, rate)
}

// UpdateAttribute replaces a declared attribute set.
func (p *RenderParams) UpdateAttribute(binding uint32, rate gpu.InputRate) *AttributeBuilder {
	idx, exists := p.attributes[binding]
	core.Assert(exists, "attribute binding %d was never declared", binding)
	p.retire(idx)
	return p.newAttribute(binding, rate)
}

func (p *RenderParams) newAttribute(binding uint32, rate gpu.InputRate) *AttributeBuilder {
	s := &AttributeSlot{binding: binding, rate: rate, computeBindings: [2]uint32{binding, binding + 1}}
	p.attributes[binding] = p.push(s)
	return &AttributeBuilder{slot: s}
}

func (p *RenderParams) SetUniform(binding uint32, stages gpu.ShaderStage) *UniformBuilder {
	p.assertFreeDescriptor(binding)
	return p.newUniform(binding, stages)
}

func (p *RenderParams) UpdateUniform(binding uint32, stages gpu.ShaderStage) *UniformBuilder {
	p.retireDescriptor(binding)
	return p.newUniform(binding, stages)
}

func (p *RenderParams) newUniform(binding uint32, stages gpu.ShaderStage) *UniformBuilder {
	s := &UniformSlot{binding: binding, stages: stages}
	p.descriptors[binding] = p.push(s)
	return &UniformBuilder{slot: s}
}

// SetUniformImage declares a sampled image. An empty or unreadable path is
// replaced by a placeholder at setup.
func (p *RenderParams) SetUniformImage(binding uint32, path string, stages gpu.ShaderStage) *ImageBuilder {
	p.assertFreeDescriptor(binding)
	return p.newImage(binding, path, stages)
}

func (p *RenderParams) UpdateUniformImage(binding uint32, path string, stages gpu.ShaderStage) *ImageBuilder {
	p.retireDescriptor(binding)
	return p.newImage(binding, path, stages)
}

func (p *RenderParams) newImage(binding uint32, path string, stages gpu.ShaderStage) *ImageBuilder {
	s := &ImageSlot{binding: binding, path: path, stages: stages}
	p.descriptors[binding] = p.push(s)
	return &ImageBuilder{slot: s}
}

func (p *RenderParams) assertFreeDescriptor(binding uint32) {
	_, exists := p.descriptors[binding]
	core.Assert(!exists, "descriptor binding %d already declared, use the Update form", binding)
}

func (p *RenderParams) retireDescriptor(binding uint32) {
	idx, exists := p.descriptors[binding]
	core.Assert(exists, "descriptor binding %d was never declared", binding)
	p.retire(idx)
}

// Active lists live slots in declaration order.
func (p *RenderParams) Active() []ActiveSlot {
	out := make([]ActiveSlot, 0, len(p.descriptors)+len(p.attributes))
	for i, e := range p.entries {
		if !e.retired {
			out = append(out, ActiveSlot{ID: uint32(i + 1), Slot: e.slot})
		}
	}
	return out
}

func (p *RenderParams) SetShaders(shaders ShaderSet) {
	p.shaders = shaders
	p.version++
}

func (p *RenderParams) Shaders() ShaderSet { return p.shaders }

// SetCompute enables a compute pass of groupsX*groupsY*groupsZ workgroups.
func (p *RenderParams) SetCompute(source metadata.ShaderSource, groupsX, groupsY, groupsZ uint32) {
	core.Assert(groupsX > 0 && groupsY > 0 && groupsZ > 0, "compute dispatch needs at least one workgroup per axis")
	p.compute = &ComputeParams{Source: source, Groups: [3]uint32{groupsX, groupsY, groupsZ}}
	p.version++
}

func (p *RenderParams) Compute() *ComputeParams { return p.compute }

// SetRenderMode switches between filled, line and point rasterization
// without touching shaders.
func (p *RenderParams) SetRenderMode(mode metadata.RenderMode) {
	if p.mode == mode {
		return
	}
	p.mode = mode
	p.version++
}

func (p *RenderParams) RenderMode() metadata.RenderMode { return p.mode }

func (p *RenderParams) SetBackfaceCulling(cull bool) {
	if p.cull == cull {
		return
	}
	p.cull = cull
	p.version++
}

func (p *RenderParams) BackfaceCulling() bool { return p.cull }

func (p *RenderParams) SetBlending(blend bool) {
	if p.blend == blend {
		return
	}
	p.blend = blend
	p.version++
}

func (p *RenderParams) Blending() bool { return p.blend }

// ReferencesShader reports whether path is one of the configured stages.
func (p *RenderParams) ReferencesShader(path string) bool {
	if path == "" {
		return false
	}
	if p.shaders.Vertex.Path == path || p.shaders.Fragment.Path == path {
		return true
	}
	return p.compute != nil && p.compute.Source.Path == path
}

// ImagesAt returns the live image slots reading path.
func (p *RenderParams) ImagesAt(path string) []*ImageSlot {
	var out []*ImageSlot
	for _, a := range p.Active() {
		if img, ok := a.Slot.(*ImageSlot); ok && img.path == path {
			out = append(out, img)
		}
	}
	return out
}
