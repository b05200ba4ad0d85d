package binding

import (
	"cmp"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

type Kind int

const (
	// KindRender exposes uniforms and images. Attributes reach the pipeline
	// through vertex input instead.
	KindRender Kind = iota
	// KindCompute also exposes compute friendly attribute sets as storage
	// buffers.
	KindCompute
)

func (k Kind) String() string {
	if k == KindCompute {
		return "compute"
	}
	return "render"
}

// Entry is one descriptor binding and the resource it points at.
type Entry struct {
	Binding     uint32
	Type        gpu.DescriptorType
	Stages      gpu.ShaderStage
	Source      *resource.Bound
	FrameOffset uint32
}

// Collect orders the descriptor entries of a render target by binding number.
// The same slice drives the set layout, the pool sizes and every frame's
// descriptor writes.
func Collect(bound []*resource.Bound, kind Kind) []Entry {
	var entries []Entry
	for _, b := range bound {
		switch s := b.Slot.(type) {
		case *resource.UniformSlot:
			if kind == KindCompute && s.Stages()&gpu.ShaderStageCompute == 0 {
				continue
			}
			entries = append(entries, Entry{
				Binding:     s.Binding(),
				Type:        s.DescriptorType(),
				Stages:      s.Stages(),
				Source:      b,
				FrameOffset: s.FrameOffset(),
			})
		case *resource.ImageSlot:
			if kind == KindCompute && s.Stages()&gpu.ShaderStageCompute == 0 {
				continue
			}
			entries = append(entries, Entry{
				Binding: s.Binding(),
				Type:    gpu.DescriptorTypeCombinedImageSampler,
				Stages:  s.Stages(),
				Source:  b,
			})
		case *resource.AttributeSlot:
			if kind != KindCompute || !s.IsComputeFriendly() {
				continue
			}
			read, write := s.ComputeBindings()
			entries = append(entries, Entry{
				Binding: write,
				Type:    gpu.DescriptorTypeStorageBuffer,
				Stages:  gpu.ShaderStageCompute,
				Source:  b,
			})
			// Read last frame's state, write this frame's. A single buffer
			// is visible at both bindings.
			entries = append(entries, Entry{
				Binding:     read,
				Type:        gpu.DescriptorTypeStorageBuffer,
				Stages:      gpu.ShaderStageCompute,
				Source:      b,
				FrameOffset: 1,
			})
		}
	}
	slices.SortStableFunc(entries, func(a, b Entry) int { return cmp.Compare(a.Binding, b.Binding) })
	for i := 1; i < len(entries); i++ {
		core.Assert(entries[i-1].Binding != entries[i].Binding,
			"descriptor binding %d declared twice in the %s set", entries[i].Binding, kind)
	}
	return entries
}

// Layout owns a descriptor set layout, its pool and one set per frame in
// flight.
type Layout struct {
	ctx       *gpu.Context
	kind      Kind
	entries   []Entry
	setLayout gpu.DescriptorSetLayout
	pool      gpu.DescriptorPool
	sets      []gpu.DescriptorSet
	destroyed bool
}

// Build derives and writes the descriptor sets for bound.
func Build(ctx *gpu.Context, name string, bound []*resource.Bound, kind Kind) (*Layout, error) {
	l := &Layout{ctx: ctx, kind: kind, entries: Collect(bound, kind)}
	dev := ctx.Bindings()
	n := ctx.FramesInFlight

	layoutEntries := make([]gpu.LayoutEntry, len(l.entries))
	for i, e := range l.entries {
		layoutEntries[i] = gpu.LayoutEntry{Binding: e.Binding, Type: e.Type, Stages: e.Stages, Count: 1}
	}
	var err error
	if l.setLayout, err = dev.CreateDescriptorSetLayout(layoutEntries); err != nil {
		return nil, core.Fatal(err, fmt.Sprintf("create %s set layout for %s", kind, name))
	}
	if len(l.entries) == 0 {
		return l, nil
	}

	sizes := make([]gpu.PoolSize, len(l.entries))
	for i, e := range l.entries {
		sizes[i] = gpu.PoolSize{Type: e.Type, Count: n}
	}
	if l.pool, err = dev.CreateDescriptorPool(sizes, n); err != nil {
		l.Destroy()
		return nil, core.Fatal(err, fmt.Sprintf("create %s descriptor pool for %s", kind, name))
	}
	if l.sets, err = dev.AllocateDescriptorSets(l.pool, l.setLayout, n); err != nil {
		l.Destroy()
		return nil, core.Fatal(err, fmt.Sprintf("allocate %s descriptor sets for %s", kind, name))
	}

	writes := make([]gpu.DescriptorWrite, 0, len(l.entries)*int(n))
	for f := uint32(0); f < n; f++ {
		for _, e := range l.entries {
			writes = append(writes, l.write(f, e))
		}
	}
	dev.UpdateDescriptorSets(writes)
	return l, nil
}

func (l *Layout) write(frame uint32, e Entry) gpu.DescriptorWrite {
	w := gpu.DescriptorWrite{Set: l.sets[frame], Binding: e.Binding, Type: e.Type}
	if e.Type == gpu.DescriptorTypeCombinedImageSampler {
		w.Image = e.Source.Texture.Image
		w.Sampler = e.Source.Texture.Sampler
		return w
	}
	w.Buffer = e.Source.Ring.BufferAt(frame, e.FrameOffset)
	w.Range = e.Source.Ring.Size()
	return w
}

func (l *Layout) Kind() Kind                         { return l.kind }
func (l *Layout) Entries() []Entry                   { return l.entries }
func (l *Layout) SetLayout() gpu.DescriptorSetLayout { return l.setLayout }

// Empty layouts have no pool and no sets to bind.
func (l *Layout) Empty() bool { return len(l.sets) == 0 }

func (l *Layout) Set(frame uint32) gpu.DescriptorSet {
	if l.Empty() {
		return 0
	}
	return l.sets[frame%uint32(len(l.sets))]
}

// Destroy frees the pool, which releases its sets, then the layout.
func (l *Layout) Destroy() {
	if l == nil || l.destroyed {
		return
	}
	l.destroyed = true
	dev := l.ctx.Bindings()
	if l.pool != 0 {
		dev.DestroyDescriptorPool(l.pool)
	}
	if l.setLayout != 0 {
		dev.DestroyDescriptorSetLayout(l.setLayout)
	}
	l.sets = nil
}
