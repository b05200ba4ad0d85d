package renderer

import (
	"fmt"
	"maps"
	"slices"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/binding"
	"github.com/spaghettifunk/prism/engine/renderer/frame"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/pipeline"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

// maxConcurrentDecodes bounds the image decode goroutines started by Setup.
const maxConcurrentDecodes = 4

// Renderer owns every device resource needed to draw one mesh with one set of
// render parameters.
type Renderer struct {
	id        uuid.UUID
	name      string
	ctx       *gpu.Context
	mesh      *metadata.Mesh
	params    *resource.RenderParams
	swapchain gpu.SwapchainInfo

	vertices *resource.Ring
	indices  *resource.Ring
	bound    map[uint32]*resource.Bound
	order    []uint32

	renderSet   *binding.Layout
	computeSet  *binding.Layout
	graphics    *pipeline.Graphics
	computePipe *pipeline.Compute

	builtVersion uint64
	rebuilds     int
	ready        bool
}

var (
	_ frame.Drawable          = (*Renderer)(nil)
	_ frame.ComputeDrawable   = (*Renderer)(nil)
	_ frame.SwapchainListener = (*Renderer)(nil)
)

func New(ctx *gpu.Context, mesh *metadata.Mesh, params *resource.RenderParams, swapchain gpu.SwapchainInfo) *Renderer {
	core.Assert(mesh != nil, "renderer created without a mesh")
	core.Assert(params != nil, "renderer created without render params")
	id := uuid.New()
	name := mesh.Name
	if name == "" {
		name = "mesh-" + id.String()[:8]
	}
	return &Renderer{
		id:          id,
		name:        name,
		ctx:         ctx,
		mesh:        mesh,
		params:      params,
		swapchain:   swapchain,
		bound:       make(map[uint32]*resource.Bound),
		graphics:    pipeline.NewGraphics(ctx),
		computePipe: pipeline.NewCompute(ctx),
	}
}

func (r *Renderer) ID() uuid.UUID                  { return r.id }
func (r *Renderer) Name() string                   { return r.name }
func (r *Renderer) Params() *resource.RenderParams { return r.params }

// Rebuilds counts pipeline rebuilds since Setup.
func (r *Renderer) Rebuilds() int { return r.rebuilds }

// Setup uploads the mesh, allocates every slot and builds the binding layout
// and the pipeline.
func (r *Renderer) Setup() error {
	core.Assert(!r.ready, "renderer %s set up twice", r.name)
	core.Assert(len(r.mesh.Vertices) > 0, "renderer %s: mesh has no vertices", r.name)
	core.Assert(len(r.mesh.Indices) > 0, "renderer %s: mesh has no indices", r.name)

	if err := r.uploadMesh(); err != nil {
		r.Cleanup()
		return err
	}
	if err := r.reconcile(); err != nil {
		r.Cleanup()
		return err
	}
	if err := r.buildBindings(); err != nil {
		r.Cleanup()
		return err
	}
	version := r.params.Version()
	if err := r.buildPipelines(version); err != nil {
		r.Cleanup()
		return err
	}
	r.builtVersion = version
	r.ready = true
	core.LogInfo("renderer %s (%s) ready: %d slots, version %d", r.name, r.id, len(r.order), version)
	return nil
}

func (r *Renderer) uploadMesh() error {
	vsize := uint64(len(r.mesh.Vertices)) * math.Vertex3DStride
	vertices, err := resource.NewRing(r.ctx, resource.RingDesc{
		Count:  1,
		Size:   vsize,
		Usage:  gpu.BufferUsageVertex | gpu.BufferUsageTransferDst,
		Memory: gpu.MemoryDeviceLocal,
		Name:   r.name + ".vertices",
	})
	if err != nil {
		return err
	}
	r.vertices = vertices
	if err := vertices.Upload(unsafe.Slice((*byte)(unsafe.Pointer(&r.mesh.Vertices[0])), vsize)); err != nil {
		return err
	}

	isize := uint64(len(r.mesh.Indices)) * 4
	indices, err := resource.NewRing(r.ctx, resource.RingDesc{
		Count:  1,
		Size:   isize,
		Usage:  gpu.BufferUsageIndex | gpu.BufferUsageTransferDst,
		Memory: gpu.MemoryDeviceLocal,
		Name:   r.name + ".indices",
	})
	if err != nil {
		return err
	}
	r.indices = indices
	return indices.Upload(unsafe.Slice((*byte)(unsafe.Pointer(&r.mesh.Indices[0])), isize))
}

func (r *Renderer) elements(s *resource.AttributeSlot) uint32 {
	if s.Rate() == gpu.InputRateInstance {
		return r.mesh.Instances()
	}
	return uint32(len(r.mesh.Vertices))
}

// reconcile makes the bound resources match the live slots: unchanged slots
// keep their rings, retired ones are destroyed and new ones realized. New
// images are decoded concurrently; uploads stay on this goroutine.
func (r *Renderer) reconcile() error {
	active := r.params.Active()
	live := make(map[uint32]bool, len(active))

	var fresh []resource.ActiveSlot
	for _, a := range active {
		live[a.ID] = true
		if _, ok := r.bound[a.ID]; !ok {
			fresh = append(fresh, a)
		}
	}

	for id, b := range r.bound {
		if !live[id] {
			b.Destroy(r.ctx)
			delete(r.bound, id)
		}
	}

	images := make([]*metadata.ImageResourceData, len(fresh))
	var g errgroup.Group
	g.SetLimit(maxConcurrentDecodes)
	for i, a := range fresh {
		img, ok := a.Slot.(*resource.ImageSlot)
		if !ok {
			continue
		}
		g.Go(func() error {
			images[i], _ = resource.DecodeImage(img.Path())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, a := range fresh {
		var elements uint32
		if attr, ok := a.Slot.(*resource.AttributeSlot); ok {
			elements = r.elements(attr)
		}
		b, err := resource.Realize(r.ctx, r.name, a.Slot, elements, images[i])
		if err != nil {
			return err
		}
		r.bound[a.ID] = b
	}

	r.order = r.order[:0]
	for _, a := range active {
		r.order = append(r.order, a.ID)
	}
	return nil
}

func (r *Renderer) bounds() []*resource.Bound {
	out := make([]*resource.Bound, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.bound[id])
	}
	return out
}

func (r *Renderer) attributes() []*resource.Bound {
	var out []*resource.Bound
	for _, b := range r.bounds() {
		if _, ok := b.Slot.(*resource.AttributeSlot); ok {
			out = append(out, b)
		}
	}
	return out
}

func (r *Renderer) buildBindings() error {
	set, err := binding.Build(r.ctx, r.name, r.bounds(), binding.KindRender)
	if err != nil {
		return err
	}
	r.renderSet = set
	if r.params.Compute() == nil {
		return nil
	}
	set, err = binding.Build(r.ctx, r.name, r.bounds(), binding.KindCompute)
	if err != nil {
		return err
	}
	r.computeSet = set
	return nil
}

func (r *Renderer) pipelineConfig() pipeline.Config {
	var slots []*resource.AttributeSlot
	for _, b := range r.attributes() {
		slots = append(slots, b.Slot.(*resource.AttributeSlot))
	}
	vbindings, vattrs := pipeline.VertexInput(slots)
	shaders := r.params.Shaders()
	return pipeline.Config{
		Name:          r.name,
		Vertex:        shaders.Vertex,
		Fragment:      shaders.Fragment,
		Mode:          r.params.RenderMode(),
		CullBackfaces: r.params.BackfaceCulling(),
		Blend:         r.params.Blending(),
		Bindings:      vbindings,
		Attributes:    vattrs,
	}
}

func (r *Renderer) buildPipelines(version uint64) error {
	if err := r.graphics.Build(r.pipelineConfig(), []gpu.DescriptorSetLayout{r.renderSet.SetLayout()}, r.swapchain, version); err != nil {
		return err
	}
	return r.buildCompute(version)
}

func (r *Renderer) buildCompute(version uint64) error {
	c := r.params.Compute()
	if c == nil {
		return nil
	}
	return r.computePipe.Build(r.name+".compute", c.Source, c.Groups, []gpu.DescriptorSetLayout{r.computeSet.SetLayout()}, version)
}

// Update fills the current frame's ring elements. A parameter change since
// the last build rebuilds bindings and pipelines first.
func (r *Renderer) Update(fc *resource.FrameContext) error {
	core.Assert(r.ready, "renderer %s updated before setup", r.name)
	if r.params.Version() != r.builtVersion {
		if err := r.Rebuild(); err != nil {
			return err
		}
	}
	for _, id := range r.order {
		r.bound[id].Update(fc)
	}
	return nil
}

// Rebuild waits for the device, tears down pipelines and descriptor state and
// derives them again from the current parameters.
func (r *Renderer) Rebuild() error {
	core.Assert(r.ready, "renderer %s rebuilt before setup", r.name)
	version := r.params.Version()
	var cfg pipeline.Config
	err := r.graphics.Rebuild(version, r.swapchain, func() {
		r.computePipe.Destroy()
		r.computeSet.Destroy()
		r.renderSet.Destroy()
		r.computeSet, r.renderSet = nil, nil
	}, func() (pipeline.Config, []gpu.DescriptorSetLayout, error) {
		if err := r.reconcile(); err != nil {
			return cfg, nil, err
		}
		if err := r.buildBindings(); err != nil {
			return cfg, nil, err
		}
		cfg = r.pipelineConfig()
		return cfg, []gpu.DescriptorSetLayout{r.renderSet.SetLayout()}, nil
	})
	if err != nil {
		return err
	}
	if err := r.buildCompute(version); err != nil {
		return err
	}
	r.builtVersion = version
	r.rebuilds++
	core.LogDebug("renderer %s rebuilt at version %d (%s)", r.name, version, cfg.Mode)
	return nil
}

// SwapchainRecreated rebuilds only when the surface formats changed.
// Viewport and scissor are dynamic, so a new extent alone needs nothing.
func (r *Renderer) SwapchainRecreated(info gpu.SwapchainInfo) error {
	r.swapchain = info
	if !r.ready || !r.graphics.NeedsRebuild(r.builtVersion, info) {
		return nil
	}
	return r.Rebuild()
}

// Record binds the pipeline, descriptor set and buffers for frame and draws
// every instance.
func (r *Renderer) Record(cb gpu.CommandBuffer, frame uint32) {
	rec := r.ctx.Recorder()
	r.graphics.Bind(cb, rec)
	if !r.renderSet.Empty() {
		rec.CmdBindDescriptorSets(cb, gpu.BindPointGraphics, r.graphics.Layout(), []gpu.DescriptorSet{r.renderSet.Set(frame)})
	}
	rec.CmdBindVertexBuffers(cb, pipeline.MeshBinding, []gpu.Buffer{r.vertices.Buffer(0)}, []uint64{0})
	for _, b := range r.attributes() {
		rec.CmdBindVertexBuffers(cb, b.Slot.Binding(), []gpu.Buffer{b.Ring.Buffer(frame)}, []uint64{0})
	}
	rec.CmdBindIndexBuffer(cb, r.indices.Buffer(0), 0)
	rec.CmdDrawIndexed(cb, uint32(len(r.mesh.Indices)), r.mesh.Instances())
}

// RecordCompute dispatches the compute pass, then makes its writes visible
// to vertex input.
func (r *Renderer) RecordCompute(cb gpu.CommandBuffer, frame uint32) {
	if r.params.Compute() == nil || r.computePipe.Handle() == 0 {
		return
	}
	rec := r.ctx.Recorder()
	r.computePipe.Dispatch(cb, rec, r.computeSet.Set(frame))
	for _, b := range r.attributes() {
		if b.Slot.(*resource.AttributeSlot).IsComputeFriendly() {
			rec.CmdBufferBarrier(cb, gpu.BufferBarrier{
				Buffer: b.Ring.Buffer(frame),
				Src:    gpu.PipelineStageCompute,
				Dst:    gpu.PipelineStageVertexInput,
			})
		}
	}
}

// Cleanup releases pipelines, then descriptor state and slot rings, then the
// mesh buffers. The device must be idle.
func (r *Renderer) Cleanup() {
	r.graphics.Destroy()
	r.computePipe.Destroy()
	r.computeSet.Destroy()
	r.renderSet.Destroy()
	r.computeSet, r.renderSet = nil, nil
	for _, id := range slices.Sorted(maps.Keys(r.bound)) {
		r.bound[id].Destroy(r.ctx)
	}
	r.bound = make(map[uint32]*resource.Bound)
	r.order = nil
	r.indices.Destroy()
	r.vertices.Destroy()
	r.indices, r.vertices = nil, nil
	r.ready = false
	core.LogDebug("renderer %s cleaned up", r.name)
}

func (r *Renderer) String() string {
	return fmt.Sprintf("renderer %s (%s)", r.name, r.id)
}
