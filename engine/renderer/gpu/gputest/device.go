// Package gputest provides an in-memory gpu.Device that records every call and
// tracks live handles, plus a scripted window surface.
package gputest

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type BufferState struct {
	Desc     gpu.BufferDesc
	Data     []byte
	MapCount int
	Mapped   bool
}

type ImageState struct {
	Desc   gpu.ImageDesc
	Layout gpu.ImageLayout
	Data   []byte
}

type PoolState struct {
	Sizes   []gpu.PoolSize
	MaxSets uint32
	Sets    []gpu.DescriptorSet
}

type SetState struct {
	Layout gpu.DescriptorSetLayout
	Pool   gpu.DescriptorPool
	Writes []gpu.DescriptorWrite
}

type PipelineState struct {
	Graphics *gpu.GraphicsPipelineDesc
	Compute  *gpu.ComputePipelineDesc
}

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op         string
	Pipeline   gpu.Pipeline
	Point      gpu.BindPoint
	Sets       []gpu.DescriptorSet
	Buffers    []gpu.Buffer
	ImageIndex uint32
	Counts     [3]uint32
}

type CommandBufferState struct {
	Recording bool
	OneShot   bool
	Commands  []Command
}

type FenceState struct {
	Signaled bool
	Pending  bool
}

type Submission struct {
	CommandBuffer gpu.CommandBuffer
	Wait, Signal  gpu.Semaphore
	Fence         gpu.Fence
	Commands      []Command
}

type Transition struct {
	Image    gpu.Image
	From, To gpu.ImageLayout
}

type AcquireResult struct {
	Status gpu.PresentStatus
	Err    error
}

type PresentResult struct {
	Status gpu.PresentStatus
	Err    error
}

// Device implements gpu.Device in memory. It is not safe for concurrent use.
type Device struct {
	next uint64

	Buffers         map[gpu.Buffer]*BufferState
	Images          map[gpu.Image]*ImageState
	Samplers        map[gpu.Sampler]gpu.SamplerDesc
	SetLayouts      map[gpu.DescriptorSetLayout][]gpu.LayoutEntry
	Pools           map[gpu.DescriptorPool]*PoolState
	Sets            map[gpu.DescriptorSet]*SetState
	Modules         map[gpu.ShaderModule][]byte
	PipelineLayouts map[gpu.PipelineLayout][]gpu.DescriptorSetLayout
	Pipelines       map[gpu.Pipeline]*PipelineState
	CommandBuffers  map[gpu.CommandBuffer]*CommandBufferState
	Fences          map[gpu.Fence]*FenceState
	Semaphores      map[gpu.Semaphore]bool

	// Swapchain
	ImageCount       uint32
	ColorFormat      gpu.Format
	DepthFormat      gpu.Format
	Swapchain        *gpu.SwapchainInfo
	LiveViews        int
	SwapchainCreates int
	nextImage        uint32

	// Scripted results, consumed front to back. Empty means OK.
	AcquireResults []AcquireResult
	PresentResults []PresentResult
	// FailNext makes the next call of the named method return the error.
	FailNext map[string]error

	Calls         []string
	Submissions   []Submission
	Presents      []uint32
	Transitions   []Transition
	UpdateBatches [][]gpu.DescriptorWrite
	Destroyed     []string
	OneShots      int
	WaitIdles     int
	// Violations collects misuse the real driver would reject or crash on.
	Violations []string
}

var _ gpu.Device = (*Device)(nil)

func NewDevice() *Device {
	return &Device{
		Buffers:         map[gpu.Buffer]*BufferState{},
		Images:          map[gpu.Image]*ImageState{},
		Samplers:        map[gpu.Sampler]gpu.SamplerDesc{},
		SetLayouts:      map[gpu.DescriptorSetLayout][]gpu.LayoutEntry{},
		Pools:           map[gpu.DescriptorPool]*PoolState{},
		Sets:            map[gpu.DescriptorSet]*SetState{},
		Modules:         map[gpu.ShaderModule][]byte{},
		PipelineLayouts: map[gpu.PipelineLayout][]gpu.DescriptorSetLayout{},
		Pipelines:       map[gpu.Pipeline]*PipelineState{},
		CommandBuffers:  map[gpu.CommandBuffer]*CommandBufferState{},
		Fences:          map[gpu.Fence]*FenceState{},
		Semaphores:      map[gpu.Semaphore]bool{},
		ImageCount:      3,
		ColorFormat:     gpu.FormatB8G8R8A8Srgb,
		DepthFormat:     gpu.FormatD32Sfloat,
		FailNext:        map[string]error{},
	}
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

func (d *Device) call(name string) error {
	d.Calls = append(d.Calls, name)
	if err, ok := d.FailNext[name]; ok {
		delete(d.FailNext, name)
		return err
	}
	return nil
}

func (d *Device) violation(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) destroyed(kind string, h uint64) {
	d.Calls = append(d.Calls, "Destroy"+kind)
	d.Destroyed = append(d.Destroyed, fmt.Sprintf("%s:%d", kind, h))
}

// Live counts every device object that has not been destroyed.
func (d *Device) Live() int {
	return len(d.Buffers) + len(d.Images) + len(d.Samplers) + len(d.SetLayouts) +
		len(d.Pools) + len(d.Modules) + len(d.PipelineLayouts) + len(d.Pipelines)
}

// BufferByName finds a live buffer by its debug name.
func (d *Device) BufferByName(name string) []gpu.Buffer {
	var out []gpu.Buffer
	for h, b := range d.Buffers {
		if b.Desc.Name == name {
			out = append(out, h)
		}
	}
	return out
}

// Memory

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if err := d.call("CreateBuffer"); err != nil {
		return 0, err
	}
	if desc.Size == 0 {
		return 0, errors.New("zero sized buffer")
	}
	h := gpu.Buffer(d.handle())
	d.Buffers[h] = &BufferState{Desc: desc, Data: make([]byte, desc.Size)}
	return h, nil
}

func (d *Device) MapBuffer(b gpu.Buffer) ([]byte, error) {
	if err := d.call("MapBuffer"); err != nil {
		return nil, err
	}
	st, ok := d.Buffers[b]
	if !ok {
		return nil, errors.Newf("map of unknown buffer %d", b)
	}
	if st.Desc.Memory != gpu.MemoryHostVisible {
		return nil, errors.Newf("buffer %q is not host visible", st.Desc.Name)
	}
	if st.Mapped {
		d.violation("buffer %q mapped twice", st.Desc.Name)
	}
	st.Mapped = true
	st.MapCount++
	return st.Data, nil
}

func (d *Device) UnmapBuffer(b gpu.Buffer) {
	d.Calls = append(d.Calls, "UnmapBuffer")
	if st, ok := d.Buffers[b]; ok {
		st.Mapped = false
	}
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	if _, ok := d.Buffers[b]; !ok {
		d.violation("destroy of unknown buffer %d", b)
		return
	}
	delete(d.Buffers, b)
	d.destroyed("Buffer", uint64(b))
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if err := d.call("CreateImage"); err != nil {
		return 0, err
	}
	h := gpu.Image(d.handle())
	d.Images[h] = &ImageState{Desc: desc, Layout: gpu.ImageLayoutUndefined}
	return h, nil
}

func (d *Device) DestroyImage(img gpu.Image) {
	if _, ok := d.Images[img]; !ok {
		d.violation("destroy of unknown image %d", img)
		return
	}
	delete(d.Images, img)
	d.destroyed("Image", uint64(img))
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	if err := d.call("CreateSampler"); err != nil {
		return 0, err
	}
	h := gpu.Sampler(d.handle())
	d.Samplers[h] = desc
	return h, nil
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	if _, ok := d.Samplers[s]; !ok {
		d.violation("destroy of unknown sampler %d", s)
		return
	}
	delete(d.Samplers, s)
	d.destroyed("Sampler", uint64(s))
}

// Transfer

func (d *Device) BeginOneShot() (gpu.CommandBuffer, error) {
	if err := d.call("BeginOneShot"); err != nil {
		return 0, err
	}
	h := gpu.CommandBuffer(d.handle())
	d.CommandBuffers[h] = &CommandBufferState{Recording: true, OneShot: true}
	return h, nil
}

func (d *Device) record(cb gpu.CommandBuffer, c Command) {
	st, ok := d.CommandBuffers[cb]
	if !ok || !st.Recording {
		d.violation("%s recorded outside a recording command buffer", c.Op)
		return
	}
	st.Commands = append(st.Commands, c)
}

func (d *Device) CmdCopyBuffer(cb gpu.CommandBuffer, src, dst gpu.Buffer, size uint64) {
	d.record(cb, Command{Op: "CopyBuffer", Buffers: []gpu.Buffer{src, dst}})
	s, okS := d.Buffers[src]
	t, okT := d.Buffers[dst]
	if !okS || !okT {
		d.violation("copy between unknown buffers %d -> %d", src, dst)
		return
	}
	copy(t.Data[:size], s.Data[:size])
}

func (d *Device) CmdTransitionImage(cb gpu.CommandBuffer, img gpu.Image, from, to gpu.ImageLayout) {
	d.record(cb, Command{Op: "TransitionImage"})
	d.Transitions = append(d.Transitions, Transition{Image: img, From: from, To: to})
	st, ok := d.Images[img]
	if !ok {
		d.violation("transition of unknown image %d", img)
		return
	}
	if st.Layout != from {
		d.violation("image %d transition from %d but layout is %d", img, from, st.Layout)
	}
	st.Layout = to
}

func (d *Device) CmdCopyBufferToImage(cb gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, width, height uint32) {
	d.record(cb, Command{Op: "CopyBufferToImage", Buffers: []gpu.Buffer{src}})
	s, okS := d.Buffers[src]
	img, okI := d.Images[dst]
	if !okS || !okI {
		d.violation("copy into unknown image %d", dst)
		return
	}
	if img.Layout != gpu.ImageLayoutTransferDst {
		d.violation("copy into image %d outside transfer layout", dst)
	}
	n := uint64(width) * uint64(height) * uint64(img.Desc.Format.Size())
	img.Data = append([]byte(nil), s.Data[:n]...)
}

func (d *Device) EndOneShot(cb gpu.CommandBuffer) error {
	if err := d.call("EndOneShot"); err != nil {
		return err
	}
	st, ok := d.CommandBuffers[cb]
	if !ok || !st.OneShot {
		return errors.Newf("command buffer %d is not a one-shot buffer", cb)
	}
	delete(d.CommandBuffers, cb)
	d.OneShots++
	return nil
}

// Bindings

func (d *Device) CreateDescriptorSetLayout(entries []gpu.LayoutEntry) (gpu.DescriptorSetLayout, error) {
	if err := d.call("CreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	seen := map[uint32]bool{}
	for _, e := range entries {
		if seen[e.Binding] {
			d.violation("layout declares binding %d twice", e.Binding)
		}
		seen[e.Binding] = true
	}
	h := gpu.DescriptorSetLayout(d.handle())
	d.SetLayouts[h] = append([]gpu.LayoutEntry(nil), entries...)
	return h, nil
}

func (d *Device) DestroyDescriptorSetLayout(l gpu.DescriptorSetLayout) {
	if _, ok := d.SetLayouts[l]; !ok {
		d.violation("destroy of unknown set layout %d", l)
		return
	}
	delete(d.SetLayouts, l)
	d.destroyed("DescriptorSetLayout", uint64(l))
}

func (d *Device) CreateDescriptorPool(sizes []gpu.PoolSize, maxSets uint32) (gpu.DescriptorPool, error) {
	if err := d.call("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	h := gpu.DescriptorPool(d.handle())
	d.Pools[h] = &PoolState{Sizes: append([]gpu.PoolSize(nil), sizes...), MaxSets: maxSets}
	return h, nil
}

// DestroyDescriptorPool frees every set allocated from the pool.
func (d *Device) DestroyDescriptorPool(p gpu.DescriptorPool) {
	st, ok := d.Pools[p]
	if !ok {
		d.violation("destroy of unknown pool %d", p)
		return
	}
	for _, s := range st.Sets {
		delete(d.Sets, s)
	}
	delete(d.Pools, p)
	d.destroyed("DescriptorPool", uint64(p))
}

func (d *Device) AllocateDescriptorSets(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout, count uint32) ([]gpu.DescriptorSet, error) {
	if err := d.call("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	st, ok := d.Pools[pool]
	if !ok {
		return nil, errors.Newf("allocate from unknown pool %d", pool)
	}
	if uint32(len(st.Sets))+count > st.MaxSets {
		return nil, errors.Newf("pool %d exhausted: %d sets of %d", pool, len(st.Sets)+int(count), st.MaxSets)
	}
	if _, ok := d.SetLayouts[layout]; !ok {
		return nil, errors.Newf("allocate with unknown layout %d", layout)
	}
	out := make([]gpu.DescriptorSet, count)
	for i := range out {
		h := gpu.DescriptorSet(d.handle())
		d.Sets[h] = &SetState{Layout: layout, Pool: pool}
		st.Sets = append(st.Sets, h)
		out[i] = h
	}
	return out, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	d.Calls = append(d.Calls, "UpdateDescriptorSets")
	d.UpdateBatches = append(d.UpdateBatches, append([]gpu.DescriptorWrite(nil), writes...))
	for _, w := range writes {
		st, ok := d.Sets[w.Set]
		if !ok {
			d.violation("write to unknown descriptor set %d", w.Set)
			continue
		}
		var declared *gpu.LayoutEntry
		for i, e := range d.SetLayouts[st.Layout] {
			if e.Binding == w.Binding {
				declared = &d.SetLayouts[st.Layout][i]
			}
		}
		if declared == nil {
			d.violation("write to binding %d not in layout", w.Binding)
		} else if declared.Type != w.Type {
			d.violation("write of %s to %s binding %d", w.Type, declared.Type, w.Binding)
		}
		st.Writes = append(st.Writes, w)
	}
}

// Pipelines

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if err := d.call("CreateShaderModule"); err != nil {
		return 0, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Newf("invalid shader code size %d", len(code))
	}
	h := gpu.ShaderModule(d.handle())
	d.Modules[h] = append([]byte(nil), code...)
	return h, nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	if _, ok := d.Modules[m]; !ok {
		d.violation("destroy of unknown shader module %d", m)
		return
	}
	delete(d.Modules, m)
	d.destroyed("ShaderModule", uint64(m))
}

func (d *Device) CreatePipelineLayout(sets []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	if err := d.call("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	for _, s := range sets {
		if _, ok := d.SetLayouts[s]; !ok {
			return 0, errors.Newf("pipeline layout references unknown set layout %d", s)
		}
	}
	h := gpu.PipelineLayout(d.handle())
	d.PipelineLayouts[h] = append([]gpu.DescriptorSetLayout(nil), sets...)
	return h, nil
}

func (d *Device) DestroyPipelineLayout(l gpu.PipelineLayout) {
	if _, ok := d.PipelineLayouts[l]; !ok {
		d.violation("destroy of unknown pipeline layout %d", l)
		return
	}
	delete(d.PipelineLayouts, l)
	d.destroyed("PipelineLayout", uint64(l))
}

func (d *Device) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	if err := d.call("CreateGraphicsPipeline"); err != nil {
		return 0, err
	}
	if _, ok := d.PipelineLayouts[desc.Layout]; !ok {
		return 0, errors.Newf("graphics pipeline with unknown layout %d", desc.Layout)
	}
	for _, s := range desc.Stages {
		if _, ok := d.Modules[s.Module]; !ok {
			return 0, errors.Newf("graphics pipeline with unknown module %d", s.Module)
		}
	}
	h := gpu.Pipeline(d.handle())
	cp := desc
	d.Pipelines[h] = &PipelineState{Graphics: &cp}
	return h, nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	if err := d.call("CreateComputePipeline"); err != nil {
		return 0, err
	}
	if _, ok := d.Modules[desc.Stage.Module]; !ok {
		return 0, errors.Newf("compute pipeline with unknown module %d", desc.Stage.Module)
	}
	h := gpu.Pipeline(d.handle())
	cp := desc
	d.Pipelines[h] = &PipelineState{Compute: &cp}
	return h, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	if _, ok := d.Pipelines[p]; !ok {
		d.violation("destroy of unknown pipeline %d", p)
		return
	}
	delete(d.Pipelines, p)
	d.destroyed("Pipeline", uint64(p))
}

// WaitIdle completes all outstanding work.
func (d *Device) WaitIdle() error {
	if err := d.call("WaitIdle"); err != nil {
		return err
	}
	d.WaitIdles++
	for _, f := range d.Fences {
		if f.Pending {
			f.Pending = false
			f.Signaled = true
		}
	}
	return nil
}

// Recorder

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, imageIndex uint32, clear gpu.ClearValues) {
	d.record(cb, Command{Op: "BeginRenderPass", ImageIndex: imageIndex})
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	d.record(cb, Command{Op: "EndRenderPass"})
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, point gpu.BindPoint, p gpu.Pipeline) {
	if _, ok := d.Pipelines[p]; !ok {
		d.violation("bind of unknown pipeline %d", p)
	}
	d.record(cb, Command{Op: "BindPipeline", Point: point, Pipeline: p})
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, vp gpu.Viewport) {
	d.record(cb, Command{Op: "SetViewport"})
}

func (d *Device) CmdSetScissor(cb gpu.CommandBuffer, r gpu.Rect2D) {
	d.record(cb, Command{Op: "SetScissor"})
}

func (d *Device) CmdBindVertexBuffers(cb gpu.CommandBuffer, first uint32, buffers []gpu.Buffer, offsets []uint64) {
	d.record(cb, Command{Op: "BindVertexBuffers", Buffers: append([]gpu.Buffer(nil), buffers...), Counts: [3]uint32{first}})
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, b gpu.Buffer, offset uint64) {
	d.record(cb, Command{Op: "BindIndexBuffer", Buffers: []gpu.Buffer{b}})
}

func (d *Device) CmdBindDescriptorSets(cb gpu.CommandBuffer, point gpu.BindPoint, layout gpu.PipelineLayout, sets []gpu.DescriptorSet) {
	for _, s := range sets {
		if _, ok := d.Sets[s]; !ok {
			d.violation("bind of unknown descriptor set %d", s)
		}
	}
	d.record(cb, Command{Op: "BindDescriptorSets", Point: point, Sets: append([]gpu.DescriptorSet(nil), sets...)})
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount, instanceCount uint32) {
	d.record(cb, Command{Op: "DrawIndexed", Counts: [3]uint32{indexCount, instanceCount}})
}

func (d *Device) CmdDispatch(cb gpu.CommandBuffer, x, y, z uint32) {
	d.record(cb, Command{Op: "Dispatch", Counts: [3]uint32{x, y, z}})
}

func (d *Device) CmdBufferBarrier(cb gpu.CommandBuffer, barrier gpu.BufferBarrier) {
	d.record(cb, Command{Op: "BufferBarrier", Buffers: []gpu.Buffer{barrier.Buffer}})
}

// Frames

func (d *Device) CreateSwapchain(extent gpu.Extent2D) (gpu.SwapchainInfo, error) {
	if err := d.call("CreateSwapchain"); err != nil {
		return gpu.SwapchainInfo{}, err
	}
	if extent.IsZero() {
		return gpu.SwapchainInfo{}, errors.New("swapchain with zero extent")
	}
	if d.Swapchain != nil {
		d.violation("swapchain created while another is live")
	}
	info := gpu.SwapchainInfo{
		ImageCount:  d.ImageCount,
		ColorFormat: d.ColorFormat,
		DepthFormat: d.DepthFormat,
		Extent:      extent,
	}
	d.Swapchain = &info
	d.LiveViews += int(d.ImageCount)
	d.SwapchainCreates++
	d.nextImage = 0
	return info, nil
}

func (d *Device) DestroySwapchain() {
	d.Calls = append(d.Calls, "DestroySwapchain")
	if d.Swapchain == nil {
		d.violation("destroy of missing swapchain")
		return
	}
	d.LiveViews -= int(d.Swapchain.ImageCount)
	d.Swapchain = nil
}

func (d *Device) AcquireNextImage(signal gpu.Semaphore) (uint32, gpu.PresentStatus, error) {
	if err := d.call("AcquireNextImage"); err != nil {
		return 0, gpu.PresentOK, err
	}
	if d.Swapchain == nil {
		return 0, gpu.PresentOK, errors.New("acquire without swapchain")
	}
	res := AcquireResult{}
	if len(d.AcquireResults) > 0 {
		res, d.AcquireResults = d.AcquireResults[0], d.AcquireResults[1:]
	}
	if res.Err != nil || res.Status == gpu.PresentOutOfDate {
		return 0, res.Status, res.Err
	}
	if d.Semaphores[signal] {
		d.violation("acquire signals semaphore %d that is already signaled", signal)
	}
	d.Semaphores[signal] = true
	idx := d.nextImage
	d.nextImage = (d.nextImage + 1) % d.Swapchain.ImageCount
	return idx, res.Status, nil
}

func (d *Device) Present(imageIndex uint32, wait gpu.Semaphore) (gpu.PresentStatus, error) {
	if err := d.call("Present"); err != nil {
		return gpu.PresentOK, err
	}
	if !d.Semaphores[wait] {
		d.violation("present waits on unsignaled semaphore %d", wait)
	}
	d.Semaphores[wait] = false
	d.Presents = append(d.Presents, imageIndex)
	res := PresentResult{}
	if len(d.PresentResults) > 0 {
		res, d.PresentResults = d.PresentResults[0], d.PresentResults[1:]
	}
	return res.Status, res.Err
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.call("CreateFence"); err != nil {
		return 0, err
	}
	h := gpu.Fence(d.handle())
	d.Fences[h] = &FenceState{Signaled: signaled}
	return h, nil
}

// WaitFence completes pending work on the fence. Waiting on a fence that is
// neither signaled nor submitted would block forever on a real device.
func (d *Device) WaitFence(f gpu.Fence, timeout time.Duration) error {
	if err := d.call("WaitFence"); err != nil {
		return err
	}
	st, ok := d.Fences[f]
	if !ok {
		return errors.Newf("wait on unknown fence %d", f)
	}
	switch {
	case st.Signaled:
	case st.Pending:
		st.Pending = false
		st.Signaled = true
	default:
		d.violation("wait on fence %d that was never submitted", f)
		return errors.Newf("fence %d would never signal", f)
	}
	return nil
}

func (d *Device) ResetFence(f gpu.Fence) error {
	if err := d.call("ResetFence"); err != nil {
		return err
	}
	st, ok := d.Fences[f]
	if !ok {
		return errors.Newf("reset of unknown fence %d", f)
	}
	if st.Pending {
		d.violation("reset of fence %d still in use", f)
	}
	st.Signaled = false
	return nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	if _, ok := d.Fences[f]; !ok {
		d.violation("destroy of unknown fence %d", f)
		return
	}
	delete(d.Fences, f)
	d.destroyed("Fence", uint64(f))
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.call("CreateSemaphore"); err != nil {
		return 0, err
	}
	h := gpu.Semaphore(d.handle())
	d.Semaphores[h] = false
	return h, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	if _, ok := d.Semaphores[s]; !ok {
		d.violation("destroy of unknown semaphore %d", s)
		return
	}
	delete(d.Semaphores, s)
	d.destroyed("Semaphore", uint64(s))
}

func (d *Device) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	if err := d.call("AllocateCommandBuffer"); err != nil {
		return 0, err
	}
	h := gpu.CommandBuffer(d.handle())
	d.CommandBuffers[h] = &CommandBufferState{}
	return h, nil
}

func (d *Device) FreeCommandBuffer(cb gpu.CommandBuffer) {
	if _, ok := d.CommandBuffers[cb]; !ok {
		d.violation("free of unknown command buffer %d", cb)
		return
	}
	delete(d.CommandBuffers, cb)
	d.destroyed("CommandBuffer", uint64(cb))
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	if err := d.call("ResetCommandBuffer"); err != nil {
		return err
	}
	st, ok := d.CommandBuffers[cb]
	if !ok {
		return errors.Newf("reset of unknown command buffer %d", cb)
	}
	st.Recording = false
	st.Commands = nil
	return nil
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer) error {
	if err := d.call("BeginCommandBuffer"); err != nil {
		return err
	}
	st, ok := d.CommandBuffers[cb]
	if !ok {
		return errors.Newf("begin of unknown command buffer %d", cb)
	}
	if st.Recording {
		d.violation("begin of command buffer %d already recording", cb)
	}
	st.Recording = true
	return nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	if err := d.call("EndCommandBuffer"); err != nil {
		return err
	}
	st, ok := d.CommandBuffers[cb]
	if !ok || !st.Recording {
		return errors.Newf("end of command buffer %d not recording", cb)
	}
	st.Recording = false
	return nil
}

func (d *Device) Submit(cb gpu.CommandBuffer, wait, signal gpu.Semaphore, fence gpu.Fence) error {
	if err := d.call("Submit"); err != nil {
		return err
	}
	st, ok := d.CommandBuffers[cb]
	if !ok {
		return errors.Newf("submit of unknown command buffer %d", cb)
	}
	if st.Recording {
		d.violation("submit of command buffer %d still recording", cb)
	}
	if wait != 0 {
		if !d.Semaphores[wait] {
			d.violation("submit waits on unsignaled semaphore %d", wait)
		}
		d.Semaphores[wait] = false
	}
	if signal != 0 {
		d.Semaphores[signal] = true
	}
	if fence != 0 {
		fs, ok := d.Fences[fence]
		if !ok {
			return errors.Newf("submit with unknown fence %d", fence)
		}
		if fs.Signaled || fs.Pending {
			d.violation("submit with fence %d that was not reset", fence)
		}
		fs.Pending = true
	}
	d.Submissions = append(d.Submissions, Submission{
		CommandBuffer: cb,
		Wait:          wait,
		Signal:        signal,
		Fence:         fence,
		Commands:      append([]Command(nil), st.Commands...),
	})
	return nil
}
