package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
)

type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
	name   string
	mapped bool
}

type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []uint64
}

// objects maps gpu handles onto Vulkan objects. Every gpu handle value is a
// registry id, so zero is never handed out.
type objects struct {
	buffers         *core.Registry[buffer]
	images          *core.Registry[image]
	samplers        *core.Registry[vk.Sampler]
	setLayouts      *core.Registry[vk.DescriptorSetLayout]
	pools           *core.Registry[descriptorPool]
	sets            *core.Registry[vk.DescriptorSet]
	modules         *core.Registry[vk.ShaderModule]
	pipelineLayouts *core.Registry[vk.PipelineLayout]
	pipelines       *core.Registry[vk.Pipeline]
	commandBuffers  *core.Registry[commandBuffer]
	fences          *core.Registry[fence]
	semaphores      *core.Registry[vk.Semaphore]
}

func newObjects() objects {
	return objects{
		buffers:         core.NewRegistry[buffer](),
		images:          core.NewRegistry[image](),
		samplers:        core.NewRegistry[vk.Sampler](),
		setLayouts:      core.NewRegistry[vk.DescriptorSetLayout](),
		pools:           core.NewRegistry[descriptorPool](),
		sets:            core.NewRegistry[vk.DescriptorSet](),
		modules:         core.NewRegistry[vk.ShaderModule](),
		pipelineLayouts: core.NewRegistry[vk.PipelineLayout](),
		pipelines:       core.NewRegistry[vk.Pipeline](),
		commandBuffers:  core.NewRegistry[commandBuffer](),
		fences:          core.NewRegistry[fence](),
		semaphores:      core.NewRegistry[vk.Semaphore](),
	}
}

// live counts objects that were created through the gpu interface and not
// destroyed yet.
func (o *objects) live() map[string]int {
	return map[string]int{
		"buffer":          o.buffers.Len(),
		"image":           o.images.Len(),
		"sampler":         o.samplers.Len(),
		"set layout":      o.setLayouts.Len(),
		"descriptor pool": o.pools.Len(),
		"pipeline layout": o.pipelineLayouts.Len(),
		"pipeline":        o.pipelines.Len(),
		"shader module":   o.modules.Len(),
		"command buffer":  o.commandBuffers.Len(),
		"fence":           o.fences.Len(),
		"semaphore":       o.semaphores.Len(),
	}
}

// lookup panics with a contract violation on unknown or released handles.
func lookup[T any](r *core.Registry[T], id uint64, kind string) *T {
	v, ok := r.Get(id)
	core.Assert(ok, "unknown %s handle %d", kind, id)
	return v
}

func (b *Backend) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(b.device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && memoryProperties.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, errors.Newf("no memory type matches filter %#x with flags %#x", typeFilter, propertyFlags)
}
