package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func (b *Backend) CreateDescriptorSetLayout(entries []gpu.LayoutEntry) (gpu.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(entries))
	for i, e := range entries {
		count := e.Count
		if count == 0 {
			count = 1
		}
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         e.Binding,
			DescriptorType:  vkDescriptorType(e.Type),
			DescriptorCount: count,
			StageFlags:      vkStages(e.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if err := check(vk.CreateDescriptorSetLayout(b.device.LogicalDevice, &layoutInfo, b.allocator, &layout), "vkCreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(b.objects.setLayouts.Acquire(&layout)), nil
}

func (b *Backend) DestroyDescriptorSetLayout(h gpu.DescriptorSetLayout) {
	layout, ok := b.objects.setLayouts.Release(uint64(h))
	core.Assert(ok, "unknown descriptor set layout handle %d", h)
	vk.DestroyDescriptorSetLayout(b.device.LogicalDevice, *layout, b.allocator)
}

func (b *Backend) CreateDescriptorPool(sizes []gpu.PoolSize, maxSets uint32) (gpu.DescriptorPool, error) {
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            vkDescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(b.device.LogicalDevice, &poolInfo, b.allocator, &pool), "vkCreateDescriptorPool"); err != nil {
		return 0, err
	}
	return gpu.DescriptorPool(b.objects.pools.Acquire(&descriptorPool{handle: pool})), nil
}

// DestroyDescriptorPool frees every set allocated from the pool as well.
func (b *Backend) DestroyDescriptorPool(h gpu.DescriptorPool) {
	pool, ok := b.objects.pools.Release(uint64(h))
	core.Assert(ok, "unknown descriptor pool handle %d", h)
	for _, id := range pool.sets {
		b.objects.sets.Release(id)
	}
	vk.DestroyDescriptorPool(b.device.LogicalDevice, pool.handle, b.allocator)
}

func (b *Backend) AllocateDescriptorSets(h gpu.DescriptorPool, layout gpu.DescriptorSetLayout, count uint32) ([]gpu.DescriptorSet, error) {
	pool := lookup(b.objects.pools, uint64(h), "descriptor pool")
	l := *lookup(b.objects.setLayouts, uint64(layout), "descriptor set layout")

	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = l
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.handle,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, count)
	if err := check(vk.AllocateDescriptorSets(b.device.LogicalDevice, &allocInfo, &sets[0]), "vkAllocateDescriptorSets"); err != nil {
		return nil, err
	}

	out := make([]gpu.DescriptorSet, count)
	for i := range sets {
		id := b.objects.sets.Acquire(&sets[i])
		pool.sets = append(pool.sets, id)
		out[i] = gpu.DescriptorSet(id)
	}
	return out, nil
}

func (b *Backend) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	descriptorWrites := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		dw := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          *lookup(b.objects.sets, uint64(w.Set), "descriptor set"),
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorType:  vkDescriptorType(w.Type),
			DescriptorCount: 1,
		}
		switch w.Type {
		case gpu.DescriptorTypeCombinedImageSampler:
			img := lookup(b.objects.images, uint64(w.Image), "image")
			dw.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     *lookup(b.objects.samplers, uint64(w.Sampler), "sampler"),
				ImageView:   img.view,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		default:
			buf := lookup(b.objects.buffers, uint64(w.Buffer), "buffer")
			rng := w.Range
			if rng == 0 {
				rng = buf.size - w.Offset
			}
			dw.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buf.handle,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(rng),
			}}
		}
		descriptorWrites[i] = dw
	}
	vk.UpdateDescriptorSets(b.device.LogicalDevice, uint32(len(descriptorWrites)), descriptorWrites, 0, nil)
}
