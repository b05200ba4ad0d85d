package pipeline

import (
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

// MeshBinding is the vertex input binding of mesh vertices.
const MeshBinding = 0

// VertexInput lays out mesh vertices at binding 0, locations 0..2, followed by
// the attribute sets in binding order with consecutive locations.
func VertexInput(attributes []*resource.AttributeSlot) ([]gpu.VertexBinding, []gpu.VertexAttribute) {
	bindings := []gpu.VertexBinding{{Binding: MeshBinding, Stride: math.Vertex3DStride, Rate: gpu.InputRateVertex}}
	attrs := []gpu.VertexAttribute{
		{Location: 0, Binding: MeshBinding, Format: gpu.FormatR32G32B32Sfloat, Offset: 0},
		{Location: 1, Binding: MeshBinding, Format: gpu.FormatR32G32B32Sfloat, Offset: 12},
		{Location: 2, Binding: MeshBinding, Format: gpu.FormatR32G32Sfloat, Offset: 24},
	}

	sorted := slices.Clone(attributes)
	slices.SortFunc(sorted, func(a, b *resource.AttributeSlot) int {
		return int(a.Binding()) - int(b.Binding())
	})
	location := uint32(len(attrs))
	for _, s := range sorted {
		bindings = append(bindings, s.BindingDescription())
		for _, f := range s.Fields() {
			attrs = append(attrs, gpu.VertexAttribute{
				Location: location,
				Binding:  s.Binding(),
				Format:   f.Format,
				Offset:   f.Offset,
			})
			location++
		}
	}
	return bindings, attrs
}
