package metadata

import (
	"github.com/spaghettifunk/prism/engine/math"
)

/**
 * @brief The geometry handed to a renderer. Vertices are bound at vertex
 * input binding 0; per-instance attribute sets use InstanceCount.
 */
type Mesh struct {
	Name          string
	Vertices      []math.Vertex3D
	Indices       []uint32
	InstanceCount uint32
}

// Instances never reports fewer than one instance.
func (m *Mesh) Instances() uint32 {
	if m.InstanceCount == 0 {
		return 1
	}
	return m.InstanceCount
}
