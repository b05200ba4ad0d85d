package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 1, 3))
	assert.Equal(t, uint32(1), Clamp(uint32(0), 1, 3))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}

func TestTransformLocalRecomputedWhenDirty(t *testing.T) {
	tr := TransformFromPosition(mgl32.Vec3{1, 2, 3})
	m := tr.GetLocal()
	assert.False(t, tr.IsDirty)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, m.Col(3).Vec3())

	tr.Translate(mgl32.Vec3{1, 0, 0})
	assert.True(t, tr.IsDirty)
	assert.Equal(t, mgl32.Vec3{2, 2, 3}, tr.GetLocal().Col(3).Vec3())
}

func TestTransformWorldChainsParent(t *testing.T) {
	parent := TransformFromPosition(mgl32.Vec3{10, 0, 0})
	child := TransformFromPosition(mgl32.Vec3{0, 5, 0})
	child.Parent = parent
	assert.Equal(t, mgl32.Vec3{10, 5, 0}, child.GetWorld().Col(3).Vec3())

	var none *Transform
	assert.Equal(t, mgl32.Ident4(), none.GetWorld())
}

func TestGeometryCube(t *testing.T) {
	vertices, indices := GeometryCube(2)
	assert.Len(t, vertices, 24)
	assert.Len(t, indices, 36)
	// Front face points at +Z.
	assert.InDelta(t, 1.0, vertices[0].Normal.Z(), 1e-6)
	for _, i := range indices {
		assert.Less(t, i, uint32(len(vertices)))
	}
}
