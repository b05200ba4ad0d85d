package math

import "github.com/go-gl/mathgl/mgl32"

// Vertex3D is the mesh vertex layout bound at vertex input binding 0.
// Position at offset 0, normal at 12, texcoord at 24. Stride 32.
type Vertex3D struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Texcoord mgl32.Vec2
}

const Vertex3DStride = 32

// Transforms can have a parent whose own transform is then taken into account.
// Fields should be changed through the setters so the local matrix is rebuilt.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	// IsDirty means Local must be recomputed before use.
	IsDirty bool
	Local   mgl32.Mat4
	Parent  *Transform
}
