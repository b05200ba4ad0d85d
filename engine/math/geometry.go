package math

import "github.com/go-gl/mathgl/mgl32"

// GeometryGenerateNormals writes a face normal to each vertex of every triangle.
// Smoothing should be done in a separate pass if desired.
func GeometryGenerateNormals(vertices []Vertex3D, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)
		normal := edge1.Cross(edge2).Normalize()

		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}

// GeometryCube builds a cube of the given edge length with four vertices per
// face so each face gets its own normal and texture coordinates.
func GeometryCube(size float32) ([]Vertex3D, []uint32) {
	h := size / 2
	faces := [6][4]mgl32.Vec3{
		{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}},     // front
		{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}, // back
		{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}, // left
		{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}},     // right
		{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}},     // top
		{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}, // bottom
	}
	uvs := [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	vertices := make([]Vertex3D, 0, 24)
	indices := make([]uint32, 0, 36)
	for f, face := range faces {
		base := uint32(f * 4)
		for c, p := range face {
			vertices = append(vertices, Vertex3D{Position: p, Texcoord: uvs[c]})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	GeometryGenerateNormals(vertices, indices)
	return vertices, indices
}
