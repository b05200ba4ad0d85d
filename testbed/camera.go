package testbed

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/math"
)

// pitchLimit is 89 degrees, short of gimbal lock.
const pitchLimit = float32(1.55334306)

// Camera is a free-look camera. The view matrix is rebuilt lazily after the
// position or rotation changed.
type Camera struct {
	// Position should be changed through the setters so the view is rebuilt.
	Position mgl32.Vec3
	// EulerRotation is pitch, yaw and roll in radians.
	EulerRotation mgl32.Vec3

	isDirty bool
	view    mgl32.Mat4
}

func NewCamera() *Camera {
	c := &Camera{}
	c.Reset()
	return c
}

func (c *Camera) Reset() {
	c.EulerRotation = mgl32.Vec3{}
	c.Position = mgl32.Vec3{}
	c.isDirty = false
	c.view = mgl32.Ident4()
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *Camera) SetEulerRotation(rotation mgl32.Vec3) {
	c.EulerRotation = rotation
	c.isDirty = true
}

func (c *Camera) View() mgl32.Mat4 {
	if c.isDirty {
		r := c.EulerRotation
		rotation := mgl32.HomogRotate3DX(r.X()).Mul4(mgl32.HomogRotate3DY(r.Y())).Mul4(mgl32.HomogRotate3DZ(r.Z()))
		translation := mgl32.Translate3D(c.Position.X(), c.Position.Y(), c.Position.Z())
		c.view = translation.Mul4(rotation).Inv()
		c.isDirty = false
	}
	return c.view
}

// Forward is the direction the camera looks at, -Z in view space.
func (c *Camera) Forward() mgl32.Vec3 {
	v := c.View()
	return mgl32.Vec3{-v[2], -v[6], -v[10]}.Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	v := c.View()
	return mgl32.Vec3{v[0], v[4], v[8]}.Normalize()
}

func (c *Camera) MoveForward(amount float32) {
	c.Position = c.Position.Add(c.Forward().Mul(amount))
	c.isDirty = true
}

func (c *Camera) MoveRight(amount float32) {
	c.Position = c.Position.Add(c.Right().Mul(amount))
	c.isDirty = true
}

func (c *Camera) MoveUp(amount float32) {
	c.Position = c.Position.Add(mgl32.Vec3{0, amount, 0})
	c.isDirty = true
}

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation[1] += amount
	c.isDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation[0] = math.Clamp(c.EulerRotation[0]+amount, -pitchLimit, pitchLimit)
	c.isDirty = true
}
