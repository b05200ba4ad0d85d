package gputest

import "github.com/spaghettifunk/prism/engine/renderer/gpu"

// Surface is a scripted window. FramebufferExtent reports the current entry of
// Extents and WaitEvents advances to the next one. The last entry repeats.
type Surface struct {
	Extents   []gpu.Extent2D
	idx       int
	resized   bool
	WaitCalls int
}

func NewSurface(width, height uint32) *Surface {
	return &Surface{Extents: []gpu.Extent2D{{Width: width, Height: height}}}
}

// Resize scripts the extents seen from now on and raises the resize flag.
func (s *Surface) Resize(extents ...gpu.Extent2D) {
	s.Extents = extents
	s.idx = 0
	s.resized = true
}

func (s *Surface) FramebufferExtent() gpu.Extent2D {
	return s.Extents[s.idx]
}

func (s *Surface) Resized() bool {
	return s.resized
}

func (s *Surface) ResetResized() {
	s.resized = false
}

func (s *Surface) WaitEvents() {
	s.WaitCalls++
	if s.idx < len(s.Extents)-1 {
		s.idx++
	}
}
