package metadata

import (
	"strings"

	"github.com/cockroachdb/errors"
)

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
)

/** @brief How primitives are rasterized. */
type RenderMode int

const (
	RenderModeTriangles RenderMode = iota
	RenderModeLines
	RenderModePoints
)

func (m RenderMode) String() string {
	switch m {
	case RenderModeTriangles:
		return "triangles"
	case RenderModeLines:
		return "lines"
	case RenderModePoints:
		return "points"
	}
	return "unknown"
}

func ParseRenderMode(s string) (RenderMode, error) {
	switch strings.ToLower(s) {
	case "triangles", "":
		return RenderModeTriangles, nil
	case "lines":
		return RenderModeLines, nil
	case "points":
		return RenderModePoints, nil
	}
	return RenderModeTriangles, errors.Newf("unknown render mode %q", s)
}
