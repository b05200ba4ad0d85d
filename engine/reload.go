package engine

import (
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

// ShaderLoader reads compiled SPIR-V from disk.
type ShaderLoader interface {
	LoadShader(path, entry string) (metadata.ShaderSource, error)
}

// applyAssetChange points params at the new contents of path. Image slots are
// redeclared so the next update decodes the file again; shader stages are
// reloaded in place. It reports whether params changed. A shader that fails
// to load leaves the previous stage untouched.
func applyAssetChange(params *resource.RenderParams, path string, loader ShaderLoader) (bool, error) {
	changed := false
	for _, img := range params.ImagesAt(path) {
		params.UpdateUniformImage(img.Binding(), path, img.Stages()).Linear(img.IsLinear())
		changed = true
	}
	if !params.ReferencesShader(path) {
		return changed, nil
	}

	shaders := params.Shaders()
	if shaders.Vertex.Path == path || shaders.Fragment.Path == path {
		if shaders.Vertex.Path == path {
			src, err := loader.LoadShader(path, shaders.Vertex.Entry)
			if err != nil {
				return changed, err
			}
			shaders.Vertex = src
		}
		if shaders.Fragment.Path == path {
			src, err := loader.LoadShader(path, shaders.Fragment.Entry)
			if err != nil {
				return changed, err
			}
			shaders.Fragment = src
		}
		params.SetShaders(shaders)
		changed = true
	}

	if c := params.Compute(); c != nil && c.Source.Path == path {
		src, err := loader.LoadShader(path, c.Source.Entry)
		if err != nil {
			return changed, err
		}
		params.SetCompute(src, c.Groups[0], c.Groups[1], c.Groups[2])
		changed = true
	}
	return changed, nil
}
