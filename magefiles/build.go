//go:build mage

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders to SPIR-V next to its source.
func (Build) Shaders() error {
	sources, err := shaderSources(shaderDir)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if !outdated(src, src+".spv") {
			continue
		}
		rel, err := filepath.Rel(shaderDir, src)
		if err != nil {
			return err
		}
		if _, err := executeCmd("glslc", withArgs(rel, "-o", rel+".spv"), withDir(shaderDir), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the testbed binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "prism"), "."), withStream())
	return err
}

// Runs the unit tests. None of them need a GPU.
func (Build) Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

func shaderSources(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".vert", ".frag", ".comp":
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// outdated reports whether dst is missing or older than src.
func outdated(src, dst string) bool {
	s, err := os.Stat(src)
	if err != nil {
		return true
	}
	d, err := os.Stat(dst)
	if err != nil {
		return true
	}
	return s.ModTime().After(d.ModTime())
}
