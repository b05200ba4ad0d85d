//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed with prism.toml.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	return runTestbed()
}

// Runs the testbed as a wireframe.
func (Run) Lines() error {
	mg.Deps(Build.Shaders)
	return runTestbed("-render-mode", "lines")
}

// Runs the testbed without validation layers and with info logging.
func (Run) Release() error {
	mg.Deps(Build.Shaders)
	return runTestbed("-validation=false", "-log-level", "info")
}

func runTestbed(flags ...string) error {
	args := append([]string{"run", ".", "-config", "prism.toml"}, flags...)
	_, err := executeCmd("go", withArgs(args...), withEnv("CGO_ENABLED=1"), withStream())
	return err
}
