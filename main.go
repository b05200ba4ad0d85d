/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/testbed"
)

func main() {
	configPath := flag.String("config", "prism.toml", "path to the engine configuration")
	renderMode := flag.String("render-mode", "", "override renderer.render_mode (triangles, lines, points)")
	validation := flag.Bool("validation", false, "override renderer.validation")
	logLevel := flag.String("log-level", "", "override log.level")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		if !os.IsNotExist(errors.UnwrapAll(err)) {
			core.LogFatal("loading config: %v", err)
		}
		core.LogWarn("%s not found, using defaults", *configPath)
		cfg = core.DefaultConfig()
	}

	// Flags only win when given on the command line.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "render-mode":
			cfg.Renderer.RenderMode = strings.ToLower(*renderMode)
		case "validation":
			cfg.Renderer.Validation = *validation
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})

	tb := testbed.NewTestGame()
	e, err := engine.New(cfg, tb.Game)
	if err != nil {
		core.LogFatal("creating engine: %v", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		e.Quit()
	}()

	code := 0
	if err := e.Initialize(); err != nil {
		core.LogError("initializing engine: %+v", err)
		code = 1
	} else if err := e.Run(); err != nil {
		core.LogError("engine stopped: %+v", err)
		code = 1
	}
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %v", err)
		code = 1
	}
	os.Exit(code)
}
