// Command oxy-rt opens a window and renders a raytraced analytic scene with bloom.
// Scene edits are read from stdin, one command per line.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"

	"github.com/Carmen-Shannon/oxy-rt/engine"
	"github.com/Carmen-Shannon/oxy-rt/engine/config"
	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
)

func init() {
	// GLFW and the WebGPU surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "oxy-rt.toml", "path to the TOML config file")
	initConfig := flag.Bool("init", false, "write the default config to -config and exit")
	profile := flag.Bool("profile", false, "log frame statistics once per second")
	flag.Parse()

	if *initConfig {
		if err := config.Write(*configPath, config.Default()); err != nil {
			logging.LogFatal("Writing config %s: %v", *configPath, err)
		}
		logging.LogInfo("Wrote default config to %s", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.LogFatal("Loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := engine.NewEngine(cfg,
		engine.WithScene(demoScene()),
		engine.WithProfiling(*profile),
	)
	if err != nil {
		logging.LogFatal("Starting engine: %v", err)
	}

	err = eng.Run(ctx)
	eng.Release()
	if err != nil {
		if renderer.IsFatal(err) {
			logging.LogFatal("Renderer failed: %v", err)
		}
		logging.LogError("Engine stopped: %v", err)
		os.Exit(1)
	}
}
