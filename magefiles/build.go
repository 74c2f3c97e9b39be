//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Binary validates the shaders and builds bin/oxy-rt.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "oxy-rt"), "./cmd/oxy-rt"), withStream())
	return err
}

// Shaders resolves includes and validates every program the compositor loads with naga.
func (Build) Shaders() error {
	cache := shader.NewCache(shader.WithRoot(shaderDir))
	bloom := pass.DefaultBloomPrograms()
	programs := []string{"raytrace.wgsl", bloom.Downsample, bloom.UpsampleFirst, bloom.Upsample, bloom.Merge, "final.wgsl"}

	var failed []string
	for _, path := range programs {
		p := cache.Load(path)
		if p.IsFallback() {
			failed = append(failed, path)
			continue
		}
		fmt.Printf("ok %s (%d bind groups, %d files)\n", path, len(p.BindGroupLayouts()), len(p.Dependencies())+1)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d shader programs failed validation: %v", len(failed), failed)
	}
	return nil
}
