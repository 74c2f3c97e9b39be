package compositor

import (
	"path/filepath"
	"slices"

	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
)

// plan is the coalesced effect of one frame's events.
type plan struct {
	// resize holds the last non-zero size requested, if any
	resize *SurfaceResized
	// reloadAll is set when any reload named no paths
	reloadAll bool
	reload    []string
}

// planEvents coalesces events: resizes collapse to the last non-zero size and reload paths are merged.
func planEvents(events []Event) plan {
	var p plan
	for _, e := range events {
		switch e := e.(type) {
		case SurfaceResized:
			if e.Width == 0 || e.Height == 0 {
				continue
			}
			r := e
			p.resize = &r
		case ShaderReloadRequested:
			if len(e.Paths) == 0 {
				p.reloadAll = true
				continue
			}
			for _, path := range e.Paths {
				if !slices.Contains(p.reload, path) {
					p.reload = append(p.reload, path)
				}
			}
		}
	}
	return p
}

// reloadPrograms reloads the programs affected by p through cache and returns the paths whose programs changed.
func reloadPrograms(cache shader.Cache, p plan) []string {
	if p.reloadAll {
		return cache.ReloadAll()
	}
	var targets []string
	for _, path := range p.reload {
		for _, dep := range cache.Dependents(path) {
			if !slices.Contains(targets, dep) {
				targets = append(targets, dep)
			}
		}
	}
	var changed []string
	for _, path := range targets {
		if _, ok, _ := cache.Reload(path); ok {
			changed = append(changed, path)
		}
	}
	return changed
}

// usesAny reports whether p draws with any of the changed program paths.
func usesAny(p pass.Pass, changed []string) bool {
	for _, path := range p.Programs() {
		if slices.Contains(changed, filepath.Clean(path)) {
			return true
		}
	}
	return false
}
