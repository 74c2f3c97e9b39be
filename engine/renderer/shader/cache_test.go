package shader

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const testFragment = `#include "common.wgsl"

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return tint(uv);
}
`

// acceptAll accepts every source so tests do not depend on naga's feature coverage.
var acceptAll = CompilerFunc(func(string, string) error { return nil })

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadMissingReturnsFallback(t *testing.T) {
	c := NewCache(WithRoot(t.TempDir()), WithCompiler(acceptAll))

	p := c.Load("does/not/exist.wgsl")
	if !p.IsFallback() {
		t.Fatal("Load() of a missing path should return the fallback program")
	}
	if p.Identity() != Fallback().Identity() || p.Identity() != FallbackIdentity {
		t.Errorf("Identity() = %q, want %q", p.Identity(), FallbackIdentity)
	}
	if p != Fallback() {
		t.Error("fallback program should be a single shared instance")
	}
	if p.EntryPoint(StageFragment) != "fs_main" {
		t.Errorf("fallback fragment entry point = %q", p.EntryPoint(StageFragment))
	}
}

func TestLoadResolvesNestedIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"post/tint.wgsl":          testFragment,
		"post/common.wgsl":        "#include <include/color.wgsl>\nfn tint(uv: vec2<f32>) -> vec4<f32> { return color(uv); }",
		"post/include/color.wgsl": "fn color(uv: vec2<f32>) -> vec4<f32> { return vec4<f32>(uv, 0.0, 1.0); }",
	})
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))

	p := c.Load("post/tint.wgsl")
	if p.IsFallback() {
		t.Fatal("Load() returned the fallback program")
	}
	src := p.Source()
	if strings.Contains(src, "#include") {
		t.Errorf("Source() still contains include directives:\n%s", src)
	}
	if strings.Index(src, "fn color") > strings.Index(src, "fn tint") || strings.Index(src, "fn tint") > strings.Index(src, "fn fs_main") {
		t.Errorf("includes expanded out of order:\n%s", src)
	}
	wantDeps := []string{filepath.Join("post", "common.wgsl"), filepath.Join("post", "include", "color.wgsl")}
	if !slices.Equal(p.Dependencies(), wantDeps) {
		t.Errorf("Dependencies() = %v, want %v", p.Dependencies(), wantDeps)
	}
	if p.Name() != "tint" {
		t.Errorf("Name() = %q, want tint", p.Name())
	}
	if c.Load("post/tint.wgsl") != p {
		t.Error("second Load() should return the cached program")
	}
}

func TestIncludeOnce(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.wgsl":   "#include \"a.wgsl\"\n#include \"b.wgsl\"\n",
		"a.wgsl":      "#include \"shared.wgsl\"\n",
		"b.wgsl":      "#include \"shared.wgsl\"\n",
		"shared.wgsl": "struct Shared { x: f32, }",
	})
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))

	src := c.Load("main.wgsl").Source()
	if n := strings.Count(src, "struct Shared"); n != 1 {
		t.Errorf("shared include expanded %d times, want 1", n)
	}
}

func TestIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.wgsl": "#include \"b.wgsl\"\n",
		"b.wgsl": "#include \"a.wgsl\"\n",
	})

	_, _, err := newIncludeResolver(func(p string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, p))
	}).resolve("a.wgsl")

	var cycle *IncludeCycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("resolve() error = %v, want *IncludeCycleError", err)
	}
	if !slices.Equal(cycle.Chain, []string{"a.wgsl", "b.wgsl", "a.wgsl"}) {
		t.Errorf("Chain = %v", cycle.Chain)
	}

	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))
	if !c.Load("a.wgsl").IsFallback() {
		t.Error("a program with an include cycle should load as the fallback")
	}
}

func TestMissingIncludeFallsBack(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"main.wgsl": "#include \"missing.wgsl\"\n"})
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))

	if !c.Load("main.wgsl").IsFallback() {
		t.Error("a missing include should load as the fallback")
	}
}

func TestBuiltinIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"raytrace.wgsl": `#include <oxy/camera.wgsl>
#include <oxy/objects.wgsl>

@group(0) @binding(0) var<uniform> camera: Camera;
@group(1) @binding(0) var<uniform> objects: Objects;
`,
	})
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))
	p := c.Load("raytrace.wgsl")

	for name, want := range map[string]uint64{
		"Camera":   304,
		"Material": 64,
		"Sphere":   80,
		"Plane":    80,
		"Box":      96,
		"Objects":  8208,
	} {
		if got, ok := p.StructSize(name); !ok || got != want {
			t.Errorf("StructSize(%s) = %d, %v; want %d", name, got, ok, want)
		}
	}
	if len(p.Dependencies()) != 0 {
		t.Errorf("builtin includes should not be file dependencies: %v", p.Dependencies())
	}
}

func TestCompileFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"bad.wgsl": "not wgsl"})
	reject := CompilerFunc(func(name, _ string) error { return errors.New("syntax error in " + name) })
	c := NewCache(WithRoot(dir), WithCompiler(reject))

	if !c.Load("bad.wgsl").IsFallback() {
		t.Error("a compile failure should load as the fallback")
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"post/tint.wgsl":   testFragment,
		"post/common.wgsl": "fn tint(uv: vec2<f32>) -> vec4<f32> { return vec4<f32>(uv, 0.0, 1.0); }",
	})
	var failNext bool
	compiler := CompilerFunc(func(string, string) error {
		if failNext {
			return errors.New("compile failed")
		}
		return nil
	})
	c := NewCache(WithRoot(dir), WithCompiler(compiler))
	first := c.Load("post/tint.wgsl")

	p, changed, err := c.Reload("post/tint.wgsl")
	if err != nil || changed {
		t.Errorf("Reload() of unchanged source = changed %v, err %v; want false, nil", changed, err)
	}
	if p.Identity() != first.Identity() {
		t.Error("unchanged source should keep its identity")
	}

	writeFiles(t, dir, map[string]string{"post/common.wgsl": "fn tint(uv: vec2<f32>) -> vec4<f32> { return vec4<f32>(1.0); }"})
	p, changed, err = c.Reload("post/tint.wgsl")
	if err != nil || !changed {
		t.Fatalf("Reload() after include edit = changed %v, err %v; want true, nil", changed, err)
	}
	second := p

	failNext = true
	writeFiles(t, dir, map[string]string{"post/common.wgsl": "broken"})
	p, changed, err = c.Reload("post/tint.wgsl")
	if err == nil || changed {
		t.Errorf("Reload() of broken source = changed %v, err %v; want false and an error", changed, err)
	}
	if p != second {
		t.Error("a failed reload should keep the previous program")
	}
	if got, _ := c.Get("post/tint.wgsl"); got != second {
		t.Error("Get() after a failed reload should return the previous program")
	}
}

func TestReloadFallbackRecovers(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))
	if !c.Load("late.wgsl").IsFallback() {
		t.Fatal("missing file should load as the fallback")
	}

	writeFiles(t, dir, map[string]string{"late.wgsl": "@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }"})
	if changed := c.ReloadAll(); !slices.Equal(changed, []string{"late.wgsl"}) {
		t.Errorf("ReloadAll() = %v, want [late.wgsl]", changed)
	}
	if p, _ := c.Get("late.wgsl"); p.IsFallback() {
		t.Error("program should no longer be the fallback")
	}
}

func TestReloadUnloadedBehavesLikeLoad(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.wgsl": "fn a() {}"})
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))

	p, changed, err := c.Reload("a.wgsl")
	if err != nil || !changed || p.IsFallback() {
		t.Errorf("Reload() of unloaded path = %v, %v, %v", p.IsFallback(), changed, err)
	}
	if p, changed, err := c.Reload("missing.wgsl"); err != nil || changed || !p.IsFallback() {
		t.Errorf("Reload() of unloaded missing path = %v, %v, %v", p.IsFallback(), changed, err)
	}
}

func TestDependentsAndFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.wgsl":              "#include \"include/common.wgsl\"\n",
		"b.wgsl":              "#include \"include/other.wgsl\"\n",
		"include/other.wgsl":  "#include \"common.wgsl\"\n",
		"include/common.wgsl": "fn common() {}",
		"c.wgsl":              "fn c() {}",
	})
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))
	c.Load("a.wgsl")
	c.Load("b.wgsl")
	c.Load("c.wgsl")

	common := filepath.Join("include", "common.wgsl")
	if got := c.Dependents(common); !slices.Equal(got, []string{"a.wgsl", "b.wgsl"}) {
		t.Errorf("Dependents(common) = %v", got)
	}
	if got := c.Dependents(filepath.Join(dir, common)); !slices.Equal(got, []string{"a.wgsl", "b.wgsl"}) {
		t.Errorf("Dependents(absolute common) = %v", got)
	}
	if got := c.Dependents("c.wgsl"); !slices.Equal(got, []string{"c.wgsl"}) {
		t.Errorf("Dependents(c) = %v", got)
	}
	if got := c.Dependents("unrelated.wgsl"); len(got) != 0 {
		t.Errorf("Dependents(unrelated) = %v", got)
	}

	files := c.Files()
	if len(files) != 5 {
		t.Errorf("Files() = %v, want 5 files", files)
	}
	for _, f := range files {
		if !filepath.IsAbs(f) {
			t.Errorf("Files() entry %q is not absolute", f)
		}
	}
}

func TestFailedIncludeStaysTracked(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.wgsl":      testFragment,
		"common.wgsl": "broken",
	})
	compiler := CompilerFunc(func(_, source string) error {
		if strings.Contains(source, "broken") {
			return errors.New("syntax error")
		}
		return nil
	})
	c := NewCache(WithRoot(dir), WithCompiler(compiler))
	if !c.Load("a.wgsl").IsFallback() {
		t.Fatal("a broken include should load as the fallback")
	}
	if got := c.Dependents("common.wgsl"); !slices.Equal(got, []string{"a.wgsl"}) {
		t.Errorf("Dependents(common) after a failed load = %v, want [a.wgsl]", got)
	}
	if files := c.Files(); !slices.Contains(files, filepath.Join(dir, "common.wgsl")) {
		t.Errorf("Files() = %v, want the broken include", files)
	}

	writeFiles(t, dir, map[string]string{"common.wgsl": "fn tint(uv: vec2<f32>) -> vec4<f32> { return vec4<f32>(uv, 0.0, 1.0); }"})
	p, changed, err := c.Reload("a.wgsl")
	if err != nil || !changed || p.IsFallback() {
		t.Fatalf("Reload() after fixing the include = fallback %v, changed %v, err %v", p.IsFallback(), changed, err)
	}
	if got := c.Dependents("common.wgsl"); !slices.Equal(got, []string{"a.wgsl"}) {
		t.Errorf("Dependents(common) after recovering = %v", got)
	}
}

func TestMissingIncludeStaysTracked(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"main.wgsl": "#include \"later.wgsl\"\n"})
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))
	c.Load("main.wgsl")

	if got := c.Dependents("later.wgsl"); !slices.Equal(got, []string{"main.wgsl"}) {
		t.Errorf("Dependents(later) = %v, want [main.wgsl]", got)
	}

	writeFiles(t, dir, map[string]string{"main.wgsl": "fn main() {}"})
	if _, _, err := c.Reload("main.wgsl"); err != nil {
		t.Fatal(err)
	}
	if got := c.Dependents("later.wgsl"); len(got) != 0 {
		t.Errorf("Dependents(later) after the include was removed = %v", got)
	}
}
