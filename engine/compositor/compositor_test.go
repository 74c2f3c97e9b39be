package compositor

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/backendtest"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-rt/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

const shaderRoot = "../../assets/shaders"

var acceptAll = shader.CompilerFunc(func(name, source string) error { return nil })

func newTestCompositor(t *testing.T, root string, w, h uint32, options ...CompositorBuilderOption) (Compositor, *backendtest.Recorder) {
	t.Helper()
	rec := backendtest.NewRecorder(w, h)
	cache := shader.NewCache(shader.WithRoot(root), shader.WithCompiler(acceptAll))
	c := NewCompositor(rec, append([]CompositorBuilderOption{WithShaderCache(cache)}, options...)...)
	if err := c.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(c.Release)
	return c, rec
}

// copyShaders copies the shipped shaders into a temporary root the test may edit.
func copyShaders(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	entries, err := os.ReadDir(shaderRoot)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(shaderRoot, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, e.Name()), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString("\n" + line + "\n"); err != nil {
		t.Fatal(err)
	}
}

// indexOf returns the index of the first log line starting with prefix, failing the test if there is none.
func indexOf(t *testing.T, log []string, prefix string) int {
	t.Helper()
	i := slices.IndexFunc(log, func(line string) bool { return strings.HasPrefix(line, prefix) })
	if i < 0 {
		t.Fatalf("log has no line starting with %q", prefix)
	}
	return i
}

func lastIndexOf(log []string, prefix string) int {
	for i := len(log) - 1; i >= 0; i-- {
		if strings.HasPrefix(log[i], prefix) {
			return i
		}
	}
	return -1
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue()
	q.Push(SurfaceResized{Width: 1, Height: 2})
	q.Push(ShaderReloadRequested{})
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	got := q.Drain()
	if len(got) != 2 || got[0] != (SurfaceResized{Width: 1, Height: 2}) {
		t.Errorf("Drain() = %v", got)
	}
	if q.Len() != 0 || len(q.Drain()) != 0 {
		t.Error("Drain() should clear the queue")
	}
}

func TestPlanEvents(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   plan
	}{
		{
			name:   "resizes coalesce to the last non-zero size",
			events: []Event{SurfaceResized{800, 600}, SurfaceResized{1024, 768}, SurfaceResized{0, 0}},
			want:   plan{resize: &SurfaceResized{1024, 768}},
		},
		{
			name:   "zero sizes only",
			events: []Event{SurfaceResized{0, 720}},
			want:   plan{},
		},
		{
			name: "reload paths merge",
			events: []Event{
				ShaderReloadRequested{Paths: []string{"a.wgsl", "b.wgsl"}},
				ShaderReloadRequested{Paths: []string{"b.wgsl", "c.wgsl"}},
			},
			want: plan{reload: []string{"a.wgsl", "b.wgsl", "c.wgsl"}},
		},
		{
			name:   "empty reload means all",
			events: []Event{ShaderReloadRequested{Paths: []string{"a.wgsl"}}, ShaderReloadRequested{}},
			want:   plan{reloadAll: true, reload: []string{"a.wgsl"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := planEvents(tt.events); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("planEvents() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 800, 600)
	if c.State() != StateReady {
		t.Errorf("State() = %v, want ready", c.State())
	}
	names := make([]string, 0, 3)
	for _, p := range c.Passes() {
		names = append(names, p.Name())
	}
	if !reflect.DeepEqual(names, []string{"Raytrace", "Bloom", "Final"}) {
		t.Errorf("Passes() = %v", names)
	}
	if got := rec.Live("pipeline"); len(got) != 6 {
		t.Errorf("live pipelines = %v, want raytrace, four bloom stages and final", got)
	}
	if err := c.Init(); err == nil {
		t.Error("second Init() should fail")
	}
}

func TestFrameRecordsPassesInOrder(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 64, 64)
	rec.Reset()

	if err := c.Frame(); err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	log := rec.Log()
	if got := rec.Filter("write buffer"); !reflect.DeepEqual(got, []string{
		"write buffer: Camera Uniform offset=0 len=304",
		"write buffer: Objects Uniform offset=0 len=8208",
	}) {
		t.Errorf("uploads = %v", got)
	}
	upload := indexOf(t, log, "write buffer: Objects Uniform")
	acquire := indexOf(t, log, "acquire")
	raytrace := indexOf(t, log, "begin pass: Raytrace ->")
	bloom := indexOf(t, log, "begin pass: Bloom Downsample 0")
	merge := indexOf(t, log, "begin pass: Bloom Merge")
	final := indexOf(t, log, "begin pass: Final -> Surface View")
	submit := indexOf(t, log, "submit")
	present := indexOf(t, log, "present")
	if !(upload < acquire && acquire < raytrace && raytrace < bloom && bloom < merge && merge < final && final < submit && submit < present) {
		t.Errorf("frame out of order:\n%s", strings.Join(log, "\n"))
	}
}

func TestResizeScenario(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 800, 600)
	rec.Reset()

	c.Resize(1600, 1200)
	if err := c.Frame(); err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	log := rec.Log()

	configure := indexOf(t, log, "configure surface 1600x1200")
	raytrace := indexOf(t, log, "create texture: Raytrace Color 1600x1200 mips=1")
	bloom := indexOf(t, log, "create texture: Bloom Downsample 1600x1200 mips=10")
	final := indexOf(t, log, "create pipeline: Final")
	acquire := indexOf(t, log, "acquire")
	if !(configure < raytrace && raytrace < bloom && bloom < final && final < acquire) {
		t.Errorf("rebuild out of order: configure=%d raytrace=%d bloom=%d final=%d acquire=%d", configure, raytrace, bloom, final, acquire)
	}

	if lastIndexOf(log, "create view: Bloom Output View") > indexOf(t, log, "create bind group: Final Group 1") {
		t.Error("final pass bound before the new bloom output existed")
	}
	if got := rec.Filter("create buffer: Bloom Mip Params"); len(got) != 10 {
		t.Errorf("mip params buffers = %d, want 10", len(got))
	}
	// raytrace, 10 downsamples, upsample first, 9 upsamples, merge, final
	if got := rec.Filter("begin pass"); len(got) != 23 {
		t.Errorf("render passes = %d, want 23", len(got))
	}
	if w, h := c.Size(); w != 1600 || h != 1200 {
		t.Errorf("Size() = %dx%d", w, h)
	}
	if got := c.Camera().Aspect(); got != float32(1600)/1200 {
		t.Errorf("Aspect() = %v, want 4/3", got)
	}
}

// outputSize returns the size of a pass's output texture.
func outputSize(t *testing.T, p pass.Pass) (uint32, uint32) {
	t.Helper()
	out := p.Output()
	if !out.Valid() {
		t.Fatalf("pass %s has no output", p.Name())
	}
	return out.Texture.Width(), out.Texture.Height()
}

func TestFailedResizeIsDeferred(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 800, 600)
	live := len(rec.Live(""))
	gens := make([]uint64, 0, 3)
	for _, p := range c.Passes() {
		gens = append(gens, p.Generation())
	}

	rec.FailPipeline("Bloom Downsample", true)
	c.Resize(1600, 1200)
	if err := c.Frame(); err == nil {
		t.Fatal("Frame() should fail while bloom cannot be built")
	}
	if w, h := c.Size(); w != 800 || h != 600 {
		t.Errorf("Size() = %dx%d after a failed resize, want 800x600", w, h)
	}
	if w, h := rec.SurfaceSize(); w != 800 || h != 600 {
		t.Errorf("surface = %dx%d after a failed resize, want 800x600", w, h)
	}
	for i, p := range c.Passes() {
		if p.Generation() != gens[i] || p.Stale() {
			t.Errorf("pass %s changed by a failed resize", p.Name())
		}
	}
	if w, h := outputSize(t, c.Passes()[0]); w != 800 || h != 600 {
		t.Errorf("raytrace output = %dx%d, want 800x600", w, h)
	}
	if got := len(rec.Live("")); got != live {
		t.Errorf("live resources = %d after a failed resize, want %d", got, live)
	}

	rec.FailPipeline("Bloom Downsample", false)
	rec.Reset()
	if err := c.Frame(); err != nil {
		t.Fatalf("Frame() after the failure cleared: %v", err)
	}
	if w, h := c.Size(); w != 1600 || h != 1200 {
		t.Errorf("Size() = %dx%d, want the deferred 1600x1200", w, h)
	}
	for _, p := range c.Passes()[:2] {
		if w, h := outputSize(t, p); w != 1600 || h != 1200 {
			t.Errorf("pass %s output = %dx%d, want 1600x1200", p.Name(), w, h)
		}
	}
	if got := rec.Filter("create texture: Bloom Downsample 1600x1200 mips=10"); len(got) != 1 {
		t.Errorf("bloom downsample chains = %v, want one with 10 levels", got)
	}
	if got := rec.Filter("begin pass"); len(got) != 23 {
		t.Errorf("render passes = %d, want 23", len(got))
	}
}

func TestSkippedFrameKeepsAccumulation(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 32, 32)
	for range 3 {
		if err := c.Frame(); err != nil {
			t.Fatal(err)
		}
	}
	before, vp := c.Camera().FrameIndex(), c.Camera().PreviousViewProjection()

	rec.FailAcquire(renderer.ErrSurfaceTimeout)
	if err := c.Frame(); !errors.Is(err, ErrFrameSkipped) {
		t.Fatalf("Frame() error = %v, want ErrFrameSkipped", err)
	}
	if got := c.Camera().FrameIndex(); got != before {
		t.Errorf("FrameIndex() = %d after a skipped frame, want %d", got, before)
	}
	if c.Camera().PreviousViewProjection() != vp {
		t.Error("a skipped frame rolled the previous-frame matrices")
	}

	if err := c.Frame(); err != nil {
		t.Fatal(err)
	}
	if got := c.Camera().FrameIndex(); got != before+1 {
		t.Errorf("FrameIndex() = %d after the next frame, want %d", got, before+1)
	}
}

func TestSinglePixelCopiesBloom(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 1, 1)
	rec.Reset()

	if err := c.Frame(); err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if got := rec.Filter("copy texture"); !slices.Contains(got, "copy texture: Raytrace Color -> Bloom Output 1x1") {
		t.Errorf("copies = %v", got)
	}
	if got := rec.Filter("begin pass"); len(got) != 2 {
		t.Errorf("render passes = %v, want raytrace and final only", got)
	}
}

func TestRecreateAllIdempotent(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 320, 240)

	rec.Reset()
	if err := c.RecreateAll(); err != nil {
		t.Fatal(err)
	}
	first, live := rec.Filter("create "), len(rec.Live(""))

	rec.Reset()
	if err := c.RecreateAll(); err != nil {
		t.Fatal(err)
	}
	if got := rec.Filter("create "); !reflect.DeepEqual(got, first) {
		t.Errorf("second RecreateAll() created different objects:\n%v\nwant\n%v", got, first)
	}
	if got := len(rec.Live("")); got != live {
		t.Errorf("live resources = %d after two recreates, want %d", got, live)
	}
}

func TestReloadRebuildsOnlyChangedPass(t *testing.T) {
	root := copyShaders(t)
	c, rec := newTestCompositor(t, root, 256, 256)

	rec.Reset()
	appendLine(t, filepath.Join(root, "final.wgsl"), "// exposure tweak")
	c.RequestReload("final.wgsl")
	if err := c.Frame(); err != nil {
		t.Fatal(err)
	}
	if got := rec.Filter("create pipeline"); !reflect.DeepEqual(got, []string{"create pipeline: Final"}) {
		t.Errorf("pipelines after final change = %v", got)
	}

	rec.Reset()
	appendLine(t, filepath.Join(root, "bloom_common.wgsl"), "// radius tweak")
	c.RequestReload(filepath.Join(root, "bloom_common.wgsl"))
	if err := c.Frame(); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"create pipeline: Bloom Downsample",
		"create pipeline: Bloom Upsample First",
		"create pipeline: Bloom Upsample",
		"create pipeline: Bloom Merge",
	}
	if got := rec.Filter("create pipeline"); !reflect.DeepEqual(got, want) {
		t.Errorf("pipelines after include change = %v, want %v", got, want)
	}

	rec.Reset()
	c.RequestReload()
	if err := c.Frame(); err != nil {
		t.Fatal(err)
	}
	if got := rec.Filter("create pipeline"); len(got) != 0 {
		t.Errorf("a reload without changes rebuilt %v", got)
	}
}

func TestBrokenReloadKeepsProgram(t *testing.T) {
	root := copyShaders(t)
	c, rec := newTestCompositor(t, root, 64, 64)

	if err := os.Remove(filepath.Join(root, "raytrace.wgsl")); err != nil {
		t.Fatal(err)
	}
	rec.Reset()
	c.RequestReload("raytrace.wgsl")
	if err := c.Frame(); err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if got := rec.Filter("create pipeline"); len(got) != 0 {
		t.Errorf("a failed reload rebuilt %v", got)
	}
	if p, _ := c.Cache().Get("raytrace.wgsl"); p.IsFallback() {
		t.Error("a failed reload must keep the previous program")
	}
}

func TestStaleBindingRebuiltBeforeRecording(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 128, 128)
	if err := c.Passes()[0].Resize(128, 128); err != nil {
		t.Fatal(err)
	}
	if !c.Passes()[1].Stale() {
		t.Fatal("bloom should be stale after the raytrace output was reallocated")
	}

	rec.Reset()
	if err := c.Frame(); err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	log := rec.Log()
	if indexOf(t, log, "create pipeline: Bloom Merge") > indexOf(t, log, "create encoder: Frame Encoder") {
		t.Error("bloom was rebuilt after recording started")
	}
	if got := rec.Filter("create pipeline: Final"); len(got) != 0 {
		t.Error("rebuilding bloom's bundle must not rebuild final")
	}
}

func TestSurfaceErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		skipped   bool
		fatal     bool
		configure bool
	}{
		{name: "lost", err: renderer.ErrSurfaceLost, skipped: true, configure: true},
		{name: "outdated", err: renderer.ErrSurfaceOutdated, skipped: true, configure: true},
		{name: "timeout", err: renderer.ErrSurfaceTimeout, skipped: true},
		{name: "out of memory", err: renderer.ErrOutOfMemory, fatal: true},
		{name: "device lost", err: renderer.ErrDeviceLost, fatal: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestCompositor(t, shaderRoot, 32, 32)
			rec.Reset()
			rec.FailAcquire(tt.err)

			err := c.Frame()
			if got := errors.Is(err, ErrFrameSkipped); got != tt.skipped {
				t.Errorf("Frame() error = %v, skipped = %v, want %v", err, got, tt.skipped)
			}
			if got := renderer.IsFatal(err); got != tt.fatal {
				t.Errorf("IsFatal(%v) = %v, want %v", err, got, tt.fatal)
			}
			if got := rec.Filter("begin pass"); len(got) != 0 {
				t.Errorf("a skipped frame recorded %v", got)
			}
			if tt.fatal {
				return
			}

			rec.Reset()
			if err := c.Frame(); err != nil {
				t.Fatalf("next Frame() error = %v", err)
			}
			if got := len(rec.Filter("configure surface 32x32")) == 1; got != tt.configure {
				t.Errorf("reconfigured = %v, want %v", got, tt.configure)
			}
		})
	}
}

func TestZeroResizeIgnored(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 32, 32)
	rec.Reset()
	c.Resize(0, 0)
	if err := c.Frame(); err != nil {
		t.Fatal(err)
	}
	if got := rec.Filter("configure surface"); len(got) != 0 {
		t.Errorf("zero resize reconfigured the surface: %v", got)
	}
}

func TestSceneChangeResetsAccumulation(t *testing.T) {
	c, _ := newTestCompositor(t, shaderRoot, 32, 32)
	for range 3 {
		if err := c.Frame(); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.Camera().FrameIndex(); got != 2 {
		t.Fatalf("FrameIndex() = %d, want 2", got)
	}
	if err := c.Scene().Push(scene.NewSphere(mgl32.Vec3{0, 0, -3}, 1, scene.DefaultMaterial())); err != nil {
		t.Fatal(err)
	}
	if err := c.Frame(); err != nil {
		t.Fatal(err)
	}
	if got := c.Camera().FrameIndex(); got != 0 {
		t.Errorf("FrameIndex() after a scene change = %d, want 0", got)
	}
}

func TestMissingEnvironmentUsesSolidCubemap(t *testing.T) {
	c, _ := newTestCompositor(t, shaderRoot, 32, 32, WithEnvironment(filepath.Join(t.TempDir(), "missing")))
	if _, ok := c.Registry().Get(solidEnvironment); !ok {
		t.Error("a missing environment should be replaced by the solid cubemap")
	}
}

func TestReleaseLeavesNoResources(t *testing.T) {
	c, rec := newTestCompositor(t, shaderRoot, 64, 48)
	if err := c.Frame(); err != nil {
		t.Fatal(err)
	}
	c.Release()
	if live := rec.Live(""); len(live) != 0 {
		t.Errorf("live after Release: %v", live)
	}
	if c.State() != StateReleased {
		t.Errorf("State() = %v", c.State())
	}
	if err := c.Frame(); err == nil {
		t.Error("Frame() after Release should fail")
	}
}
