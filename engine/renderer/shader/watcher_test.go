package shader

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestWatcherReportsDependents(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.wgsl":              "#include \"include/common.wgsl\"\n",
		"include/common.wgsl": "fn common() {}",
	})
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))
	c.Load("a.wgsl")

	changes := make(chan []string, 8)
	w, err := NewWatcher(c, func(paths []string) { changes <- paths })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	writeFiles(t, dir, map[string]string{filepath.Join("include", "common.wgsl"): "fn common() { }"})

	select {
	case paths := <-changes:
		if !slices.Equal(paths, []string{"a.wgsl"}) {
			t.Errorf("onChange paths = %v, want [a.wgsl]", paths)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported for an edited include")
	}
}

func TestWatcherReportsCreatedInclude(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.wgsl": "#include \"include/common.wgsl\"\n"})
	if err := os.MkdirAll(filepath.Join(dir, "include"), 0o755); err != nil {
		t.Fatal(err)
	}
	c := NewCache(WithRoot(dir), WithCompiler(acceptAll))
	if !c.Load("a.wgsl").IsFallback() {
		t.Fatal("a missing include should load as the fallback")
	}

	changes := make(chan []string, 8)
	w, err := NewWatcher(c, func(paths []string) { changes <- paths })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	writeFiles(t, dir, map[string]string{filepath.Join("include", "common.wgsl"): "fn common() {}"})

	select {
	case paths := <-changes:
		if !slices.Equal(paths, []string{"a.wgsl"}) {
			t.Errorf("onChange paths = %v, want [a.wgsl]", paths)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported for a created include")
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	c := NewCache(WithRoot(t.TempDir()), WithCompiler(acceptAll))
	w, err := NewWatcher(c, func([]string) {})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Sync(); err == nil {
		t.Error("Sync() after Close() should fail")
	}
}
