package texture

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer/backendtest"
)

func writePNG(t *testing.T, path string, size int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func writeCubemap(t *testing.T, names [6]string, size int) string {
	t.Helper()
	dir := t.TempDir()
	for i, name := range names {
		writePNG(t, filepath.Join(dir, name+".png"), size, color.RGBA{R: uint8(i * 40), A: 255})
	}
	return dir
}

func TestFindFacesAliases(t *testing.T) {
	dir := writeCubemap(t, [6]string{"Right", "left", "top", "bottom", "front", "back"}, 2)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	faces, err := FindFaces(dir)
	if err != nil {
		t.Fatalf("FindFaces() error = %v", err)
	}
	if filepath.Base(faces[0]) != "Right.png" || filepath.Base(faces[5]) != "back.png" {
		t.Errorf("faces = %v", faces)
	}
}

func TestFindFacesMissing(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"px", "nx", "py", "pz", "nz"} {
		writePNG(t, filepath.Join(dir, name+".png"), 2, color.RGBA{A: 255})
	}

	_, err := FindFaces(dir)
	if !errors.Is(err, ErrMissingFace) {
		t.Fatalf("FindFaces() error = %v, want ErrMissingFace", err)
	}
	var missing *MissingFaceError
	if !errors.As(err, &missing) || missing.Face != "ny" {
		t.Errorf("missing face = %+v, want ny", missing)
	}
}

func TestDecodeCubemap(t *testing.T) {
	dir := writeCubemap(t, FaceNames, 4)
	pool := worker.NewDynamicWorkerPool(3, 16, 100*time.Millisecond)

	data, err := DecodeCubemap(dir, pool)
	if err != nil {
		t.Fatalf("DecodeCubemap() error = %v", err)
	}
	if data.Width != 4 || data.Height != 4 || data.LayerCount() != 6 {
		t.Fatalf("staging = %dx%dx%d, want 4x4x6", data.Width, data.Height, data.LayerCount())
	}
	for i := uint32(0); i < 6; i++ {
		if got := data.Layer(i)[0]; got != uint8(i*40) {
			t.Errorf("layer %d red = %d, want %d", i, got, i*40)
		}
	}
}

func TestDecodeCubemapSizeMismatch(t *testing.T) {
	dir := writeCubemap(t, FaceNames, 4)
	writePNG(t, filepath.Join(dir, "nz.png"), 8, color.RGBA{A: 255})

	_, err := DecodeCubemap(dir, worker.NewDynamicWorkerPool(2, 16, 100*time.Millisecond))
	if !errors.Is(err, ErrFaceSizeMismatch) {
		t.Errorf("DecodeCubemap() error = %v, want ErrFaceSizeMismatch", err)
	}
}

func TestDecodeCubemapCorruptFace(t *testing.T) {
	dir := writeCubemap(t, FaceNames, 4)
	if err := os.WriteFile(filepath.Join(dir, "py.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeCubemap(dir, worker.NewDynamicWorkerPool(2, 16, 100*time.Millisecond)); err == nil {
		t.Error("DecodeCubemap() should fail on a corrupt face")
	}
}

func TestRegistryLoad(t *testing.T) {
	rec := backendtest.NewRecorder(8, 8)
	reg := NewRegistry(rec, WithDecodeWorkers(2))
	dir := writeCubemap(t, FaceNames, 4)
	file := filepath.Join(t.TempDir(), "albedo.png")
	writePNG(t, file, 2, color.RGBA{G: 255, A: 255})

	cube, err := reg.Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) error = %v", err)
	}
	if !cube.Cube || cube.Texture.Layers() != 6 || cube.Texture.Width() != 4 {
		t.Errorf("cubemap entry = %+v", cube.Texture)
	}
	flat, err := reg.Load(file)
	if err != nil {
		t.Fatalf("Load(file) error = %v", err)
	}
	if flat.Cube || flat.Texture.Layers() != 1 {
		t.Errorf("2D entry = %+v", flat.Texture)
	}

	again, _ := reg.Load(dir)
	if again != cube {
		t.Error("second Load() should return the cached entry")
	}
	if got := rec.Filter("write texture"); len(got) != 2 {
		t.Errorf("texture uploads = %v, want 2", got)
	}
	if len(reg.Names()) != 2 {
		t.Errorf("Names() = %v", reg.Names())
	}

	reg.Release()
	for _, kind := range []string{"texture", "view", "sampler"} {
		if live := rec.Live(kind); len(live) != 0 {
			t.Errorf("live %s after Release: %v", kind, live)
		}
	}
}

func TestRegistrySolidCubemap(t *testing.T) {
	rec := backendtest.NewRecorder(8, 8)
	reg := NewRegistry(rec)

	tex, err := reg.SolidCubemap("black", color.RGBA{A: 255})
	if err != nil {
		t.Fatalf("SolidCubemap() error = %v", err)
	}
	if tex.Texture.Width() != 1 || tex.Texture.Layers() != 6 || !tex.Cube {
		t.Errorf("solid cubemap = %+v", tex.Texture)
	}
	if got, ok := reg.Get("black"); !ok || got != tex {
		t.Error("Get() should return the solid cubemap")
	}
}

func TestRegistryLoadMissing(t *testing.T) {
	reg := NewRegistry(backendtest.NewRecorder(8, 8))
	if _, err := reg.Load(filepath.Join(t.TempDir(), "nope")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}
