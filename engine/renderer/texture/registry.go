// Package texture owns the GPU textures loaded from disk, keyed by the path they were loaded from.
package texture

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// Texture is a registry entry: a GPU texture with the view and sampler it is bound with.
type Texture struct {
	Name    string
	Texture renderer.Texture
	View    renderer.TextureView
	Sampler renderer.Sampler
	// Cube reports whether View is a cube view over six layers.
	Cube bool
}

func (t *Texture) release() {
	t.Sampler.Release()
	t.View.Release()
	t.Texture.Release()
}

// registry is the implementation of the Registry interface.
type registry struct {
	mu       *sync.Mutex
	r        renderer.Renderer
	pool     worker.DynamicWorkerPool
	workers  int
	textures map[string]*Texture
}

// Registry is an explicitly owned cache of GPU textures keyed by name.
// Entries stay alive until Release; callers borrow views and samplers from it.
type Registry interface {
	// Load returns the texture loaded from path, loading it on first use.
	// A directory is loaded as a cubemap from its six face images; a file is loaded as a 2D texture.
	//
	// Parameters:
	//   - path: the file or cubemap directory
	//
	// Returns:
	//   - *Texture: the registry entry
	//   - error: a decode, *MissingFaceError, ErrFaceSizeMismatch or GPU error
	Load(path string) (*Texture, error)

	// SolidCubemap returns a 1x1 cubemap of a single color, creating it on first use.
	//
	// Parameters:
	//   - name: the registry name
	//   - c: the color of every face
	//
	// Returns:
	//   - *Texture: the registry entry
	//   - error: a GPU error
	SolidCubemap(name string, c color.RGBA) (*Texture, error)

	// Get returns an entry without loading it.
	Get(name string) (*Texture, bool)

	// Names returns the names of every entry, sorted.
	Names() []string

	// Release releases every entry.
	Release()
}

var _ Registry = &registry{}

// NewRegistry creates an empty registry creating its textures on r.
//
// Parameters:
//   - r: the renderer owning the textures
//   - options: RegistryBuilderOption functions
//
// Returns:
//   - Registry: the registry
func NewRegistry(r renderer.Renderer, options ...RegistryBuilderOption) Registry {
	reg := &registry{
		mu:       &sync.Mutex{},
		r:        r,
		workers:  6,
		textures: make(map[string]*Texture),
	}
	for _, opt := range options {
		opt(reg)
	}
	reg.pool = worker.NewDynamicWorkerPool(reg.workers, 256, 1*time.Second)
	return reg
}

func (reg *registry) Load(path string) (*Texture, error) {
	name := filepath.Clean(path)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if t, ok := reg.textures[name]; ok {
		return t, nil
	}

	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}

	var t *Texture
	if info.IsDir() {
		start := time.Now()
		data, err := DecodeCubemap(name, reg.pool)
		if err != nil {
			return nil, err
		}
		logging.LogDebug("decoded cubemap %s (%dx%d) in %v", name, data.Width, data.Height, time.Since(start))
		t, err = reg.create(name, data, true)
		if err != nil {
			return nil, err
		}
	} else {
		img, err := common.ImageFile{Path: name}.Decode()
		if err != nil {
			return nil, err
		}
		t, err = reg.create(name, common.TextureStagingData{
			Pixels: img.Pix,
			Width:  uint32(img.Bounds().Dx()),
			Height: uint32(img.Bounds().Dy()),
		}, false)
		if err != nil {
			return nil, err
		}
	}

	reg.textures[name] = t
	logging.LogInfo("loaded texture %s", name)
	return t, nil
}

func (reg *registry) SolidCubemap(name string, c color.RGBA) (*Texture, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if t, ok := reg.textures[name]; ok {
		return t, nil
	}
	pixels := make([]byte, 0, 6*4)
	for range 6 {
		pixels = append(pixels, c.R, c.G, c.B, c.A)
	}
	t, err := reg.create(name, common.TextureStagingData{Pixels: pixels, Width: 1, Height: 1, Layers: 6}, true)
	if err != nil {
		return nil, err
	}
	reg.textures[name] = t
	return t, nil
}

// create uploads data and creates the view and sampler, releasing partial results on failure.
func (reg *registry) create(name string, data common.TextureStagingData, cube bool) (*Texture, error) {
	tex, err := reg.r.CreateTexture(renderer.TextureDescriptor{
		Label:  name,
		Width:  data.Width,
		Height: data.Height,
		Layers: data.LayerCount(),
		Format: wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:  wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", name, err)
	}
	if err := reg.r.WriteTexture(tex, data); err != nil {
		tex.Release()
		return nil, fmt.Errorf("texture %s: %w", name, err)
	}

	dim := wgpu.TextureViewDimension2D
	sampling := common.SamplerStagingData{}
	if cube {
		dim = wgpu.TextureViewDimensionCube
		sampling = common.LinearClampSampler()
	}
	view, err := tex.CreateView(renderer.TextureViewDescriptor{Label: name + " View", Dimension: dim})
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("texture %s: %w", name, err)
	}
	sampler, err := reg.r.CreateSampler(name+" Sampler", sampling)
	if err != nil {
		view.Release()
		tex.Release()
		return nil, fmt.Errorf("texture %s: %w", name, err)
	}
	return &Texture{Name: name, Texture: tex, View: view, Sampler: sampler, Cube: cube}, nil
}

func (reg *registry) Get(name string) (*Texture, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	t, ok := reg.textures[name]
	if !ok {
		t, ok = reg.textures[filepath.Clean(name)]
	}
	return t, ok
}

func (reg *registry) Names() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	names := make([]string, 0, len(reg.textures))
	for name := range reg.textures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (reg *registry) Release() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for name, t := range reg.textures {
		t.release()
		delete(reg.textures, name)
	}
}
