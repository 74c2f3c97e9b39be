// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
// Cubemaps carry six layers back to back in Pixels, in the order +X, -X, +Y, -Y, +Z, -Z.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of a single layer in pixels.
	Width uint32
	// Height is the height of a single layer in pixels.
	Height uint32
	// Layers is the number of array layers contained in Pixels. Zero is treated as one.
	Layers uint32
}

// LayerCount returns the number of layers in the staging data, treating zero as one.
func (d TextureStagingData) LayerCount() uint32 {
	if d.Layers == 0 {
		return 1
	}
	return d.Layers
}

// Layer returns the pixel bytes of the given layer.
//
// Parameters:
//   - i: the zero-based layer index
//
// Returns:
//   - []byte: the RGBA bytes of that layer, or nil if i is out of range
func (d TextureStagingData) Layer(i uint32) []byte {
	size := int(d.Width * d.Height * 4)
	start := int(i) * size
	if i >= d.LayerCount() || start+size > len(d.Pixels) {
		return nil
	}
	return d.Pixels[start : start+size]
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// LinearClampSampler returns sampler staging data with linear filtering and clamp-to-edge addressing.
func LinearClampSampler() SamplerStagingData {
	return SamplerStagingData{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}

// ImageFile is an image on disk, or already in memory, that can be decoded to RGBA pixels.
// PNG, JPEG, BMP, TIFF and WebP are supported.
type ImageFile struct {
	// Path is the file path of the image. Used when Data is empty.
	Path string
	// Data contains encoded image bytes.
	Data []byte
}

// Decode decodes the image to an RGBA image.
//
// Returns:
//   - *image.RGBA: the decoded image with its bounds normalized to start at the origin
//   - error: error if the file cannot be opened or decoded
func (f ImageFile) Decode() (*image.RGBA, error) {
	var img image.Image
	var err error

	switch {
	case len(f.Data) > 0:
		img, _, err = image.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	case f.Path != "":
		file, openErr := os.Open(f.Path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open image file %s: %w", f.Path, openErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image file %s: %w", f.Path, err)
		}
	default:
		return nil, fmt.Errorf("image has neither data nor path")
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba, nil
}
