package texture

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-rt/common"
)

// FaceNames are the canonical cubemap face names in layer order: +X, -X, +Y, -Y, +Z, -Z.
var FaceNames = [6]string{"px", "nx", "py", "ny", "pz", "nz"}

// faceAliases maps every accepted face file stem to its layer.
var faceAliases = map[string]int{
	"px": 0, "posx": 0, "right": 0,
	"nx": 1, "negx": 1, "left": 1,
	"py": 2, "posy": 2, "top": 2,
	"ny": 3, "negy": 3, "bottom": 3,
	"pz": 4, "posz": 4, "front": 4,
	"nz": 5, "negz": 5, "back": 5,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

var (
	// ErrMissingFace is matched by every MissingFaceError.
	ErrMissingFace = errors.New("cubemap face missing")

	// ErrFaceSizeMismatch is returned when the faces of a cubemap are not equally sized squares.
	ErrFaceSizeMismatch = errors.New("cubemap faces differ in size")
)

// MissingFaceError reports a cubemap directory without an image for one of the six faces.
type MissingFaceError struct {
	Dir  string
	Face string
}

func (e *MissingFaceError) Error() string {
	return fmt.Sprintf("cubemap %s: no image for face %s", e.Dir, e.Face)
}

func (e *MissingFaceError) Is(target error) bool {
	return target == ErrMissingFace
}

// FindFaces locates the six face images of a cubemap directory.
// Files are matched case-insensitively by stem against the face names and their aliases.
//
// Parameters:
//   - dir: the cubemap directory
//
// Returns:
//   - [6]string: the face file paths in layer order
//   - error: a read error, or a *MissingFaceError for the first face without an image
func FindFaces(dir string) ([6]string, error) {
	var faces [6]string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return faces, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !imageExtensions[ext] {
			continue
		}
		layer, ok := faceAliases[strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))]
		if !ok || faces[layer] != "" {
			continue
		}
		faces[layer] = filepath.Join(dir, e.Name())
	}
	for i, f := range faces {
		if f == "" {
			return faces, &MissingFaceError{Dir: dir, Face: FaceNames[i]}
		}
	}
	return faces, nil
}

// DecodeCubemap decodes the six faces of a cubemap directory in parallel on pool and packs them into
// six-layer staging data. It blocks until every face is decoded.
//
// Parameters:
//   - dir: the cubemap directory
//   - pool: the worker pool decoding the faces
//
// Returns:
//   - common.TextureStagingData: the RGBA layers in FaceNames order
//   - error: a *MissingFaceError, a decode error, or ErrFaceSizeMismatch
func DecodeCubemap(dir string, pool worker.DynamicWorkerPool) (common.TextureStagingData, error) {
	paths, err := FindFaces(dir)
	if err != nil {
		return common.TextureStagingData{}, err
	}

	var faces [6]*image.RGBA
	var errs [6]error
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		layer, file := i, path
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				faces[layer], errs[layer] = common.ImageFile{Path: file}.Decode()
				return nil, errs[layer]
			},
		})
	}
	wg.Wait()

	if err := errors.Join(errs[:]...); err != nil {
		return common.TextureStagingData{}, fmt.Errorf("cubemap %s: %w", dir, err)
	}
	return packFaces(dir, faces)
}

func packFaces(dir string, faces [6]*image.RGBA) (common.TextureStagingData, error) {
	size := faces[0].Bounds().Size()
	if size.X != size.Y {
		return common.TextureStagingData{}, fmt.Errorf("cubemap %s: face %s is %dx%d, not square: %w", dir, FaceNames[0], size.X, size.Y, ErrFaceSizeMismatch)
	}
	layerBytes := size.X * size.Y * 4
	pixels := make([]byte, 0, layerBytes*6)
	for i, f := range faces {
		if f.Bounds().Size() != size {
			return common.TextureStagingData{}, fmt.Errorf("cubemap %s: face %s is %v, want %v: %w", dir, FaceNames[i], f.Bounds().Size(), size, ErrFaceSizeMismatch)
		}
		pixels = append(pixels, f.Pix[:layerBytes]...)
	}
	return common.TextureStagingData{
		Pixels: pixels,
		Width:  uint32(size.X),
		Height: uint32(size.Y),
		Layers: 6,
	}, nil
}
