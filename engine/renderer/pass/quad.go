package pass

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-rt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rt/engine/std140"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed assets/quad.wgsl
var quadSource string

// QuadIndexCount is the number of indices drawn by Quad.Draw.
const QuadIndexCount = 6

// quadVertex is one corner of the fullscreen quad. UV (0, 0) is the top-left of the target.
type quadVertex struct {
	position mgl32.Vec2
	uv       mgl32.Vec2
}

func (v quadVertex) Std140() *std140.Buffer {
	return std140.New().WriteVec2(v.position).WriteVec2(v.uv)
}

var quadVertices = []quadVertex{
	{mgl32.Vec2{-1, -1}, mgl32.Vec2{0, 1}},
	{mgl32.Vec2{1, -1}, mgl32.Vec2{1, 1}},
	{mgl32.Vec2{1, 1}, mgl32.Vec2{1, 0}},
	{mgl32.Vec2{-1, 1}, mgl32.Vec2{0, 0}},
}

var quadIndices = [QuadIndexCount]uint32{0, 1, 2, 0, 2, 3}

// Quad is the fullscreen quad every pass draws: its vertex module, vertex buffer and index buffer.
// It is created once and shared by every pass.
type Quad struct {
	Module  renderer.ShaderModule
	Layouts []wgpu.VertexBufferLayout

	vertices renderer.Buffer
	indices  renderer.Buffer
}

// NewQuad creates the quad's vertex module and buffers.
//
// Parameters:
//   - r: the renderer creating the GPU objects
//
// Returns:
//   - *Quad: the quad
//   - error: an error if any GPU object could not be created
func NewQuad(r renderer.Renderer) (*Quad, error) {
	module, err := r.CreateShaderModule("Fullscreen Quad", quadSource)
	if err != nil {
		return nil, err
	}

	vb := std140.New()
	std140.WriteStructs(vb, quadVertices, len(quadVertices), quadVertex{})
	vertices, err := r.CreateBuffer(renderer.BufferDescriptor{
		Label:    "Fullscreen Quad Vertices",
		Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		Contents: vb.Bytes(),
	})
	if err != nil {
		module.Release()
		return nil, err
	}

	ib := std140.New()
	for _, i := range quadIndices {
		ib.WriteU32(i)
	}
	indices, err := r.CreateBuffer(renderer.BufferDescriptor{
		Label:    "Fullscreen Quad Indices",
		Usage:    wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		Contents: ib.Bytes(),
	})
	if err != nil {
		vertices.Release()
		module.Release()
		return nil, err
	}

	return &Quad{
		Module: module,
		Layouts: []wgpu.VertexBufferLayout{{
			ArrayStride: 16,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
			},
		}},
		vertices: vertices,
		indices:  indices,
	}, nil
}

// Draw binds the quad buffers and draws it once.
func (q *Quad) Draw(pass renderer.RenderPassEncoder) {
	pass.SetVertexBuffer(0, q.vertices)
	pass.SetIndexBuffer(q.indices, wgpu.IndexFormatUint32)
	pass.DrawIndexed(QuadIndexCount, 1)
}

func (q *Quad) Release() {
	q.indices.Release()
	q.vertices.Release()
	q.Module.Release()
}
