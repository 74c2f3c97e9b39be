package pass

import "github.com/Carmen-Shannon/oxy-rt/engine/std140"

// MipParamsSize is the std140 size of MipParams.
const MipParamsSize = 16

// MipParams is the per-level bloom uniform.
//
//	struct MipParams {
//	    target_mip: u32,
//	    mip_levels: u32,
//	    _pad: vec2<u32>,
//	}
type MipParams struct {
	TargetMip uint32
	MipLevels uint32
}

func (m MipParams) Std140() *std140.Buffer {
	return std140.New().
		WriteU32(m.TargetMip).
		WriteU32(m.MipLevels).
		WriteUVec2([2]uint32{}).
		Align()
}
