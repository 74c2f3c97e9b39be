package pass

import "github.com/Carmen-Shannon/oxy-rt/common"

// BloomOption is a functional option applied to the bloom pass by NewBloom.
type BloomOption func(*bloom)

// WithMaxMips caps the number of bloom levels. Zero leaves the chain uncapped.
//
// Parameters:
//   - n: the maximum number of levels
//
// Returns:
//   - BloomOption: a function that applies the cap
func WithMaxMips(n uint32) BloomOption {
	return func(p *bloom) {
		p.maxMips = n
	}
}

// WithBloomPrograms overrides the shader paths of the bloom stages. Empty paths keep their defaults.
func WithBloomPrograms(programs BloomPrograms) BloomOption {
	return func(p *bloom) {
		p.programs.Downsample = common.Coalesce(programs.Downsample, p.programs.Downsample)
		p.programs.UpsampleFirst = common.Coalesce(programs.UpsampleFirst, p.programs.UpsampleFirst)
		p.programs.Upsample = common.Coalesce(programs.Upsample, p.programs.Upsample)
		p.programs.Merge = common.Coalesce(programs.Merge, p.programs.Merge)
	}
}

