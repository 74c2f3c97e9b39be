package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/gogpu/naga"
)

// Compiler validates include-resolved WGSL before a program is accepted into the cache.
type Compiler interface {
	// Compile validates source.
	//
	// Parameters:
	//   - name: the program name, for diagnostics
	//   - source: the expanded WGSL source
	//
	// Returns:
	//   - error: a compile error, nil if the source is accepted
	Compile(name, source string) error
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(name, source string) error

func (f CompilerFunc) Compile(name, source string) error {
	return f(name, source)
}

// NagaCompiler validates WGSL by compiling it with naga.
// Features naga reports as unimplemented or unsupported are accepted, since the GPU driver compiles
// the module again and may support them.
type NagaCompiler struct{}

var _ Compiler = NagaCompiler{}

func (NagaCompiler) Compile(name, source string) error {
	if _, err := naga.Compile(source); err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") || strings.Contains(msg, "unsupported") {
			logging.LogDebug("naga cannot fully validate %s, deferring to the driver: %v", name, err)
			return nil
		}
		return fmt.Errorf("compile %s: %w", name, err)
	}
	return nil
}
