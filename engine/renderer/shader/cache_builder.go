package shader

// CacheBuilderOption is a functional option used to configure a Cache during construction.
type CacheBuilderOption func(*cache)

// WithRoot sets the directory program paths are resolved against.
//
// Parameters:
//   - root: the shader root directory
//
// Returns:
//   - CacheBuilderOption: a function that sets the root of the cache
func WithRoot(root string) CacheBuilderOption {
	return func(c *cache) {
		c.root = root
	}
}

// WithCompiler replaces the default NagaCompiler.
//
// Parameters:
//   - compiler: the Compiler every program is validated with
//
// Returns:
//   - CacheBuilderOption: a function that sets the compiler of the cache
func WithCompiler(compiler Compiler) CacheBuilderOption {
	if compiler == nil {
		compiler = NagaCompiler{}
	}
	return func(c *cache) {
		c.compiler = compiler
	}
}
