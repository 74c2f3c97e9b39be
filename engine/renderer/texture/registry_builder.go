package texture

// RegistryBuilderOption is a functional option used to configure a Registry during construction.
type RegistryBuilderOption func(*registry)

// WithDecodeWorkers sets the maximum number of workers decoding cubemap faces in parallel.
//
// Parameters:
//   - n: the worker count; values below one are ignored
//
// Returns:
//   - RegistryBuilderOption: a function that sets the decode worker count
func WithDecodeWorkers(n int) RegistryBuilderOption {
	return func(reg *registry) {
		if n > 0 {
			reg.workers = n
		}
	}
}
