package command

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*interpreter)

// WithReload sets the function the reload command calls, typically Compositor.RequestReload.
//
// Parameters:
//   - fn: receives the requested paths, or none to reload every program
//
// Returns:
//   - InterpreterOption: the option
func WithReload(fn func(paths ...string)) InterpreterOption {
	return func(in *interpreter) {
		in.reload = fn
	}
}
