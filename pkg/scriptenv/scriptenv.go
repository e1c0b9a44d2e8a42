// Package scriptenv abstracts the embedded scripting engine used for value
// transformation, schedule expansion and macro evaluation. The collection
// core depends only on the Environment interface; the Lua implementation in
// this package is the one wired by the server binary.
package scriptenv

// Script is an opaque handle to a compiled script. Handles are immutable and
// safe for concurrent Run calls.
type Script interface{}

// Environment compiles and executes scripts. Compilation failures and
// runtime failures are distinguishable via pkg/errors predicates; neither is
// ever fatal to the caller.
type Environment interface {
	// Compile turns source code into a reusable script handle.
	Compile(source string) (Script, error)

	// Run executes a compiled script with the given global bindings and
	// returns its result value (string, float64, bool, map or nil).
	Run(script Script, bindings map[string]any) (any, error)

	// RunNamed executes a script registered in the environment's library.
	// Returns ScriptNotFoundError if no such script exists.
	RunNamed(name string, bindings map[string]any) (any, error)
}

// ToString renders a script result the way collection values expect:
// strings, float64 numbers and booleans in their natural textual form; nil
// and any other type (maps included) become the empty string.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(t)
	default:
		return ""
	}
}
