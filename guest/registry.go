package guest

import (
	"sort"

	"github.com/wippyai/wapc-runtime/errors"
)

type (
	// Function handles one guest operation: payload in, payload or error out.
	// Both directions accept empty byte sequences.
	Function func(payload []byte) ([]byte, error)

	// Functions is the batch registration form, mapping operation name to
	// handler.
	Functions map[string]Function
)

// Registry is the guest dispatch table. It routes incoming operations to
// registered handlers and exposes the host bridge handlers call out through.
//
// Registration happens during initialization, before any dispatch; lookups
// afterwards are read-only. The registry does no locking of its own.
type Registry struct {
	bridge HostCaller
	funcs  map[string]Function
}

// NewRegistry creates an empty dispatch table whose handlers reach the host
// through bridge. A nil bridge is replaced by NoOpHostCaller.
func NewRegistry(bridge HostCaller) *Registry {
	if bridge == nil {
		bridge = NoOpHostCaller
	}
	return &Registry{
		bridge: bridge,
		funcs:  make(map[string]Function),
	}
}

// Register maps name to fn. Registering an existing name overwrites the
// earlier handler.
func (r *Registry) Register(name string, fn Function) {
	r.funcs[name] = fn
}

// RegisterFunctions registers every entry of fns. Later registrations under
// the same name win.
func (r *Registry) RegisterFunctions(fns Functions) {
	for name, fn := range fns {
		r.funcs[name] = fn
	}
}

// Bridge returns the host bridge handlers should use for outbound calls.
func (r *Registry) Bridge() HostCaller {
	return r.bridge
}

// Invoke routes operation to its registered handler. Unknown operations
// return a not-found error.
func (r *Registry) Invoke(operation string, payload []byte) ([]byte, error) {
	fn, ok := r.funcs[operation]
	if !ok {
		return nil, errors.Unregistered(operation)
	}
	return fn(payload)
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	return len(r.funcs)
}
