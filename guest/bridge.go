package guest

// HostCaller is the guest's capability for calling back into the host. The
// (binding, namespace, operation) triple addresses the host capability;
// payload and the response are opaque bytes.
//
// The call is synchronous: it blocks until the host returns. A handler is
// free to discard the outcome entirely; a failed host call never affects the
// handler's own result unless the handler chooses to propagate it.
type HostCaller interface {
	HostCall(binding, namespace, operation string, payload []byte) ([]byte, error)
}

// HostCallerFunc adapts a function to the HostCaller interface.
type HostCallerFunc func(binding, namespace, operation string, payload []byte) ([]byte, error)

// HostCall implements HostCaller.
func (f HostCallerFunc) HostCall(binding, namespace, operation string, payload []byte) ([]byte, error) {
	return f(binding, namespace, operation, payload)
}

// NoOpHostCaller is a bridge for guests whose host offers no capabilities.
// Every call reports success with an empty payload.
var NoOpHostCaller HostCaller = HostCallerFunc(
	func(binding, namespace, operation string, payload []byte) ([]byte, error) {
		return []byte{}, nil
	},
)
