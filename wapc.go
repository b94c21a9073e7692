package wapcruntime

import (
	"context"
	"os"

	"go.uber.org/zap"
)

type (
	// Logger is the function a module calls to surface guest console logging
	// and standard output.
	Logger func(msg string)

	// HostCallHandler services calls a guest makes back into the host while
	// handling an invocation. The (binding, namespace, operation) triple
	// addresses the capability; payload is opaque to the runtime.
	HostCallHandler func(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error)

	// Engine compiles guest code into Modules. Implementations live under
	// engines/.
	Engine interface {
		// Name returns a short identifier for the engine, e.g. "wazero".
		Name() string

		// New compiles code into a Module. Every instance of the module
		// routes its host calls through hostCallHandler.
		New(ctx context.Context, code []byte, hostCallHandler HostCallHandler) (Module, error)
	}

	// Module is a compiled waPC guest. It is safe for concurrent use.
	Module interface {
		// SetLogger sets the sink for the guest's console logging.
		// Call before Instantiate.
		SetLogger(logger Logger)

		// SetWriter sets the sink for the guest's standard output.
		// Call before Instantiate.
		SetWriter(writer Logger)

		// Instantiate creates a single instance of the module with its own
		// state and runs the guest's initialization entry point.
		Instantiate(ctx context.Context) (Instance, error)

		// Close releases the module. Close instances first.
		Close(ctx context.Context) error
	}

	// Instance is a single instantiation of a Module. An invocation owns the
	// instance until it returns; callers must serialize access.
	Instance interface {
		// MemorySize returns the instance's linear memory size in bytes.
		MemorySize() uint32

		// Invoke dispatches operation with payload to the guest's handler
		// and returns the response payload or the guest's error.
		Invoke(ctx context.Context, operation string, payload []byte) ([]byte, error)

		// Close releases the instance.
		Close(ctx context.Context) error
	}
)

// NoOpHostCallHandler is a host call handler to use if your host does not
// need to support host calls. It reports success with an empty payload.
func NoOpHostCallHandler(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
	return []byte{}, nil
}

// LoggerFromZap adapts a zap logger to the module Logger contract.
// Messages are logged at info level under the given name.
func LoggerFromZap(l *zap.Logger, name string) Logger {
	log := l.Named(name)
	return func(msg string) {
		log.Info(msg)
	}
}

// Println writes the message and a trailing newline to standard error.
// It is a convenient Logger for tests and examples.
func Println(msg string) {
	os.Stderr.WriteString(msg + "\n")
}

// Print writes the message to standard error without a trailing newline.
func Print(msg string) {
	os.Stderr.WriteString(msg)
}
