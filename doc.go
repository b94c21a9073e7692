// Package wapcruntime provides a Go host runtime for waPC-compliant
// WebAssembly guest modules, plus a guest-side dispatch table for
// running the same handlers natively.
//
// waPC is a bidirectional, payload-oriented calling convention: the host
// invokes named guest operations with an opaque byte payload, and guest
// handlers may call back into the host through a (binding, namespace,
// operation) addressed bridge while servicing a request.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	wapcruntime/        Root package with Engine, Module and Instance contracts
//	├── guest/          Guest-side dispatch table and host-call bridge
//	├── guest/fixture/  Reference guest with echo and planned-failure handlers
//	├── engines/wazero/ WebAssembly engine implementing the waPC guest ABI
//	├── engines/native/ In-process engine running guest registries without wasm
//	├── errors/         Structured error types for debugging
//	└── cmd/wapc/       CLI for invoking operations on waPC modules
//
// # Quick Start
//
// Load and invoke a waPC guest:
//
//	engine := wazero.Engine()
//
//	mod, err := engine.New(ctx, code, wapcruntime.NoOpHostCallHandler)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mod.Close(ctx)
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	resp, err := inst.Invoke(ctx, "echo", []byte("hello"))
//
// # Host Calls
//
// Guests address the host through a (binding, namespace, operation) triple.
// The HostCallHandler given to Engine.New services every such call for all
// instances of the module:
//
//	handler := func(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
//	    if namespace == "kv" && operation == "get" {
//	        return store.Get(payload)
//	    }
//	    return nil, fmt.Errorf("unknown host operation %q", operation)
//	}
//
// # Thread Safety
//
// Engine and Module are safe for concurrent use. Instance is NOT thread-safe:
// a waPC invocation owns the instance until it returns, including any nested
// host calls it performs. Use Pool to serve concurrent invocations from a set
// of instances.
package wapcruntime
