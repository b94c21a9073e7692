package native

import (
	"context"
	"sync/atomic"

	wapcruntime "github.com/wippyai/wapc-runtime"
	"github.com/wippyai/wapc-runtime/errors"
	"github.com/wippyai/wapc-runtime/guest"
)

// Initializer is the host→guest initialization entry point: it is invoked
// once per instance, right after instantiation and before any dispatch, to
// populate the instance's dispatch table.
type Initializer func(*guest.Registry)

type engine struct {
	init Initializer
}

// Engine returns a waPC engine that runs init-registered Go handlers in
// process. The code bytes passed to New are ignored; native guests carry
// their behavior in the initializer.
func Engine(init Initializer) wapcruntime.Engine {
	return &engine{init: init}
}

func (e *engine) Name() string {
	return "native"
}

func (e *engine) New(ctx context.Context, code []byte, hostCallHandler wapcruntime.HostCallHandler) (wapcruntime.Module, error) {
	if e.init == nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Detail("native engine requires an initializer").
			Build()
	}
	return &Module{init: e.init, hostCallHandler: hostCallHandler}, nil
}

// Module is a native waPC module: a recipe for building instances around a
// registry initializer.
type Module struct {
	init            Initializer
	hostCallHandler wapcruntime.HostCallHandler
	closed          atomic.Bool
}

// Instance runs one dispatch table. Like a wasm instance, it is owned by a
// single invocation at a time.
type Instance struct {
	module   *Module
	registry *guest.Registry

	// ctx is the context of the in-flight invocation; host calls made by
	// handlers run under it.
	ctx    context.Context
	closed atomic.Bool
}

var _ wapcruntime.Module = (*Module)(nil)
var _ wapcruntime.Instance = (*Instance)(nil)

// SetLogger is a no-op: native guests log through ordinary Go means.
func (m *Module) SetLogger(logger wapcruntime.Logger) {}

// SetWriter is a no-op: native guests write through ordinary Go means.
func (m *Module) SetWriter(writer wapcruntime.Logger) {}

// Instantiate builds a fresh registry, bridges it to the module's host call
// handler and runs the guest initializer over it.
func (m *Module) Instantiate(ctx context.Context) (wapcruntime.Instance, error) {
	if m.closed.Load() {
		return nil, errors.Closed(errors.PhaseInstantiate, "module")
	}

	instance := &Instance{module: m}
	instance.registry = guest.NewRegistry(guest.HostCallerFunc(instance.hostCall))
	m.init(instance.registry)

	return instance, nil
}

// Close releases the module.
func (m *Module) Close(ctx context.Context) error {
	m.closed.Store(true)
	return nil
}

// hostCall forwards a guest's outbound call to the module's handler under
// the context of the invocation being serviced.
func (i *Instance) hostCall(binding, namespace, operation string, payload []byte) ([]byte, error) {
	handler := i.module.hostCallHandler
	if handler == nil {
		return []byte{}, nil
	}

	ctx := i.ctx
	if ctx == nil {
		// Host call outside an invocation, e.g. from the initializer.
		ctx = context.Background()
	}
	return handler(ctx, binding, namespace, operation, payload)
}

// MemorySize returns 0: native instances have no linear memory.
func (i *Instance) MemorySize() uint32 {
	return 0
}

// Invoke routes operation to the instance's dispatch table. Handler errors
// surface as guest faults carrying the handler's message verbatim.
func (i *Instance) Invoke(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	if i.closed.Load() {
		return nil, errors.Closed(errors.PhaseInvoke, "instance")
	}

	i.ctx = ctx
	defer func() { i.ctx = nil }()

	resp, err := i.registry.Invoke(operation, payload)
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return nil, err // already structured, e.g. unregistered operation
		}
		return nil, errors.GuestFault(operation, err.Error())
	}
	return resp, nil
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	i.closed.Store(true)
	return nil
}
