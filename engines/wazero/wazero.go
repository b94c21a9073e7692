package wazero

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	wapcruntime "github.com/wippyai/wapc-runtime"
	"github.com/wippyai/wapc-runtime/errors"
)

// functionInit is the name of the nullary function a guest exports to
// initialize waPC.
const functionInit = "wapc_init"

// functionStart is the WASI command entry point. TinyGo guests register
// their handlers from it.
const functionStart = "_start"

// functionGuestCall is the required guest export:
//
//	(func $__guest_call (param $operation_len i32) (param $payload_len i32) (result (;errno;) i32))
const functionGuestCall = "__guest_call"

type engine struct {
	cfg *Config
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages
	// (64KB each). 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// Engine returns a waPC engine backed by the wazero runtime with default
// configuration.
func Engine() wapcruntime.Engine {
	return &engine{}
}

// EngineWithConfig returns a wazero-backed engine with custom configuration.
func EngineWithConfig(cfg *Config) wapcruntime.Engine {
	return &engine{cfg: cfg}
}

func (e *engine) Name() string {
	return "wazero"
}

// Module represents a compiled waPC module. Each module owns a dedicated
// wazero runtime holding the host modules and the compiled guest code.
type Module struct {
	logger wapcruntime.Logger // sink for waPC __console_log
	writer wapcruntime.Logger // sink for WASI fd_write to stdout

	hostCallHandler wapcruntime.HostCallHandler

	runtime  wazero.Runtime
	compiled wazero.CompiledModule

	instanceCounter atomic.Uint64
	closed          atomic.Bool
}

// Instance is a single instantiation of a module with its own memory.
type Instance struct {
	name      string
	module    api.Module
	guestCall api.Function
	closed    atomic.Bool
}

// invokeContext carries the per-invocation state the waPC host exports
// exchange with the guest.
type invokeContext struct {
	operation string

	guestReq  []byte
	guestResp []byte
	guestErr  string

	hostResp []byte
	hostErr  error
}

var _ wapcruntime.Module = (*Module)(nil)
var _ wapcruntime.Instance = (*Instance)(nil)

// New compiles a Module from code. Compilation failures surface as load
// errors; the runtime is torn down on any failure.
func (e *engine) New(ctx context.Context, code []byte, hostCallHandler wapcruntime.HostCallHandler) (wapcruntime.Module, error) {
	rcfg := wazero.NewRuntimeConfig()
	if e.cfg != nil && e.cfg.MemoryLimitPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, rcfg)
	m := &Module{runtime: r, hostCallHandler: hostCallHandler}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	if err := instantiateEnv(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate env: %w", err)
	}

	if err := instantiateWapcHost(ctx, r, m); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate waPC host: %w", err)
	}

	compiled, err := r.CompileModule(ctx, code)
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.InvalidBinary(err)
	}
	m.compiled = compiled

	return m, nil
}

// SetLogger sets the sink for the guest's __console_log messages.
func (m *Module) SetLogger(logger wapcruntime.Logger) {
	m.logger = logger
}

// SetWriter sets the sink for the guest's WASI stdout.
func (m *Module) SetWriter(writer wapcruntime.Logger) {
	m.writer = writer
}

// stdout adapts the module writer to io.Writer for WASI fd_write.
type stdout struct {
	m *Module
}

func (s *stdout) Write(p []byte) (int, error) {
	w := s.m.writer
	if w == nil {
		return io.Discard.Write(p)
	}
	w(string(p))
	return len(p), nil
}

// instantiateEnv exports the legacy "env"."abort" import used by
// AssemblyScript guests built without WASI bindings. It emulates
// proc_exit(255), matching what other waPC engines do.
func instantiateEnv(ctx context.Context, r wazero.Runtime) error {
	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, _ []uint64) {
			_ = mod.CloseWithExitCode(ctx, 255)
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("abort").
		Instantiate(ctx)
	return err
}

// wapcHost implements the required waPC host exports.
//
// See https://wapc.io/docs/spec/#required-host-exports
type wapcHost struct {
	m *Module
}

// instantiateWapcHost exports the "wapc" host module into r. Host functions
// read their per-invocation state from the invoke context carried on ctx.
func instantiateWapcHost(ctx context.Context, r wazero.Runtime, m *Module) error {
	h := &wapcHost{m: m}

	i32 := api.ValueTypeI32
	_, err := r.NewHostModuleBuilder("wapc").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostCall),
			[]api.ValueType{i32, i32, i32, i32, i32, i32, i32, i32}, []api.ValueType{i32}).
		Export("__host_call").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.consoleLog), []api.ValueType{i32, i32}, nil).
		Export("__console_log").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.guestRequest), []api.ValueType{i32, i32}, nil).
		Export("__guest_request").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostResponse), []api.ValueType{i32}, nil).
		Export("__host_response").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostResponseLen), nil, []api.ValueType{i32}).
		Export("__host_response_len").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.guestResponse), []api.ValueType{i32, i32}, nil).
		Export("__guest_response").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.guestError), []api.ValueType{i32, i32}, nil).
		Export("__guest_error").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostError), []api.ValueType{i32}, nil).
		Export("__host_error").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostErrorLen), nil, []api.ValueType{i32}).
		Export("__host_error_len").
		Instantiate(ctx)
	return err
}

// hostCall implements "__host_call": it routes an addressed call from the
// guest to the module's HostCallHandler. The result lands in the invoke
// context; the i32 return tells the guest whether the call succeeded.
func (h *wapcHost) hostCall(ctx context.Context, mod api.Module, stack []uint64) {
	ic := fromInvokeContext(ctx)
	if ic == nil || h.m.hostCallHandler == nil {
		stack[0] = 0 // false: neither an invoke context nor a handler
		return
	}

	mem := mod.Memory()
	binding := requireReadString(mem, "binding", uint32(stack[0]), uint32(stack[1]))
	namespace := requireReadString(mem, "namespace", uint32(stack[2]), uint32(stack[3]))
	operation := requireReadString(mem, "operation", uint32(stack[4]), uint32(stack[5]))
	// Copy the payload out of linear memory; the handler may retain it.
	payload := append([]byte(nil), requireRead(mem, "payload", uint32(stack[6]), uint32(stack[7]))...)

	debugf("host call binding=%s namespace=%s operation=%s payload=%d", binding, namespace, operation, len(payload))

	if ic.hostResp, ic.hostErr = h.m.hostCallHandler(ctx, binding, namespace, operation, payload); ic.hostErr != nil {
		stack[0] = 0
		return
	}
	stack[0] = 1
}

// consoleLog implements "__console_log": it forwards the guest's message to
// the module logger, if any.
func (h *wapcHost) consoleLog(ctx context.Context, mod api.Module, stack []uint64) {
	if log := h.m.logger; log != nil {
		log(requireReadString(mod.Memory(), "msg", uint32(stack[0]), uint32(stack[1])))
	}
}

// guestRequest implements "__guest_request": it writes the operation name
// and request payload to the offsets the guest chose.
func (h *wapcHost) guestRequest(ctx context.Context, mod api.Module, stack []uint64) {
	ic := fromInvokeContext(ctx)
	if ic == nil {
		return
	}

	mem := mod.Memory()
	if ic.operation != "" {
		requireWrite(mem, "operation", uint32(stack[0]), []byte(ic.operation))
	}
	if ic.guestReq != nil {
		requireWrite(mem, "guestReq", uint32(stack[1]), ic.guestReq)
	}
}

// hostResponse implements "__host_response": it writes the last host call's
// response payload to the guest's buffer.
func (h *wapcHost) hostResponse(ctx context.Context, mod api.Module, stack []uint64) {
	if ic := fromInvokeContext(ctx); ic != nil && ic.hostResp != nil {
		requireWrite(mod.Memory(), "hostResp", uint32(stack[0]), ic.hostResp)
	}
}

// hostResponseLen implements "__host_response_len".
func (h *wapcHost) hostResponseLen(ctx context.Context, _ api.Module, stack []uint64) {
	if ic := fromInvokeContext(ctx); ic != nil {
		stack[0] = uint64(len(ic.hostResp))
	} else {
		stack[0] = 0
	}
}

// guestResponse implements "__guest_response": it records the guest's
// success payload for the current invocation.
func (h *wapcHost) guestResponse(ctx context.Context, mod api.Module, stack []uint64) {
	if ic := fromInvokeContext(ctx); ic != nil {
		// Copy out of linear memory; the response outlives this call.
		resp := requireRead(mod.Memory(), "guestResp", uint32(stack[0]), uint32(stack[1]))
		ic.guestResp = append([]byte(nil), resp...)
	}
}

// guestError implements "__guest_error": it records the guest's failure
// message for the current invocation.
func (h *wapcHost) guestError(ctx context.Context, mod api.Module, stack []uint64) {
	if ic := fromInvokeContext(ctx); ic != nil {
		ic.guestErr = requireReadString(mod.Memory(), "guestErr", uint32(stack[0]), uint32(stack[1]))
	}
}

// hostError implements "__host_error": it writes the last host call's error
// message to the guest's buffer.
func (h *wapcHost) hostError(ctx context.Context, mod api.Module, stack []uint64) {
	if ic := fromInvokeContext(ctx); ic != nil && ic.hostErr != nil {
		requireWrite(mod.Memory(), "hostErr", uint32(stack[0]), []byte(ic.hostErr.Error()))
	}
}

// hostErrorLen implements "__host_error_len".
func (h *wapcHost) hostErrorLen(ctx context.Context, _ api.Module, stack []uint64) {
	if ic := fromInvokeContext(ctx); ic != nil && ic.hostErr != nil {
		stack[0] = uint64(len(ic.hostErr.Error()))
	} else {
		stack[0] = 0
	}
}

// Instantiate creates a single instance of the module with its own memory
// and runs the guest's initialization entry points.
func (m *Module) Instantiate(ctx context.Context) (wapcruntime.Instance, error) {
	if m.closed.Load() {
		return nil, errors.Closed(errors.PhaseInstantiate, "module")
	}

	name := strconv.FormatUint(m.instanceCounter.Add(1), 10)

	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStdout(&stdout{m}).
		WithStartFunctions() // initialization entry points run explicitly below

	mod, err := m.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return nil, errors.Instantiation(name, err)
	}

	instance := &Instance{name: name, module: mod}

	if instance.guestCall = mod.ExportedFunction(functionGuestCall); instance.guestCall == nil {
		_ = mod.Close(ctx)
		return nil, errors.MissingExport(name, functionGuestCall)
	}

	// Both entry points are optional; TinyGo uses _start, waPC SDKs use
	// wapc_init. Run whichever the guest exports.
	for _, initFn := range []string{functionStart, functionInit} {
		fn := mod.ExportedFunction(initFn)
		if fn == nil {
			continue
		}
		if _, err = fn.Call(newInvokeContext(ctx, &invokeContext{})); err != nil {
			if exitErr, ok := err.(*sys.ExitError); ok && exitErr.ExitCode() == 0 {
				continue // a clean proc_exit(0) from _start is not a failure
			}
			_ = mod.Close(ctx)
			return nil, errors.Instantiation(name, fmt.Errorf("function %q: %w", initFn, err))
		}
	}

	debugf("instantiated module instance %s", name)
	return instance, nil
}

// Close releases the module and its runtime. Close instances first.
func (m *Module) Close(ctx context.Context) error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.runtime.Close(ctx)
}

// MemorySize returns the instance's linear memory size in bytes.
func (i *Instance) MemorySize() uint32 {
	return i.module.Memory().Size()
}

type invokeContextKey struct{}

func newInvokeContext(ctx context.Context, ic *invokeContext) context.Context {
	return context.WithValue(ctx, invokeContextKey{}, ic)
}

// fromInvokeContext returns the invoke context value or nil if there was
// none. It is never nil on paths reached through Instance.Invoke.
func fromInvokeContext(ctx context.Context) *invokeContext {
	ic, _ := ctx.Value(invokeContextKey{}).(*invokeContext)
	return ic
}

// Invoke calls operation with payload on the guest and returns the response
// payload or the guest's error.
func (i *Instance) Invoke(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	if i.closed.Load() {
		return nil, errors.Closed(errors.PhaseInvoke, "instance")
	}

	ic := invokeContext{operation: operation, guestReq: payload}
	ctx = newInvokeContext(ctx, &ic)

	results, err := i.guestCall.Call(ctx, uint64(len(operation)), uint64(len(payload)))
	if ic.guestErr != "" {
		// The guest called __guest_error; its message wins over the errno.
		return nil, errors.GuestFault(operation, ic.guestErr)
	}
	if err != nil {
		return nil, errors.InvokeFailed(operation, err)
	}

	if results[0] == 1 {
		return ic.guestResp, nil
	}
	return nil, errors.InvokeFailed(operation, nil)
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed.Swap(true) {
		return nil
	}
	return i.module.Close(ctx)
}

// requireReadString is a convenience function that casts requireRead.
func requireReadString(mem api.Memory, fieldName string, offset, byteCount uint32) string {
	return string(requireRead(mem, fieldName, offset, byteCount))
}

// requireRead is like api.Memory.Read except it panics if the offset and
// byteCount are out of range. The panic traps the guest call.
func requireRead(mem api.Memory, fieldName string, offset, byteCount uint32) []byte {
	buf, ok := mem.Read(offset, byteCount)
	if !ok {
		panic(fmt.Errorf("out of range reading %s", fieldName))
	}
	return buf
}

// requireWrite is like api.Memory.Write except it panics if the write is out
// of range.
func requireWrite(mem api.Memory, fieldName string, offset uint32, data []byte) {
	if !mem.Write(offset, data) {
		panic(fmt.Errorf("out of range writing %s", fieldName))
	}
}
