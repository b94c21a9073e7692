// Package wazero implements the waPC host engine on the wazero runtime.
//
// Guests must export __guest_call and may export wapc_init or _start for
// initialization. The engine exports the waPC host module ("wapc"), the
// AssemblyScript env.abort stub, and WASI snapshot preview1 with stdout
// redirected to the module's writer.
//
// See https://wapc.io/docs/spec/ for the guest and host ABI.
package wazero
