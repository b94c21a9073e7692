// Package native implements the waPC engine contract over in-process Go
// guests instead of WebAssembly.
//
// A native guest is an initializer that populates a guest.Registry. Each
// Instantiate builds a fresh registry wired to the module's host call
// handler, so the full Module/Instance lifecycle — including pooling — works
// without compiling anything to wasm. This is the engine to use in tests and
// when developing guest handlers before building them for a sandbox.
package native
