// Package guestwasm synthesizes small WebAssembly guest modules in memory,
// so engine tests and examples can exercise the waPC ABI without an
// external guest toolchain.
//
// It implements just enough of the wasm binary format (LEB128 encoding,
// section framing, a handful of instructions) to express guests that talk
// to the waPC host exports.
package guestwasm
