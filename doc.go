// Package contractgen generates statically dispatched, composable
// implementations of contract traits.
//
// A contract trait is a Go interface marked with //contract:trait in a
// build-tagged declaration file. The generator emits, next to it, a dispatch
// type whose methods forward to a chosen implementation at compile time, an
// optional guard for traits that must be extended, and an extension template.
// Structs marked with //contract:derive are wired to those dispatch types,
// with extension chains folded in declaration order, and get a boundary
// companion type exposing the public methods with by-value parameters.
//
// Layout:
//   - cmd/contractgen: the generator command
//   - internal/...: directive parsing, transformation, composition and rendering
//   - examples/host, examples/contractlib, examples/contract: a runnable
//     host environment, a trait library and a contract built from it
package contractgen
