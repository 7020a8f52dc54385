// Package ir defines the in-memory representation of a compiled Charta
// program and the loader that builds it from an IR JSON payload.
//
// A payload moves through three stages:
//
//  1. Decode: the JSON is parsed and vetted against the embedded CUE
//     schema. Failures here are ParseError - the payload is not a
//     well-formed IR document.
//  2. Compile: guard and action nodes are compiled into their typed
//     forms.
//  3. Validate: declared names are checked for duplicates, references
//     are resolved against the declared sets, every coil is verified to
//     be driven, and the rung dependency graph is checked for cycles.
//     Failures here are LoadError - the document is well-formed but not
//     a valid program.
//
// The resulting Program is immutable. Its evaluation plan (a stable
// topological order of the rungs) is computed once at load time so the
// evaluator never has to resolve dependencies at runtime.
package ir
