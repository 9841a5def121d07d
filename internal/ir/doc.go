// Package ir defines the entity model shared by every other package:
// parameter values and ordered parameter sets, packages, bindings, actions,
// activations, target names and the typed entity errors.
//
// ir imports nothing internal; stores, the resolver and the invoker all
// build on it.
//
// Key constraints:
//   - A ParameterSet never holds duplicate keys; duplicates are rejected
//     at the input boundary, never collapsed.
//   - Merge is pure: later (more specific) levels win, base order is kept.
//   - Numbers are int64. Fractional numbers are rejected so digests stay
//     stable across encoders.
package ir
