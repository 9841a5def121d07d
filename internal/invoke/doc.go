// Package invoke runs actions.
//
// An Invoker resolves a target once, hands the resolution to the Executor
// registered for the action's exec kind, and records the outcome as an
// Activation. The activation carries the path and kind annotations, plus
// the binding annotation when the target was reached through a binding.
//
// Invoke is blocking. Enqueue resolves synchronously, returns the new
// activation ID, and leaves execution to the Run loop.
//
// Thread-safety model:
//   - Invoke, Enqueue: safe from any goroutine
//   - Run: must be called from exactly one goroutine
package invoke
