// Package resolve turns an invocation target into the action to run, its
// effective parameters and whether it was reached through a binding.
//
// Resolution is a single classification of the target's qualifying segment
// followed by a parameter merge:
//
//	action            TopLevel    merge({}, action)
//	pkg/action        Literal     merge(package, action)
//	binding/action    Bound       merge(merge(package, binding), action)
//
// The resolver never writes and never retries. Stores that can offer a
// consistent read snapshot implement Snapshotter, and the whole resolution
// runs inside it so every level is read from the same state.
package resolve
