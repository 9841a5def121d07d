// Package entity manages packages, bindings and actions on top of a Store.
//
// Manager validates names and parameter sets before anything is written,
// enforces the binding rules the store cannot see on its own (a binding's
// target must be an existing literal package), and renders descriptions
// with fully merged parameters.
package entity
