// Package store provides the SQLite-backed entity and activation store.
//
// Tables:
//   - packages: literal packages and bindings (shared name space)
//   - actions: actions keyed by (namespace, package, name), package '' for
//     top-level actions
//   - activations: activation records
//
// Every write runs in one transaction that checks the name-space rules and
// upserts the row, so a reader sees either the old or the new own parameter
// set of an entity, never a mix. Snapshot runs a group of lookups inside a
// single read transaction.
//
// Parameter sets are stored as canonical JSON lists, which keeps their order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
