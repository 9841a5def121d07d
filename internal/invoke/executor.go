package invoke

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/nimbus/internal/ir"
)

// Request is what an Executor receives. Parameters are the effective
// parameters with invoke-time arguments applied on top.
type Request struct {
	ActivationID string
	Action       ir.Action
	Parameters   ir.ParameterSet
}

// Result is an executor's outcome. Success false records an action error;
// a returned error records an internal error.
type Result struct {
	Success bool
	Value   ir.Object
	Logs    []string
}

// Executor runs actions of one exec kind.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Echo returns its parameters as the result.
var Echo = ExecutorFunc(func(_ context.Context, req Request) (Result, error) {
	return Result{Success: true, Value: req.Parameters.Object()}, nil
})

// Registry maps exec kinds to executors.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry returns a registry holding the built-in echo executor.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register(ir.DefaultExecKind, Echo)
	return r
}

// Register binds kind to e, replacing any previous executor.
func (r *Registry) Register(kind string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[kind] = e
}

// Lookup returns the executor for kind.
func (r *Registry) Lookup(kind string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("no executor registered for kind %q", kind)
	}
	return e, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
