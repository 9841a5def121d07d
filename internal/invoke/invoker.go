package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/resolve"
)

// ErrStopped is returned by Enqueue after Stop or once Run has returned.
var ErrStopped = errors.New("invoker stopped")

// Observer receives one call per recorded activation. kind is the
// resolution kind; status is the activation status.
type Observer interface {
	ObserveActivation(kind, status string, elapsed time.Duration)
}

// Invoker resolves targets, executes them and records activations.
type Invoker struct {
	resolver    *resolve.Resolver
	activations entity.ActivationStore
	registry    *Registry
	clock       SeqClock
	ids         IDGenerator
	now         func() time.Time
	observer    Observer
	logger      *slog.Logger
	queue       *jobQueue
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithRegistry sets the executor registry. Defaults to NewRegistry().
func WithRegistry(r *Registry) Option {
	return func(inv *Invoker) {
		inv.registry = r
	}
}

// WithClock sets the sequence clock. Defaults to NewClock().
func WithClock(c SeqClock) Option {
	return func(inv *Invoker) {
		inv.clock = c
	}
}

// WithIDGenerator sets the activation ID source. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(inv *Invoker) {
		inv.ids = g
	}
}

// WithNow sets the wall clock used for start and end times.
func WithNow(now func() time.Time) Option {
	return func(inv *Invoker) {
		inv.now = now
	}
}

// WithObserver reports every activation to o.
func WithObserver(o Observer) Option {
	return func(inv *Invoker) {
		inv.observer = o
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(inv *Invoker) {
		inv.logger = l
	}
}

// New creates an Invoker.
func New(r *resolve.Resolver, activations entity.ActivationStore, opts ...Option) *Invoker {
	inv := &Invoker{
		resolver:    r,
		activations: activations,
		registry:    NewRegistry(),
		clock:       NewClock(),
		ids:         UUIDv7Generator{},
		now:         time.Now,
		logger:      slog.Default(),
		queue:       newJobQueue(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// job is a resolved invocation waiting to execute.
type job struct {
	id         string
	resolution *resolve.Resolution
	params     ir.ParameterSet
	executor   Executor
}

// Invoke resolves target relative to namespace, executes it with args
// layered over the effective parameters, and records the activation.
//
// Resolution and validation failures return an error and record nothing.
// Executor failures are recorded in the activation's response.
func (inv *Invoker) Invoke(ctx context.Context, namespace, target string, args ir.ParameterSet) (ir.Activation, error) {
	j, err := inv.prepare(ctx, namespace, target, args)
	if err != nil {
		return ir.Activation{}, err
	}
	return inv.execute(ctx, j)
}

// Enqueue resolves target now and queues it for the Run loop. It returns
// the activation ID the record will be stored under.
func (inv *Invoker) Enqueue(ctx context.Context, namespace, target string, args ir.ParameterSet) (string, error) {
	j, err := inv.prepare(ctx, namespace, target, args)
	if err != nil {
		return "", err
	}
	if !inv.queue.Enqueue(j) {
		return "", ErrStopped
	}
	inv.logger.Debug("activation queued", "activation", j.id, "path", j.resolution.Path())
	return j.id, nil
}

func (inv *Invoker) prepare(ctx context.Context, namespace, target string, args ir.ParameterSet) (*job, error) {
	if err := args.Validate(); err != nil {
		return nil, ir.NewInvalidArgumentError(ir.KindTarget, target, err)
	}

	res, err := inv.resolver.Resolve(ctx, namespace, target)
	if err != nil {
		return nil, err
	}

	exec, err := inv.registry.Lookup(res.Action.Exec.Kind)
	if err != nil {
		return nil, ir.NewInvalidArgumentError(ir.KindAction, res.Path(), err)
	}

	return &job{
		id:         inv.ids.Generate(),
		resolution: res,
		params:     ir.Merge(res.Parameters, args),
		executor:   exec,
	}, nil
}

func (inv *Invoker) execute(ctx context.Context, j *job) (ir.Activation, error) {
	res := j.resolution
	start := inv.now()
	seq := inv.clock.Next()

	result, execErr := j.executor.Execute(ctx, Request{
		ActivationID: j.id,
		Action:       res.Action,
		Parameters:   j.params,
	})
	end := inv.now()

	digest, err := res.Digest()
	if err != nil {
		return ir.Activation{}, fmt.Errorf("digest resolution %s: %w", res.Path(), err)
	}

	act := ir.Activation{
		ActivationID: j.id,
		Namespace:    res.Target.Namespace,
		Name:         res.Action.Name,
		Version:      res.Action.Version,
		Seq:          seq,
		Start:        start.UnixMilli(),
		End:          end.UnixMilli(),
		Response:     response(result, execErr),
		Logs:         result.Logs,
		Annotations:  res.Annotations(),
		Digest:       digest,
	}
	if act.Logs == nil {
		act.Logs = []string{}
	}

	if err := inv.activations.PutActivation(ctx, act); err != nil {
		return ir.Activation{}, fmt.Errorf("write activation %s: %w", j.id, err)
	}

	if inv.observer != nil {
		inv.observer.ObserveActivation(res.Kind.String(), act.Response.Status, end.Sub(start))
	}

	attrs := []any{
		"activation", act.ActivationID,
		"path", res.Path(),
		"status", act.Response.Status,
		"seq", act.Seq,
	}
	if b, ok := act.Binding(); ok {
		attrs = append(attrs, "binding", b)
	}
	inv.logger.Info("activation written", attrs...)
	return act, nil
}

func response(r Result, err error) ir.Response {
	switch {
	case err != nil:
		return ir.Response{
			Status: ir.StatusSystemError,
			Result: ir.Object{"error": ir.String(err.Error())},
		}
	case !r.Success:
		result := r.Value
		if result == nil {
			result = ir.Object{}
		}
		return ir.Response{Status: ir.StatusActionError, Result: result}
	default:
		result := r.Value
		if result == nil {
			result = ir.Object{}
		}
		return ir.Response{Status: ir.StatusSuccess, Success: true, Result: result}
	}
}

// Run executes queued invocations until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
//
// A failed job is logged and the loop continues.
func (inv *Invoker) Run(ctx context.Context) error {
	inv.logger.Info("invoker starting")

	for {
		if j, ok := inv.queue.TryDequeue(); ok {
			if _, err := inv.execute(ctx, j); err != nil {
				inv.logger.Error("queued activation failed",
					"activation", j.id,
					"path", j.resolution.Path(),
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			inv.logger.Info("invoker stopping: context cancelled")
			inv.queue.Close()
			return ctx.Err()

		case <-inv.queue.Wait():
			// A closed signal channel fires immediately; stop once drained.
			if inv.queue.Closed() && inv.queue.Len() == 0 {
				inv.logger.Info("invoker stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run drains what is already queued, then returns.
func (inv *Invoker) Stop() {
	inv.queue.Close()
}

// Pending returns the number of queued invocations.
func (inv *Invoker) Pending() int {
	return inv.queue.Len()
}
