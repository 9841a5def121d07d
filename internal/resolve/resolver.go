package resolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/nimbus/internal/ir"
)

// Observer receives one call per resolution attempt. kind is empty when the
// target failed before classification; outcome is "ok" or the lowercased
// error code.
type Observer interface {
	ObserveResolution(kind, outcome string, elapsed time.Duration)
}

// Resolver computes effective parameters and binding provenance.
//
// Thread-safety: Resolver holds no mutable state and is safe for concurrent
// use as long as its Lookup is.
type Resolver struct {
	lookup   Lookup
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithObserver reports every resolution to o.
func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		r.observer = o
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver reading from l.
func New(l Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup: l,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve parses target relative to defaultNamespace and resolves it.
func (r *Resolver) Resolve(ctx context.Context, defaultNamespace, target string) (*Resolution, error) {
	start := r.now()
	t, err := ir.ParseTarget(defaultNamespace, target)
	if err != nil {
		r.observe("", err, start)
		return nil, err
	}
	return r.ResolveTarget(ctx, t)
}

// ResolveTarget resolves an already parsed target.
func (r *Resolver) ResolveTarget(ctx context.Context, t ir.Target) (*Resolution, error) {
	start := r.now()

	var res *Resolution
	err := WithSnapshot(ctx, r.lookup, func(l Lookup) error {
		var err error
		res, err = resolveIn(ctx, l, t)
		return err
	})

	kind := ""
	if res != nil {
		kind = res.Kind.String()
	}
	r.observe(kind, err, start)
	if err != nil {
		r.logger.Debug("resolution failed", "target", t.String(), "error", err)
		return nil, err
	}

	r.logger.Debug("resolved target",
		"target", t.String(),
		"kind", kind,
		"path", res.Path(),
		"parameters", res.Parameters.Len(),
	)
	return res, nil
}

func resolveIn(ctx context.Context, l Lookup, t ir.Target) (*Resolution, error) {
	c, err := Classify(ctx, l, t)
	if err != nil {
		return nil, err
	}

	ref := ir.ActionRef{Namespace: t.Namespace, Name: t.Name}
	if c.Package != nil {
		ref.Namespace = c.Package.Namespace
		ref.Package = c.Package.Name
	}
	action, err := l.LookupAction(ctx, ref)
	if err != nil {
		if ir.IsNotFound(err) {
			// Report the name the caller used, not the target package's.
			return nil, ir.NewNotFoundError(ir.KindAction, t.String())
		}
		return nil, err
	}

	var params ir.ParameterSet
	switch c.Kind {
	case KindBound:
		params = ir.MergeChain(c.Package.Parameters, c.Binding.Parameters, action.Parameters)
	case KindLiteral:
		params = ir.MergeChain(c.Package.Parameters, action.Parameters)
	default:
		params = ir.MergeChain(nil, action.Parameters)
	}

	return &Resolution{
		Target:     t,
		Kind:       c.Kind,
		Action:     action,
		Package:    c.Package,
		Binding:    c.Binding,
		Parameters: params,
	}, nil
}

func (r *Resolver) observe(kind string, err error, start time.Time) {
	if r.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if code := ir.CodeOf(err); code != "" {
			outcome = strings.ToLower(string(code))
		}
	}
	r.observer.ObserveResolution(kind, outcome, r.now().Sub(start))
}
