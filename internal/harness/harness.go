package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/invoke"
	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/manifest"
	"github.com/roach88/nimbus/internal/resolve"
	"github.com/roach88/nimbus/internal/retry"
	"github.com/roach88/nimbus/internal/store"
	"github.com/roach88/nimbus/internal/testutil"
)

// Exec kinds registered by the harness besides echo.
const (
	// KindFail echoes its parameters as an unsuccessful result.
	KindFail = "fail"

	// KindCrash returns an executor error, recorded as an internal error.
	KindCrash = "crash"
)

// Option configures a run.
type Option func(*Harness)

// WithRetryPolicy sets the policy every step runs under.
func WithRetryPolicy(p retry.Policy) Option {
	return func(h *Harness) {
		h.policy = p
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Harness holds the components of one scenario run.
type Harness struct {
	store    *store.Store
	manager  *entity.Manager
	invoker  *invoke.Invoker
	recorder *recorder
	policy   retry.Policy
	logger   *slog.Logger
}

// Run executes a scenario and returns its result.
//
// Each run gets a fresh in-memory database, a deterministic clock and
// sequential activation IDs, so the same scenario always yields the same
// trace. Step failures are reported in the result; the returned error is
// for failures to set the run up.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		policy: retry.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	clock := testutil.NewDeterministicClock()
	resolver := resolve.New(st, resolve.WithLogger(h.logger))
	h.manager = entity.NewManager(st, entity.WithResolver(resolver), entity.WithLogger(h.logger))

	h.recorder = newRecorder()
	registry := invoke.NewRegistry()
	registry.Register(ir.DefaultExecKind, h.recorder.executor(true, nil))
	registry.Register(KindFail, h.recorder.executor(false, nil))
	registry.Register(KindCrash, h.recorder.executor(false, errors.New("executor crashed")))

	h.invoker = invoke.New(resolver, st,
		invoke.WithRegistry(registry),
		invoke.WithClock(clock),
		invoke.WithNow(clock.Now),
		invoke.WithIDGenerator(testutil.NewFixedIDGenerator()),
		invoke.WithLogger(h.logger),
	)

	h.policy.Logger = h.logger

	if s.Manifest != "" {
		man, err := manifest.LoadFile(s.Manifest)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}
		if _, err := man.Apply(ctx, h.manager, s.Namespace, h.policy); err != nil {
			return nil, fmt.Errorf("apply manifest: %w", err)
		}
	}

	result := NewResult()
	for i, step := range s.Steps {
		h.runStep(ctx, s.Namespace, i, step, result)
	}

	for _, err := range h.evaluateAssertions(ctx, s, result.Trace) {
		result.AddError(err.Error())
	}
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, ns string, i int, step Step, result *Result) {
	op, subject := step.Op()
	label := fmt.Sprintf("step %d (%s %s)", i, op, subject)

	var (
		act ir.Activation
		err error
	)
	switch op {
	case OpPackage:
		_, err = retry.Value(ctx, h.policy, func(ctx context.Context) (ir.Package, error) {
			return h.manager.CreatePackage(ctx, ns, subject, step.Parameters.Set(), step.Annotations.Set(), step.Update)
		})
	case OpBind:
		var target ir.EntityRef
		target, err = ir.ParseEntityRef(ir.KindPackage, ns, step.To)
		if err == nil {
			_, err = retry.Value(ctx, h.policy, func(ctx context.Context) (ir.Binding, error) {
				return h.manager.CreateBinding(ctx, ns, subject, target, step.Parameters.Set(), step.Annotations.Set(), step.Update)
			})
		}
	case OpAction:
		exec := ir.Exec{Kind: step.Kind}
		_, err = retry.Value(ctx, h.policy, func(ctx context.Context) (ir.Action, error) {
			return h.manager.CreateAction(ctx, ns, subject, exec, step.Parameters.Set(), step.Annotations.Set(), step.Update)
		})
	case OpInvoke:
		act, err = retry.Value(ctx, h.policy, func(ctx context.Context) (ir.Activation, error) {
			return h.invoker.Invoke(ctx, ns, subject, step.Args.Set())
		})
	case OpDelete:
		err = h.policy.Do(ctx, func(ctx context.Context) error {
			return h.manager.DeletePackage(ctx, ns, subject)
		})
	case OpDeleteAction:
		err = h.policy.Do(ctx, func(ctx context.Context) error {
			return h.manager.DeleteAction(ctx, ns, subject)
		})
	}

	expect := step.Expect
	if expect != nil && expect.Error != "" {
		switch got := ir.CodeOf(err); {
		case err == nil:
			result.AddError(fmt.Sprintf("%s: expected error %s, got success", label, expect.Error))
		case string(got) != expect.Error:
			result.AddError(fmt.Sprintf("%s: expected error %s, got %v", label, expect.Error, err))
		default:
			result.AddErrorEvent(i, subject, got)
		}
		return
	}
	if err != nil {
		result.AddError(fmt.Sprintf("%s: %v", label, err))
		return
	}
	if op != OpInvoke {
		return
	}

	ev := result.AddActivation(i, subject, act, h.recorder.params(act.ActivationID))
	if expect != nil {
		for _, msg := range checkExpect(expect, ev) {
			result.AddError(fmt.Sprintf("%s: %s", label, msg))
		}
	}
}

func checkExpect(e *Expect, ev TraceEvent) []string {
	var failures []string
	if e.Parameters != nil && !e.Parameters.Set().Equal(ev.Parameters) {
		failures = append(failures, fmt.Sprintf("parameters: expected %s, got %s",
			formatParams(e.Parameters.Set()), formatParams(ev.Parameters)))
	}
	if e.Binding != "" && ev.Binding != e.Binding {
		failures = append(failures, fmt.Sprintf("binding: expected %q, got %q", e.Binding, ev.Binding))
	}
	if e.Unbound && ev.Binding != "" {
		failures = append(failures, fmt.Sprintf("binding: expected none, got %q", ev.Binding))
	}
	if e.Status != "" && ev.Status != e.Status {
		failures = append(failures, fmt.Sprintf("status: expected %q, got %q", e.Status, ev.Status))
	}
	return failures
}

func formatParams(ps ir.ParameterSet) string {
	data, err := ir.MarshalCanonical(ps)
	if err != nil {
		return fmt.Sprintf("%v", ps)
	}
	return string(data)
}

// recorder captures the parameters each activation's executor received.
type recorder struct {
	mu   sync.Mutex
	seen map[string]ir.ParameterSet
}

func newRecorder() *recorder {
	return &recorder{seen: make(map[string]ir.ParameterSet)}
}

func (r *recorder) executor(success bool, failure error) invoke.Executor {
	return invoke.ExecutorFunc(func(_ context.Context, req invoke.Request) (invoke.Result, error) {
		r.mu.Lock()
		r.seen[req.ActivationID] = req.Parameters.Clone()
		r.mu.Unlock()
		if failure != nil {
			return invoke.Result{}, failure
		}
		return invoke.Result{Success: success, Value: req.Parameters.Object()}, nil
	})
}

func (r *recorder) params(activationID string) ir.ParameterSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[activationID]
}
