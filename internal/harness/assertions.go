package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/nimbus/internal/ir"
)

// Assertion types.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertPackageParams   = "package_parameters"
	AssertActionParams    = "action_parameters"
	AssertActivationCount = "activation_count"
)

// Assertion is checked after every step has run.
//
//	trace_contains      an activation of path (optionally via binding,
//	                    optionally with parameters as a subset)
//	trace_order         activations of paths occur in this order
//	trace_count         path was activated exactly count times
//	package_parameters  describing package yields exactly parameters
//	action_parameters   describing action yields exactly parameters
//	activation_count    the store holds exactly count activations
type Assertion struct {
	Type       string   `yaml:"type"`
	Path       string   `yaml:"path,omitempty"`
	Binding    string   `yaml:"binding,omitempty"`
	Paths      []string `yaml:"paths,omitempty"`
	Count      *int     `yaml:"count,omitempty"`
	Package    string   `yaml:"package,omitempty"`
	Action     string   `yaml:"action,omitempty"`
	Parameters *Params  `yaml:"parameters,omitempty"`
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Path == "" {
			return fmt.Errorf("trace_contains requires path")
		}
	case AssertTraceOrder:
		if len(a.Paths) < 2 {
			return fmt.Errorf("trace_order requires at least two paths")
		}
	case AssertTraceCount:
		if a.Path == "" || a.Count == nil {
			return fmt.Errorf("trace_count requires path and count")
		}
	case AssertPackageParams:
		if a.Package == "" || a.Parameters == nil {
			return fmt.Errorf("package_parameters requires package and parameters")
		}
	case AssertActionParams:
		if a.Action == "" || a.Parameters == nil {
			return fmt.Errorf("action_parameters requires action and parameters")
		}
	case AssertActivationCount:
		if a.Count == nil {
			return fmt.Errorf("activation_count requires count")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			switch ev.Type {
			case EventActivation:
				fmt.Fprintf(&buf, "  [%d] %s -> %s", ev.Step, ev.Target, ev.Path)
				if ev.Binding != "" {
					fmt.Fprintf(&buf, " via %s", ev.Binding)
				}
				fmt.Fprintf(&buf, " %s\n", formatParams(ev.Parameters))
			case EventError:
				fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Step, ev.Target, ev.Code)
			}
		}
	}
	return buf.String()
}

func (h *Harness) evaluateAssertions(ctx context.Context, s *Scenario, trace []TraceEvent) []error {
	var errs []error
	for _, a := range s.Assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, a)
		case AssertTraceCount:
			err = assertTraceCount(trace, a)
		case AssertPackageParams:
			err = h.assertPackageParams(ctx, s.Namespace, a)
		case AssertActionParams:
			err = h.assertActionParams(ctx, s.Namespace, a)
		case AssertActivationCount:
			err = h.assertActivationCount(ctx, s.Namespace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// assertTraceContains looks for an activation of the path, through the
// binding when one is named, whose parameters include every expected pair.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Type != EventActivation || ev.Path != a.Path {
			continue
		}
		if a.Binding != "" && ev.Binding != a.Binding {
			continue
		}
		if a.Parameters != nil && !matchParams(ev.Parameters, a.Parameters.Set()) {
			continue
		}
		return nil
	}

	expected := "activation of " + a.Path
	if a.Binding != "" {
		expected += " via " + a.Binding
	}
	if a.Parameters != nil {
		expected += " with " + formatParams(a.Parameters.Set())
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// matchParams reports whether every expected pair appears in got.
func matchParams(got, want ir.ParameterSet) bool {
	for _, p := range want {
		v, ok := got.Get(p.Key)
		if !ok {
			return false
		}
		if !ir.MustParameterSet(ir.P(p.Key, v)).Equal(ir.MustParameterSet(p)) {
			return false
		}
	}
	return true
}

// assertTraceOrder checks that the first activation of each path occurs in
// the given order. Other activations may intervene.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Type != EventActivation {
			continue
		}
		if _, seen := positions[ev.Path]; !seen {
			positions[ev.Path] = i + 1
		}
	}

	for _, path := range a.Paths {
		if positions[path] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all paths present: %v", a.Paths),
				Actual:   fmt.Sprintf("missing path: %s", path),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Paths); i++ {
		prev, curr := a.Paths[i-1], a.Paths[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("paths in order: %v", a.Paths),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks how many activations ran the path.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == EventActivation && ev.Path == a.Path {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d activations of %s", *a.Count, a.Path),
			Actual:   fmt.Sprintf("%d activations", count),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertPackageParams(ctx context.Context, ns string, a Assertion) error {
	desc, err := h.manager.DescribePackage(ctx, ns, a.Package)
	if err != nil {
		return &AssertionError{
			Type:     AssertPackageParams,
			Expected: fmt.Sprintf("package %s to exist", a.Package),
			Actual:   err.Error(),
		}
	}
	if want := a.Parameters.Set(); !desc.Parameters.Equal(want) {
		return &AssertionError{
			Type:     AssertPackageParams,
			Expected: fmt.Sprintf("%s parameters %s", a.Package, formatParams(want)),
			Actual:   formatParams(desc.Parameters),
		}
	}
	return nil
}

func (h *Harness) assertActionParams(ctx context.Context, ns string, a Assertion) error {
	desc, err := h.manager.DescribeAction(ctx, ns, a.Action)
	if err != nil {
		return &AssertionError{
			Type:     AssertActionParams,
			Expected: fmt.Sprintf("action %s to resolve", a.Action),
			Actual:   err.Error(),
		}
	}
	if want := a.Parameters.Set(); !desc.Parameters.Equal(want) {
		return &AssertionError{
			Type:     AssertActionParams,
			Expected: fmt.Sprintf("%s parameters %s", a.Action, formatParams(want)),
			Actual:   formatParams(desc.Parameters),
		}
	}
	return nil
}

func (h *Harness) assertActivationCount(ctx context.Context, ns string, a Assertion) error {
	acts, err := h.store.ListActivations(ctx, ns, 0)
	if err != nil {
		return fmt.Errorf("activation_count: %w", err)
	}
	if len(acts) != *a.Count {
		return &AssertionError{
			Type:     AssertActivationCount,
			Expected: fmt.Sprintf("%d activations in %s", *a.Count, ns),
			Actual:   fmt.Sprintf("%d activations", len(acts)),
		}
	}
	return nil
}
