package harness

import "github.com/roach88/nimbus/internal/ir"

// Trace event types.
const (
	EventActivation = "activation"
	EventError      = "error"
)

// TraceEvent records the observable outcome of one step.
//
// Activation events carry what the executor saw and the provenance the
// activation was annotated with. Error events carry the error code of an
// expected failure. Digests are omitted; golden traces compare the inputs
// to the digest instead.
type TraceEvent struct {
	Step         int             `json:"step"`
	Type         string          `json:"type"`
	Target       string          `json:"target"`
	Path         string          `json:"path,omitempty"`
	Binding      string          `json:"binding,omitempty"`
	Parameters   ir.ParameterSet `json:"parameters,omitempty"`
	Status       string          `json:"status,omitempty"`
	ActivationID string          `json:"activation_id,omitempty"`
	Code         string          `json:"code,omitempty"`
	Seq          int64           `json:"seq,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per invoke step and per expected error, in
	// step order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddActivation appends an activation event.
func (r *Result) AddActivation(step int, target string, act ir.Activation, params ir.ParameterSet) TraceEvent {
	path := ""
	if v, ok := act.Annotations.Get(ir.AnnotationPath); ok {
		if s, ok := v.(ir.String); ok {
			path = string(s)
		}
	}
	binding, _ := act.Binding()
	ev := TraceEvent{
		Step:         step,
		Type:         EventActivation,
		Target:       target,
		Path:         path,
		Binding:      binding,
		Parameters:   params,
		Status:       act.Response.Status,
		ActivationID: act.ActivationID,
		Seq:          act.Seq,
	}
	r.Trace = append(r.Trace, ev)
	return ev
}

// AddErrorEvent appends an expected-error event.
func (r *Result) AddErrorEvent(step int, target string, code ir.ErrorCode) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:   step,
		Type:   EventError,
		Target: target,
		Code:   string(code),
	})
}

// Activations returns the activation events only.
func (r *Result) Activations() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventActivation {
			out = append(out, ev)
		}
	}
	return out
}
