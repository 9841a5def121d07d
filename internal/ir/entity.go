package ir

// Package is a namespaced container of actions with its own parameters.
type Package struct {
	Namespace   string       `json:"namespace"`
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Parameters  ParameterSet `json:"parameters"`
	Annotations ParameterSet `json:"annotations"`
}

// Ref returns the package's (namespace, name).
func (p Package) Ref() EntityRef {
	return EntityRef{Namespace: p.Namespace, Name: p.Name}
}

// Binding is a named reference to a target package that layers its own
// parameters over the target's. It does not own the target's actions.
type Binding struct {
	Namespace   string       `json:"namespace"`
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Target      EntityRef    `json:"binding"`
	Parameters  ParameterSet `json:"parameters"`
	Annotations ParameterSet `json:"annotations"`
}

// Ref returns the binding's (namespace, name).
func (b Binding) Ref() EntityRef {
	return EntityRef{Namespace: b.Namespace, Name: b.Name}
}

// Exec describes how an action runs. Execution itself happens outside the
// resolver; Kind selects the executor.
type Exec struct {
	Kind string `json:"kind"`
	Code string `json:"code,omitempty"`
}

// DefaultExecKind is used when an action is created without an exec kind.
const DefaultExecKind = "echo"

// Action is the unit of invocation. Package is the literal owning package,
// never a binding; it is empty for top-level actions.
type Action struct {
	Namespace   string       `json:"namespace"`
	Package     string       `json:"package,omitempty"`
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Exec        Exec         `json:"exec"`
	Parameters  ParameterSet `json:"parameters"`
	Annotations ParameterSet `json:"annotations"`
}

// Ref returns the action's reference.
func (a Action) Ref() ActionRef {
	return ActionRef{Namespace: a.Namespace, Package: a.Package, Name: a.Name}
}

// Activation annotation keys.
const (
	// AnnotationBinding is present only when the invocation reached the
	// action through a binding; its value is "namespace/bindingName".
	AnnotationBinding = "binding"

	// AnnotationPath is the fully qualified name of the executed action.
	AnnotationPath = "path"

	// AnnotationKind is the exec kind of the executed action.
	AnnotationKind = "kind"
)

// Activation status values.
const (
	StatusSuccess     = "success"
	StatusActionError = "action error"
	StatusSystemError = "internal error"
	StatusPending     = "pending"
)

// Response is the outcome of one execution.
type Response struct {
	Status  string `json:"status"`
	Success bool   `json:"success"`
	Result  Object `json:"result"`
}

// Activation is the record of one invocation.
type Activation struct {
	ActivationID string       `json:"activationId"`
	Namespace    string       `json:"namespace"`
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Seq          int64        `json:"seq"`
	Start        int64        `json:"start"`
	End          int64        `json:"end"`
	Response     Response     `json:"response"`
	Logs         []string     `json:"logs"`
	Annotations  ParameterSet `json:"annotations"`
	Digest       string       `json:"digest"`
}

// Binding returns the binding provenance annotation, if any.
func (a Activation) Binding() (string, bool) {
	v, ok := a.Annotations.Get(AnnotationBinding)
	if !ok {
		return "", false
	}
	s, _ := v.(String)
	return string(s), true
}
