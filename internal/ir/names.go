package ir

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultNamespace is the placeholder that resolves to the caller's namespace.
const DefaultNamespace = "_"

// MaxNameLength bounds every path segment.
const MaxNameLength = 256

// namePattern admits word characters, with '@', '.', '-' and inner spaces
// allowed after the first character.
var namePattern = regexp.MustCompile(`^(\w|\w[\w@ .-]*[\w@.-])$`)

// ValidateName checks a single namespace, package, binding or action name.
func ValidateName(kind, name string) error {
	switch {
	case name == "":
		return NewInvalidNameError(kind, name, "name must not be empty")
	case len(name) > MaxNameLength:
		return NewInvalidNameError(kind, name, fmt.Sprintf("name exceeds %d characters", MaxNameLength))
	case !namePattern.MatchString(name):
		return NewInvalidNameError(kind, name, "name contains invalid characters")
	}
	return nil
}

// EntityRef names a package or binding within a namespace.
type EntityRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// String renders "namespace/name".
func (r EntityRef) String() string {
	return r.Namespace + "/" + r.Name
}

// IsZero reports whether the reference is unset.
func (r EntityRef) IsZero() bool {
	return r.Namespace == "" && r.Name == ""
}

// ActionRef names an action by namespace, owning package (empty for
// top-level actions) and action name.
type ActionRef struct {
	Namespace string `json:"namespace"`
	Package   string `json:"package,omitempty"`
	Name      string `json:"name"`
}

// String renders "namespace/package/name" or "namespace/name".
func (r ActionRef) String() string {
	if r.Package == "" {
		return r.Namespace + "/" + r.Name
	}
	return r.Namespace + "/" + r.Package + "/" + r.Name
}

// PackageRef returns the owning package reference; ok is false for
// top-level actions.
func (r ActionRef) PackageRef() (EntityRef, bool) {
	if r.Package == "" {
		return EntityRef{}, false
	}
	return EntityRef{Namespace: r.Namespace, Name: r.Package}, true
}

// Target is a parsed invocation or action name. Package is the qualifying
// segment, which may name either a package or a binding; it is empty for
// top-level actions.
type Target struct {
	Namespace string
	Package   string
	Name      string
}

// ActionRef converts the target into an action reference without
// classifying the qualifying segment.
func (t Target) ActionRef() ActionRef {
	return ActionRef{Namespace: t.Namespace, Package: t.Package, Name: t.Name}
}

// String renders the fully qualified target.
func (t Target) String() string {
	return t.ActionRef().String()
}

// ParseTarget parses an action target.
//
// Accepted forms:
//
//	action                 default namespace, top-level action
//	pkg/action             default namespace, package or binding
//	ns/pkg/action          explicit namespace
//	/ns/action             explicit namespace, top-level action
//	/ns/pkg/action         explicit namespace
//
// The namespace "_" stands for defaultNamespace.
func ParseTarget(defaultNamespace, s string) (Target, error) {
	parts, explicit, err := splitPath(KindTarget, s)
	if err != nil {
		return Target{}, err
	}

	var t Target
	switch {
	case explicit && len(parts) == 2:
		t = Target{Namespace: parts[0], Name: parts[1]}
	case explicit && len(parts) == 3:
		t = Target{Namespace: parts[0], Package: parts[1], Name: parts[2]}
	case !explicit && len(parts) == 1:
		t = Target{Name: parts[0]}
	case !explicit && len(parts) == 2:
		t = Target{Package: parts[0], Name: parts[1]}
	case !explicit && len(parts) == 3:
		t = Target{Namespace: parts[0], Package: parts[1], Name: parts[2]}
	default:
		return Target{}, NewInvalidNameError(KindTarget, s,
			fmt.Sprintf("expected [/namespace/][package/]action, got %d segments", len(parts)))
	}

	ns, err := resolveNamespace(KindTarget, s, t.Namespace, defaultNamespace)
	if err != nil {
		return Target{}, err
	}
	t.Namespace = ns

	if t.Package != "" {
		if err := ValidateName(KindPackage, t.Package); err != nil {
			return Target{}, err
		}
	}
	if err := ValidateName(KindAction, t.Name); err != nil {
		return Target{}, err
	}
	return t, nil
}

// ParseEntityRef parses a package or binding name: "name", "ns/name" or "/ns/name".
func ParseEntityRef(kind, defaultNamespace, s string) (EntityRef, error) {
	parts, _, err := splitPath(kind, s)
	if err != nil {
		return EntityRef{}, err
	}

	var ref EntityRef
	switch len(parts) {
	case 1:
		ref = EntityRef{Name: parts[0]}
	case 2:
		ref = EntityRef{Namespace: parts[0], Name: parts[1]}
	default:
		return EntityRef{}, NewInvalidNameError(kind, s,
			fmt.Sprintf("expected [/namespace/]name, got %d segments", len(parts)))
	}

	ns, err := resolveNamespace(kind, s, ref.Namespace, defaultNamespace)
	if err != nil {
		return EntityRef{}, err
	}
	ref.Namespace = ns

	if err := ValidateName(kind, ref.Name); err != nil {
		return EntityRef{}, err
	}
	return ref, nil
}

func splitPath(kind, s string) ([]string, bool, error) {
	if strings.TrimSpace(s) == "" {
		return nil, false, NewInvalidNameError(kind, s, "name must not be empty")
	}
	explicit := strings.HasPrefix(s, "/")
	parts := strings.Split(strings.TrimPrefix(s, "/"), "/")
	for _, p := range parts {
		if p == "" {
			return nil, false, NewInvalidNameError(kind, s, "empty path segment")
		}
	}
	return parts, explicit, nil
}

func resolveNamespace(kind, raw, ns, defaultNamespace string) (string, error) {
	if ns == "" || ns == DefaultNamespace {
		if defaultNamespace == "" || defaultNamespace == DefaultNamespace {
			return "", NewInvalidNameError(kind, raw, "no default namespace configured")
		}
		ns = defaultNamespace
	}
	if err := ValidateName("namespace", ns); err != nil {
		return "", err
	}
	return ns, nil
}
