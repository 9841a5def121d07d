package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance scenario.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Namespace is the caller's default namespace. Defaults to "guest".
	Namespace string `yaml:"namespace,omitempty"`

	// Manifest is applied before the first step. Relative paths resolve
	// against the scenario file.
	Manifest string `yaml:"manifest,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// DefaultNamespace is used when a scenario names none.
const DefaultNamespace = "guest"

// Step performs exactly one operation, selected by which of Package, Bind,
// Action, Invoke, Delete or DeleteAction is set.
type Step struct {
	Package      string `yaml:"package,omitempty"`
	Bind         string `yaml:"bind,omitempty"`
	Action       string `yaml:"action,omitempty"`
	Invoke       string `yaml:"invoke,omitempty"`
	Delete       string `yaml:"delete,omitempty"`
	DeleteAction string `yaml:"delete_action,omitempty"`

	// To is the bind step's target package.
	To string `yaml:"to,omitempty"`

	// Kind is the action step's exec kind. Defaults to echo.
	Kind string `yaml:"kind,omitempty"`

	// Update overwrites an existing entity instead of failing.
	Update bool `yaml:"update,omitempty"`

	Parameters  Params `yaml:"parameters,omitempty"`
	Annotations Params `yaml:"annotations,omitempty"`

	// Args are the invoke step's arguments.
	Args Params `yaml:"args,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpPackage      = "package"
	OpBind         = "bind"
	OpAction       = "action"
	OpInvoke       = "invoke"
	OpDelete       = "delete"
	OpDeleteAction = "delete_action"
)

// Op returns the step's operation and its subject, or "" when the step
// names zero or several operations.
func (s Step) Op() (op, subject string) {
	candidates := []struct{ op, subject string }{
		{OpPackage, s.Package},
		{OpBind, s.Bind},
		{OpAction, s.Action},
		{OpInvoke, s.Invoke},
		{OpDelete, s.Delete},
		{OpDeleteAction, s.DeleteAction},
	}
	for _, c := range candidates {
		if c.subject == "" {
			continue
		}
		if op != "" {
			return "", ""
		}
		op, subject = c.op, c.subject
	}
	return op, subject
}

// Expect states what a step must produce. Parameters, Binding, Unbound and
// Status apply to invoke steps; Error applies to any step.
type Expect struct {
	// Parameters must equal the executor's parameters exactly, order
	// included.
	Parameters *Params `yaml:"parameters,omitempty"`

	// Binding is the expected binding annotation value.
	Binding string `yaml:"binding,omitempty"`

	// Unbound requires the binding annotation to be absent.
	Unbound bool `yaml:"unbound,omitempty"`

	// Status is the expected activation status.
	Status string `yaml:"status,omitempty"`

	// Error is the expected error code (NOT_FOUND, INVALID_NAME, ...).
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads a scenario file. Unknown fields are rejected so typos
// surface as errors. A relative manifest path is resolved against the
// scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if s.Manifest != "" && !filepath.IsAbs(s.Manifest) {
		resolved := filepath.Join(filepath.Dir(path), s.Manifest)
		if _, err := os.Stat(resolved); os.IsNotExist(err) {
			return nil, &ManifestNotFoundError{Scenario: s.Name, Manifest: s.Manifest, ResolvedPath: resolved}
		}
		s.Manifest = resolved
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if s.Namespace == "" {
		s.Namespace = DefaultNamespace
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		op, _ := step.Op()
		if op == "" {
			return fmt.Errorf("steps[%d]: exactly one of package, bind, action, invoke, delete or delete_action is required", i)
		}
		if op == OpBind && step.To == "" {
			return fmt.Errorf("steps[%d]: bind requires to", i)
		}
		if step.Expect != nil && op != OpInvoke {
			e := step.Expect
			if e.Parameters != nil || e.Binding != "" || e.Unbound || e.Status != "" {
				return fmt.Errorf("steps[%d]: only error can be expected from a %s step", i, op)
			}
		}
		if e := step.Expect; e != nil && e.Unbound && e.Binding != "" {
			return fmt.Errorf("steps[%d]: expect cannot combine binding and unbound", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

// ManifestNotFoundError is returned when a scenario references a manifest
// file that does not exist.
type ManifestNotFoundError struct {
	Scenario     string
	Manifest     string
	ResolvedPath string
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q references manifest %q which does not exist (resolved to: %s)",
		e.Scenario, e.Manifest, e.ResolvedPath)
}

// Discover returns the scenario files (*.yaml, *.yml) under dir, sorted.
func Discover(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover scenarios in %s: %w", dir, err)
	}
	return paths, nil
}
