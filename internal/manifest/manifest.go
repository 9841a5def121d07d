package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/retry"
)

// Manifest is a compiled set of declarations in source order.
type Manifest struct {
	Namespace string
	Packages  []PackageDecl
	Bindings  []BindingDecl
	Actions   []ActionDecl
}

// PackageDecl declares a literal package.
type PackageDecl struct {
	Name        string
	Parameters  ir.ParameterSet
	Annotations ir.ParameterSet
	Pos         Position
}

// BindingDecl declares a binding to Package.
type BindingDecl struct {
	Name        string
	Package     string
	Parameters  ir.ParameterSet
	Annotations ir.ParameterSet
	Pos         Position
}

// ActionDecl declares an action. Name is "action" or "pkg/action".
type ActionDecl struct {
	Name        string
	Exec        ir.Exec
	Parameters  ir.ParameterSet
	Annotations ir.ParameterSet
	Pos         Position
}

// Position locates a declaration in its source file.
type Position struct {
	Filename string
	Line     int
	Column   int
}

// IsValid reports whether the position carries a line.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	if !p.IsValid() {
		return p.Filename
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// CompileError reports a malformed manifest field.
type CompileError struct {
	Field   string
	Message string
	Pos     Position
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads a manifest, choosing the format by extension
// (.cue, .yaml or .yml).
func LoadFile(path string) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(path, src)
	case ".yaml", ".yml":
		return ParseYAML(path, src)
	default:
		return nil, &CompileError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported manifest extension %q (want .cue, .yaml or .yml)", filepath.Ext(path)),
			Pos:     Position{Filename: path},
		}
	}
}

// Result lists what Apply wrote, by fully qualified name.
type Result struct {
	Packages []string
	Actions  []string
	Bindings []string
}

// Apply writes the manifest through m with update semantics, packages
// first, then actions, then bindings. It stops at the first error; entities
// already written stay written. Each write runs under policy.
func (man *Manifest) Apply(ctx context.Context, m *entity.Manager, defaultNamespace string, policy retry.Policy) (Result, error) {
	ns := defaultNamespace
	if man.Namespace != "" {
		ns = man.Namespace
	}

	var res Result
	for _, d := range man.Packages {
		p, err := retry.Value(ctx, policy, func(ctx context.Context) (ir.Package, error) {
			return m.CreatePackage(ctx, ns, d.Name, d.Parameters, d.Annotations, true)
		})
		if err != nil {
			return res, declError(d.Pos, err)
		}
		res.Packages = append(res.Packages, p.Ref().String())
	}

	for _, d := range man.Actions {
		a, err := retry.Value(ctx, policy, func(ctx context.Context) (ir.Action, error) {
			return m.CreateAction(ctx, ns, d.Name, d.Exec, d.Parameters, d.Annotations, true)
		})
		if err != nil {
			return res, declError(d.Pos, err)
		}
		res.Actions = append(res.Actions, a.Ref().String())
	}

	for _, d := range man.Bindings {
		target, err := ir.ParseEntityRef(ir.KindPackage, ns, d.Package)
		if err != nil {
			return res, declError(d.Pos, err)
		}
		b, err := retry.Value(ctx, policy, func(ctx context.Context) (ir.Binding, error) {
			return m.CreateBinding(ctx, ns, d.Name, target, d.Parameters, d.Annotations, true)
		})
		if err != nil {
			return res, declError(d.Pos, err)
		}
		res.Bindings = append(res.Bindings, b.Ref().String())
	}
	return res, nil
}

func declError(pos Position, err error) error {
	if !pos.IsValid() {
		return err
	}
	return fmt.Errorf("%s: %w", pos, err)
}
