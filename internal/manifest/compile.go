package manifest

import (
	"fmt"
	"path"

	"github.com/roach88/nimbus/internal/ir"
)

// node is one value of a parsed manifest document, CUE or YAML.
type node interface {
	// fields returns a mapping's entries in source order.
	fields() ([]field, error)
	str() (string, error)
	value() (ir.Value, error)
	pos() Position
}

type field struct {
	key string
	val node
}

func compile(root node) (*Manifest, error) {
	top, err := root.fields()
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	for _, f := range top {
		switch f.key {
		case "namespace":
			if m.Namespace, err = f.val.str(); err != nil {
				return nil, err
			}
			if err := ir.ValidateName("namespace", m.Namespace); err != nil {
				return nil, compileErr("namespace", f.val, err.Error())
			}
		case "packages":
			err = eachEntry(f.val, func(name string, n node) error {
				return compilePackage(m, name, n)
			})
		case "bindings":
			err = eachEntry(f.val, func(name string, n node) error {
				return compileBinding(m, name, n)
			})
		case "actions":
			err = eachEntry(f.val, func(name string, n node) error {
				return compileAction(m, "", name, n)
			})
		default:
			return nil, compileErr(f.key, f.val, "unknown section (want namespace, packages, bindings or actions)")
		}
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func eachEntry(n node, fn func(name string, n node) error) error {
	entries, err := n.fields()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e.key, e.val); err != nil {
			return err
		}
	}
	return nil
}

func compilePackage(m *Manifest, name string, n node) error {
	d := PackageDecl{Name: name, Pos: n.pos()}
	var nested []field

	err := eachEntry(n, func(key string, v node) error {
		var err error
		switch key {
		case "parameters":
			d.Parameters, err = compileParams("packages."+name+".parameters", v)
		case "annotations":
			d.Annotations, err = compileParams("packages."+name+".annotations", v)
		case "actions":
			nested, err = v.fields()
		default:
			err = compileErr("packages."+name+"."+key, v, "unknown field")
		}
		return err
	})
	if err != nil {
		return err
	}

	m.Packages = append(m.Packages, d)
	for _, f := range nested {
		if err := compileAction(m, name, f.key, f.val); err != nil {
			return err
		}
	}
	return nil
}

func compileBinding(m *Manifest, name string, n node) error {
	d := BindingDecl{Name: name, Pos: n.pos()}

	err := eachEntry(n, func(key string, v node) error {
		var err error
		switch key {
		case "package":
			d.Package, err = v.str()
		case "parameters":
			d.Parameters, err = compileParams("bindings."+name+".parameters", v)
		case "annotations":
			d.Annotations, err = compileParams("bindings."+name+".annotations", v)
		default:
			err = compileErr("bindings."+name+"."+key, v, "unknown field")
		}
		return err
	})
	if err != nil {
		return err
	}
	if d.Package == "" {
		return compileErr("bindings."+name+".package", n, "package is required")
	}

	m.Bindings = append(m.Bindings, d)
	return nil
}

func compileAction(m *Manifest, pkg, name string, n node) error {
	qualified := name
	if pkg != "" {
		qualified = path.Join(pkg, name)
	}
	prefix := "actions." + qualified
	d := ActionDecl{Name: qualified, Pos: n.pos()}

	err := eachEntry(n, func(key string, v node) error {
		var err error
		switch key {
		case "kind":
			d.Exec.Kind, err = v.str()
		case "code":
			d.Exec.Code, err = v.str()
		case "parameters":
			d.Parameters, err = compileParams(prefix+".parameters", v)
		case "annotations":
			d.Annotations, err = compileParams(prefix+".annotations", v)
		default:
			err = compileErr(prefix+"."+key, v, "unknown field")
		}
		return err
	})
	if err != nil {
		return err
	}
	if d.Exec.Kind == "" {
		d.Exec.Kind = ir.DefaultExecKind
	}

	m.Actions = append(m.Actions, d)
	return nil
}

func compileParams(fieldPath string, n node) (ir.ParameterSet, error) {
	entries, err := n.fields()
	if err != nil {
		return nil, err
	}
	ps := make(ir.ParameterSet, 0, len(entries))
	for _, e := range entries {
		v, err := e.val.value()
		if err != nil {
			return nil, compileErr(fieldPath+"."+e.key, e.val, err.Error())
		}
		ps = append(ps, ir.P(e.key, v))
	}
	if err := ps.Validate(); err != nil {
		return nil, compileErr(fieldPath, n, err.Error())
	}
	return ps, nil
}

func compileErr(fieldPath string, n node, msg string) *CompileError {
	return &CompileError{Field: fieldPath, Message: msg, Pos: n.pos()}
}

func typeErr(want string, got any) string {
	return fmt.Sprintf("expected %s, got %v", want, got)
}
