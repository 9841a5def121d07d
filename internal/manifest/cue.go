package manifest

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/nimbus/internal/ir"
)

// ParseCUE compiles a CUE manifest.
func ParseCUE(filename string, src []byte) (*Manifest, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileCUE(v)
}

// CompileCUE compiles an already built CUE value.
func CompileCUE(v cue.Value) (*Manifest, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	return compile(cueNode{v})
}

type cueNode struct {
	v cue.Value
}

func (n cueNode) fields() ([]field, error) {
	if n.v.IncompleteKind() != cue.StructKind {
		return nil, compileErr(n.label(), n, typeErr("a struct", n.v.IncompleteKind()))
	}
	iter, err := n.v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []field
	for iter.Next() {
		out = append(out, field{key: iter.Selector().Unquoted(), val: cueNode{iter.Value()}})
	}
	return out, nil
}

func (n cueNode) str() (string, error) {
	s, err := n.v.String()
	if err != nil {
		return "", compileErr(n.label(), n, typeErr("a string", n.v.IncompleteKind()))
	}
	return s, nil
}

func (n cueNode) value() (ir.Value, error) {
	data, err := n.v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return ir.UnmarshalValue(data)
}

func (n cueNode) pos() Position {
	return fromToken(n.v.Pos())
}

func (n cueNode) label() string {
	return n.v.Path().String()
}

func fromToken(p token.Pos) Position {
	if !p.IsValid() {
		return Position{}
	}
	return Position{Filename: p.Filename(), Line: p.Line(), Column: p.Column()}
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     fromToken(positions[0]),
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}
