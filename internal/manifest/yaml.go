package manifest

import (
	"gopkg.in/yaml.v3"

	"github.com/roach88/nimbus/internal/ir"
)

// ParseYAML compiles a YAML manifest. An empty document is an empty
// manifest.
func ParseYAML(filename string, src []byte) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error(), Pos: Position{Filename: filename}}
	}
	if len(doc.Content) == 0 {
		return &Manifest{}, nil
	}
	return compile(yamlNode{n: doc.Content[0], file: filename, path: "$"})
}

type yamlNode struct {
	n    *yaml.Node
	file string
	path string
}

func (y yamlNode) fields() ([]field, error) {
	n := y.resolved()
	if n.Kind != yaml.MappingNode {
		return nil, compileErr(y.path, y, typeErr("a mapping", n.Tag))
	}
	out := make([]field, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		out = append(out, field{
			key: key,
			val: yamlNode{n: n.Content[i+1], file: y.file, path: y.path + "." + key},
		})
	}
	return out, nil
}

func (y yamlNode) str() (string, error) {
	n := y.resolved()
	if n.Kind != yaml.ScalarNode || n.Tag != "!!str" {
		return "", compileErr(y.path, y, typeErr("a string", n.Tag))
	}
	return n.Value, nil
}

func (y yamlNode) value() (ir.Value, error) {
	var raw any
	if err := y.resolved().Decode(&raw); err != nil {
		return nil, err
	}
	return ir.FromGo(raw)
}

func (y yamlNode) pos() Position {
	return Position{Filename: y.file, Line: y.n.Line, Column: y.n.Column}
}

func (y yamlNode) resolved() *yaml.Node {
	if y.n.Kind == yaml.AliasNode && y.n.Alias != nil {
		return y.n.Alias
	}
	return y.n
}
