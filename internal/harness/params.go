package harness

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nimbus/internal/ir"
)

// Params is a YAML mapping decoded into a ParameterSet in document order.
type Params ir.ParameterSet

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: parameters must be a mapping", node.Line)
	}
	ps := make(ir.ParameterSet, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var raw any
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return fmt.Errorf("line %d: %s: %w", node.Content[i].Line, key, err)
		}
		v, err := ir.FromGo(raw)
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", node.Content[i].Line, key, err)
		}
		ps = append(ps, ir.P(key, v))
	}
	if err := ps.Validate(); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*p = Params(ps)
	return nil
}

// Set returns the parameters as an ir.ParameterSet.
func (p Params) Set() ir.ParameterSet {
	return ir.ParameterSet(p)
}
