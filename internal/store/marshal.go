package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/nimbus/internal/ir"
)

// marshalParams converts a ParameterSet to canonical JSON TEXT for storage.
// The list form keeps parameter order.
func marshalParams(ps ir.ParameterSet) (string, error) {
	if ps == nil {
		ps = ir.ParameterSet{}
	}
	data, err := ir.MarshalCanonical(ps)
	if err != nil {
		return "", fmt.Errorf("marshal parameters: %w", err)
	}
	return string(data), nil
}

// unmarshalParams parses stored parameter TEXT. The result is never nil.
func unmarshalParams(data string) (ir.ParameterSet, error) {
	if data == "" || data == "[]" {
		return ir.ParameterSet{}, nil
	}
	var ps ir.ParameterSet
	if err := json.Unmarshal([]byte(data), &ps); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return ps, nil
}

// marshalResult converts an activation result to canonical JSON TEXT.
func marshalResult(result ir.Object) (string, error) {
	if result == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// unmarshalResult parses canonical JSON TEXT to an Object.
// Object.UnmarshalJSON handles large integers via json.Number.
func unmarshalResult(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return obj, nil
}

func marshalLogs(logs []string) (string, error) {
	if logs == nil {
		logs = []string{}
	}
	data, err := json.Marshal(logs)
	if err != nil {
		return "", fmt.Errorf("marshal logs: %w", err)
	}
	return string(data), nil
}

func unmarshalLogs(data string) ([]string, error) {
	logs := []string{}
	if data == "" {
		return logs, nil
	}
	if err := json.Unmarshal([]byte(data), &logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	return logs, nil
}
