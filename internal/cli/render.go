package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
)

// valueString renders a value as compact JSON.
func valueString(v ir.Value) string {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func writeParams(w io.Writer, title string, ps ir.ParameterSet) {
	if ps.Len() == 0 {
		fmt.Fprintf(w, "%s: (none)\n", title)
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, p := range ps {
		fmt.Fprintf(w, "  %s: %s\n", p.Key, valueString(p.Value))
	}
}

func writePackage(w io.Writer, d entity.PackageDescription) {
	fmt.Fprintf(w, "package /%s/%s (%s)\n", d.Namespace, d.Name, d.Version)
	if d.Binding != nil {
		fmt.Fprintf(w, "binding: /%s\n", d.Binding.String())
	}
	writeParams(w, "parameters", d.Parameters)
	writeParams(w, "annotations", d.Annotations)
	if len(d.Actions) == 0 {
		fmt.Fprintln(w, "actions: (none)")
		return
	}
	fmt.Fprintf(w, "actions: %s\n", strings.Join(d.Actions, ", "))
}

func writeAction(w io.Writer, d entity.ActionDescription) {
	fmt.Fprintf(w, "action /%s (%s)\n", d.Path, d.Version)
	fmt.Fprintf(w, "kind: %s\n", d.Exec.Kind)
	fmt.Fprintf(w, "resolution: %s\n", d.Kind)
	if d.Binding != "" {
		fmt.Fprintf(w, "binding: /%s\n", d.Binding)
	}
	writeParams(w, "parameters", d.Parameters)
	writeParams(w, "annotations", d.Annotations)
}

func writeActivation(w io.Writer, a ir.Activation) {
	fmt.Fprintf(w, "activation %s\n", a.ActivationID)
	if v, ok := a.Annotations.Get(ir.AnnotationPath); ok {
		fmt.Fprintf(w, "path: /%s\n", ir.ToGo(v))
	}
	if b, ok := a.Binding(); ok {
		fmt.Fprintf(w, "binding: /%s\n", b)
	}
	fmt.Fprintf(w, "status: %s\n", a.Response.Status)
	fmt.Fprintf(w, "result: %s\n", valueString(a.Response.Result))
	fmt.Fprintf(w, "duration: %dms\n", a.End-a.Start)
	for _, line := range a.Logs {
		fmt.Fprintf(w, "log: %s\n", line)
	}
}
