package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/roach88/nimbus/internal/ir"
)

// paramFlags holds the -p/--param, -a/--annotation and --param-file flags
// shared by commands that accept parameters.
type paramFlags struct {
	params      []string
	annotations []string
	paramFile   string
}

func (p *paramFlags) register(cmd *cobra.Command, annotations bool) {
	cmd.Flags().StringArrayVarP(&p.params, "param", "p", nil,
		"parameter as key=value or \"-p key value\"; the value is parsed as JSON, else taken as a string (repeatable)")
	cmd.Flags().StringVarP(&p.paramFile, "param-file", "P", "", "JSON file of parameters (object or [{key,value}] list)")
	if annotations {
		cmd.Flags().StringArrayVarP(&p.annotations, "annotation", "a", nil,
			"annotation as key=value or \"-a key value\" (repeatable)")
	}
}

// Parameters returns the file's parameters overridden by -p flags, in
// first-seen order. A key repeated on the command line is an error.
func (p *paramFlags) Parameters() (ir.ParameterSet, error) {
	var base ir.ParameterSet
	if p.paramFile != "" {
		data, err := os.ReadFile(p.paramFile)
		if err != nil {
			return nil, fmt.Errorf("read param file: %w", err)
		}
		if err := json.Unmarshal(data, &base); err != nil {
			return nil, fmt.Errorf("param file %s: %w", p.paramFile, err)
		}
	}
	flagParams, err := parsePairs("param", p.params)
	if err != nil {
		return nil, err
	}
	return ir.Merge(base, flagParams), nil
}

// Annotations returns the -a flags as a ParameterSet.
func (p *paramFlags) Annotations() (ir.ParameterSet, error) {
	return parsePairs("annotation", p.annotations)
}

func parsePairs(flag string, pairs []string) (ir.ParameterSet, error) {
	ps := make(ir.ParameterSet, 0, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--%s %q: want key=value", flag, pair)
		}
		ps = append(ps, ir.P(key, ir.ParseLiteral(raw)))
	}
	if err := ps.Validate(); err != nil {
		return nil, ir.NewInvalidArgumentError(ir.KindTarget, flag, err)
	}
	return ps, nil
}

// pairFlags are the flags that also accept the two-argument form.
var pairFlags = map[string]bool{
	"-p": true, "--param": true,
	"-a": true, "--annotation": true,
}

// NormalizeArgs rewrites the two-argument form "-p key value" into
// "-p key=value" so the flag parser sees one value. A token after -p that
// already contains '=' is left alone, as is a key followed by another flag.
// Arguments after "--" are untouched.
func NormalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i:]...)
		}
		out = append(out, arg)
		if pairFlags[arg] && i+2 < len(args) && !strings.Contains(args[i+1], "=") && !isFlag(args[i+2]) {
			out = append(out, args[i+1]+"="+args[i+2])
			i += 2
		}
	}
	return out
}

// isFlag reports whether arg is a long flag or a lettered short flag.
// Negative numbers such as "-5" are values.
func isFlag(arg string) bool {
	if strings.HasPrefix(arg, "--") {
		return len(arg) > 2
	}
	return len(arg) > 1 && arg[0] == '-' && unicode.IsLetter(rune(arg[1]))
}
