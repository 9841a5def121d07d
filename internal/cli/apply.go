package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nimbus/internal/manifest"
	"github.com/roach88/nimbus/internal/retry"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	DryRun bool
}

// ApplySummary is the data of "apply".
type ApplySummary struct {
	File     string   `json:"file"`
	DryRun   bool     `json:"dryRun,omitempty"`
	Packages []string `json:"packages"`
	Actions  []string `json:"actions"`
	Bindings []string `json:"bindings"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <manifest>",
		Short: "Create or update entities from a YAML or CUE manifest",
		Long: `Create or update the packages, actions and bindings a manifest declares.

Entities are written with update semantics: packages first, then
actions, then bindings. The first failing declaration stops the apply;
entities already written stay written.

Exit codes:
  0 - Manifest applied
  1 - A declaration was rejected
  2 - Command error (unreadable or invalid manifest, unreachable backend)

Examples:
  nimbus apply weather.yaml
  nimbus apply weather.cue --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyManifest(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate the manifest without writing")
	return cmd
}

func applyManifest(opts *ApplyOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	m, err := manifest.LoadFile(path)
	if err != nil {
		_ = f.Error(ErrCodeManifest, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "invalid manifest", Err: err, Reported: true}
	}

	if opts.DryRun {
		summary := ApplySummary{File: path, DryRun: true}
		for _, d := range m.Packages {
			summary.Packages = append(summary.Packages, d.Name)
		}
		for _, d := range m.Actions {
			summary.Actions = append(summary.Actions, d.Name)
		}
		for _, d := range m.Bindings {
			summary.Bindings = append(summary.Bindings, d.Name)
		}
		return f.Success(summary, func(w io.Writer) { writeApplySummary(w, summary) })
	}

	rt, err := openRuntime(cmd.Context(), opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	policy := retry.Default()
	policy.Logger = rt.logger

	res, err := m.Apply(cmd.Context(), rt.manager, opts.Config.Namespace, policy)
	if err != nil {
		return f.Fail(err)
	}
	summary := ApplySummary{
		File:     path,
		Packages: res.Packages,
		Actions:  res.Actions,
		Bindings: res.Bindings,
	}
	return f.Success(summary, func(w io.Writer) { writeApplySummary(w, summary) })
}

func writeApplySummary(w io.Writer, s ApplySummary) {
	done := "applied"
	if s.DryRun {
		done = "validated"
	}
	fmt.Fprintf(w, "ok: %s %s (%d packages, %d actions, %d bindings)\n",
		done, s.File, len(s.Packages), len(s.Actions), len(s.Bindings))
	for _, name := range s.Packages {
		fmt.Fprintf(w, "  package %s\n", name)
	}
	for _, name := range s.Actions {
		fmt.Fprintf(w, "  action  %s\n", name)
	}
	for _, name := range s.Bindings {
		fmt.Fprintf(w, "  binding %s\n", name)
	}
}
