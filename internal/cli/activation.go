package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nimbus/internal/ir"
)

// NewActivationCommand creates the activation command group.
func NewActivationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activation",
		Short: "Inspect recorded activations",
	}
	cmd.AddCommand(newActivationGetCommand(rootOpts))
	cmd.AddCommand(newActivationListCommand(rootOpts))
	return cmd
}

func newActivationGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <activation-id>",
		Short: "Show one activation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			act, err := rt.store.GetActivation(cmd.Context(), opts.Config.Namespace, args[0])
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(act, func(w io.Writer) { writeActivation(w, act) })
		},
	}
}

func newActivationListCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent activations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("--limit must not be negative, got %d", limit))
			}
			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			acts, err := rt.store.ListActivations(cmd.Context(), opts.Config.Namespace, limit)
			if err != nil {
				return f.Fail(err)
			}
			if acts == nil {
				acts = []ir.Activation{}
			}
			return f.Success(acts, func(w io.Writer) {
				fmt.Fprintln(w, "activations")
				for _, a := range acts {
					path, _ := a.Annotations.Get(ir.AnnotationPath)
					line := fmt.Sprintf("  %s %s %s", a.ActivationID, ir.ToGo(path), a.Response.Status)
					if b, ok := a.Binding(); ok {
						line += " via " + b
					}
					fmt.Fprintln(w, line)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 30, "maximum number of activations (0 for all)")
	return cmd
}
