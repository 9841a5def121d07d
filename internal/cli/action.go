package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nimbus/internal/ir"
)

// NewActionCommand creates the action command group.
func NewActionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Manage actions",
		Long: `Manage actions.

Actions live at the top level of a namespace ("hello") or in a literal
package ("weather/forecast"). An action cannot be created in a binding,
but "get" accepts a path through one and reports the parameters an
invocation along that path would receive.

Examples:
  nimbus action create weather/forecast --kind echo -p days 3
  nimbus action get myWeather/forecast
  nimbus action list weather`,
	}

	cmd.AddCommand(newActionCreateCommand(rootOpts, false))
	cmd.AddCommand(newActionCreateCommand(rootOpts, true))
	cmd.AddCommand(newActionGetCommand(rootOpts))
	cmd.AddCommand(newActionDeleteCommand(rootOpts))
	cmd.AddCommand(newActionListCommand(rootOpts))
	return cmd
}

func newActionCreateCommand(opts *RootOptions, update bool) *cobra.Command {
	var (
		pf   paramFlags
		exec ir.Exec
	)
	use, short := "create <[package/]name>", "Create an action"
	if update {
		use, short = "update <[package/]name>", "Create or replace an action"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, annotations, err := readParamFlags(&pf)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			a, err := rt.manager.CreateAction(cmd.Context(), opts.Config.Namespace, args[0], exec, params, annotations, update)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(a, func(w io.Writer) {
				fmt.Fprintf(w, "ok: %s action /%s\n", verb(update), a.Ref())
			})
		},
	}
	pf.register(cmd, true)
	cmd.Flags().StringVar(&exec.Kind, "kind", ir.DefaultExecKind, "executor kind")
	cmd.Flags().StringVar(&exec.Code, "code", "", "action code, passed to the executor")
	return cmd
}

func newActionGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <[package/]name>",
		Short: "Describe an action with its effective parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			d, err := rt.manager.DescribeAction(cmd.Context(), opts.Config.Namespace, args[0])
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(d, func(w io.Writer) { writeAction(w, d) })
		},
	}
}

func newActionDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <[package/]name>",
		Short: "Delete an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			if err := rt.manager.DeleteAction(cmd.Context(), opts.Config.Namespace, args[0]); err != nil {
				return f.Fail(err)
			}
			return f.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "ok: deleted action %s\n", args[0])
			})
		},
	}
}

func newActionListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [package]",
		Short: "List actions in the namespace or a package",
		Long: `List actions in the namespace or in one package. Listing a binding
lists its target package's actions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pkg string
			if len(args) == 1 {
				pkg = args[0]
			}
			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			actions, err := rt.manager.ListActions(cmd.Context(), opts.Config.Namespace, pkg)
			if err != nil {
				return f.Fail(err)
			}
			if actions == nil {
				actions = []ir.Action{}
			}
			return f.Success(actions, func(w io.Writer) {
				fmt.Fprintln(w, "actions")
				for _, a := range actions {
					fmt.Fprintf(w, "  /%s (%s)\n", a.Ref(), a.Exec.Kind)
				}
			})
		},
	}
}
