package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	params paramFlags
	Result bool // print only the response result
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <[/namespace/][package/]action>",
		Short: "Invoke an action and record its activation",
		Long: `Invoke an action and record its activation.

The action runs with its package's parameters, overridden by the
binding's when the qualifying segment names a binding, overridden by
the action's own, overridden by -p arguments. An activation reached
through a binding carries a "binding" annotation naming it.

Examples:
  nimbus invoke hello -p name world
  nimbus invoke myWeather/forecast
  nimbus invoke /guest/weather/forecast --result`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeAction(opts, args[0], cmd)
		},
	}

	opts.params.register(cmd, false)
	cmd.Flags().BoolVarP(&opts.Result, "result", "r", false, "print only the activation result")
	return cmd
}

func invokeAction(opts *InvokeOptions, target string, cmd *cobra.Command) error {
	params, _, err := readParamFlags(&opts.params)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd.Context(), opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	f := opts.formatter(cmd)
	act, err := rt.invoker.Invoke(cmd.Context(), opts.Config.Namespace, target, params)
	if err != nil {
		return f.Fail(err)
	}
	f.VerboseLog("activation %s digest %s", act.ActivationID, act.Digest)

	if opts.Result {
		return f.Success(act.Response.Result, func(w io.Writer) {
			fmt.Fprintln(w, valueString(act.Response.Result))
		})
	}
	if err := f.Success(act, func(w io.Writer) { writeActivation(w, act) }); err != nil {
		return err
	}
	if !act.Response.Success {
		return &ExitError{Code: ExitFailure, Message: "activation failed: " + act.Response.Status, Reported: true}
	}
	return nil
}
