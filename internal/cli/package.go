package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nimbus/internal/ir"
)

// PackageListing is the data of "package list".
type PackageListing struct {
	Packages []ir.Package `json:"packages"`
	Bindings []ir.Binding `json:"bindings"`
}

// NewPackageCommand creates the package command group.
func NewPackageCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Manage packages and bindings",
		Long: `Manage packages and bindings.

A binding is a package name that refers to another package and layers
its own parameters over the target's. Actions invoked through the
binding inherit both.

Examples:
  nimbus package create weather -p units metric
  nimbus package bind weather myWeather -p apiKey secret
  nimbus package get myWeather
  nimbus package list`,
	}

	cmd.AddCommand(newPackageCreateCommand(rootOpts, false))
	cmd.AddCommand(newPackageCreateCommand(rootOpts, true))
	cmd.AddCommand(newPackageBindCommand(rootOpts))
	cmd.AddCommand(newPackageGetCommand(rootOpts))
	cmd.AddCommand(newPackageDeleteCommand(rootOpts))
	cmd.AddCommand(newPackageListCommand(rootOpts))
	return cmd
}

func newPackageCreateCommand(opts *RootOptions, update bool) *cobra.Command {
	var pf paramFlags
	use, short := "create <name>", "Create a package"
	if update {
		use, short = "update <name>", "Create or replace a package"
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
			p, err := rt.manager.CreatePackage(cmd.Context(), opts.Config.Namespace, args[0], params, annotations, update)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(p, func(w io.Writer) {
				fmt.Fprintf(w, "ok: %s package /%s\n", verb(update), p.Ref())
			})
		},
	}
	pf.register(cmd, true)
	return cmd
}

func newPackageBindCommand(opts *RootOptions) *cobra.Command {
	var (
		pf     paramFlags
		update bool
	)

	cmd := &cobra.Command{
		Use:   "bind <package> <binding>",
		Short: "Bind a package under a new name",
		Long: `Create a binding named <binding> that refers to <package>.

The target may be qualified with a namespace ("/ns/pkg"). Parameters
given here override the target package's parameters for every action
invoked through the binding.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, annotations, err := readParamFlags(&pf)
			if err != nil {
				return err
			}
			ns := opts.Config.Namespace
			target, err := ir.ParseEntityRef(ir.KindPackage, ns, args[0])
			if err != nil {
				return opts.formatter(cmd).Fail(err)
			}

			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			b, err := rt.manager.CreateBinding(cmd.Context(), ns, args[1], target, params, annotations, update)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(b, func(w io.Writer) {
				fmt.Fprintf(w, "ok: %s binding /%s to /%s\n", verb(update), b.Ref(), b.Target)
			})
		},
	}
	pf.register(cmd, true)
	cmd.Flags().BoolVar(&update, "update", false, "replace an existing binding")
	return cmd
}

func newPackageGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Describe a package or binding",
		Long: `Describe a package or binding.

A binding is described with its target's parameters merged under its
own, and lists the target's actions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			d, err := rt.manager.DescribePackage(cmd.Context(), opts.Config.Namespace, args[0])
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(d, func(w io.Writer) { writePackage(w, d) })
		},
	}
}

func newPackageDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a package or binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			if err := rt.manager.DeletePackage(cmd.Context(), opts.Config.Namespace, args[0]); err != nil {
				return f.Fail(err)
			}
			return f.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "ok: deleted package %s\n", args[0])
			})
		},
	}
}

func newPackageListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List packages and bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			f := opts.formatter(cmd)
			ns := opts.Config.Namespace
			pkgs, err := rt.manager.ListPackages(cmd.Context(), ns)
			if err != nil {
				return f.Fail(err)
			}
			bindings, err := rt.manager.ListBindings(cmd.Context(), ns)
			if err != nil {
				return f.Fail(err)
			}

			listing := PackageListing{Packages: pkgs, Bindings: bindings}
			if listing.Packages == nil {
				listing.Packages = []ir.Package{}
			}
			if listing.Bindings == nil {
				listing.Bindings = []ir.Binding{}
			}
			return f.Success(listing, func(w io.Writer) {
				fmt.Fprintf(w, "packages in /%s\n", ns)
				for _, p := range pkgs {
					fmt.Fprintf(w, "  /%s\n", p.Ref())
				}
				for _, b := range bindings {
					fmt.Fprintf(w, "  /%s -> /%s\n", b.Ref(), b.Target)
				}
			})
		},
	}
}

// readParamFlags parses -p and -a. Malformed pairs are command errors.
func readParamFlags(pf *paramFlags) (ir.ParameterSet, ir.ParameterSet, error) {
	params, err := pf.Parameters()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid parameters", err)
	}
	annotations, err := pf.Annotations()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid annotations", err)
	}
	return params, annotations, nil
}

func verb(update bool) string {
	if update {
		return "updated"
	}
	return "created"
}
