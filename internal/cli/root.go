package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/nimbus/internal/config"
	"github.com/roach88/nimbus/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Namespace string
	Backend   string
	DBPath    string
	RedisAddr string

	// Config is the environment configuration the flags default from.
	// Flag values are copied back into it before each command runs.
	Config config.Config

	configErr error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nimbus CLI.
func NewRootCommand() *cobra.Command {
	cfg, cfgErr := config.Load()
	opts := &RootOptions{Config: cfg, configErr: cfgErr}

	cmd := &cobra.Command{
		Use:   "nimbus",
		Short: "nimbus - packages, bindings and actions",
		Long: `Manage packages, bindings and actions, and invoke actions with
parameters inherited from their package and the binding they were
reached through.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment configuration", opts.configErr)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.Config.Backend = opts.Backend
			opts.Config.DBPath = opts.DBPath
			opts.Config.Namespace = opts.Namespace
			opts.Config.RedisAddr = opts.RedisAddr
			if err := opts.Config.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.Namespace, "namespace", "n", cfg.Namespace, "default namespace ($NIMBUS_NAMESPACE)")
	flags.StringVar(&opts.Backend, "backend", cfg.Backend, "store backend: sqlite, memory or redis ($NIMBUS_BACKEND)")
	flags.StringVar(&opts.DBPath, "db", cfg.DBPath, "SQLite database path ($NIMBUS_DB)")
	flags.StringVar(&opts.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address ($NIMBUS_REDIS_ADDR)")

	// Add subcommands
	cmd.AddCommand(NewPackageCommand(opts))
	cmd.AddCommand(NewActionCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewActivationCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger builds the diagnostic logger. --verbose forces debug level; the
// log format follows --format.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level, err := logging.ParseLevel(o.Config.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	format := logging.FormatText
	if o.Format == "json" {
		format = logging.FormatJSON
	}
	return logging.New(level, format, cmd.ErrOrStderr())
}
