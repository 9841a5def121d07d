package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nimbus/internal/ir"
)

// versionInfo is the payload of the version command.
type versionInfo struct {
	Version       string `json:"version"`
	SchemaVersion int    `json:"schema_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nimbus and store schema versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{Version: ir.PlatformVersion, SchemaVersion: ir.SchemaVersion}
			return opts.formatter(cmd).Success(info, func(w io.Writer) {
				fmt.Fprintf(w, "nimbus %s (schema %d)\n", info.Version, info.SchemaVersion)
			})
		},
	}
}
