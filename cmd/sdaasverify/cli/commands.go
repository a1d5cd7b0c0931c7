// Package cli wires the sdaasverify commands.
package cli

import (
	"github.com/spf13/cobra"

	"sdaasverify/cmd/sdaasverify/cli/options"
)

// New builds the root command. Each call has its own option state.
func New() *cobra.Command {
	ro := &options.RootOptions{}

	cmd := &cobra.Command{
		Use:               "sdaasverify",
		Short:             "Independent verification of SDAAS certificate manifests.",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	ro.AddFlags(cmd)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	cmd.AddCommand(Verify(ro))
	cmd.AddCommand(Canonicalize())
	cmd.AddCommand(Vectors())
	cmd.AddCommand(Keys(ro))
	cmd.AddCommand(Serve(ro))
	return cmd
}
