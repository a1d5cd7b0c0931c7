// Package options defines the command-line options and flags for the
// sdaasverify CLI.
package options

import (
	"os"

	"github.com/spf13/cobra"
)

// EnvPrefix is the prefix of environment variables that configure the CLI.
const EnvPrefix = "SDAAS_"

// Interface is implemented by every options struct.
type Interface interface {
	AddFlags(cmd *cobra.Command)
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
		return v
	}
	return def
}
