package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sdaasverify/internal/manifest"
)

// Canonicalize creates the canonicalize command.
func Canonicalize() *cobra.Command {
	var digest bool

	cmd := &cobra.Command{
		Use:   "canonicalize FILE",
		Short: "Print the canonical bytes a manifest signature covers.",
		Long: `Print the canonical encoding of FILE. When FILE is a manifest envelope
the payload is encoded, otherwise the whole object is.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return manifest.Wrap("INPUT_READ", err, "failed to read input")
			}
			v, err := manifest.ParseJSON(b)
			if err != nil {
				return manifest.Contextf(err, "%s", args[0])
			}
			obj, ok := v.(manifest.Object)
			if !ok {
				return manifest.Errf("INPUT_TYPE", "%s: expected a JSON object, got %s", args[0], v.Kind())
			}
			if env, err := manifest.ValidateEnvelope(obj); err == nil {
				obj = env.Payload
			} else if payload, ok := obj["payload"].(manifest.Object); ok && obj["schema_version"] != nil {
				obj = payload
			}

			canon := manifest.Canonicalize(obj)
			if digest {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), manifest.SHA256Hex(canon))
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(canon); err != nil {
				return err
			}
			_, err = out.Write([]byte("\n"))
			return err
		},
	}
	cmd.Flags().BoolVar(&digest, "digest", false, "print the hex SHA-256 of the canonical bytes instead")
	return cmd
}
