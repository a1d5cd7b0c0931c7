package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sdaasverify/cmd/sdaasverify/cli/options"
	"sdaasverify/internal/bundle"
	"sdaasverify/internal/manifest"
)

// Verify creates the verify command.
func Verify(ro *options.RootOptions) *cobra.Command {
	o := &options.VerifyOptions{}

	long := `Verify a signed certificate manifest.

With MANIFEST and a key (KEY as keypair.json or a PEM file, or --key-pem), the
local manifest is verified against that key. A MANIFEST that is a directory or
a .zip file is read as a bundle holding manifest.json and its key material.

Without MANIFEST, the manifest of --cert-id (or SDAAS_CERT_ID) is fetched from
the authority together with the published signing keys and verified locally.

The result is printed as JSON. The exit code is 0 when the manifest verified,
1 when it was rejected and 2 on usage errors.`

	cmd := &cobra.Command{
		Use:   "verify [MANIFEST] [KEY]",
		Short: "Verify a manifest file, bundle or live certificate.",
		Long:  long,
		Args:  usageArgs(cobra.MaximumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runVerify(cmd, ro, o, args)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), o.Pretty, manifest.ReportOf(res)); err != nil {
				return err
			}
			if !res.OK() {
				return &ExitError{Code: ExitRejected}
			}
			return nil
		},
	}

	o.AddFlags(cmd)
	return cmd
}

func runVerify(cmd *cobra.Command, ro *options.RootOptions, o *options.VerifyOptions, args []string) (manifest.Result, error) {
	var manifestPath, keyPath string
	if len(args) > 0 {
		manifestPath = args[0]
	}
	if len(args) > 1 {
		keyPath = args[1]
	} else {
		keyPath = o.KeyPEM
	}

	switch {
	case manifestPath != "" && bundle.IsBundle(manifestPath):
		return bundle.VerifyBundle(manifestPath, o.ExpectedKeyID)

	case manifestPath != "":
		if keyPath == "" {
			return nil, usageErrorf("provide keypair.json or --key-pem when verifying a local manifest")
		}
		pem, err := bundle.LoadKeyFile(keyPath)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			return nil, manifest.Wrap("MANIFEST_READ", err, "failed to read manifest")
		}
		return manifest.VerifyJSON(data, pem, o.ExpectedKeyID), nil

	case o.CertID != "":
		client, _, closeCache := o.NewClient(ro.NewLogger(cmd.ErrOrStderr()), cmd.ErrOrStderr())
		defer closeCache()
		ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
		defer cancel()
		v, err := client.FetchAndVerify(ctx, o.CertID, o.ExpectedKeyID)
		if err != nil {
			return nil, err
		}
		if v.KeysFromCache {
			cmd.PrintErrf("warning: signing keys unavailable, using cache from %s\n", v.KeysFetchedAt.Format(time.RFC3339))
		}
		return v.Result, nil
	}
	return nil, usageErrorf("provide a manifest file path or set SDAAS_CERT_ID")
}
