package options

import "github.com/spf13/cobra"

// VerifyOptions configure the verify command.
type VerifyOptions struct {
	AuthorityOptions
	KeyPEM        string // --key-pem
	ExpectedKeyID string // --expected-key-id, SDAAS_EXPECTED_KEY_ID
	CertID        string // --cert-id, SDAAS_CERT_ID
	Pretty        bool   // --pretty
}

var _ Interface = (*VerifyOptions)(nil)

func (o *VerifyOptions) AddFlags(cmd *cobra.Command) {
	o.AuthorityOptions.AddFlags(cmd)
	cmd.Flags().StringVar(&o.KeyPEM, "key-pem", "",
		"path to a PEM public key or keypair.json (alternative to the positional argument)")
	_ = cmd.MarkFlagFilename("key-pem", "pem", "json")
	cmd.Flags().StringVar(&o.ExpectedKeyID, "expected-key-id", envOr("EXPECTED_KEY_ID", ""),
		"require signature.key_id to equal this value")
	cmd.Flags().StringVar(&o.CertID, "cert-id", envOr("CERT_ID", ""),
		"certificate to fetch and verify when no manifest path is given")
	cmd.Flags().BoolVar(&o.Pretty, "pretty", false,
		"indent the JSON result")
}
