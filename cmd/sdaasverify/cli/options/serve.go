package options

import "github.com/spf13/cobra"

const DefaultListenAddr = ":8080"

// ServeOptions configure the serve command.
type ServeOptions struct {
	AuthorityOptions
	Addr string // --addr, SDAAS_LISTEN_ADDR
}

var _ Interface = (*ServeOptions)(nil)

func (o *ServeOptions) AddFlags(cmd *cobra.Command) {
	o.AuthorityOptions.AddFlags(cmd)
	cmd.Flags().StringVar(&o.Addr, "addr", envOr("LISTEN_ADDR", DefaultListenAddr),
		"address to listen on")
}
