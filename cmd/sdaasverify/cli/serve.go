package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tv42/jog"

	"sdaasverify/cmd/sdaasverify/cli/options"
	"sdaasverify/internal/server"
)

// Serve creates the serve command.
func Serve(ro *options.RootOptions) *cobra.Command {
	o := &options.ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve manifest verification over HTTP.",
		Long: `Serve manifest verification over HTTP.

  POST /v1/verify                 verify an envelope against a supplied key
  GET  /v1/certs/{id}/verify      fetch a certificate and verify it locally
  GET  /healthz                   liveness

Requests are logged as JSON events on stderr.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := jog.New(&jog.Config{Out: cmd.ErrOrStderr()})
			var clientLog *jog.Logger
			if ro.Debug {
				clientLog = log
			}
			client, _, closeCache := o.NewClient(clientLog, cmd.ErrOrStderr())
			defer closeCache()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(client, log).ListenAndServe(ctx, o.Addr)
		},
	}
	o.AddFlags(cmd)
	return cmd
}
