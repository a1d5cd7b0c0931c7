package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sdaasverify/cmd/sdaasverify/cli/options"
)

// Keys creates the keys command group.
func Keys(ro *options.RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect the authority's signing keys and the local key cache.",
	}
	cmd.AddCommand(keysList(ro))
	cmd.AddCommand(keysPins())
	return cmd
}

func keysList(ro *options.RootOptions) *cobra.Command {
	o := &options.AuthorityOptions{}
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch and cache the published signing keys.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := ro.NewLogger(cmd.ErrOrStderr())
			client, store, closeCache := o.NewClient(log, cmd.ErrOrStderr())
			defer closeCache()

			ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
			defer cancel()
			dir, err := client.FetchSigningKeys(ctx)
			if err != nil {
				if store == nil {
					return err
				}
				cached, cerr := store.Directory(client.BaseURL())
				if cerr != nil {
					return err
				}
				cmd.PrintErrf("warning: %v; showing cache from %s\n", err, cached.FetchedAt.Format(time.RFC3339))
				dir = &cached.Directory
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), true, dir)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY ID\tALGORITHM\tSTATUS\tCREATED")
			for _, k := range dir.Keys {
				created := k.CreatedAt
				if created == "" {
					created = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k.KeyID, k.Algorithm, k.Status, created)
			}
			return tw.Flush()
		},
	}
	o.AddFlags(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the directory as JSON")
	return cmd
}

func keysPins() *cobra.Command {
	o := &options.AuthorityOptions{}

	cmd := &cobra.Command{
		Use:   "pins",
		Short: "List the key pins recorded in the local cache.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.NoCache {
				return usageError(errors.New("keys pins reads the key cache; drop --no-cache"))
			}
			store, err := o.OpenStore()
			if err != nil {
				return err
			}
			defer store.Close()
			pins, err := store.Pins()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY ID\tFINGERPRINT\tPINNED AT")
			for _, p := range pins {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.KeyID, p.Fingerprint, p.PinnedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	o.AddFlags(cmd)
	return cmd
}
