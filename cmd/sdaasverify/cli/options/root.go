package options

import (
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tv42/jog"
)

// DefaultTimeout bounds the network work of a single command.
const DefaultTimeout = 30 * time.Second

// RootOptions are available to every subcommand.
type RootOptions struct {
	Debug   bool
	Timeout time.Duration
}

var _ Interface = (*RootOptions)(nil)

func (o *RootOptions) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&o.Debug, "debug", false,
		"log structured debug events to stderr")
	cmd.PersistentFlags().DurationVarP(&o.Timeout, "timeout", "t", DefaultTimeout,
		"timeout for network operations")
}

// NewLogger returns an event log writing to w when --debug is set, else nil.
func (o *RootOptions) NewLogger(w io.Writer) *jog.Logger {
	if !o.Debug {
		return nil
	}
	return jog.New(&jog.Config{Out: w})
}
