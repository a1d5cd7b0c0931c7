package options

import (
	"io"
	"time"

	"github.com/boltdb/bolt"
	"github.com/spf13/cobra"
	"github.com/tv42/jog"

	"sdaasverify/internal/authority"
	"sdaasverify/internal/keydir"
)

// AuthorityOptions select the certificate authority and the local key cache.
type AuthorityOptions struct {
	BaseURL  string // --base-url, SDAAS_BASE_URL
	KeyCache string // --key-cache, SDAAS_KEY_CACHE
	NoCache  bool   // --no-cache
}

var _ Interface = (*AuthorityOptions)(nil)

func (o *AuthorityOptions) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.BaseURL, "base-url", envOr("BASE_URL", authority.DefaultBaseURL),
		"certificate authority base URL")
	cmd.Flags().StringVar(&o.KeyCache, "key-cache", envOr("KEY_CACHE", keydir.DefaultPath()),
		"path of the signing key cache")
	cmd.Flags().BoolVar(&o.NoCache, "no-cache", false,
		"do not read or write the signing key cache")
}

// OpenStore opens the key cache. With --no-cache it returns nil and no error.
func (o *AuthorityOptions) OpenStore() (*keydir.Store, error) {
	if o.NoCache {
		return nil, nil
	}
	return keydir.Open(o.KeyCache, &bolt.Options{Timeout: time.Second})
}

type cacheUnavailable struct {
	Path  string
	Error string
}

// NewClient builds an authority client. A key cache that cannot be opened is
// logged and skipped, leaving the returned store nil. The returned close func
// releases the cache.
func (o *AuthorityOptions) NewClient(log *jog.Logger, warn io.Writer) (*authority.Client, *keydir.Store, func()) {
	opts := []authority.Option{authority.WithLogger(log)}
	closeFn := func() {}
	store, err := o.OpenStore()
	switch {
	case err != nil:
		if log != nil {
			log.Event(cacheUnavailable{Path: o.KeyCache, Error: err.Error()})
		}
		io.WriteString(warn, "warning: key cache unavailable: "+err.Error()+"\n")
	case store != nil:
		opts = append(opts, authority.WithKeyStore(store))
		closeFn = func() { store.Close() }
	}
	return authority.NewClient(o.BaseURL, opts...), store, closeFn
}
