package keydir

import (
	"path/filepath"

	"github.com/Wessie/appdirs"
)

// DefaultPath is the per-user cache location of the key store.
func DefaultPath() string {
	return filepath.Join(appdirs.UserCacheDir("sdaasverify", "sdaas", "", false), "keys.db")
}
