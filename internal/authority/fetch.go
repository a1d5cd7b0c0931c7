package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"sdaasverify/internal/keydir"
	"sdaasverify/internal/manifest"
)

const CodeKeyPinMismatch = "KEY_PIN_MISMATCH"

// VerifyStatus is the authority's own view of a certificate.
type VerifyStatus struct {
	CertID            string  `json:"cert_id"`
	Verified          bool    `json:"verified"`
	Status            *string `json:"status"`
	SignatureVerified *bool   `json:"signature_verified"`
	Alg               *string `json:"alg"`
	KeyID             *string `json:"key_id"`
	CheckedAt         string  `json:"checked_at"`
}

// FetchManifest fetches the signed envelope of certID.
func (c *Client) FetchManifest(ctx context.Context, certID string) (manifest.Value, error) {
	body, err := c.get(ctx, "/api/cert/"+url.PathEscape(certID)+"/manifest", ManifestContentType)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s: %w", certID, err)
	}
	v, err := manifest.ParseJSON(body)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s: %w", certID, err)
	}
	return v, nil
}

// FetchSigningKeys fetches the authority's key directory. With a key store
// the directory is also written to the cache.
func (c *Client) FetchSigningKeys(ctx context.Context) (*keydir.Directory, error) {
	body, err := c.get(ctx, "/.well-known/signing-keys.json", "application/json")
	if err != nil {
		return nil, fmt.Errorf("fetch signing keys: %w", err)
	}
	dir, err := keydir.ParseDirectory(body)
	if err != nil {
		return nil, fmt.Errorf("fetch signing keys: %w", err)
	}
	if c.store != nil {
		if err := c.store.PutDirectory(c.baseURL, dir); err != nil {
			c.event(cacheEvent{Op: "put", BaseURL: c.baseURL, Error: err.Error()})
		}
	}
	return dir, nil
}

// FetchVerifyStatus fetches the authority's verification status for certID.
func (c *Client) FetchVerifyStatus(ctx context.Context, certID string) (*VerifyStatus, error) {
	body, err := c.get(ctx, "/verify/"+url.PathEscape(certID)+"/status", "application/json")
	if err != nil {
		return nil, fmt.Errorf("fetch verify status %s: %w", certID, err)
	}
	var st VerifyStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("fetch verify status %s: %w", certID, err)
	}
	return &st, nil
}

type cacheEvent struct {
	Op       string
	BaseURL  string
	Age      string `json:",omitempty"`
	KeyCount int    `json:",omitempty"`
	Error    string `json:",omitempty"`
}

// Verification is the outcome of FetchAndVerify.
type Verification struct {
	CertID   string
	Envelope manifest.Value
	Result   manifest.Result
	// KeysFromCache is set when the key directory came from the local
	// cache because the authority could not be reached.
	KeysFromCache bool
	KeysFetchedAt time.Time
}

// FetchAndVerify fetches the manifest and the key directory concurrently,
// picks the envelope's signing key and verifies the envelope locally.
// Nothing the authority says about validity is trusted.
//
// Fetch failures are errors. A missing, inactive or re-keyed signing key is a
// Rejected result.
func (c *Client) FetchAndVerify(ctx context.Context, certID, expectedKeyID string) (*Verification, error) {
	var (
		wg      sync.WaitGroup
		env     manifest.Value
		envErr  error
		dir     *keydir.Directory
		dirErr  error
		fetched = time.Now().UTC()
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		env, envErr = c.FetchManifest(ctx, certID)
	}()
	go func() {
		defer wg.Done()
		dir, dirErr = c.FetchSigningKeys(ctx)
	}()
	wg.Wait()

	if envErr != nil {
		return nil, envErr
	}
	out := &Verification{CertID: certID, Envelope: env}
	if dirErr != nil {
		cached, err := c.cachedDirectory(dirErr)
		if err != nil {
			return nil, err
		}
		dir = &cached.Directory
		fetched = cached.FetchedAt
		out.KeysFromCache = true
	}
	out.KeysFetchedAt = fetched
	out.Result = c.verifyWith(dir, env, expectedKeyID)
	return out, nil
}

// cachedDirectory falls back to the key store after a failed key fetch. The
// fetch error is returned when there is no usable cache.
func (c *Client) cachedDirectory(fetchErr error) (*keydir.CachedDirectory, error) {
	if c.store == nil {
		return nil, fetchErr
	}
	cached, err := c.store.Directory(c.baseURL)
	if err != nil {
		if !errors.Is(err, keydir.ErrNotCached) {
			c.event(cacheEvent{Op: "get", BaseURL: c.baseURL, Error: err.Error()})
		}
		return nil, fetchErr
	}
	c.event(cacheEvent{
		Op:       "fallback",
		BaseURL:  c.baseURL,
		Age:      time.Since(cached.FetchedAt).Round(time.Second).String(),
		KeyCount: len(cached.Directory.Keys),
		Error:    fetchErr.Error(),
	})
	return cached, nil
}

func (c *Client) verifyWith(dir *keydir.Directory, env manifest.Value, expectedKeyID string) manifest.Result {
	res := dir.Verify(env, expectedKeyID)
	v, ok := res.(manifest.Verified)
	if !ok || c.store == nil {
		return res
	}
	keyID := ""
	if v.KeyID != nil {
		keyID = *v.KeyID
	}
	pem, err := dir.Resolve(keyID)
	if err != nil {
		return res
	}
	if _, err := c.store.Pin(keyID, pem); err != nil {
		if !errors.Is(err, keydir.ErrPinMismatch) {
			c.event(cacheEvent{Op: "pin", BaseURL: c.baseURL, Error: err.Error()})
			return res
		}
		alg := v.Alg
		return manifest.Rejected{Alg: &alg, KeyID: v.KeyID, Reason: err.Error(), Code: CodeKeyPinMismatch}
	}
	return res
}
