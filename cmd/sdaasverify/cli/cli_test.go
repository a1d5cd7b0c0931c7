package cli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sdaasverify/cmd/sdaasverify/cli"
	"sdaasverify/internal/authority/authoritytest"
	"sdaasverify/internal/keydir"
)

var vectorsDir = filepath.Join("..", "..", "..", "internal", "manifest", "testdata", "vectors")

func vectorPath(name string) string {
	return filepath.Join(vectorsDir, name)
}

type result struct {
	stdout string
	stderr string
	err    error
}

func (r result) exitCode() int {
	if r.err == nil {
		return 0
	}
	var ee *cli.ExitError
	if errors.As(r.err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func (r result) report(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(r.stdout), &m); err != nil {
		t.Fatalf("stdout is not JSON: %q", r.stdout)
	}
	return m
}

// run executes the CLI with a clean environment and a throwaway key cache.
func run(t *testing.T, env map[string]string, args ...string) result {
	t.Helper()
	for _, name := range []string{"CERT_ID", "BASE_URL", "EXPECTED_KEY_ID", "LISTEN_ADDR"} {
		t.Setenv("SDAAS_"+name, "")
	}
	t.Setenv("SDAAS_KEY_CACHE", filepath.Join(t.TempDir(), "keys.db"))
	for k, v := range env {
		t.Setenv(k, v)
	}
	var stdout, stderr bytes.Buffer
	cmd := cli.New()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestVerifyLocal(t *testing.T) {
	r := run(t, nil, "verify", vectorPath("envelopes/ab_k1.json"), vectorPath("authority_pub.pem"))
	if r.exitCode() != 0 {
		t.Fatalf("exit %d: %v\n%s", r.exitCode(), r.err, r.stderr)
	}
	rep := r.report(t)
	if rep["verified"] != true || rep["key_id"] != "k1" {
		t.Errorf("unexpected report: %v", rep)
	}

	r = run(t, nil, "verify", "--pretty", "--expected-key-id", "sdaas-ed25519-2026-01", "--key-pem", vectorPath("authority_pub.pem"), vectorPath("envelopes/cert_valid.json"))
	if r.exitCode() != 0 || !strings.Contains(r.stdout, "\n  \"verified\": true") {
		t.Fatalf("exit %d, stdout %q", r.exitCode(), r.stdout)
	}
}

func TestVerifyKeypairFile(t *testing.T) {
	pem, err := os.ReadFile(vectorPath("authority_pub.pem"))
	if err != nil {
		t.Fatal(err)
	}
	kp, _ := json.Marshal(map[string]string{"key_id": "k1", "public_key_pem": string(pem)})
	path := filepath.Join(t.TempDir(), "keypair.json")
	if err := os.WriteFile(path, kp, 0644); err != nil {
		t.Fatal(err)
	}

	r := run(t, map[string]string{"SDAAS_EXPECTED_KEY_ID": "k1"}, "verify", vectorPath("envelopes/ab_k1.json"), path)
	if r.exitCode() != 0 {
		t.Fatalf("exit %d: %v", r.exitCode(), r.err)
	}

	r = run(t, map[string]string{"SDAAS_EXPECTED_KEY_ID": "k2"}, "verify", vectorPath("envelopes/ab_k1.json"), path)
	if r.exitCode() != cli.ExitRejected {
		t.Fatalf("expected rejection via SDAAS_EXPECTED_KEY_ID, got exit %d", r.exitCode())
	}
}

func TestVerifyRejected(t *testing.T) {
	r := run(t, nil, "verify", vectorPath("envelopes/cert_tampered.json"), vectorPath("authority_pub.pem"))
	if r.exitCode() != cli.ExitRejected {
		t.Fatalf("exit %d: %v", r.exitCode(), r.err)
	}
	rep := r.report(t)
	if rep["verified"] != false || rep["reason"] != "Signature verification failed" {
		t.Errorf("unexpected report: %v", rep)
	}
	if r.err.Error() != "" {
		t.Errorf("rejection should not carry an error message: %q", r.err.Error())
	}
}

func TestVerifyUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"nothing to verify", []string{"verify"}},
		{"no key", []string{"verify", vectorPath("envelopes/ab_k1.json")}},
		{"too many args", []string{"verify", "a", "b", "c"}},
		{"unknown flag", []string{"verify", "--bogus"}},
		{"canonicalize without file", []string{"canonicalize"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, nil, tt.args...)
			if r.exitCode() != cli.ExitUsage {
				t.Errorf("exit %d: %v", r.exitCode(), r.err)
			}
		})
	}
}

func TestVerifyBundle(t *testing.T) {
	dir := t.TempDir()
	for dst, src := range map[string]string{
		"manifest.json":  "envelopes/cert_valid.json",
		"public_key.pem": "authority_pub.pem",
	} {
		b, err := os.ReadFile(vectorPath(src))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, dst), b, 0644); err != nil {
			t.Fatal(err)
		}
	}
	r := run(t, nil, "verify", dir)
	if r.exitCode() != 0 {
		t.Fatalf("exit %d: %v", r.exitCode(), r.err)
	}
}

func newAuthority(t *testing.T) *authoritytest.Authority {
	t.Helper()
	env, err := os.ReadFile(vectorPath("envelopes/cert_valid.json"))
	if err != nil {
		t.Fatal(err)
	}
	pem, err := os.ReadFile(vectorPath("authority_pub.pem"))
	if err != nil {
		t.Fatal(err)
	}
	a := authoritytest.New()
	t.Cleanup(a.Close)
	a.SetManifest("c_01HZX3", env)
	a.SetKeys(&keydir.Directory{
		Issuer: "test",
		Keys: []keydir.SigningKey{{
			KeyID:        "sdaas-ed25519-2026-01",
			Algorithm:    "Ed25519",
			PublicKeyPEM: string(pem),
			Status:       keydir.StatusActive,
			CreatedAt:    "2026-01-01T00:00:00Z",
		}},
	})
	return a
}

func TestVerifyLive(t *testing.T) {
	a := newAuthority(t)
	cache := filepath.Join(t.TempDir(), "keys.db")

	r := run(t, nil, "verify", "--cert-id", "c_01HZX3", "--base-url", a.URL, "--key-cache", cache)
	if r.exitCode() != 0 {
		t.Fatalf("exit %d: %v\n%s", r.exitCode(), r.err, r.stderr)
	}

	r = run(t, nil, "keys", "pins", "--key-cache", cache)
	if r.err != nil || !strings.Contains(r.stdout, "sdaas-ed25519-2026-01") {
		t.Fatalf("pins: %v\n%s", r.err, r.stdout)
	}

	r = run(t, map[string]string{"SDAAS_CERT_ID": "c_01HZX3", "SDAAS_BASE_URL": a.URL}, "verify", "--no-cache", "--debug")
	if r.exitCode() != 0 {
		t.Fatalf("env-configured verify: exit %d: %v", r.exitCode(), r.err)
	}
	if !strings.Contains(r.stderr, "/api/cert/c_01HZX3/manifest") {
		t.Errorf("--debug should log requests, stderr: %q", r.stderr)
	}
	if rep := r.report(t); rep["verified"] != true {
		t.Errorf("--debug output mixed into the report: %q", r.stdout)
	}

	r = run(t, nil, "verify", "--cert-id", "missing", "--base-url", a.URL, "--no-cache")
	if r.exitCode() != -1 || r.err == nil {
		t.Fatalf("expected a fetch error, got exit %d: %v", r.exitCode(), r.err)
	}
}

func TestKeysList(t *testing.T) {
	a := newAuthority(t)
	cache := filepath.Join(t.TempDir(), "keys.db")

	r := run(t, nil, "keys", "list", "--base-url", a.URL, "--key-cache", cache)
	if r.err != nil {
		t.Fatalf("keys list: %v", r.err)
	}
	if !strings.Contains(r.stdout, "KEY ID") || !strings.Contains(r.stdout, "sdaas-ed25519-2026-01") {
		t.Errorf("unexpected table:\n%s", r.stdout)
	}

	a.Fail("/.well-known/signing-keys.json", -1, 500, "")
	r = run(t, nil, "keys", "list", "--json", "--base-url", a.URL, "--key-cache", cache)
	if r.err != nil {
		t.Fatalf("keys list from cache: %v", r.err)
	}
	if !strings.Contains(r.stderr, "showing cache") || !strings.Contains(r.stdout, `"key_id": "sdaas-ed25519-2026-01"`) {
		t.Errorf("stdout %q stderr %q", r.stdout, r.stderr)
	}

	r = run(t, nil, "keys", "list", "--base-url", a.URL, "--no-cache")
	if r.err == nil {
		t.Error("expected an error without cache while keys are down")
	}
}

func TestCanonicalize(t *testing.T) {
	r := run(t, nil, "canonicalize", vectorPath("envelopes/ab_k1.json"))
	if r.err != nil {
		t.Fatalf("canonicalize: %v", r.err)
	}
	if g, e := r.stdout, "{\"a\":1,\"b\":2}\n"; g != e {
		t.Errorf("stdout = %q, want %q", g, e)
	}

	r = run(t, nil, "canonicalize", "--digest", vectorPath("canonical/order.json"))
	if r.err != nil {
		t.Fatalf("canonicalize --digest: %v", r.err)
	}
	if g, e := strings.TrimSpace(r.stdout), "43258cff783fe7036d8a43033f830adfc60ec037382473548ac742b888292777"; g != e {
		t.Errorf("digest = %s, want %s", g, e)
	}

	// Envelopes with an unsupported algorithm still canonicalize their payload.
	r = run(t, nil, "canonicalize", vectorPath("envelopes/ab_hmac.json"))
	if r.err != nil || r.stdout != "{\"a\":1,\"b\":2}\n" {
		t.Errorf("hmac envelope: %v %q", r.err, r.stdout)
	}
}

func TestVectors(t *testing.T) {
	r := run(t, nil, "vectors", vectorsDir)
	if r.err != nil {
		t.Fatalf("vectors: %v\n%s", r.err, r.stderr)
	}
	if !strings.HasPrefix(r.stdout, "OK: passed=") || !strings.HasSuffix(r.stdout, " failed=0\n") {
		t.Errorf("stdout = %q", r.stdout)
	}

	r = run(t, nil, "vectors", "--json", t.TempDir())
	if r.exitCode() != 1 {
		t.Fatalf("expected exit 1 for an empty dir, got %d", r.exitCode())
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(r.stdout), &out); err != nil {
		t.Fatalf("stdout is not JSON: %q", r.stdout)
	}
	errObj, _ := out["error"].(map[string]any)
	if out["ok"] != false || errObj["code"] != "VECTORS_READ" {
		t.Errorf("unexpected output: %v", out)
	}
}
