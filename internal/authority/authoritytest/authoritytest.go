// Package authoritytest provides an in-process certificate authority for
// tests.
package authoritytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"sdaasverify/internal/keydir"
)

// Request is one request the fake authority received.
type Request struct {
	Path      string
	Accept    string
	RequestID string
}

type failure struct {
	remaining  int
	status     int
	retryAfter string
}

// Authority serves manifests, a key directory and verify statuses from
// memory. Unknown certificates get a 404 JSON error.
type Authority struct {
	*httptest.Server

	mu        sync.Mutex
	manifests map[string][]byte
	statuses  map[string][]byte
	keys      []byte
	failures  map[string]*failure
	requests  []Request
}

func New() *Authority {
	a := &Authority{
		manifests: map[string][]byte{},
		statuses:  map[string][]byte{},
		failures:  map[string]*failure{},
		keys:      []byte(`{"issuer":"test","keys":[]}`),
	}
	a.Server = httptest.NewServer(a.routes())
	return a
}

func (a *Authority) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(a.record)
	r.Get("/api/cert/{certID}/manifest", func(w http.ResponseWriter, r *http.Request) {
		a.serve(w, a.manifests, chi.URLParam(r, "certID"), "application/sdaas.manifest+json")
	})
	r.Get("/verify/{certID}/status", func(w http.ResponseWriter, r *http.Request) {
		a.serve(w, a.statuses, chi.URLParam(r, "certID"), "application/json")
	})
	r.Get("/.well-known/signing-keys.json", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		b := a.keys
		a.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})
	return r
}

// record logs the request and answers it with a queued failure, if any.
func (a *Authority) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.requests = append(a.requests, Request{
			Path:      r.URL.Path,
			Accept:    r.Header.Get("Accept"),
			RequestID: r.Header.Get("X-Request-Id"),
		})
		f := a.failures[r.URL.Path]
		var fail *failure
		if f != nil && f.remaining != 0 {
			if f.remaining > 0 {
				f.remaining--
			}
			copied := *f
			fail = &copied
		}
		a.mu.Unlock()

		if fail != nil {
			if fail.retryAfter != "" {
				w.Header().Set("Retry-After", fail.retryAfter)
			}
			writeError(w, fail.status, "unavailable", "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authority) serve(w http.ResponseWriter, m map[string][]byte, id, contentType string) {
	a.mu.Lock()
	b, ok := m[id]
	a.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "certificate "+strconv.Quote(id)+" not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (a *Authority) SetManifest(certID string, envelope []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manifests[certID] = envelope
}

func (a *Authority) SetStatus(certID string, status []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[certID] = status
}

func (a *Authority) SetKeys(dir *keydir.Directory) {
	b, err := json.Marshal(dir)
	if err != nil {
		panic(err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = b
}

// Fail makes the next n requests for path fail with status. A negative n
// fails every request until Fail is called again with n == 0.
func (a *Authority) Fail(path string, n int, status int, retryAfter string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[path] = &failure{remaining: n, status: status, retryAfter: retryAfter}
}

// Requests returns the requests received so far.
func (a *Authority) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Request(nil), a.requests...)
}

// Count returns how many requests hit path.
func (a *Authority) Count(path string) int {
	n := 0
	for _, r := range a.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}
