// Package server exposes manifest verification over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tv42/jog"

	"sdaasverify/internal/authority"
	"sdaasverify/internal/manifest"
)

const maxBodyBytes = 1 << 20

type Server struct {
	authority *authority.Client
	log       *jog.Logger
}

// New returns a server. Without an authority client the certificate route
// answers 503.
func New(client *authority.Client, log *jog.Logger) *Server {
	return &Server{authority: client, log: log}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Route("/v1", func(api chi.Router) {
		api.Post("/verify", s.handleVerify)
		api.Get("/certs/{certID}/verify", s.handleCertVerify)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed on "+r.URL.Path)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.event(listenEvent{Addr: addr})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type listenEvent struct {
	Addr string
}

type requestEvent struct {
	RequestID string
	Method    string
	Path      string
	Status    int
	Bytes     int
	Duration  time.Duration
}

func (s *Server) event(e any) {
	if s.log != nil {
		s.log.Event(e)
	}
}

// requestID assigns every request an id, keeping a caller-supplied
// X-Request-Id, and echoes it in the response.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" || len(id) > 128 {
			id = NewRequestID()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.event(requestEvent{
				RequestID: RequestID(r.Context()),
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    ww.Status(),
				Bytes:     ww.BytesWritten(),
				Duration:  time.Since(start),
			})
		}()
		next.ServeHTTP(ww, r)
	})
}

type verifyRequest struct {
	Envelope      json.RawMessage `json:"envelope"`
	PublicKeyPEM  string          `json:"public_key_pem"`
	ExpectedKeyID string          `json:"expected_key_id"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req verifyRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if len(req.Envelope) == 0 {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "envelope is required")
		return
	}
	if strings.TrimSpace(req.PublicKeyPEM) == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "public_key_pem is required")
		return
	}
	res := manifest.VerifyJSON(req.Envelope, req.PublicKeyPEM, req.ExpectedKeyID)
	WriteJSON(w, http.StatusOK, manifest.ReportOf(res))
}

type certResponse struct {
	CertID string `json:"cert_id"`
	manifest.Report
	KeysFromCache bool `json:"keys_from_cache,omitempty"`
}

func (s *Server) handleCertVerify(w http.ResponseWriter, r *http.Request) {
	if s.authority == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "authority_unavailable", "no authority configured")
		return
	}
	certID := chi.URLParam(r, "certID")
	v, err := s.authority.FetchAndVerify(r.Context(), certID, r.URL.Query().Get("expected_key_id"))
	if err != nil {
		if authority.StatusCode(err) == http.StatusNotFound {
			WriteError(w, r, http.StatusNotFound, "cert_not_found", err.Error())
			return
		}
		WriteError(w, r, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, certResponse{
		CertID:        certID,
		Report:        manifest.ReportOf(v.Result),
		KeysFromCache: v.KeysFromCache,
	})
}
