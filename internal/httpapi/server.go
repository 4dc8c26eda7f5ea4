package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/jus-team/legal-ocr-service/internal/batch"
	"github.com/jus-team/legal-ocr-service/internal/ocrclient"
	"github.com/jus-team/legal-ocr-service/internal/redact"
)

type Server struct {
	client *ocrclient.Client
	orch   *batch.Orchestrator

	allowedOrigins []string
	maxUploadBytes int64
	redactRules    []redact.Rule

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithRedactionRules replaces the built-in ruleset for all redaction
// endpoints. Per-request custom rulesets still override this.
func WithRedactionRules(rules []redact.Rule) Option {
	return func(s *Server) {
		s.redactRules = rules
	}
}

func WithMaxUploadBytes(limit int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = limit
	}
}

func NewServer(client *ocrclient.Client, orch *batch.Orchestrator, allowedOrigins []string, opts ...Option) *Server {
	s := &Server{
		client:         client,
		orch:           orch,
		allowedOrigins: allowedOrigins,
		maxUploadBytes: 50 * 1024 * 1024,
		redactRules:    redact.DefaultRules(),
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withCORS(s.mux)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ocr", s.handleOCR)
	s.mux.HandleFunc("/batch/create", s.handleBatchCreate)
	s.mux.HandleFunc("/batch/status", s.handleBatchStatus)
	s.mux.HandleFunc("/batch/results", s.handleBatchResults)
	s.mux.HandleFunc("/batch/list", s.handleBatchList)
	s.mux.HandleFunc("/redact/identify", s.handleRedactIdentify)
	s.mux.HandleFunc("/redact/apply", s.handleRedactApply)
	s.mux.HandleFunc("/redact/report", s.handleRedactReport)
}
