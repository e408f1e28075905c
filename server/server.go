// Package server exposes presentation verification over HTTP.
//
//	POST /v1/verify   body: presentation (JSON or CBOR)  -> verification output
//	GET  /healthz                                        -> {"status":"ok"}
//
// Every processed presentation yields 200 with the output record, valid or not.
// Transport problems (oversized or unreadable bodies) get 4xx statuses.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anchorageoss/tlsn-verifier/config"
	"github.com/anchorageoss/tlsn-verifier/verify"
)

// RequestIDHeader carries the per-request identifier
const RequestIDHeader = "X-Request-Id"

// Verifier checks raw presentations
type Verifier interface {
	Verify(raw []byte) *verify.Output
}

// Options configures the HTTP layer
type Options struct {
	// MaxBodyBytes limits request bodies; zero means 4 MiB
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Server routes HTTP requests to a Verifier
type Server struct {
	verifier Verifier
	opts     Options
	logger   *zap.Logger
	router   chi.Router
}

// New creates a server
func New(verifier Verifier, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{verifier: verifier, opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/verify", s.handleVerify)
	s.router = r

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	out := s.verifier.Verify(body)
	s.logger.Info("verification",
		zap.String("request_id", w.Header().Get(RequestIDHeader)),
		zap.Bool("valid", out.Valid),
		zap.String("proof_hash", out.ProofHash))
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", w.Header().Get(RequestIDHeader)))
	})
}

// requestID echoes a caller supplied request id or assigns a new one
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
