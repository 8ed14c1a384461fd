package trigger

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Addr string
	// Token, when set, is required as "Authorization: Bearer <token>".
	Token string
}

// Server accepts opaque trigger payloads and spawns one pipeline run per
// request. The payload body is not interpreted; only side effects and logs
// are contractual.
type Server struct {
	cfg    ServerConfig
	runner Runner
	log    logx.Logger

	srv *http.Server

	// baseCtx outlives individual requests so spawned runs aren't cancelled
	// when the client disconnects.
	baseCtx context.Context
}

func NewServer(cfg ServerConfig, runner Runner, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, runner: runner, log: log}
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/trigger", s.auth(s.handleTrigger)).Methods(http.MethodPost)
	return r
}

// Start begins serving and returns immediately. The listener shuts down when
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shctx)
	}()

	// Give immediate bind failures a moment to surface.
	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
	}
	s.log.Info("http trigger listening", logx.String("addr", s.cfg.Addr))
	return nil
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	// The payload is opaque; read (bounded) and discard so clients can send
	// whatever the upstream webhook produces.
	n, _ := io.Copy(io.Discard, io.LimitReader(r.Body, 1<<20))
	s.log.Debug("trigger received", logx.Int("payload_bytes", int(n)))

	base := s.baseCtx
	if base == nil {
		base = context.Background()
	}
	go func() {
		ctx, cancel := context.WithTimeout(base, 60*time.Second)
		defer cancel()
		_, _ = s.runner.Run(ctx, "http")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
