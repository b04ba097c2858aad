package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP proxy between perch clients and Plaid. It holds the Plaid
// client secret so the clients never see it.
type Server struct {
	plaid  Plaid
	logger *log.Logger
	mux    *http.ServeMux
}

// New creates a new HTTP server
func New(plaid Plaid, logger *log.Logger) *Server {
	s := &Server{
		plaid:  plaid,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on addr until ctx is cancelled, then drains for up to five
// seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/healthz", s.withLogging(s.handleHealth))

	s.mux.HandleFunc("/api/create-link-token", s.withLogging(s.handleCreateLinkToken))
	s.mux.HandleFunc("/api/exchange-token", s.withLogging(s.handleExchangeToken))
	s.mux.HandleFunc("/api/get-transactions", s.withLogging(s.handleGetTransactions))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !s.decodePost(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}

	token, err := s.plaid.CreateLinkToken(r.Context(), req.UserID)
	if err != nil {
		s.respondUpstream(w, r, "Failed to create link token", err)
		return
	}

	s.logger.Info("link token created", "user_id", req.UserID)
	if err := s.writeJSON(w, http.StatusOK, token); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleExchangeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PublicToken string `json:"public_token"`
	}
	if !s.decodePost(w, r, &req) {
		return
	}
	if req.PublicToken == "" {
		s.respondError(w, r, http.StatusBadRequest, "Public token is required", nil)
		return
	}

	ex, err := s.plaid.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		s.respondUpstream(w, r, "Failed to exchange public token", err)
		return
	}

	s.logger.Info("public token exchanged", "item_id", ex.ItemID)
	if err := s.writeJSON(w, http.StatusOK, ex); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if !s.decodePost(w, r, &req) {
		return
	}
	if req.AccessToken == "" {
		s.respondError(w, r, http.StatusBadRequest, "Access token is required", nil)
		return
	}

	res, err := s.plaid.SyncTransactions(r.Context(), req)
	if err != nil {
		s.respondUpstream(w, r, "Failed to fetch transactions", err)
		return
	}
	if res.Transactions == nil {
		res.Transactions = []Transaction{}
	}
	if res.Accounts == nil {
		res.Accounts = []Account{}
	}

	s.logger.Debug("transactions synced", "count", len(res.Transactions), "has_more", res.HasMore)
	if err := s.writeJSON(w, http.StatusOK, res); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// --- helpers ---

// decodePost rejects anything but a POST with a JSON body and decodes it into
// v. It reports whether the handler should continue.
func (s *Server) decodePost(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// writeJSON encodes v as JSON with the given status and writes headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", r.Method, "path", r.URL.Path)
	}
	_ = s.writeJSON(w, status, map[string]string{"error": message})
}

// respondUpstream reports a failed Plaid call as a 500 carrying Plaid's own
// error payload when there is one.
func (s *Server) respondUpstream(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.logger.Error("plaid request failed", "msg", message, "err", err, "path", r.URL.Path)

	var details any = err.Error()
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Details != nil {
		details = ue.Details
	}
	_ = s.writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":   message,
		"details": details,
	})
}

// withLogging wraps a handler to log request start/end and recover panics.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
				return
			}
			s.logger.Debug("http response", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
		}()
		next(w, r)
	}
}
