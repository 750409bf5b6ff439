// Package api exposes the bridge over HTTP: a JSON-RPC 2.0 endpoint backed
// by the provider, session install/logout endpoints for the external login
// flow, and the usual health and metrics surfaces.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/walletbridge/walletbridge/internal/config"
	"github.com/walletbridge/walletbridge/internal/logger"
	"github.com/walletbridge/walletbridge/internal/provider"
	"github.com/walletbridge/walletbridge/internal/storage"
	perrors "github.com/walletbridge/walletbridge/pkg/errors"
	"github.com/walletbridge/walletbridge/pkg/types"
)

// maxBodySize caps request bodies. Transaction payloads are small; anything
// near this limit is abuse.
const maxBodySize = 1 << 20

// Server is the bridge's HTTP front.
type Server struct {
	config     *config.Config
	provider   *provider.Provider
	sessions   *storage.SessionStore
	limiter    *RateLimiter
	httpServer *http.Server
}

// NewServer wires the HTTP surface over an already-constructed provider.
func NewServer(cfg *config.Config, p *provider.Provider, sessions *storage.SessionStore) *Server {
	return &Server{
		config:   cfg,
		provider: p,
		sessions: sessions,
		limiter:  NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
}

// Start binds the listener and serves until Shutdown.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/session", s.handleSession)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      RequestID(s.limiter.Limit(s.loggingMiddleware(mux))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and its rate-limit sweep.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.FromContext(r.Context()).Info("http request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rpcRequest is the JSON-RPC 2.0 call envelope accepted on /rpc.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  []any           `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcErrorObject `json:"error,omitempty"`
}

type rpcErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// handleRPC runs one provider request per HTTP call. Typed provider errors
// become JSON-RPC error objects with their code, message and data intact.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeRPCError(w, nil, &rpcErrorObject{Code: -32700, Message: "failed to read request body"})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, nil, &rpcErrorObject{Code: -32700, Message: "parse error"})
		return
	}
	if req.Method == "" {
		writeRPCError(w, req.ID, &rpcErrorObject{Code: -32600, Message: "method is required"})
		return
	}

	result, err := s.provider.Request(r.Context(), req.Method, req.Params)
	if err != nil {
		writeRPCError(w, req.ID, toRPCError(err))
		return
	}

	// A nil result is a valid JSON-RPC null, so marshal it explicitly
	// rather than relying on omitempty.
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result}
	writeJSON(w, http.StatusOK, resp)
}

// sessionRequest is the install payload written by the external login flow.
type sessionRequest struct {
	SessionType    types.SessionType `json:"sessionType"`
	UserID         string            `json:"userId"`
	OrganizationID string            `json:"organizationId"`
	Token          string            `json:"token"`
	Expiry         int64             `json:"expiry"`
}

// handleSession installs a session on POST and tears everything down on
// DELETE: session record, account cache, and the provider's event channel.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req sessionRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session payload"})
			return
		}
		if req.OrganizationID == "" || req.Token == "" || req.Expiry <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organizationId, token and expiry are required"})
			return
		}

		err := s.sessions.PutSession(r.Context(), &types.Session{
			SessionType:    req.SessionType,
			UserID:         req.UserID,
			OrganizationID: req.OrganizationID,
			Token:          req.Token,
			Expiry:         req.Expiry,
		})
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to install session", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to install session"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "installed"})

	case http.MethodDelete:
		ctx := r.Context()
		if err := s.sessions.ClearSession(ctx); err != nil {
			logger.FromContext(ctx).Error("failed to clear session", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear session"})
			return
		}
		if err := s.sessions.ClearProviderStore(ctx); err != nil {
			logger.FromContext(ctx).Error("failed to clear account cache", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear account cache"})
			return
		}
		s.provider.Disconnect()
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// toRPCError maps a provider error onto the wire error object. Anything
// untyped degrades to an internal error.
func toRPCError(err error) *rpcErrorObject {
	if perr, ok := perrors.AsProviderError(err); ok {
		return &rpcErrorObject{Code: perr.Code, Message: perr.Message, Data: perr.Data}
	}
	return &rpcErrorObject{Code: -32603, Message: err.Error()}
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, rpcErr *rpcErrorObject) {
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
