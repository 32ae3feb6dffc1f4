// Package server exposes an adapter as an HTTP tool endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/asaidimu/go-docquery/core/persistence"
	"go.uber.org/zap"
)

// maxBodyBytes bounds the size of a single command.
const maxBodyBytes = 1 << 20

// InteractRequest is the JSON body accepted by POST /interact.
type InteractRequest struct {
	Query string `json:"query"`
}

// Handler routes tool requests to an adapter.
type Handler struct {
	adapter *persistence.Adapter
	logger  *zap.Logger
	mux     *http.ServeMux
}

// New creates a Handler and wires up its routes.
func New(adapter *persistence.Adapter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{adapter: adapter, logger: logger, mux: http.NewServeMux()}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.HandleFunc("POST /interact", h.interact)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	store := "disconnected"
	if h.adapter.State() == persistence.StateConnected {
		store = "connected"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"store":  store,
	})
}

func (h *Handler) interact(w http.ResponseWriter, r *http.Request) {
	raw, err := readCommand(r)
	if err != nil {
		h.logger.Warn("rejected request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	env := h.adapter.Envelope(r.Context(), raw)
	writeJSON(w, http.StatusOK, env)
}

// readCommand extracts the raw command from a JSON or text/plain body.
func readCommand(r *http.Request) (string, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return "", errors.New("request body too large")
	}

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = mt
		}
	}
	if mediaType == "text/plain" {
		raw := strings.TrimSpace(string(body))
		if raw == "" {
			return "", errors.New("empty command")
		}
		return raw, nil
	}

	var req InteractRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("invalid request body: %w", err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return "", errors.New("query is required")
	}
	return req.Query, nil
}

// Serve runs an HTTP server for h on addr until ctx is cancelled, then
// shuts it down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("docquery server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("docquery server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
