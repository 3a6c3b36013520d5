package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unclebandit/customer-support-mcp/internal/mcp"
)

var logger = xlog.NewPackageLogger("github.com/unclebandit/customer-support-mcp/internal", "handler")

// MaxBodySize limits the size of a JSON-RPC request body.
const MaxBodySize = 1 << 20

// Dispatcher answers one JSON-RPC request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *mcp.Request) (*mcp.Response, error)
}

// McpHandler holds the dependencies for the MCP HTTP endpoints
type McpHandler struct {
	Controller Dispatcher
	ServerName string
}

// NewRouter mounts the MCP and health endpoints. An empty allowedOrigins
// allows any origin.
func NewRouter(h *McpHandler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Post("/mcp", h.ServeMCP)
	r.Get("/health", h.Health)
	return r
}

// ServeMCP decodes one JSON-RPC request and writes the response as a single
// event-stream frame.
func (h *McpHandler) ServeMCP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeRequest(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "reason", "parse", "err", err.Error())
		writeFrame(ctx, w, mcp.NewError(nil, mcp.CodeParseError, err.Error()))
		return
	}

	resp, err := h.Controller.Dispatch(ctx, req)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "reason", "dispatch", "method", req.Method, "err", err.Error())
		writeFrame(ctx, w, mcp.NewError(nil, mcp.CodeParseError, err.Error()))
		return
	}
	writeFrame(ctx, w, resp)
}

// Health reports liveness without touching the store.
func (h *McpHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"server": h.ServerName,
	})
}

func decodeRequest(body io.Reader) (*mcp.Request, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request body")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("request body is empty")
	}
	if raw[0] != '{' {
		return nil, errors.New("request body must be a JSON object")
	}

	var req mcp.Request
	if err = json.Unmarshal(raw, &req); err != nil {
		return nil, errors.Wrap(err, "failed to decode request")
	}
	return &req, nil
}

func writeFrame(ctx context.Context, w http.ResponseWriter, resp *mcp.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "encode", "err", err.Error())
		b, _ = json.Marshal(mcp.NewError(nil, mcp.CodeParseError, err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	var frame bytes.Buffer
	frame.Grow(len(b) + 8)
	frame.WriteString("data: ")
	frame.Write(b)
	frame.WriteString("\n\n")
	if _, err = w.Write(frame.Bytes()); err != nil {
		logger.ContextKV(ctx, xlog.DEBUG, "reason", "write", "err", err.Error())
		return
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.ContextKV(r.Context(), xlog.DEBUG,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(started).String())
	})
}
