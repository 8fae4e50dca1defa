package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/brixta-dev/mcp-bridge/jsonrpc"
)

// maxRequestSize bounds a single HTTP-carried JSON-RPC frame
const maxRequestSize = 10 * 1024 * 1024

// sessionHeader carries the transport-assigned session identifier so
// clients can correlate cancellations across POSTs
const sessionHeader = "Mcp-Session-Id"

// HTTPTransport serves JSON-RPC over HTTP POST. Each POST carries one
// frame; notifications are acknowledged with 202 Accepted and produce
// no body. Shutdown drains in-flight requests, then aborts stragglers.
type HTTPTransport struct {
	handler Handler
	addr    string
	logger  *slog.Logger
	session *session
}

// HTTPOption configures an HTTPTransport
type HTTPOption func(*HTTPTransport)

// WithHTTPLogger sets the logger
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates a transport listening on addr
func NewHTTPTransport(handler Handler, addr string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		handler: handler,
		addr:    addr,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		session: newSession(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run serves until the context is cancelled, then shuts down
// gracefully
func (t *HTTPTransport) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", t.serveFrame)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr:    t.addr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errc := make(chan error, 1)
	go func() {
		t.logger.Info("listening", "addr", t.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		t.session.abandonAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return server.Close()
		}
		return nil
	}
}

func (t *HTTPTransport) serveFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		http.Error(w, "reading request", http.StatusBadRequest)
		return
	}

	var request jsonrpc.Request
	if err := json.Unmarshal(raw, &request); err != nil {
		t.writeResponse(w, jsonrpc.NewResponse(nil, nil, jsonrpc.NewError(jsonrpc.ErrParse, err.Error())))
		return
	}

	w.Header().Set(sessionHeader, t.session.id)

	if request.Method == "notifications/cancelled" {
		t.handleCancelled(request)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	reqCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if !request.IsNotification() {
		key := request.ID.String()
		t.session.track(key, cancel)
		defer t.session.drop(key)
	}

	response := t.handler(reqCtx, request)
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	t.writeResponse(w, *response)
}

func (t *HTTPTransport) handleCancelled(request jsonrpc.Request) {
	var params CancelledParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		t.logger.Warn("malformed cancellation", "error", err)
		return
	}
	key := params.RequestID.String()
	if t.session.cancel(key) {
		t.logger.Debug("cancelled in-flight request", "id", key, "reason", params.Reason)
	}
}

func (t *HTTPTransport) writeResponse(w http.ResponseWriter, response jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		t.logger.Error("encoding response", "error", err)
	}
}
