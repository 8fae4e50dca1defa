package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/brixta-dev/mcp-bridge/dispatch"
	"github.com/brixta-dev/mcp-bridge/jsonrpc"
	"github.com/brixta-dev/mcp-bridge/toolgen"
)

// Handler processes a single JSON-RPC request. A nil response means
// the request was a notification and no frame should be written.
type Handler func(ctx context.Context, request jsonrpc.Request) *jsonrpc.Response

// Reloader produces a fresh tool registry from the current
// specification source
type Reloader func(ctx context.Context) (*toolgen.Registry, error)

// Server routes MCP requests to the tool registry and dispatcher. The
// registry is held as an atomic snapshot: a reload swaps in a new
// generation while in-flight invocations keep the one they resolved
// against.
type Server struct {
	info         ServerInfo
	instructions string
	logger       *slog.Logger
	dispatcher   *dispatch.Dispatcher
	registry     atomic.Pointer[toolgen.Registry]
	reload       Reloader
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithServerInfo sets the name and version reported on initialize
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.info = ServerInfo{Name: name, Version: version}
	}
}

// WithInstructions sets the instructions string reported on initialize
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDispatcher sets the dispatcher used for tools/call
func WithDispatcher(dispatcher *dispatch.Dispatcher) ServerOption {
	return func(s *Server) {
		s.dispatcher = dispatcher
	}
}

// WithRegistry sets the initial tool registry
func WithRegistry(registry *toolgen.Registry) ServerOption {
	return func(s *Server) {
		if registry != nil {
			s.registry.Store(registry)
		}
	}
}

// WithReloader enables specification reloads
func WithReloader(reload Reloader) ServerOption {
	return func(s *Server) {
		s.reload = reload
	}
}

// NewServer creates a new MCP server instance
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry.Load() == nil {
		return nil, errors.New("server requires a tool registry")
	}
	if s.dispatcher == nil {
		return nil, errors.New("server requires a dispatcher")
	}
	return s, nil
}

// Registry returns the current registry snapshot
func (s *Server) Registry() *toolgen.Registry {
	return s.registry.Load()
}

// Reload rebuilds the registry and swaps it in atomically. On failure
// the previous generation stays in place.
func (s *Server) Reload(ctx context.Context) error {
	if s.reload == nil {
		return errors.New("no reloader configured")
	}
	registry, err := s.reload(ctx)
	if err != nil {
		s.logger.Error("reload failed; keeping current tool registry", "error", err)
		return err
	}
	s.registry.Store(registry)
	s.logger.Info("tool registry reloaded", "tools", registry.Len())
	return nil
}

// Handle processes a single JSON-RPC request and returns a response,
// or nil for notifications
func (s *Server) Handle(ctx context.Context, request jsonrpc.Request) *jsonrpc.Response {
	switch request.Method {
	case "initialize":
		return s.respond(request, InitializeResponse{
			ProtocolVersion: Version,
			Capabilities: ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged"`
				}{ListChanged: false},
			},
			ServerInfo:   s.info,
			Instructions: s.instructions,
		}, nil)
	case "notifications/initialized", "notifications/cancelled":
		// Cancellation is correlated at the transport layer
		return nil
	case "ping":
		return s.respond(request, PingResponse{}, nil)
	case "tools/list":
		return s.respond(request, ToolsListResponse{Tools: s.registry.Load().Tools()}, nil)
	case "tools/call":
		return s.handleToolCall(ctx, request)
	default:
		if request.IsNotification() {
			return nil
		}
		return s.respond(request, nil, jsonrpc.NewError(jsonrpc.ErrMethodNotFound, nil))
	}
}

func (s *Server) handleToolCall(ctx context.Context, request jsonrpc.Request) *jsonrpc.Response {
	var params ToolCallParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return s.respond(request, nil, jsonrpc.NewError(jsonrpc.ErrInvalidParams, err.Error()))
	}

	registry := s.registry.Load()
	entry, ok := registry.Get(params.Name)
	if !ok {
		notFound := &dispatch.Error{
			Kind:    dispatch.KindToolNotFound,
			Message: fmt.Sprintf("no tool named %q", params.Name),
		}
		return s.respond(request, nil, jsonrpc.NewError(jsonrpc.ErrMethodNotFound, notFound))
	}

	result, err := s.dispatcher.Invoke(ctx, entry, params.Arguments)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The client abandoned the call; the transport discards
			// whatever we return
			return s.respond(request, nil, jsonrpc.NewError(jsonrpc.ErrInternal, "invocation canceled"))
		}

		var invokeErr *dispatch.Error
		if errors.As(err, &invokeErr) {
			if invokeErr.CallerFault() {
				return s.respond(request, nil, jsonrpc.NewError(jsonrpc.ErrInvalidParams, invokeErr))
			}
			// Upstream defects surface as structured tool results so
			// the session stays alive
			payload, marshalErr := json.Marshal(invokeErr)
			if marshalErr != nil {
				payload = []byte(invokeErr.Error())
			}
			s.logger.Warn("tool call failed upstream",
				"tool", params.Name, "kind", invokeErr.Kind, "status", invokeErr.Status)
			return s.respond(request, ToolCallResponse{
				IsError: true,
				Content: []Content{NewTextContent(string(payload), []Role{RoleAssistant}, nil)},
			}, nil)
		}

		return s.respond(request, nil, jsonrpc.NewError(jsonrpc.ErrInternal, err.Error()))
	}

	return s.respond(request, ToolCallResponse{
		Content: []Content{resultContent(result)},
	}, nil)
}

// resultContent maps an upstream payload to MCP content: images become
// base64 image content, textual payloads pass through verbatim, and
// anything else binary is base64-encoded with its media type preserved
func resultContent(result *dispatch.Result) Content {
	audience := []Role{RoleAssistant}
	mediaType := result.MediaType
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return NewImageContent(base64.StdEncoding.EncodeToString(result.Body), mediaType, audience, nil)
	case result.IsJSON(), strings.HasPrefix(mediaType, "text/"), mediaType == "":
		return NewTextContent(string(result.Body), audience, nil)
	case utf8.Valid(result.Body):
		return NewTextContent(string(result.Body), audience, nil)
	default:
		content := NewTextContent(base64.StdEncoding.EncodeToString(result.Body), audience, nil)
		content.MimeType = mediaType
		return content
	}
}

func (s *Server) respond(request jsonrpc.Request, result jsonrpc.Result, err *jsonrpc.Error) *jsonrpc.Response {
	if request.IsNotification() {
		return nil
	}
	response := jsonrpc.NewResponse(request.ID, result, err)
	return &response
}
