package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/brixta-dev/mcp-bridge/jsonrpc"
)

// maxLineSize bounds a single newline-delimited JSON-RPC frame
const maxLineSize = 10 * 1024 * 1024

// StdioTransport speaks newline-delimited JSON-RPC over a reader and
// writer pair, one frame per line. Requests are served concurrently;
// responses are serialized onto the writer. notifications/cancelled
// aborts the matching in-flight request, and closing the transport
// aborts them all.
type StdioTransport struct {
	handler Handler
	reader  io.Reader
	writer  io.Writer
	logger  *slog.Logger

	session *session
	writeMu sync.Mutex
}

// StdioOption configures a StdioTransport
type StdioOption func(*StdioTransport)

// WithStdioLogger sets the logger
func WithStdioLogger(logger *slog.Logger) StdioOption {
	return func(t *StdioTransport) {
		t.logger = logger
	}
}

// NewStdioTransport creates a transport over the given streams
func NewStdioTransport(handler Handler, reader io.Reader, writer io.Writer, opts ...StdioOption) *StdioTransport {
	t := &StdioTransport{
		handler: handler,
		reader:  reader,
		writer:  writer,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		session: newSession(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run reads frames until EOF or context cancellation. It returns nil
// on clean EOF.
func (t *StdioTransport) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer t.session.abandonAll()

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var request jsonrpc.Request
		if err := json.Unmarshal(line, &request); err != nil {
			t.logger.Warn("discarding malformed frame", "error", err)
			response := jsonrpc.NewResponse(nil, nil, jsonrpc.NewError(jsonrpc.ErrParse, err.Error()))
			t.write(&response)
			continue
		}

		if request.Method == "notifications/cancelled" {
			t.handleCancelled(request)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			t.serve(ctx, request)
		}()
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// serve runs the handler for one request with its own cancelable
// context. A response for a request the client already cancelled is
// discarded rather than written.
func (t *StdioTransport) serve(ctx context.Context, request jsonrpc.Request) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var key string
	if !request.IsNotification() {
		key = request.ID.String()
		t.session.track(key, cancel)
		defer t.session.drop(key)
	}

	response := t.handler(reqCtx, request)
	if response == nil {
		return
	}
	if reqCtx.Err() != nil && ctx.Err() == nil {
		// Cancelled individually via notifications/cancelled
		t.logger.Debug("discarding response for cancelled request", "id", key)
		return
	}
	t.write(response)
}

func (t *StdioTransport) handleCancelled(request jsonrpc.Request) {
	var params CancelledParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		t.logger.Warn("malformed cancellation", "error", err)
		return
	}
	key := params.RequestID.String()
	if t.session.cancel(key) {
		t.logger.Debug("cancelled in-flight request", "id", key, "reason", params.Reason)
	} else {
		t.logger.Debug("cancellation for unknown request", "id", key)
	}
}

func (t *StdioTransport) write(response *jsonrpc.Response) {
	raw, err := json.Marshal(response)
	if err != nil {
		t.logger.Error("encoding response", "error", err)
		return
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(append(raw, '\n')); err != nil {
		t.logger.Error("writing response", "error", err)
	}
}
