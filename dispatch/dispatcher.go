package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/yosida95/uritemplate/v3"

	"github.com/brixta-dev/mcp-bridge/openapi"
	"github.com/brixta-dev/mcp-bridge/toolgen"
)

// maxResponseSize caps how much of an upstream response body is read
const maxResponseSize = 50 * 1024 * 1024

// DefaultTimeout bounds each outbound call unless configured otherwise
const DefaultTimeout = 60 * time.Second

// Result is the successful outcome of one invocation. The upstream
// payload passes through untouched; the output schema hint is advisory
// and never filters fields.
type Result struct {
	Status    int
	MediaType string
	Body      []byte
}

// IsJSON reports whether the result payload is JSON
func (r *Result) IsJSON() bool {
	return openapi.IsJSONMediaType(r.MediaType)
}

// Dispatcher validates tool arguments, builds the corresponding HTTP
// request against the configured base URL, and maps responses and
// transport failures into the invocation error taxonomy. It holds no
// mutable state and is safe for concurrent use.
type Dispatcher struct {
	base    *url.URL
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithClient sets the outbound HTTP client
func WithClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithTimeout bounds each dispatched call
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher targeting the given API base URL
func NewDispatcher(baseURL string, opts ...DispatcherOption) (*Dispatcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}

	d := &Dispatcher{
		base:    base,
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Invoke executes one tool call. Validation failures and missing path
// parameters are rejected before any network I/O. The returned error
// is a *Error for every failure the caller should see as structured.
func (d *Dispatcher) Invoke(ctx context.Context, entry *toolgen.Entry, args map[string]any) (*Result, error) {
	if err := entry.ValidateArguments(args); err != nil {
		return nil, newError(KindInvalidArguments, "arguments rejected by input schema: %v", err)
	}

	req, err := d.buildRequest(ctx, entry, args)
	if err != nil {
		return nil, err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	d.logger.Debug("dispatching", "tool", entry.Tool.Name, "method", req.Method, "url", req.URL.String())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, newError(KindUpstreamUnavailable, "reading upstream response: %v", err)
	}

	d.logger.Debug("upstream responded", "tool", entry.Tool.Name, "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:    KindRemoteError,
			Message: fmt.Sprintf("upstream returned HTTP %d", resp.StatusCode),
			Status:  resp.StatusCode,
			Body:    string(body),
		}
	}

	return &Result{
		Status:    resp.StatusCode,
		MediaType: resp.Header.Get("Content-Type"),
		Body:      body,
	}, nil
}

func (d *Dispatcher) buildRequest(ctx context.Context, entry *toolgen.Entry, args map[string]any) (*http.Request, error) {
	pathVals := uritemplate.Values{}
	query := url.Values{}
	header := http.Header{}
	var cookies []*http.Cookie
	bodyFields := make(map[string]any)
	var wholeBody any
	haveWholeBody := false

	// Iterate deterministically so repeated query values keep a stable
	// order
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := args[name]
		location, known := entry.Locations[name]
		if !known {
			// Extra argument: schema validation either allowed it or was
			// skipped (opaque). Route it to the body when one is
			// declared, to the query string otherwise.
			if entry.Operation.RequestBody != nil {
				bodyFields[name] = value
			} else if err := addQueryValue(query, name, value); err != nil {
				return nil, newError(KindInvalidArguments, "argument %q: %v", name, err)
			}
			continue
		}

		wireName := entry.ParamNames[name]
		if wireName == "" {
			wireName = name
		}

		switch location {
		case toolgen.LocationPath:
			s, err := cast.ToStringE(value)
			if err != nil {
				return nil, newError(KindInvalidArguments, "path parameter %q: %v", name, err)
			}
			pathVals.Set(wireName, uritemplate.String(s))
		case toolgen.LocationQuery:
			if err := addQueryValue(query, wireName, value); err != nil {
				return nil, newError(KindInvalidArguments, "query parameter %q: %v", name, err)
			}
		case toolgen.LocationHeader:
			s, err := cast.ToStringE(value)
			if err != nil {
				return nil, newError(KindInvalidArguments, "header parameter %q: %v", name, err)
			}
			header.Add(wireName, s)
		case toolgen.LocationCookie:
			s, err := cast.ToStringE(value)
			if err != nil {
				return nil, newError(KindInvalidArguments, "cookie parameter %q: %v", name, err)
			}
			cookies = append(cookies, &http.Cookie{Name: wireName, Value: s})
		case toolgen.LocationBody:
			if entry.BodyMode == toolgen.BodyWhole {
				wholeBody = value
				haveWholeBody = true
			} else {
				fieldName := entry.BodyFields[name]
				if fieldName == "" {
					fieldName = name
				}
				bodyFields[fieldName] = value
			}
		}
	}

	// A required path parameter that did not arrive is a defect caught
	// before any network I/O
	for _, name := range entry.PathParams {
		if _, ok := args[name]; !ok {
			return nil, newError(KindInvalidArguments, "missing required path parameter %q", name)
		}
	}

	requestURL, err := d.expandURL(entry, pathVals, query)
	if err != nil {
		return nil, err
	}

	bodyReader, contentType, err := encodeBody(entry, bodyFields, wholeBody, haveWholeBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, entry.Operation.Method, requestURL, bodyReader)
	if err != nil {
		return nil, newError(KindInvalidArguments, "building request: %v", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// expandURL substitutes path parameters (URL-escaped by RFC 6570
// expansion) and appends the query string. A templated path whose
// template never compiled is refused rather than sent with literal
// braces.
func (d *Dispatcher) expandURL(entry *toolgen.Entry, pathVals uritemplate.Values, query url.Values) (string, error) {
	path := entry.Operation.Path
	if entry.PathTemplate != nil {
		expanded, err := entry.PathTemplate.Expand(pathVals)
		if err != nil {
			return "", newError(KindInvalidArguments, "expanding path template: %v", err)
		}
		path = expanded
	} else if strings.ContainsAny(path, "{}") {
		return "", fmt.Errorf("path template %q did not compile; refusing to dispatch", path)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	full := strings.TrimRight(d.base.String(), "/") + path
	if encoded := query.Encode(); encoded != "" {
		full += "?" + encoded
	}
	return full, nil
}

func encodeBody(entry *toolgen.Entry, fields map[string]any, whole any, haveWhole bool) (io.Reader, string, error) {
	mediaType := "application/json"
	if entry.Operation.RequestBody != nil && entry.Operation.RequestBody.MediaType != "" {
		mediaType = entry.Operation.RequestBody.MediaType
	}

	switch {
	case entry.BodyMode == toolgen.BodyWhole && haveWhole:
		if s, ok := whole.(string); ok && !openapi.IsJSONMediaType(mediaType) {
			// Raw payload for non-JSON bodies (e.g. text or binary
			// uploads passed through as a string)
			return strings.NewReader(s), mediaType, nil
		}
		raw, err := json.Marshal(whole)
		if err != nil {
			return nil, "", newError(KindInvalidArguments, "encoding request body: %v", err)
		}
		return bytes.NewReader(raw), mediaType, nil
	case len(fields) > 0:
		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, "", newError(KindInvalidArguments, "encoding request body: %v", err)
		}
		return bytes.NewReader(raw), mediaType, nil
	}
	return nil, "", nil
}

// addQueryValue appends a value to the query string; arrays become
// repeated parameters
func addQueryValue(query url.Values, name string, value any) error {
	if list, ok := value.([]any); ok {
		for _, item := range list {
			s, err := cast.ToStringE(item)
			if err != nil {
				return err
			}
			query.Add(name, s)
		}
		return nil
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	query.Add(name, s)
	return nil
}

// classifyTransportError separates "the deadline passed" from "the
// upstream could not be reached". A context canceled by the client
// aborting its invocation propagates as-is so the session can discard
// the call quietly.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindUpstreamTimeout, "call exceeded deadline: %v", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return newError(KindUpstreamTimeout, "call timed out: %v", err)
	}
	return newError(KindUpstreamUnavailable, "upstream unreachable: %v", err)
}
