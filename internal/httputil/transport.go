package httputil

import (
	"log/slog"
	"net/http"
)

// HeaderTransport is a RoundTripper that adds default headers to every
// outbound request, used to pass an upstream API credential through.
// A header already set on the request wins; defaults never stack onto
// it, so a credential is sent exactly once.
type HeaderTransport struct {
	Base    http.RoundTripper
	Headers http.Header
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for key, values := range t.Headers {
		if len(req.Header.Values(key)) > 0 {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// RetryLogger adapts slog to retryablehttp's LeveledLogger interface
type RetryLogger struct {
	Logger *slog.Logger
}

func (l *RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, keysAndValues...)
}

func (l *RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Info(msg, keysAndValues...)
}

func (l *RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, keysAndValues...)
}

func (l *RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.Logger.Warn(msg, keysAndValues...)
}
