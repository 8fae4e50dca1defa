package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config collects everything the bridge needs to start: the identity
// it announces, the specification to ingest, and the API to call.
// Values come from the environment first; command-line flags override.
type Config struct {
	// APIName is the server name announced on initialize
	APIName string
	// APIURL is the base URL tool calls are dispatched against
	APIURL string
	// SpecURL locates the OpenAPI document (URL or file path)
	SpecURL string

	// AuthHeader is an optional Authorization header value forwarded
	// verbatim on spec fetches and upstream calls
	AuthHeader string

	// Port, when non-zero, serves the HTTP transport instead of stdio
	Port int

	Timeout time.Duration
	Retries int
	RPS     int

	PolicyPath string
	Verbose    bool
}

// Default per-call timeout and retry budget
const (
	DefaultTimeout = 60 * time.Second
	DefaultRetries = 3
)

// FromEnv builds a Config from the process environment
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIName:    os.Getenv("MCP_NAME"),
		APIURL:     os.Getenv("API_BASE_URL"),
		SpecURL:    os.Getenv("SPEC_URL"),
		AuthHeader: os.Getenv("API_AUTH_HEADER"),
		Timeout:    DefaultTimeout,
		Retries:    DefaultRetries,
	}

	if port := os.Getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Port = n
	}

	return cfg, nil
}

// Validate checks that the required identity trio is present
func (c *Config) Validate() error {
	var missing []string
	if c.APIName == "" {
		missing = append(missing, "API name (--api-name or MCP_NAME)")
	}
	if c.APIURL == "" {
		missing = append(missing, "API base URL (--api-url or API_BASE_URL)")
	}
	if c.SpecURL == "" {
		missing = append(missing, "spec location (--spec-url or SPEC_URL)")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + joinAnd(missing))
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	return nil
}

func joinAnd(items []string) string {
	switch len(items) {
	case 1:
		return items[0]
	default:
		s := items[0]
		for _, item := range items[1:] {
			s += ", " + item
		}
		return s
	}
}
