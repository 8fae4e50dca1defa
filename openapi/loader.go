package openapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/utils"
)

// maxSpecSize caps how large a specification document may be (100MB)
const maxSpecSize = 100 * 1024 * 1024

// Loader fetches and parses OpenAPI documents into Catalogs
type Loader struct {
	client     *http.Client
	authHeader string
	logger     *slog.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used to fetch specs from URLs
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		l.client = client
	}
}

// WithAuthHeader sets an Authorization header value sent when fetching
// the spec from a URL
func WithAuthHeader(value string) LoaderOption {
	return func(l *Loader) {
		l.authHeader = value
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client: http.DefaultClient,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the specification at location (an HTTP(S) URL or a file
// path) and produces an operation Catalog.
func (l *Loader) Load(ctx context.Context, location string) (*Catalog, error) {
	var data []byte
	var err error

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		l.logger.Info("reading spec from URL", "url", location)
		data, err = l.fetch(ctx, location)
	} else {
		l.logger.Info("reading spec from file", "file", location)
		data, err = l.readFile(location)
	}
	if err != nil {
		return nil, err
	}

	return l.Parse(data)
}

// Parse builds a Catalog from raw specification bytes. Both JSON and
// YAML encodings are accepted.
func (l *Loader) Parse(data []byte) (*Catalog, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrSpecParse)
	}

	doc, err := libopenapi.NewDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpecParse, err)
	}

	info := doc.GetSpecInfo()
	if info == nil || info.SpecType != utils.OpenApi3 {
		version := "unknown"
		if info != nil && info.Version != "" {
			version = info.Version
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, version)
	}

	model, errs := doc.BuildV3Model()
	if model == nil {
		return nil, fmt.Errorf("%w: %v", ErrSpecParse, errors.Join(errs...))
	}

	var warnings []string
	for _, e := range errs {
		warnings = append(warnings, e.Error())
	}

	catalog := buildCatalog(&model.Model, warnings)
	for _, w := range catalog.Warnings {
		l.logger.Warn("spec load warning", "warning", w)
	}
	l.logger.Info("spec loaded",
		"title", catalog.Title,
		"version", catalog.Version,
		"operations", len(catalog.Operations))
	return catalog, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpecUnreachable, err)
	}
	if l.authHeader != "" {
		req.Header.Set("Authorization", l.authHeader)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpecUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrSpecUnreachable, resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSpecSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrSpecUnreachable, url, err)
	}
	if len(data) > maxSpecSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrSpecParse, maxSpecSize)
	}
	return data, nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: spec file does not exist: %s", ErrSpecUnreachable, cleanPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrSpecUnreachable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: path is a directory: %s", ErrSpecUnreachable, cleanPath)
	}
	if info.Size() > maxSpecSize {
		return nil, fmt.Errorf("%w: spec file too large (max %d bytes): %s", ErrSpecParse, maxSpecSize, cleanPath)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpecUnreachable, err)
	}
	return data, nil
}
