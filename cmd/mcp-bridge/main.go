package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brixta-dev/mcp-bridge/dispatch"
	"github.com/brixta-dev/mcp-bridge/internal/config"
	"github.com/brixta-dev/mcp-bridge/internal/httputil"
	"github.com/brixta-dev/mcp-bridge/internal/secret"
	"github.com/brixta-dev/mcp-bridge/mcp"
	"github.com/brixta-dev/mcp-bridge/openapi"
	"github.com/brixta-dev/mcp-bridge/toolgen"
)

var rootCmd = &cobra.Command{
	Use:   "mcp-bridge",
	Short: "An MCP server bridging tool calls to an OpenAPI-described HTTP API",
	Long: `mcp-bridge ingests an OpenAPI specification, synthesizes an MCP tool
catalog from its operations, and proxies tool calls to the real API.

By default it processes JSON-RPC requests from stdin and writes responses
to stdout. With --port set it serves the same protocol over HTTP instead.

Configuration comes from the environment (MCP_NAME, API_BASE_URL, SPEC_URL,
API_AUTH_HEADER, PORT); flags override. Values starting with op:// are
resolved through the 1Password CLI.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		if !verbose {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}

		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		if cfg.AuthHeader != "" {
			resolved, wasSecret, err := secret.Resolve(ctx, cfg.AuthHeader)
			if err != nil {
				return fmt.Errorf("error resolving auth secret: %w", err)
			}
			if wasSecret {
				logger.Info("resolved auth header from 1Password")
			}
			cfg.AuthHeader = resolved
		}

		policy, err := config.LoadPolicyFile(cfg.PolicyPath)
		if err != nil {
			return err
		}

		client := newHTTPClient(cfg, logger)

		loader := openapi.NewLoader(
			openapi.WithHTTPClient(client),
			openapi.WithAuthHeader(cfg.AuthHeader),
			openapi.WithLogger(logger),
		)

		buildRegistry := func(ctx context.Context) (*toolgen.Registry, error) {
			catalog, err := loader.Load(ctx, cfg.SpecURL)
			if err != nil {
				return nil, err
			}
			registry := toolgen.Build(catalog, toolgen.WithFilter(policy.Filter()))
			for _, warning := range registry.Warnings {
				logger.Warn(warning)
			}
			logger.Info("tool catalog ready", "spec", catalog.Title, "tools", registry.Len())
			return registry, nil
		}

		registry, err := buildRegistry(ctx)
		if err != nil {
			return err
		}

		dispatcher, err := dispatch.NewDispatcher(cfg.APIURL,
			dispatch.WithClient(client),
			dispatch.WithTimeout(cfg.Timeout),
			dispatch.WithLogger(logger),
		)
		if err != nil {
			return err
		}

		server, err := mcp.NewServer(
			mcp.WithServerInfo(cfg.APIName, version),
			mcp.WithRegistry(registry),
			mcp.WithDispatcher(dispatcher),
			mcp.WithReloader(buildRegistry),
			mcp.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("error creating server: %w", err)
		}

		g, ctx := errgroup.WithContext(ctx)

		// SIGHUP refreshes the tool catalog from the spec source
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)
		g.Go(func() error {
			defer signal.Stop(reload)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-reload:
					if err := server.Reload(ctx); err != nil {
						logger.Error("spec reload failed", "error", err)
					}
				}
			}
		})

		g.Go(func() error {
			if cfg.Port > 0 {
				transport := mcp.NewHTTPTransport(server.Handle,
					fmt.Sprintf(":%d", cfg.Port),
					mcp.WithHTTPLogger(logger))
				return transport.Run(ctx)
			}
			transport := mcp.NewStdioTransport(server.Handle, os.Stdin, os.Stdout,
				mcp.WithStdioLogger(logger))
			return transport.Run(ctx)
		})

		return g.Wait()
	},
}

// newHTTPClient builds the shared outbound client with retries and an
// optional rate floor between attempts
func newHTTPClient(cfg *config.Config, logger *slog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = &httputil.RetryLogger{Logger: logger}

	if cfg.RPS > 0 {
		retryClient.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
			// Ensure we wait at least 1/rps between requests
			minWait := time.Second / time.Duration(cfg.RPS)
			if min < minWait {
				min = minWait
			}
			return retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
		}
	}

	client := retryClient.StandardClient()
	if cfg.AuthHeader != "" {
		client.Transport = &httputil.HeaderTransport{
			Base:    client.Transport,
			Headers: http.Header{"Authorization": []string{cfg.AuthHeader}},
		}
	}
	return client
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("api-name") {
		cfg.APIName = apiName
	}
	if cmd.Flags().Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if cmd.Flags().Changed("spec-url") {
		cfg.SpecURL = specURL
	}
	if cmd.Flags().Changed("auth") {
		cfg.AuthHeader = auth
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = timeout
	}
	if cmd.Flags().Changed("retries") {
		cfg.Retries = retries
	}
	if cmd.Flags().Changed("rps") {
		cfg.RPS = rps
	}
	if cmd.Flags().Changed("policy") {
		cfg.PolicyPath = policyPath
	}
	cfg.Verbose = verbose
}

var (
	apiName    string
	apiURL     string
	specURL    string
	auth       string
	port       int
	verbose    bool
	retries    int
	timeout    time.Duration
	rps        int
	policyPath string

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	rootCmd.Flags().StringVar(&apiName, "api-name", "", "Server name announced to MCP clients (env MCP_NAME)")
	rootCmd.Flags().StringVar(&apiURL, "api-url", "", "Base URL of the target API (env API_BASE_URL)")
	rootCmd.Flags().StringVar(&specURL, "spec-url", "", "OpenAPI spec URL or file path (env SPEC_URL)")
	rootCmd.Flags().StringVar(&auth, "auth", "", "Authorization header value (e.g. 'Bearer token123' or 'Basic dXNlcjpwYXNz')")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Serve JSON-RPC over HTTP on this port instead of stdio (env PORT)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")
	rootCmd.Flags().IntVar(&retries, "retries", config.DefaultRetries, "Maximum number of retries for failed requests")
	rootCmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "HTTP request timeout")
	rootCmd.Flags().IntVarP(&rps, "rps", "r", 0, "Maximum requests per second (0 for no limit)")
	rootCmd.Flags().StringVar(&policyPath, "policy", "", "YAML policy file restricting which operations become tools")

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
