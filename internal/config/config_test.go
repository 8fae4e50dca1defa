package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("MCP_NAME", "petstore")
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("SPEC_URL", "https://api.example.com/openapi.json")
	t.Setenv("API_AUTH_HEADER", "Bearer abc")
	t.Setenv("PORT", "8080")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "petstore", cfg.APIName)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, "https://api.example.com/openapi.json", cfg.SpecURL)
	assert.Equal(t, "Bearer abc", cfg.AuthHeader)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultRetries, cfg.Retries)
}

func TestFromEnvInvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := &Config{
		APIName: "petstore",
		APIURL:  "https://api.example.com",
		SpecURL: "./openapi.yaml",
		Timeout: 30 * time.Second,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing name", func(c *Config) { c.APIName = "" }, "MCP_NAME"},
		{"missing base URL", func(c *Config) { c.APIURL = "" }, "API_BASE_URL"},
		{"missing spec", func(c *Config) { c.SpecURL = "" }, "SPEC_URL"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative retries", func(c *Config) { c.Retries = -1 }, "retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
