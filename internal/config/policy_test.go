package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixta-dev/mcp-bridge/openapi"
)

func TestLoadPolicy(t *testing.T) {
	policy, err := LoadPolicy(strings.NewReader(`
disabledMethods:
  - DELETE
  - patch
disabledOperations:
  - dropDatabase
disabledPaths:
  - ^/internal/
  - /admin
`))
	require.NoError(t, err)

	tests := []struct {
		name string
		op   openapi.Operation
		want bool
	}{
		{"plain read", openapi.Operation{ID: "listPets", Method: "GET", Path: "/pets"}, true},
		{"disabled method", openapi.Operation{ID: "removePet", Method: "DELETE", Path: "/pets/1"}, false},
		{"disabled method is case-insensitive", openapi.Operation{ID: "fixPet", Method: "PATCH", Path: "/pets/1"}, false},
		{"disabled operation id", openapi.Operation{ID: "dropDatabase", Method: "POST", Path: "/ops"}, false},
		{"anchored path pattern", openapi.Operation{Method: "GET", Path: "/internal/debug"}, false},
		{"unanchored path pattern", openapi.Operation{Method: "GET", Path: "/v2/admin/users"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allows(tt.op))
		})
	}
}

func TestLoadPolicyErrors(t *testing.T) {
	_, err := LoadPolicy(strings.NewReader("disabledPaths: [\"[invalid\"]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid path pattern")

	_, err = LoadPolicy(strings.NewReader("{{{{"))
	assert.Error(t, err)
}

func TestLoadPolicyFile(t *testing.T) {
	// Missing file means no restrictions
	policy, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, policy.Allows(openapi.Operation{Method: "DELETE", Path: "/anything"}))

	policy, err = LoadPolicyFile("")
	require.NoError(t, err)
	assert.True(t, policy.Allows(openapi.Operation{Method: "DELETE", Path: "/anything"}))
}

func TestPolicyFilter(t *testing.T) {
	policy, err := LoadPolicy(strings.NewReader("disabledMethods: [DELETE]"))
	require.NoError(t, err)

	filter := policy.Filter()
	assert.True(t, filter(openapi.Operation{Method: "GET", Path: "/pets"}))
	assert.False(t, filter(openapi.Operation{Method: "DELETE", Path: "/pets"}))
}
