package toolgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixta-dev/mcp-bridge/openapi"
)

func buildFromSpec(t *testing.T, spec string, opts ...Option) *Registry {
	t.Helper()
	catalog, err := openapi.NewLoader().Parse([]byte(spec))
	require.NoError(t, err)
	return Build(catalog, opts...)
}

func TestBuild(t *testing.T) {
	registry := buildFromSpec(t, `{
  "openapi": "3.0.0",
  "info": {"title": "Pet Store", "version": "1.0"},
  "paths": {
    "/pets/{petId}": {
      "get": {
        "operationId": "getPet",
        "summary": "Get one pet",
        "description": "Returns a single pet by its identifier",
        "parameters": [
          {"name": "petId", "in": "path", "required": true, "schema": {"type": "string"}},
          {"name": "verbose", "in": "query", "schema": {"type": "boolean"}},
          {"name": "X-Request-Id", "in": "header", "schema": {"type": "string"}}
        ]
      }
    },
    "/pets": {
      "post": {
        "operationId": "createPet",
        "summary": "Create a pet",
        "requestBody": {
          "required": true,
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "name": {"type": "string"},
                  "age": {"type": "integer"}
                },
                "required": ["name"]
              }
            }
          }
        }
      }
    }
  }
}`)

	assert.Equal(t, 2, registry.Len())

	get, ok := registry.Get("getpet")
	require.True(t, ok)
	assert.Equal(t, "Returns a single pet by its identifier", get.Tool.Description)
	assert.Equal(t, "GET", get.Operation.Method)
	assert.Equal(t, LocationPath, get.Locations["petId"])
	assert.Equal(t, LocationQuery, get.Locations["verbose"])
	assert.Equal(t, LocationHeader, get.Locations["X-Request-Id"])
	assert.Equal(t, []string{"petId"}, get.PathParams)
	assert.Equal(t, []string{"petId"}, get.Tool.InputSchema.Required)
	require.NotNil(t, get.PathTemplate)

	create, ok := registry.Get("createpet")
	require.True(t, ok)
	assert.Equal(t, BodyFields, create.BodyMode)
	assert.Equal(t, LocationBody, create.Locations["name"])
	assert.Equal(t, LocationBody, create.Locations["age"])
	// Only required body fields of a required body are required inputs
	assert.Equal(t, []string{"name"}, create.Tool.InputSchema.Required)
}

func TestBuildUniqueNames(t *testing.T) {
	// Two operations whose derived names collide get numeric suffixes
	registry := buildFromSpec(t, `{
  "openapi": "3.0.0",
  "info": {"title": "T", "version": "1"},
  "paths": {
    "/a": {"get": {"operationId": "do-thing"}},
    "/b": {"get": {"operationId": "do_thing"}},
    "/c": {"get": {"operationId": "do thing"}}
  }
}`)

	assert.Equal(t, 3, registry.Len())
	names := make(map[string]bool)
	for _, tool := range registry.Tools() {
		assert.False(t, names[tool.Name], "duplicate tool name %q", tool.Name)
		names[tool.Name] = true
	}
	assert.True(t, names["do_thing"])
	assert.True(t, names["do_thing_2"])
	assert.True(t, names["do_thing_3"])
}

func TestBuildBodyFieldCollision(t *testing.T) {
	// A body field shadowed by a parameter gets a body_ prefix
	registry := buildFromSpec(t, `{
  "openapi": "3.0.0",
  "info": {"title": "T", "version": "1"},
  "paths": {
    "/widgets/{name}": {
      "put": {
        "operationId": "updateWidget",
        "parameters": [
          {"name": "name", "in": "path", "required": true, "schema": {"type": "string"}}
        ],
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {"name": {"type": "string"}, "size": {"type": "integer"}}
              }
            }
          }
        }
      }
    }
  }
}`)

	entry, ok := registry.Get("updatewidget")
	require.True(t, ok)

	assert.Equal(t, LocationPath, entry.Locations["name"])
	assert.Equal(t, LocationBody, entry.Locations["body_name"])
	assert.Equal(t, "name", entry.BodyFields["body_name"])
	assert.Equal(t, LocationBody, entry.Locations["size"])
	assert.Equal(t, "size", entry.BodyFields["size"])
}

func TestBuildOpaqueBody(t *testing.T) {
	registry := buildFromSpec(t, `{
  "openapi": "3.0.0",
  "info": {"title": "T", "version": "1"},
  "paths": {
    "/upload": {
      "post": {
        "operationId": "upload",
        "requestBody": {
          "required": true,
          "content": {"application/octet-stream": {}}
        }
      }
    }
  }
}`)

	entry, ok := registry.Get("upload")
	require.True(t, ok)
	assert.True(t, entry.Opaque)
	assert.Equal(t, BodyWhole, entry.BodyMode)
	assert.Contains(t, entry.Tool.InputSchema.Properties, "body")

	// Opaque entries accept anything
	assert.NoError(t, entry.ValidateArguments(map[string]any{"body": "raw", "extra": 42}))
}

func TestBuildInvalidPathTemplate(t *testing.T) {
	registry := buildFromSpec(t, `{
  "openapi": "3.0.0",
  "info": {"title": "T", "version": "1"},
  "paths": {
    "/pets/{petId": {
      "get": {
        "operationId": "getPet",
        "parameters": [
          {"name": "petId", "in": "path", "required": true, "schema": {"type": "string"}}
        ]
      }
    }
  }
}`)

	entry, ok := registry.Get("getpet")
	require.True(t, ok, "the tool is still synthesized")
	assert.Nil(t, entry.PathTemplate)

	require.NotEmpty(t, registry.Warnings)
	assert.Contains(t, registry.Warnings[0], "not a valid URI template")
}

func TestValidateArguments(t *testing.T) {
	registry := buildFromSpec(t, `{
  "openapi": "3.0.0",
  "info": {"title": "T", "version": "1"},
  "paths": {
    "/pets/{petId}": {
      "get": {
        "operationId": "getPet",
        "parameters": [
          {"name": "petId", "in": "path", "required": true, "schema": {"type": "string"}},
          {"name": "limit", "in": "query", "schema": {"type": "integer"}}
        ]
      }
    }
  }
}`)

	entry, ok := registry.Get("getpet")
	require.True(t, ok)

	assert.NoError(t, entry.ValidateArguments(map[string]any{"petId": "42"}))
	assert.Error(t, entry.ValidateArguments(map[string]any{}), "missing required argument")
	assert.Error(t, entry.ValidateArguments(nil), "missing required argument")
	assert.Error(t, entry.ValidateArguments(map[string]any{"petId": "42", "limit": "ten"}), "wrong type")
}

func TestBuildFilter(t *testing.T) {
	noDeletes := func(op openapi.Operation) bool { return op.Method != "DELETE" }

	registry := buildFromSpec(t, `{
  "openapi": "3.0.0",
  "info": {"title": "T", "version": "1"},
  "paths": {
    "/pets/{petId}": {
      "get": {"operationId": "getPet", "parameters": [
        {"name": "petId", "in": "path", "required": true, "schema": {"type": "string"}}
      ]},
      "delete": {"operationId": "deletePet", "parameters": [
        {"name": "petId", "in": "path", "required": true, "schema": {"type": "string"}}
      ]}
    }
  }
}`, WithFilter(noDeletes))

	assert.Equal(t, 1, registry.Len())
	_, ok := registry.Get("getpet")
	assert.True(t, ok)
	_, ok = registry.Get("deletepet")
	assert.False(t, ok)
}

func TestOutputHint(t *testing.T) {
	registry := buildFromSpec(t, `{
  "openapi": "3.0.0",
  "info": {"title": "T", "version": "1"},
  "paths": {
    "/pets": {
      "get": {
        "operationId": "listPets",
        "responses": {
          "200": {
            "description": "pets",
            "content": {
              "application/json": {
                "schema": {"type": "array", "items": {"type": "object"}}
              }
            }
          }
        }
      }
    }
  }
}`)

	entry, ok := registry.Get("listpets")
	require.True(t, ok)
	require.NotNil(t, entry.Tool.OutputSchema)
	assert.Equal(t, "array", entry.Tool.OutputSchema.Type)
}
