package toolgen

import (
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/yosida95/uritemplate/v3"

	"github.com/brixta-dev/mcp-bridge/openapi"
)

// Location records where an input property travels in the outbound
// HTTP request
type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
	LocationCookie Location = "cookie"
	LocationBody   Location = "body"
)

// BodyMode describes how body-located properties map onto the request
// body
type BodyMode int

const (
	// BodyNone means the operation declares no request body
	BodyNone BodyMode = iota
	// BodyFields means body properties were flattened into the input
	// schema and are reassembled into a JSON object
	BodyFields
	// BodyWhole means a single "body" property carries the entire body
	BodyWhole
)

// Tool is the MCP-facing descriptor for one synthesized tool
type Tool struct {
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	InputSchema  *jsonschema.Schema `json:"inputSchema"`
	OutputSchema *jsonschema.Schema `json:"outputSchema,omitempty"`
}

// Entry binds a Tool to its originating operation plus everything the
// dispatcher needs to route an invocation. Entries are immutable after
// Build.
type Entry struct {
	Tool      Tool
	Operation openapi.Operation

	// Locations maps input property names to their request location
	Locations map[string]Location
	// ParamNames maps input property names back to the declared
	// parameter names used on the wire (they differ when a name was
	// escaped or disambiguated)
	ParamNames map[string]string
	// BodyFields maps input property names back to body field names
	// (they differ when a collision forced a body_ prefix)
	BodyFields map[string]string
	BodyMode   BodyMode

	// Opaque marks a tool whose operation declares a body with no
	// machine-usable schema; arguments pass through unvalidated
	Opaque bool

	// PathTemplate is the RFC 6570 template for the operation path;
	// nil when the path failed to parse as a template
	PathTemplate *uritemplate.Template
	// PathParams lists input property names that must substitute into
	// the path before any network I/O happens
	PathParams []string

	resolved *jsonschema.Resolved
}

// ValidateArguments checks an argument object against the compiled
// input schema. Opaque entries accept anything.
func (e *Entry) ValidateArguments(args map[string]any) error {
	if e.Opaque || e.resolved == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	return e.resolved.Validate(args)
}

// Filter decides whether an operation becomes a tool
type Filter func(op openapi.Operation) bool

// Option configures registry building
type Option func(*builder)

// WithFilter excludes operations the filter rejects
func WithFilter(f Filter) Option {
	return func(b *builder) {
		b.filters = append(b.filters, f)
	}
}

type builder struct {
	filters []Filter
}

// Build synthesizes a Registry from a catalog. Every surviving
// operation produces exactly one entry with a unique name; problems
// with individual operations are recorded as warnings, never dropped
// silently.
func Build(catalog *openapi.Catalog, opts ...Option) *Registry {
	var b builder
	for _, opt := range opts {
		opt(&b)
	}

	registry := &Registry{entries: make(map[string]*Entry)}
	taken := make(map[string]bool)

operations:
	for _, op := range catalog.Operations {
		for _, filter := range b.filters {
			if !filter(op) {
				continue operations
			}
		}

		name := uniqueName(Name(op), taken)
		taken[name] = true

		entry := synthesize(name, op)
		if entry.resolved == nil && !entry.Opaque {
			registry.Warnings = append(registry.Warnings,
				fmt.Sprintf("tool %s: input schema did not compile; validation disabled", name))
		}
		if entry.PathTemplate == nil {
			registry.Warnings = append(registry.Warnings,
				fmt.Sprintf("tool %s: path %s is not a valid URI template; invocations will be rejected", name, op.Path))
		}
		registry.entries[name] = entry
		registry.order = append(registry.order, name)
	}

	return registry
}

func synthesize(name string, op openapi.Operation) *Entry {
	entry := &Entry{
		Operation:  op,
		Locations:  make(map[string]Location),
		ParamNames: make(map[string]string),
		BodyFields: make(map[string]string),
	}

	description := op.Description
	if description == "" {
		description = op.Summary
	}

	properties := make(map[string]*jsonschema.Schema)
	var required []string

	claim := func(preferred, fallbackPrefix string) string {
		if _, ok := properties[preferred]; !ok {
			return preferred
		}
		candidate := fallbackPrefix + preferred
		for i := 2; ; i++ {
			if _, ok := properties[candidate]; !ok {
				return candidate
			}
			candidate = fmt.Sprintf("%s%s_%d", fallbackPrefix, preferred, i)
		}
	}

	for _, p := range op.Parameters {
		prop := FromOpenAPI(p.Schema)
		if prop.Description == "" {
			prop.Description = p.Description
		}
		propName := claim(propertyName(p.Name), p.In+"_")
		properties[propName] = prop
		entry.Locations[propName] = Location(p.In)
		entry.ParamNames[propName] = p.Name
		if p.In == string(LocationPath) {
			entry.PathParams = append(entry.PathParams, propName)
		}
		if p.Required {
			required = append(required, propName)
		}
	}

	if body := op.RequestBody; body != nil {
		switch {
		case body.Schema == nil:
			// No declared shape; the tool stays available but skips
			// structural validation
			entry.Opaque = true
			entry.BodyMode = BodyWhole
			propName := claim("body", "body_")
			properties[propName] = Permissive()
			entry.Locations[propName] = LocationBody
			if body.Required {
				required = append(required, propName)
			}
		default:
			bodySchema := FromOpenAPI(body.Schema)
			if len(bodySchema.Properties) > 0 {
				entry.BodyMode = BodyFields
				fieldNames := make([]string, 0, len(bodySchema.Properties))
				for fieldName := range bodySchema.Properties {
					fieldNames = append(fieldNames, fieldName)
				}
				sort.Strings(fieldNames)
				for _, fieldName := range fieldNames {
					fieldSchema := bodySchema.Properties[fieldName]
					propName := claim(fieldName, "body_")
					properties[propName] = fieldSchema
					entry.Locations[propName] = LocationBody
					entry.BodyFields[propName] = fieldName
					if body.Required && containsString(bodySchema.Required, fieldName) {
						required = append(required, propName)
					}
				}
			} else {
				entry.BodyMode = BodyWhole
				propName := claim("body", "body_")
				if bodySchema.Description == "" {
					bodySchema.Description = "Request body (" + body.MediaType + ")"
				}
				properties[propName] = bodySchema
				entry.Locations[propName] = LocationBody
				if body.Required {
					required = append(required, propName)
				}
			}
		}
	}

	input := &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
	if resolved, err := input.Resolve(nil); err == nil {
		entry.resolved = resolved
	}

	if tmpl, err := uritemplate.New(op.Path); err == nil {
		entry.PathTemplate = tmpl
	}

	entry.Tool = Tool{
		Name:         name,
		Description:  description,
		InputSchema:  input,
		OutputSchema: OutputHint(op),
	}
	return entry
}

// OutputHint translates the first declared 2xx JSON response schema
// into an advisory output schema for the tool
func OutputHint(op openapi.Operation) *jsonschema.Schema {
	for _, resp := range op.Responses {
		if len(resp.Status) != 3 || resp.Status[0] != '2' {
			continue
		}
		if !openapi.IsJSONMediaType(resp.MediaType) {
			continue
		}
		return FromOpenAPI(resp.Schema)
	}
	return nil
}
