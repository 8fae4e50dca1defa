package toolgen

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/pb33f/libopenapi/datamodel/high/base"
)

// maxSchemaDepth bounds translation of nested (possibly cyclic) schemas.
// Anything deeper degrades to a permissive node.
const maxSchemaDepth = 12

// Permissive returns a schema node that accepts any value. It is the
// explicit fallback for constructs the translator cannot express:
// availability of the tool takes priority over strictness of validation.
func Permissive() *jsonschema.Schema {
	return &jsonschema.Schema{}
}

// FromOpenAPI maps an OpenAPI schema node to an equivalent JSON Schema
// node, preserving type, enum values, numeric bounds, string
// formats/patterns, and object/array nesting. Unsupported constructs
// degrade to a permissive node rather than failing synthesis.
func FromOpenAPI(proxy *base.SchemaProxy) *jsonschema.Schema {
	return translate(proxy, 0)
}

func translate(proxy *base.SchemaProxy, depth int) *jsonschema.Schema {
	if proxy == nil || depth >= maxSchemaDepth {
		return Permissive()
	}
	src := proxy.Schema()
	if src == nil {
		// Unresolvable reference
		return Permissive()
	}

	out := &jsonschema.Schema{
		Description: src.Description,
		Format:      src.Format,
		Pattern:     src.Pattern,
	}
	if out.Description == "" {
		out.Description = src.Title
	}

	// allOf merges all subschemas into one node
	for _, sub := range src.AllOf {
		mergeSchema(out, translate(sub, depth+1))
	}

	// Polymorphic variants: keep them when they agree on a single type,
	// degrade to permissive when they do not.
	variants := make([]*base.SchemaProxy, 0, len(src.OneOf)+len(src.AnyOf))
	variants = append(variants, src.OneOf...)
	variants = append(variants, src.AnyOf...)
	if len(variants) > 0 {
		subs := make([]*jsonschema.Schema, 0, len(variants))
		for _, sub := range variants {
			subs = append(subs, translate(sub, depth+1))
		}
		if !compatibleVariants(subs) {
			return Permissive()
		}
		out.AnyOf = subs
		return out
	}

	if t := singleType(src.Type); t != "" {
		out.Type = t
	} else if len(src.Type) > 1 {
		// Conflicting type list
		return Permissive()
	}

	for _, node := range src.Enum {
		var v any
		if err := node.Decode(&v); err == nil {
			out.Enum = append(out.Enum, v)
		}
	}

	if src.Default != nil {
		var v any
		if err := src.Default.Decode(&v); err == nil {
			if raw, err := json.Marshal(v); err == nil {
				out.Default = json.RawMessage(raw)
			}
		}
	}

	out.Minimum = src.Minimum
	out.Maximum = src.Maximum

	if src.Properties != nil {
		props := make(map[string]*jsonschema.Schema)
		for pair := src.Properties.First(); pair != nil; pair = pair.Next() {
			props[pair.Key()] = translate(pair.Value(), depth+1)
		}
		if len(props) > 0 {
			out.Properties = props
		}
	}
	if len(src.Required) > 0 {
		out.Required = src.Required
	}

	if src.Items != nil && src.Items.IsA() {
		out.Items = translate(src.Items.A, depth+1)
	}

	return out
}

// mergeSchema folds sub into dst, used for allOf composition
func mergeSchema(dst, sub *jsonschema.Schema) {
	if sub == nil {
		return
	}
	if dst.Type == "" {
		dst.Type = sub.Type
	}
	if dst.Description == "" {
		dst.Description = sub.Description
	}
	if dst.Format == "" {
		dst.Format = sub.Format
	}
	if sub.Properties != nil {
		if dst.Properties == nil {
			dst.Properties = make(map[string]*jsonschema.Schema)
		}
		for name, prop := range sub.Properties {
			dst.Properties[name] = prop
		}
	}
	for _, req := range sub.Required {
		if !containsString(dst.Required, req) {
			dst.Required = append(dst.Required, req)
		}
	}
	if dst.Items == nil {
		dst.Items = sub.Items
	}
	if len(dst.Enum) == 0 {
		dst.Enum = sub.Enum
	}
}

// compatibleVariants reports whether all variant schemas share one
// concrete type. Variants across incompatible types cannot be expressed
// as a useful union for tool input, so the caller degrades them.
func compatibleVariants(subs []*jsonschema.Schema) bool {
	t := ""
	for _, sub := range subs {
		if sub.Type == "" {
			return false
		}
		if t == "" {
			t = sub.Type
		} else if sub.Type != t {
			return false
		}
	}
	return t != ""
}

// singleType extracts the usable type from an OpenAPI type list,
// ignoring a "null" entry (nullable is not enforced on tool input)
func singleType(types []string) string {
	found := ""
	for _, t := range types {
		if t == "null" {
			continue
		}
		if found != "" && found != t {
			return ""
		}
		found = t
	}
	return found
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
