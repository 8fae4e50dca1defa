package openapi

import (
	"fmt"
	"strings"

	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
)

// Catalog is the full set of operations parsed from one specification
// load. It is immutable once built; a reload produces a new Catalog.
type Catalog struct {
	Title      string
	Version    string
	Operations []Operation
	Warnings   []string
}

// Operation describes a single method+path combination from the
// specification. Schema nodes are references into the underlying
// document model and are read-only.
type Operation struct {
	ID          string
	Method      string
	Path        string
	Summary     string
	Description string
	Deprecated  bool
	Tags        []string
	Parameters  []Parameter
	RequestBody *RequestBody
	Responses   []ResponseVariant
}

// Parameter is one declared operation parameter
type Parameter struct {
	Name        string
	In          string
	Description string
	Required    bool
	Schema      *base.SchemaProxy
}

// RequestBody describes the declared request body. Schema is nil when
// the body has no machine-usable shape (e.g. a bare binary upload).
type RequestBody struct {
	Required  bool
	MediaType string
	Schema    *base.SchemaProxy
}

// ResponseVariant is one declared response schema, keyed by status code
type ResponseVariant struct {
	Status    string
	MediaType string
	Schema    *base.SchemaProxy
}

// DocString renders the operation for log lines and warnings
func (op Operation) DocString() string {
	return op.Method + " " + op.Path
}

// buildCatalog flattens a built V3 document model into a Catalog.
// A broken operation is skipped with a recorded warning rather than
// failing the whole load; total parse failure is handled upstream.
func buildCatalog(model *v3.Document, warnings []string) *Catalog {
	catalog := &Catalog{Warnings: warnings}
	if model.Info != nil {
		catalog.Title = model.Info.Title
		catalog.Version = model.Info.Version
	}

	if model.Paths == nil {
		return catalog
	}

	for pair := model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		pathItem := pair.Value()

		for opPair := pathItem.GetOperations().First(); opPair != nil; opPair = opPair.Next() {
			method := strings.ToUpper(opPair.Key())
			op, err := buildOperation(method, path, pathItem, opPair.Value())
			if err != nil {
				catalog.Warnings = append(catalog.Warnings,
					fmt.Sprintf("skipping %s %s: %v", method, path, err))
				continue
			}
			catalog.Operations = append(catalog.Operations, op)
		}
	}

	return catalog
}

func buildOperation(method, path string, pathItem *v3.PathItem, src *v3.Operation) (Operation, error) {
	op := Operation{
		ID:          src.OperationId,
		Method:      method,
		Path:        path,
		Summary:     src.Summary,
		Description: src.Description,
		Deprecated:  boolVal(src.Deprecated),
		Tags:        src.Tags,
	}

	params, err := mergeParameters(pathItem.Parameters, src.Parameters)
	if err != nil {
		return Operation{}, err
	}
	op.Parameters = params

	if src.RequestBody != nil {
		body, err := buildRequestBody(src.RequestBody)
		if err != nil {
			return Operation{}, err
		}
		op.RequestBody = body
	}

	if src.Responses != nil && src.Responses.Codes != nil {
		for pair := src.Responses.Codes.First(); pair != nil; pair = pair.Next() {
			status := pair.Key()
			resp := pair.Value()
			if resp == nil || resp.Content == nil {
				continue
			}
			for mt := resp.Content.First(); mt != nil; mt = mt.Next() {
				media := mt.Value()
				if media == nil || media.Schema == nil {
					continue
				}
				op.Responses = append(op.Responses, ResponseVariant{
					Status:    status,
					MediaType: mt.Key(),
					Schema:    media.Schema,
				})
			}
		}
	}

	return op, nil
}

// mergeParameters combines path-item level parameters with operation
// level ones; the operation level wins on a (name, location) collision.
func mergeParameters(shared, own []*v3.Parameter) ([]Parameter, error) {
	type key struct{ name, in string }
	seen := make(map[key]int)
	var out []Parameter

	add := func(src *v3.Parameter, override bool) error {
		if src == nil {
			return nil
		}
		if src.Schema != nil && src.Schema.Schema() == nil {
			return fmt.Errorf("unresolvable schema for parameter %q", src.Name)
		}
		p := Parameter{
			Name:        src.Name,
			In:          src.In,
			Description: src.Description,
			Required:    boolVal(src.Required),
			Schema:      src.Schema,
		}
		k := key{src.Name, src.In}
		if idx, ok := seen[k]; ok {
			if override {
				out[idx] = p
			}
			return nil
		}
		seen[k] = len(out)
		out = append(out, p)
		return nil
	}

	for _, p := range shared {
		if err := add(p, false); err != nil {
			return nil, err
		}
	}
	for _, p := range own {
		if err := add(p, true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// buildRequestBody picks the JSON media type when one is declared,
// falling back to the first declared content type. A body whose schema
// cannot be resolved is reported; a body with no schema at all is kept
// so the tool can still be synthesized as opaque.
func buildRequestBody(src *v3.RequestBody) (*RequestBody, error) {
	body := &RequestBody{Required: boolVal(src.Required)}
	if src.Content == nil {
		return body, nil
	}

	for pair := src.Content.First(); pair != nil; pair = pair.Next() {
		mediaType := pair.Key()
		media := pair.Value()
		if body.MediaType == "" {
			body.MediaType = mediaType
			if media != nil {
				body.Schema = media.Schema
			}
		}
		if IsJSONMediaType(mediaType) {
			body.MediaType = mediaType
			if media != nil {
				body.Schema = media.Schema
			}
			break
		}
	}

	if body.Schema != nil && body.Schema.Schema() == nil {
		return nil, fmt.Errorf("unresolvable request body schema (%s)", body.MediaType)
	}
	return body, nil
}

// IsJSONMediaType reports whether a media type carries JSON, including
// suffixed types such as application/vnd.api+json.
func IsJSONMediaType(mediaType string) bool {
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func boolVal(b *bool) bool {
	return b != nil && *b
}
