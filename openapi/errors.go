package openapi

import "errors"

// Load-time failures are fatal to startup. They are distinguished so the
// caller can report whether the document could not be fetched, could not
// be parsed, or is written against a specification version this bridge
// does not speak.
var (
	// ErrSpecUnreachable indicates the specification could not be read
	// from its URL or file location.
	ErrSpecUnreachable = errors.New("spec unreachable")

	// ErrSpecParse indicates the document was read but could not be
	// parsed as an OpenAPI specification.
	ErrSpecParse = errors.New("spec parse error")

	// ErrUnsupportedVersion indicates the document is not an OpenAPI 3.x
	// specification.
	ErrUnsupportedVersion = errors.New("unsupported specification version")
)
