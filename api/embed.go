// Package api carries the OpenAPI description served at /api/docs.
package api

import _ "embed"

// OpenAPISpec holds the raw OpenAPI 3.0 document for the TarlanTV API.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
