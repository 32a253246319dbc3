// Package api carries the OpenAPI description of the HTTP surface.
package api

import _ "embed"

// Schema is the bundled OpenAPI document
//
//go:embed openapi.yaml
var Schema []byte
