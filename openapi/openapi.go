// Package openapi embeds the OpenAPI description of the travel planner API,
// served at /openapi.yaml.
package openapi

import _ "embed"

// Document is the raw openapi.yaml.
//
//go:embed openapi.yaml
var Document []byte
