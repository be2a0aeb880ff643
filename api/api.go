// Package api embeds the default operation contract.
package api

import _ "embed"

// Contract is the OpenAPI document served by default.
//
//go:embed openapi.yaml
var Contract []byte
