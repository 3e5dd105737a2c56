// Package schemas embeds the JSON Schemas wpbench validates against.
package schemas

import _ "embed"

// ConfigSchemaJSON is the schema for .wpbench.yaml.
//
//go:embed config.schema.json
var ConfigSchemaJSON string
