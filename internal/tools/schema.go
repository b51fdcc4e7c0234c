// Package tools holds helpers shared by the built-in tool packages.
package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// MustSchema reflects a parameter struct into an inline JSON Schema
// suitable for LLM function calling. Reflection failures fall back to
// an open object schema rather than panicking at registration time.
func MustSchema(v any) json.RawMessage {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""
	out, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return out
}
