package agent

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema derives a tool parameter schema from a Go struct.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}

	var v T
	schema := reflector.Reflect(v)

	data, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}

	var result map[string]any
	if err = json.Unmarshal(data, &result); err != nil {
		panic(err)
	}

	delete(result, "$schema")
	delete(result, "$id")

	return result
}
