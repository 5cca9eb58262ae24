package ecology

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

// ConfigSchema describes Config as a JSON Schema, so editors and clients
// can validate config files before submitting them.
func ConfigSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf(Config{}))
	schema.Title = "Ecogrid simulation config"
	schema.Description = "Field size, seed, per-cell creation probabilities and the viability policy."
	return schema
}

// ConfigSchemaJSON returns ConfigSchema indented for humans.
func ConfigSchemaJSON() ([]byte, error) {
	return json.MarshalIndent(ConfigSchema(), "", "  ")
}
