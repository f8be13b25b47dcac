package agent

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache memoizes compiled schemas by their raw source, the way
// pluginsdk.compileSchema does for plugin config schemas.
var schemaCache sync.Map

// compileSchema compiles and caches a JSON Schema document.
func compileSchema(name string, schema []byte) (*jsonschema.Schema, error) {
	key := name + ":" + string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString(name, string(schema))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// validateArgs validates a tool call's arguments against its JSON Schema.
func validateArgs(toolName string, schema []byte, args map[string]any) error {
	compiled, err := compileSchema(toolName+".schema.json", schema)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", toolName, err)
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args for %s: %w", toolName, err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode args for %s: %w", toolName, err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("%s: arguments invalid: %w", toolName, err)
	}
	return nil
}
