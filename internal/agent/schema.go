package agent

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"mcpinspect/pkg/logging"
)

// ValidateArguments checks extracted arguments against the tool's declared
// input schema. The check is advisory: a validation failure is reported but
// never blocks the call, and a schema that cannot be compiled is ignored.
func ValidateArguments(tool mcp.Tool, args map[string]interface{}) error {
	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		logging.Debug("Agent", "Tool %s declares an unparseable schema: %v", tool.Name, err)
		return nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool.json", doc); err != nil {
		return nil
	}
	schema, err := compiler.Compile("tool.json")
	if err != nil {
		logging.Debug("Agent", "Tool %s declares an uncompilable schema: %v", tool.Name, err)
		return nil
	}

	argRaw, err := json.Marshal(args)
	if err != nil {
		return nil
	}
	var value any
	if err := json.Unmarshal(argRaw, &value); err != nil {
		return nil
	}

	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}
