// Package envelope deals with the MCP tool-call result wrapper:
// a {content:[{type:"text", text:"..."}]} structure whose primary payload is
// usually a JSON document serialized inside a text item. Both the resource
// indexer and the resource graph need the same unwrapping rules, so they
// live here.
package envelope

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// FromResult converts a typed tool-call result into the generic
// map/slice/primitive form the traversal code works with.
func FromResult(result *mcp.CallToolResult) interface{} {
	if result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil
	}
	return generic
}

// Unwrap peels the MCP content envelope off a response, if present.
//
// When the response is an object with a "content" array of
// {type:"text", text:...} items, each text payload is attempted as JSON:
//   - none parse: the original response is returned unchanged
//   - exactly one parses: that parsed value replaces the response
//   - two or more parse: the slice of parsed values replaces the response
//
// Anything that is not an envelope passes through untouched.
func Unwrap(response interface{}) interface{} {
	obj, ok := response.(map[string]interface{})
	if !ok {
		return response
	}
	content, ok := obj["content"].([]interface{})
	if !ok {
		return response
	}

	var parsed []interface{}
	for _, item := range content {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if entry["type"] != "text" {
			continue
		}
		text, ok := entry["text"].(string)
		if !ok {
			continue
		}
		var value interface{}
		if err := json.Unmarshal([]byte(text), &value); err != nil {
			continue
		}
		parsed = append(parsed, value)
	}

	switch len(parsed) {
	case 0:
		return response
	case 1:
		return parsed[0]
	default:
		return parsed
	}
}
