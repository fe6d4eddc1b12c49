package graph

import (
	"mcpinspect/internal/envelope"
)

// Flatten turns a tool result into a flat key→value map the LLM can consume.
// Leaves of nested objects are recorded twice: once under the bare key and
// once under the full dotted path, so both "id" and "results.id" resolve.
// For arrays, only the first element is descended into; the whole array is
// kept under "<prefix>_array".
func Flatten(result interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	flattenInto(envelope.Unwrap(result), "", out)
	return out
}

func flattenInto(value interface{}, prefix string, out map[string]interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			full := key
			if prefix != "" {
				full = prefix + "." + key
			}
			switch child.(type) {
			case map[string]interface{}, []interface{}:
				flattenInto(child, full, out)
			default:
				out[key] = child
				out[full] = child
			}
		}

	case []interface{}:
		key := prefix + "_array"
		if prefix == "" {
			key = "_array"
		}
		out[key] = v
		if len(v) >= 1 {
			flattenInto(v[0], prefix, out)
		}

	default:
		if prefix != "" {
			out[prefix] = v
		}
	}
}
