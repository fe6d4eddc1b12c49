package graph

import (
	"strings"
)

// redactedPlaceholder replaces strings too long to usefully show the LLM.
const redactedPlaceholder = "[REDACTED - long content]"

// maxContextWords is the word-count threshold for redaction. It is
// intentionally independent of the indexer's character-count truncation.
const maxContextWords = 100

// maxContextArrayItems truncates arrays in the LLM context.
const maxContextArrayItems = 10

// GetAvailableContext returns the accumulated knowledge of the run: a map
// from tool name to the sanitized flattened result of its most recent
// successful call. This is the sole input to parameter extraction.
func (g *Graph) GetAvailableContext() map[string]map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]map[string]interface{}, len(g.toolResults))
	for tool, flat := range g.toolResults {
		sanitized := make(map[string]interface{}, len(flat))
		for key, value := range flat {
			sanitized[key] = sanitizeForLLM(value)
		}
		out[tool] = sanitized
	}
	return out
}

func sanitizeForLLM(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if len(strings.Fields(v)) > maxContextWords {
			return redactedPlaceholder
		}
		return v

	case []interface{}:
		limit := len(v)
		if limit > maxContextArrayItems {
			limit = maxContextArrayItems
		}
		out := make([]interface{}, 0, limit)
		for _, item := range v[:limit] {
			out = append(out, sanitizeForLLM(item))
		}
		return out

	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = sanitizeForLLM(item)
		}
		return out

	default:
		return v
	}
}
