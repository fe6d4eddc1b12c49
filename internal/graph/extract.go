package graph

import (
	"strings"

	"mcpinspect/internal/envelope"
)

// Resource extraction for the graph is deliberately looser than the
// indexer's: the graph wants coverage for visualization and context
// building, not a clean persistent index.

// maxArrayItems bounds traversal of arrays during resource extraction.
const maxArrayItems = 10

// fieldNameIsIDLike uses the graph's permissive field predicate.
func fieldNameIsIDLike(field string) bool {
	lower := strings.ToLower(field)
	if strings.HasSuffix(lower, "id") {
		return true
	}
	if strings.HasSuffix(lower, "key") && !strings.Contains(lower, "api") && !strings.Contains(lower, "secret") {
		return true
	}
	switch lower {
	case "uuid", "slug", "name", "code", "handle", "identifier":
		return true
	}
	return false
}

// valueIsIDLike filters out prose and URLs: short strings with few tokens
// are plausible identifiers.
func valueIsIDLike(value string) bool {
	if len(value) == 0 || len(value) > 100 {
		return false
	}
	if strings.Contains(value, "  ") {
		return false
	}
	if len(strings.Split(value, " ")) > 3 {
		return false
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return false
	}
	return true
}

// extractResources walks a completed tool result and adds resource nodes for
// everything that looks like an identifier. Callers must hold g.mu.
func (g *Graph) extractResources(result interface{}, toolNodeID string) {
	g.walkResources(envelope.Unwrap(result), "", toolNodeID)
}

func (g *Graph) walkResources(value interface{}, fieldName string, toolNodeID string) {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			g.walkResources(child, key, toolNodeID)
		}

	case []interface{}:
		for i, child := range v {
			if i >= maxArrayItems {
				break
			}
			g.walkResources(child, fieldName, toolNodeID)
		}

	case string:
		if fieldNameIsIDLike(fieldName) && valueIsIDLike(v) {
			g.addResourceNode(fieldName, v, toolNodeID)
		}
	}
}
