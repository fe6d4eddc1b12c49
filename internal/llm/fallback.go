package llm

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// The fallbacks below keep the agent alive when a model reply is missing or
// unparseable. They are deliberately conservative: schema-derived analysis,
// an empty extraction, and a heuristic selection.

func fallbackAnalysis(tools []mcp.Tool) []ToolAnalysis {
	out := make([]ToolAnalysis, 0, len(tools))
	for i, tool := range tools {
		required := tool.InputSchema.Required
		out = append(out, ToolAnalysis{
			Tool:                     tool.Name,
			RequiredParams:           required,
			CanExecuteWithoutContext: len(required) == 0,
			SuggestedOrder:           i + 1,
			Dependencies:             []Dependency{},
		})
	}
	return out
}

func fallbackExtraction(tool mcp.Tool) ParameterExtraction {
	missing := tool.InputSchema.Required
	if missing == nil {
		missing = []string{}
	}
	return ParameterExtraction{
		Params:        map[string]interface{}{},
		Sources:       map[string]string{},
		Confidence:    0,
		MissingParams: missing,
	}
}

// fallbackSelection picks an unexecuted tool without the model: first any
// tool with no required parameters, then any tool whose required parameter
// names all appear as substrings of some context value, otherwise nothing.
func fallbackSelection(unexecuted []mcp.Tool, contextData Context) ToolSelection {
	for _, tool := range unexecuted {
		if len(tool.InputSchema.Required) == 0 {
			return ToolSelection{
				Tool:   tool.Name,
				Reason: fmt.Sprintf("Fallback selection: %s requires no parameters", tool.Name),
			}
		}
	}

	for _, tool := range unexecuted {
		if requiredNamesInContext(tool.InputSchema.Required, contextData) {
			return ToolSelection{
				Tool:   tool.Name,
				Reason: fmt.Sprintf("Fallback selection: required parameters of %s appear in context", tool.Name),
			}
		}
	}

	return ToolSelection{Reason: "Fallback selection: no executable tool found"}
}

func requiredNamesInContext(required []string, contextData Context) bool {
	for _, name := range required {
		if !nameInContext(name, contextData) {
			return false
		}
	}
	return len(required) > 0
}

func nameInContext(name string, contextData Context) bool {
	for _, flat := range contextData {
		for _, value := range flat {
			if s, ok := value.(string); ok && strings.Contains(s, name) {
				return true
			}
			if strings.Contains(fmt.Sprintf("%v", value), name) {
				return true
			}
		}
	}
	return false
}
