package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpinspect/pkg/logging"
)

// backend is the transport half of a provider: one prompt in, one raw text
// reply out.
type backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// client implements Client on top of any backend. All prompt construction,
// reply parsing and fallback policy lives here so the provider variants stay
// transport-only.
type client struct {
	backend backend
}

// New creates a Client for the given provider. The model may be empty to use
// the provider's default.
func New(provider Provider, apiKey, model string) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required for provider %s", provider)
	}
	switch provider {
	case ProviderClaude:
		return &client{backend: newClaudeBackend(apiKey, model)}, nil
	case ProviderGemini:
		return &client{backend: newGeminiBackend(apiKey, model)}, nil
	case ProviderOpenAI:
		return &client{backend: newOpenAIBackend(apiKey, model)}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// complete runs the backend and reports whether a usable reply came back.
// Transport failures are logged and reported as not-ok so callers fall back.
func (c *client) complete(ctx context.Context, prompt string) (string, bool, error) {
	reply, err := c.backend.Complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		logging.Warn("LLM", "%s request failed, using fallback: %v", c.backend.Name(), err)
		return "", false, nil
	}
	return stripFences(reply), true, nil
}

func (c *client) AnalyzeToolDependencies(ctx context.Context, tools []mcp.Tool) ([]ToolAnalysis, error) {
	reply, ok, err := c.complete(ctx, analyzePrompt(tools))
	if err != nil {
		return nil, err
	}
	if !ok {
		return fallbackAnalysis(tools), nil
	}

	var analysis []ToolAnalysis
	if err := json.Unmarshal([]byte(reply), &analysis); err != nil {
		logging.Warn("LLM", "Unparseable dependency analysis, using fallback: %v", err)
		return fallbackAnalysis(tools), nil
	}
	return analysis, nil
}

func (c *client) ExtractParameters(ctx context.Context, tool mcp.Tool, contextData Context) (ParameterExtraction, error) {
	reply, ok, err := c.complete(ctx, extractPrompt(tool, contextData))
	if err != nil {
		return ParameterExtraction{}, err
	}
	if !ok {
		return fallbackExtraction(tool), nil
	}

	var extraction ParameterExtraction
	if err := json.Unmarshal([]byte(reply), &extraction); err != nil {
		logging.Warn("LLM", "Unparseable parameter extraction for %s, using fallback: %v", tool.Name, err)
		return fallbackExtraction(tool), nil
	}

	// Partial replies are normal; never hand the caller nil maps.
	if extraction.Params == nil {
		extraction.Params = map[string]interface{}{}
	}
	if extraction.Sources == nil {
		extraction.Sources = map[string]string{}
	}
	if extraction.MissingParams == nil {
		extraction.MissingParams = []string{}
	}
	return extraction, nil
}

// selection mirrors ToolSelection but keeps tool nullable, matching the
// prompt contract ({"tool":null,...}).
type selection struct {
	Tool   *string `json:"tool"`
	Reason string  `json:"reason"`
}

func (c *client) SelectNextTool(ctx context.Context, tools []mcp.Tool, executed []string, contextData Context, currentDepth, maxDepth int) (ToolSelection, error) {
	if currentDepth >= maxDepth {
		return ToolSelection{Reason: "Maximum depth reached"}, nil
	}

	unexecuted := unexecutedTools(tools, executed)
	if len(unexecuted) == 0 {
		return ToolSelection{Reason: "All tools have been executed"}, nil
	}

	reply, ok, err := c.complete(ctx, selectPrompt(unexecuted, executed, contextData, currentDepth, maxDepth))
	if err != nil {
		return ToolSelection{}, err
	}
	if !ok {
		return fallbackSelection(unexecuted, contextData), nil
	}

	if sel, ok := parseSelection(reply); ok {
		return sel, nil
	}
	logging.Warn("LLM", "Unparseable tool selection, using fallback")
	return fallbackSelection(unexecuted, contextData), nil
}

// parseSelection accepts both a single selection object and an array of
// them; some models answer with an array despite the prompt.
func parseSelection(reply string) (ToolSelection, bool) {
	var single selection
	if err := json.Unmarshal([]byte(reply), &single); err == nil {
		return selectionFrom(single), true
	}

	var many []selection
	if err := json.Unmarshal([]byte(reply), &many); err == nil {
		if len(many) > 0 && many[0].Tool != nil {
			return selectionFrom(many[0]), true
		}
	}
	return ToolSelection{}, false
}

func selectionFrom(s selection) ToolSelection {
	out := ToolSelection{Reason: s.Reason}
	if s.Tool != nil {
		out.Tool = *s.Tool
	}
	return out
}

func unexecutedTools(tools []mcp.Tool, executed []string) []mcp.Tool {
	done := make(map[string]bool, len(executed))
	for _, name := range executed {
		done[name] = true
	}
	var out []mcp.Tool
	for _, tool := range tools {
		if !done[tool.Name] {
			out = append(out, tool)
		}
	}
	return out
}
