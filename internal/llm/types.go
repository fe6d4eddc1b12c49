// Package llm provides the three model-backed decisions the agent loop
// needs: dependency analysis over a tool catalog, parameter extraction from
// accumulated context, and next-tool selection. Providers differ only in
// transport; prompts and fallback policies are shared.
package llm

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Provider identifies an LLM backend variant.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Dependency describes one parameter of a tool that another tool's output
// can satisfy.
type Dependency struct {
	ParamName   string  `json:"paramName"`
	SourceTool  string  `json:"sourceTool"`
	SourceField string  `json:"sourceField"`
	Confidence  float64 `json:"confidence"`
}

// ToolAnalysis is the per-tool outcome of dependency analysis.
type ToolAnalysis struct {
	Tool                     string       `json:"tool"`
	RequiredParams           []string     `json:"requiredParams"`
	CanExecuteWithoutContext bool         `json:"canExecuteWithoutContext"`
	SuggestedOrder           int          `json:"suggestedOrder"`
	Dependencies             []Dependency `json:"dependencies"`
}

// ParameterExtraction is a best-effort parameter mapping for a target tool.
// Sources entries use the "toolName.fieldPath" convention; only the token
// before the first dot identifies the source tool.
type ParameterExtraction struct {
	Params        map[string]interface{} `json:"params"`
	Sources       map[string]string      `json:"sources"`
	Confidence    float64                `json:"confidence"`
	MissingParams []string               `json:"missingParams"`
}

// ToolSelection names the next tool to execute, or no tool (empty Tool) with
// a human-readable reason.
type ToolSelection struct {
	Tool   string `json:"tool"`
	Reason string `json:"reason"`
}

// Context is the accumulated knowledge passed to the model: tool name to the
// sanitized flattened result of its most recent successful call.
type Context = map[string]map[string]interface{}

// Client is the capability set every provider implements. Transport and
// parse failures never surface as errors; each operation degrades to a safe
// fallback. The returned error is non-nil only when ctx is cancelled.
type Client interface {
	AnalyzeToolDependencies(ctx context.Context, tools []mcp.Tool) ([]ToolAnalysis, error)
	ExtractParameters(ctx context.Context, tool mcp.Tool, contextData Context) (ParameterExtraction, error)
	SelectNextTool(ctx context.Context, tools []mcp.Tool, executed []string, contextData Context, currentDepth, maxDepth int) (ToolSelection, error)
}
