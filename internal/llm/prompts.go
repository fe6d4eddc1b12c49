package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// The prompt templates below are part of the behavioral contract: the agent's
// decisions change with their wording. Every template instructs the model to
// emit raw JSON without markdown fences.

func describeTools(tools []mcp.Tool) string {
	var sb strings.Builder
	for _, tool := range tools {
		sb.WriteString("- ")
		sb.WriteString(tool.Name)
		if tool.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(tool.Description)
		}
		sb.WriteString("\n")
		if len(tool.InputSchema.Properties) > 0 {
			schema, err := json.Marshal(tool.InputSchema)
			if err == nil {
				sb.WriteString("  inputSchema: ")
				sb.Write(schema)
				sb.WriteString("\n")
			}
		}
		if len(tool.InputSchema.Required) > 0 {
			sb.WriteString(fmt.Sprintf("  required: %s\n", strings.Join(tool.InputSchema.Required, ", ")))
		}
	}
	return sb.String()
}

func marshalContext(contextData Context) string {
	if len(contextData) == 0 {
		return "(no tools executed yet - no context available)"
	}
	data, err := json.MarshalIndent(contextData, "", "  ")
	if err != nil {
		return "(context unavailable)"
	}
	return string(data)
}

func analyzePrompt(tools []mcp.Tool) string {
	return fmt.Sprintf(`You are analyzing the tools exposed by an MCP server to plan an execution order.

Available tools:
%s
For EVERY tool, determine:
1. Which parameters are required.
2. Whether it can execute without any prior context (no required parameters).
3. A suggested execution order (1..N, independent tools first).
4. Which other tool's output could supply each required parameter.

Respond with a raw JSON array, one entry per tool, in this exact shape:
[{"tool":"name","requiredParams":["p"],"canExecuteWithoutContext":true,"suggestedOrder":1,"dependencies":[{"paramName":"p","sourceTool":"otherTool","sourceField":"fieldPath","confidence":0.9}]}]

Confidence is a number between 0 and 1. Output raw JSON only. Do not wrap the response in markdown code fences.`, describeTools(tools))
}

func extractPrompt(tool mcp.Tool, contextData Context) string {
	return fmt.Sprintf(`You are resolving the parameters for the next tool call of an autonomous agent.

Target tool:
%s
Context from previously executed tools (tool name -> flattened result fields):
%s

Using ONLY values present in the context, produce the best parameter mapping for the target tool.
For every parameter you fill in, record where it came from as "toolName.fieldPath".
List required parameters you could NOT resolve in missingParams.

Respond with raw JSON in this exact shape:
{"params":{"name":"value"},"sources":{"name":"toolName.fieldPath"},"confidence":0.8,"missingParams":[]}

Confidence is a number between 0 and 1 reflecting how certain you are the mapping is correct.
Output raw JSON only. Do not wrap the response in markdown code fences.`, describeTools([]mcp.Tool{tool}), marshalContext(contextData))
}

func selectPrompt(unexecuted []mcp.Tool, executed []string, contextData Context, currentDepth, maxDepth int) string {
	executedList := "(none)"
	if len(executed) > 0 {
		executedList = strings.Join(executed, ", ")
	}
	return fmt.Sprintf(`You are choosing the next tool for an autonomous agent exploring an MCP server.

Tools available for selection:
%s
Already executed - do NOT select any of these: %s

Context from previously executed tools:
%s

Current depth: %d of maximum %d. Deeper calls must be justified by parameters that became available.

Selection preferences, in order:
1. Tools with no required parameters.
2. Search or list style tools that enumerate entities.
3. Get style tools whose required parameters are resolvable from the context.
4. Mutating tools last, and only when their parameters are fully resolvable.

Pick exactly one tool from the available set, or null if nothing sensible remains.

Respond with raw JSON in this exact shape:
{"tool":"toolName","reason":"why this tool is next"}
Use {"tool":null,"reason":"..."} when no tool should run.
Output raw JSON only. Do not wrap the response in markdown code fences.`, describeTools(unexecuted), executedList, marshalContext(contextData), currentDepth, maxDepth)
}
