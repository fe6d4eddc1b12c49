// Package agent runs the autonomous tool-chaining loop: discover tools,
// analyze dependencies, repeatedly pick the next tool, resolve its
// parameters from accumulated context, execute, and absorb the result into
// the resource graph, until the model runs out of sensible moves or a bound
// is hit.
package agent

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpinspect/internal/graph"
	"mcpinspect/internal/llm"
)

// Status is the lifecycle state of an orchestrator.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// DefaultMaxDepth bounds dependency-chain length when no override is given.
const DefaultMaxDepth = 10

var (
	// ErrNotConfigured is returned by Start before Configure has been called.
	ErrNotConfigured = errors.New("agent is not configured")

	// ErrAlreadyRunning is returned by Start while a run is in progress.
	ErrAlreadyRunning = errors.New("agent is already running")
)

// ToolCaller executes one tool against the downstream server.
type ToolCaller func(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)

// ToolLister fetches the downstream tool catalog.
type ToolLister func(ctx context.Context) ([]mcp.Tool, error)

// Config wires an orchestrator to its collaborators.
type Config struct {
	LLM       llm.Client
	CallTool  ToolCaller
	ListTools ToolLister
	MaxDepth  int
}

// Step is one entry of the execution history.
type Step struct {
	ToolName         string                 `json:"toolName"`
	NodeID           string                 `json:"nodeId"`
	Parameters       map[string]interface{} `json:"parameters,omitempty"`
	ParameterSources map[string]string      `json:"parameterSources,omitempty"`
	Status           string                 `json:"status"`
	Result           interface{}            `json:"result,omitempty"`
	Error            string                 `json:"error,omitempty"`
	Timestamp        int64                  `json:"timestamp"`
	Depth            int                    `json:"depth"`
}

// FlaggedTool records a tool the agent refused to execute, with the reason.
type FlaggedTool struct {
	Tool          string   `json:"tool"`
	Reason        string   `json:"reason"`
	MissingParams []string `json:"missingParams,omitempty"`
}

// State is a copyable snapshot of an orchestrator.
type State struct {
	Status           Status             `json:"status"`
	Tools            []mcp.Tool         `json:"tools,omitempty"`
	Analysis         []llm.ToolAnalysis `json:"analysis,omitempty"`
	ExecutionHistory []Step             `json:"executionHistory,omitempty"`
	CurrentStep      int                `json:"currentStep"`
	CurrentDepth     int                `json:"currentDepth"`
	MaxDepth         int                `json:"maxDepth"`
	FlaggedTools     []FlaggedTool      `json:"flaggedTools,omitempty"`
	Graph            graph.Snapshot     `json:"graph"`
	StartTime        int64              `json:"startTime,omitempty"`
	EndTime          int64              `json:"endTime,omitempty"`
	Error            string             `json:"error,omitempty"`
}
