package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpinspect/internal/envelope"
	"mcpinspect/internal/events"
	"mcpinspect/internal/graph"
	"mcpinspect/internal/llm"
	"mcpinspect/pkg/logging"
)

// reasonUnresolvedParams flags tools whose required parameters could not be
// resolved confidently from context.
const reasonUnresolvedParams = "Could not resolve required parameters from available context"

// confidenceThreshold is the minimum extraction confidence accepted when
// required parameters are missing.
const confidenceThreshold = 0.5

// Orchestrator owns one agent run at a time: its state, its resource graph
// and its event stream. All state mutation happens under mu; the run loop
// executes on its own goroutine and observes stop/pause at every suspension
// point.
type Orchestrator struct {
	mu  sync.Mutex
	cfg *Config
	bus *events.Bus

	status       Status
	tools        []mcp.Tool
	analysis     []llm.ToolAnalysis
	history      []Step
	flagged      []FlaggedTool
	executed     []string
	toolDepths   map[string]int
	currentDepth int
	startTime    int64
	endTime      int64
	lastError    string

	graph  *graph.Graph
	cancel context.CancelFunc

	// generation invalidates in-flight work: stop() bumps it, and any result
	// arriving under an older generation is discarded.
	generation int
}

// New creates an unconfigured orchestrator.
func New() *Orchestrator {
	return &Orchestrator{
		status:     StatusIdle,
		bus:        events.NewBus(events.DefaultBufferSize),
		graph:      graph.New(),
		toolDepths: make(map[string]int),
	}
}

// Configure sets the collaborators for subsequent runs. It may be called
// repeatedly; the next Start picks up the latest configuration. Configuring
// during a run is rejected.
func (o *Orchestrator) Configure(cfg Config) error {
	if cfg.LLM == nil {
		return fmt.Errorf("llm client is required")
	}
	if cfg.CallTool == nil {
		return fmt.Errorf("tool-call callback is required")
	}
	if cfg.ListTools == nil {
		return fmt.Errorf("list-tools callback is required")
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status == StatusRunning || o.status == StatusPaused {
		return ErrAlreadyRunning
	}
	o.cfg = &cfg
	return nil
}

// Start resets all run state and launches the execution loop.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	if o.cfg == nil {
		o.mu.Unlock()
		return ErrNotConfigured
	}
	if o.status == StatusRunning || o.status == StatusPaused {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}

	o.status = StatusRunning
	o.tools = nil
	o.analysis = nil
	o.history = nil
	o.flagged = nil
	o.executed = nil
	o.toolDepths = make(map[string]int)
	o.currentDepth = 0
	o.startTime = time.Now().UnixMilli()
	o.endTime = 0
	o.lastError = ""
	o.graph = graph.New()
	o.generation++
	gen := o.generation

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.mu.Unlock()

	o.bus.Publish(events.EventStatusChange, map[string]interface{}{"status": string(StatusRunning)})
	go o.run(ctx, gen, false)
	return nil
}

// Pause asks the loop to halt before selecting the next tool. The in-flight
// tool call, if any, completes first.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	if o.status != StatusRunning {
		o.mu.Unlock()
		return fmt.Errorf("agent is not running")
	}
	o.status = StatusPaused
	o.mu.Unlock()

	o.bus.Publish(events.EventStatusChange, map[string]interface{}{"status": string(StatusPaused)})
	return nil
}

// Resume re-enters the loop of a paused run.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	if o.status != StatusPaused {
		o.mu.Unlock()
		return fmt.Errorf("agent is not paused")
	}
	o.status = StatusRunning
	gen := o.generation

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.mu.Unlock()

	o.bus.Publish(events.EventStatusChange, map[string]interface{}{"status": string(StatusRunning)})
	go o.run(ctx, gen, true)
	return nil
}

// Stop aborts the run. In-flight LLM and tool calls are abandoned; any late
// result is discarded and no further events are emitted.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.status != StatusRunning && o.status != StatusPaused {
		o.mu.Unlock()
		return fmt.Errorf("agent is not running")
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.status = StatusIdle
	o.endTime = time.Now().UnixMilli()
	o.generation++
	o.mu.Unlock()

	o.bus.Publish(events.EventStatusChange, map[string]interface{}{"status": string(StatusIdle)})
	logging.Info("Agent", "Run stopped")
	return nil
}

// GetState returns a snapshot of the orchestrator.
func (o *Orchestrator) GetState() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := State{
		Status:       o.status,
		CurrentStep:  len(o.history),
		CurrentDepth: o.currentDepth,
		MaxDepth:     DefaultMaxDepth,
		StartTime:    o.startTime,
		EndTime:      o.endTime,
		Error:        o.lastError,
		Graph:        o.graph.Snapshot(),
	}
	if o.cfg != nil {
		state.MaxDepth = o.cfg.MaxDepth
	}
	state.Tools = append(state.Tools, o.tools...)
	state.Analysis = append(state.Analysis, o.analysis...)
	state.ExecutionHistory = append(state.ExecutionHistory, o.history...)
	state.FlaggedTools = append(state.FlaggedTools, o.flagged...)
	return state
}

// Subscribe attaches a new event listener. With replayState, the current
// snapshot is delivered first as a synthetic state event.
func (o *Orchestrator) Subscribe(replayState bool) (<-chan events.AgentEvent, func()) {
	if !replayState {
		return o.bus.Subscribe()
	}
	state := o.GetState()
	return o.bus.Subscribe(events.AgentEvent{
		Type:      events.EventState,
		Data:      map[string]interface{}{"state": state},
		Timestamp: time.Now().UnixMilli(),
	})
}

// current reports whether the given generation is still live and the loop
// should keep going.
func (o *Orchestrator) current(gen int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.generation
}

// emit publishes an event unless the generation has been invalidated.
func (o *Orchestrator) emit(gen int, eventType events.EventType, data map[string]interface{}) {
	if !o.current(gen) {
		return
	}
	o.bus.Publish(eventType, data)
}

// run is the execution loop. It returns silently when paused (state kept for
// Resume) and when stopped (generation invalidated).
func (o *Orchestrator) run(ctx context.Context, gen int, resumed bool) {
	defer func() {
		if r := recover(); r != nil {
			o.fatal(gen, fmt.Errorf("panic in agent loop: %v", r))
		}
	}()

	cfg := o.config()
	if cfg == nil {
		return
	}

	if !resumed {
		if err := o.discoverAndAnalyze(ctx, gen, cfg); err != nil {
			return
		}
	}

	o.loop(ctx, gen, cfg)
}

func (o *Orchestrator) config() *Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// discoverAndAnalyze fetches the tool catalog and runs dependency analysis.
func (o *Orchestrator) discoverAndAnalyze(ctx context.Context, gen int, cfg *Config) error {
	tools, err := cfg.ListTools(ctx)
	if err != nil {
		if ctx.Err() == nil {
			o.fatal(gen, fmt.Errorf("tool discovery failed: %w", err))
		}
		return err
	}
	if !o.current(gen) {
		return context.Canceled
	}

	o.mu.Lock()
	o.tools = tools
	o.mu.Unlock()
	logging.Info("Agent", "Discovered %d tools", len(tools))

	analysis, err := cfg.LLM.AnalyzeToolDependencies(ctx, tools)
	if err != nil {
		return err
	}
	if !o.current(gen) {
		return context.Canceled
	}

	o.mu.Lock()
	o.analysis = analysis
	o.mu.Unlock()
	o.emit(gen, events.EventAnalysisComplete, map[string]interface{}{"analysis": analysis})
	return nil
}

// loop drives tool selection and execution until no tool remains, the run is
// paused or stopped, or a fatal error occurs.
func (o *Orchestrator) loop(ctx context.Context, gen int, cfg *Config) {
	for {
		if ctx.Err() != nil || !o.current(gen) {
			return
		}

		o.mu.Lock()
		status := o.status
		tools := o.tools
		executed := append([]string(nil), o.executed...)
		currentDepth := o.currentDepth
		o.mu.Unlock()

		if status == StatusPaused {
			logging.Info("Agent", "Loop paused after %d executed tools", len(executed))
			return
		}
		if status != StatusRunning {
			return
		}

		contextData := o.graph.GetAvailableContext()

		selection, err := cfg.LLM.SelectNextTool(ctx, tools, executed, contextData, currentDepth, cfg.MaxDepth)
		if err != nil || !o.current(gen) {
			return
		}
		if selection.Tool == "" {
			logging.Info("Agent", "Selection finished: %s", selection.Reason)
			o.complete(gen)
			return
		}
		if contains(executed, selection.Tool) {
			// The model repeated itself; skip and ask again.
			continue
		}

		o.mu.Lock()
		o.executed = append(o.executed, selection.Tool)
		o.mu.Unlock()

		tool, found := findTool(tools, selection.Tool)
		if !found {
			logging.Warn("Agent", "Selected tool %s is not in the catalog", selection.Tool)
			continue
		}

		if halted := o.executeTool(ctx, gen, cfg, tool, contextData); halted {
			return
		}
	}
}

// executeTool runs one iteration body for the chosen tool. It returns true
// when the loop must halt (cancellation or fatal state change).
func (o *Orchestrator) executeTool(ctx context.Context, gen int, cfg *Config, tool mcp.Tool, contextData llm.Context) bool {
	nodeID := o.graph.AddPendingTool(tool.Name)

	extraction, err := cfg.LLM.ExtractParameters(ctx, tool, contextData)
	if err != nil || !o.current(gen) {
		return true
	}
	normalizeExtraction(&extraction)

	if len(extraction.MissingParams) > 0 && extraction.Confidence < confidenceThreshold {
		o.flagTool(gen, nodeID, tool.Name, reasonUnresolvedParams, extraction.MissingParams)
		return false
	}

	depth := o.depthFor(tool.Name, extraction.Sources)
	if depth > cfg.MaxDepth {
		reason := fmt.Sprintf("Exceeds max depth (%d > %d)", depth, cfg.MaxDepth)
		o.flagTool(gen, nodeID, tool.Name, reason, nil)
		return false
	}

	resolved := o.resolveSources(extraction.Sources)

	o.mu.Lock()
	if depth > o.currentDepth {
		o.currentDepth = depth
	}
	step := Step{
		ToolName:         tool.Name,
		NodeID:           nodeID,
		Parameters:       extraction.Params,
		ParameterSources: resolved,
		Status:           "running",
		Timestamp:        time.Now().UnixMilli(),
		Depth:            depth,
	}
	o.history = append(o.history, step)
	stepIndex := len(o.history) - 1
	o.mu.Unlock()

	o.graph.MarkToolRunning(nodeID, extraction.Params)

	if err := ValidateArguments(tool, extraction.Params); err != nil {
		// Advisory only: the call still goes out, mirroring what a human
		// operator could do through the inspector.
		logging.Warn("Agent", "Arguments for %s fail schema validation: %v", tool.Name, err)
	}

	o.emit(gen, events.EventToolStart, map[string]interface{}{
		"tool":       tool.Name,
		"parameters": extraction.Params,
		"depth":      depth,
	})

	result, callErr := cfg.CallTool(ctx, tool.Name, extraction.Params)
	if !o.current(gen) {
		// Stopped while the call was in flight: discard the result.
		return true
	}

	if callErr != nil {
		o.mu.Lock()
		o.history[stepIndex].Status = "failed"
		o.history[stepIndex].Error = callErr.Error()
		o.mu.Unlock()
		o.graph.MarkToolFailed(nodeID, callErr.Error())
		o.emit(gen, events.EventToolFailed, map[string]interface{}{
			"tool":  tool.Name,
			"error": callErr.Error(),
		})
		logging.Warn("Agent", "Tool %s failed: %v", tool.Name, callErr)
		return false
	}

	generic := envelope.FromResult(result)
	o.mu.Lock()
	o.history[stepIndex].Status = "completed"
	o.history[stepIndex].Result = generic
	o.mu.Unlock()
	o.graph.RecordToolExecution(nodeID, generic, resolved)
	o.emit(gen, events.EventToolComplete, map[string]interface{}{
		"tool":  tool.Name,
		"depth": depth,
	})
	logging.Info("Agent", "Tool %s completed at depth %d", tool.Name, depth)
	return false
}

// flagTool records a skipped tool and its graph node.
func (o *Orchestrator) flagTool(gen int, nodeID, toolName, reason string, missing []string) {
	o.mu.Lock()
	o.flagged = append(o.flagged, FlaggedTool{Tool: toolName, Reason: reason, MissingParams: missing})
	o.mu.Unlock()

	o.graph.MarkToolSkipped(nodeID, reason, missing)
	o.emit(gen, events.EventToolSkipped, map[string]interface{}{
		"tool":          toolName,
		"reason":        reason,
		"missingParams": missing,
	})
	logging.Info("Agent", "Flagged %s: %s", toolName, reason)
}

// depthFor computes the dependency depth of a tool: one plus the deepest
// recorded depth among its parameter source tools. Depth is recorded once
// per tool name and reused on recurrence.
func (o *Orchestrator) depthFor(toolName string, sources map[string]string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	if depth, ok := o.toolDepths[toolName]; ok {
		return depth
	}

	maxSource := 0
	for _, sourceLabel := range sources {
		sourceTool := sourceLabel
		if i := strings.Index(sourceLabel, "."); i >= 0 {
			sourceTool = sourceLabel[:i]
		}
		if depth, ok := o.toolDepths[sourceTool]; ok && depth > maxSource {
			maxSource = depth
		}
	}

	depth := maxSource + 1
	o.toolDepths[toolName] = depth
	return depth
}

// resolveSources maps each parameter's source label ("toolName.fieldPath")
// to a concrete graph node id, dropping parameters whose source tool has no
// node.
func (o *Orchestrator) resolveSources(sources map[string]string) map[string]string {
	resolved := make(map[string]string)
	for param, sourceLabel := range sources {
		sourceTool := sourceLabel
		if i := strings.Index(sourceLabel, "."); i >= 0 {
			sourceTool = sourceLabel[:i]
		}
		if nodeID, ok := o.graph.NodeIDForTool(sourceTool); ok {
			resolved[param] = nodeID
		}
	}
	return resolved
}

// complete moves a finished run to the completed state.
func (o *Orchestrator) complete(gen int) {
	o.mu.Lock()
	if gen != o.generation || o.status != StatusRunning {
		o.mu.Unlock()
		return
	}
	o.status = StatusCompleted
	o.endTime = time.Now().UnixMilli()
	executed := len(o.executed)
	flagged := len(o.flagged)
	failed := 0
	for _, step := range o.history {
		if step.Status == "failed" {
			failed++
		}
	}
	o.mu.Unlock()

	o.bus.Publish(events.EventStatusChange, map[string]interface{}{"status": string(StatusCompleted)})
	o.bus.Publish(events.EventAgentComplete, map[string]interface{}{
		"toolsExecuted": executed,
		"toolsFlagged":  flagged,
		"toolsFailed":   failed,
	})
	logging.Info("Agent", "Run complete: %d executed, %d flagged, %d failed", executed, flagged, failed)
}

// fatal moves the orchestrator to the error state.
func (o *Orchestrator) fatal(gen int, err error) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	o.status = StatusError
	o.lastError = err.Error()
	o.endTime = time.Now().UnixMilli()
	o.mu.Unlock()

	o.bus.Publish(events.EventStatusChange, map[string]interface{}{"status": string(StatusError)})
	o.bus.Publish(events.EventError, map[string]interface{}{"error": err.Error()})
	logging.Error("Agent", err, "Agent run failed")
}

func normalizeExtraction(extraction *llm.ParameterExtraction) {
	if extraction.Params == nil {
		extraction.Params = map[string]interface{}{}
	}
	if extraction.Sources == nil {
		extraction.Sources = map[string]string{}
	}
	if extraction.MissingParams == nil {
		extraction.MissingParams = []string{}
	}
}

func findTool(tools []mcp.Tool, name string) (mcp.Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return mcp.Tool{}, false
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
