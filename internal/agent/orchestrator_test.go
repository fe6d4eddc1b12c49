package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpinspect/internal/events"
	"mcpinspect/internal/llm"
)

// scriptedLLM replays canned selections and extractions.
type scriptedLLM struct {
	mu          sync.Mutex
	selections  []llm.ToolSelection
	extractions map[string]llm.ParameterExtraction
}

func (s *scriptedLLM) AnalyzeToolDependencies(_ context.Context, tools []mcp.Tool) ([]llm.ToolAnalysis, error) {
	analysis := make([]llm.ToolAnalysis, 0, len(tools))
	for i, tool := range tools {
		analysis = append(analysis, llm.ToolAnalysis{
			Tool:           tool.Name,
			SuggestedOrder: i + 1,
		})
	}
	return analysis, nil
}

func (s *scriptedLLM) ExtractParameters(_ context.Context, tool mcp.Tool, _ llm.Context) (llm.ParameterExtraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ext, ok := s.extractions[tool.Name]; ok {
		return ext, nil
	}
	return llm.ParameterExtraction{
		Params:     map[string]interface{}{},
		Sources:    map[string]string{},
		Confidence: 1,
	}, nil
}

func (s *scriptedLLM) SelectNextTool(_ context.Context, _ []mcp.Tool, _ []string, _ llm.Context, _, _ int) (llm.ToolSelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.selections) == 0 {
		return llm.ToolSelection{Reason: "All tools have been executed"}, nil
	}
	next := s.selections[0]
	s.selections = s.selections[1:]
	return next, nil
}

func simpleTool(name string) mcp.Tool {
	return mcp.Tool{
		Name: name,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func listerFor(tools ...mcp.Tool) ToolLister {
	return func(context.Context) ([]mcp.Tool, error) {
		return tools, nil
	}
}

func textResult(payload string) *mcp.CallToolResult {
	return mcp.NewToolResultText(payload)
}

func waitStatus(t *testing.T, o *Orchestrator, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return o.GetState().Status == want
	}, 2*time.Second, 10*time.Millisecond, "expected status %s, got %s", want, o.GetState().Status)
}

func drain(ch <-chan events.AgentEvent) []events.AgentEvent {
	var collected []events.AgentEvent
	for {
		select {
		case event := <-ch:
			collected = append(collected, event)
		default:
			return collected
		}
	}
}

func eventTypes(list []events.AgentEvent) []events.EventType {
	types := make([]events.EventType, 0, len(list))
	for _, event := range list {
		types = append(types, event.Type)
	}
	return types
}

func TestStartRequiresConfiguration(t *testing.T) {
	o := New()
	assert.ErrorIs(t, o.Start(), ErrNotConfigured)
}

func TestConfigureValidation(t *testing.T) {
	o := New()
	model := &scriptedLLM{}
	caller := func(context.Context, string, map[string]interface{}) (*mcp.CallToolResult, error) {
		return textResult("{}"), nil
	}

	assert.Error(t, o.Configure(Config{CallTool: caller, ListTools: listerFor()}))
	assert.Error(t, o.Configure(Config{LLM: model, ListTools: listerFor()}))
	assert.Error(t, o.Configure(Config{LLM: model, CallTool: caller}))
	assert.NoError(t, o.Configure(Config{LLM: model, CallTool: caller, ListTools: listerFor()}))
	assert.Equal(t, DefaultMaxDepth, o.cfg.MaxDepth)
}

func TestRunExecutesChainAndCompletes(t *testing.T) {
	model := &scriptedLLM{
		selections: []llm.ToolSelection{
			{Tool: "listPages", Reason: "no parameters needed"},
			{Tool: "getPage", Reason: "id available from listPages"},
		},
		extractions: map[string]llm.ParameterExtraction{
			"getPage": {
				Params:     map[string]interface{}{"pageId": "11111111-2222-4333-8444-555555555555"},
				Sources:    map[string]string{"pageId": "listPages.results[0].id"},
				Confidence: 0.95,
			},
		},
	}

	var calls []string
	caller := func(_ context.Context, name string, _ map[string]interface{}) (*mcp.CallToolResult, error) {
		calls = append(calls, name)
		if name == "listPages" {
			return textResult(`{"results":[{"id":"11111111-2222-4333-8444-555555555555","title":"hello"}]}`), nil
		}
		return textResult(`{"id":"11111111-2222-4333-8444-555555555555","body":"content"}`), nil
	}

	o := New()
	require.NoError(t, o.Configure(Config{LLM: model, CallTool: caller, ListTools: listerFor(simpleTool("listPages"), simpleTool("getPage"))}))

	ch, unsub := o.Subscribe(false)
	defer unsub()

	require.NoError(t, o.Start())
	waitStatus(t, o, StatusCompleted)

	state := o.GetState()
	require.Len(t, state.ExecutionHistory, 2)
	assert.Equal(t, []string{"listPages", "getPage"}, calls)

	first, second := state.ExecutionHistory[0], state.ExecutionHistory[1]
	assert.Equal(t, "completed", first.Status)
	assert.Equal(t, 1, first.Depth)
	assert.Equal(t, "completed", second.Status)
	assert.Equal(t, 2, second.Depth, "getPage depends on listPages output")
	assert.Equal(t, 2, state.CurrentDepth)
	assert.Empty(t, state.FlaggedTools)

	// The source reference becomes a provided edge in the graph.
	foundEdge := false
	for _, edge := range state.Graph.Edges {
		if edge.Relation == "provided_pageId" {
			foundEdge = true
		}
	}
	assert.True(t, foundEdge, "expected a provided_pageId edge")

	types := eventTypes(drain(ch))
	assert.Contains(t, types, events.EventAnalysisComplete)
	assert.Contains(t, types, events.EventToolStart)
	assert.Contains(t, types, events.EventToolComplete)
	assert.Contains(t, types, events.EventAgentComplete)
}

func TestLowConfidenceExtractionFlagsTool(t *testing.T) {
	model := &scriptedLLM{
		selections: []llm.ToolSelection{
			{Tool: "updatePage", Reason: "try the mutation"},
		},
		extractions: map[string]llm.ParameterExtraction{
			"updatePage": {
				Params:        map[string]interface{}{},
				Confidence:    0.2,
				MissingParams: []string{"pageId", "body"},
			},
		},
	}

	called := false
	caller := func(context.Context, string, map[string]interface{}) (*mcp.CallToolResult, error) {
		called = true
		return textResult("{}"), nil
	}

	o := New()
	require.NoError(t, o.Configure(Config{LLM: model, CallTool: caller, ListTools: listerFor(simpleTool("updatePage"))}))

	ch, unsub := o.Subscribe(false)
	defer unsub()

	require.NoError(t, o.Start())
	waitStatus(t, o, StatusCompleted)

	assert.False(t, called, "flagged tool must not be executed")

	state := o.GetState()
	require.Len(t, state.FlaggedTools, 1)
	assert.Equal(t, "updatePage", state.FlaggedTools[0].Tool)
	assert.Equal(t, "Could not resolve required parameters from available context", state.FlaggedTools[0].Reason)
	assert.ElementsMatch(t, []string{"pageId", "body"}, state.FlaggedTools[0].MissingParams)
	assert.Empty(t, state.ExecutionHistory)

	assert.Contains(t, eventTypes(drain(ch)), events.EventToolSkipped)
}

func TestDepthBoundFlagsTool(t *testing.T) {
	model := &scriptedLLM{
		selections: []llm.ToolSelection{
			{Tool: "a"},
			{Tool: "b"},
			{Tool: "c"},
		},
		extractions: map[string]llm.ParameterExtraction{
			"b": {
				Params:     map[string]interface{}{"id": "ref-1"},
				Sources:    map[string]string{"id": "a.items[0].id"},
				Confidence: 0.9,
			},
			"c": {
				Params:     map[string]interface{}{"id": "ref-2"},
				Sources:    map[string]string{"id": "b.id"},
				Confidence: 0.9,
			},
		},
	}

	caller := func(_ context.Context, name string, _ map[string]interface{}) (*mcp.CallToolResult, error) {
		return textResult(fmt.Sprintf(`{"from":%q}`, name)), nil
	}

	o := New()
	require.NoError(t, o.Configure(Config{
		LLM:       model,
		CallTool:  caller,
		ListTools: listerFor(simpleTool("a"), simpleTool("b"), simpleTool("c")),
		MaxDepth:  2,
	}))

	require.NoError(t, o.Start())
	waitStatus(t, o, StatusCompleted)

	state := o.GetState()
	require.Len(t, state.ExecutionHistory, 2, "a and b execute, c is flagged")
	require.Len(t, state.FlaggedTools, 1)
	assert.Equal(t, "c", state.FlaggedTools[0].Tool)
	assert.Equal(t, "Exceeds max depth (3 > 2)", state.FlaggedTools[0].Reason)
}

func TestFailedToolIsNonFatal(t *testing.T) {
	model := &scriptedLLM{
		selections: []llm.ToolSelection{
			{Tool: "broken"},
			{Tool: "working"},
		},
	}

	caller := func(_ context.Context, name string, _ map[string]interface{}) (*mcp.CallToolResult, error) {
		if name == "broken" {
			return nil, errors.New("downstream exploded")
		}
		return textResult(`{"ok":true}`), nil
	}

	o := New()
	require.NoError(t, o.Configure(Config{LLM: model, CallTool: caller, ListTools: listerFor(simpleTool("broken"), simpleTool("working"))}))

	ch, unsub := o.Subscribe(false)
	defer unsub()

	require.NoError(t, o.Start())
	waitStatus(t, o, StatusCompleted)

	state := o.GetState()
	require.Len(t, state.ExecutionHistory, 2)
	assert.Equal(t, "failed", state.ExecutionHistory[0].Status)
	assert.Equal(t, "downstream exploded", state.ExecutionHistory[0].Error)
	assert.Equal(t, "completed", state.ExecutionHistory[1].Status)

	assert.Contains(t, eventTypes(drain(ch)), events.EventToolFailed)
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	model := &scriptedLLM{
		selections: []llm.ToolSelection{{Tool: "slow"}},
	}

	entered := make(chan struct{})
	proceed := make(chan struct{})
	caller := func(context.Context, string, map[string]interface{}) (*mcp.CallToolResult, error) {
		close(entered)
		<-proceed
		return textResult(`{"late":true}`), nil
	}

	o := New()
	require.NoError(t, o.Configure(Config{LLM: model, CallTool: caller, ListTools: listerFor(simpleTool("slow"))}))

	ch, unsub := o.Subscribe(false)
	defer unsub()

	require.NoError(t, o.Start())
	<-entered
	require.NoError(t, o.Stop())
	close(proceed)

	time.Sleep(50 * time.Millisecond)

	state := o.GetState()
	assert.Equal(t, StatusIdle, state.Status)
	require.Len(t, state.ExecutionHistory, 1)
	assert.Equal(t, "running", state.ExecutionHistory[0].Status, "late result must be discarded")

	assert.NotContains(t, eventTypes(drain(ch)), events.EventToolComplete)
}

func TestPauseAndResume(t *testing.T) {
	model := &scriptedLLM{
		selections: []llm.ToolSelection{
			{Tool: "first"},
			{Tool: "second"},
		},
	}

	o := New()
	var pauseOnce sync.Once
	caller := func(_ context.Context, name string, _ map[string]interface{}) (*mcp.CallToolResult, error) {
		if name == "first" {
			// Pausing mid-call is observed once the call finishes.
			pauseOnce.Do(func() { require.NoError(t, o.Pause()) })
		}
		return textResult(`{"ok":true}`), nil
	}

	require.NoError(t, o.Configure(Config{LLM: model, CallTool: caller, ListTools: listerFor(simpleTool("first"), simpleTool("second"))}))
	require.NoError(t, o.Start())

	waitStatus(t, o, StatusPaused)
	state := o.GetState()
	require.Len(t, state.ExecutionHistory, 1)
	assert.Equal(t, "first", state.ExecutionHistory[0].ToolName)

	require.NoError(t, o.Resume())
	waitStatus(t, o, StatusCompleted)

	state = o.GetState()
	require.Len(t, state.ExecutionHistory, 2)
	assert.Equal(t, "second", state.ExecutionHistory[1].ToolName)
}

func TestDoubleStartRejected(t *testing.T) {
	model := &scriptedLLM{
		selections: []llm.ToolSelection{{Tool: "slow"}},
	}

	entered := make(chan struct{})
	proceed := make(chan struct{})
	caller := func(context.Context, string, map[string]interface{}) (*mcp.CallToolResult, error) {
		close(entered)
		<-proceed
		return textResult("{}"), nil
	}

	o := New()
	require.NoError(t, o.Configure(Config{LLM: model, CallTool: caller, ListTools: listerFor(simpleTool("slow"))}))
	require.NoError(t, o.Start())
	<-entered

	assert.ErrorIs(t, o.Start(), ErrAlreadyRunning)
	assert.ErrorIs(t, o.Configure(Config{LLM: model, CallTool: caller, ListTools: listerFor()}), ErrAlreadyRunning)

	close(proceed)
	waitStatus(t, o, StatusCompleted)
}

func TestSubscribeWithReplayDeliversState(t *testing.T) {
	o := New()
	ch, unsub := o.Subscribe(true)
	defer unsub()

	event := <-ch
	assert.Equal(t, events.EventState, event.Type)
	snapshot, ok := event.Data["state"].(State)
	require.True(t, ok)
	assert.Equal(t, StatusIdle, snapshot.Status)
}

func TestValidateArgumentsAdvisory(t *testing.T) {
	tool := mcp.Tool{
		Name: "createPage",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title": map[string]interface{}{"type": "string"},
			},
			Required: []string{"title"},
		},
	}

	assert.NoError(t, ValidateArguments(tool, map[string]interface{}{"title": "hello"}))
	assert.Error(t, ValidateArguments(tool, map[string]interface{}{}))
	assert.Error(t, ValidateArguments(tool, map[string]interface{}{"title": 42}))

	// A tool with no schema at all validates trivially.
	assert.NoError(t, ValidateArguments(mcp.Tool{Name: "bare"}, map[string]interface{}{"anything": true}))
}
