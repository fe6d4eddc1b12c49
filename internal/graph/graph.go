// Package graph maintains the in-memory provenance graph of one agent run:
// tool invocations and the identifiers they surfaced, with edges recording
// which tool provided which parameter and which tool discovered which
// resource. The graph is owned by a single orchestrator and never shared.
package graph

import (
	"fmt"
	"sync"
	"time"

	"mcpinspect/pkg/logging"
)

// NodeType distinguishes tool invocations from discovered resources.
type NodeType string

const (
	NodeTool     NodeType = "tool"
	NodeResource NodeType = "resource"
)

// NodeStatus is the lifecycle state of a tool node. Resource nodes are
// created completed.
type NodeStatus string

const (
	StatusPending   NodeStatus = "pending"
	StatusRunning   NodeStatus = "running"
	StatusCompleted NodeStatus = "completed"
	StatusFailed    NodeStatus = "failed"
	StatusSkipped   NodeStatus = "skipped"
)

// terminal reports whether a status permits no further transitions.
func (s NodeStatus) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Node is a vertex in the provenance graph.
type Node struct {
	ID        string                 `json:"id"`
	Type      NodeType               `json:"type"`
	Name      string                 `json:"name"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Status    NodeStatus             `json:"status"`
}

// Edge is a directed source→target relation.
type Edge struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Relation  string `json:"relation"`
	ParamName string `json:"paramName,omitempty"`
}

// Snapshot is a point-in-time copy of the graph for serialization.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Graph is the per-run provenance graph.
type Graph struct {
	mu           sync.Mutex
	nodes        map[string]*Node
	order        []string // node ids in insertion order
	edges        []Edge
	toolResults  map[string]map[string]interface{} // flattened result per tool name, most recent wins
	resourceSeen map[string]struct{}               // resource node keys, deduped for the graph's lifetime
	seq          int64
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:        make(map[string]*Node),
		toolResults:  make(map[string]map[string]interface{}),
		resourceSeen: make(map[string]struct{}),
	}
}

func (g *Graph) nextSeq() int64 {
	g.seq++
	return g.seq
}

// AddPendingTool creates a pending tool node and returns its id. Tool node
// ids are unique even for repeated invocations of the same tool.
func (g *Graph) AddPendingTool(name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := fmt.Sprintf("tool_%s_%d_%d", name, time.Now().UnixMilli(), g.nextSeq())
	g.nodes[id] = &Node{
		ID:        id,
		Type:      NodeTool,
		Name:      name,
		Timestamp: time.Now().UnixMilli(),
		Status:    StatusPending,
	}
	g.order = append(g.order, id)
	return id
}

// MarkToolRunning transitions a pending tool node to running and records its
// parameters. Unknown ids and invalid transitions are ignored.
func (g *Graph) MarkToolRunning(nodeID string, params map[string]interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[nodeID]
	if !ok || node.Status.terminal() {
		return
	}
	node.Status = StatusRunning
	if node.Data == nil {
		node.Data = make(map[string]interface{})
	}
	node.Data["parameters"] = params
}

// RecordToolExecution completes a tool node: it stores the raw result,
// publishes the flattened result under the tool name, adds provenance edges
// for every resolved parameter source, and extracts resource nodes from the
// result. Unknown ids are ignored.
func (g *Graph) RecordToolExecution(nodeID string, result interface{}, paramSources map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[nodeID]
	if !ok || node.Status.terminal() {
		return
	}

	node.Status = StatusCompleted
	if node.Data == nil {
		node.Data = make(map[string]interface{})
	}
	node.Data["result"] = result

	g.toolResults[node.Name] = Flatten(result)

	for param, sourceID := range paramSources {
		if _, exists := g.nodes[sourceID]; !exists {
			continue
		}
		g.edges = append(g.edges, Edge{
			ID:        fmt.Sprintf("edge_%d", g.nextSeq()),
			Source:    sourceID,
			Target:    nodeID,
			Relation:  "provided_" + param,
			ParamName: param,
		})
	}

	g.extractResources(result, nodeID)
}

// MarkToolFailed transitions a tool node to failed with the error message.
func (g *Graph) MarkToolFailed(nodeID string, errMsg string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[nodeID]
	if !ok || node.Status.terminal() {
		return
	}
	node.Status = StatusFailed
	if node.Data == nil {
		node.Data = make(map[string]interface{})
	}
	node.Data["error"] = errMsg
}

// MarkToolSkipped transitions a tool node to skipped with the reason and the
// parameters that could not be resolved.
func (g *Graph) MarkToolSkipped(nodeID string, reason string, missingParams []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[nodeID]
	if !ok || node.Status.terminal() {
		return
	}
	node.Status = StatusSkipped
	if node.Data == nil {
		node.Data = make(map[string]interface{})
	}
	node.Data["reason"] = reason
	if len(missingParams) > 0 {
		node.Data["missingParams"] = missingParams
	}
}

// NodeIDForTool returns the most recent tool node with the given name.
func (g *Graph) NodeIDForTool(name string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Insertion order is creation order, so the last match is the most
	// recent invocation.
	for i := len(g.order) - 1; i >= 0; i-- {
		node := g.nodes[g.order[i]]
		if node.Type == NodeTool && node.Name == name {
			return node.ID, true
		}
	}
	return "", false
}

// ToolResult returns the flattened result of the tool's most recent
// successful call.
func (g *Graph) ToolResult(name string) (map[string]interface{}, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	flat, ok := g.toolResults[name]
	return flat, ok
}

// Snapshot returns a copy of all nodes (in insertion order) and edges.
func (g *Graph) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := Snapshot{
		Nodes: make([]Node, 0, len(g.order)),
		Edges: make([]Edge, len(g.edges)),
	}
	for _, id := range g.order {
		snap.Nodes = append(snap.Nodes, *g.nodes[id])
	}
	copy(snap.Edges, g.edges)
	return snap
}

// addResourceNode creates a resource node and its discovery edge. Callers
// must hold g.mu. Duplicate resource keys are skipped for the lifetime of
// the graph.
func (g *Graph) addResourceNode(fieldName, value, toolNodeID string) {
	key := fmt.Sprintf("resource_%s_%s", fieldName, value)
	if _, dup := g.resourceSeen[key]; dup {
		return
	}
	g.resourceSeen[key] = struct{}{}

	g.nodes[key] = &Node{
		ID:   key,
		Type: NodeResource,
		Name: value,
		Data: map[string]interface{}{
			"fieldName": fieldName,
			"value":     value,
		},
		Timestamp: time.Now().UnixMilli(),
		Status:    StatusCompleted,
	}
	g.order = append(g.order, key)

	g.edges = append(g.edges, Edge{
		ID:        fmt.Sprintf("edge_%d", g.nextSeq()),
		Source:    toolNodeID,
		Target:    key,
		Relation:  "discovered",
		ParamName: fieldName,
	})

	logging.Debug("Graph", "Discovered resource %s=%s", fieldName, value)
}
