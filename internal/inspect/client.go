// Package inspect provides the interactive side of the tool: an MCP client
// for talking to a downstream tool server and a readline REPL for poking at
// it. Every tools/call made through the REPL is fed to the resource indexer
// under the active profile, so interactive exploration builds the same
// resource knowledge the agent uses.
package inspect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"mcpinspect/pkg/logging"
)

// TransportType selects how the client reaches the downstream server.
type TransportType string

const (
	TransportSSE            TransportType = "sse"
	TransportStreamableHTTP TransportType = "streamable-http"
)

const defaultTimeout = 30 * time.Second

// Client wraps an MCP connection to a downstream tool server with a cached
// tool catalog.
type Client struct {
	endpoint  string
	transport TransportType
	client    client.MCPClient
	toolCache []mcp.Tool
	mu        sync.RWMutex
	timeout   time.Duration
}

// NewClient prepares a client for the given endpoint. Connect must be
// called before any request.
func NewClient(endpoint string, transport TransportType) *Client {
	return &Client{
		endpoint:  endpoint,
		transport: transport,
		timeout:   defaultTimeout,
	}
}

// Connect establishes the transport and performs the protocol handshake.
func (c *Client) Connect(ctx context.Context) error {
	logging.Info("Inspect", "Connecting to %s using %s transport", c.endpoint, c.transport)

	var mcpClient client.MCPClient
	switch c.transport {
	case TransportSSE:
		sseClient, err := client.NewSSEMCPClient(c.endpoint)
		if err != nil {
			return fmt.Errorf("failed to create SSE client: %w", err)
		}
		if err := sseClient.Start(ctx); err != nil {
			return fmt.Errorf("failed to start SSE client: %w", err)
		}
		mcpClient = sseClient

	case TransportStreamableHTTP:
		httpClient, err := client.NewStreamableHttpClient(c.endpoint)
		if err != nil {
			return fmt.Errorf("failed to create streamable-http client: %w", err)
		}
		if err := httpClient.Start(ctx); err != nil {
			return fmt.Errorf("failed to start streamable-http client: %w", err)
		}
		mcpClient = httpClient

	default:
		return fmt.Errorf("unsupported transport type: %s", c.transport)
	}

	c.client = mcpClient

	if err := c.initialize(ctx); err != nil {
		c.client.Close()
		c.client = nil
		return fmt.Errorf("initialization failed: %w", err)
	}
	return nil
}

func (c *Client) initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "mcpinspect",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.client.Initialize(timeoutCtx, req); err != nil {
		return err
	}
	return nil
}

// ListTools fetches the tool catalog and refreshes the cache.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not connected")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.ListTools(timeoutCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("tools/list failed: %w", err)
	}

	c.mu.Lock()
	c.toolCache = result.Tools
	c.mu.Unlock()
	return result.Tools, nil
}

// Tools returns the cached catalog from the last ListTools.
func (c *Client) Tools() []mcp.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]mcp.Tool(nil), c.toolCache...)
}

// CallTool executes a single tool call.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not connected")
	}

	req := mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.CallTool(timeoutCtx, req)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}
	return result, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
