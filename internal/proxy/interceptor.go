// Package proxy bridges an operator's client and a downstream tool server
// as a full-duplex message pump. Every request/response pair crossing the
// bridge is correlated by id so that tool-call results can be fed to the
// resource indexer without the operator doing anything.
package proxy

import (
	"encoding/json"
	"sync"

	"mcpinspect/internal/indexer"
	"mcpinspect/internal/profile"
	"mcpinspect/pkg/logging"
)

const methodToolsCall = "tools/call"

// errForwardingFailed is the JSON-RPC error code synthesized when a request
// cannot be forwarded to the server.
const errForwardingFailed = -32001

// Transport is one side of the bridge. Implementations invoke the
// registered handlers from their own read loop.
type Transport interface {
	Send(msg json.RawMessage) error
	Close() error
	OnMessage(fn func(json.RawMessage))
	OnClose(fn func())
	OnError(fn func(error))
}

// rpcMessage is the minimal JSON-RPC envelope the interceptor inspects.
// Requests carry Method; responses carry Result or Error.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type callParams struct {
	Name string `json:"name"`
}

type pendingCall struct {
	method   string
	toolName string
}

// Interceptor pumps messages between a client transport and a server
// transport, indexing tools/call results under the active profile.
type Interceptor struct {
	mu           sync.Mutex
	client       Transport
	server       Transport
	pending      map[string]pendingCall
	indexer      *indexer.Indexer
	profiles     *profile.Store
	clientClosed bool
	serverClosed bool
}

// NewInterceptor wires the two transports together. The indexer and profile
// store may be nil, in which case observed results are forwarded but not
// indexed.
func NewInterceptor(client, server Transport, idx *indexer.Indexer, profiles *profile.Store) *Interceptor {
	i := &Interceptor{
		client:   client,
		server:   server,
		pending:  make(map[string]pendingCall),
		indexer:  idx,
		profiles: profiles,
	}

	client.OnMessage(i.onClientMessage)
	client.OnClose(func() { i.handleClose(true) })
	client.OnError(func(err error) {
		logging.Warn("Proxy", "Client transport error: %v", err)
	})

	server.OnMessage(i.onServerMessage)
	server.OnClose(func() { i.handleClose(false) })
	server.OnError(func(err error) {
		logging.Warn("Proxy", "Server transport error: %v", err)
	})

	return i
}

// onClientMessage forwards client traffic to the server, recording requests
// in the correlation table first.
func (i *Interceptor) onClientMessage(raw json.RawMessage) {
	var msg rpcMessage
	isRequest := json.Unmarshal(raw, &msg) == nil && msg.Method != "" && len(msg.ID) > 0

	if isRequest {
		entry := pendingCall{method: msg.Method}
		if msg.Method == methodToolsCall {
			var params callParams
			if err := json.Unmarshal(msg.Params, &params); err == nil {
				entry.toolName = params.Name
			}
		}
		i.mu.Lock()
		i.pending[string(msg.ID)] = entry
		i.mu.Unlock()
	}

	if err := i.server.Send(raw); err != nil {
		logging.Warn("Proxy", "Failed to forward to server: %v", err)
		if !isRequest {
			return
		}
		i.mu.Lock()
		delete(i.pending, string(msg.ID))
		clientOpen := !i.clientClosed
		i.mu.Unlock()
		if clientOpen {
			i.sendErrorToClient(msg.ID, err)
		}
	}
}

// onServerMessage mirrors server traffic back to the client and feeds
// correlated tools/call results to the indexer.
func (i *Interceptor) onServerMessage(raw json.RawMessage) {
	var msg rpcMessage
	if json.Unmarshal(raw, &msg) == nil && msg.Method == "" && len(msg.ID) > 0 {
		i.mu.Lock()
		entry, known := i.pending[string(msg.ID)]
		if known {
			delete(i.pending, string(msg.ID))
		}
		i.mu.Unlock()

		if known && entry.method == methodToolsCall && len(msg.Result) > 0 {
			i.indexResult(entry.toolName, msg.Result)
		}
	}

	if err := i.client.Send(raw); err != nil {
		// Response delivery failures are logged and the pump keeps going.
		logging.Warn("Proxy", "Failed to forward to client: %v", err)
	}
}

func (i *Interceptor) indexResult(toolName string, result json.RawMessage) {
	if i.indexer == nil {
		return
	}
	var response interface{}
	if err := json.Unmarshal(result, &response); err != nil {
		return
	}
	userID := ""
	if i.profiles != nil {
		userID = i.profiles.ActiveID()
	}
	i.indexer.IndexResponse(userID, toolName, response)
}

func (i *Interceptor) sendErrorToClient(id json.RawMessage, cause error) {
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]interface{}{
			"code":    errForwardingFailed,
			"message": cause.Error(),
			"data":    cause.Error(),
		},
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := i.client.Send(raw); err != nil {
		logging.Warn("Proxy", "Failed to deliver synthesized error: %v", err)
	}
}

// handleClose implements half-close: closing one side closes the other
// unless it is already closed, and the correlation table is dropped.
func (i *Interceptor) handleClose(fromClient bool) {
	i.mu.Lock()
	var peer Transport
	if fromClient {
		i.clientClosed = true
		if !i.serverClosed {
			i.serverClosed = true
			peer = i.server
		}
	} else {
		i.serverClosed = true
		if !i.clientClosed {
			i.clientClosed = true
			peer = i.client
		}
	}
	i.pending = make(map[string]pendingCall)
	i.mu.Unlock()

	if peer != nil {
		if err := peer.Close(); err != nil {
			logging.Warn("Proxy", "Failed to close peer transport: %v", err)
		}
	}
}

// Close shuts down both sides of the bridge.
func (i *Interceptor) Close() {
	i.mu.Lock()
	clientClosed, serverClosed := i.clientClosed, i.serverClosed
	i.clientClosed, i.serverClosed = true, true
	i.pending = make(map[string]pendingCall)
	i.mu.Unlock()

	if !clientClosed {
		if err := i.client.Close(); err != nil {
			logging.Warn("Proxy", "Failed to close client transport: %v", err)
		}
	}
	if !serverClosed {
		if err := i.server.Close(); err != nil {
			logging.Warn("Proxy", "Failed to close server transport: %v", err)
		}
	}
}

// PendingCount reports the size of the correlation table.
func (i *Interceptor) PendingCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}
