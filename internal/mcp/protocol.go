// Package mcp holds the JSON-RPC 2.0 envelopes and MCP result shapes
// served on the /mcp endpoint.
package mcp

import (
	"bytes"
	"encoding/json"
)

// ProtocolVersion is reported by initialize.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 method names.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// JSON-RPC 2.0 error codes used by the server.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeExecution      = -32000
)

// Version is the JSON-RPC version carried by every envelope.
const Version = "2.0"

// NullID is the id of responses to requests whose id is unknown.
var NullID = json.RawMessage("null")

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewResult returns a successful response for id.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, ID: responseID(id), Result: result}
}

// NewError returns an error response for id.
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: Version, ID: responseID(id), Error: &Error{Code: code, Message: message}}
}

// responseID echoes the request id, or null when the request had none.
func responseID(id json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(id)) == 0 {
		return NullID
	}
	return id
}

// InitializeResult is the result of initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerCapabilities declares what the server supports.
type ServerCapabilities struct {
	Tools *ToolCapability `json:"tools,omitempty"`
}

// ToolCapability is present when the server supports tools.
type ToolCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerInfo identifies the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsListResult is the result of tools/list.
type ToolsListResult struct {
	Tools []ToolDescription `json:"tools"`
}

// ToolDescription describes one tool.
type ToolDescription struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// ToolsCallParams are the params of tools/call.
type ToolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolsCallResult is the result of tools/call.
type ToolsCallResult struct {
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a content block within a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextResult wraps text in a single text content block.
func TextResult(text string) *ToolsCallResult {
	return &ToolsCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}
