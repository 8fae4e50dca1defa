package mcp

import (
	"github.com/brixta-dev/mcp-bridge/jsonrpc"
	"github.com/brixta-dev/mcp-bridge/toolgen"
)

// Version is the Model Context Protocol version
const Version = "2024-11-05"

// Role represents the sender or recipient of messages and data in a conversation
type Role string

const (
	// RoleUser represents the user
	RoleUser Role = "user"

	// RoleAssistant represents the assistant
	RoleAssistant Role = "assistant"
)

// Annotations represents optional annotations for objects
type Annotations struct {
	// Describes who the intended customer of this object or data is
	Audience []Role `json:"audience,omitempty"`
	// Describes how important this data is for operating the server (0-1)
	Priority *float64 `json:"priority,omitempty"`
}

// Content represents the base content type
type Content struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	Data        string       `json:"data,omitempty"`
	MimeType    string       `json:"mimeType,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

// NewTextContent creates a new text content with the given text and optional annotations
func NewTextContent(text string, audience []Role, priority *float64) Content {
	return Content{
		Type: "text",
		Text: text,
		Annotations: &Annotations{
			Audience: audience,
			Priority: priority,
		},
	}
}

// NewImageContent creates a new image content with the given base64 data and optional annotations
func NewImageContent(data string, mimeType string, audience []Role, priority *float64) Content {
	return Content{
		Type:     "image",
		Data:     data,
		MimeType: mimeType,
		Annotations: &Annotations{
			Audience: audience,
			Priority: priority,
		},
	}
}

// Initialize
type (
	// ServerCapabilities represents the server's supported capabilities
	ServerCapabilities struct {
		Experimental map[string]interface{} `json:"experimental,omitempty"`
		Logging      *struct{}              `json:"logging,omitempty"`
		Tools        *struct {
			ListChanged bool `json:"listChanged"`
		} `json:"tools,omitempty"`
	}

	// ServerInfo represents information about an MCP implementation
	ServerInfo struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}

	// InitializeResponse represents the server's response to an initialize request
	InitializeResponse struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ServerCapabilities `json:"capabilities"`
		ServerInfo      ServerInfo         `json:"serverInfo"`
		Instructions    string             `json:"instructions,omitempty"`
	}
)

// Tools
type (
	// ToolsListResponse represents the response for the tools/list method
	ToolsListResponse struct {
		Tools      []toolgen.Tool `json:"tools"`
		NextCursor string         `json:"nextCursor,omitempty"`
	}

	// ToolCallParams represents the parameters for the tools/call method
	ToolCallParams struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments,omitempty"`
	}

	// ToolCallResponse represents the response from a tool call
	ToolCallResponse struct {
		Content []Content `json:"content"`
		IsError bool      `json:"isError,omitempty"`
	}
)

// CancelledParams represents the notifications/cancelled payload: the
// client lost interest in an in-flight request
type CancelledParams struct {
	RequestID jsonrpc.ID `json:"requestId"`
	Reason    string     `json:"reason,omitempty"`
}

// Ping
type (
	// PingResponse represents the response for ping
	PingResponse struct{}
)
