package jsonrpc

import "encoding/json"

// Version is the JSON-RPC protocol version
const Version = "2.0"

// Request represents a JSON-RPC request object.
// A request without an ID is a notification and expects no response.
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *ID             `json:"id,omitempty"`
}

// NewRequest creates a new Request object
func NewRequest(method string, params json.RawMessage, id interface{}) Request {
	reqID, err := NewID(id)
	if err != nil {
		return Request{Version: Version, Method: method, Params: params}
	}
	return Request{
		Version: Version,
		Method:  method,
		Params:  params,
		ID:      &reqID,
	}
}

// NewNotification creates a Request with no ID
func NewNotification(method string, params json.RawMessage) Request {
	return Request{
		Version: Version,
		Method:  method,
		Params:  params,
	}
}

// IsNotification reports whether the request carries no ID
func (r Request) IsNotification() bool {
	return r.ID == nil
}
