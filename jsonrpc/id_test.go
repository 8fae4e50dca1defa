package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDRoundTrip(t *testing.T) {
	var numeric ID
	require.NoError(t, json.Unmarshal([]byte(`42`), &numeric))
	assert.Equal(t, 42, numeric.Value())
	assert.Equal(t, "42", numeric.String())

	var text ID
	require.NoError(t, json.Unmarshal([]byte(`"abc-123"`), &text))
	assert.Equal(t, "abc-123", text.Value())
	assert.Equal(t, "abc-123", text.String())

	raw, err := json.Marshal(text)
	require.NoError(t, err)
	assert.Equal(t, `"abc-123"`, string(raw))

	var null ID
	require.NoError(t, json.Unmarshal([]byte(`null`), &null))
	assert.True(t, null.IsNil())
}

func TestNilIDMarshalsAsNull(t *testing.T) {
	raw, err := json.Marshal(ID{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(raw))

	// A response to an undecodable request carries a null id
	response := NewResponse(nil, nil, NewError(ErrParse, nil))
	frame, err := json.Marshal(response)
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"id":null`)
}

func TestRequestNotification(t *testing.T) {
	request := NewRequest("ping", nil, 1)
	assert.False(t, request.IsNotification())

	notification := NewNotification("notifications/initialized", nil)
	assert.True(t, notification.IsNotification())

	var decoded Request
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc": "2.0", "method": "ping"}`), &decoded))
	assert.True(t, decoded.IsNotification())
}
