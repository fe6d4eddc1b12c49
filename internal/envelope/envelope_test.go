package envelope

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapNoTextParses(t *testing.T) {
	response := map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{"type": "text", "text": "plain prose, not JSON"},
		},
	}
	assert.Equal(t, response, Unwrap(response))
}

func TestUnwrapSingleParsedValue(t *testing.T) {
	response := map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{"type": "text", "text": `{"id":"42"}`},
		},
	}
	assert.Equal(t, map[string]interface{}{"id": "42"}, Unwrap(response))
}

func TestUnwrapMultipleParsedValues(t *testing.T) {
	response := map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{"type": "text", "text": `{"a":1}`},
			map[string]interface{}{"type": "text", "text": `{"b":2}`},
			map[string]interface{}{"type": "text", "text": "not json"},
		},
	}
	out, ok := Unwrap(response).([]interface{})
	require.True(t, ok)
	assert.Len(t, out, 2)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, out[0])
	assert.Equal(t, map[string]interface{}{"b": float64(2)}, out[1])
}

func TestUnwrapNonEnvelope(t *testing.T) {
	assert.Equal(t, "hello", Unwrap("hello"))

	raw := map[string]interface{}{"id": "x"}
	assert.Equal(t, raw, Unwrap(raw))
}

func TestFromResult(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(`{"id":"abc"}`)},
	}

	generic := FromResult(result)
	obj, ok := generic.(map[string]interface{})
	require.True(t, ok)
	_, hasContent := obj["content"]
	assert.True(t, hasContent)

	unwrapped := Unwrap(generic)
	assert.Equal(t, map[string]interface{}{"id": "abc"}, unwrapped)
}

func TestFromResultNil(t *testing.T) {
	assert.Nil(t, FromResult(nil))
}
