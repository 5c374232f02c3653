package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONFromProse(t *testing.T) {
	content := "Sure! Here is my choice:\n```json\n{\"workspaceId\": \"W1\", \"reasoning\": \"best fit\"}\n```\nThanks."
	assert.Equal(t, `{"workspaceId": "W1", "reasoning": "best fit"}`, ExtractJSON(content))
}

func TestExtractJSONNested(t *testing.T) {
	content := `result: {"a": {"b": 1}, "c": 2} trailing {"d": 3}`
	assert.Equal(t, `{"a": {"b": 1}, "c": 2}`, ExtractJSON(content))
}

func TestExtractJSONIgnoresBracesInStrings(t *testing.T) {
	content := `{"workspaceId": "W1", "reasoning": "use } carefully \" {"}`
	assert.Equal(t, content, ExtractJSON(content))
}

func TestExtractJSONWithoutObject(t *testing.T) {
	assert.Equal(t, "no json here", ExtractJSON("no json here"))
	assert.Equal(t, "{unclosed", ExtractJSON("{unclosed"))
}

func TestToJSON(t *testing.T) {
	assert.Equal(t, `{"k":"v"}`, ToJSON(map[string]string{"k": "v"}, "{}"))
	assert.Equal(t, "{}", ToJSON(make(chan int), "{}"))
	assert.Equal(t, "{}", ToJSON(map[string]any{"bad": func() {}}, "{}"))
}
