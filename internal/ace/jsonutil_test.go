package ace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObjectWholeString(t *testing.T) {
	obj, ok := ExtractJSONObject(`{"operations": []}`)
	require.True(t, ok)
	assert.Equal(t, []any{}, obj["operations"])
}

func TestExtractJSONObjectEmbeddedInProse(t *testing.T) {
	text := "Sure, here's my analysis:\n```json\n{\"reasoning\": \"it failed because of a nil pointer\", \"key_insight\": \"check nils\"}\n```\nLet me know if that helps."
	obj, ok := ExtractJSONObject(text)
	require.True(t, ok)
	assert.Equal(t, "it failed because of a nil pointer", obj["reasoning"])
}

func TestExtractJSONObjectWithNestedBraces(t *testing.T) {
	text := `prefix {"section": "domain_knowledge", "metadata": {"nested": {"deep": 1}}} suffix`
	obj, ok := ExtractJSONObject(text)
	require.True(t, ok)
	assert.Equal(t, "domain_knowledge", obj["section"])
}

func TestExtractJSONObjectIgnoresBracesInsideStrings(t *testing.T) {
	text := `{"content": "use the pattern {foo} in templates", "section": "apis_and_schemas"}`
	obj, ok := ExtractJSONObject(text)
	require.True(t, ok)
	assert.Equal(t, "use the pattern {foo} in templates", obj["content"])
}

func TestExtractJSONObjectReturnsFalseWhenNoneFound(t *testing.T) {
	_, ok := ExtractJSONObject("no json here at all")
	assert.False(t, ok)
}

func TestExtractJSONObjectSkipsArrayAndFindsObject(t *testing.T) {
	text := `[1, 2, 3] then {"key": "value"}`
	obj, ok := ExtractJSONObject(text)
	require.True(t, ok)
	assert.Equal(t, "value", obj["key"])
}
