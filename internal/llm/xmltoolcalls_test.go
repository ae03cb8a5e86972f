package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXMLToolCallsSingle(t *testing.T) {
	content := `Let me check that file.
<function=read_file><parameter=path>main.go</parameter><parameter=max_lines>50</parameter></function>
Done.`

	cleaned, calls := ParseXMLToolCalls(content)
	require.Len(t, calls, 1)
	assert.Equal(t, "read_file", calls[0].Function.Name)
	assert.Equal(t, "call_0", calls[0].ID)

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(calls[0].Function.Arguments), &args))
	assert.Equal(t, "main.go", args["path"])
	assert.Equal(t, "50", args["max_lines"])

	assert.NotContains(t, cleaned, "<function=")
	assert.Contains(t, cleaned, "Let me check that file.")
	assert.Contains(t, cleaned, "Done.")
}

func TestParseXMLToolCallsBooleanCoercion(t *testing.T) {
	content := `<function=write_file><parameter=path>x.txt</parameter><parameter=overwrite>True</parameter></function>`
	_, calls := ParseXMLToolCalls(content)
	require.Len(t, calls, 1)

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(calls[0].Function.Arguments), &args))
	assert.Equal(t, true, args["overwrite"])
}

func TestParseXMLToolCallsMultiple(t *testing.T) {
	content := `<function=a><parameter=x>1</parameter></function><function=b><parameter=y>2</parameter></function>`
	_, calls := ParseXMLToolCalls(content)
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Function.Name)
	assert.Equal(t, "call_0", calls[0].ID)
	assert.Equal(t, "b", calls[1].Function.Name)
	assert.Equal(t, "call_1", calls[1].ID)
}

func TestParseXMLToolCallsNoMatchReturnsOriginal(t *testing.T) {
	cleaned, calls := ParseXMLToolCalls("just plain text")
	assert.Empty(t, calls)
	assert.Equal(t, "just plain text", cleaned)
}

func TestParseXMLToolCallsStripsStrayCloseTag(t *testing.T) {
	cleaned, calls := ParseXMLToolCalls("some text</tool_call>")
	assert.Empty(t, calls)
	assert.Equal(t, "some text", cleaned)
}
