package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	functionBlockRe = regexp.MustCompile(`(?s)<function=(\w+)>(.*?)</function>`)
	parameterRe     = regexp.MustCompile(`(?s)<parameter=(\w+)>\s*(.*?)\s*</parameter>`)
	strayToolCallRe = regexp.MustCompile(`(?s)</tool_call>`)
)

// ParseXMLToolCalls recovers tool calls a model emitted inline as
// "<function=NAME><parameter=KEY>VALUE</parameter></function>" text
// instead of (or alongside) native tool_calls. It returns the content
// with every matched block stripped out, plus the recovered calls in
// the order they appeared. Used as a fallback when a backend's native
// tool-calling support didn't fire — ported from llm_client.py's
// parse_xml_tool_calls.
func ParseXMLToolCalls(content string) (string, []ToolCall) {
	matches := functionBlockRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(strayToolCallRe.ReplaceAllString(content, "")), nil
	}

	calls := make([]ToolCall, 0, len(matches))
	for i, m := range matches {
		name := content[m[2]:m[3]]
		body := content[m[4]:m[5]]
		args := parseParameters(body)
		argBytes, err := json.Marshal(args)
		if err != nil {
			argBytes = []byte("{}")
		}
		calls = append(calls, ToolCall{
			ID:   fmt.Sprintf("call_%d", i),
			Type: "function",
			Function: FunctionCall{
				Name:      name,
				Arguments: string(argBytes),
			},
		})
	}

	cleaned := content
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		cleaned = cleaned[:m[0]] + cleaned[m[1]:]
	}
	cleaned = strayToolCallRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned), calls
}

// parseParameters extracts <parameter=KEY>VALUE</parameter> pairs from
// a function block body, coercing "true"/"false" (case-insensitive) to
// booleans and leaving everything else as a string.
func parseParameters(body string) map[string]any {
	params := map[string]any{}
	for _, m := range parameterRe.FindAllStringSubmatch(body, -1) {
		key, val := m[1], m[2]
		switch strings.ToLower(val) {
		case "true":
			params[key] = true
		case "false":
			params[key] = false
		default:
			params[key] = val
		}
	}
	return params
}
