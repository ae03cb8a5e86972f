package ace

import (
	"encoding/json"
	"unicode/utf8"
)

// ExtractJSONObject pulls the first valid JSON object out of text,
// tolerating an LLM response that wraps its JSON in prose or markdown
// fences. It tries the whole string first, then scans for each '{'
// and uses a quote-aware brace-depth matcher to find the candidate
// substring ending at its matching '}', trying each until one parses
// as an object.
//
// Grounded on original_source's backend/app/ace/json_utils.py
// (extract_json_object / _find_matching_brace).
func ExtractJSONObject(text string) (map[string]any, bool) {
	if obj, ok := tryParseObject(text); ok {
		return obj, true
	}

	for i, r := range text {
		if r != '{' {
			continue
		}
		end := findMatchingBrace(text, i)
		if end == -1 {
			continue
		}
		if obj, ok := tryParseObject(text[i : end+1]); ok {
			return obj, true
		}
	}
	return nil, false
}

func tryParseObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// findMatchingBrace returns the byte index of the '}' that closes the
// '{' at byte index start, skipping over brace characters inside
// quoted strings and respecting backslash escapes, or -1 if unbalanced.
func findMatchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	runes := []rune(text)
	for i := utf8.RuneCountInString(text[:start]); i < len(runes); i++ {
		r := runes[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return byteIndexOfRune(text, i)
			}
		}
	}
	return -1
}

// byteIndexOfRune converts a rune index back to a byte index so
// findMatchingBrace's caller can slice the original (UTF-8) string.
func byteIndexOfRune(text string, runeIdx int) int {
	count := 0
	for i := range text {
		if count == runeIdx {
			return i
		}
		count++
	}
	return len(text)
}
