package agent

import (
	"fmt"
	"strings"
)

const (
	readFileDisplayLines = 50
	readFileDisplayChars = 2000
	listFilesDisplayMax  = 20
	defaultDisplayCap    = 4000
)

// truncateForDisplay renders a tool's full content as the display-sized
// string sent to the client in a tool_result event, per spec.md §4.9
// step 5(f)'s per-tool truncation rules. The full, untruncated content
// still goes to the model via history.
func truncateForDisplay(toolName, content string) string {
	switch toolName {
	case "read_file":
		return truncateReadFile(content)
	case "list_files":
		return truncateListFiles(content)
	default:
		if len(content) > defaultDisplayCap {
			return content[:defaultDisplayCap] + fmt.Sprintf("\n... [truncated, %d total chars]", len(content))
		}
		return content
	}
}

// truncateReadFile keeps the first 50 lines, additionally capped to
// 2000 chars, flagging whichever limit actually truncated.
func truncateReadFile(content string) string {
	lines := strings.Split(content, "\n")
	truncatedLines := len(lines) > readFileDisplayLines
	if truncatedLines {
		lines = lines[:readFileDisplayLines]
	}
	out := strings.Join(lines, "\n")

	truncatedChars := len(out) > readFileDisplayChars
	if truncatedChars {
		out = out[:readFileDisplayChars]
	}

	if !truncatedLines && !truncatedChars {
		return content
	}

	var flags []string
	if truncatedLines {
		flags = append(flags, fmt.Sprintf("first %d of %d lines", readFileDisplayLines, len(strings.Split(content, "\n"))))
	}
	if truncatedChars {
		flags = append(flags, fmt.Sprintf("capped at %d chars", readFileDisplayChars))
	}
	return out + fmt.Sprintf("\n... [truncated: %s]", strings.Join(flags, ", "))
}

// truncateListFiles keeps the first 20 entries (one per line) and
// appends the total count.
func truncateListFiles(content string) string {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	total := len(lines)
	if total <= listFilesDisplayMax {
		return content
	}
	shown := lines[:listFilesDisplayMax]
	return strings.Join(shown, "\n") + fmt.Sprintf("\n... [%d of %d files shown]", listFilesDisplayMax, total)
}
