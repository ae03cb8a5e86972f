package retriever

import (
	"fmt"
	"strings"
)

// ContextPack is an ordered, token-budgeted block of retrieved
// context ready to splice into a prompt.
type ContextPack struct {
	Text       string
	Items      []Result
	TokenCount int
	Truncated  bool
}

// ItemFormatter renders one Result as prompt text. A nil formatter
// falls back to a "### source (score: x.xx)\ncontent" header.
type ItemFormatter func(Result) string

func defaultItemFormatter(r Result) string {
	header := fmt.Sprintf("### %s (score: %.2f)", r.Source, r.Score)
	return strings.TrimSpace(header + "\n" + r.Content)
}

// BuildContextPack prepends "## title", then appends each formatted
// result until the next one would exceed tokenBudget. If even the
// first item overflows the budget, its text is truncated to whatever
// budget remains rather than dropped entirely.
func BuildContextPack(counter TokenCounter, title string, results []Result, tokenBudget int, formatter ItemFormatter) ContextPack {
	if len(results) == 0 || tokenBudget <= 0 {
		return ContextPack{}
	}
	if counter == nil {
		counter = approximateCounter{}
	}
	if formatter == nil {
		formatter = defaultItemFormatter
	}

	lines := []string{"## " + title}
	tokenCount := counter.Count(lines[0])
	var items []Result
	truncated := false

	for _, result := range results {
		itemText := formatter(result)
		if itemText == "" {
			continue
		}

		itemTokens := counter.Count(itemText)
		if tokenCount+itemTokens > tokenBudget {
			truncated = true
			if len(items) == 0 {
				available := tokenBudget - tokenCount
				if available < 0 {
					available = 0
				}
				itemText = truncateToTokens(itemText, available)
				if itemText != "" {
					lines = append(lines, itemText)
					tokenCount += counter.Count(itemText)
					items = append(items, result)
				}
			}
			break
		}

		lines = append(lines, itemText)
		tokenCount += itemTokens
		items = append(items, result)
	}

	text := ""
	if len(items) > 0 {
		text = strings.Join(lines, "\n\n")
	}
	return ContextPack{Text: text, Items: items, TokenCount: tokenCount, Truncated: truncated}
}

// truncateToTokens approximates maxTokens as maxTokens*4 characters —
// matching retriever.py's _truncate_text_to_tokens, since the exact
// token boundary within an already-overflowing item isn't worth an
// extra encode/decode round trip.
func truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return ""
	}
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}
	return strings.TrimRight(text[:maxChars], " \t\n") + "..."
}
