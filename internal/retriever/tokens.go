package retriever

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many tokens a piece of text costs the
// active model, used by the context packer's budget accounting.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a real tiktoken encoding,
// grounded on hector's pkg/utils.TokenCounter (model→encoding lookup,
// cl100k_base fallback, cached encodings).
type TiktokenCounter struct {
	mu       sync.RWMutex
	encoding *tiktoken.Tiktoken
}

var (
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.RWMutex
)

// NewTiktokenCounter builds a counter for model, falling back to
// cl100k_base if the model has no known encoding.
func NewTiktokenCounter(model string) *TiktokenCounter {
	encodingCacheMu.RLock()
	cached, ok := encodingCache[model]
	encodingCacheMu.RUnlock()
	if ok {
		return &TiktokenCounter{encoding: cached}
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return &TiktokenCounter{encoding: nil}
		}
	}

	encodingCacheMu.Lock()
	encodingCache[model] = encoding
	encodingCacheMu.Unlock()
	return &TiktokenCounter{encoding: encoding}
}

// Count returns encoding.Encode's token count, or the chars/4
// approximation if no encoding could be loaded (offline environments
// without tiktoken's bundled BPE ranks).
func (t *TiktokenCounter) Count(text string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.encoding == nil {
		return approximateTokens(text)
	}
	return len(t.encoding.Encode(text, nil, nil))
}

func approximateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// approximateCounter always uses chars/4, for callers (tests, or a
// caller with no model name) that don't want tiktoken at all.
type approximateCounter struct{}

func (approximateCounter) Count(text string) int { return approximateTokens(text) }
