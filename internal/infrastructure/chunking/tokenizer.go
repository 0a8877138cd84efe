package chunking

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Budgets and overlap are measured in tokens of the embedding model's
// encoding, not characters.
const defaultEncoding = "cl100k_base"

// Tokenizer is the token arithmetic the packer needs. Implementations
// must be safe for concurrent use.
type Tokenizer interface {
	Count(text string) int
	// Tail returns the text of the last n tokens, or the whole text
	// when it has fewer than n tokens.
	Tail(text string, n int) string
}

type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("get encoding %q: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *TiktokenTokenizer) Tail(text string, n int) string {
	if text == "" || n <= 0 {
		return ""
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= n {
		return text
	}
	return t.enc.Decode(tokens[len(tokens)-n:])
}
