package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// ExactCounter counts tokens with a tiktoken encoding.
// The codec is loaded lazily on first use and shared by all callers.
type ExactCounter struct {
	encoding tokenizer.Encoding

	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewExactCounter creates a counter using the cl100k_base encoding.
func NewExactCounter() *ExactCounter {
	return NewExactCounterForEncoding(tokenizer.Cl100kBase)
}

// NewExactCounterForEncoding creates a counter for a specific encoding.
func NewExactCounterForEncoding(encoding tokenizer.Encoding) *ExactCounter {
	return &ExactCounter{encoding: encoding}
}

func (c *ExactCounter) getCodec() (tokenizer.Codec, error) {
	c.once.Do(func() {
		codec, err := tokenizer.Get(c.encoding)
		if err != nil {
			c.err = fmt.Errorf("failed to get tokenizer encoding %s: %w", c.encoding, err)
			return
		}
		c.codec = codec
	})
	return c.codec, c.err
}

// CountText counts tokens for a plain text string.
func (c *ExactCounter) CountText(text string) (int, error) {
	codec, err := c.getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
